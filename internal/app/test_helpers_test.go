package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/jaakkos/swarmwork/internal/domain"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// fakeStore is a map-backed SharedStore for tests.
type fakeStore struct {
	entries map[string]Entry
	seq     int
	order   map[string]int
	failOn  string // category whose writes fail
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]Entry), order: make(map[string]int)}
}

func (s *fakeStore) Write(category, key string, value any, writer string, opts WriteOptions) error {
	if s.failOn != "" && category == s.failOn {
		return fmt.Errorf("write to %s refused", category)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	k := category + "/" + key
	now := time.Now()
	entry := Entry{
		Category:  category,
		Key:       key,
		Value:     raw,
		Writer:    writer,
		Priority:  opts.Priority,
		Tags:      append([]string(nil), opts.Tags...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if prev, ok := s.entries[k]; ok {
		entry.CreatedAt = prev.CreatedAt
	} else {
		s.seq++
		s.order[k] = s.seq
	}
	s.entries[k] = entry
	return nil
}

func (s *fakeStore) Read(category, key, reader string) (*Entry, error) {
	entry, ok := s.entries[category+"/"+key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (s *fakeStore) Query(reader string, filter EntryFilter) ([]Entry, error) {
	type ordered struct {
		entry Entry
		seq   int
	}
	var matched []ordered
	for k, e := range s.entries {
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		ok := true
		for _, t := range filter.Tags {
			if !e.HasTag(t) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, ordered{e, s.order[k]})
		}
	}
	if filter.SortBy == "priority" {
		sort.SliceStable(matched, func(i, j int) bool {
			if matched[i].entry.Priority != matched[j].entry.Priority {
				return matched[i].entry.Priority > matched[j].entry.Priority
			}
			return matched[i].seq < matched[j].seq
		})
	} else {
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })
	}
	out := make([]Entry, len(matched))
	for i, m := range matched {
		out[i] = m.entry
	}
	return out, nil
}

// countingUnit records Execute calls and returns a scripted report.
type countingUnit struct {
	BaseUnit
	calls   int
	lastMsg domain.Message
	respond func(call int, msg domain.Message) domain.Report
}

func newCountingUnit(id string, status domain.Status) *countingUnit {
	return &countingUnit{
		BaseUnit: NewBaseUnit(domain.Identity{ID: id, Status: status, Role: domain.RoleLeaf}, testLogger()),
	}
}

func (u *countingUnit) Execute(msg domain.Message) domain.Report {
	u.calls++
	u.lastMsg = msg
	if u.respond != nil {
		return u.respond(u.calls, msg)
	}
	return domain.CompletedReport(msg.ID, map[string]any{"result": "ok"})
}

// recordingTransport captures every sent message.
type recordingTransport struct {
	sent []domain.Message
	fail bool
}

func (t *recordingTransport) Send(msg domain.Message) error {
	if t.fail {
		return fmt.Errorf("transport down")
	}
	t.sent = append(t.sent, msg)
	return nil
}
