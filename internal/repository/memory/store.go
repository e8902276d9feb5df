// Package memory implements the shared store in process memory. Used by
// tests and ephemeral runs where durability across restarts is not needed.
package memory

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jaakkos/swarmwork/internal/app"
)

// Store implements app.SharedStore with an in-memory map.
type Store struct {
	mu      sync.RWMutex
	entries map[string]app.Entry // "category\x00key"
	seq     int                  // insertion counter, tie-breaks equal timestamps
	order   map[string]int
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{entries: make(map[string]app.Entry), order: make(map[string]int)}
}

func entryKey(category, key string) string {
	return category + "\x00" + key
}

func (s *Store) Write(category, key string, value any, writer string, opts app.WriteOptions) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %s/%s: %w", category, key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := entryKey(category, key)
	now := time.Now()
	entry := app.Entry{
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

func (s *Store) Read(category, key, reader string) (*app.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[entryKey(category, key)]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (s *Store) Query(reader string, filter app.EntryFilter) ([]app.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type ordered struct {
		entry app.Entry
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
		if !ok {
			continue
		}
		matched = append(matched, ordered{entry: e, seq: s.order[k]})
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

	out := make([]app.Entry, len(matched))
	for i, m := range matched {
		out[i] = m.entry
	}
	return out, nil
}
