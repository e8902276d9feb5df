// Package app implements the orchestration core and defines ports
// (shared store, transport, reviewer, mutator interfaces).
package app

import (
	"encoding/json"
	"time"
)

// Store categories. Every durable record lives in exactly one category;
// the (category, key) pair is the idempotency key for all writes.
const (
	CategoryAudit          = "audit"
	CategoryDirectives     = "directives"
	CategoryEscalations    = "escalations"
	CategoryRequests       = "requests"
	CategoryContactHistory = "contact_history"
	CategoryInsights       = "insights"
	CategoryFlags          = "flags"
	CategorySequences      = "sequences"
	CategorySequenceRuns   = "sequence_runs"
	CategoryLeads          = "leads"
	CategorySentiment      = "sentiment"
	CategoryOutbox         = "outbox"
)

// Entry is one record in the shared store.
type Entry struct {
	Category  string          `json:"category"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Writer    string          `json:"writer"`
	Priority  int             `json:"priority"`
	Tags      []string        `json:"tags,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Decode unmarshals the entry value into v.
func (e Entry) Decode(v any) error {
	return json.Unmarshal(e.Value, v)
}

// HasTag reports whether the entry carries tag.
func (e Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// WriteOptions carry optional metadata for a store write.
type WriteOptions struct {
	Priority int
	Tags     []string
}

// EntryFilter selects entries for Query. Zero fields match everything.
// SortBy is "priority" (descending) or "created_at" (ascending, the default).
// When Tags is set, an entry matches if it carries all listed tags.
type EntryFilter struct {
	Category string
	Tags     []string
	SortBy   string
}

// SharedStore is the durable shared store port. Writing an existing
// (category, key) pair overwrites the value (last writer wins); there is no
// locking layer, so pipeline correctness depends on idempotent keys and on
// "mark processed" style rewrites being the last write of each cycle.
// Implementations: internal/repository/sqlite, internal/repository/memory.
type SharedStore interface {
	Write(category, key string, value any, writer string, opts WriteOptions) error
	// Read returns the entry or (nil, nil) when absent.
	Read(category, key, reader string) (*Entry, error)
	Query(reader string, filter EntryFilter) ([]Entry, error)
}

// SignalingStore wraps a SharedStore and touches the notify signal file after
// every successful write, so other processes watching the store wake up.
type SignalingStore struct {
	inner      SharedStore
	signalPath string
}

// NewSignalingStore wraps store. signalPath may be empty to disable signaling.
func NewSignalingStore(store SharedStore, signalPath string) *SignalingStore {
	return &SignalingStore{inner: store, signalPath: signalPath}
}

func (s *SignalingStore) Write(category, key string, value any, writer string, opts WriteOptions) error {
	if err := s.inner.Write(category, key, value, writer, opts); err != nil {
		return err
	}
	_ = TouchNotifySignal(s.signalPath)
	return nil
}

func (s *SignalingStore) Read(category, key, reader string) (*Entry, error) {
	return s.inner.Read(category, key, reader)
}

func (s *SignalingStore) Query(reader string, filter EntryFilter) ([]Entry, error) {
	return s.inner.Query(reader, filter)
}
