package app

import (
	"fmt"
	"time"

	"github.com/jaakkos/swarmwork/internal/domain"
)

// MutationResult is the outcome of applying one directive to a supervisor's
// operating parameters.
type MutationResult struct {
	Applied bool           `json:"applied"`
	Before  map[string]any `json:"before,omitempty"`
	After   map[string]any `json:"after,omitempty"`
	Err     string         `json:"error,omitempty"`
}

// Mutator is the domain-specific mutation-application port. Apply must be a
// pure parameter adjustment; durability and idempotency are handled by the
// pipeline around it.
type Mutator interface {
	OwnedTypes() []string
	Apply(d domain.MutationDirective) MutationResult
}

// MutationOutcome pairs a directive with its application result.
type MutationOutcome struct {
	Directive domain.MutationDirective `json:"directive"`
	Result    MutationResult           `json:"result"`
}

// mutationAudit is the audit record written per applied directive, containing
// before/after state and the outcome.
type mutationAudit struct {
	Kind        string         `json:"kind"`
	Supervisor  string         `json:"supervisor"`
	DirectiveID string         `json:"directive_id"`
	Type        string         `json:"type"`
	Applied     bool           `json:"applied"`
	Before      map[string]any `json:"before,omitempty"`
	After       map[string]any `json:"after,omitempty"`
	Error       string         `json:"error,omitempty"`
	AppliedAt   time.Time      `json:"applied_at"`
}

// OwnsDirectiveType reports whether this supervisor owns directives of type t.
func (s *Supervisor) OwnsDirectiveType(t string) bool {
	for _, owned := range s.ownedTypes {
		if owned == t {
			return true
		}
	}
	return false
}

// ReadAndApplyMutations queries the store for unprocessed directives whose
// type this supervisor owns, sorted by priority descending, and applies each
// at most once. Per directive the order is: apply, write audit entry, then
// mark the directive processed — the processed flag is the sole idempotency
// mechanism, so marking must be the last durable write before the next read
// cycle can run. A processed directive is excluded from the next query.
func (s *Supervisor) ReadAndApplyMutations() ([]MutationOutcome, error) {
	if s.mutator == nil || len(s.ownedTypes) == 0 {
		return nil, nil
	}
	entries, err := s.store.Query(s.Identity().ID, EntryFilter{Category: CategoryDirectives, SortBy: "priority"})
	if err != nil {
		return nil, fmt.Errorf("query directives: %w", err)
	}

	var outcomes []MutationOutcome
	for _, entry := range entries {
		var d domain.MutationDirective
		if err := entry.Decode(&d); err != nil {
			s.Logger().Printf("Mutations: skipping malformed directive %s: %v", entry.Key, err)
			continue
		}
		if d.Processed || !s.OwnsDirectiveType(d.Type) {
			continue
		}

		result := s.mutator.Apply(d)
		outcomes = append(outcomes, MutationOutcome{Directive: d, Result: result})

		audit := mutationAudit{
			Kind:        "mutation_applied",
			Supervisor:  s.Identity().ID,
			DirectiveID: d.ID,
			Type:        d.Type,
			Applied:     result.Applied,
			Before:      result.Before,
			After:       result.After,
			Error:       result.Err,
			AppliedAt:   time.Now(),
		}
		if err := s.store.Write(CategoryAudit, "mutation-"+d.ID, audit, s.Identity().ID, WriteOptions{Tags: []string{"mutation", d.Type}}); err != nil {
			return outcomes, fmt.Errorf("write mutation audit for %s: %w", d.ID, err)
		}

		d.Processed = true
		d.ProcessedAt = time.Now()
		if err := s.store.Write(CategoryDirectives, d.ID, d, s.Identity().ID, WriteOptions{Priority: d.Priority, Tags: []string{d.Type}}); err != nil {
			return outcomes, fmt.Errorf("mark directive %s processed: %w", d.ID, err)
		}
		s.Logger().Printf("Mutations: %s applied directive %s (type=%s, applied=%v)", s.Identity().ID, d.ID, d.Type, result.Applied)
	}
	return outcomes, nil
}
