package app

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/jaakkos/swarmwork/internal/domain"
)

// DefaultMaxReviewRetries bounds the quality gate: at most this many retries
// after the original attempt, so MaxRetries+1 downstream invocations total.
const DefaultMaxReviewRetries = 2

// Reviewer is the quality-review port. Review runs only on handler-level
// success; it produces a fresh ReviewResult per attempt.
type Reviewer interface {
	Review(report domain.Report) domain.ReviewResult
}

// ReviewerFunc adapts a function to the Reviewer port.
type ReviewerFunc func(report domain.Report) domain.ReviewResult

func (f ReviewerFunc) Review(report domain.Report) domain.ReviewResult { return f(report) }

// SupervisorConfig configures a Supervisor. Zero MaxRetries means
// DefaultMaxReviewRetries; EscalateTo names the root authority that durable
// quality-gate escalations are addressed to.
type SupervisorConfig struct {
	Identity            domain.Identity
	Rules               []domain.DelegationRule
	DefaultDelegate     string
	OwnedDirectiveTypes []string
	MaxRetries          int
	EscalateTo          string
}

// Supervisor is a capability unit that owns a sub-registry of units, a
// delegation-rule matcher, a quality gate, a mutation-application cycle, and
// the cross-component request protocol.
type Supervisor struct {
	BaseUnit
	units      *Registry
	rules      []domain.DelegationRule // sorted by priority desc, declaration order on ties
	defaultTo  string
	reviewer   Reviewer
	mutator    Mutator
	store      SharedStore
	transport  Transport
	maxRetries int
	escalateTo string
	ownedTypes []string

	mu      sync.Mutex
	pending []domain.CrossComponentRequest
}

// NewSupervisor builds a supervisor over the given sub-registry. reviewer and
// mutator may be nil (no quality review / no owned directives).
func NewSupervisor(cfg SupervisorConfig, units *Registry, store SharedStore, transport Transport, reviewer Reviewer, mutator Mutator, logger *log.Logger) *Supervisor {
	cfg.Identity.Role = domain.RoleSupervisor
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxReviewRetries
	}
	rules := make([]domain.DelegationRule, len(cfg.Rules))
	copy(rules, cfg.Rules)
	// Stable sort: on equal priority the first declared rule wins.
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })

	owned := cfg.OwnedDirectiveTypes
	if mutator != nil && len(owned) == 0 {
		owned = mutator.OwnedTypes()
	}
	return &Supervisor{
		BaseUnit:   NewBaseUnit(cfg.Identity, logger),
		units:      units,
		rules:      rules,
		defaultTo:  cfg.DefaultDelegate,
		reviewer:   reviewer,
		mutator:    mutator,
		store:      store,
		transport:  transport,
		maxRetries: cfg.MaxRetries,
		escalateTo: cfg.EscalateTo,
		ownedTypes: owned,
	}
}

// Units returns the supervisor's sub-registry.
func (s *Supervisor) Units() *Registry { return s.units }

// ID returns the supervisor's catalog id.
func (s *Supervisor) ID() string { return s.Identity().ID }

// ResolveDelegate returns the sub-unit id for msg, or ("", false) when no
// delegation rule matches. Pure function of (rules, payload): the payload is
// serialized to a lowercase searchable form and rules are checked in priority
// order for any intersecting trigger keyword.
func (s *Supervisor) ResolveDelegate(msg domain.Message) (string, bool) {
	text := payloadText(msg)
	for _, rule := range s.rules {
		for _, kw := range rule.TriggerKeywords {
			if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
				return rule.DelegateTo, true
			}
		}
	}
	return "", false
}

func payloadText(msg domain.Message) string {
	if len(msg.Payload) == 0 {
		return ""
	}
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return ""
	}
	return strings.ToLower(string(raw))
}

// Execute routes msg through the delegation matcher and the quality gate.
// With no matching rule it falls back to the configured default delegate, or
// fails when none is configured. Panics and raw errors never escape.
func (s *Supervisor) Execute(msg domain.Message) (report domain.Report) {
	defer func() {
		if r := recover(); r != nil {
			report = domain.FailedReport(msg.ID, fmt.Sprintf("supervisor %s panicked: %v", s.Identity().ID, r))
		}
	}()

	target, matched := s.ResolveDelegate(msg)
	if !matched {
		if s.defaultTo == "" {
			return domain.FailedReport(msg.ID, fmt.Sprintf("supervisor %s: no delegation rule matched and no default delegate configured", s.Identity().ID))
		}
		target = s.defaultTo
	}
	return s.DelegateWithReview(target, msg)
}

// gateUnit resolves unitID and enforces the status gate. Returns the unit or
// a BLOCKED/FAILED report explaining why it cannot be invoked.
func (s *Supervisor) gateUnit(unitID string, msg domain.Message) (CapabilityUnit, *domain.Report) {
	unit := s.units.Resolve(unitID)
	if unit == nil {
		r := domain.FailedReport(msg.ID, fmt.Sprintf("supervisor %s: unknown unit %q", s.Identity().ID, unitID))
		return nil, &r
	}
	if st := unit.Status(); !st.Executable() {
		r := domain.BlockedReport(msg.ID, fmt.Sprintf("unit %s has status %s and cannot be invoked", unitID, st))
		return nil, &r
	}
	return unit, nil
}
