package app

import (
	"fmt"
	"log"
	"sync"

	"github.com/jaakkos/swarmwork/internal/domain"
)

// SelfReport is a unit's own account of its implementation depth.
type SelfReport struct {
	HasRealLogic     bool `json:"has_real_logic"`
	FunctionalWeight int  `json:"functional_weight"` // 0-100
}

// CapabilityUnit is any component (leaf or supervisor) that handles tasks.
// Status gating is the caller's responsibility: a supervisor must check
// Status().Executable() before calling Execute. Calling Execute on an
// UNIMPLEMENTED or STUB unit from outside that contract fails immediately.
type CapabilityUnit interface {
	// Initialize performs idempotent setup; safe to call multiple times.
	Initialize() error
	Execute(msg domain.Message) domain.Report
	HandleSignal(evt domain.Message) domain.Report
	Identity() domain.Identity
	Status() domain.Status
	SelfReport() SelfReport
}

// BaseUnit carries the identity, logger, and idempotent-init bookkeeping
// shared by all units. Embed it and override Execute (and HandleSignal when
// the unit reacts to events).
type BaseUnit struct {
	identity domain.Identity
	logger   *log.Logger

	initMu      sync.Mutex
	initialized bool
}

// NewBaseUnit returns a BaseUnit for identity.
func NewBaseUnit(identity domain.Identity, logger *log.Logger) BaseUnit {
	return BaseUnit{identity: identity, logger: logger}
}

// Initialize is idempotent; repeated calls are no-ops.
func (b *BaseUnit) Initialize() error {
	b.initMu.Lock()
	defer b.initMu.Unlock()
	if b.initialized {
		return nil
	}
	b.initialized = true
	return nil
}

// Identity returns the unit's immutable identity.
func (b *BaseUnit) Identity() domain.Identity { return b.identity }

// Status returns the unit's capability-readiness level.
func (b *BaseUnit) Status() domain.Status { return b.identity.Status }

// Logger returns the injected logger.
func (b *BaseUnit) Logger() *log.Logger { return b.logger }

// HandleSignal acknowledges the event. Units that react to signals override this.
func (b *BaseUnit) HandleSignal(evt domain.Message) domain.Report {
	return domain.CompletedReport(evt.ID, map[string]any{"acknowledged_by": b.identity.ID})
}

// SelfReport derives a default self report from the unit's status.
func (b *BaseUnit) SelfReport() SelfReport {
	switch b.identity.Status {
	case domain.StatusVerified:
		return SelfReport{HasRealLogic: true, FunctionalWeight: 100}
	case domain.StatusOperational:
		return SelfReport{HasRealLogic: true, FunctionalWeight: 75}
	case domain.StatusStub:
		return SelfReport{HasRealLogic: false, FunctionalWeight: 10}
	default:
		return SelfReport{HasRealLogic: false, FunctionalWeight: 0}
	}
}

// SafeExecute runs unit.Execute and converts panics and malformed reports
// into FAILED reports. Raw errors never cross a unit boundary.
func SafeExecute(unit CapabilityUnit, msg domain.Message) (report domain.Report) {
	defer func() {
		if r := recover(); r != nil {
			report = domain.FailedReport(msg.ID, fmt.Sprintf("unit %s panicked: %v", unit.Identity().ID, r))
		}
	}()
	report = unit.Execute(msg)
	if report.Status == "" {
		report = domain.FailedReport(msg.ID, fmt.Sprintf("unit %s returned a report without status", unit.Identity().ID))
	}
	return report
}

// Generator is the external content-generation collaborator. The core passes
// opaque payloads through and consumes the structured result; it never
// interprets payload contents.
type Generator interface {
	Generate(unitID string, payload map[string]any) (map[string]any, error)
}

// GeneratorFunc adapts a function to the Generator port.
type GeneratorFunc func(unitID string, payload map[string]any) (map[string]any, error)

func (f GeneratorFunc) Generate(unitID string, payload map[string]any) (map[string]any, error) {
	return f(unitID, payload)
}

// Specialist is a leaf unit whose work is delegated to the Generator
// collaborator. What it produces is domain data, not orchestration logic.
type Specialist struct {
	BaseUnit
	gen Generator
}

// NewSpecialist returns a leaf specialist backed by gen.
func NewSpecialist(identity domain.Identity, gen Generator, logger *log.Logger) *Specialist {
	identity.Role = domain.RoleLeaf
	return &Specialist{BaseUnit: NewBaseUnit(identity, logger), gen: gen}
}

// Execute passes the opaque payload to the generation collaborator.
func (s *Specialist) Execute(msg domain.Message) domain.Report {
	if s.gen == nil {
		return domain.FailedReport(msg.ID, fmt.Sprintf("unit %s has no generator wired", s.Identity().ID))
	}
	out, err := s.gen.Generate(s.Identity().ID, msg.Payload)
	if err != nil {
		return domain.FailedReport(msg.ID, fmt.Sprintf("generation failed: %v", err))
	}
	return domain.CompletedReport(msg.ID, out)
}
