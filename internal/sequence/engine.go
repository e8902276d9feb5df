// Package sequence implements the outreach sequence engine: a multi-step,
// multi-channel contact state machine with compliance and sentiment gating
// and channel-escalation fallback.
package sequence

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jaakkos/swarmwork/internal/app"
	"github.com/jaakkos/swarmwork/internal/domain"
)

// Directive types owned by the engine.
const (
	DirectiveAdjustFrequency = "adjust_contact_frequency"
	DirectiveSetQuietHours   = "set_quiet_hours"
)

// EngineConfig configures the engine supervisor.
type EngineConfig struct {
	Identity   domain.Identity
	Rules      []domain.DelegationRule
	MaxRetries int
	EscalateTo string
	// Defaults apply to sequences that carry no compliance settings of their own.
	Defaults domain.ComplianceSettings
}

// Engine is a supervisor specialization that executes outreach sequences.
// Its sub-registry holds the channel executor units.
type Engine struct {
	*app.Supervisor
	store     app.SharedStore
	sentiment SentimentSource
	logger    *log.Logger
	now       func() time.Time

	mu       sync.Mutex // guards defaults (mutated by directives) and run read-modify-write
	defaults domain.ComplianceSettings
}

// NewEngine builds the engine over a channel sub-registry. The engine itself
// is the mutator for its owned directive types.
func NewEngine(cfg EngineConfig, channels *app.Registry, store app.SharedStore, transport app.Transport, sentiment SentimentSource, logger *log.Logger) *Engine {
	e := &Engine{
		store:     store,
		sentiment: sentiment,
		logger:    logger,
		now:       time.Now,
		defaults:  cfg.Defaults,
	}
	e.Supervisor = app.NewSupervisor(app.SupervisorConfig{
		Identity:   cfg.Identity,
		Rules:      cfg.Rules,
		MaxRetries: cfg.MaxRetries,
		EscalateTo: cfg.EscalateTo,
	}, channels, store, transport, nil, e, logger)
	return e
}

// SetClock injects a clock for tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// SaveSequence persists a sequence document. A sequence is immutable once
// execution begins: saving is refused while any run for it is non-terminal.
func (e *Engine) SaveSequence(seq domain.Sequence) error {
	if seq.ID == "" {
		return fmt.Errorf("sequence has no id")
	}
	if len(seq.Steps) == 0 {
		return fmt.Errorf("sequence %s has no steps", seq.ID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkNoActiveRuns(seq.ID); err != nil {
		return err
	}
	return e.store.Write(app.CategorySequences, seq.ID, seq, e.ID(), app.WriteOptions{})
}

// checkNoActiveRuns fails when a non-terminal run exists for sequenceID.
// Caller holds e.mu.
func (e *Engine) checkNoActiveRuns(sequenceID string) error {
	entries, err := e.store.Query(e.ID(), app.EntryFilter{Category: app.CategorySequenceRuns})
	if err != nil {
		return fmt.Errorf("check runs for sequence %s: %w", sequenceID, err)
	}
	for _, entry := range entries {
		var run domain.SequenceRun
		if err := entry.Decode(&run); err != nil {
			continue
		}
		if run.SequenceID == sequenceID && !run.Status.Terminal() {
			return fmt.Errorf("sequence %s has a run in progress for lead %s", sequenceID, run.LeadID)
		}
	}
	return nil
}

// LoadSequence reads a sequence document, or an error when absent.
func (e *Engine) LoadSequence(id string) (domain.Sequence, error) {
	var seq domain.Sequence
	entry, err := e.store.Read(app.CategorySequences, id, e.ID())
	if err != nil {
		return seq, err
	}
	if entry == nil {
		return seq, fmt.Errorf("unknown sequence %q", id)
	}
	if err := entry.Decode(&seq); err != nil {
		return seq, fmt.Errorf("decode sequence %s: %w", id, err)
	}
	return seq, nil
}

// SaveLead persists a lead record.
func (e *Engine) SaveLead(lead domain.Lead) error {
	if lead.ID == "" {
		return fmt.Errorf("lead has no id")
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = e.now()
	}
	return e.store.Write(app.CategoryLeads, lead.ID, lead, e.ID(), app.WriteOptions{})
}

// LoadLead reads a lead record, or an error when absent.
func (e *Engine) LoadLead(id string) (domain.Lead, error) {
	var lead domain.Lead
	entry, err := e.store.Read(app.CategoryLeads, id, e.ID())
	if err != nil {
		return lead, err
	}
	if entry == nil {
		return lead, fmt.Errorf("unknown lead %q", id)
	}
	if err := entry.Decode(&lead); err != nil {
		return lead, fmt.Errorf("decode lead %s: %w", id, err)
	}
	return lead, nil
}

// LoadRun reads the run for (sequenceID, leadID), or nil when none exists.
func (e *Engine) LoadRun(sequenceID, leadID string) (*domain.SequenceRun, error) {
	entry, err := e.store.Read(app.CategorySequenceRuns, domain.RunKey(sequenceID, leadID), e.ID())
	if err != nil || entry == nil {
		return nil, err
	}
	var run domain.SequenceRun
	if err := entry.Decode(&run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", domain.RunKey(sequenceID, leadID), err)
	}
	return &run, nil
}

func (e *Engine) saveRun(run *domain.SequenceRun) error {
	run.UpdatedAt = e.now()
	return e.store.Write(app.CategorySequenceRuns, domain.RunKey(run.SequenceID, run.LeadID), run, e.ID(), app.WriteOptions{
		Tags: []string{run.LeadID, string(run.Status)},
	})
}

// Execute routes sequence commands (payload with sequence_id and lead_id) to
// the state machine; anything else goes through the ordinary supervisor
// delegation path to the channel units.
func (e *Engine) Execute(msg domain.Message) domain.Report {
	seqID, _ := msg.Payload["sequence_id"].(string)
	leadID, _ := msg.Payload["lead_id"].(string)
	if seqID == "" || leadID == "" {
		return e.Supervisor.Execute(msg)
	}
	report, _ := e.RunSequence(seqID, leadID)
	report.TaskID = msg.ID
	return report
}

// RunSequence starts or resumes the run for (sequenceID, leadID) and executes
// as far as it can. A run in a terminal state is returned unchanged: terminal
// runs never advance.
func (e *Engine) RunSequence(sequenceID, leadID string) (report domain.Report, run *domain.SequenceRun) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		// Panics must not escape the unit boundary; the cycle runner calls
		// this without its own recovery.
		if r := recover(); r != nil {
			e.logger.Printf("Sequence %s: run panicked: %v", domain.RunKey(sequenceID, leadID), r)
			report = domain.FailedReport(domain.RunKey(sequenceID, leadID), fmt.Sprintf("sequence run panicked: %v", r))
		}
	}()

	seq, err := e.LoadSequence(sequenceID)
	if err != nil {
		return domain.FailedReport("", err.Error()), nil
	}
	lead, err := e.LoadLead(leadID)
	if err != nil {
		return domain.FailedReport("", err.Error()), nil
	}

	run, err = e.LoadRun(sequenceID, leadID)
	if err != nil {
		return domain.FailedReport("", err.Error()), nil
	}
	if run == nil {
		run = &domain.SequenceRun{
			SequenceID:  sequenceID,
			LeadID:      leadID,
			CurrentStep: 1,
			TotalSteps:  len(seq.Steps),
			Status:      domain.SequenceInProgress,
			StartedAt:   e.now(),
		}
	}
	if run.Status.Terminal() {
		return domain.Report{
			TaskID: domain.RunKey(sequenceID, leadID),
			Status: terminalReportStatus(run.Status),
			Errors: run.BlockReasons,
			Data:   map[string]any{"sequence_id": sequenceID, "lead_id": leadID, "status": string(run.Status)},
		}, run
	}

	return e.executeRun(seq, lead, run), run
}

// executeRun performs entry gating (once, before any step) and then the step
// loop. Caller holds e.mu.
func (e *Engine) executeRun(seq domain.Sequence, lead domain.Lead, run *domain.SequenceRun) domain.Report {
	taskID := domain.RunKey(run.SequenceID, run.LeadID)

	// The run indexes into the document it started with. A document rewritten
	// out-of-band mid-run cannot be executed safely; fail the run durably.
	if run.TotalSteps != len(seq.Steps) {
		run.Status = domain.SequenceFailed
		run.BlockReasons = append(run.BlockReasons,
			fmt.Sprintf("sequence %s changed after the run started: %d steps now, %d when the run began",
				run.SequenceID, len(seq.Steps), run.TotalSteps))
		if err := e.saveRun(run); err != nil {
			e.logger.Printf("Sequence %s: save failed run: %v", taskID, err)
		}
		e.writeRunInsight(run)
		return domain.FailedReport(taskID, run.BlockReasons...)
	}

	fresh := run.CurrentStep == 1 && len(run.StepResults) == 0

	if fresh {
		if reasons, blocked := e.gateEntry(lead, seq); blocked {
			run.Status = domain.SequenceBlocked
			run.BlockReasons = reasons
			if err := e.saveRun(run); err != nil {
				e.logger.Printf("Sequence %s: save blocked run: %v", taskID, err)
			}
			e.writeRunInsight(run)
			return domain.BlockedReport(taskID, reasons...)
		}
	}

	now := e.now()
	for run.Status == domain.SequenceInProgress && run.CurrentStep <= run.TotalSteps {
		if !run.NextStepAt.IsZero() && run.NextStepAt.After(now) {
			if err := e.saveRun(run); err != nil {
				e.logger.Printf("Sequence %s: save pending run: %v", taskID, err)
			}
			return domain.Report{
				TaskID: taskID,
				Status: domain.ReportPending,
				Data: map[string]any{
					"sequence_id":  run.SequenceID,
					"lead_id":      run.LeadID,
					"current_step": run.CurrentStep,
					"next_step_at": run.NextStepAt,
				},
			}
		}

		step := seq.Steps[run.CurrentStep-1]
		result := e.executeStep(seq, lead, run, step)
		run.StepResults = append(run.StepResults, result)

		if result.Status == domain.ReportBlocked {
			// Only BLOCKED halts the sequence. FAILED step results are
			// recorded and the run moves on.
			run.Status = domain.SequenceBlocked
			run.BlockReasons = append(run.BlockReasons, fmt.Sprintf("step %d (%s): %s", step.StepNumber, result.Channel, result.Detail))
			break
		}

		run.CurrentStep++
		run.NextStepAt = time.Time{}
		if run.CurrentStep > run.TotalSteps {
			run.Status = domain.SequenceCompleted
			break
		}
		if next := seq.Steps[run.CurrentStep-1]; next.DelayHours > 0 {
			run.NextStepAt = now.Add(time.Duration(next.DelayHours) * time.Hour)
		}
	}

	if err := e.saveRun(run); err != nil {
		e.logger.Printf("Sequence %s: save run: %v", taskID, err)
	}
	if run.Status.Terminal() {
		e.writeRunInsight(run)
	}

	switch run.Status {
	case domain.SequenceCompleted:
		return domain.CompletedReport(taskID, map[string]any{
			"sequence_id": run.SequenceID,
			"lead_id":     run.LeadID,
			"steps":       len(run.StepResults),
		})
	case domain.SequenceBlocked:
		return domain.BlockedReport(taskID, run.BlockReasons...)
	case domain.SequenceFailed:
		return domain.FailedReport(taskID, run.BlockReasons...)
	default:
		return domain.Report{
			TaskID: taskID,
			Status: domain.ReportPending,
			Data: map[string]any{
				"sequence_id":  run.SequenceID,
				"lead_id":      run.LeadID,
				"current_step": run.CurrentStep,
				"next_step_at": run.NextStepAt,
			},
		}
	}
}

// gateEntry runs the sentiment hard-block and the compliance gate. Returns
// all failing reasons together.
func (e *Engine) gateEntry(lead domain.Lead, seq domain.Sequence) ([]string, bool) {
	sent := domain.SentimentUnknown
	if e.sentiment != nil {
		var err error
		sent, err = e.sentiment.For(lead.ID)
		if err != nil {
			e.logger.Printf("Sequence: sentiment lookup for %s failed: %v", lead.ID, err)
			sent = domain.SentimentUnknown
		}
	}
	if sent == domain.SentimentHostile {
		e.flagForHumanReview(lead, sent)
		return []string{fmt.Sprintf("lead %s has HOSTILE sentiment; flagged for human review", lead.ID)}, true
	}

	settings := e.effectiveSettings(seq)
	if ok, reasons := e.CanContact(lead, settings, e.now()); !ok {
		return reasons, true
	}
	return nil, false
}

// effectiveSettings returns the sequence's compliance settings, falling back
// to the engine defaults when the document carries none.
func (e *Engine) effectiveSettings(seq domain.Sequence) domain.ComplianceSettings {
	zero := domain.ComplianceSettings{}
	if seq.Compliance == zero {
		return e.defaults
	}
	return seq.Compliance
}

// flagForHumanReview writes exactly one review flag per lead (idempotent key).
func (e *Engine) flagForHumanReview(lead domain.Lead, sent domain.Sentiment) {
	flag := map[string]any{
		"lead_id":    lead.ID,
		"sentiment":  string(sent),
		"reason":     "hostile sentiment detected before sequence execution",
		"flagged_at": e.now(),
	}
	if err := e.store.Write(app.CategoryFlags, "review-"+lead.ID, flag, e.ID(), app.WriteOptions{
		Priority: 9,
		Tags:     []string{lead.ID, "human_review"},
	}); err != nil {
		e.logger.Printf("Sequence: write review flag for %s: %v", lead.ID, err)
	}
}

// writeRunInsight persists a supervisor-owned insight about the terminal run
// for downstream consumers.
func (e *Engine) writeRunInsight(run *domain.SequenceRun) {
	insight := map[string]any{
		"kind":        "sequence_outcome",
		"sequence_id": run.SequenceID,
		"lead_id":     run.LeadID,
		"status":      string(run.Status),
		"steps_run":   len(run.StepResults),
		"reasons":     run.BlockReasons,
		"recorded_at": e.now(),
	}
	key := "run-" + domain.RunKey(run.SequenceID, run.LeadID)
	if err := e.store.Write(app.CategoryInsights, key, insight, e.ID(), app.WriteOptions{Tags: []string{run.LeadID, string(run.Status)}}); err != nil {
		e.logger.Printf("Sequence: write insight %s: %v", key, err)
	}
}

// ResumeDue re-enters non-terminal runs whose next step has come due. This is
// the external trigger for delayHours; steps are never slept through
// in-process.
func (e *Engine) ResumeDue(now time.Time) (int, error) {
	entries, err := e.store.Query(e.ID(), app.EntryFilter{Category: app.CategorySequenceRuns})
	if err != nil {
		return 0, fmt.Errorf("query runs: %w", err)
	}
	resumed := 0
	for _, entry := range entries {
		var run domain.SequenceRun
		if err := entry.Decode(&run); err != nil {
			e.logger.Printf("Sequence: skipping malformed run %s: %v", entry.Key, err)
			continue
		}
		if run.Status.Terminal() || run.NextStepAt.IsZero() || run.NextStepAt.After(now) {
			continue
		}
		report, _ := e.RunSequence(run.SequenceID, run.LeadID)
		if report.Status != domain.ReportFailed {
			resumed++
		}
	}
	return resumed, nil
}

// RunCycle extends the supervisor cycle with due-run resumption.
func (e *Engine) RunCycle() error {
	if err := e.Supervisor.RunCycle(); err != nil {
		return err
	}
	_, err := e.ResumeDue(e.now())
	return err
}

func terminalReportStatus(s domain.SequenceState) domain.ReportStatus {
	switch s {
	case domain.SequenceCompleted:
		return domain.ReportCompleted
	case domain.SequenceFailed:
		return domain.ReportFailed
	default:
		return domain.ReportBlocked
	}
}
