package sequence

import (
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/jaakkos/swarmwork/internal/app"
	"github.com/jaakkos/swarmwork/internal/domain"
	"github.com/jaakkos/swarmwork/internal/repository/memory"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// testProvider scripts delivery outcomes per channel.
type testProvider struct {
	failing    map[domain.Channel]bool
	deliveries []domain.Channel
}

func (p *testProvider) Deliver(ch domain.Channel, address, content string) error {
	if p.failing[ch] {
		return fmt.Errorf("%s gateway unavailable", ch)
	}
	p.deliveries = append(p.deliveries, ch)
	return nil
}

type engineFixture struct {
	engine   *Engine
	store    app.SharedStore
	provider *testProvider
}

func newEngineFixture(t *testing.T, sentiments map[string]domain.Sentiment) *engineFixture {
	t.Helper()
	store := memory.New()
	provider := &testProvider{failing: make(map[domain.Channel]bool)}

	channels := app.NewRegistry(
		NewChannelUnit(domain.Identity{ID: ChannelUnitID(domain.ChannelEmail), Status: domain.StatusOperational},
			domain.ChannelEmail, provider, testLogger()),
		NewChannelUnit(domain.Identity{ID: ChannelUnitID(domain.ChannelSMS), Status: domain.StatusOperational},
			domain.ChannelSMS, provider, testLogger()),
		NewChannelUnit(domain.Identity{ID: ChannelUnitID(domain.ChannelLinkedIn), Status: domain.StatusStub},
			domain.ChannelLinkedIn, provider, testLogger()),
	)
	sentiment := SentimentFunc(func(leadID string) (domain.Sentiment, error) {
		if s, ok := sentiments[leadID]; ok {
			return s, nil
		}
		return domain.SentimentUnknown, nil
	})

	engine := NewEngine(EngineConfig{
		Identity:   domain.Identity{ID: "outreach-manager", Status: domain.StatusOperational},
		EscalateTo: "chief",
		Defaults:   domain.ComplianceSettings{RespectDNC: true},
	}, channels, store, nil, sentiment, testLogger())

	return &engineFixture{engine: engine, store: store, provider: provider}
}

func (f *engineFixture) saveLead(t *testing.T, lead domain.Lead) {
	t.Helper()
	if err := f.engine.SaveLead(lead); err != nil {
		t.Fatalf("save lead: %v", err)
	}
}

func (f *engineFixture) saveSequence(t *testing.T, seq domain.Sequence) {
	t.Helper()
	if err := f.engine.SaveSequence(seq); err != nil {
		t.Fatalf("save sequence: %v", err)
	}
}

func basicLead() domain.Lead {
	return domain.Lead{ID: "lead-1", Name: "Ada Lovelace", Company: "Analytical", Email: "ada@example.com", Phone: "+123"}
}

func threeStepSequence() domain.Sequence {
	return domain.Sequence{
		ID: "seq-1",
		Steps: []domain.SequenceStep{
			{StepNumber: 1, Channel: domain.ChannelEmail, Template: "hi {{first_name}}"},
			{StepNumber: 2, Channel: domain.ChannelEmail, Template: "checking in"},
			{StepNumber: 3, Channel: domain.ChannelSMS, Template: "last try"},
		},
		Compliance: domain.ComplianceSettings{RespectDNC: true},
	}
}

func TestRunSequenceCompletesAllStepsWithoutDelays(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.saveLead(t, basicLead())
	f.saveSequence(t, threeStepSequence())

	report, run := f.engine.RunSequence("seq-1", "lead-1")
	if report.Status != domain.ReportCompleted {
		t.Fatalf("status = %s (%v), want COMPLETED", report.Status, report.Errors)
	}
	if run.Status != domain.SequenceCompleted {
		t.Errorf("run status = %s", run.Status)
	}
	if len(run.StepResults) != 3 {
		t.Errorf("step results = %d, want 3", len(run.StepResults))
	}
	if len(f.provider.deliveries) != 3 {
		t.Errorf("deliveries = %v, want 3", f.provider.deliveries)
	}

	history, err := f.store.Query("test", app.EntryFilter{Category: app.CategoryContactHistory, Tags: []string{"lead-1"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Errorf("contact history entries = %d, want 3", len(history))
	}
}

func TestRunSequenceTerminalRunNeverAdvances(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.saveLead(t, basicLead())
	f.saveSequence(t, threeStepSequence())

	if report, _ := f.engine.RunSequence("seq-1", "lead-1"); report.Status != domain.ReportCompleted {
		t.Fatalf("first run: %s", report.Status)
	}
	report, run := f.engine.RunSequence("seq-1", "lead-1")
	if report.Status != domain.ReportCompleted {
		t.Errorf("second run status = %s", report.Status)
	}
	if len(run.StepResults) != 3 || len(f.provider.deliveries) != 3 {
		t.Error("terminal run must not execute more steps")
	}
}

func TestRunSequenceHostileSentiment(t *testing.T) {
	f := newEngineFixture(t, map[string]domain.Sentiment{"lead-1": domain.SentimentHostile})
	f.saveLead(t, basicLead())
	f.saveSequence(t, threeStepSequence())

	report, run := f.engine.RunSequence("seq-1", "lead-1")
	if report.Status != domain.ReportBlocked {
		t.Fatalf("status = %s, want BLOCKED", report.Status)
	}
	if run.Status != domain.SequenceBlocked {
		t.Errorf("run status = %s", run.Status)
	}
	if len(f.provider.deliveries) != 0 {
		t.Errorf("hostile lead was contacted: %v", f.provider.deliveries)
	}
	if !strings.Contains(strings.Join(report.Errors, " "), "HOSTILE") {
		t.Errorf("reasons = %v", report.Errors)
	}

	// Re-running stays blocked and does not duplicate the review flag.
	f.engine.RunSequence("seq-1", "lead-1")
	flags, err := f.store.Query("test", app.EntryFilter{Category: app.CategoryFlags, Tags: []string{"lead-1"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(flags) != 1 {
		t.Fatalf("review flags = %d, want exactly 1", len(flags))
	}
	if flags[0].Key != "review-lead-1" {
		t.Errorf("flag key = %s", flags[0].Key)
	}
}

func TestRunSequenceComplianceBlockReportsAllReasons(t *testing.T) {
	f := newEngineFixture(t, nil)
	lead := basicLead()
	lead.DoNotContact = true
	lead.Unsubscribed = true
	f.saveLead(t, lead)
	f.saveSequence(t, threeStepSequence())

	report, _ := f.engine.RunSequence("seq-1", "lead-1")
	if report.Status != domain.ReportBlocked {
		t.Fatalf("status = %s, want BLOCKED", report.Status)
	}
	if len(report.Errors) != 2 {
		t.Errorf("reasons = %v, want both DNC and unsubscribe reported", report.Errors)
	}
	if len(f.provider.deliveries) != 0 {
		t.Error("blocked lead was contacted")
	}
}

func TestRunSequenceFallbackOnFailedDelivery(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.provider.failing[domain.ChannelEmail] = true
	f.saveLead(t, basicLead())
	f.saveSequence(t, domain.Sequence{
		ID: "seq-fb",
		Steps: []domain.SequenceStep{
			{StepNumber: 1, Channel: domain.ChannelEmail, FallbackChannel: domain.ChannelSMS, Template: "hello"},
		},
		Compliance: domain.ComplianceSettings{RespectDNC: true},
	})

	report, run := f.engine.RunSequence("seq-fb", "lead-1")
	if report.Status != domain.ReportCompleted {
		t.Fatalf("status = %s (%v), want COMPLETED via fallback", report.Status, report.Errors)
	}
	if len(run.StepResults) != 1 {
		t.Fatalf("step results = %d", len(run.StepResults))
	}
	result := run.StepResults[0]
	if !result.FallbackUsed || result.Channel != domain.ChannelSMS {
		t.Errorf("result = %+v, want fallback over sms", result)
	}
	// Both the failed primary attempt and the fallback are in contact history.
	history, _ := f.store.Query("test", app.EntryFilter{Category: app.CategoryContactHistory, Tags: []string{"lead-1"}})
	if len(history) != 2 {
		t.Errorf("contact history entries = %d, want 2", len(history))
	}
}

func TestRunSequenceFailedStepWithoutFallbackContinues(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.provider.failing[domain.ChannelEmail] = true
	f.saveLead(t, basicLead())
	f.saveSequence(t, domain.Sequence{
		ID: "seq-ff",
		Steps: []domain.SequenceStep{
			{StepNumber: 1, Channel: domain.ChannelEmail, Template: "will fail"},
			{StepNumber: 2, Channel: domain.ChannelSMS, Template: "still goes out"},
		},
		Compliance: domain.ComplianceSettings{RespectDNC: true},
	})

	report, run := f.engine.RunSequence("seq-ff", "lead-1")
	if report.Status != domain.ReportCompleted {
		t.Fatalf("status = %s, want COMPLETED (FAILED steps do not halt)", report.Status)
	}
	if run.StepResults[0].Status != domain.ReportFailed {
		t.Errorf("step 1 status = %s", run.StepResults[0].Status)
	}
	if run.StepResults[1].Status != domain.ReportCompleted {
		t.Errorf("step 2 status = %s", run.StepResults[1].Status)
	}
}

func TestRunSequenceBlockedChannelHaltsRun(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.saveLead(t, basicLead())
	f.saveSequence(t, domain.Sequence{
		ID: "seq-bl",
		Steps: []domain.SequenceStep{
			{StepNumber: 1, Channel: domain.ChannelLinkedIn, Template: "stub channel"},
			{StepNumber: 2, Channel: domain.ChannelEmail, Template: "never reached"},
		},
		Compliance: domain.ComplianceSettings{RespectDNC: true},
	})

	report, run := f.engine.RunSequence("seq-bl", "lead-1")
	if report.Status != domain.ReportBlocked {
		t.Fatalf("status = %s, want BLOCKED", report.Status)
	}
	if run.Status != domain.SequenceBlocked || len(run.StepResults) != 1 {
		t.Errorf("run = %+v", run)
	}
	if len(f.provider.deliveries) != 0 {
		t.Error("no delivery should happen after a channel-level block")
	}
}

func TestRunSequenceMissingAddressBlocks(t *testing.T) {
	f := newEngineFixture(t, nil)
	lead := basicLead()
	lead.Phone = ""
	f.saveLead(t, lead)
	f.saveSequence(t, domain.Sequence{
		ID:         "seq-addr",
		Steps:      []domain.SequenceStep{{StepNumber: 1, Channel: domain.ChannelSMS, Template: "x"}},
		Compliance: domain.ComplianceSettings{RespectDNC: true},
	})

	report, _ := f.engine.RunSequence("seq-addr", "lead-1")
	if report.Status != domain.ReportBlocked {
		t.Fatalf("status = %s, want BLOCKED", report.Status)
	}
	if !strings.Contains(strings.Join(report.Errors, " "), "no sms address") {
		t.Errorf("reasons = %v", report.Errors)
	}
}

func TestRunSequenceDelayedStepPendsAndResumes(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.saveLead(t, basicLead())
	f.saveSequence(t, domain.Sequence{
		ID: "seq-delay",
		Steps: []domain.SequenceStep{
			{StepNumber: 1, Channel: domain.ChannelEmail, Template: "now"},
			{StepNumber: 2, Channel: domain.ChannelEmail, DelayHours: 48, Template: "later"},
		},
		Compliance: domain.ComplianceSettings{RespectDNC: true},
	})

	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	now := base
	f.engine.SetClock(func() time.Time { return now })

	report, run := f.engine.RunSequence("seq-delay", "lead-1")
	if report.Status != domain.ReportPending {
		t.Fatalf("status = %s, want PENDING", report.Status)
	}
	if run.CurrentStep != 2 || len(run.StepResults) != 1 {
		t.Errorf("run = %+v", run)
	}
	if want := base.Add(48 * time.Hour); !run.NextStepAt.Equal(want) {
		t.Errorf("next step at %v, want %v", run.NextStepAt, want)
	}

	// Not yet due: ResumeDue leaves it pending.
	now = base.Add(24 * time.Hour)
	if n, err := f.engine.ResumeDue(now); err != nil || n != 0 {
		t.Errorf("ResumeDue(early) = (%d, %v), want (0, nil)", n, err)
	}

	// Due: the run re-enters and completes.
	now = base.Add(49 * time.Hour)
	if n, err := f.engine.ResumeDue(now); err != nil || n != 1 {
		t.Fatalf("ResumeDue(due) = (%d, %v), want (1, nil)", n, err)
	}
	resumed, err := f.engine.LoadRun("seq-delay", "lead-1")
	if err != nil {
		t.Fatal(err)
	}
	if resumed.Status != domain.SequenceCompleted || len(resumed.StepResults) != 2 {
		t.Errorf("resumed run = %+v", resumed)
	}
}

func TestExecuteRoutesSequenceCommands(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.saveLead(t, basicLead())
	f.saveSequence(t, threeStepSequence())

	msg := app.NewMessage(domain.MessageCommand, "chief", "outreach-manager", map[string]any{
		"sequence_id": "seq-1",
		"lead_id":     "lead-1",
	})
	report := f.engine.Execute(msg)
	if report.Status != domain.ReportCompleted {
		t.Errorf("status = %s, want COMPLETED", report.Status)
	}
	if report.TaskID != msg.ID {
		t.Errorf("task id = %s, want message id", report.TaskID)
	}
}

func TestRunSequenceUnknownSequenceFails(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.saveLead(t, basicLead())

	report, run := f.engine.RunSequence("ghost", "lead-1")
	if report.Status != domain.ReportFailed || run != nil {
		t.Errorf("report = %+v, run = %v", report, run)
	}
}

func TestWriteRunInsightOnTerminal(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.saveLead(t, basicLead())
	f.saveSequence(t, threeStepSequence())
	f.engine.RunSequence("seq-1", "lead-1")

	entry, err := f.store.Read(app.CategoryInsights, "run-seq-1:lead-1", "test")
	if err != nil || entry == nil {
		t.Fatal("terminal run left no insight entry")
	}
	var insight struct {
		Kind   string `json:"kind"`
		Status string `json:"status"`
	}
	if err := entry.Decode(&insight); err != nil {
		t.Fatal(err)
	}
	if insight.Kind != "sequence_outcome" || insight.Status != string(domain.SequenceCompleted) {
		t.Errorf("insight = %+v", insight)
	}
}

func TestSaveSequenceRefusedWhileRunInProgress(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.saveLead(t, basicLead())
	seq := threeStepSequence()
	seq.Steps[1].DelayHours = 48
	f.saveSequence(t, seq)

	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	f.engine.SetClock(func() time.Time { return base })
	if report, _ := f.engine.RunSequence("seq-1", "lead-1"); report.Status != domain.ReportPending {
		t.Fatalf("status = %s, want PENDING", report.Status)
	}

	shorter := domain.Sequence{
		ID:         "seq-1",
		Steps:      seq.Steps[:1],
		Compliance: seq.Compliance,
	}
	if err := f.engine.SaveSequence(shorter); err == nil {
		t.Fatal("re-saving a sequence with a run in progress should be refused")
	}

	// Once the run reaches a terminal state, the document may be replaced.
	f.engine.SetClock(func() time.Time { return base.Add(49 * time.Hour) })
	if _, err := f.engine.ResumeDue(base.Add(49 * time.Hour)); err != nil {
		t.Fatal(err)
	}
	run, err := f.engine.LoadRun("seq-1", "lead-1")
	if err != nil || run == nil || run.Status != domain.SequenceCompleted {
		t.Fatalf("run = %+v, err = %v", run, err)
	}
	if err := f.engine.SaveSequence(shorter); err != nil {
		t.Errorf("save after terminal run: %v", err)
	}
}

func TestStepCountChangeMidRunFailsRunWithoutPanic(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.saveLead(t, basicLead())
	seq := threeStepSequence()
	seq.Steps[1].DelayHours = 48
	f.saveSequence(t, seq)

	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	f.engine.SetClock(func() time.Time { return base })
	if report, _ := f.engine.RunSequence("seq-1", "lead-1"); report.Status != domain.ReportPending {
		t.Fatalf("status = %s, want PENDING", report.Status)
	}

	// A direct store rewrite bypasses SaveSequence's active-run check.
	shorter := domain.Sequence{ID: "seq-1", Steps: seq.Steps[:1], Compliance: seq.Compliance}
	if err := f.store.Write(app.CategorySequences, "seq-1", shorter, "rogue", app.WriteOptions{}); err != nil {
		t.Fatal(err)
	}

	f.engine.SetClock(func() time.Time { return base.Add(49 * time.Hour) })
	report, run := f.engine.RunSequence("seq-1", "lead-1")
	if report.Status != domain.ReportFailed {
		t.Fatalf("status = %s (%v), want FAILED", report.Status, report.Errors)
	}
	if run.Status != domain.SequenceFailed {
		t.Errorf("run status = %s", run.Status)
	}
	if !strings.Contains(strings.Join(report.Errors, " "), "changed after the run started") {
		t.Errorf("errors = %v", report.Errors)
	}
	// The failure is durable: later re-entries see a terminal run.
	rerun, err := f.engine.LoadRun("seq-1", "lead-1")
	if err != nil || rerun == nil || !rerun.Status.Terminal() {
		t.Errorf("rerun = %+v, err = %v", rerun, err)
	}
}
