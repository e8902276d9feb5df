package domain

import (
	"testing"
	"time"
)

func TestStatusExecutable(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusUnimplemented, false},
		{StatusStub, false},
		{StatusOperational, true},
		{StatusVerified, true},
		{Status("BROKEN"), false},
		{Status(""), false},
	}
	for _, tt := range tests {
		if got := tt.status.Executable(); got != tt.want {
			t.Errorf("%q.Executable() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestReportConstructors(t *testing.T) {
	completed := CompletedReport("t1", map[string]any{"out": 1})
	if completed.Status != ReportCompleted || completed.TaskID != "t1" || completed.Data["out"] != 1 {
		t.Errorf("completed = %+v", completed)
	}

	failed := FailedReport("t2", "boom", "again")
	if failed.Status != ReportFailed || len(failed.Errors) != 2 {
		t.Errorf("failed = %+v", failed)
	}

	blocked := BlockedReport("t3", "unit not executable")
	if blocked.Status != ReportBlocked || len(blocked.Errors) != 1 {
		t.Errorf("blocked = %+v", blocked)
	}
}

func TestSequenceStateTerminal(t *testing.T) {
	tests := []struct {
		state SequenceState
		want  bool
	}{
		{SequenceInProgress, false},
		{SequenceCompleted, true},
		{SequenceBlocked, true},
		{SequenceFailed, true},
	}
	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestRunKey(t *testing.T) {
	if got := RunKey("seq-1", "lead-9"); got != "seq-1:lead-9" {
		t.Errorf("RunKey = %q", got)
	}
}

func TestMutationDirectiveZeroProcessed(t *testing.T) {
	d := MutationDirective{ID: "d1", Type: "adjust", CreatedAt: time.Now()}
	if d.Processed || !d.ProcessedAt.IsZero() {
		t.Errorf("fresh directive should be unprocessed: %+v", d)
	}
}
