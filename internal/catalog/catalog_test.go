package catalog

import (
	"io"
	"log"
	"testing"

	"github.com/jaakkos/swarmwork/internal/domain"
	"github.com/jaakkos/swarmwork/internal/repository/memory"
)

type nopTransport struct{}

func (nopTransport) Send(domain.Message) error { return nil }

func buildTestSystem(overrides map[string]domain.Status) *System {
	return Build(Deps{
		Store:     memory.New(),
		Transport: nopTransport{},
		Overrides: overrides,
		Logger:    log.New(io.Discard, "", 0),
	})
}

func TestBuildCatalog(t *testing.T) {
	sys := buildTestSystem(nil)

	wantStatus := map[string]domain.Status{
		ChiefID:            domain.StatusVerified,
		ContentManagerID:   domain.StatusOperational,
		OutreachManagerID:  domain.StatusOperational,
		HookWriterID:       domain.StatusVerified,
		ThreadWriterID:     domain.StatusOperational,
		ReplyDrafterID:     domain.StatusOperational,
		CaseStudyWriterID:  domain.StatusStub,
		"channel-email":    domain.StatusOperational,
		"channel-sms":      domain.StatusOperational,
		"channel-linkedin": domain.StatusStub,
	}
	for id, want := range wantStatus {
		unit := sys.All.Resolve(id)
		if unit == nil {
			t.Errorf("unit %s missing from registry", id)
			continue
		}
		if unit.Status() != want {
			t.Errorf("unit %s status = %s, want %s", id, unit.Status(), want)
		}
	}
	if got := len(sys.All.ListIDs()); got != len(wantStatus) {
		t.Errorf("registry has %d units, want %d", got, len(wantStatus))
	}
	if sys.All.Resolve("unknown-unit") != nil {
		t.Error("unknown id should resolve to nil")
	}

	supervisors := sys.All.ListIDs(domain.RoleSupervisor)
	if len(supervisors) != 3 {
		t.Errorf("supervisors = %v", supervisors)
	}
}

func TestBuildAppliesOverrides(t *testing.T) {
	sys := buildTestSystem(map[string]domain.Status{
		CaseStudyWriterID:  domain.StatusOperational,
		"channel-linkedin": domain.StatusOperational,
	})
	if st := sys.All.Resolve(CaseStudyWriterID).Status(); st != domain.StatusOperational {
		t.Errorf("case-study-writer status = %s", st)
	}
	if st := sys.All.Resolve("channel-linkedin").Status(); st != domain.StatusOperational {
		t.Errorf("channel-linkedin status = %s", st)
	}
	// Units without an override keep the catalog default.
	if st := sys.All.Resolve(HookWriterID).Status(); st != domain.StatusVerified {
		t.Errorf("hook-writer status = %s", st)
	}
}

func TestCycleTargets(t *testing.T) {
	sys := buildTestSystem(nil)
	targets := sys.CycleTargets()
	if len(targets) != 3 {
		t.Fatalf("targets = %d", len(targets))
	}
	want := []string{ChiefID, ContentManagerID, OutreachManagerID}
	for i, target := range targets {
		if target.ID() != want[i] {
			t.Errorf("target[%d] = %s, want %s", i, target.ID(), want[i])
		}
	}
}

func TestInitializeAllIdempotent(t *testing.T) {
	sys := buildTestSystem(nil)
	if err := sys.All.InitializeAll(); err != nil {
		t.Fatalf("InitializeAll: %v", err)
	}
	if err := sys.All.InitializeAll(); err != nil {
		t.Fatalf("second InitializeAll: %v", err)
	}
}

func TestParamMutatorApply(t *testing.T) {
	m := NewParamMutator("adjust_content_params")

	result := m.Apply(domain.MutationDirective{
		ID:         "d1",
		Type:       "adjust_content_params",
		Parameters: map[string]any{"tone": "casual", "max_length": 280},
	})
	if !result.Applied || result.Err != "" {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Before) != 0 {
		t.Errorf("before = %v, want empty", result.Before)
	}
	if result.After["tone"] != "casual" {
		t.Errorf("after = %v", result.After)
	}
	if got := m.Params(); got["max_length"] != 280 {
		t.Errorf("params = %v", got)
	}
}

func TestParamMutatorMergesOverExisting(t *testing.T) {
	m := NewParamMutator("adjust_content_params")
	m.Apply(domain.MutationDirective{ID: "d1", Type: "adjust_content_params", Parameters: map[string]any{"tone": "casual"}})
	result := m.Apply(domain.MutationDirective{ID: "d2", Type: "adjust_content_params", Parameters: map[string]any{"tone": "formal"}})

	if result.Before["tone"] != "casual" || result.After["tone"] != "formal" {
		t.Errorf("result = %+v", result)
	}
}

func TestParamMutatorRejections(t *testing.T) {
	m := NewParamMutator("adjust_content_params")
	tests := []struct {
		name      string
		directive domain.MutationDirective
	}{
		{"unowned type", domain.MutationDirective{ID: "d1", Type: "adjust_sequences", Parameters: map[string]any{"x": 1}}},
		{"no parameters", domain.MutationDirective{ID: "d2", Type: "adjust_content_params"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := m.Apply(tt.directive)
			if result.Applied || result.Err == "" {
				t.Errorf("result = %+v, want rejection", result)
			}
		})
	}
	if len(m.Params()) != 0 {
		t.Errorf("params mutated by rejected directives: %v", m.Params())
	}
}
