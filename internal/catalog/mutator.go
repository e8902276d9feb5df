package catalog

import (
	"fmt"
	"sync"

	"github.com/jaakkos/swarmwork/internal/app"
	"github.com/jaakkos/swarmwork/internal/domain"
)

// ParamMutator applies directives that tune a supervisor's free-form
// parameter set. Values are whatever the directive carries; the audit trail
// around the apply records before/after snapshots.
type ParamMutator struct {
	mu     sync.Mutex
	owned  []string
	params map[string]any
}

// NewParamMutator returns a mutator owning the given directive types.
func NewParamMutator(ownedTypes ...string) *ParamMutator {
	return &ParamMutator{owned: ownedTypes, params: make(map[string]any)}
}

// OwnedTypes lists the directive types this mutator applies.
func (m *ParamMutator) OwnedTypes() []string {
	return append([]string(nil), m.owned...)
}

// Apply merges the directive's parameters into the current set.
func (m *ParamMutator) Apply(d domain.MutationDirective) app.MutationResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	owned := false
	for _, t := range m.owned {
		if t == d.Type {
			owned = true
			break
		}
	}
	if !owned {
		return app.MutationResult{Before: m.snapshot(), Err: fmt.Sprintf("unowned directive type %q", d.Type)}
	}
	if len(d.Parameters) == 0 {
		return app.MutationResult{Before: m.snapshot(), Err: "directive has no parameters"}
	}

	before := m.snapshot()
	for k, v := range d.Parameters {
		m.params[k] = v
	}
	return app.MutationResult{Applied: true, Before: before, After: m.snapshot()}
}

// Params returns a copy of the current parameter set.
func (m *ParamMutator) Params() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *ParamMutator) snapshot() map[string]any {
	out := make(map[string]any, len(m.params))
	for k, v := range m.params {
		out[k] = v
	}
	return out
}
