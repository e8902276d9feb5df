package sequence

import (
	"fmt"

	"github.com/jaakkos/swarmwork/internal/app"
	"github.com/jaakkos/swarmwork/internal/domain"
)

// OwnedTypes lists the directive types the engine applies to itself.
func (e *Engine) OwnedTypes() []string {
	return []string{DirectiveAdjustFrequency, DirectiveSetQuietHours}
}

// Apply adjusts the engine's default compliance settings from a directive.
// Pure parameter adjustment; durability and the processed flag are handled by
// the supervisor pipeline around it.
func (e *Engine) Apply(d domain.MutationDirective) app.MutationResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := settingsSnapshot(e.defaults)
	switch d.Type {
	case DirectiveAdjustFrequency:
		if v, ok := intParam(d.Parameters, "max_contacts_per_day"); ok {
			e.defaults.MaxContactsPerDay = v
		}
		if v, ok := intParam(d.Parameters, "max_contacts_per_week"); ok {
			e.defaults.MaxContactsPerWeek = v
		}
	case DirectiveSetQuietHours:
		start, _ := d.Parameters["quiet_hours_start"].(string)
		end, _ := d.Parameters["quiet_hours_end"].(string)
		if start != "" {
			if _, err := parseClock(start); err != nil {
				return app.MutationResult{Before: before, Err: fmt.Sprintf("invalid quiet_hours_start: %v", err)}
			}
			e.defaults.QuietHoursStart = start
		}
		if end != "" {
			if _, err := parseClock(end); err != nil {
				return app.MutationResult{Before: before, Err: fmt.Sprintf("invalid quiet_hours_end: %v", err)}
			}
			e.defaults.QuietHoursEnd = end
		}
	default:
		return app.MutationResult{Before: before, Err: fmt.Sprintf("unowned directive type %q", d.Type)}
	}

	return app.MutationResult{Applied: true, Before: before, After: settingsSnapshot(e.defaults)}
}

// Defaults returns the engine's current default compliance settings.
func (e *Engine) Defaults() domain.ComplianceSettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.defaults
}

func settingsSnapshot(s domain.ComplianceSettings) map[string]any {
	return map[string]any{
		"respect_dnc":           s.RespectDNC,
		"max_contacts_per_day":  s.MaxContactsPerDay,
		"max_contacts_per_week": s.MaxContactsPerWeek,
		"quiet_hours_start":     s.QuietHoursStart,
		"quiet_hours_end":       s.QuietHoursEnd,
	}
}

// intParam extracts an integer parameter that may arrive as JSON float64.
func intParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
