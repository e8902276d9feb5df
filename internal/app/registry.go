package app

import (
	"github.com/jaakkos/swarmwork/internal/domain"
)

// Registry maps stable unit identifiers to singleton capability units.
// The catalog is closed: units are appended once at startup and the arena
// plus its id→index map are treated as immutable afterwards. Unknown ids
// resolve to an explicit nil, never a panic.
type Registry struct {
	units []CapabilityUnit
	index map[string]int
}

// NewRegistry builds a registry from the given units. Duplicate ids keep the
// first registration; later duplicates are ignored.
func NewRegistry(units ...CapabilityUnit) *Registry {
	r := &Registry{index: make(map[string]int, len(units))}
	for _, u := range units {
		id := u.Identity().ID
		if _, exists := r.index[id]; exists {
			continue
		}
		r.index[id] = len(r.units)
		r.units = append(r.units, u)
	}
	return r
}

// Resolve returns the unit for id, or nil when the id is unknown.
func (r *Registry) Resolve(id string) CapabilityUnit {
	i, ok := r.index[id]
	if !ok {
		return nil
	}
	return r.units[i]
}

// IsValidID reports whether id names a unit in the catalog.
func (r *Registry) IsValidID(id string) bool {
	_, ok := r.index[id]
	return ok
}

// ListIDs returns unit ids in registration order, optionally filtered by role.
func (r *Registry) ListIDs(roles ...domain.Role) []string {
	ids := make([]string, 0, len(r.units))
	for _, u := range r.units {
		if len(roles) > 0 {
			match := false
			for _, role := range roles {
				if u.Identity().Role == role {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		ids = append(ids, u.Identity().ID)
	}
	return ids
}

// Units returns all units in registration order. The returned slice must not
// be mutated.
func (r *Registry) Units() []CapabilityUnit {
	return r.units
}

// InitializeAll runs Initialize on every unit, returning the first error.
func (r *Registry) InitializeAll() error {
	for _, u := range r.units {
		if err := u.Initialize(); err != nil {
			return err
		}
	}
	return nil
}
