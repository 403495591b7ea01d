package body

import (
	"strings"

	"github.com/star/skywatch/internal/catalog"
	"github.com/star/skywatch/internal/skyerr"
)

// SolarSystem returns the default body set: planets, then the Moon and the Sun.
func SolarSystem() []Body {
	out := make([]Body, 0, len(Planets)+2)
	for _, id := range Planets {
		out = append(out, Planet{ID: id})
	}
	return append(out, Moon{}, Sun{})
}

// Registry resolves body names. Lookups are case-insensitive.
// A Registry is read-only after construction.
type Registry struct {
	bodies []Body
	byName map[string]Body
}

// NewRegistry builds a registry. On duplicate names the first body wins.
func NewRegistry(bodies ...Body) *Registry {
	r := &Registry{byName: make(map[string]Body, len(bodies))}
	for _, b := range bodies {
		key := strings.ToLower(b.Name())
		if _, dup := r.byName[key]; dup {
			continue
		}
		r.byName[key] = b
		r.bodies = append(r.bodies, b)
	}
	return r
}

// DefaultRegistry holds the solar system plus the given catalog stars.
func DefaultRegistry(stars []catalog.Star) *Registry {
	bodies := SolarSystem()
	for _, s := range stars {
		bodies = append(bodies, Star{Entry: s})
	}
	return NewRegistry(bodies...)
}

// Lookup returns the body with the given name or an ErrInvalidInput error.
func (r *Registry) Lookup(name string) (Body, error) {
	b, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, skyerr.Invalid("unknown body %q", name)
	}
	return b, nil
}

// Resolve looks up every name, failing on the first unknown one.
func (r *Registry) Resolve(names []string) ([]Body, error) {
	out := make([]Body, 0, len(names))
	for _, n := range names {
		b, err := r.Lookup(n)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// All returns every registered body in registration order.
func (r *Registry) All() []Body {
	return append([]Body(nil), r.bodies...)
}

// Len returns the number of registered bodies.
func (r *Registry) Len() int { return len(r.bodies) }
