package platform

import (
	"errors"
	"fmt"
)

// ErrUnknownPlatform is matched by every UnknownPlatformError
var ErrUnknownPlatform = errors.New("unknown platform")

// UnknownPlatformError is returned when an ID is not registered
type UnknownPlatformError struct {
	ID ID
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("unknown platform: %q", string(e.ID))
}

// Is lets errors.Is(err, ErrUnknownPlatform) match
func (e *UnknownPlatformError) Is(target error) bool {
	return target == ErrUnknownPlatform
}

// Registry is a read-only platform catalog. It is populated once by
// NewRegistry and never mutated, so it is safe for concurrent use.
type Registry struct {
	profiles map[ID]Profile
	order    []ID
}

// NewRegistry validates and registers profiles in the given order
func NewRegistry(profiles ...Profile) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("platform registry requires at least one profile")
	}

	r := &Registry{
		profiles: make(map[ID]Profile, len(profiles)),
		order:    make([]ID, 0, len(profiles)),
	}
	for _, p := range profiles {
		n := p.normalize()
		if err := n.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.profiles[n.ID]; dup {
			return nil, fmt.Errorf("duplicate platform id %q", n.ID)
		}
		r.profiles[n.ID] = n
		r.order = append(r.order, n.ID)
	}
	return r, nil
}

// Lookup returns the profile registered under id
func (r *Registry) Lookup(id ID) (Profile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return Profile{}, &UnknownPlatformError{ID: id}
	}
	return p.clone(), nil
}

// All returns every profile in registration order
func (r *Registry) All() []Profile {
	out := make([]Profile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.profiles[id].clone())
	}
	return out
}

// IDs returns the registered IDs in registration order
func (r *Registry) IDs() []ID {
	out := make([]ID, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered platforms
func (r *Registry) Len() int {
	return len(r.order)
}
