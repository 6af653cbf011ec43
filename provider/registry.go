package provider

import (
	"sort"

	"github.com/pkg/errors"
)

// Registry maps provider identifiers to capability objects. It is built once
// at startup and immutable thereafter; provider objects may hold their own
// mutable state but the identity mapping does not change at runtime.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry from the given providers. Duplicate
// identifiers are a configuration error.
func NewRegistry(providers ...Provider) (*Registry, error) {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		if p == nil || p.ID() == "" {
			return nil, errors.New("provider registry: provider without identifier")
		}
		if _, exists := m[p.ID()]; exists {
			return nil, errors.Errorf("provider registry: duplicate provider %q", p.ID())
		}
		m[p.ID()] = p
	}
	return &Registry{providers: m}, nil
}

// Resolve returns the provider registered under id.
func (r *Registry) Resolve(id string) (Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, errors.Wrap(ErrUnknownProvider, id)
	}
	return p, nil
}

// IDs returns the registered identifiers, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
