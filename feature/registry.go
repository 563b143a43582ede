package feature

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates an unfitted generator with the given reference name.
type Factory func(name string) Generator

// Registry maps kind names to generator factories. It replaces reflective
// instantiation: every kind nameable in configuration is registered explicitly.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding the built-in kinds.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(KindNGram, func(name string) Generator { return NewNGram(name) })
	r.Register(KindFiltered, func(name string) Generator { return NewFiltered(name, "") })
	return r
}

// Register adds or replaces the factory for kind.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// New creates a generator of kind.
func (r *Registry) New(kind, name string) (Generator, error) {
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, NewConfigurationError(name, "kind", kind, ErrUnknownKind)
	}
	return f(name), nil
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// FromState creates a generator from a persisted state and restores it.
func (r *Registry) FromState(s *State) (Generator, error) {
	if s == nil {
		return nil, fmt.Errorf("nil generator state")
	}
	g, err := r.New(s.Kind, s.Name)
	if err != nil {
		return nil, err
	}
	if err := g.Restore(s); err != nil {
		return nil, err
	}
	return g, nil
}
