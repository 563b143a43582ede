package grammar

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cmunell/featurespace/feature"
)

// Rule derives child generators from a parent feature.
type Rule interface {
	feature.Params

	Name() string
	Kind() string
	// Apply returns the children for env. A rule that does not apply returns
	// no children and no error. Children are unfitted and unbound.
	Apply(env Env) ([]feature.Generator, error)
}

// Spec is the persisted and configured form of a rule.
type Spec struct {
	Kind   string            `json:"kind" yaml:"kind"`
	Name   string            `json:"name" yaml:"name"`
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// SpecOf captures the kind, name and parameter values of r.
func SpecOf(r Rule) Spec {
	s := Spec{Kind: r.Kind(), Name: r.Name(), Params: make(map[string]string)}
	for _, name := range r.ParameterNames() {
		if v, err := r.ParameterValue(name); err == nil {
			s.Params[name] = v
		}
	}
	return s
}

// Factory creates a rule with default parameters.
type Factory func(name string) Rule

// Registry maps rule kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding Affix and Template. Template
// rules instantiate generators through gens (the default generator registry if nil).
func DefaultRegistry(gens *feature.Registry) *Registry {
	if gens == nil {
		gens = feature.DefaultRegistry()
	}
	r := NewRegistry()
	r.Register(KindAffix, func(name string) Rule { return NewAffix(name) })
	r.Register(KindTemplate, func(name string) Rule { return NewTemplate(name, gens) })
	return r
}

// Register adds or replaces the factory for kind.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// New creates a rule of kind.
func (r *Registry) New(kind, name string) (Rule, error) {
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, feature.NewConfigurationError(name, "kind", kind, feature.ErrUnknownKind)
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

// FromSpec creates a rule and applies the spec's parameters.
func (r *Registry) FromSpec(s Spec) (Rule, error) {
	rule, err := r.New(s.Kind, s.Name)
	if err != nil {
		return nil, err
	}
	if err := applyParams(rule, s.Params); err != nil {
		return nil, err
	}
	return rule, nil
}

// applyParams sets values in sorted name order so rules with dynamic
// parameter names are configured deterministically.
func applyParams(r Rule, values map[string]string) error {
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if err := r.SetParameterValue(k, values[k]); err != nil {
			return fmt.Errorf("rule %q: %w", r.Name(), err)
		}
	}
	return nil
}
