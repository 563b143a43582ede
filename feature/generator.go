package feature

import (
	"context"

	"github.com/cmunell/featurespace/data"
	"github.com/cmunell/featurespace/sparse"
)

// Generator is a named, composable unit mapping an example to a fixed-size
// sparse contribution over its local vocabulary.
type Generator interface {
	Params

	// Name is the unique reference name within a composition.
	Name() string
	// Kind is the registry kind the generator was created from.
	Kind() string

	// Fit builds the vocabulary and auxiliary statistics from init.
	// It fails with a *FitError if init is empty or a required resource is missing.
	Fit(ctx context.Context, init *data.Dataset) error
	// Fitted reports whether the vocabulary is available.
	Fitted() bool

	// Size is the vocabulary size; 0 before fit.
	Size() int
	// Term names local index i; ok=false is a legal "no name".
	Term(i int) (term string, ok bool)
	// TermIndex returns the local index of term.
	TermIndex(term string) (int, bool)

	// Compute adds the contribution of ex over [offset, offset+Size()) to dst.
	// It never fails and never mutates fitted state.
	Compute(ex *data.Example, offset int, dst *sparse.Builder)

	// Ignored generators get no global range but stay resolvable by reference.
	Ignored() bool

	// MakeBinary returns a clone bound to the boolean label space defined by
	// ind. The clone shares the fitted vocabulary.
	MakeBinary(ind data.LabelIndicator) Generator

	// State returns the serializable configuration and fitted vocabulary.
	State() *State
	// Restore loads a state produced by State. A nil state or one without a
	// vocabulary leaves the generator unfit.
	Restore(s *State) error
}

// Resolver looks up generators by reference name.
type Resolver interface {
	Generator(name string) (Generator, bool)
}

// Binder is implemented by generators that compose other generators by reference.
// Bind is called when the generator is added to a composition.
type Binder interface {
	Bind(r Resolver) error
}

// Restrictor is implemented by generators whose fitted vocabulary can be pruned
// before the generator receives a global range.
type Restrictor interface {
	// Restrict removes every local term for which drop returns true and
	// returns the remaining size.
	Restrict(drop func(i int, term string) bool) int
}

// CanonicalNamer is implemented by generators whose terms are views of
// features owned by another generator. CanonicalTerm identifies the
// underlying feature so equal features can be deduplicated.
type CanonicalNamer interface {
	CanonicalTerm(i int) string
}

// Concurrent is implemented by generators that fit in parallel.
type Concurrent interface {
	SetWorkers(n int)
}

// CanonicalTerm returns the canonical identity of g's local term i.
func CanonicalTerm(g Generator, i int) string {
	if cn, ok := g.(CanonicalNamer); ok {
		return cn.CanonicalTerm(i)
	}
	return DisplayName(g, i)
}

// DisplayName returns "generatorRef_term", or "generatorRef_<i>" when the term has no name.
func DisplayName(g Generator, i int) string {
	if t, ok := g.Term(i); ok {
		return g.Name() + "_" + t
	}
	return g.Name() + "_<" + itoa(i) + ">"
}

// State is the persisted form of a generator.
type State struct {
	Kind   string               `json:"kind"`
	Name   string               `json:"name"`
	Params map[string]string    `json:"params,omitempty"`
	Terms  []string             `json:"terms"`
	Stats  map[string][]float64 `json:"stats,omitempty"`
	// Extra holds generator-specific fitted data.
	Extra map[string][]int `json:"extra,omitempty"`
	// Binary names the label indicator of a binarized generator.
	Binary string `json:"binary,omitempty"`
}

// Fitted reports whether the state carries a vocabulary.
func (s *State) Fitted() bool { return s != nil && s.Terms != nil }
