package data

import (
	"maps"
	"sync/atomic"
)

// DefaultField is the token field used when a generator does not name one.
const DefaultField = "tokens"

// Example is a single instance. ID is stable for the lifetime of a dataset;
// per-example caches key on Key, which also identifies the dataset.
type Example struct {
	ID int
	// source identifies the dataset the example was first added to (0 = none).
	source uint64
	// Label is the gold label; empty if unlabeled.
	Label Label
	// Weights optionally assigns weights to several labels.
	Weights map[Label]float64
	// Fields holds named token sequences (e.g. "tokens", "pos").
	Fields map[string][]string
}

// NewExample creates an example with the default token field.
func NewExample(id int, label Label, tokens ...string) *Example {
	return &Example{
		ID:     id,
		Label:  label,
		Fields: map[string][]string{DefaultField: tokens},
	}
}

var nextSource atomic.Uint64

// Key identifies an example across datasets.
type Key struct {
	Source uint64
	ID     int
}

// Cacheable reports whether the key belongs to a dataset. Examples that were
// never added to one have no stable identity and must not be cached.
func (k Key) Cacheable() bool { return k.Source != 0 }

// Key returns the cache identity of e.
func (e *Example) Key() Key {
	if e == nil {
		return Key{}
	}
	return Key{Source: e.source, ID: e.ID}
}

// Field returns the tokens of a named field (nil if absent).
func (e *Example) Field(name string) []string {
	if e == nil || e.Fields == nil {
		return nil
	}
	return e.Fields[name]
}

// Labeled reports whether the example has a gold label.
func (e *Example) Labeled() bool { return e.Label != "" }

// WithLabel returns a shallow copy with a different label and label weights
// mapped through ind. Fields are shared.
func (e *Example) WithLabel(ind LabelIndicator) *Example {
	out := &Example{ID: e.ID, source: e.source, Label: ind.Apply(e.Label), Fields: e.Fields}
	if len(e.Weights) > 0 {
		out.Weights = make(map[Label]float64, 2)
		for l, w := range e.Weights {
			out.Weights[ind.Apply(l)] += w
		}
	}
	return out
}

// Clone returns a deep copy of the label weights and a shallow copy of fields.
func (e *Example) Clone() *Example {
	return &Example{ID: e.ID, source: e.source, Label: e.Label, Weights: maps.Clone(e.Weights), Fields: maps.Clone(e.Fields)}
}
