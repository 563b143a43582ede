package data

import (
	"context"
	"fmt"
	"iter"
	"math/rand"

	"github.com/cmunell/featurespace/internal/parallel"
)

// Dataset is an ordered, id-addressable collection of examples.
// A Dataset is read-only after construction and safe for concurrent reads.
type Dataset struct {
	examples []*Example
	byID     map[int]int
	labels   *LabelSpace
}

// NewDataset creates a dataset. Example ids must be unique.
// If labels is nil, the label space is collected from the examples.
// Examples not yet part of a dataset are bound to this one; examples taken
// from another dataset keep their identity, so subsets share cached vectors.
func NewDataset(labels *LabelSpace, examples ...*Example) (*Dataset, error) {
	ds := &Dataset{
		examples: make([]*Example, 0, len(examples)),
		byID:     make(map[int]int, len(examples)),
		labels:   labels,
	}
	collect := labels == nil
	if collect {
		ds.labels = NewLabelSpace()
	}
	for _, e := range examples {
		if e == nil {
			continue
		}
		if _, dup := ds.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate example id %d", e.ID)
		}
		if collect {
			ds.labels.add(e.Label)
		}
		ds.byID[e.ID] = len(ds.examples)
		ds.examples = append(ds.examples, e)
	}
	source := nextSource.Add(1)
	for _, e := range ds.examples {
		if e.source == 0 {
			e.source = source
		}
	}
	return ds, nil
}

// Len returns the number of examples. A nil dataset is empty.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.examples)
}

// At returns the i-th example.
func (d *Dataset) At(i int) *Example { return d.examples[i] }

// Get returns the example with the given id.
func (d *Dataset) Get(id int) (*Example, bool) {
	if d == nil {
		return nil, false
	}
	i, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	return d.examples[i], true
}

// Examples returns the examples in order. The slice must not be modified.
func (d *Dataset) Examples() []*Example {
	if d == nil {
		return nil
	}
	return d.examples
}

// All iterates over the examples in order.
func (d *Dataset) All() iter.Seq2[int, *Example] {
	return func(yield func(int, *Example) bool) {
		for i, e := range d.Examples() {
			if !yield(i, e) {
				return
			}
		}
	}
}

// Labels returns the label space.
func (d *Dataset) Labels() *LabelSpace { return d.labels }

// Map applies fn to every example with at most maxWorkers goroutines and
// returns the results in dataset order.
func Map[R any](ctx context.Context, d *Dataset, maxWorkers int, fn func(ctx context.Context, e *Example) (R, error), opts ...parallel.Option) ([]R, error) {
	return parallel.Map(ctx, d.Examples(), maxWorkers, fn, opts...)
}

// MakeBinary returns a dataset whose labels are mapped through ind onto the boolean space.
// Example ids and fields are preserved.
func (d *Dataset) MakeBinary(ind LabelIndicator) *Dataset {
	out := &Dataset{
		examples: make([]*Example, len(d.examples)),
		byID:     d.byID,
		labels:   BooleanSpace(),
	}
	for i, e := range d.examples {
		out.examples[i] = e.WithLabel(ind)
	}
	return out
}

// Split shuffles deterministically and splits into a (fraction) and b (rest).
func (d *Dataset) Split(fraction float64, seed int64) (*Dataset, *Dataset) {
	perm := rand.New(rand.NewSource(seed)).Perm(d.Len()) // nolint gosec
	n := int(float64(d.Len()) * fraction)
	pick := func(idx []int) *Dataset {
		ex := make([]*Example, len(idx))
		for k, i := range idx {
			ex[k] = d.examples[i]
		}
		ds, _ := NewDataset(d.labels, ex...)
		return ds
	}
	return pick(perm[:n]), pick(perm[n:])
}

// Filter returns the examples for which keep returns true.
func (d *Dataset) Filter(keep func(*Example) bool) *Dataset {
	var ex []*Example
	for _, e := range d.Examples() {
		if keep(e) {
			ex = append(ex, e)
		}
	}
	ds, _ := NewDataset(d.labels, ex...)
	return ds
}
