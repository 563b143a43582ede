package sparse

import "sort"

// Builder accumulates contributions into a Vector.
// Repeated indices are summed. The zero value is ready to use.
// A Builder is not safe for concurrent use.
type Builder struct {
	entries map[int]float64
}

// Add accumulates x at index i.
func (b *Builder) Add(i int, x float64) {
	if b.entries == nil {
		b.entries = make(map[int]float64)
	}
	b.entries[i] += x
}

// Set overwrites the value at index i.
func (b *Builder) Set(i int, x float64) {
	if b.entries == nil {
		b.entries = make(map[int]float64)
	}
	b.entries[i] = x
}

// Len returns the number of distinct indices seen so far.
func (b *Builder) Len() int { return len(b.entries) }

// Reset discards all accumulated entries.
func (b *Builder) Reset() { clear(b.entries) }

// Build returns the accumulated vector with the given dimension.
// Zero sums and indices outside [0, dim) are dropped.
func (b *Builder) Build(dim int) Vector {
	v := Vector{dim: dim}
	if len(b.entries) == 0 {
		return v
	}
	v.indices = make([]int, 0, len(b.entries))
	for i, x := range b.entries {
		if x != 0 && i >= 0 && i < dim {
			v.indices = append(v.indices, i)
		}
	}
	sort.Ints(v.indices)
	v.values = make([]float64, len(v.indices))
	for k, i := range v.indices {
		v.values[k] = b.entries[i]
	}
	return v
}
