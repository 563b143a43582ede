package sparse

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Vector is an immutable sparse vector with a fixed dimension.
// Indices are sorted ascending and unique; zero values are not stored.
type Vector struct {
	indices []int
	values  []float64
	dim     int
}

// New returns an empty vector of the given dimension.
func New(dim int) Vector {
	return Vector{dim: dim}
}

// FromMap builds a vector from an index->value map. Zero values are dropped.
func FromMap(dim int, m map[int]float64) Vector {
	var b Builder
	for i, v := range m {
		b.Add(i, v)
	}
	return b.Build(dim)
}

// Dim returns the dimension.
func (v Vector) Dim() int { return v.dim }

// Len returns the number of stored (non-zero) entries.
func (v Vector) Len() int { return len(v.indices) }

// Indices returns the sorted stored indices. The slice must not be modified.
func (v Vector) Indices() []int { return v.indices }

// Values returns the stored values aligned with Indices. The slice must not be modified.
func (v Vector) Values() []float64 { return v.values }

// Get returns the value at index i (0 if absent).
func (v Vector) Get(i int) float64 {
	k := sort.SearchInts(v.indices, i)
	if k < len(v.indices) && v.indices[k] == i {
		return v.values[k]
	}
	return 0
}

// Each calls fn for every stored entry in index order.
func (v Vector) Each(fn func(i int, x float64)) {
	for k, i := range v.indices {
		fn(i, v.values[k])
	}
}

// Dot returns the inner product with another sparse vector.
func (v Vector) Dot(o Vector) float64 {
	var sum float64
	a, b := 0, 0
	for a < len(v.indices) && b < len(o.indices) {
		switch {
		case v.indices[a] < o.indices[b]:
			a++
		case v.indices[a] > o.indices[b]:
			b++
		default:
			sum += v.values[a] * o.values[b]
			a++
			b++
		}
	}
	return sum
}

// DotDense returns the inner product with a dense vector.
// Indices beyond len(dense) contribute nothing.
func (v Vector) DotDense(dense []float64) float64 {
	var sum float64
	for k, i := range v.indices {
		if i < len(dense) {
			sum += v.values[k] * dense[i]
		}
	}
	return sum
}

// Add returns v + o. The result dimension is the larger of the two.
func (v Vector) Add(o Vector) Vector {
	return v.merge(o, 1)
}

// Sub returns v - o. The result dimension is the larger of the two.
func (v Vector) Sub(o Vector) Vector {
	return v.merge(o, -1)
}

func (v Vector) merge(o Vector, sign float64) Vector {
	out := Vector{
		dim:     max(v.dim, o.dim),
		indices: make([]int, 0, len(v.indices)+len(o.indices)),
		values:  make([]float64, 0, len(v.indices)+len(o.indices)),
	}
	push := func(i int, x float64) {
		if x != 0 {
			out.indices = append(out.indices, i)
			out.values = append(out.values, x)
		}
	}
	a, b := 0, 0
	for a < len(v.indices) || b < len(o.indices) {
		switch {
		case b >= len(o.indices) || (a < len(v.indices) && v.indices[a] < o.indices[b]):
			push(v.indices[a], v.values[a])
			a++
		case a >= len(v.indices) || v.indices[a] > o.indices[b]:
			push(o.indices[b], sign*o.values[b])
			b++
		default:
			push(v.indices[a], v.values[a]+sign*o.values[b])
			a++
			b++
		}
	}
	return out
}

// Scale returns v multiplied by s.
func (v Vector) Scale(s float64) Vector {
	if s == 0 {
		return New(v.dim)
	}
	out := Vector{dim: v.dim, indices: v.indices, values: make([]float64, len(v.values))}
	for k, x := range v.values {
		out.values[k] = x * s
	}
	return out
}

// Norm returns the L2 norm.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v.values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Filter returns the entries with index in [lo, hi), keeping global indices and dimension.
func (v Vector) Filter(lo, hi int) Vector {
	a, b := v.bounds(lo, hi)
	return Vector{dim: v.dim, indices: v.indices[a:b], values: v.values[a:b]}
}

// Slice returns the entries with index in [lo, hi) rebased to [0, hi-lo).
func (v Vector) Slice(lo, hi int) Vector {
	a, b := v.bounds(lo, hi)
	out := Vector{
		dim:     max(hi-lo, 0),
		indices: make([]int, b-a),
		values:  v.values[a:b],
	}
	for k := a; k < b; k++ {
		out.indices[k-a] = v.indices[k] - lo
	}
	return out
}

// Shift returns v with every index moved by offset and the dimension set to dim.
func (v Vector) Shift(offset, dim int) Vector {
	out := Vector{dim: dim, indices: make([]int, len(v.indices)), values: v.values}
	for k, i := range v.indices {
		out.indices[k] = i + offset
	}
	return out
}

// Extend returns v followed by tail. tail must only hold indices >= v's last index.
func (v Vector) Extend(tail Vector, dim int) Vector {
	if tail.Len() == 0 {
		return Vector{dim: dim, indices: v.indices, values: v.values}
	}
	if v.Len() > 0 && tail.indices[0] <= v.indices[len(v.indices)-1] {
		return v.Add(tail).WithDim(dim)
	}
	out := Vector{
		dim:     dim,
		indices: make([]int, 0, len(v.indices)+len(tail.indices)),
		values:  make([]float64, 0, len(v.values)+len(tail.values)),
	}
	out.indices = append(append(out.indices, v.indices...), tail.indices...)
	out.values = append(append(out.values, v.values...), tail.values...)
	return out
}

// WithDim returns v with a different dimension. Entries at or beyond dim are dropped.
func (v Vector) WithDim(dim int) Vector {
	a, b := v.bounds(0, dim)
	return Vector{dim: dim, indices: v.indices[a:b], values: v.values[a:b]}
}

// Equal reports whether both vectors hold the same entries and dimension.
func (v Vector) Equal(o Vector) bool {
	if v.dim != o.dim || len(v.indices) != len(o.indices) {
		return false
	}
	for k := range v.indices {
		if v.indices[k] != o.indices[k] || v.values[k] != o.values[k] {
			return false
		}
	}
	return true
}

// Map returns the stored entries as a map.
func (v Vector) Map() map[int]float64 {
	m := make(map[int]float64, len(v.indices))
	for k, i := range v.indices {
		m[i] = v.values[k]
	}
	return m
}

// String formats the vector as {i:v, ...}.
func (v Vector) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for k, i := range v.indices {
		if k > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d:%g", i, v.values[k])
	}
	sb.WriteByte('}')
	return sb.String()
}

func (v Vector) bounds(lo, hi int) (int, int) {
	if hi < lo {
		hi = lo
	}
	a := sort.SearchInts(v.indices, lo)
	b := sort.SearchInts(v.indices, hi)
	return a, b
}
