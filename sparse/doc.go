// Package sparse provides an immutable index/value vector used for per-example
// feature vectors and sparse weight snapshots.
//
// A Vector keeps its indices sorted and unique, so Dot, Sub and Add are linear
// merges. Vectors are built with a Builder, which accumulates contributions in
// any order:
//
//	var b sparse.Builder
//	b.Add(3, 1.0)
//	b.Add(0, 0.5)
//	v := b.Build(5) // {0:0.5, 3:1.0}, dim 5
package sparse
