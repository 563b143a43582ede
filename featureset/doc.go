// Package featureset composes generators into one global index space and
// caches composed per-example vectors.
//
// Every non-ignored generator owns a contiguous range [Start, End) of global
// indices. Ranges are allocated in the order generators are added, once a
// generator and every generator before it is fitted, so ranges are disjoint,
// sorted and leave no gaps below Size().
//
// Composed vectors are cached by example key, the pair of dataset identity and
// example id, so datasets reusing ids never share entries. When the vocabulary grows (a
// generator is appended, e.g. by rule expansion) cached entries become stale;
// a stale entry is extended with RangeVector over the new indices instead of
// being recomputed, which relies on
//
//	RangeVector(e, lo, hi) == Vector(e).Slice(lo, hi)
//
// Re-fitting or Invalidate drops the cache.
package featureset
