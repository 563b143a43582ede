// Package testutil provides testing utilities for featurespace.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded RNG, synthetic token corpora and a generator
// double that counts how often it is evaluated.
//
// # Synthetic Corpora
//
//	rng := testutil.NewRNG(seed)
//	ds := rng.SeparableDataset(200, "good", "bad")
//
// # Counting Generator
//
//	g := testutil.NewStatic("g1", []string{"a", "b"}, map[int]map[int]float64{1: {0: 1}})
//	fs.Add(g)
//	_ = fs.Vector(ex, true)
//	g.Computes() // number of Compute calls
package testutil
