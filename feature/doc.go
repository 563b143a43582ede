// Package feature defines the generator contract and the building blocks shared
// by generators: parameter surfaces, fitted vocabularies and term counting.
//
// A Generator maps an example to a sparse contribution over its own local
// vocabulary. Generators are fitted once against an init dataset and are then
// frozen; Compute is a pure function of (example, fitted state) and is total.
//
// Generators are created by kind through a Registry, configured through the
// Params surface, and serialized through State/Restore:
//
//	reg := feature.DefaultRegistry()
//	g, _ := reg.New("NGram", "words")
//	_ = g.SetParameterValue("minCount", "2")
//	_ = g.Fit(ctx, train)
//
// Two generators ship with the package: NGram counts token n-grams of a field,
// and Filtered exposes the subset of another generator's vocabulary matching a
// prefix, suffix or substring. Filtered is the building block for rule-derived
// features.
package feature
