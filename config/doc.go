// Package config loads the YAML description of a feature space: the
// generators to compose, the rules that induce derived generators during
// training, the training hyperparameters and the model storage.
//
//	workers: 4
//	generators:
//	  - kind: NGram
//	    name: words
//	    params: {n: "1", minCount: "2"}
//	rules:
//	  - kind: Affix
//	    name: suf
//	    params: {source: words, mode: suffix, length: "3"}
//	training:
//	  threshold: 0.75
//	  variant: two-channel
//	storage:
//	  kind: local
//	  root: ./models
//	  compression: zstd
//	  codec: go-json
//
// Keys absent from a file keep the values of Default. Build instantiates the
// components through feature and grammar registries; FromComponents captures
// existing components so that Build(FromComponents(...)) reproduces them.
package config
