// Package featurespace composes sparse feature vocabularies for linear
// classifiers and grows them during training.
//
// A feature space is a list of generators (n-gram vocabularies, filtered
// views of other generators) laid out in one contiguous index space. Rules
// derive new generators from strongly weighted features while a model
// trains, so the vocabulary expands where the data supports it.
//
// # Quick Start
//
//	ctx := context.Background()
//	p, _ := featurespace.Open(ctx, "featurespace.yaml")
//
//	ds, _ := data.ReadTSV(file)
//	trained, _ := p.Train(ctx, ds)
//	_ = p.Save(ctx, "spam", trained)
//
//	model, _ := p.Load(ctx, "spam")
//	preds, _ := p.Predict(ctx, model, ds)
//
// Two labels train one binary model; more train one model per label
// (one-vs-rest).
//
// # Packages
//
//   - feature: generator contract, NGram and Filtered generators
//   - featureset: composition, global index ranges, cached vectors
//   - grammar: expansion rules and the derivation graph
//   - train: plain and two-channel logistic models
//   - persistence, codec, blobstore: framed documents on local, MinIO or S3 storage
//   - config: YAML configuration
//
// # Observability
//
// Pass a Logger with WithLogger and a MetricsCollector with
// WithMetricsCollector. Both default to no-ops.
package featurespace
