package train

import (
	"context"
	"fmt"
	"sort"

	"github.com/cmunell/featurespace/data"
	"github.com/cmunell/featurespace/feature"
	"github.com/cmunell/featurespace/featureset"
	"github.com/cmunell/featurespace/grammar"
	"github.com/cmunell/featurespace/internal/parallel"
	"github.com/cmunell/featurespace/persistence"
)

// MultiModel is a one-vs-rest ensemble of binary models.
type MultiModel struct {
	labels []data.Label
	models map[data.Label]*Model
}

// OneVsRest trains one binary model per label of ds. fs is fitted on ds, then
// every label trains on its own binarized clone with a copied cache, so
// expansions of one label never reach another. Labels train in parallel on
// cfg.Workers goroutines.
func OneVsRest(ctx context.Context, fs *featureset.FeatureSet, rules []grammar.Rule, ds *data.Dataset, cfg Config, opts ...Option) (*MultiModel, error) {
	if err := fs.Fit(ctx, ds); err != nil {
		return nil, err
	}
	labels := ds.Labels().Labels()
	if len(labels) < 2 {
		return nil, fmt.Errorf("one-vs-rest: need at least 2 labels, got %d", len(labels))
	}

	perLabel := cfg
	perLabel.Workers = 1
	models, err := parallel.Map(ctx, labels, cfg.Workers, func(ctx context.Context, l data.Label) (*Model, error) {
		ind := data.Indicator(l)
		bin, err := fs.MakeBinary(ind, false)
		if err != nil {
			return nil, err
		}
		t := NewTrainer(bin, rules, perLabel, append(opts, WithLabels(data.True, data.False))...)
		return t.Train(ctx, ds.MakeBinary(ind), nil)
	})
	if err != nil {
		return nil, err
	}

	mm := &MultiModel{labels: labels, models: make(map[data.Label]*Model, len(labels))}
	for i, l := range labels {
		mm.models[l] = models[i]
	}
	return mm, nil
}

// Labels returns the labels in training order.
func (mm *MultiModel) Labels() []data.Label { return append([]data.Label(nil), mm.labels...) }

// Model returns the binary model of label l.
func (mm *MultiModel) Model(l data.Label) (*Model, bool) {
	m, ok := mm.models[l]
	return m, ok
}

// Posteriors returns P(l | ex) of every binary model.
func (mm *MultiModel) Posteriors(ex *data.Example) map[data.Label]float64 {
	out := make(map[data.Label]float64, len(mm.labels))
	for _, l := range mm.labels {
		out[l] = mm.models[l].Posterior(ex)
	}
	return out
}

// Classify returns the label with the highest posterior. Ties go to the
// label trained first.
func (mm *MultiModel) Classify(ex *data.Example) data.Label {
	var best data.Label
	bestP := -1.0
	for _, l := range mm.labels {
		if p := mm.models[l].Posterior(ex); p > bestP {
			best, bestP = l, p
		}
	}
	return best
}

// Accuracy returns the fraction of labeled examples of ds classified correctly.
func (mm *MultiModel) Accuracy(ds *data.Dataset) float64 {
	var n, ok int
	for _, e := range ds.Examples() {
		if !e.Labeled() {
			continue
		}
		n++
		if mm.Classify(e) == e.Label {
			ok++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(ok) / float64(n)
}

// SectionLabels lists the labels of a multi-model document.
const SectionLabels = "labels"

// Save writes every binary model under a per-label prefix.
func (mm *MultiModel) Save(doc *persistence.Document) error {
	if err := doc.Put(SectionLabels, mm.labels); err != nil {
		return err
	}
	for _, l := range mm.labels {
		if err := mm.models[l].save(doc, "label:"+l.String()); err != nil {
			return fmt.Errorf("save %q: %w", l, err)
		}
	}
	return nil
}

// LoadMultiModel restores a document written by MultiModel.Save.
func LoadMultiModel(doc *persistence.Document, gens *feature.Registry, rules *grammar.Registry, opts ...featureset.Option) (*MultiModel, error) {
	var labels []data.Label
	ok, err := doc.Get(SectionLabels, &labels)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("load multi-model: %w: section %q", persistence.ErrMissingSection, SectionLabels)
	}
	mm := &MultiModel{labels: labels, models: make(map[data.Label]*Model, len(labels))}
	for _, l := range labels {
		m, err := loadModel(doc, "label:"+l.String(), gens, rules, opts...)
		if err != nil {
			return nil, fmt.Errorf("load %q: %w", l, err)
		}
		mm.models[l] = m
	}
	return mm, nil
}

// IsMulti reports whether doc holds a multi-model.
func IsMulti(doc *persistence.Document) bool { return doc.Has(SectionLabels) }

// Top returns the n highest-weighted features of label l's model.
func (mm *MultiModel) Top(l data.Label, n int) []Weight {
	m, ok := mm.models[l]
	if !ok {
		return nil
	}
	w := m.Weights()
	sort.SliceStable(w, func(a, b int) bool { return abs(w[a].Value) > abs(w[b].Value) })
	if n > 0 && len(w) > n {
		w = w[:n]
	}
	return w
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
