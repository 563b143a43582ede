package train

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/cmunell/featurespace/data"
	"github.com/cmunell/featurespace/feature"
	"github.com/cmunell/featurespace/featureset"
	"github.com/cmunell/featurespace/grammar"
	"github.com/cmunell/featurespace/persistence"
)

// Model is a trained binary logistic model. It is safe for concurrent use.
type Model struct {
	fs       *featureset.FeatureSet
	expander *grammar.Expander
	weights  *Weights
	coef     []float64

	variant   Variant
	threshold float64
	positive  data.Label
	negative  data.Label
}

func newModel(obj *objective, x *grammar.Expander, w *Weights, negative data.Label) *Model {
	m := &Model{
		fs:        obj.fs,
		expander:  x,
		weights:   w,
		variant:   obj.variant,
		threshold: obj.threshold,
		positive:  obj.positive,
		negative:  negative,
	}
	if w != nil {
		m.coef = obj.combine(w).c
	}
	return m
}

// Fitted reports whether the model carries weights.
func (m *Model) Fitted() bool { return m.weights != nil }

// FeatureSet returns the (possibly grown) feature set of the model.
func (m *Model) FeatureSet() *featureset.FeatureSet { return m.fs }

// Expander returns the derived-feature registry, nil if no rules were used.
func (m *Model) Expander() *grammar.Expander { return m.expander }

// Variant returns the parameterization.
func (m *Model) Variant() Variant { return m.variant }

// Labels returns the positive and negative labels.
func (m *Model) Labels() (positive, negative data.Label) { return m.positive, m.negative }

// Raw returns a copy of the trained weights.
func (m *Model) Raw() *Weights {
	if m.weights == nil {
		return nil
	}
	return m.weights.Clone()
}

// Coefficients returns the combined coefficient of every index.
func (m *Model) Coefficients() []float64 { return append([]float64(nil), m.coef...) }

// Score returns the log-odds of the positive label.
func (m *Model) Score(ex *data.Example) float64 {
	if m.weights == nil {
		return 0
	}
	return m.weights.Bias + m.fs.Vector(ex, true).DotDense(m.coef)
}

// Posterior returns P(positive | ex).
func (m *Model) Posterior(ex *data.Example) float64 { return sigmoid(m.Score(ex)) }

// Classify returns the more probable label.
func (m *Model) Classify(ex *data.Example) data.Label {
	if m.Posterior(ex) >= 0.5 {
		return m.positive
	}
	return m.negative
}

// PosteriorBatch scores ds in parallel, in dataset order.
func (m *Model) PosteriorBatch(ctx context.Context, ds *data.Dataset, workers int) ([]float64, error) {
	return data.Map(ctx, ds, workers, func(_ context.Context, e *data.Example) (float64, error) {
		return m.Posterior(e), nil
	})
}

// Weight is a named non-zero coefficient.
type Weight struct {
	Index int     `json:"index"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Weights returns the non-zero coefficients ordered by decreasing magnitude.
func (m *Model) Weights() []Weight {
	var out []Weight
	for i, c := range m.coef {
		if c != 0 {
			out = append(out, Weight{Index: i, Name: m.fs.Name(i), Value: c})
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return math.Abs(out[a].Value) > math.Abs(out[b].Value) })
	return out
}

// Bias returns the intercept.
func (m *Model) Bias() float64 {
	if m.weights == nil {
		return 0
	}
	return m.weights.Bias
}

// State is the persisted form of a Model's parameters.
type State struct {
	Variant   Variant    `json:"variant"`
	Threshold float64    `json:"threshold"`
	Positive  data.Label `json:"positive"`
	Negative  data.Label `json:"negative"`
	Weights   *Weights   `json:"weights"`
}

// Document section names written by Save. A prefix namespaces the sections of
// one model inside a multi-model document.
const (
	SectionFeatureSet = "featureset"
	SectionExpander   = "expander"
	SectionModel      = "model"
)

func section(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// Save writes the feature set, expander and model sections into doc.
func (m *Model) Save(doc *persistence.Document) error { return m.save(doc, "") }

func (m *Model) save(doc *persistence.Document, prefix string) error {
	if err := doc.Put(section(prefix, SectionFeatureSet), m.fs.State()); err != nil {
		return err
	}
	if m.expander != nil {
		if err := doc.Put(section(prefix, SectionExpander), m.expander.State()); err != nil {
			return err
		}
	}
	if m.weights == nil {
		return nil
	}
	return doc.Put(section(prefix, SectionModel), &State{
		Variant:   m.variant,
		Threshold: m.threshold,
		Positive:  m.positive,
		Negative:  m.negative,
		Weights:   m.weights,
	})
}

// LoadModel restores a model written by Save. A missing model section yields
// an unfit model; a missing feature set section is an error.
func LoadModel(doc *persistence.Document, gens *feature.Registry, rules *grammar.Registry, opts ...featureset.Option) (*Model, error) {
	return loadModel(doc, "", gens, rules, opts...)
}

func loadModel(doc *persistence.Document, prefix string, gens *feature.Registry, rules *grammar.Registry, opts ...featureset.Option) (*Model, error) {
	var fst featureset.State
	ok, err := doc.Get(section(prefix, SectionFeatureSet), &fst)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("load model: %w: section %q", persistence.ErrMissingSection, section(prefix, SectionFeatureSet))
	}
	fs, err := featureset.Restore(&fst, gens, opts...)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	var x *grammar.Expander
	var xs grammar.ExpanderState
	if ok, err := doc.Get(section(prefix, SectionExpander), &xs); err != nil {
		return nil, err
	} else if ok {
		if rules == nil {
			rules = grammar.DefaultRegistry(gens)
		}
		if x, err = grammar.RestoreExpander(&xs, fs, rules, nil); err != nil {
			return nil, fmt.Errorf("load model: %w", err)
		}
	}

	var st State
	ok, err = doc.Get(section(prefix, SectionModel), &st)
	if err != nil {
		return nil, err
	}
	obj := &objective{fs: fs, variant: st.Variant, threshold: st.Threshold, positive: st.Positive}
	if x != nil {
		obj.graph = x.Graph()
	}
	if !ok || st.Weights == nil {
		return newModel(obj, x, nil, ""), nil
	}
	if st.Weights.Len() != fs.Size() {
		return nil, fmt.Errorf("load model: %d weights for %d features", st.Weights.Len(), fs.Size())
	}
	return newModel(obj, x, st.Weights, st.Negative), nil
}
