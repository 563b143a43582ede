package featurespace

import (
	"github.com/cmunell/featurespace/data"
	"github.com/cmunell/featurespace/persistence"
	"github.com/cmunell/featurespace/train"
)

// Trained is a trained binary model or one-vs-rest ensemble. Exactly one of
// Binary and Multi is set.
type Trained struct {
	Binary *train.Model
	Multi  *train.MultiModel
}

// Labels returns the labels the model predicts. A binary model lists its
// positive label first.
func (t *Trained) Labels() []data.Label {
	if t.Multi != nil {
		return t.Multi.Labels()
	}
	pos, neg := t.Binary.Labels()
	return []data.Label{pos, neg}
}

// model returns the binary model scoring l.
func (t *Trained) model(l data.Label) *train.Model {
	if t.Multi != nil {
		m, _ := t.Multi.Model(l)
		return m
	}
	return t.Binary
}

// Classify returns the most probable label of ex.
func (t *Trained) Classify(ex *data.Example) data.Label {
	if t.Multi != nil {
		return t.Multi.Classify(ex)
	}
	return t.Binary.Classify(ex)
}

// Posteriors returns the probability of every label of ex. One-vs-rest
// posteriors are independent and need not sum to one.
func (t *Trained) Posteriors(ex *data.Example) map[data.Label]float64 {
	if t.Multi != nil {
		return t.Multi.Posteriors(ex)
	}
	pos, neg := t.Binary.Labels()
	p := t.Binary.Posterior(ex)
	return map[data.Label]float64{pos: p, neg: 1 - p}
}

// Accuracy returns the fraction of labeled examples of ds classified correctly.
func (t *Trained) Accuracy(ds *data.Dataset) float64 {
	var n, ok int
	for _, e := range ds.Examples() {
		if !e.Labeled() {
			continue
		}
		n++
		if t.Classify(e) == e.Label {
			ok++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(ok) / float64(n)
}

// Save writes the model sections into doc.
func (t *Trained) Save(doc *persistence.Document) error {
	if t.Multi != nil {
		return t.Multi.Save(doc)
	}
	return t.Binary.Save(doc)
}
