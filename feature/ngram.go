package feature

import (
	"context"
	"strings"

	"github.com/cmunell/featurespace/data"
	"github.com/cmunell/featurespace/sparse"
)

// KindNGram is the registry kind of NGram.
const KindNGram = "NGram"

// Value scaling modes of NGram.
const (
	ScaleIndicator = "indicator"
	ScaleCount     = "count"
	ScaleTFIDF     = "tfidf"
)

// NGram emits one feature per token n-gram of a field.
//
// Parameters: field, n, minCount, scale (indicator|count|tfidf), ignored, lowercase.
type NGram struct {
	*ParamSet

	name      string
	field     string
	n         int
	minCount  int
	scale     string
	ignored   bool
	lowercase bool

	workers int
	vocab   *Vocabulary
	binary  string
}

var _ Generator = (*NGram)(nil)

// NewNGram creates an unfitted unigram indicator generator over data.DefaultField.
func NewNGram(name string) *NGram {
	g := &NGram{
		name:     name,
		field:    data.DefaultField,
		n:        1,
		minCount: 1,
		scale:    ScaleIndicator,
	}
	g.ParamSet = g.params()
	return g
}

func (g *NGram) params() *ParamSet {
	p := NewParamSet(g.name)
	p.String("field", &g.field)
	p.Int("n", &g.n, 1)
	p.Int("minCount", &g.minCount, 1)
	p.Enum("scale", &g.scale, ScaleIndicator, ScaleCount, ScaleTFIDF)
	p.Bool("ignored", &g.ignored)
	p.Bool("lowercase", &g.lowercase)
	p.FreezeWhen(g.Fitted)
	return p
}

func (g *NGram) Name() string  { return g.name }
func (g *NGram) Kind() string  { return KindNGram }
func (g *NGram) Ignored() bool { return g.ignored }
func (g *NGram) Fitted() bool  { return g.vocab != nil }
func (g *NGram) Size() int     { return g.vocab.Size() }

// SetWorkers sets the fit parallelism.
func (g *NGram) SetWorkers(n int) { g.workers = n }

// Vocabulary returns the fitted vocabulary (nil before fit).
func (g *NGram) Vocabulary() *Vocabulary { return g.vocab }

func (g *NGram) Term(i int) (string, bool) { return g.vocab.Term(i) }

func (g *NGram) TermIndex(term string) (int, bool) { return g.vocab.Index(term) }

// Fit counts n-grams over init and keeps those seen at least minCount times.
func (g *NGram) Fit(ctx context.Context, init *data.Dataset) error {
	if init.Len() == 0 {
		return NewFitError(g.name, ErrEmptyDataset)
	}
	counts, err := TermCounter{Workers: g.workers}.Count(ctx, init, g.terms)
	if err != nil {
		return NewFitError(g.name, err)
	}
	g.vocab = counts.Vocabulary(g.minCount)
	return nil
}

func (g *NGram) terms(e *data.Example) []string {
	toks := e.Field(g.field)
	if len(toks) < g.n {
		return nil
	}
	out := make([]string, 0, len(toks)-g.n+1)
	for i := 0; i+g.n <= len(toks); i++ {
		t := strings.Join(toks[i:i+g.n], " ")
		if g.lowercase {
			t = strings.ToLower(t)
		}
		out = append(out, t)
	}
	return out
}

// Compute adds the n-gram features of ex.
func (g *NGram) Compute(ex *data.Example, offset int, dst *sparse.Builder) {
	if g.vocab == nil {
		return
	}
	counts := make(map[int]int)
	for _, t := range g.terms(ex) {
		if i, ok := g.vocab.Index(t); ok {
			counts[i]++
		}
	}
	for i, c := range counts {
		var v float64
		switch g.scale {
		case ScaleCount:
			v = float64(c)
		case ScaleTFIDF:
			v = float64(c) * g.vocab.Stat(StatIDF, i)
		default:
			v = 1
		}
		dst.Set(offset+i, v)
	}
}

// MakeBinary returns a clone sharing the fitted vocabulary.
func (g *NGram) MakeBinary(ind data.LabelIndicator) Generator {
	c := &NGram{
		name:      g.name,
		field:     g.field,
		n:         g.n,
		minCount:  g.minCount,
		scale:     g.scale,
		ignored:   g.ignored,
		lowercase: g.lowercase,
		workers:   g.workers,
		vocab:     g.vocab.Share(),
		binary:    ind.Name,
	}
	c.ParamSet = c.params()
	return c
}

func (g *NGram) State() *State {
	return &State{
		Kind:   KindNGram,
		Name:   g.name,
		Params: g.Values(),
		Terms:  g.vocab.Terms(),
		Stats:  g.vocab.Stats(),
		Binary: g.binary,
	}
}

func (g *NGram) Restore(s *State) error {
	if s == nil {
		return nil
	}
	g.vocab = nil
	if err := Apply(g, s.Params); err != nil {
		return err
	}
	g.binary = s.Binary
	if s.Fitted() {
		v := NewVocabulary(s.Terms)
		for name, values := range s.Stats {
			v = v.WithStat(name, values)
		}
		g.vocab = v
	}
	return nil
}
