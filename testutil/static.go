package testutil

import (
	"context"
	"sync/atomic"

	"github.com/cmunell/featurespace/data"
	"github.com/cmunell/featurespace/feature"
	"github.com/cmunell/featurespace/sparse"
)

// KindStatic is the registry kind of Static.
const KindStatic = "Static"

// Static is a generator with a fixed vocabulary and fixed per-example local
// vectors keyed by example id. It counts Compute and Fit calls.
type Static struct {
	*feature.ParamSet

	name    string
	terms   []string
	vectors map[int]map[int]float64
	ignored bool

	fitted   bool
	fitErr   error
	computes atomic.Int64
	fits     atomic.Int64
}

var _ feature.Generator = (*Static)(nil)

// NewStatic creates an unfitted Static generator. Fit makes terms available.
func NewStatic(name string, terms []string, vectors map[int]map[int]float64) *Static {
	g := &Static{name: name, terms: terms, vectors: vectors}
	g.ParamSet = feature.NewParamSet(name)
	g.ParamSet.Bool("ignored", &g.ignored)
	return g
}

// Fitted returns a fitted Static generator.
func FittedStatic(name string, terms []string, vectors map[int]map[int]float64) *Static {
	g := NewStatic(name, terms, vectors)
	g.fitted = true
	return g
}

// FailFit makes the next Fit calls return err.
func (g *Static) FailFit(err error) { g.fitErr = err }

// SetIgnored marks the generator ignored.
func (g *Static) SetIgnored(v bool) { g.ignored = v }

// Computes returns the number of Compute calls.
func (g *Static) Computes() int64 { return g.computes.Load() }

// Fits returns the number of Fit calls.
func (g *Static) Fits() int64 { return g.fits.Load() }

func (g *Static) Name() string  { return g.name }
func (g *Static) Kind() string  { return KindStatic }
func (g *Static) Fitted() bool  { return g.fitted }
func (g *Static) Ignored() bool { return g.ignored }

func (g *Static) Size() int {
	if !g.fitted {
		return 0
	}
	return len(g.terms)
}

func (g *Static) Fit(_ context.Context, init *data.Dataset) error {
	g.fits.Add(1)
	if g.fitErr != nil {
		return feature.NewFitError(g.name, g.fitErr)
	}
	if init.Len() == 0 {
		return feature.NewFitError(g.name, feature.ErrEmptyDataset)
	}
	g.fitted = true
	return nil
}

func (g *Static) Term(i int) (string, bool) {
	if i < 0 || i >= g.Size() || g.terms[i] == "" {
		return "", false
	}
	return g.terms[i], true
}

func (g *Static) TermIndex(term string) (int, bool) {
	for i, t := range g.terms {
		if t == term {
			return i, true
		}
	}
	return 0, false
}

func (g *Static) Compute(ex *data.Example, offset int, dst *sparse.Builder) {
	g.computes.Add(1)
	if !g.fitted || ex == nil {
		return
	}
	for i, x := range g.vectors[ex.ID] {
		if i < len(g.terms) {
			dst.Set(offset+i, x)
		}
	}
}

func (g *Static) MakeBinary(data.LabelIndicator) feature.Generator {
	c := NewStatic(g.name, g.terms, g.vectors)
	c.fitted = g.fitted
	c.ignored = g.ignored
	return c
}

func (g *Static) State() *feature.State {
	s := &feature.State{Kind: KindStatic, Name: g.name, Params: g.Values()}
	if g.fitted {
		s.Terms = append([]string{}, g.terms...)
	}
	return s
}

func (g *Static) Restore(s *feature.State) error {
	if s == nil {
		return nil
	}
	if err := feature.Apply(g, s.Params); err != nil {
		return err
	}
	g.fitted = s.Fitted()
	if g.fitted {
		g.terms = s.Terms
	}
	return nil
}
