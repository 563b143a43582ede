package train

import (
	"context"
	"math"

	"github.com/cmunell/featurespace/data"
	"github.com/cmunell/featurespace/featureset"
	"github.com/cmunell/featurespace/grammar"
	"github.com/cmunell/featurespace/internal/parallel"
	"github.com/cmunell/featurespace/resource"
)

// objective is the L2-regularized mean logistic loss of a binary model.
type objective struct {
	fs        *featureset.FeatureSet
	graph     *grammar.Graph
	variant   Variant
	threshold float64
	l2        float64
	positive  data.Label
	workers   int
	rc        *resource.Controller
}

// coefficients holds the combined coefficient of every index for one step.
// It is recomputed from scratch at every step since the graph may have grown.
type coefficients struct {
	c []float64
	// scale is dC_i/dLocal_i: 1 for primitive indices, the parent excess for derived ones.
	scale []float64
	order []int
}

func (o *objective) combine(w *Weights) coefficients {
	n := w.Len()
	cf := coefficients{c: make([]float64, n), scale: make([]float64, n)}
	for i := range n {
		cf.c[i] = w.Local(i)
		cf.scale[i] = 1
	}
	if o.variant != TwoChannel || o.graph == nil {
		return cf
	}
	order, err := o.graph.TopologicalOrder()
	if err != nil {
		// AddEdge keeps the graph acyclic
		panic(err)
	}
	cf.order = order
	for _, i := range order {
		if i >= n || !o.graph.IsDerived(i) {
			continue
		}
		// a parent contributes only the part of its signed coefficient above t
		var excess float64
		for _, p := range o.graph.Parents(i) {
			if p < n {
				excess += max(0, cf.c[p]-o.threshold)
			}
		}
		cf.scale[i] = excess
		cf.c[i] = excess * w.Local(i)
	}
	return cf
}

// target returns the probability mass of the positive label.
func (o *objective) target(e *data.Example) float64 {
	if len(e.Weights) > 0 {
		var total float64
		for _, x := range e.Weights {
			total += x
		}
		if total > 0 {
			return e.Weights[o.positive] / total
		}
	}
	if e.Label == o.positive {
		return 1
	}
	return 0
}

func sigmoid(s float64) float64 {
	if s >= 0 {
		return 1 / (1 + math.Exp(-s))
	}
	z := math.Exp(s)
	return z / (1 + z)
}

// softplus computes log(1+exp(s)) without overflow.
func softplus(s float64) float64 {
	return max(s, 0) + math.Log1p(math.Exp(-math.Abs(s)))
}

type partial struct {
	direct []float64
	bias   float64
	loss   float64
}

// evaluate returns the loss and gradient over batch.
func (o *objective) evaluate(ctx context.Context, w *Weights, batch []*data.Example) (*Weights, float64, error) {
	cf := o.combine(w)
	n := w.Len()

	parts, err := parallel.MapChunks(ctx, batch, o.workers, func(ctx context.Context, _ parallel.Chunk, part []*data.Example) (partial, error) {
		p := partial{direct: make([]float64, n)}
		for _, e := range part {
			x := o.fs.Vector(e, true)
			s := w.Bias + x.DotDense(cf.c)
			y := o.target(e)
			p.loss += softplus(s) - y*s
			r := sigmoid(s) - y
			p.bias += r
			x.Each(func(i int, v float64) {
				if i < n {
					p.direct[i] += r * v
				}
			})
		}
		return p, nil
	}, parallel.WithController(o.rc))
	if err != nil {
		return nil, 0, err
	}

	total := partial{direct: make([]float64, n)}
	for _, p := range parts {
		total.bias += p.bias
		total.loss += p.loss
		for i, g := range p.direct {
			total.direct[i] += g
		}
	}
	m := float64(max(len(batch), 1))
	G := total.direct
	for i := range G {
		G[i] /= m
	}

	// accumulate through expanded descendants, children before parents
	for k := len(cf.order) - 1; k >= 0; k-- {
		c := cf.order[k]
		if c >= n || G[c] == 0 || !o.graph.IsDerived(c) {
			continue
		}
		local := w.Local(c)
		for _, p := range o.graph.Parents(c) {
			if p < n && cf.c[p] > o.threshold {
				G[p] += G[c] * local
			}
		}
	}

	grad := NewWeights(n, o.variant)
	grad.Bias = total.bias / m
	loss := total.loss / m
	for i := range n {
		grad.Pos[i] = G[i]*cf.scale[i] + o.l2*w.Pos[i]
		loss += 0.5 * o.l2 * w.Pos[i] * w.Pos[i]
	}
	for i := range grad.Neg {
		grad.Neg[i] = -G[i]*cf.scale[i] + o.l2*w.Neg[i]
		loss += 0.5 * o.l2 * w.Neg[i] * w.Neg[i]
	}
	return grad, loss, nil
}
