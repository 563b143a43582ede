package train

import "math"

// Weights are aligned with the global index space. Neg is nil for the plain variant.
type Weights struct {
	Bias float64   `json:"bias"`
	Pos  []float64 `json:"pos"`
	Neg  []float64 `json:"neg,omitempty"`
}

// NewWeights returns zero weights over n indices.
func NewWeights(n int, v Variant) *Weights {
	w := &Weights{Pos: make([]float64, n)}
	if v == TwoChannel {
		w.Neg = make([]float64, n)
	}
	return w
}

// Len returns the number of indices.
func (w *Weights) Len() int { return len(w.Pos) }

// TwoChannel reports whether a negative channel is present.
func (w *Weights) TwoChannel() bool { return w.Neg != nil }

// Local returns the local weight of i.
func (w *Weights) Local(i int) float64 {
	if w.Neg != nil {
		return w.Pos[i] - w.Neg[i]
	}
	return w.Pos[i]
}

// Grow extends the weights with zeros up to n indices.
func (w *Weights) Grow(n int) {
	for len(w.Pos) < n {
		w.Pos = append(w.Pos, 0)
	}
	if w.Neg != nil {
		for len(w.Neg) < n {
			w.Neg = append(w.Neg, 0)
		}
	}
}

// Clone returns a deep copy.
func (w *Weights) Clone() *Weights {
	c := &Weights{Bias: w.Bias, Pos: append([]float64(nil), w.Pos...)}
	if w.Neg != nil {
		c.Neg = append([]float64(nil), w.Neg...)
	}
	return c
}

// ExpansionScore is the per-index magnitude compared against the threshold:
// the weight itself, or the larger channel.
func (w *Weights) ExpansionScore() []float64 {
	if w.Neg == nil {
		return w.Pos
	}
	out := make([]float64, len(w.Pos))
	for i := range out {
		out[i] = max(w.Pos[i], w.Neg[i])
	}
	return out
}

// step applies w -= lr*g, projects channels onto >= 0 and returns the norm of the change.
func (w *Weights) step(g *Weights, lr float64) float64 {
	var sq float64
	upd := func(x *float64, d float64, project bool) {
		nx := *x - lr*d
		if project && nx < 0 {
			nx = 0
		}
		sq += (nx - *x) * (nx - *x)
		*x = nx
	}
	upd(&w.Bias, g.Bias, false)
	project := w.Neg != nil
	for i := range w.Pos {
		upd(&w.Pos[i], g.Pos[i], project)
	}
	for i := range w.Neg {
		upd(&w.Neg[i], g.Neg[i], true)
	}
	return math.Sqrt(sq)
}
