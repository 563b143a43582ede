package train

import (
	"context"
	"math"

	"github.com/cmunell/featurespace/data"
)

// Accuracy returns an evaluator computing the fraction of correctly
// classified labeled examples of ds.
func Accuracy(ds *data.Dataset) Evaluator {
	return func(ctx context.Context, m *Model) (float64, error) {
		hits, err := data.Map(ctx, ds, 1, func(_ context.Context, e *data.Example) (int, error) {
			if !e.Labeled() {
				return -1, nil
			}
			if m.Classify(e) == e.Label {
				return 1, nil
			}
			return 0, nil
		})
		if err != nil {
			return 0, err
		}
		var n, ok int
		for _, h := range hits {
			if h >= 0 {
				n++
				ok += h
			}
		}
		if n == 0 {
			return 0, nil
		}
		return float64(ok) / float64(n), nil
	}
}

// LogLikelihood returns an evaluator computing the mean log-likelihood of the
// gold labels of ds.
func LogLikelihood(ds *data.Dataset) Evaluator {
	return func(ctx context.Context, m *Model) (float64, error) {
		var sum float64
		var n int
		for _, e := range ds.Examples() {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			if !e.Labeled() {
				continue
			}
			s := m.Score(e)
			if e.Label == m.positive {
				sum -= softplus(-s)
			} else {
				sum -= softplus(s)
			}
			n++
		}
		if n == 0 {
			return math.Inf(-1), nil
		}
		return sum / float64(n), nil
	}
}
