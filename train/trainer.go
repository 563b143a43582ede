package train

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/cmunell/featurespace/data"
	"github.com/cmunell/featurespace/feature"
	"github.com/cmunell/featurespace/featureset"
	"github.com/cmunell/featurespace/grammar"
	"github.com/cmunell/featurespace/resource"
)

// Evaluator scores a model; higher is better.
type Evaluator func(ctx context.Context, m *Model) (float64, error)

// Recorder receives per-iteration training metrics.
type Recorder interface {
	RecordIteration(step int, loss, delta float64, size int, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordIteration(int, float64, float64, int, time.Duration) {}

type options struct {
	logger   *slog.Logger
	metrics  Recorder
	positive data.Label
	negative data.Label
	rc       *resource.Controller
}

// Option configures a Trainer.
type Option func(*options)

// WithLogger sets the logger. If nil, logging is discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder. If r also implements
// grammar.Recorder it receives expansion metrics.
func WithMetrics(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.metrics = r
		}
	}
}

// WithLabels sets the positive and negative labels (default "true" and "false").
func WithLabels(positive, negative data.Label) Option {
	return func(o *options) {
		o.positive = positive
		o.negative = negative
	}
}

// WithResourceController bounds gradient workers by rc's worker slots.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) { o.rc = rc }
}

// Trainer runs the gradient loop over one feature set. Expansion appends
// generators to that feature set.
type Trainer struct {
	fs    *featureset.FeatureSet
	rules []grammar.Rule
	cfg   Config
	opts  options
}

// NewTrainer creates a trainer. With no rules or ExpandEvery == 0 the feature
// space stays fixed.
func NewTrainer(fs *featureset.FeatureSet, rules []grammar.Rule, cfg Config, opts ...Option) *Trainer {
	o := options{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:  noopRecorder{},
		positive: data.True,
		negative: data.False,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Trainer{fs: fs, rules: rules, cfg: cfg, opts: o}
}

// Train fits a model on ds. Unfitted generators are fitted on ds first.
// The context is checked between iterations only.
func (t *Trainer) Train(ctx context.Context, ds *data.Dataset, eval Evaluator) (*Model, error) {
	if err := t.cfg.Validate(); err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("train: %w", feature.ErrEmptyDataset)
	}
	if err := t.fs.Fit(ctx, ds); err != nil {
		return nil, err
	}

	cfg := t.cfg
	obj := &objective{
		fs:        t.fs,
		variant:   cfg.Variant,
		threshold: cfg.Threshold,
		l2:        cfg.L2,
		positive:  t.opts.positive,
		workers:   max(cfg.Workers, 1),
		rc:        t.opts.rc,
	}

	var x *grammar.Expander
	if len(t.rules) > 0 && cfg.ExpandEvery > 0 {
		var xo []grammar.Option
		xo = append(xo, grammar.WithLogger(t.opts.logger))
		if r, ok := t.opts.metrics.(grammar.Recorder); ok {
			xo = append(xo, grammar.WithMetrics(r))
		}
		x = grammar.NewExpander(t.fs, t.rules, ds, cfg.Threshold, xo...)
		obj.graph = x.Graph()
	}

	w := NewWeights(t.fs.Size(), cfg.Variant)
	b := newBatcher(ds.Examples(), cfg.BatchSize, cfg.Seed)

	var (
		best      *Weights
		bestScore float64
		bad       int
		seen      int
		evals     int
	)
	log := t.opts.logger.With("positive", t.opts.positive)

	for step := 0; step < cfg.MaxIterations; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		batch := b.next()
		grad, loss, err := obj.evaluate(ctx, w, batch)
		if err != nil {
			return nil, err
		}
		lr := cfg.LearningRate / (1 + cfg.Decay*float64(step))
		delta := w.step(grad, lr)
		seen += len(batch)

		if x != nil && (step+1)%cfg.ExpandEvery == 0 {
			if err := t.expand(ctx, x, w); err != nil {
				return nil, err
			}
		}

		t.opts.metrics.RecordIteration(step, loss, delta, t.fs.Size(), time.Since(start))
		log.DebugContext(ctx, "iteration", "step", step, "loss", loss, "delta", delta, "lr", lr, "size", t.fs.Size())

		if step+1 >= cfg.MinIterations && delta < cfg.Tolerance {
			log.InfoContext(ctx, "converged", "step", step, "delta", delta)
			break
		}
		if cfg.MaxExamples > 0 && seen >= cfg.MaxExamples {
			log.InfoContext(ctx, "example budget reached", "step", step, "examples", seen)
			break
		}
		if eval != nil && cfg.EvalEvery > 0 && (step+1)%cfg.EvalEvery == 0 {
			score, err := eval(ctx, newModel(obj, x, w.Clone(), t.opts.negative))
			if err != nil {
				return nil, err
			}
			evals++
			if evals == 1 || score > bestScore+cfg.EvalEpsilon {
				best, bestScore, bad = w.Clone(), score, 0
			} else {
				bad++
			}
			log.DebugContext(ctx, "evaluation", "step", step, "score", score, "best", bestScore)
			if cfg.Patience > 0 && bad >= cfg.Patience {
				log.InfoContext(ctx, "no improvement", "step", step, "best", bestScore)
				break
			}
		}
	}

	if best != nil {
		w = best
	}
	w.Grow(t.fs.Size())
	log.InfoContext(ctx, "training finished", "size", t.fs.Size(), "examples", seen)
	return newModel(obj, x, w, t.opts.negative), nil
}

// expand expands the candidates of w, strongest first, and grows w.
func (t *Trainer) expand(ctx context.Context, x *grammar.Expander, w *Weights) error {
	score := w.ExpansionScore()
	cands := x.Candidates(score)
	if len(cands) == 0 {
		return nil
	}
	sort.SliceStable(cands, func(a, b int) bool { return score[cands[a]] > score[cands[b]] })
	if n := t.cfg.MaxExpansionsPerStep; n > 0 && len(cands) > n {
		cands = cands[:n]
	}
	for _, i := range cands {
		if _, err := x.Expand(ctx, i); err != nil {
			return fmt.Errorf("expand %d: %w", i, err)
		}
	}
	w.Grow(t.fs.Size())
	return nil
}

// batcher yields mini-batches from a per-epoch shuffle.
type batcher struct {
	examples []*data.Example
	size     int
	rng      *rand.Rand
	perm     []int
	pos      int
}

func newBatcher(examples []*data.Example, size int, seed int64) *batcher {
	if size <= 0 || size > len(examples) {
		size = len(examples)
	}
	return &batcher{examples: examples, size: size, rng: rand.New(rand.NewSource(seed))} // nolint gosec
}

func (b *batcher) next() []*data.Example {
	if b.size == len(b.examples) {
		return b.examples
	}
	out := make([]*data.Example, 0, b.size)
	for len(out) < b.size {
		if b.pos == len(b.perm) {
			b.perm = b.rng.Perm(len(b.examples))
			b.pos = 0
		}
		out = append(out, b.examples[b.perm[b.pos]])
		b.pos++
	}
	return out
}
