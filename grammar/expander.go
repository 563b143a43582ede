package grammar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/bits-and-blooms/bitset"

	"github.com/cmunell/featurespace/data"
	"github.com/cmunell/featurespace/feature"
	"github.com/cmunell/featurespace/featureset"
)

// Node records one child generator derived from a parent feature.
type Node struct {
	ParentIndex     int              `json:"parent"`
	ParentGenerator string           `json:"parentGenerator"`
	ParentTerm      string           `json:"parentTerm,omitempty"`
	Rule            string           `json:"rule"`
	Child           string           `json:"child"`
	Range           featureset.Range `json:"range"`
	// Reused lists the allocated indices the child's candidate terms collided
	// with, whether or not an edge to them could be recorded.
	Reused []int `json:"reused,omitempty"`
	// Linked is the subset of Reused that received a parent edge. Primitive
	// indices and edges that would close a cycle are left out.
	Linked []int `json:"linked,omitempty"`
	// Added is the number of newly allocated indices.
	Added int `json:"added"`
}

// Recorder receives expansion metrics.
type Recorder interface {
	RecordExpansion(parent, added, reused int, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordExpansion(int, int, int, time.Duration) {}

type options struct {
	logger  *slog.Logger
	metrics Recorder
}

// Option configures an Expander.
type Option func(*options)

// WithLogger sets the logger. If nil, logging is discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.metrics = r
		}
	}
}

// Expander is the derived-feature registry of a training run. It owns the
// derivation graph and is not safe for concurrent use.
type Expander struct {
	fs        *featureset.FeatureSet
	rules     []Rule
	init      *data.Dataset
	threshold float64

	primitive int
	expanded  *bitset.BitSet
	graph     *Graph
	nodes     []Node
	// canonical maps the identity of every allocated feature to its index.
	canonical map[string]int
	indexed   int

	opts options
}

// NewExpander creates an expander over fs. Every index allocated at this
// point is primitive. Children are fitted on init.
func NewExpander(fs *featureset.FeatureSet, rules []Rule, init *data.Dataset, threshold float64, opts ...Option) *Expander {
	o := options{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: noopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	primitive := fs.Size()
	return &Expander{
		fs:        fs,
		rules:     rules,
		init:      init,
		threshold: threshold,
		primitive: primitive,
		expanded:  bitset.New(uint(primitive)),
		graph:     NewGraph(primitive),
		canonical: make(map[string]int),
		opts:      o,
	}
}

// PrimitiveSize returns the feature-set size at construction.
func (x *Expander) PrimitiveSize() int { return x.primitive }

// Threshold returns the expansion threshold.
func (x *Expander) Threshold() float64 { return x.threshold }

// Graph returns the derivation graph.
func (x *Expander) Graph() *Graph { return x.graph }

// FeatureSet returns the feature set being grown.
func (x *Expander) FeatureSet() *featureset.FeatureSet { return x.fs }

// Rules returns the rules applied on expansion.
func (x *Expander) Rules() []Rule { return x.rules }

// Nodes returns the derivation nodes in creation order.
func (x *Expander) Nodes() []Node { return append([]Node(nil), x.nodes...) }

// Expanded reports whether i has been expanded.
func (x *Expander) Expanded(i int) bool { return i >= 0 && x.expanded.Test(uint(i)) }

// NumExpanded returns the number of expanded indices.
func (x *Expander) NumExpanded() int { return int(x.expanded.Count()) }

// Candidates returns, in ascending order, the indices i whose |score[i]|
// exceeds the threshold and that are not yet expanded. score is aligned with
// the global index space.
func (x *Expander) Candidates(score []float64) []int {
	var out []int
	for i, s := range score {
		if math.Abs(s) > x.threshold && !x.expanded.Test(uint(i)) {
			out = append(out, i)
		}
	}
	return out
}

// Expand applies every rule to the feature at global index i and appends the
// resulting children to the feature set. Expanding an index twice is a no-op.
// Children added before a failure stay in place.
func (x *Expander) Expand(ctx context.Context, i int) ([]Node, error) {
	if x.Expanded(i) {
		return nil, nil
	}
	g, local, ok := x.fs.Lookup(i)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	start := time.Now()
	term, _ := g.Term(local)
	env := Env{SourceGenerator: g.Name(), SourceTerm: term, Combined: feature.DisplayName(g, local)}
	x.indexCanonical()

	var created []Node
	for _, rule := range x.rules {
		children, err := rule.Apply(env)
		if err != nil {
			return created, err
		}
		for _, child := range children {
			if err := ctx.Err(); err != nil {
				return created, err
			}
			n, err := x.attach(ctx, i, env, rule, child)
			if err != nil {
				return created, err
			}
			created = append(created, n)
		}
	}
	x.expanded.Set(uint(i))

	added, reused := 0, 0
	for _, n := range created {
		added += n.Added
		reused += len(n.Reused)
	}
	x.opts.metrics.RecordExpansion(i, added, reused, time.Since(start))
	x.opts.logger.DebugContext(ctx, "feature expanded",
		"index", i,
		"feature", env.Combined,
		"children", len(created),
		"added", added,
		"reused", reused,
		"size", x.fs.Size(),
	)
	return created, nil
}

func (x *Expander) attach(ctx context.Context, parent int, env Env, rule Rule, child feature.Generator) (Node, error) {
	n := Node{
		ParentIndex:     parent,
		ParentGenerator: env.SourceGenerator,
		ParentTerm:      env.SourceTerm,
		Rule:            rule.Name(),
		Child:           child.Name(),
	}

	if r, exists := x.fs.Range(child.Name()); exists {
		n.Range = r
		for k := r.Start; k < r.End; k++ {
			n.Reused = append(n.Reused, k)
			if x.link(parent, k) {
				n.Linked = append(n.Linked, k)
			}
		}
		x.nodes = append(x.nodes, n)
		return n, nil
	}

	if b, ok := child.(feature.Binder); ok {
		if err := b.Bind(x.fs); err != nil {
			return n, err
		}
	}
	if c, ok := child.(feature.Concurrent); ok {
		c.SetWorkers(x.fs.Workers())
	}
	if err := child.Fit(ctx, x.init); err != nil {
		return n, err
	}

	var collided []int
	if rs, ok := child.(feature.Restrictor); ok {
		rs.Restrict(func(j int, _ string) bool {
			k, dup := x.canonical[feature.CanonicalTerm(child, j)]
			if dup {
				collided = append(collided, k)
			}
			return dup
		})
	}
	n.Reused = collided
	for _, k := range collided {
		if x.link(parent, k) {
			n.Linked = append(n.Linked, k)
		}
	}

	if err := x.fs.Add(child); err != nil {
		return n, err
	}
	r, _ := x.fs.Range(child.Name())
	n.Range = r
	n.Added = r.Len()
	for k := r.Start; k < r.End; k++ {
		if err := x.graph.AddEdge(parent, k); err != nil {
			return n, err
		}
	}
	x.indexCanonical()
	x.nodes = append(x.nodes, n)
	return n, nil
}

// link records parent -> k unless k is primitive or the edge would cycle.
func (x *Expander) link(parent, k int) bool {
	if err := x.graph.AddEdge(parent, k); err != nil {
		if !errors.Is(err, ErrPrimitiveChild) && !errors.Is(err, ErrCycle) {
			x.opts.logger.Warn("derivation edge rejected", "parent", parent, "child", k, "error", err)
		}
		return false
	}
	return true
}

// indexCanonical extends the canonical map over indices allocated since the last call.
func (x *Expander) indexCanonical() {
	size := x.fs.Size()
	for k := x.indexed; k < size; k++ {
		if name, ok := x.fs.CanonicalName(k); ok {
			if _, dup := x.canonical[name]; !dup {
				x.canonical[name] = k
			}
		}
	}
	x.indexed = size
}
