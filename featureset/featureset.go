package featureset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cmunell/featurespace/data"
	"github.com/cmunell/featurespace/feature"
	"github.com/cmunell/featurespace/internal/cache"
	"github.com/cmunell/featurespace/internal/parallel"
	"github.com/cmunell/featurespace/sparse"
)

// Range is the half-open global index range [Start, End) owned by a generator.
// Unallocated (ignored or not yet fitted) generators have Start = End = -1.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

var unallocated = Range{Start: -1, End: -1}

// Len returns the number of indices in the range.
func (r Range) Len() int { return max(r.End-r.Start, 0) }

// Allocated reports whether the range is backed by global indices.
func (r Range) Allocated() bool { return r.Start >= 0 }

// Contains reports whether global index i is in the range.
func (r Range) Contains(i int) bool { return i >= r.Start && i < r.End }

// layout is an immutable snapshot of the index space. Structural changes
// publish a new layout, so readers never lock.
type layout struct {
	gens   []feature.Generator
	ranges []Range
	// alloc lists positions of allocated generators by ascending Start.
	alloc []int
	size  int
}

func (l *layout) clone() *layout {
	return &layout{
		gens:   append([]feature.Generator(nil), l.gens...),
		ranges: append([]Range(nil), l.ranges...),
		alloc:  append([]int(nil), l.alloc...),
		size:   l.size,
	}
}

type cachedVector struct {
	vec   sparse.Vector
	owner uint64
	upto  int
}

var nextID atomic.Uint64

// FeatureSet is an ordered composition of generators sharing one global index space.
//
// Structural changes (Add, Fit, Invalidate) must not race with each other;
// Vector, RangeVector, Names and Lookup are safe for concurrent use with each
// other and observe a consistent snapshot.
type FeatureSet struct {
	mu     sync.Mutex
	id     uint64
	layout atomic.Pointer[layout]
	byName map[string]int

	vectors *cache.Sharded[data.Key, cachedVector]
	names   *cache.Sharded[int, string]
	flight  singleflight.Group

	// peers maps the id of a feature set sharing this cache to the size of the
	// index prefix both have in common.
	peersMu sync.RWMutex
	peers   map[uint64]int

	binary string
	opts   options
}

var _ feature.Resolver = (*FeatureSet)(nil)

// New creates an empty feature set.
func New(opts ...Option) *FeatureSet {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	fs := &FeatureSet{
		id:     nextID.Add(1),
		byName: make(map[string]int),
		names:  cache.NewSharded[int, string](),
		peers:  make(map[uint64]int),
		opts:   o,
	}
	fs.vectors = newVectorCache(o)
	fs.layout.Store(&layout{})
	return fs
}

func newVectorCache(o options) *cache.Sharded[data.Key, cachedVector] {
	return cache.NewSharded[data.Key, cachedVector](
		cache.WithCapacity[cachedVector](o.cacheCapacity),
		cache.WithController[cachedVector](o.rc),
		cache.WithSizeFunc(func(cv cachedVector) int64 { return int64(48 + 16*cv.vec.Len()) }),
	)
}

// Add appends g. Ignored generators get no range. Generators composing by
// reference are bound against the generators already present. g receives its
// range immediately if it and every earlier generator is fitted, otherwise at Fit.
func (fs *FeatureSet) Add(g feature.Generator) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if g == nil {
		return feature.NewConfigurationError("featureset", "generator", "", fmt.Errorf("nil generator"))
	}
	if _, dup := fs.byName[g.Name()]; dup {
		return feature.NewConfigurationError(g.Name(), "name", g.Name(), fmt.Errorf("duplicate generator reference"))
	}
	if b, ok := g.(feature.Binder); ok {
		if err := b.Bind(fs); err != nil {
			return err
		}
	}
	if c, ok := g.(feature.Concurrent); ok {
		c.SetWorkers(fs.opts.workers)
	}

	l := fs.layout.Load().clone()
	fs.byName[g.Name()] = len(l.gens)
	l.gens = append(l.gens, g)
	l.ranges = append(l.ranges, unallocated)
	fs.allocate(l)
	fs.layout.Store(l)
	return nil
}

// allocate assigns ranges in add order up to the first unfitted non-ignored generator.
func (fs *FeatureSet) allocate(l *layout) {
	for i, g := range l.gens {
		if l.ranges[i].Allocated() || g.Ignored() {
			continue
		}
		if !g.Fitted() {
			return
		}
		l.ranges[i] = Range{Start: l.size, End: l.size + g.Size()}
		l.size += g.Size()
		l.alloc = append(l.alloc, i)
	}
}

// Fit fits every unfitted generator against init in add order and allocates
// their ranges. The first failure aborts and is returned.
func (fs *FeatureSet) Fit(ctx context.Context, init *data.Dataset) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	l := fs.layout.Load()
	for _, g := range l.gens {
		if g.Fitted() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		err := g.Fit(ctx, init)
		fs.opts.metrics.RecordFit(g.Name(), g.Size(), time.Since(start), err)
		if err != nil {
			fs.opts.logger.ErrorContext(ctx, "generator fit failed", "generator", g.Name(), "error", err)
			return err
		}
		fs.opts.logger.DebugContext(ctx, "generator fitted",
			"generator", g.Name(),
			"kind", g.Kind(),
			"size", g.Size(),
			"ignored", g.Ignored(),
			"duration", time.Since(start),
		)
	}

	nl := l.clone()
	fs.allocate(nl)
	fs.layout.Store(nl)
	fs.opts.logger.InfoContext(ctx, "feature set fitted", "generators", len(nl.gens), "size", nl.size)
	return nil
}

// Size returns the total number of allocated global indices.
func (fs *FeatureSet) Size() int { return fs.layout.Load().size }

// Generators returns the generators in add order.
func (fs *FeatureSet) Generators() []feature.Generator {
	return append([]feature.Generator(nil), fs.layout.Load().gens...)
}

// Ranges returns the range of every generator in add order.
func (fs *FeatureSet) Ranges() []Range {
	return append([]Range(nil), fs.layout.Load().ranges...)
}

// Generator returns the generator with the given reference name, including ignored ones.
func (fs *FeatureSet) Generator(name string) (feature.Generator, bool) {
	l := fs.layout.Load()
	for _, g := range l.gens {
		if g.Name() == name {
			return g, true
		}
	}
	return nil, false
}

// Range returns the range of the named generator.
func (fs *FeatureSet) Range(name string) (Range, bool) {
	l := fs.layout.Load()
	for i, g := range l.gens {
		if g.Name() == name {
			return l.ranges[i], true
		}
	}
	return Range{}, false
}

// Lookup resolves global index i to its owning generator and local index.
func (fs *FeatureSet) Lookup(i int) (feature.Generator, int, bool) {
	l := fs.layout.Load()
	if i < 0 || i >= l.size {
		return nil, 0, false
	}
	k := sort.Search(len(l.alloc), func(k int) bool { return l.ranges[l.alloc[k]].End > i })
	if k == len(l.alloc) {
		return nil, 0, false
	}
	pos := l.alloc[k]
	return l.gens[pos], i - l.ranges[pos].Start, true
}

// Vector returns the fully composed vector of ex with dimension Size().
// With useCache, a cached vector is returned when present; otherwise it is
// computed and, if admitted by the cache, stored. Entries are keyed by the
// example's dataset and id; examples outside any dataset are never cached.
func (fs *FeatureSet) Vector(ex *data.Example, useCache bool) sparse.Vector {
	l := fs.layout.Load()
	key := ex.Key()
	if !useCache || !key.Cacheable() {
		return fs.compute(l, ex, 0, l.size)
	}

	if cv, ok := fs.vectors.Get(key); ok {
		if v, ok := fs.reuse(l, ex, cv); ok {
			return v
		}
	}
	fs.opts.metrics.RecordCache(false)

	flightKey := strconv.FormatUint(key.Source, 10) + "/" + strconv.Itoa(key.ID) + "@" + strconv.Itoa(l.size)
	r, _, _ := fs.flight.Do(flightKey, func() (any, error) {
		if cv, ok := fs.vectors.Get(key); ok {
			if v, ok := fs.reuse(l, ex, cv); ok {
				return v, nil
			}
		}
		v := fs.compute(l, ex, 0, l.size)
		fs.vectors.Store(key, cachedVector{vec: v, owner: fs.id, upto: l.size})
		return v, nil
	})
	return r.(sparse.Vector)
}

// reuse returns a cached entry, extending a stale prefix over newly appended indices.
func (fs *FeatureSet) reuse(l *layout, ex *data.Example, cv cachedVector) (sparse.Vector, bool) {
	if cv.owner != fs.id {
		fs.peersMu.RLock()
		prefix, ok := fs.peers[cv.owner]
		fs.peersMu.RUnlock()
		if !ok || cv.upto > prefix {
			return sparse.Vector{}, false
		}
	}
	switch {
	case cv.upto == l.size:
		fs.opts.metrics.RecordCache(true)
		return cv.vec, true
	case cv.upto < l.size:
		tail := fs.compute(l, ex, cv.upto, l.size)
		v := cv.vec.Extend(tail, l.size)
		fs.vectors.Store(ex.Key(), cachedVector{vec: v, owner: fs.id, upto: l.size})
		fs.opts.metrics.RecordCache(true)
		return v, true
	default:
		return sparse.Vector{}, false
	}
}

// compute evaluates the generators overlapping [lo, hi) and returns the
// entries in [lo, hi) with global indices and dimension l.size. Straddling
// generators are computed fully and filtered.
func (fs *FeatureSet) compute(l *layout, ex *data.Example, lo, hi int) sparse.Vector {
	var b sparse.Builder
	for _, pos := range l.alloc {
		r := l.ranges[pos]
		if r.End <= lo || r.Start >= hi {
			continue
		}
		l.gens[pos].Compute(ex, r.Start, &b)
	}
	v := b.Build(l.size)
	if lo > 0 || hi < l.size {
		v = v.Filter(lo, hi)
	}
	return v
}

// RangeVector returns the entries of Vector(ex) in [lo, hi) rebased to [0, hi-lo).
// Bounds are clamped to [0, Size()].
func (fs *FeatureSet) RangeVector(ex *data.Example, lo, hi int) sparse.Vector {
	l := fs.layout.Load()
	lo = min(max(lo, 0), l.size)
	hi = min(max(hi, lo), l.size)
	if key := ex.Key(); key.Cacheable() {
		if cv, ok := fs.vectors.Get(key); ok && cv.owner == fs.id && cv.upto == l.size {
			return cv.vec.Slice(lo, hi)
		}
	}
	return fs.compute(l, ex, lo, hi).Slice(lo, hi)
}

// Name resolves global index i to "generatorRef_term".
func (fs *FeatureSet) Name(i int) string {
	name, err := fs.names.GetOrCompute(i, func() (string, error) {
		g, local, ok := fs.Lookup(i)
		if !ok {
			return "", errUnallocated
		}
		return feature.DisplayName(g, local), nil
	})
	if err != nil {
		return "<" + strconv.Itoa(i) + ">"
	}
	return name
}

var errUnallocated = errors.New("index not allocated")

// Names resolves global indices to display names.
func (fs *FeatureSet) Names(indices []int) []string {
	out := make([]string, len(indices))
	for k, i := range indices {
		out[k] = fs.Name(i)
	}
	return out
}

// CanonicalName returns the identity of the feature at global index i, used to
// detect the same underlying feature reached through different generators.
func (fs *FeatureSet) CanonicalName(i int) (string, bool) {
	g, local, ok := fs.Lookup(i)
	if !ok {
		return "", false
	}
	return feature.CanonicalTerm(g, local), true
}

// Precompute fills the vector cache for every example of ds in parallel.
func (fs *FeatureSet) Precompute(ctx context.Context, ds *data.Dataset) error {
	start := time.Now()
	err := parallel.ForEach(ctx, ds.Examples(), fs.opts.workers, func(_ context.Context, e *data.Example) error {
		fs.Vector(e, true)
		return nil
	}, parallel.WithController(fs.opts.rc))
	if err != nil {
		return err
	}
	fs.opts.logger.DebugContext(ctx, "vectors precomputed", "examples", ds.Len(), "size", fs.Size(), "duration", time.Since(start))
	return nil
}

// Invalidate drops every cached vector and name.
func (fs *FeatureSet) Invalidate() {
	fs.vectors.Clear()
	fs.names.Clear()
}

// CacheStats returns vector cache statistics.
func (fs *FeatureSet) CacheStats() cache.Stats { return fs.vectors.Stats() }

// Workers returns the configured parallelism.
func (fs *FeatureSet) Workers() int { return fs.opts.workers }

// Binary returns the label indicator name of a binarized set ("" otherwise).
func (fs *FeatureSet) Binary() string { return fs.binary }

// Clone returns a feature set with the same generators and ranges. With
// shareCache both sets read and write one vector cache; entries stay valid for
// the index prefix the two sets have in common.
func (fs *FeatureSet) Clone(shareCache bool) *FeatureSet {
	return fs.derive(func(g feature.Generator) feature.Generator { return g }, shareCache, fs.binary)
}

// MakeBinary returns a feature set of binarized generators with the same ranges.
// Fitted vocabularies are shared, not recomputed.
func (fs *FeatureSet) MakeBinary(ind data.LabelIndicator, shareCache bool) (*FeatureSet, error) {
	out := fs.derive(func(g feature.Generator) feature.Generator { return g.MakeBinary(ind) }, shareCache, ind.Name)
	for _, g := range out.layout.Load().gens {
		if b, ok := g.(feature.Binder); ok {
			if err := b.Bind(out); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (fs *FeatureSet) derive(conv func(feature.Generator) feature.Generator, shareCache bool, binary string) *FeatureSet {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	l := fs.layout.Load().clone()
	for i, g := range l.gens {
		l.gens[i] = conv(g)
	}

	out := &FeatureSet{
		id:     nextID.Add(1),
		byName: make(map[string]int, len(fs.byName)),
		names:  cache.NewSharded[int, string](),
		peers:  make(map[uint64]int),
		binary: binary,
		opts:   fs.opts,
	}
	for k, v := range fs.byName {
		out.byName[k] = v
	}
	out.layout.Store(l)

	if shareCache {
		out.vectors = fs.vectors
		fs.peersMu.Lock()
		for id, prefix := range fs.peers {
			out.peers[id] = prefix
		}
		fs.peers[out.id] = l.size
		fs.peersMu.Unlock()
		out.peers[fs.id] = l.size
	} else {
		out.vectors = fs.vectors.Copy()
		// copied entries were produced by fs over the common prefix
		out.peers[fs.id] = l.size
	}
	return out
}
