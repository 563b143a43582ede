package feature

import (
	"context"
	"fmt"
	"strings"

	"github.com/cmunell/featurespace/data"
	"github.com/cmunell/featurespace/internal/cache"
	"github.com/cmunell/featurespace/internal/parallel"
	"github.com/cmunell/featurespace/sparse"
)

// KindFiltered is the registry kind of Filtered.
const KindFiltered = "Filtered"

// Match modes of Filtered.
const (
	MatchPrefix   = "prefix"
	MatchSuffix   = "suffix"
	MatchContains = "contains"
	MatchExact    = "exact"
)

// Filtered is a view of a source generator's vocabulary restricted to terms
// matching a pattern and occurring at least minCount times in the init set.
// The source is resolved by reference and is usually an ignored, pre-fitted
// generator with a large vocabulary.
//
// Per-example results are cached by example key (dataset and id), since rule-derived children
// are evaluated on the same training examples at every gradient step.
type Filtered struct {
	*ParamSet

	name     string
	source   string
	mode     string
	pattern  string
	minCount int
	ignored  bool

	workers int
	src     Generator
	vocab   *Vocabulary
	// srcIndex maps local index -> source local index.
	srcIndex []int
	local    map[int]int
	results  *cache.Sharded[data.Key, sparse.Vector]
	binary   string
}

var (
	_ Generator      = (*Filtered)(nil)
	_ Binder         = (*Filtered)(nil)
	_ Restrictor     = (*Filtered)(nil)
	_ CanonicalNamer = (*Filtered)(nil)
)

// NewFiltered creates an unfitted filtered view of the named source.
func NewFiltered(name, source string) *Filtered {
	g := &Filtered{
		name:     name,
		source:   source,
		mode:     MatchPrefix,
		minCount: 1,
		results:  cache.NewSharded[data.Key, sparse.Vector](),
	}
	g.ParamSet = g.params()
	return g
}

func (g *Filtered) params() *ParamSet {
	p := NewParamSet(g.name)
	p.String("source", &g.source)
	p.Enum("mode", &g.mode, MatchPrefix, MatchSuffix, MatchContains, MatchExact)
	p.String("pattern", &g.pattern)
	p.Int("minCount", &g.minCount, 0)
	p.Bool("ignored", &g.ignored)
	p.FreezeWhen(g.Fitted)
	return p
}

func (g *Filtered) Name() string  { return g.name }
func (g *Filtered) Kind() string  { return KindFiltered }
func (g *Filtered) Ignored() bool { return g.ignored }
func (g *Filtered) Fitted() bool  { return g.vocab != nil }
func (g *Filtered) Size() int     { return g.vocab.Size() }

// Source returns the source reference name.
func (g *Filtered) Source() string { return g.source }

// Pattern returns the match mode and pattern.
func (g *Filtered) Pattern() (mode, pattern string) { return g.mode, g.pattern }

// SetWorkers sets the fit parallelism.
func (g *Filtered) SetWorkers(n int) { g.workers = n }

func (g *Filtered) Term(i int) (string, bool) { return g.vocab.Term(i) }

func (g *Filtered) TermIndex(term string) (int, bool) { return g.vocab.Index(term) }

// CanonicalTerm identifies the source feature a local term is a view of.
func (g *Filtered) CanonicalTerm(i int) string {
	if g.src != nil && i >= 0 && i < len(g.srcIndex) {
		return CanonicalTerm(g.src, g.srcIndex[i])
	}
	t, _ := g.vocab.Term(i)
	return g.source + "_" + t
}

// Bind resolves the source generator.
func (g *Filtered) Bind(r Resolver) error {
	if g.source == "" {
		return NewConfigurationError(g.name, "source", "", fmt.Errorf("%w: empty reference", ErrSourceUnavailable))
	}
	src, ok := r.Generator(g.source)
	if !ok {
		return NewConfigurationError(g.name, "source", g.source, ErrSourceUnavailable)
	}
	g.src = src
	if g.vocab != nil && g.srcIndex == nil {
		g.rebuildIndex()
	}
	return nil
}

func (g *Filtered) matches(term string) bool {
	switch g.mode {
	case MatchSuffix:
		return strings.HasSuffix(term, g.pattern)
	case MatchContains:
		return strings.Contains(term, g.pattern)
	case MatchExact:
		return term == g.pattern
	default:
		return strings.HasPrefix(term, g.pattern)
	}
}

// Fit selects the matching source terms seen at least minCount times in init.
// The local vectors of init's examples are cached as a side effect.
func (g *Filtered) Fit(ctx context.Context, init *data.Dataset) error {
	if init.Len() == 0 {
		return NewFitError(g.name, ErrEmptyDataset)
	}
	if g.src == nil || !g.src.Fitted() {
		return NewFitError(g.name, fmt.Errorf("%w: %q", ErrSourceUnavailable, g.source))
	}

	var candidates []int
	for i := range g.src.Size() {
		if t, ok := g.src.Term(i); ok && g.matches(t) {
			candidates = append(candidates, i)
		}
	}
	candidateSet := make(map[int]struct{}, len(candidates))
	for _, i := range candidates {
		candidateSet[i] = struct{}{}
	}

	parts, err := parallel.MapChunks(ctx, init.Examples(), g.workers, func(ctx context.Context, _ parallel.Chunk, part []*data.Example) (map[int]int, error) {
		counts := make(map[int]int)
		var b sparse.Builder
		for _, e := range part {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			b.Reset()
			g.src.Compute(e, 0, &b)
			b.Build(g.src.Size()).Each(func(i int, _ float64) {
				if _, ok := candidateSet[i]; ok {
					counts[i]++
				}
			})
		}
		return counts, nil
	})
	if err != nil {
		return NewFitError(g.name, err)
	}
	total := make(map[int]int)
	for _, p := range parts {
		for i, n := range p {
			total[i] += n
		}
	}

	var terms []string
	var srcIndex []int
	for _, i := range candidates {
		if total[i] >= g.minCount {
			t, _ := g.src.Term(i)
			terms = append(terms, t)
			srcIndex = append(srcIndex, i)
		}
	}
	if terms == nil {
		terms = []string{}
	}
	g.vocab = NewVocabulary(terms)
	g.setIndex(srcIndex)
	g.results.Clear()

	return parallel.ForEach(ctx, init.Examples(), g.workers, func(_ context.Context, e *data.Example) error {
		g.results.Store(e.Key(), g.localVector(e))
		return nil
	})
}

func (g *Filtered) setIndex(srcIndex []int) {
	g.srcIndex = srcIndex
	g.local = make(map[int]int, len(srcIndex))
	for l, s := range srcIndex {
		g.local[s] = l
	}
}

// rebuildIndex recovers the source mapping of a restored vocabulary.
func (g *Filtered) rebuildIndex() {
	srcIndex := make([]int, 0, g.vocab.Size())
	var keep []string
	for i := range g.vocab.Size() {
		t, _ := g.vocab.Term(i)
		if s, ok := g.src.TermIndex(t); ok {
			srcIndex = append(srcIndex, s)
			keep = append(keep, t)
		}
	}
	if len(keep) != g.vocab.Size() {
		g.vocab = NewVocabulary(keep)
	}
	g.setIndex(srcIndex)
}

func (g *Filtered) localVector(e *data.Example) sparse.Vector {
	if g.src == nil || g.vocab.Size() == 0 {
		return sparse.New(g.vocab.Size())
	}
	var b, out sparse.Builder
	g.src.Compute(e, 0, &b)
	b.Build(g.src.Size()).Each(func(i int, x float64) {
		if l, ok := g.local[i]; ok {
			out.Set(l, x)
		}
	})
	return out.Build(g.vocab.Size())
}

// Compute adds the filtered source features of ex.
func (g *Filtered) Compute(ex *data.Example, offset int, dst *sparse.Builder) {
	if g.vocab == nil || ex == nil {
		return
	}
	key := ex.Key()
	if !key.Cacheable() {
		g.localVector(ex).Each(func(i int, x float64) { dst.Set(offset+i, x) })
		return
	}
	v, ok := g.results.Get(key)
	if !ok {
		v = g.localVector(ex)
		v, _ = g.results.LoadOrStore(key, v)
	}
	v.Each(func(i int, x float64) { dst.Set(offset+i, x) })
}

// Restrict removes local terms before the generator is allocated a range.
func (g *Filtered) Restrict(drop func(i int, term string) bool) int {
	if g.vocab == nil {
		return 0
	}
	vocab, kept := g.vocab.Restrict(func(i int, t string) bool { return !drop(i, t) })
	if len(kept) == g.vocab.Size() {
		return len(kept)
	}
	srcIndex := make([]int, len(kept))
	for k, i := range kept {
		srcIndex[k] = g.srcIndex[i]
	}
	g.vocab = vocab
	g.setIndex(srcIndex)
	g.results.Clear()
	return len(kept)
}

// MakeBinary returns a clone sharing the vocabulary and result cache.
// The clone is rebound when added to a composition.
func (g *Filtered) MakeBinary(ind data.LabelIndicator) Generator {
	c := &Filtered{
		name:     g.name,
		source:   g.source,
		mode:     g.mode,
		pattern:  g.pattern,
		minCount: g.minCount,
		ignored:  g.ignored,
		workers:  g.workers,
		src:      g.src,
		vocab:    g.vocab.Share(),
		srcIndex: g.srcIndex,
		local:    g.local,
		results:  g.results,
		binary:   ind.Name,
	}
	c.ParamSet = c.params()
	return c
}

func (g *Filtered) State() *State {
	s := &State{
		Kind:   KindFiltered,
		Name:   g.name,
		Params: g.Values(),
		Terms:  g.vocab.Terms(),
		Binary: g.binary,
	}
	if g.srcIndex != nil {
		s.Extra = map[string][]int{"source": g.srcIndex}
	}
	return s
}

func (g *Filtered) Restore(s *State) error {
	if s == nil {
		return nil
	}
	g.vocab = nil
	g.srcIndex = nil
	if err := Apply(g, s.Params); err != nil {
		return err
	}
	g.binary = s.Binary
	g.results.Clear()
	if s.Fitted() {
		g.vocab = NewVocabulary(s.Terms)
		if idx := s.Extra["source"]; len(idx) == len(s.Terms) {
			g.setIndex(idx)
		}
	}
	return nil
}
