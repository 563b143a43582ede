package grammar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmunell/featurespace/data"
	"github.com/cmunell/featurespace/feature"
	"github.com/cmunell/featurespace/featureset"
)

func words(t *testing.T) *data.Dataset {
	t.Helper()
	ds, err := data.NewDataset(nil,
		data.NewExample(1, "a", "running", "fast"),
		data.NewExample(2, "a", "jumping", "running"),
		data.NewExample(3, "b", "sleeping"),
		data.NewExample(4, "b", "runner", "walking"),
	)
	require.NoError(t, err)
	return ds
}

// primitives builds [words_running, seen_jumping] over an ignored allWords source.
func primitives(t *testing.T, ds *data.Dataset, opts ...featureset.Option) *featureset.FeatureSet {
	t.Helper()
	fs := featureset.New(opts...)
	all := feature.NewNGram("allWords")
	require.NoError(t, all.SetParameterValue("ignored", "true"))
	require.NoError(t, fs.Add(all))

	w := feature.NewNGram("words")
	require.NoError(t, w.SetParameterValue("minCount", "2"))
	require.NoError(t, fs.Add(w))

	seen := feature.NewFiltered("seen", "allWords")
	require.NoError(t, feature.Apply(seen, map[string]string{"mode": "exact", "pattern": "jumping"}))
	require.NoError(t, fs.Add(seen))

	require.NoError(t, fs.Fit(context.Background(), ds))
	require.Equal(t, 2, fs.Size())
	require.Equal(t, []string{"words_running", "seen_jumping"}, fs.Names([]int{0, 1}))
	return fs
}

func affix(t *testing.T, name, mode string) *Affix {
	t.Helper()
	r := NewAffix(name)
	require.NoError(t, feature.Apply(r, map[string]string{"source": "allWords", "mode": mode, "length": "3"}))
	return r
}

func TestEnvExpand(t *testing.T) {
	env := Env{SourceGenerator: "words", SourceTerm: "running", Combined: "words_running"}
	assert.Equal(t, "f[words/running]", env.Expand("f[${SRC_GEN}/${SRC_TERM}]"))
	assert.Equal(t, "words_running!", env.Expand("${SRC}!"))
	assert.Equal(t, "plain", env.Expand("plain"))
}

func TestAffix_Apply(t *testing.T) {
	r := affix(t, "suf", feature.MatchSuffix)
	children, err := r.Apply(Env{SourceGenerator: "words", SourceTerm: "running"})
	require.NoError(t, err)
	require.Len(t, children, 1)

	f := children[0].(*feature.Filtered)
	assert.Equal(t, "suf[allWords:ing]", f.Name())
	assert.Equal(t, "allWords", f.Source())
	mode, pattern := f.Pattern()
	assert.Equal(t, feature.MatchSuffix, mode)
	assert.Equal(t, "ing", pattern)

	children, err = r.Apply(Env{SourceGenerator: "words", SourceTerm: "go"})
	require.NoError(t, err)
	assert.Empty(t, children)

	require.NoError(t, r.SetParameterValue("match", "^chars$"))
	children, err = r.Apply(Env{SourceGenerator: "words", SourceTerm: "running"})
	require.NoError(t, err)
	assert.Empty(t, children)

	err = r.SetParameterValue("mode", "contains")
	require.ErrorIs(t, err, feature.ErrInvalidValue)
}

func TestTemplate_Apply(t *testing.T) {
	r := NewTemplate("tpl", nil)
	require.NoError(t, applyParams(r, map[string]string{
		"kind":          feature.KindFiltered,
		"name":          "tpl[${SRC_TERM}]",
		"param.source":  "allWords",
		"param.mode":    "exact",
		"param.pattern": "${SRC_TERM}",
	}))
	assert.Equal(t, []string{"kind", "name", "match", "param.mode", "param.pattern", "param.source"}, r.ParameterNames())

	children, err := r.Apply(Env{SourceGenerator: "words", SourceTerm: "running"})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "tpl[running]", children[0].Name())
	v, err := children[0].ParameterValue("pattern")
	require.NoError(t, err)
	assert.Equal(t, "running", v)

	require.ErrorIs(t, r.SetParameterValue("kind", "Nope"), feature.ErrUnknownKind)
	require.ErrorIs(t, r.SetParameterValue("bogus", "x"), feature.ErrUnknownParameter)

	require.NoError(t, r.SetParameterValue("param.nope", "1"))
	_, err = r.Apply(Env{SourceGenerator: "words", SourceTerm: "running"})
	require.ErrorIs(t, err, feature.ErrUnknownParameter)
}

func TestRegistry_SpecRoundTrip(t *testing.T) {
	reg := DefaultRegistry(nil)
	assert.Equal(t, []string{KindAffix, KindTemplate}, reg.Kinds())

	r := affix(t, "pre", feature.MatchPrefix)
	spec := SpecOf(r)
	assert.Equal(t, KindAffix, spec.Kind)
	assert.Equal(t, "prefix", spec.Params["mode"])

	back, err := reg.FromSpec(spec)
	require.NoError(t, err)
	assert.Equal(t, spec, SpecOf(back))

	_, err = reg.New("Missing", "x")
	var ce *feature.ConfigurationError
	require.ErrorAs(t, err, &ce)
	require.ErrorIs(t, err, feature.ErrUnknownKind)
}

func TestGraph(t *testing.T) {
	g := NewGraph(2)
	require.NoError(t, g.AddEdge(0, 2))
	require.NoError(t, g.AddEdge(2, 3))
	require.NoError(t, g.AddEdge(1, 3))
	require.NoError(t, g.AddEdge(0, 2))

	require.ErrorIs(t, g.AddEdge(3, 1), ErrPrimitiveChild)
	require.ErrorIs(t, g.AddEdge(3, 2), ErrCycle)
	require.ErrorIs(t, g.AddEdge(3, 3), ErrCycle)

	assert.Equal(t, []int{2}, g.Children(0))
	assert.Equal(t, []int{1, 2}, g.Parents(3))
	assert.True(t, g.Reachable(0, 3))
	assert.False(t, g.Reachable(3, 0))
	assert.True(t, g.IsDerived(3))
	assert.False(t, g.IsDerived(0))
	assert.Equal(t, []int{0, 1, 2, 3}, g.Nodes())
	assert.Equal(t, [][2]int{{0, 2}, {1, 3}, {2, 3}}, g.Edges())
	assert.False(t, g.HasCycle())

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	pos := make(map[int]int)
	for k, n := range order {
		pos[n] = k
	}
	for _, e := range g.Edges() {
		assert.Less(t, pos[e[0]], pos[e[1]])
	}

	back, err := RestoreGraph(g.State())
	require.NoError(t, err)
	assert.Equal(t, g.Edges(), back.Edges())
	assert.Equal(t, 2, back.PrimitiveSize())
}

func TestExpand_AppendsChildrenAtEnd(t *testing.T) {
	ds := words(t)
	fs := primitives(t, ds)
	x := NewExpander(fs, []Rule{affix(t, "suf", feature.MatchSuffix)}, ds, 0.75)
	assert.Equal(t, 2, x.PrimitiveSize())

	cand := x.Candidates([]float64{0.9, 0.1})
	require.Equal(t, []int{0}, cand)

	nodes, err := x.Expand(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	n := nodes[0]
	assert.Equal(t, "suf[allWords:ing]", n.Child)
	assert.Equal(t, "words", n.ParentGenerator)
	assert.Equal(t, "running", n.ParentTerm)
	// "jumping" is already allocated at index 1 and gets no new slot
	assert.Equal(t, featureset.Range{Start: 2, End: 5}, n.Range)
	assert.Equal(t, 3, n.Added)
	assert.Equal(t, []int{1}, n.Reused)
	assert.Empty(t, n.Linked, "primitive indices take no parent edge")

	assert.Equal(t, 5, fs.Size())
	assert.Equal(t, []string{"suf[allWords:ing]_running", "suf[allWords:ing]_sleeping", "suf[allWords:ing]_walking"}, fs.Names([]int{2, 3, 4}))
	assert.Equal(t, []int{2, 3, 4}, x.Graph().Children(0))
	assert.True(t, x.Expanded(0))
	assert.Empty(t, x.Candidates([]float64{0.9, 0.1, 0, 0, 0}))

	e1, _ := ds.Get(1)
	assert.Equal(t, map[int]float64{0: 1, 2: 1}, fs.Vector(e1, true).Map())

	again, err := x.Expand(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.Equal(t, 5, fs.Size())
}

func TestExpand_DedupAndAcyclic(t *testing.T) {
	ds := words(t)
	fs := primitives(t, ds)
	x := NewExpander(fs, []Rule{
		affix(t, "suf", feature.MatchSuffix),
		affix(t, "pre", feature.MatchPrefix),
	}, ds, 0.75)
	ctx := context.Background()

	nodes, err := x.Expand(ctx, 0)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, featureset.Range{Start: 2, End: 5}, nodes[0].Range)
	// "running" was just allocated by the suffix child
	assert.Equal(t, featureset.Range{Start: 5, End: 6}, nodes[1].Range)
	assert.Equal(t, []int{2}, nodes[1].Reused)
	assert.Equal(t, []int{2}, nodes[1].Linked)
	assert.Equal(t, "pre[allWords:run]_runner", fs.Name(5))

	// re-deriving an existing child by name records edges instead of slots
	nodes, err = x.Expand(ctx, 2)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Zero(t, nodes[0].Added+nodes[1].Added)
	assert.Equal(t, []int{2, 3, 4}, nodes[0].Reused)
	assert.Equal(t, []int{3, 4}, nodes[0].Linked, "2 -> 2 is a self loop")
	assert.Equal(t, 6, fs.Size())

	nodes, err = x.Expand(ctx, 3)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, []int{2, 3, 4}, nodes[0].Reused)
	assert.Equal(t, []int{4}, nodes[0].Linked, "3 -> 2 would close 2 -> 3")
	assert.Equal(t, 0, nodes[1].Added)

	assert.False(t, x.Graph().HasCycle())
	for _, e := range x.Graph().Edges() {
		assert.GreaterOrEqual(t, e[1], x.PrimitiveSize())
	}
	assert.Equal(t, 3, x.NumExpanded())

	_, err = x.Expand(ctx, 99)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

// workerChild records the worker count in effect when Fit runs.
type workerChild struct {
	*feature.Filtered
	fitWorkers int
	workers    int
}

func (c *workerChild) SetWorkers(n int) {
	c.workers = n
	c.Filtered.SetWorkers(n)
}

func (c *workerChild) Fit(ctx context.Context, init *data.Dataset) error {
	c.fitWorkers = c.workers
	return c.Filtered.Fit(ctx, init)
}

type workerRule struct {
	*Affix
	children []*workerChild
}

func (r *workerRule) Apply(env Env) ([]feature.Generator, error) {
	gens, err := r.Affix.Apply(env)
	if err != nil {
		return nil, err
	}
	for i, g := range gens {
		c := &workerChild{Filtered: g.(*feature.Filtered)}
		r.children = append(r.children, c)
		gens[i] = c
	}
	return gens, nil
}

func TestExpand_ChildFitsWithCompositionWorkers(t *testing.T) {
	ds := words(t)
	fs := primitives(t, ds, featureset.WithMaxWorkers(3))
	rule := &workerRule{Affix: affix(t, "suf", feature.MatchSuffix)}
	x := NewExpander(fs, []Rule{rule}, ds, 0.75)

	nodes, err := x.Expand(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Len(t, rule.children, 1)
	assert.Equal(t, 3, rule.children[0].fitWorkers)
	assert.Equal(t, 5, fs.Size())
}

func TestExpander_StateRoundTrip(t *testing.T) {
	ds := words(t)
	fs := primitives(t, ds)
	x := NewExpander(fs, []Rule{affix(t, "suf", feature.MatchSuffix)}, ds, 0.75)
	_, err := x.Expand(context.Background(), 0)
	require.NoError(t, err)

	rfs, err := featureset.Restore(fs.State(), nil)
	require.NoError(t, err)
	rx, err := RestoreExpander(x.State(), rfs, nil, ds)
	require.NoError(t, err)

	assert.Equal(t, x.PrimitiveSize(), rx.PrimitiveSize())
	assert.Equal(t, x.Nodes(), rx.Nodes())
	assert.Equal(t, x.Graph().Edges(), rx.Graph().Edges())
	assert.True(t, rx.Expanded(0))
	assert.Equal(t, 0.75, rx.Threshold())
	require.Len(t, rx.Rules(), 1)
	assert.Equal(t, SpecOf(x.Rules()[0]), SpecOf(rx.Rules()[0]))

	for _, e := range ds.Examples() {
		assert.True(t, fs.Vector(e, false).Equal(rfs.Vector(e, false)))
	}
}
