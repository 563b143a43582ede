package featureset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmunell/featurespace/data"
	"github.com/cmunell/featurespace/feature"
	"github.com/cmunell/featurespace/testutil"
)

func scenario(t *testing.T) (*FeatureSet, *testutil.Static, *testutil.Static, *data.Example) {
	t.Helper()
	g1 := testutil.FittedStatic("g1", []string{"a", "b", "c"}, map[int]map[int]float64{1: {0: 1.0, 2: 0.5}})
	g2 := testutil.FittedStatic("g2", []string{"x", "y"}, map[int]map[int]float64{1: {0: 1.0}})
	fs := New()
	require.NoError(t, fs.Add(g1))
	require.NoError(t, fs.Add(g2))
	return fs, g1, g2, bound(t, data.NewExample(1, "a"))[0]
}

// bound adds examples to a fresh dataset so they are cacheable.
func bound(t *testing.T, examples ...*data.Example) []*data.Example {
	t.Helper()
	ds, err := data.NewDataset(nil, examples...)
	require.NoError(t, err)
	return ds.Examples()
}

func TestVector_Composition(t *testing.T) {
	fs, _, _, e1 := scenario(t)

	assert.Equal(t, 5, fs.Size())
	assert.Equal(t, []Range{{0, 3}, {3, 5}}, fs.Ranges())

	v := fs.Vector(e1, false)
	assert.Equal(t, 5, v.Dim())
	assert.Equal(t, map[int]float64{0: 1.0, 2: 0.5, 3: 1.0}, v.Map())
	assert.Equal(t, "{0:1, 2:0.5, 3:1}", v.String())
}

func TestRangeVector(t *testing.T) {
	fs, _, _, e1 := scenario(t)

	rv := fs.RangeVector(e1, 2, 4)
	assert.Equal(t, 2, rv.Dim())
	assert.Equal(t, map[int]float64{0: 0.5, 1: 1.0}, rv.Map())

	// equals the slice of the full vector for every range, cached or not
	full := fs.Vector(e1, false)
	for lo := 0; lo <= 5; lo++ {
		for hi := lo; hi <= 5; hi++ {
			want := full.Slice(lo, hi)
			assert.True(t, want.Equal(fs.RangeVector(e1, lo, hi)), "[%d,%d)", lo, hi)
		}
	}
	fs.Vector(e1, true)
	for lo := 0; lo <= 5; lo++ {
		assert.True(t, full.Slice(lo, 5).Equal(fs.RangeVector(e1, lo, 5)))
	}

	assert.Equal(t, 0, fs.RangeVector(e1, 4, 2).Len())
	assert.Equal(t, 5, fs.RangeVector(e1, -3, 99).Dim())
}

func TestRangesDisjointAndContiguous(t *testing.T) {
	fs := New()
	sizes := []int{3, 0, 4, 1, 7}
	for i, n := range sizes {
		terms := make([]string, n)
		for k := range terms {
			terms[k] = fmt.Sprintf("t%d", k)
		}
		g := testutil.FittedStatic(fmt.Sprintf("g%d", i), terms, nil)
		if i == 3 {
			g.SetIgnored(true)
		}
		require.NoError(t, fs.Add(g))
	}

	next := 0
	for i, r := range fs.Ranges() {
		if i == 3 {
			assert.False(t, r.Allocated())
			continue
		}
		assert.Equal(t, next, r.Start)
		assert.Equal(t, sizes[i], r.Len())
		next = r.End
	}
	assert.Equal(t, next, fs.Size())

	for i := range fs.Size() {
		g, local, ok := fs.Lookup(i)
		require.True(t, ok)
		r, _ := fs.Range(g.Name())
		assert.True(t, r.Contains(i))
		assert.Equal(t, i-r.Start, local)
	}
	_, _, ok := fs.Lookup(fs.Size())
	assert.False(t, ok)
}

func TestIgnoredGeneratorResolvable(t *testing.T) {
	fs := New()
	src := testutil.FittedStatic("src", []string{"a"}, map[int]map[int]float64{1: {0: 1}})
	src.SetIgnored(true)
	require.NoError(t, fs.Add(src))

	assert.Equal(t, 0, fs.Size())
	g, ok := fs.Generator("src")
	require.True(t, ok)
	assert.Same(t, src, g)
	assert.Equal(t, 0, fs.Vector(data.NewExample(1, ""), false).Len())
}

func TestAdd_Validation(t *testing.T) {
	fs := New()
	require.NoError(t, fs.Add(testutil.FittedStatic("g", nil, nil)))

	err := fs.Add(testutil.FittedStatic("g", nil, nil))
	var ce *feature.ConfigurationError
	require.ErrorAs(t, err, &ce)

	err = fs.Add(feature.NewFiltered("f", "missing"))
	require.ErrorIs(t, err, feature.ErrSourceUnavailable)
	assert.Len(t, fs.Generators(), 1)
}

func TestFit_AllocatesInAddOrder(t *testing.T) {
	ds, err := data.NewDataset(nil, data.NewExample(1, "a", "x"))
	require.NoError(t, err)

	fs := New()
	pre := testutil.FittedStatic("pre", []string{"p"}, nil)
	late := testutil.NewStatic("late", []string{"l1", "l2"}, nil)
	after := testutil.FittedStatic("after", []string{"q"}, nil)
	require.NoError(t, fs.Add(pre))
	require.NoError(t, fs.Add(late))
	require.NoError(t, fs.Add(after))

	// "after" waits for "late" so indices follow add order
	assert.Equal(t, 1, fs.Size())
	r, _ := fs.Range("after")
	assert.False(t, r.Allocated())

	require.NoError(t, fs.Fit(context.Background(), ds))
	assert.Equal(t, []Range{{0, 1}, {1, 3}, {3, 4}}, fs.Ranges())
	assert.EqualValues(t, 0, pre.Fits())
	assert.EqualValues(t, 1, late.Fits())
}

func TestFit_Errors(t *testing.T) {
	ds, err := data.NewDataset(nil, data.NewExample(1, "a", "x"))
	require.NoError(t, err)

	boom := errors.New("boom")
	g := testutil.NewStatic("g", []string{"a"}, nil)
	g.FailFit(boom)
	fs := New()
	require.NoError(t, fs.Add(g))

	err = fs.Fit(context.Background(), ds)
	var fe *feature.FitError
	require.ErrorAs(t, err, &fe)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, fs.Size())

	empty, err := data.NewDataset(nil)
	require.NoError(t, err)
	fs2 := New()
	require.NoError(t, fs2.Add(testutil.NewStatic("h", []string{"a"}, nil)))
	require.ErrorIs(t, fs2.Fit(context.Background(), empty), feature.ErrEmptyDataset)
}

func TestVector_CacheIdempotent(t *testing.T) {
	fs, g1, g2, e1 := scenario(t)

	first := fs.Vector(e1, true)
	calls := g1.Computes() + g2.Computes()
	for range 5 {
		assert.True(t, first.Equal(fs.Vector(e1, true)))
	}
	assert.Equal(t, calls, g1.Computes()+g2.Computes())
	assert.True(t, first.Equal(fs.Vector(e1, false)))

	st := fs.CacheStats()
	assert.Equal(t, 1, st.Entries)
	assert.GreaterOrEqual(t, st.Hits, int64(5))

	fs.Invalidate()
	assert.Equal(t, 0, fs.CacheStats().Entries)
}

func TestVector_ConcurrentReaders(t *testing.T) {
	fs, g1, _, _ := scenario(t)
	examples := make([]*data.Example, 50)
	for i := range examples {
		examples[i] = data.NewExample(i+1, "")
	}
	bound(t, examples...)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, e := range examples {
				fs.Vector(e, true)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, len(examples), fs.CacheStats().Entries)
	assert.LessOrEqual(t, g1.Computes(), int64(8*len(examples)))
	assert.Equal(t, map[int]float64{0: 1.0, 2: 0.5, 3: 1.0}, fs.Vector(examples[0], true).Map())
}

func TestVector_DatasetsReusingIDs(t *testing.T) {
	ctx := context.Background()
	train, err := data.NewDataset(nil,
		data.NewExample(1, data.True, "good", "great"),
		data.NewExample(2, data.False, "bad", "awful"),
	)
	require.NoError(t, err)
	fs := New()
	require.NoError(t, fs.Add(feature.NewNGram("words")))
	require.NoError(t, fs.Fit(ctx, train))
	require.NoError(t, fs.Precompute(ctx, train))

	first, _ := train.Get(1)
	assert.Equal(t, map[int]float64{2: 1, 3: 1}, fs.Vector(first, true).Map())

	// a different example under the same id in another dataset
	test, err := data.NewDataset(nil, data.NewExample(1, data.False, "bad", "awful"))
	require.NoError(t, err)
	other, _ := test.Get(1)
	assert.NotEqual(t, first.Key(), other.Key())
	assert.Equal(t, map[int]float64{0: 1, 1: 1}, fs.Vector(other, true).Map())
	assert.Equal(t, map[int]float64{0: 1, 1: 1}, fs.RangeVector(other, 0, 4).Map())
	assert.Equal(t, map[int]float64{2: 1, 3: 1}, fs.Vector(first, true).Map())

	// binarized examples keep their dataset identity
	assert.Equal(t, first.Key(), first.WithLabel(data.Indicator(data.True)).Key())
}

func TestVector_LooseExampleNotCached(t *testing.T) {
	fs, g1, _, _ := scenario(t)
	loose := data.NewExample(1, "a")
	assert.False(t, loose.Key().Cacheable())

	calls := g1.Computes()
	fs.Vector(loose, true)
	fs.Vector(loose, true)
	assert.Equal(t, calls+2, g1.Computes())
	assert.Equal(t, 0, fs.CacheStats().Entries)
}

func TestVector_StaleEntryExtended(t *testing.T) {
	fs, g1, _, e1 := scenario(t)
	before := fs.Vector(e1, true)
	assert.Equal(t, 5, before.Dim())

	g3 := testutil.FittedStatic("g3", []string{"z"}, map[int]map[int]float64{1: {0: 2}})
	require.NoError(t, fs.Add(g3))
	n1 := g1.Computes()

	after := fs.Vector(e1, true)
	assert.Equal(t, 6, after.Dim())
	assert.Equal(t, map[int]float64{0: 1.0, 2: 0.5, 3: 1.0, 5: 2}, after.Map())
	assert.Equal(t, n1, g1.Computes(), "prefix must come from the cache")
	assert.True(t, after.Equal(fs.Vector(e1, false)))
}

func TestNames(t *testing.T) {
	fs := New()
	src := testutil.FittedStatic("words", []string{"run", "", "jump"}, nil)
	require.NoError(t, fs.Add(src))

	assert.Equal(t, []string{"words_run", "words_<1>", "words_jump"}, fs.Names([]int{0, 1, 2}))
	assert.Equal(t, "<7>", fs.Name(7))

	require.NoError(t, fs.Add(testutil.FittedStatic("more", []string{"a", "b", "c", "d", "e"}, nil)))
	assert.Equal(t, "more_e", fs.Name(7))
}

func TestPrecompute(t *testing.T) {
	g := testutil.FittedStatic("g", []string{"a", "b"}, map[int]map[int]float64{1: {0: 1}, 2: {1: 3}})
	fs := New(WithMaxWorkers(4))
	require.NoError(t, fs.Add(g))

	ds, err := data.NewDataset(nil, data.NewExample(1, "a"), data.NewExample(2, "b"), data.NewExample(3, "a"))
	require.NoError(t, err)
	require.NoError(t, fs.Precompute(context.Background(), ds))
	assert.Equal(t, 3, fs.CacheStats().Entries)

	calls := g.Computes()
	e, _ := ds.Get(2)
	assert.Equal(t, map[int]float64{1: 3}, fs.Vector(e, true).Map())
	assert.Equal(t, calls, g.Computes())
}

func TestMakeBinary(t *testing.T) {
	fs, _, _, e1 := scenario(t)
	want := fs.Vector(e1, true)

	bin, err := fs.MakeBinary(data.Indicator("a"), true)
	require.NoError(t, err)
	assert.Equal(t, "a", bin.Binary())
	assert.Equal(t, fs.Ranges(), bin.Ranges())

	// the shared entry is reused without evaluating the clone's generators
	clone, _ := bin.Generator("g1")
	assert.True(t, want.Equal(bin.Vector(e1, true)))
	assert.EqualValues(t, 0, clone.(*testutil.Static).Computes())

	copied, err := fs.MakeBinary(data.Indicator("a"), false)
	require.NoError(t, err)
	copied.Invalidate()
	assert.Equal(t, 1, fs.CacheStats().Entries)
	assert.True(t, want.Equal(copied.Vector(e1, true)))
}

func TestMakeBinary_SharedCacheDiverges(t *testing.T) {
	fs, _, _, e1 := scenario(t)
	bin, err := fs.MakeBinary(data.Indicator("a"), true)
	require.NoError(t, err)

	// the binary set grows past the common prefix
	require.NoError(t, bin.Add(testutil.FittedStatic("extra", []string{"q"}, map[int]map[int]float64{1: {0: 4}})))
	grown := bin.Vector(e1, true)
	assert.Equal(t, 6, grown.Dim())

	// the original must not accept the longer entry
	v := fs.Vector(e1, true)
	assert.Equal(t, 5, v.Dim())
	assert.Equal(t, map[int]float64{0: 1.0, 2: 0.5, 3: 1.0}, v.Map())
}

func TestStateRestore(t *testing.T) {
	ds, err := data.NewDataset(nil,
		data.NewExample(1, "a", "run", "fast"),
		data.NewExample(2, "b", "running", "slow"),
	)
	require.NoError(t, err)

	fs := New()
	words := feature.NewNGram("words")
	require.NoError(t, words.SetParameterValue("ignored", "true"))
	require.NoError(t, fs.Add(words))
	require.NoError(t, fs.Fit(context.Background(), ds))
	f := feature.NewFiltered("runs", "words")
	require.NoError(t, f.SetParameterValue("pattern", "run"))
	require.NoError(t, fs.Add(f))
	require.NoError(t, fs.Add(feature.NewNGram("all")))
	require.NoError(t, fs.Fit(context.Background(), ds))

	restored, err := Restore(fs.State(), feature.DefaultRegistry())
	require.NoError(t, err)
	assert.Equal(t, fs.Ranges(), restored.Ranges())
	assert.Equal(t, fs.Size(), restored.Size())
	for _, e := range ds.Examples() {
		assert.True(t, fs.Vector(e, false).Equal(restored.Vector(e, false)))
	}
	assert.Equal(t, fs.Names([]int{0, 1, 2}), restored.Names([]int{0, 1, 2}))

	st := fs.State()
	st.Ranges[1] = Range{Start: 9, End: 10}
	_, err = Restore(st, nil)
	require.Error(t, err)
}
