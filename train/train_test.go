package train

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmunell/featurespace/codec"
	"github.com/cmunell/featurespace/data"
	"github.com/cmunell/featurespace/feature"
	"github.com/cmunell/featurespace/featureset"
	"github.com/cmunell/featurespace/grammar"
	"github.com/cmunell/featurespace/persistence"
	"github.com/cmunell/featurespace/testutil"
)

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	for name, mut := range map[string]func(*Config){
		"variant":       func(c *Config) { c.Variant = "three" },
		"learningRate":  func(c *Config) { c.LearningRate = 0 },
		"threshold":     func(c *Config) { c.Threshold = -1 },
		"l2":            func(c *Config) { c.L2 = -1 },
		"maxIterations": func(c *Config) { c.MaxIterations = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			c := DefaultConfig()
			mut(&c)
			require.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}

func TestWeights_StepProjects(t *testing.T) {
	w := NewWeights(2, TwoChannel)
	w.Pos[0], w.Neg[1] = 0.1, 0.2
	g := &Weights{Bias: 1, Pos: []float64{1, -1}, Neg: []float64{-1, 1}}
	delta := w.step(g, 0.5)
	assert.Equal(t, -0.5, w.Bias)
	assert.Equal(t, []float64{0, 0.5}, w.Pos)
	assert.Equal(t, []float64{0.5, 0}, w.Neg)
	assert.Greater(t, delta, 0.0)

	w.Grow(4)
	assert.Equal(t, 4, w.Len())
	assert.Equal(t, 0.0, w.Local(3))
	assert.Equal(t, []float64{0.5, 0.5, 0, 0}, w.ExpansionScore())
}

// hierarchy builds two primitive indices {0, 1} and one derived index 2
// whose parents are 0 and 1.
func hierarchy(t *testing.T) (*featureset.FeatureSet, *grammar.Graph, *data.Dataset) {
	t.Helper()
	ds, err := data.NewDataset(nil,
		data.NewExample(1, data.True),
		data.NewExample(2, data.False),
		data.NewExample(3, data.True),
		data.NewExample(4, data.False),
		data.NewExample(5, data.True),
	)
	require.NoError(t, err)

	fs := featureset.New()
	require.NoError(t, fs.Add(testutil.FittedStatic("p", []string{"a", "b"}, map[int]map[int]float64{
		1: {0: 1}, 2: {1: 1}, 3: {0: 1, 1: 1}, 5: {1: 0.5},
	})))
	require.NoError(t, fs.Add(testutil.FittedStatic("c", []string{"ab"}, map[int]map[int]float64{
		1: {0: 1}, 3: {0: 1}, 4: {0: 1},
	})))
	require.Equal(t, 3, fs.Size())

	g := grammar.NewGraph(2)
	require.NoError(t, g.AddEdge(0, 2))
	require.NoError(t, g.AddEdge(1, 2))
	return fs, g, ds
}

func TestObjective_Combine(t *testing.T) {
	fs, g, _ := hierarchy(t)
	obj := &objective{fs: fs, graph: g, variant: TwoChannel, threshold: 0.75}
	w := &Weights{Pos: []float64{1.5, 0.2, 0.4}, Neg: []float64{0.1, 1.3, 0.9}}

	cf := obj.combine(w)
	assert.InDelta(t, 1.4, cf.c[0], 1e-12)
	assert.InDelta(t, -1.1, cf.c[1], 1e-12)
	// only the positive parent exceeds t: 1.4-0.75
	assert.InDelta(t, 0.65, cf.scale[2], 1e-12)
	assert.InDelta(t, -0.325, cf.c[2], 1e-12)

	w.Pos[0] = 0.5
	cf = obj.combine(w)
	assert.InDelta(t, 0, cf.scale[2], 1e-12, "parents below the threshold contribute nothing")
	assert.InDelta(t, 0, cf.c[2], 1e-12)

	obj.variant = Plain
	plain := &Weights{Pos: []float64{1, 2, 3}}
	assert.Equal(t, []float64{1, 2, 3}, obj.combine(plain).c)
}

func TestObjective_NegativeParentBlocksChild(t *testing.T) {
	fs := featureset.New()
	require.NoError(t, fs.Add(testutil.FittedStatic("p", []string{"a"}, nil)))
	require.NoError(t, fs.Add(testutil.FittedStatic("c", []string{"ab"}, nil)))
	g := grammar.NewGraph(1)
	require.NoError(t, g.AddEdge(0, 1))
	obj := &objective{fs: fs, graph: g, variant: TwoChannel, threshold: 0.75}

	w := &Weights{Pos: []float64{0, 1}, Neg: []float64{0.9, 0}}
	cf := obj.combine(w)
	assert.InDelta(t, -0.9, cf.c[0], 1e-12)
	assert.InDelta(t, 0, cf.c[1], 1e-12)

	w = &Weights{Pos: []float64{0.9, 1}, Neg: []float64{0, 0}}
	cf = obj.combine(w)
	assert.InDelta(t, 0.15, cf.c[1], 1e-12)
}

func TestObjective_GradientMatchesFiniteDifferences(t *testing.T) {
	fs, g, ds := hierarchy(t)
	obj := &objective{fs: fs, graph: g, variant: TwoChannel, threshold: 0.75, l2: 0.01, positive: data.True, workers: 2}
	w := &Weights{Bias: 0.1, Pos: []float64{1.5, 0.2, 0.4}, Neg: []float64{0.1, 1.3, 0.9}}
	ctx := context.Background()

	grad, _, err := obj.evaluate(ctx, w, ds.Examples())
	require.NoError(t, err)

	const h = 1e-6
	numeric := func(x *float64) float64 {
		orig := *x
		*x = orig + h
		_, up, err := obj.evaluate(ctx, w, ds.Examples())
		require.NoError(t, err)
		*x = orig - h
		_, down, err := obj.evaluate(ctx, w, ds.Examples())
		require.NoError(t, err)
		*x = orig
		return (up - down) / (2 * h)
	}

	assert.InDelta(t, numeric(&w.Bias), grad.Bias, 1e-6, "bias")
	for i := range w.Pos {
		assert.InDelta(t, numeric(&w.Pos[i]), grad.Pos[i], 1e-6, "pos %d", i)
		assert.InDelta(t, numeric(&w.Neg[i]), grad.Neg[i], 1e-6, "neg %d", i)
	}
}

func ngram(t *testing.T, name string, minCount int) *feature.NGram {
	t.Helper()
	g := feature.NewNGram(name)
	require.NoError(t, g.SetParameterValue("minCount", fmt.Sprint(minCount)))
	return g
}

func words(t *testing.T, minCount int) *featureset.FeatureSet {
	t.Helper()
	fs := featureset.New()
	require.NoError(t, fs.Add(ngram(t, "words", minCount)))
	return fs
}

func TestTrain_Separable(t *testing.T) {
	for _, v := range []Variant{Plain, TwoChannel} {
		t.Run(string(v), func(t *testing.T) {
			ds := testutil.NewRNG(7).SeparableDataset(120, data.True, data.False)
			cfg := DefaultConfig()
			cfg.Variant = v
			cfg.Workers = 2

			m, err := NewTrainer(words(t, 1), nil, cfg).Train(context.Background(), ds, nil)
			require.NoError(t, err)
			require.True(t, m.Fitted())
			assert.Nil(t, m.Expander())

			acc, err := Accuracy(ds)(context.Background(), m)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, acc, 0.95)

			ll, err := LogLikelihood(ds)(context.Background(), m)
			require.NoError(t, err)
			assert.Greater(t, ll, math.Log(0.5))

			top := m.Weights()
			require.NotEmpty(t, top)
			assert.True(t, strings.HasPrefix(top[0].Name, "words_pos_") || strings.HasPrefix(top[0].Name, "words_neg_"), top[0].Name)

			ps, err := m.PosteriorBatch(context.Background(), ds, 3)
			require.NoError(t, err)
			require.Len(t, ps, ds.Len())
			for i, e := range ds.Examples() {
				assert.Equal(t, m.Posterior(e), ps[i])
			}
		})
	}
}

func TestTrain_EmptyDataset(t *testing.T) {
	ds, err := data.NewDataset(nil)
	require.NoError(t, err)
	_, err = NewTrainer(words(t, 1), nil, DefaultConfig()).Train(context.Background(), ds, nil)
	require.ErrorIs(t, err, feature.ErrEmptyDataset)
}

func TestTrain_Canceled(t *testing.T) {
	ds := testutil.NewRNG(1).SeparableDataset(10, data.True, data.False)
	ctx, cancel := context.WithCancel(context.Background())
	tr := NewTrainer(words(t, 1), nil, DefaultConfig())
	cancel()
	_, err := tr.Train(ctx, ds, nil)
	require.ErrorIs(t, err, context.Canceled)
}

// inducible returns a set where every positive carries "going" plus a rare
// "-ing" word and every negative "stone" plus a rare "-nt" word.
func inducible(t *testing.T) *data.Dataset {
	t.Helper()
	var ex []*data.Example
	for i := range 40 {
		if i%2 == 0 {
			ex = append(ex, data.NewExample(i+1, data.True, "the", "going", fmt.Sprintf("x%ding", i)))
		} else {
			ex = append(ex, data.NewExample(i+1, data.False, "the", "stone", fmt.Sprintf("x%dnt", i)))
		}
	}
	ds, err := data.NewDataset(data.BooleanSpace(), ex...)
	require.NoError(t, err)
	return ds
}

func inducibleSet(t *testing.T) (*featureset.FeatureSet, []grammar.Rule) {
	t.Helper()
	fs := featureset.New()
	all := feature.NewNGram("allWords")
	require.NoError(t, all.SetParameterValue("ignored", "true"))
	require.NoError(t, fs.Add(all))
	require.NoError(t, fs.Add(ngram(t, "words", 2)))

	suf := grammar.NewAffix("suf")
	require.NoError(t, feature.Apply(suf, map[string]string{"source": "allWords", "length": "3"}))
	return fs, []grammar.Rule{suf}
}

func TestTrain_GrowsFeatureSpace(t *testing.T) {
	ds := inducible(t)
	fs, rules := inducibleSet(t)
	cfg := DefaultConfig()
	cfg.Threshold = 0.3
	cfg.MaxIterations = 60

	m, err := NewTrainer(fs, rules, cfg).Train(context.Background(), ds, nil)
	require.NoError(t, err)

	x := m.Expander()
	require.NotNil(t, x)
	assert.Equal(t, 3, x.PrimitiveSize())
	assert.Greater(t, fs.Size(), x.PrimitiveSize())
	assert.Positive(t, x.NumExpanded())
	assert.Equal(t, fs.Size(), m.Raw().Len())
	assert.Len(t, m.Coefficients(), fs.Size())

	r, ok := fs.Range("suf[allWords:ing]")
	require.True(t, ok)
	// going plus the twenty rare words
	assert.Equal(t, 21, r.Len())
	assert.False(t, x.Graph().HasCycle())

	acc, err := Accuracy(ds)(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)
}

func roundTrip(t *testing.T, doc *persistence.Document) *persistence.Document {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, persistence.Encode(&buf, doc, codec.Zstd))
	back, err := persistence.Decode(&buf)
	require.NoError(t, err)
	return back
}

func TestModel_SaveLoad(t *testing.T) {
	ds := inducible(t)
	fs, rules := inducibleSet(t)
	cfg := DefaultConfig()
	cfg.Threshold = 0.3
	cfg.MaxIterations = 30
	m, err := NewTrainer(fs, rules, cfg).Train(context.Background(), ds, nil)
	require.NoError(t, err)

	doc := persistence.NewDocument(nil)
	require.NoError(t, m.Save(doc))
	assert.ElementsMatch(t, []string{SectionFeatureSet, SectionExpander, SectionModel}, doc.Sections())

	back, err := LoadModel(roundTrip(t, doc), nil, nil)
	require.NoError(t, err)
	require.True(t, back.Fitted())
	assert.Equal(t, m.Variant(), back.Variant())
	assert.Equal(t, m.Expander().Graph().Edges(), back.Expander().Graph().Edges())
	assert.InDeltaSlice(t, m.Coefficients(), back.Coefficients(), 1e-12)
	for _, e := range ds.Examples() {
		assert.InDelta(t, m.Posterior(e), back.Posterior(e), 1e-12)
	}
}

func TestLoadModel_AbsentSections(t *testing.T) {
	_, err := LoadModel(persistence.NewDocument(nil), nil, nil)
	require.ErrorIs(t, err, persistence.ErrMissingSection)

	fs := words(t, 1)
	require.NoError(t, fs.Fit(context.Background(), testutil.NewRNG(1).SeparableDataset(10, data.True, data.False)))
	unfit := &Model{fs: fs}
	doc := persistence.NewDocument(nil)
	require.NoError(t, unfit.Save(doc))
	assert.Equal(t, []string{SectionFeatureSet}, doc.Sections())

	m, err := LoadModel(roundTrip(t, doc), nil, nil)
	require.NoError(t, err)
	assert.False(t, m.Fitted())
	assert.Equal(t, fs.Size(), m.FeatureSet().Size())
	assert.Zero(t, m.Score(data.NewExample(99, "", "pos_0")))
}

func TestOneVsRest(t *testing.T) {
	labels := []data.Label{"a", "b", "c"}
	ds := testutil.NewRNG(3).MultiClassDataset(90, labels...)
	cfg := DefaultConfig()
	cfg.Variant = Plain
	cfg.Workers = 3
	cfg.ExpandEvery = 0

	fs := words(t, 1)
	mm, err := OneVsRest(context.Background(), fs, nil, ds, cfg)
	require.NoError(t, err)
	assert.Equal(t, labels, mm.Labels())
	assert.GreaterOrEqual(t, mm.Accuracy(ds), 0.95)

	for _, l := range labels {
		m, ok := mm.Model(l)
		require.True(t, ok)
		assert.Equal(t, l.String(), m.FeatureSet().Binary())
		pos, neg := m.Labels()
		assert.Equal(t, data.True, pos)
		assert.Equal(t, data.False, neg)
	}
	assert.Empty(t, fs.Binary(), "the source set is never binarized")

	top := mm.Top("a", 1)
	require.Len(t, top, 1)
	assert.True(t, strings.HasPrefix(top[0].Name, "words_a_"), top[0].Name)

	doc := persistence.NewDocument(codec.GoJSON{})
	require.NoError(t, mm.Save(doc))
	back := roundTrip(t, doc)
	require.True(t, IsMulti(back))

	restored, err := LoadMultiModel(back, nil, nil)
	require.NoError(t, err)
	for _, e := range ds.Examples() {
		assert.Equal(t, mm.Classify(e), restored.Classify(e))
	}
}

func TestOneVsRest_NeedsTwoLabels(t *testing.T) {
	ds := testutil.NewRNG(3).MultiClassDataset(10, "only")
	_, err := OneVsRest(context.Background(), words(t, 1), nil, ds, DefaultConfig())
	require.Error(t, err)
}
