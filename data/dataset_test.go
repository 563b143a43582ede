package data

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *Dataset {
	t.Helper()
	ds, err := NewDataset(nil,
		NewExample(1, "sports", "goal", "match"),
		NewExample(2, "politics", "vote", "senate"),
		NewExample(3, "sports", "team"),
		NewExample(4, "", "unlabeled"),
	)
	require.NoError(t, err)
	return ds
}

func TestDataset_Lookup(t *testing.T) {
	ds := sample(t)

	assert.Equal(t, 4, ds.Len())
	e, ok := ds.Get(3)
	require.True(t, ok)
	assert.Equal(t, []string{"team"}, e.Field(DefaultField))
	_, ok = ds.Get(99)
	assert.False(t, ok)

	assert.Equal(t, []Label{"sports", "politics"}, ds.Labels().Labels())

	var ids []int
	for _, e := range ds.All() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, ids)
}

func TestDataset_DuplicateID(t *testing.T) {
	_, err := NewDataset(nil, NewExample(1, "a"), NewExample(1, "b"))
	assert.Error(t, err)
}

func TestDataset_MakeBinary(t *testing.T) {
	ds := sample(t)
	bin := ds.MakeBinary(Indicator("sports"))

	assert.Equal(t, []Label{True, False}, bin.Labels().Labels())
	got := []Label{}
	for _, e := range bin.Examples() {
		got = append(got, e.Label)
	}
	assert.Equal(t, []Label{True, False, True, ""}, got)

	// ids and fields preserved, source untouched
	e, ok := bin.Get(2)
	require.True(t, ok)
	assert.Equal(t, []string{"vote", "senate"}, e.Field(DefaultField))
	src, _ := ds.Get(1)
	assert.Equal(t, Label("sports"), src.Label)
}

func TestExample_Key(t *testing.T) {
	loose := NewExample(1, "a")
	assert.False(t, loose.Key().Cacheable())

	a := sample(t)
	b := sample(t)
	ea, _ := a.Get(1)
	eb, _ := b.Get(1)
	assert.True(t, ea.Key().Cacheable())
	assert.NotEqual(t, ea.Key(), eb.Key())

	// subsets and binary views keep the identity of their examples
	held, rest := a.Split(0.5, 1)
	for _, e := range append(held.Examples(), rest.Examples()...) {
		orig, _ := a.Get(e.ID)
		assert.Equal(t, orig.Key(), e.Key())
	}
	bin, _ := a.MakeBinary(Indicator("sports")).Get(1)
	assert.Equal(t, ea.Key(), bin.Key())
	assert.Equal(t, ea.Key(), ea.Clone().Key())
}

func TestExample_WithLabelWeights(t *testing.T) {
	e := &Example{ID: 1, Label: "a", Weights: map[Label]float64{"a": 0.6, "b": 0.3, "c": 0.1}}
	bin := e.WithLabel(Indicator("a"))

	assert.Equal(t, True, bin.Label)
	assert.InDelta(t, 0.6, bin.Weights[True], 1e-12)
	assert.InDelta(t, 0.4, bin.Weights[False], 1e-12)
}

func TestDataset_SplitDeterministic(t *testing.T) {
	ds := sample(t)
	a1, b1 := ds.Split(0.5, 7)
	a2, b2 := ds.Split(0.5, 7)

	assert.Equal(t, 2, a1.Len())
	assert.Equal(t, 2, b1.Len())
	assert.Equal(t, a1.Examples(), a2.Examples())
	assert.Equal(t, b1.Examples(), b2.Examples())
}

func TestMap(t *testing.T) {
	ds := sample(t)
	ids, err := Map(context.Background(), ds, 3, func(_ context.Context, e *Example) (int, error) {
		return e.ID * 10, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20, 30, 40}, ids)
}

func TestTSV_RoundTrip(t *testing.T) {
	in := "# comment\n1\tpos\tgood great\tpos=JJ JJ\n2\tneg\tbad\n\n3\t\tmeh\n"
	ds, err := ReadTSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())

	e, _ := ds.Get(1)
	assert.Equal(t, []string{"good", "great"}, e.Field(DefaultField))
	assert.Equal(t, []string{"JJ", "JJ"}, e.Field("pos"))
	e3, _ := ds.Get(3)
	assert.False(t, e3.Labeled())

	var buf bytes.Buffer
	require.NoError(t, WriteTSV(&buf, ds))
	again, err := ReadTSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, ds.Len(), again.Len())
	e, _ = again.Get(1)
	assert.Equal(t, []string{"JJ", "JJ"}, e.Field("pos"))
}

func TestTSV_Errors(t *testing.T) {
	_, err := ReadTSV(strings.NewReader("x\tpos\ttok\n"))
	assert.Error(t, err)
	_, err = ReadTSV(strings.NewReader("1\tpos\n"))
	assert.Error(t, err)
}
