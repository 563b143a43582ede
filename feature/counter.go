package feature

import (
	"context"
	"math"
	"sort"

	"github.com/cmunell/featurespace/data"
	"github.com/cmunell/featurespace/internal/parallel"
)

// StatIDF is the vocabulary statistic holding smoothed inverse document frequency.
const StatIDF = "idf"

// TermCounter counts candidate terms over a dataset in parallel. Each worker
// counts its chunk into a private map; the maps are merged after the join, so
// the totals do not depend on the worker count.
type TermCounter struct {
	Workers int
	Options []parallel.Option
}

// Counts holds term and document frequencies.
type Counts struct {
	Term map[string]int
	Doc  map[string]int
	Docs int
}

// Count extracts terms from every example and aggregates frequencies.
func (c TermCounter) Count(ctx context.Context, ds *data.Dataset, extract func(e *data.Example) []string) (*Counts, error) {
	parts, err := parallel.MapChunks(ctx, ds.Examples(), c.Workers, func(ctx context.Context, _ parallel.Chunk, part []*data.Example) (*Counts, error) {
		local := newCounts()
		for _, e := range part {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			local.add(extract(e))
		}
		return local, nil
	}, c.Options...)
	if err != nil {
		return nil, err
	}

	total := newCounts()
	for _, p := range parts {
		total.merge(p)
	}
	return total, nil
}

func newCounts() *Counts {
	return &Counts{Term: make(map[string]int), Doc: make(map[string]int)}
}

func (c *Counts) add(terms []string) {
	c.Docs++
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		c.Term[t]++
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			c.Doc[t]++
		}
	}
}

func (c *Counts) merge(o *Counts) {
	c.Docs += o.Docs
	for t, n := range o.Term {
		c.Term[t] += n
	}
	for t, n := range o.Doc {
		c.Doc[t] += n
	}
}

// Vocabulary returns the sorted terms occurring at least minCount times, with
// the StatIDF statistic idf(t) = ln((1+N)/(1+df(t))) + 1.
func (c *Counts) Vocabulary(minCount int) *Vocabulary {
	terms := make([]string, 0, len(c.Term))
	for t, n := range c.Term {
		if n >= minCount {
			terms = append(terms, t)
		}
	}
	sort.Strings(terms)

	v := NewVocabulary(terms)
	idf := make([]float64, len(terms))
	for i, t := range terms {
		idf[i] = math.Log(float64(1+c.Docs)/float64(1+c.Doc[t])) + 1
	}
	return v.WithStat(StatIDF, idf)
}
