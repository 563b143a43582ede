package feature

import (
	"slices"
	"strconv"
	"sync/atomic"
)

// Vocabulary is an index<->term mapping with optional per-term statistics.
//
// A Vocabulary is read-only once published by Fit. Binarized clones share the
// same value; Share records the extra owner. Changes produce a new Vocabulary
// (copy-on-write), so owners never observe each other's edits.
type Vocabulary struct {
	terms []string
	index map[string]int
	stats map[string][]float64
	refs  atomic.Int32
}

// NewVocabulary creates a vocabulary from terms in index order. Duplicate terms keep the first index.
func NewVocabulary(terms []string) *Vocabulary {
	v := &Vocabulary{
		terms: make([]string, 0, len(terms)),
		index: make(map[string]int, len(terms)),
		stats: make(map[string][]float64),
	}
	for _, t := range terms {
		if _, dup := v.index[t]; dup {
			continue
		}
		v.index[t] = len(v.terms)
		v.terms = append(v.terms, t)
	}
	v.refs.Store(1)
	return v
}

// Size returns the number of terms. A nil vocabulary is empty.
func (v *Vocabulary) Size() int {
	if v == nil {
		return 0
	}
	return len(v.terms)
}

// Term returns the term at local index i.
func (v *Vocabulary) Term(i int) (string, bool) {
	if v == nil || i < 0 || i >= len(v.terms) {
		return "", false
	}
	return v.terms[i], true
}

// Index returns the local index of term.
func (v *Vocabulary) Index(term string) (int, bool) {
	if v == nil {
		return 0, false
	}
	i, ok := v.index[term]
	return i, ok
}

// Terms returns a copy of the terms in index order.
func (v *Vocabulary) Terms() []string {
	if v == nil {
		return nil
	}
	return slices.Clone(v.terms)
}

// Stat returns statistic name for index i (0 if absent).
func (v *Vocabulary) Stat(name string, i int) float64 {
	if v == nil {
		return 0
	}
	s := v.stats[name]
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}

// WithStat returns a vocabulary carrying statistic name. The receiver is copied
// if it has more than one owner; a fresh, unshared vocabulary is updated in place.
func (v *Vocabulary) WithStat(name string, values []float64) *Vocabulary {
	out := v
	if v.refs.Load() > 1 {
		out = v.copy()
	}
	out.stats[name] = slices.Clone(values)
	return out
}

// Stats returns a copy of every statistic.
func (v *Vocabulary) Stats() map[string][]float64 {
	if v == nil {
		return nil
	}
	m := make(map[string][]float64, len(v.stats))
	for k, s := range v.stats {
		m[k] = slices.Clone(s)
	}
	return m
}

// Share registers another owner and returns v.
func (v *Vocabulary) Share() *Vocabulary {
	if v != nil {
		v.refs.Add(1)
	}
	return v
}

// Owners returns the number of registered owners.
func (v *Vocabulary) Owners() int {
	if v == nil {
		return 0
	}
	return int(v.refs.Load())
}

// Restrict returns a new vocabulary holding the terms for which keep returns
// true, plus the old index of every kept term. Statistics follow their terms.
func (v *Vocabulary) Restrict(keep func(i int, term string) bool) (*Vocabulary, []int) {
	var terms []string
	var kept []int
	for i, t := range v.terms {
		if keep(i, t) {
			terms = append(terms, t)
			kept = append(kept, i)
		}
	}
	out := NewVocabulary(terms)
	for name, s := range v.stats {
		ns := make([]float64, len(kept))
		for k, i := range kept {
			if i < len(s) {
				ns[k] = s[i]
			}
		}
		out.stats[name] = ns
	}
	return out, kept
}

func (v *Vocabulary) copy() *Vocabulary {
	out := NewVocabulary(v.terms)
	for k, s := range v.stats {
		out.stats[k] = slices.Clone(s)
	}
	return out
}

func itoa(i int) string { return strconv.Itoa(i) }
