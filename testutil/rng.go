package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/cmunell/featurespace/data"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Zipf returns a Zipfian-distributed value in [0, n).
// s=1.0 gives standard Zipf, larger s a heavier head.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}
	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}
	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}
	return n - 1
}

// Tokens draws n tokens from a Zipfian vocabulary of size vocab named w0..w{vocab-1}.
func (r *RNG) Tokens(n, vocab int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("w%d", r.zipfLocked(vocab, 1.1))
	}
	return out
}

// SeparableDataset generates n examples alternating between pos and neg.
// Positive examples contain a "pos_*" marker token, negative ones a "neg_*"
// marker, both mixed with shared Zipfian noise.
func (r *RNG) SeparableDataset(n int, pos, neg data.Label) *data.Dataset {
	examples := make([]*data.Example, n)
	for i := range n {
		label, marker := pos, "pos_"
		if i%2 == 1 {
			label, marker = neg, "neg_"
		}
		toks := r.Tokens(4, 20)
		toks = append(toks, marker+fmt.Sprint(r.Intn(3)))
		examples[i] = data.NewExample(i+1, label, toks...)
	}
	ds, err := data.NewDataset(data.NewLabelSpace(pos, neg), examples...)
	if err != nil {
		panic(err)
	}
	return ds
}

// MultiClassDataset generates n examples over the given labels. Each example
// carries the marker token "<label>_k" plus Zipfian noise.
func (r *RNG) MultiClassDataset(n int, labels ...data.Label) *data.Dataset {
	examples := make([]*data.Example, n)
	for i := range n {
		label := labels[i%len(labels)]
		toks := r.Tokens(3, 20)
		toks = append(toks, fmt.Sprintf("%s_%d", label, r.Intn(2)))
		examples[i] = data.NewExample(i+1, label, toks...)
	}
	ds, err := data.NewDataset(data.NewLabelSpace(labels...), examples...)
	if err != nil {
		panic(err)
	}
	return ds
}
