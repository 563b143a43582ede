package cache

import (
	"fmt"
	"hash/maphash"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/cmunell/featurespace/resource"
)

const numShards = 64

type options[V any] struct {
	capacity int64
	rc       *resource.Controller
	sizeOf   func(V) int64
}

// Option configures a Sharded map.
type Option[V any] func(*options[V])

// WithCapacity bounds the total bytes held by the map (split evenly across shards).
// Requires a size function; see WithSizeFunc.
func WithCapacity[V any](bytes int64) Option[V] {
	return func(o *options[V]) { o.capacity = bytes }
}

// WithController charges entry sizes to rc.
func WithController[V any](rc *resource.Controller) Option[V] {
	return func(o *options[V]) { o.rc = rc }
}

// WithSizeFunc sets the function estimating an entry's memory footprint.
func WithSizeFunc[V any](fn func(V) int64) Option[V] {
	return func(o *options[V]) { o.sizeOf = fn }
}

// Sharded is a concurrent map split into 64 independently locked LRU shards.
type Sharded[K comparable, V any] struct {
	shards [numShards]*lru[K, V]
	seed   maphash.Seed
	flight singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64

	opts options[V]
}

var _ Cache[int, int] = (*Sharded[int, int])(nil)

// NewSharded creates a new sharded map.
func NewSharded[K comparable, V any](opts ...Option[V]) *Sharded[K, V] {
	o := options[V]{}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Sharded[K, V]{seed: maphash.MakeSeed(), opts: o}

	shardCapacity := int64(0)
	if o.capacity > 0 {
		shardCapacity = max(o.capacity/numShards, 1)
	}
	for i := range numShards {
		s.shards[i] = newLRU[K](shardCapacity, o.rc, o.sizeOf)
	}
	return s
}

func (s *Sharded[K, V]) shard(key K) *lru[K, V] {
	return s.shards[maphash.Comparable(s.seed, key)%numShards]
}

// Get returns a cached value.
func (s *Sharded[K, V]) Get(key K) (V, bool) {
	v, ok := s.shard(key).get(key)
	if ok {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	return v, ok
}

// LoadOrStore inserts v if key is absent.
func (s *Sharded[K, V]) LoadOrStore(key K, v V) (V, bool) {
	return s.shard(key).loadOrStore(key, v)
}

// Store sets key to v.
func (s *Sharded[K, V]) Store(key K, v V) {
	s.shard(key).store(key, v)
}

// Delete removes key.
func (s *Sharded[K, V]) Delete(key K) {
	s.shard(key).delete(key)
}

// Clear removes all entries and releases their memory.
func (s *Sharded[K, V]) Clear() {
	for i := range numShards {
		s.shards[i].clear()
	}
}

// Len returns the number of entries.
func (s *Sharded[K, V]) Len() int {
	n := 0
	for i := range numShards {
		n += s.shards[i].len()
	}
	return n
}

// Range calls fn for every entry until fn returns false.
// Entries inserted concurrently may or may not be visited.
func (s *Sharded[K, V]) Range(fn func(K, V) bool) {
	for i := range numShards {
		if !s.shards[i].each(fn) {
			return
		}
	}
}

// Stats returns aggregated statistics.
func (s *Sharded[K, V]) Stats() Stats {
	st := Stats{Hits: s.hits.Load(), Misses: s.misses.Load()}
	for i := range numShards {
		st.Entries += s.shards[i].len()
		st.Bytes += s.shards[i].bytes()
	}
	return st
}

// GetOrCompute returns the cached value for key, computing and inserting it on a miss.
// Concurrent misses for the same key share one compute call. A value that cannot
// be admitted (capacity or memory budget) is returned without being cached.
func (s *Sharded[K, V]) GetOrCompute(key K, compute func() (V, error)) (V, error) {
	if v, ok := s.Get(key); ok {
		return v, nil
	}
	r, err, _ := s.flight.Do(fmt.Sprint(key), func() (any, error) {
		if v, ok := s.shard(key).get(key); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return nil, err
		}
		actual, _ := s.LoadOrStore(key, v)
		return actual, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return r.(V), nil
}

// Copy returns an independent map holding the same entries and options.
func (s *Sharded[K, V]) Copy() *Sharded[K, V] {
	c := &Sharded[K, V]{seed: maphash.MakeSeed(), opts: s.opts}
	shardCapacity := int64(0)
	if s.opts.capacity > 0 {
		shardCapacity = max(s.opts.capacity/numShards, 1)
	}
	for i := range numShards {
		c.shards[i] = newLRU[K](shardCapacity, s.opts.rc, s.opts.sizeOf)
	}
	s.Range(func(k K, v V) bool {
		c.Store(k, v)
		return true
	})
	return c
}
