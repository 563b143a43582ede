// Package cache provides the concurrent maps behind per-example vector caches
// and resolved-name memos.
//
// Sharded distributes keys across 64 shards selected with maphash, each guarded
// by its own mutex, so concurrent inserts of distinct keys never contend on a
// single lock. Every shard is an LRU: when a byte capacity is configured the
// least recently used entries are evicted, otherwise entries live as long as
// the map. Memory held by entries can be charged to a resource.Controller; an
// entry the controller does not admit is simply not cached.
//
// GetOrCompute collapses concurrent misses for the same key into one call of
// the compute function.
package cache
