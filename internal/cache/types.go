package cache

// Cache is the narrow concurrent-map surface used by feature sets.
// Implementations must be safe for concurrent use.
type Cache[K comparable, V any] interface {
	// Get returns a cached value. ok=false if missing.
	Get(key K) (v V, ok bool)
	// LoadOrStore stores v unless key is present and returns the value now
	// associated with key. loaded reports whether it was already present.
	LoadOrStore(key K, v V) (actual V, loaded bool)
	// Store sets key to v, replacing any previous value.
	Store(key K, v V)
	// Delete removes key.
	Delete(key K)
	// Clear removes every entry.
	Clear()
	// Len returns the number of entries.
	Len() int
	// Stats returns hit/miss counters.
	Stats() Stats
}

// Stats holds cache counters.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
	Bytes   int64
}
