package cache

import (
	"container/list"
	"sync"

	"github.com/cmunell/featurespace/resource"
)

// lru is a single shard: a map plus recency list.
type lru[K comparable, V any] struct {
	mu        sync.Mutex
	capacity  int64 // bytes; <= 0 means unbounded
	size      int64
	items     map[K]*list.Element
	evictList *list.List
	rc        *resource.Controller
	sizeOf    func(V) int64
}

type entry[K comparable, V any] struct {
	key   K
	value V
	size  int64
}

func newLRU[K comparable, V any](capacity int64, rc *resource.Controller, sizeOf func(V) int64) *lru[K, V] {
	return &lru[K, V]{
		capacity:  capacity,
		items:     make(map[K]*list.Element),
		evictList: list.New(),
		rc:        rc,
		sizeOf:    sizeOf,
	}
}

func (c *lru[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// loadOrStore inserts v if key is absent. stored=false with loaded=false means
// the entry was rejected (too large or over the memory budget).
func (c *lru[K, V]) loadOrStore(key K, v V) (actual V, loaded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry[K, V]).value, true
	}
	c.insert(key, v)
	return v, false
}

func (c *lru[K, V]) store(key K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.removeElement(ent)
	}
	c.insert(key, v)
}

// insert must be called with mu held and key absent.
func (c *lru[K, V]) insert(key K, v V) {
	var itemSize int64
	if c.sizeOf != nil {
		itemSize = c.sizeOf(v)
	}

	if c.capacity > 0 {
		if itemSize > c.capacity {
			return
		}
		// Evict locally first so memory returns to the controller before we ask for it.
		for c.size+itemSize > c.capacity {
			ent := c.evictList.Back()
			if ent == nil {
				break
			}
			c.removeElement(ent)
		}
	}

	if !c.rc.TryAcquireMemory(itemSize) {
		return
	}

	element := c.evictList.PushFront(&entry[K, V]{key: key, value: v, size: itemSize})
	c.items[key] = element
	c.size += itemSize
}

func (c *lru[K, V]) delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.removeElement(ent)
	}
}

func (c *lru[K, V]) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rc.ReleaseMemory(c.size)
	c.items = make(map[K]*list.Element)
	c.evictList.Init()
	c.size = 0
}

func (c *lru[K, V]) each(fn func(K, V) bool) bool {
	c.mu.Lock()
	entries := make([]*entry[K, V], 0, len(c.items))
	for e := c.evictList.Front(); e != nil; e = e.Next() {
		entries = append(entries, e.Value.(*entry[K, V]))
	}
	c.mu.Unlock()

	for _, e := range entries {
		if !fn(e.key, e.value) {
			return false
		}
	}
	return true
}

func (c *lru[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *lru[K, V]) bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *lru[K, V]) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	kv := e.Value.(*entry[K, V])
	delete(c.items, kv.key)
	c.size -= kv.size
	c.rc.ReleaseMemory(kv.size)
}
