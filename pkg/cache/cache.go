// Package cache provides thread-safe LRU caches. Cache holds compiled CEL
// programs; LRU is the same cache for any value type.
//
// Compiling an expression is pure: the same source always yields an
// equivalent immutable Program. The evaluator uses this cache when the
// WithCaching option is enabled so that an expression evaluated against many
// activations is parsed only once.
//
// # Example
//
//	c := cache.New(1024)
//	prog, err := c.GetOrCompile("user.age >= 18", func() (*types.Program, error) {
//	    return parser.Compile("user.age >= 18")
//	})
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/sandrolain/gocel/pkg/types"
)

// DefaultCapacity is used when New receives a non-positive capacity.
const DefaultCapacity = 256

type entry[V any] struct {
	key   string
	value V
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Len       int
	Capacity  int
}

// LRU is a least recently used cache keyed by string.
//
// Safe for concurrent use by multiple goroutines.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// Cache is an LRU of compiled programs keyed by expression source.
type Cache = LRU[*types.Program]

// New creates a cache holding at most capacity programs.
func New(capacity int) *Cache {
	return NewLRU[*types.Program](capacity)
}

// NewLRU creates a cache holding at most capacity values.
func NewLRU[V any](capacity int) *LRU[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LRU[V]{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Get returns the value stored under src and marks it most recently used.
func (c *LRU[V]) Get(src string) (V, bool) {
	c.mu.Lock()
	el, ok := c.items[src]
	if ok {
		c.ll.MoveToFront(el)
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	return el.Value.(*entry[V]).value, true
}

// Set stores v under src, evicting the least recently used entry when the
// cache is full.
func (c *LRU[V]) Set(src string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[src]; ok {
		el.Value.(*entry[V]).value = v
		c.ll.MoveToFront(el)
		return
	}
	for c.ll.Len() >= c.capacity {
		c.evictLocked()
	}
	c.items[src] = c.ll.PushFront(&entry[V]{key: src, value: v})
}

// GetOrCompile returns the cached value for src or calls compile and
// caches its result. Failed compilations are not cached.
func (c *LRU[V]) GetOrCompile(src string, compile func() (V, error)) (V, error) {
	if v, ok := c.Get(src); ok {
		return v, nil
	}
	v, err := compile()
	if err != nil {
		return v, err
	}
	c.Set(src, v)
	return v, nil
}

// Len returns the number of cached entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the maximum number of cached entries.
func (c *LRU[V]) Capacity() int {
	return c.capacity
}

// Keys returns the cached keys from most to least recently used.
func (c *LRU[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.ll.Len())
	for el := c.ll.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[V]).key)
	}
	return keys
}

// Stats returns a snapshot of the cache counters.
func (c *LRU[V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Len:       c.Len(),
		Capacity:  c.capacity,
	}
}

// Invalidate removes the entry stored under src.
func (c *LRU[V]) Invalidate(src string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[src]; ok {
		c.ll.Remove(el)
		delete(c.items, src)
	}
}

// Clear removes every cached entry. Counters are preserved.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[string]*list.Element, c.capacity)
}

// evictLocked must be called with c.mu held.
func (c *LRU[V]) evictLocked() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry[V]).key)
	c.evictions.Add(1)
}
