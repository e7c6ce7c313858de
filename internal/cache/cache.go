// Package cache provides a time- and capacity-bounded LRU cache that keeps
// serving expired entries until they are evicted.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Config holds configuration for a Cache.
type Config struct {
	// Name identifies the cache in metrics.
	Name string

	// TTL is how long an entry is considered fresh (default: 5 minutes).
	TTL time.Duration

	// Capacity is the maximum number of entries (default: 1000).
	Capacity int

	// AllowStale returns expired entries from Get instead of reporting a miss.
	AllowStale bool

	// Now overrides the clock; used by tests.
	Now func() time.Time
}

// Entry is the result of a Lookup.
type Entry[V any] struct {
	Value     V
	Found     bool
	Stale     bool
	ExpiresAt time.Time
}

// Stats describes cache occupancy and effectiveness.
type Stats struct {
	Name        string  `json:"name"`
	Size        int     `json:"totalItems"`
	Capacity    int     `json:"capacity"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	HitRate     float64 `json:"hitRate"`
	MemoryUsage int64   `json:"memoryUsage"`
}

// SizeFunc estimates the memory footprint of a value in bytes.
type SizeFunc[V any] func(V) int

type item[V any] struct {
	key       string
	value     V
	size      int
	expiresAt time.Time
}

// Cache is a thread-safe LRU cache with TTL and stale reads.
// Values are stored as given and must be treated as immutable by callers.
type Cache[V any] struct {
	mu sync.Mutex

	name       string
	ttl        time.Duration
	capacity   int
	allowStale bool
	now        func() time.Time
	sizeOf     SizeFunc[V]
	metrics    *Metrics

	// front is most recently used
	order *list.List
	items map[string]*list.Element

	hits      int64
	misses    int64
	evictions int64
	bytes     int64
}

// Option configures optional Cache behavior.
type Option[V any] func(*Cache[V])

// WithSizeFunc sets the estimator used for Stats.MemoryUsage.
func WithSizeFunc[V any](fn SizeFunc[V]) Option[V] {
	return func(c *Cache[V]) { c.sizeOf = fn }
}

// WithMetrics records hits, misses and evictions on the given instruments.
func WithMetrics[V any](m *Metrics) Option[V] {
	return func(c *Cache[V]) { c.metrics = m }
}

// New creates a new Cache.
func New[V any](cfg Config, opts ...Option[V]) *Cache[V] {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1000
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Cache[V]{
		name:       cfg.Name,
		ttl:        cfg.TTL,
		capacity:   cfg.Capacity,
		allowStale: cfg.AllowStale,
		now:        cfg.Now,
		order:      list.New(),
		items:      make(map[string]*list.Element, cfg.Capacity),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key. Expired entries are returned when the cache
// allows stale reads; otherwise they count as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	e := c.Lookup(key)
	if !e.Found || (e.Stale && !c.allowStale) {
		var zero V
		return zero, false
	}
	return e.Value, true
}

// Lookup returns the entry for key along with its freshness.
// A found entry is moved to the front of the LRU order, stale or not.
func (c *Cache[V]) Lookup(key string) Entry[V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		c.metrics.recordMiss(c.name)
		return Entry[V]{}
	}

	it := el.Value.(*item[V])
	stale := c.now().After(it.expiresAt)
	if stale && !c.allowStale {
		c.misses++
		c.metrics.recordMiss(c.name)
	} else {
		c.hits++
		c.metrics.recordHit(c.name, stale)
	}
	c.order.MoveToFront(el)

	return Entry[V]{
		Value:     it.value,
		Found:     true,
		Stale:     stale,
		ExpiresAt: it.expiresAt,
	}
}

// Peek returns the value for key like Get, but leaves the hit/miss counters
// and the LRU order untouched. It is meant for re-checks of a key whose
// lookup was already counted.
func (c *Cache[V]) Peek(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	it := el.Value.(*item[V])
	if !c.allowStale && c.now().After(it.expiresAt) {
		return zero, false
	}
	return it.value, true
}

// Set stores value under key, replacing any existing entry wholesale.
// When the cache exceeds its capacity the least recently used entry is evicted.
func (c *Cache[V]) Set(key string, value V) {
	size := 0
	if c.sizeOf != nil {
		size = c.sizeOf(value)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)

	if el, ok := c.items[key]; ok {
		it := el.Value.(*item[V])
		c.bytes += int64(size - it.size)
		it.value = value
		it.size = size
		it.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&item[V]{key: key, value: value, size: size, expiresAt: expiresAt})
	c.items[key] = el
	c.bytes += int64(size)

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

// Delete removes key. It reports whether an entry was removed.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.remove(el)
	return true
}

// Clear removes every entry. Counters are kept.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[string]*list.Element, c.capacity)
	c.bytes = 0
}

// Prune removes every expired entry and returns how many were removed.
func (c *Cache[V]) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*item[V]).expiresAt) {
			c.remove(el)
			removed++
		}
		el = prev
	}
	return removed
}

// Len returns the number of entries, including stale ones.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hitRate float64
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return Stats{
		Name:        c.name,
		Size:        len(c.items),
		Capacity:    c.capacity,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		HitRate:     hitRate,
		MemoryUsage: c.bytes,
	}
}

func (c *Cache[V]) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.remove(el)
	c.evictions++
	c.metrics.recordEviction(c.name)
}

func (c *Cache[V]) remove(el *list.Element) {
	it := c.order.Remove(el).(*item[V])
	delete(c.items, it.key)
	c.bytes -= int64(it.size)
}
