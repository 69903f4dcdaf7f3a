// Package cache provides the in-memory LRU used to memoize built graphs and
// the persisted BytecodeCache holding facts about externally-compiled classes.
package cache

import (
	"container/list"
	"sort"
	"strings"
	"sync"
	"time"
)

// Entry represents a cache entry with metadata.
type Entry struct {
	Key        string
	Value      interface{}
	AccessedAt time.Time
	CreatedAt  time.Time
	Weight     int
}

// Options configures the LRU cache.
type Options struct {
	// MaxSize is the maximum number of entries.
	// 0 means unlimited.
	MaxSize int

	// MaxWeight bounds the summed entry weights.
	// 0 means unlimited.
	MaxWeight int

	// Weigh reports an entry's weight; nil weighs every entry 1.
	Weigh func(value interface{}) int

	// OnEvict is called when an entry is evicted or deleted.
	OnEvict func(key string, value interface{})
}

// Stats returns cache statistics.
type Stats struct {
	Length    int   `json:"length"`
	Weight    int   `json:"weight"`
	HitCount  int64 `json:"hit_count"`
	MissCount int64 `json:"miss_count"`
	Evictions int64 `json:"evictions"`
}

// LRUCache is a mutex-guarded in-memory LRU cache.
type LRUCache struct {
	mu        sync.Mutex
	items     map[string]*list.Element
	lru       *list.List // most recent at front
	opts      Options
	weight    int
	hits      int64
	misses    int64
	evictions int64
}

// New creates a new LRU cache with the given options.
func New(opts Options) *LRUCache {
	return &LRUCache{
		items: make(map[string]*list.Element),
		lru:   list.New(),
		opts:  opts,
	}
}

func (c *LRUCache) weigh(value interface{}) int {
	if c.opts.Weigh == nil {
		return 1
	}
	return c.opts.Weigh(value)
}

// Get retrieves a value from the cache.
func (c *LRUCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, found := c.items[key]
	if !found {
		c.misses++
		return nil, false
	}
	c.hits++
	e := el.Value.(*Entry)
	e.AccessedAt = time.Now()
	c.lru.MoveToFront(el)
	return e.Value, true
}

// Peek retrieves a value without touching recency or statistics.
func (c *LRUCache) Peek(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, found := c.items[key]
	if !found {
		return nil, false
	}
	return el.Value.(*Entry).Value, true
}

// Set stores a value in the cache.
func (c *LRUCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.weigh(value)
	now := time.Now()
	if el, exists := c.items[key]; exists {
		e := el.Value.(*Entry)
		c.weight += w - e.Weight
		e.Value = value
		e.Weight = w
		e.AccessedAt = now
		c.lru.MoveToFront(el)
		c.evictIfNeeded()
		return
	}

	e := &Entry{Key: key, Value: value, AccessedAt: now, CreatedAt: now, Weight: w}
	c.items[key] = c.lru.PushFront(e)
	c.weight += w
	c.evictIfNeeded()
}

// Delete removes a key from the cache.
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, found := c.items[key]; found {
		c.remove(el)
	}
}

// DeletePrefix removes every key starting with prefix and returns how many
// entries were dropped.
func (c *LRUCache) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, el := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.remove(el)
			n++
		}
	}
	return n
}

func (c *LRUCache) remove(el *list.Element) {
	e := el.Value.(*Entry)
	c.lru.Remove(el)
	delete(c.items, e.Key)
	c.weight -= e.Weight
	if c.opts.OnEvict != nil {
		c.opts.OnEvict(e.Key, e.Value)
	}
}

// Clear removes all entries from the cache.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.weight = 0
}

// Len returns the number of entries in the cache.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns the cached keys in sorted order.
func (c *LRUCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// evictIfNeeded evicts entries if the cache exceeds its limits.
func (c *LRUCache) evictIfNeeded() {
	for c.shouldEvict() {
		el := c.lru.Back()
		if el == nil || c.lru.Len() == 1 {
			break
		}
		c.remove(el)
		c.evictions++
	}
}

// shouldEvict returns true if the cache should evict entries.
func (c *LRUCache) shouldEvict() bool {
	if c.opts.MaxSize > 0 && c.lru.Len() > c.opts.MaxSize {
		return true
	}
	if c.opts.MaxWeight > 0 && c.weight > c.opts.MaxWeight {
		return true
	}
	return false
}

// Stats returns the current cache statistics.
func (c *LRUCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Length:    len(c.items),
		Weight:    c.weight,
		HitCount:  c.hits,
		MissCount: c.misses,
		Evictions: c.evictions,
	}
}

// HitRate returns the cache hit rate.
func (c *LRUCache) HitRate() float64 {
	s := c.Stats()
	total := s.HitCount + s.MissCount
	if total == 0 {
		return 0
	}
	return float64(s.HitCount) / float64(total)
}

// ResetStats resets the statistics counters.
func (c *LRUCache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits, c.misses, c.evictions = 0, 0, 0
}
