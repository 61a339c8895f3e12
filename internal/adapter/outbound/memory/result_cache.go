package memory

import (
	"container/list"
	"encoding/json"
	"sync"

	"github.com/owlbridge/owlbridge/internal/port/outbound"
)

// DefaultCacheEntries is the result cache capacity when none is configured.
const DefaultCacheEntries = 256

type cacheEntry struct {
	key    uint64
	result json.RawMessage
}

// ResultCache is a bounded LRU of analysis results keyed by digest.
// Safe for concurrent use.
type ResultCache struct {
	mu      sync.Mutex
	max     int
	order   *list.List // front = most recently used
	entries map[uint64]*list.Element

	hits, misses uint64
}

// NewResultCache creates a cache holding at most maxEntries results.
func NewResultCache(maxEntries int) *ResultCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &ResultCache{
		max:     maxEntries,
		order:   list.New(),
		entries: make(map[uint64]*list.Element, maxEntries),
	}
}

// Get returns a copy of the cached result for key.
func (c *ResultCache) Get(key uint64) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return append(json.RawMessage(nil), el.Value.(*cacheEntry).result...), true
}

// Put stores a copy of result, evicting the least recently used entry when full.
func (c *ResultCache) Put(key uint64, result json.RawMessage) {
	stored := append(json.RawMessage(nil), result...)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).result = stored
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, result: stored})
	for c.order.Len() > c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the hit and miss counts since creation.
func (c *ResultCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

var _ outbound.ResultCache = (*ResultCache)(nil)
