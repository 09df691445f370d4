// Package searchcache implements the Search Cache: a small LRU of
// pattern -> matching-filenames results, invalidated whenever the
// namespace changes in a way that could make a cached result stale.
//
// The source this system is modeled on invalidates on create/delete but
// not on ACL mutation, which can leak a filename to a cached search after
// the caller has lost read access to it. This implementation invalidates
// on ACL mutation too, closing that gap.
package searchcache

import (
	"container/list"
	"sync"

	"github.com/marmos91/dfs/internal/metrics"
)

type entry struct {
	pattern string
	results []string
}

// Cache is a fixed-capacity LRU keyed by search pattern.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	index    map[string]*list.Element
}

// New creates a Cache holding at most capacity entries.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Get returns the cached results for pattern, promoting it to
// most-recently-used on a hit.
func (c *Cache) Get(pattern string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[pattern]
	if !ok {
		metrics.ObserveSearchCache(false)
		return nil, false
	}
	c.ll.MoveToFront(el)
	metrics.ObserveSearchCache(true)
	return el.Value.(*entry).results, true
}

// Put stores results for pattern, evicting the least-recently-used entry
// if the cache is at capacity.
func (c *Cache) Put(pattern string, results []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[pattern]; ok {
		el.Value.(*entry).results = results
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&entry{pattern: pattern, results: results})
	c.index[pattern] = el

	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.index, oldest.Value.(*entry).pattern)
		}
	}
}

// InvalidateAll clears every cached result. Called on any namespace
// mutation that could make a cached search stale: file create/delete,
// move, and (unlike the source this models) ACL grant/revoke.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll = list.New()
	c.index = make(map[string]*list.Element)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
