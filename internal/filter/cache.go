// ABOUTME: Size-bounded LRU memo for filter results keyed by snapshot version and predicate
// ABOUTME: Lets the UI recompute the visible list on every render without rescanning unchanged data

package filter

import (
	"container/list"
	"strconv"
	"sync"

	"github.com/2389/refforge/internal/store"
)

// DefaultCacheSize is used when NewCache is given a non-positive size.
const DefaultCacheSize = 32

type cacheEntry struct {
	key     string
	result  []store.Reference
	element *list.Element
}

// Cache memoizes Visible results. Entries are keyed by the snapshot version
// the caller supplies, so a new snapshot never hits a stale entry.
// Uses a doubly-linked list for O(1) eviction of the least recently used key.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   *list.List // least recently used at front
	maxSize int

	hits   uint64
	misses uint64
}

// NewCache creates a cache holding at most maxSize results.
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &Cache{
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Visible returns the memoized result of Visible(data, p) for the given
// snapshot version, computing and storing it on a miss.
// The returned slice is shared; callers must not modify it.
func (c *Cache) Visible(version uint64, data *store.AppData, p Predicate) []store.Reference {
	key := strconv.FormatUint(version, 10) + "\x1e" + p.Key()

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		c.order.MoveToBack(entry.element)
		c.hits++
		c.mu.Unlock()
		return entry.result
	}
	c.misses++
	c.mu.Unlock()

	// Compute outside the lock; a concurrent miss on the same key just
	// stores an identical result.
	result := Visible(data, p)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeLocked(key, result)
	return result
}

// storeLocked adds or refreshes an entry. Must be called with mu held.
func (c *Cache) storeLocked(key string, result []store.Reference) {
	if entry, exists := c.entries[key]; exists {
		entry.result = result
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.entries[key] = &cacheEntry{
		key:     key,
		result:  result,
		element: elem,
	}
}

// evictOldest removes the least recently used entry. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Reset drops every entry.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.order.Init()
}
