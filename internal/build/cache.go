// Package build implements the sprite build pipeline: the parse cache, the
// icon parser, symbol assembly, tree-shaking, change detection, and the
// session that ties them together for one build context.
package build

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// DefaultCacheSize is the default bound on parse cache entries.
const DefaultCacheSize = 1000

// ParsedIcon is the normalized form of one icon file.
type ParsedIcon struct {
	ViewBox string `json:"viewBox"`
	Content string `json:"content"`
}

// CacheKey builds the parse cache key for a file revision. A new mtime
// yields a new key, which implicitly invalidates older entries.
func CacheKey(path string, mtime int64, optimize bool) string {
	return fmt.Sprintf("%s:%d:%t", path, mtime, optimize)
}

// ParseCache is a bounded store of parsed icons. When full, the oldest
// inserted entry is evicted first; reads do not refresh an entry's age.
type ParseCache struct {
	entries    map[string]*cacheEntry
	mutex      sync.Mutex
	maxEntries int
	// insertion-ordered list; head.next is newest, tail.prev is oldest
	head *cacheEntry
	tail *cacheEntry

	hits      int64
	misses    int64
	sets      int64
	evictions int64
}

type cacheEntry struct {
	key   string
	path  string
	value ParsedIcon
	prev  *cacheEntry
	next  *cacheEntry
}

// CacheStats is a point-in-time view of cache counters.
type CacheStats struct {
	Entries   int     `json:"entries"`
	Capacity  int     `json:"capacity"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Sets      int64   `json:"sets"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hitRate"`
}

// NewParseCache creates a cache holding at most maxEntries parsed icons.
func NewParseCache(maxEntries int) *ParseCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheSize
	}

	cache := &ParseCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		head:       &cacheEntry{},
		tail:       &cacheEntry{},
	}
	cache.head.next = cache.tail
	cache.tail.prev = cache.head

	return cache
}

// Get returns the parsed icon stored under key.
func (c *ParseCache) Get(key string) (ParsedIcon, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		atomic.AddInt64(&c.misses, 1)
		return ParsedIcon{}, false
	}

	atomic.AddInt64(&c.hits, 1)
	return entry.value, true
}

// Set stores value under key for the file at path. Replacing an existing
// key keeps its original insertion position.
func (c *ParseCache) Set(key, path string, value ParsedIcon) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	atomic.AddInt64(&c.sets, 1)

	if existing, exists := c.entries[key]; exists {
		existing.value = value
		return
	}

	entry := &cacheEntry{key: key, path: path, value: value}
	c.entries[key] = entry
	c.addToFront(entry)

	for len(c.entries) > c.maxEntries {
		oldest := c.tail.prev
		c.removeFromList(oldest)
		delete(c.entries, oldest.key)
		atomic.AddInt64(&c.evictions, 1)
	}
}

// InvalidatePath removes every entry recorded for path, whatever its mtime
// or optimize flag, and returns how many were removed.
func (c *ParseCache) InvalidatePath(path string) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if entry.path != path {
			continue
		}
		c.removeFromList(entry)
		delete(c.entries, key)
		removed++
	}
	return removed
}

// Len returns the number of cached entries.
func (c *ParseCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

// Clear drops every entry and resets statistics.
func (c *ParseCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.head.next = c.tail
	c.tail.prev = c.head

	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
	atomic.StoreInt64(&c.sets, 0)
	atomic.StoreInt64(&c.evictions, 0)
}

// Stats returns the cache counters.
func (c *ParseCache) Stats() CacheStats {
	c.mutex.Lock()
	entries := len(c.entries)
	c.mutex.Unlock()

	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)

	stats := CacheStats{
		Entries:   entries,
		Capacity:  c.maxEntries,
		Hits:      hits,
		Misses:    misses,
		Sets:      atomic.LoadInt64(&c.sets),
		Evictions: atomic.LoadInt64(&c.evictions),
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

func (c *ParseCache) addToFront(entry *cacheEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *ParseCache) removeFromList(entry *cacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
}
