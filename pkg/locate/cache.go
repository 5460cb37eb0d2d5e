package locate

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Cache memoizes Locate results per (text, quote, options) key so repeated
// lookups during a render pass don't re-scan the document. One Cache is
// owned per editor session and thrown away with it; there is no package
// level instance on purpose.
//
// Negative results are cached too: a quote that has drifted beyond repair
// stays a miss until the text changes, and a text change produces a new
// key, so entries never need a manual bust.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*Match
	accessTime map[string]int64
	clock      int64
	maxEntries int
	hits       int64
	misses     int64
}

// DefaultMaxEntries bounds the cache as a safety margin. The working set
// is spans-per-document, so the bound should never be hit in practice.
const DefaultMaxEntries = 4096

// NewCache creates a Cache holding at most maxEntries results. A
// maxEntries of 0 or less falls back to DefaultMaxEntries.
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		entries:    make(map[string]*Match),
		accessTime: make(map[string]int64),
		maxEntries: maxEntries,
	}
}

// Get returns the cached result for key. The second return value is false
// when the key has never been set. A true with a nil Match means a cached
// locator miss.
func (c *Cache) Get(key string) (*Match, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.clock++
	c.accessTime[key] = c.clock
	return m, true
}

// Set stores the result for key, evicting the least recently used entry
// if the bound is reached.
func (c *Cache) Set(key string, m *Match) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}
	c.clock++
	c.entries[key] = m
	c.accessTime[key] = c.clock
}

// Clear drops every entry. Called on session or version-stamp change.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Match)
	c.accessTime = make(map[string]int64)
	log.Debug("Position cache cleared")
}

// Snapshot returns hit/miss/size counters for diagnostics.
func (c *Cache) Snapshot() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]int64{
		"entries": int64(len(c.entries)),
		"hits":    c.hits,
		"misses":  c.misses,
	}
}

func (c *Cache) evictLRU() {
	var oldestKey string
	var oldestTime int64 = 9223372036854775807

	for key, at := range c.accessTime {
		if at < oldestTime {
			oldestTime = at
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		delete(c.accessTime, oldestKey)
		log.Debugf("Evicted position cache entry %s", oldestKey)
	}
}

// CachedLocate resolves quote through the cache, running Locate on a cold
// key and storing the outcome, including misses.
func CachedLocate(c *Cache, haystack, quote string, opts Options) *Match {
	if c == nil {
		return Locate(haystack, quote, opts)
	}
	key := LookupKey(haystack, quote, opts)
	if m, ok := c.Get(key); ok {
		return m
	}
	m := Locate(haystack, quote, opts)
	c.Set(key, m)
	return m
}
