package scanner

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of scan results kept when no size is
// configured.
const DefaultCacheSize = 256

// CacheKey identifies a scan result. A changed size or modification time
// invalidates the entry implicitly.
type CacheKey struct {
	Path    string
	Size    int64
	ModTime int64
	Scope   string
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits    uint64 `json:"hits" yaml:"hits"`
	Misses  uint64 `json:"misses" yaml:"misses"`
	Entries int    `json:"entries" yaml:"entries"`
}

// Cache is a bounded LRU of scan results shared across builds. Cached
// results must be treated as read-only.
type Cache struct {
	entries *lru.Cache[CacheKey, *ScanResult]
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// NewCache creates a cache holding at most size results.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[CacheKey, *ScanResult](size)
	if err != nil {
		return nil, err
	}

	return &Cache{entries: entries}, nil
}

// Get returns the cached result for key.
func (c *Cache) Get(key CacheKey) (*ScanResult, bool) {
	result, ok := c.entries.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return result, ok
}

// Add stores result under key, evicting the least recently used entry
// when full.
func (c *Cache) Add(key CacheKey, result *ScanResult) {
	c.entries.Add(key, result)
}

// Purge drops every entry and resets the counters.
func (c *Cache) Purge() {
	c.entries.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.entries.Len(),
	}
}
