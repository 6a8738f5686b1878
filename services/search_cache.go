package services

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"merchant-docs-platform/models"
)

// SearchCache is an in-process result cache with TTL expiry and
// oldest-inserted-first eviction. It is constructed explicitly and passed
// by dependency injection so tests get isolated instances. Single-process
// only: multi-instance deployments each keep their own cache and may
// serve stale results within the TTL window.
type SearchCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string // insertion order for eviction
	ttl     time.Duration
	maxSize int

	hits      int64
	misses    int64
	evictions int64
}

type cacheEntry struct {
	results   []models.SearchResult
	expiresAt time.Time
}

// CacheStats is a snapshot for operational visibility
type CacheStats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	MaxSize   int   `json:"max_size"`
}

func NewSearchCache(ttl time.Duration, maxSize int) *SearchCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &SearchCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// CacheKey builds the canonical cache key for a search
func CacheKey(query string, limit int, threshold float64) string {
	return fmt.Sprintf("search:%s:%d:%s", query, limit,
		strconv.FormatFloat(threshold, 'f', -1, 64))
}

// Get returns the cached results for key, or nil when absent or expired
func (c *SearchCache) Get(key string) []models.SearchResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		c.removeLocked(key)
		c.misses++
		return nil
	}

	c.hits++
	out := make([]models.SearchResult, len(entry.results))
	copy(out, entry.results)
	return out
}

// Set stores results under key, evicting the oldest entry when full
func (c *SearchCache) Set(key string, results []models.SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.maxSize && len(c.order) > 0 {
			oldest := c.order[0]
			c.removeLocked(oldest)
			c.evictions++
		}
		c.order = append(c.order, key)
	}

	stored := make([]models.SearchResult, len(results))
	copy(stored, results)
	c.entries[key] = &cacheEntry{
		results:   stored,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// InvalidatePrefix removes every entry whose key starts with prefix.
// Called with "search:" whenever a document is added, updated or deleted.
func (c *SearchCache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	kept := c.order[:0]
	for _, key := range c.order {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
	return removed
}

// Sweep drops expired entries; run periodically by the scheduler
func (c *SearchCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	kept := c.order[:0]
	for _, key := range c.order {
		if entry, ok := c.entries[key]; ok && now.After(entry.expiresAt) {
			delete(c.entries, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
	return removed
}

// Stats returns a snapshot of cache counters
func (c *SearchCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Entries:   len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		MaxSize:   c.maxSize,
	}
}

// Close releases the cache's entries
func (c *SearchCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = nil
}

// removeLocked deletes key from both the map and the order slice.
// Caller holds the lock.
func (c *SearchCache) removeLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
