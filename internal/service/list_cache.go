package service

import (
	"encoding/json"
	"markwiki/internal/data"
	"markwiki/internal/logger"
	"sync"
	"time"
)

// allPagesKey names the single cache slot that holds the page listing.
const allPagesKey = "all-pages"

// DefaultListTTL is how long a cached listing stays valid.
const DefaultListTTL = 30 * time.Minute

// ListCache is the key/value store backing the listing slot.
// *cache.Cache satisfies it.
type ListCache interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
}

// pageListCache keeps the full page listing in one slot. A listing read
// from the store is only written back if no invalidation happened while it
// was being read, so a slow reader cannot resurrect a pre-write snapshot.
type pageListCache struct {
	backend ListCache
	ttl     time.Duration
	log     logger.Logger

	mu         sync.Mutex
	generation uint64
}

func newPageListCache(store ListCache, ttl time.Duration, log logger.Logger) *pageListCache {
	if ttl <= 0 {
		ttl = DefaultListTTL
	}
	return &pageListCache{backend: store, ttl: ttl, log: log}
}

// load returns the cached listing. Every call decodes a fresh copy.
func (c *pageListCache) load() ([]data.Page, bool) {
	raw, err := c.backend.Get(allPagesKey)
	if err != nil {
		c.log.Error(err, "Page listing cache read failed; reading from store")
		return nil, false
	}
	if raw == nil {
		return nil, false
	}
	var pages []data.Page
	if err := json.Unmarshal(raw, &pages); err != nil {
		c.log.Error(err, "Discarding undecodable page listing cache entry")
		_ = c.backend.Delete(allPagesKey)
		return nil, false
	}
	return pages, true
}

// snapshot returns the generation to pass to store.
func (c *pageListCache) snapshot() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// store caches pages unless the listing was invalidated after gen was taken.
func (c *pageListCache) store(gen uint64, pages []data.Page) {
	raw, err := json.Marshal(pages)
	if err != nil {
		c.log.Error(err, "Failed to encode page listing for cache")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	if err := c.backend.Set(allPagesKey, raw, c.ttl); err != nil {
		c.log.Error(err, "Failed to cache page listing")
	}
}

// invalidate drops the listing. Call it after a page write has committed.
func (c *pageListCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if err := c.backend.Delete(allPagesKey); err != nil {
		c.log.Error(err, "Failed to invalidate page listing cache")
	}
}
