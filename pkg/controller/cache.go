package controller

import (
	"context"
	"sync"
	"time"

	"github.com/tobiasegelund/duckingit/pkg/blobstore"
	"github.com/tobiasegelund/duckingit/pkg/log"
	"github.com/tobiasegelund/duckingit/pkg/metrics"
	"github.com/tobiasegelund/duckingit/pkg/types"
)

// Cache is the Cache Index (C9): a session-scoped map from task
// fingerprint to the last time it was successfully executed. A hit is
// only a hint — Check always confirms the backing object still exists
// before honoring it, since the cache and the blob store can drift
// apart (an object deleted out of band, a bucket lifecycle rule).
type Cache struct {
	mu      sync.Mutex
	entries map[string]types.CacheEntry
	ttl     time.Duration
	store   blobstore.Store
}

// NewCache creates an empty Cache with the given entry TTL, confirming
// hits against store.
func NewCache(ttl time.Duration, store blobstore.Store) *Cache {
	return &Cache{
		entries: make(map[string]types.CacheEntry),
		ttl:     ttl,
		store:   store,
	}
}

// Check reports whether fingerprint has a live, backed cache entry for
// outputKey. A TTL-expired entry is evicted and reported as a miss. An
// unexpired entry whose backing object is gone is a CacheInconsistency,
// recovered locally — the entry is invalidated and Check returns a
// miss, without surfacing an error to the caller.
func (c *Cache) Check(ctx context.Context, fingerprint, outputKey string) bool {
	c.mu.Lock()
	entry, ok := c.entries[fingerprint]
	if ok && entry.Expired(time.Now(), c.ttl) {
		delete(c.entries, fingerprint)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return false
	}

	exists, err := c.store.Exists(ctx, outputKey)
	if err != nil || !exists {
		log.WithComponent("cache").Warn().
			Str("fingerprint", fingerprint).
			Str("output_key", outputKey).
			Msg("cache entry has no backing object, invalidating")
		c.Invalidate(fingerprint)
		metrics.CacheMissesTotal.Inc()
		return false
	}

	metrics.CacheHitsTotal.Inc()
	return true
}

// Record marks fingerprint as freshly executed.
func (c *Cache) Record(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = types.CacheEntry{Fingerprint: fingerprint, ExecutedAt: time.Now()}
}

// Invalidate drops fingerprint's entry, if any.
func (c *Cache) Invalidate(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, fingerprint)
}

// Size implements metrics.StatsProvider's CacheSize.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
