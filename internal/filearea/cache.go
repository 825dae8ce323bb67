package filearea

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filelinks_file_entry_cache_hits_total",
		Help: "File entry lookups served from cache.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filelinks_file_entry_cache_misses_total",
		Help: "File entry lookups that went to the catalog.",
	})
)

// CachedCatalog keeps recently loaded entries in an LRU with a TTL.
// Failed lookups are not cached.
type CachedCatalog struct {
	next  Catalog
	cache *expirable.LRU[int64, Entry]
}

// NewCachedCatalog wraps next with a cache of at most size entries, each kept for ttl.
func NewCachedCatalog(next Catalog, size int, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{
		next:  next,
		cache: expirable.NewLRU[int64, Entry](size, nil, ttl),
	}
}

// LoadFileEntry returns a cached entry or loads it from the wrapped catalog.
func (c *CachedCatalog) LoadFileEntry(ctx context.Context, fileID int64) (Entry, error) {
	if e, ok := c.cache.Get(fileID); ok {
		cacheHitsTotal.Inc()
		return e, nil
	}
	cacheMissesTotal.Inc()

	e, err := c.next.LoadFileEntry(ctx, fileID)
	if err != nil {
		return Entry{}, err
	}
	c.cache.Add(fileID, e)
	return e, nil
}

// Invalidate drops fileID from the cache, so the next lookup goes to the
// wrapped catalog. The download path calls it when a cached path no longer
// resolves on disk.
func (c *CachedCatalog) Invalidate(fileID int64) {
	c.cache.Remove(fileID)
}
