package verify

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultCacheTTL bounds how long a verification result is served without
// recomputation.
const DefaultCacheTTL = 10 * time.Minute

// signaturePrefixLen caps how much of the signature enters the cache key.
// A bounded prefix keeps keys small while remaining collision resistant
// enough for this purpose.
const signaturePrefixLen = 16

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "verification_cache_hits_total",
		Help: "Number of verification results served from cache.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "verification_cache_misses_total",
		Help: "Number of verification cache lookups that missed or were expired.",
	})
)

// Cache stores verification results for a bounded time. Implementations are
// constructor injected into the verification Service so tests get isolated
// instances and deployments can swap in a shared backend.
type Cache interface {
	// Get returns the cached result for key, or false on a miss. Expired
	// entries are misses.
	Get(ctx context.Context, key string) (*Result, bool)
	// Set stores the result under key for ttl.
	Set(ctx context.Context, key string, result Result, ttl time.Duration)
}

// CacheKey builds the composite verification cache key from the account ID,
// the attested codehash, and a bounded prefix of the signature.
func CacheKey(accountID, codehash, signature string) string {
	sigPrefix := signature
	if len(sigPrefix) > signaturePrefixLen {
		sigPrefix = sigPrefix[:signaturePrefixLen]
	}
	return accountID + "|" + codehash + "|" + sigPrefix
}

type cacheEntry struct {
	result    Result
	expiresAt int64 // epoch milliseconds
}

// MemoryCache is a process-wide in-memory Cache with lazy invalidation:
// expired entries are treated as absent on read and reclaimed only by the
// next write to the same key. The unbounded growth this allows is an
// accepted tradeoff for a process-scoped cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (*Result, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().UnixMilli() > entry.expiresAt {
		cacheMisses.Inc()
		return nil, false
	}
	cacheHits.Inc()
	result := entry.result
	return &result, true
}

// Set implements Cache. The last writer wins; concurrent writers for the same
// key are tolerated because results are content deterministic.
func (c *MemoryCache) Set(_ context.Context, key string, result Result, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{
		result:    result,
		expiresAt: c.now().Add(ttl).UnixMilli(),
	}
	c.mu.Unlock()
}
