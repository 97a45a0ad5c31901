package verify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryCacheTTLBoundary(t *testing.T) {
	t.Parallel()

	t0 := time.UnixMilli(1_700_000_000_000)
	now := t0
	cache := NewMemoryCache()
	cache.now = func() time.Time { return now }

	key := CacheKey("builder.agents.test", "codehash", "signature")
	result := Result{Valid: true, Level: LevelFull, Warnings: []string{}}
	cache.Set(context.Background(), key, result, 600_000*time.Millisecond)

	// Served up to and including t0 + TTL.
	for _, offset := range []time.Duration{0, time.Minute, 600_000 * time.Millisecond} {
		now = t0.Add(offset)
		got, ok := cache.Get(context.Background(), key)
		require.True(t, ok, "offset %s", offset)
		require.Equal(t, result, *got)
	}

	// A miss one millisecond later.
	now = t0.Add(600_001 * time.Millisecond)
	_, ok := cache.Get(context.Background(), key)
	require.False(t, ok)
}

func TestMemoryCacheLazyEviction(t *testing.T) {
	t.Parallel()

	t0 := time.UnixMilli(1_700_000_000_000)
	now := t0
	cache := NewMemoryCache()
	cache.now = func() time.Time { return now }

	key := CacheKey("builder.agents.test", "codehash", "signature")
	cache.Set(context.Background(), key, Result{Valid: false, Level: LevelNone}, time.Second)

	// The expired entry stays resident until the next write to the key.
	now = t0.Add(time.Hour)
	_, ok := cache.Get(context.Background(), key)
	require.False(t, ok)
	cache.mu.RLock()
	_, resident := cache.entries[key]
	cache.mu.RUnlock()
	require.True(t, resident)

	// Overwriting reclaims it.
	fresh := Result{Valid: true, Level: LevelStructural, Warnings: []string{}}
	cache.Set(context.Background(), key, fresh, time.Minute)
	got, ok := cache.Get(context.Background(), key)
	require.True(t, ok)
	require.Equal(t, fresh, *got)
}

func TestCacheKeyBoundsSignature(t *testing.T) {
	t.Parallel()

	longSig := make([]byte, 4096)
	for i := range longSig {
		longSig[i] = 'a'
	}
	key := CacheKey("builder.agents.test", "codehash", string(longSig))
	require.LessOrEqual(t, len(key), len("builder.agents.test")+len("codehash")+2+signaturePrefixLen)

	// Distinct signatures differing within the prefix produce distinct keys.
	require.NotEqual(t,
		CacheKey("builder.agents.test", "codehash", "aaaa"),
		CacheKey("builder.agents.test", "codehash", "bbbb"),
	)
}
