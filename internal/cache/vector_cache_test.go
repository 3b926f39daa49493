package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorCacheSetGet(t *testing.T) {
	c := NewVectorCache()

	vec := []float32{0.1, 0.2, 0.3}
	require.True(t, c.Set("embedding:general:abc", vec, time.Hour))

	got, ok := c.Get("embedding:general:abc")
	require.True(t, ok)
	assert.Equal(t, vec, got)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, 0.5, stats.HitRatio)
}

func TestVectorCacheTTLExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewVectorCache(WithClock(func() time.Time { return now }))

	require.True(t, c.Set("k", "v", time.Minute))

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	now = now.Add(2 * time.Minute)

	_, ok = c.Get("k")
	assert.False(t, ok, "entry must never be returned after expiry")
	assert.False(t, c.Has("k"))

	stats := c.Stats()
	assert.Equal(t, 0, stats.EntryCount, "expired entry is dropped on access")
}

func TestVectorCacheDefaultTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewVectorCache(
		WithClock(func() time.Time { return now }),
		WithDefaultTTL(time.Hour),
	)

	require.True(t, c.Set("k", 1, 0))

	now = now.Add(59 * time.Minute)
	assert.True(t, c.Has("k"))

	now = now.Add(2 * time.Minute)
	assert.False(t, c.Has("k"))
}

func TestVectorCacheDelete(t *testing.T) {
	c := NewVectorCache()

	c.Set("k", "v", time.Hour)
	assert.True(t, c.Delete("k"))
	assert.False(t, c.Delete("k"))
	assert.False(t, c.Has("k"))
	assert.Equal(t, int64(1), c.Stats().Deletes)
}

func TestVectorCacheEvictionByCount(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	c := NewVectorCache(
		WithClock(func() time.Time { return now }),
		WithMaxEntries(10),
	)

	for i := 0; i < 11; i++ {
		now = base.Add(time.Duration(i) * time.Second)
		require.True(t, c.Set(fmt.Sprintf("k%02d", i), i, time.Hour))
	}

	stats := c.Stats()
	assert.Greater(t, stats.Evictions, int64(0))
	assert.LessOrEqual(t, stats.EntryCount, 10)

	// The oldest tracked key goes first.
	assert.False(t, c.Has("k00"))
	assert.True(t, c.Has("k10"))
}

func TestVectorCacheEstimatedBytesMonotonic(t *testing.T) {
	c := NewVectorCache()

	before := c.Stats().EstimatedBytes
	c.Set("a", make([]float32, 100), time.Hour)
	afterSet := c.Stats().EstimatedBytes
	assert.Greater(t, afterSet, before, "adding an entry grows the estimate")

	c.Set("b", "some profile facet text", time.Hour)
	afterSecond := c.Stats().EstimatedBytes
	assert.Greater(t, afterSecond, afterSet)

	c.Delete("a")
	afterDelete := c.Stats().EstimatedBytes
	assert.Less(t, afterDelete, afterSecond, "removing an entry shrinks the estimate")
}

func TestVectorCacheRejectsEmptyKey(t *testing.T) {
	c := NewVectorCache()
	assert.False(t, c.Set("", "v", time.Hour))
}

func TestVectorCacheConcurrentAccess(t *testing.T) {
	c := NewVectorCache(WithMaxEntries(64))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%32)
				c.Set(key, []float32{float32(g), float32(i)}, time.Hour)
				c.Get(key)
				c.Has(key)
			}
		}(g)
	}
	wg.Wait()

	stats := c.Stats()
	assert.Equal(t, int64(1600), stats.Sets)
	assert.Equal(t, int64(1600), stats.Hits+stats.Misses)
}
