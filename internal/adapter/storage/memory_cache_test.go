package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheLock(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()
	now := time.Now()
	cache.now = func() time.Time { return now }

	ok, err := cache.AcquireLock(ctx, "k", "a", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = cache.AcquireLock(ctx, "k", "b", time.Second)
	assert.False(t, ok)

	require.NoError(t, cache.ReleaseLock(ctx, "k", "b"))
	ok, _ = cache.AcquireLock(ctx, "k", "b", time.Second)
	assert.False(t, ok, "release by non-owner must not free the lock")

	// An expired lock can be taken over.
	now = now.Add(2 * time.Second)
	ok, _ = cache.AcquireLock(ctx, "k", "b", time.Second)
	assert.True(t, ok)
}

func TestMemoryCacheAllowRequest(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()
	now := time.Now()

	for i := 0; i < 2; i++ {
		ok, err := cache.AllowRequest(ctx, "k", "", 2, time.Minute, now)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := cache.AllowRequest(ctx, "k", "", 2, time.Minute, now.Add(time.Second))
	assert.False(t, ok)

	ok, _ = cache.AllowRequest(ctx, "k", "", 2, time.Minute, now.Add(time.Minute+time.Second))
	assert.True(t, ok)
}

func TestMemoryCacheSweep(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.AcquireLock(ctx, "lock", "a", time.Second)
	cache.AllowRequest(ctx, "window", "", 5, time.Minute, now)

	now = now.Add(2 * time.Minute)
	cache.Sweep(time.Minute)

	assert.Empty(t, cache.locks)
	assert.Empty(t, cache.windows)
}
