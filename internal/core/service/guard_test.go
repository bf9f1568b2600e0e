package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/fund-engine/internal/adapter/storage"
	"github.com/rl1809/fund-engine/internal/core/domain"
)

func TestGuard_SerializesPerAccount(t *testing.T) {
	ctx := context.Background()
	guard := NewGuard(storage.NewMemoryCache(), GuardConfig{RetryInterval: time.Millisecond}, discardLogger)

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := guard.Acquire(ctx, "acc-1")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
}

func TestGuard_DifferentAccountsDoNotBlock(t *testing.T) {
	ctx := context.Background()
	guard := NewGuard(storage.NewMemoryCache(), GuardConfig{AcquireTimeout: 20 * time.Millisecond}, discardLogger)

	release1, err := guard.Acquire(ctx, "acc-1")
	require.NoError(t, err)
	defer release1()

	release2, err := guard.Acquire(ctx, "acc-2")
	require.NoError(t, err)
	release2()
}

func TestGuard_TimeoutAndCancel(t *testing.T) {
	guard := NewGuard(storage.NewMemoryCache(), GuardConfig{AcquireTimeout: 20 * time.Millisecond}, discardLogger)

	release, err := guard.Acquire(context.Background(), "acc-1")
	require.NoError(t, err)
	defer release()

	_, err = guard.Acquire(context.Background(), "acc-1")
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = guard.Acquire(ctx, "acc-1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestGuard_Allow(t *testing.T) {
	ctx := context.Background()
	guard := NewGuard(storage.NewMemoryCache(), GuardConfig{RateLimit: 2, RateWindow: time.Minute}, discardLogger)

	require.NoError(t, guard.Allow(ctx, "acc-1"))
	require.NoError(t, guard.Allow(ctx, "acc-1"))
	require.ErrorIs(t, guard.Allow(ctx, "acc-1"), domain.ErrRateLimited)
	require.NoError(t, guard.Allow(ctx, "acc-2"))

	guard.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	require.NoError(t, guard.Allow(ctx, "acc-1"))
}

func TestGuard_AllowDisabled(t *testing.T) {
	guard := NewGuard(storage.NewMemoryCache(), GuardConfig{}, discardLogger)
	for i := 0; i < 100; i++ {
		require.NoError(t, guard.Allow(context.Background(), "acc-1"))
	}
}

func TestGuard_RetryAfter(t *testing.T) {
	guard := NewGuard(storage.NewMemoryCache(), GuardConfig{
		AcquireTimeout: 2 * time.Second,
		RateLimit:      5,
		RateWindow:     time.Minute,
	}, discardLogger)

	assert.Equal(t, time.Minute, guard.RetryAfter(domain.ErrRateLimited))
	assert.Equal(t, 2*time.Second, guard.RetryAfter(domain.ErrConcurrencyConflict))
}
