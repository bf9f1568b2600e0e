package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/fund-engine/internal/port"
)

var _ port.CacheRepository = (*MemoryCache)(nil)

// MemoryCache implements the cache port inside one process. It is only correct
// when a single instance serves all traffic; multi-instance deployments use Redis.
type MemoryCache struct {
	mu      sync.Mutex
	locks   map[string]memoryLock
	windows map[string][]time.Time
	now     func() time.Time
}

type memoryLock struct {
	token     string
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		locks:   make(map[string]memoryLock),
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

func (c *MemoryCache) AcquireLock(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if held, ok := c.locks[key]; ok && now.Before(held.expiresAt) {
		return false, nil
	}
	c.locks[key] = memoryLock{token: token, expiresAt: now.Add(ttl)}
	return true, nil
}

func (c *MemoryCache) ReleaseLock(_ context.Context, key, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if held, ok := c.locks[key]; ok && held.token == token {
		delete(c.locks, key)
	}
	return nil
}

func (c *MemoryCache) AllowRequest(_ context.Context, key, _ string, limit int, window time.Duration, now time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-window)
	hits := c.windows[key][:0]
	for _, t := range c.windows[key] {
		if t.After(cutoff) {
			hits = append(hits, t)
		}
	}

	if len(hits) >= limit {
		c.windows[key] = hits
		return false, nil
	}
	c.windows[key] = append(hits, now)
	return true, nil
}

// Sweep evicts expired locks and empty windows older than window.
func (c *MemoryCache) Sweep(window time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, held := range c.locks {
		if !now.Before(held.expiresAt) {
			delete(c.locks, key)
		}
	}
	cutoff := now.Add(-window)
	for key, hits := range c.windows {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(c.windows, key)
		}
	}
}

func (c *MemoryCache) Ping(ctx context.Context) error {
	return ctx.Err()
}
