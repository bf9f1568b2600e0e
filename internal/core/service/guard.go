package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/fund-engine/internal/core/domain"
	"github.com/rl1809/fund-engine/internal/port"
)

const (
	lockKeyPrefix      = "lock:account:"
	rateLimitKeyPrefix = "ratelimit:account:"

	defaultLockTTL        = 10 * time.Second
	defaultAcquireTimeout = 3 * time.Second
	defaultRetryInterval  = 25 * time.Millisecond
)

type GuardConfig struct {
	LockTTL        time.Duration
	AcquireTimeout time.Duration
	RetryInterval  time.Duration
	// RateLimit <= 0 disables the per-account limiter.
	RateLimit  int
	RateWindow time.Duration
}

// Guard serializes balance-mutating operations per account across every
// process sharing the cache, and rate limits callers per account.
type Guard struct {
	cache  port.CacheRepository
	cfg    GuardConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewGuard(cache port.CacheRepository, cfg GuardConfig, logger *slog.Logger) *Guard {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = defaultAcquireTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{cache: cache, cfg: cfg, logger: logger, now: time.Now}
}

// Acquire blocks until the account lock is held or AcquireTimeout elapses, in
// which case it returns ErrConcurrencyConflict. The returned func releases the lock.
func (g *Guard) Acquire(ctx context.Context, accountID string) (func(), error) {
	key := lockKeyPrefix + accountID
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, g.cfg.AcquireTimeout)
	defer cancel()

	ticker := time.NewTicker(g.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := g.cache.AcquireLock(waitCtx, key, token, g.cfg.LockTTL)
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("acquire account lock: %w", err)
		}
		if ok {
			return func() { g.release(key, token) }, nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: account %s is busy", domain.ErrConcurrencyConflict, accountID)
		case <-ticker.C:
		}
	}
}

func (g *Guard) release(key, token string) {
	// The caller's context may already be done; the lock must still go.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := g.cache.ReleaseLock(ctx, key, token); err != nil {
		g.logger.Warn("failed to release account lock", "key", key, "error", err)
	}
}

// Allow records one request for the account and returns ErrRateLimited once the
// sliding window is full. Cache failures let the request through.
func (g *Guard) Allow(ctx context.Context, accountID string) error {
	if g.cfg.RateLimit <= 0 || g.cfg.RateWindow <= 0 {
		return nil
	}

	ok, err := g.cache.AllowRequest(ctx, rateLimitKeyPrefix+accountID, uuid.NewString(), g.cfg.RateLimit, g.cfg.RateWindow, g.now())
	if err != nil {
		g.logger.Warn("rate limiter unavailable", "account_id", accountID, "error", err)
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: account %s", domain.ErrRateLimited, accountID)
	}
	return nil
}

// RetryAfter is the backoff hint returned to callers on retryable errors.
func (g *Guard) RetryAfter(err error) time.Duration {
	if errors.Is(err, domain.ErrRateLimited) && g.cfg.RateWindow > 0 {
		return g.cfg.RateWindow
	}
	return g.cfg.AcquireTimeout
}
