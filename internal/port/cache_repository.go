package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// AcquireLock sets key to token if absent, returns false if another owner holds it
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)

	// ReleaseLock deletes key only while it still holds token
	ReleaseLock(ctx context.Context, key, token string) error

	// AllowRequest records a hit in the sliding window for key, returns false once
	// limit hits fall inside the trailing window
	AllowRequest(ctx context.Context, key, member string, limit int, window time.Duration, now time.Time) (bool, error)

	// Ping checks the cache is reachable
	Ping(ctx context.Context) error
}
