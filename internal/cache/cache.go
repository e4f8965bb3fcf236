package cache

import (
	"context"
	"time"
)

// Backend stores JSON encoded values with a TTL. A miss is (false, nil).
type Backend interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix and returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	// Count returns the number of live keys starting with prefix.
	Count(ctx context.Context, prefix string) (int, error)
}
