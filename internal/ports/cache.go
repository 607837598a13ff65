package ports

import (
	"context"
	"time"
)

type Cache interface {
	// IncrWithTTL increments key and starts its expiry on first use.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
