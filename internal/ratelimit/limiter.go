package ratelimit

import "context"

// Keys of the external services calls are throttled against.
const (
	KeyContentStore = "contentstore"
	KeyLedger       = "ledger"
)

// RateLimiter controls call throughput per external service key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Wait(ctx context.Context, key string) error
}
