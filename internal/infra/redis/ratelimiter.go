package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/certmint/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 100
	minWait                  = 5 * time.Millisecond
	maxWait                  = 50 * time.Millisecond
	window                   = time.Second
)

// allowScript counts a call in the current one-second window and reports
// whether it fits the limit. KEYS[1] is the window key.
var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RateLimitOption customizes a RedisRateLimiter.
type RateLimitOption func(*RedisRateLimiter)

// WithServiceLimit overrides the per-second limit of one service key.
// Non-positive limits are ignored.
func WithServiceLimit(service string, limitPerSec int) RateLimitOption {
	return func(r *RedisRateLimiter) {
		key := normalizeService(service)
		if key == "" || limitPerSec <= 0 {
			return
		}
		r.limits[key] = int64(limitPerSec)
	}
}

// RedisRateLimiter is a fixed-window limiter shared by every process calling
// the same external service: the content store and the ledger RPC each get
// their own counter.
type RedisRateLimiter struct {
	client      *goredis.Client
	limitPerSec int64
	limits      map[string]int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	script      *goredis.Script
}

func NewRedisRateLimiter(client *goredis.Client, limitPerSec int, opts ...RateLimitOption) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(client, int64(limitPerSec), time.Now, sleepWithContext, opts...)
}

func newRedisRateLimiter(
	client *goredis.Client,
	limitPerSec int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
	opts ...RateLimitOption,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerSec <= 0 {
		limitPerSec = defaultLimitPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	r := &RedisRateLimiter{
		client:      client,
		limitPerSec: limitPerSec,
		limits:      map[string]int64{},
		now:         nowFn,
		sleep:       sleepFn,
		script:      allowScript,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func normalizeService(service string) string {
	return strings.ToLower(strings.TrimSpace(service))
}

func (r *RedisRateLimiter) limitFor(service string) int64 {
	if limit, ok := r.limits[service]; ok {
		return limit
	}
	return r.limitPerSec
}

func (r *RedisRateLimiter) Allow(ctx context.Context, service string) (bool, error) {
	if r == nil || r.client == nil || r.script == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	key := normalizeService(service)
	if key == "" {
		return false, fmt.Errorf("service key is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	windowKey := fmt.Sprintf("certmint:ratelimit:{%s}:%d", key, r.now().UTC().Unix())
	result, err := r.script.Run(ctx, r.client, []string{windowKey}, r.limitFor(key), window.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit for %s: %w", key, err)
	}

	return result == 1, nil
}

// Wait blocks until a call to service is allowed or ctx ends. A rejected
// caller sleeps until the window rolls over, in steps of at most maxWait.
func (r *RedisRateLimiter) Wait(ctx context.Context, service string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		allowed, err := r.Allow(ctx, service)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, r.untilNextWindow()); err != nil {
			return err
		}
	}
}

func (r *RedisRateLimiter) untilNextWindow() time.Duration {
	now := r.now()
	d := now.Truncate(window).Add(window).Sub(now)
	if d < minWait {
		return minWait
	}
	if d > maxWait {
		return maxWait
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
