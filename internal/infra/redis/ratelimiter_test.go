package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestRedisRateLimiterAllow(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_000, 0)
	limiter, err := newRedisRateLimiter(
		rdb,
		2,
		func() time.Time { return now },
		sleepWithContext,
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	allowed, err := limiter.Allow(context.Background(), "ledger")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("first call should be allowed")
	}

	allowed, err = limiter.Allow(context.Background(), "ledger")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("second call should be allowed")
	}

	allowed, err = limiter.Allow(context.Background(), "ledger")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Fatal("third call should be rejected by rate limit")
	}

	now = now.Add(time.Second)
	allowed, err = limiter.Allow(context.Background(), "ledger")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("new second window should allow call")
	}
}

func TestRedisRateLimiterAllowPerService(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_100, 0)
	limiter, err := newRedisRateLimiter(
		rdb,
		1,
		func() time.Time { return now },
		sleepWithContext,
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	allowed, err := limiter.Allow(context.Background(), "ledger")
	if err != nil {
		t.Fatalf("Allow(ledger) error = %v", err)
	}
	if !allowed {
		t.Fatal("ledger should be allowed on first request")
	}

	allowed, err = limiter.Allow(context.Background(), "contentstore")
	if err != nil {
		t.Fatalf("Allow(contentstore) error = %v", err)
	}
	if !allowed {
		t.Fatal("contentstore should be allowed on first request")
	}

	allowed, err = limiter.Allow(context.Background(), "ledger")
	if err != nil {
		t.Fatalf("Allow(ledger) error = %v", err)
	}
	if allowed {
		t.Fatal("ledger second request should be rejected")
	}
}

func TestRedisRateLimiterWait(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_200, 0)
	sleepCalls := 0
	limiter, err := newRedisRateLimiter(
		rdb,
		1,
		func() time.Time { return now },
		func(ctx context.Context, d time.Duration) error {
			sleepCalls++
			if sleepCalls == 1 {
				now = now.Add(time.Second)
			}
			return nil
		},
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	allowed, err := limiter.Allow(context.Background(), "contentstore")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("expected first call to be allowed")
	}

	if err := limiter.Wait(context.Background(), "contentstore"); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if sleepCalls == 0 {
		t.Fatal("expected Wait() to sleep at least once")
	}
}

func TestRedisRateLimiterWaitContextDeadline(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_300, 0)
	limiter, err := newRedisRateLimiter(
		rdb,
		1,
		func() time.Time { return now },
		sleepWithContext,
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	allowed, err := limiter.Allow(context.Background(), "ledger")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("expected first call to be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	err = limiter.Wait(ctx, "ledger")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestRedisRateLimiterServiceLimit(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_400, 0)
	limiter, err := newRedisRateLimiter(
		rdb,
		3,
		func() time.Time { return now },
		sleepWithContext,
		WithServiceLimit(" Ledger ", 1),
		WithServiceLimit("contentstore", 0),
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	if got := limiter.limitFor("ledger"); got != 1 {
		t.Fatalf("ledger limit = %d, want 1", got)
	}
	if got := limiter.limitFor("contentstore"); got != 3 {
		t.Fatalf("contentstore limit = %d, want default 3", got)
	}

	allowed, err := limiter.Allow(context.Background(), "ledger")
	if err != nil || !allowed {
		t.Fatalf("first ledger call = %t, %v", allowed, err)
	}
	allowed, err = limiter.Allow(context.Background(), "LEDGER")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Fatal("second ledger call in the same window should be rejected")
	}
}

func TestRedisRateLimiterUntilNextWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		offset time.Duration
		want   time.Duration
	}{
		{name: "start of window caps at max", offset: 0, want: maxWait},
		{name: "near rollover", offset: 980 * time.Millisecond, want: 20 * time.Millisecond},
		{name: "floor at min", offset: 999 * time.Millisecond, want: minWait},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			now := time.Unix(1_700_000_500, 0).Add(tt.offset)
			limiter := &RedisRateLimiter{now: func() time.Time { return now }}
			if got := limiter.untilNextWindow(); got != tt.want {
				t.Fatalf("untilNextWindow() = %v, want %v", got, tt.want)
			}
		})
	}
}

func newTestRedisClient(t *testing.T) *goredis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return rdb
}

func TestRedisRateLimiterAllowRequiresServiceKey(t *testing.T) {
	t.Parallel()

	limiter, err := NewRedisRateLimiter(newTestRedisClient(t), 0)
	if err != nil {
		t.Fatalf("NewRedisRateLimiter() error = %v", err)
	}
	if limiter.limitPerSec != defaultLimitPerSec {
		t.Fatalf("limitPerSec = %d, want %d", limiter.limitPerSec, defaultLimitPerSec)
	}

	if _, err := limiter.Allow(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank service key")
	}
}

func TestNewRedis(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	client, err := NewRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	_ = client.Close()

	if _, err := NewRedis(context.Background(), "not-a-url"); err == nil {
		t.Fatal("expected error for invalid url")
	}
}
