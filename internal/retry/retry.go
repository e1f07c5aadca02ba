package retry

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultBaseDelay       = time.Second
	defaultMaxDelay        = time.Minute
	defaultMaxJitterMillis = 250
)

// Policy bounds how often and how fast a failing call is repeated.
// The zero value performs exactly one attempt.
type Policy struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	MaxJitterMillis int

	randIntn func(int) int
	sleep    func(context.Context, time.Duration) error
}

// NewPolicy returns a policy with exponential backoff from 1s up to 1m.
func NewPolicy(maxRetries int) Policy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return Policy{
		MaxRetries:      maxRetries,
		BaseDelay:       defaultBaseDelay,
		MaxDelay:        defaultMaxDelay,
		MaxJitterMillis: defaultMaxJitterMillis,
		randIntn:        rand.Intn,
		sleep:           sleepWithContext,
	}
}

// Delay returns the wait before the given retry (1-based).
func (p Policy) Delay(retryNumber int) time.Duration {
	if retryNumber < 1 {
		retryNumber = 1
	}

	delay := p.BaseDelay
	for i := 1; i < retryNumber; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	jitterMillis := 0
	if p.randIntn != nil && p.MaxJitterMillis > 0 {
		jitterMillis = p.randIntn(p.MaxJitterMillis + 1)
	}

	return delay + time.Duration(jitterMillis)*time.Millisecond
}

// Do runs fn until it succeeds, returns a non-transient error, or the retries
// are used up. The last error is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx, attempt)
		if err == nil || !IsTransient(err) || attempt > p.MaxRetries {
			return err
		}
		if waitErr := sleep(ctx, p.Delay(attempt)); waitErr != nil {
			return err
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WithSleep replaces the wait between attempts.
func (p Policy) WithSleep(sleep func(context.Context, time.Duration) error) Policy {
	p.sleep = sleep
	return p
}
