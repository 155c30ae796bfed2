// Package backoff retries calls that an upstream API rejected for rate limits.
//
// A rate-limited call sleeps a fixed interval and is reissued unchanged, with
// no retry cap; only context cancellation ends the loop. Every other error is
// returned to the caller on the first attempt.
package backoff

import (
	"context"
	"errors"
	"time"

	"reviewharvest/internal/services"
)

// DefaultInterval is the pause between a throttled call and its retry.
const DefaultInterval = 100 * time.Second

// Policy wraps a call with fixed-interval retry on rate-limit errors.
// The zero value retries services.ErrRateLimited every DefaultInterval.
type Policy struct {
	// Interval between attempts. Non-positive values use DefaultInterval.
	Interval time.Duration
	// Classify reports whether err is a rate-limit signal. Defaults to
	// errors.Is(err, services.ErrRateLimited).
	Classify func(error) bool
	// Sleep blocks for d. Tests replace it to avoid real waits.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnWait runs before each sleep with the call's context, the attempt
	// number (1-based) and the error that triggered the wait.
	OnWait func(ctx context.Context, attempt int, err error)
}

// Do invokes fn until it succeeds, fails with a non-rate-limit error, or ctx
// is cancelled while waiting.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	classify := p.Classify
	if classify == nil {
		classify = IsRateLimited
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepWithContext
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || !classify(err) {
			return err
		}
		if p.OnWait != nil {
			p.OnWait(ctx, attempt, err)
		}
		if serr := sleep(ctx, interval); serr != nil {
			return errors.Join(err, serr)
		}
	}
}

// Retry is Do for calls that produce a value.
func Retry[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// IsRateLimited reports whether err carries the rate-limit marker.
func IsRateLimited(err error) bool {
	return errors.Is(err, services.ErrRateLimited)
}

// SleepWithContext blocks for d, returning early if ctx is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
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
