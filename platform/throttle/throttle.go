// Package throttle provides outbound call pacing and throttle-aware retries.
// This is part of the platform layer and contains no business logic.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadcheck_backend/platform/apperr"
	"leadcheck_backend/platform/logger"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

// RetryAfterError signals that an upstream answered with "too many requests".
// Delay carries the server-provided Retry-After value when one was present.
type RetryAfterError struct {
	Delay time.Duration
}

func (e *RetryAfterError) Error() string {
	if e.Delay > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.Delay)
	}
	return "rate limited"
}

// Limiter paces outbound calls to one upstream API using a token bucket
// sized to the upstream's published window.
type Limiter struct {
	name    string
	limiter *rate.Limiter
}

// NewWindowLimiter creates a limiter allowing at most calls requests per window.
func NewWindowLimiter(name string, calls int, window time.Duration) *Limiter {
	if calls < 1 {
		calls = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &Limiter{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(float64(calls)/window.Seconds()), calls),
	}
}

// Wait blocks until the next call is allowed or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Name returns the upstream API name this limiter paces.
func (l *Limiter) Name() string { return l.name }

// Caller pairs a pacing limiter with bounded retries on throttling signals.
// It is the only layer that absorbs transient failure; every other layer
// treats an error as final for its unit of work.
type Caller struct {
	limiter    *Limiter
	maxRetries uint64
	pause      time.Duration
	log        *logger.Logger
}

// NewCaller creates a throttled caller. maxRetries bounds how often a single
// call is re-attempted after a throttling signal; pause is the fallback delay
// when the upstream does not provide one.
func NewCaller(limiter *Limiter, maxRetries int, pause time.Duration, log *logger.Logger) *Caller {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if pause <= 0 {
		pause = 15 * time.Second
	}
	return &Caller{
		limiter:    limiter,
		maxRetries: uint64(maxRetries),
		pause:      pause,
		log:        log,
	}
}

// Do runs fn, waiting on the limiter before every attempt. When fn returns a
// RetryAfterError the call is retried after the server-provided delay (or the
// configured pause), up to the retry budget. Exhaustion surfaces as a
// KindRateLimited error; any other error from fn is returned as-is.
func (c *Caller) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := 0
	nextDelay := c.pause

	backoff := retry.WithMaxRetries(c.maxRetries, retry.BackoffFunc(func() (time.Duration, bool) {
		return nextDelay, false
	}))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := fn(ctx)
		var throttled *RetryAfterError
		if errors.As(err, &throttled) {
			attempt++
			nextDelay = c.pause
			if throttled.Delay > 0 {
				nextDelay = throttled.Delay
			}
			if c.log != nil {
				c.log.RateLimitWait(c.limiter.Name(), nextDelay, attempt)
			}
			return retry.RetryableError(err)
		}

		return err
	})

	var throttled *RetryAfterError
	if errors.As(err, &throttled) {
		return apperr.Wrap(apperr.KindRateLimited, c.limiter.Name()+" retries exhausted", err)
	}

	return err
}
