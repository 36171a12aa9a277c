// Package retry runs short, bounded retry loops with exponential backoff.
// It is used for startup work (opening the Discord session, resolving the
// announcement channel) where a transient failure should not need a full
// monitor tick to recover.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Policy bounds a retry loop. Delays double from Base up to Cap.
type Policy struct {
	// Attempts is the total number of tries, including the first. Values
	// below one mean a single try.
	Attempts int

	Base time.Duration
	Cap  time.Duration

	// Jitter scales each delay by a random factor in [0.5, 1.5).
	Jitter bool

	// Retryable decides whether an error is worth another try.
	// Nil retries everything not wrapped with Stop.
	Retryable func(error) bool
}

// Connect is the policy for establishing the gateway session.
var Connect = Policy{Attempts: 5, Base: time.Second, Cap: 30 * time.Second, Jitter: true}

// Lookup is the policy for one-off REST lookups such as channel resolution.
var Lookup = Policy{Attempts: 3, Base: 250 * time.Millisecond, Cap: 2 * time.Second}

// Outcome reports how a retry loop ended.
type Outcome struct {
	Attempts int
	Err      error
	Elapsed  time.Duration
}

// Do calls op until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx ends. op receives the 1-based attempt number.
func Do(ctx context.Context, p Policy, op func(ctx context.Context, attempt int) error) Outcome {
	start := time.Now()
	attempts := max(p.Attempts, 1)

	var out Outcome
	for attempt := 1; ; attempt++ {
		out.Attempts = attempt
		if err := ctx.Err(); err != nil {
			out.Err = err
			break
		}

		out.Err = op(ctx, attempt)
		if out.Err == nil || attempt >= attempts || !p.retryable(out.Err) {
			break
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			out.Err = ctx.Err()
			out.Elapsed = time.Since(start)
			return out
		case <-timer.C:
		}
	}

	out.Elapsed = time.Since(start)
	return out
}

// Value is Do for operations that produce a result. The returned value is
// the one from the last attempt.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error)) (T, Outcome) {
	var value T
	out := Do(ctx, p, func(ctx context.Context, attempt int) error {
		var err error
		value, err = op(ctx, attempt)
		return err
	})
	return value, out
}

func (p Policy) retryable(err error) bool {
	if IsStop(err) {
		return false
	}
	return p.Retryable == nil || p.Retryable(err)
}

// Delay returns the wait after the given failed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	base, limit := p.Base, p.Cap
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if limit <= 0 {
		limit = 10 * time.Second
	}

	delay := base
	for i := 1; i < attempt && delay < limit; i++ {
		delay *= 2
	}
	delay = min(delay, limit)

	if p.Jitter {
		delay = time.Duration(float64(delay) * (0.5 + rand.Float64())) // #nosec G404 -- jitter only
	}
	return delay
}

type stopError struct {
	err error
}

func (e *stopError) Error() string { return e.err.Error() }
func (e *stopError) Unwrap() error { return e.err }

// Stop marks err as final so Do returns it without further attempts.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &stopError{err: err}
}

// IsStop reports whether err was marked with Stop.
func IsStop(err error) bool {
	var stop *stopError
	return errors.As(err, &stop)
}
