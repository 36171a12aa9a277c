package channels

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter caps the bot's own burst of REST calls across all routes.
// discordgo still honours Discord's per-route buckets underneath it.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows perSecond calls on average with bursts up to burst.
// Non-positive values fall back to one.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until op may proceed. It fails with ErrCodeTimeout when ctx
// ends first, or would end before a slot frees up.
func (r *RateLimiter) Wait(ctx context.Context, op string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return ErrTimeout("rate limit wait cancelled", err).WithOp(op)
	}
	return nil
}
