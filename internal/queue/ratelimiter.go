package queue

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter caps upstream-API fan-out per queue, per §4.3's "each queue
// has an associated rate limiter (max jobs per duration window)" and §4.4's
// "shared rate limiter caps upstream-API fan-out".
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter allowing up to max events per window,
// with a burst equal to max.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	if max <= 0 {
		max = 1
	}
	r := rate.Limit(float64(max) / window.Seconds())
	return &RateLimiter{limiter: rate.NewLimiter(r, max)}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow reports whether a token is available right now, without blocking.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}
