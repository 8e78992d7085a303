package fuzzer

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// RateLimiter controls the request rate shared by all endpoints
type RateLimiter struct {
	limiter *rate.Limiter
	enabled bool
}

// NewRateLimiter creates a new rate limiter. A non-positive rate disables it.
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	if requestsPerSecond <= 0 {
		return &RateLimiter{enabled: false}
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst(requestsPerSecond)),
		enabled: true,
	}
}

// Wait waits until a request can be made
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil || !r.enabled {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}

// Enabled reports whether requests are throttled
func (r *RateLimiter) Enabled() bool {
	return r != nil && r.enabled
}

// burst lets fractional rates below one request per second still pass one token
func burst(requestsPerSecond float64) int {
	return int(math.Max(1, math.Ceil(requestsPerSecond)))
}
