package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket in front of outbound notification dispatch so a
// burst of queued events cannot flood the downstream webhook.
// Burst equals the rate: no saved-up capacity beyond the per-second maximum.
type Limiter struct {
	l *rate.Limiter
}

// New creates a limiter allowing ratePerSec sends per second.
// A non-positive rate disables limiting.
func New(ratePerSec int) *Limiter {
	if ratePerSec <= 0 {
		return &Limiter{l: rate.NewLimiter(rate.Inf, 0)}
	}
	return &Limiter{l: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)}
}

// Wait blocks until a token is available.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (lim *Limiter) Wait(ctx context.Context) error {
	return lim.l.Wait(ctx)
}
