package limiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles outbound calls to one per interval with the
// given burst. Used to keep best-effort peer lookups from flooding
// the peer services under request spikes.
type Limiter struct {
	limiter *rate.Limiter
}

func New(interval time.Duration, burst int) *Limiter {
	return &Limiter{limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

// Wait blocks until a call is permitted or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a call is permitted right now.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
