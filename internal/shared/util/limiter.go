package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps rate.Limiter to provide a simpler interface.
type Limiter struct {
	inner *rate.Limiter
}

// NewLimiter creates a new token bucket limiter.
// r: tokens per second.
// b: burst size.
func NewLimiter(r float64, b int) *Limiter {
	return &Limiter{
		inner: rate.NewLimiter(rate.Limit(r), b),
	}
}

// Allow reports whether an event with weight n may happen at time now.
func (l *Limiter) Allow(n int) bool {
	return l.inner.AllowN(time.Now(), n)
}

// Wait blocks until n tokens are available.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	return l.inner.WaitN(ctx, n)
}

// Pacer throttles bulk iteration: every N-th call to Tick blocks on the
// underlying limiter. N <= 0 disables pacing entirely.
type Pacer struct {
	limiter *Limiter
	every   int
	count   int
}

func NewPacer(every int, r float64, b int) *Pacer {
	if every <= 0 {
		return &Pacer{}
	}
	return &Pacer{limiter: NewLimiter(r, b), every: every}
}

// Tick counts one unit of work and blocks when the pacing boundary is hit.
func (p *Pacer) Tick(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return nil
	}
	p.count++
	if p.count%p.every != 0 {
		return nil
	}
	return p.limiter.Wait(ctx, 1)
}
