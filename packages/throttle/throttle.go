// Package throttle limits how fast a client sends calls.
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by every call that goes through its
// transform.
type Limiter struct {
	limiter *rate.Limiter
	target  float64
}

// New returns a limiter allowing rps calls per second with the given burst.
// A non-positive rps means unlimited.
func New(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		target:  rps,
	}
}

// Wait blocks until a call may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// SetRate changes the allowed rate. Non-positive values remove the limit.
func (l *Limiter) SetRate(rps float64) {
	if rps <= 0 {
		l.limiter.SetLimit(rate.Inf)
		return
	}
	l.limiter.SetLimit(rate.Limit(rps))
}

// Rate returns the current limit in calls per second.
func (l *Limiter) Rate() float64 {
	return float64(l.limiter.Limit())
}

// CurrentRate returns the target rate after elapsed of a linear ramp-up.
func (l *Limiter) CurrentRate(elapsed, rampUp time.Duration) float64 {
	if rampUp <= 0 || elapsed >= rampUp {
		return l.target
	}
	progress := float64(elapsed) / float64(rampUp)
	return l.target * progress
}

// RampUp raises the rate linearly from zero to the target over rampUp,
// adjusting every step. It returns when the target is reached or ctx is done.
func (l *Limiter) RampUp(ctx context.Context, rampUp, step time.Duration) {
	if rampUp <= 0 || l.target <= 0 {
		return
	}
	if step <= 0 {
		step = 100 * time.Millisecond
	}

	start := time.Now()
	ticker := time.NewTicker(step)
	defer ticker.Stop()

	// rate.Limit(0) blocks every waiter, so start from a small positive rate
	l.SetRate(max(l.CurrentRate(0, rampUp), l.target/100))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(start)
			l.SetRate(max(l.CurrentRate(elapsed, rampUp), l.target/100))
			if elapsed >= rampUp {
				return
			}
		}
	}
}

// Transform returns a request transform that waits for a token. A wait cut
// short by the call's context fails the call, which then classifies as a
// cancellation or timeout.
func (l *Limiter) Transform() http.RequestTransform {
	return func(ctx context.Context, req *http.RequestConfig) error {
		if req.Context != nil {
			ctx = req.Context
		}
		if err := l.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return &http.AbortError{Reason: context.Cause(ctx), Err: err}
			}
			// the wait would outlast the deadline, so it fails early
			if _, ok := ctx.Deadline(); ok {
				return &http.AbortError{Reason: context.DeadlineExceeded, Err: err}
			}
			return fmt.Errorf("waiting for rate limit: %w", err)
		}
		return nil
	}
}
