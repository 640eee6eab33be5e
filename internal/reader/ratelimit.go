package reader

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttle paces outbound requests to a secrets store. One Throttle may be
// shared by many readers so that they draw from a single token bucket.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle returns a token-bucket throttle. A non-positive rate disables
// throttling and returns nil, which is a valid no-op Throttle.
func NewThrottle(ratePerSecond float64, burst int) *Throttle {
	if ratePerSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}

	return &Throttle{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Wait blocks until a request may proceed or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.limiter == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}
