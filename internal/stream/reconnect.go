package stream

import (
	"math"
	"math/rand"
	"time"
)

// reconnector computes backoff delays for reconnect attempts: exponential
// from base up to max, with up to 50% of base as jitter. A connection that
// stayed up for over a minute resets the attempt counter, so a long-lived
// link that drops once starts over from the base delay.
type reconnector struct {
	base        time.Duration
	max         time.Duration
	maxAttempts int // 0 means unlimited
	attempt     int
	connectedAt time.Time
}

func newReconnector(base, max time.Duration, maxAttempts int) *reconnector {
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = 30 * time.Second
	}
	return &reconnector{base: base, max: max, maxAttempts: maxAttempts}
}

func (r *reconnector) shouldRetry() bool {
	return r.maxAttempts == 0 || r.attempt < r.maxAttempts
}

func (r *reconnector) markConnected() {
	r.connectedAt = time.Now()
}

func (r *reconnector) nextDelay() time.Duration {
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > 60*time.Second {
		r.attempt = 0
	}
	jitter := time.Duration(rand.Float64() * float64(r.base) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.base)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.max),
	))
	r.attempt++
	return delay
}

func (r *reconnector) reset() {
	r.attempt = 0
	r.connectedAt = time.Time{}
}
