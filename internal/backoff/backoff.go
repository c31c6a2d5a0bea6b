// Package backoff computes retry delays for the HTTP transport and the push
// channel supervisor.
package backoff

import (
	"context"
	"time"
)

const (
	DefaultMin = 100 * time.Millisecond
	DefaultMax = 5 * time.Second
)

// Exponential returns minDelay doubled attempt times, capped at maxDelay.
// Attempt 0 yields minDelay.
func Exponential(attempt int, minDelay, maxDelay time.Duration) time.Duration {
	minDelay, maxDelay = bounds(minDelay, maxDelay)

	if attempt <= 0 {
		return minDelay
	}

	// min<<attempt <= max exactly when min <= max>>attempt; checking it this
	// way also keeps the shift from overflowing.
	if attempt >= 62 || minDelay > maxDelay>>uint(attempt) {
		return maxDelay
	}

	return minDelay << uint(attempt)
}

func bounds(minDelay, maxDelay time.Duration) (time.Duration, time.Duration) {
	if minDelay <= 0 {
		minDelay = DefaultMin
	}

	if maxDelay <= 0 {
		maxDelay = DefaultMax
	}

	return minDelay, max(maxDelay, minDelay)
}

// After is the clock seam used by Wait. Tests substitute a channel they
// control; nil means a real timer.
type After func(d time.Duration) <-chan time.Time

// Wait blocks for d or until ctx is done and reports whether d elapsed.
// With a nil after the timer is stopped on cancel, so nothing outlives the
// call.
func Wait(ctx context.Context, d time.Duration, after After) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	if after != nil {
		select {
		case <-ctx.Done():
			return false
		case <-after(d):
			return true
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
