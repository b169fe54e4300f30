// Package backoff computes capped exponential delays and sleeps on them
// without ignoring context cancellation.
package backoff

import (
	"context"
	"math"
	"time"
)

const maxShift = 62

// Exponential returns base * 2^attempt with overflow protection.
// Negative attempts are treated as 0.
func Exponential(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}

	if attempt < 0 {
		attempt = 0
	} else if attempt > maxShift {
		attempt = maxShift
	}

	multiplier := int64(1) << attempt

	if int64(base) > math.MaxInt64/multiplier {
		return time.Duration(math.MaxInt64)
	}

	return base * time.Duration(multiplier)
}

// Capped returns min(base * 2^(n-1), limit) for the n-th attempt, n starting at 1.
// A non-positive limit disables the cap.
func Capped(base time.Duration, n int, limit time.Duration) time.Duration {
	if n < 1 {
		n = 1
	}

	d := Exponential(base, n-1)
	if limit > 0 && d > limit {
		return limit
	}

	return d
}

// Sleep blocks for d or until ctx is done. It reports whether the full
// duration elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
