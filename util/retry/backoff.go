package retry

import (
	"context"
	"time"
)

// sleepFunc waits for d or until ctx is done. Tests replace it to record the requested waits.
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// LinearBackoff returns (backoffMultiplier*retries + 1) units of durationType.
func LinearBackoff(retries int, backoffMultiplier int, durationType time.Duration) time.Duration {
	return time.Duration(backoffMultiplier*retries+1) * durationType
}

// BackoffAndSleep sleeps for LinearBackoff(retries, backoffMultiplier, durationType) and returns
// the context error when ctx is done first.
func BackoffAndSleep(ctx context.Context, retries int, backoffMultiplier int, durationType time.Duration) error {
	return sleepFunc(ctx, LinearBackoff(retries, backoffMultiplier, durationType))
}

// CappedExponentialBackoff returns currentBackoff multiplied by backoffFactor, never more than maxBackoff.
func CappedExponentialBackoff(currentBackoff time.Duration, backoffFactor float64, maxBackoff time.Duration) time.Duration {
	next := time.Duration(float64(currentBackoff) * backoffFactor)
	if next > maxBackoff {
		return maxBackoff
	}

	return next
}
