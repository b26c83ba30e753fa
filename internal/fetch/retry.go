package fetch

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy builds the delay schedule for one request. The schedule is
// consulted after each transient failure; backoff.Stop ends the retries.
type RetryPolicy interface {
	NewBackOff() backoff.BackOff
}

// ExponentialBackoff doubles the delay after each failure, capped at
// MaxDelay. MaxAttempts bounds the total number of attempts and MaxElapsed,
// when set, the total time spent retrying.
type ExponentialBackoff struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxElapsed  time.Duration
}

// DefaultRetryPolicy is used by clients that were not given one.
var DefaultRetryPolicy = ExponentialBackoff{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second}

// NewBackOff implements RetryPolicy. Delays are not jittered.
func (b ExponentialBackoff) NewBackOff() backoff.BackOff {
	if b.MaxAttempts <= 1 {
		return &backoff.StopBackOff{}
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.BaseDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = b.MaxDelay
	if b.MaxDelay <= 0 {
		eb.MaxInterval = time.Duration(math.MaxInt64)
	}
	eb.MaxElapsedTime = b.MaxElapsed
	eb.Reset()
	return backoff.WithMaxRetries(eb, uint64(b.MaxAttempts-1))
}

// NoRetry never retries.
type NoRetry struct{}

// NewBackOff implements RetryPolicy.
func (NoRetry) NewBackOff() backoff.BackOff { return &backoff.StopBackOff{} }
