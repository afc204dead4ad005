// Package retry wraps cenkalti/backoff with an explicit attempt policy so
// callers state their schedule as a value instead of wiring timers by hand.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how many attempts an operation gets and how the delay
// between attempts grows. Delay before attempt n is
// InitialInterval * Multiplier^(n-2), with no jitter.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
}

// LeadSubmission is the schedule used for lead-capture submissions: three
// attempts with 1s then 2s between them.
func LeadSubmission() Policy {
	return Policy{MaxAttempts: 3, InitialInterval: time.Second, Multiplier: 2}
}

// Single performs exactly one attempt. The plain chat-send path uses this;
// only lead capture retries.
func Single() Policy {
	return Policy{MaxAttempts: 1}
}

// Do runs op under the policy, waiting between failed attempts. A nil timer
// uses real timers; tests inject a backoff.Timer to capture the requested
// delays without sleeping. The last attempt's error is returned once the
// policy is exhausted or ctx is done.
func Do(ctx context.Context, p Policy, timer backoff.Timer, op func() error) error {
	if p.MaxAttempts <= 1 {
		return op()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.RandomizationFactor = 0
	b.Multiplier = p.Multiplier
	b.MaxInterval = 1 << 40 // never clamp the schedule
	b.MaxElapsedTime = 0

	wrapped := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)
	return backoff.RetryNotifyWithTimer(op, wrapped, nil, timer)
}
