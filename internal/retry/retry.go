// Package retry provides a small explicit retry policy used by the fetch and
// report layers. Call sites pass the policy to Do rather than wrapping their
// functions; there is no decorator-style magic to trace through.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how an operation is retried: how many attempts are made
// in total and how long the first backoff interval is. Subsequent intervals
// double, with jitter. NonRetryable marks errors that must propagate
// immediately regardless of remaining attempts.
type Policy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	NonRetryable func(error) bool
}

// DefaultPolicy mirrors the configured defaults: three attempts, two second
// base delay.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	return p
}

// Do runs op under the policy and returns its last result. The final
// attempt's error propagates unchanged; a NonRetryable error propagates from
// whichever attempt produced it.
func Do[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	p = p.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	b.MaxInterval = 2 * time.Minute
	b.MaxElapsedTime = 0

	wrapped := func() (T, error) {
		v, err := op()
		if err != nil && p.NonRetryable != nil && p.NonRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	return backoff.RetryWithData(wrapped,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx))
}
