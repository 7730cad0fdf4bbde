// Package backoff contains helpers for dealing with backoffs.
package backoff

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NewExponentialBackOff creates an instance of ExponentialBackOff that stops
// after maxElapsed, or never if maxElapsed is zero.
func NewExponentialBackOff(maxElapsed time.Duration) *backoff.ExponentialBackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(maxElapsed),
	)
}

// Retry calls fn until it succeeds, the context is canceled or maxElapsed
// passes. Errors wrapped with Permanent are not retried.
func Retry(ctx context.Context, maxElapsed time.Duration, fn func() error) error {
	return backoff.Retry(fn, backoff.WithContext(NewExponentialBackOff(maxElapsed), ctx))
}

// Permanent wraps an error so that Retry returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
