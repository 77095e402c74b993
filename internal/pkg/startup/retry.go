// Package startup holds helpers used while wiring backends at boot.
package startup

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultAttempts = 5
	DefaultBase     = 200 * time.Millisecond
)

// Retry runs fn with exponential backoff until it succeeds, attempts retries
// are spent or ctx ends. Every error from fn is treated as retryable.
func Retry(ctx context.Context, attempts uint64, base time.Duration, fn func(context.Context) error) error {
	if base <= 0 {
		base = DefaultBase
	}
	b := retry.WithMaxRetries(attempts, retry.NewExponential(base))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
