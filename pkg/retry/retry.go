package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// Policy describes a bounded retry: total attempts and a constant pause
// between them. The platform default is deliberately small; anything that
// needs more than a couple of attempts should fail loudly instead.
type Policy struct {
	Attempts int
	Backoff  time.Duration
}

// Validate reports whether the policy can be executed.
func (p Policy) Validate() error {
	if p.Attempts < 1 {
		return fmt.Errorf("attempts must be at least 1")
	}
	if p.Backoff < 0 {
		return fmt.Errorf("backoff must not be negative")
	}
	return nil
}

// Do runs fn until it succeeds or the policy is exhausted. Every error from
// fn is treated as retryable; the last error is returned on exhaustion.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	if err := policy.Validate(); err != nil {
		return err
	}

	backoff := retry.WithMaxRetries(uint64(policy.Attempts-1), retry.NewConstant(max(policy.Backoff, time.Nanosecond)))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
