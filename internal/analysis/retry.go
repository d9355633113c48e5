package analysis

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy is exponential backoff for optional analysis services.
type RetryPolicy struct {
	BaseInterval time.Duration
	Multiplier   float64
	MaxAttempts  uint
}

// DefaultRetryPolicy waits 1s then 2s between three attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{BaseInterval: time.Second, Multiplier: 2, MaxAttempts: 3}
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = p.BaseInterval << p.MaxAttempts
	return b
}

// retry runs op until it succeeds, attempts run out or ctx ends.
func retry[T any](ctx context.Context, p RetryPolicy, op func() (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	return backoff.Retry(ctx, backoff.Operation[T](op),
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(attempts),
	)
}
