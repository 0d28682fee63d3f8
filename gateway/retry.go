package gateway

import (
	"context"
	"time"
)

// RetryConfig configures DoWithRetry.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// BaseDelay is the first backoff interval; attempt n waits
	// BaseDelay * 2^n.
	BaseDelay time.Duration
}

// DefaultRetryConfig matches the client's standard retry budget.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Second}
}

// DoWithRetry invokes fn with exponential backoff until it succeeds, the
// retry budget is exhausted, or the failure is classified as not retryable
// (Unauthorized, Validation). The error returned is the one from the last
// attempt. The backoff sleep honors ctx cancellation.
func DoWithRetry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == cfg.MaxRetries || !KindOf(err).Retryable() {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(cfg.BaseDelay << attempt):
		}
	}
	return zero, lastErr
}
