package storage

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"gorm.io/gorm"
)

// RetryConfig controls how invocation writes are retried.
type RetryConfig struct {
	// MaxAttempts includes the initial attempt. Values below 1 mean one attempt.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// BackoffMultiplier grows the backoff after each attempt.
	BackoffMultiplier float64

	// JitterFraction randomizes each backoff by up to this fraction (0.0 to 1.0).
	JitterFraction float64
}

// DefaultRetryConfig returns the retry configuration used by InvocationLog.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

// NoRetry makes a single attempt.
func NoRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 1}
}

// retryWithBackoff runs op until it succeeds, fails permanently, runs out of
// attempts or ctx is done. It returns the last error.
func retryWithBackoff(ctx context.Context, config RetryConfig, op func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 1; ; attempt++ {
		lastErr = op()
		if lastErr == nil || !isRetryable(lastErr) || attempt >= config.MaxAttempts {
			return lastErr
		}

		jitter := time.Duration(float64(backoff) * config.JitterFraction * (rand.Float64()*2 - 1))
		sleep := backoff + jitter
		if sleep < 0 {
			sleep = backoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}
}

// isRetryable reports whether err may be transient. Locked sqlite files and
// dropped connections are; cancellation and constraint violations are not.
func isRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrInvalidData):
		return false
	}
	return true
}
