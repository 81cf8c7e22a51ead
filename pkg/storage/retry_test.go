package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        100 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, time.Second, cfg.MaxBackoff)
	assert.Equal(t, 2.0, cfg.BackoffMultiplier)
	assert.Equal(t, 0.1, cfg.JitterFraction)
}

func TestRetryWithBackoff_SuccessAfterRetries(t *testing.T) {
	var attempts int

	err := retryWithBackoff(context.Background(), fastRetry(5), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_ExhaustsAttempts(t *testing.T) {
	var attempts int
	expectedErr := errors.New("persistent error")

	err := retryWithBackoff(context.Background(), fastRetry(3), func() error {
		attempts++
		return expectedErr
	})

	assert.Equal(t, expectedErr, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_NoRetry(t *testing.T) {
	var attempts int

	err := retryWithBackoff(context.Background(), NoRetry(), func() error {
		attempts++
		return errors.New("fail")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithBackoff_RespectsContextCancellation(t *testing.T) {
	cfg := fastRetry(10)
	cfg.InitialBackoff = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	var attempts atomic.Int32

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := retryWithBackoff(ctx, cfg, func() error {
		attempts.Add(1)
		return errors.New("keep failing")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, attempts.Load(), int32(1))
}

func TestRetryWithBackoff_PermanentErrorsAreNotRetried(t *testing.T) {
	for _, permanent := range []error{context.Canceled, context.DeadlineExceeded, gorm.ErrDuplicatedKey} {
		var attempts int
		err := retryWithBackoff(context.Background(), fastRetry(5), func() error {
			attempts++
			return permanent
		})

		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, attempts, "%v", permanent)
	}
}

func TestRetryWithBackoff_BackoffGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    20 * time.Millisecond,
		MaxBackoff:        40 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	var timestamps []time.Time
	err := retryWithBackoff(context.Background(), cfg, func() error {
		timestamps = append(timestamps, time.Now())
		return errors.New("fail")
	})

	assert.Error(t, err)
	require.Len(t, timestamps, 5)
	assert.GreaterOrEqual(t, timestamps[1].Sub(timestamps[0]), 20*time.Millisecond)
	assert.GreaterOrEqual(t, timestamps[2].Sub(timestamps[1]), 40*time.Millisecond)
	for i := 3; i < len(timestamps); i++ {
		assert.Less(t, timestamps[i].Sub(timestamps[i-1]), 200*time.Millisecond, "backoff is capped")
	}
}
