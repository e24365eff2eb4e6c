package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		return errors.New("always failing")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnFatalError(t *testing.T) {
	calls := 0
	fatal := NewFatalError(errors.New("bad input"))
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return fatal
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Retry(ctx, Policy{
		MaxAttempts:     10,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
	}, func() error {
		calls++
		cancel()
		return errors.New("transient")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithCallback(t *testing.T) {
	var attempts []int
	err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		return errors.New("transient")
	}, func(attempt int, err error, nextDelay time.Duration) {
		attempts = append(attempts, attempt)
		assert.Positive(t, nextDelay)
	})

	require.Error(t, err)
	// The callback fires before each wait, not after the final failure.
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestCalculateBackoffDuration(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{name: "first retry", attempt: 0, want: time.Second},
		{name: "second retry doubles", attempt: 1, want: 2 * time.Second},
		{name: "third retry doubles again", attempt: 2, want: 4 * time.Second},
		{name: "capped at max", attempt: 10, want: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateBackoffDuration(tt.attempt, time.Second, 2.0, 30*time.Second)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFatalAndRetryableWrappers(t *testing.T) {
	base := errors.New("boom")

	fatal := NewFatalError(base)
	assert.True(t, fatal.IsFatal())
	assert.ErrorIs(t, fatal, base)

	retryable := NewRetryableError(base)
	assert.True(t, retryable.IsRetryable())
	assert.ErrorIs(t, retryable, base)

	assert.Nil(t, NewFatalError(nil))
	assert.Nil(t, NewRetryableError(nil))
}
