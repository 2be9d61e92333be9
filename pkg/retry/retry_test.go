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
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		Multiplier:   2,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(4), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	boom := errors.New("still broken")
	attempts := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		attempts++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, attempts)
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	rejected := errors.New("401 unauthorized")
	policy := fastPolicy(5)
	policy.Retryable = func(err error) bool { return !errors.Is(err, rejected) }

	attempts := 0
	err := Do(context.Background(), policy, func() error {
		attempts++
		return rejected
	})
	require.ErrorIs(t, err, rejected)
	assert.Equal(t, 1, attempts)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := Do(ctx, fastPolicy(100), func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("flaky")
	})
	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 3)
}

func TestDoSingleAttemptPolicy(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(1), func() error {
		attempts++
		return errors.New("nope")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
