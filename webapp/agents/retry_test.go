package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guardian/enginimate/common/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsEventually(t *testing.T) {
	calls := 0
	err := fastRetry.Do(context.Background(), "plan", "job", func(ctx context.Context) error {
		calls += 1
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	err := fastRetry.Do(context.Background(), "plan", "job", func(ctx context.Context) error {
		calls += 1
		return errors.New("provider down")
	})

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "plan", stepErr.Step)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "provider down")
}

func TestRetryStopsOnCancel(t *testing.T) {
	policy := RetryPolicy{Attempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffMultiplier: 1}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := policy.Do(ctx, "plan", "job", func(ctx context.Context) error {
		calls += 1
		cancel()
		return errors.New("failed")
	})
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, 1, calls)
}

func TestBackoffIsCapped(t *testing.T) {
	policy := NewRetryPolicy(helpers.AgentsConfig{
		Attempts:          5,
		InitialBackoff:    time.Second,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2,
	})
	assert.Equal(t, time.Second, policy.Backoff(0))
	assert.Equal(t, 2*time.Second, policy.Backoff(1))
	assert.Equal(t, 4*time.Second, policy.Backoff(2))
	assert.Equal(t, 5*time.Second, policy.Backoff(3))
}

func TestRetryPolicyDefaults(t *testing.T) {
	policy := NewRetryPolicy(helpers.AgentsConfig{})
	assert.Equal(t, DefaultAttempts, policy.Attempts)
	assert.Equal(t, DefaultInitialBackoff, policy.InitialBackoff)
	assert.Equal(t, DefaultMaxBackoff, policy.MaxBackoff)
	assert.Equal(t, DefaultBackoffMultiplier, policy.BackoffMultiplier)
}
