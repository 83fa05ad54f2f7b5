package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponentialCappedPolicy(t *testing.T) {
	t.Parallel()

	policy := ExponentialCapped(100*time.Millisecond, time.Second)

	require.Equal(t, 200*time.Millisecond, policy(1))
	require.Equal(t, 400*time.Millisecond, policy(2))
	require.Equal(t, 800*time.Millisecond, policy(3))
	require.Equal(t, time.Second, policy(4))
	require.Equal(t, time.Second, policy(10))
}

func TestDoRetriesRateLimitedCalls(t *testing.T) {
	t.Parallel()

	var slept []time.Duration
	sleeper := func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	runner := NewRunner(3, ExponentialCapped(100*time.Millisecond, time.Second), sleeper)

	calls := 0
	rateLimited := errors.New("rate limited")
	attempts, err := runner.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return rateLimited
	}, func(error) bool { return true })

	require.ErrorIs(t, err, rateLimited)
	require.Equal(t, 3, attempts)
	require.Equal(t, 3, calls)
	require.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, slept)

	var total time.Duration
	for _, d := range slept {
		total += d
	}
	require.LessOrEqual(t, total, 1300*time.Millisecond)
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	t.Parallel()

	runner := NewRunner(3, nil, func(ctx context.Context, d time.Duration) error {
		t.Fatalf("sleep should not be called")
		return nil
	})

	calls := 0
	permanent := errors.New("invalid request")
	attempts, err := runner.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return permanent
	}, func(error) bool { return false })

	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, attempts)
	require.Equal(t, 1, calls)
}

func TestDoReturnsOnFirstSuccess(t *testing.T) {
	t.Parallel()

	runner := NewRunner(3, nil, func(ctx context.Context, d time.Duration) error { return nil })

	calls := 0
	attempts, err := runner.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	}, func(error) bool { return true })

	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(3, ExponentialCapped(100*time.Millisecond, time.Second), SystemSleeper)
	_, err := runner.Do(ctx, func(ctx context.Context) error {
		return errors.New("transient")
	}, func(error) bool { return true })

	require.ErrorIs(t, err, context.Canceled)
}
