package retry

import (
	"context"
	"time"
)

// Policy computes the wait before the next attempt. Attempts are counted
// from 1.
type Policy func(attempt int) time.Duration

// ExponentialCapped doubles the base per attempt and caps the result.
func ExponentialCapped(base, cap time.Duration) Policy {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := base
		for i := 0; i < attempt; i++ {
			d *= 2
			if d >= cap {
				return cap
			}
		}
		return d
	}
}

// Sleeper waits for the given duration or until the context is done.
// Injectable so retry behavior is testable without real waits.
type Sleeper func(ctx context.Context, d time.Duration) error

// SystemSleeper blocks on a timer.
func SystemSleeper(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Runner retries an operation according to a policy.
type Runner struct {
	MaxAttempts int
	Policy      Policy
	Sleep       Sleeper
}

// NewRunner builds a runner with sane defaults for zero values.
func NewRunner(maxAttempts int, policy Policy, sleep Sleeper) Runner {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if policy == nil {
		policy = ExponentialCapped(100*time.Millisecond, time.Second)
	}
	if sleep == nil {
		sleep = SystemSleeper
	}
	return Runner{MaxAttempts: maxAttempts, Policy: policy, Sleep: sleep}
}

// Do invokes fn until it succeeds, retryable reports false, or attempts
// are exhausted. The last error is returned alongside the attempt count.
func (r Runner) Do(ctx context.Context, fn func(ctx context.Context) error, retryable func(error) bool) (int, error) {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		if retryable != nil && !retryable(lastErr) {
			return attempt, lastErr
		}
		if attempt == attempts {
			break
		}
		if err := r.Sleep(ctx, r.Policy(attempt)); err != nil {
			return attempt, err
		}
	}
	return attempts, lastErr
}
