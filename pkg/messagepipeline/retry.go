package messagepipeline

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy is a bounded retry with a pluggable delay function. Tests inject
// near-zero delays; services configure it from the environment.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first. Values
	// below 1 are treated as 1.
	MaxAttempts int
	// Delay returns the wait after the given failed attempt (1-based).
	Delay func(attempt int) time.Duration
	// ShouldRetry, when set, stops the loop early for errors it rejects.
	ShouldRetry func(err error) bool
}

// FixedDelay waits the same duration after every failed attempt.
func FixedDelay(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// ExponentialDelay doubles the wait after each failed attempt, capped at ceiling.
func ExponentialDelay(base, ceiling time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= ceiling {
				return ceiling
			}
		}
		return d
	}
}

// RetryError is returned when every attempt failed. It wraps the last error.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// Do runs fn until it succeeds, the attempts are used up, or ctx is done.
// onRetry, when non-nil, is called after each failed attempt that will be retried.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error, onRetry func(attempt int, err error, wait time.Duration)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return &RetryError{Attempts: attempt - 1, Err: lastErr}
		}
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if p.ShouldRetry != nil && !p.ShouldRetry(lastErr) {
			return &RetryError{Attempts: attempt, Err: lastErr}
		}
		var wait time.Duration
		if p.Delay != nil {
			wait = p.Delay(attempt)
		}
		if onRetry != nil {
			onRetry(attempt, lastErr, wait)
		}
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return &RetryError{Attempts: attempt, Err: lastErr}
			case <-timer.C:
			}
		}
	}
	return &RetryError{Attempts: attempts, Err: lastErr}
}
