// Package retry runs operations under a bounded attempt policy.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy bounds how often and how eagerly an operation is retried
type Policy struct {
	MaxAttempts int           // Total attempts, including the first
	Delay       time.Duration // Wait before the second attempt
	Backoff     float64       // Delay multiplier per attempt; <= 1 keeps it fixed
}

// Fixed returns a policy with a constant inter-attempt delay
func Fixed(attempts int, delay time.Duration) Policy {
	return Policy{MaxAttempts: attempts, Delay: delay}
}

// Exponential returns a policy whose delay doubles after every attempt
func Exponential(attempts int, base time.Duration) Policy {
	return Policy{MaxAttempts: attempts, Delay: base, Backoff: 2}
}

// delayBefore returns the wait before the given (1-based) attempt
func (p Policy) delayBefore(attempt int) time.Duration {
	if attempt <= 1 || p.Delay <= 0 {
		return 0
	}
	d := p.Delay
	if p.Backoff > 1 {
		for i := 2; i < attempt; i++ {
			d = time.Duration(float64(d) * p.Backoff)
		}
	}
	return d
}

// permanent marks an error that must not be retried
type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent wraps err so Do returns it immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, or the policy is exhausted.
// fn receives the 1-based attempt number. The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if wait := p.delayBefore(attempt); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}

		var perm permanent
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err
	}
	return lastErr
}
