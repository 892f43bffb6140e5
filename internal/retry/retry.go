// Package retry runs an operation under a bounded exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Class tells Do whether an error may be retried.
type Class int

const (
	Retryable Class = iota
	Fatal
)

// Default policy values.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 10 * time.Second
	DefaultJitter      = 0.2
)

// Policy describes a bounded backoff curve: BaseDelay doubling per attempt,
// capped at MaxDelay, randomized by +/- Jitter (fraction of the interval).
type Policy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // wait after the first failure
	MaxDelay    time.Duration // cap for a single wait
	Jitter      float64       // 0 disables randomization

	// Classify decides whether an error is retryable. It is only consulted
	// while ctx is live, so a per-request timeout may be retried.
	// If nil, every error except a nested *ExhaustedError is retryable.
	Classify func(error) Class

	// OnRetry is an optional hook for logging/metrics.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultPolicy returns a policy populated with the package defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Jitter:      DefaultJitter,
	}
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable regardless of Classify.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// IsExhausted reports whether err came from running out of attempts.
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}

// Do calls fn until it succeeds, returns a fatal error, or the attempt budget is spent.
// Fatal errors are returned unwrapped; exhaustion returns *ExhaustedError.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	p = p.normalized()

	classify := p.Classify
	if classify == nil {
		classify = defaultClassify
	}

	curve := p.Curve()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w (last error: %v)", ctxErr, err)
		}

		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		if classify(err) == Fatal {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		wait := curve.NextBackOff()
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}

		if err := Sleep(ctx, wait); err != nil {
			return err
		}
	}

	return &ExhaustedError{Attempts: p.MaxAttempts, Err: lastErr}
}

func defaultClassify(err error) Class {
	if IsExhausted(err) {
		return Fatal
	}
	return Retryable
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = 0
	}
	return p
}

// Curve returns a fresh exponential wait sequence for p. It never stops on its own;
// callers bound it by attempts.
func (p Policy) Curve() *backoff.ExponentialBackOff {
	p = p.normalized()
	curve := backoff.NewExponentialBackOff()
	curve.InitialInterval = p.BaseDelay
	curve.MaxInterval = p.MaxDelay
	curve.Multiplier = 2
	curve.RandomizationFactor = p.Jitter
	curve.MaxElapsedTime = 0
	curve.Reset()
	return curve
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
