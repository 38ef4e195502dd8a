package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var ErrMaxAttempts = errors.New("maximum attempts reached")

// Policy controls how an operation is retried. The delay before attempt n+1
// is BaseDelay * 2^n, n being the zero-based index of the failed attempt,
// unless Constant is set.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Constant keeps every wait at BaseDelay.
	Constant bool
	// Retryable decides whether an error is worth another attempt. A nil
	// Retryable retries everything but context cancellation.
	Retryable func(err error) bool

	timer backoff.Timer
}

func (p Policy) IsValid() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("MaxAttempts should be at least 1")
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("BaseDelay should not be negative")
	}
	return nil
}

// Backoff returns the wait after the given zero-based failed attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	if p.Constant {
		return p.BaseDelay
	}
	return p.BaseDelay * time.Duration(1<<attempt)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff
	if p.Constant {
		b = backoff.NewConstantBackOff(p.BaseDelay)
	} else {
		b = backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(p.BaseDelay),
			backoff.WithRandomizationFactor(0),
			backoff.WithMultiplier(2),
			backoff.WithMaxInterval(time.Duration(math.MaxInt64)),
			backoff.WithMaxElapsedTime(0),
		)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// Error is returned once a policy gives up. It keeps the last cause.
type Error struct {
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %s", ErrMaxAttempts, e.Attempts, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrMaxAttempts, e.Err}
}

// Do runs fn until it succeeds, returns a non retryable error, or the policy
// runs out of attempts. fn receives the zero-based attempt number.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	if err := p.IsValid(); err != nil {
		return fmt.Errorf("invalid retry policy: %w", err)
	}

	var attempts int
	var permanent bool
	op := func() error {
		if err := ctx.Err(); err != nil {
			permanent = true
			return backoff.Permanent(err)
		}

		err := fn(ctx, attempts)
		attempts++
		if err == nil {
			return nil
		}

		if !p.retryable(err) {
			permanent = true
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		slog.Debug("retrying", slog.Int("attempt", attempts+1), slog.Duration("wait", wait),
			slog.String("err", err.Error()))
	}

	err := backoff.RetryNotifyWithTimer(op, p.backOff(ctx), notify, p.timer)
	if err != nil && !permanent && ctx.Err() == nil && attempts == p.MaxAttempts {
		return &Error{Attempts: attempts, Err: err}
	}

	return err
}
