// Package retry issues a single logical request with bounded retries on
// transport failures.
//
// Only failures tagged apierr.ReasonTransport (connection errors and
// timeouts) are retried. Upstream rejections, including HTTP 429, and
// malformed bodies fail on the first attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/cloudlab/internal/apierr"
)

// Defaults for Policy.
const (
	// DefaultMaxAttempts is the total number of attempts, first call included.
	DefaultMaxAttempts = 3

	// DefaultUnit is the backoff time unit. Attempt n waits Unit * 2^n.
	DefaultUnit = time.Second

	// MaxBackoff caps a single wait.
	MaxBackoff = time.Hour
)

// ErrExhausted matches every *ExhaustedError via errors.Is.
var ErrExhausted = errors.New("retries exhausted")

// ExhaustedError is returned when every attempt failed with a transient error.
type ExhaustedError struct {
	// Attempts is the number of calls made.
	Attempts int

	// Last is the error returned by the final attempt.
	Last error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap exposes both ErrExhausted and the last underlying error.
func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Last}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy configures Do.
type Policy struct {
	// MaxAttempts is the ceiling on calls. Values below 1 mean 1.
	MaxAttempts int

	// Unit is the backoff base.
	Unit time.Duration

	// Sleep performs the wait between attempts. Nil means a timer honouring ctx.
	Sleep SleepFunc

	// Logger receives one debug record per retry. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultPolicy returns 3 attempts with waits of 1s and 2s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Unit:        DefaultUnit,
	}
}

// Backoff returns the wait after the zero-based attempt, saturating at
// MaxBackoff.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 62 || p.Unit > MaxBackoff>>attempt {
		return MaxBackoff
	}
	return p.Unit << attempt
}

// Do calls fn until it succeeds, fails with a non-transient error, or the
// attempt ceiling is reached. The successful value is returned unchanged.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = timerSleep
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var last error
	for attempt := 0; attempt < attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !apierr.IsTransient(err) {
			return zero, err
		}
		last = err

		if attempt == attempts-1 {
			break
		}

		wait := p.Backoff(attempt)
		logger.Debug("transient failure, retrying",
			"attempt", attempt+1,
			"maxAttempts", attempts,
			"wait", wait,
			"error", err,
		)
		if err := sleep(ctx, wait); err != nil {
			return zero, apierr.FromTransport("retry.wait", err)
		}
	}

	return zero, &ExhaustedError{Attempts: attempts, Last: last}
}

// timerSleep is the default SleepFunc.
func timerSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
