package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
)

const (
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = 2 * time.Second
	DefaultAttemptTimeout = 30 * time.Second
)

// RetryPolicy drives Retry. Zero values fall back to the defaults above,
// except AttemptTimeout where a negative value disables the per-attempt timer
// and MaxDelay where zero means uncapped.
type RetryPolicy struct {
	Operation      string
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
	NonRetryable   func(error) bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    DefaultMaxAttempts,
		BaseDelay:      DefaultBaseDelay,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	out := p
	if strings.TrimSpace(out.Operation) == "" {
		out.Operation = "unknown"
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = DefaultMaxAttempts
	}
	if out.BaseDelay < 0 {
		out.BaseDelay = 0
	}
	if out.AttemptTimeout == 0 {
		out.AttemptTimeout = DefaultAttemptTimeout
	}
	return out
}

// Delay is the sleep before the attempt following the given 1-indexed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	wait := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if wait > float64(math.MaxInt64) {
		wait = float64(math.MaxInt64)
	}
	d := time.Duration(wait)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func (p RetryPolicy) abort(err error) bool {
	if IsAuthorizationFailure(err) {
		return true
	}
	return p.NonRetryable != nil && p.NonRetryable(err)
}

// ExhaustedError is returned once every attempt has failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// IsAuthorizationFailure reports errors that must never be retried.
func IsAuthorizationFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrAuthorization) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "auth")
}

type sleepFunc func(ctx context.Context, d time.Duration) error

// Retry runs operation until it succeeds, hits a non-retryable failure or
// exhausts the policy. The delay before attempt n+1 is BaseDelay*2^(n-1).
func Retry[T any](ctx context.Context, policy RetryPolicy, operation func(context.Context) (T, error)) (T, error) {
	return retry(ctx, policy, operation, sleepContext)
}

func retry[T any](ctx context.Context, policy RetryPolicy, operation func(context.Context) (T, error), sleep sleepFunc) (T, error) {
	var zero T
	if operation == nil {
		return zero, fmt.Errorf("resilience: operation callback is nil")
	}
	p := policy.normalize()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		result, err := runAttempt(ctx, p.AttemptTimeout, operation)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if p.abort(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts {
			break
		}

		wait := p.Delay(attempt)
		slog.Warn("retry_attempt",
			"operation", p.Operation,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"backoff_ms", float64(wait.Microseconds())/1000.0,
			"error", err,
		)
		if err := sleep(ctx, wait); err != nil {
			return zero, lastErr
		}
	}

	return zero, &ExhaustedError{Attempts: p.MaxAttempts, Err: lastErr}
}

type attemptResult[T any] struct {
	value T
	err   error
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, operation func(context.Context) (T, error)) (T, error) {
	if timeout < 0 {
		return operation(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan attemptResult[T], 1)
	go func() {
		value, err := operation(attemptCtx)
		done <- attemptResult[T]{value: value, err: err}
	}()

	var zero T
	select {
	case res := <-done:
		if res.err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return zero, &domain.TimeoutError{Duration: timeout}
		}
		return res.value, res.err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, &domain.TimeoutError{Duration: timeout}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
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

// Retrier binds a RetryPolicy for callers that cannot use the generic Retry.
type Retrier struct {
	policy RetryPolicy
}

func NewRetrier(policy RetryPolicy) *Retrier {
	return &Retrier{policy: policy}
}

func (r *Retrier) Run(ctx context.Context, operation string, fn func(context.Context) (any, error)) (any, error) {
	p := r.policy
	p.Operation = operation
	return Retry(ctx, p, fn)
}
