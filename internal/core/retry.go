package core

// retry.go implements bounded retry with exponential backoff for calls against
// the external store and the document fetcher.
//
// Delay before attempt n+1 is min(MaxDelay, MinDelay * BackoffFactor^(n-1)).
// Each retry logs a warning and exhaustion logs an error; logging never changes
// control flow. Callers choose which operations are safe to wrap.

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/JonMunkholm/catalog/internal/logging"
)

// Retry defaults.
const (
	DefaultMaxAttempts   = 3
	DefaultBackoffFactor = 2.0
	DefaultMinDelay      = time.Second
	DefaultMaxDelay      = 5 * time.Second
)

// RetryPolicy configures Retry. Zero fields take the package defaults.
type RetryPolicy struct {
	MaxAttempts   int
	BackoffFactor float64
	MinDelay      time.Duration
	MaxDelay      time.Duration

	// RetryIf reports whether err is worth another attempt.
	// Defaults to IsRetryable.
	RetryIf func(error) bool
}

// DefaultRetryPolicy returns the policy used when nothing is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   DefaultMaxAttempts,
		BackoffFactor: DefaultBackoffFactor,
		MinDelay:      DefaultMinDelay,
		MaxDelay:      DefaultMaxDelay,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = DefaultBackoffFactor
	}
	if p.MinDelay <= 0 {
		p.MinDelay = DefaultMinDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxDelay < p.MinDelay {
		p.MaxDelay = p.MinDelay
	}
	if p.RetryIf == nil {
		p.RetryIf = IsRetryable
	}
	return p
}

// Delay returns the wait before the retry that follows failed attempt n (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.MinDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))
	if d > float64(p.MaxDelay) || math.IsInf(d, 0) || math.IsNaN(d) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// IsRetryable is the default RetryIf. Lookups that found nothing, rejected
// arguments and cancelled contexts are final.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// Retry runs fn until it succeeds, the policy gives up, or ctx ends.
// After exhaustion the last error is returned wrapped with ErrUpstreamUnavailable.
// Non-retryable errors are returned unchanged.
func Retry[T any](ctx context.Context, policy RetryPolicy, op string, fn func(context.Context) (T, error)) (T, error) {
	p := policy.normalized()
	logger := logging.WithFields(ctx, "op", op)

	var zero T
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !p.RetryIf(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Delay(attempt)
		logger.Warn("retrying operation",
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)

		if err := sleepCtx(ctx, delay); err != nil {
			return zero, fmt.Errorf("%s: %w (last error: %v)", op, err, lastErr)
		}
	}

	logger.Error("operation failed after retries",
		"attempts", p.MaxAttempts,
		"error", lastErr,
	)
	return zero, fmt.Errorf("%w: %s failed after %d attempts: %w", ErrUpstreamUnavailable, op, p.MaxAttempts, lastErr)
}

// RetryDo is Retry for operations without a result.
func RetryDo(ctx context.Context, policy RetryPolicy, op string, fn func(context.Context) error) error {
	_, err := Retry(ctx, policy, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
