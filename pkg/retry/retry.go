// Package retry runs operations under a capped exponential backoff bounded by
// a total time budget.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrBudgetExhausted is returned when a transient failure outlived the policy's time budget.
var ErrBudgetExhausted = errors.New("retry budget exhausted")

// Policy configures the backoff between attempts.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

// DefaultPolicy mirrors the 60 second budget the sync has always used.
func DefaultPolicy() Policy {
	return Policy{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2,
		MaxElapsedTime:  60 * time.Second,
	}
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	// backoff treats a zero MaxElapsedTime as no limit.
	b.MaxElapsedTime = DefaultPolicy().MaxElapsedTime
	if p.MaxElapsedTime > 0 {
		b.MaxElapsedTime = p.MaxElapsedTime
	}
	b.Reset()
	return b
}

// Classifier reports whether an error is worth another attempt.
type Classifier func(error) bool

// Do runs op until it succeeds, returns a non-retryable error, or the budget runs out.
func Do(ctx context.Context, p Policy, isRetryable Classifier, op func() error) error {
	_, err := DoWithResult(ctx, p, isRetryable, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// DoWithResult is Do for operations that produce a value.
func DoWithResult[T any](ctx context.Context, p Policy, isRetryable Classifier, op func() (T, error)) (T, error) {
	trace := TraceFrom(ctx)
	attempts := 0
	var lastErr error
	permanent := false

	result, err := backoff.RetryNotifyWithData(func() (T, error) {
		attempts++
		v, err := op()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if isRetryable == nil || !isRetryable(err) {
			permanent = true
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithContext(p.backOff(), ctx), func(err error, wait time.Duration) {
		if trace != nil && trace.OnRetry != nil {
			trace.OnRetry(attempts, err, wait)
		}
	})
	if err == nil {
		if attempts > 1 && trace != nil && trace.OnRecover != nil {
			trace.OnRecover(attempts)
		}
		return result, nil
	}

	if permanent {
		return result, lastErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if lastErr == nil {
			return result, ctxErr
		}
		return result, fmt.Errorf("%w after %d attempts: %w", ctxErr, attempts, lastErr)
	}
	return result, fmt.Errorf("%w after %d attempts: %w", ErrBudgetExhausted, attempts, lastErr)
}
