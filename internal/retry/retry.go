// Package retry is the single retrying-call wrapper used at every network
// boundary.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Policy parameterizes Do.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable decides whether an error deserves another attempt. Nil means Transient.
	Retryable func(error) bool
}

// StatusError is an upstream HTTP failure.
type StatusError struct {
	Code       int
	Status     string
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned %s", e.Status)
	}
	return fmt.Sprintf("upstream returned %s: %s", e.Status, e.Body)
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Transient treats 429, 5xx and transport errors as retryable. Per-request
// client timeouts count as transport errors.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var perm permanentError
	if errors.As(err, &perm) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Code == http.StatusTooManyRequests || status.Code >= http.StatusInternalServerError
	}
	return true
}

// Do calls fn until it succeeds, returns a non-retryable error, attempts run
// out or the caller's ctx is done. Delays grow as BaseDelay*2^n, capped by MaxDelay; a
// StatusError.RetryAfter overrides the computed delay.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = Transient
	}

	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, errors.Join(lastErr, ctx.Err())
		}

		if attempt == attempts-1 || !retryable(err) {
			break
		}

		wait := p.delay(attempt, err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}
	}

	return zero, unwrapPermanent(lastErr)
}

func (p Policy) delay(attempt int, err error) time.Duration {
	var status *StatusError
	if errors.As(err, &status) && status.RetryAfter > 0 {
		return status.RetryAfter
	}

	d := p.BaseDelay << attempt
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func unwrapPermanent(err error) error {
	if perm, ok := err.(permanentError); ok {
		return perm.err
	}
	return err
}
