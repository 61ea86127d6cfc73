// Package retry implements the central read-failure policy: it classifies
// fetch errors, decides whether a bounded retry is worthwhile, and triggers
// credential recovery when the failure carries an authentication signal.
//
// The policy applies to reads only. Write operations are never retried here;
// a duplicate write is worse than a visible failure the user can resubmit.
package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// AuthError marks a failure that carries an authentication/authorization
// signal (expired token, rejected credential) as opposed to a generic network
// or server error. Wrap the transport error so the cause stays inspectable.
type AuthError struct {
	Err error
}

// Error returns the underlying error text.
func (e *AuthError) Error() string { return "auth: " + e.Err.Error() }

// Unwrap exposes the wrapped cause to errors.Is/As.
func (e *AuthError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix (not-found,
// validation rejection). The policy surfaces it immediately.
type PermanentError struct {
	Err error
}

// Error returns the underlying error text.
func (e *PermanentError) Error() string { return e.Err.Error() }

// Unwrap exposes the wrapped cause to errors.Is/As.
func (e *PermanentError) Unwrap() error { return e.Err }

// Auth wraps err as an authentication failure. Wrapping nil returns nil.
func Auth(err error) error {
	if err == nil {
		return nil
	}
	return &AuthError{Err: err}
}

// Permanent wraps err as a non-retryable failure. Wrapping nil returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsAuth reports whether err carries an authentication signal anywhere in its
// chain.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsPermanent reports whether err was marked non-retryable.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Recoverer is the credential-recovery hook, satisfied by the session
// verifier. Recovery runs asynchronously; the retry scheduler never awaits it.
type Recoverer interface {
	Recover(ctx context.Context)
}

// RecoverFunc adapts a plain function to the Recoverer interface.
type RecoverFunc func(ctx context.Context)

// Recover calls f.
func (f RecoverFunc) Recover(ctx context.Context) { f(ctx) }

// Policy decides retries for read failures.
//
// Auth errors get at most one recovery attempt: the Recoverer is kicked off in
// the background and the retry waits a longer, fixed delay so verification has
// time to land. Other errors get up to MaxAttempts retries with exponential
// backoff capped at MaxDelay. Cancellation and permanent errors are never
// retried.
type Policy struct {
	// MaxAttempts is the number of retries after the first non-auth failure.
	MaxAttempts int
	// BaseDelay is the first backoff step; doubled per subsequent attempt.
	BaseDelay time.Duration
	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
	// AuthDelay is the single retry delay after an auth failure. It must be
	// longer than BaseDelay so recovery can complete before the retry fires.
	AuthDelay time.Duration
	// Recoverer is invoked (at most once per in-flight recovery) on auth
	// failures. Nil disables recovery but not the auth-specific delay.
	Recoverer Recoverer

	Log zerolog.Logger

	// recovering collapses concurrent auth failures into one recovery run.
	recovering atomic.Bool
}

// ShouldRetry reports whether a read that has failed failureCount times in a
// row (1 = first failure) should be attempted again. On the first auth
// failure it also kicks off credential recovery in the background.
func (p *Policy) ShouldRetry(failureCount int, err error) bool {
	if err == nil || failureCount < 1 {
		return false
	}
	// A cancelled fetch is teardown, not a failure.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsPermanent(err) {
		return false
	}
	if IsAuth(err) {
		if failureCount > 1 {
			return false
		}
		p.triggerRecovery(err)
		return true
	}
	return failureCount <= p.MaxAttempts
}

// RetryDelay returns how long to wait before the given retry attempt
// (1-based). Auth failures wait the longer AuthDelay; everything else backs
// off exponentially from BaseDelay up to MaxDelay.
func (p *Policy) RetryDelay(attempt int, err error) time.Duration {
	if IsAuth(err) {
		return p.AuthDelay
	}
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay << (attempt - 1)
	if d > p.MaxDelay || d <= 0 {
		return p.MaxDelay
	}
	return d
}

// triggerRecovery starts one background recovery run. Concurrent auth
// failures while a run is in flight do not start another.
func (p *Policy) triggerRecovery(cause error) {
	if p.Recoverer == nil {
		return
	}
	if !p.recovering.CompareAndSwap(false, true) {
		return
	}
	p.Log.Warn().Err(cause).Msg("auth failure on read; triggering credential recovery")
	go func() {
		defer p.recovering.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), p.AuthDelay)
		defer cancel()
		p.Recoverer.Recover(ctx)
	}()
}
