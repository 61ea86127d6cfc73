// Package session – Verifier
//
// The verifier confirms or refreshes the cached credential against the
// identity service, bounded by a hard timeout. Verification failure with a
// cached fallback is a soft condition: the caller keeps the (possibly
// expired) credential and surfaces a warning. Forced sign-out happens only
// when there is nothing to fall back to.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkontos/go-study-sync/internal/domain"
)

var (
	// ErrVerifyTimeout means the session check exceeded its bound. The
	// underlying call keeps running and may still update the cache late.
	ErrVerifyTimeout = errors.New("session: verify timed out")

	// ErrStaleCredential is the soft signal that verification failed but a
	// cached credential remains usable in degraded mode.
	ErrStaleCredential = errors.New("session: using cached credential")

	// ErrNoSession means verification failed and no cached credential exists;
	// the user must sign in again.
	ErrNoSession = errors.New("session: no usable credential")
)

// Verifier coordinates credential verification, sign-in/out, and the
// one-time profile provisioning side effect.
type Verifier struct {
	Cache    *CredentialCache
	Identity Identity
	Profiles ProfileProvisioner

	// Timeout bounds Verify; SignOutTimeout bounds the remote sign-out call
	// after which local state is cleared regardless.
	Timeout        time.Duration
	SignOutTimeout time.Duration

	Log zerolog.Logger

	mu          sync.Mutex
	provisioned map[string]bool
}

// NewVerifier constructs a Verifier with the given bounds.
func NewVerifier(cache *CredentialCache, id Identity, profiles ProfileProvisioner, timeout, signOutTimeout time.Duration, log zerolog.Logger) *Verifier {
	return &Verifier{
		Cache:          cache,
		Identity:       id,
		Profiles:       profiles,
		Timeout:        timeout,
		SignOutTimeout: signOutTimeout,
		Log:            log,
		provisioned:    make(map[string]bool),
	}
}

// Verify races the identity service's session check against the timeout.
//
// The timer firing does not cancel the underlying call: it is allowed to
// complete later and update the credential cache asynchronously. On any
// failure path a cached credential, even an expired one, is returned with
// ErrStaleCredential rather than forcing sign-out.
func (v *Verifier) Verify(ctx context.Context) (*domain.Credential, error) {
	type result struct {
		cred *domain.Credential
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		// Detached from the caller's cancellation on purpose: a late success
		// still lands in the cache.
		cred, err := v.Identity.CurrentSession(context.WithoutCancel(ctx))
		if err == nil {
			v.Cache.Set(cred)
			v.maybeProvision(cred)
		}
		ch <- result{cred: cred, err: err}
	}()

	timer := time.NewTimer(v.Timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err == nil {
			return r.cred.Clone(), nil
		}
		return v.fallback(r.err)
	case <-timer.C:
		return v.fallback(ErrVerifyTimeout)
	case <-ctx.Done():
		return v.fallback(ctx.Err())
	}
}

// Retry re-invokes Verify with the same policy. Idempotent.
func (v *Verifier) Retry(ctx context.Context) (*domain.Credential, error) {
	return v.Verify(ctx)
}

// Recover satisfies the retry policy's recovery hook: a best-effort Verify
// whose outcome is observed through the credential cache.
func (v *Verifier) Recover(ctx context.Context) {
	if _, err := v.Verify(ctx); err != nil {
		v.Log.Warn().Err(err).Msg("credential recovery failed")
	}
}

// SignIn exchanges credentials, caches the result, and arms provisioning for
// the next successful verification of this user.
func (v *Verifier) SignIn(ctx context.Context, email, password string) (*domain.Credential, error) {
	cred, err := v.Identity.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	delete(v.provisioned, cred.UserID)
	v.mu.Unlock()
	v.Cache.Set(cred)
	v.maybeProvision(cred)
	return cred.Clone(), nil
}

// SignUp registers a new account and treats its first credential like a
// sign-in.
func (v *Verifier) SignUp(ctx context.Context, email, password string) (*domain.Credential, error) {
	cred, err := v.Identity.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	v.Cache.Set(cred)
	v.maybeProvision(cred)
	return cred.Clone(), nil
}

// SignOut clears local state after at most SignOutTimeout, regardless of
// whether the remote call completed: a hung remote sign-out must never trap
// the user in a logged-in UI. The remote error, if any, is returned for
// logging but local sign-out has already happened.
func (v *Verifier) SignOut(ctx context.Context) error {
	toCtx, cancel := context.WithTimeout(ctx, v.SignOutTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- v.Identity.SignOut(context.WithoutCancel(ctx)) }()

	var err error
	select {
	case err = <-done:
	case <-toCtx.Done():
		err = fmt.Errorf("session: remote sign-out abandoned: %w", toCtx.Err())
	}

	v.mu.Lock()
	v.provisioned = make(map[string]bool)
	v.mu.Unlock()
	v.Cache.Set(nil)
	return err
}

// WatchAuth mirrors identity auth-state events into the credential cache.
// Returns the unsubscribe function.
func (v *Verifier) WatchAuth() func() {
	return v.Identity.OnAuthChange(func(ev AuthEvent) {
		switch ev.Type {
		case AuthSignedOut:
			v.Cache.Set(nil)
		default:
			if ev.Credential != nil {
				v.Cache.Set(ev.Credential)
				if ev.Type == AuthSignedIn {
					v.maybeProvision(ev.Credential)
				}
			}
		}
	})
}

// fallback implements the soft-failure policy: keep a cached credential with
// a warning, or fail hard when none exists.
func (v *Verifier) fallback(cause error) (*domain.Credential, error) {
	if cached := v.Cache.Get(); cached != nil {
		v.Log.Warn().Err(cause).Msg("verification failed; falling back to cached credential")
		return cached, fmt.Errorf("%w: %w", ErrStaleCredential, cause)
	}
	return nil, fmt.Errorf("%w: %w", ErrNoSession, cause)
}

// maybeProvision runs the one-time, best-effort profile provisioning for
// this user. Non-blocking; failure is logged and never fails verification.
func (v *Verifier) maybeProvision(cred *domain.Credential) {
	if v.Profiles == nil || cred == nil || cred.UserID == "" {
		return
	}
	v.mu.Lock()
	if v.provisioned[cred.UserID] {
		v.mu.Unlock()
		return
	}
	v.provisioned[cred.UserID] = true
	v.mu.Unlock()

	cred = cred.Clone()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), v.Timeout)
		defer cancel()
		if err := v.Profiles.EnsureProfile(ctx, cred); err != nil {
			v.Log.Warn().Err(err).Str("user_id", cred.UserID).Msg("profile provisioning failed (best effort)")
		}
	}()
}
