// Package session implements the client-side authentication core: a
// synchronous credential cache mirrored to durable local storage, and an
// asynchronous verifier that confirms or refreshes the credential against the
// identity service without ever blocking the first paint on a network call.
package session

import (
	"context"

	"github.com/dkontos/go-study-sync/internal/domain"
)

// AuthEventType classifies auth-state notifications from the identity service.
type AuthEventType string

// Auth-state events.
const (
	AuthSignedIn  AuthEventType = "signed_in"
	AuthSignedOut AuthEventType = "signed_out"
	AuthRefreshed AuthEventType = "refreshed"
)

// AuthEvent is one auth-state change with its session payload. Credential is
// nil for sign-out events.
type AuthEvent struct {
	Type       AuthEventType
	Credential *domain.Credential
}

// Identity is the remote identity service consumed by the verifier. The
// concrete client lives elsewhere; tests use fakes.
type Identity interface {
	// CurrentSession returns the live session credential, or an error when
	// the service is unreachable or the session is invalid.
	CurrentSession(ctx context.Context) (*domain.Credential, error)

	// SignIn exchanges email/password for a fresh credential.
	SignIn(ctx context.Context, email, password string) (*domain.Credential, error)

	// SignUp registers a new account and returns its first credential.
	SignUp(ctx context.Context, email, password string) (*domain.Credential, error)

	// SignOut revokes the current session remotely.
	SignOut(ctx context.Context) error

	// OnAuthChange subscribes to auth-state events. The returned function
	// unsubscribes; ordering of notifications per subscriber is guaranteed.
	OnAuthChange(fn func(AuthEvent)) (unsubscribe func())
}

// ProfileProvisioner creates the dependent profile row after the first
// successful verification following a sign-in. Provisioning is best-effort;
// its failure never fails verification.
type ProfileProvisioner interface {
	EnsureProfile(ctx context.Context, cred *domain.Credential) error
}
