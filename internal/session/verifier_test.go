package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkontos/go-study-sync/internal/domain"
)

// fakeIdentity is a controllable Identity double.
type fakeIdentity struct {
	mu           sync.Mutex
	sessionCred  *domain.Credential
	sessionErr   error
	sessionDelay time.Duration
	sessionCalls int

	signInCred *domain.Credential
	signInErr  error

	signOutErr   error
	signOutDelay time.Duration
	signOutCalls int

	subs []func(AuthEvent)
}

func (f *fakeIdentity) CurrentSession(ctx context.Context) (*domain.Credential, error) {
	f.mu.Lock()
	f.sessionCalls++
	cred, err, delay := f.sessionCred, f.sessionErr, f.sessionDelay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return cred, err
}

func (f *fakeIdentity) SignIn(ctx context.Context, email, password string) (*domain.Credential, error) {
	return f.signInCred, f.signInErr
}

func (f *fakeIdentity) SignUp(ctx context.Context, email, password string) (*domain.Credential, error) {
	return f.signInCred, f.signInErr
}

func (f *fakeIdentity) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOutCalls++
	delay, err := f.signOutDelay, f.signOutErr
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeIdentity) OnAuthChange(fn func(AuthEvent)) func() {
	f.mu.Lock()
	f.subs = append(f.subs, fn)
	i := len(f.subs) - 1
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.subs[i] = nil
		f.mu.Unlock()
	}
}

func (f *fakeIdentity) emit(ev AuthEvent) {
	f.mu.Lock()
	subs := append([]func(AuthEvent){}, f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		if fn != nil {
			fn(ev)
		}
	}
}

// fakeProvisioner records EnsureProfile calls and signals each one.
type fakeProvisioner struct {
	mu    sync.Mutex
	calls []string
	err   error
	done  chan struct{}
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{done: make(chan struct{}, 8)}
}

func (p *fakeProvisioner) EnsureProfile(ctx context.Context, cred *domain.Credential) error {
	p.mu.Lock()
	p.calls = append(p.calls, cred.UserID)
	err := p.err
	p.mu.Unlock()
	p.done <- struct{}{}
	return err
}

func (p *fakeProvisioner) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func newVerifier(id Identity, prov ProfileProvisioner) (*Verifier, *CredentialCache) {
	cache := NewCredentialCache(newMemStorage(), zerolog.Nop())
	v := NewVerifier(cache, id, prov, 100*time.Millisecond, 50*time.Millisecond, zerolog.Nop())
	return v, cache
}

func TestVerify_SuccessUpdatesCache(t *testing.T) {
	id := &fakeIdentity{sessionCred: &domain.Credential{AccessToken: "fresh", UserID: "u1"}}
	v, cache := newVerifier(id, nil)

	cred, err := v.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if cred.AccessToken != "fresh" {
		t.Fatalf("Verify() = %+v", cred)
	}
	if got := cache.Get(); got == nil || got.AccessToken != "fresh" {
		t.Fatalf("cache not updated: %+v", got)
	}
}

func TestVerify_TimeoutFallsBackToCachedCredential(t *testing.T) {
	id := &fakeIdentity{
		sessionCred:  &domain.Credential{AccessToken: "fresh", UserID: "u1"},
		sessionDelay: 500 * time.Millisecond,
	}
	v, cache := newVerifier(id, nil)
	cache.Set(&domain.Credential{AccessToken: "stale", UserID: "u1"})

	start := time.Now()
	cred, err := v.Verify(context.Background())
	if time.Since(start) > 400*time.Millisecond {
		t.Fatalf("Verify blocked past its timeout")
	}
	if !errors.Is(err, ErrStaleCredential) || !errors.Is(err, ErrVerifyTimeout) {
		t.Fatalf("Verify() error = %v; want ErrStaleCredential wrapping ErrVerifyTimeout", err)
	}
	if cred == nil || cred.AccessToken != "stale" {
		t.Fatalf("Verify() = %+v; want the cached credential", cred)
	}
}

func TestVerify_LateCompletionStillUpdatesCache(t *testing.T) {
	id := &fakeIdentity{
		sessionCred:  &domain.Credential{AccessToken: "fresh", UserID: "u1"},
		sessionDelay: 150 * time.Millisecond,
	}
	v, cache := newVerifier(id, nil)
	cache.Set(&domain.Credential{AccessToken: "stale", UserID: "u1"})

	updated := make(chan struct{}, 1)
	cache.Subscribe(func(c *domain.Credential) {
		if c != nil && c.AccessToken == "fresh" {
			updated <- struct{}{}
		}
	})

	if _, err := v.Verify(context.Background()); !errors.Is(err, ErrVerifyTimeout) {
		t.Fatalf("Verify() error = %v; want timeout", err)
	}

	select {
	case <-updated:
	case <-time.After(time.Second):
		t.Fatalf("late verification success never reached the cache")
	}
}

func TestVerify_FailureWithoutFallbackIsHard(t *testing.T) {
	id := &fakeIdentity{sessionErr: errors.New("identity unreachable")}
	v, _ := newVerifier(id, nil)

	cred, err := v.Verify(context.Background())
	if cred != nil {
		t.Fatalf("Verify() = %+v; want nil with no fallback", cred)
	}
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("Verify() error = %v; want ErrNoSession", err)
	}
}

func TestVerify_FailureWithFallbackIsSoft(t *testing.T) {
	cause := errors.New("identity unreachable")
	id := &fakeIdentity{sessionErr: cause}
	v, cache := newVerifier(id, nil)
	cache.Set(&domain.Credential{AccessToken: "stale", UserID: "u1"})

	cred, err := v.Verify(context.Background())
	if cred == nil || cred.AccessToken != "stale" {
		t.Fatalf("Verify() = %+v; want the cached credential", cred)
	}
	if !errors.Is(err, ErrStaleCredential) || !errors.Is(err, cause) {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestVerify_ProvisionsProfileExactlyOnce(t *testing.T) {
	id := &fakeIdentity{sessionCred: &domain.Credential{AccessToken: "tok", UserID: "u1"}}
	prov := newFakeProvisioner()
	v, _ := newVerifier(id, prov)

	if _, err := v.Verify(context.Background()); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	<-prov.done

	if _, err := v.Verify(context.Background()); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	select {
	case <-prov.done:
		t.Fatalf("second verification re-provisioned the profile")
	case <-time.After(100 * time.Millisecond):
	}
	if prov.callCount() != 1 {
		t.Fatalf("EnsureProfile called %d times; want 1", prov.callCount())
	}
}

func TestVerify_ProvisioningFailureIsNotFatal(t *testing.T) {
	id := &fakeIdentity{sessionCred: &domain.Credential{AccessToken: "tok", UserID: "u1"}}
	prov := newFakeProvisioner()
	prov.err = errors.New("profiles table locked")
	v, _ := newVerifier(id, prov)

	if _, err := v.Verify(context.Background()); err != nil {
		t.Fatalf("Verify() error = %v; provisioning failure must not fail verification", err)
	}
	<-prov.done
}

func TestSignIn_CachesAndReprovisions(t *testing.T) {
	id := &fakeIdentity{signInCred: &domain.Credential{AccessToken: "tok", UserID: "u1"}}
	prov := newFakeProvisioner()
	v, cache := newVerifier(id, prov)

	// Mark u1 provisioned, then sign in again: the marker resets.
	v.mu.Lock()
	v.provisioned["u1"] = true
	v.mu.Unlock()

	cred, err := v.SignIn(context.Background(), "u1@example.com", "pw")
	if err != nil || cred.AccessToken != "tok" {
		t.Fatalf("SignIn() = %+v, %v", cred, err)
	}
	if got := cache.Get(); got == nil || got.AccessToken != "tok" {
		t.Fatalf("sign-in did not cache the credential: %+v", got)
	}
	<-prov.done
}

func TestSignOut_ClearsLocalStateEvenWhenRemoteHangs(t *testing.T) {
	id := &fakeIdentity{signOutDelay: time.Second}
	v, cache := newVerifier(id, nil)
	cache.Set(&domain.Credential{AccessToken: "tok", UserID: "u1"})

	start := time.Now()
	err := v.SignOut(context.Background())
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("SignOut blocked %v; must respect its timeout", elapsed)
	}
	if err == nil {
		t.Fatalf("SignOut() should report the abandoned remote call")
	}
	if got := cache.Get(); got != nil {
		t.Fatalf("local credential survived sign-out: %+v", got)
	}
}

func TestSignOut_RemoteSuccess(t *testing.T) {
	id := &fakeIdentity{}
	v, cache := newVerifier(id, nil)
	cache.Set(&domain.Credential{AccessToken: "tok", UserID: "u1"})

	if err := v.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if cache.Get() != nil {
		t.Fatalf("credential not cleared")
	}
	if id.signOutCalls != 1 {
		t.Fatalf("remote sign-out called %d times; want 1", id.signOutCalls)
	}
}

func TestWatchAuth_MirrorsEventsIntoCache(t *testing.T) {
	id := &fakeIdentity{}
	v, cache := newVerifier(id, nil)
	unsub := v.WatchAuth()
	defer unsub()

	id.emit(AuthEvent{Type: AuthSignedIn, Credential: &domain.Credential{AccessToken: "a", UserID: "u1"}})
	if got := cache.Get(); got == nil || got.AccessToken != "a" {
		t.Fatalf("sign-in event not mirrored: %+v", got)
	}

	id.emit(AuthEvent{Type: AuthRefreshed, Credential: &domain.Credential{AccessToken: "b", UserID: "u1"}})
	if got := cache.Get(); got == nil || got.AccessToken != "b" {
		t.Fatalf("refresh event not mirrored: %+v", got)
	}

	id.emit(AuthEvent{Type: AuthSignedOut})
	if cache.Get() != nil {
		t.Fatalf("sign-out event not mirrored")
	}
}

func TestRecover_IsVerify(t *testing.T) {
	id := &fakeIdentity{sessionCred: &domain.Credential{AccessToken: "tok", UserID: "u1"}}
	v, cache := newVerifier(id, nil)

	v.Recover(context.Background())
	if got := cache.Get(); got == nil || got.AccessToken != "tok" {
		t.Fatalf("recovery did not refresh the credential: %+v", got)
	}
}
