// Package identity implements the HTTP client for the remote identity
// service. It satisfies session.Identity: session verification, sign-in/up,
// sign-out, and auth-state event fan-out to local subscribers.
//
// Error semantics:
//   - 401/403 responses are classified as auth errors (retry.Auth) so the
//     read-retry policy can kick off credential recovery instead of hammering
//     the endpoint.
//   - Other non-2xx responses and transport failures are returned as plain
//     errors.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dkontos/go-study-sync/internal/domain"
	"github.com/dkontos/go-study-sync/internal/retry"
	"github.com/dkontos/go-study-sync/internal/session"
)

// Client talks to the identity service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.Mutex
	token string
	subs  map[int]func(session.AuthEvent)
	next  int
}

// New constructs a Client for the identity service at baseURL. A nil
// httpClient falls back to a client with a conservative timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		subs:    make(map[int]func(session.AuthEvent)),
	}
}

// SetToken installs the bearer token sent with authenticated calls, typically
// from the persisted credential at startup.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// CurrentSession returns the live session credential. A 401 means the token
// is no longer valid and is surfaced as an auth error.
func (c *Client) CurrentSession(ctx context.Context) (*domain.Credential, error) {
	cred, err := c.do(ctx, http.MethodGet, "/v1/session", nil)
	if err != nil {
		return nil, err
	}
	c.SetToken(cred.AccessToken)
	c.emit(session.AuthEvent{Type: session.AuthRefreshed, Credential: cred.Clone()})
	return cred, nil
}

// SignIn exchanges email/password for a fresh credential.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Credential, error) {
	cred, err := c.do(ctx, http.MethodPost, "/v1/signin", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	c.SetToken(cred.AccessToken)
	c.emit(session.AuthEvent{Type: session.AuthSignedIn, Credential: cred.Clone()})
	return cred, nil
}

// SignUp registers a new account and returns its first credential.
func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.Credential, error) {
	cred, err := c.do(ctx, http.MethodPost, "/v1/signup", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	c.SetToken(cred.AccessToken)
	c.emit(session.AuthEvent{Type: session.AuthSignedIn, Credential: cred.Clone()})
	return cred, nil
}

// SignOut revokes the current session remotely and drops the local token.
// The local token is dropped even when the remote call fails.
func (c *Client) SignOut(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/v1/signout", nil)
	c.SetToken("")
	c.emit(session.AuthEvent{Type: session.AuthSignedOut})
	return err
}

// OnAuthChange subscribes to auth-state events. Events fire synchronously in
// registration order; the returned function unsubscribes.
func (c *Client) OnAuthChange(fn func(session.AuthEvent)) func() {
	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Client) emit(ev session.AuthEvent) {
	c.mu.Lock()
	fns := make([]func(session.AuthEvent), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// do performs one JSON round trip and decodes a credential response.
func (c *Client) do(ctx context.Context, method, path string, body any) (*domain.Credential, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.Lock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, retry.Auth(fmt.Errorf("identity: %s %s: status %d", method, path, resp.StatusCode))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("identity: %s %s: status %d", method, path, resp.StatusCode)
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	var cred domain.Credential
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		return nil, fmt.Errorf("identity: decode %s %s: %w", method, path, err)
	}
	return &cred, nil
}
