// Package domain – Credential
//
// This file defines the authentication credential shared between the
// credential cache, the verifier, and durable local storage. The credential is
// the only client state persisted across process restarts.
package domain

import "time"

// Credential is the access/refresh token pair plus expiry identifying an
// authenticated user. It is serialized verbatim into durable local storage so
// the next process start can render a first paint without a network call.
//
// An expired credential is still a credential: callers keep it around for
// degraded offline access until a refresh attempt settles.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
}

// ExpiredAt reports whether the credential must not be treated as valid at
// the given instant. A zero ExpiresAt never expires.
func (c *Credential) ExpiredAt(now time.Time) bool {
	if c == nil {
		return true
	}
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

// Clone returns an independent copy so cached credentials cannot be mutated
// through the pointer handed to callers.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
