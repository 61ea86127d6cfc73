// Package session – CredentialCache
//
// The credential cache answers "is there a usable credential" synchronously,
// independent of network state. It is constructed once at startup, restored
// from durable local storage, and injected into every consumer.
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkontos/go-study-sync/internal/domain"
)

// storageKey is the single durable local-storage key holding the serialized
// credential. No other client state is persisted by the sync core.
const storageKey = "credential"

// Storage is the durable local-storage contract, satisfied by
// *localstore.Store.
type Storage interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// CredentialCache holds the current credential in memory and mirrors every
// write to durable storage. Get never performs I/O and never panics, so the
// UI can render a first paint from the previous session immediately.
//
// An expired credential is retained (not deleted) until a refresh attempt
// completes, keeping degraded offline access possible.
type CredentialCache struct {
	storage Storage
	log     zerolog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	cred    *domain.Credential
	subs    map[int]func(*domain.Credential)
	nextSub int
}

// NewCredentialCache constructs an empty cache backed by storage.
func NewCredentialCache(storage Storage, log zerolog.Logger) *CredentialCache {
	return &CredentialCache{
		storage: storage,
		log:     log,
		now:     time.Now,
		subs:    make(map[int]func(*domain.Credential)),
	}
}

// Load restores the persisted credential, if any. Called once at startup,
// before the first Get. A corrupt payload is dropped rather than propagated.
func (c *CredentialCache) Load() error {
	raw, ok, err := c.storage.GetItem(storageKey)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	var cred domain.Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		c.log.Warn().Err(err).Msg("discarding unreadable persisted credential")
		_ = c.storage.RemoveItem(storageKey)
		return nil
	}
	c.mu.Lock()
	c.cred = &cred
	c.mu.Unlock()
	return nil
}

// Get returns a copy of the current credential, or nil when signed out.
// Synchronous, O(1), no I/O.
func (c *CredentialCache) Get() *domain.Credential {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cred.Clone()
}

// Set overwrites the in-memory credential and mirrors it to durable storage.
// Passing nil clears both. Subscribers are notified synchronously after the
// write. Storage failures are logged, not propagated: the in-memory value is
// the source of truth for this process.
func (c *CredentialCache) Set(cred *domain.Credential) {
	cred = cred.Clone()

	c.mu.Lock()
	c.cred = cred
	fns := make([]func(*domain.Credential), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	if cred == nil {
		if err := c.storage.RemoveItem(storageKey); err != nil {
			c.log.Error().Err(err).Msg("clearing persisted credential failed")
		}
	} else if b, err := json.Marshal(cred); err == nil {
		if err := c.storage.SetItem(storageKey, string(b)); err != nil {
			c.log.Error().Err(err).Msg("persisting credential failed")
		}
	}

	for _, fn := range fns {
		fn(cred.Clone())
	}
}

// IsExpired reports whether cred must not be treated as valid right now.
func (c *CredentialCache) IsExpired(cred *domain.Credential) bool {
	return cred.ExpiredAt(c.now())
}

// Subscribe registers a listener invoked synchronously after every Set. The
// returned function unsubscribes.
func (c *CredentialCache) Subscribe(fn func(*domain.Credential)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}
