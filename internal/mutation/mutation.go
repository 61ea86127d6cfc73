// Package mutation implements the write path: it executes mutations against
// the entity store, optionally applying an optimistic patch to the entity
// cache first, with transactional rollback and cache-invalidation rules.
//
// Writes are never retried automatically. A duplicate write is worse than a
// visible failure that the user can resubmit, so a failed mutation rolls the
// cache back and surfaces the error verbatim.
package mutation

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dkontos/go-study-sync/internal/cache"
)

// Action is the network call performed by a mutation.
type Action func(ctx context.Context) error

// Options configures one Mutate call.
type Options struct {
	// Keys lists the cache keys the optimistic patch may touch. They are
	// snapshotted before the patch so rollback can restore them verbatim,
	// including keys with no entry yet.
	Keys []cache.Key
	// KeysMatching extends the snapshot to every current entry accepted by
	// the predicate (e.g. all of a user's cached document lists).
	KeysMatching cache.Predicate
	// Optimistic applies the patch to the cache. It runs synchronously before
	// the action is sent, so any read between mutation-start and settle
	// observes the optimistic value.
	Optimistic func(c *cache.Store)
	// Invalidates marks the listed keys stale after a successful mutation.
	Invalidates []cache.Key
	// InvalidatesMatching marks every key accepted by the predicate stale
	// after a successful mutation.
	InvalidatesMatching cache.Predicate
	// OnSuccess runs after invalidation on the success path.
	OnSuccess func()
	// OnError runs after rollback on the failure path.
	OnError func(err error)
}

// Transaction owns the pre-mutation snapshot. Commit discards it; Rollback
// restores exactly the captured state. A settled transaction is inert.
type Transaction struct {
	store   *cache.Store
	snap    *cache.Snapshot
	settled bool
}

// Commit discards the snapshot, keeping the optimistic state.
func (t *Transaction) Commit() {
	t.settled = true
	t.snap = nil
}

// Rollback restores the cache to the captured pre-transaction state.
// Calling it after Commit (or twice) is a no-op.
func (t *Transaction) Rollback() {
	if t.settled {
		return
	}
	t.settled = true
	t.store.Restore(t.snap)
	t.snap = nil
}

// Coordinator executes mutations against the cache it was constructed with.
type Coordinator struct {
	Cache *cache.Store
	Log   zerolog.Logger
}

// New constructs a Coordinator.
func New(c *cache.Store, log zerolog.Logger) *Coordinator {
	return &Coordinator{Cache: c, Log: log}
}

// Begin captures a transaction over the given keys (and predicate matches).
func (m *Coordinator) Begin(keys []cache.Key, pred cache.Predicate) *Transaction {
	snap := m.Cache.Capture(keys...)
	if pred != nil {
		extra := m.Cache.CaptureMatching(pred)
		snap = merge(snap, extra)
	}
	return &Transaction{store: m.Cache, snap: snap}
}

// Mutate runs one write operation with optimistic-update semantics.
//
// With an optimistic patch: snapshot → patch → action. On success the
// snapshot is discarded, the Invalidates keys go stale (refetch on next
// read), and OnSuccess runs. On failure the snapshot is restored verbatim,
// OnError runs, and the error is returned — never retried.
func (m *Coordinator) Mutate(ctx context.Context, action Action, opts Options) error {
	var tx *Transaction
	if opts.Optimistic != nil {
		tx = m.Begin(opts.Keys, opts.KeysMatching)
		opts.Optimistic(m.Cache)
	}

	if err := action(ctx); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		m.Log.Warn().Err(err).Msg("mutation failed; optimistic state rolled back")
		if opts.OnError != nil {
			opts.OnError(err)
		}
		return err
	}

	if tx != nil {
		tx.Commit()
	}
	for _, k := range opts.Invalidates {
		m.Cache.InvalidateKey(k)
	}
	if opts.InvalidatesMatching != nil {
		m.Cache.Invalidate(opts.InvalidatesMatching)
	}
	if opts.OnSuccess != nil {
		opts.OnSuccess()
	}
	return nil
}

// merge concatenates two snapshots. Restore handles duplicate keys by
// applying both copies in order, which is harmless because they were captured
// at the same instant.
func merge(a, b *cache.Snapshot) *cache.Snapshot {
	return cache.MergeSnapshots(a, b)
}
