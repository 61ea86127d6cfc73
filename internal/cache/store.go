// Package cache – Store
//
// This file implements the cache orchestrator: synchronous reads, background
// refresh with singleflight de-duplication and per-key generation counters,
// staleness-driven invalidation, snapshot/restore for optimistic mutations,
// subscriber notification, and inactivity garbage collection.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Loader fetches the authoritative value for one key from the entity store.
type Loader func(ctx context.Context) (any, error)

// RetryPolicy is the read-failure policy consulted by background refreshes.
// Satisfied by *retry.Policy.
type RetryPolicy interface {
	ShouldRetry(failureCount int, err error) bool
	RetryDelay(attempt int, err error) time.Duration
}

// Options tunes a single Fetch call.
type Options struct {
	// Force refetches even when the entry is fresh, abandoning any in-flight
	// load for the key so the new request gets its own generation.
	Force bool
	// Wait blocks until the load settles instead of returning the current
	// (possibly stale or absent) entry immediately.
	Wait bool
}

// Store is the process-wide entity cache. It is constructed once at startup,
// injected into every consumer, and torn down with Close.
type Store struct {
	policy *Policy
	retry  RetryPolicy
	log    zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entryState
	subs    map[int]func(Key)
	nextSub int

	sf singleflight.Group

	now func() time.Time

	gcWindow   time.Duration
	gcInterval time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a Store with the given freshness policy and read-retry
// policy. A nil retry policy disables retries (every loader failure is final).
func New(policy *Policy, rp RetryPolicy, gcWindow, gcInterval time.Duration, log zerolog.Logger) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		policy:     policy,
		retry:      rp,
		log:        log,
		entries:    make(map[string]*entryState),
		subs:       make(map[int]func(Key)),
		now:        time.Now,
		gcWindow:   gcWindow,
		gcInterval: gcInterval,
		baseCtx:    ctx,
		cancel:     cancel,
	}
}

// Start launches the inactivity garbage collector. Safe to skip in tests.
func (s *Store) Start() {
	s.wg.Add(1)
	go s.gcLoop()
}

// Close stops background work and cancels in-flight loads. In-flight waiters
// receive a cancellation error, which is not counted as a fetch failure.
func (s *Store) Close() {
	s.cancel()
	s.wg.Wait()
}

// Subscribe registers a listener invoked synchronously after every cache
// write (value apply, optimistic patch, invalidation, removal, restore).
// The returned function unsubscribes; it is safe to call more than once.
func (s *Store) Subscribe(fn func(Key)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Read returns a copy of the cached entry for key. It never blocks on I/O
// and never panics, including on an empty cache.
func (s *Store) Read(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.entries[key.String()]
	if !ok {
		return Entry{}, false
	}
	st.lastAccess = s.now()
	return st.entry, true
}

// Fetch returns the cached entry and, when it is stale, forced, or absent,
// drives a loader invocation. Without Wait the call returns the current entry
// immediately (stale-while-revalidate); with Wait it blocks until the load
// settles or ctx is done. Concurrent fetches for the same key share one
// loader call.
func (s *Store) Fetch(ctx context.Context, key Key, loader Loader, opts Options) (Entry, error) {
	now := s.now()

	s.mu.Lock()
	st, ok := s.entries[key.String()]
	if ok {
		st.lastAccess = now
	}
	if ok && st.present && !opts.Force && s.policy.Fresh(&st.entry, now) {
		e := st.entry
		s.mu.Unlock()
		cacheHits.WithLabelValues(string(key.Kind)).Inc()
		return e, nil
	}
	var current Entry
	var have bool
	if ok && st.present {
		current, have = st.entry, true
	}
	s.mu.Unlock()

	cacheMisses.WithLabelValues(string(key.Kind)).Inc()
	ch := s.refresh(key, loader, opts.Force)

	// Stale value present and caller did not ask to wait: hand it back now,
	// the refresh lands in the background.
	if have && !opts.Wait {
		return current, nil
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			// Keep returning the last good value alongside the error.
			if e, ok := s.Read(key); ok {
				return e, res.Err
			}
			return Entry{Key: key}, res.Err
		}
		e, _ := s.Read(key)
		return e, nil
	case <-ctx.Done():
		// Caller teardown abandons the wait; the shared load keeps running
		// for other subscribers and still updates the cache on completion.
		return current, ctx.Err()
	}
}

// Get is Fetch with Wait set: it blocks on a miss and returns the settled
// entry. The common path for handlers that need a value to render.
func (s *Store) Get(ctx context.Context, key Key, loader Loader) (Entry, error) {
	return s.Fetch(ctx, key, loader, Options{Wait: true})
}

// Put writes an optimistic value for key: the entry is replaced immediately,
// before any network call resolves, and subscribers fire on the same tick.
func (s *Store) Put(key Key, value any) {
	now := s.now()

	s.mu.Lock()
	st := s.ensure(key)
	st.entry.Value = value
	st.entry.UpdatedAt = now
	st.entry.Stale = false
	st.entry.Err = nil
	st.entry.ErrAt = time.Time{}
	st.present = true
	st.lastAccess = now
	s.mu.Unlock()

	s.notify(key)
}

// Update applies fn to every present entry matching pred. fn returns the
// replacement value and whether the entry changed. Used by cross-list
// optimistic patches (e.g. flipping is_starred in "all" and "starred" at
// once).
func (s *Store) Update(pred Predicate, fn func(key Key, value any) (any, bool)) {
	now := s.now()
	var changed []Key

	s.mu.Lock()
	for _, st := range s.entries {
		if !st.present || !pred(st.entry.Key) {
			continue
		}
		if v, ok := fn(st.entry.Key, st.entry.Value); ok {
			st.entry.Value = v
			st.entry.UpdatedAt = now
			changed = append(changed, st.entry.Key)
		}
	}
	s.mu.Unlock()

	s.notify(changed...)
}

// Invalidate marks every matching entry stale without deleting its value.
// The next read refetches. Calling it twice is the same as calling it once.
func (s *Store) Invalidate(pred Predicate) {
	var touched []Key

	s.mu.Lock()
	for _, st := range s.entries {
		if pred(st.entry.Key) && !st.entry.Stale {
			st.entry.Stale = true
			touched = append(touched, st.entry.Key)
		}
	}
	s.mu.Unlock()

	s.notify(touched...)
}

// InvalidateKey marks one key stale.
func (s *Store) InvalidateKey(key Key) { s.Invalidate(ByKey(key)) }

// Remove deletes the entry entirely (used after delete mutations).
func (s *Store) Remove(key Key) {
	s.mu.Lock()
	_, existed := s.entries[key.String()]
	delete(s.entries, key.String())
	cacheEntries.Set(float64(len(s.entries)))
	s.mu.Unlock()

	if existed {
		s.notify(key)
	}
}

// Pin marks the entry fresh for as long as the pin holds and protects it
// from GC. Pinning a missing key is a no-op.
func (s *Store) Pin(key Key) { s.setPinned(key, true) }

// Unpin releases a pin; the entry falls back to its kind's freshness window.
func (s *Store) Unpin(key Key) { s.setPinned(key, false) }

func (s *Store) setPinned(key Key, pinned bool) {
	s.mu.Lock()
	if st, ok := s.entries[key.String()]; ok {
		st.entry.Pinned = pinned
	}
	s.mu.Unlock()
}

// ----- snapshots (optimistic mutation support) -----

type snapItem struct {
	key     string
	entry   Entry
	present bool
	existed bool
}

// Snapshot is a saved copy of one or more entries taken before a mutation
// begins. Restore puts the cache back exactly as captured, including entries
// that did not exist at capture time.
type Snapshot struct {
	items []snapItem
}

// Capture snapshots the given keys, recording absence for keys with no entry.
func (s *Store) Capture(keys ...Key) *Snapshot {
	snap := &Snapshot{}
	s.mu.Lock()
	for _, k := range keys {
		if st, ok := s.entries[k.String()]; ok {
			snap.items = append(snap.items, snapItem{key: k.String(), entry: st.entry, present: st.present, existed: true})
		} else {
			snap.items = append(snap.items, snapItem{key: k.String(), entry: Entry{Key: k}})
		}
	}
	s.mu.Unlock()
	return snap
}

// CaptureMatching snapshots every current entry accepted by pred.
func (s *Store) CaptureMatching(pred Predicate) *Snapshot {
	snap := &Snapshot{}
	s.mu.Lock()
	for _, st := range s.entries {
		if pred(st.entry.Key) {
			snap.items = append(snap.items, snapItem{key: st.entry.Key.String(), entry: st.entry, present: st.present, existed: true})
		}
	}
	s.mu.Unlock()
	return snap
}

// MergeSnapshots concatenates snapshots captured at the same instant into
// one restorable unit. Nil snapshots are skipped.
func MergeSnapshots(snaps ...*Snapshot) *Snapshot {
	out := &Snapshot{}
	for _, sn := range snaps {
		if sn != nil {
			out.items = append(out.items, sn.items...)
		}
	}
	return out
}

// Restore reinstates a snapshot verbatim: captured entries get their exact
// pre-mutation state back, and keys captured as absent are deleted.
func (s *Store) Restore(snap *Snapshot) {
	if snap == nil {
		return
	}
	var touched []Key

	s.mu.Lock()
	for _, it := range snap.items {
		if !it.existed {
			delete(s.entries, it.key)
			touched = append(touched, it.entry.Key)
			continue
		}
		st := s.ensure(it.entry.Key)
		st.entry = it.entry
		st.present = it.present
		touched = append(touched, it.entry.Key)
	}
	cacheEntries.Set(float64(len(s.entries)))
	s.mu.Unlock()

	s.notify(touched...)
}

// ----- background refresh -----

// refresh schedules (or joins) a load for key. Force forgets any in-flight
// singleflight call so the new request gets a fresh generation; the
// superseded flight's result is dropped by the generation check when it
// completes later.
func (s *Store) refresh(key Key, loader Loader, force bool) <-chan singleflight.Result {
	k := key.String()
	if force {
		s.sf.Forget(k)
	}
	return s.sf.DoChan(k, func() (any, error) {
		return s.load(key, loader)
	})
}

// load runs one loader invocation plus the retry policy. It applies results
// in completion order via the per-key generation counter and records
// terminal failures next to the cached value.
func (s *Store) load(key Key, loader Loader) (any, error) {
	s.mu.Lock()
	st := s.ensure(key)
	st.issued++
	gen := st.issued
	s.mu.Unlock()

	ctx := s.baseCtx
	failures := 0
	for {
		v, err := loader(ctx)
		if err == nil {
			s.apply(key, gen, v)
			return v, nil
		}
		if ctx.Err() != nil {
			// Store teardown; neither record nor retry.
			return nil, ctx.Err()
		}
		failures++
		if s.retry == nil || !s.retry.ShouldRetry(failures, err) {
			s.recordError(key, err)
			cacheRefreshes.WithLabelValues(string(key.Kind), "error").Inc()
			return nil, err
		}
		delay := s.retry.RetryDelay(failures, err)
		s.log.Debug().
			Str("key", key.String()).
			Int("failures", failures).
			Dur("delay", delay).
			Msg("retrying fetch")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// apply writes a loader result unless a newer generation already landed.
func (s *Store) apply(key Key, gen uint64, value any) {
	now := s.now()

	s.mu.Lock()
	st := s.ensure(key)
	if gen <= st.applied {
		s.mu.Unlock()
		cacheRefreshes.WithLabelValues(string(key.Kind), "dropped").Inc()
		s.log.Debug().Str("key", key.String()).Uint64("gen", gen).Msg("dropping superseded fetch result")
		return
	}
	st.applied = gen
	st.entry.Value = value
	st.entry.UpdatedAt = now
	st.entry.Stale = false
	st.entry.Err = nil
	st.entry.ErrAt = time.Time{}
	st.present = true
	st.lastAccess = now
	cacheEntries.Set(float64(len(s.entries)))
	s.mu.Unlock()

	cacheRefreshes.WithLabelValues(string(key.Kind), "applied").Inc()
	s.notify(key)
}

// recordError stores the failure alongside whatever value the entry holds.
func (s *Store) recordError(key Key, err error) {
	now := s.now()

	s.mu.Lock()
	st := s.ensure(key)
	st.entry.Err = err
	st.entry.ErrAt = now
	s.mu.Unlock()

	s.notify(key)
}

// ensure returns the entryState for key, creating it if absent.
// Callers must hold s.mu.
func (s *Store) ensure(key Key) *entryState {
	k := key.String()
	st, ok := s.entries[k]
	if !ok {
		st = &entryState{entry: Entry{Key: key}, lastAccess: s.now()}
		s.entries[k] = st
		cacheEntries.Set(float64(len(s.entries)))
	}
	return st
}

// notify invokes subscribers synchronously, outside the store lock.
func (s *Store) notify(keys ...Key) {
	if len(keys) == 0 {
		return
	}
	s.mu.Lock()
	fns := make([]func(Key), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, k := range keys {
		for _, fn := range fns {
			fn(k)
		}
	}
}

// ----- garbage collection -----

func (s *Store) gcLoop() {
	defer s.wg.Done()
	t := time.NewTicker(s.gcInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.gcOnce()
		case <-s.baseCtx.Done():
			return
		}
	}
}

// gcOnce evicts entries idle longer than the GC window. Pinned entries are
// exempt.
func (s *Store) gcOnce() {
	now := s.now()
	evicted := 0

	s.mu.Lock()
	for k, st := range s.entries {
		if st.entry.Pinned {
			continue
		}
		if now.Sub(st.lastAccess) >= s.gcWindow {
			delete(s.entries, k)
			evicted++
		}
	}
	cacheEntries.Set(float64(len(s.entries)))
	s.mu.Unlock()

	if evicted > 0 {
		cacheEvictions.Add(float64(evicted))
		s.log.Debug().Int("evicted", evicted).Msg("cache gc")
	}
}
