package poll

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkontos/go-study-sync/internal/cache"
	"github.com/dkontos/go-study-sync/internal/domain"
)

// Poller refetches one summary entity until its embedded job terminates.
//
// The poller is driven exclusively by the persisted entity status read
// through the cache, never by the state of the mutation that started the job:
// if the start-processing call errors while the backend job is in fact
// running, polling continues and converges on the server-side truth.
type Poller struct {
	Cache  *cache.Store
	Key    cache.Key
	Loader cache.Loader
	Cfg    Config
	Log    zerolog.Logger

	// timer is a test seam; defaults to time.After.
	timer func(d time.Duration) <-chan time.Time
}

// New constructs a Poller for the summary cached under key.
func New(c *cache.Store, key cache.Key, loader cache.Loader, cfg Config, log zerolog.Logger) *Poller {
	return &Poller{Cache: c, Key: key, Loader: loader, Cfg: cfg, Log: log}
}

// Run polls until the job reaches a terminal status or ctx is cancelled.
// It consults the cached entry first — a mutation that optimistically wrote a
// "processing" status is observed on the very next tick without waiting for a
// network round trip — and then forces a refetch of the persisted row per
// tick.
func (p *Poller) Run(ctx context.Context) {
	after := p.timer
	if after == nil {
		after = time.After
	}

	for {
		d, again := NextDelay(p.current(), p.Cfg)
		if !again {
			p.Log.Debug().Str("key", p.Key.String()).Msg("summary reached terminal status; poller stopping")
			return
		}

		select {
		case <-after(d):
		case <-ctx.Done():
			return
		}

		// Forced refetch: a summary under processing is never considered
		// fresh, and forcing also supersedes any stale in-flight load.
		if _, err := p.Cache.Fetch(ctx, p.Key, p.Loader, cache.Options{Force: true, Wait: true}); err != nil {
			if ctx.Err() != nil {
				return
			}
			// Transient fetch failures do not stop polling of a job that may
			// be progressing server-side; the next tick tries again.
			p.Log.Warn().Err(err).Str("key", p.Key.String()).Msg("summary poll fetch failed")
		}
	}
}

// current returns the summary held in the cache, or nil when the entry is
// absent or holds no row yet.
func (p *Poller) current() *domain.Summary {
	e, ok := p.Cache.Read(p.Key)
	if !ok {
		return nil
	}
	s, _ := e.Value.(*domain.Summary)
	return s
}
