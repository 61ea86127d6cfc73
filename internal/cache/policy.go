package cache

import (
	"time"

	"github.com/dkontos/go-study-sync/internal/config"
	"github.com/dkontos/go-study-sync/internal/domain"
)

// Policy decides per-entry freshness. Staleness rules differ by entity type:
// document lists stay fresh for seconds only, a pinned flashcard set is fresh
// for the lifetime of its study session, and a summary whose job is still in
// flight is never fresh so the poller always refetches it.
type Policy struct {
	// Windows maps a kind to its freshness window. A missing or non-positive
	// window means entries of that kind are always refetched.
	Windows map[Kind]time.Duration
}

// PolicyFromConfig builds the freshness policy from the cache configuration.
func PolicyFromConfig(cfg config.CacheConfig) *Policy {
	return &Policy{
		Windows: map[Kind]time.Duration{
			KindDocumentList: cfg.DocumentListTTL,
			KindDocument:     cfg.DocumentTTL,
			KindSummary:      cfg.SummaryTTL,
			KindFlashcardSet: cfg.FlashcardTTL,
			KindStudySession: cfg.FlashcardTTL,
		},
	}
}

// Fresh reports whether the entry can be served without scheduling a refetch.
func (p *Policy) Fresh(e *Entry, now time.Time) bool {
	if e == nil {
		return false
	}
	if e.Pinned {
		return true
	}
	if e.Stale {
		return false
	}
	// A summary under active processing is explicitly never fresh; the
	// poller's forced refetches depend on this.
	if s, ok := e.Value.(*domain.Summary); ok {
		if s == nil || s.Status.InFlight() {
			return false
		}
	}
	w, ok := p.Windows[e.Key.Kind]
	if !ok || w <= 0 {
		return false
	}
	return now.Sub(e.UpdatedAt) < w
}
