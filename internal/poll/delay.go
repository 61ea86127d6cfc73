// Package poll drives the processing-status poller: it repeatedly refetches a
// summary whose AI job is still running, at a cadence derived purely from the
// last-seen entity state, until the job reaches a terminal status.
package poll

import (
	"time"

	"github.com/dkontos/go-study-sync/internal/domain"
)

// Config holds the poll cadence.
type Config struct {
	// InitialDelay is the first re-check delay when no summary row exists yet
	// (the job may not have been created server-side at first read).
	InitialDelay time.Duration
	// Interval is the fixed re-check cadence while the job is in flight.
	Interval time.Duration
}

// NextDelay returns the delay before the next re-check for the given summary
// state, and whether another check should be scheduled at all.
//
// It is a pure function of the entity state so the schedule is testable
// without timers:
//
//	nil summary        -> (InitialDelay, true)
//	pending/processing -> (Interval, true)
//	completed/failed   -> (0, false)
func NextDelay(s *domain.Summary, cfg Config) (time.Duration, bool) {
	if s == nil {
		return cfg.InitialDelay, true
	}
	if s.Status.InFlight() {
		return cfg.Interval, true
	}
	return 0, false
}
