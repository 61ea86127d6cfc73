package cache

import "time"

// Entry is the externally visible snapshot of one cached entity.
//
// Value and Err live side by side: a failed refresh records its error without
// discarding the last good value, so callers can render stale data with a
// warning instead of a blank error screen.
type Entry struct {
	Key Key
	// Value is the last successfully fetched or optimistically written value.
	// Nil is a legal value (e.g. "no summary row yet").
	Value any
	// UpdatedAt is the time of the last value write.
	UpdatedAt time.Time
	// Stale marks the entry for refetch on next read without dropping Value.
	Stale bool
	// Pinned entries are fresh for as long as the pin holds (active study
	// session decks) and are exempt from garbage collection.
	Pinned bool
	// Err is the most recent fetch failure, recorded alongside the value.
	Err error
	// ErrAt is the time Err was recorded.
	ErrAt time.Time
}

// entryState is the internal bookkeeping wrapper around an Entry.
type entryState struct {
	entry      Entry
	present    bool // a value write has happened (fetch or optimistic)
	lastAccess time.Time

	// issued/applied are the per-key fetch generation counters. A completed
	// load whose generation is not newer than the last applied one is dropped:
	// last-fetch-wins by completion order.
	issued  uint64
	applied uint64
}
