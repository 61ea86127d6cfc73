// Package cache implements the keyed in-memory store of remote entities with
// per-key freshness, request de-duplication, retry-aware background refresh,
// and snapshot/restore support for optimistic mutations.
//
// Entries are never handed out by reference: Read returns copies, and all
// mutation goes through the Store's narrow contract so cached values cannot
// be modified behind the cache's back.
package cache

import "strings"

// Kind is the entity type half of a cache key.
type Kind string

// Known entity kinds. Each kind has its own freshness policy (see Policy).
const (
	KindDocumentList Kind = "document_list"
	KindDocument     Kind = "document"
	KindSummary      Kind = "summary"
	KindFlashcardSet Kind = "flashcard_set"
	KindStudySession Kind = "study_session"
)

// Key identifies one cached entity: a (kind, filter-or-id) tuple.
type Key struct {
	Kind Kind
	ID   string
}

// String returns the stable form used for de-duplication and map lookups.
func (k Key) String() string { return string(k.Kind) + ":" + k.ID }

// Document list filters.
const (
	FilterAll     = "all"
	FilterStarred = "starred"
)

// DocumentListKey keys a user's document list for the given filter
// ("all" or "starred").
func DocumentListKey(userID, filter string) Key {
	return Key{Kind: KindDocumentList, ID: userID + "/" + filter}
}

// DocumentKey keys a single document row.
func DocumentKey(documentID string) Key {
	return Key{Kind: KindDocument, ID: documentID}
}

// SummaryKey keys the AI summary of a document. There is at most one summary
// per document, so the document ID is the natural key.
func SummaryKey(documentID string) Key {
	return Key{Kind: KindSummary, ID: documentID}
}

// FlashcardSetKey keys the generated flashcard set of a document.
func FlashcardSetKey(documentID string) Key {
	return Key{Kind: KindFlashcardSet, ID: documentID}
}

// StudySessionKey keys one study session row.
func StudySessionKey(sessionID string) Key {
	return Key{Kind: KindStudySession, ID: sessionID}
}

// Predicate selects cache keys for invalidation, snapshots, and patches.
type Predicate func(Key) bool

// ByKey matches exactly one key.
func ByKey(key Key) Predicate {
	return func(k Key) bool { return k == key }
}

// ByKind matches every key of the given kind.
func ByKind(kind Kind) Predicate {
	return func(k Key) bool { return k.Kind == kind }
}

// DocumentListsOf matches every cached document list belonging to userID,
// regardless of filter. Used by mutations that must patch "all" and "starred"
// views in the same call.
func DocumentListsOf(userID string) Predicate {
	return func(k Key) bool {
		return k.Kind == KindDocumentList && strings.HasPrefix(k.ID, userID+"/")
	}
}

// AnyOf matches keys accepted by at least one of the given predicates.
func AnyOf(preds ...Predicate) Predicate {
	return func(k Key) bool {
		for _, p := range preds {
			if p(k) {
				return true
			}
		}
		return false
	}
}
