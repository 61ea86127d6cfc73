// Package services defines the business logic for documents, summaries,
// flashcards, and study sessions. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

var (
	// ErrDocumentNotFound indicates that the requested document does not exist
	// or is not accessible to the current user.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrSummaryNotFound indicates that no summary has been requested for the
	// document yet.
	ErrSummaryNotFound = errors.New("summary not found")

	// ErrSessionNotFound indicates that the requested study session does not
	// exist or is not accessible to the current user.
	ErrSessionNotFound = errors.New("study session not found")

	// ErrInvalidGrade is returned when a review grade is outside the allowed
	// set (currently -1 or 1).
	ErrInvalidGrade = errors.New("grade must be -1 or 1")

	// ErrEmptyDeck is returned when a study session is started over a document
	// with no generated flashcards.
	ErrEmptyDeck = errors.New("no flashcards for this document")

	// ErrDuplicateReview is returned when a card is graded a second time within
	// the same study session.
	ErrDuplicateReview = errors.New("card already graded in this session")

	// ErrSummaryTrigger is returned when the summary request was stored but the
	// backend trigger call failed. The stored request is still being watched
	// and may complete anyway.
	ErrSummaryTrigger = errors.New("summary trigger failed")
)
