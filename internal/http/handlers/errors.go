package handlers

// Stable machine-readable error codes returned in ErrorResponse.Code.
// Clients should branch on these values, never on Message text.
const (
	// Generic transport-level codes.
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	// Domain-specific codes.
	ErrCodeEmptyDeck        = "empty_deck"
	ErrCodeInvalidGrade     = "invalid_grade"
	ErrCodeStaleCredential  = "stale_credential"
	ErrCodeNoSession        = "no_session"
	ErrCodeSummaryUnstarted = "summary_not_generated"
)
