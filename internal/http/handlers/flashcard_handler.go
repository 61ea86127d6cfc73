// Flashcard and study-session HTTP handlers.
//
// This file exposes REST endpoints for flashcard decks and study sessions:
//   - GET    /documents/{id}/flashcards       (fetch the deck)
//   - POST   /documents/{id}/study-sessions   (start a session)
//   - GET    /study-sessions/{id}             (fetch a session)
//   - POST   /study-sessions/{id}/reviews     (grade one card)
//   - POST   /study-sessions/{id}/end         (close a session)
//
// Review and end operations resolve the session first so the deck they touch
// is always the one the session was opened over.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dkontos/go-study-sync/internal/domain"
	"github.com/dkontos/go-study-sync/internal/services"
)

// RecordReviewRequest is the JSON payload for grading one card.
//
// Grade must be one of:
//   - +1 : knew it
//   - -1 : missed it
type RecordReviewRequest struct {
	// FlashcardID identifies the graded card.
	FlashcardID string `json:"flashcard_id" binding:"required" example:"fa4dfbe0-c3bf-47bd-b32f-d7de221cf43b"`
	// Grade is the review signal: +1 (knew it) or -1 (missed it).
	Grade int `json:"grade" binding:"required,oneof=-1 1" example:"1"`
}

// ListFlashcards godoc
// @ID          listFlashcards
// @Summary     Fetch a document's flashcard deck
// @Tags        Flashcards
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Document ID (UUID)"     format(uuid)
//
// @Success     200  {array}   domain.Flashcard
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /documents/{id}/flashcards [get]
func (h *Handlers) ListFlashcards(c *gin.Context) {
	documentID := c.Param("id")
	if _, err := uuid.Parse(documentID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "document id must be a UUID")
		return
	}

	cards, err := h.cardSvc.GetSet(c.Request.Context(), documentID, userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if cards == nil {
		cards = []domain.Flashcard{}
	}
	ok(c, http.StatusOK, cards)
}

// StartStudySession godoc
// @ID          startStudySession
// @Summary     Start a study session over a document's deck
// @Description Opens a session and freezes the deck for its duration.
// @Tags        Study
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Document ID (UUID)"     format(uuid)
//
// @Success     201  {object}  domain.StudySession
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse "Document has no flashcards"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /documents/{id}/study-sessions [post]
func (h *Handlers) StartStudySession(c *gin.Context) {
	documentID := c.Param("id")
	if _, err := uuid.Parse(documentID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "document id must be a UUID")
		return
	}

	session, err := h.cardSvc.StartSession(c.Request.Context(), userID(c), documentID)
	if err != nil {
		if errors.Is(err, services.ErrEmptyDeck) {
			fail(c, http.StatusConflict, ErrCodeEmptyDeck, "document has no flashcards to study")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusCreated, session)
}

// GetStudySession godoc
// @ID          getStudySession
// @Summary     Fetch a study session
// @Tags        Study
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
//
// @Success     200  {object}  domain.StudySession
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Session not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /study-sessions/{id} [get]
func (h *Handlers) GetStudySession(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := uuid.Parse(sessionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}

	session, err := h.cardSvc.GetSession(c.Request.Context(), sessionID, userID(c))
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "study session not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, session)
}

// RecordReview godoc
// @ID          recordReview
// @Summary     Grade one card within a study session
// @Description Records a +1/-1 grade. Each card can be graded once per session.
// @Tags        Study
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       body       body    handlers.RecordReviewRequest true "Review payload"
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse "Invalid payload"
// @Failure     404  {object}  handlers.ErrorResponse "Session not found"
// @Failure     409  {object}  handlers.ErrorResponse "Card already graded"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /study-sessions/{id}/reviews [post]
func (h *Handlers) RecordReview(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := uuid.Parse(sessionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}

	var req RecordReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "flashcard_id and grade (-1 or 1) required")
		return
	}

	uid := userID(c)
	ctx := c.Request.Context()

	session, err := h.cardSvc.GetSession(ctx, sessionID, uid)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "study session not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	if err := h.cardSvc.RecordReview(ctx, uid, sessionID, session.DocumentID, req.FlashcardID, req.Grade); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidGrade):
			fail(c, http.StatusBadRequest, ErrCodeInvalidGrade, "grade must be -1 or 1")
		case errors.Is(err, services.ErrDuplicateReview):
			fail(c, http.StatusConflict, ErrCodeConflict, "card already graded in this session")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	noContent(c)
}

// EndStudySession godoc
// @ID          endStudySession
// @Summary     End a study session
// @Description Closes the session and releases its deck. Ending an already ended session succeeds.
// @Tags        Study
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Session not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /study-sessions/{id}/end [post]
func (h *Handlers) EndStudySession(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := uuid.Parse(sessionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}

	uid := userID(c)
	ctx := c.Request.Context()

	session, err := h.cardSvc.GetSession(ctx, sessionID, uid)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "study session not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	if err := h.cardSvc.EndSession(ctx, uid, sessionID, session.DocumentID); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}
