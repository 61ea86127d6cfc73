// Summary HTTP handlers.
//
// This file exposes REST endpoints for AI summaries:
//   - GET  /documents/{id}/summary  (fetch, whatever the job status)
//   - POST /documents/{id}/summary  (request or restart generation)
//
// Generation is asynchronous: POST returns 202 once the request row is stored
// and the backend trigger has been attempted, and GET reflects the persisted
// job status as it progresses. Clients poll GET (or rely on the server-side
// watcher) until Status becomes terminal.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dkontos/go-study-sync/internal/services"
)

// GenerateSummaryRequest is the JSON payload for requesting summarization.
type GenerateSummaryRequest struct {
	// Language is a BCP 47 tag for the summary language; defaults to "en".
	Language string `json:"language" example:"en"`
}

// GetSummary godoc
// @ID          getSummary
// @Summary     Fetch a document's summary
// @Description Returns the summary row including its processing status. Content is only present when status is "completed".
// @Tags        Summaries
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Document ID (UUID)"     format(uuid)
//
// @Success     200  {object}  domain.Summary
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "No summary requested yet"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /documents/{id}/summary [get]
func (h *Handlers) GetSummary(c *gin.Context) {
	documentID := c.Param("id")
	if _, err := uuid.Parse(documentID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "document id must be a UUID")
		return
	}

	sum, err := h.summarySvc.Get(c.Request.Context(), documentID, userID(c))
	if err != nil {
		if errors.Is(err, services.ErrSummaryNotFound) {
			fail(c, http.StatusNotFound, ErrCodeSummaryUnstarted, "no summary requested for this document")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, sum)
}

// GenerateSummary godoc
// @ID          generateSummary
// @Summary     Request summary generation
// @Description Stores (or resets) the summary request and triggers the backend job. Returns 202 even when the trigger fails, because the stored request keeps being watched and may still complete.
// @Tags        Summaries
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Document ID (UUID)"     format(uuid)
// @Param       body       body    handlers.GenerateSummaryRequest false "Generation options"
//
// @Success     202  {string}  string "Accepted"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /documents/{id}/summary [post]
func (h *Handlers) GenerateSummary(c *gin.Context) {
	documentID := c.Param("id")
	if _, err := uuid.Parse(documentID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "document id must be a UUID")
		return
	}

	var req GenerateSummaryRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	err := h.summarySvc.Generate(c.Request.Context(), documentID, userID(c), req.Language)
	if err != nil && !errors.Is(err, services.ErrSummaryTrigger) {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	// A failed trigger on a stored request is still accepted: the request row
	// is watched and the backend may have taken the job anyway.
	c.Status(http.StatusAccepted)
}
