// Document HTTP handlers.
//
// This file exposes REST endpoints for document resources:
//   - GET    /documents            (list, optional ?starred=true filter)
//   - POST   /documents            (register an uploaded document)
//   - GET    /documents/{id}       (fetch one)
//   - PUT    /documents/{id}/star  (toggle favorite flag)
//   - DELETE /documents/{id}       (delete)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. It also hosts the service
// contracts and shared wiring (Handlers, New, userID) used by every handler
// file in this package.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dkontos/go-study-sync/internal/domain"
	"github.com/dkontos/go-study-sync/internal/services"
	"github.com/dkontos/go-study-sync/internal/utils"
)

//
// Service contracts (context-aware)
//

// DocumentService defines document lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type DocumentService interface {
	// List returns the user's documents, optionally only starred ones.
	List(ctx context.Context, userID string, starredOnly bool) ([]domain.Document, error)
	// Get fetches one document owned by userID.
	Get(ctx context.Context, id, userID string) (*domain.Document, error)
	// Create registers an uploaded document and returns the stored resource.
	Create(ctx context.Context, userID, title, sourcePath string, pageCount int) (*domain.Document, error)
	// ToggleStar sets the favorite flag on a document owned by userID.
	ToggleStar(ctx context.Context, id, userID string, starred bool) error
	// Delete removes a document owned by userID.
	Delete(ctx context.Context, id, userID string) error
}

// SummaryService defines summary retrieval and generation operations.
type SummaryService interface {
	// Get returns the summary row for a document, whatever its status.
	Get(ctx context.Context, documentID, userID string) (*domain.Summary, error)
	// Generate requests (or re-requests) summarization in the given language.
	Generate(ctx context.Context, documentID, userID, lang string) error
	// Watch starts background polling of an in-flight summary job.
	Watch(documentID, userID string)
}

// FlashcardService defines deck reads and study-session operations.
type FlashcardService interface {
	// GetSet returns a document's flashcard deck.
	GetSet(ctx context.Context, documentID, userID string) ([]domain.Flashcard, error)
	// StartSession opens a study session over the document's deck.
	StartSession(ctx context.Context, userID, documentID string) (*domain.StudySession, error)
	// GetSession fetches a study session owned by userID.
	GetSession(ctx context.Context, sessionID, userID string) (*domain.StudySession, error)
	// RecordReview persists one graded answer within a session.
	RecordReview(ctx context.Context, userID, sessionID, documentID, flashcardID string, grade int) error
	// EndSession closes a study session.
	EndSession(ctx context.Context, userID, sessionID, documentID string) error
}

// SessionService defines the credential operations consumed by the auth
// endpoints. It is implemented by session.Verifier.
type SessionService interface {
	// Verify returns a usable credential, possibly a cached one.
	Verify(ctx context.Context) (*domain.Credential, error)
	// SignIn authenticates with email/password and caches the credential.
	SignIn(ctx context.Context, email, password string) (*domain.Credential, error)
	// SignUp registers a new account and caches the credential.
	SignUp(ctx context.Context, email, password string) (*domain.Credential, error)
	// SignOut revokes the remote session and always clears local state.
	SignOut(ctx context.Context) error
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for documents, summaries, flashcards, and
// auth. It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	docSvc     DocumentService
	summarySvc SummaryService
	cardSvc    FlashcardService
	sessionSvc SessionService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(docSvc DocumentService, summarySvc SummaryService, cardSvc FlashcardService, sessionSvc SessionService) *Handlers {
	return &Handlers{docSvc: docSvc, summarySvc: summarySvc, cardSvc: cardSvc, sessionSvc: sessionSvc}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// CreateDocumentRequest is the JSON payload for registering a document.
type CreateDocumentRequest struct {
	// Title optionally names the document; a default is used when empty.
	Title string `json:"title" example:"Calculus II lecture notes"`
	// SourcePath is the storage location of the uploaded content.
	SourcePath string `json:"source_path" binding:"required,min=1,max=512" example:"uploads/u1/calc2.pdf"`
	// PageCount is the number of pages detected at upload time.
	PageCount int `json:"page_count" binding:"min=0" example:"42"`
}

// StarDocumentRequest is the JSON payload for toggling the favorite flag.
type StarDocumentRequest struct {
	// Starred is the desired state of the favorite flag.
	Starred *bool `json:"starred" binding:"required" example:"true"`
}

//
// Handlers
//

// List size bounds for the documents endpoint.
const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// ListDocuments godoc
// @ID          listDocuments
// @Summary     List documents
// @Description Returns the user's documents, newest first. Pass ?starred=true to only return favorites.
// @Tags        Documents
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       starred    query   bool    false "Only starred documents" default(false)
// @Param       limit      query   int     false "Maximum items returned" minimum(1) maximum(500) default(100)
//
// @Success     200  {array}   domain.Document
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /documents [get]
func (h *Handlers) ListDocuments(c *gin.Context) {
	starred := utils.BoolDefault(c.Query("starred"), false)
	limit := utils.ClampInt(utils.AtoiDefault(c.Query("limit"), defaultListLimit), 1, maxListLimit)

	docs, err := h.docSvc.List(c.Request.Context(), userID(c), starred)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	if len(docs) > limit {
		docs = docs[:limit]
	}
	ok(c, http.StatusOK, docs)
}

// GetDocument godoc
// @ID          getDocument
// @Summary     Fetch one document
// @Tags        Documents
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Document ID (UUID)"     format(uuid)
//
// @Success     200  {object}  domain.Document
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Document not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /documents/{id} [get]
func (h *Handlers) GetDocument(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "document id must be a UUID")
		return
	}

	doc, err := h.docSvc.Get(c.Request.Context(), id, userID(c))
	if err != nil {
		if errors.Is(err, services.ErrDocumentNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "document not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, doc)
}

// CreateDocument godoc
// @ID          createDocument
// @Summary     Register an uploaded document
// @Description Stores metadata for a document whose content was already uploaded.
// @Tags        Documents
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateDocumentRequest true "Document payload"
//
// @Success     201  {object}  domain.Document
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /documents [post]
func (h *Handlers) CreateDocument(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "source_path required")
		return
	}

	doc, err := h.docSvc.Create(c.Request.Context(), userID(c), req.Title, req.SourcePath, req.PageCount)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusCreated, doc)
}

// StarDocument godoc
// @ID          starDocument
// @Summary     Toggle the favorite flag on a document
// @Description Sets is_starred to the requested value. The change is applied optimistically client-side.
// @Tags        Documents
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Document ID (UUID)"     format(uuid)
// @Param       body       body    handlers.StarDocumentRequest true "Desired flag"
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Document not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /documents/{id}/star [put]
func (h *Handlers) StarDocument(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "document id must be a UUID")
		return
	}

	var req StarDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Starred == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "starred (bool) required")
		return
	}

	if err := h.docSvc.ToggleStar(c.Request.Context(), id, userID(c), *req.Starred); err != nil {
		if errors.Is(err, services.ErrDocumentNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "document not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// DeleteDocument godoc
// @ID          deleteDocument
// @Summary     Delete a document
// @Description Removes a document together with its summary and flashcards.
// @Tags        Documents
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Document ID (UUID)"     format(uuid)
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Document not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /documents/{id} [delete]
func (h *Handlers) DeleteDocument(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "document id must be a UUID")
		return
	}

	if err := h.docSvc.Delete(c.Request.Context(), id, userID(c)); err != nil {
		if errors.Is(err, services.ErrDocumentNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "document not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}
