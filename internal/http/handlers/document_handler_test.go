package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/dkontos/go-study-sync/internal/domain"
	"github.com/dkontos/go-study-sync/internal/services"
)

const testDocID = "141add05-4415-4938-b5a1-17e0d3171aff"

// ---- stubs to satisfy handlers.New() dependencies ----

type stubDocSvc struct {
	list   func(ctx context.Context, userID string, starredOnly bool) ([]domain.Document, error)
	get    func(ctx context.Context, id, userID string) (*domain.Document, error)
	create func(ctx context.Context, userID, title, sourcePath string, pageCount int) (*domain.Document, error)
	toggle func(ctx context.Context, id, userID string, starred bool) error
	del    func(ctx context.Context, id, userID string) error
}

func (s stubDocSvc) List(ctx context.Context, userID string, starredOnly bool) ([]domain.Document, error) {
	if s.list != nil {
		return s.list(ctx, userID, starredOnly)
	}
	return nil, nil
}

func (s stubDocSvc) Get(ctx context.Context, id, userID string) (*domain.Document, error) {
	if s.get != nil {
		return s.get(ctx, id, userID)
	}
	return nil, nil
}

func (s stubDocSvc) Create(ctx context.Context, userID, title, sourcePath string, pageCount int) (*domain.Document, error) {
	if s.create != nil {
		return s.create(ctx, userID, title, sourcePath, pageCount)
	}
	return nil, nil
}

func (s stubDocSvc) ToggleStar(ctx context.Context, id, userID string, starred bool) error {
	if s.toggle != nil {
		return s.toggle(ctx, id, userID, starred)
	}
	return nil
}

func (s stubDocSvc) Delete(ctx context.Context, id, userID string) error {
	if s.del != nil {
		return s.del(ctx, id, userID)
	}
	return nil
}

type stubSummarySvc struct {
	get      func(ctx context.Context, documentID, userID string) (*domain.Summary, error)
	generate func(ctx context.Context, documentID, userID, lang string) error
}

func (s stubSummarySvc) Get(ctx context.Context, documentID, userID string) (*domain.Summary, error) {
	if s.get != nil {
		return s.get(ctx, documentID, userID)
	}
	return nil, nil
}

func (s stubSummarySvc) Generate(ctx context.Context, documentID, userID, lang string) error {
	if s.generate != nil {
		return s.generate(ctx, documentID, userID, lang)
	}
	return nil
}

func (stubSummarySvc) Watch(string, string) {}

type stubCardSvc struct {
	getSet  func(ctx context.Context, documentID, userID string) ([]domain.Flashcard, error)
	start   func(ctx context.Context, userID, documentID string) (*domain.StudySession, error)
	getSess func(ctx context.Context, sessionID, userID string) (*domain.StudySession, error)
	review  func(ctx context.Context, userID, sessionID, documentID, flashcardID string, grade int) error
	end     func(ctx context.Context, userID, sessionID, documentID string) error
}

func (s stubCardSvc) GetSet(ctx context.Context, documentID, userID string) ([]domain.Flashcard, error) {
	if s.getSet != nil {
		return s.getSet(ctx, documentID, userID)
	}
	return nil, nil
}

func (s stubCardSvc) StartSession(ctx context.Context, userID, documentID string) (*domain.StudySession, error) {
	if s.start != nil {
		return s.start(ctx, userID, documentID)
	}
	return nil, nil
}

func (s stubCardSvc) GetSession(ctx context.Context, sessionID, userID string) (*domain.StudySession, error) {
	if s.getSess != nil {
		return s.getSess(ctx, sessionID, userID)
	}
	return nil, nil
}

func (s stubCardSvc) RecordReview(ctx context.Context, userID, sessionID, documentID, flashcardID string, grade int) error {
	if s.review != nil {
		return s.review(ctx, userID, sessionID, documentID, flashcardID, grade)
	}
	return nil
}

func (s stubCardSvc) EndSession(ctx context.Context, userID, sessionID, documentID string) error {
	if s.end != nil {
		return s.end(ctx, userID, sessionID, documentID)
	}
	return nil
}

type stubSessionSvc struct {
	verify  func(ctx context.Context) (*domain.Credential, error)
	signIn  func(ctx context.Context, email, password string) (*domain.Credential, error)
	signUp  func(ctx context.Context, email, password string) (*domain.Credential, error)
	signOut func(ctx context.Context) error
}

func (s stubSessionSvc) Verify(ctx context.Context) (*domain.Credential, error) {
	if s.verify != nil {
		return s.verify(ctx)
	}
	return nil, nil
}

func (s stubSessionSvc) SignIn(ctx context.Context, email, password string) (*domain.Credential, error) {
	if s.signIn != nil {
		return s.signIn(ctx, email, password)
	}
	return nil, nil
}

func (s stubSessionSvc) SignUp(ctx context.Context, email, password string) (*domain.Credential, error) {
	if s.signUp != nil {
		return s.signUp(ctx, email, password)
	}
	return nil, nil
}

func (s stubSessionSvc) SignOut(ctx context.Context) error {
	if s.signOut != nil {
		return s.signOut(ctx)
	}
	return nil
}

func newTestHandlers(doc stubDocSvc, sum stubSummarySvc, cards stubCardSvc, sess stubSessionSvc) *Handlers {
	gin.SetMode(gin.TestMode)
	return New(doc, sum, cards, sess)
}

// ---- tests ----

func TestListDocuments_StarredQueryReachesService(t *testing.T) {
	var gotStarred bool
	var gotUser string
	h := newTestHandlers(stubDocSvc{
		list: func(_ context.Context, userID string, starredOnly bool) ([]domain.Document, error) {
			gotUser, gotStarred = userID, starredOnly
			return []domain.Document{{ID: testDocID, UserID: userID}}, nil
		},
	}, stubSummarySvc{}, stubCardSvc{}, stubSessionSvc{})

	r := gin.New()
	r.GET("/documents", h.ListDocuments)

	req := httptest.NewRequest(http.MethodGet, "/documents?starred=true", nil)
	req.Header.Set("X-User-ID", "u-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	if !gotStarred || gotUser != "u-123" {
		t.Fatalf("service saw user=%q starred=%v", gotUser, gotStarred)
	}
}

func TestListDocuments_EmptyListIsJSONArray(t *testing.T) {
	h := newTestHandlers(stubDocSvc{}, stubSummarySvc{}, stubCardSvc{}, stubSessionSvc{})

	r := gin.New()
	r.GET("/documents", h.ListDocuments)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := bytes.TrimSpace(w.Body.Bytes()); string(body) != "[]" {
		t.Fatalf("body = %s; want []", body)
	}
}

func TestGetDocument_InvalidID(t *testing.T) {
	h := newTestHandlers(stubDocSvc{
		get: func(context.Context, string, string) (*domain.Document, error) {
			t.Fatalf("service should not be called for a malformed id")
			return nil, nil
		},
	}, stubSummarySvc{}, stubCardSvc{}, stubSessionSvc{})

	r := gin.New()
	r.GET("/documents/:id", h.GetDocument)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/not-a-uuid", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	h := newTestHandlers(stubDocSvc{
		get: func(context.Context, string, string) (*domain.Document, error) {
			return nil, services.ErrDocumentNotFound
		},
	}, stubSummarySvc{}, stubCardSvc{}, stubSessionSvc{})

	r := gin.New()
	r.GET("/documents/:id", h.GetDocument)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/"+testDocID, nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != ErrCodeNotFound {
		t.Fatalf("error body = %s (err=%v)", w.Body.String(), err)
	}
}

func TestCreateDocument_RequiresSourcePath(t *testing.T) {
	h := newTestHandlers(stubDocSvc{
		create: func(context.Context, string, string, string, int) (*domain.Document, error) {
			t.Fatalf("service should not be called on binding error")
			return nil, nil
		},
	}, stubSummarySvc{}, stubCardSvc{}, stubSessionSvc{})

	r := gin.New()
	r.POST("/documents", h.CreateDocument)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewBufferString(`{"title":"no path"}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
}

func TestCreateDocument_ReturnsCreatedResource(t *testing.T) {
	h := newTestHandlers(stubDocSvc{
		create: func(_ context.Context, userID, title, sourcePath string, pageCount int) (*domain.Document, error) {
			return &domain.Document{ID: testDocID, UserID: userID, Title: title, SourcePath: sourcePath, PageCount: pageCount}, nil
		},
	}, stubSummarySvc{}, stubCardSvc{}, stubSessionSvc{})

	r := gin.New()
	r.POST("/documents", h.CreateDocument)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/documents",
		bytes.NewBufferString(`{"title":"Calc II","source_path":"uploads/a.pdf","page_count":3}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; want 201", w.Code)
	}
	var doc domain.Document
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil || doc.SourcePath != "uploads/a.pdf" || doc.PageCount != 3 {
		t.Fatalf("created doc = %+v (err=%v)", doc, err)
	}
}

func TestStarDocument_MapsNotFound(t *testing.T) {
	h := newTestHandlers(stubDocSvc{
		toggle: func(context.Context, string, string, bool) error { return services.ErrDocumentNotFound },
	}, stubSummarySvc{}, stubCardSvc{}, stubSessionSvc{})

	r := gin.New()
	r.PUT("/documents/:id/star", h.StarDocument)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/documents/"+testDocID+"/star",
		bytes.NewBufferString(`{"starred":true}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", w.Code)
	}
}

func TestStarDocument_FalseIsValid(t *testing.T) {
	var got *bool
	h := newTestHandlers(stubDocSvc{
		toggle: func(_ context.Context, _, _ string, starred bool) error {
			got = &starred
			return nil
		},
	}, stubSummarySvc{}, stubCardSvc{}, stubSessionSvc{})

	r := gin.New()
	r.PUT("/documents/:id/star", h.StarDocument)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/documents/"+testDocID+"/star",
		bytes.NewBufferString(`{"starred":false}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d; want 204", w.Code)
	}
	if got == nil || *got {
		t.Fatalf("service saw starred=%v; want false", got)
	}
}

func TestDeleteDocument_NoContent(t *testing.T) {
	var deleted string
	h := newTestHandlers(stubDocSvc{
		del: func(_ context.Context, id, _ string) error {
			deleted = id
			return nil
		},
	}, stubSummarySvc{}, stubCardSvc{}, stubSessionSvc{})

	r := gin.New()
	r.DELETE("/documents/:id", h.DeleteDocument)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/documents/"+testDocID, nil))

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d; want 204", w.Code)
	}
	if deleted != testDocID {
		t.Fatalf("deleted id = %q", deleted)
	}
}
