package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/dkontos/go-study-sync/internal/domain"
	"github.com/dkontos/go-study-sync/internal/retry"
	"github.com/dkontos/go-study-sync/internal/session"
)

func TestGetSession_FreshCredential(t *testing.T) {
	h := newTestHandlers(stubDocSvc{}, stubSummarySvc{}, stubCardSvc{}, stubSessionSvc{
		verify: func(context.Context) (*domain.Credential, error) {
			return &domain.Credential{UserID: "u1", AccessToken: "tok"}, nil
		},
	})

	r := gin.New()
	r.GET("/session", h.GetSession)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/session", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	var resp SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Stale || resp.Credential == nil || resp.Credential.UserID != "u1" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestGetSession_StaleFallbackIsStill200(t *testing.T) {
	cause := fmt.Errorf("%w: %w", session.ErrStaleCredential, session.ErrVerifyTimeout)
	h := newTestHandlers(stubDocSvc{}, stubSummarySvc{}, stubCardSvc{}, stubSessionSvc{
		verify: func(context.Context) (*domain.Credential, error) {
			return &domain.Credential{UserID: "u1"}, cause
		},
	})

	r := gin.New()
	r.GET("/session", h.GetSession)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/session", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 for a stale-but-usable credential", w.Code)
	}
	var resp SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || !resp.Stale {
		t.Fatalf("response = %+v (err=%v); want stale=true", resp, err)
	}
}

func TestGetSession_NoSessionIs401(t *testing.T) {
	h := newTestHandlers(stubDocSvc{}, stubSummarySvc{}, stubCardSvc{}, stubSessionSvc{
		verify: func(context.Context) (*domain.Credential, error) {
			return nil, fmt.Errorf("%w: %w", session.ErrNoSession, errors.New("backend said no"))
		},
	})

	r := gin.New()
	r.GET("/session", h.GetSession)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/session", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d; want 401", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != ErrCodeNoSession {
		t.Fatalf("error body = %s (err=%v)", w.Body.String(), err)
	}
}

func TestSignIn_BindingError(t *testing.T) {
	h := newTestHandlers(stubDocSvc{}, stubSummarySvc{}, stubCardSvc{}, stubSessionSvc{
		signIn: func(context.Context, string, string) (*domain.Credential, error) {
			t.Fatalf("service should not be called on binding error")
			return nil, nil
		},
	})

	r := gin.New()
	r.POST("/auth/signin", h.SignIn)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/signin",
		bytes.NewBufferString(`{"email":"not-an-email","password":"short"}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
}

func TestSignIn_RejectedCredentials(t *testing.T) {
	h := newTestHandlers(stubDocSvc{}, stubSummarySvc{}, stubCardSvc{}, stubSessionSvc{
		signIn: func(context.Context, string, string) (*domain.Credential, error) {
			return nil, retry.Auth(errors.New("bad password"))
		},
	})

	r := gin.New()
	r.POST("/auth/signin", h.SignIn)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/signin",
		bytes.NewBufferString(`{"email":"a@b.com","password":"longenough"}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d; want 401", w.Code)
	}
}

func TestSignIn_Success(t *testing.T) {
	var gotEmail string
	h := newTestHandlers(stubDocSvc{}, stubSummarySvc{}, stubCardSvc{}, stubSessionSvc{
		signIn: func(_ context.Context, email, _ string) (*domain.Credential, error) {
			gotEmail = email
			return &domain.Credential{UserID: "u1", Email: email}, nil
		},
	})

	r := gin.New()
	r.POST("/auth/signin", h.SignIn)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/signin",
		bytes.NewBufferString(`{"email":"a@b.com","password":"longenough"}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || gotEmail != "a@b.com" {
		t.Fatalf("status = %d email = %q", w.Code, gotEmail)
	}
}

func TestSignUp_ConflictOnAuthError(t *testing.T) {
	h := newTestHandlers(stubDocSvc{}, stubSummarySvc{}, stubCardSvc{}, stubSessionSvc{
		signUp: func(context.Context, string, string) (*domain.Credential, error) {
			return nil, retry.Auth(errors.New("already registered"))
		},
	})

	r := gin.New()
	r.POST("/auth/signup", h.SignUp)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/signup",
		bytes.NewBufferString(`{"email":"a@b.com","password":"longenough"}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d; want 409", w.Code)
	}
}

func TestSignOut_SucceedsDespiteRemoteFailure(t *testing.T) {
	called := false
	h := newTestHandlers(stubDocSvc{}, stubSummarySvc{}, stubCardSvc{}, stubSessionSvc{
		signOut: func(context.Context) error {
			called = true
			return errors.New("backend unreachable")
		},
	})

	r := gin.New()
	r.POST("/auth/signout", h.SignOut)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/signout", nil))

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d; want 204 even when the remote call fails", w.Code)
	}
	if !called {
		t.Fatalf("service not called")
	}
}
