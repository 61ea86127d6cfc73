// Auth HTTP handlers.
//
// This file exposes REST endpoints for the local session:
//   - GET  /session       (verify the current credential)
//   - POST /auth/signin   (authenticate)
//   - POST /auth/signup   (register)
//   - POST /auth/signout  (revoke remote session, clear local state)
//
// Verification degrades gracefully: when the identity backend is slow or
// unreachable, a still-cached credential is served with "stale": true so the
// client can keep working offline instead of being logged out.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkontos/go-study-sync/internal/domain"
	"github.com/dkontos/go-study-sync/internal/http/middleware"
	"github.com/dkontos/go-study-sync/internal/retry"
	"github.com/dkontos/go-study-sync/internal/session"
)

// CredentialsRequest is the JSON payload for sign-in and sign-up.
type CredentialsRequest struct {
	Email    string `json:"email" binding:"required,email" example:"student@example.com"`
	Password string `json:"password" binding:"required,min=8" example:"hunter2hunter2"`
}

// SessionResponse wraps a verified credential.
//
// Stale is true when the credential could not be re-verified against the
// identity backend and a cached copy is being served instead.
type SessionResponse struct {
	Credential *domain.Credential `json:"credential"`
	Stale      bool               `json:"stale"`
}

// GetSession godoc
// @ID          getSession
// @Summary     Verify the current session
// @Description Re-verifies the credential against the identity backend. When the backend is unreachable a cached credential is returned with stale=true.
// @Tags        Auth
// @Produce     json
//
// @Success     200  {object}  handlers.SessionResponse
// @Failure     401  {object}  handlers.ErrorResponse "No usable session"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /session [get]
func (h *Handlers) GetSession(c *gin.Context) {
	cred, err := h.sessionSvc.Verify(c.Request.Context())
	switch {
	case err == nil:
		ok(c, http.StatusOK, SessionResponse{Credential: cred})
	case errors.Is(err, session.ErrStaleCredential) && cred != nil:
		ok(c, http.StatusOK, SessionResponse{Credential: cred, Stale: true})
	default:
		fail(c, http.StatusUnauthorized, ErrCodeNoSession, "no usable session")
	}
}

// SignIn godoc
// @ID          signIn
// @Summary     Sign in
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CredentialsRequest  true  "Credentials"
//
// @Success     200  {object}  handlers.SessionResponse
// @Failure     400  {object}  handlers.ErrorResponse "Invalid payload"
// @Failure     401  {object}  handlers.ErrorResponse "Rejected credentials"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /auth/signin [post]
func (h *Handlers) SignIn(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password (min 8 chars) required")
		return
	}

	cred, err := h.sessionSvc.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if retry.IsAuth(err) {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid email or password")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, SessionResponse{Credential: cred})
}

// SignUp godoc
// @ID          signUp
// @Summary     Create an account
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CredentialsRequest  true  "Credentials"
//
// @Success     201  {object}  handlers.SessionResponse
// @Failure     400  {object}  handlers.ErrorResponse "Invalid payload"
// @Failure     409  {object}  handlers.ErrorResponse "Account already exists"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /auth/signup [post]
func (h *Handlers) SignUp(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password (min 8 chars) required")
		return
	}

	cred, err := h.sessionSvc.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if retry.IsAuth(err) {
			fail(c, http.StatusConflict, ErrCodeConflict, "account cannot be created with these credentials")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusCreated, SessionResponse{Credential: cred})
}

// SignOut godoc
// @ID          signOut
// @Summary     Sign out
// @Description Revokes the remote session. Local state is cleared even when the remote call fails or times out, so sign-out always succeeds from the client's point of view.
// @Tags        Auth
// @Produce     json
//
// @Success     204  {string}  string "No Content"
// @Router      /auth/signout [post]
func (h *Handlers) SignOut(c *gin.Context) {
	// Local state is already cleared by the service regardless of the remote
	// outcome; surface the remote failure only in logs.
	if err := h.sessionSvc.SignOut(c.Request.Context()); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("remote sign-out failed; local state cleared")
	}
	noContent(c)
}
