package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("X-Request-ID not set on response")
	}
}

func TestRequestID_PropagatesIncoming(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	var got string
	r.GET("/x", func(c *gin.Context) {
		v, _ := c.Get("requestID")
		got, _ = v.(string)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "rid-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got != "rid-123" || w.Header().Get("X-Request-ID") != "rid-123" {
		t.Fatalf("request ID not propagated: ctx=%q header=%q", got, w.Header().Get("X-Request-ID"))
	}
}

func TestLogger_AttachesRequestScopedLogger(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Logger())
	var hadLogger bool
	r.GET("/x", func(c *gin.Context) {
		hadLogger = LoggerFrom(c) != nil
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if !hadLogger {
		t.Fatalf("request-scoped logger missing")
	}
}

func TestLoggerFrom_FallbackWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if LoggerFrom(c) == nil {
		t.Fatalf("fallback logger must not be nil")
	}
}

func TestRecovery_PanicBecomesJSON500(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 3); got != "abc…" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("ab", 3); got != "ab" {
		t.Fatalf("truncate short = %q", got)
	}
	if got := truncate("abcdef", 0); got != "abcdef" {
		t.Fatalf("truncate disabled = %q", got)
	}
}
