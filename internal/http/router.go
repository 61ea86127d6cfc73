// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, compression,
// CORS, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/dkontos/go-study-sync/internal/cache"
	"github.com/dkontos/go-study-sync/internal/config"
	"github.com/dkontos/go-study-sync/internal/domain"
	"github.com/dkontos/go-study-sync/internal/http/handlers"
	"github.com/dkontos/go-study-sync/internal/http/middleware"
	"github.com/dkontos/go-study-sync/internal/mutation"
	"github.com/dkontos/go-study-sync/internal/poll"
	"github.com/dkontos/go-study-sync/internal/services"
	"github.com/dkontos/go-study-sync/internal/store"
)

// documentRepoShim adapts the repository free functions to the
// services.DocumentRepo interface expected by the DocumentService. This keeps
// services decoupled from the concrete store package while reusing existing
// functions.
type documentRepoShim struct{}

// CreateDocument proxies store.CreateDocument.
func (documentRepoShim) CreateDocument(ctx context.Context, db *gorm.DB, userID, title, sourcePath string, pageCount int) (*domain.Document, error) {
	return store.CreateDocument(ctx, db, userID, title, sourcePath, pageCount)
}

// ListDocuments proxies store.ListDocuments.
func (documentRepoShim) ListDocuments(ctx context.Context, db *gorm.DB, userID string, starredOnly bool) ([]domain.Document, error) {
	return store.ListDocuments(ctx, db, userID, starredOnly)
}

// GetDocument proxies store.GetDocument.
func (documentRepoShim) GetDocument(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Document, error) {
	return store.GetDocument(ctx, db, id, userID)
}

// SetDocumentStarred proxies store.SetDocumentStarred.
func (documentRepoShim) SetDocumentStarred(ctx context.Context, db *gorm.DB, id, userID string, starred bool) error {
	return store.SetDocumentStarred(ctx, db, id, userID, starred)
}

// DeleteDocument proxies store.DeleteDocument.
func (documentRepoShim) DeleteDocument(ctx context.Context, db *gorm.DB, id, userID string) error {
	return store.DeleteDocument(ctx, db, id, userID)
}

// summaryRepoShim adapts the summary repository functions to
// services.SummaryRepo.
type summaryRepoShim struct{}

// GetSummaryByDocument proxies store.GetSummaryByDocument.
func (summaryRepoShim) GetSummaryByDocument(ctx context.Context, db *gorm.DB, documentID, userID string) (*domain.Summary, error) {
	return store.GetSummaryByDocument(ctx, db, documentID, userID)
}

// CreateSummary proxies store.CreateSummary.
func (summaryRepoShim) CreateSummary(ctx context.Context, db *gorm.DB, documentID, userID, language string) (*domain.Summary, error) {
	return store.CreateSummary(ctx, db, documentID, userID, language)
}

// ResetSummary proxies store.ResetSummary.
func (summaryRepoShim) ResetSummary(ctx context.Context, db *gorm.DB, documentID, userID, language string) error {
	return store.ResetSummary(ctx, db, documentID, userID, language)
}

// flashcardRepoShim adapts the flashcard repository functions to
// services.FlashcardRepo.
type flashcardRepoShim struct{}

// ListFlashcards proxies store.ListFlashcards.
func (flashcardRepoShim) ListFlashcards(ctx context.Context, db *gorm.DB, documentID, userID string) ([]domain.Flashcard, error) {
	return store.ListFlashcards(ctx, db, documentID, userID)
}

// UpdateFlashcardMastery proxies store.UpdateFlashcardMastery.
func (flashcardRepoShim) UpdateFlashcardMastery(ctx context.Context, db *gorm.DB, id, userID string, score float64) error {
	return store.UpdateFlashcardMastery(ctx, db, id, userID, score)
}

// studyRepoShim adapts the study-session repository functions to
// services.StudyRepo.
type studyRepoShim struct{}

// CreateStudySession proxies store.CreateStudySession.
func (studyRepoShim) CreateStudySession(ctx context.Context, db *gorm.DB, userID, documentID string, cardCount int) (*domain.StudySession, error) {
	return store.CreateStudySession(ctx, db, userID, documentID, cardCount)
}

// GetStudySession proxies store.GetStudySession.
func (studyRepoShim) GetStudySession(ctx context.Context, db *gorm.DB, id, userID string) (*domain.StudySession, error) {
	return store.GetStudySession(ctx, db, id, userID)
}

// EndStudySession proxies store.EndStudySession.
func (studyRepoShim) EndStudySession(ctx context.Context, db *gorm.DB, id, userID string) error {
	return store.EndStudySession(ctx, db, id, userID)
}

// CreateReview proxies store.CreateReview.
func (studyRepoShim) CreateReview(ctx context.Context, db *gorm.DB, userID, sessionID, flashcardID string, grade int) (*domain.Review, error) {
	return store.CreateReview(ctx, db, userID, sessionID, flashcardID, grade)
}

// Dependencies carries the shared subsystems the router wires services onto.
// Everything here is constructed in main and injected.
type Dependencies struct {
	DB        *gorm.DB
	Cache     *cache.Store
	Mutations *mutation.Coordinator
	Session   handlers.SessionService
	Processor services.Processor
	Log       zerolog.Logger
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and returns the summary service so the caller can stop its pollers
// on shutdown.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured request logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip compression
//  7. Metrics
//  8. Rate limiter (per user/IP)
//  9. CORS
func RegisterRoutes(r *gin.Engine, deps Dependencies, cfg config.Config) *services.SummaryService {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured request logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Compress JSON payloads (summaries and decks can be large)
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (docs generated with `swag init`)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← store/db/cache
	docSvc := services.NewDocumentService(deps.DB, documentRepoShim{}, deps.Cache, deps.Mutations)
	summarySvc := services.NewSummaryService(deps.DB, summaryRepoShim{}, deps.Cache, deps.Mutations, deps.Processor,
		poll.Config{InitialDelay: cfg.Poll.InitialDelay, Interval: cfg.Poll.Interval}, deps.Log)
	cardSvc := services.NewFlashcardService(deps.DB, flashcardRepoShim{}, studyRepoShim{}, deps.Cache, deps.Mutations)

	h := handlers.New(docSvc, summarySvc, cardSvc, deps.Session)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Auth / session
		api.GET("/session", h.GetSession)
		api.POST("/auth/signin", h.SignIn)
		api.POST("/auth/signup", h.SignUp)
		api.POST("/auth/signout", h.SignOut)

		// Documents
		api.GET("/documents", h.ListDocuments)
		api.POST("/documents", h.CreateDocument)
		api.GET("/documents/:id", h.GetDocument)
		api.PUT("/documents/:id/star", h.StarDocument)
		api.DELETE("/documents/:id", h.DeleteDocument)

		// Summaries
		api.GET("/documents/:id/summary", h.GetSummary)
		api.POST("/documents/:id/summary", h.GenerateSummary)

		// Flashcards and study sessions
		api.GET("/documents/:id/flashcards", h.ListFlashcards)
		api.POST("/documents/:id/study-sessions", h.StartStudySession)
		api.GET("/study-sessions/:id", h.GetStudySession)
		api.POST("/study-sessions/:id/reviews", h.RecordReview)
		api.POST("/study-sessions/:id/end", h.EndStudySession)
	}

	return summarySvc
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
