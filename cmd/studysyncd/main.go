// Command studysyncd runs the local sync service for the study-notes client:
// it keeps the session credential verified against the identity service,
// serves documents, summaries, and flashcards through the entity cache, and
// exposes the whole thing as a local HTTP API.
//
// Boot order matters: logging and tracing come up first, then the durable
// stores (SQLite, local storage), then the session layer, and only then the
// HTTP server. The persisted credential is served immediately while the
// verifier confirms it in the background, so a restart never blocks on the
// network.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dkontos/go-study-sync/internal/ai"
	"github.com/dkontos/go-study-sync/internal/cache"
	"github.com/dkontos/go-study-sync/internal/config"
	"github.com/dkontos/go-study-sync/internal/domain"
	httpapi "github.com/dkontos/go-study-sync/internal/http"
	"github.com/dkontos/go-study-sync/internal/identity"
	"github.com/dkontos/go-study-sync/internal/localstore"
	"github.com/dkontos/go-study-sync/internal/mutation"
	"github.com/dkontos/go-study-sync/internal/observability"
	"github.com/dkontos/go-study-sync/internal/retry"
	"github.com/dkontos/go-study-sync/internal/session"
	"github.com/dkontos/go-study-sync/internal/store"
	"github.com/dkontos/go-study-sync/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// profileProvisioner adapts store.EnsureProfile to the
// session.ProfileProvisioner interface.
type profileProvisioner struct {
	db *gorm.DB
}

func (p profileProvisioner) EnsureProfile(ctx context.Context, cred *domain.Credential) error {
	return store.EnsureProfile(ctx, p.db, cred.UserID, cred.Email)
}

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	sysutil.SetLogLevel(cfg.LogLevel)
	logger := log.With().Str("service", sysutil.FirstNonEmpty(cfg.OTEL.ServiceName, "go-study-sync")).Logger()

	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing
	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}

	// Entity store
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open sqlite failed")
	}
	if err := store.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	// Durable local storage and the credential cache on top of it
	ls, err := localstore.New(cfg.Session.StoragePath, cfg.Session.StoragePrefix)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.Session.StoragePath).Msg("local storage unavailable")
	}
	credCache := session.NewCredentialCache(ls, logger)
	if err := credCache.Load(); err != nil {
		logger.Warn().Err(err).Msg("persisted credential unreadable; starting signed out")
	}

	// Identity service and the verifier over it
	idClient := identity.New(cfg.IDEndpoint, nil)
	if cred := credCache.Get(); cred != nil {
		idClient.SetToken(cred.AccessToken)
	}
	verifier := session.NewVerifier(credCache, idClient, profileProvisioner{db: db},
		cfg.Session.VerifyTimeout, cfg.Session.SignOutTimeout, logger)
	unwatch := verifier.WatchAuth()
	defer unwatch()

	// Confirm the persisted credential without blocking startup.
	go func() {
		if _, err := verifier.Verify(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("startup verification degraded")
		}
	}()

	// Read-retry policy with the verifier as auth recoverer
	retryPolicy := &retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
		AuthDelay:   cfg.Retry.AuthDelay,
		Recoverer:   verifier,
		Log:         logger,
	}

	// Entity cache and mutation coordinator
	entityCache := cache.New(cache.PolicyFromConfig(cfg.Cache), retryPolicy,
		cfg.Cache.GCWindow, cfg.Cache.GCInterval, logger)
	entityCache.Start()
	mutations := mutation.New(entityCache, logger)

	// HTTP transport
	engine := gin.New()
	summarySvc := httpapi.RegisterRoutes(engine, httpapi.Dependencies{
		DB:        db,
		Cache:     entityCache,
		Mutations: mutations,
		Session:   verifier,
		Processor: ai.New(cfg.AIEndpoint, nil),
		Log:       logger,
	}, cfg)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}

	summarySvc.Close()
	entityCache.Close()
	if err := otelShutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("otel shutdown")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info().Msg("bye")
}
