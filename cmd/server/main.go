// Package main is the entrypoint for the DRISHTI analysis API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drishti-ai/drishti/internal/api"
	"github.com/drishti-ai/drishti/internal/api/handler"
	mw "github.com/drishti-ai/drishti/internal/api/middleware"
	"github.com/drishti-ai/drishti/internal/api/response"
	"github.com/drishti-ai/drishti/internal/blob"
	"github.com/drishti-ai/drishti/internal/cache"
	"github.com/drishti-ai/drishti/internal/certs"
	"github.com/drishti-ai/drishti/internal/config"
	"github.com/drishti-ai/drishti/internal/consistency"
	"github.com/drishti-ai/drishti/internal/detect"
	"github.com/drishti-ai/drishti/internal/fusion"
	"github.com/drishti-ai/drishti/internal/ingest"
	"github.com/drishti-ai/drishti/internal/metadata"
	"github.com/drishti-ai/drishti/internal/pipeline"
	"github.com/drishti-ai/drishti/internal/reqstore"
	"github.com/drishti-ai/drishti/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "blob_backend", cfg.Blob.Backend, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Payload staging area
	var stager blob.Stager
	switch cfg.Blob.Backend {
	case "minio":
		stager, err = blob.NewMinioStager(ctx, cfg.Blob)
		if err != nil {
			return fmt.Errorf("create minio stager: %w", err)
		}
	default:
		stager = blob.NewMemoryStager()
	}
	slog.Info("payload stager initialized", "backend", cfg.Blob.Backend)

	// 6. Detection policy
	policy, err := config.LoadPolicy(cfg.Analysis.PolicyFile)
	if err != nil {
		return fmt.Errorf("load detection policy: %w", err)
	}

	// 7. Create store and domain services
	pgStore := store.NewPostgresStore(pool)

	requests := reqstore.New(redisCache, cfg.Analysis.RequestTTL)
	analysisSvc := pipeline.NewService(
		ingest.NewNormalizer(cfg.Analysis.MaxSizes),
		detect.NewRegistry(),
		metadata.NewScanner(),
		consistency.NewEngine(),
		fusion.New(policy),
		requests,
		stager,
		cfg.Analysis.DetectorTimeout,
		cfg.Analysis.SyncBudget,
	)

	certSvc, err := certs.New(pgStore, cfg.Certify.SigningKeySeed, cfg.Certify.VerifyBaseURL)
	if err != nil {
		return fmt.Errorf("create certificate service: %w", err)
	}

	// 8. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache)
	keys := handler.NewKeysHandler(pgStore)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:  healthHandler(pgStore, redisCache),
		AnalyzeHandler: handler.NewAnalyzeHandler(analysisSvc),
		PollHandler:    handler.NewPollHandler(analysisSvc),
		CancelHandler:  handler.NewCancelHandler(analysisSvc),
		CertifyHandler: handler.NewCertifyHandler(certSvc),
		VerifyHandler:  handler.NewVerifyHandler(certSvc),

		CreateKeyHandler: keys.Create,
		ListKeysHandler:  keys.List,
		RevokeKeyHandler: keys.Revoke,
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
