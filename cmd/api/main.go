package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"artwink/internal/artwork"
	"artwink/internal/attendance"
	"artwink/internal/auth"
	"artwink/internal/backend"
	"artwink/internal/config"
	"artwink/internal/directory"
	"artwink/internal/httpapi"
	"artwink/internal/logging"
	"artwink/internal/metrics"
	"artwink/internal/roster"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger, err := logging.New(cfg.Production())
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	provider, err := b.Provider(ctx)
	if err != nil {
		return err
	}
	gate := auth.NewGate(provider, b.Store, auth.NewFeed(), auth.GateConfig{
		AdminEmail: cfg.AdminEmail,
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		TTL:        cfg.AccessTTL,
	})
	loc := cfg.Location()

	cache := roster.NewCache(b.Store, cfg.RosterDebounce, logger.Named("roster"))
	cache.OnDiscard = metrics.RosterDiscards.Inc
	defer cache.Close()

	att := attendance.NewService(b.Store, b.Queue, loc, logger.Named("attendance"))
	att.OnChange(cache.Invalidate)

	dir := directory.NewService(b.Store, provider, logger.Named("directory"))
	dir.OnChange(cache.Invalidate)

	batches := artwork.NewBatches(cfg.BatchTTL)
	go batches.Janitor(ctx, time.Minute)
	marker := artwork.NewWatermarker(&artwork.FileMark{Path: cfg.WatermarkPath})
	arts := artwork.NewService(batches, marker, artwork.NewUploader(b.Blobs(), b.Store, logger.Named("upload")), logger.Named("artwork"))
	arts.OnChange(cache.Invalidate)

	// Without redis nobody else drains the queue.
	if cfg.QueueBackend != "redis" {
		go repairLoop(ctx, b, logger.Named("repair"))
	}

	health := make(map[string]httpapi.HealthCheck, len(b.Checks))
	for name, check := range b.Checks {
		health[name] = check
	}
	srv, r := httpapi.New(httpapi.Deps{
		Store:      b.Store,
		Gate:       gate,
		Attendance: att,
		Directory:  dir,
		Artworks:   arts,
		Roster:     cache,
		Limiter:    b.Limiter(),
		Health:     health,
		Location:   loc,
		Log:        logger.Named("http"),
		SigningKey: cfg.JWTSigningKey,
		Issuer:     cfg.JWTIssuer,
	})
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", httpSrv.Addr), zap.String("store", cfg.StoreBackend), zap.String("auth", cfg.AuthBackend))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}

func repairLoop(ctx context.Context, b *backend.Backends, logger *zap.Logger) {
	messages, err := b.Queue.Consume(ctx)
	if err != nil {
		logger.Error("queue consume init failed", zap.Error(err))
		return
	}
	rep := attendance.NewRepairer(b.Store, b.Queue, logger)
	for msg := range messages {
		if err := rep.Handle(ctx, msg); err != nil {
			logger.Warn("repair message failed", zap.String("type", msg.Type), zap.Error(err))
		}
	}
}
