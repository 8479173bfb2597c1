// FileDepot server
//
// Features:
// - Token sessions backed by an expiring key-value cache
// - Per-user file hierarchy with public/private visibility
// - Base64 upload with async thumbnail generation
// - Multi-backend content storage (local, S3)
// - Prometheus metrics & structured logging (zap)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/filedepot/filedepot/internal/api"
	"github.com/filedepot/filedepot/internal/cache/badgercache"
	"github.com/filedepot/filedepot/internal/config"
	"github.com/filedepot/filedepot/internal/hierarchy"
	"github.com/filedepot/filedepot/internal/logging"
	"github.com/filedepot/filedepot/internal/metadata/postgres"
	"github.com/filedepot/filedepot/internal/metrics"
	"github.com/filedepot/filedepot/internal/retrieve"
	"github.com/filedepot/filedepot/internal/session"
	"github.com/filedepot/filedepot/internal/storage"
	"github.com/filedepot/filedepot/internal/thumbs"
	"github.com/filedepot/filedepot/internal/upload"
	"github.com/filedepot/filedepot/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("FileDepot server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logging.Info("connecting to PostgreSQL...")
	metaStore, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal("database connection failed", zap.Error(err))
	}
	defer metaStore.Close()

	sessionCache, err := badgercache.New(badgercache.Config{Path: cfg.SessionDBPath})
	if err != nil {
		logging.Fatal("session cache init failed", zap.Error(err))
	}
	defer sessionCache.Close()

	backend, err := storage.NewBackendFromConfig(ctx, cfg)
	if err != nil {
		logging.Fatal("storage backend init failed", zap.Error(err))
	}
	defer backend.Close()
	logging.Info("storage backend initialized", zap.String("type", backend.Type()))

	processor := thumbs.NewProcessor(metaStore, backend, cfg.ThumbnailWorkers)
	processor.Start(ctx)
	defer processor.Stop()
	logging.Info("thumbnail processor started", zap.Int("workers", cfg.ThumbnailWorkers))

	sessions := session.New(sessionCache, metaStore, time.Duration(cfg.SessionTTLSec)*time.Second)
	h := hierarchy.New(metaStore)

	srv := api.NewServer(
		metaStore, sessionCache, sessions,
		users.New(metaStore),
		h,
		upload.New(metaStore, h, backend, processor, cfg.MaxUploadSize),
		retrieve.New(metaStore, backend),
	)

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		metricsServer.Close()
	}()

	// Periodic connection pool metrics
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metaStore.UpdateConnectionMetrics()
			}
		}
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}
