package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/daniacca/particlelife/internal/logging"
	"github.com/daniacca/particlelife/internal/plife"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := loadServerConfig()
	logger := logging.New(cfg.LogLevel)

	srv := NewServer(logger)
	srv.SetSnapshotDir(cfg.SnapshotDir)
	srv.SetSnapshotEverySteps(cfg.SnapshotEverySteps)
	srv.SetNotifyEverySteps(cfg.NotifyEverySteps)
	srv.SetWorkers(cfg.Workers)
	srv.SetMaxParticles(cfg.MaxParticles)

	if cfg.ConfigFile != "" {
		if err := srv.applyInitialConfig(cfg.ConfigFile, plife.WorldID(cfg.DefaultWorldID)); err != nil {
			logger.Fatalf("Failed to load world config: file=%s error=%v", cfg.ConfigFile, err)
		}
		logger.Infof("World loaded from config: world_id=%s file=%s", cfg.DefaultWorldID, cfg.ConfigFile)
	}

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.routes(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Infof("plife-server listening on %s (log level: %s)", cfg.Addr, logger.Level())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown failed: %v", err)
	}
	if err := srv.Close(); err != nil {
		logger.Errorf("Notifier shutdown failed: %v", err)
	}
}
