// Package main is the entry point for the stylelab HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/app"
	"github.com/fleveque/stylelab/internal/config"
	"github.com/fleveque/stylelab/internal/logging"
	"github.com/fleveque/stylelab/internal/server"
)

func main() {
	// run() keeps deferred cleanup working; os.Exit skips defers.
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env file is optional; real env vars still win over it.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("STYLELAB_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	// Sync commonly fails on stdout/stderr; nothing to do about it.
	defer func() { _ = logger.Sync() }()

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		return fmt.Errorf("wiring components: %w", err)
	}
	defer a.Close()

	srv := server.New(cfg, server.Deps{
		Registry:       a.Registry,
		Studio:         a.Studio,
		Jobs:           a.Jobs,
		Analytics:      a.Analytics,
		Engine:         a.Engine,
		Cache:          a.Cache,
		GenerationRepo: a.GenerationRepo,
		AnalyticsRepo:  a.AnalyticsRepo,
		ScoringRepo:    a.ScoringRepo,
		ScorerNames:    a.Scorer.ProviderNames(),
		ImageDir:       a.ImageDir,
	}, logger)

	// SIGINT (Ctrl+C) or SIGTERM (docker stop) starts a graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	// Running batches stop after their current unit.
	if err := a.Jobs.Shutdown(ctx); err != nil {
		logger.Warn("jobs did not stop in time", zap.Error(err))
	}
	return nil
}
