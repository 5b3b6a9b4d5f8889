// Command notification serves the user notification API and ingests
// broadcast notifications from Kafka.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hoken-app/insurance-portal/internal/notification/server"
	"github.com/hoken-app/insurance-portal/internal/platform/config"
	"github.com/hoken-app/insurance-portal/internal/platform/logger"
	"github.com/hoken-app/insurance-portal/internal/platform/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("notification")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(cfg.Logger).With("service", cfg.Service.Name, "version", cfg.Version)

	tel, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bounds the Mongo and Redis connects. The schema and indexes come from cmd/services/migration.
	initCtx, initCancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout+5*time.Second)
	srv, err := server.New(initCtx,
		server.WithConfig(cfg),
		server.WithLogger(log),
		server.WithTelemetry(tel),
	)
	initCancel()
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err = <-errCh:
		if err != nil {
			log.Error("HTTP server stopped", "error", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Error("Shutdown error", "error", serr)
	}
	if terr := tel.Close(shutdownCtx); terr != nil {
		log.Error("Telemetry shutdown error", "error", terr)
	}
	_ = log.Sync()

	return err
}
