// Command janitor prunes the shared Postgres dedupe table for deployments
// that run several relays with DEDUPE_SWEEP_INTERVAL=0.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Maycon01282/bot2/internal/application/factories/infrastructure"
	"github.com/Maycon01282/bot2/internal/config"
	"github.com/Maycon01282/bot2/internal/infrastructure/postgres"
	"github.com/Maycon01282/bot2/internal/worker"
)

const defaultInterval = 5 * time.Minute

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg, logger)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	repo := postgres.NewInboxRepository(pgPool, cfg.Dedupe.TTL)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	interval := cfg.Dedupe.SweepInterval
	if interval <= 0 {
		interval = defaultInterval
	}

	j := worker.NewJanitor(repo, cfg.Dedupe.TTL, interval, logger)
	j.Sweep(ctx)
	if err := j.Run(ctx); err != nil {
		logger.Error("janitor stopped with error", "error", err)
	}

	logger.Info("janitor exited")
}
