// Package main runs the copyblocks generation worker: it applies database
// migrations on request and otherwise drives the generation queue until it
// receives SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/copyblocks/internal/config"
	"github.com/phrazzld/copyblocks/internal/platform/logger"
	"github.com/phrazzld/copyblocks/internal/platform/postgres"
)

func main() {
	migrate := flag.String("migrate", "", "run a migration command (up, down, status, version) and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *migrate); err != nil {
		log.Fatalf("copyblocks: %v", err)
	}
}

func run(ctx context.Context, migrate string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	l.Info("configuration loaded",
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.String("llm_model", cfg.LLM.ModelName),
		slog.Bool("budget_tracking", cfg.Budget.TrackingEnabled))

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	l.Info("database connection established")

	if migrate != "" {
		defer func() { _ = db.Close() }()
		return postgres.Migrate(ctx, db, migrate, l)
	}

	app, err := newApplication(ctx, cfg, l, db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}
