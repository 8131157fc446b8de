package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/phrazzld/copyblocks/internal/blocks"
	"github.com/phrazzld/copyblocks/internal/config"
	"github.com/phrazzld/copyblocks/internal/content"
	"github.com/phrazzld/copyblocks/internal/gate"
	"github.com/phrazzld/copyblocks/internal/generation"
	"github.com/phrazzld/copyblocks/internal/media"
	"github.com/phrazzld/copyblocks/internal/orchestrator"
	"github.com/phrazzld/copyblocks/internal/platform/gemini"
	"github.com/phrazzld/copyblocks/internal/platform/openai"
	"github.com/phrazzld/copyblocks/internal/platform/postgres"
	"github.com/phrazzld/copyblocks/internal/queue"
	"github.com/phrazzld/copyblocks/internal/spend"
	"github.com/phrazzld/copyblocks/internal/task"
)

// application holds the long-lived collaborators so they can be shut down together.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	catalog      *blocks.Catalog
	reloader     *blocks.Reloader
	orchestrator *orchestrator.Orchestrator
	scheduler    *task.Scheduler
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// newGenerationClient selects the provider named in the LLM configuration.
func newGenerationClient(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (generation.Client, error) {
	switch cfg.Provider {
	case "openai":
		c, err := openai.NewClient(logger, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "gemini":
		c, err := gemini.NewClient(ctx, logger, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// newCatalog loads block definitions from the configured directory, falling
// back to the built-in set. The reloader is nil when no directory is set.
func newCatalog(cfg config.CatalogConfig, logger *slog.Logger) (*blocks.Catalog, *blocks.Reloader, error) {
	catalog, err := blocks.NewCatalog(blocks.Defaults())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build default catalog: %w", err)
	}
	if cfg.Directory == "" {
		return catalog, nil, nil
	}

	reloader, err := blocks.NewReloader(catalog, cfg.Directory, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load block definitions from %s: %w", cfg.Directory, err)
	}
	return catalog, reloader, nil
}

func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{config: cfg, logger: logger, db: db}

	var err error
	app.catalog, app.reloader, err = newCatalog(cfg.Catalog, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("block catalog ready", "blocks", app.catalog.Len())

	client, err := newGenerationClient(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generation client: %w", err)
	}

	pages := postgres.NewPostgresPageStore(db, logger)
	jobs := postgres.NewPostgresJobStore(db, logger)
	logs := postgres.NewPostgresLogStore(db, logger)
	images := postgres.NewPostgresImageStore(db, logger)
	kv := postgres.NewPostgresStateStore(db, logger)

	ledger, err := spend.NewLedger(logs, cfg.Budget, spend.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create spend ledger: %w", err)
	}

	q, err := queue.New(jobs, kv,
		queue.WithPacingInterval(time.Duration(cfg.Queue.PacingIntervalSeconds)*time.Second),
		queue.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create generation queue: %w", err)
	}

	gen := cfg.Generation
	concurrency, err := gate.NewConcurrencyGate(kv, gen.MaxConcurrentPerUser,
		time.Duration(gen.ConcurrencyTTLMinutes)*time.Minute, time.Now)
	if err != nil {
		return nil, fmt.Errorf("failed to create concurrency gate: %w", err)
	}
	rate, err := gate.NewRateGate(kv, time.Duration(gen.MinIntervalSeconds)*time.Second, time.Now)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate gate: %w", err)
	}
	progress, err := gate.NewProgressTracker(kv, time.Duration(gen.ProgressTTLMinutes)*time.Minute, time.Now)
	if err != nil {
		return nil, fmt.Errorf("failed to create progress tracker: %w", err)
	}

	matcherOpts := []media.Option{media.WithLogger(logger)}
	if cfg.Media.DefaultImageID != "" {
		id, err := uuid.Parse(cfg.Media.DefaultImageID)
		if err != nil {
			return nil, fmt.Errorf("invalid default image id: %w", err)
		}
		matcherOpts = append(matcherOpts, media.WithDefaultImage(id))
	}
	matcher, err := media.NewMatcher(images, matcherOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create image matcher: %w", err)
	}

	app.orchestrator, err = orchestrator.New(orchestrator.Deps{
		Pages:       pages,
		Catalog:     app.catalog,
		Client:      client,
		Parser:      content.NewParser(),
		Ledger:      ledger,
		Queue:       q,
		Concurrency: concurrency,
		Rate:        rate,
		Progress:    progress,
		Matcher:     matcher,
		DB:          db,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	app.scheduler, err = task.NewScheduler(app.orchestrator, q, task.SchedulerConfig{
		PollInterval:    time.Duration(cfg.Queue.PollIntervalSeconds) * time.Second,
		StuckTaskAge:    time.Duration(cfg.Queue.StuckTaskAgeMinutes) * time.Minute,
		CleanupInterval: 24 * time.Hour,
		RetentionDays:   cfg.Budget.LogRetentionDays,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	app.scheduler.SetCleaner(ledger)

	logger.Info("application initialized")
	return app, nil
}

// Run starts the scheduler and the catalog watcher, then blocks until ctx is done.
func (app *application) Run(ctx context.Context) error {
	if err := app.scheduler.Start(); err != nil {
		app.cleanup()
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	var wg sync.WaitGroup
	watchCtx, cancelWatch := context.WithCancel(ctx)
	if app.reloader != nil {
		interval := time.Duration(app.config.Catalog.ReloadIntervalSeconds) * time.Second
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.reloader.Watch(watchCtx, interval)
		}()
	}

	app.logger.Info("generation worker running")
	<-ctx.Done()
	app.logger.Info("shutting down")

	cancelWatch()
	wg.Wait()
	app.cleanup()
	return nil
}

func (app *application) cleanup() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
