package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/orchestrator"
	"github.com/phrazzld/copyblocks/internal/platform/logger"
)

// Processor generates one queued page.
type Processor interface {
	ProcessQueuedPage(ctx context.Context, pageID uuid.UUID) (orchestrator.Outcome, error)
}

// Queue is the part of the generation queue the scheduler drives.
type Queue interface {
	Due(ctx context.Context, limit int) ([]domain.QueueEntry, error)
	Recover(ctx context.Context, olderThan time.Duration) (int, error)
}

// LogCleaner prunes old generation log rows.
type LogCleaner interface {
	Cleanup(ctx context.Context, days int) (int64, error)
}

// Scheduler construction errors
var (
	ErrNilProcessor = errors.New("task: processor cannot be nil")
	ErrNilQueue     = errors.New("task: queue cannot be nil")
	ErrNilLogger    = errors.New("task: logger cannot be nil")
)

// SchedulerConfig holds configuration for the scheduler
type SchedulerConfig struct {
	// PollInterval is how often the queue is checked for a due page.
	PollInterval time.Duration

	// StuckTaskAge defines how long an entry can be in processing state
	// before it's considered stuck and reset
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck entries.
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration

	// CleanupInterval is how often old log rows are pruned. Zero disables cleanup.
	CleanupInterval time.Duration

	// RetentionDays is passed to the cleaner; zero uses its configured retention.
	RetentionDays int
}

// DefaultSchedulerConfig returns a SchedulerConfig with reasonable defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		PollInterval:           time.Minute,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
		CleanupInterval:        24 * time.Hour,
	}
}

// Scheduler is the timer that feeds due queue entries to the orchestrator.
// It runs a single worker: each tick processes at most one page, so pacing
// and the global interval gate stay meaningful.
type Scheduler struct {
	processor Processor
	queue     Queue
	cleaner   LogCleaner
	config    SchedulerConfig
	logger    *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
}

// NewScheduler creates a new Scheduler
func NewScheduler(processor Processor, queue Queue, config SchedulerConfig, logger *slog.Logger) (*Scheduler, error) {
	if processor == nil {
		return nil, ErrNilProcessor
	}
	if queue == nil {
		return nil, ErrNilQueue
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	defaults := DefaultSchedulerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.StuckTaskAge <= 0 {
		config.StuckTaskAge = defaults.StuckTaskAge
	}
	if config.StuckTaskCheckInterval <= 0 {
		config.StuckTaskCheckInterval = defaults.StuckTaskCheckInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		processor:  processor,
		queue:      queue,
		config:     config,
		logger:     logger.With("component", "scheduler"),
		ctx:        ctx,
		cancelFunc: cancel,
	}, nil
}

// SetCleaner enables periodic log cleanup.
func (s *Scheduler) SetCleaner(cleaner LogCleaner) {
	s.cleaner = cleaner
}

// Start recovers entries left in processing by a previous run and starts the loops.
func (s *Scheduler) Start() error {
	var err error
	s.startOnce.Do(func() {
		if _, recoverErr := s.queue.Recover(s.ctx, s.config.StuckTaskAge); recoverErr != nil {
			err = fmt.Errorf("failed to recover stuck entries: %w", recoverErr)
			return
		}

		s.wg.Add(2)
		go s.loop(s.config.PollInterval, s.tick)
		go s.loop(s.config.StuckTaskCheckInterval, s.recover)

		if s.cleaner != nil && s.config.CleanupInterval > 0 {
			s.wg.Add(1)
			go s.loop(s.config.CleanupInterval, s.cleanup)
		}

		s.logger.Info("scheduler started",
			"poll_interval", s.config.PollInterval,
			"stuck_task_age", s.config.StuckTaskAge)
	})
	return err
}

// Stop cancels the loops and waits for an in-flight page to finish its current block.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.cancelFunc()
		s.wg.Wait()
		s.logger.Info("scheduler stopped")
	})
}

func (s *Scheduler) loop(interval time.Duration, fn func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			fn(s.ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.ErrorContext(ctx, "scheduler tick failed", "error", err)
	}
}

// RunOnce processes the earliest due page, if any, and reports whether one was found.
func (s *Scheduler) RunOnce(ctx context.Context) (bool, error) {
	due, err := s.queue.Due(ctx, 1)
	if err != nil {
		return false, fmt.Errorf("listing due pages: %w", err)
	}
	if len(due) == 0 {
		return false, nil
	}

	pageID := due[0].PageID
	ctx = logger.WithRequestID(ctx, pageID.String())
	outcome, err := s.processor.ProcessQueuedPage(ctx, pageID)
	if err != nil {
		return true, fmt.Errorf("processing page %s: %w", pageID, err)
	}
	s.logger.InfoContext(ctx, "processed queued page",
		"page_id", pageID,
		"outcome", outcome)
	return true, nil
}

func (s *Scheduler) recover(ctx context.Context) {
	if _, err := s.queue.Recover(ctx, s.config.StuckTaskAge); err != nil {
		s.logger.ErrorContext(ctx, "failed to check for stuck entries", "error", err)
	}
}

func (s *Scheduler) cleanup(ctx context.Context) {
	deleted, err := s.cleaner.Cleanup(ctx, s.config.RetentionDays)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to clean up generation log", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.InfoContext(ctx, "cleaned up generation log", "deleted", deleted)
	}
}
