package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/redact"
	"github.com/phrazzld/copyblocks/internal/store"
)

const (
	pausedKey       = "queue_paused"
	maxEntryMessage = 500
)

// Queue errors
var (
	ErrNilJobStore   = errors.New("queue: job store cannot be nil")
	ErrNilStateStore = errors.New("queue: state store cannot be nil")
	ErrInvalidStatus = errors.New("queue: invalid status")
)

// Stats counts entries by status.
type Stats struct {
	Pending    int  `json:"pending"`
	Processing int  `json:"processing"`
	Completed  int  `json:"completed"`
	Failed     int  `json:"failed"`
	Total      int  `json:"total"`
	Paused     bool `json:"paused"`
}

// Option customises a Queue.
type Option func(*Queue)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// WithPacingInterval sets the spacing between jointly queued pages.
func WithPacingInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// Queue is the durable, paced worklist of page generation jobs.
type Queue struct {
	jobs     store.JobStore
	state    store.StateStore
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a Queue over a job store. The paused flag lives in the state store.
func New(jobs store.JobStore, stateStore store.StateStore, opts ...Option) (*Queue, error) {
	if jobs == nil {
		return nil, ErrNilJobStore
	}
	if stateStore == nil {
		return nil, ErrNilStateStore
	}
	q := &Queue{
		jobs:     jobs,
		state:    stateStore,
		interval: DefaultPacingInterval,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With("component", "generation_queue")
	return q, nil
}

// WithTx returns a copy of the queue whose entry writes join the transaction.
// The pause flag is not transactional.
func (q *Queue) WithTx(tx *sql.Tx) *Queue {
	c := *q
	c.jobs = q.jobs.WithTx(tx)
	return &c
}

// Interval returns the pacing interval.
func (q *Queue) Interval() time.Duration {
	return q.interval
}

// Enqueue schedules a page at now plus its paced offset. It returns false and
// leaves the queue unchanged when the page is already pending or processing.
// A completed or failed entry for the page is replaced.
func (q *Queue) Enqueue(ctx context.Context, pageID uuid.UUID, index int) (bool, error) {
	now := q.now().UTC()
	entry := &domain.QueueEntry{
		PageID:      pageID,
		Status:      domain.QueuePending,
		ScheduledAt: now.Add(PaceSchedule(index, q.interval)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := q.jobs.Insert(ctx, entry)
	if store.IsDuplicateError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("enqueueing page %s: %w", pageID, err)
	}

	q.logger.InfoContext(ctx, "page queued for generation",
		"page_id", pageID,
		"index", index,
		"scheduled_at", entry.ScheduledAt)
	return true, nil
}

// EnqueueBatch queues pages in order, pacing each accepted page after the previous one.
// Pages already queued are skipped and do not consume a slot. It returns how many were added.
func (q *Queue) EnqueueBatch(ctx context.Context, pageIDs []uuid.UUID) (int, error) {
	added := 0
	for _, id := range pageIDs {
		ok, err := q.Enqueue(ctx, id, added)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// Status lists entries, optionally filtered by status (empty for all).
func (q *Queue) Status(ctx context.Context, status domain.QueueStatus) ([]domain.QueueEntry, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	entries, err := q.jobs.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("listing queue: %w", err)
	}
	return entries, nil
}

// Entry returns the entry for a page.
func (q *Queue) Entry(ctx context.Context, pageID uuid.UUID) (*domain.QueueEntry, error) {
	return q.jobs.Get(ctx, pageID)
}

// SetStatus updates an entry's status. The message is redacted and truncated before it is stored.
func (q *Queue) SetStatus(ctx context.Context, pageID uuid.UUID, status domain.QueueStatus, message string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	if message != "" {
		message = redact.Truncate(redact.String(message), maxEntryMessage)
	}
	if err := q.jobs.UpdateStatus(ctx, pageID, status, message); err != nil {
		return fmt.Errorf("setting queue status of %s: %w", pageID, err)
	}
	return nil
}

// Remove deletes a page's entry. Removing an absent page returns false, not an error.
func (q *Queue) Remove(ctx context.Context, pageID uuid.UUID) (bool, error) {
	removed, err := q.jobs.Delete(ctx, pageID)
	if err != nil {
		return false, fmt.Errorf("removing page %s from queue: %w", pageID, err)
	}
	return removed, nil
}

// Clear removes every entry.
func (q *Queue) Clear(ctx context.Context) error {
	if err := q.jobs.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clearing queue: %w", err)
	}
	q.logger.InfoContext(ctx, "generation queue cleared")
	return nil
}

// Pause stops queued pages from being generated until Resume.
func (q *Queue) Pause(ctx context.Context) error {
	if err := q.state.Set(ctx, pausedKey, "1", 0); err != nil {
		return fmt.Errorf("pausing queue: %w", err)
	}
	q.logger.InfoContext(ctx, "generation queue paused")
	return nil
}

// Resume lifts a pause.
func (q *Queue) Resume(ctx context.Context) error {
	if err := q.state.Delete(ctx, pausedKey); err != nil {
		return fmt.Errorf("resuming queue: %w", err)
	}
	q.logger.InfoContext(ctx, "generation queue resumed")
	return nil
}

// IsPaused reports whether the queue is paused.
func (q *Queue) IsPaused(ctx context.Context) (bool, error) {
	_, paused, err := q.state.Get(ctx, pausedKey)
	if err != nil {
		return false, fmt.Errorf("reading queue pause flag: %w", err)
	}
	return paused, nil
}

// Stats counts entries by status.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	entries, err := q.jobs.List(ctx, "")
	if err != nil {
		return Stats{}, fmt.Errorf("listing queue: %w", err)
	}
	paused, err := q.IsPaused(ctx)
	if err != nil {
		return Stats{}, err
	}

	s := Stats{Total: len(entries), Paused: paused}
	for _, e := range entries {
		switch e.Status {
		case domain.QueuePending:
			s.Pending++
		case domain.QueueProcessing:
			s.Processing++
		case domain.QueueCompleted:
			s.Completed++
		case domain.QueueFailed:
			s.Failed++
		}
	}
	return s, nil
}

// EstimatedCompletion returns the scheduled time of the last pending entry, or nil.
func (q *Queue) EstimatedCompletion(ctx context.Context) (*time.Time, error) {
	last, err := q.jobs.LastScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading last scheduled entry: %w", err)
	}
	return last, nil
}

// Reschedule moves an entry one pacing interval into the future and keeps it pending.
func (q *Queue) Reschedule(ctx context.Context, pageID uuid.UUID) (time.Time, error) {
	at := q.now().UTC().Add(q.interval)
	if err := q.jobs.Reschedule(ctx, pageID, at); err != nil {
		return time.Time{}, fmt.Errorf("rescheduling page %s: %w", pageID, err)
	}
	q.logger.DebugContext(ctx, "queued page rescheduled",
		"page_id", pageID,
		"scheduled_at", at)
	return at, nil
}

// Due returns up to limit pending entries whose scheduled time has passed.
func (q *Queue) Due(ctx context.Context, limit int) ([]domain.QueueEntry, error) {
	entries, err := q.jobs.Due(ctx, q.now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("listing due entries: %w", err)
	}
	return entries, nil
}

// Recover resets entries stuck in processing for longer than olderThan back to
// pending. It returns how many were reset.
func (q *Queue) Recover(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := q.jobs.Stale(ctx, q.now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("listing stuck entries: %w", err)
	}

	reset := 0
	for _, e := range stale {
		if err := q.jobs.UpdateStatus(ctx, e.PageID, domain.QueuePending, "Reset after being stuck in processing state"); err != nil {
			q.logger.ErrorContext(ctx, "failed to reset stuck queue entry",
				"page_id", e.PageID,
				"error", err)
			continue
		}
		reset++
	}

	if reset > 0 {
		q.logger.InfoContext(ctx, "recovered stuck queue entries", "count", reset)
	}
	return reset, nil
}
