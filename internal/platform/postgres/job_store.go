package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/platform/logger"
	"github.com/phrazzld/copyblocks/internal/store"
)

const queueColumns = `page_id, status, scheduled_at, error_message, created_at, updated_at`

// PostgresJobStore implements store.JobStore on the generation_queue table.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.JobStore = (*PostgresJobStore)(nil)

// NewPostgresJobStore creates a job store over a connection or transaction.
// If logger is nil, a default logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// WithTx implements store.JobStore.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{db: tx, logger: s.logger}
}

// Insert implements store.JobStore. A completed or failed entry for the same
// page is replaced; a pending or processing one yields ErrQueueEntryExists.
func (s *PostgresJobStore) Insert(ctx context.Context, entry *domain.QueueEntry) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO generation_queue (` + queueColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (page_id) DO UPDATE SET
			status = EXCLUDED.status,
			scheduled_at = EXCLUDED.scheduled_at,
			error_message = EXCLUDED.error_message,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
		WHERE generation_queue.status IN ('completed', 'failed')
	`
	result, err := s.db.ExecContext(ctx, query,
		entry.PageID,
		string(entry.Status),
		entry.ScheduledAt,
		entry.Error,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", store.ErrQueueEntryExists, err)
		}
		log.Error("failed to insert queue entry",
			slog.String("page_id", entry.PageID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to insert queue entry: %w", MapError(err))
	}

	// The conflict clause skips active entries, which leaves no affected row.
	if err := CheckRowsAffected(result, store.ErrQueueEntryExists); err != nil {
		if errors.Is(err, store.ErrQueueEntryExists) {
			return err
		}
		return fmt.Errorf("failed to insert queue entry: %w", err)
	}
	return nil
}

// Get implements store.JobStore.
func (s *PostgresJobStore) Get(ctx context.Context, pageID uuid.UUID) (*domain.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM generation_queue WHERE page_id = $1`

	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, pageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrQueueEntryNotFound
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get queue entry",
			slog.String("page_id", pageID.String()),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get queue entry: %w", MapError(err))
	}
	return entry, nil
}

// List implements store.JobStore.
func (s *PostgresJobStore) List(ctx context.Context, status domain.QueueStatus) ([]domain.QueueEntry, error) {
	if status == "" {
		return s.query(ctx, `SELECT `+queueColumns+` FROM generation_queue ORDER BY scheduled_at, created_at`)
	}
	return s.query(ctx,
		`SELECT `+queueColumns+` FROM generation_queue WHERE status = $1 ORDER BY scheduled_at, created_at`,
		string(status))
}

// UpdateStatus implements store.JobStore.
func (s *PostgresJobStore) UpdateStatus(
	ctx context.Context,
	pageID uuid.UUID,
	status domain.QueueStatus,
	errMsg string,
) error {
	query := `
		UPDATE generation_queue
		SET status = $2, error_message = $3, updated_at = $4
		WHERE page_id = $1
	`
	return s.exec(ctx, "update queue status", query, pageID, string(status), errMsg, time.Now().UTC())
}

// Reschedule implements store.JobStore.
func (s *PostgresJobStore) Reschedule(ctx context.Context, pageID uuid.UUID, at time.Time) error {
	query := `
		UPDATE generation_queue
		SET status = 'pending', scheduled_at = $2, updated_at = $3
		WHERE page_id = $1
	`
	return s.exec(ctx, "reschedule queue entry", query, pageID, at, time.Now().UTC())
}

// Delete implements store.JobStore.
func (s *PostgresJobStore) Delete(ctx context.Context, pageID uuid.UUID) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM generation_queue WHERE page_id = $1`, pageID)
	if err != nil {
		return false, fmt.Errorf("failed to delete queue entry: %w", MapError(err))
	}
	if err := CheckRowsAffected(result, store.ErrQueueEntryNotFound); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteAll implements store.JobStore.
func (s *PostgresJobStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM generation_queue`); err != nil {
		return fmt.Errorf("failed to clear queue: %w", MapError(err))
	}
	return nil
}

// Due implements store.JobStore.
func (s *PostgresJobStore) Due(ctx context.Context, now time.Time, limit int) ([]domain.QueueEntry, error) {
	query := `
		SELECT ` + queueColumns + `
		FROM generation_queue
		WHERE status = 'pending' AND scheduled_at <= $1
		ORDER BY scheduled_at, created_at
		LIMIT $2
	`
	return s.query(ctx, query, now, limit)
}

// Stale implements store.JobStore.
func (s *PostgresJobStore) Stale(ctx context.Context, cutoff time.Time) ([]domain.QueueEntry, error) {
	query := `
		SELECT ` + queueColumns + `
		FROM generation_queue
		WHERE status = 'processing' AND updated_at < $1
		ORDER BY updated_at
	`
	return s.query(ctx, query, cutoff)
}

// LastScheduled implements store.JobStore.
func (s *PostgresJobStore) LastScheduled(ctx context.Context) (*time.Time, error) {
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(scheduled_at) FROM generation_queue WHERE status = 'pending'`).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("failed to read last scheduled time: %w", MapError(err))
	}
	if !last.Valid {
		return nil, nil
	}
	at := last.Time.UTC()
	return &at, nil
}

func (s *PostgresJobStore) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to "+op, slog.String("error", err.Error()))
		return fmt.Errorf("failed to %s: %w", op, MapError(err))
	}
	return CheckRowsAffected(result, store.ErrQueueEntryNotFound)
}

func (s *PostgresJobStore) query(ctx context.Context, query string, args ...any) ([]domain.QueueEntry, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query queue entries", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query queue entries: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.QueueEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			log.Error("failed to scan queue entry", slog.String("error", err.Error()))
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*domain.QueueEntry, error) {
	var (
		entry  domain.QueueEntry
		status string
	)
	if err := row.Scan(
		&entry.PageID,
		&status,
		&entry.ScheduledAt,
		&entry.Error,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		return nil, err
	}
	entry.Status = domain.QueueStatus(status)
	return &entry, nil
}
