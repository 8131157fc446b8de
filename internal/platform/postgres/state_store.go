package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/copyblocks/internal/store"
)

// PostgresStateStore implements store.StateStore on the kv_state table.
// Expired rows are ignored on read and overwritten on write.
type PostgresStateStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

var _ store.StateStore = (*PostgresStateStore)(nil)

// NewPostgresStateStore creates a state store. If logger is nil, a default logger will be used.
func NewPostgresStateStore(db store.DBTX, logger *slog.Logger) *PostgresStateStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStateStore{
		db:     db,
		logger: logger.With(slog.String("component", "state_store")),
		now:    time.Now,
	}
}

// Get implements store.StateStore.
func (s *PostgresStateStore) Get(ctx context.Context, key string) (string, bool, error) {
	query := `
		SELECT value
		FROM kv_state
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)
	`
	var value string
	err := s.db.QueryRowContext(ctx, query, key, s.now().UTC()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read state", "key", key, "error", err)
		return "", false, fmt.Errorf("failed to read state %q: %w", key, MapError(err))
	}
	return value, true, nil
}

// Set implements store.StateStore.
func (s *PostgresStateStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var expires sql.NullTime
	if ttl > 0 {
		expires = sql.NullTime{Time: s.now().UTC().Add(ttl), Valid: true}
	}

	query := `
		INSERT INTO kv_state (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, expires); err != nil {
		s.logger.ErrorContext(ctx, "failed to write state", "key", key, "error", err)
		return fmt.Errorf("failed to write state %q: %w", key, MapError(err))
	}
	return nil
}

// Delete implements store.StateStore.
func (s *PostgresStateStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_state WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete state %q: %w", key, MapError(err))
	}
	return nil
}

