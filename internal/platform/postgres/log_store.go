package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/platform/logger"
	"github.com/phrazzld/copyblocks/internal/store"
)

// PostgresLogStore implements store.LogStore on the append-only generation_log table.
type PostgresLogStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.LogStore = (*PostgresLogStore)(nil)

// NewPostgresLogStore creates a log store. If logger is nil, a default logger will be used.
func NewPostgresLogStore(db store.DBTX, logger *slog.Logger) *PostgresLogStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresLogStore{
		db:     db,
		logger: logger.With(slog.String("component", "log_store")),
	}
}

// Insert implements store.LogStore.
func (s *PostgresLogStore) Insert(ctx context.Context, row *domain.GenerationLogRow) (int64, error) {
	query := `
		INSERT INTO generation_log (
			page_id, block_type, prompt_tokens, completion_tokens, total_tokens,
			cost, model, status, error_message, user_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		row.PageID,
		row.BlockType,
		row.PromptTokens,
		row.CompletionTokens,
		row.TotalTokens,
		row.Cost,
		row.Model,
		string(row.Status),
		row.ErrorMessage,
		row.UserID,
		row.CreatedAt,
	).Scan(&id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to insert generation log row",
			slog.String("page_id", row.PageID.String()),
			slog.String("block_type", row.BlockType),
			slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to insert generation log row: %w", MapError(err))
	}
	return id, nil
}

// SumCost implements store.LogStore.
func (s *PostgresLogStore) SumCost(ctx context.Context, since time.Time, status domain.GenerationStatus) (float64, error) {
	query := `
		SELECT COALESCE(SUM(cost), 0)
		FROM generation_log
		WHERE status = $1 AND created_at >= $2
	`
	var total float64
	if err := s.db.QueryRowContext(ctx, query, string(status), since).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum generation cost: %w", MapError(err))
	}
	return total, nil
}

// DeleteBefore implements store.LogStore.
func (s *PostgresLogStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM generation_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete generation log rows: %w", MapError(err))
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}
