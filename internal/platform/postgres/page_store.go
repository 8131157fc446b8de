package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/platform/logger"
	"github.com/phrazzld/copyblocks/internal/store"
)

// PostgresPageStore implements store.PageStore. Block fields, the block order
// override and generation metadata are stored as JSONB columns.
type PostgresPageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.PageStore = (*PostgresPageStore)(nil)

// NewPostgresPageStore creates a page store over a connection or transaction.
// If logger is nil, a default logger will be used.
func NewPostgresPageStore(db store.DBTX, logger *slog.Logger) *PostgresPageStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresPageStore{
		db:     db,
		logger: logger.With(slog.String("component", "page_store")),
	}
}

// WithTx implements store.PageStore.
func (s *PostgresPageStore) WithTx(tx *sql.Tx) store.PageStore {
	return &PostgresPageStore{db: tx, logger: s.logger}
}

// GetByID implements store.PageStore.
func (s *PostgresPageStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Page, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, title, focus_keyword, topic, category, status, blocks, block_order, generation, created_at, updated_at
		FROM pages
		WHERE id = $1
	`

	var (
		page                        domain.Page
		status                      string
		blocks, order, generationJS []byte
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&page.ID,
		&page.Title,
		&page.FocusKeyword,
		&page.Topic,
		&page.Category,
		&status,
		&blocks,
		&order,
		&generationJS,
		&page.CreatedAt,
		&page.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("page not found", slog.String("page_id", id.String()))
			return nil, store.ErrPageNotFound
		}
		log.Error("failed to get page", slog.String("page_id", id.String()), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get page: %w", MapError(err))
	}
	page.Status = domain.PageStatus(status)

	page.Blocks = make(map[string]domain.BlockFields)
	if err := unmarshalColumn(blocks, &page.Blocks); err != nil {
		return nil, fmt.Errorf("decoding blocks of page %s: %w", id, err)
	}
	if err := unmarshalColumn(order, &page.BlockOrder); err != nil {
		return nil, fmt.Errorf("decoding block order of page %s: %w", id, err)
	}
	if err := unmarshalColumn(generationJS, &page.Generation); err != nil {
		return nil, fmt.Errorf("decoding generation metadata of page %s: %w", id, err)
	}
	return &page, nil
}

// SaveBlockFields implements store.PageStore. Only the named block key of the
// blocks document is replaced.
func (s *PostgresPageStore) SaveBlockFields(
	ctx context.Context,
	pageID uuid.UUID,
	blockID string,
	fields domain.BlockFields,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding %s fields: %w", blockID, err)
	}

	query := `
		UPDATE pages
		SET blocks = COALESCE(blocks, '{}'::jsonb) || jsonb_build_object($2::text, $3::jsonb),
		    updated_at = $4
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, pageID, blockID, payload, time.Now().UTC())
	if err != nil {
		log.Error("failed to save block fields",
			slog.String("page_id", pageID.String()),
			slog.String("block_type", blockID),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to save block fields: %w", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrPageNotFound)
}

// UpdateGeneration implements store.PageStore.
func (s *PostgresPageStore) UpdateGeneration(
	ctx context.Context,
	pageID uuid.UUID,
	meta domain.GenerationMeta,
	status domain.PageStatus,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding generation metadata: %w", err)
	}

	query := `
		UPDATE pages
		SET generation = $2, status = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, pageID, payload, string(status), time.Now().UTC())
	if err != nil {
		log.Error("failed to update generation metadata",
			slog.String("page_id", pageID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to update generation metadata: %w", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrPageNotFound); err != nil {
		return err
	}
	log.Debug("generation metadata updated",
		slog.String("page_id", pageID.String()),
		slog.String("status", string(status)),
		slog.Int("blocks_generated", meta.BlocksGenerated),
		slog.Int("blocks_failed", meta.BlocksFailed))
	return nil
}

func unmarshalColumn(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
