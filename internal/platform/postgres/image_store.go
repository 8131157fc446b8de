package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/store"
)

// PostgresImageStore implements store.ImageStore. Tags are a JSONB array, so
// an all-tags match is a containment query.
type PostgresImageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.ImageStore = (*PostgresImageStore)(nil)

// NewPostgresImageStore creates an image store. If logger is nil, a default logger will be used.
func NewPostgresImageStore(db store.DBTX, logger *slog.Logger) *PostgresImageStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresImageStore{
		db:     db,
		logger: logger.With(slog.String("component", "image_store")),
	}
}

// FindByTags implements store.ImageStore.
func (s *PostgresImageStore) FindByTags(ctx context.Context, tags []string) ([]domain.ImageRecord, error) {
	if tags == nil {
		tags = []string{}
	}
	want, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encoding tags: %w", err)
	}

	query := `
		SELECT attachment_id, tags, is_default, in_library
		FROM images
		WHERE in_library AND tags @> $1::jsonb
		ORDER BY attachment_id
	`
	rows, err := s.db.QueryContext(ctx, query, want)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to query images by tags", "tags", tags, "error", err)
		return nil, fmt.Errorf("failed to query images: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var images []domain.ImageRecord
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}
	return images, nil
}

// DefaultImage implements store.ImageStore.
func (s *PostgresImageStore) DefaultImage(ctx context.Context) (*domain.ImageRecord, error) {
	query := `
		SELECT attachment_id, tags, is_default, in_library
		FROM images
		WHERE is_default
		LIMIT 1
	`
	img, err := scanImage(s.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default image: %w", MapError(err))
	}
	return img, nil
}

func scanImage(row rowScanner) (*domain.ImageRecord, error) {
	var (
		img  domain.ImageRecord
		tags []byte
	)
	if err := row.Scan(&img.AttachmentID, &tags, &img.IsDefault, &img.InLibrary); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(tags, &img.Tags); err != nil {
		return nil, fmt.Errorf("decoding image tags: %w", err)
	}
	return &img, nil
}
