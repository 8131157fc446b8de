package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/copyblocks/internal/domain"
)

// PageStore is the page persistence the generation pipeline consumes.
// Title, topic and keyword are owned by external writers; the pipeline only
// writes block fields, generation metadata and the draft/ready status.
type PageStore interface {
	// GetByID retrieves a page with all of its block fields.
	// Returns ErrPageNotFound if the page does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Page, error)

	// SaveBlockFields overwrites the stored fields of one block.
	// Returns ErrPageNotFound if the page does not exist.
	SaveBlockFields(ctx context.Context, pageID uuid.UUID, blockID string, fields domain.BlockFields) error

	// UpdateGeneration stamps generation metadata and sets the page status.
	// Returns ErrPageNotFound if the page does not exist.
	UpdateGeneration(ctx context.Context, pageID uuid.UUID, meta domain.GenerationMeta, status domain.PageStatus) error

	// WithTx returns a PageStore bound to the transaction.
	WithTx(tx *sql.Tx) PageStore
}

// ImageStore is the read-only media library view used for image matching.
type ImageStore interface {
	// FindByTags returns in-library images carrying every tag in tags.
	FindByTags(ctx context.Context, tags []string) ([]domain.ImageRecord, error)

	// DefaultImage returns the image flagged as default, or ErrNotFound.
	DefaultImage(ctx context.Context) (*domain.ImageRecord, error)
}
