package store

import (
	"context"
	"time"

	"github.com/phrazzld/copyblocks/internal/domain"
)

// LogStore is the append-only generation log.
type LogStore interface {
	// Insert appends a row and returns its id. Rows are never updated.
	Insert(ctx context.Context, row *domain.GenerationLogRow) (int64, error)

	// SumCost totals the cost of rows with the given status created at or after since.
	SumCost(ctx context.Context, since time.Time, status domain.GenerationStatus) (float64, error)

	// DeleteBefore removes rows created strictly before cutoff and returns how many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
