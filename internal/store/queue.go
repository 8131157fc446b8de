package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/copyblocks/internal/domain"
)

// JobStore persists queue entries. Implementations must survive restarts.
type JobStore interface {
	// Insert adds an entry, replacing a completed or failed one for the same page.
	// Returns ErrQueueEntryExists if the page is pending or processing.
	Insert(ctx context.Context, entry *domain.QueueEntry) error

	// Get returns the entry for a page, or ErrQueueEntryNotFound.
	Get(ctx context.Context, pageID uuid.UUID) (*domain.QueueEntry, error)

	// List returns entries ordered by scheduled time. An empty status returns all entries.
	List(ctx context.Context, status domain.QueueStatus) ([]domain.QueueEntry, error)

	// UpdateStatus sets the status and error text. Returns ErrQueueEntryNotFound if absent.
	UpdateStatus(ctx context.Context, pageID uuid.UUID, status domain.QueueStatus, errMsg string) error

	// Reschedule sets a new scheduled time and resets the entry to pending.
	// Returns ErrQueueEntryNotFound if absent.
	Reschedule(ctx context.Context, pageID uuid.UUID, at time.Time) error

	// Delete removes the entry for a page and reports whether one existed.
	Delete(ctx context.Context, pageID uuid.UUID) (bool, error)

	// DeleteAll removes every entry.
	DeleteAll(ctx context.Context) error

	// Due returns up to limit pending entries scheduled at or before now, oldest first.
	Due(ctx context.Context, now time.Time, limit int) ([]domain.QueueEntry, error)

	// Stale returns processing entries last updated before cutoff.
	Stale(ctx context.Context, cutoff time.Time) ([]domain.QueueEntry, error)

	// LastScheduled returns the latest scheduled time among pending entries, or nil when none are pending.
	LastScheduled(ctx context.Context) (*time.Time, error)

	// WithTx returns a JobStore bound to the transaction.
	WithTx(tx *sql.Tx) JobStore
}
