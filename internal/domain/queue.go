package domain

import (
	"time"

	"github.com/google/uuid"
)

// QueueStatus is the lifecycle state of a queued page generation job.
type QueueStatus string

// Possible queue entry status values
const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s QueueStatus) Valid() bool {
	switch s {
	case QueuePending, QueueProcessing, QueueCompleted, QueueFailed:
		return true
	}
	return false
}

// Active reports whether the entry still occupies the page's queue slot.
func (s QueueStatus) Active() bool {
	return s == QueuePending || s == QueueProcessing
}

// QueueEntry is a deferred "generate this page" job. There is at most one
// pending or processing entry per page.
type QueueEntry struct {
	PageID      uuid.UUID   `json:"page_id"`
	Status      QueueStatus `json:"status"`
	ScheduledAt time.Time   `json:"scheduled_at"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
