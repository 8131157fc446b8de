package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/platform/logger"
	"github.com/phrazzld/copyblocks/internal/queue"
	"github.com/phrazzld/copyblocks/internal/store"
)

// Outcome is what ProcessQueuedPage did with an entry.
type Outcome string

// Possible outcomes of processing a queued page
const (
	OutcomeSkipped     Outcome = "skipped"
	OutcomeRescheduled Outcome = "rescheduled"
	OutcomeCompleted   Outcome = "completed"
	OutcomeFailed      Outcome = "failed"
)

// maxListedFailures caps how many block failures are spelled out in a queue entry's error.
const maxListedFailures = 3

// ProcessQueuedPage is the scheduler entry point for one queued page. Paused
// queues and a too-recent previous run reschedule the entry without consuming
// an attempt. A page that cannot be generated is marked failed and left
// untouched. Otherwise the page is generated by the system user and the entry
// and page are finalized from the result.
//
// The returned error reports infrastructure failures only; generation
// failures are recorded on the entry.
func (o *Orchestrator) ProcessQueuedPage(ctx context.Context, pageID uuid.UUID) (Outcome, error) {
	log := logger.FromContextOrDefault(ctx, o.logger).With("page_id", pageID)

	entry, err := o.queue.Entry(ctx, pageID)
	if err != nil {
		return "", fmt.Errorf("loading queue entry: %w", err)
	}
	if entry.Status != domain.QueuePending {
		log.DebugContext(ctx, "queue entry is not pending", "status", entry.Status)
		return OutcomeSkipped, nil
	}

	paused, err := o.queue.IsPaused(ctx)
	if err != nil {
		return "", err
	}
	if paused {
		return o.reschedule(ctx, pageID, "queue paused")
	}

	wait, err := o.rate.Wait(ctx)
	if err != nil {
		return "", err
	}
	if wait > 0 {
		return o.reschedule(ctx, pageID, "previous generation too recent")
	}

	page, err := o.pages.GetByID(ctx, pageID)
	if store.IsNotFoundError(err) {
		return o.fail(ctx, pageID, "Page not found")
	}
	if err != nil {
		return "", fmt.Errorf("loading page: %w", err)
	}
	if err := page.ReadyForGeneration(); err != nil {
		return o.fail(ctx, pageID, "Missing focus keyword")
	}

	if err := o.queue.SetStatus(ctx, pageID, domain.QueueProcessing, ""); err != nil {
		return "", err
	}

	result, err := o.GenerateAllBlocks(ctx, pageID, SystemUser)
	if err != nil {
		log.ErrorContext(ctx, "queued generation failed", "error", err)
		return o.fail(ctx, pageID, err.Error())
	}

	if err := o.finalize(ctx, page, result); err != nil {
		return "", err
	}
	if result.FullySucceeded() {
		log.InfoContext(ctx, "queued page generated")
		return OutcomeCompleted, nil
	}
	log.WarnContext(ctx, "queued page partially generated",
		"failed", len(result.FailedBlocks()),
		"total", result.TotalBlocks())
	return OutcomeFailed, nil
}

func (o *Orchestrator) reschedule(ctx context.Context, pageID uuid.UUID, reason string) (Outcome, error) {
	at, err := o.queue.Reschedule(ctx, pageID)
	if err != nil {
		return "", err
	}
	o.logger.InfoContext(ctx, "queued page rescheduled",
		"page_id", pageID,
		"reason", reason,
		"scheduled_at", at)
	return OutcomeRescheduled, nil
}

func (o *Orchestrator) fail(ctx context.Context, pageID uuid.UUID, message string) (Outcome, error) {
	if err := o.queue.SetStatus(ctx, pageID, domain.QueueFailed, message); err != nil {
		return "", err
	}
	o.logger.WarnContext(ctx, "queued page failed", "page_id", pageID, "reason", message)
	return OutcomeFailed, nil
}

// finalize stamps generation metadata on the page and closes the queue entry.
// Only a fully successful run moves the page out of draft.
func (o *Orchestrator) finalize(ctx context.Context, page *domain.Page, result domain.BulkGenerationResult) error {
	now := o.now().UTC()
	meta := domain.GenerationMeta{
		AutoGenerated:   true,
		GeneratedAt:     &now,
		BlocksGenerated: result.SuccessCount(),
		BlocksFailed:    len(result.FailedBlocks()),
	}

	status, entryStatus, message := page.Status, domain.QueueFailed, failureSummary(result)
	if result.FullySucceeded() {
		status, entryStatus, message = domain.PageStatusReady, domain.QueueCompleted, ""
	}

	apply := func(ctx context.Context, pages store.PageStore, q *queue.Queue) error {
		if err := pages.UpdateGeneration(ctx, page.ID, meta, status); err != nil {
			return fmt.Errorf("stamping generation metadata: %w", err)
		}
		return q.SetStatus(ctx, page.ID, entryStatus, message)
	}

	if o.db == nil {
		return apply(ctx, o.pages, o.queue)
	}
	return store.RunInTransaction(ctx, o.db, func(ctx context.Context, tx *sql.Tx) error {
		return apply(ctx, o.pages.WithTx(tx), o.queue.WithTx(tx))
	})
}

func failureSummary(result domain.BulkGenerationResult) string {
	failures := result.FailedBlocks()
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d blocks failed", len(failures), result.TotalBlocks())
	for i, f := range failures {
		if i == maxListedFailures {
			fmt.Fprintf(&b, "; and %d more", len(failures)-maxListedFailures)
			break
		}
		fmt.Fprintf(&b, "; %s: %s", f.Block, f.Error)
	}
	return b.String()
}
