package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/generation"
	"github.com/phrazzld/copyblocks/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) enqueue(t *testing.T, pageID uuid.UUID) {
	t.Helper()
	added, err := h.queue.Enqueue(context.Background(), pageID, 0)
	require.NoError(t, err)
	require.True(t, added)
}

func (h *harness) entry(t *testing.T, pageID uuid.UUID) *domain.QueueEntry {
	t.Helper()
	e, err := h.queue.Entry(context.Background(), pageID)
	require.NoError(t, err)
	return e
}

func TestProcessQueuedPage_Completes(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	page := h.addPage(t, nil)
	h.enqueue(t, page.ID)

	outcome, err := h.orch.ProcessQueuedPage(context.Background(), page.ID)

	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeCompleted, outcome)

	entry := h.entry(t, page.ID)
	assert.Equal(t, domain.QueueCompleted, entry.Status)
	assert.Empty(t, entry.Error)

	stored, err := h.pages.GetByID(context.Background(), page.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PageStatusReady, stored.Status)
	assert.True(t, stored.Generation.AutoGenerated)
	assert.Equal(t, 14, stored.Generation.BlocksGenerated)
	assert.Zero(t, stored.Generation.BlocksFailed)
	require.NotNil(t, stored.Generation.GeneratedAt)
	assert.True(t, start.Equal(*stored.Generation.GeneratedAt))

	for _, row := range h.logs.Rows() {
		assert.Equal(t, orchestrator.SystemUser, row.UserID, "queued runs act as the system user")
	}
}

func TestProcessQueuedPage_PartialFailure(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	page := h.addPage(t, nil)
	h.enqueue(t, page.ID)
	h.reply = func(ctx context.Context, block string) (*generation.Completion, error) {
		if block == "pricing" {
			return nil, generation.NewTimeoutError(context.DeadlineExceeded)
		}
		return canned(block)
	}

	outcome, err := h.orch.ProcessQueuedPage(context.Background(), page.ID)

	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeFailed, outcome)

	entry := h.entry(t, page.ID)
	assert.Equal(t, domain.QueueFailed, entry.Status)
	assert.Equal(t, "1 of 14 blocks failed; pricing: Generation request timed out", entry.Error)

	stored, err := h.pages.GetByID(context.Background(), page.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PageStatusDraft, stored.Status, "a partial run leaves the page in draft")
	assert.True(t, stored.Generation.AutoGenerated)
	assert.Equal(t, 13, stored.Generation.BlocksGenerated)
	assert.Equal(t, 1, stored.Generation.BlocksFailed)
}

func TestProcessQueuedPage_FailureSummaryIsCapped(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	page := h.addPage(t, nil)
	h.enqueue(t, page.ID)
	h.reply = func(ctx context.Context, block string) (*generation.Completion, error) {
		if block == domain.SEOMetadataBlock {
			return canned(block)
		}
		return nil, generation.NewUpstreamError(502, nil)
	}

	_, err := h.orch.ProcessQueuedPage(context.Background(), page.ID)

	require.NoError(t, err)
	entry := h.entry(t, page.ID)
	assert.Contains(t, entry.Error, "13 of 14 blocks failed; hero: ")
	assert.Contains(t, entry.Error, "; and 10 more")
}

func TestProcessQueuedPage_Paused(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	page := h.addPage(t, nil)
	h.enqueue(t, page.ID)
	require.NoError(t, h.queue.Pause(context.Background()))
	before := h.entry(t, page.ID).ScheduledAt

	outcome, err := h.orch.ProcessQueuedPage(context.Background(), page.ID)

	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeRescheduled, outcome)
	entry := h.entry(t, page.ID)
	assert.Equal(t, domain.QueuePending, entry.Status)
	assert.True(t, entry.ScheduledAt.After(before))
	assert.Empty(t, h.called())
}

func TestProcessQueuedPage_TooSoonAfterPreviousRun(t *testing.T) {
	h := newHarness(t, harnessConfig{minInterval: 5 * time.Minute})
	first := h.addPage(t, nil)
	second := h.addPage(t, nil)
	h.enqueue(t, first.ID)
	h.enqueue(t, second.ID)

	outcome, err := h.orch.ProcessQueuedPage(context.Background(), first.ID)
	require.NoError(t, err)
	require.Equal(t, orchestrator.OutcomeCompleted, outcome)

	h.clock.Advance(time.Minute)
	outcome, err = h.orch.ProcessQueuedPage(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeRescheduled, outcome)
	assert.Equal(t, domain.QueuePending, h.entry(t, second.ID).Status)

	h.clock.Advance(5 * time.Minute)
	outcome, err = h.orch.ProcessQueuedPage(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeCompleted, outcome)
}

func TestProcessQueuedPage_MissingFocusKeyword(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	page := h.addPage(t, func(p *domain.Page) { p.FocusKeyword = "  " })
	h.enqueue(t, page.ID)

	outcome, err := h.orch.ProcessQueuedPage(context.Background(), page.ID)

	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeFailed, outcome)
	entry := h.entry(t, page.ID)
	assert.Equal(t, domain.QueueFailed, entry.Status)
	assert.Equal(t, "Missing focus keyword", entry.Error)

	stored, err := h.pages.GetByID(context.Background(), page.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Blocks)
	assert.False(t, stored.Generation.AutoGenerated, "the page is left untouched")
	assert.Empty(t, h.called())
}

func TestProcessQueuedPage_PageDeleted(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	pageID := uuid.New()
	h.enqueue(t, pageID)

	outcome, err := h.orch.ProcessQueuedPage(context.Background(), pageID)

	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeFailed, outcome)
	assert.Equal(t, "Page not found", h.entry(t, pageID).Error)
}

func TestProcessQueuedPage_SkipsEntriesNotPending(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	page := h.addPage(t, nil)
	h.enqueue(t, page.ID)
	require.NoError(t, h.queue.SetStatus(context.Background(), page.ID, domain.QueueCompleted, ""))

	outcome, err := h.orch.ProcessQueuedPage(context.Background(), page.ID)

	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeSkipped, outcome)
	assert.Empty(t, h.called())
}

func TestProcessQueuedPage_NotQueued(t *testing.T) {
	h := newHarness(t, harnessConfig{})

	_, err := h.orch.ProcessQueuedPage(context.Background(), uuid.New())

	assert.Error(t, err)
}
