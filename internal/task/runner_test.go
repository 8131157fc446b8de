package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProcessor struct {
	ProcessFn func(ctx context.Context, pageID uuid.UUID) (orchestrator.Outcome, error)
}

func (m *mockProcessor) ProcessQueuedPage(ctx context.Context, pageID uuid.UUID) (orchestrator.Outcome, error) {
	return m.ProcessFn(ctx, pageID)
}

type mockQueue struct {
	DueFn     func(ctx context.Context, limit int) ([]domain.QueueEntry, error)
	RecoverFn func(ctx context.Context, olderThan time.Duration) (int, error)
}

func (m *mockQueue) Due(ctx context.Context, limit int) ([]domain.QueueEntry, error) {
	if m.DueFn == nil {
		return nil, nil
	}
	return m.DueFn(ctx, limit)
}

func (m *mockQueue) Recover(ctx context.Context, olderThan time.Duration) (int, error) {
	if m.RecoverFn == nil {
		return 0, nil
	}
	return m.RecoverFn(ctx, olderThan)
}

type mockCleaner struct {
	CleanupFn func(ctx context.Context, days int) (int64, error)
}

func (m *mockCleaner) Cleanup(ctx context.Context, days int) (int64, error) {
	return m.CleanupFn(ctx, days)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNewScheduler_Validation(t *testing.T) {
	t.Parallel()

	p := &mockProcessor{}
	q := &mockQueue{}

	_, err := NewScheduler(nil, q, SchedulerConfig{}, testLogger())
	assert.ErrorIs(t, err, ErrNilProcessor)
	_, err = NewScheduler(p, nil, SchedulerConfig{}, testLogger())
	assert.ErrorIs(t, err, ErrNilQueue)
	_, err = NewScheduler(p, q, SchedulerConfig{}, nil)
	assert.ErrorIs(t, err, ErrNilLogger)

	s, err := NewScheduler(p, q, SchedulerConfig{}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultSchedulerConfig().PollInterval, s.config.PollInterval)
	assert.Equal(t, DefaultSchedulerConfig().StuckTaskAge, s.config.StuckTaskAge)
}

func TestScheduler_RunOnce(t *testing.T) {
	t.Parallel()

	pageID := uuid.New()

	t.Run("processes the earliest due page", func(t *testing.T) {
		var processed []uuid.UUID
		q := &mockQueue{DueFn: func(ctx context.Context, limit int) ([]domain.QueueEntry, error) {
			assert.Equal(t, 1, limit, "one page per tick")
			return []domain.QueueEntry{{PageID: pageID, Status: domain.QueuePending}}, nil
		}}
		p := &mockProcessor{ProcessFn: func(ctx context.Context, id uuid.UUID) (orchestrator.Outcome, error) {
			processed = append(processed, id)
			return orchestrator.OutcomeCompleted, nil
		}}
		s, err := NewScheduler(p, q, SchedulerConfig{}, testLogger())
		require.NoError(t, err)

		found, err := s.RunOnce(context.Background())

		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []uuid.UUID{pageID}, processed)
	})

	t.Run("nothing due", func(t *testing.T) {
		p := &mockProcessor{ProcessFn: func(ctx context.Context, id uuid.UUID) (orchestrator.Outcome, error) {
			t.Fatal("processor must not be called")
			return "", nil
		}}
		s, err := NewScheduler(p, &mockQueue{}, SchedulerConfig{}, testLogger())
		require.NoError(t, err)

		found, err := s.RunOnce(context.Background())

		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("queue error", func(t *testing.T) {
		boom := errors.New("database unavailable")
		q := &mockQueue{DueFn: func(ctx context.Context, limit int) ([]domain.QueueEntry, error) {
			return nil, boom
		}}
		s, err := NewScheduler(&mockProcessor{}, q, SchedulerConfig{}, testLogger())
		require.NoError(t, err)

		_, err = s.RunOnce(context.Background())

		assert.ErrorIs(t, err, boom)
	})

	t.Run("processor error", func(t *testing.T) {
		boom := errors.New("state store unavailable")
		q := &mockQueue{DueFn: func(ctx context.Context, limit int) ([]domain.QueueEntry, error) {
			return []domain.QueueEntry{{PageID: pageID}}, nil
		}}
		p := &mockProcessor{ProcessFn: func(ctx context.Context, id uuid.UUID) (orchestrator.Outcome, error) {
			return "", boom
		}}
		s, err := NewScheduler(p, q, SchedulerConfig{}, testLogger())
		require.NoError(t, err)

		found, err := s.RunOnce(context.Background())

		assert.True(t, found)
		assert.ErrorIs(t, err, boom)
	})
}

func TestScheduler_StartRecoversStuckEntries(t *testing.T) {
	t.Parallel()

	var ages []time.Duration
	var mu sync.Mutex
	q := &mockQueue{RecoverFn: func(ctx context.Context, olderThan time.Duration) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		ages = append(ages, olderThan)
		return 2, nil
	}}
	s, err := NewScheduler(&mockProcessor{}, q, SchedulerConfig{
		PollInterval: time.Hour,
		StuckTaskAge: 15 * time.Minute,
	}, testLogger())
	require.NoError(t, err)

	require.NoError(t, s.Start())
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, ages)
	assert.Equal(t, 15*time.Minute, ages[0])
}

func TestScheduler_StartFailsWhenRecoveryFails(t *testing.T) {
	t.Parallel()

	q := &mockQueue{RecoverFn: func(ctx context.Context, olderThan time.Duration) (int, error) {
		return 0, errors.New("connection refused")
	}}
	s, err := NewScheduler(&mockProcessor{}, q, SchedulerConfig{}, testLogger())
	require.NoError(t, err)

	err = s.Start()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to recover stuck entries")
	s.Stop()
}

func TestScheduler_PollsUntilStopped(t *testing.T) {
	t.Parallel()

	pageID := uuid.New()
	var calls int32
	processed := make(chan struct{}, 10)

	q := &mockQueue{DueFn: func(ctx context.Context, limit int) ([]domain.QueueEntry, error) {
		return []domain.QueueEntry{{PageID: pageID}}, nil
	}}
	p := &mockProcessor{ProcessFn: func(ctx context.Context, id uuid.UUID) (orchestrator.Outcome, error) {
		atomic.AddInt32(&calls, 1)
		select {
		case processed <- struct{}{}:
		default:
		}
		return orchestrator.OutcomeRescheduled, nil
	}}
	cleaned := make(chan int, 10)
	s, err := NewScheduler(p, q, SchedulerConfig{
		PollInterval:    10 * time.Millisecond,
		CleanupInterval: 10 * time.Millisecond,
		RetentionDays:   7,
	}, testLogger())
	require.NoError(t, err)
	s.SetCleaner(&mockCleaner{CleanupFn: func(ctx context.Context, days int) (int64, error) {
		select {
		case cleaned <- days:
		default:
		}
		return 3, nil
	}})

	require.NoError(t, s.Start())

	select {
	case <-processed:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never processed a page")
	}
	select {
	case days := <-cleaned:
		assert.Equal(t, 7, days)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never cleaned up")
	}

	s.Stop()
	after := atomic.LoadInt32(&calls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&calls), "no ticks after Stop")

	// Stop is idempotent
	s.Stop()
}
