package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/store"
)

// JobStore keeps queue entries in a map keyed by page.
type JobStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]domain.QueueEntry
	now     func() time.Time
}

var _ store.JobStore = (*JobStore)(nil)

// NewJobStore creates an empty job store. A nil clock uses time.Now.
func NewJobStore(now func() time.Time) *JobStore {
	if now == nil {
		now = time.Now
	}
	return &JobStore{entries: make(map[uuid.UUID]domain.QueueEntry), now: now}
}

// Insert implements store.JobStore.
func (s *JobStore) Insert(ctx context.Context, entry *domain.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, exists := s.entries[entry.PageID]; exists && existing.Status.Active() {
		return store.ErrQueueEntryExists
	}
	stored := *entry
	now := s.now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.entries[entry.PageID] = stored
	return nil
}

// Get implements store.JobStore.
func (s *JobStore) Get(ctx context.Context, pageID uuid.UUID) (*domain.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[pageID]
	if !ok {
		return nil, store.ErrQueueEntryNotFound
	}
	return &e, nil
}

// List implements store.JobStore.
func (s *JobStore) List(ctx context.Context, status domain.QueueStatus) ([]domain.QueueEntry, error) {
	return s.filter(func(e domain.QueueEntry) bool {
		return status == "" || e.Status == status
	}, 0), nil
}

// UpdateStatus implements store.JobStore.
func (s *JobStore) UpdateStatus(ctx context.Context, pageID uuid.UUID, status domain.QueueStatus, errMsg string) error {
	return s.update(pageID, func(e *domain.QueueEntry) {
		e.Status = status
		e.Error = errMsg
	})
}

// Reschedule implements store.JobStore.
func (s *JobStore) Reschedule(ctx context.Context, pageID uuid.UUID, at time.Time) error {
	return s.update(pageID, func(e *domain.QueueEntry) {
		e.ScheduledAt = at.UTC()
		e.Status = domain.QueuePending
	})
}

// Delete implements store.JobStore.
func (s *JobStore) Delete(ctx context.Context, pageID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[pageID]
	delete(s.entries, pageID)
	return ok, nil
}

// DeleteAll implements store.JobStore.
func (s *JobStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[uuid.UUID]domain.QueueEntry)
	return nil
}

// Due implements store.JobStore.
func (s *JobStore) Due(ctx context.Context, now time.Time, limit int) ([]domain.QueueEntry, error) {
	return s.filter(func(e domain.QueueEntry) bool {
		return e.Status == domain.QueuePending && !e.ScheduledAt.After(now)
	}, limit), nil
}

// Stale implements store.JobStore.
func (s *JobStore) Stale(ctx context.Context, cutoff time.Time) ([]domain.QueueEntry, error) {
	return s.filter(func(e domain.QueueEntry) bool {
		return e.Status == domain.QueueProcessing && e.UpdatedAt.Before(cutoff)
	}, 0), nil
}

// LastScheduled implements store.JobStore.
func (s *JobStore) LastScheduled(ctx context.Context) (*time.Time, error) {
	pending := s.filter(func(e domain.QueueEntry) bool { return e.Status == domain.QueuePending }, 0)
	if len(pending) == 0 {
		return nil, nil
	}
	last := pending[len(pending)-1].ScheduledAt
	return &last, nil
}

// WithTx returns the store itself; there are no transactions in memory.
func (s *JobStore) WithTx(*sql.Tx) store.JobStore {
	return s
}

// Touch overrides an entry's UpdatedAt, for simulating entries stuck in processing.
func (s *JobStore) Touch(pageID uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[pageID]; ok {
		e.UpdatedAt = at
		s.entries[pageID] = e
	}
}

func (s *JobStore) update(pageID uuid.UUID, fn func(*domain.QueueEntry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[pageID]
	if !ok {
		return store.ErrQueueEntryNotFound
	}
	fn(&e)
	e.UpdatedAt = s.now().UTC()
	s.entries[pageID] = e
	return nil
}

func (s *JobStore) filter(keep func(domain.QueueEntry) bool, limit int) []domain.QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.QueueEntry
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
