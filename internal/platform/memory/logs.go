package memory

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/store"
)

// LogStore is an append-only slice of generation log rows.
type LogStore struct {
	mu     sync.Mutex
	rows   []domain.GenerationLogRow
	nextID int64

	// InsertErr, when set, is returned by every Insert.
	InsertErr error
}

var _ store.LogStore = (*LogStore)(nil)

// NewLogStore creates an empty log.
func NewLogStore() *LogStore {
	return &LogStore{}
}

// Insert implements store.LogStore.
func (s *LogStore) Insert(ctx context.Context, row *domain.GenerationLogRow) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return 0, s.InsertErr
	}
	s.nextID++
	stored := *row
	stored.ID = s.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.rows = append(s.rows, stored)
	return stored.ID, nil
}

// SumCost implements store.LogStore.
func (s *LogStore) SumCost(ctx context.Context, since time.Time, status domain.GenerationStatus) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, r := range s.rows {
		if r.Status == status && !r.CreatedAt.Before(since) {
			total += r.Cost
		}
	}
	return total, nil
}

// DeleteBefore implements store.LogStore.
func (s *LogStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rows[:0]
	var deleted int64
	for _, r := range s.rows {
		if r.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.rows = kept
	return deleted, nil
}

// Rows returns a copy of every stored row in insertion order.
func (s *LogStore) Rows() []domain.GenerationLogRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.GenerationLogRow(nil), s.rows...)
}
