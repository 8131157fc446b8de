package memory

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/store"
)

// PageStore keeps pages in a map. Returned pages are deep copies.
type PageStore struct {
	mu    sync.Mutex
	pages map[uuid.UUID]*domain.Page
}

var _ store.PageStore = (*PageStore)(nil)

// NewPageStore creates a store seeded with pages.
func NewPageStore(pages ...*domain.Page) *PageStore {
	s := &PageStore{pages: make(map[uuid.UUID]*domain.Page)}
	for _, p := range pages {
		s.Put(p)
	}
	return s
}

// Put inserts or replaces a page.
func (s *PageStore) Put(p *domain.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[p.ID] = clonePage(p)
}

// GetByID implements store.PageStore.
func (s *PageStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	if !ok {
		return nil, store.ErrPageNotFound
	}
	return clonePage(p), nil
}

// SaveBlockFields implements store.PageStore.
func (s *PageStore) SaveBlockFields(ctx context.Context, pageID uuid.UUID, blockID string, fields domain.BlockFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[pageID]
	if !ok {
		return store.ErrPageNotFound
	}
	if p.Blocks == nil {
		p.Blocks = make(map[string]domain.BlockFields)
	}
	p.Blocks[blockID] = cloneFields(fields)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateGeneration implements store.PageStore.
func (s *PageStore) UpdateGeneration(ctx context.Context, pageID uuid.UUID, meta domain.GenerationMeta, status domain.PageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[pageID]
	if !ok {
		return store.ErrPageNotFound
	}
	p.Generation = meta
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// WithTx returns the store itself; there are no transactions in memory.
func (s *PageStore) WithTx(*sql.Tx) store.PageStore {
	return s
}

func clonePage(p *domain.Page) *domain.Page {
	c := *p
	c.BlockOrder = append([]string(nil), p.BlockOrder...)
	c.Blocks = make(map[string]domain.BlockFields, len(p.Blocks))
	for id, fields := range p.Blocks {
		c.Blocks[id] = cloneFields(fields)
	}
	if p.Generation.GeneratedAt != nil {
		at := *p.Generation.GeneratedAt
		c.Generation.GeneratedAt = &at
	}
	return &c
}

func cloneFields(f domain.BlockFields) domain.BlockFields {
	if f == nil {
		return nil
	}
	c := make(domain.BlockFields, len(f))
	for k, v := range f {
		c[k] = v
	}
	return c
}
