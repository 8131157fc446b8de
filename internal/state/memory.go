package state

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/copyblocks/internal/store"
)

type item struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// Memory is a process-local StateStore with lazy expiry.
type Memory struct {
	mu    sync.Mutex
	items map[string]item
	now   func() time.Time
}

var _ store.StateStore = (*Memory)(nil)

// NewMemory creates an empty store. A nil clock uses time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{items: make(map[string]item), now: now}
}

// Get implements store.StateStore.
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if !it.expiresAt.IsZero() && !m.now().Before(it.expiresAt) {
		delete(m.items, key)
		return "", false, nil
	}
	return it.value, true, nil
}

// Set implements store.StateStore.
func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := item{value: value}
	if ttl > 0 {
		it.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = it
	return nil
}

// Delete implements store.StateStore.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}
