package gate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/copyblocks/internal/state"
	"github.com/phrazzld/copyblocks/internal/store"
)

// DefaultProgressTTL bounds how long a stale progress record survives a crashed run.
const DefaultProgressTTL = 10 * time.Minute

// Progress is the live state of a bulk run.
type Progress struct {
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Percent   float64   `json:"percent"`
	Block     string    `json:"block,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// ProgressTracker keeps one transient progress record per (page, user).
type ProgressTracker struct {
	state store.StateStore
	ttl   time.Duration
	now   func() time.Time
}

// NewProgressTracker creates a tracker. A non-positive ttl uses DefaultProgressTTL.
func NewProgressTracker(s store.StateStore, ttl time.Duration, now func() time.Time) (*ProgressTracker, error) {
	if s == nil {
		return nil, ErrNilStateStore
	}
	if ttl <= 0 {
		ttl = DefaultProgressTTL
	}
	if now == nil {
		now = time.Now
	}
	return &ProgressTracker{state: s, ttl: ttl, now: now}, nil
}

func progressKey(pageID, userID uuid.UUID) string {
	return fmt.Sprintf("progress:%s:%s", pageID, userID)
}

// Start opens a record for a run of total blocks.
func (p *ProgressTracker) Start(ctx context.Context, pageID, userID uuid.UUID, total int) error {
	return state.SetJSON(ctx, p.state, progressKey(pageID, userID),
		Progress{Total: total, StartedAt: p.now().UTC()}, p.ttl)
}

// Advance records that the block at index (zero-based) is being generated.
func (p *ProgressTracker) Advance(ctx context.Context, pageID, userID uuid.UUID, index int, block string) error {
	key := progressKey(pageID, userID)
	var current Progress
	if _, err := state.GetJSON(ctx, p.state, key, &current); err != nil {
		return err
	}
	if current.StartedAt.IsZero() {
		current.StartedAt = p.now().UTC()
	}
	current.Current = index + 1
	current.Block = block
	if current.Total > 0 {
		current.Percent = math.Round(float64(index)/float64(current.Total)*10000) / 100
	}
	return state.SetJSON(ctx, p.state, key, current, p.ttl)
}

// Get returns the live record, or nil when no run is active.
func (p *ProgressTracker) Get(ctx context.Context, pageID, userID uuid.UUID) (*Progress, error) {
	var current Progress
	ok, err := state.GetJSON(ctx, p.state, progressKey(pageID, userID), &current)
	if err != nil || !ok {
		return nil, err
	}
	return &current, nil
}

// Clear removes the record.
func (p *ProgressTracker) Clear(ctx context.Context, pageID, userID uuid.UUID) error {
	return p.state.Delete(ctx, progressKey(pageID, userID))
}
