package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/phrazzld/copyblocks/internal/state"
	"github.com/phrazzld/copyblocks/internal/store"
)

const lastGenerationKey = "last_generation_at"

// RateGate enforces a minimum interval between generation runs across the
// whole process, using a single shared timestamp.
type RateGate struct {
	state    store.StateStore
	interval time.Duration
	now      func() time.Time
}

// NewRateGate creates a gate with the given minimum interval.
func NewRateGate(s store.StateStore, interval time.Duration, now func() time.Time) (*RateGate, error) {
	if s == nil {
		return nil, ErrNilStateStore
	}
	if now == nil {
		now = time.Now
	}
	return &RateGate{state: s, interval: interval, now: now}, nil
}

// Wait reports how long until the next run may start. Zero means now.
func (g *RateGate) Wait(ctx context.Context) (time.Duration, error) {
	if g.interval <= 0 {
		return 0, nil
	}
	last, ok, err := state.GetTime(ctx, g.state, lastGenerationKey)
	if err != nil {
		return 0, fmt.Errorf("reading last generation time: %w", err)
	}
	if !ok {
		return 0, nil
	}
	if elapsed := g.now().Sub(last); elapsed < g.interval {
		return g.interval - elapsed, nil
	}
	return 0, nil
}

// Mark records that a run started now.
func (g *RateGate) Mark(ctx context.Context) error {
	if err := state.SetTime(ctx, g.state, lastGenerationKey, g.now(), 0); err != nil {
		return fmt.Errorf("recording last generation time: %w", err)
	}
	return nil
}
