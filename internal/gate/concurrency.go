package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/copyblocks/internal/generation"
	"github.com/phrazzld/copyblocks/internal/state"
	"github.com/phrazzld/copyblocks/internal/store"
)

// Defaults for the per-user bulk run ceiling.
const (
	DefaultMaxConcurrent  = 3
	DefaultConcurrencyTTL = 10 * time.Minute
)

// ErrNilStateStore is returned when a gate is constructed without a state store.
var ErrNilStateStore = errors.New("gate: state store cannot be nil")

// Lease identifies one admitted bulk run.
type Lease struct {
	UserID uuid.UUID
	ID     string
}

type marker struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConcurrencyGate caps simultaneous bulk runs per user. Markers expire after
// the TTL so a crashed run cannot hold a slot forever. Reads and writes are
// not atomic; two racing acquires may both be admitted.
type ConcurrencyGate struct {
	state store.StateStore
	max   int
	ttl   time.Duration
	now   func() time.Time
}

// NewConcurrencyGate creates a gate. Non-positive maxRuns or ttl use the defaults.
func NewConcurrencyGate(s store.StateStore, maxRuns int, ttl time.Duration, now func() time.Time) (*ConcurrencyGate, error) {
	if s == nil {
		return nil, ErrNilStateStore
	}
	if maxRuns <= 0 {
		maxRuns = DefaultMaxConcurrent
	}
	if ttl <= 0 {
		ttl = DefaultConcurrencyTTL
	}
	if now == nil {
		now = time.Now
	}
	return &ConcurrencyGate{state: s, max: maxRuns, ttl: ttl, now: now}, nil
}

func concurrencyKey(userID uuid.UUID) string {
	return "bulk_runs:" + userID.String()
}

// Acquire admits a bulk run for the user or fails with a rate limit error
// when the user already has the maximum number of live runs.
func (g *ConcurrencyGate) Acquire(ctx context.Context, userID uuid.UUID) (Lease, error) {
	markers, err := g.live(ctx, userID)
	if err != nil {
		return Lease{}, err
	}

	if len(markers) >= g.max {
		retryAfter := markers[0].ExpiresAt.Sub(g.now())
		for _, m := range markers[1:] {
			retryAfter = min(retryAfter, m.ExpiresAt.Sub(g.now()))
		}
		return Lease{}, generation.NewRateLimitError(
			fmt.Sprintf("Too many concurrent bulk generations (limit %d)", g.max),
			retryAfter.Round(time.Second))
	}

	lease := Lease{UserID: userID, ID: uuid.NewString()}
	markers = append(markers, marker{ID: lease.ID, ExpiresAt: g.now().Add(g.ttl)})
	if err := state.SetJSON(ctx, g.state, concurrencyKey(userID), markers, g.ttl); err != nil {
		return Lease{}, fmt.Errorf("recording bulk run: %w", err)
	}
	return lease, nil
}

// Release frees the lease's slot. Releasing twice is harmless.
func (g *ConcurrencyGate) Release(ctx context.Context, lease Lease) error {
	markers, err := g.live(ctx, lease.UserID)
	if err != nil {
		return err
	}

	kept := markers[:0]
	for _, m := range markers {
		if m.ID != lease.ID {
			kept = append(kept, m)
		}
	}

	key := concurrencyKey(lease.UserID)
	if len(kept) == 0 {
		return g.state.Delete(ctx, key)
	}
	return state.SetJSON(ctx, g.state, key, kept, g.ttl)
}

// Active returns the number of live runs for the user.
func (g *ConcurrencyGate) Active(ctx context.Context, userID uuid.UUID) (int, error) {
	markers, err := g.live(ctx, userID)
	return len(markers), err
}

func (g *ConcurrencyGate) live(ctx context.Context, userID uuid.UUID) ([]marker, error) {
	var markers []marker
	if _, err := state.GetJSON(ctx, g.state, concurrencyKey(userID), &markers); err != nil {
		return nil, fmt.Errorf("reading bulk run markers: %w", err)
	}

	now := g.now()
	live := markers[:0]
	for _, m := range markers {
		if m.ExpiresAt.After(now) {
			live = append(live, m)
		}
	}
	return live, nil
}
