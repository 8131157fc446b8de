package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/copyblocks/internal/blocks"
	"github.com/phrazzld/copyblocks/internal/content"
	"github.com/phrazzld/copyblocks/internal/gate"
	"github.com/phrazzld/copyblocks/internal/generation"
	"github.com/phrazzld/copyblocks/internal/media"
	"github.com/phrazzld/copyblocks/internal/queue"
	"github.com/phrazzld/copyblocks/internal/spend"
	"github.com/phrazzld/copyblocks/internal/store"
)

// Ledger is the spend accounting the orchestrator needs.
type Ledger interface {
	CheckBudget(ctx context.Context) error
	Cost(promptTokens, completionTokens int, model string) (float64, error)
	Log(ctx context.Context, a spend.Attempt) (int64, error)
}

// ImageMatcher finds an image for a page context. A nil id means no image fits.
type ImageMatcher interface {
	FindMatch(ctx context.Context, c media.Context) (*uuid.UUID, error)
}

// Deps are the collaborators of an Orchestrator. Matcher and DB are optional.
type Deps struct {
	Pages       store.PageStore
	Catalog     *blocks.Catalog
	Client      generation.Client
	Parser      *content.Parser
	Ledger      Ledger
	Queue       *queue.Queue
	Concurrency *gate.ConcurrencyGate
	Rate        *gate.RateGate
	Progress    *gate.ProgressTracker
	Matcher     ImageMatcher

	// DB, when set, makes the page and queue updates that finish a queued run atomic.
	DB *sql.DB

	Logger *slog.Logger
}

// ErrMissingDependency is returned by New when a required collaborator is nil.
var ErrMissingDependency = errors.New("orchestrator: missing dependency")

func (d Deps) validate() error {
	required := []struct {
		name string
		nil  bool
	}{
		{"Pages", d.Pages == nil},
		{"Catalog", d.Catalog == nil},
		{"Client", d.Client == nil},
		{"Parser", d.Parser == nil},
		{"Ledger", d.Ledger == nil},
		{"Queue", d.Queue == nil},
		{"Concurrency", d.Concurrency == nil},
		{"Rate", d.Rate == nil},
		{"Progress", d.Progress == nil},
		{"Logger", d.Logger == nil},
	}
	for _, r := range required {
		if r.nil {
			return fmt.Errorf("%w: %s", ErrMissingDependency, r.name)
		}
	}
	return nil
}
