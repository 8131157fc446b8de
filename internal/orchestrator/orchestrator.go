package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/copyblocks/internal/blocks"
	"github.com/phrazzld/copyblocks/internal/content"
	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/gate"
	"github.com/phrazzld/copyblocks/internal/generation"
	"github.com/phrazzld/copyblocks/internal/media"
	"github.com/phrazzld/copyblocks/internal/queue"
	"github.com/phrazzld/copyblocks/internal/spend"
	"github.com/phrazzld/copyblocks/internal/store"
)

// SystemUser acts for runs started by the queue rather than a person.
var SystemUser = uuid.Nil

// ImageField is the hero block field that receives the matched image attachment id.
const ImageField = "image"

const heroBlock = "hero"

// BlockRequest asks for one block of one page.
type BlockRequest struct {
	PageID    uuid.UUID
	BlockType string
	UserID    uuid.UUID
	// Context holds extra prompt lines supplied by the caller.
	Context map[string]string
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator drives block generation for pages: it applies the gates,
// calls the model, parses and stores the output and accounts for every call.
type Orchestrator struct {
	pages       store.PageStore
	catalog     *blocks.Catalog
	client      generation.Client
	parser      *content.Parser
	ledger      Ledger
	queue       *queue.Queue
	concurrency *gate.ConcurrencyGate
	rate        *gate.RateGate
	progress    *gate.ProgressTracker
	matcher     ImageMatcher
	db          *sql.DB
	logger      *slog.Logger
	now         func() time.Time
}

// New creates an Orchestrator.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	o := &Orchestrator{
		pages:       deps.Pages,
		catalog:     deps.Catalog,
		client:      deps.Client,
		parser:      deps.Parser,
		ledger:      deps.Ledger,
		queue:       deps.Queue,
		concurrency: deps.Concurrency,
		rate:        deps.Rate,
		progress:    deps.Progress,
		matcher:     deps.Matcher,
		db:          deps.DB,
		logger:      deps.Logger.With("component", "orchestrator"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// blockOutcome is what one block attempt produced.
type blockOutcome struct {
	fields domain.BlockFields
	tokens int
	cost   float64
}

// GenerateBlock generates, stores and returns the fields of one block.
// Failures are recorded in the ledger and returned as categorized errors.
func (o *Orchestrator) GenerateBlock(ctx context.Context, req BlockRequest) (domain.BlockFields, error) {
	page, err := o.pages.GetByID(ctx, req.PageID)
	if err != nil {
		return nil, fmt.Errorf("loading page %s: %w", req.PageID, err)
	}

	outcome, err := o.runBlock(ctx, page, req.BlockType, req.UserID, req.Context)
	if err != nil {
		return nil, err
	}
	return outcome.fields, nil
}

// GenerateAllBlocks generates every block of a page in order. Individual block
// failures are collected in the result; only gate and page-loading failures
// are returned as errors.
func (o *Orchestrator) GenerateAllBlocks(ctx context.Context, pageID, userID uuid.UUID) (domain.BulkGenerationResult, error) {
	lease, err := o.concurrency.Acquire(ctx, userID)
	if err != nil {
		return domain.BulkGenerationResult{}, err
	}
	defer func() {
		// Markers must be cleared even when the caller's context is done.
		cleanup := context.WithoutCancel(ctx)
		if err := o.concurrency.Release(cleanup, lease); err != nil {
			o.logger.WarnContext(ctx, "failed to release bulk run marker", "user_id", userID, "error", err)
		}
		if err := o.progress.Clear(cleanup, pageID, userID); err != nil {
			o.logger.WarnContext(ctx, "failed to clear progress", "page_id", pageID, "error", err)
		}
	}()

	page, err := o.pages.GetByID(ctx, pageID)
	if err != nil {
		return domain.BulkGenerationResult{}, fmt.Errorf("loading page %s: %w", pageID, err)
	}

	order := ResolveOrder(page.BlockOrder, o.catalog.DefaultOrder())
	log := o.logger.With("page_id", pageID, "user_id", userID)

	if err := o.rate.Mark(ctx); err != nil {
		log.WarnContext(ctx, "failed to record generation start", "error", err)
	}
	if err := o.progress.Start(ctx, pageID, userID, len(order)); err != nil {
		log.WarnContext(ctx, "failed to start progress record", "error", err)
	}

	log.InfoContext(ctx, "bulk generation started", "blocks", len(order))
	started := o.now()

	var (
		failed []domain.BlockFailure
		tokens int
		cost   float64
	)
	for i, blockID := range order {
		if ctx.Err() != nil {
			for _, skipped := range order[i:] {
				failed = append(failed, domain.BlockFailure{Block: skipped, Error: "Generation cancelled"})
			}
			log.WarnContext(ctx, "bulk generation cancelled", "remaining", len(order)-i)
			break
		}

		if err := o.progress.Advance(ctx, pageID, userID, i, blockID); err != nil {
			log.WarnContext(ctx, "failed to update progress", "error", err)
		}

		outcome, err := o.runBlock(ctx, page, blockID, userID, nil)
		if err != nil {
			failed = append(failed, domain.BlockFailure{Block: blockID, Error: err.Error()})
			continue
		}
		tokens += outcome.tokens
		cost += outcome.cost
	}

	result := domain.NewBulkGenerationResult(len(order), failed, tokens, cost, o.now().Sub(started))
	log.InfoContext(ctx, "bulk generation finished",
		"total", result.TotalBlocks(),
		"succeeded", result.SuccessCount(),
		"failed", len(failed),
		"tokens", tokens,
		"cost", cost,
		"duration_ms", result.TotalTime().Milliseconds())
	return result, nil
}

// GetProgress returns the live progress of a bulk run, or nil when none is active.
func (o *Orchestrator) GetProgress(ctx context.Context, pageID, userID uuid.UUID) (*gate.Progress, error) {
	return o.progress.Get(ctx, pageID, userID)
}

// runBlock is the single-block path shared by GenerateBlock and bulk runs.
func (o *Orchestrator) runBlock(
	ctx context.Context,
	page *domain.Page,
	blockID string,
	userID uuid.UUID,
	extra map[string]string,
) (blockOutcome, error) {
	log := o.logger.With("page_id", page.ID, "block_type", blockID)
	attempt := spend.Attempt{PageID: page.ID, BlockType: blockID, UserID: userID}

	outcome, model, err := o.generate(ctx, page, blockID, extra)
	attempt.Model = model
	if err != nil {
		err = generation.Normalize(err)
		attempt.Err = err
		_, _ = o.ledger.Log(ctx, attempt)
		log.WarnContext(ctx, "block generation failed",
			"kind", generation.KindOf(err),
			"error", err)
		return blockOutcome{}, err
	}

	attempt.PromptTokens = outcome.promptTokens
	attempt.CompletionTokens = outcome.completionTokens
	attempt.TotalTokens = outcome.tokens
	attempt.Cost = outcome.cost
	_, _ = o.ledger.Log(ctx, attempt)

	log.DebugContext(ctx, "block generated",
		"tokens", outcome.tokens,
		"cost", outcome.cost)
	return outcome.blockOutcome, nil
}

type generated struct {
	blockOutcome
	promptTokens     int
	completionTokens int
}

func (o *Orchestrator) generate(
	ctx context.Context,
	page *domain.Page,
	blockID string,
	extra map[string]string,
) (generated, string, error) {
	def, err := o.catalog.Get(blockID)
	if err != nil {
		return generated{}, "", err
	}
	if !o.parser.SupportsDefinition(def) {
		return generated{}, "", generation.NewUnknownBlockError(blockID)
	}

	if err := o.ledger.CheckBudget(ctx); err != nil {
		return generated{}, "", err
	}

	prompt, err := o.catalog.RenderPrompt(blockID, blocks.PromptData{
		Title:        page.Title,
		Topic:        page.Topic,
		FocusKeyword: page.FocusKeyword,
		Category:     page.Category,
		Context:      extra,
	})
	if err != nil {
		return generated{}, "", generation.NewConfigError(fmt.Sprintf("Prompt template for %s cannot be rendered", blockID))
	}

	completion, err := o.client.Generate(ctx, prompt, generation.Options{MaxTokens: def.MaxTokens})
	if err != nil {
		return generated{}, "", err
	}
	model := completion.Model

	fields, err := o.parser.ParseDefinition(def, completion.Content)
	if err != nil {
		return generated{}, model, err
	}
	if err := content.ValidateFields(def, fields); err != nil {
		return generated{}, model, err
	}

	cost, err := o.ledger.Cost(completion.PromptTokens, completion.CompletionTokens, model)
	if err != nil {
		return generated{}, model, err
	}

	if blockID == heroBlock {
		o.attachImage(ctx, page, fields)
	}

	if err := o.pages.SaveBlockFields(ctx, page.ID, blockID, fields); err != nil {
		return generated{}, model, fmt.Errorf("saving %s fields: %w", blockID, err)
	}

	return generated{
		blockOutcome:     blockOutcome{fields: fields, tokens: completion.TotalTokens, cost: cost},
		promptTokens:     completion.PromptTokens,
		completionTokens: completion.CompletionTokens,
	}, model, nil
}

// attachImage stores the matched image id in the hero fields. Matching is
// best effort and never fails the block.
func (o *Orchestrator) attachImage(ctx context.Context, page *domain.Page, fields domain.BlockFields) {
	if o.matcher == nil {
		return
	}
	id, err := o.matcher.FindMatch(ctx, media.Context{
		FocusKeyword: page.FocusKeyword,
		Topic:        page.Topic,
		Category:     page.Category,
	})
	if err != nil {
		o.logger.WarnContext(ctx, "image matching failed", "page_id", page.ID, "error", err)
		return
	}
	if id != nil {
		fields[ImageField] = id.String()
	}
}
