package spend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/copyblocks/internal/config"
	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/generation"
	"github.com/phrazzld/copyblocks/internal/redact"
	"github.com/phrazzld/copyblocks/internal/store"
)

const (
	// DefaultRetentionDays is used by Cleanup when no retention is given.
	DefaultRetentionDays = 30

	maxErrorMessage = 500
)

// ErrNilLogStore is returned when the ledger is constructed without a store.
var ErrNilLogStore = errors.New("spend: log store cannot be nil")

// Rate is the per-1K-token price of a model.
type Rate struct {
	Prompt     float64
	Completion float64
}

// Attempt describes one external call, successful or not.
type Attempt struct {
	PageID           uuid.UUID
	BlockType        string
	UserID           uuid.UUID
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Cost             float64
	// Err marks the attempt failed. Failed attempts are recorded with zero tokens and cost.
	Err error
}

// Summary is a month-to-date view of spend against the budget.
type Summary struct {
	TrackingEnabled bool    `json:"tracking_enabled"`
	MonthToDate     float64 `json:"month_to_date"`
	Budget          float64 `json:"budget"`
	Remaining       float64 `json:"remaining"`
	PercentUsed     float64 `json:"percent_used"`
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Ledger prices calls, records every attempt and enforces the monthly budget.
type Ledger struct {
	logs      store.LogStore
	rates     map[string]Rate
	models    []string // rate keys, longest first, for prefix lookup
	enabled   bool
	limit     float64
	retention int
	now       func() time.Time
	logger    *slog.Logger
}

// NewLedger builds a ledger from budget configuration.
func NewLedger(logs store.LogStore, cfg config.BudgetConfig, opts ...Option) (*Ledger, error) {
	if logs == nil {
		return nil, ErrNilLogStore
	}

	rates := cfg.Rates
	if len(rates) == 0 {
		rates = config.DefaultRates()
	}

	l := &Ledger{
		logs:      logs,
		rates:     make(map[string]Rate, len(rates)),
		enabled:   cfg.TrackingEnabled,
		limit:     cfg.MonthlyLimit,
		retention: cfg.LogRetentionDays,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, r := range rates {
		key := strings.ToLower(strings.TrimSpace(r.Model))
		l.rates[key] = Rate{Prompt: r.Prompt, Completion: r.Completion}
		l.models = append(l.models, key)
	}
	sort.Slice(l.models, func(i, j int) bool { return len(l.models[i]) > len(l.models[j]) })

	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "spend_ledger")
	return l, nil
}

// RateFor returns the rate of a model. Versioned names such as "gpt-4o-2024-08-06"
// resolve to the longest configured prefix.
func (l *Ledger) RateFor(model string) (Rate, bool) {
	key := strings.ToLower(strings.TrimSpace(model))
	if r, ok := l.rates[key]; ok {
		return r, true
	}
	for _, candidate := range l.models {
		if strings.HasPrefix(key, candidate+"-") {
			return l.rates[candidate], true
		}
	}
	return Rate{}, false
}

// Cost prices a call. Unknown models fail closed with a config error.
func (l *Ledger) Cost(promptTokens, completionTokens int, model string) (float64, error) {
	rate, ok := l.RateFor(model)
	if !ok {
		return 0, generation.NewConfigError(fmt.Sprintf("No pricing configured for model %q", model))
	}
	cost := float64(promptTokens)/1000*rate.Prompt + float64(completionTokens)/1000*rate.Completion
	return math.Round(cost*1e6) / 1e6, nil
}

// Log records an attempt and returns the row id. It never fails the caller:
// store errors are logged and reported as id 0.
func (l *Ledger) Log(ctx context.Context, a Attempt) (int64, error) {
	row := &domain.GenerationLogRow{
		PageID:    a.PageID,
		BlockType: a.BlockType,
		Model:     a.Model,
		UserID:    a.UserID,
		Status:    domain.GenerationSuccess,
		CreatedAt: l.now().UTC(),
	}
	if a.Err != nil {
		row.Status = domain.GenerationFailed
		row.ErrorMessage = redact.Truncate(redact.Error(a.Err), maxErrorMessage)
	} else {
		row.PromptTokens = a.PromptTokens
		row.CompletionTokens = a.CompletionTokens
		row.TotalTokens = a.TotalTokens
		row.Cost = a.Cost
	}

	id, err := l.logs.Insert(ctx, row)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to record generation attempt",
			"page_id", a.PageID,
			"block_type", a.BlockType,
			"status", row.Status,
			"error", redact.Error(err))
		return 0, nil
	}
	return id, nil
}

// MonthToDateCost totals successful spend since the start of the current UTC month.
func (l *Ledger) MonthToDateCost(ctx context.Context) (float64, error) {
	total, err := l.logs.SumCost(ctx, MonthStart(l.now()), domain.GenerationSuccess)
	if err != nil {
		return 0, fmt.Errorf("summing month-to-date cost: %w", err)
	}
	return total, nil
}

// CheckBudget returns a BudgetExceededError once month-to-date spend reaches the limit.
// It is a no-op when tracking is disabled or the limit is zero.
func (l *Ledger) CheckBudget(ctx context.Context) error {
	if !l.enabled || l.limit <= 0 {
		return nil
	}
	current, err := l.MonthToDateCost(ctx)
	if err != nil {
		return err
	}
	if current >= l.limit {
		return &generation.BudgetExceededError{Current: current, Limit: l.limit}
	}
	return nil
}

// Cleanup deletes rows older than days (the configured retention when days <= 0).
// Rows from the current month are always kept.
func (l *Ledger) Cleanup(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = l.retention
	}
	if days <= 0 {
		days = DefaultRetentionDays
	}

	now := l.now()
	cutoff := now.UTC().AddDate(0, 0, -days)
	if start := MonthStart(now); cutoff.After(start) {
		cutoff = start
	}

	deleted, err := l.logs.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting generation log rows: %w", err)
	}
	l.logger.InfoContext(ctx, "cleaned up generation log",
		"cutoff", cutoff,
		"deleted", deleted)
	return deleted, nil
}

// Summary reports month-to-date spend against the budget.
func (l *Ledger) Summary(ctx context.Context) (Summary, error) {
	current, err := l.MonthToDateCost(ctx)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{TrackingEnabled: l.enabled, MonthToDate: current, Budget: l.limit}
	if l.limit > 0 {
		s.Remaining = math.Max(0, l.limit-current)
		s.PercentUsed = math.Round(current/l.limit*10000) / 100
	}
	return s, nil
}

// MonthStart returns the first instant of t's month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
