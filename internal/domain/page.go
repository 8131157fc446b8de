package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PageStatus represents the publication state of a page.
type PageStatus string

// Possible page status values
const (
	PageStatusDraft PageStatus = "draft"
	PageStatusReady PageStatus = "ready"
)

// Page validation errors
var (
	ErrEmptyPageID         = fmt.Errorf("%w: page ID cannot be empty", ErrValidation)
	ErrEmptyPageTitle      = fmt.Errorf("%w: page title cannot be empty", ErrValidation)
	ErrMissingFocusKeyword = fmt.Errorf("%w: page focus keyword is required for generation", ErrValidation)
	ErrInvalidPageStatus   = fmt.Errorf("%w: invalid page status", ErrValidation)
)

// BlockFields holds the named field values of a single block.
// Values are strings, string slices, or slices of string maps depending on the block type.
type BlockFields map[string]any

// GenerationMeta records the outcome of the most recent automated generation run.
type GenerationMeta struct {
	AutoGenerated   bool       `json:"auto_generated"`
	GeneratedAt     *time.Time `json:"generated_at,omitempty"`
	BlocksGenerated int        `json:"blocks_generated"`
	BlocksFailed    int        `json:"blocks_failed"`
}

// Page is a landing page composed of content blocks.
// Title, Topic, FocusKeyword and Category are written by external collaborators;
// the generation pipeline writes Blocks and Generation.
type Page struct {
	ID           uuid.UUID              `json:"id"`
	Title        string                 `json:"title"`
	FocusKeyword string                 `json:"focus_keyword"`
	Topic        string                 `json:"topic"`
	Category     string                 `json:"category,omitempty"`
	Status       PageStatus             `json:"status"`
	Blocks       map[string]BlockFields `json:"blocks"`
	BlockOrder   []string               `json:"block_order,omitempty"`
	Generation   GenerationMeta         `json:"generation"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// NewPage creates a draft page with the given title, topic and focus keyword.
func NewPage(title, topic, focusKeyword string) (*Page, error) {
	now := time.Now().UTC()
	page := &Page{
		ID:           uuid.New(),
		Title:        title,
		Topic:        topic,
		FocusKeyword: focusKeyword,
		Status:       PageStatusDraft,
		Blocks:       make(map[string]BlockFields),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := page.Validate(); err != nil {
		return nil, err
	}

	return page, nil
}

// Validate checks if the Page has valid data.
func (p *Page) Validate() error {
	if p.ID == uuid.Nil {
		return ErrEmptyPageID
	}

	if strings.TrimSpace(p.Title) == "" {
		return ErrEmptyPageTitle
	}

	if p.Status != PageStatusDraft && p.Status != PageStatusReady {
		return ErrInvalidPageStatus
	}

	return nil
}

// ReadyForGeneration reports whether the page carries the inputs every prompt needs.
func (p *Page) ReadyForGeneration() error {
	if strings.TrimSpace(p.FocusKeyword) == "" {
		return ErrMissingFocusKeyword
	}
	return nil
}

// Block returns the stored fields for a block, or nil when the block has not been generated.
func (p *Page) Block(blockID string) BlockFields {
	if p.Blocks == nil {
		return nil
	}
	return p.Blocks[blockID]
}
