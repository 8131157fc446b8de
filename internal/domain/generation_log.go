package domain

import (
	"time"

	"github.com/google/uuid"
)

// GenerationStatus is the outcome recorded for one generation attempt.
type GenerationStatus string

// Possible generation log status values
const (
	GenerationSuccess GenerationStatus = "success"
	GenerationFailed  GenerationStatus = "failed"
)

// GenerationLogRow is an append-only record of a single external call attempt.
type GenerationLogRow struct {
	ID               int64            `json:"id"`
	PageID           uuid.UUID        `json:"page_id"`
	BlockType        string           `json:"block_type"`
	PromptTokens     int              `json:"prompt_tokens"`
	CompletionTokens int              `json:"completion_tokens"`
	TotalTokens      int              `json:"total_tokens"`
	Cost             float64          `json:"cost"`
	Model            string           `json:"model"`
	Status           GenerationStatus `json:"status"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	UserID           uuid.UUID        `json:"user_id"`
	CreatedAt        time.Time        `json:"created_at"`
}
