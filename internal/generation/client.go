package generation

import (
	"context"
)

// Options tunes a single generation call. Zero values fall back to provider defaults.
type Options struct {
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// Completion is the full result of one successful call: content plus token usage.
type Completion struct {
	Content          string `json:"content"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Model            string `json:"model"`
}

// Client defines the boundary between the pipeline and the external model endpoint.
// Implementations are all-or-nothing: they return a complete Completion or a
// categorized *Error (see errors.go), never a partial result.
type Client interface {
	// Generate sends one prompt and returns the parsed reply and its usage.
	Generate(ctx context.Context, prompt string, opts Options) (*Completion, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, prompt string, opts Options) (*Completion, error)

// Generate calls f.
func (f ClientFunc) Generate(ctx context.Context, prompt string, opts Options) (*Completion, error) {
	return f(ctx, prompt, opts)
}
