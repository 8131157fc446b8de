package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/copyblocks/internal/config"
	"github.com/phrazzld/copyblocks/internal/generation"
	"github.com/phrazzld/copyblocks/internal/redact"
	"google.golang.org/genai"
)

const maxLoggedMessage = 512

// ErrNilLogger is returned when the client is constructed without a logger.
var ErrNilLogger = errors.New("gemini: logger cannot be nil")

// ContentGenerator is the subset of *genai.Models the client depends on.
type ContentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Client implements generation.Client using Google's Gemini API.
type Client struct {
	logger   *slog.Logger
	models   ContentGenerator
	defaults generation.Options
	retry    generation.RetryPolicy
	timeout  time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithContentGenerator replaces the genai model service, typically with a test double.
func WithContentGenerator(g ContentGenerator) Option {
	return func(c *Client) { c.models = g }
}

// WithRetryPolicy replaces the retry policy derived from configuration.
func WithRetryPolicy(p generation.RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// NewClient creates a Gemini-backed client. Without an API key no genai client
// is created and Generate reports a config error.
func NewClient(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig, opts ...Option) (*Client, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}

	retry := generation.DefaultRetryPolicy()
	if cfg.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryDelaySeconds >= 0 {
		retry.Delay = time.Duration(cfg.RetryDelaySeconds) * time.Second
	}

	c := &Client{
		logger: logger.With("component", "gemini_client"),
		defaults: generation.Options{
			Model:        cfg.ModelName,
			SystemPrompt: cfg.SystemPrompt,
			MaxTokens:    cfg.MaxTokens,
			Temperature:  cfg.Temperature,
		},
		retry:   retry,
		timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.models == nil && cfg.APIKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		c.models = client.Models
	}

	return c, nil
}

// Generate sends one prompt and returns the concatenated text of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string, opts generation.Options) (*generation.Completion, error) {
	if c.models == nil {
		return nil, generation.NewConfigError("Gemini API key is not configured")
	}

	merged := c.merge(opts)
	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(merged.Temperature)),
	}
	if merged.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(merged.MaxTokens)
	}
	if merged.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(merged.SystemPrompt, genai.RoleUser)
	}

	var completion *generation.Completion
	err := c.retry.Do(ctx, c.logger, func(ctx context.Context, attempt int) error {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		c.logger.DebugContext(ctx, "calling Gemini",
			"model", merged.Model,
			"attempt", attempt,
			"prompt_length", len(prompt))

		resp, callErr := c.models.GenerateContent(callCtx, merged.Model, genai.Text(prompt), genConfig)
		if callErr != nil {
			return c.mapError(ctx, callErr)
		}

		result, convErr := toCompletion(resp, merged.Model)
		if convErr != nil {
			c.logger.ErrorContext(ctx, "Gemini response lacks text content", "model", merged.Model)
			return convErr
		}
		completion = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completion, nil
}

func (c *Client) merge(opts generation.Options) generation.Options {
	merged := c.defaults
	if opts.Model != "" {
		merged.Model = opts.Model
	}
	if opts.SystemPrompt != "" {
		merged.SystemPrompt = opts.SystemPrompt
	}
	if opts.MaxTokens > 0 {
		merged.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		merged.Temperature = opts.Temperature
	}
	return merged
}

func toCompletion(resp *genai.GenerateContentResponse, model string) (*generation.Completion, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, generation.NewInvalidResponseError("no candidates returned", nil)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, generation.NewInvalidResponseError("candidate has no text", nil)
	}

	completion := &generation.Completion{Content: sb.String(), Model: model}
	if resp.ModelVersion != "" {
		completion.Model = resp.ModelVersion
	}
	if usage := resp.UsageMetadata; usage != nil {
		completion.PromptTokens = int(usage.PromptTokenCount)
		completion.CompletionTokens = int(usage.CandidatesTokenCount)
		completion.TotalTokens = int(usage.TotalTokenCount)
	}
	return completion, nil
}

// mapError translates genai and transport failures onto the generation taxonomy.
func (c *Client) mapError(ctx context.Context, err error) error {
	if code, message, ok := apiErrorCode(err); ok {
		c.logger.WarnContext(ctx, "Gemini API returned an error",
			"status", code,
			"message", redact.Truncate(redact.String(message), maxLoggedMessage))

		switch {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return generation.NewAuthError(code)
		case code == http.StatusTooManyRequests:
			return generation.NewRateLimitError("Generation provider rate limit exceeded", 0)
		default:
			return generation.NewUpstreamError(code, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return generation.NewTimeoutError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return generation.NewTimeoutError(err)
		}
		return generation.NewNetworkError(err)
	}
	c.logger.ErrorContext(ctx, "unexpected Gemini client error", "error", redact.Error(err))
	return generation.NewNetworkError(err)
}

func apiErrorCode(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Message, true
	}
	return 0, "", false
}
