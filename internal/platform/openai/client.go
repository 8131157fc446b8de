package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/copyblocks/internal/config"
	"github.com/phrazzld/copyblocks/internal/generation"
	"github.com/phrazzld/copyblocks/internal/redact"
)

// DefaultBaseURL is the public OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

const (
	completionsPath = "/chat/completions"
	maxBodyBytes    = 1 << 20
	maxLoggedBody   = 512
)

// ErrNilLogger is returned when the client is constructed without a logger.
var ErrNilLogger = errors.New("openai: logger cannot be nil")

// Client implements generation.Client against an OpenAI-compatible
// chat completions endpoint.
type Client struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
	defaults   generation.Options
	retry      generation.RetryPolicy
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, e.g. with one pointed at a test server.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetryPolicy replaces the retry policy derived from configuration.
func WithRetryPolicy(p generation.RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// NewClient builds a Client from LLM configuration. A missing API key is not
// an error here; Generate reports it as a config error so the pipeline can log it.
func NewClient(logger *slog.Logger, cfg config.LLMConfig, opts ...Option) (*Client, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	retry := generation.DefaultRetryPolicy()
	if cfg.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryDelaySeconds >= 0 {
		retry.Delay = time.Duration(cfg.RetryDelaySeconds) * time.Second
	}

	c := &Client{
		logger:     logger.With("component", "openai_client"),
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		defaults: generation.Options{
			Model:        cfg.ModelName,
			SystemPrompt: cfg.SystemPrompt,
			MaxTokens:    cfg.MaxTokens,
			Temperature:  cfg.Temperature,
		},
		retry: retry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate sends one prompt and returns the reply with token usage.
func (c *Client) Generate(ctx context.Context, prompt string, opts generation.Options) (*generation.Completion, error) {
	if c.apiKey == "" {
		return nil, generation.NewConfigError("OpenAI API key is not configured")
	}

	merged := c.merge(opts)
	payload, err := json.Marshal(c.buildRequest(prompt, merged))
	if err != nil {
		return nil, generation.NewInvalidResponseError("could not encode request", err)
	}

	var completion *generation.Completion
	err = c.retry.Do(ctx, c.logger, func(ctx context.Context, attempt int) error {
		c.logger.DebugContext(ctx, "calling chat completions",
			"model", merged.Model,
			"attempt", attempt,
			"prompt_length", len(prompt))

		result, callErr := c.call(ctx, payload)
		if callErr != nil {
			return callErr
		}
		completion = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	if completion.Model == "" {
		completion.Model = merged.Model
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

func (c *Client) buildRequest(prompt string, opts generation.Options) chatRequest {
	messages := make([]chatMessage, 0, 2)
	if opts.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: opts.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	return chatRequest{
		Model:       opts.Model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
}

func (c *Client) call(ctx context.Context, payload []byte) (*generation.Completion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(payload))
	if err != nil {
		return nil, generation.NewConfigError("Invalid provider base URL")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError(ctx, resp, body)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.ErrorContext(ctx, "provider returned unparseable body",
			"status", resp.StatusCode,
			"body", redact.Body(body, maxLoggedBody))
		return nil, generation.NewInvalidResponseError("body is not valid JSON", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == nil {
		c.logger.ErrorContext(ctx, "provider response lacks message content",
			"body", redact.Body(body, maxLoggedBody))
		return nil, generation.NewInvalidResponseError("missing message content", nil)
	}

	return &generation.Completion{
		Content:          *parsed.Choices[0].Message.Content,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
		Model:            parsed.Model,
	}, nil
}

func (c *Client) statusError(ctx context.Context, resp *http.Response, body []byte) error {
	status := resp.StatusCode
	c.logger.WarnContext(ctx, "provider returned error status",
		"status", status,
		"body", redact.Body(body, maxLoggedBody))

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return generation.NewAuthError(status)
	case status == http.StatusTooManyRequests:
		return generation.NewRateLimitError("Generation provider rate limit exceeded",
			ParseRetryAfter(resp.Header.Get("Retry-After")))
	default:
		return generation.NewUpstreamError(status, fmt.Errorf("status %d", status))
	}
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
// Unusable values yield zero, which callers replace with the default hint.
func ParseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}

func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return generation.NewTimeoutError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return generation.NewTimeoutError(err)
	}
	return generation.NewNetworkError(err)
}
