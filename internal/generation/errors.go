package generation

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the closed set of failure categories surfaced by the pipeline.
// Transport layers map kinds to their own status codes.
type Kind string

// Error kinds
const (
	KindConfig          Kind = "config_error"
	KindAuth            Kind = "auth_error"
	KindRateLimit       Kind = "rate_limit"
	KindUpstream        Kind = "upstream_error"
	KindNetwork         Kind = "network_error"
	KindTimeout         Kind = "timeout"
	KindInvalidResponse Kind = "invalid_response"
	KindFormat          Kind = "format_error"
	KindBudgetExceeded  Kind = "budget_exceeded"
	KindUnknownBlock    Kind = "unknown_block"
	KindInternal        Kind = "internal_error"
)

// DefaultRetryAfter is used when a rate limit response carries no usable hint.
const DefaultRetryAfter = 60 * time.Second

// Sentinel errors for errors.Is checks. They match any *Error of the same kind.
var (
	ErrConfig          = &Error{Kind: KindConfig}
	ErrAuth            = &Error{Kind: KindAuth}
	ErrRateLimited     = &Error{Kind: KindRateLimit}
	ErrUpstream        = &Error{Kind: KindUpstream}
	ErrNetwork         = &Error{Kind: KindNetwork}
	ErrTimeout         = &Error{Kind: KindTimeout}
	ErrInvalidResponse = &Error{Kind: KindInvalidResponse}
	ErrFormat          = &Error{Kind: KindFormat}
	ErrUnknownBlock    = &Error{Kind: KindUnknownBlock}
	ErrBudgetExceeded  = &BudgetExceededError{}
)

// Error is a categorized pipeline failure. Message is safe to show to users;
// Err holds the underlying cause for logging and errors.Is/As traversal.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface. Only the human-readable message is rendered.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a kind sentinel matching this error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// BudgetExceededError is returned when month-to-date spend has reached the configured ceiling.
type BudgetExceededError struct {
	Current float64
	Limit   float64
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("Monthly budget exceeded: $%.2f of $%.2f used", e.Current, e.Limit)
}

// Is matches any BudgetExceededError.
func (e *BudgetExceededError) Is(target error) bool {
	_, ok := target.(*BudgetExceededError)
	return ok
}

// NewConfigError reports a setup problem that retrying cannot fix.
func NewConfigError(message string) *Error {
	return &Error{Kind: KindConfig, Message: message}
}

// NewAuthError reports rejected credentials.
func NewAuthError(statusCode int) *Error {
	return &Error{
		Kind:       KindAuth,
		Message:    "Authentication with the generation provider failed",
		StatusCode: statusCode,
	}
}

// NewRateLimitError reports an upstream or internal rate limit with a retry hint.
func NewRateLimitError(message string, retryAfter time.Duration) *Error {
	if retryAfter <= 0 {
		retryAfter = DefaultRetryAfter
	}
	return &Error{Kind: KindRateLimit, Message: message, StatusCode: 429, RetryAfter: retryAfter}
}

// NewUpstreamError reports a server-side failure of the provider.
func NewUpstreamError(statusCode int, cause error) *Error {
	return &Error{
		Kind:       KindUpstream,
		Message:    fmt.Sprintf("Generation provider error (status %d)", statusCode),
		StatusCode: statusCode,
		Err:        cause,
	}
}

// NewNetworkError reports a transport-level connection failure.
func NewNetworkError(cause error) *Error {
	return &Error{Kind: KindNetwork, Message: "Could not reach the generation provider", Err: cause}
}

// NewTimeoutError reports that the call exceeded its time budget.
func NewTimeoutError(cause error) *Error {
	return &Error{Kind: KindTimeout, Message: "Generation request timed out", Err: cause}
}

// NewInvalidResponseError reports a reply that does not match the provider contract.
func NewInvalidResponseError(detail string, cause error) *Error {
	msg := "Invalid response from generation provider"
	if detail != "" {
		msg = msg + ": " + detail
	}
	return &Error{Kind: KindInvalidResponse, Message: msg, Err: cause}
}

// NewFormatError reports model output that does not match the block's expected shape.
func NewFormatError(blockType string, cause error) *Error {
	return &Error{
		Kind:    KindFormat,
		Message: fmt.Sprintf("Invalid %s content format", blockType),
		Err:     cause,
	}
}

// NewUnknownBlockError reports a block type missing from the catalog or parser table.
func NewUnknownBlockError(blockType string) *Error {
	return &Error{Kind: KindUnknownBlock, Message: fmt.Sprintf("Unknown block type: %s", blockType)}
}

// KindOf returns the kind of a pipeline error, or KindInternal for anything else.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var budgetErr *BudgetExceededError
	if errors.As(err, &budgetErr) {
		return KindBudgetExceeded
	}
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Normalize maps any error onto the closed taxonomy, wrapping unknown errors as internal.
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	var genErr *Error
	var budgetErr *BudgetExceededError
	if errors.As(err, &genErr) || errors.As(err, &budgetErr) {
		return err
	}
	return &Error{Kind: KindInternal, Message: "Internal generation error", Err: err}
}
