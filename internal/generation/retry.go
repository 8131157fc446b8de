package generation

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryPolicy decides how many times a call is attempted and which failures
// justify another attempt. The zero value makes a single attempt.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Delay is the fixed pause between attempts.
	Delay time.Duration

	// Retryable reports whether an error justifies another attempt.
	// If nil, only upstream (5xx) errors are retried.
	Retryable func(error) bool

	// Sleep waits between attempts. If nil, a context-aware timer is used.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy retries once on upstream errors after a short fixed delay.
// Timeouts, rate limits and auth failures are terminal for the call.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 2,
		Delay:       2 * time.Second,
		Retryable:   IsUpstream,
	}
}

// IsUpstream reports whether err is a provider-side 5xx failure.
// Upstream errors carrying a 4xx status are rejections and are not matched.
func IsUpstream(err error) bool {
	var genErr *Error
	if !errors.As(err, &genErr) || genErr.Kind != KindUpstream {
		return false
	}
	return genErr.StatusCode == 0 || genErr.StatusCode >= 500
}

// Do runs fn until it succeeds, returns a non-retryable error, or attempts run out.
// The last error is returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsUpstream
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	if logger == nil {
		logger = slog.Default()
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}

		if !retryable(err) || attempt == attempts {
			return err
		}

		logger.WarnContext(ctx, "retrying generation call after failure",
			"attempt", attempt,
			"max_attempts", attempts,
			"delay_ms", p.Delay.Milliseconds(),
			"error", err)

		if sleepErr := sleep(ctx, p.Delay); sleepErr != nil {
			return NewTimeoutError(sleepErr)
		}
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
