package generation_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/phrazzld/copyblocks/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noSleep(calls *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*calls = append(*calls, d)
		return nil
	}
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		err      error
		sentinel error
		kind     generation.Kind
	}{
		{"config", generation.NewConfigError("no API key configured"), generation.ErrConfig, generation.KindConfig},
		{"auth", generation.NewAuthError(401), generation.ErrAuth, generation.KindAuth},
		{"rate limit", generation.NewRateLimitError("slow down", 30*time.Second), generation.ErrRateLimited, generation.KindRateLimit},
		{"upstream", generation.NewUpstreamError(502, nil), generation.ErrUpstream, generation.KindUpstream},
		{"network", generation.NewNetworkError(errors.New("dial tcp")), generation.ErrNetwork, generation.KindNetwork},
		{"timeout", generation.NewTimeoutError(context.DeadlineExceeded), generation.ErrTimeout, generation.KindTimeout},
		{"invalid response", generation.NewInvalidResponseError("no choices", nil), generation.ErrInvalidResponse, generation.KindInvalidResponse},
		{"format", generation.NewFormatError("hero", nil), generation.ErrFormat, generation.KindFormat},
		{"unknown block", generation.NewUnknownBlockError("carousel"), generation.ErrUnknownBlock, generation.KindUnknownBlock},
		{"budget", &generation.BudgetExceededError{Current: 51, Limit: 50}, generation.ErrBudgetExceeded, generation.KindBudgetExceeded},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("generating block: %w", tc.err)
			assert.ErrorIs(t, wrapped, tc.sentinel)
			assert.Equal(t, tc.kind, generation.KindOf(wrapped))
			assert.True(t, generation.IsKind(wrapped, tc.kind))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Invalid hero content format", generation.NewFormatError("hero", errors.New("raw")).Error())
	assert.Equal(t, "Monthly budget exceeded: $51.00 of $50.00 used",
		(&generation.BudgetExceededError{Current: 51, Limit: 50}).Error())

	// The cause is reachable but never rendered
	cause := errors.New("upstream body: {\"secret\":\"x\"}")
	err := generation.NewUpstreamError(503, cause)
	assert.NotContains(t, err.Error(), "secret")
	assert.ErrorIs(t, err, cause)

	rl := generation.NewRateLimitError("limited", 0)
	assert.Equal(t, generation.DefaultRetryAfter, rl.RetryAfter)
}

func TestKindsDoNotCrossMatch(t *testing.T) {
	t.Parallel()

	err := generation.NewAuthError(401)
	assert.NotErrorIs(t, err, generation.ErrUpstream)
	assert.NotErrorIs(t, err, generation.ErrBudgetExceeded)
	assert.Equal(t, generation.KindInternal, generation.KindOf(errors.New("plain")))
	assert.Equal(t, generation.Kind(""), generation.KindOf(nil))
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.NoError(t, generation.Normalize(nil))

	typed := generation.NewTimeoutError(nil)
	assert.Same(t, typed, generation.Normalize(typed))

	plain := errors.New("database unavailable")
	normalized := generation.Normalize(plain)
	assert.Equal(t, generation.KindInternal, generation.KindOf(normalized))
	assert.ErrorIs(t, normalized, plain)
}

func TestRetryPolicy_RetriesUpstreamOnce(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	policy := generation.DefaultRetryPolicy()
	policy.Sleep = noSleep(&sleeps)

	attempts := 0
	err := policy.Do(context.Background(), discardLogger(), func(ctx context.Context, attempt int) error {
		attempts++
		if attempt == 1 {
			return generation.NewUpstreamError(500, nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, []time.Duration{2 * time.Second}, sleeps)
}

func TestRetryPolicy_SecondUpstreamFailureSurfaces(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	policy := generation.DefaultRetryPolicy()
	policy.Sleep = noSleep(&sleeps)

	attempts := 0
	err := policy.Do(context.Background(), discardLogger(), func(ctx context.Context, attempt int) error {
		attempts++
		return generation.NewUpstreamError(503, nil)
	})

	assert.ErrorIs(t, err, generation.ErrUpstream)
	assert.Equal(t, 2, attempts)
	assert.Len(t, sleeps, 1)
}

func TestRetryPolicy_NonRetryableErrors(t *testing.T) {
	t.Parallel()

	nonRetryable := []error{
		generation.NewTimeoutError(context.DeadlineExceeded),
		generation.NewRateLimitError("limited", time.Second),
		generation.NewAuthError(401),
		generation.NewNetworkError(errors.New("refused")),
		generation.NewInvalidResponseError("bad json", nil),
		generation.NewUpstreamError(400, nil),
	}

	for _, want := range nonRetryable {
		t.Run(string(generation.KindOf(want)), func(t *testing.T) {
			var sleeps []time.Duration
			policy := generation.DefaultRetryPolicy()
			policy.Sleep = noSleep(&sleeps)

			attempts := 0
			err := policy.Do(context.Background(), discardLogger(), func(ctx context.Context, attempt int) error {
				attempts++
				return want
			})

			assert.Same(t, want, err)
			assert.Equal(t, 1, attempts)
			assert.Empty(t, sleeps)
		})
	}
}

func TestRetryPolicy_ZeroValueMakesOneAttempt(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := generation.RetryPolicy{}.Do(context.Background(), nil, func(ctx context.Context, attempt int) error {
		attempts++
		return generation.NewUpstreamError(500, nil)
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryPolicy_CancelledDuringDelay(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := generation.RetryPolicy{MaxAttempts: 3, Delay: time.Hour}
	err := policy.Do(ctx, discardLogger(), func(ctx context.Context, attempt int) error {
		return generation.NewUpstreamError(500, nil)
	})

	assert.ErrorIs(t, err, generation.ErrTimeout)
}
