package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/phrazzld/copyblocks/internal/store"
)

// GetJSON decodes the value under key into v. It reports false when no live value exists.
func GetJSON(ctx context.Context, s store.StateStore, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decoding state %q: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s store.StateStore, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding state %q: %w", key, err)
	}
	return s.Set(ctx, key, string(raw), ttl)
}

// GetTime reads a timestamp stored with SetTime.
func GetTime(ctx context.Context, s store.StateStore, key string) (time.Time, bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("decoding state %q: %w", key, err)
	}
	return t, true, nil
}

// SetTime stores t under key in RFC 3339 form.
func SetTime(ctx context.Context, s store.StateStore, key string, t time.Time, ttl time.Duration) error {
	return s.Set(ctx, key, t.UTC().Format(time.RFC3339Nano), ttl)
}
