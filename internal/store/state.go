package store

import (
	"context"
	"time"
)

// StateStore is a small key-value store for flags and short-lived markers.
// A zero TTL means the value does not expire.
type StateStore interface {
	// Get returns the value for key and whether a live value exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
