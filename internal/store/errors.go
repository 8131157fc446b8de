package store

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every store implementation. Entity-specific
// errors wrap the generic ones so callers can match at either level.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a write would create a second copy of a
	// unique entity, such as another queue entry for the same page.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when the database rejects an entity on a
	// constraint. Check the wrapped error for details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a transaction cannot begin or commit.
	ErrTransactionFailed = errors.New("transaction failed")

	ErrPageNotFound       = fmt.Errorf("%w: page", ErrNotFound)
	ErrQueueEntryNotFound = fmt.Errorf("%w: queue entry", ErrNotFound)
	ErrQueueEntryExists   = fmt.Errorf("%w: queue entry", ErrDuplicate)
)

// IsNotFoundError reports whether err is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError reports whether err is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
