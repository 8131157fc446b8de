// Package domain defines the core business entities and errors.
package domain

import "errors"

// ErrValidation is wrapped by every entity validation error in this package,
// so callers can test for any of them with errors.Is.
var ErrValidation = errors.New("validation failed")
