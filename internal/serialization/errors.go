package serialization

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrInvalidName  = errors.New("invalid tensor name")
	ErrSizeMismatch = errors.New("file size does not match shape")
)

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Type    string // Type of error (e.g., "invalid_name", "size_mismatch")
	Tensor  string // Tensor name or file involved
	Details string // Additional details
	err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor != "" {
		return fmt.Sprintf("%s: tensor %q: %s", e.Type, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}

// Unwrap returns the sentinel error matching the validation type.
func (e *ValidationError) Unwrap() error {
	return e.err
}
