package serialization

import (
	"fmt"
	"strings"
)

// MaxTensorNameLen bounds logical tensor names (file names add the extension).
const MaxTensorNameLen = 200

// ValidateTensorName checks that a logical name maps to a file inside the bundle
// directory.
func ValidateTensorName(name string) error {
	invalid := func(details string) error {
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: details, err: ErrInvalidName}
	}

	if name == "" {
		return invalid("empty name")
	}

	if len(name) > MaxTensorNameLen {
		return invalid(fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen))
	}

	// Path traversal prevention.
	if strings.Contains(name, "..") {
		return invalid("contains '..' (path traversal attempt)")
	}

	// Prevent absolute paths and directory separators.
	if strings.ContainsAny(name, `/\`) {
		return invalid("contains path separator (/ or \\)")
	}

	// Prevent null bytes (can bypass length checks in some contexts).
	if strings.Contains(name, "\x00") {
		return invalid("contains null byte")
	}

	return nil
}
