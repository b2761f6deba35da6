package manifest

import "errors"

// Common errors.
var (
	// ErrManifestValue reports metadata that cannot be reduced to plain JSON
	// numbers and lists (for example a malformed or non-finite bounding box).
	ErrManifestValue = errors.New("manifest value not serializable")

	// ErrMalformed reports a manifest document that does not match the schema.
	ErrMalformed = errors.New("malformed manifest")
)
