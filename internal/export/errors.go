package export

import (
	"errors"
	"fmt"

	"github.com/born-ml/splatexport/internal/model"
)

// Export errors.
var (
	ErrMandatoryTensorMissing = errors.New("mandatory tensor missing")
	ErrPointCountMismatch     = errors.New("attribute point count mismatch")
	ErrLayerShape             = errors.New("invalid layer shape")
	ErrNetworkShape           = model.ErrNetworkShape
)

// MissingTensorError names the canonical attribute that was absent.
type MissingTensorError struct {
	Attribute string
}

// Error implements the error interface.
func (e *MissingTensorError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMandatoryTensorMissing, e.Attribute)
}

// Unwrap returns ErrMandatoryTensorMissing.
func (e *MissingTensorError) Unwrap() error {
	return ErrMandatoryTensorMissing
}
