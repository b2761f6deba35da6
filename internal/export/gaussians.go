package export

import (
	"fmt"
	"log/slog"

	"github.com/born-ml/splatexport/internal/manifest"
	"github.com/born-ml/splatexport/internal/model"
	"github.com/born-ml/splatexport/internal/serialization"
)

// CheckPoints verifies that every canonical attribute is present and shares the
// point count of the positions tensor.
func CheckPoints(points *model.PointSet) error {
	for _, a := range model.Attributes() {
		if points.Get(a) == nil {
			return &MissingTensorError{Attribute: a.Name()}
		}
	}

	n := points.Count()
	for _, a := range model.Attributes() {
		t := points.Get(a)
		if t.Shape().Rank() == 0 || t.Dim(0) != n {
			return fmt.Errorf("%w: %s has shape %v, want leading dimension %d",
				ErrPointCountMismatch, a.Name(), t.Shape(), n)
		}
	}
	return nil
}

// ExportGaussians writes the six canonical attributes in their raw (unactivated)
// form. Nothing is written unless all attributes pass CheckPoints.
func ExportGaussians(w *serialization.RawWriter, points *model.PointSet, logger *slog.Logger) (manifest.Section[manifest.Descriptor], error) {
	var section manifest.Section[manifest.Descriptor]
	if err := CheckPoints(points); err != nil {
		return section, err
	}

	attrs := model.Attributes()
	jobs := make([]serialization.Job, len(attrs))
	for i, a := range attrs {
		jobs[i] = serialization.Job{Name: a.Name(), Tensor: points.Get(a)}
	}

	descs, err := w.WriteAll(jobs)
	if err != nil {
		return section, err
	}
	for i, a := range attrs {
		section.Set(a.Name(), descs[i])
	}

	logger.Info("exported canonical gaussians", "count", points.Count())
	return section, nil
}
