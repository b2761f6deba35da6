package export

import (
	"log/slog"

	"github.com/born-ml/splatexport/internal/manifest"
	"github.com/born-ml/splatexport/internal/model"
	"github.com/born-ml/splatexport/internal/serialization"
)

// ExportGrid writes every present feature plane as plane_<axes>.raw.
// Absent planes are skipped; a nil grid yields an empty section.
func ExportGrid(w *serialization.RawWriter, grid *model.FeatureGrid, logger *slog.Logger) (manifest.Section[manifest.Descriptor], error) {
	var section manifest.Section[manifest.Descriptor]

	var jobs []serialization.Job
	for _, p := range model.Planes() {
		t := grid.Plane(p)
		if t == nil {
			logger.Debug("feature plane absent, skipping", "plane", p.Name())
			continue
		}
		jobs = append(jobs, serialization.Job{Name: p.Name(), Tensor: t})
	}

	descs, err := w.WriteAll(jobs)
	if err != nil {
		return section, err
	}
	for i, job := range jobs {
		section.Set(job.Name, descs[i])
		logger.Info("exported feature plane", "plane", job.Name, "shape", job.Tensor.Shape().String())
	}
	return section, nil
}
