package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/splatexport/internal/manifest"
	"github.com/born-ml/splatexport/internal/model"
	"github.com/born-ml/splatexport/internal/parallel"
	"github.com/born-ml/splatexport/internal/serialization"
)

// Exporter writes models into one output directory.
type Exporter struct {
	dir      string
	logger   *slog.Logger
	parallel parallel.Config
	clean    bool
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the logger. The default discards all records.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithParallel sets the worker configuration for blob writes within a stage.
func WithParallel(cfg parallel.Config) Option {
	return func(e *Exporter) {
		e.parallel = cfg
	}
}

// WithClean removes stale .raw files and the manifest from the output directory
// before writing. Off by default, files from earlier exports are kept.
func WithClean(clean bool) Option {
	return func(e *Exporter) {
		e.clean = clean
	}
}

// New creates an exporter targeting dir. The directory is created on Export.
func New(dir string, opts ...Option) *Exporter {
	e := &Exporter{
		dir:      dir,
		logger:   slog.New(slog.DiscardHandler),
		parallel: parallel.Sequential(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dir returns the output directory.
func (e *Exporter) Dir() string {
	return e.dir
}

// Export writes every tensor of m and then the manifest.
//
// Structural problems (missing attributes, inconsistent point counts, bad layer
// shapes or network shape) are detected before the directory is touched. Any
// failure returns before the manifest is written.
func (e *Exporter) Export(m *model.Model) (*manifest.Manifest, error) {
	if m == nil {
		return nil, errors.New("model is nil")
	}

	start := time.Now()
	log := e.logger.With("run_id", uuid.NewString(), "out", e.dir)

	network, err := m.ResolveNetwork()
	if err != nil {
		return nil, err
	}
	if err := CheckPoints(&m.Points); err != nil {
		return nil, err
	}
	if err := CheckDeformation(m.Deformation); err != nil {
		return nil, err
	}
	e.checkSHDegree(m, log)

	if err := e.prepareDir(log); err != nil {
		return nil, err
	}
	w, err := serialization.NewRawWriter(e.dir, serialization.WithParallel(e.parallel))
	if err != nil {
		return nil, err
	}

	gaussians, err := ExportGaussians(w, &m.Points, log)
	if err != nil {
		return nil, err
	}

	var grid *model.FeatureGrid
	if m.Deformation != nil {
		grid = m.Deformation.Grid
	}
	hexplane, err := ExportGrid(w, grid, log)
	if err != nil {
		return nil, err
	}

	mlp, err := ExportMLP(w, m.Deformation, log)
	if err != nil {
		return nil, err
	}

	var aabb any
	if grid != nil {
		aabb = grid.AABB
	}
	bounds, err := manifest.NormalizeAABB(aabb)
	if err != nil {
		return nil, err
	}
	if len(bounds) == 0 {
		log.Warn("grid bounding box missing, writing empty aabb")
	}

	doc, err := manifest.NewBuilder().
		Points(m.Points.Count(), m.SHDegree).
		AABB(bounds).
		Gaussians(gaussians).
		HexPlane(hexplane).
		MLP(mlp).
		Network(network).
		Build()
	if err != nil {
		return nil, err
	}
	if err := doc.WriteFile(e.dir); err != nil {
		return nil, err
	}

	log.Info("export complete",
		"gaussians", doc.NumGaussians,
		"planes", hexplane.Len(),
		"trunk_layers", len(mlp.Trunk),
		"heads", mlp.Heads.Len(),
		"files", len(doc.Tensors()),
		"elapsed", time.Since(start))
	return doc, nil
}

// prepareDir creates the output directory and removes a manifest left by an
// earlier export, so that a run failing partway never leaves a manifest that
// describes half-overwritten blobs. With clean set, stale .raw files go too.
func (e *Exporter) prepareDir(log *slog.Logger) error {
	//nolint:gosec // G301: Bundles are shared with the runtime
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	stale := []string{manifest.FileName}
	if e.clean {
		entries, err := os.ReadDir(e.dir)
		if err != nil {
			return fmt.Errorf("failed to list output directory: %w", err)
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), serialization.RawExt) {
				stale = append(stale, entry.Name())
			}
		}
	}

	removed := 0
	for _, name := range stale {
		err := os.Remove(filepath.Join(e.dir, name))
		switch {
		case err == nil:
			removed++
		case errors.Is(err, os.ErrNotExist):
		default:
			return fmt.Errorf("failed to remove stale file: %w", err)
		}
	}
	if removed > 0 {
		log.Debug("removed files from earlier export", "removed", removed, "clean", e.clean)
	}
	return nil
}

func (e *Exporter) checkSHDegree(m *model.Model, log *slog.Logger) {
	inferred, err := model.InferSHDegree(m.Points.SHRest)
	if err != nil {
		log.Warn("cannot infer SH degree from sh_rest", "error", err)
		return
	}
	if inferred != m.SHDegree {
		log.Warn("sh_degree does not match sh_rest coefficient count",
			"sh_degree", m.SHDegree, "inferred", inferred)
	}
}
