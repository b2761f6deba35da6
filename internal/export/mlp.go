package export

import (
	"fmt"
	"log/slog"

	"github.com/born-ml/splatexport/internal/manifest"
	"github.com/born-ml/splatexport/internal/model"
	"github.com/born-ml/splatexport/internal/serialization"
)

// CheckDeformation validates the weight-bearing layers of the trunk and of every
// present head. Weights must be (out, in) and a bias, when present, must hold
// exactly out values.
func CheckDeformation(def *model.Deformation) error {
	if def == nil {
		return nil
	}
	for i, l := range weightLayers(def.Trunk) {
		if err := checkLayer(manifest.TrunkKey(i), l); err != nil {
			return err
		}
	}
	for _, k := range model.HeadKinds() {
		h := def.Head(k)
		if h == nil {
			continue
		}
		for i, l := range weightLayers(h.Layers) {
			if err := checkLayer(layerName(k, i), l); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkLayer(name string, l model.Layer) error {
	ws := l.Weight.Shape()
	if ws.Rank() != 2 {
		return fmt.Errorf("%w: %s weight has shape %v, want (out, in)", ErrLayerShape, name, ws)
	}
	if l.Bias == nil {
		return nil
	}
	if bs := l.Bias.Shape(); bs.Rank() != 1 || bs[0] != ws[0] {
		return fmt.Errorf("%w: %s bias has shape %v, want (%d)", ErrLayerShape, name, bs, ws[0])
	}
	return nil
}

// weightLayers drops activation stages, so the position in the result is the
// compacted layer index used for keys and file names.
func weightLayers(layers []model.Layer) []model.Layer {
	var out []model.Layer
	for _, l := range layers {
		if l.HasWeight() {
			out = append(out, l)
		}
	}
	return out
}

func layerName(k model.HeadKind, i int) string {
	return fmt.Sprintf("%s_%d", k.Name(), i)
}

// ExportMLP writes the decoder trunk as feature_out_<i> layers followed by each
// present head in fixed order. A nil deformation yields an empty section.
func ExportMLP(w *serialization.RawWriter, def *model.Deformation, logger *slog.Logger) (manifest.MLPSection, error) {
	var section manifest.MLPSection
	if def == nil {
		logger.Debug("no deformation network, skipping decoder")
		return section, nil
	}
	if err := CheckDeformation(def); err != nil {
		return section, err
	}

	var jobs []serialization.Job
	add := func(base string, l model.Layer) {
		jobs = append(jobs, serialization.Job{Name: base + "_weight", Tensor: l.Weight})
		if l.Bias != nil {
			jobs = append(jobs, serialization.Job{Name: base + "_bias", Tensor: l.Bias})
		}
	}

	trunk := weightLayers(def.Trunk)
	for i, l := range trunk {
		add(manifest.TrunkKey(i), l)
	}

	type headPlan struct {
		kind   model.HeadKind
		layers []model.Layer
	}
	var heads []headPlan
	for _, k := range model.HeadKinds() {
		h := def.Head(k)
		if h == nil {
			logger.Debug("decoder head absent, skipping", "head", k.Name())
			continue
		}
		layers := weightLayers(h.Layers)
		for i, l := range layers {
			add(layerName(k, i), l)
		}
		heads = append(heads, headPlan{kind: k, layers: layers})
	}

	descs, err := w.WriteAll(jobs)
	if err != nil {
		return section, err
	}

	next := 0
	take := func(l model.Layer) manifest.LayerDescriptor {
		d := manifest.LayerDescriptor{WeightShape: descs[next].Shape, WeightFile: descs[next].File}
		next++
		if l.Bias != nil {
			d.BiasShape, d.BiasFile = descs[next].Shape, descs[next].File
			next++
		}
		return d
	}

	for _, l := range trunk {
		section.Trunk = append(section.Trunk, take(l))
	}
	logger.Info("exported decoder trunk", "layers", len(trunk))

	for _, h := range heads {
		hd := manifest.HeadDescriptor{
			OutputDim: h.kind.OutputDim(),
			Layers:    make([]manifest.LayerDescriptor, 0, len(h.layers)),
		}
		for _, l := range h.layers {
			hd.Layers = append(hd.Layers, take(l))
		}
		section.Heads.Set(h.kind.Name(), hd)

		if n := len(h.layers); n > 0 && h.layers[n-1].Weight.Dim(0) != hd.OutputDim {
			logger.Warn("decoder head output width differs from its declared output_dim",
				"head", h.kind.Name(), "width", h.layers[n-1].Weight.Dim(0), "output_dim", hd.OutputDim)
		}
		logger.Info("exported decoder head", "head", h.kind.Name(), "layers", len(h.layers), "output_dim", hd.OutputDim)
	}
	return section, nil
}
