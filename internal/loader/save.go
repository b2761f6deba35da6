package loader

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/born-ml/splatexport/internal/manifest"
	"github.com/born-ml/splatexport/internal/model"
	"github.com/born-ml/splatexport/internal/serialization"
	"github.com/born-ml/splatexport/internal/tensor"
)

// Save writes m as a single SafeTensors checkpoint that Load maps back onto an
// equivalent model.
//
// Layer indices are kept, so activation stages between weighted layers survive
// as index gaps. Trailing activation stages and heads without any weighted
// layer have no tensors and are not recorded.
func Save(path string, m *model.Model) error {
	if m == nil {
		return errors.New("model is nil")
	}

	tensors := map[string]*tensor.RawTensor{}
	for _, a := range model.Attributes() {
		if t := m.Points.Get(a); t != nil {
			tensors[attributeKeys[a]] = t
		}
	}

	if def := m.Deformation; def != nil {
		if g := def.Grid; g != nil {
			for i, p := range model.Planes() {
				if t := g.Plane(p); t != nil {
					tensors[GridPlanePrefix+strconv.Itoa(i)] = t
				}
			}
			rows, err := manifest.NormalizeAABB(g.AABB)
			if err != nil {
				return err
			}
			if len(rows) == 2 {
				d := len(rows[0])
				aabb, err := tensor.FromFloat64(tensor.Shape{2, d}, append(rows[0], rows[1]...))
				if err != nil {
					return err
				}
				tensors[GridAABBKey] = aabb
			}
		}

		addLayers(tensors, TrunkPrefix, def.Trunk)
		for _, k := range model.HeadKinds() {
			if h := def.Head(k); h != nil {
				addLayers(tensors, DeformationPrefix+k.Name()+".", h.Layers)
			}
		}
	}

	meta := map[string]string{MetaSHDegree: strconv.Itoa(m.SHDegree)}
	if n := m.Network; n != nil {
		meta[MetaFeatureDim] = strconv.Itoa(n.FeatureDim)
		meta[MetaMLPWidth] = strconv.Itoa(n.MLPWidth)
		meta[MetaMLPDepth] = strconv.Itoa(n.MLPDepth)
	}

	if err := serialization.WriteSafeTensors(path, tensors, meta); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func addLayers(tensors map[string]*tensor.RawTensor, prefix string, layers []model.Layer) {
	for i, l := range layers {
		if !l.HasWeight() {
			continue
		}
		base := prefix + strconv.Itoa(i)
		tensors[base+".weight"] = l.Weight
		if l.Bias != nil {
			tensors[base+".bias"] = l.Bias
		}
	}
}
