package loader

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/born-ml/splatexport/internal/model"
	"github.com/born-ml/splatexport/internal/tensor"
)

// Checkpoint keys.
const (
	DeformationPrefix = "deformation_net."
	GridPlanePrefix   = "deformation_net.grid.grids.0."
	GridAABBKey       = "deformation_net.grid.aabb"
	TrunkPrefix       = "deformation_net.feature_out."
)

// Metadata keys.
const (
	MetaSHDegree   = "sh_degree"
	MetaFeatureDim = "feature_dim"
	MetaMLPWidth   = "mlp_width"
	MetaMLPDepth   = "mlp_depth"
)

var attributeKeys = map[model.Attribute]string{
	model.AttrPositions: "_xyz",
	model.AttrScales:    "_scaling",
	model.AttrRotations: "_rotation",
	model.AttrOpacities: "_opacity",
	model.AttrSHDC:      "_features_dc",
	model.AttrSHRest:    "_features_rest",
}

// Option configures Load and Build.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report unrecognized tensors.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Load opens the checkpoint files and builds a model from them.
func Load(paths []string, opts ...Option) (*model.Model, error) {
	c, err := OpenCheckpoint(paths...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = c.Close() // Read-only, close error is irrelevant
	}()
	return Build(c, opts...)
}

// Build maps a tensor table onto a model.Model.
//
// Missing point attributes are left nil and reported by the exporter. The
// deformation network is only created when at least one deformation_net key is
// present.
func Build(src TensorSource, opts ...Option) (*model.Model, error) {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	b := &builder{
		src:   src,
		names: slices.Sorted(slices.Values(src.TensorNames())),
		used:  make(map[string]bool),
	}

	m := &model.Model{}
	for _, a := range model.Attributes() {
		t, err := b.optional(attributeKeys[a])
		if err != nil {
			return nil, err
		}
		if t != nil && !t.DType().IsFloat() {
			o.logger.Warn("point attribute is not floating point, values will be converted",
				"attribute", a.Name(), "dtype", t.DType().String())
		}
		m.Points.Set(a, t)
	}

	def, err := b.deformation()
	if err != nil {
		return nil, err
	}
	m.Deformation = def

	if err := applyMetadata(m, src.Metadata()); err != nil {
		return nil, err
	}

	for _, name := range b.names {
		if !b.used[name] {
			o.logger.Debug("ignoring unrecognized checkpoint tensor", "name", name)
		}
	}
	o.logger.Info("loaded checkpoint",
		"tensors", len(b.names),
		"points", m.Points.Count(),
		"sh_degree", m.SHDegree,
		"deformation", m.Deformation != nil)
	return m, nil
}

type builder struct {
	src   TensorSource
	names []string
	used  map[string]bool
}

func (b *builder) has(name string) bool {
	_, ok := slices.BinarySearch(b.names, name)
	return ok
}

func (b *builder) optional(name string) (*tensor.RawTensor, error) {
	if !b.has(name) {
		return nil, nil
	}
	t, err := b.src.LoadTensor(name)
	if err != nil {
		return nil, err
	}
	b.used[name] = true
	return t, nil
}

func (b *builder) deformation() (*model.Deformation, error) {
	if !slices.ContainsFunc(b.names, func(n string) bool { return strings.HasPrefix(n, DeformationPrefix) }) {
		return nil, nil
	}

	def := &model.Deformation{}

	grid := &model.FeatureGrid{}
	gridPresent := false
	for i, p := range model.Planes() {
		t, err := b.optional(GridPlanePrefix + strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		if t != nil {
			grid.Planes[p] = t
			gridPresent = true
		}
	}
	aabb, err := b.optional(GridAABBKey)
	if err != nil {
		return nil, err
	}
	if aabb != nil {
		grid.AABB = aabb
		gridPresent = true
	}
	if gridPresent {
		def.Grid = grid
	}

	trunk, err := b.sequential(TrunkPrefix)
	if err != nil {
		return nil, err
	}
	def.Trunk = trunk

	for _, k := range model.HeadKinds() {
		prefix := DeformationPrefix + k.Name() + "."
		if !slices.ContainsFunc(b.names, func(n string) bool { return strings.HasPrefix(n, prefix) }) {
			continue
		}
		layers, err := b.sequential(prefix)
		if err != nil {
			return nil, err
		}
		def.Heads[k] = &model.Head{Kind: k, Layers: layers}
	}
	return def, nil
}

// sequential rebuilds a sequential module from <prefix><i>.weight|bias keys.
// Indices without parameters become activation stages.
func (b *builder) sequential(prefix string) ([]model.Layer, error) {
	type params struct{ weight, bias string }
	found := map[int]*params{}

	for _, name := range b.names {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok {
			continue
		}
		idx, field, ok := strings.Cut(rest, ".")
		i, err := strconv.Atoi(idx)
		if !ok || err != nil || i < 0 {
			continue
		}
		p := found[i]
		if p == nil {
			p = &params{}
			found[i] = p
		}
		switch field {
		case "weight":
			p.weight = name
		case "bias":
			p.bias = name
		}
	}
	if len(found) == 0 {
		return nil, nil
	}

	last := slices.Max(slices.Collect(maps.Keys(found)))
	layers := make([]model.Layer, 0, last+1)
	for i := 0; i <= last; i++ {
		p := found[i]
		if p == nil || (p.weight == "" && p.bias == "") {
			layers = append(layers, model.Activation())
			continue
		}
		if p.weight == "" {
			return nil, fmt.Errorf("%s%d has a bias but no weight", prefix, i)
		}
		w, err := b.optional(p.weight)
		if err != nil {
			return nil, err
		}
		var bias *tensor.RawTensor
		if p.bias != "" {
			if bias, err = b.optional(p.bias); err != nil {
				return nil, err
			}
		}
		layers = append(layers, model.Linear(w, bias))
	}
	return layers, nil
}

func applyMetadata(m *model.Model, meta map[string]string) error {
	ints := map[string]int{}
	for _, key := range []string{MetaSHDegree, MetaFeatureDim, MetaMLPWidth, MetaMLPDepth} {
		v, ok := meta[key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("metadata %s=%q is not an integer: %w", key, v, err)
		}
		ints[key] = n
	}

	if d, ok := ints[MetaSHDegree]; ok {
		m.SHDegree = d
	} else if m.Points.SHRest != nil {
		d, err := model.InferSHDegree(m.Points.SHRest)
		if err != nil {
			return err
		}
		m.SHDegree = d
	}

	fd, okF := ints[MetaFeatureDim]
	mw, okW := ints[MetaMLPWidth]
	md, okD := ints[MetaMLPDepth]
	switch {
	case okF && okW && okD:
		m.Network = &model.NetworkShape{FeatureDim: fd, MLPWidth: mw, MLPDepth: md}
	case okF || okW || okD:
		return fmt.Errorf("%w: metadata must set all of %s, %s and %s",
			model.ErrNetworkShape, MetaFeatureDim, MetaMLPWidth, MetaMLPDepth)
	}
	return nil
}
