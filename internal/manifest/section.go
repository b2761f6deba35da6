package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/born-ml/splatexport/internal/model"
)

// Section is a JSON object whose keys keep insertion order.
type Section[T any] struct {
	keys   []string
	values map[string]T
}

// Set stores v under key. A new key is appended; an existing key keeps its position.
func (s *Section[T]) Set(key string, v T) {
	if s.values == nil {
		s.values = make(map[string]T)
	}
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = v
}

// Get returns the value stored under key.
func (s Section[T]) Get(key string) (T, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the keys in order.
func (s Section[T]) Keys() []string {
	return append([]string(nil), s.keys...)
}

// Len returns the number of entries.
func (s Section[T]) Len() int {
	return len(s.keys)
}

// MarshalJSON encodes the section as an object in key order.
func (s Section[T]) MarshalJSON() ([]byte, error) {
	return marshalOrdered(s.keys, func(i int) any { return s.values[s.keys[i]] })
}

// UnmarshalJSON decodes an object, preserving document key order.
func (s *Section[T]) UnmarshalJSON(data []byte) error {
	*s = Section[T]{}
	return decodeOrdered(data, func(key string, raw json.RawMessage) error {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		s.Set(key, v)
		return nil
	})
}

// LayerDescriptor describes one weight-bearing MLP layer.
// Bias fields are empty when the layer has no bias.
type LayerDescriptor struct {
	WeightShape []int  `json:"weight_shape"`
	WeightFile  string `json:"weight_file"`
	BiasShape   []int  `json:"bias_shape,omitempty"`
	BiasFile    string `json:"bias_file,omitempty"`
}

// HasBias reports whether a bias file was exported for the layer.
func (l LayerDescriptor) HasBias() bool {
	return l.BiasFile != ""
}

// HeadDescriptor describes one decoder head.
type HeadDescriptor struct {
	OutputDim int               `json:"output_dim"`
	Layers    []LayerDescriptor `json:"layers"`
}

// TrunkPrefix prefixes the keys (and file names) of trunk layers.
const TrunkPrefix = "feature_out_"

// TrunkKey returns the manifest key of the i-th weight-bearing trunk layer.
func TrunkKey(i int) string {
	return TrunkPrefix + strconv.Itoa(i)
}

// MLPSection is the "mlp" object: trunk layers flattened as feature_out_<i>
// keys followed by one entry per exported head.
type MLPSection struct {
	Trunk []LayerDescriptor
	Heads Section[HeadDescriptor]
}

// MarshalJSON encodes trunk keys first, then heads in order.
func (s MLPSection) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(s.Trunk)+s.Heads.Len())
	for i := range s.Trunk {
		keys = append(keys, TrunkKey(i))
	}
	keys = append(keys, s.Heads.keys...)

	return marshalOrdered(keys, func(i int) any {
		if i < len(s.Trunk) {
			return s.Trunk[i]
		}
		return s.Heads.values[keys[i]]
	})
}

// UnmarshalJSON splits feature_out_<i> keys into the trunk (ordered by index)
// and treats every other key as a head.
func (s *MLPSection) UnmarshalJSON(data []byte) error {
	*s = MLPSection{}
	trunk := map[int]LayerDescriptor{}

	err := decodeOrdered(data, func(key string, raw json.RawMessage) error {
		if idx, ok := strings.CutPrefix(key, TrunkPrefix); ok {
			i, err := strconv.Atoi(idx)
			if err != nil || i < 0 || TrunkKey(i) != key {
				return fmt.Errorf("%w: trunk key %q has no canonical layer index", ErrMalformed, key)
			}
			if _, dup := trunk[i]; dup {
				return fmt.Errorf("%w: trunk key %q appears twice", ErrMalformed, key)
			}
			var l LayerDescriptor
			if err := json.Unmarshal(raw, &l); err != nil {
				return fmt.Errorf("key %q: %w", key, err)
			}
			trunk[i] = l
			return nil
		}

		if _, err := model.ParseHeadKind(key); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		var h HeadDescriptor
		if err := json.Unmarshal(raw, &h); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		s.Heads.Set(key, h)
		return nil
	})
	if err != nil {
		return err
	}

	indices := make([]int, 0, len(trunk))
	for i := range trunk {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	for pos, i := range indices {
		if i != pos {
			return fmt.Errorf("%w: trunk layer indices are not contiguous (missing %s)", ErrMalformed, TrunkKey(pos))
		}
		s.Trunk = append(s.Trunk, trunk[i])
	}
	return nil
}

func marshalOrdered(keys []string, value func(i int) any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(value(i))
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeOrdered(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil // null leaves the section empty
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: expected object, got %v", ErrMalformed, tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: expected object key, got %v", ErrMalformed, tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil && err != io.EOF {
		return err
	}
	return nil
}
