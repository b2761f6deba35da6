package loader

import (
	"errors"
	"fmt"
	"sort"

	"github.com/born-ml/splatexport/internal/tensor"
)

// TensorSource is a named tensor table with string metadata.
type TensorSource interface {
	// TensorNames returns all tensor names, sorted.
	TensorNames() []string

	// LoadTensor loads a tensor by name.
	LoadTensor(name string) (*tensor.RawTensor, error)

	// Metadata returns the free-form string metadata.
	Metadata() map[string]string
}

// Checkpoint merges the tensor tables of several SafeTensors files.
type Checkpoint struct {
	readers  []*SafeTensorsReader
	owner    map[string]*SafeTensorsReader
	metadata map[string]string
}

// OpenCheckpoint opens every path and merges their tables.
// A tensor name defined in more than one file is an error; metadata keys from
// later files override earlier ones.
func OpenCheckpoint(paths ...string) (*Checkpoint, error) {
	if len(paths) == 0 {
		return nil, errors.New("no checkpoint files given")
	}

	c := &Checkpoint{
		owner:    make(map[string]*SafeTensorsReader),
		metadata: make(map[string]string),
	}
	for _, path := range paths {
		r, err := NewSafeTensorsReader(path)
		if err != nil {
			_ = c.Close() // Best effort, the open error wins
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		c.readers = append(c.readers, r)

		for _, name := range r.TensorNames() {
			if _, dup := c.owner[name]; dup {
				_ = c.Close()
				return nil, fmt.Errorf("tensor %s is defined in more than one checkpoint file", name)
			}
			c.owner[name] = r
		}
		for k, v := range r.Metadata() {
			c.metadata[k] = v
		}
	}
	return c, nil
}

// TensorNames returns all tensor names across files, sorted.
func (c *Checkpoint) TensorNames() []string {
	names := make([]string, 0, len(c.owner))
	for name := range c.owner {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadTensor loads a tensor from whichever file defines it.
func (c *Checkpoint) LoadTensor(name string) (*tensor.RawTensor, error) {
	r, ok := c.owner[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}
	return r.LoadTensor(name)
}

// Metadata returns the merged metadata.
func (c *Checkpoint) Metadata() map[string]string {
	return c.metadata
}

// Close closes every underlying file and returns the first error.
func (c *Checkpoint) Close() error {
	var first error
	for _, r := range c.readers {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	c.readers = nil
	return first
}
