package manifest

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/splatexport/internal/tensor"
)

// NormalizeAABB converts a bounding box to a plain [min, max] pair of float64
// vectors.
//
// Accepted inputs: nil or an empty slice (no box, yields an empty list), [][]float64,
// [][]float32, [][]int, [2][3] and [2][4] arrays, a flat []float64 or []int of
// length 6 or 8, decoded JSON ([]any of rows or of numbers), a *tensor.RawTensor
// of shape (2, D) or (2D) and a gonum mat.Matrix of 2xD. Nil pointers count as
// no box.
// D must be 3 (spatial) or 4 (spatial + time) and every value must be finite.
func NormalizeAABB(v any) ([][]float64, error) {
	var rows [][]float64

	switch b := v.(type) {
	case nil:
		return [][]float64{}, nil
	case [][]float64:
		if len(b) == 0 {
			return [][]float64{}, nil
		}
		rows = make([][]float64, len(b))
		for i, r := range b {
			rows[i] = append([]float64(nil), r...)
		}
	case [][]float32:
		if len(b) == 0 {
			return [][]float64{}, nil
		}
		rows = make([][]float64, len(b))
		for i, r := range b {
			rows[i] = widen(r)
		}
	case [2][3]float64:
		rows = [][]float64{b[0][:], b[1][:]}
	case [2][4]float64:
		rows = [][]float64{b[0][:], b[1][:]}
	case [2][3]float32:
		rows = [][]float64{widen(b[0][:]), widen(b[1][:])}
	case [2][4]float32:
		rows = [][]float64{widen(b[0][:]), widen(b[1][:])}
	case [][]int:
		if len(b) == 0 {
			return [][]float64{}, nil
		}
		rows = make([][]float64, len(b))
		for i, r := range b {
			rows[i] = fromInts(r)
		}
	case [2][3]int:
		rows = [][]float64{fromInts(b[0][:]), fromInts(b[1][:])}
	case [2][4]int:
		rows = [][]float64{fromInts(b[0][:]), fromInts(b[1][:])}
	case []float64:
		if len(b) == 0 {
			return [][]float64{}, nil
		}
		rows = splitFlat(b)
	case []int:
		if len(b) == 0 {
			return [][]float64{}, nil
		}
		rows = splitFlat(fromInts(b))
	case []any:
		if len(b) == 0 {
			return [][]float64{}, nil
		}
		var err error
		if rows, err = fromAny(b); err != nil {
			return nil, err
		}
	case *tensor.RawTensor:
		if b == nil {
			return [][]float64{}, nil
		}
		switch s := b.Shape(); {
		case s.Rank() == 2 && s[0] == 2:
			values := b.ToFloat64()
			rows = [][]float64{values[:s[1]], values[s[1]:]}
		case s.Rank() == 1:
			rows = splitFlat(b.ToFloat64())
		default:
			return nil, fmt.Errorf("%w: aabb tensor has shape %v, want (2, D)", ErrManifestValue, s)
		}
	case mat.Matrix:
		if rv := reflect.ValueOf(b); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return [][]float64{}, nil
		}
		r, c := b.Dims()
		if r != 2 {
			return nil, fmt.Errorf("%w: aabb matrix is %dx%d, want 2xD", ErrManifestValue, r, c)
		}
		rows = [][]float64{mat.Row(nil, 0, b), mat.Row(nil, 1, b)}
	default:
		return nil, fmt.Errorf("%w: unsupported aabb type %T", ErrManifestValue, v)
	}

	if err := validateAABB(rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func validateAABB(rows [][]float64) error {
	if len(rows) != 2 {
		return fmt.Errorf("%w: aabb has %d rows, want 2 (min, max)", ErrManifestValue, len(rows))
	}
	if len(rows[0]) != len(rows[1]) {
		return fmt.Errorf("%w: aabb min has %d values but max has %d", ErrManifestValue, len(rows[0]), len(rows[1]))
	}
	if d := len(rows[0]); d != 3 && d != 4 {
		return fmt.Errorf("%w: aabb dimensionality %d, want 3 or 4", ErrManifestValue, d)
	}
	for _, r := range rows {
		for _, x := range r {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return fmt.Errorf("%w: aabb contains non-finite value %v", ErrManifestValue, x)
			}
		}
	}
	return nil
}

func widen(r []float32) []float64 {
	out := make([]float64, len(r))
	for i, x := range r {
		out[i] = float64(x)
	}
	return out
}

func fromInts(r []int) []float64 {
	out := make([]float64, len(r))
	for i, x := range r {
		out[i] = float64(x)
	}
	return out
}

// fromAny converts decoded JSON: either a list of rows or a flat list of numbers.
func fromAny(values []any) ([][]float64, error) {
	if _, nested := values[0].([]any); !nested {
		flat, err := anyNumbers(values)
		if err != nil {
			return nil, err
		}
		return splitFlat(flat), nil
	}
	rows := make([][]float64, len(values))
	for i, v := range values {
		row, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: aabb row %d is %T, want a list", ErrManifestValue, i, v)
		}
		var err error
		if rows[i], err = anyNumbers(row); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func anyNumbers(values []any) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case float64:
			out[i] = x
		case float32:
			out[i] = float64(x)
		case int:
			out[i] = float64(x)
		case int64:
			out[i] = float64(x)
		case json.Number:
			f, err := x.Float64()
			if err != nil {
				return nil, fmt.Errorf("%w: aabb value %q: %w", ErrManifestValue, x, err)
			}
			out[i] = f
		default:
			return nil, fmt.Errorf("%w: aabb value %v is %T, want a number", ErrManifestValue, v, v)
		}
	}
	return out, nil
}

func splitFlat(values []float64) [][]float64 {
	if len(values)%2 != 0 {
		return [][]float64{values}
	}
	h := len(values) / 2
	return [][]float64{append([]float64(nil), values[:h]...), append([]float64(nil), values[h:]...)}
}
