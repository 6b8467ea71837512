// Package tensor is the runtime array value the FFI boundary (pkg/ffi)
// passes to and from compiled components: a flat row-major buffer plus
// its shape.
//
// Grounded on original_source/itensor/src/lib.rs's Tensor (infer_shape,
// validate_and_flatten), translated from a PyO3 PyList walk into an
// equivalent walk over Go's any-typed nested slices.
package tensor

import (
	"fmt"

	"github.com/pkg/errors"
)

// Tensor is a dense array: Data holds its elements in row-major order,
// Shape its per-axis extents.
type Tensor struct {
	Data  []float32
	Shape []int
}

// New allocates a zero-filled Tensor of the given shape.
func New(shape []int) *Tensor {
	size := 1
	for _, d := range shape {
		size *= d
	}
	return &Tensor{Data: make([]float32, size), Shape: append([]int(nil), shape...)}
}

// FromNested builds a Tensor from nested []any slices of any depth whose
// leaves are float32, float64 or int values; typed slices such as
// [][]float32 or []float32 are rejected with an error. It infers the
// shape from the first element at each level,
// validating every sibling list agrees with it — the same two-pass
// infer-then-validate structure as itensor's infer_shape/
// validate_and_flatten.
func FromNested(elements any) (*Tensor, error) {
	shape, err := inferShape(elements)
	if err != nil {
		return nil, err
	}

	var data []float32
	if err := validateAndFlatten(elements, shape, 0, &data); err != nil {
		return nil, err
	}

	expected := 1
	for _, d := range shape {
		expected *= d
	}
	if len(data) != expected {
		return nil, errors.Errorf("tensor: data size %d does not match shape %v (expected %d)", len(data), shape, expected)
	}

	return &Tensor{Data: data, Shape: shape}, nil
}

func inferShape(elements any) ([]int, error) {
	var shape []int
	current := elements

	for {
		list, ok := current.([]any)
		if !ok {
			return nil, errors.New("tensor: expected a nested slice of []any")
		}
		shape = append(shape, len(list))
		if len(list) == 0 {
			break
		}
		if next, ok := list[0].([]any); ok {
			current = next
			continue
		}
		break
	}
	return shape, nil
}

func validateAndFlatten(elements any, shape []int, dim int, data *[]float32) error {
	if dim >= len(shape) {
		return errors.New("tensor: array has more dimensions than expected")
	}

	list, ok := elements.([]any)
	if !ok {
		return errors.Errorf("tensor: expected a list at dimension %d", dim)
	}
	if len(list) != shape[dim] {
		return errors.Errorf("tensor: inconsistent shape: expected %d elements at dimension %d, got %d", shape[dim], dim, len(list))
	}

	if dim == len(shape)-1 {
		for _, el := range list {
			v, err := toFloat32(el)
			if err != nil {
				return err
			}
			*data = append(*data, v)
		}
		return nil
	}

	for _, el := range list {
		if err := validateAndFlatten(el, shape, dim+1, data); err != nil {
			return err
		}
	}
	return nil
}

func toFloat32(v any) (float32, error) {
	switch n := v.(type) {
	case float32:
		return n, nil
	case float64:
		return float32(n), nil
	case int:
		return float32(n), nil
	default:
		return 0, fmt.Errorf("tensor: element %v is not numeric", v)
	}
}

// At returns the flat data index for the given per-axis coordinates,
// row-major.
func (t *Tensor) At(coords ...int) int {
	idx := 0
	for i, c := range coords {
		idx = idx*t.Shape[i] + c
	}
	return idx
}
