// Package tensor provides a minimal n-dimensional float64 array and a
// versioned, self-describing binary codec for persisting it. The codec is
// deliberately independent of Go's gob encoding so that serialized
// fingerprints remain portable across implementations.
package tensor

import (
	"github.com/tongwu2020/mister-ed/pkg/errors"
)

// NDArray is a dense, row-major n-dimensional array of float64 values.
type NDArray struct {
	Shape []int
	Data  []float64
}

// New allocates a zero-filled NDArray with the given shape. Every dimension
// must be positive.
func New(shape ...int) (*NDArray, error) {
	if len(shape) == 0 {
		return nil, errors.NewConfigurationError("tensor.New", "shape must have at least one dimension", shape)
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, errors.NewConfigurationError("tensor.New", "dimensions must be positive", shape)
		}
		n *= d
	}
	return &NDArray{
		Shape: append([]int(nil), shape...),
		Data:  make([]float64, n),
	}, nil
}

// Full allocates an NDArray with every element set to v.
func Full(v float64, shape ...int) (*NDArray, error) {
	a, err := New(shape...)
	if err != nil {
		return nil, err
	}
	for i := range a.Data {
		a.Data[i] = v
	}
	return a, nil
}

// Len returns the total number of elements.
func (a *NDArray) Len() int {
	return len(a.Data)
}

// offset converts a multi-index to a flat offset. Panics on rank or bounds
// violations; indices are programmer-controlled, not data-controlled.
func (a *NDArray) offset(idx []int) int {
	if len(idx) != len(a.Shape) {
		panic("tensor: index rank does not match array rank")
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= a.Shape[i] {
			panic("tensor: index out of range")
		}
		off = off*a.Shape[i] + x
	}
	return off
}

// At returns the element at the given multi-index.
func (a *NDArray) At(idx ...int) float64 {
	return a.Data[a.offset(idx)]
}

// Set stores v at the given multi-index.
func (a *NDArray) Set(v float64, idx ...int) {
	a.Data[a.offset(idx)] = v
}

// Scale multiplies every element by s in place.
func (a *NDArray) Scale(s float64) {
	for i := range a.Data {
		a.Data[i] *= s
	}
}

// Clone returns a deep copy of the array.
func (a *NDArray) Clone() *NDArray {
	out := &NDArray{
		Shape: append([]int(nil), a.Shape...),
		Data:  append([]float64(nil), a.Data...),
	}
	return out
}

// Equal reports whether b has the same shape and bit-identical values.
func (a *NDArray) Equal(b *NDArray) bool {
	if b == nil || len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			return false
		}
	}
	return true
}
