package volume

import (
	"errors"
	"fmt"
)

// Errors returned by volume constructors and views.
var (
	ErrShape  = errors.New("volume: invalid shape")
	ErrRank   = errors.New("volume: rank must be 3")
	ErrLength = errors.New("volume: storage length mismatch")
	ErrRange  = errors.New("volume: index range out of bounds")
)

// Order selects how the three logical axes map onto the flat buffer.
type Order uint8

const (
	// RowMajor stores the last axis (z) contiguously.
	RowMajor Order = iota

	// ColumnMajor stores the first axis (x) contiguously.
	ColumnMajor
)

// String returns a human-readable name for the storage order.
func (o Order) String() string {
	switch o {
	case RowMajor:
		return "row-major"
	case ColumnMajor:
		return "column-major"
	default:
		return fmt.Sprintf("Order(%d)", uint8(o))
	}
}

// Shape is the per-axis extent (X, Y, Z) of a volume.
type Shape [3]int

// ShapeOf converts a dynamic axis list into a Shape.
// It fails with ErrRank unless exactly three axes are given.
func ShapeOf(dims []int) (Shape, error) {
	if len(dims) != 3 {
		return Shape{}, fmt.Errorf("%w: got %d axes", ErrRank, len(dims))
	}
	s := Shape{dims[0], dims[1], dims[2]}
	if err := s.Validate(); err != nil {
		return Shape{}, err
	}
	return s, nil
}

// Validate reports ErrShape if any axis is not positive.
func (s Shape) Validate() error {
	for a, n := range s {
		if n <= 0 {
			return fmt.Errorf("%w: axis %d has size %d", ErrShape, a, n)
		}
	}
	return nil
}

// Len returns the number of elements X*Y*Z.
func (s Shape) Len() int {
	return s[0] * s[1] * s[2]
}

// Grow returns the shape enlarged by 2*pad[a] along each axis.
func (s Shape) Grow(pad [3]int) Shape {
	return Shape{s[0] + 2*pad[0], s[1] + 2*pad[1], s[2] + 2*pad[2]}
}

// Shrink returns the shape reduced by 2*pad[a] along each axis.
func (s Shape) Shrink(pad [3]int) Shape {
	return Shape{s[0] - 2*pad[0], s[1] - 2*pad[1], s[2] - 2*pad[2]}
}

// Strides returns the flat-index step of each axis for the given order.
func (s Shape) Strides(order Order) [3]int {
	if order == ColumnMajor {
		return [3]int{1, s[0], s[0] * s[1]}
	}
	return [3]int{s[1] * s[2], s[2], 1}
}

// String formats the shape as XxYxZ.
func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s[0], s[1], s[2])
}

// Volume is a dense 3D array of float32 values that owns its storage.
type Volume struct {
	shape   Shape
	order   Order
	strides [3]int
	data    []float32
}

// New returns a zero-filled row-major volume.
func New(shape Shape) (*Volume, error) {
	return NewOrdered(shape, RowMajor)
}

// NewOrdered returns a zero-filled volume with the given storage order.
func NewOrdered(shape Shape, order Order) (*Volume, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &Volume{
		shape:   shape,
		order:   order,
		strides: shape.Strides(order),
		data:    make([]float32, shape.Len()),
	}, nil
}

// FromSlice wraps row-major data without copying.
func FromSlice(shape Shape, data []float32) (*Volume, error) {
	return FromSliceOrdered(shape, RowMajor, data)
}

// FromSliceOrdered wraps data laid out in the given order without copying.
// The volume takes ownership of data; len(data) must equal shape.Len().
func FromSliceOrdered(shape Shape, order Order, data []float32) (*Volume, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(data) != shape.Len() {
		return nil, fmt.Errorf("%w: shape %v needs %d values, got %d", ErrLength, shape, shape.Len(), len(data))
	}
	return &Volume{
		shape:   shape,
		order:   order,
		strides: shape.Strides(order),
		data:    data,
	}, nil
}

// Shape returns the per-axis extent.
func (v *Volume) Shape() Shape { return v.shape }

// Order returns the storage order.
func (v *Volume) Order() Order { return v.order }

// Strides returns the flat-index step of each axis.
func (v *Volume) Strides() [3]int { return v.strides }

// Data returns the underlying contiguous storage.
func (v *Volume) Data() []float32 { return v.data }

// NumElements returns X*Y*Z.
func (v *Volume) NumElements() int { return len(v.data) }

// Index returns the flat offset of (x, y, z). No bounds checking is done.
func (v *Volume) Index(x, y, z int) int {
	return x*v.strides[0] + y*v.strides[1] + z*v.strides[2]
}

// At returns the value at (x, y, z).
func (v *Volume) At(x, y, z int) float32 {
	return v.data[v.Index(x, y, z)]
}

// Set stores val at (x, y, z).
func (v *Volume) Set(x, y, z int, val float32) {
	v.data[v.Index(x, y, z)] = val
}

// Fill sets every element to val.
func (v *Volume) Fill(val float32) {
	for i := range v.data {
		v.data[i] = val
	}
}

// Zero sets every element to 0.
func (v *Volume) Zero() {
	v.Fill(0)
}

// Clone returns a deep copy with the same shape and order.
func (v *Volume) Clone() *Volume {
	data := make([]float32, len(v.data))
	copy(data, v.data)
	return &Volume{shape: v.shape, order: v.order, strides: v.strides, data: data}
}

// Reorder returns a copy of v stored in the requested order.
// If v already uses that order the result is a plain clone.
func (v *Volume) Reorder(order Order) *Volume {
	if order == v.order {
		return v.Clone()
	}
	out := &Volume{
		shape:   v.shape,
		order:   order,
		strides: v.shape.Strides(order),
		data:    make([]float32, len(v.data)),
	}
	v.each(func(x, y, z int, val float32) {
		out.Set(x, y, z, val)
	})
	return out
}

// RowMajorData returns the values in row-major order. The returned slice
// aliases the storage when v is already row-major.
func (v *Volume) RowMajorData() []float32 {
	if v.order == RowMajor {
		return v.data
	}
	return v.Reorder(RowMajor).data
}

// CopyFrom copies the logical contents of src into v.
// Shapes must match; storage orders may differ.
func (v *Volume) CopyFrom(src *Volume) error {
	if src.shape != v.shape {
		return fmt.Errorf("%w: copy %v into %v", ErrShape, src.shape, v.shape)
	}
	if src.order == v.order {
		copy(v.data, src.data)
		return nil
	}
	src.each(func(x, y, z int, val float32) {
		v.Set(x, y, z, val)
	})
	return nil
}

// each visits every element in logical (x, y, z) order.
func (v *Volume) each(fn func(x, y, z int, val float32)) {
	for x := 0; x < v.shape[0]; x++ {
		for y := 0; y < v.shape[1]; y++ {
			for z := 0; z < v.shape[2]; z++ {
				fn(x, y, z, v.At(x, y, z))
			}
		}
	}
}
