package kernel

import (
	"fmt"

	"github.com/cwbudde/algo-fold/volume"
)

// Zero returns an all-zero kernel.
func Zero(shape volume.Shape) (*Kernel, error) {
	return build(shape, func(v *volume.Volume, _ [3]int) {})
}

// Ones returns a box kernel with every tap set to 1.
func Ones(shape volume.Shape) (*Kernel, error) {
	return build(shape, func(v *volume.Volume, _ [3]int) { v.Fill(1) })
}

// Identity returns a kernel with a single 1 at its center.
func Identity(shape volume.Shape) (*Kernel, error) {
	return build(shape, func(v *volume.Volume, c [3]int) {
		v.Set(c[0], c[1], c[2], 1)
	})
}

// AxisRamp returns a kernel that is non-zero only on the line through the
// center parallel to axis, holding 1..N along it.
func AxisRamp(shape volume.Shape, axis int) (*Kernel, error) {
	if axis < 0 || axis > 2 {
		return nil, fmt.Errorf("%w: %d", ErrAxis, axis)
	}
	return build(shape, func(v *volume.Volume, c [3]int) {
		for i := 0; i < shape[axis]; i++ {
			p := c
			p[axis] = i
			v.Set(p[0], p[1], p[2], float32(i+1))
		}
	})
}

func build(shape volume.Shape, fill func(v *volume.Volume, center [3]int)) (*Kernel, error) {
	if err := checkOdd(shape); err != nil {
		return nil, err
	}
	v, err := volume.New(shape)
	if err != nil {
		return nil, err
	}
	fill(v, [3]int{shape[0] / 2, shape[1] / 2, shape[2] / 2})
	return &Kernel{weights: v}, nil
}
