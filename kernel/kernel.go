// Package kernel provides validated convolution kernels.
//
// A [Kernel] can only be obtained through [New] or [FromVolume], both of which
// reject any axis of even size. Every Kernel therefore has a well-defined
// center at size/2 along each axis, and downstream code never re-checks
// kernel parity.
package kernel

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-fold/volume"
)

// Errors returned by kernel constructors.
var (
	ErrEvenSize = errors.New("kernel: axis size must be odd")
	ErrEmpty    = errors.New("kernel: empty weights")
	ErrAxis     = errors.New("kernel: axis out of range")
)

// Kernel is an odd-sized weight volume.
type Kernel struct {
	weights *volume.Volume
}

// New returns a kernel of the given shape holding a copy of the row-major
// weights.
func New(shape volume.Shape, weights []float32) (*Kernel, error) {
	if len(weights) == 0 {
		return nil, ErrEmpty
	}
	if err := checkOdd(shape); err != nil {
		return nil, err
	}
	data := make([]float32, len(weights))
	copy(data, weights)
	v, err := volume.FromSlice(shape, data)
	if err != nil {
		return nil, err
	}
	return &Kernel{weights: v}, nil
}

// FromVolume returns a kernel holding a copy of v, in v's storage order.
func FromVolume(v *volume.Volume) (*Kernel, error) {
	if v == nil || v.NumElements() == 0 {
		return nil, ErrEmpty
	}
	if err := checkOdd(v.Shape()); err != nil {
		return nil, err
	}
	return &Kernel{weights: v.Clone()}, nil
}

func checkOdd(shape volume.Shape) error {
	if err := shape.Validate(); err != nil {
		return err
	}
	for a, n := range shape {
		if n%2 == 0 {
			return fmt.Errorf("%w: axis %d has size %d", ErrEvenSize, a, n)
		}
	}
	return nil
}

// Shape returns the per-axis kernel size.
func (k *Kernel) Shape() volume.Shape { return k.weights.Shape() }

// Half returns size/2 along each axis.
func (k *Kernel) Half() [3]int {
	s := k.weights.Shape()
	return [3]int{s[0] / 2, s[1] / 2, s[2] / 2}
}

// Center returns the index of the kernel center; equal to Half.
func (k *Kernel) Center() [3]int { return k.Half() }

// Len returns the number of taps.
func (k *Kernel) Len() int { return k.weights.NumElements() }

// At returns the weight at (x, y, z).
func (k *Kernel) At(x, y, z int) float32 { return k.weights.At(x, y, z) }

// Weights returns the taps in row-major order. The slice must not be
// modified; it may alias the kernel's storage.
func (k *Kernel) Weights() []float32 { return k.weights.RowMajorData() }

// Volume returns a copy of the weights as a volume.
func (k *Kernel) Volume() *volume.Volume { return k.weights.Clone() }
