// Package fft3 implements a separable 3D real-to-complex transform on top of
// one-dimensional algo-fft plans.
//
// Data is row-major with z fastest. The forward transform keeps only the
// non-redundant half of the z axis (Fz/2+1 bins); the inverse rebuilds the
// other half from Hermitian symmetry. The inverse is normalized, so
// Inverse(Forward(x)) == x.
package fft3

import (
	"errors"
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// Errors returned by transforms.
var (
	ErrSize   = errors.New("fft3: transform size must be a positive power of two")
	ErrLength = errors.New("fft3: buffer length mismatch")
)

// Transform is a planned 3D real transform. A Transform owns scratch space
// and must not be used by more than one goroutine at a time.
type Transform struct {
	dims  [3]int
	half  int
	plans [3]*algofft.Plan[complex128]
	line  []complex128
	work  []complex128
}

// New plans a transform of the given real extent.
func New(dims [3]int) (*Transform, error) {
	t := &Transform{dims: dims, half: dims[2]/2 + 1}
	longest := 0
	for a, n := range dims {
		if n <= 0 || n&(n-1) != 0 {
			return nil, fmt.Errorf("%w: axis %d has size %d", ErrSize, a, n)
		}
		if n > 1 {
			plan, err := algofft.NewPlan64(n)
			if err != nil {
				return nil, fmt.Errorf("fft3: failed to create plan of size %d: %w", n, err)
			}
			t.plans[a] = plan
		}
		longest = max(longest, n)
	}
	t.line = make([]complex128, longest)
	t.work = make([]complex128, t.SpectrumLen())
	return t, nil
}

// Dims returns the real extent.
func (t *Transform) Dims() [3]int { return t.dims }

// SpectrumDims returns the extent of the half spectrum.
func (t *Transform) SpectrumDims() [3]int {
	return [3]int{t.dims[0], t.dims[1], t.half}
}

// SpectrumLen returns the number of complex bins of the half spectrum.
func (t *Transform) SpectrumLen() int {
	return t.dims[0] * t.dims[1] * t.half
}

// RealLen returns the number of real samples.
func (t *Transform) RealLen() int {
	return t.dims[0] * t.dims[1] * t.dims[2]
}

// Forward transforms src (RealLen values) into dst (SpectrumLen bins).
func (t *Transform) Forward(dst []complex128, src []float32) error {
	if len(src) != t.RealLen() || len(dst) != t.SpectrumLen() {
		return fmt.Errorf("%w: forward %d -> %d, want %d -> %d",
			ErrLength, len(src), len(dst), t.RealLen(), t.SpectrumLen())
	}
	fx, fy, fz := t.dims[0], t.dims[1], t.dims[2]
	line := t.line[:fz]
	for r := 0; r < fx*fy; r++ {
		row := src[r*fz : (r+1)*fz]
		for z, v := range row {
			line[z] = complex(float64(v), 0)
		}
		if err := t.forward(2, line); err != nil {
			return err
		}
		copy(dst[r*t.half:(r+1)*t.half], line[:t.half])
	}
	if err := t.pass(dst, 1, t.forward); err != nil {
		return err
	}
	return t.pass(dst, 0, t.forward)
}

// Inverse transforms src (SpectrumLen bins) into dst (RealLen values).
// src is not modified.
func (t *Transform) Inverse(dst []float32, src []complex128) error {
	if len(src) != t.SpectrumLen() || len(dst) != t.RealLen() {
		return fmt.Errorf("%w: inverse %d -> %d, want %d -> %d",
			ErrLength, len(src), len(dst), t.SpectrumLen(), t.RealLen())
	}
	work := t.work
	copy(work, src)
	if err := t.pass(work, 0, t.inverse); err != nil {
		return err
	}
	if err := t.pass(work, 1, t.inverse); err != nil {
		return err
	}

	fx, fy, fz := t.dims[0], t.dims[1], t.dims[2]
	line := t.line[:fz]
	for r := 0; r < fx*fy; r++ {
		bins := work[r*t.half : (r+1)*t.half]
		copy(line, bins)
		for k := t.half; k < fz; k++ {
			b := bins[fz-k]
			line[k] = complex(real(b), -imag(b))
		}
		if err := t.inverse(2, line); err != nil {
			return err
		}
		row := dst[r*fz : (r+1)*fz]
		for z := range row {
			row[z] = float32(real(line[z]))
		}
	}
	return nil
}

// pass runs fn over every line of the half spectrum along axis 0 or 1.
func (t *Transform) pass(spec []complex128, axis int, fn func(int, []complex128) error) error {
	n := t.dims[axis]
	if n == 1 {
		return nil
	}
	fx, fy, h := t.dims[0], t.dims[1], t.half
	line := t.line[:n]

	// Index of element i on the line through (a, k), where a runs over the
	// remaining spatial axis.
	var index func(a, k, i int) int
	var other int
	if axis == 1 {
		other = fx
		index = func(x, k, y int) int { return (x*fy+y)*h + k }
	} else {
		other = fy
		index = func(y, k, x int) int { return (x*fy+y)*h + k }
	}

	for a := 0; a < other; a++ {
		for k := 0; k < h; k++ {
			for i := range line {
				line[i] = spec[index(a, k, i)]
			}
			if err := fn(axis, line); err != nil {
				return err
			}
			for i, v := range line {
				spec[index(a, k, i)] = v
			}
		}
	}
	return nil
}

func (t *Transform) forward(axis int, line []complex128) error {
	if t.plans[axis] == nil {
		return nil
	}
	if err := t.plans[axis].Forward(line, line); err != nil {
		return fmt.Errorf("fft3: forward FFT failed: %w", err)
	}
	return nil
}

func (t *Transform) inverse(axis int, line []complex128) error {
	if t.plans[axis] == nil {
		return nil
	}
	if err := t.plans[axis].Inverse(line, line); err != nil {
		return fmt.Errorf("fft3: inverse FFT failed: %w", err)
	}
	return nil
}

// NextPowerOf2 returns the next power of 2 >= n.
func NextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
