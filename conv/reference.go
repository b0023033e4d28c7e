package conv

import (
	"context"
	"fmt"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-fold/kernel"
	"github.com/cwbudde/algo-fold/volume"
)

// DefaultOffsets returns the offsets that align the kernel center with the
// output position.
func DefaultOffsets(k *kernel.Kernel) [3]int {
	return k.Half()
}

// Reference correlates the padded input with k on the host and writes the
// result to out. It is the ground truth every other strategy is compared to.
//
// For every position i of the image region [half, shape-half) of padded it
// accumulates padded[i+d-offsets]*k[d] over all taps d in float64; reads
// outside padded contribute zero. out must either have the padded shape,
// in which case its border is set to zero, or the image shape.
func Reference(padded *volume.Volume, k *kernel.Kernel, out *volume.Volume, offsets [3]int) error {
	if padded == nil || k == nil || out == nil {
		return ErrNilInput
	}
	h := k.Half()
	ks := k.Shape()
	in := padded.Shape()
	interior := in.Shrink(h)
	if interior.Validate() != nil {
		return fmt.Errorf("%w: padded input %v has no interior for kernel %v", ErrShapeMismatch, in, ks)
	}
	for a, off := range offsets {
		if off < 0 {
			return fmt.Errorf("%w: axis %d offset %d", ErrOffset, a, off)
		}
	}

	var lo [3]int
	switch out.Shape() {
	case in:
		lo = h
	case interior:
	default:
		return fmt.Errorf("%w: output %v, want %v or %v", ErrShapeMismatch, out.Shape(), in, interior)
	}

	src := toFloat64(padded.RowMajorData())
	nz := interior[2]
	acc := make([]float64, nz)
	tmp := make([]float64, nz)

	out.Zero()
	for x := 0; x < interior[0]; x++ {
		for y := 0; y < interior[1]; y++ {
			clear(acc)
			for dx := 0; dx < ks[0]; dx++ {
				ix := x + h[0] + dx - offsets[0]
				if ix < 0 || ix >= in[0] {
					continue
				}
				for dy := 0; dy < ks[1]; dy++ {
					iy := y + h[1] + dy - offsets[1]
					if iy < 0 || iy >= in[1] {
						continue
					}
					row := src[(ix*in[1]+iy)*in[2] : (ix*in[1]+iy+1)*in[2]]
					for dz := 0; dz < ks[2]; dz++ {
						w := float64(k.At(dx, dy, dz))
						if w == 0 {
							continue
						}
						// Output z reads row[z+iz]; clip to the row.
						iz := h[2] + dz - offsets[2]
						zlo, zhi := max(0, -iz), min(nz, in[2]-iz)
						if zlo >= zhi {
							continue
						}
						n := zhi - zlo
						vecmath.ScaleBlock(tmp[:n], row[zlo+iz:zhi+iz], w)
						vecmath.AddBlockInPlace(acc[zlo:zhi], tmp[:n])
					}
				}
			}
			for z, v := range acc {
				out.Set(lo[0]+x, lo[1]+y, lo[2]+z, float32(v))
			}
		}
	}
	return nil
}

func toFloat64(src []float32) []float64 {
	dst := make([]float64, len(src))
	for i, v := range src {
		dst[i] = float64(v)
	}
	return dst
}

// ReferenceStrategy runs Reference behind the Strategy interface.
type ReferenceStrategy struct {
	cfg Config
}

// NewReference returns the host reference strategy. Only the Boundary and
// Extent options are used.
func NewReference(opts ...Option) *ReferenceStrategy {
	return &ReferenceStrategy{cfg: ApplyOptions(opts...)}
}

// Name returns "reference".
func (s *ReferenceStrategy) Name() string { return "reference" }

// OutputShape returns the shape Convolve produces for an input of shape in.
func (s *ReferenceStrategy) OutputShape(in volume.Shape, k *kernel.Kernel) (volume.Shape, error) {
	if k == nil {
		return volume.Shape{}, ErrNilInput
	}
	g, err := planGeometry(in, k.Shape(), s.cfg.Boundary, s.cfg.Extent)
	if err != nil {
		return volume.Shape{}, err
	}
	return g.out, nil
}

// Convolve correlates in with k.
func (s *ReferenceStrategy) Convolve(ctx context.Context, in *volume.Volume, k *kernel.Kernel) (*volume.Volume, error) {
	if in == nil || k == nil {
		return nil, ErrNilInput
	}
	shape, err := s.OutputShape(in.Shape(), k)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	padded := in
	if s.cfg.Boundary == BoundaryZero {
		if padded, err = volume.Pad(in, k.Half()); err != nil {
			return nil, err
		}
	}
	out, err := volume.NewOrdered(shape, in.Order())
	if err != nil {
		return nil, err
	}
	if err := Reference(padded, k, out, DefaultOffsets(k)); err != nil {
		return nil, err
	}
	return out, nil
}
