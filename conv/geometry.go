package conv

import (
	"fmt"

	"github.com/cwbudde/algo-fold/volume"
)

// geometry maps output positions to input reads for one strategy call.
//
// Only the output region [lo, lo+region) is computed; the rest of the
// output is zero. Region position r reads input r + base + d for kernel tap
// d, and any read outside the input is zero.
type geometry struct {
	in     volume.Shape
	out    volume.Shape
	kernel volume.Shape
	lo     [3]int
	region [3]int
	base   [3]int
}

func planGeometry(in, ks volume.Shape, b Boundary, e Extent) (geometry, error) {
	if err := in.Validate(); err != nil {
		return geometry{}, err
	}
	h := [3]int{ks[0] / 2, ks[1] / 2, ks[2] / 2}
	g := geometry{in: in, kernel: ks}

	switch b {
	case BoundaryZero:
		g.out = in
		g.region = in
		g.base = [3]int{-h[0], -h[1], -h[2]}
		return g, nil
	case BoundaryPadded:
	default:
		return geometry{}, fmt.Errorf("%w: boundary %v", ErrUnsupported, b)
	}

	interior := in.Shrink(h)
	if interior.Validate() != nil {
		return geometry{}, fmt.Errorf("%w: padded input %v has no interior for kernel %v", ErrShapeMismatch, in, ks)
	}
	g.region = interior
	switch e {
	case ExtentPadded:
		g.out = in
		g.lo = h
	case ExtentInterior:
		g.out = interior
	default:
		return geometry{}, fmt.Errorf("%w: extent %v", ErrUnsupported, e)
	}
	return g, nil
}

// outIndex returns the row-major output offset of region position r.
func (g *geometry) outIndex(r [3]int) int {
	return ((g.lo[0]+r[0])*g.out[1]+g.lo[1]+r[1])*g.out[2] + g.lo[2] + r[2]
}

// finish returns the row-major output data as a volume in the given order.
func finish(shape volume.Shape, data []float32, order volume.Order) (*volume.Volume, error) {
	out, err := volume.FromSlice(shape, data)
	if err != nil {
		return nil, err
	}
	if order != volume.RowMajor {
		out = out.Reorder(order)
	}
	return out, nil
}
