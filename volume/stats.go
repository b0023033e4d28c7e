package volume

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Sum returns the sum of all elements, accumulated in float64.
func Sum(v *Volume) float64 {
	var s float64
	for _, x := range v.data {
		s += float64(x)
	}
	return s
}

// L2Distance returns the Euclidean distance between a and b compared by
// logical index. Shapes must match.
func L2Distance(a, b *Volume) (float64, error) {
	diff, err := difference(a, b)
	if err != nil {
		return 0, err
	}
	sq := make([]float64, len(diff))
	vecmath.MulBlock(sq, diff, diff)

	var s float64
	for _, x := range sq {
		s += x
	}
	return math.Sqrt(s), nil
}

// L2Norm returns the Euclidean norm of v.
func L2Norm(v *Volume) float64 {
	var s float64
	for _, x := range v.data {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

// MaxAbsDiff returns the largest absolute elementwise difference.
func MaxAbsDiff(a, b *Volume) (float64, error) {
	diff, err := difference(a, b)
	if err != nil {
		return 0, err
	}
	maxDiff := 0.0
	for _, d := range diff {
		if d = math.Abs(d); d > maxDiff {
			maxDiff = d
		}
	}
	return maxDiff, nil
}

// difference returns a-b in a's storage order.
func difference(a, b *Volume) ([]float64, error) {
	if a.shape != b.shape {
		return nil, fmt.Errorf("%w: compare %v with %v", ErrShape, a.shape, b.shape)
	}
	diff := make([]float64, len(a.data))
	if a.order == b.order {
		for i := range a.data {
			diff[i] = float64(a.data[i]) - float64(b.data[i])
		}
		return diff, nil
	}
	a.each(func(x, y, z int, val float32) {
		diff[a.Index(x, y, z)] = float64(val) - float64(b.At(x, y, z))
	})
	return diff, nil
}
