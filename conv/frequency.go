package conv

import (
	"sync"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-fold/volume"
)

// FrequencyBuffer is the half spectrum of one zero-padded real volume,
// optionally already multiplied by a kernel spectrum.
//
// Bins is row-major over SpectrumShape: the transform extent with the last
// axis reduced to TransformShape[2]/2+1 bins.
type FrequencyBuffer struct {
	Bins []complex128

	// SourceShape is the shape of the real volume that was transformed.
	SourceShape volume.Shape
	// TransformShape is the real extent of the transform.
	TransformShape [3]int
	// KernelShape is the shape of the applied kernel, 1x1x1 for a plain
	// transform.
	KernelShape volume.Shape

	Boundary Boundary
	Extent   Extent
}

// SpectrumShape returns the extent of Bins.
func (f *FrequencyBuffer) SpectrumShape() [3]int {
	t := f.TransformShape
	return [3]int{t[0], t[1], t[2]/2 + 1}
}

// DC returns the zero-frequency bin, the sum of the transformed volume.
func (f *FrequencyBuffer) DC() complex128 {
	if len(f.Bins) == 0 {
		return 0
	}
	return f.Bins[0]
}

type scratchBuf struct {
	data []float64
}

var scratchPool = sync.Pool{
	New: func() any { return &scratchBuf{} },
}

func getScratch(n int) (re, im []float64, buf *scratchBuf) {
	buf = scratchPool.Get().(*scratchBuf)
	need := 2 * n
	if cap(buf.data) < need {
		buf.data = make([]float64, need)
	} else {
		buf.data = buf.data[:need]
	}
	return buf.data[:n], buf.data[n:need], buf
}

func (f *FrequencyBuffer) split() (re, im []float64, buf *scratchBuf) {
	re, im, buf = getScratch(len(f.Bins))
	for i, c := range f.Bins {
		re[i] = real(c)
		im[i] = imag(c)
	}
	return re, im, buf
}

// Magnitude returns |X[k]| for every bin.
func (f *FrequencyBuffer) Magnitude() []float64 {
	if len(f.Bins) == 0 {
		return nil
	}
	out := make([]float64, len(f.Bins))
	re, im, buf := f.split()
	vecmath.Magnitude(out, re, im)
	scratchPool.Put(buf)
	return out
}

// Power returns |X[k]|^2 for every bin.
func (f *FrequencyBuffer) Power() []float64 {
	if len(f.Bins) == 0 {
		return nil
	}
	out := make([]float64, len(f.Bins))
	re, im, buf := f.split()
	vecmath.Power(out, re, im)
	scratchPool.Put(buf)
	return out
}
