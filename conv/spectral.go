package conv

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-fold/internal/fft3"
	"github.com/cwbudde/algo-fold/kernel"
	"github.com/cwbudde/algo-fold/volume"
)

// maxCachedSpectra bounds the kernel spectrum cache.
const maxCachedSpectra = 32

var passThrough = volume.Shape{1, 1, 1}

// SpectralStrategy convolves through the frequency domain: forward
// transform of the zero-padded input, pointwise multiplication with the
// kernel spectrum, inverse transform.
//
// The transform extent per axis is the next power of two of
// shape+kernel-1, so the circular convolution never wraps onto the result.
// The inverse transform is normalized by the element count of that extent.
// Kernel spectra are cached per kernel and extent.
type SpectralStrategy struct {
	cfg Config

	mu         sync.Mutex
	spectra    map[spectrumKey][]complex128
	transforms map[[3]int]*sync.Pool
}

type spectrumKey struct {
	k    *kernel.Kernel
	dims [3]int
}

// NewSpectral returns a spectral strategy. Boundary, Extent and Workers are
// honoured; the device options are ignored.
func NewSpectral(opts ...Option) *SpectralStrategy {
	cfg := ApplyOptions(opts...)
	cfg.Algorithm = Spectral
	return &SpectralStrategy{
		cfg:        cfg,
		spectra:    make(map[spectrumKey][]complex128),
		transforms: make(map[[3]int]*sync.Pool),
	}
}

// Name returns "spectral".
func (s *SpectralStrategy) Name() string { return "spectral" }

// OutputShape returns the shape Convolve produces for an input of shape in.
func (s *SpectralStrategy) OutputShape(in volume.Shape, k *kernel.Kernel) (volume.Shape, error) {
	if k == nil {
		return volume.Shape{}, ErrNilInput
	}
	g, err := planGeometry(in, k.Shape(), s.cfg.Boundary, s.cfg.Extent)
	if err != nil {
		return volume.Shape{}, err
	}
	return g.out, nil
}

// TransformShape returns the real transform extent used for an input of
// shape in and a kernel of shape ks.
func TransformShape(in, ks volume.Shape) [3]int {
	var dims [3]int
	for a := range dims {
		dims[a] = fft3.NextPowerOf2(in[a] + ks[a] - 1)
	}
	return dims
}

// Convolve convolves a single volume.
func (s *SpectralStrategy) Convolve(ctx context.Context, in *volume.Volume, k *kernel.Kernel) (*volume.Volume, error) {
	outs, err := s.ConvolveBatch(ctx, []*volume.Volume{in}, k)
	if err != nil {
		return nil, err
	}
	return outs[0], nil
}

// ConvolveBatch runs Forward and Backward over a batch.
func (s *SpectralStrategy) ConvolveBatch(ctx context.Context, ins []*volume.Volume, k *kernel.Kernel) ([]*volume.Volume, error) {
	shape, err := batchShape(ins, k)
	if err != nil {
		return nil, err
	}
	if len(ins) == 0 {
		return nil, nil
	}
	freq, err := s.Forward(ctx, ins, k)
	if err != nil {
		return nil, err
	}
	outs, err := s.Backward(ctx, freq, shape)
	for i, out := range outs {
		if out != nil && ins[i].Order() != out.Order() {
			outs[i] = out.Reorder(ins[i].Order())
		}
	}
	return outs, err
}

// Forward transforms every input and multiplies it by the spectrum of k.
// A nil kernel yields plain transforms that Backward turns back into the
// inputs. Validation failures abort the whole call.
func (s *SpectralStrategy) Forward(ctx context.Context, ins []*volume.Volume, k *kernel.Kernel) ([]*FrequencyBuffer, error) {
	ks := passThrough
	if k != nil {
		ks = k.Shape()
	}
	for i, in := range ins {
		if in == nil {
			return nil, fmt.Errorf("%w: batch member %d", ErrNilInput, i)
		}
		if _, err := planGeometry(in.Shape(), ks, s.cfg.Boundary, s.cfg.Extent); err != nil {
			return nil, fmt.Errorf("batch member %d: %w", i, err)
		}
	}

	out := make([]*FrequencyBuffer, len(ins))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, in := range ins {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := s.forward(in, k, ks)
			if err != nil {
				return fmt.Errorf("batch member %d: %w", i, err)
			}
			out[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SpectralStrategy) forward(in *volume.Volume, k *kernel.Kernel, ks volume.Shape) (*FrequencyBuffer, error) {
	shape := in.Shape()
	dims := TransformShape(shape, ks)
	t, err := s.acquire(dims)
	if err != nil {
		return nil, err
	}
	defer s.release(t)

	samples := make([]float32, t.RealLen())
	src := in.RowMajorData()
	for x := 0; x < shape[0]; x++ {
		for y := 0; y < shape[1]; y++ {
			copy(samples[(x*dims[1]+y)*dims[2]:], src[(x*shape[1]+y)*shape[2]:(x*shape[1]+y+1)*shape[2]])
		}
	}
	bins := make([]complex128, t.SpectrumLen())
	if err := t.Forward(bins, samples); err != nil {
		return nil, err
	}

	if k != nil {
		spec, err := s.kernelSpectrum(t, k)
		if err != nil {
			return nil, err
		}
		for i, v := range spec {
			bins[i] *= v
		}
	}
	return &FrequencyBuffer{
		Bins:           bins,
		SourceShape:    shape,
		TransformShape: dims,
		KernelShape:    ks,
		Boundary:       s.cfg.Boundary,
		Extent:         s.cfg.Extent,
	}, nil
}

// kernelSpectrum returns the transform of k placed so that circular
// convolution with it correlates with k centered: tap d lands on
// (half-d) mod dims.
func (s *SpectralStrategy) kernelSpectrum(t *fft3.Transform, k *kernel.Kernel) ([]complex128, error) {
	key := spectrumKey{k: k, dims: t.Dims()}
	s.mu.Lock()
	spec, ok := s.spectra[key]
	s.mu.Unlock()
	if ok {
		return spec, nil
	}

	dims := t.Dims()
	ks := k.Shape()
	h := k.Half()
	wrap := func(v, n int) int { return ((v % n) + n) % n }
	taps := make([]float32, t.RealLen())
	for dx := 0; dx < ks[0]; dx++ {
		tx := wrap(h[0]-dx, dims[0])
		for dy := 0; dy < ks[1]; dy++ {
			ty := wrap(h[1]-dy, dims[1])
			for dz := 0; dz < ks[2]; dz++ {
				tz := wrap(h[2]-dz, dims[2])
				taps[(tx*dims[1]+ty)*dims[2]+tz] = k.At(dx, dy, dz)
			}
		}
	}
	spec = make([]complex128, t.SpectrumLen())
	if err := t.Forward(spec, taps); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if len(s.spectra) >= maxCachedSpectra {
		clear(s.spectra)
	}
	s.spectra[key] = spec
	s.mu.Unlock()
	return spec, nil
}

// Backward inverts every buffer into a volume of the target shape. A buffer
// that does not match shape fails with ErrTransformSize before any inverse
// transform runs; the other members are still computed and the failures are
// reported as a *BatchError.
func (s *SpectralStrategy) Backward(ctx context.Context, bufs []*FrequencyBuffer, shape volume.Shape) ([]*volume.Volume, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	outs := make([]*volume.Volume, len(bufs))
	errs := make([]error, len(bufs))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, f := range bufs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			outs[i], errs[i] = s.backward(f, shape)
			return nil
		})
	}
	_ = g.Wait()
	return outs, batchError(errs)
}

func (s *SpectralStrategy) backward(f *FrequencyBuffer, shape volume.Shape) (*volume.Volume, error) {
	if f == nil {
		return nil, ErrNilInput
	}
	if f.SourceShape != shape {
		return nil, fmt.Errorf("%w: buffer of %v, target %v", ErrTransformSize, f.SourceShape, shape)
	}
	if want := TransformShape(shape, f.KernelShape); f.TransformShape != want {
		return nil, fmt.Errorf("%w: transform %v, want %v", ErrTransformSize, f.TransformShape, want)
	}
	sd := f.SpectrumShape()
	if len(f.Bins) != sd[0]*sd[1]*sd[2] {
		return nil, fmt.Errorf("%w: %d bins, want %d", ErrTransformSize, len(f.Bins), sd[0]*sd[1]*sd[2])
	}
	g, err := planGeometry(shape, f.KernelShape, f.Boundary, f.Extent)
	if err != nil {
		return nil, err
	}

	dims := f.TransformShape
	t, err := s.acquire(dims)
	if err != nil {
		return nil, err
	}
	defer s.release(t)
	full := make([]float32, t.RealLen())
	if err := t.Inverse(full, f.Bins); err != nil {
		return nil, err
	}

	// full holds the zero-boundary response at input positions; region
	// position r reads it at r+base+half.
	h := [3]int{f.KernelShape[0] / 2, f.KernelShape[1] / 2, f.KernelShape[2] / 2}
	off := [3]int{g.base[0] + h[0], g.base[1] + h[1], g.base[2] + h[2]}
	out := make([]float32, g.out.Len())
	for x := 0; x < g.region[0]; x++ {
		for y := 0; y < g.region[1]; y++ {
			srcRow := ((x+off[0])*dims[1]+y+off[1])*dims[2] + off[2]
			dstRow := g.outIndex([3]int{x, y, 0})
			copy(out[dstRow:dstRow+g.region[2]], full[srcRow:srcRow+g.region[2]])
		}
	}
	return volume.FromSlice(g.out, out)
}

func (s *SpectralStrategy) acquire(dims [3]int) (*fft3.Transform, error) {
	s.mu.Lock()
	p, ok := s.transforms[dims]
	if !ok {
		p = &sync.Pool{}
		s.transforms[dims] = p
	}
	s.mu.Unlock()

	if t, ok := p.Get().(*fft3.Transform); ok {
		return t, nil
	}
	return fft3.New(dims)
}

func (s *SpectralStrategy) release(t *fft3.Transform) {
	s.mu.Lock()
	p := s.transforms[t.Dims()]
	s.mu.Unlock()
	p.Put(t)
}
