package conv

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/cwbudde/algo-fold/device"
	"github.com/cwbudde/algo-fold/kernel"
	"github.com/cwbudde/algo-fold/volume"
)

// Strategy convolves one volume with one kernel.
type Strategy interface {
	Name() string
	// OutputShape returns the shape Convolve produces for an input of
	// shape in, or the validation error Convolve would return.
	OutputShape(in volume.Shape, k *kernel.Kernel) (volume.Shape, error)
	Convolve(ctx context.Context, in *volume.Volume, k *kernel.Kernel) (*volume.Volume, error)
}

// BatchStrategy is a Strategy that can convolve a batch of equally shaped
// volumes in a single call.
type BatchStrategy interface {
	Strategy
	ConvolveBatch(ctx context.Context, ins []*volume.Volume, k *kernel.Kernel) ([]*volume.Volume, error)
}

var (
	_ BatchStrategy = (*DeviceStrategy)(nil)
	_ BatchStrategy = (*SpectralStrategy)(nil)
	_ Strategy      = (*ReferenceStrategy)(nil)
)

// New returns the strategy selected by opts. Spatial strategies run their
// programs on dev; the spectral strategy runs on the host and ignores dev.
func New(dev device.Device, opts ...Option) (Strategy, error) {
	cfg := ApplyOptions(opts...)
	if cfg.Algorithm == Spectral {
		return NewSpectral(opts...), nil
	}
	return NewDevice(dev, opts...)
}

// DeviceStrategy runs direct or tiled programs on a device.
type DeviceStrategy struct {
	dev     device.Device
	cfg     Config
	program programBuilder
}

// NewDevice returns the spatial strategy for the configured addressing and
// staging.
func NewDevice(dev device.Device, opts ...Option) (*DeviceStrategy, error) {
	if dev == nil {
		return nil, fmt.Errorf("%w: device", ErrNilInput)
	}
	cfg := ApplyOptions(opts...)
	b, ok := programs[programKey{addressing: cfg.Addressing, staging: cfg.Staging}]
	if !ok {
		return nil, fmt.Errorf("%w: %v addressing with %v staging", ErrUnsupported, cfg.Addressing, cfg.Staging)
	}
	return &DeviceStrategy{dev: dev, cfg: cfg, program: b}, nil
}

// Name returns e.g. "tiled-image".
func (s *DeviceStrategy) Name() string {
	return s.cfg.Staging.String() + "-" + s.cfg.Addressing.String()
}

// Config returns the strategy configuration.
func (s *DeviceStrategy) Config() Config { return s.cfg }

// OutputShape returns the shape Convolve produces for an input of shape in.
func (s *DeviceStrategy) OutputShape(in volume.Shape, k *kernel.Kernel) (volume.Shape, error) {
	if k == nil {
		return volume.Shape{}, ErrNilInput
	}
	g, err := planGeometry(in, k.Shape(), s.cfg.Boundary, s.cfg.Extent)
	if err != nil {
		return volume.Shape{}, err
	}
	return g.out, nil
}

// Convolve convolves a single volume.
func (s *DeviceStrategy) Convolve(ctx context.Context, in *volume.Volume, k *kernel.Kernel) (*volume.Volume, error) {
	outs, err := s.ConvolveBatch(ctx, []*volume.Volume{in}, k)
	if err != nil {
		return nil, err
	}
	return outs[0], nil
}

// ConvolveBatch convolves all members with as few launches as the device
// limits allow, usually one. The batch succeeds or fails as a whole. Each
// output keeps the storage order of its input.
func (s *DeviceStrategy) ConvolveBatch(ctx context.Context, ins []*volume.Volume, k *kernel.Kernel) ([]*volume.Volume, error) {
	shape, err := batchShape(ins, k)
	if err != nil {
		return nil, err
	}
	if len(ins) == 0 {
		return nil, nil
	}
	g, err := planGeometry(shape, k.Shape(), s.cfg.Boundary, s.cfg.Extent)
	if err != nil {
		return nil, err
	}
	limits := s.dev.Limits()
	l, err := planLaunch(g, len(ins), s.cfg.Workgroup, limits, s.program)
	if err != nil {
		return nil, device.Wrap("plan "+s.Name(), err)
	}

	weights, err := s.dev.NewBuffer(k.Len())
	if err != nil {
		return nil, err
	}
	defer weights.Release()
	if err := s.dev.WriteBuffer(weights, k.Weights()); err != nil {
		return nil, err
	}

	outs := make([]*volume.Volume, 0, len(ins))
	for _, chunk := range lo.Chunk(ins, l.capacity(limits, s.cfg.Addressing == Image)) {
		cl := *l
		cl.members = len(chunk)
		res, err := s.dispatch(ctx, &cl, chunk, weights)
		if err != nil {
			return nil, err
		}
		outs = append(outs, res...)
	}
	return outs, nil
}

// dispatch runs one launch over members stacked along x.
func (s *DeviceStrategy) dispatch(ctx context.Context, l *launch, ins []*volume.Volume, weights device.Buffer) ([]*volume.Volume, error) {
	prog := s.program.build(l)
	groups := l.groups()
	if err := prog.Check(s.dev.Limits(), groups); err != nil {
		return nil, device.Wrap("plan "+s.Name(), err)
	}

	input, err := s.upload(l, ins)
	if err != nil {
		return nil, err
	}
	defer input.Release()

	n := l.out.Len()
	out, err := s.dev.NewBuffer(len(ins) * n)
	if err != nil {
		return nil, err
	}
	defer out.Release()

	if err := s.dev.Dispatch(ctx, prog, groups, input, weights, out); err != nil {
		return nil, err
	}
	if err := s.dev.Wait(ctx); err != nil {
		return nil, err
	}
	data := make([]float32, len(ins)*n)
	if err := s.dev.ReadBuffer(data, out); err != nil {
		return nil, err
	}

	outs := make([]*volume.Volume, len(ins))
	for i, in := range ins {
		if outs[i], err = finish(l.out, data[i*n:(i+1)*n:(i+1)*n], in.Order()); err != nil {
			return nil, err
		}
	}
	return outs, nil
}

// upload places all members back to back along x, in a buffer or an image.
func (s *DeviceStrategy) upload(l *launch, ins []*volume.Volume) (device.Resource, error) {
	n := l.in.Len()
	host := make([]float32, len(ins)*n)
	for i, in := range ins {
		copy(host[i*n:], in.RowMajorData())
	}

	if s.cfg.Addressing == Image {
		img, err := s.dev.NewImage(device.Dim3{X: len(ins) * l.in[0], Y: l.in[1], Z: l.in[2]})
		if err != nil {
			return nil, err
		}
		if err := s.dev.WriteImage(img, host); err != nil {
			img.Release()
			return nil, err
		}
		return img, nil
	}

	buf, err := s.dev.NewBuffer(len(host))
	if err != nil {
		return nil, err
	}
	if err := s.dev.WriteBuffer(buf, host); err != nil {
		buf.Release()
		return nil, err
	}
	return buf, nil
}

// batchShape validates a batch and returns the common shape of its members.
func batchShape(ins []*volume.Volume, k *kernel.Kernel) (volume.Shape, error) {
	if k == nil {
		return volume.Shape{}, fmt.Errorf("%w: kernel", ErrNilInput)
	}
	for i, in := range ins {
		if in == nil {
			return volume.Shape{}, fmt.Errorf("%w: batch member %d", ErrNilInput, i)
		}
	}
	if len(ins) == 0 {
		return volume.Shape{}, nil
	}
	shapes := lo.Uniq(lo.Map(ins, func(v *volume.Volume, _ int) volume.Shape { return v.Shape() }))
	if len(shapes) != 1 {
		return volume.Shape{}, fmt.Errorf("%w: batch members have shapes %v", ErrShapeMismatch, shapes)
	}
	return shapes[0], nil
}
