package host

import (
	"fmt"
	"sync/atomic"

	"github.com/cwbudde/algo-fold/device"
)

type buffer struct {
	dev      *Device
	data     []float32
	released atomic.Bool
}

func (b *buffer) Len() int { return len(b.data) }

func (b *buffer) Release() {
	if b.released.CompareAndSwap(false, true) {
		b.dev.free(len(b.data))
	}
}

type image struct {
	dev      *Device
	dims     device.Dim3
	data     []float32
	released atomic.Bool
}

func (im *image) Dims() device.Dim3 { return im.dims }

func (im *image) Load(x, y, z int) float32 {
	d := im.dims
	if x < 0 || y < 0 || z < 0 || x >= d.X || y >= d.Y || z >= d.Z {
		panic(fmt.Sprintf("host: image load (%d,%d,%d) outside %v", x, y, z, d))
	}
	return im.data[(x*d.Y+y)*d.Z+z]
}

func (im *image) Release() {
	if im.released.CompareAndSwap(false, true) {
		im.dev.free(len(im.data))
	}
}

// resources resolves binding indices for host phases.
type resources struct {
	buffers [][]float32
	images  []*image
}

func (r *resources) Buffer(i int) []float32 { return r.buffers[i] }

func (r *resources) Image(i int) device.ImageView { return r.images[i] }

func (d *Device) bind(kinds []device.BindingKind, rs []device.Resource) (*resources, error) {
	if len(rs) != len(kinds) {
		return nil, fmt.Errorf("%w: program declares %d bindings, got %d", device.ErrBinding, len(kinds), len(rs))
	}
	res := &resources{
		buffers: make([][]float32, len(kinds)),
		images:  make([]*image, len(kinds)),
	}
	for i, kind := range kinds {
		switch kind {
		case device.BufferRead, device.BufferReadWrite:
			b, err := d.buffer(rs[i])
			if err != nil {
				return nil, fmt.Errorf("binding %d: %w", i, err)
			}
			res.buffers[i] = b.data
		case device.ImageRead:
			im, err := d.image(rs[i])
			if err != nil {
				return nil, fmt.Errorf("binding %d: %w", i, err)
			}
			res.images[i] = im
		default:
			return nil, fmt.Errorf("%w: binding %d has kind %v", device.ErrBinding, i, kind)
		}
	}
	return res, nil
}

func (d *Device) buffer(r device.Resource) (*buffer, error) {
	b, ok := r.(*buffer)
	if !ok || b.dev != d {
		return nil, fmt.Errorf("%w: %T is not a buffer of this device", device.ErrBinding, r)
	}
	if b.released.Load() {
		return nil, fmt.Errorf("%w: buffer released", device.ErrBinding)
	}
	return b, nil
}

func (d *Device) image(r device.Resource) (*image, error) {
	im, ok := r.(*image)
	if !ok || im.dev != d {
		return nil, fmt.Errorf("%w: %T is not an image of this device", device.ErrBinding, r)
	}
	if im.released.Load() {
		return nil, fmt.Errorf("%w: image released", device.ErrBinding)
	}
	return im, nil
}
