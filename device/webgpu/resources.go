package webgpu

import (
	"fmt"
	"sync/atomic"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/cwbudde/algo-fold/device"
)

type buffer struct {
	dev      *Device
	buf      *wgpu.Buffer
	n        int
	released atomic.Bool
}

func (b *buffer) Len() int { return b.n }

func (b *buffer) Release() {
	if b.released.CompareAndSwap(false, true) {
		b.buf.Destroy()
		b.buf.Release()
	}
}

type image struct {
	dev      *Device
	tex      *wgpu.Texture
	view     *wgpu.TextureView
	dims     device.Dim3
	released atomic.Bool
}

func (im *image) Dims() device.Dim3 { return im.dims }

func (im *image) Release() {
	if im.released.CompareAndSwap(false, true) {
		im.view.Release()
		im.tex.Release()
	}
}

func (d *Device) buffer(r device.Resource) (*buffer, error) {
	b, ok := r.(*buffer)
	switch {
	case !ok || b.dev != d:
		return nil, fmt.Errorf("%w: %T is not a buffer of this device", device.ErrBinding, r)
	case b.released.Load():
		return nil, fmt.Errorf("%w: buffer released", device.ErrBinding)
	}
	return b, nil
}

func (d *Device) image(r device.Resource) (*image, error) {
	im, ok := r.(*image)
	switch {
	case !ok || im.dev != d:
		return nil, fmt.Errorf("%w: %T is not an image of this device", device.ErrBinding, r)
	case im.released.Load():
		return nil, fmt.Errorf("%w: image released", device.ErrBinding)
	}
	return im, nil
}

// entries builds the bind group entries for a launch.
func (d *Device) entries(kinds []device.BindingKind, rs []device.Resource) ([]wgpu.BindGroupEntry, error) {
	if len(kinds) != len(rs) {
		return nil, fmt.Errorf("%w: program has %d bindings, got %d resources", device.ErrBinding, len(kinds), len(rs))
	}
	out := make([]wgpu.BindGroupEntry, len(kinds))
	for i, kind := range kinds {
		out[i].Binding = uint32(i)
		if kind == device.ImageRead {
			im, err := d.image(rs[i])
			if err != nil {
				return nil, fmt.Errorf("binding %d: %w", i, err)
			}
			out[i].TextureView = im.view
			continue
		}
		b, err := d.buffer(rs[i])
		if err != nil {
			return nil, fmt.Errorf("binding %d: %w", i, err)
		}
		out[i].Buffer = b.buf
		out[i].Size = b.buf.GetSize()
	}
	return out, nil
}

// layoutEntries mirrors the program's binding kinds.
func layoutEntries(kinds []device.BindingKind) []wgpu.BindGroupLayoutEntry {
	out := make([]wgpu.BindGroupLayoutEntry, len(kinds))
	for i, kind := range kinds {
		out[i] = wgpu.BindGroupLayoutEntry{Binding: uint32(i), Visibility: wgpu.ShaderStageCompute}
		switch kind {
		case device.BufferRead:
			out[i].Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}
		case device.BufferReadWrite:
			out[i].Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}
		case device.ImageRead:
			out[i].Texture = wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
				ViewDimension: wgpu.TextureViewDimension3D,
			}
		}
	}
	return out
}
