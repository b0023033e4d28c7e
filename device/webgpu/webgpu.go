// Package webgpu runs device programs on a GPU through wgpu-native.
//
// Programs are compiled from their WGSL source on first use and cached per
// source text. Buffers are storage buffers; images are 3D r32float textures
// read with textureLoad. Dispatch only submits work; Wait and ReadBuffer
// block on the queue.
package webgpu

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/cwbudde/algo-fold/device"
)

// Device is a WebGPU accelerator. It is safe for concurrent use.
type Device struct {
	cfg  config
	log  *slog.Logger
	name string

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	dev      *wgpu.Device
	queue    *wgpu.Queue

	// mu serializes queue access and guards the fields below.
	mu        sync.Mutex
	pipelines map[string]*pipeline
	closed    bool
}

var _ device.Device = (*Device)(nil)

// New opens the preferred adapter. It fails with device.ErrUnavailable when
// no adapter or native library is present.
func New(opts ...Option) (d *Device, err error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			d = nil
			err = fmt.Errorf("%w: native library not available: %v", device.ErrUnavailable, r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return nil, fmt.Errorf("%w: failed to create instance", device.ErrUnavailable)
	}
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{PowerPreference: cfg.power})
	if err != nil || adapter == nil {
		// Fall back to whatever adapter the platform offers.
		adapter, err = instance.RequestAdapter(nil)
	}
	if err != nil || adapter == nil {
		instance.Release()
		return nil, fmt.Errorf("%w: request adapter: %v", device.ErrUnavailable, err)
	}

	info := adapter.GetInfo()
	limits := adapter.GetLimits()
	cfg.logger.Debug("webgpu adapter",
		"name", info.Name,
		"vendor", info.VendorName,
		"max_invocations", limits.Limits.MaxComputeInvocationsPerWorkgroup,
		"max_workgroup_storage", limits.Limits.MaxComputeWorkgroupStorageSize,
	)

	dev, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{})
	if err != nil || dev == nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("%w: request device: %v", device.ErrUnavailable, err)
	}

	return &Device{
		cfg:       cfg,
		log:       cfg.logger,
		name:      "webgpu/" + info.Name,
		instance:  instance,
		adapter:   adapter,
		dev:       dev,
		queue:     dev.GetQueue(),
		pipelines: make(map[string]*pipeline),
	}, nil
}

// Name identifies the backend and adapter.
func (d *Device) Name() string { return d.name }

// Limits returns the WebGPU baseline limits, which every device requested
// without explicit limits supports.
func (d *Device) Limits() device.Limits { return device.DefaultLimits() }

// NewBuffer allocates a zeroed storage buffer of n elements.
func (d *Device) NewBuffer(n int) (device.Buffer, error) {
	if n <= 0 {
		return nil, device.Wrap("new buffer", fmt.Errorf("%w: %d elements", device.ErrAlloc, n))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, device.Wrap("new buffer", device.ErrClosed)
	}
	buf, err := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "fold_buffer",
		Size:  uint64(n * 4),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, device.Wrap("new buffer", fmt.Errorf("%w: %v", device.ErrAlloc, err))
	}
	return &buffer{dev: d, buf: buf, n: n}, nil
}

// NewImage allocates a 3D image. Dims.Z is the texture width, Dims.Y its
// height and Dims.X its depth, so row-major data uploads unchanged.
func (d *Device) NewImage(dims device.Dim3) (device.Image, error) {
	m := d.Limits().MaxImageDim
	if !dims.Positive() || dims.X > m || dims.Y > m || dims.Z > m {
		return nil, device.Wrap("new image", fmt.Errorf("%w: image %v", device.ErrLimits, dims))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, device.Wrap("new image", device.ErrClosed)
	}
	tex, err := d.dev.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "fold_image",
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension3D,
		Size:          extent(dims),
		Format:        wgpu.TextureFormatR32Float,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, device.Wrap("new image", fmt.Errorf("%w: %v", device.ErrAlloc, err))
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, device.Wrap("new image", fmt.Errorf("%w: %v", device.ErrAlloc, err))
	}
	return &image{dev: d, tex: tex, view: view, dims: dims}, nil
}

func extent(dims device.Dim3) wgpu.Extent3D {
	return wgpu.Extent3D{
		Width:              uint32(dims.Z),
		Height:             uint32(dims.Y),
		DepthOrArrayLayers: uint32(dims.X),
	}
}

// WriteBuffer copies src into the start of dst.
func (d *Device) WriteBuffer(dst device.Buffer, src []float32) error {
	b, err := d.buffer(dst)
	if err != nil {
		return device.Wrap("write buffer", err)
	}
	if len(src) > b.n {
		return device.Wrap("write buffer", fmt.Errorf("%w: %d values into buffer of %d", device.ErrBinding, len(src), b.n))
	}
	if len(src) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.Wrap("write buffer", device.ErrClosed)
	}
	d.queue.WriteBuffer(b.buf, 0, wgpu.ToBytes(src))
	return nil
}

// WriteImage uploads src, row-major over dst.Dims().
func (d *Device) WriteImage(dst device.Image, src []float32) error {
	im, err := d.image(dst)
	if err != nil {
		return device.Wrap("write image", err)
	}
	if len(src) != im.dims.Count() {
		return device.Wrap("write image", fmt.Errorf("%w: %d values for image %v", device.ErrBinding, len(src), im.dims))
	}
	size := extent(im.dims)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.Wrap("write image", device.ErrClosed)
	}
	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: im.tex, Aspect: wgpu.TextureAspectAll},
		wgpu.ToBytes(src),
		&wgpu.TextureDataLayout{BytesPerRow: size.Width * 4, RowsPerImage: size.Height},
		&size,
	)
	return nil
}

// ReadBuffer copies the first len(dst) elements of src through a staging
// buffer. Mapping waits for every submitted launch.
func (d *Device) ReadBuffer(dst []float32, src device.Buffer) error {
	b, err := d.buffer(src)
	if err != nil {
		return device.Wrap("read buffer", err)
	}
	if len(dst) > b.n {
		return device.Wrap("read buffer", fmt.Errorf("%w: %d values from buffer of %d", device.ErrBinding, len(dst), b.n))
	}
	if len(dst) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.Wrap("read buffer", device.ErrClosed)
	}

	size := uint64(len(dst) * 4)
	staging, err := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "fold_staging",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return device.Wrap("read buffer", fmt.Errorf("%w: %v", device.ErrAlloc, err))
	}
	defer staging.Destroy()

	enc, err := d.dev.CreateCommandEncoder(nil)
	if err != nil {
		return device.Wrap("read buffer", fmt.Errorf("%w: %v", device.ErrLaunch, err))
	}
	enc.CopyBufferToBuffer(b.buf, 0, staging, 0, size)
	cmd, err := enc.Finish(nil)
	if err != nil {
		return device.Wrap("read buffer", fmt.Errorf("%w: %v", device.ErrLaunch, err))
	}
	d.queue.Submit(cmd)

	done := make(chan struct{})
	var mapErr error
	err = staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = fmt.Errorf("%w: map status %v", device.ErrLaunch, status)
		}
		close(done)
	})
	if err != nil {
		return device.Wrap("read buffer", fmt.Errorf("%w: %v", device.ErrLaunch, err))
	}

	timeout := time.After(d.cfg.readTimeout)
poll:
	for {
		d.dev.Poll(false, nil)
		select {
		case <-done:
			break poll
		case <-timeout:
			return device.Wrap("read buffer", fmt.Errorf("%w: mapping timed out after %v", device.ErrLaunch, d.cfg.readTimeout))
		default:
			time.Sleep(100 * time.Microsecond)
		}
	}
	if mapErr != nil {
		return device.Wrap("read buffer", mapErr)
	}

	data := staging.GetMappedRange(0, uint(size))
	if data == nil {
		return device.Wrap("read buffer", fmt.Errorf("%w: empty mapped range", device.ErrLaunch))
	}
	copy(dst, wgpu.FromBytes[float32](data))
	staging.Unmap()
	return nil
}

// Dispatch compiles p on first use and submits groups workgroups of it.
// It returns once the launch is queued.
func (d *Device) Dispatch(ctx context.Context, p *device.Program, groups device.Dim3, bindings ...device.Resource) error {
	op := "dispatch " + p.Name
	if err := ctx.Err(); err != nil {
		return device.Wrap(op, err)
	}
	if p.WGSL == "" {
		return device.Wrap(op, fmt.Errorf("%w: no WGSL source", device.ErrLaunch))
	}
	if err := p.Check(d.Limits(), groups); err != nil {
		return device.Wrap(op, err)
	}
	entries, err := d.entries(p.Bindings, bindings)
	if err != nil {
		return device.Wrap(op, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.Wrap(op, device.ErrClosed)
	}
	pl, err := d.pipeline(p)
	if err != nil {
		return device.Wrap(op, err)
	}

	bg, err := d.dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.Name + "_bind",
		Layout:  pl.layout,
		Entries: entries,
	})
	if err != nil {
		return device.Wrap(op, fmt.Errorf("%w: %v", device.ErrBinding, err))
	}
	defer bg.Release()

	enc, err := d.dev.CreateCommandEncoder(nil)
	if err != nil {
		return device.Wrap(op, fmt.Errorf("%w: %v", device.ErrLaunch, err))
	}
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(pl.compute)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(uint32(groups.X), uint32(groups.Y), uint32(groups.Z))
	pass.End()
	cmd, err := enc.Finish(nil)
	if err != nil {
		return device.Wrap(op, fmt.Errorf("%w: %v", device.ErrLaunch, err))
	}
	d.queue.Submit(cmd)
	return nil
}

// Wait blocks until every submitted launch finished.
func (d *Device) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return device.Wrap("wait", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.Wrap("wait", device.ErrClosed)
	}
	d.dev.Poll(true, nil)
	return ctx.Err()
}

// Close releases cached pipelines and the device. Resources still held by
// callers must not be used afterwards.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	for src, pl := range d.pipelines {
		pl.release()
		delete(d.pipelines, src)
	}
	d.dev.Release()
	d.adapter.Release()
	d.instance.Release()
	return nil
}
