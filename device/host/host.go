// Package host implements a software accelerator.
//
// Workgroups of a launch are scheduled on a bounded set of worker slots that
// is shared by every launch of the device. Each workgroup runs on a single
// goroutine: the program's phases are executed for all local invocations in
// turn, which provides the barrier between phases. Workgroup scratch memory
// comes from a pool and is zeroed before use, like WGSL workgroup variables.
package host

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/cwbudde/algo-fold/device"
)

// Device is a software accelerator. It is safe for concurrent use.
type Device struct {
	cfg     config
	slots   *semaphore.Weighted
	scratch sync.Pool

	mu     sync.Mutex
	live   int
	closed bool
}

var _ device.Device = (*Device)(nil)

// New returns a host device.
func New(opts ...Option) *Device {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Device{
		cfg:   cfg,
		slots: semaphore.NewWeighted(int64(cfg.workers)),
		scratch: sync.Pool{
			New: func() any { return new([]float32) },
		},
	}
}

// Name identifies the backend and its worker count.
func (d *Device) Name() string { return fmt.Sprintf("host/%d", d.cfg.workers) }

// Limits returns the launch limits.
func (d *Device) Limits() device.Limits { return d.cfg.limits }

// Workers returns the number of concurrently executing workgroups.
func (d *Device) Workers() int { return d.cfg.workers }

// NewBuffer allocates a zeroed buffer of n elements.
func (d *Device) NewBuffer(n int) (device.Buffer, error) {
	if err := d.alloc(n); err != nil {
		return nil, device.Wrap("new buffer", err)
	}
	return &buffer{dev: d, data: make([]float32, n)}, nil
}

// NewImage allocates a zeroed image.
func (d *Device) NewImage(dims device.Dim3) (device.Image, error) {
	m := d.cfg.limits.MaxImageDim
	if !dims.Positive() || dims.X > m || dims.Y > m || dims.Z > m {
		return nil, device.Wrap("new image", fmt.Errorf("%w: image %v", device.ErrLimits, dims))
	}
	if err := d.alloc(dims.Count()); err != nil {
		return nil, device.Wrap("new image", err)
	}
	return &image{dev: d, dims: dims, data: make([]float32, dims.Count())}, nil
}

func (d *Device) alloc(n int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return device.ErrClosed
	}
	if n <= 0 {
		return fmt.Errorf("%w: %d elements", device.ErrAlloc, n)
	}
	if d.cfg.memoryLimit > 0 && d.live+n > d.cfg.memoryLimit {
		return fmt.Errorf("%w: %d elements live, %d requested, limit %d", device.ErrAlloc, d.live, n, d.cfg.memoryLimit)
	}
	d.live += n
	return nil
}

func (d *Device) free(n int) {
	d.mu.Lock()
	d.live -= n
	d.mu.Unlock()
}

// Live returns the number of allocated float32 elements.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

func (d *Device) checkOpen() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.ErrClosed
	}
	return nil
}

// WriteBuffer copies src into the start of dst.
func (d *Device) WriteBuffer(dst device.Buffer, src []float32) error {
	if err := d.checkOpen(); err != nil {
		return device.Wrap("write buffer", err)
	}
	b, err := d.buffer(dst)
	if err != nil {
		return device.Wrap("write buffer", err)
	}
	if len(src) > len(b.data) {
		return device.Wrap("write buffer", fmt.Errorf("%w: %d values into %d", device.ErrBinding, len(src), len(b.data)))
	}
	copy(b.data, src)
	return nil
}

// ReadBuffer copies the first len(dst) elements of src.
func (d *Device) ReadBuffer(dst []float32, src device.Buffer) error {
	if err := d.checkOpen(); err != nil {
		return device.Wrap("read buffer", err)
	}
	b, err := d.buffer(src)
	if err != nil {
		return device.Wrap("read buffer", err)
	}
	if len(dst) > len(b.data) {
		return device.Wrap("read buffer", fmt.Errorf("%w: %d values from %d", device.ErrBinding, len(dst), len(b.data)))
	}
	copy(dst, b.data)
	return nil
}

// WriteImage uploads row-major src into dst.
func (d *Device) WriteImage(dst device.Image, src []float32) error {
	if err := d.checkOpen(); err != nil {
		return device.Wrap("write image", err)
	}
	im, err := d.image(dst)
	if err != nil {
		return device.Wrap("write image", err)
	}
	if len(src) != len(im.data) {
		return device.Wrap("write image", fmt.Errorf("%w: %d values for image %v", device.ErrBinding, len(src), im.dims))
	}
	copy(im.data, src)
	return nil
}

// Dispatch runs p over groups workgroups and returns once all of them have
// finished.
func (d *Device) Dispatch(ctx context.Context, p *device.Program, groups device.Dim3, bindings ...device.Resource) error {
	op := "dispatch " + p.Name
	if err := d.checkOpen(); err != nil {
		return device.Wrap(op, err)
	}
	if len(p.Phases) == 0 {
		return device.Wrap(op, fmt.Errorf("%w: no host phases", device.ErrLaunch))
	}
	if err := p.Check(d.cfg.limits, groups); err != nil {
		return device.Wrap(op, err)
	}
	res, err := d.bind(p.Bindings, bindings)
	if err != nil {
		return device.Wrap(op, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	total := groups.Count()
	for i := 0; i < total; i++ {
		if err := d.slots.Acquire(gctx, 1); err != nil {
			break
		}
		group := device.Dim3{
			X: i / (groups.Y * groups.Z),
			Y: (i / groups.Z) % groups.Y,
			Z: i % groups.Z,
		}
		g.Go(func() error {
			defer d.slots.Release(1)
			return d.runGroup(p, group, res)
		})
	}
	if err := g.Wait(); err != nil {
		return device.Wrap(op, err)
	}
	return ctx.Err()
}

func (d *Device) runGroup(p *device.Program, group device.Dim3, res *resources) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: workgroup %v: %v", device.ErrLaunch, group, r)
		}
	}()

	scratch := d.getScratch(p.SharedFloats)
	defer d.scratch.Put(scratch)
	shared := *scratch

	wg := p.Workgroup
	base := device.Dim3{X: group.X * wg.X, Y: group.Y * wg.Y, Z: group.Z * wg.Z}
	inv := device.Invocation{Group: group}
	for _, phase := range p.Phases {
		inv.LocalIndex = 0
		for lz := 0; lz < wg.Z; lz++ {
			for ly := 0; ly < wg.Y; ly++ {
				for lx := 0; lx < wg.X; lx++ {
					inv.Local = device.Dim3{X: lx, Y: ly, Z: lz}
					inv.Global = device.Dim3{X: base.X + lx, Y: base.Y + ly, Z: base.Z + lz}
					phase(inv, shared, res)
					inv.LocalIndex++
				}
			}
		}
	}
	return nil
}

func (d *Device) getScratch(n int) *[]float32 {
	s := d.scratch.Get().(*[]float32)
	if cap(*s) < n {
		*s = make([]float32, n)
	}
	*s = (*s)[:n]
	clear(*s)
	return s
}

// Wait returns immediately: Dispatch is synchronous.
func (d *Device) Wait(ctx context.Context) error {
	if err := d.checkOpen(); err != nil {
		return device.Wrap("wait", err)
	}
	return ctx.Err()
}

// Close marks the device closed. Further calls fail with device.ErrClosed.
func (d *Device) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}
