package testutil

import (
	"sync"

	"github.com/cwbudde/algo-fold/kernel"
	"github.com/cwbudde/algo-fold/volume"
)

// Kernel names provided by AsymFixture.
const (
	Trivial    = "trivial"
	Identity   = "identity"
	Horizontal = "horizontal"
	Vertical   = "vertical"
	Depth      = "depth"
	All1       = "all1"
)

// KernelNames lists the fixture kernels in a stable order.
var KernelNames = []string{Trivial, Identity, Horizontal, Vertical, Depth, All1}

// AsymFixture is an n^3 ramp image together with an asymmetric set of
// kernels and the image zero-padded by the kernel half size.
type AsymFixture struct {
	Image   *volume.Volume
	Padded  *volume.Volume
	Kernels map[string]*kernel.Kernel

	mu   sync.Mutex
	refs map[string]*volume.Volume
}

// NewAsymFixture builds a fixture for a kx*ky*kz kernel and an n^3 image.
func NewAsymFixture(kx, ky, kz, n int) *AsymFixture {
	kshape := volume.Shape{kx, ky, kz}
	image := Ramp(volume.Shape{n, n, n})
	padded, err := volume.Pad(image, [3]int{kx / 2, ky / 2, kz / 2})
	if err != nil {
		panic(err)
	}

	f := &AsymFixture{
		Image:   image,
		Padded:  padded,
		Kernels: make(map[string]*kernel.Kernel, len(KernelNames)),
		refs:    make(map[string]*volume.Volume),
	}
	f.Kernels[Trivial] = must(kernel.Zero(kshape))
	f.Kernels[Identity] = must(kernel.Identity(kshape))
	f.Kernels[Horizontal] = must(kernel.AxisRamp(kshape, 0))
	f.Kernels[Vertical] = must(kernel.AxisRamp(kshape, 1))
	f.Kernels[Depth] = must(kernel.AxisRamp(kshape, 2))
	f.Kernels[All1] = must(kernel.Ones(kshape))
	return f
}

// Half returns the kernel half size.
func (f *AsymFixture) Half() [3]int {
	return f.Kernels[Identity].Half()
}

// Folded returns the padded-extent response of the padded image to the named
// kernel, border zero. It is computed once with a plain float64 loop.
func (f *AsymFixture) Folded(name string) *volume.Volume {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ref, ok := f.refs[name]; ok {
		return ref
	}
	ref := Fold(f.Padded, f.Kernels[name])
	f.refs[name] = ref
	return ref
}

// FoldedImage returns Folded cropped to the image shape.
func (f *AsymFixture) FoldedImage(name string) *volume.Volume {
	return must(volume.Interior(f.Folded(name), f.Half()))
}

// Fold correlates padded with k over the interior of padded, centered on the
// kernel, and leaves the border zero.
func Fold(padded *volume.Volume, k *kernel.Kernel) *volume.Volume {
	shape := padded.Shape()
	ks := k.Shape()
	h := k.Half()
	out := mustNew(shape)
	for x := h[0]; x < shape[0]-h[0]; x++ {
		for y := h[1]; y < shape[1]-h[1]; y++ {
			for z := h[2]; z < shape[2]-h[2]; z++ {
				var acc float64
				for dx := 0; dx < ks[0]; dx++ {
					for dy := 0; dy < ks[1]; dy++ {
						for dz := 0; dz < ks[2]; dz++ {
							w := k.At(dx, dy, dz)
							if w == 0 {
								continue
							}
							acc += float64(padded.At(x+dx-h[0], y+dy-h[1], z+dz-h[2])) * float64(w)
						}
					}
				}
				out.Set(x, y, z, float32(acc))
			}
		}
	}
	return out
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
