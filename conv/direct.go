package conv

import (
	"github.com/cwbudde/algo-fold/device"
	"github.com/cwbudde/algo-fold/internal/hostkern"
)

// Direct programs compute one output element per invocation straight from
// device memory. Invocations never communicate.
func init() {
	registerProgram(Buffer, Global, programBuilder{build: directBuffer, shared: noShared})
	registerProgram(Image, Global, programBuilder{build: directImage, shared: noShared})
}

var spatialBindings = []device.BindingKind{device.BufferRead, device.BufferRead, device.BufferReadWrite}

var imageBindings = []device.BindingKind{device.ImageRead, device.BufferRead, device.BufferReadWrite}

func directBuffer(l *launch) *device.Program {
	in, k := l.in, l.kernel
	inLen, outLen := in.Len(), l.out.Len()

	phase := func(inv device.Invocation, _ []float32, res device.Resources) {
		m, r, ok := l.locate(inv)
		if !ok {
			return
		}
		src := res.Buffer(0)[m*inLen : (m+1)*inLen]
		w := res.Buffer(1)
		b := [3]int{r[0] + l.base[0], r[1] + l.base[1], r[2] + l.base[2]}
		zlo, zhi := clip(b[2], k[2], in[2])

		var sum float32
		if zlo < zhi {
			for dx := 0; dx < k[0]; dx++ {
				ix := b[0] + dx
				if ix < 0 || ix >= in[0] {
					continue
				}
				for dy := 0; dy < k[1]; dy++ {
					iy := b[1] + dy
					if iy < 0 || iy >= in[1] {
						continue
					}
					row := (ix*in[1]+iy)*in[2] + b[2]
					sum += hostkern.Dot(src[row+zlo:row+zhi], w[(dx*k[1]+dy)*k[2]+zlo:])
				}
			}
		}
		res.Buffer(2)[m*outLen+l.outIndex(r)] = sum
	}

	return &device.Program{
		Name:      "direct-buffer",
		Workgroup: l.wg,
		Bindings:  spatialBindings,
		WGSL:      l.wgslSource(Buffer, Global),
		Phases:    []device.Phase{phase},
	}
}

func directImage(l *launch) *device.Program {
	in, k := l.in, l.kernel
	outLen := l.out.Len()

	phase := func(inv device.Invocation, _ []float32, res device.Resources) {
		m, r, ok := l.locate(inv)
		if !ok {
			return
		}
		img := res.Image(0)
		w := res.Buffer(1)
		b := [3]int{r[0] + l.base[0], r[1] + l.base[1], r[2] + l.base[2]}
		zlo, zhi := clip(b[2], k[2], in[2])

		var sum float32
		for dx := 0; dx < k[0]; dx++ {
			ix := b[0] + dx
			if ix < 0 || ix >= in[0] {
				continue
			}
			for dy := 0; dy < k[1]; dy++ {
				iy := b[1] + dy
				if iy < 0 || iy >= in[1] {
					continue
				}
				tap := (dx*k[1] + dy) * k[2]
				for dz := zlo; dz < zhi; dz++ {
					sum += img.Load(m*in[0]+ix, iy, b[2]+dz) * w[tap+dz]
				}
			}
		}
		res.Buffer(2)[m*outLen+l.outIndex(r)] = sum
	}

	return &device.Program{
		Name:      "direct-image",
		Workgroup: l.wg,
		Bindings:  imageBindings,
		WGSL:      l.wgslSource(Image, Global),
		Phases:    []device.Phase{phase},
	}
}
