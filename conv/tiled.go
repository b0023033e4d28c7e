package conv

import (
	"github.com/cwbudde/algo-fold/device"
	"github.com/cwbudde/algo-fold/internal/hostkern"
)

// Tiled programs run in two phases. The load phase stages the workgroup's
// output tile plus a halo of kernel half size per side into shared memory,
// with the invocations striding over the tile by local index. After the
// barrier the compute phase reads only from the tile.
func init() {
	registerProgram(Buffer, Tiled, programBuilder{build: tiledBuffer, shared: tileFloats})
	registerProgram(Image, Tiled, programBuilder{build: tiledImage, shared: tileFloats})
}

func tileFloats(l *launch, wg device.Dim3) int {
	t := l.tile(wg)
	return t[0] * t[1] * t[2]
}

// tileLoader fetches input element p of member m, already bounds checked.
type tileLoader func(res device.Resources, m int, p [3]int) float32

func tiledBuffer(l *launch) *device.Program {
	in := l.in
	inLen := in.Len()
	load := func(res device.Resources, m int, p [3]int) float32 {
		return res.Buffer(0)[m*inLen+(p[0]*in[1]+p[1])*in[2]+p[2]]
	}
	return &device.Program{
		Name:         "tiled-buffer",
		Workgroup:    l.wg,
		SharedFloats: tileFloats(l, l.wg),
		Bindings:     spatialBindings,
		WGSL:         l.wgslSource(Buffer, Tiled),
		Phases:       []device.Phase{l.tileLoad(load), l.tileCompute()},
	}
}

func tiledImage(l *launch) *device.Program {
	in := l.in
	load := func(res device.Resources, m int, p [3]int) float32 {
		return res.Image(0).Load(m*in[0]+p[0], p[1], p[2])
	}
	return &device.Program{
		Name:         "tiled-image",
		Workgroup:    l.wg,
		SharedFloats: tileFloats(l, l.wg),
		Bindings:     imageBindings,
		WGSL:         l.wgslSource(Image, Tiled),
		Phases:       []device.Phase{l.tileLoad(load), l.tileCompute()},
	}
}

func (l *launch) tileLoad(load tileLoader) device.Phase {
	in := l.in
	t := l.tile(l.wg)
	tlen := t[0] * t[1] * t[2]
	stride := l.wg.Count()

	return func(inv device.Invocation, shared []float32, res device.Resources) {
		m, g := l.origin(inv.Group)
		origin := [3]int{g[0] + l.base[0], g[1] + l.base[1], g[2] + l.base[2]}
		for i := inv.LocalIndex; i < tlen; i += stride {
			p := [3]int{
				origin[0] + i/(t[1]*t[2]),
				origin[1] + (i/t[2])%t[1],
				origin[2] + i%t[2],
			}
			if p[0] < 0 || p[1] < 0 || p[2] < 0 || p[0] >= in[0] || p[1] >= in[1] || p[2] >= in[2] {
				shared[i] = 0
				continue
			}
			shared[i] = load(res, m, p)
		}
	}
}

func (l *launch) tileCompute() device.Phase {
	k := l.kernel
	t := l.tile(l.wg)
	outLen := l.out.Len()

	return func(inv device.Invocation, shared []float32, res device.Resources) {
		m, r, ok := l.locate(inv)
		if !ok {
			return
		}
		w := res.Buffer(1)
		lx, ly, lz := inv.Local.X, inv.Local.Y, inv.Local.Z

		var sum float32
		for dx := 0; dx < k[0]; dx++ {
			for dy := 0; dy < k[1]; dy++ {
				row := ((lx+dx)*t[1]+ly+dy)*t[2] + lz
				tap := (dx*k[1] + dy) * k[2]
				sum += hostkern.Dot(shared[row:row+k[2]], w[tap:tap+k[2]])
			}
		}
		res.Buffer(2)[m*outLen+l.outIndex(r)] = sum
	}
}
