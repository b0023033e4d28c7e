package conv

import (
	"fmt"
	"strings"
)

// WGSL renditions of the device programs. Shapes are baked in as constants,
// so every launch geometry compiles to its own pipeline.

const wgslBufferSource = `
@group(0) @binding(0) var<storage, read> src: array<f32>;

fn readInput(m: i32, x: i32, y: i32, z: i32) -> f32 {
	if (x < 0 || y < 0 || z < 0 || x >= IN_X || y >= IN_Y || z >= IN_Z) {
		return 0.0;
	}
	return src[m * IN_LEN + (x * IN_Y + y) * IN_Z + z];
}
`

// Images are laid out with z as width, y as height and member*IN_X+x as
// depth. textureLoad never clamps here: out-of-range reads are skipped.
const wgslImageSource = `
@group(0) @binding(0) var src: texture_3d<f32>;

fn readInput(m: i32, x: i32, y: i32, z: i32) -> f32 {
	if (x < 0 || y < 0 || z < 0 || x >= IN_X || y >= IN_Y || z >= IN_Z) {
		return 0.0;
	}
	return textureLoad(src, vec3<i32>(z, y, m * IN_X + x), 0).x;
}
`

const wgslOutput = `
@group(0) @binding(1) var<storage, read> weights: array<f32>;
@group(0) @binding(2) var<storage, read_write> dst: array<f32>;

fn writeOutput(m: i32, r: vec3<i32>, v: f32) {
	let o = r + vec3<i32>(LO_X, LO_Y, LO_Z);
	dst[m * OUT_LEN + (o.x * OUT_Y + o.y) * OUT_Z + o.z] = v;
}

fn inRegion(r: vec3<i32>) -> bool {
	return r.x < REG_X && r.y < REG_Y && r.z < REG_Z;
}
`

const wgslDirectMain = `
@compute @workgroup_size(WG_X, WG_Y, WG_Z)
fn main(@builtin(workgroup_id) wid: vec3<u32>, @builtin(local_invocation_id) lid: vec3<u32>) {
	let m = i32(wid.x / GPX);
	let r = vec3<i32>(i32(wid.x % GPX) * WG_X, i32(wid.y) * WG_Y, i32(wid.z) * WG_Z) + vec3<i32>(lid);
	if (!inRegion(r)) {
		return;
	}
	let b = r + vec3<i32>(BASE_X, BASE_Y, BASE_Z);
	var sum = 0.0;
	for (var dx = 0; dx < K_X; dx++) {
		for (var dy = 0; dy < K_Y; dy++) {
			for (var dz = 0; dz < K_Z; dz++) {
				sum += readInput(m, b.x + dx, b.y + dy, b.z + dz) * weights[(dx * K_Y + dy) * K_Z + dz];
			}
		}
	}
	writeOutput(m, r, sum);
}
`

const wgslTiledMain = `
var<workgroup> tile: array<f32, T_LEN>;

@compute @workgroup_size(WG_X, WG_Y, WG_Z)
fn main(@builtin(workgroup_id) wid: vec3<u32>, @builtin(local_invocation_id) lid: vec3<u32>, @builtin(local_invocation_index) li: u32) {
	let m = i32(wid.x / GPX);
	let g = vec3<i32>(i32(wid.x % GPX) * WG_X, i32(wid.y) * WG_Y, i32(wid.z) * WG_Z);
	let origin = g + vec3<i32>(BASE_X, BASE_Y, BASE_Z);
	for (var i = i32(li); i < i32(T_LEN); i += WG_LEN) {
		let tx = i / (T_Y * T_Z);
		let ty = (i / T_Z) % T_Y;
		let tz = i % T_Z;
		tile[i] = readInput(m, origin.x + tx, origin.y + ty, origin.z + tz);
	}
	workgroupBarrier();

	let l = vec3<i32>(lid);
	let r = g + l;
	if (!inRegion(r)) {
		return;
	}
	var sum = 0.0;
	for (var dx = 0; dx < K_X; dx++) {
		for (var dy = 0; dy < K_Y; dy++) {
			let row = ((l.x + dx) * T_Y + l.y + dy) * T_Z + l.z;
			let w = (dx * K_Y + dy) * K_Z;
			for (var dz = 0; dz < K_Z; dz++) {
				sum += tile[row + dz] * weights[w + dz];
			}
		}
	}
	writeOutput(m, r, sum);
}
`

// wgslSource assembles the program for l.
func (l *launch) wgslSource(a Addressing, s Staging) string {
	var b strings.Builder
	constant := func(name string, v int) {
		fmt.Fprintf(&b, "const %s: i32 = %d;\n", name, v)
	}
	for i, axis := range []string{"X", "Y", "Z"} {
		constant("IN_"+axis, l.in[i])
		constant("OUT_"+axis, l.out[i])
		constant("K_"+axis, l.kernel[i])
		constant("REG_"+axis, l.region[i])
		constant("LO_"+axis, l.lo[i])
		constant("BASE_"+axis, l.base[i])
	}
	wg := l.wg.Array()
	for i, axis := range []string{"X", "Y", "Z"} {
		constant("WG_"+axis, wg[i])
	}
	constant("IN_LEN", l.in.Len())
	constant("OUT_LEN", l.out.Len())
	constant("WG_LEN", l.wg.Count())
	fmt.Fprintf(&b, "const GPX: u32 = %du;\n", l.gpx)

	if s == Tiled {
		t := l.tile(l.wg)
		for i, axis := range []string{"X", "Y", "Z"} {
			constant("T_"+axis, t[i])
		}
		fmt.Fprintf(&b, "const T_LEN: u32 = %du;\n", t[0]*t[1]*t[2])
	}

	if a == Image {
		b.WriteString(wgslImageSource)
	} else {
		b.WriteString(wgslBufferSource)
	}
	b.WriteString(wgslOutput)
	if s == Tiled {
		b.WriteString(wgslTiledMain)
	} else {
		b.WriteString(wgslDirectMain)
	}
	return b.String()
}
