package conv

import (
	"fmt"

	"github.com/cwbudde/algo-fold/device"
)

// launch is the geometry of one device dispatch over members batch members.
// Workgroups never straddle members: the grid's x axis holds gpx workgroups
// per member.
type launch struct {
	geometry
	members int
	wg      device.Dim3
	gpx     int
}

// programBuilder returns the device program for a launch.
type programBuilder struct {
	build func(l *launch) *device.Program
	// shared returns the scratch floats a workgroup of size wg needs.
	shared func(l *launch, wg device.Dim3) int
}

type programKey struct {
	addressing Addressing
	staging    Staging
}

var programs = map[programKey]programBuilder{}

func registerProgram(a Addressing, s Staging, b programBuilder) {
	programs[programKey{addressing: a, staging: s}] = b
}

func noShared(*launch, device.Dim3) int { return 0 }

// planLaunch clamps the preferred workgroup to the region and halves it
// (z, then y, then x) until it fits the device limits.
func planLaunch(g geometry, members int, preferred device.Dim3, limits device.Limits, b programBuilder) (*launch, error) {
	l := &launch{geometry: g, members: members}
	wg := device.Dim3{
		X: min(preferred.X, g.region[0]),
		Y: min(preferred.Y, g.region[1]),
		Z: min(preferred.Z, g.region[2]),
	}
	for !limits.FitsWorkgroup(wg, b.shared(l, wg)) {
		switch {
		case wg.Z > 1:
			wg.Z /= 2
		case wg.Y > 1:
			wg.Y /= 2
		case wg.X > 1:
			wg.X /= 2
		default:
			return nil, fmt.Errorf("%w: kernel %v needs %d shared floats per invocation, device has %d",
				device.ErrLimits, g.kernel, b.shared(l, wg), limits.MaxSharedFloats)
		}
	}
	l.wg = wg
	l.gpx = ceilDiv(g.region[0], wg.X)
	return l, nil
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

func (l *launch) groups() device.Dim3 {
	return device.Dim3{
		X: l.gpx * l.members,
		Y: ceilDiv(l.region[1], l.wg.Y),
		Z: ceilDiv(l.region[2], l.wg.Z),
	}
}

// capacity returns how many members a single dispatch can hold. The grid's x
// axis bounds every launch; stacked image input is also bounded by the image
// extent. It is at least 1, so an oversized member still reports its own
// limit error.
func (l *launch) capacity(limits device.Limits, image bool) int {
	n := limits.MaxGroupsPerDim / l.gpx
	if image {
		n = min(n, limits.MaxImageDim/l.in[0])
	}
	return max(n, 1)
}

// tile returns the extent of a workgroup's input neighbourhood.
func (l *launch) tile(wg device.Dim3) [3]int {
	return [3]int{
		wg.X + l.kernel[0] - 1,
		wg.Y + l.kernel[1] - 1,
		wg.Z + l.kernel[2] - 1,
	}
}

// origin returns the member and the region position of the first
// invocation of a workgroup.
func (l *launch) origin(group device.Dim3) (int, [3]int) {
	return group.X / l.gpx, [3]int{
		(group.X % l.gpx) * l.wg.X,
		group.Y * l.wg.Y,
		group.Z * l.wg.Z,
	}
}

// locate returns the member and region position of inv and whether the
// position lies inside the region.
func (l *launch) locate(inv device.Invocation) (int, [3]int, bool) {
	m, r := l.origin(inv.Group)
	r[0] += inv.Local.X
	r[1] += inv.Local.Y
	r[2] += inv.Local.Z
	ok := r[0] < l.region[0] && r[1] < l.region[1] && r[2] < l.region[2]
	return m, r, ok
}

// clip returns the tap range [lo, hi) for which b+d lies in [0, n).
func clip(b, taps, n int) (int, int) {
	return max(0, -b), min(taps, n-b)
}
