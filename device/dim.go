package device

import "fmt"

// Dim3 is a three-component grid or workgroup extent. X is the slowest
// varying axis of a row-major volume, Z the fastest.
type Dim3 struct {
	X, Y, Z int
}

// Count returns X*Y*Z.
func (d Dim3) Count() int { return d.X * d.Y * d.Z }

// Positive reports whether every component is at least 1.
func (d Dim3) Positive() bool { return d.X > 0 && d.Y > 0 && d.Z > 0 }

// Array returns the components as an array.
func (d Dim3) Array() [3]int { return [3]int{d.X, d.Y, d.Z} }

func (d Dim3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", d.X, d.Y, d.Z)
}

// DimOf converts an axis array to a Dim3.
func DimOf(a [3]int) Dim3 { return Dim3{X: a[0], Y: a[1], Z: a[2]} }

// Groups returns the number of workgroups of size wg needed to cover n.
func Groups(n, wg Dim3) Dim3 {
	return Dim3{
		X: ceilDiv(n.X, wg.X),
		Y: ceilDiv(n.Y, wg.Y),
		Z: ceilDiv(n.Z, wg.Z),
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Limits bounds what a device accepts in a single launch.
type Limits struct {
	MaxInvocations   int  // invocations per workgroup
	MaxWorkgroupSize Dim3 // per-axis workgroup extent
	MaxSharedFloats  int  // workgroup scratch, in float32 elements
	MaxGroupsPerDim  int
	MaxImageDim      int // per-axis extent of a 3D image
}

// DefaultLimits returns the WebGPU baseline limits.
func DefaultLimits() Limits {
	return Limits{
		MaxInvocations:   256,
		MaxWorkgroupSize: Dim3{X: 256, Y: 256, Z: 64},
		MaxSharedFloats:  16384 / 4,
		MaxGroupsPerDim:  65535,
		MaxImageDim:      2048,
	}
}

// Valid reports whether every limit is positive.
func (l Limits) Valid() bool {
	return l.MaxInvocations > 0 && l.MaxWorkgroupSize.Positive() &&
		l.MaxSharedFloats >= 0 && l.MaxGroupsPerDim > 0 && l.MaxImageDim > 0
}

// FitsWorkgroup reports whether a workgroup of size wg using shared floats of
// scratch can be launched.
func (l Limits) FitsWorkgroup(wg Dim3, shared int) bool {
	return wg.Positive() &&
		wg.Count() <= l.MaxInvocations &&
		wg.X <= l.MaxWorkgroupSize.X &&
		wg.Y <= l.MaxWorkgroupSize.Y &&
		wg.Z <= l.MaxWorkgroupSize.Z &&
		shared <= l.MaxSharedFloats
}
