package testutil

import (
	"fmt"
	"math"
	"testing"

	"github.com/cwbudde/algo-fold/volume"
)

// RequireSliceNearlyEqual fails t if got and want differ in length or if
// any element pair exceeds eps (absolute tolerance).
func RequireSliceNearlyEqual(t testing.TB, got, want []float32, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range got {
		diff := math.Abs(float64(got[i]) - float64(want[i]))
		if diff > eps {
			t.Fatalf("index %d: got %v, want %v (diff %v > eps %v)", i, got[i], want[i], diff, eps)
		}
	}
}

// RequireFinite fails t if any element is NaN or Inf.
func RequireFinite(t testing.TB, data []float32) {
	t.Helper()
	for i, v := range data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Fatalf("index %d: non-finite value %v", i, v)
		}
	}
}

// MaxAbsDiff returns the maximum absolute difference between two slices.
// Returns an error if the slices differ in length.
func MaxAbsDiff(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(a), len(b))
	}
	maxDiff := 0.0
	for i := range a {
		maxDiff = max(maxDiff, math.Abs(float64(a[i])-float64(b[i])))
	}
	return maxDiff, nil
}

// RelativeL2 returns ||got-want|| / ||want||. When want is all zero the
// absolute norm ||got|| is returned instead.
func RelativeL2(got, want []float32) (float64, error) {
	if len(got) != len(want) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(got), len(want))
	}
	var diff, ref float64
	for i := range got {
		d := float64(got[i]) - float64(want[i])
		diff += d * d
		ref += float64(want[i]) * float64(want[i])
	}
	if ref == 0 {
		return math.Sqrt(diff), nil
	}
	return math.Sqrt(diff / ref), nil
}

// RequireVolumeClose fails t unless got and want have the same shape and
// their relative L2 distance is at most rel.
func RequireVolumeClose(t testing.TB, got, want *volume.Volume, rel float64) {
	t.Helper()
	if got == nil || want == nil {
		t.Fatalf("nil volume: got %v, want %v", got, want)
	}
	if got.Shape() != want.Shape() {
		t.Fatalf("shape mismatch: got %v, want %v", got.Shape(), want.Shape())
	}
	d, err := RelativeL2(got.RowMajorData(), want.RowMajorData())
	if err != nil {
		t.Fatal(err)
	}
	if d > rel {
		t.Fatalf("relative L2 distance %g > %g", d, rel)
	}
}

// RequireClosePct fails t unless got and want differ by at most pct percent
// of the larger magnitude.
func RequireClosePct(t testing.TB, got, want, pct float64) {
	t.Helper()
	diff := math.Abs(got - want)
	scale := max(math.Abs(got), math.Abs(want))
	if diff > pct/100*scale {
		t.Fatalf("got %v, want %v (difference exceeds %v%%)", got, want, pct)
	}
}
