package conv

import (
	"context"
	"errors"
	"testing"

	"github.com/cwbudde/algo-fold/internal/testutil"
	"github.com/cwbudde/algo-fold/kernel"
	"github.com/cwbudde/algo-fold/volume"
)

func TestReferenceBoxFilter(t *testing.T) {
	image := testutil.Constant(volume.Shape{3, 3, 3}, 1)
	padded := mustVolume(t)(volume.Pad(image, [3]int{1, 1, 1}))
	k := mustKernel(t)(kernel.Ones(volume.Shape{3, 3, 3}))

	out := mustVolume(t)(volume.New(padded.Shape()))
	out.Fill(9)
	if err := Reference(padded, k, out, DefaultOffsets(k)); err != nil {
		t.Fatalf("Reference: %v", err)
	}

	tests := []struct {
		p    [3]int
		want float32
	}{
		{[3]int{2, 2, 2}, 27},
		{[3]int{1, 1, 1}, 8},
		{[3]int{1, 2, 2}, 18},
		{[3]int{0, 0, 0}, 0},
		{[3]int{4, 2, 2}, 0},
	}
	for _, tt := range tests {
		if got := out.At(tt.p[0], tt.p[1], tt.p[2]); got != tt.want {
			t.Errorf("out%v = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := volume.Sum(out); got != 343 {
		t.Fatalf("sum = %v, want 343", got)
	}
}

// An impulse responds with the kernel mirrored around its center: the
// reference correlates, it does not flip the kernel.
func TestReferenceIsCorrelation(t *testing.T) {
	image := testutil.Impulse(volume.Shape{5, 1, 1}, [3]int{2, 0, 0})
	k := mustKernel(t)(kernel.AxisRamp(volume.Shape{3, 1, 1}, 0))
	padded := mustVolume(t)(volume.Pad(image, k.Half()))

	out := mustVolume(t)(volume.New(image.Shape()))
	if err := Reference(padded, k, out, DefaultOffsets(k)); err != nil {
		t.Fatalf("Reference: %v", err)
	}
	want := []float32{0, 3, 2, 1, 0}
	testutil.RequireSliceNearlyEqual(t, out.Data(), want, 0)
}

func TestReferenceOffsets(t *testing.T) {
	image := testutil.Ramp(volume.Shape{4, 4, 4})
	k := mustKernel(t)(kernel.Identity(volume.Shape{3, 3, 3}))
	padded := mustVolume(t)(volume.Pad(image, k.Half()))

	// Offsets of zero shift the center tap by +1 on every axis.
	out := mustVolume(t)(volume.New(image.Shape()))
	if err := Reference(padded, k, out, [3]int{0, 0, 0}); err != nil {
		t.Fatalf("Reference: %v", err)
	}
	if got, want := out.At(0, 0, 0), image.At(1, 1, 1); got != want {
		t.Fatalf("out(0,0,0) = %v, want %v", got, want)
	}
	if got := out.At(3, 3, 3); got != 0 {
		t.Fatalf("read past the padding should be zero, got %v", got)
	}

	if err := Reference(padded, k, out, [3]int{-1, 1, 1}); !errors.Is(err, ErrOffset) {
		t.Fatalf("expected ErrOffset, got %v", err)
	}
}

func TestReferenceMatchesFold(t *testing.T) {
	image := testutil.DeterministicNoise(volume.Shape{6, 7, 8}, 3, 1)
	k := noiseKernel(t, volume.Shape{3, 5, 3}, 4)
	padded := mustVolume(t)(volume.Pad(image, k.Half()))

	out := mustVolume(t)(volume.New(padded.Shape()))
	if err := Reference(padded, k, out, DefaultOffsets(k)); err != nil {
		t.Fatalf("Reference: %v", err)
	}
	testutil.RequireVolumeClose(t, out, testutil.Fold(padded, k), 1e-6)
}

func TestReferenceErrors(t *testing.T) {
	k := mustKernel(t)(kernel.Identity(volume.Shape{3, 3, 3}))
	padded := mustVolume(t)(volume.New(volume.Shape{5, 5, 5}))

	tests := []struct {
		name    string
		in      *volume.Volume
		out     *volume.Volume
		wantErr error
	}{
		{"nil input", nil, padded, ErrNilInput},
		{"nil output", padded, nil, ErrNilInput},
		{"output shape", padded, mustVolume(t)(volume.New(volume.Shape{4, 4, 4})), ErrShapeMismatch},
		{"no interior", mustVolume(t)(volume.New(volume.Shape{2, 5, 5})), padded, ErrShapeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Reference(tt.in, k, tt.out, DefaultOffsets(k)); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestReferenceStrategyBoundaries(t *testing.T) {
	image := testutil.DeterministicNoise(volume.Shape{5, 6, 7}, 5, 1)
	k := noiseKernel(t, volume.Shape{3, 3, 5}, 6)
	padded := mustVolume(t)(volume.Pad(image, k.Half()))
	ctx := context.Background()

	full, err := NewReference().Convolve(ctx, padded, k)
	if err != nil {
		t.Fatalf("padded extent: %v", err)
	}
	if full.Shape() != padded.Shape() {
		t.Fatalf("padded extent shape = %v", full.Shape())
	}
	interior, err := NewReference(WithExtent(ExtentInterior)).Convolve(ctx, padded, k)
	if err != nil {
		t.Fatalf("interior extent: %v", err)
	}
	zero, err := NewReference(WithBoundary(BoundaryZero)).Convolve(ctx, image, k)
	if err != nil {
		t.Fatalf("zero boundary: %v", err)
	}

	cropped := mustVolume(t)(volume.Interior(full, k.Half()))
	testutil.RequireSliceNearlyEqual(t, interior.Data(), cropped.Data(), 0)
	testutil.RequireSliceNearlyEqual(t, zero.Data(), cropped.Data(), 0)
}
