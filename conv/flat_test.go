package conv

import (
	"context"
	"errors"
	"testing"

	"github.com/cwbudde/algo-fold/device"
	"github.com/cwbudde/algo-fold/internal/testutil"
	"github.com/cwbudde/algo-fold/kernel"
	"github.com/cwbudde/algo-fold/volume"
)

type flatFunc func(ctx context.Context, dev device.Device, image []float32, imageShape []int, k []float32, kernelShape []int) ([]float32, error)

func dims(s volume.Shape) []int { return s[:] }

func TestFlatEntryPoints(t *testing.T) {
	dev := newHost(t)
	ctx := context.Background()
	f := testutil.NewAsymFixture(5, 9, 13, 16)

	tests := []struct {
		name   string
		fn     flatFunc
		padded bool
	}{
		{"direct buffer", ConvolveDirectBuffer, true},
		{"direct image", ConvolveDirectImage, false},
		{"tiled buffer", ConvolveTiledBuffer, true},
		{"tiled image", ConvolveTiledImage, false},
	}
	for _, tt := range tests {
		for _, name := range []string{testutil.Identity, testutil.Horizontal, testutil.All1} {
			t.Run(tt.name+"/"+name, func(t *testing.T) {
				k := f.Kernels[name]
				in, want := f.Image, f.FoldedImage(name)
				if tt.padded {
					in, want = f.Padded, f.Folded(name)
				}
				got, err := tt.fn(ctx, dev, in.Data(), dims(in.Shape()), k.Weights(), dims(k.Shape()))
				if err != nil {
					t.Fatalf("%s: %v", tt.name, err)
				}
				v := mustVolume(t)(volume.FromSlice(want.Shape(), got))
				testutil.RequireVolumeClose(t, v, want, 1e-4)
			})
		}
	}
}

func TestFlatEntryPointErrors(t *testing.T) {
	dev := newHost(t)
	ctx := context.Background()
	image := make([]float32, 6*6*6)
	k3 := make([]float32, 27)

	tests := []struct {
		name        string
		dev         device.Device
		image       []float32
		imageShape  []int
		k           []float32
		kernelShape []int
		want        error
	}{
		{"rank mismatch", dev, image, []int{6, 6, 6}, k3[:9], []int{3, 3}, ErrRankMismatch},
		{"rank two", dev, image, []int{6, 36}, k3[:9], []int{3, 3}, volume.ErrRank},
		{"even kernel", dev, image, []int{6, 6, 6}, make([]float32, 4*3*3), []int{4, 3, 3}, kernel.ErrEvenSize},
		{"short kernel", dev, image, []int{6, 6, 6}, k3[:26], []int{3, 3, 3}, volume.ErrLength},
		{"short image", dev, image[:100], []int{6, 6, 6}, k3, []int{3, 3, 3}, volume.ErrLength},
		{"zero axis", dev, image, []int{6, 0, 6}, k3, []int{3, 3, 3}, volume.ErrShape},
		{"nil device", nil, image, []int{6, 6, 6}, k3, []int{3, 3, 3}, ErrNilInput},
	}
	fns := map[string]flatFunc{
		"direct buffer": ConvolveDirectBuffer,
		"direct image":  ConvolveDirectImage,
		"tiled buffer":  ConvolveTiledBuffer,
		"tiled image":   ConvolveTiledImage,
	}
	for _, tt := range tests {
		for fname, fn := range fns {
			t.Run(tt.name+"/"+fname, func(t *testing.T) {
				out, err := fn(ctx, tt.dev, tt.image, tt.imageShape, tt.k, tt.kernelShape)
				if !errors.Is(err, tt.want) {
					t.Fatalf("expected %v, got %v", tt.want, err)
				}
				if out != nil {
					t.Fatalf("error returned output")
				}
			})
		}
	}
}

func TestConvolveBatchBuffers(t *testing.T) {
	dev := newHost(t)
	ctx := context.Background()
	f := testutil.NewAsymFixture(21, 3, 11, 16)
	k := f.Kernels[testutil.Vertical]

	images := make([][]float32, 10)
	for i := range images {
		images[i] = f.Padded.Data()
	}
	outs, err := ConvolveBatchBuffers(ctx, dev, images, dims(f.Padded.Shape()), k.Weights(), dims(k.Shape()))
	if err != nil {
		t.Fatalf("ConvolveBatchBuffers: %v", err)
	}
	if len(outs) != 10 {
		t.Fatalf("got %d outputs", len(outs))
	}
	want := f.Folded(testutil.Vertical)
	for _, out := range outs {
		testutil.RequireVolumeClose(t, mustVolume(t)(volume.FromSlice(want.Shape(), out)), want, 1e-4)
	}

	images[3] = images[3][:10]
	if _, err := ConvolveBatchBuffers(ctx, dev, images, dims(f.Padded.Shape()), k.Weights(), dims(k.Shape())); !errors.Is(err, volume.ErrLength) {
		t.Fatalf("expected volume.ErrLength, got %v", err)
	}
}

func TestFlatTransforms(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewAsymFixture(5, 9, 13, 16)
	shape := dims(f.Padded.Shape())

	inputs := make([][]float32, 10)
	for i := range inputs {
		inputs[i] = f.Padded.Data()
	}
	bufs, err := ConvolveForwardTransform(ctx, inputs, shape)
	if err != nil {
		t.Fatalf("ConvolveForwardTransform: %v", err)
	}
	outs, err := ConvolveBackwardTransform(ctx, bufs, shape)
	if err != nil {
		t.Fatalf("ConvolveBackwardTransform: %v", err)
	}
	want := volume.Sum(f.Padded)
	for _, out := range outs {
		v := mustVolume(t)(volume.FromSlice(f.Padded.Shape(), out))
		testutil.RequireClosePct(t, volume.Sum(v), want, 1e-4)
	}

	if _, err := ConvolveForwardTransform(ctx, inputs, []int{4, 4}); !errors.Is(err, volume.ErrRank) {
		t.Fatalf("expected volume.ErrRank, got %v", err)
	}
	outs, err = ConvolveBackwardTransform(ctx, bufs[:2], []int{16, 16, 16})
	var be *BatchError
	if !errors.As(err, &be) || !errors.Is(err, ErrTransformSize) {
		t.Fatalf("expected *BatchError with ErrTransformSize, got %v", err)
	}
	if len(outs) != 2 || outs[0] != nil || outs[1] != nil {
		t.Fatalf("mismatched buffers produced output")
	}
}
