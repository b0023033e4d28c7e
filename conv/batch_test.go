package conv

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cwbudde/algo-fold/device"
	"github.com/cwbudde/algo-fold/device/host"
	"github.com/cwbudde/algo-fold/internal/testutil"
	"github.com/cwbudde/algo-fold/kernel"
	"github.com/cwbudde/algo-fold/volume"
)

var errPoisoned = errors.New("poisoned member")

// poisonStrategy fails for inputs whose first element equals poison.
type poisonStrategy struct {
	Strategy
	poison float32
}

func (s poisonStrategy) Convolve(ctx context.Context, in *volume.Volume, k *kernel.Kernel) (*volume.Volume, error) {
	if in.Data()[0] == s.poison {
		return nil, errPoisoned
	}
	return s.Strategy.Convolve(ctx, in, k)
}

// batchInputs returns n padded noise volumes whose first element is i.
func batchInputs(n int, shape volume.Shape, half [3]int) []*volume.Volume {
	ins := make([]*volume.Volume, n)
	for i := range ins {
		v, err := volume.Pad(testutil.DeterministicNoise(shape, int64(100+i), 1), half)
		if err != nil {
			panic(err)
		}
		v.Data()[0] = float32(i)
		ins[i] = v
	}
	return ins
}

func TestBatchMembersAreIndependent(t *testing.T) {
	dev := newHost(t)
	ctx := context.Background()
	k := noiseKernel(t, volume.Shape{3, 5, 3}, 50)
	ins := batchInputs(10, volume.Shape{6, 7, 8}, k.Half())

	for _, s := range strategies(t, dev) {
		for _, fused := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/fused=%v", s.Name(), fused), func(t *testing.T) {
				outs, err := NewBatch(s, WithFused(fused), WithWorkers(3)).Convolve(ctx, ins, k)
				if err != nil {
					t.Fatalf("Convolve: %v", err)
				}
				if len(outs) != len(ins) {
					t.Fatalf("got %d outputs, want %d", len(outs), len(ins))
				}
				for i, in := range ins {
					single, err := s.Convolve(ctx, in, k)
					if err != nil {
						t.Fatalf("member %d: %v", i, err)
					}
					if diff := cmp.Diff(single.Data(), outs[i].Data()); diff != "" {
						t.Fatalf("member %d differs from a single call (-single +batch):\n%s", i, diff)
					}
				}
			})
		}
	}
}

func TestBatchOfIdenticalInputs(t *testing.T) {
	dev := newHost(t)
	ctx := context.Background()
	f := testutil.NewAsymFixture(5, 9, 13, 16)
	k := f.Kernels[testutil.Depth]

	ins := make([]*volume.Volume, 10)
	for i := range ins {
		ins[i] = f.Padded
	}
	s, err := NewDevice(dev)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	outs, err := NewBatch(s, WithFused(true)).Convolve(ctx, ins, k)
	if err != nil {
		t.Fatalf("Convolve: %v", err)
	}
	for i, out := range outs {
		testutil.RequireVolumeClose(t, out, f.Folded(testutil.Depth), 1e-4)
		if i > 0 {
			if diff := cmp.Diff(outs[0].Data(), out.Data()); diff != "" {
				t.Fatalf("member %d differs from member 0", i)
			}
		}
	}
}

func TestFusedBatchSplitsAtDeviceLimits(t *testing.T) {
	limits := device.DefaultLimits()
	limits.MaxImageDim = 16
	limits.MaxGroupsPerDim = 4
	dev := newHost(t, host.WithLimits(limits))
	ctx := context.Background()
	k := noiseKernel(t, volume.Shape{3, 3, 3}, 52)
	// Padded members are 8 deep along x, so five of them stacked need a
	// 40-deep image.
	ins := batchInputs(5, volume.Shape{6, 5, 4}, k.Half())

	for _, s := range strategies(t, dev) {
		t.Run(s.Name(), func(t *testing.T) {
			outs, err := NewBatch(s, WithFused(true)).Convolve(ctx, ins, k)
			if err != nil {
				t.Fatalf("fused Convolve: %v", err)
			}
			if len(outs) != len(ins) {
				t.Fatalf("got %d outputs, want %d", len(outs), len(ins))
			}
			for i, in := range ins {
				single, err := s.Convolve(ctx, in, k)
				if err != nil {
					t.Fatalf("member %d: %v", i, err)
				}
				if diff := cmp.Diff(single.Data(), outs[i].Data()); diff != "" {
					t.Fatalf("member %d differs from a single call (-single +batch):\n%s", i, diff)
				}
			}
		})
	}
}

func TestBatchReportsFailedMembers(t *testing.T) {
	ctx := context.Background()
	k := noiseKernel(t, volume.Shape{3, 3, 3}, 51)
	ins := batchInputs(6, volume.Shape{4, 4, 4}, k.Half())
	s := poisonStrategy{Strategy: NewReference(), poison: 4}

	outs, err := NewBatch(s, WithWorkers(2)).Convolve(ctx, ins, k)
	var be *BatchError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BatchError, got %v", err)
	}
	if diff := cmp.Diff([]int{4}, be.Failed()); diff != "" {
		t.Fatalf("Failed() mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(err, errPoisoned) {
		t.Fatalf("errors.Is(err, errPoisoned) = false for %v", err)
	}
	for i, out := range outs {
		if i == 4 {
			if out != nil {
				t.Fatalf("failed member has output")
			}
			continue
		}
		want, err := NewReference().Convolve(ctx, ins[i], k)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(want.Data(), out.Data()); diff != "" {
			t.Fatalf("member %d mismatch", i)
		}
	}
}

func TestFusedBatchFailsAsUnit(t *testing.T) {
	// One member needs 1051 floats: 512 input, 27 weights, 512 output.
	dev := newHost(t, host.WithMemoryLimit(2000))
	ctx := context.Background()
	k := mustKernel(t)(kernel.Ones(volume.Shape{3, 3, 3}))
	ins := batchInputs(10, volume.Shape{6, 6, 6}, k.Half())

	s, err := NewDevice(dev)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	outs, err := NewBatch(s, WithWorkers(1)).Convolve(ctx, ins, k)
	if err != nil {
		t.Fatalf("member-wise batch: %v", err)
	}
	if len(outs) != 10 {
		t.Fatalf("got %d outputs", len(outs))
	}

	outs, err = NewBatch(s, WithFused(true)).Convolve(ctx, ins, k)
	if !errors.Is(err, device.ErrAlloc) {
		t.Fatalf("expected device.ErrAlloc, got %v", err)
	}
	var be *BatchError
	if errors.As(err, &be) {
		t.Fatalf("fused failure reported per member: %v", err)
	}
	if outs != nil {
		t.Fatalf("fused failure returned outputs")
	}
	if live := dev.Live(); live != 0 {
		t.Fatalf("%d floats still allocated", live)
	}
}

func TestBatchValidation(t *testing.T) {
	ctx := context.Background()
	k := mustKernel(t)(kernel.Ones(volume.Shape{3, 3, 3}))
	b := NewBatch(NewReference())

	a := mustVolume(t)(volume.New(volume.Shape{5, 5, 5}))
	c := mustVolume(t)(volume.New(volume.Shape{5, 5, 6}))

	tests := []struct {
		name string
		ins  []*volume.Volume
		k    *kernel.Kernel
		want error
	}{
		{"mixed shapes", []*volume.Volume{a, c}, k, ErrShapeMismatch},
		{"nil member", []*volume.Volume{a, nil}, k, ErrNilInput},
		{"nil kernel", []*volume.Volume{a}, nil, ErrNilInput},
		{"no interior", []*volume.Volume{mustVolume(t)(volume.New(volume.Shape{2, 5, 5}))}, k, ErrShapeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outs, err := b.Convolve(ctx, tt.ins, tt.k)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if outs != nil {
				t.Fatalf("validation failure returned outputs")
			}
		})
	}

	outs, err := b.Convolve(ctx, nil, k)
	if err != nil || outs != nil {
		t.Fatalf("empty batch: outs=%v err=%v", outs, err)
	}
	if _, err := NewBatch(nil).Convolve(ctx, []*volume.Volume{a}, k); !errors.Is(err, ErrNilInput) {
		t.Fatalf("nil strategy: got %v", err)
	}
}

func TestConvolveInto(t *testing.T) {
	ctx := context.Background()
	k := noiseKernel(t, volume.Shape{3, 3, 3}, 52)
	ins := batchInputs(4, volume.Shape{4, 4, 4}, k.Half())
	shape := ins[0].Shape()

	newOuts := func(s volume.Shape) []*volume.Volume {
		outs := make([]*volume.Volume, len(ins))
		for i := range outs {
			outs[i] = testutil.Constant(s, 7)
		}
		return outs
	}

	t.Run("length", func(t *testing.T) {
		err := NewBatch(NewReference()).ConvolveInto(ctx, ins, k, newOuts(shape)[:3])
		if !errors.Is(err, ErrBatchLength) {
			t.Fatalf("expected ErrBatchLength, got %v", err)
		}
	})

	t.Run("output shape", func(t *testing.T) {
		outs := newOuts(volume.Shape{4, 4, 4})
		err := NewBatch(NewReference()).ConvolveInto(ctx, ins, k, outs)
		if !errors.Is(err, ErrShapeMismatch) {
			t.Fatalf("expected ErrShapeMismatch, got %v", err)
		}
		for i, out := range outs {
			if volume.Sum(out) != 7*64 {
				t.Fatalf("output %d modified", i)
			}
		}
	})

	t.Run("failed member untouched", func(t *testing.T) {
		outs := newOuts(shape)
		b := NewBatch(poisonStrategy{Strategy: NewReference(), poison: 2})
		err := b.ConvolveInto(ctx, ins, k, outs)
		var be *BatchError
		if !errors.As(err, &be) {
			t.Fatalf("expected *BatchError, got %v", err)
		}
		if volume.Sum(outs[2]) != 7*float64(shape.Len()) {
			t.Fatalf("failed member output modified")
		}
		for _, i := range []int{0, 1, 3} {
			want, err := NewReference().Convolve(ctx, ins[i], k)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(want.Data(), outs[i].Data()); diff != "" {
				t.Fatalf("member %d mismatch", i)
			}
		}
	})

	t.Run("column-major outputs", func(t *testing.T) {
		outs := make([]*volume.Volume, len(ins))
		for i := range outs {
			outs[i] = mustVolume(t)(volume.NewOrdered(shape, volume.ColumnMajor))
		}
		if err := NewBatch(NewReference()).ConvolveInto(ctx, ins, k, outs); err != nil {
			t.Fatalf("ConvolveInto: %v", err)
		}
		want, err := NewReference().Convolve(ctx, ins[1], k)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(want.RowMajorData(), outs[1].RowMajorData()); diff != "" {
			t.Fatalf("reordered output mismatch")
		}
	})
}
