package conv

import (
	"testing"

	"github.com/cwbudde/algo-fold/device"
	"github.com/cwbudde/algo-fold/device/host"
	"github.com/cwbudde/algo-fold/internal/testutil"
	"github.com/cwbudde/algo-fold/kernel"
	"github.com/cwbudde/algo-fold/volume"
)

// mustVolume returns a function that unwraps a volume constructor result,
// failing the test on error. Use as mustVolume(t)(volume.New(shape)).
func mustVolume(t testing.TB) func(*volume.Volume, error) *volume.Volume {
	return func(v *volume.Volume, err error) *volume.Volume {
		t.Helper()
		if err != nil {
			t.Fatalf("volume: %v", err)
		}
		return v
	}
}

// mustKernel is the kernel counterpart of mustVolume.
func mustKernel(t testing.TB) func(*kernel.Kernel, error) *kernel.Kernel {
	return func(k *kernel.Kernel, err error) *kernel.Kernel {
		t.Helper()
		if err != nil {
			t.Fatalf("kernel: %v", err)
		}
		return k
	}
}

func noiseKernel(t testing.TB, shape volume.Shape, seed int64) *kernel.Kernel {
	t.Helper()
	return mustKernel(t)(kernel.FromVolume(testutil.DeterministicNoise(shape, seed, 1)))
}

// spatialVariants lists the four device programs.
var spatialVariants = []struct {
	addressing Addressing
	staging    Staging
}{
	{Buffer, Global},
	{Image, Global},
	{Buffer, Tiled},
	{Image, Tiled},
}

// strategies returns every device strategy plus the spectral one for the
// given boundary options.
func strategies(t testing.TB, dev device.Device, opts ...Option) []Strategy {
	t.Helper()
	var out []Strategy
	for _, v := range spatialVariants {
		s, err := NewDevice(dev, append([]Option{WithAddressing(v.addressing), WithStaging(v.staging)}, opts...)...)
		if err != nil {
			t.Fatalf("NewDevice(%v, %v): %v", v.addressing, v.staging, err)
		}
		out = append(out, s)
	}
	return append(out, NewSpectral(opts...))
}

func newHost(t testing.TB, opts ...host.Option) *host.Device {
	t.Helper()
	dev := host.New(opts...)
	t.Cleanup(func() { _ = dev.Close() })
	return dev
}
