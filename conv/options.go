package conv

import (
	"fmt"
	"runtime"

	"github.com/cwbudde/algo-fold/device"
)

// Algorithm selects spatial (sliding window) or spectral convolution.
type Algorithm uint8

const (
	Spatial Algorithm = iota
	Spectral
)

func (a Algorithm) String() string {
	switch a {
	case Spatial:
		return "spatial"
	case Spectral:
		return "spectral"
	default:
		return fmt.Sprintf("Algorithm(%d)", uint8(a))
	}
}

// Addressing selects how the input reaches the device.
type Addressing uint8

const (
	// Buffer binds the input as a flat storage buffer.
	Buffer Addressing = iota
	// Image binds the input as a 3D image read without sampling.
	Image
)

func (a Addressing) String() string {
	switch a {
	case Buffer:
		return "buffer"
	case Image:
		return "image"
	default:
		return fmt.Sprintf("Addressing(%d)", uint8(a))
	}
}

// Staging selects where a workgroup reads its input neighbourhood from.
type Staging uint8

const (
	// Global reads every tap from device memory.
	Global Staging = iota
	// Tiled stages the workgroup's tile plus halo in shared memory first.
	Tiled
)

func (s Staging) String() string {
	switch s {
	case Global:
		return "direct"
	case Tiled:
		return "tiled"
	default:
		return fmt.Sprintf("Staging(%d)", uint8(s))
	}
}

// Boundary describes what the input holds around the image.
type Boundary uint8

const (
	// BoundaryPadded means the caller supplies an input already zero-padded
	// by the kernel half size on every side.
	BoundaryPadded Boundary = iota
	// BoundaryZero means the input is the raw image; reads outside it are zero.
	BoundaryZero
)

func (b Boundary) String() string {
	switch b {
	case BoundaryPadded:
		return "padded"
	case BoundaryZero:
		return "zero"
	default:
		return fmt.Sprintf("Boundary(%d)", uint8(b))
	}
}

// Extent selects the output shape for padded inputs.
type Extent uint8

const (
	// ExtentPadded returns an output as large as the padded input with a
	// zero border.
	ExtentPadded Extent = iota
	// ExtentInterior returns only the image region.
	ExtentInterior
)

func (e Extent) String() string {
	switch e {
	case ExtentPadded:
		return "padded"
	case ExtentInterior:
		return "interior"
	default:
		return fmt.Sprintf("Extent(%d)", uint8(e))
	}
}

// Config selects and tunes a convolution strategy.
type Config struct {
	Algorithm  Algorithm
	Addressing Addressing
	Staging    Staging
	Boundary   Boundary
	Extent     Extent

	// Workgroup is the preferred workgroup size of device programs. Tiled
	// programs shrink it when the tile does not fit the device.
	Workgroup device.Dim3

	// Workers bounds host-side fan-out over batch members.
	Workers int

	// Fused runs a whole batch as a single device launch.
	Fused bool
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns a direct buffer strategy over padded inputs.
func DefaultConfig() Config {
	return Config{
		Algorithm:  Spatial,
		Addressing: Buffer,
		Staging:    Global,
		Boundary:   BoundaryPadded,
		Extent:     ExtentPadded,
		Workgroup:  device.Dim3{X: 4, Y: 4, Z: 8},
		Workers:    runtime.GOMAXPROCS(0),
	}
}

// WithAlgorithm selects spatial or spectral convolution.
func WithAlgorithm(a Algorithm) Option {
	return func(cfg *Config) {
		if a <= Spectral {
			cfg.Algorithm = a
		}
	}
}

// WithAddressing selects buffer or image addressing.
func WithAddressing(a Addressing) Option {
	return func(cfg *Config) {
		if a <= Image {
			cfg.Addressing = a
		}
	}
}

// WithStaging selects direct or tiled device programs.
func WithStaging(s Staging) Option {
	return func(cfg *Config) {
		if s <= Tiled {
			cfg.Staging = s
		}
	}
}

// WithBoundary declares how the input is padded.
func WithBoundary(b Boundary) Option {
	return func(cfg *Config) {
		if b <= BoundaryZero {
			cfg.Boundary = b
		}
	}
}

// WithExtent selects the output extent for padded inputs.
func WithExtent(e Extent) Option {
	return func(cfg *Config) {
		if e <= ExtentInterior {
			cfg.Extent = e
		}
	}
}

// WithWorkgroup sets the preferred workgroup size.
func WithWorkgroup(wg device.Dim3) Option {
	return func(cfg *Config) {
		if wg.Positive() {
			cfg.Workgroup = wg
		}
	}
}

// WithWorkers bounds host-side concurrency.
func WithWorkers(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.Workers = n
		}
	}
}

// WithFused runs batches as one launch when the strategy supports it. Device
// strategies split a batch whose stacked members exceed the grid or image
// limits into several launches.
func WithFused(fused bool) Option {
	return func(cfg *Config) {
		cfg.Fused = fused
	}
}

// ApplyOptions applies zero or more options to the default config.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
