package host

import (
	"runtime"

	"github.com/cwbudde/algo-fold/device"
)

type config struct {
	workers     int
	limits      device.Limits
	memoryLimit int
}

// Option configures a host device.
type Option func(*config)

func defaultConfig() config {
	return config{
		workers: runtime.GOMAXPROCS(0),
		limits:  device.DefaultLimits(),
	}
}

// WithWorkers sets how many workgroups execute concurrently across all
// launches of the device.
func WithWorkers(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.workers = n
		}
	}
}

// WithLimits replaces the launch limits the device enforces.
func WithLimits(l device.Limits) Option {
	return func(cfg *config) {
		if l.Valid() {
			cfg.limits = l
		}
	}
}

// WithMemoryLimit caps the number of float32 elements that may be allocated
// at the same time. Zero means unlimited.
func WithMemoryLimit(floats int) Option {
	return func(cfg *config) {
		if floats >= 0 {
			cfg.memoryLimit = floats
		}
	}
}
