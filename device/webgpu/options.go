package webgpu

import (
	"log/slog"
	"time"

	"github.com/openfluke/webgpu/wgpu"
)

type config struct {
	power       wgpu.PowerPreference
	logger      *slog.Logger
	readTimeout time.Duration
}

// Option configures a WebGPU device.
type Option func(*config)

func defaultConfig() config {
	return config{
		power:       wgpu.PowerPreferenceHighPerformance,
		logger:      slog.New(slog.DiscardHandler),
		readTimeout: 10 * time.Second,
	}
}

// WithPowerPreference selects the adapter. The default prefers a discrete GPU.
func WithPowerPreference(p wgpu.PowerPreference) Option {
	return func(cfg *config) {
		cfg.power = p
	}
}

// WithLogger sets the logger for adapter selection and pipeline builds.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithReadTimeout bounds how long ReadBuffer waits for a mapping.
func WithReadTimeout(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.readTimeout = d
		}
	}
}
