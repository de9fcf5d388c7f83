package gpulib

import (
	"log/slog"

	"github.com/sevas/gpulib/device"
)

// DefaultArenaCapacity is the arena size used unless WithArenaCapacity
// overrides it.
const DefaultArenaCapacity = 64 << 20

// ContextOption configures a Context during creation.
// Use functional options to customize Context behavior.
//
// Example:
//
//	// Best registered device, default surface and arena
//	ctx, err := gpulib.NewContext()
//
//	// Software device with a small arena
//	ctx, err := gpulib.NewContext(
//	    gpulib.WithDeviceName(device.NameSoft),
//	    gpulib.WithArenaCapacity(1<<20),
//	)
type ContextOption func(*contextOptions)

// contextOptions holds optional configuration for Context creation.
type contextOptions struct {
	dev           device.Device
	devName       string
	arenaCapacity uint64
	surface       SurfaceConfig
	logger        *slog.Logger
	debug         DebugFunc
}

// defaultOptions returns the default context options.
func defaultOptions() contextOptions {
	return contextOptions{
		arenaCapacity: DefaultArenaCapacity,
		surface: SurfaceConfig{
			Title:   "gpulib",
			Width:   1280,
			Height:  720,
			Samples: 1,
		},
	}
}

// WithDevice uses d instead of a registered device. The Context takes
// ownership and closes d on Close. No fallback is attempted if d fails to
// initialize.
func WithDevice(d device.Device) ContextOption {
	return func(o *contextOptions) {
		o.dev = d
	}
}

// WithDeviceName selects a registered device by name (see device.Available).
// No fallback is attempted if it fails to initialize.
func WithDeviceName(name string) ContextOption {
	return func(o *contextOptions) {
		o.devName = name
	}
}

// WithArenaCapacity sets the arena size in bytes.
func WithArenaCapacity(n uint64) ContextOption {
	return func(o *contextOptions) {
		o.arenaCapacity = n
	}
}

// WithSurface sets the default presentation surface.
func WithSurface(cfg SurfaceConfig) ContextOption {
	return func(o *contextOptions) {
		o.surface = cfg
	}
}

// WithLogger sets a logger for this Context only, overriding Logger().
func WithLogger(l *slog.Logger) ContextOption {
	return func(o *contextOptions) {
		o.logger = l
	}
}

// WithDebugFunc receives every device diagnostic after it is logged.
func WithDebugFunc(fn DebugFunc) ContextOption {
	return func(o *contextOptions) {
		o.debug = fn
	}
}
