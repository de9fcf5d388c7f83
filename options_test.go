package gpulib

import (
	"testing"

	"github.com/sevas/gpulib/device"
	"github.com/sevas/gpulib/device/soft"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.arenaCapacity != DefaultArenaCapacity {
		t.Errorf("arenaCapacity = %d, want %d", o.arenaCapacity, DefaultArenaCapacity)
	}
	if o.surface.Width <= 0 || o.surface.Height <= 0 {
		t.Errorf("surface = %+v, want a non-empty default", o.surface)
	}
	if o.dev != nil || o.devName != "" || o.logger != nil || o.debug != nil {
		t.Error("default options should not select a device, logger or debug func")
	}
}

func TestContextOptions(t *testing.T) {
	d := soft.New()
	fn := func(Message) {}
	o := defaultOptions()
	for _, opt := range []ContextOption{
		WithDevice(d),
		WithDeviceName(device.NameSoft),
		WithArenaCapacity(1024),
		WithSurface(SurfaceConfig{Title: "t", Width: 2, Height: 3}),
		WithLogger(Logger()),
		WithDebugFunc(fn),
	} {
		opt(&o)
	}
	if o.dev != d {
		t.Error("WithDevice did not set the device")
	}
	if o.devName != device.NameSoft {
		t.Errorf("devName = %q", o.devName)
	}
	if o.arenaCapacity != 1024 {
		t.Errorf("arenaCapacity = %d, want 1024", o.arenaCapacity)
	}
	if o.surface.Width != 2 || o.surface.Height != 3 {
		t.Errorf("surface = %+v", o.surface)
	}
	if o.logger == nil || o.debug == nil {
		t.Error("WithLogger or WithDebugFunc not applied")
	}
}
