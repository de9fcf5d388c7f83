// Package gpulib is a bindless rendering substrate for Go.
//
// # Overview
//
// gpulib sits between an application and a GPU device. It owns one large
// device buffer, the arena, and hands out typed views into it. Images,
// cubemaps and samplers are plain handles. Shaders are WGSL stages with
// positional bindings, and all drawing goes through a single entry point,
// Submit, which executes an ordered batch of Ops.
//
// # Quick Start
//
//	import (
//	    "github.com/sevas/gpulib"
//	    _ "github.com/sevas/gpulib/device/soft"
//	)
//
//	ctx, err := gpulib.NewContext()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctx.Close()
//
//	off, _ := ctx.Arena().Alloc(3 * 16)
//	ctx.Arena().PutFloat32s(off, -1, -1, 0, 1, 3, -1, 0, 1, -1, 3, 0, 1)
//	verts, _ := ctx.Cast(gpulib.FormatXYZW32F, off, 3*16)
//
//	err = ctx.Submit([]gpulib.Op{{
//	    Pipeline: pipe,
//	    Topology: gpulib.Triangles,
//	    Textures: gpulib.Dense(0, verts),
//	    Cmds:     []gpulib.Cmd{{Count: 3, InstanceCount: 1}},
//	}})
//
// # Binding Model
//
// Nothing is bound persistently. Each Op carries sparse unit tables for
// textures (views) and samplers; units inside the table window without an
// entry are unbound before the op draws. In WGSL, texture unit u is
// @group(0) @binding(u), sampler unit u is @group(1) @binding(u) and
// uniform location l is @group(2) @binding(l). Arena views appear to
// shaders as read-only storage buffers.
//
// # Binding States
//
// A Context is idle (drawing into the default surface), rendering into a
// Framebuffer, or capturing vertices into a Feedback target. Binding a
// framebuffer while capturing, or the reverse, fails with ErrInvalidState.
// Captured values become visible in the arena only after Sync.
//
// # Devices
//
// Devices register themselves with package device on import. The soft
// device (device/soft) runs everywhere and is the reference for every
// behavior; the native device (device/native) runs on wgpu. NewContext
// picks the highest priority device and falls back to soft.
//
// # Errors
//
// Every error matches one of ErrConfiguration, ErrValidation, ErrCompile,
// ErrLink or ErrClosed with errors.Is. Range failures are *RangeError and
// device failures during Submit are *OpError.
//
// # Logging
//
// gpulib is silent by default. Use SetLogger or WithLogger to route its
// slog output; device diagnostics are logged by severity and can also be
// received with WithDebugFunc.
package gpulib
