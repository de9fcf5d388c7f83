// Package device defines the primitive services gpulib needs from an
// immediate-mode graphics device.
//
// The interface is deliberately narrow: buffers with an optional persistent
// host mapping, layered textures, typed views over either, samplers, shader
// stages compiled from WGSL text, linked pipelines, render and capture
// targets, and a small set of bind/draw calls issued against the currently
// bound state. Everything above that (allocation policy, format validation,
// batch ordering) lives in package gpulib.
//
// Implementations register themselves from init functions, the same way
// image decoders do:
//
//	import _ "github.com/sevas/gpulib/device/soft"   // CPU reference device
//	import _ "github.com/sevas/gpulib/device/native" // gogpu/wgpu HAL device
//
// # Resource IDs
//
// Resources are identified by opaque IDs. Zero ([InvalidID]) always means
// "no resource"; binding it to a unit unbinds that unit.
//
// # Shader conventions
//
// Stage sources are WGSL. Texture unit u is declared at @group(0)
// @binding(u), sampler unit u at @group(1) @binding(u), and uniform
// location l at @group(2) @binding(l) as a var<uniform>.
//
// # Thread safety
//
// A Device is driven by exactly one goroutine. Implementations are not
// required to synchronize their methods.
package device

// BufferID is an opaque handle to a device buffer.
type BufferID uint64

// TextureID is an opaque handle to a layered texture.
type TextureID uint64

// ViewID is an opaque handle to a typed view of a buffer range or of a
// texture layer/mip range.
type ViewID uint64

// SamplerID is an opaque handle to a sampler.
type SamplerID uint64

// ShaderID is an opaque handle to a compiled shader stage.
type ShaderID uint64

// PipelineID is an opaque handle to a linked pipeline.
type PipelineID uint64

// FramebufferID is an opaque handle to a render target.
type FramebufferID uint64

// FeedbackID is an opaque handle to a vertex capture target.
type FeedbackID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// Limits reports device capabilities relevant to gpulib.
type Limits struct {
	// MaxUnits is the number of texture units and of sampler units.
	MaxUnits int

	// MaxColorAttachments is the number of color views a framebuffer can hold.
	MaxColorAttachments int

	// MaxFeedbackBuffers is the number of capture ranges a feedback target
	// can hold.
	MaxFeedbackBuffers int

	// MaxUniformLocations bounds uniform locations per stage.
	MaxUniformLocations int

	// MaxTextureSize is the largest texture width or height.
	MaxTextureSize int

	// BufferAlignment is the alignment applied to arena allocations.
	BufferAlignment uint64

	// ViewOffsetAlignment is the alignment a buffer view offset must meet
	// in addition to its element stride.
	ViewOffsetAlignment uint64
}

// SurfaceConfig describes the default presentation surface the device
// creates on Init.
type SurfaceConfig struct {
	Title   string
	Width   int
	Height  int
	Samples int
	Flags   uint32
}

// TextureDesc describes a layered 2D texture or cubemap array.
type TextureDesc struct {
	Label  string
	Format Format
	Width  int
	Height int

	// Layers is the number of array layers. For cubemaps it is the number
	// of cubes; the texture then holds 6*Layers faces, addressed as
	// layer = cube*6 + face.
	Layers int

	// Mips is the number of mip levels, at least 1.
	Mips int

	Cube bool
}

// FaceCount returns the number of addressable 2D layers.
func (d *TextureDesc) FaceCount() int {
	if d.Cube {
		return d.Layers * 6
	}
	return d.Layers
}

// BufferViewDesc describes a typed view of a buffer range.
type BufferViewDesc struct {
	Buffer BufferID
	Format Format
	Offset uint64
	Size   uint64
}

// TextureViewDesc describes a typed view of a texture.
// For cubemaps the layer range counts cubes.
type TextureViewDesc struct {
	Texture    TextureID
	Format     Format
	LayerFirst int
	LayerCount int
	MipFirst   int
	MipCount   int
}

// SamplerDesc describes an immutable sampler.
type SamplerDesc struct {
	// Anisotropy is the maximum anisotropy hint; values below 2 disable
	// anisotropic filtering.
	Anisotropy int
	Min        Filter
	Mag        Filter
	Wrap       Wrap
}

// ShaderDesc describes a shader stage to compile.
type ShaderDesc struct {
	Label  string
	Stage  Stage
	Source string

	// Captures lists the vertex outputs recorded by a feedback target, one
	// per capture range, in order. Only valid for vertex stages.
	Captures []string
}

// CaptureRange is a buffer range receiving captured vertex outputs.
type CaptureRange struct {
	Buffer BufferID
	Offset uint64
	Size   uint64
}

// Uniform is a single uniform location value.
type Uniform struct {
	Kind  UniformKind
	Float [4]float32
	Int   int32
}

// DrawCall is one instanced, non-indexed draw.
type DrawCall struct {
	Topology      Topology
	First         int
	Count         int
	InstanceFirst int
	InstanceCount int
}

// Device is the set of primitive services gpulib calls.
type Device interface {
	// Name returns the registry name of the implementation.
	Name() string

	// Init opens the device and creates the default surface.
	Init(surface SurfaceConfig) error

	// Close releases every resource the device still owns.
	Close()

	// Limits reports device capabilities. Valid after Init.
	Limits() Limits

	// SetDebugFunc installs the diagnostic callback. Nil disables delivery.
	SetDebugFunc(fn DebugFunc)

	CreateBuffer(size uint64) (BufferID, error)
	// MapBuffer returns a persistent, coherent host mapping of the whole
	// buffer, or nil if the device has none. Writes through the mapping are
	// visible to subsequent draws without WriteBuffer.
	MapBuffer(id BufferID) []byte
	WriteBuffer(id BufferID, offset uint64, data []byte) error
	ReadBuffer(id BufferID, offset uint64, dst []byte) error
	DestroyBuffer(id BufferID)

	CreateTexture(desc TextureDesc) (TextureID, error)
	// WriteTexture replaces the full contents of one layer at one mip.
	WriteTexture(id TextureID, layer, mip int, data []byte) error
	ReadTexture(id TextureID, layer, mip int, dst []byte) error
	// GenerateMipmaps rebuilds levels 1..n-1 of every layer from level 0.
	GenerateMipmaps(id TextureID) error
	DestroyTexture(id TextureID)

	CreateBufferView(desc BufferViewDesc) (ViewID, error)
	CreateTextureView(desc TextureViewDesc) (ViewID, error)
	DestroyView(id ViewID)

	CreateSampler(desc SamplerDesc) (SamplerID, error)
	DestroySampler(id SamplerID)

	// CompileShader returns a *ShaderError wrapping ErrCompile when the
	// source does not compile.
	CompileShader(desc ShaderDesc) (ShaderID, error)
	// UniformActive reports whether loc is a live uniform of the stage.
	UniformActive(id ShaderID, loc int) bool
	SetUniform(id ShaderID, loc int, value Uniform)
	DestroyShader(id ShaderID)

	// LinkPipeline returns a *ShaderError wrapping ErrLink when the stage
	// interfaces do not match. frag may be InvalidID.
	LinkPipeline(vert, frag ShaderID) (PipelineID, error)
	DestroyPipeline(id PipelineID)

	CreateFramebuffer(colors []ViewID, depth ViewID) (FramebufferID, error)
	DestroyFramebuffer(id FramebufferID)

	CreateFeedback(ranges []CaptureRange) (FeedbackID, error)
	DestroyFeedback(id FeedbackID)

	// BindFramebuffer selects the render target; InvalidID selects the
	// default surface.
	BindFramebuffer(id FramebufferID) error
	// BindFeedback selects a capture target and resets its write cursors;
	// InvalidID disables capture.
	BindFeedback(id FeedbackID) error
	SetDepthTest(enabled bool)
	Clear(color [4]float32, depth float32) error

	BindPipeline(id PipelineID) error
	BindTexture(unit int, view ViewID) error
	BindSampler(unit int, sampler SamplerID) error
	Draw(call DrawCall) error

	// Present hands the default surface to the window system.
	Present() error

	// Finish blocks until all submitted work has completed.
	Finish() error
}
