// Package soft implements device.Device on the CPU.
//
// It is the reference device: every operation completes synchronously and
// buffers are persistently mapped host memory. Shader stages are compiled
// from WGSL to SPIR-V by naga and executed by the wgpu software
// interpreter; triangles are clipped and scan converted with the wgpu
// software rasterizer.
//
// The interpreter samples the base level and first layer of a texture
// view as RGBA8, and fragment discard has no effect.
//
// Importing the package registers the device under [device.NameSoft]:
//
//	import _ "github.com/sevas/gpulib/device/soft"
package soft

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/sevas/gpulib/device"
)

func init() {
	device.Register(device.NameSoft, func() device.Device { return New() })
}

// Option configures a Device.
type Option func(*Device)

// WithPresentFunc sets the callback receiving the default surface on
// Present. The image is a copy owned by the callback.
func WithPresentFunc(fn func(*image.RGBA)) Option {
	return func(d *Device) { d.present = fn }
}

// WithLimits overrides the reported limits.
func WithLimits(l device.Limits) Option {
	return func(d *Device) { d.limits = l }
}

// DefaultLimits are the limits reported unless overridden.
var DefaultLimits = device.Limits{
	MaxUnits:            32,
	MaxColorAttachments: 4,
	MaxFeedbackBuffers:  3,
	MaxUniformLocations: 1024,
	MaxTextureSize:      16384,
	BufferAlignment:     16,
	ViewOffsetAlignment: 4,
}

// maxBufferSize bounds a single buffer allocation.
const maxBufferSize = 1 << 32

// Device is the CPU reference device.
type Device struct {
	limits  device.Limits
	surface device.SurfaceConfig
	inited  bool
	debug   device.DebugFunc
	present func(*image.RGBA)
	nextID  uint64

	buffers      map[device.BufferID]*buffer
	textures     map[device.TextureID]*texture
	views        map[device.ViewID]*view
	samplers     map[device.SamplerID]*sampler
	shaders      map[device.ShaderID]*shader
	pipelines    map[device.PipelineID]*pipeline
	framebuffers map[device.FramebufferID]*framebuffer
	feedbacks    map[device.FeedbackID]*feedback

	// Default surface.
	screen *framebuffer

	// Bound state.
	target    *framebuffer
	capture   *feedback
	pipeline  *pipeline
	units     []*view
	smps      []*sampler
	depthTest bool
}

var _ device.Device = (*Device)(nil)

// New returns an uninitialized software device.
func New(opts ...Option) *Device {
	d := &Device{limits: DefaultLimits}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name implements device.Device.
func (d *Device) Name() string { return device.NameSoft }

// SetLogger sets the package logger.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// Init implements device.Device.
func (d *Device) Init(surface device.SurfaceConfig) error {
	if d.inited {
		return nil
	}
	if surface.Width <= 0 || surface.Height <= 0 {
		return fmt.Errorf("%w: surface size %dx%d", device.ErrInvalidArgument, surface.Width, surface.Height)
	}
	d.surface = surface
	d.buffers = make(map[device.BufferID]*buffer)
	d.textures = make(map[device.TextureID]*texture)
	d.views = make(map[device.ViewID]*view)
	d.samplers = make(map[device.SamplerID]*sampler)
	d.shaders = make(map[device.ShaderID]*shader)
	d.pipelines = make(map[device.PipelineID]*pipeline)
	d.framebuffers = make(map[device.FramebufferID]*framebuffer)
	d.feedbacks = make(map[device.FeedbackID]*feedback)
	d.units = make([]*view, d.limits.MaxUnits)
	d.smps = make([]*sampler, d.limits.MaxUnits)
	d.depthTest = true

	color := newTexture(device.TextureDesc{Label: "surface", Format: device.FormatRGBA8,
		Width: surface.Width, Height: surface.Height, Layers: 1, Mips: 1})
	depth := newTexture(device.TextureDesc{Label: "surface-depth", Format: device.FormatD32F,
		Width: surface.Width, Height: surface.Height, Layers: 1, Mips: 1})
	d.screen = &framebuffer{
		colors: []*view{color.fullView()},
		depth:  depth.fullView(),
		width:  surface.Width,
		height: surface.Height,
	}
	d.screen.clear([4]float32{}, 1)
	d.target = d.screen
	d.inited = true

	slogger().Debug("soft: device initialized",
		"width", surface.Width, "height", surface.Height, "title", surface.Title)
	return nil
}

// Close implements device.Device.
func (d *Device) Close() {
	if !d.inited {
		return
	}
	*d = Device{limits: d.limits, present: d.present, debug: d.debug}
}

// Limits implements device.Device.
func (d *Device) Limits() device.Limits { return d.limits }

// SetDebugFunc implements device.Device.
func (d *Device) SetDebugFunc(fn device.DebugFunc) { d.debug = fn }

func (d *Device) emit(m device.Message) {
	if d.debug != nil {
		d.debug(m)
	}
}

func (d *Device) id() uint64 {
	d.nextID++
	return d.nextID
}

func (d *Device) check() error {
	if !d.inited {
		return device.ErrNotInitialized
	}
	return nil
}

// Surface returns a copy of the default surface.
func (d *Device) Surface() *image.RGBA {
	if !d.inited {
		return nil
	}
	return d.screen.colors[0].image()
}

// Present implements device.Device.
func (d *Device) Present() error {
	if err := d.check(); err != nil {
		return err
	}
	if d.present != nil {
		d.present(d.Surface())
	}
	return nil
}

// Finish implements device.Device. All work is already complete.
func (d *Device) Finish() error { return d.check() }

type buffer struct {
	data []byte
}

// CreateBuffer implements device.Device.
func (d *Device) CreateBuffer(size uint64) (device.BufferID, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	if size == 0 {
		return 0, fmt.Errorf("%w: zero-sized buffer", device.ErrInvalidArgument)
	}
	if size > maxBufferSize {
		return 0, fmt.Errorf("%w: buffer of %d bytes", device.ErrOutOfMemory, size)
	}
	id := device.BufferID(d.id())
	d.buffers[id] = &buffer{data: make([]byte, size)}
	slogger().Debug("soft: buffer created", "id", id, "size", size)
	return id, nil
}

// MapBuffer implements device.Device. Soft buffers are host memory.
func (d *Device) MapBuffer(id device.BufferID) []byte {
	if b, ok := d.buffers[id]; ok {
		return b.data
	}
	return nil
}

func (d *Device) buffer(id device.BufferID, offset, n uint64) (*buffer, error) {
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", device.ErrUnknownID, id)
	}
	if offset > uint64(len(b.data)) || n > uint64(len(b.data))-offset {
		return nil, fmt.Errorf("%w: range [%d, %d) outside buffer of %d bytes",
			device.ErrInvalidArgument, offset, offset+n, len(b.data))
	}
	return b, nil
}

// WriteBuffer implements device.Device.
func (d *Device) WriteBuffer(id device.BufferID, offset uint64, data []byte) error {
	b, err := d.buffer(id, offset, uint64(len(data)))
	if err != nil {
		return err
	}
	copy(b.data[offset:], data)
	return nil
}

// ReadBuffer implements device.Device.
func (d *Device) ReadBuffer(id device.BufferID, offset uint64, dst []byte) error {
	b, err := d.buffer(id, offset, uint64(len(dst)))
	if err != nil {
		return err
	}
	copy(dst, b.data[offset:])
	return nil
}

// DestroyBuffer implements device.Device.
func (d *Device) DestroyBuffer(id device.BufferID) { delete(d.buffers, id) }
