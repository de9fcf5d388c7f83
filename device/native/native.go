// Package native implements device.Device on the gogpu/wgpu HAL.
//
// Stages are WGSL compiled by naga and executed by the selected backend
// (Vulkan unless [WithBackend] says otherwise). Draws are recorded into
// render passes and submitted when the host needs to observe or replace
// device memory: on Finish, Present, texture readback and every queue
// write. Importing the package registers the device under
// [device.NameNative]:
//
//	import _ "github.com/sevas/gpulib/device/native"
//
// The native device has no vertex capture: CreateFeedback returns
// device.ErrUnsupported and Limits reports zero feedback buffers.
package native

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // default backend

	"github.com/sevas/gpulib/device"
)

func init() {
	device.Register(device.NameNative, func() device.Device { return New() })
}

// Option configures a Device.
type Option func(*Device)

// WithBackend selects the HAL backend opened by Init. The backend package
// must be imported (and so registered) by the program.
func WithBackend(b gputypes.Backend) Option {
	return func(d *Device) { d.backend = b }
}

// WithProvider makes Init use the device and queue of an existing GPU
// context instead of opening its own. The provider must also expose
// HalDevice() any and HalQueue() any returning hal.Device and hal.Queue.
// The device is not destroyed on Close.
func WithProvider(p gpucontext.DeviceProvider) Option {
	return func(d *Device) { d.provider = p }
}

// WithPresentFunc sets the callback receiving the default surface on
// Present. The image is a copy owned by the callback.
func WithPresentFunc(fn func(*image.RGBA)) Option {
	return func(d *Device) { d.present = fn }
}

// halProvider is the optional HAL access of a gpucontext.DeviceProvider.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// Device is a GPU device on the wgpu HAL.
type Device struct {
	backend  gputypes.Backend
	provider gpucontext.DeviceProvider
	present  func(*image.RGBA)

	limits   device.Limits
	surface  device.SurfaceConfig
	inited   bool
	external bool
	debug    device.DebugFunc
	nextID   uint64

	instance hal.Instance
	gpu      hal.Device
	queue    hal.Queue

	buffers      map[device.BufferID]*buffer
	textures     map[device.TextureID]*texture
	views        map[device.ViewID]*view
	samplers     map[device.SamplerID]*sampler
	shaders      map[device.ShaderID]*shader
	pipelines    map[device.PipelineID]*pipeline
	framebuffers map[device.FramebufferID]*framebuffer

	screen *framebuffer

	// Bound state.
	target    *framebuffer
	pipeline  *pipeline
	units     []*view
	smps      []*sampler
	depthTest bool

	// Recording state.
	enc       hal.CommandEncoder
	inflight  []submission
	transient []hal.BindGroup
	dummies   map[dummyKey]gputypes.BindingResource
	dummyRes  []hal.Resource
}

type submission struct {
	enc hal.CommandEncoder
	cmd hal.CommandBuffer
}

var _ device.Device = (*Device)(nil)

// New returns an uninitialized native device.
func New(opts ...Option) *Device {
	d := &Device{backend: gputypes.BackendVulkan}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name implements device.Device.
func (d *Device) Name() string { return device.NameNative }

// SetLogger sets the package logger and the wgpu HAL logger.
func (d *Device) SetLogger(l *slog.Logger) {
	setLogger(l)
	hal.SetLogger(l)
}

// Init implements device.Device.
func (d *Device) Init(surface device.SurfaceConfig) error {
	if d.inited {
		return nil
	}
	if surface.Width <= 0 || surface.Height <= 0 {
		return fmt.Errorf("%w: surface size %dx%d", device.ErrInvalidArgument, surface.Width, surface.Height)
	}

	var lim gputypes.Limits
	var err error
	if d.provider != nil {
		lim, err = d.adopt()
	} else {
		lim, err = d.open()
	}
	if err != nil {
		return err
	}
	d.limits = deviceLimits(lim)
	d.surface = surface
	d.buffers = make(map[device.BufferID]*buffer)
	d.textures = make(map[device.TextureID]*texture)
	d.views = make(map[device.ViewID]*view)
	d.samplers = make(map[device.SamplerID]*sampler)
	d.shaders = make(map[device.ShaderID]*shader)
	d.pipelines = make(map[device.PipelineID]*pipeline)
	d.framebuffers = make(map[device.FramebufferID]*framebuffer)
	d.dummies = make(map[dummyKey]gputypes.BindingResource)
	d.units = make([]*view, d.limits.MaxUnits)
	d.smps = make([]*sampler, d.limits.MaxUnits)
	d.depthTest = true
	d.inited = true

	screen, err := d.newScreen(surface.Width, surface.Height)
	if err != nil {
		d.Close()
		return err
	}
	d.screen = screen
	d.target = screen
	if err := d.Clear([4]float32{}, 1); err != nil {
		d.Close()
		return err
	}
	slogger().Debug("native: device initialized", "backend", d.backend,
		"width", surface.Width, "height", surface.Height, "title", surface.Title)
	return nil
}

// open creates an instance on the selected backend and opens its best
// adapter, preferring discrete and integrated GPUs.
func (d *Device) open() (gputypes.Limits, error) {
	backend, ok := hal.GetBackend(d.backend)
	if !ok {
		return gputypes.Limits{}, fmt.Errorf("%w: %v backend not available", device.ErrUnsupported, d.backend)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return gputypes.Limits{}, fmt.Errorf("native: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return gputypes.Limits{}, fmt.Errorf("%w: no GPU adapters found", device.ErrUnsupported)
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	lim := selected.Capabilities.Limits
	openDev, err := selected.Adapter.Open(gputypes.Features(0), lim)
	if err != nil {
		instance.Destroy()
		return gputypes.Limits{}, fmt.Errorf("native: open device: %w", err)
	}
	d.instance = instance
	d.gpu = openDev.Device
	d.queue = openDev.Queue
	slogger().Info("native: adapter selected", "adapter", selected.Info.Name, "type", selected.Info.DeviceType)
	return lim, nil
}

// adopt takes the device and queue of d.provider.
func (d *Device) adopt() (gputypes.Limits, error) {
	hp, ok := d.provider.(halProvider)
	if !ok {
		return gputypes.Limits{}, fmt.Errorf("%w: provider does not expose HAL types", device.ErrUnsupported)
	}
	gpu, ok := hp.HalDevice().(hal.Device)
	if !ok || gpu == nil {
		return gputypes.Limits{}, fmt.Errorf("%w: provider HalDevice is not hal.Device", device.ErrInvalidArgument)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return gputypes.Limits{}, fmt.Errorf("%w: provider HalQueue is not hal.Queue", device.ErrInvalidArgument)
	}
	d.gpu, d.queue, d.external = gpu, queue, true
	info := d.provider.AdapterInfo()
	slogger().Info("native: using shared device", "adapter", info.Name, "type", info.Type)
	return gputypes.DefaultLimits(), nil
}

func deviceLimits(l gputypes.Limits) device.Limits {
	align := uint64(max(4, l.MinStorageBufferOffsetAlignment))
	return device.Limits{
		MaxUnits:            int(min(l.MaxSampledTexturesPerShaderStage, l.MaxSamplersPerShaderStage)),
		MaxColorAttachments: int(min(l.MaxColorAttachments, maxColorAttachments)),
		MaxFeedbackBuffers:  0,
		MaxUniformLocations: int(l.MaxUniformBuffersPerShaderStage),
		MaxTextureSize:      int(l.MaxTextureDimension2D),
		BufferAlignment:     align,
		ViewOffsetAlignment: align,
	}
}

// Close implements device.Device.
func (d *Device) Close() {
	if !d.inited {
		return
	}
	if err := d.wait(); err != nil {
		slogger().Warn("native: wait on close", "error", err)
	}
	for id := range d.framebuffers {
		d.DestroyFramebuffer(id)
	}
	if d.screen != nil {
		d.screen.destroy(d.gpu)
	}
	for id := range d.pipelines {
		d.DestroyPipeline(id)
	}
	for id := range d.shaders {
		d.DestroyShader(id)
	}
	for id := range d.samplers {
		d.DestroySampler(id)
	}
	for id := range d.views {
		d.DestroyView(id)
	}
	for id := range d.textures {
		d.DestroyTexture(id)
	}
	for id := range d.buffers {
		d.DestroyBuffer(id)
	}
	for _, r := range d.dummyRes {
		r.Destroy()
	}
	if !d.external {
		d.gpu.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	*d = Device{backend: d.backend, provider: d.provider, present: d.present, debug: d.debug}
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

// encoder returns the open command encoder, creating one if needed.
func (d *Device) encoder() (hal.CommandEncoder, error) {
	if d.enc != nil {
		return d.enc, nil
	}
	enc, err := d.gpu.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "gpulib"})
	if err != nil {
		return nil, fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding("gpulib"); err != nil {
		enc.Destroy()
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}
	d.enc = enc
	return enc, nil
}

// submit hands the recorded commands to the queue. Queue writes issued
// afterwards are ordered after them.
func (d *Device) submit() error {
	if d.enc == nil {
		return nil
	}
	enc := d.enc
	d.enc = nil
	cmd, err := enc.EndEncoding()
	if err != nil {
		enc.Destroy()
		return fmt.Errorf("native: end encoding: %w", err)
	}
	if _, err := d.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		d.gpu.FreeCommandBuffer(cmd)
		enc.Destroy()
		return fmt.Errorf("native: submit: %w", err)
	}
	d.inflight = append(d.inflight, submission{enc: enc, cmd: cmd})
	return nil
}

// wait submits pending work, blocks until the queue is idle and releases
// per-submission resources.
func (d *Device) wait() error {
	err := d.submit()
	if werr := d.gpu.WaitIdle(); werr != nil {
		err = errors.Join(err, fmt.Errorf("native: wait idle: %w", werr))
	}
	for _, s := range d.inflight {
		d.gpu.FreeCommandBuffer(s.cmd)
		s.enc.Destroy()
	}
	d.inflight = d.inflight[:0]
	for _, g := range d.transient {
		d.gpu.DestroyBindGroup(g)
	}
	d.transient = d.transient[:0]
	return err
}

// Finish implements device.Device.
func (d *Device) Finish() error {
	if err := d.check(); err != nil {
		return err
	}
	return d.wait()
}

// Surface returns a copy of the default surface.
func (d *Device) Surface() (*image.RGBA, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	w, h := d.surface.Width, d.surface.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if err := d.readLevel(d.screen.colorTex, 0, 0, img.Pix); err != nil {
		return nil, err
	}
	return img, nil
}

// Present implements device.Device. The default surface is offscreen; a
// present callback receives its contents.
func (d *Device) Present() error {
	if err := d.check(); err != nil {
		return err
	}
	if d.present == nil {
		return d.submit()
	}
	img, err := d.Surface()
	if err != nil {
		return err
	}
	d.present(img)
	return nil
}
