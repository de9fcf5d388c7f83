package gpulib

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sevas/gpulib/device"
)

// Context owns a device, its arena and every handle created through it.
//
// A Context is not safe for concurrent use. All methods must be called
// from the goroutine that submits work.
type Context struct {
	dev    device.Device
	limits device.Limits
	log    *slog.Logger
	debug  DebugFunc
	arena  *Arena
	closed bool

	views        table[viewRecord]
	images       table[imageRecord]
	samplers     table[device.SamplerID]
	stages       table[stageRecord]
	pipelines    table[pipelineRecord]
	framebuffers table[framebufferRecord]
	feedbacks    table[feedbackRecord]

	state    State
	boundFB  Framebuffer
	boundXFB Feedback
}

type viewRecord struct {
	id     device.ViewID
	format Format

	// Arena views.
	offset uint64
	length uint64

	// Image views.
	image      Image
	layerFirst int
	layerCount int
	mipFirst   int
	mipCount   int
}

type imageRecord struct {
	tex    device.TextureID
	format Format
	width  int
	height int
	layers int
	mips   int
	cube   bool
	view   View
	// populated[l] is set once face-layer l received level-0 content.
	populated []bool
}

type stageRecord struct {
	id       device.ShaderID
	kind     StageKind
	label    string
	captures []string
}

type pipelineRecord struct {
	id   device.PipelineID
	vert Stage
	frag Stage
}

type framebufferRecord struct {
	id     device.FramebufferID
	colors []View
	depth  View
	width  int
	height int
}

type feedbackRecord struct {
	id     device.FeedbackID
	ranges []CaptureRange
}

// NewContext opens a device and allocates the arena.
//
// Without WithDevice or WithDeviceName the highest priority registered
// device is used, falling back to the software device if it fails to
// initialize.
func NewContext(opts ...ContextOption) (*Context, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger
	if log == nil {
		log = Logger()
	}

	dev, explicit := o.dev, true
	if dev == nil && o.devName != "" {
		d, err := device.Get(o.devName)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		dev = d
	}
	if dev == nil {
		dev, explicit = device.Default(), false
		if dev == nil {
			return nil, fmt.Errorf("%w: no device registered (import a device package such as device/soft)", ErrConfiguration)
		}
	}

	propagateLogger(dev, log)
	if err := dev.Init(o.surface); err != nil {
		fb := device.Fallback(dev.Name())
		if explicit || fb == nil {
			return nil, fmt.Errorf("gpulib: init %s device: %w", dev.Name(), err)
		}
		log.Warn("gpulib: device init failed, using fallback", "device", dev.Name(), "fallback", fb.Name(), "err", err)
		dev = fb
		propagateLogger(dev, log)
		if err := dev.Init(o.surface); err != nil {
			return nil, fmt.Errorf("gpulib: init %s device: %w", dev.Name(), err)
		}
	}

	c := &Context{
		dev:    dev,
		limits: dev.Limits(),
		log:    log,
		debug:  o.debug,
	}
	dev.SetDebugFunc(c.onMessage)

	arena, err := newArena(dev, o.arenaCapacity, log)
	if err != nil {
		dev.Close()
		return nil, err
	}
	c.arena = arena

	log.Info("gpulib: device selected", "device", dev.Name(),
		"surface", fmt.Sprintf("%dx%d", o.surface.Width, o.surface.Height),
		"arena", o.arenaCapacity, "mapped", arena.mapped)
	return c, nil
}

// Device returns the underlying device.
func (c *Context) Device() device.Device { return c.dev }

// Limits returns the device limits.
func (c *Context) Limits() device.Limits { return c.limits }

// Arena returns the context arena.
func (c *Context) Arena() *Arena { return c.arena }

// State returns the current binding state.
func (c *Context) State() State { return c.state }

// Close destroys every handle, the arena and the device. It is safe to
// call more than once.
func (c *Context) Close() {
	if c.closed {
		return
	}
	c.closed = true
	d := c.dev
	for i := range c.feedbacks.items {
		d.DestroyFeedback(c.feedbacks.items[i].id)
	}
	for i := range c.framebuffers.items {
		d.DestroyFramebuffer(c.framebuffers.items[i].id)
	}
	for i := range c.pipelines.items {
		d.DestroyPipeline(c.pipelines.items[i].id)
	}
	for i := range c.stages.items {
		d.DestroyShader(c.stages.items[i].id)
	}
	for _, s := range c.samplers.items {
		d.DestroySampler(s)
	}
	for i := range c.views.items {
		d.DestroyView(c.views.items[i].id)
	}
	for i := range c.images.items {
		d.DestroyTexture(c.images.items[i].tex)
	}
	c.arena.destroy()
	d.Close()
	c.log.Debug("gpulib: context closed")
}

func (c *Context) check() error {
	if c.closed {
		return ErrClosed
	}
	return nil
}

// onMessage logs a device diagnostic by severity and forwards it.
func (c *Context) onMessage(m Message) {
	attrs := []any{"source", m.Source.String(), "type", m.Type.String(), "id", m.ID}
	switch m.Severity {
	case device.SeverityHigh:
		c.log.Error("gpulib: device: "+m.Text, attrs...)
	case device.SeverityMedium:
		c.log.Warn("gpulib: device: "+m.Text, attrs...)
	default:
		c.log.Debug("gpulib: device: "+m.Text, attrs...)
	}
	if c.debug != nil {
		c.debug(m)
	}
}

// deviceErr converts device argument failures into validation errors.
func deviceErr(op string, err error) error {
	switch {
	case errors.Is(err, device.ErrOutOfMemory):
		return fmt.Errorf("gpulib: %s: %w: %w", op, ErrConfiguration, err)
	case errors.Is(err, device.ErrInvalidArgument), errors.Is(err, device.ErrUnknownID):
		return fmt.Errorf("gpulib: %s: %w: %w", op, ErrValidation, err)
	}
	return fmt.Errorf("gpulib: %s: %w", op, err)
}
