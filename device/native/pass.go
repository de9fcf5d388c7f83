package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/sevas/gpulib/device"
)

type framebuffer struct {
	colorViews   []hal.TextureView
	colorFormats []gputypes.TextureFormat
	depthView    hal.TextureView

	// Owned textures of the default surface.
	colorTex *texture
	depthTex *texture
}

func (fb *framebuffer) destroy(gpu hal.Device) {
	for _, v := range fb.colorViews {
		gpu.DestroyTextureView(v)
	}
	if fb.depthView != nil {
		gpu.DestroyTextureView(fb.depthView)
	}
	if fb.colorTex != nil {
		gpu.DestroyTexture(fb.colorTex.raw)
	}
	if fb.depthTex != nil {
		gpu.DestroyTexture(fb.depthTex.raw)
	}
}

// newScreen creates the offscreen default surface.
func (d *Device) newScreen(w, h int) (*framebuffer, error) {
	color, err := d.newTexture(device.TextureDesc{Label: "surface", Format: device.FormatRGBA8,
		Width: w, Height: h, Layers: 1, Mips: 1})
	if err != nil {
		return nil, err
	}
	depth, err := d.newTexture(device.TextureDesc{Label: "surface-depth", Format: device.FormatD32F,
		Width: w, Height: h, Layers: 1, Mips: 1})
	if err != nil {
		d.gpu.DestroyTexture(color.raw)
		return nil, err
	}
	fb := &framebuffer{colorTex: color, depthTex: depth}
	cv, err := d.attachmentView(color, color.gpu.Format, 0, 0)
	if err == nil {
		fb.colorViews = []hal.TextureView{cv}
		fb.colorFormats = []gputypes.TextureFormat{color.gpu.Format}
		fb.depthView, err = d.attachmentView(depth, depth.gpu.Format, 0, 0)
	}
	if err != nil {
		fb.destroy(d.gpu)
		return nil, err
	}
	return fb, nil
}

// attachmentView creates a single-layer, single-mip 2D view for rendering.
func (d *Device) attachmentView(t *texture, format gputypes.TextureFormat, layer, mip int) (hal.TextureView, error) {
	v, err := d.gpu.CreateTextureView(t.raw, &hal.TextureViewDescriptor{
		Label:           t.desc.Label + "-attachment",
		Format:          format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		BaseMipLevel:    uint32(mip),
		MipLevelCount:   1,
		BaseArrayLayer:  uint32(layer),
		ArrayLayerCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create attachment view: %w", err)
	}
	return v, nil
}

// CreateFramebuffer implements device.Device. Attachments render into the
// first layer and first mip of each view.
func (d *Device) CreateFramebuffer(colors []device.ViewID, depth device.ViewID) (device.FramebufferID, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	if len(colors) > d.limits.MaxColorAttachments {
		return 0, fmt.Errorf("%w: %d color attachments", device.ErrInvalidArgument, len(colors))
	}
	fb := &framebuffer{}
	attach := func(id device.ViewID, wantDepth bool) (hal.TextureView, gputypes.TextureFormat, error) {
		v, ok := d.views[id]
		if !ok {
			return nil, 0, fmt.Errorf("%w: view %d", device.ErrUnknownID, id)
		}
		if v.tex == nil || v.format.IsDepth() != wantDepth {
			return nil, 0, fmt.Errorf("%w: view %d cannot be this attachment", device.ErrInvalidArgument, id)
		}
		g, _ := textureFormat(v.format)
		raw, err := d.attachmentView(v.tex, g.Format, v.layerFirst, v.mipFirst)
		return raw, g.Format, err
	}
	for _, id := range colors {
		raw, format, err := attach(id, false)
		if err != nil {
			fb.destroy(d.gpu)
			return 0, err
		}
		fb.colorViews = append(fb.colorViews, raw)
		fb.colorFormats = append(fb.colorFormats, format)
	}
	if depth != device.InvalidID {
		raw, _, err := attach(depth, true)
		if err != nil {
			fb.destroy(d.gpu)
			return 0, err
		}
		fb.depthView = raw
	}
	id := device.FramebufferID(d.id())
	d.framebuffers[id] = fb
	return id, nil
}

// DestroyFramebuffer implements device.Device.
func (d *Device) DestroyFramebuffer(id device.FramebufferID) {
	fb, ok := d.framebuffers[id]
	if !ok {
		return
	}
	if d.target == fb {
		d.target = d.screen
	}
	if d.enc != nil {
		if err := d.wait(); err != nil {
			slogger().Warn("native: wait before framebuffer release", "error", err)
		}
	}
	fb.destroy(d.gpu)
	delete(d.framebuffers, id)
}

// CreateFeedback implements device.Device. Vertex capture is unavailable.
func (d *Device) CreateFeedback([]device.CaptureRange) (device.FeedbackID, error) {
	return 0, fmt.Errorf("%w: vertex capture", device.ErrUnsupported)
}

// DestroyFeedback implements device.Device.
func (d *Device) DestroyFeedback(device.FeedbackID) {}

// BindFramebuffer implements device.Device.
func (d *Device) BindFramebuffer(id device.FramebufferID) error {
	if err := d.check(); err != nil {
		return err
	}
	if id == device.InvalidID {
		d.target = d.screen
		return nil
	}
	fb, ok := d.framebuffers[id]
	if !ok {
		return fmt.Errorf("%w: framebuffer %d", device.ErrUnknownID, id)
	}
	d.target = fb
	return nil
}

// BindFeedback implements device.Device. Only unbinding succeeds.
func (d *Device) BindFeedback(id device.FeedbackID) error {
	if err := d.check(); err != nil {
		return err
	}
	if id != device.InvalidID {
		return fmt.Errorf("%w: vertex capture", device.ErrUnsupported)
	}
	return nil
}

// SetDepthTest implements device.Device.
func (d *Device) SetDepthTest(enabled bool) { d.depthTest = enabled }

// beginPass opens a render pass on the bound target. A nil clear loads the
// existing contents.
func (d *Device) beginPass(clear *[4]float32, depth float32) (hal.RenderPassEncoder, error) {
	enc, err := d.encoder()
	if err != nil {
		return nil, err
	}
	load := gputypes.LoadOpLoad
	var cv gputypes.Color
	if clear != nil {
		load = gputypes.LoadOpClear
		cv = gputypes.Color{R: float64(clear[0]), G: float64(clear[1]), B: float64(clear[2]), A: float64(clear[3])}
	}
	desc := &hal.RenderPassDescriptor{Label: "gpulib-pass"}
	for _, v := range d.target.colorViews {
		desc.ColorAttachments = append(desc.ColorAttachments, hal.RenderPassColorAttachment{
			View:       v,
			LoadOp:     load,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: cv,
		})
	}
	if d.target.depthView != nil {
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:            d.target.depthView,
			DepthLoadOp:     load,
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: depth,
			StencilReadOnly: true,
		}
	}
	return enc.BeginRenderPass(desc), nil
}

// Clear implements device.Device.
func (d *Device) Clear(color [4]float32, depth float32) error {
	if err := d.check(); err != nil {
		return err
	}
	pass, err := d.beginPass(&color, depth)
	if err != nil {
		return err
	}
	pass.End()
	return nil
}

// BindPipeline implements device.Device.
func (d *Device) BindPipeline(id device.PipelineID) error {
	if err := d.check(); err != nil {
		return err
	}
	p, ok := d.pipelines[id]
	if !ok {
		return fmt.Errorf("%w: pipeline %d", device.ErrUnknownID, id)
	}
	d.pipeline = p
	return nil
}

// BindTexture implements device.Device.
func (d *Device) BindTexture(unit int, id device.ViewID) error {
	if err := d.check(); err != nil {
		return err
	}
	if unit < 0 || unit >= len(d.units) {
		return fmt.Errorf("%w: texture unit %d", device.ErrInvalidArgument, unit)
	}
	if id == device.InvalidID {
		d.units[unit] = nil
		return nil
	}
	v, ok := d.views[id]
	if !ok {
		return fmt.Errorf("%w: view %d", device.ErrUnknownID, id)
	}
	d.units[unit] = v
	return nil
}

// BindSampler implements device.Device.
func (d *Device) BindSampler(unit int, id device.SamplerID) error {
	if err := d.check(); err != nil {
		return err
	}
	if unit < 0 || unit >= len(d.smps) {
		return fmt.Errorf("%w: sampler unit %d", device.ErrInvalidArgument, unit)
	}
	if id == device.InvalidID {
		d.smps[unit] = nil
		return nil
	}
	s, ok := d.samplers[id]
	if !ok {
		return fmt.Errorf("%w: sampler %d", device.ErrUnknownID, id)
	}
	d.smps[unit] = s
	return nil
}

// Draw implements device.Device. Each draw is its own render pass that
// loads and stores the bound target.
func (d *Device) Draw(call device.DrawCall) error {
	if err := d.check(); err != nil {
		return err
	}
	p := d.pipeline
	if p == nil {
		return fmt.Errorf("%w: no pipeline bound", device.ErrInvalidArgument)
	}
	if !call.Topology.Valid() {
		return fmt.Errorf("%w: topology %v", device.ErrInvalidArgument, call.Topology)
	}
	if call.First < 0 || call.Count < 0 || call.InstanceFirst < 0 || call.InstanceCount < 0 {
		return fmt.Errorf("%w: negative draw range %+v", device.ErrInvalidArgument, call)
	}
	if call.Count == 0 || call.InstanceCount == 0 {
		return nil
	}
	if p.frag == nil {
		return fmt.Errorf("%w: pipeline without fragment stage drawn outside capture", device.ErrInvalidArgument)
	}
	rp, err := d.variant(p, call.Topology)
	if err != nil {
		return err
	}
	var groups [3]hal.BindGroup
	for g := range groups {
		bg, err := d.bindGroup(p, g)
		if err != nil {
			return err
		}
		groups[g] = bg
	}

	pass, err := d.beginPass(nil, 0)
	if err != nil {
		return err
	}
	pass.SetPipeline(rp)
	for g, bg := range groups {
		pass.SetBindGroup(uint32(g), bg, nil)
	}
	pass.Draw(uint32(call.Count), uint32(call.InstanceCount), uint32(call.First), uint32(call.InstanceFirst))
	pass.End()
	return nil
}

// bindGroup creates the bind group for group g of p from the bound units
// and the stage uniforms. It lives until the next wait.
func (d *Device) bindGroup(p *pipeline, g int) (hal.BindGroup, error) {
	entries := make([]gputypes.BindGroupEntry, 0, len(p.entries[g]))
	for _, e := range p.entries[g] {
		res, err := d.resource(p, g, e)
		if err != nil {
			return nil, err
		}
		entries = append(entries, gputypes.BindGroupEntry{Binding: e.Binding, Resource: res})
	}
	bg, err := d.gpu.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   fmt.Sprintf("gpulib-group-%d", g),
		Layout:  p.groups[g],
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create bind group %d: %w", g, err)
	}
	d.transient = append(d.transient, bg)
	return bg, nil
}

// resource resolves one layout entry. Unbound units, and units holding a
// view of the wrong kind, get a placeholder.
func (d *Device) resource(p *pipeline, g int, e gputypes.BindGroupLayoutEntry) (gputypes.BindingResource, error) {
	unit := int(e.Binding)
	switch {
	case e.Buffer != nil && e.Buffer.Type == gputypes.BufferBindingTypeUniform:
		for _, s := range []*shader{p.vert, p.frag} {
			if s == nil {
				continue
			}
			if u, ok := s.uniforms[unit]; ok {
				return gputypes.BufferBinding{Buffer: u.raw.NativeHandle(), Offset: 0, Size: uniformSize}, nil
			}
		}
	case e.Buffer != nil:
		if unit < len(d.units) && d.units[unit] != nil {
			v := d.units[unit]
			if v.buf != nil {
				if v.size == 0 {
					return d.dummy(e)
				}
				return gputypes.BufferBinding{Buffer: v.buf.raw.NativeHandle(), Offset: v.offset, Size: v.size}, nil
			}
			d.mismatch(unit, "storage buffer", "image")
		}
	case e.Texture != nil:
		if unit < len(d.units) && d.units[unit] != nil {
			v := d.units[unit]
			if v.raw != nil && v.dim == e.Texture.ViewDimension {
				return gputypes.TextureViewBinding{TextureView: v.raw.NativeHandle()}, nil
			}
			d.mismatch(unit, "texture", "view of another kind")
		}
	case e.Sampler != nil:
		if unit < len(d.smps) && d.smps[unit] != nil {
			return gputypes.SamplerBinding{Sampler: d.smps[unit].raw.NativeHandle()}, nil
		}
	}
	return d.dummy(e)
}

func (d *Device) mismatch(unit int, want, got string) {
	d.emit(device.Message{
		Source:   device.SourceAPI,
		Type:     device.TypeError,
		Severity: device.SeverityHigh,
		ID:       2,
		Text:     fmt.Sprintf("unit %d expects a %s, bound %s", unit, want, got),
	})
}

// dummyKey identifies a placeholder resource shape.
type dummyKey struct {
	buffer  bool
	sampler bool
	sample  gputypes.TextureSampleType
	dim     gputypes.TextureViewDimension
}

// dummy returns a placeholder satisfying layout entry e.
func (d *Device) dummy(e gputypes.BindGroupLayoutEntry) (gputypes.BindingResource, error) {
	var key dummyKey
	switch {
	case e.Buffer != nil:
		key.buffer = true
	case e.Sampler != nil:
		key.sampler = true
	case e.Texture != nil:
		key.sample, key.dim = e.Texture.SampleType, e.Texture.ViewDimension
	}
	if r, ok := d.dummies[key]; ok {
		return r, nil
	}

	var res gputypes.BindingResource
	switch {
	case key.buffer:
		usage := gputypes.BufferUsageStorage | gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
		b, err := d.gpu.CreateBuffer(&hal.BufferDescriptor{Label: "gpulib-dummy-buffer", Size: uniformSize, Usage: usage})
		if err != nil {
			return nil, fmt.Errorf("native: create placeholder buffer: %w", err)
		}
		d.dummyRes = append(d.dummyRes, b)
		res = gputypes.BufferBinding{Buffer: b.NativeHandle(), Size: uniformSize}
	case key.sampler:
		s, err := d.gpu.CreateSampler(&hal.SamplerDescriptor{
			Label:        "gpulib-dummy-sampler",
			AddressModeU: gputypes.AddressModeClampToEdge,
			AddressModeV: gputypes.AddressModeClampToEdge,
			AddressModeW: gputypes.AddressModeClampToEdge,
			MagFilter:    gputypes.FilterModeNearest,
			MinFilter:    gputypes.FilterModeNearest,
			MipmapFilter: gputypes.FilterModeNearest,
			LodMaxClamp:  32,
			Anisotropy:   1,
		})
		if err != nil {
			return nil, fmt.Errorf("native: create placeholder sampler: %w", err)
		}
		d.dummyRes = append(d.dummyRes, s)
		res = gputypes.SamplerBinding{Sampler: s.NativeHandle()}
	default:
		v, err := d.dummyTexture(key)
		if err != nil {
			return nil, err
		}
		res = gputypes.TextureViewBinding{TextureView: v.NativeHandle()}
	}
	d.dummies[key] = res
	return res, nil
}

func (d *Device) dummyTexture(key dummyKey) (hal.TextureView, error) {
	format := device.FormatRGBA8
	switch key.sample {
	case gputypes.TextureSampleTypeDepth:
		format = device.FormatD32F
	case gputypes.TextureSampleTypeSint:
		format = device.FormatX32I
	case gputypes.TextureSampleTypeUint:
		format = device.FormatX32U
	}
	cube := key.dim == gputypes.TextureViewDimensionCube || key.dim == gputypes.TextureViewDimensionCubeArray
	t, err := d.newTexture(device.TextureDesc{Label: "gpulib-dummy", Format: format,
		Width: 1, Height: 1, Layers: 1, Mips: 1, Cube: cube})
	if err != nil {
		return nil, err
	}
	d.dummyRes = append(d.dummyRes, t.raw)
	layers := uint32(t.desc.FaceCount())
	v, err := d.gpu.CreateTextureView(t.raw, &hal.TextureViewDescriptor{
		Label:           "gpulib-dummy",
		Format:          t.gpu.Format,
		Dimension:       key.dim,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: layers,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create placeholder view: %w", err)
	}
	d.dummyRes = append(d.dummyRes, v)
	return v, nil
}
