package native

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/wgpu/hal"

	"github.com/sevas/gpulib/device"
	"github.com/sevas/gpulib/internal/wgsl"
)

// uniformSize is the size of one uniform location buffer.
const uniformSize = 16

type shader struct {
	stage    device.Stage
	label    string
	entry    string
	module   hal.ShaderModule
	refl     *wgsl.Module
	iface    wgsl.EntryPoint
	uniforms map[int]*uniform
}

type uniform struct {
	binding wgsl.Binding
	raw     hal.Buffer
}

// CompileShader implements device.Device. The source is reflected by naga
// before the backend sees it, so compile errors carry naga's message.
func (d *Device) CompileShader(desc device.ShaderDesc) (device.ShaderID, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	fail := func(format string, args ...any) (device.ShaderID, error) {
		return 0, device.CompileErrorf(desc.Stage, desc.Label, format, args...)
	}

	refl, err := wgsl.Reflect(desc.Source)
	if err != nil {
		return fail("%v", err)
	}
	if err := refl.Validate(); err != nil {
		return fail("%v", err)
	}

	stage := "vertex"
	switch desc.Stage {
	case device.StageVertex:
		if len(desc.Captures) > 0 {
			return fail("vertex capture is not supported by the %s device", device.NameNative)
		}
	case device.StageFragment:
		if len(desc.Captures) > 0 {
			return fail("capture variables on a fragment stage")
		}
		stage = "fragment"
	default:
		return fail("unknown stage %v", desc.Stage)
	}
	ep, ok := refl.EntryPoint(stage)
	if !ok {
		return fail("no @%v entry point", desc.Stage)
	}

	s := &shader{
		stage:    desc.Stage,
		label:    desc.Label,
		entry:    ep.Name,
		refl:     refl,
		iface:    ep,
		uniforms: make(map[int]*uniform),
	}
	for loc := range refl.Uniforms() {
		if loc >= d.limits.MaxUniformLocations {
			return fail("uniform location %d exceeds %d", loc, d.limits.MaxUniformLocations)
		}
	}

	s.module, err = d.gpu.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: hal.ShaderSource{WGSL: desc.Source},
	})
	if err != nil {
		return fail("%v", err)
	}
	for loc, b := range refl.Uniforms() {
		raw, err := d.gpu.CreateBuffer(&hal.BufferDescriptor{
			Label: fmt.Sprintf("%s-uniform-%d", desc.Label, loc),
			Size:  uniformSize,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			d.destroyShader(s)
			return 0, fmt.Errorf("native: create uniform buffer: %w", err)
		}
		s.uniforms[loc] = &uniform{binding: b, raw: raw}
	}

	id := device.ShaderID(d.id())
	d.shaders[id] = s
	slogger().Debug("native: shader compiled", "id", id, "stage", desc.Stage, "entry", s.entry, "uniforms", len(s.uniforms))
	return id, nil
}

// UniformActive implements device.Device.
func (d *Device) UniformActive(id device.ShaderID, loc int) bool {
	s, ok := d.shaders[id]
	if !ok {
		return false
	}
	_, ok = s.uniforms[loc]
	return ok
}

// SetUniform implements device.Device. A value whose kind does not match
// the declared type is dropped with a diagnostic.
func (d *Device) SetUniform(id device.ShaderID, loc int, value device.Uniform) {
	s, ok := d.shaders[id]
	if !ok {
		return
	}
	u, ok := s.uniforms[loc]
	if !ok {
		return
	}
	if u.binding.Type != value.Kind.String() {
		d.emit(device.Message{
			Source:   device.SourceAPI,
			Type:     device.TypeError,
			Severity: device.SeverityHigh,
			ID:       1,
			Text:     fmt.Sprintf("uniform %q at location %d has type %s, set as %s", u.binding.Name, loc, u.binding.Type, value.Kind),
		})
		return
	}

	var data [uniformSize]byte
	switch value.Kind {
	case device.UniformInt:
		binary.LittleEndian.PutUint32(data[:], uint32(value.Int))
	default:
		for i, f := range value.Float {
			binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(f))
		}
	}
	if err := d.submit(); err != nil {
		slogger().Warn("native: submit before uniform write", "error", err)
	}
	if err := d.queue.WriteBuffer(u.raw, 0, data[:]); err != nil {
		slogger().Warn("native: uniform write failed", "shader", id, "location", loc, "error", err)
	}
}

// DestroyShader implements device.Device.
func (d *Device) DestroyShader(id device.ShaderID) {
	if s, ok := d.shaders[id]; ok {
		d.destroyShader(s)
		delete(d.shaders, id)
	}
}

func (d *Device) destroyShader(s *shader) {
	for _, u := range s.uniforms {
		d.gpu.DestroyBuffer(u.raw)
	}
	if s.module != nil {
		d.gpu.DestroyShaderModule(s.module)
	}
}

// variantKey selects one render pipeline of a linked pipeline. WebGPU bakes
// topology, target formats and depth state into the pipeline object.
type variantKey struct {
	topology  device.Topology
	colors    [maxColorAttachments]gputypes.TextureFormat
	ncolors   int
	depth     bool
	depthTest bool
}

type pipeline struct {
	vert, frag *shader
	entries    [3][]gputypes.BindGroupLayoutEntry
	groups     [3]hal.BindGroupLayout
	layout     hal.PipelineLayout
	variants   map[variantKey]hal.RenderPipeline
}

// LinkPipeline implements device.Device. Bind group layouts are built from
// the bindings both stages declare.
func (d *Device) LinkPipeline(vert, frag device.ShaderID) (device.PipelineID, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	vs, ok := d.shaders[vert]
	if !ok {
		return 0, fmt.Errorf("%w: shader %d", device.ErrUnknownID, vert)
	}
	if vs.stage != device.StageVertex {
		return 0, device.LinkErrorf("shader %d is a %v stage, want vertex", vert, vs.stage)
	}
	p := &pipeline{vert: vs, variants: make(map[variantKey]hal.RenderPipeline)}
	stages := []*shader{vs}
	if frag != device.InvalidID {
		fs, ok := d.shaders[frag]
		if !ok {
			return 0, fmt.Errorf("%w: shader %d", device.ErrUnknownID, frag)
		}
		if fs.stage != device.StageFragment {
			return 0, device.LinkErrorf("shader %d is a %v stage, want fragment", frag, fs.stage)
		}
		for _, in := range fs.iface.Inputs {
			if _, ok := vs.iface.Output(in.Location); !ok {
				return 0, device.LinkErrorf("fragment input @location(%d) of %s is not written by %s", in.Location, fs.entry, vs.entry)
			}
		}
		p.frag = fs
		stages = append(stages, fs)
	}

	if err := p.buildEntries(stages); err != nil {
		return 0, err
	}
	for g := range p.groups {
		l, err := d.gpu.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("gpulib-group-%d", g),
			Entries: p.entries[g],
		})
		if err != nil {
			d.destroyPipeline(p)
			return 0, device.LinkErrorf("bind group %d layout: %v", g, err)
		}
		p.groups[g] = l
	}
	layout, err := d.gpu.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "gpulib-pipeline-layout",
		BindGroupLayouts: p.groups[:],
	})
	if err != nil {
		d.destroyPipeline(p)
		return 0, device.LinkErrorf("pipeline layout: %v", err)
	}
	p.layout = layout

	id := device.PipelineID(d.id())
	d.pipelines[id] = p
	return id, nil
}

// buildEntries merges the bindings of stages into per-group layout
// entries. A slot declared by both stages must have the same kind.
func (p *pipeline) buildEntries(stages []*shader) error {
	type slot struct {
		kind wgsl.BindingKind
		typ  string
		idx  int
	}
	seen := make(map[[2]uint32]slot)
	for _, s := range stages {
		vis := gputypes.ShaderStageVertex
		if s.stage == device.StageFragment {
			vis = gputypes.ShaderStageFragment
		}
		for _, b := range s.refl.Bindings {
			key := [2]uint32{b.Group, b.Binding}
			if prev, ok := seen[key]; ok {
				if prev.kind != b.Kind || prev.typ != b.Type {
					return device.LinkErrorf("@group(%d) @binding(%d) is %s %s in one stage and %s %s in another",
						b.Group, b.Binding, prev.kind, prev.typ, b.Kind, b.Type)
				}
				p.entries[b.Group][prev.idx].Visibility |= vis
				continue
			}
			e := gputypes.BindGroupLayoutEntry{Binding: b.Binding, Visibility: vis}
			switch b.Kind {
			case wgsl.BindingUniform:
				e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
			case wgsl.BindingStorage:
				e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}
			case wgsl.BindingTexture:
				e.Texture = textureLayout(b.Image)
			case wgsl.BindingSampler:
				typ := gputypes.SamplerBindingTypeFiltering
				if b.Comparison() {
					typ = gputypes.SamplerBindingTypeComparison
				}
				e.Sampler = &gputypes.SamplerBindingLayout{Type: typ}
			}
			seen[key] = slot{kind: b.Kind, typ: b.Type, idx: len(p.entries[b.Group])}
			p.entries[b.Group] = append(p.entries[b.Group], e)
		}
	}
	return nil
}

// textureLayout derives the binding layout of a texture type such as
// texture_2d<f32>, texture_cube_array<f32> or texture_depth_2d.
func textureLayout(img *ir.ImageType) *gputypes.TextureBindingLayout {
	l := &gputypes.TextureBindingLayout{
		SampleType:    gputypes.TextureSampleTypeFloat,
		ViewDimension: gputypes.TextureViewDimension2D,
	}
	if img == nil {
		return l
	}
	switch {
	case img.Class == ir.ImageClassDepth:
		l.SampleType = gputypes.TextureSampleTypeDepth
	case img.SampledKind == ir.ScalarSint:
		l.SampleType = gputypes.TextureSampleTypeSint
	case img.SampledKind == ir.ScalarUint:
		l.SampleType = gputypes.TextureSampleTypeUint
	}
	switch {
	case img.Dim == ir.DimCube && img.Arrayed:
		l.ViewDimension = gputypes.TextureViewDimensionCubeArray
	case img.Dim == ir.DimCube:
		l.ViewDimension = gputypes.TextureViewDimensionCube
	case img.Arrayed:
		l.ViewDimension = gputypes.TextureViewDimension2DArray
	}
	return l
}

// variant returns the render pipeline of p for topology t against the
// bound target, creating it on first use.
func (d *Device) variant(p *pipeline, t device.Topology) (hal.RenderPipeline, error) {
	topo, ok := topologies[t]
	if !ok {
		return nil, fmt.Errorf("%w: %v topology", device.ErrUnsupported, t)
	}
	key := variantKey{topology: t, depth: d.target.depthView != nil, depthTest: d.depthTest}
	for i, c := range d.target.colorFormats {
		key.colors[i] = c
	}
	key.ncolors = len(d.target.colorFormats)
	if rp, ok := p.variants[key]; ok {
		return rp, nil
	}

	desc := &hal.RenderPipelineDescriptor{
		Label:  "gpulib-" + p.vert.entry,
		Layout: p.layout,
		Vertex: hal.VertexState{Module: p.vert.module, EntryPoint: p.vert.entry},
		Primitive: gputypes.PrimitiveState{
			Topology: topo,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	}
	if p.frag != nil {
		targets := make([]gputypes.ColorTargetState, key.ncolors)
		for i := range targets {
			targets[i] = gputypes.ColorTargetState{Format: key.colors[i], WriteMask: gputypes.ColorWriteMaskAll}
		}
		desc.Fragment = &hal.FragmentState{Module: p.frag.module, EntryPoint: p.frag.entry, Targets: targets}
	}
	if key.depth {
		compare := gputypes.CompareFunctionAlways
		if key.depthTest {
			compare = gputypes.CompareFunctionLess
		}
		desc.DepthStencil = &hal.DepthStencilState{
			Format:            gputypes.TextureFormatDepth32Float,
			DepthWriteEnabled: key.depthTest,
			DepthCompare:      compare,
			StencilReadMask:   0xFFFFFFFF,
			StencilWriteMask:  0xFFFFFFFF,
		}
	}
	rp, err := d.gpu.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("native: create render pipeline: %w", err)
	}
	p.variants[key] = rp
	return rp, nil
}

// DestroyPipeline implements device.Device.
func (d *Device) DestroyPipeline(id device.PipelineID) {
	if p, ok := d.pipelines[id]; ok {
		if d.pipeline == p {
			d.pipeline = nil
		}
		d.destroyPipeline(p)
		delete(d.pipelines, id)
	}
}

func (d *Device) destroyPipeline(p *pipeline) {
	for _, rp := range p.variants {
		d.gpu.DestroyRenderPipeline(rp)
	}
	if p.layout != nil {
		d.gpu.DestroyPipelineLayout(p.layout)
	}
	for _, g := range p.groups {
		if g != nil {
			d.gpu.DestroyBindGroupLayout(g)
		}
	}
}
