package soft

import (
	"fmt"

	spv "github.com/gogpu/wgpu/hal/software/shader"

	"github.com/sevas/gpulib/device"
	"github.com/sevas/gpulib/internal/texel"
	"github.com/sevas/gpulib/internal/wgsl"
)

// msgCaptureFull is raised once when a capture range overflows.
const msgCaptureFull = 100

// vertex is one executed vertex invocation.
type vertex struct {
	pos [4]float32
	// attrs holds the @location outputs flattened in location order.
	attrs []float32
	outs  map[uint32]spv.Value
}

// Draw implements device.Device.
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

	vctx := d.context(p.vert)
	if d.capture != nil {
		return d.record(d.capture, p.vert, vctx, call)
	}
	if p.frag == nil {
		return fmt.Errorf("%w: pipeline without fragment stage drawn outside capture", device.ErrInvalidArgument)
	}

	r := newRasterizer(d.target, p, d.context(p.frag), d.depthTest)
	for inst := call.InstanceFirst; inst < call.InstanceFirst+call.InstanceCount; inst++ {
		verts, err := runVertices(p.vert, vctx, call.First, call.Count, inst)
		if err != nil {
			return err
		}
		call.Topology.Primitives(len(verts), func(idx []int) {
			switch len(idx) {
			case 1:
				r.point(verts[idx[0]])
			case 2:
				r.line(verts[idx[0]], verts[idx[1]])
			case 3:
				r.triangle(verts[idx[0]], verts[idx[1]], verts[idx[2]])
			}
		})
		if r.err != nil {
			return r.err
		}
	}
	return nil
}

// context resolves the resources s declares against the bound units.
// Units with nothing bound read as zero-length buffers and transparent
// black textures.
func (d *Device) context(s *shader) *spv.ExecutionContext {
	ctx := &spv.ExecutionContext{
		Inputs:   make(map[uint32]spv.Value, 4),
		Buffers:  make(map[spv.BindingKey][]byte),
		Textures: make(map[spv.BindingKey]*spv.Texture2D),
		Samplers: make(map[spv.BindingKey]*spv.Sampler),
	}
	for _, b := range s.refl.Bindings {
		key := spv.BindingKey{Group: b.Group, Binding: b.Binding}
		unit := int(b.Binding)
		switch b.Kind {
		case wgsl.BindingStorage:
			ctx.Buffers[key] = d.unitBytes(unit)
		case wgsl.BindingTexture:
			ctx.Textures[key] = d.unitTexture(unit)
		case wgsl.BindingSampler:
			var smp *sampler
			if unit < len(d.smps) {
				smp = d.smps[unit]
			}
			ctx.Samplers[key] = smp.shaderSampler()
		case wgsl.BindingUniform:
			data, ok := s.uniforms[unit]
			if !ok {
				data = make([]byte, uniformSize)
			}
			ctx.Buffers[key] = data
		}
	}
	return ctx
}

func (d *Device) unit(i int) *view {
	if i < 0 || i >= len(d.units) {
		return nil
	}
	return d.units[i]
}

// unitBytes returns the storage a buffer binding reads through unit i.
func (d *Device) unitBytes(i int) []byte {
	v := d.unit(i)
	switch {
	case v == nil:
		return []byte{}
	case v.buf != nil:
		return v.buf.data[v.offset : v.offset+v.size]
	}
	return v.tex.levels[v.face(0, 0)][v.mipFirst]
}

// unitTexture converts the base level of the view bound at unit i to the
// RGBA8 image the interpreter samples.
func (d *Device) unitTexture(i int) *spv.Texture2D {
	v := d.unit(i)
	if v == nil || v.tex == nil {
		return &spv.Texture2D{Width: 1, Height: 1, Data: make([]byte, 4)}
	}
	w, h := v.tex.size(v.mipFirst)
	tex := &spv.Texture2D{Width: uint32(w), Height: uint32(h)}
	lvl := v.tex.levels[v.face(0, 0)][v.mipFirst]
	if v.format == device.FormatRGBA8 || v.format == device.FormatSRGBA8 {
		tex.Data = lvl
		return tex
	}
	tex.Data = make([]byte, w*h*4)
	stride := v.format.Stride()
	for p := 0; p < w*h; p++ {
		c := texel.Decode(v.format, lvl[p*stride:(p+1)*stride])
		for k := 0; k < 4; k++ {
			tex.Data[p*4+k] = texel.Unorm8(c[k])
		}
	}
	return tex
}

func runVertices(s *shader, ctx *spv.ExecutionContext, first, count, inst int) ([]*vertex, error) {
	verts := make([]*vertex, count)
	for i := range verts {
		if s.io.vertexIndex != 0 {
			ctx.Inputs[s.io.vertexIndex] = spv.ValUint(uint32(first + i))
		}
		if s.io.instanceIndex != 0 {
			ctx.Inputs[s.io.instanceIndex] = spv.ValUint(uint32(inst))
		}
		outs, err := s.prog.ExecuteWithContext(s.entry, ctx)
		if err != nil {
			return nil, fmt.Errorf("soft: %s vertex %d: %w", s.entry, first+i, err)
		}
		v := &vertex{pos: spv.Vec4ToFloat32(outs[s.io.position]), outs: outs}
		for _, o := range s.io.outputs {
			v.attrs = appendFloats(v.attrs, outs[o.id], o.n)
		}
		verts[i] = v
	}
	return verts, nil
}

// record appends the capture variables of every assembled primitive to
// the bound capture ranges. A primitive that does not fit in every range
// marks the target full; nothing more is written until it is rebound.
func (d *Device) record(fb *feedback, s *shader, ctx *spv.ExecutionContext, call device.DrawCall) error {
	if len(s.captures) != len(fb.ranges) {
		return fmt.Errorf("%w: stage captures %d variables, target has %d ranges",
			device.ErrInvalidArgument, len(s.captures), len(fb.ranges))
	}
	for inst := call.InstanceFirst; inst < call.InstanceFirst+call.InstanceCount; inst++ {
		verts, err := runVertices(s, ctx, call.First, call.Count, inst)
		if err != nil {
			return err
		}
		call.Topology.Primitives(len(verts), func(idx []int) {
			if fb.full {
				return
			}
			for i, c := range s.captures {
				need := uint64(4*c.n) * uint64(len(idx))
				if fb.cursor[i]+need > fb.ranges[i].Size {
					fb.full = true
					d.emit(device.Message{
						Source:   device.SourceAPI,
						Type:     device.TypeError,
						Severity: device.SeverityMedium,
						ID:       msgCaptureFull,
						Text:     fmt.Sprintf("capture range %d full after %d bytes, further vertices dropped", i, fb.cursor[i]),
					})
					return
				}
			}
			for i, c := range s.captures {
				data := fb.bufs[i].data
				for _, k := range idx {
					off := fb.ranges[i].Offset + fb.cursor[i]
					putValue(data[off:], verts[k].outs[c.id], c.n)
					fb.cursor[i] += uint64(4 * c.n)
				}
			}
		})
	}
	return nil
}
