package soft

import (
	"encoding/binary"
	"fmt"
	"math"

	spv "github.com/gogpu/wgpu/hal/software/shader"

	"github.com/sevas/gpulib/device"
	"github.com/sevas/gpulib/internal/wgsl"
)

// uniformSize is the byte size of one uniform location.
const uniformSize = 16

// slot is one @location interface variable of a compiled stage.
type slot struct {
	id  uint32 // SPIR-V variable
	loc uint32
	n   int // scalar components
	typ string
}

// stageIO maps the interface of an entry point onto SPIR-V variables.
// Builtins that the stage does not declare stay 0, which is never a valid
// SPIR-V id.
type stageIO struct {
	vertexIndex   uint32
	instanceIndex uint32
	fragCoord     uint32
	frontFacing   uint32
	position      uint32
	fragDepth     uint32
	// inputs and outputs are sorted by location.
	inputs  []slot
	outputs []slot
}

type shader struct {
	stage    device.Stage
	label    string
	entry    string
	refl     *wgsl.Module
	prog     *spv.Module
	io       stageIO
	captures []slot
	active   map[int]wgsl.Binding
	uniforms map[int][]byte
}

// varyings returns the offset of each @location output in the flattened
// attribute slice of a vertex.
func (s *shader) varyings() map[uint32]int {
	offs := make(map[uint32]int, len(s.io.outputs))
	off := 0
	for _, o := range s.io.outputs {
		offs[o.loc] = off
		off += o.n
	}
	return offs
}

// fragInput feeds one fragment @location input from the interpolated
// vertex attributes.
type fragInput struct {
	slot
	off int
}

type pipeline struct {
	vert   *shader
	frag   *shader
	inputs []fragInput
}

// CompileShader implements device.Device. The source is compiled by naga
// to SPIR-V, which the draw calls interpret.
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

	var stage string
	switch desc.Stage {
	case device.StageVertex:
		stage = "vertex"
		if len(desc.Captures) > d.limits.MaxFeedbackBuffers {
			return fail("%d capture variables, at most %d", len(desc.Captures), d.limits.MaxFeedbackBuffers)
		}
	case device.StageFragment:
		stage = "fragment"
		if len(desc.Captures) > 0 {
			return fail("capture variables on a fragment stage")
		}
	default:
		return fail("unknown stage %v", desc.Stage)
	}
	ep, ok := refl.EntryPoint(stage)
	if !ok {
		return fail("no @%s entry point", stage)
	}

	words, err := refl.SPIRV()
	if err != nil {
		return fail("%v", err)
	}
	prog, err := spv.ParseModule(words)
	if err != nil {
		return fail("%v", err)
	}

	s := &shader{
		stage:    desc.Stage,
		label:    desc.Label,
		entry:    ep.Name,
		refl:     refl,
		prog:     prog,
		active:   refl.Uniforms(),
		uniforms: make(map[int][]byte),
	}
	if err := s.bindInterface(ep); err != nil {
		return fail("%v", err)
	}
	for loc := range s.active {
		if loc >= d.limits.MaxUniformLocations {
			return fail("uniform location %d exceeds %d", loc, d.limits.MaxUniformLocations)
		}
	}
	for _, name := range desc.Captures {
		v, ok := ep.OutputNamed(name)
		if !ok {
			return fail("capture variable %q is not an output of %s", name, ep.Name)
		}
		o, _ := s.output(v.Location)
		s.captures = append(s.captures, o)
	}

	id := device.ShaderID(d.id())
	d.shaders[id] = s
	slogger().Debug("soft: shader compiled", "id", id, "stage", desc.Stage, "entry", s.entry,
		"uniforms", len(s.active), "spirv_words", len(words))
	return id, nil
}

// bindInterface classifies the SPIR-V interface variables of the entry
// point by builtin and location.
func (s *shader) bindInterface(ep wgsl.EntryPoint) error {
	sep, ok := s.prog.EntryPoints[s.entry]
	if !ok {
		return fmt.Errorf("entry point %s missing from SPIR-V", s.entry)
	}
	io := &s.io
	for _, id := range sep.InterfaceIDs {
		vi, ok := s.prog.Variables[id]
		if !ok {
			continue
		}
		bi, loc := s.prog.GetBuiltIn(id), s.prog.GetLocation(id)
		switch vi.StorageClass {
		case spv.StorageClassInput:
			switch {
			case bi == spv.BuiltInVertexIndex:
				io.vertexIndex = id
			case bi == spv.BuiltInInstanceIndex:
				io.instanceIndex = id
			case bi == spv.BuiltInFragCoord:
				io.fragCoord = id
			case bi == spv.BuiltInFrontFacing:
				io.frontFacing = id
			case loc >= 0:
				v, _ := ep.Input(uint32(loc))
				io.inputs = append(io.inputs, newSlot(s.prog, id, v))
			}
		case spv.StorageClassOutput:
			switch {
			case bi == spv.BuiltInPosition:
				io.position = id
			case bi == spv.BuiltInFragDepth:
				io.fragDepth = id
			case loc >= 0:
				v, _ := ep.Output(uint32(loc))
				io.outputs = append(io.outputs, newSlot(s.prog, id, v))
			}
		}
	}
	sortSlots(io.inputs)
	sortSlots(io.outputs)
	if s.stage == device.StageVertex && io.position == 0 {
		return fmt.Errorf("%s does not write @builtin(position)", s.entry)
	}
	return nil
}

func newSlot(prog *spv.Module, id uint32, v wgsl.Varying) slot {
	n := v.Components
	if n == 0 {
		n = prog.GetTypeComponentCount(id)
	}
	return slot{id: id, loc: uint32(prog.GetLocation(id)), n: max(n, 1), typ: v.Type}
}

func sortSlots(ss []slot) {
	for i := 1; i < len(ss); i++ {
		for j := i; j > 0 && ss[j].loc < ss[j-1].loc; j-- {
			ss[j], ss[j-1] = ss[j-1], ss[j]
		}
	}
}

func (s *shader) output(loc uint32) (slot, bool) {
	for _, o := range s.io.outputs {
		if o.loc == loc {
			return o, true
		}
	}
	return slot{}, false
}

// UniformActive implements device.Device.
func (d *Device) UniformActive(id device.ShaderID, loc int) bool {
	s, ok := d.shaders[id]
	if !ok {
		return false
	}
	_, ok = s.active[loc]
	return ok
}

// SetUniform implements device.Device. A value whose kind does not match
// the declared type is dropped with a diagnostic.
func (d *Device) SetUniform(id device.ShaderID, loc int, value device.Uniform) {
	s, ok := d.shaders[id]
	if !ok {
		return
	}
	b, ok := s.active[loc]
	if !ok {
		return
	}
	if b.Type != value.Kind.String() {
		d.emit(device.Message{
			Source:   device.SourceAPI,
			Type:     device.TypeError,
			Severity: device.SeverityHigh,
			ID:       1,
			Text:     fmt.Sprintf("uniform %q at location %d has type %s, set as %s", b.Name, loc, b.Type, value.Kind),
		})
		return
	}
	s.uniforms[loc] = encodeUniform(value)
}

// encodeUniform lays value out the way a uniform buffer holds it.
func encodeUniform(value device.Uniform) []byte {
	data := make([]byte, uniformSize)
	switch value.Kind {
	case device.UniformInt:
		binary.LittleEndian.PutUint32(data, uint32(value.Int))
	default:
		for i, f := range value.Float {
			binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(f))
		}
	}
	return data
}

// DestroyShader implements device.Device.
func (d *Device) DestroyShader(id device.ShaderID) { delete(d.shaders, id) }

// LinkPipeline implements device.Device. Fragment inputs are matched to
// vertex outputs by location.
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
	p := &pipeline{vert: vs}
	if frag != device.InvalidID {
		fs, ok := d.shaders[frag]
		if !ok {
			return 0, fmt.Errorf("%w: shader %d", device.ErrUnknownID, frag)
		}
		if fs.stage != device.StageFragment {
			return 0, device.LinkErrorf("shader %d is a %v stage, want fragment", frag, fs.stage)
		}
		offs := vs.varyings()
		for _, in := range fs.io.inputs {
			off, ok := offs[in.loc]
			out, _ := vs.output(in.loc)
			if !ok || out.n < in.n {
				return 0, device.LinkErrorf("fragment input @location(%d) of %s is not written by %s", in.loc, fs.entry, vs.entry)
			}
			p.inputs = append(p.inputs, fragInput{slot: in, off: off})
		}
		p.frag = fs
	}
	id := device.PipelineID(d.id())
	d.pipelines[id] = p
	return id, nil
}

// DestroyPipeline implements device.Device.
func (d *Device) DestroyPipeline(id device.PipelineID) { delete(d.pipelines, id) }

// appendFloats flattens v into the float slice the rasterizer interpolates.
func appendFloats(dst []float32, v spv.Value, n int) []float32 {
	switch v.Tag {
	case spv.TagUint32:
		return append(dst, float32(v.U[0]))
	case spv.TagInt32:
		return append(dst, float32(int32(v.U[0])))
	case spv.TagBool:
		if v.U[0] != 0 {
			return append(dst, 1)
		}
		return append(dst, 0)
	}
	return append(dst, v.F[:min(n, 4)]...)
}

func toValue(vals []float32, typ string) spv.Value {
	switch typ {
	case "u32":
		return spv.ValUint(uint32(math.Round(float64(vals[0]))))
	case "i32":
		return spv.ValInt(int32(math.Round(float64(vals[0]))))
	}
	switch len(vals) {
	case 1:
		return spv.ValFloat(vals[0])
	case 2:
		return spv.ValVec2(vals[0], vals[1])
	case 3:
		return spv.ValVec3(vals[0], vals[1], vals[2])
	}
	return spv.ValVec4(vals[0], vals[1], vals[2], vals[3])
}

// putValue writes the n components of v as little-endian words. Integers
// keep their bits.
func putValue(dst []byte, v spv.Value, n int) {
	for i := 0; i < n; i++ {
		var w uint32
		switch v.Tag {
		case spv.TagUint32, spv.TagInt32, spv.TagBool:
			w = v.U[min(i, 3)]
		default:
			w = math.Float32bits(v.F[min(i, 3)])
		}
		binary.LittleEndian.PutUint32(dst[i*4:], w)
	}
}
