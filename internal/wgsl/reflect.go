// Package wgsl compiles WGSL with naga and reflects the declarations gpulib
// binds by position: entry points, their @location interface and resource
// bindings.
//
// Both devices go through Reflect, so a source that fails here fails on
// every device with the same message.
package wgsl

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
)

// Binding groups used by gpulib.
const (
	GroupTextures = 0
	GroupSamplers = 1
	GroupUniforms = 2
)

// ErrCompile is wrapped by every parse, lowering and validation failure.
var ErrCompile = errors.New("wgsl: compile error")

// BindingKind classifies a module-scope resource declaration.
type BindingKind uint8

// Binding kinds.
const (
	BindingUniform BindingKind = iota
	BindingStorage
	BindingTexture
	BindingSampler
)

func (k BindingKind) String() string {
	switch k {
	case BindingUniform:
		return "uniform"
	case BindingStorage:
		return "storage"
	case BindingTexture:
		return "texture"
	case BindingSampler:
		return "sampler"
	}
	return fmt.Sprintf("BindingKind(%d)", uint8(k))
}

// Varying is one @location argument or result of an entry point. Struct
// members are flattened, so Name is the member name for struct I/O.
type Varying struct {
	Name       string
	Location   uint32
	Components int
	Type       string
}

// EntryPoint is a stage function.
type EntryPoint struct {
	Stage string // "vertex", "fragment" or "compute"
	Name  string
	// Inputs and Outputs are sorted by location.
	Inputs  []Varying
	Outputs []Varying
}

// Input returns the input at loc.
func (e EntryPoint) Input(loc uint32) (Varying, bool) { return findVarying(e.Inputs, loc) }

// Output returns the output at loc.
func (e EntryPoint) Output(loc uint32) (Varying, bool) { return findVarying(e.Outputs, loc) }

// OutputNamed returns the output called name.
func (e EntryPoint) OutputNamed(name string) (Varying, bool) {
	for _, v := range e.Outputs {
		if v.Name == name {
			return v, true
		}
	}
	return Varying{}, false
}

func findVarying(vs []Varying, loc uint32) (Varying, bool) {
	for _, v := range vs {
		if v.Location == loc {
			return v, true
		}
	}
	return Varying{}, false
}

// Binding is a resource declared with @group and @binding.
type Binding struct {
	Group   uint32
	Binding uint32
	Name    string
	Kind    BindingKind
	// Type is the WGSL spelling of the resolved type, so aliases such as
	// vec4f read as vec4<f32>.
	Type string
	// Image is set for textures.
	Image *ir.ImageType
}

// Comparison reports whether b is a comparison sampler.
func (b Binding) Comparison() bool { return b.Type == "sampler_comparison" }

// Module is the reflection of one compiled source.
type Module struct {
	IR          *ir.Module
	EntryPoints []EntryPoint
	// Bindings are sorted by group, then binding.
	Bindings []Binding
}

// Reflect parses, lowers and validates src with naga and collects its
// entry points and bindings.
func Reflect(src string) (*Module, error) {
	ast, err := naga.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, err)
	}
	mod, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, err)
	}
	verrs, err := naga.Validate(mod)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, err)
	}
	if len(verrs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrCompile, verrs[0])
	}

	m := &Module{IR: mod}
	for i := range mod.EntryPoints {
		ep := &mod.EntryPoints[i]
		e := EntryPoint{Stage: stageName(ep.Stage), Name: ep.Name}
		for _, a := range ep.Function.Arguments {
			e.Inputs = m.varyings(e.Inputs, a.Name, a.Binding, a.Type)
		}
		if r := ep.Function.Result; r != nil {
			e.Outputs = m.varyings(e.Outputs, "", r.Binding, r.Type)
		}
		sortVaryings(e.Inputs)
		sortVaryings(e.Outputs)
		m.EntryPoints = append(m.EntryPoints, e)
	}

	for _, g := range mod.GlobalVariables {
		if g.Binding == nil {
			continue
		}
		b := Binding{
			Group:   g.Binding.Group,
			Binding: g.Binding.Binding,
			Name:    g.Name,
			Type:    TypeName(mod, g.Type),
		}
		switch g.Space {
		case ir.SpaceUniform:
			b.Kind = BindingUniform
		case ir.SpaceStorage:
			b.Kind = BindingStorage
		case ir.SpaceHandle:
			switch t := mod.Types[g.Type].Inner.(type) {
			case ir.ImageType:
				b.Kind = BindingTexture
				b.Image = &t
			case ir.SamplerType:
				b.Kind = BindingSampler
			default:
				return nil, fmt.Errorf("%w: cannot classify resource %q of type %s", ErrCompile, g.Name, b.Type)
			}
		default:
			return nil, fmt.Errorf("%w: resource %q in address space %d", ErrCompile, g.Name, g.Space)
		}
		m.Bindings = append(m.Bindings, b)
	}
	sort.Slice(m.Bindings, func(i, j int) bool {
		if m.Bindings[i].Group != m.Bindings[j].Group {
			return m.Bindings[i].Group < m.Bindings[j].Group
		}
		return m.Bindings[i].Binding < m.Bindings[j].Binding
	})
	return m, nil
}

// varyings appends the @location slots of one argument or result, looking
// through struct members.
func (m *Module) varyings(dst []Varying, name string, b *ir.Binding, ty ir.TypeHandle) []Varying {
	if int(ty) >= len(m.IR.Types) {
		return dst
	}
	if b != nil {
		if loc, ok := (*b).(ir.LocationBinding); ok {
			dst = append(dst, Varying{
				Name:       name,
				Location:   loc.Location,
				Components: components(m.IR, ty),
				Type:       TypeName(m.IR, ty),
			})
		}
		return dst
	}
	if st, ok := m.IR.Types[ty].Inner.(ir.StructType); ok {
		for _, mem := range st.Members {
			dst = m.varyings(dst, mem.Name, mem.Binding, mem.Type)
		}
	}
	return dst
}

func sortVaryings(vs []Varying) {
	sort.Slice(vs, func(i, j int) bool { return vs[i].Location < vs[j].Location })
}

func components(m *ir.Module, ty ir.TypeHandle) int {
	switch t := m.Types[ty].Inner.(type) {
	case ir.VectorType:
		return int(t.Size)
	case ir.ScalarType:
		return 1
	}
	return 0
}

func stageName(s ir.ShaderStage) string {
	switch s {
	case ir.StageVertex:
		return "vertex"
	case ir.StageFragment:
		return "fragment"
	case ir.StageCompute:
		return "compute"
	}
	return fmt.Sprintf("stage%d", s)
}

// SPIRV generates a SPIR-V 1.3 module holding every entry point of m.
func (m *Module) SPIRV() ([]uint32, error) {
	raw, err := naga.GenerateSPIRV(m.IR, spirv.Options{Version: spirv.Version1_3})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, err)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("%w: SPIR-V length %d is not a whole number of words", ErrCompile, len(raw))
	}
	words := make([]uint32, len(raw)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return words, nil
}

// EntryPoint returns the first entry point of stage.
func (m *Module) EntryPoint(stage string) (EntryPoint, bool) {
	for _, e := range m.EntryPoints {
		if e.Stage == stage {
			return e, true
		}
	}
	return EntryPoint{}, false
}

// Binding looks up a binding slot.
func (m *Module) Binding(group, binding uint32) (Binding, bool) {
	for _, b := range m.Bindings {
		if b.Group == group && b.Binding == binding {
			return b, true
		}
	}
	return Binding{}, false
}

// Uniforms returns the uniform locations declared in the uniform group.
func (m *Module) Uniforms() map[int]Binding {
	out := make(map[int]Binding)
	for _, b := range m.Bindings {
		if b.Group == GroupUniforms && b.Kind == BindingUniform {
			out[int(b.Binding)] = b
		}
	}
	return out
}

// Group returns the bindings of one group in binding order.
func (m *Module) Group(group uint32) []Binding {
	var out []Binding
	for _, b := range m.Bindings {
		if b.Group == group {
			out = append(out, b)
		}
	}
	return out
}

// Validate checks that bindings follow the unit convention: textures in
// GroupTextures, samplers in GroupSamplers, uniforms in GroupUniforms and
// storage buffers (buffer views) in GroupTextures.
func (m *Module) Validate() error {
	for _, b := range m.Bindings {
		var want uint32
		switch b.Kind {
		case BindingTexture, BindingStorage:
			want = GroupTextures
		case BindingSampler:
			want = GroupSamplers
		case BindingUniform:
			want = GroupUniforms
		}
		if b.Group != want {
			return fmt.Errorf("%w: %s %q must be in @group(%d), found @group(%d)",
				ErrCompile, b.Kind, b.Name, want, b.Group)
		}
	}
	return nil
}

// TypeName spells the type at h the way WGSL writes it.
func TypeName(m *ir.Module, h ir.TypeHandle) string {
	if int(h) >= len(m.Types) {
		return fmt.Sprintf("type%d", h)
	}
	t := m.Types[h]
	switch in := t.Inner.(type) {
	case ir.ScalarType:
		return scalarName(in)
	case ir.VectorType:
		return fmt.Sprintf("vec%d<%s>", in.Size, scalarName(in.Scalar))
	case ir.MatrixType:
		return fmt.Sprintf("mat%dx%d<%s>", in.Columns, in.Rows, scalarName(in.Scalar))
	case ir.AtomicType:
		return "atomic<" + scalarName(in.Scalar) + ">"
	case ir.ArrayType:
		if in.Size.Constant != nil {
			return fmt.Sprintf("array<%s, %d>", TypeName(m, in.Base), *in.Size.Constant)
		}
		return "array<" + TypeName(m, in.Base) + ">"
	case ir.SamplerType:
		if in.Comparison {
			return "sampler_comparison"
		}
		return "sampler"
	case ir.ImageType:
		return imageName(in)
	case ir.StructType:
		if t.Name != "" {
			return t.Name
		}
		return "struct"
	}
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("%T", t.Inner)
}

func scalarName(s ir.ScalarType) string {
	switch s.Kind {
	case ir.ScalarSint:
		return fmt.Sprintf("i%d", s.Width*8)
	case ir.ScalarUint:
		return fmt.Sprintf("u%d", s.Width*8)
	case ir.ScalarFloat:
		return fmt.Sprintf("f%d", s.Width*8)
	case ir.ScalarBool:
		return "bool"
	}
	return "abstract"
}

func imageName(t ir.ImageType) string {
	dim := map[ir.ImageDimension]string{ir.Dim1D: "1d", ir.Dim2D: "2d", ir.Dim3D: "3d", ir.DimCube: "cube"}[t.Dim]
	if t.Arrayed {
		dim += "_array"
	}
	switch t.Class {
	case ir.ImageClassDepth:
		if t.Multisampled {
			return "texture_depth_multisampled_" + dim
		}
		return "texture_depth_" + dim
	case ir.ImageClassStorage:
		return "texture_storage_" + dim
	case ir.ImageClassExternal:
		return "texture_external"
	}
	sampled := scalarName(ir.ScalarType{Kind: t.SampledKind, Width: 4})
	if t.Multisampled {
		return "texture_multisampled_" + dim + "<" + sampled + ">"
	}
	return "texture_" + dim + "<" + sampled + ">"
}
