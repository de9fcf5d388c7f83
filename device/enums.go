package device

import "fmt"

// Topology is the primitive assembly mode of a draw.
type Topology uint8

// Primitive topologies.
const (
	TopologyPoints Topology = iota
	TopologyLines
	TopologyLineStrip
	TopologyTriangles
	TopologyTriangleStrip
	TopologyTriangleFan
)

var topologyNames = [...]string{"points", "lines", "line_strip", "triangles", "triangle_strip", "triangle_fan"}

func (t Topology) String() string {
	if int(t) < len(topologyNames) {
		return topologyNames[t]
	}
	return fmt.Sprintf("Topology(%d)", uint8(t))
}

// Valid reports whether t is a known topology.
func (t Topology) Valid() bool { return int(t) < len(topologyNames) }

// Primitives calls emit once per primitive assembled from count vertices,
// with the vertex indices (relative to the first vertex) of that primitive.
// Incomplete trailing primitives are dropped. Strip winding alternates so
// every triangle keeps the orientation of the first one.
func (t Topology) Primitives(count int, emit func(idx []int)) {
	var buf [3]int
	switch t {
	case TopologyPoints:
		for i := 0; i < count; i++ {
			buf[0] = i
			emit(buf[:1])
		}
	case TopologyLines:
		for i := 0; i+1 < count; i += 2 {
			buf[0], buf[1] = i, i+1
			emit(buf[:2])
		}
	case TopologyLineStrip:
		for i := 0; i+1 < count; i++ {
			buf[0], buf[1] = i, i+1
			emit(buf[:2])
		}
	case TopologyTriangles:
		for i := 0; i+2 < count; i += 3 {
			buf[0], buf[1], buf[2] = i, i+1, i+2
			emit(buf[:3])
		}
	case TopologyTriangleStrip:
		for i := 0; i+2 < count; i++ {
			if i%2 == 0 {
				buf[0], buf[1], buf[2] = i, i+1, i+2
			} else {
				buf[0], buf[1], buf[2] = i+1, i, i+2
			}
			emit(buf[:3])
		}
	case TopologyTriangleFan:
		for i := 1; i+1 < count; i++ {
			buf[0], buf[1], buf[2] = 0, i, i+1
			emit(buf[:3])
		}
	}
}

// Filter is a sampler filter mode. The mipmap variants are only meaningful
// as a minification filter.
type Filter uint8

// Sampler filters.
const (
	FilterNearest Filter = iota
	FilterLinear
	FilterNearestMipmapNearest
	FilterLinearMipmapNearest
	FilterNearestMipmapLinear
	FilterLinearMipmapLinear
)

var filterNames = [...]string{
	"nearest", "linear",
	"nearest_mipmap_nearest", "linear_mipmap_nearest",
	"nearest_mipmap_linear", "linear_mipmap_linear",
}

func (f Filter) String() string {
	if int(f) < len(filterNames) {
		return filterNames[f]
	}
	return fmt.Sprintf("Filter(%d)", uint8(f))
}

// Valid reports whether f is a known filter.
func (f Filter) Valid() bool { return int(f) < len(filterNames) }

// IsMipmap reports whether f samples from more than the base level.
func (f Filter) IsMipmap() bool { return f >= FilterNearestMipmapNearest && f.Valid() }

// Texel reports whether texels inside a level are blended linearly.
func (f Filter) Texel() Filter {
	switch f {
	case FilterLinear, FilterLinearMipmapNearest, FilterLinearMipmapLinear:
		return FilterLinear
	}
	return FilterNearest
}

// Level reports whether adjacent mip levels are blended linearly.
func (f Filter) Level() Filter {
	switch f {
	case FilterNearestMipmapLinear, FilterLinearMipmapLinear:
		return FilterLinear
	}
	return FilterNearest
}

// Wrap is a sampler addressing mode.
type Wrap uint8

// Addressing modes.
const (
	WrapRepeat Wrap = iota
	WrapMirroredRepeat
	WrapClampToEdge
	WrapClampToBorder
	WrapMirrorClampToEdge
)

var wrapNames = [...]string{"repeat", "mirrored_repeat", "clamp_to_edge", "clamp_to_border", "mirror_clamp_to_edge"}

func (w Wrap) String() string {
	if int(w) < len(wrapNames) {
		return wrapNames[w]
	}
	return fmt.Sprintf("Wrap(%d)", uint8(w))
}

// Valid reports whether w is a known addressing mode.
func (w Wrap) Valid() bool { return int(w) < len(wrapNames) }

// Stage is the kind of a shader stage.
type Stage uint8

// Shader stages.
const (
	StageVertex Stage = iota
	StageFragment
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	}
	return fmt.Sprintf("Stage(%d)", uint8(s))
}

// UniformKind is the element type of a uniform location.
type UniformKind uint8

// Uniform element types.
const (
	UniformFloat UniformKind = iota
	UniformVec3
	UniformVec4
	UniformInt
)

func (k UniformKind) String() string {
	switch k {
	case UniformFloat:
		return "f32"
	case UniformVec3:
		return "vec3<f32>"
	case UniformVec4:
		return "vec4<f32>"
	case UniformInt:
		return "i32"
	}
	return fmt.Sprintf("UniformKind(%d)", uint8(k))
}
