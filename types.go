package gpulib

import (
	"fmt"

	"github.com/sevas/gpulib/device"
)

// Format is the element format of a view or image.
type Format = device.Format

// Element formats.
const (
	FormatX32F    = device.FormatX32F
	FormatXY32F   = device.FormatXY32F
	FormatXYZ32F  = device.FormatXYZ32F
	FormatXYZW32F = device.FormatXYZW32F
	FormatX32I    = device.FormatX32I
	FormatXYZW32I = device.FormatXYZW32I
	FormatX32U    = device.FormatX32U
	FormatXYZW32U = device.FormatXYZW32U
	FormatRGBA8   = device.FormatRGBA8
	FormatSRGB8   = device.FormatSRGB8
	FormatSRGBA8  = device.FormatSRGBA8
	FormatD32F    = device.FormatD32F
)

// Topology is the primitive assembly mode of an Op.
type Topology = device.Topology

// Primitive topologies.
const (
	Points        = device.TopologyPoints
	Lines         = device.TopologyLines
	LineStrip     = device.TopologyLineStrip
	Triangles     = device.TopologyTriangles
	TriangleStrip = device.TopologyTriangleStrip
	TriangleFan   = device.TopologyTriangleFan
)

// Filter is a sampler filter.
type Filter = device.Filter

// Sampler filters.
const (
	Nearest              = device.FilterNearest
	Linear               = device.FilterLinear
	NearestMipmapNearest = device.FilterNearestMipmapNearest
	LinearMipmapNearest  = device.FilterLinearMipmapNearest
	NearestMipmapLinear  = device.FilterNearestMipmapLinear
	LinearMipmapLinear   = device.FilterLinearMipmapLinear
)

// Wrap is a sampler addressing mode.
type Wrap = device.Wrap

// Addressing modes.
const (
	Repeat            = device.WrapRepeat
	MirroredRepeat    = device.WrapMirroredRepeat
	ClampToEdge       = device.WrapClampToEdge
	ClampToBorder     = device.WrapClampToBorder
	MirrorClampToEdge = device.WrapMirrorClampToEdge
)

// StageKind selects the shader stage a source compiles to.
type StageKind = device.Stage

// Stage kinds.
const (
	VertexStage   = device.StageVertex
	FragmentStage = device.StageFragment
)

// SurfaceConfig describes the default presentation surface.
type SurfaceConfig = device.SurfaceConfig

// Message is a device diagnostic.
type Message = device.Message

// DebugFunc receives device diagnostics.
type DebugFunc = device.DebugFunc

// Handles. The zero value of every handle means "none".
type (
	// View is a typed window onto arena bytes or image texels.
	View uint32
	// Image is a layered 2D image or cubemap array.
	Image uint32
	// Sampler is an immutable filtering state.
	Sampler uint32
	// Stage is a compiled shader stage.
	Stage uint32
	// Pipeline is a linked vertex (+ optional fragment) stage pair.
	Pipeline uint32
	// Framebuffer is an off-screen render target; 0 is the default surface.
	Framebuffer uint32
	// Feedback is a vertex capture target.
	Feedback uint32
)

// Handle is the constraint satisfied by bindable handles.
type Handle interface{ ~uint32 }

// Bindings is a sparse table of units [First, First+Count). Units without
// a non-zero entry in Slots are unbound when the table is applied; entries
// outside the window are ignored.
type Bindings[H Handle] struct {
	First int
	Count int
	Slots map[int]H
}

// Dense returns a table binding handles to consecutive units from first.
func Dense[H Handle](first int, handles ...H) Bindings[H] {
	b := Bindings[H]{First: first, Count: len(handles), Slots: make(map[int]H, len(handles))}
	for i, h := range handles {
		if h != 0 {
			b.Slots[first+i] = h
		}
	}
	return b
}

// Get returns the handle bound to unit, or 0. Units outside the window
// always read 0.
func (b Bindings[H]) Get(unit int) H {
	if !b.covers(unit) {
		return 0
	}
	return b.Slots[unit]
}

func (b Bindings[H]) covers(unit int) bool { return unit >= b.First && unit < b.First+b.Count }

// validate checks the window against the unit count.
func (b Bindings[H]) validate(what string, units int) error {
	if b.First < 0 || b.Count < 0 || b.First+b.Count > units {
		return &RangeError{What: what + " units", Offset: uint64(max(b.First, 0)), Length: uint64(max(b.Count, 0)), Limit: uint64(units)}
	}
	return nil
}

// Cmd is one instanced draw over vertices [First, First+Count).
type Cmd struct {
	First         int
	Count         int
	InstanceFirst int
	InstanceCount int
}

// Op is one batch entry: a pipeline, its unit tables and its draws.
type Op struct {
	// ID tags the op in errors; it has no other meaning.
	ID       int
	Pipeline Pipeline
	Topology Topology
	Textures Bindings[View]
	Samplers Bindings[Sampler]
	Cmds     []Cmd
}

// CaptureRange is an arena byte range receiving one capture variable.
type CaptureRange struct {
	Offset uint64
	Length uint64
}

// State is the binding state of a Context.
type State uint8

// Binding states.
const (
	// StateIdle draws into the default surface.
	StateIdle State = iota
	// StateFramebuffer draws into a bound Framebuffer.
	StateFramebuffer
	// StateFeedback captures vertices into a bound Feedback target.
	StateFeedback
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFramebuffer:
		return "framebuffer"
	case StateFeedback:
		return "feedback"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// table stores handle records; handle h is items[h-1].
type table[T any] struct {
	items []T
}

func (t *table[T]) add(v T) uint32 {
	t.items = append(t.items, v)
	return uint32(len(t.items))
}

func (t *table[T]) get(h uint32) (*T, bool) {
	if h == 0 || int(h) > len(t.items) {
		return nil, false
	}
	return &t.items[h-1], true
}

func (t *table[T]) len() int { return len(t.items) }
