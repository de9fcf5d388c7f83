package device

import "fmt"

// Format is the element format of a view or texture.
type Format uint8

// Element formats.
const (
	FormatUndefined Format = iota
	FormatX32F
	FormatXY32F
	FormatXYZ32F
	FormatXYZW32F
	FormatX32I
	FormatXYZW32I
	FormatX32U
	FormatXYZW32U
	FormatRGBA8
	FormatSRGB8
	FormatSRGBA8
	FormatD32F

	formatCount
)

// Component is the numeric interpretation of a format's channels.
type Component uint8

// Component kinds.
const (
	ComponentFloat Component = iota
	ComponentInt
	ComponentUint
	ComponentUnorm
	ComponentSRGB
	ComponentDepth
)

// FormatInfo is the lookup-table row describing a Format.
type FormatInfo struct {
	Name      string
	Stride    int // bytes per element
	Channels  int
	Component Component

	// Buffer reports whether the format may type a buffer view.
	Buffer bool

	// Image reports whether the format may back a texture.
	Image bool
}

var formatTable = [formatCount]FormatInfo{
	FormatUndefined: {Name: "undefined"},
	FormatX32F:      {Name: "x_f32", Stride: 4, Channels: 1, Component: ComponentFloat, Buffer: true, Image: true},
	FormatXY32F:     {Name: "xy_f32", Stride: 8, Channels: 2, Component: ComponentFloat, Buffer: true, Image: true},
	FormatXYZ32F:    {Name: "xyz_f32", Stride: 12, Channels: 3, Component: ComponentFloat, Buffer: true},
	FormatXYZW32F:   {Name: "xyzw_f32", Stride: 16, Channels: 4, Component: ComponentFloat, Buffer: true, Image: true},
	FormatX32I:      {Name: "x_i32", Stride: 4, Channels: 1, Component: ComponentInt, Buffer: true, Image: true},
	FormatXYZW32I:   {Name: "xyzw_i32", Stride: 16, Channels: 4, Component: ComponentInt, Buffer: true, Image: true},
	FormatX32U:      {Name: "x_u32", Stride: 4, Channels: 1, Component: ComponentUint, Buffer: true, Image: true},
	FormatXYZW32U:   {Name: "xyzw_u32", Stride: 16, Channels: 4, Component: ComponentUint, Buffer: true, Image: true},
	FormatRGBA8:     {Name: "rgba_b8", Stride: 4, Channels: 4, Component: ComponentUnorm, Buffer: true, Image: true},
	FormatSRGB8:     {Name: "srgb_b8", Stride: 3, Channels: 3, Component: ComponentSRGB, Image: true},
	FormatSRGBA8:    {Name: "srgba_b8", Stride: 4, Channels: 4, Component: ComponentSRGB, Image: true},
	FormatD32F:      {Name: "d_f32", Stride: 4, Channels: 1, Component: ComponentDepth, Image: true},
}

// Info returns the table row for f. Unknown formats yield the undefined row.
func (f Format) Info() FormatInfo {
	if f >= formatCount {
		return formatTable[FormatUndefined]
	}
	return formatTable[f]
}

// Valid reports whether f is a defined format.
func (f Format) Valid() bool { return f > FormatUndefined && f < formatCount }

// Stride returns the element size in bytes.
func (f Format) Stride() int { return f.Info().Stride }

// IsDepth reports whether f is a depth format.
func (f Format) IsDepth() bool { return f.Info().Component == ComponentDepth }

// IsColor reports whether f can be a color attachment.
func (f Format) IsColor() bool { return f.Valid() && f.Info().Image && !f.IsDepth() }

// Compatible reports whether a texture of format f may be viewed as g.
// Views must keep the element size and the depth/color class.
func (f Format) Compatible(g Format) bool {
	if !f.Valid() || !g.Valid() {
		return false
	}
	return f.Stride() == g.Stride() && f.IsDepth() == g.IsDepth() && g.Info().Image
}

func (f Format) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
	return formatTable[f].Name
}

// Formats returns every defined format in declaration order.
func Formats() []Format {
	out := make([]Format, 0, formatCount-1)
	for f := FormatUndefined + 1; f < formatCount; f++ {
		out = append(out, f)
	}
	return out
}
