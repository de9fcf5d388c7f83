package native

import (
	"github.com/gogpu/gputypes"

	"github.com/sevas/gpulib/device"
)

// maxColorAttachments bounds the attachment array of a pipeline variant key.
const maxColorAttachments = 8

// gpuFormat is the texture format backing a device format. Stride is the
// GPU texel size, which differs from the host stride for srgb_b8: those
// textures are stored with an opaque alpha channel.
type gpuFormat struct {
	Format gputypes.TextureFormat
	Stride int
}

var gpuFormats = map[device.Format]gpuFormat{
	device.FormatX32F:    {gputypes.TextureFormatR32Float, 4},
	device.FormatXY32F:   {gputypes.TextureFormatRG32Float, 8},
	device.FormatXYZW32F: {gputypes.TextureFormatRGBA32Float, 16},
	device.FormatX32I:    {gputypes.TextureFormatR32Sint, 4},
	device.FormatXYZW32I: {gputypes.TextureFormatRGBA32Sint, 16},
	device.FormatX32U:    {gputypes.TextureFormatR32Uint, 4},
	device.FormatXYZW32U: {gputypes.TextureFormatRGBA32Uint, 16},
	device.FormatRGBA8:   {gputypes.TextureFormatRGBA8Unorm, 4},
	device.FormatSRGB8:   {gputypes.TextureFormatRGBA8UnormSrgb, 4},
	device.FormatSRGBA8:  {gputypes.TextureFormatRGBA8UnormSrgb, 4},
	device.FormatD32F:    {gputypes.TextureFormatDepth32Float, 4},
}

// textureFormat returns the GPU format of f, if f can back a texture.
func textureFormat(f device.Format) (gpuFormat, bool) {
	g, ok := gpuFormats[f]
	return g, ok
}

// viewFormats lists the formats a texture of format f may be viewed as.
// Only the unorm/srgb pair reinterprets without a copy.
func viewFormats(f device.Format) []gputypes.TextureFormat {
	switch f {
	case device.FormatRGBA8:
		return []gputypes.TextureFormat{gputypes.TextureFormatRGBA8UnormSrgb}
	case device.FormatSRGBA8:
		return []gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm}
	}
	return nil
}

// expand converts host texels of f to GPU texels.
func expand(f device.Format, src []byte) []byte {
	if f != device.FormatSRGB8 {
		return src
	}
	dst := make([]byte, len(src)/3*4)
	for i, j := 0, 0; i < len(src); i, j = i+3, j+4 {
		copy(dst[j:j+3], src[i:i+3])
		dst[j+3] = 0xff
	}
	return dst
}

// shrink converts GPU texels of f into host texels in dst.
func shrink(f device.Format, src, dst []byte) {
	if f != device.FormatSRGB8 {
		copy(dst, src)
		return
	}
	for i, j := 0, 0; j+3 <= len(dst); i, j = i+4, j+3 {
		copy(dst[j:j+3], src[i:i+3])
	}
}

var topologies = map[device.Topology]gputypes.PrimitiveTopology{
	device.TopologyPoints:        gputypes.PrimitiveTopologyPointList,
	device.TopologyLines:         gputypes.PrimitiveTopologyLineList,
	device.TopologyLineStrip:     gputypes.PrimitiveTopologyLineStrip,
	device.TopologyTriangles:     gputypes.PrimitiveTopologyTriangleList,
	device.TopologyTriangleStrip: gputypes.PrimitiveTopologyTriangleStrip,
}

// filterModes splits a device filter into texel and mipmap filter modes.
func filterModes(f device.Filter) (texel, mip gputypes.FilterMode) {
	texel, mip = gputypes.FilterModeNearest, gputypes.FilterModeNearest
	if f.Texel() == device.FilterLinear {
		texel = gputypes.FilterModeLinear
	}
	if f.Level() == device.FilterLinear {
		mip = gputypes.FilterModeLinear
	}
	return texel, mip
}

// addressMode maps w and reports whether the mapping is exact. The HAL
// has no border color and no mirror-once mode; both clamp to the edge.
func addressMode(w device.Wrap) (gputypes.AddressMode, bool) {
	switch w {
	case device.WrapRepeat:
		return gputypes.AddressModeRepeat, true
	case device.WrapMirroredRepeat:
		return gputypes.AddressModeMirrorRepeat, true
	case device.WrapClampToEdge:
		return gputypes.AddressModeClampToEdge, true
	}
	return gputypes.AddressModeClampToEdge, false
}
