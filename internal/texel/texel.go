// Package texel encodes, decodes and box-filters texels of device formats.
package texel

import (
	"encoding/binary"
	"image"
	"math"

	"github.com/anthonynsimon/bild/transform"
	"github.com/chewxy/math32"

	"github.com/sevas/gpulib/device"
)

// Decode converts one element of format f to RGBA floats.
// Missing color channels read as 0 and a missing alpha reads as 1.
// sRGB channels are converted to linear.
func Decode(f device.Format, b []byte) [4]float32 {
	info := f.Info()
	out := [4]float32{0, 0, 0, 1}
	switch info.Component {
	case device.ComponentFloat, device.ComponentDepth:
		for c := 0; c < info.Channels; c++ {
			out[c] = math.Float32frombits(binary.LittleEndian.Uint32(b[c*4:]))
		}
	case device.ComponentInt:
		for c := 0; c < info.Channels; c++ {
			out[c] = float32(int32(binary.LittleEndian.Uint32(b[c*4:])))
		}
	case device.ComponentUint:
		for c := 0; c < info.Channels; c++ {
			out[c] = float32(binary.LittleEndian.Uint32(b[c*4:]))
		}
	case device.ComponentUnorm:
		for c := 0; c < info.Channels; c++ {
			out[c] = float32(b[c]) / 255
		}
	case device.ComponentSRGB:
		for c := 0; c < info.Channels; c++ {
			v := float32(b[c]) / 255
			if c < 3 {
				v = srgbToLinear(v)
			}
			out[c] = v
		}
	}
	return out
}

// DecodeInt reads one element of an integer format without conversion.
// Non-integer formats are truncated from their float value.
func DecodeInt(f device.Format, b []byte) [4]int32 {
	info := f.Info()
	var out [4]int32
	switch info.Component {
	case device.ComponentInt, device.ComponentUint:
		for c := 0; c < info.Channels; c++ {
			out[c] = int32(binary.LittleEndian.Uint32(b[c*4:]))
		}
	default:
		v := Decode(f, b)
		for c := range out {
			out[c] = int32(v[c])
		}
	}
	return out
}

// Encode writes v as one element of format f.
func Encode(f device.Format, v [4]float32, dst []byte) {
	info := f.Info()
	switch info.Component {
	case device.ComponentFloat, device.ComponentDepth:
		for c := 0; c < info.Channels; c++ {
			binary.LittleEndian.PutUint32(dst[c*4:], math.Float32bits(v[c]))
		}
	case device.ComponentInt:
		for c := 0; c < info.Channels; c++ {
			binary.LittleEndian.PutUint32(dst[c*4:], uint32(int32(v[c])))
		}
	case device.ComponentUint:
		for c := 0; c < info.Channels; c++ {
			x := v[c]
			if x < 0 {
				x = 0
			}
			binary.LittleEndian.PutUint32(dst[c*4:], uint32(x))
		}
	case device.ComponentUnorm:
		for c := 0; c < info.Channels; c++ {
			dst[c] = Unorm8(v[c])
		}
	case device.ComponentSRGB:
		for c := 0; c < info.Channels; c++ {
			x := v[c]
			if c < 3 {
				x = linearToSRGB(clamp01(x))
			}
			dst[c] = Unorm8(x)
		}
	}
}

func clamp01(x float32) float32 {
	return math32.Max(0, math32.Min(1, x))
}

// Unorm8 rounds x, clamped to [0, 1], to an 8-bit channel.
func Unorm8(x float32) byte {
	return byte(math32.Floor(clamp01(x)*255 + 0.5))
}

func srgbToLinear(c float32) float32 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math32.Pow((c+0.055)/1.055, 2.4)
}

func linearToSRGB(c float32) float32 {
	if c <= 0.0031308 {
		return c * 12.92
	}
	return 1.055*math32.Pow(c, 1/2.4) - 0.055
}

// Downsample box-filters one level of format f from sw x sh to dw x dh.
// 8-bit color formats are resampled channel-wise on the stored bytes;
// everything else is averaged over 2x2 source footprints.
func Downsample(f device.Format, src []byte, sw, sh, dw, dh int) []byte {
	switch f {
	case device.FormatRGBA8, device.FormatSRGBA8, device.FormatSRGB8:
		return downsample8(f, src, sw, sh, dw, dh)
	}

	stride := f.Stride()
	dst := make([]byte, dw*dh*stride)
	at := func(x, y int) [4]float32 {
		x = min(x, sw-1)
		y = min(y, sh-1)
		off := (y*sw + x) * stride
		return Decode(f, src[off:off+stride])
	}
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			a, b := at(2*x, 2*y), at(2*x+1, 2*y)
			c, e := at(2*x, 2*y+1), at(2*x+1, 2*y+1)
			var avg [4]float32
			for i := range avg {
				avg[i] = (a[i] + b[i] + c[i] + e[i]) / 4
			}
			off := (y*dw + x) * stride
			Encode(f, avg, dst[off:off+stride])
		}
	}
	return dst
}

func downsample8(f device.Format, src []byte, sw, sh, dw, dh int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, sw, sh))
	if f == device.FormatSRGB8 {
		for i, j := 0, 0; i < len(src); i, j = i+3, j+4 {
			copy(img.Pix[j:j+3], src[i:i+3])
			img.Pix[j+3] = 0xff
		}
	} else {
		copy(img.Pix, src)
	}

	out := transform.Resize(img, dw, dh, transform.Box)

	stride := f.Stride()
	dst := make([]byte, dw*dh*stride)
	for y := 0; y < dh; y++ {
		row := out.Pix[y*out.Stride : y*out.Stride+dw*4]
		if stride == 4 {
			copy(dst[y*dw*4:], row)
			continue
		}
		for x := 0; x < dw; x++ {
			copy(dst[(y*dw+x)*3:], row[x*4:x*4+3])
		}
	}
	return dst
}
