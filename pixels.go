package gpulib

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"math"
	"os"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// PixelSource is level-0 content for one image layer: tightly packed rows,
// top row first, in Format.
type PixelSource interface {
	Format() Format
	Size() (width, height int)
	Bytes() []byte
}

// Pixels is an in-memory PixelSource.
type Pixels struct {
	Layout Format
	Width  int
	Height int
	Data   []byte
}

// Format implements PixelSource.
func (p *Pixels) Format() Format { return p.Layout }

// Size implements PixelSource.
func (p *Pixels) Size() (int, int) { return p.Width, p.Height }

// Bytes implements PixelSource.
func (p *Pixels) Bytes() []byte { return p.Data }

// FromImage converts img to pixels of format. Supported formats are the
// 8-bit color formats and XYZW32F (channels scaled to [0, 1]).
func FromImage(img image.Image, format Format) (*Pixels, error) {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || b.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}
	w, h := b.Dx(), b.Dy()
	p := &Pixels{Layout: format, Width: w, Height: h, Data: make([]byte, w*h*format.Stride())}

	switch format {
	case FormatRGBA8, FormatSRGBA8:
		for y := 0; y < h; y++ {
			copy(p.Data[y*w*4:(y+1)*w*4], nrgba.Pix[y*nrgba.Stride:])
		}
	case FormatSRGB8:
		for y := 0; y < h; y++ {
			row := nrgba.Pix[y*nrgba.Stride:]
			for x := 0; x < w; x++ {
				copy(p.Data[(y*w+x)*3:], row[x*4:x*4+3])
			}
		}
	case FormatXYZW32F:
		for y := 0; y < h; y++ {
			row := nrgba.Pix[y*nrgba.Stride:]
			for x := 0; x < w*4; x++ {
				binary.LittleEndian.PutUint32(p.Data[(y*w*4+x)*4:], math.Float32bits(float32(row[x])/255))
			}
		}
	default:
		return nil, fmt.Errorf("%w: cannot convert an image to %v", ErrFormatMismatch, format)
	}
	return p, nil
}

// DecodeBMP decodes a BMP stream into pixels of format.
func DecodeBMP(r io.Reader, format Format) (*Pixels, error) {
	img, err := bmp.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("gpulib: decode bmp: %w", err)
	}
	return FromImage(img, format)
}

func decodeBMPFile(path string, format Format) (*Pixels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gpulib: %w", err)
	}
	defer f.Close()
	p, err := DecodeBMP(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func decodeBMPFiles(format Format, paths []string) ([]*Pixels, error) {
	out := make([]*Pixels, len(paths))
	for i, path := range paths {
		p, err := decodeBMPFile(path, format)
		if err != nil {
			return nil, err
		}
		if i > 0 && (p.Width != out[0].Width || p.Height != out[0].Height) {
			return nil, fmt.Errorf("%w: %s is %dx%d, %s is %dx%d", ErrDimensionMismatch,
				path, p.Width, p.Height, paths[0], out[0].Width, out[0].Height)
		}
		out[i] = p
	}
	return out, nil
}

// LoadBMPLayers allocates a 2D array image with one layer per BMP file,
// uploads them and builds mips. mips 0 selects the full chain.
func (c *Context) LoadBMPLayers(format Format, mips int, paths ...string) (Image, error) {
	if len(paths) == 0 {
		return 0, fmt.Errorf("%w: no layers", ErrInvalidDimensions)
	}
	layers, err := decodeBMPFiles(format, paths)
	if err != nil {
		return 0, err
	}
	img, err := c.AllocImage(format, layers[0].Width, layers[0].Height, len(layers), mips)
	if err != nil {
		return 0, err
	}
	for i, p := range layers {
		if err := c.Upload(img, i, p); err != nil {
			return 0, fmt.Errorf("%s: %w", paths[i], err)
		}
	}
	return img, c.GenerateMips(img)
}

// LoadBMPCubemap allocates a cubemap array from BMP files, six per cube in
// +X, -X, +Y, -Y, +Z, -Z order, uploads them and builds mips.
func (c *Context) LoadBMPCubemap(format Format, mips int, paths ...string) (Image, error) {
	if len(paths) == 0 || len(paths)%6 != 0 {
		return 0, fmt.Errorf("%w: %d faces is not a whole number of cubes", ErrInvalidDimensions, len(paths))
	}
	faces, err := decodeBMPFiles(format, paths)
	if err != nil {
		return 0, err
	}
	img, err := c.AllocCubemap(format, faces[0].Width, faces[0].Height, len(faces)/6, mips)
	if err != nil {
		return 0, err
	}
	for cube := 0; cube < len(faces)/6; cube++ {
		var set [6]PixelSource
		for f := range set {
			set[f] = faces[cube*6+f]
		}
		if err := c.UploadCubemap(img, cube, set); err != nil {
			return 0, err
		}
	}
	return img, c.GenerateMips(img)
}
