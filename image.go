package gpulib

import (
	"fmt"
	"math/bits"

	"github.com/sevas/gpulib/device"
)

// Cubemap faces in upload order.
const (
	FacePosX = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
)

// MipChain returns the number of levels of a full mip chain for w x h.
func MipChain(w, h int) int {
	m := max(w, h)
	if m <= 0 {
		return 0
	}
	return bits.Len(uint(m))
}

// AllocImage allocates a 2D array image. mips 0 selects the full chain.
func (c *Context) AllocImage(format Format, w, h, layers, mips int) (Image, error) {
	return c.allocImage(format, w, h, layers, mips, false)
}

// AllocCubemap allocates a cubemap array of layers cubes with square faces
// of w x h. mips 0 selects the full chain.
func (c *Context) AllocCubemap(format Format, w, h, layers, mips int) (Image, error) {
	return c.allocImage(format, w, h, layers, mips, true)
}

func (c *Context) allocImage(format Format, w, h, layers, mips int, cube bool) (Image, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	if !format.Valid() || !format.Info().Image {
		return 0, fmt.Errorf("%w: %v cannot back an image", ErrFormatMismatch, format)
	}
	if mips == 0 {
		mips = MipChain(w, h)
	}
	switch {
	case w <= 0 || h <= 0 || layers <= 0 || mips <= 0:
		return 0, fmt.Errorf("%w: %dx%d, %d layers, %d mips", ErrInvalidDimensions, w, h, layers, mips)
	case mips > MipChain(w, h):
		return 0, fmt.Errorf("%w: %d mips exceed the %d-level chain of %dx%d", ErrInvalidDimensions, mips, MipChain(w, h), w, h)
	case w > c.limits.MaxTextureSize || h > c.limits.MaxTextureSize:
		return 0, fmt.Errorf("%w: %dx%d exceeds %d", ErrInvalidDimensions, w, h, c.limits.MaxTextureSize)
	case cube && w != h:
		return 0, fmt.Errorf("%w: cubemap faces %dx%d are not square", ErrInvalidDimensions, w, h)
	}

	desc := device.TextureDesc{Format: format, Width: w, Height: h, Layers: layers, Mips: mips, Cube: cube}
	tex, err := c.dev.CreateTexture(desc)
	if err != nil {
		return 0, deviceErr("alloc image", err)
	}
	img := Image(c.images.add(imageRecord{
		tex:       tex,
		format:    format,
		width:     w,
		height:    h,
		layers:    layers,
		mips:      mips,
		cube:      cube,
		populated: make([]bool, desc.FaceCount()),
	}))
	rec, _ := c.images.get(uint32(img))
	v, err := c.imageView(img, rec, format, 0, layers, 0, mips)
	if err != nil {
		return 0, err
	}
	rec.view = v
	c.log.Debug("gpulib: image allocated", "image", img, "format", format,
		"width", w, "height", h, "layers", layers, "mips", mips, "cube", cube)
	return img, nil
}

// ImageView returns the default view of img covering all layers and mips,
// or 0 for unknown handles.
func (c *Context) ImageView(img Image) View {
	if rec, ok := c.images.get(uint32(img)); ok {
		return rec.view
	}
	return 0
}

// ImageSize returns the level-0 size of img.
func (c *Context) ImageSize(img Image) (w, h int) {
	if rec, ok := c.images.get(uint32(img)); ok {
		return rec.width, rec.height
	}
	return 0, 0
}

// Upload copies src into mip 0 of one layer of a 2D array image.
func (c *Context) Upload(img Image, layer int, src PixelSource) error {
	if err := c.check(); err != nil {
		return err
	}
	rec, ok := c.images.get(uint32(img))
	if !ok {
		return fmt.Errorf("%w: image %d", ErrInvalidHandle, img)
	}
	if rec.cube {
		return fmt.Errorf("%w: image %d is a cubemap, use UploadCubemap", ErrFormatMismatch, img)
	}
	if layer < 0 || layer >= rec.layers {
		return &RangeError{What: "image layer", Offset: uint64(max(layer, 0)), Length: 1, Limit: uint64(rec.layers)}
	}
	return c.upload(rec, layer, src)
}

// UploadCubemap copies six faces, in +X, -X, +Y, -Y, +Z, -Z order, into
// mip 0 of cube layer of a cubemap image.
func (c *Context) UploadCubemap(img Image, layer int, faces [6]PixelSource) error {
	if err := c.check(); err != nil {
		return err
	}
	rec, ok := c.images.get(uint32(img))
	if !ok {
		return fmt.Errorf("%w: image %d", ErrInvalidHandle, img)
	}
	if !rec.cube {
		return fmt.Errorf("%w: image %d is not a cubemap", ErrFormatMismatch, img)
	}
	if layer < 0 || layer >= rec.layers {
		return &RangeError{What: "cubemap layer", Offset: uint64(max(layer, 0)), Length: 1, Limit: uint64(rec.layers)}
	}
	// Validate every face before writing any.
	for f, src := range faces {
		if err := c.checkPixels(rec, src); err != nil {
			return fmt.Errorf("face %d: %w", f, err)
		}
	}
	for f, src := range faces {
		if err := c.upload(rec, layer*6+f, src); err != nil {
			return fmt.Errorf("face %d: %w", f, err)
		}
	}
	return nil
}

func (c *Context) checkPixels(rec *imageRecord, src PixelSource) error {
	if src == nil {
		return fmt.Errorf("%w: nil pixel source", ErrDimensionMismatch)
	}
	if src.Format() != rec.format {
		return fmt.Errorf("%w: %v pixels for a %v image", ErrFormatMismatch, src.Format(), rec.format)
	}
	w, h := src.Size()
	if w != rec.width || h != rec.height {
		return fmt.Errorf("%w: %dx%d pixels for a %dx%d image", ErrDimensionMismatch, w, h, rec.width, rec.height)
	}
	if want := w * h * rec.format.Stride(); len(src.Bytes()) != want {
		return fmt.Errorf("%w: %d bytes of pixels, want %d", ErrDimensionMismatch, len(src.Bytes()), want)
	}
	return nil
}

// upload writes face-layer l, counting cube faces individually.
func (c *Context) upload(rec *imageRecord, l int, src PixelSource) error {
	if err := c.checkPixels(rec, src); err != nil {
		return err
	}
	if err := c.dev.WriteTexture(rec.tex, l, 0, src.Bytes()); err != nil {
		return deviceErr("upload", err)
	}
	rec.populated[l] = true
	return nil
}

// GenerateMips rebuilds every level above 0 from level 0 with a box
// filter. The result depends only on level 0, so calling it again without
// changing level 0 leaves every level unchanged.
func (c *Context) GenerateMips(img Image) error {
	if err := c.check(); err != nil {
		return err
	}
	rec, ok := c.images.get(uint32(img))
	if !ok {
		return fmt.Errorf("%w: image %d", ErrInvalidHandle, img)
	}
	for l, done := range rec.populated {
		if !done {
			return fmt.Errorf("%w: image %d layer %d", ErrNotPopulated, img, l)
		}
	}
	if rec.mips == 1 {
		return nil
	}
	if err := c.dev.GenerateMipmaps(rec.tex); err != nil {
		return deviceErr("generate mips", err)
	}
	return nil
}

// ReadImage copies one level of one face-layer back to the host. For
// cubemaps layer counts faces (cube*6 + face).
func (c *Context) ReadImage(img Image, layer, mip int) ([]byte, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	rec, ok := c.images.get(uint32(img))
	if !ok {
		return nil, fmt.Errorf("%w: image %d", ErrInvalidHandle, img)
	}
	if layer < 0 || layer >= len(rec.populated) || mip < 0 || mip >= rec.mips {
		return nil, &RangeError{What: "image level", Offset: uint64(max(layer, 0)), Length: 1, Limit: uint64(len(rec.populated))}
	}
	if err := c.dev.Finish(); err != nil {
		return nil, deviceErr("read image", err)
	}
	w, h := max(1, rec.width>>mip), max(1, rec.height>>mip)
	dst := make([]byte, w*h*rec.format.Stride())
	if err := c.dev.ReadTexture(rec.tex, layer, mip, dst); err != nil {
		return nil, deviceErr("read image", err)
	}
	return dst, nil
}

// markRendered records level-0 content written through a framebuffer.
func (c *Context) markRendered(views ...View) {
	for _, v := range views {
		vr, ok := c.views.get(uint32(v))
		if !ok || vr.image == 0 || vr.mipFirst != 0 {
			continue
		}
		if rec, ok := c.images.get(uint32(vr.image)); ok {
			l := vr.layerFirst
			if rec.cube {
				l *= 6
			}
			rec.populated[l] = true
		}
	}
}
