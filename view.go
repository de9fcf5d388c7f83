package gpulib

import (
	"fmt"

	"github.com/sevas/gpulib/device"
)

// Cast creates a typed view of arena bytes [offset, offset+length).
//
// The format must be usable by buffer views, offset and length must be
// multiples of its stride (and offset of the device view alignment), and
// the range must lie within the allocated part of the arena. Views over
// overlapping ranges with different formats are allowed. An empty view is
// valid and every element read through it is zero.
func (c *Context) Cast(format Format, offset, length uint64) (View, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	info := format.Info()
	if !format.Valid() || !info.Buffer {
		return 0, fmt.Errorf("%w: %v cannot type a buffer view", ErrFormatMismatch, format)
	}
	stride := uint64(info.Stride)
	align := max(stride, c.limits.ViewOffsetAlignment)
	if length%stride != 0 || offset%stride != 0 || offset%align != 0 {
		return 0, &RangeError{What: format.String() + " view", Offset: offset, Length: length, Limit: c.arena.high, Align: align}
	}
	if offset > c.arena.high || length > c.arena.high-offset {
		return 0, &RangeError{What: format.String() + " view", Offset: offset, Length: length, Limit: c.arena.high}
	}

	id, err := c.dev.CreateBufferView(device.BufferViewDesc{
		Buffer: c.arena.buf,
		Format: format,
		Offset: offset,
		Size:   length,
	})
	if err != nil {
		return 0, deviceErr("cast", err)
	}
	v := View(c.views.add(viewRecord{id: id, format: format, offset: offset, length: length}))
	c.log.Debug("gpulib: view created", "view", v, "format", format, "offset", offset, "length", length)
	return v, nil
}

// CastImage creates a view of one mip of layers [layerFirst,
// layerFirst+layerCount) of img, reinterpreted as format. For cubemaps the
// layer range counts cubes.
func (c *Context) CastImage(img Image, format Format, layerFirst, layerCount, mip int) (View, error) {
	return c.CastImageMips(img, format, layerFirst, layerCount, mip, 1)
}

// CastImageMips is CastImage over mips [mipFirst, mipFirst+mipCount).
func (c *Context) CastImageMips(img Image, format Format, layerFirst, layerCount, mipFirst, mipCount int) (View, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	rec, ok := c.images.get(uint32(img))
	if !ok {
		return 0, fmt.Errorf("%w: image %d", ErrInvalidHandle, img)
	}
	if !rec.format.Compatible(format) {
		return 0, fmt.Errorf("%w: %v view of %v image", ErrFormatMismatch, format, rec.format)
	}
	if layerFirst < 0 || layerCount <= 0 || layerFirst+layerCount > rec.layers {
		return 0, &RangeError{What: "image layers", Offset: uint64(max(layerFirst, 0)), Length: uint64(max(layerCount, 0)), Limit: uint64(rec.layers)}
	}
	if mipFirst < 0 || mipCount <= 0 || mipFirst+mipCount > rec.mips {
		return 0, &RangeError{What: "image mips", Offset: uint64(max(mipFirst, 0)), Length: uint64(max(mipCount, 0)), Limit: uint64(rec.mips)}
	}
	return c.imageView(img, rec, format, layerFirst, layerCount, mipFirst, mipCount)
}

func (c *Context) imageView(img Image, rec *imageRecord, format Format, layerFirst, layerCount, mipFirst, mipCount int) (View, error) {
	id, err := c.dev.CreateTextureView(device.TextureViewDesc{
		Texture:    rec.tex,
		Format:     format,
		LayerFirst: layerFirst,
		LayerCount: layerCount,
		MipFirst:   mipFirst,
		MipCount:   mipCount,
	})
	if err != nil {
		return 0, deviceErr("cast image", err)
	}
	v := View(c.views.add(viewRecord{
		id:         id,
		format:     format,
		image:      img,
		layerFirst: layerFirst,
		layerCount: layerCount,
		mipFirst:   mipFirst,
		mipCount:   mipCount,
	}))
	c.log.Debug("gpulib: image view created", "view", v, "image", img, "format", format,
		"layers", fmt.Sprintf("[%d,+%d)", layerFirst, layerCount), "mips", fmt.Sprintf("[%d,+%d)", mipFirst, mipCount))
	return v, nil
}

// ViewFormat returns the format of v, or FormatUndefined for unknown handles.
func (c *Context) ViewFormat(v View) Format {
	if rec, ok := c.views.get(uint32(v)); ok {
		return rec.format
	}
	return device.FormatUndefined
}

// ViewRange returns the arena byte range of a buffer view.
func (c *Context) ViewRange(v View) (offset, length uint64, ok bool) {
	rec, ok := c.views.get(uint32(v))
	if !ok || rec.image != 0 {
		return 0, 0, false
	}
	return rec.offset, rec.length, true
}
