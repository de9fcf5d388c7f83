package soft

import (
	"fmt"
	"image"

	"github.com/sevas/gpulib/device"
	"github.com/sevas/gpulib/internal/texel"
)

type texture struct {
	desc device.TextureDesc
	// levels[layer][mip] holds tightly packed rows in desc.Format.
	levels [][][]byte
}

func newTexture(desc device.TextureDesc) *texture {
	t := &texture{desc: desc}
	stride := desc.Format.Stride()
	t.levels = make([][][]byte, desc.FaceCount())
	for l := range t.levels {
		t.levels[l] = make([][]byte, desc.Mips)
		for m := range t.levels[l] {
			w, h := t.size(m)
			t.levels[l][m] = make([]byte, w*h*stride)
		}
	}
	return t
}

// size returns the dimensions of mip level m.
func (t *texture) size(m int) (int, int) {
	return max(1, t.desc.Width>>m), max(1, t.desc.Height>>m)
}

func (t *texture) fullView() *view {
	return &view{
		format:     t.desc.Format,
		tex:        t,
		layerCount: t.desc.Layers,
		mipCount:   t.desc.Mips,
	}
}

// CreateTexture implements device.Device.
func (d *Device) CreateTexture(desc device.TextureDesc) (device.TextureID, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	if !desc.Format.Info().Image {
		return 0, fmt.Errorf("%w: format %v cannot back a texture", device.ErrInvalidArgument, desc.Format)
	}
	if desc.Width <= 0 || desc.Height <= 0 || desc.Layers <= 0 || desc.Mips <= 0 {
		return 0, fmt.Errorf("%w: texture %dx%d layers=%d mips=%d",
			device.ErrInvalidArgument, desc.Width, desc.Height, desc.Layers, desc.Mips)
	}
	if desc.Width > d.limits.MaxTextureSize || desc.Height > d.limits.MaxTextureSize {
		return 0, fmt.Errorf("%w: texture %dx%d exceeds %d", device.ErrOutOfMemory,
			desc.Width, desc.Height, d.limits.MaxTextureSize)
	}
	if desc.Cube && desc.Width != desc.Height {
		return 0, fmt.Errorf("%w: cubemap faces must be square, got %dx%d",
			device.ErrInvalidArgument, desc.Width, desc.Height)
	}
	id := device.TextureID(d.id())
	d.textures[id] = newTexture(desc)
	slogger().Debug("soft: texture created", "id", id, "format", desc.Format,
		"width", desc.Width, "height", desc.Height, "layers", desc.Layers, "mips", desc.Mips, "cube", desc.Cube)
	return id, nil
}

func (d *Device) level(id device.TextureID, layer, mip int) (*texture, []byte, error) {
	t, ok := d.textures[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: texture %d", device.ErrUnknownID, id)
	}
	if layer < 0 || layer >= len(t.levels) || mip < 0 || mip >= t.desc.Mips {
		return nil, nil, fmt.Errorf("%w: layer %d mip %d outside texture %d", device.ErrInvalidArgument, layer, mip, id)
	}
	return t, t.levels[layer][mip], nil
}

// WriteTexture implements device.Device.
func (d *Device) WriteTexture(id device.TextureID, layer, mip int, data []byte) error {
	_, lvl, err := d.level(id, layer, mip)
	if err != nil {
		return err
	}
	if len(data) != len(lvl) {
		return fmt.Errorf("%w: %d bytes for a level of %d", device.ErrInvalidArgument, len(data), len(lvl))
	}
	copy(lvl, data)
	return nil
}

// ReadTexture implements device.Device.
func (d *Device) ReadTexture(id device.TextureID, layer, mip int, dst []byte) error {
	_, lvl, err := d.level(id, layer, mip)
	if err != nil {
		return err
	}
	if len(dst) != len(lvl) {
		return fmt.Errorf("%w: %d bytes for a level of %d", device.ErrInvalidArgument, len(dst), len(lvl))
	}
	copy(dst, lvl)
	return nil
}

// GenerateMipmaps implements device.Device.
func (d *Device) GenerateMipmaps(id device.TextureID) error {
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: texture %d", device.ErrUnknownID, id)
	}
	for l := range t.levels {
		for m := 1; m < t.desc.Mips; m++ {
			sw, sh := t.size(m - 1)
			dw, dh := t.size(m)
			t.levels[l][m] = texel.Downsample(t.desc.Format, t.levels[l][m-1], sw, sh, dw, dh)
		}
	}
	return nil
}

// DestroyTexture implements device.Device.
func (d *Device) DestroyTexture(id device.TextureID) { delete(d.textures, id) }

// view is either a buffer range or a texture subresource range.
type view struct {
	format device.Format

	buf    *buffer
	offset uint64
	size   uint64

	tex        *texture
	layerFirst int
	layerCount int
	mipFirst   int
	mipCount   int
}

// face returns the texture layer index of view layer l (and cube face f).
func (v *view) face(l, f int) int {
	if v.tex.desc.Cube {
		return (v.layerFirst+l)*6 + f
	}
	return v.layerFirst + l
}

// texel returns the bytes of one texel, or nil outside the level.
func (v *view) texel(layer, mip, x, y int) []byte {
	t := v.tex
	w, h := t.size(mip)
	if x < 0 || y < 0 || x >= w || y >= h {
		return nil
	}
	stride := t.desc.Format.Stride()
	off := (y*w + x) * stride
	return t.levels[layer][mip][off : off+stride]
}

// image copies the first layer and mip of an 8-bit color view.
func (v *view) image() *image.RGBA {
	w, h := v.tex.size(v.mipFirst)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	layer := v.face(0, 0)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := v.texel(layer, v.mipFirst, x, y)
			o := img.PixOffset(x, y)
			switch v.tex.desc.Format {
			case device.FormatRGBA8, device.FormatSRGBA8:
				copy(img.Pix[o:o+4], px)
			case device.FormatSRGB8:
				copy(img.Pix[o:o+3], px)
				img.Pix[o+3] = 0xff
			default:
				c := texel.Decode(v.format, px)
				for i := 0; i < 4; i++ {
					img.Pix[o+i] = texel.Unorm8(c[i])
				}
			}
		}
	}
	return img
}

// CreateBufferView implements device.Device.
func (d *Device) CreateBufferView(desc device.BufferViewDesc) (device.ViewID, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	b, err := d.buffer(desc.Buffer, desc.Offset, desc.Size)
	if err != nil {
		return 0, err
	}
	info := desc.Format.Info()
	if !info.Buffer {
		return 0, fmt.Errorf("%w: format %v cannot type a buffer view", device.ErrInvalidArgument, desc.Format)
	}
	stride := uint64(info.Stride)
	if desc.Offset%stride != 0 || desc.Size%stride != 0 || desc.Offset%d.limits.ViewOffsetAlignment != 0 {
		return 0, fmt.Errorf("%w: buffer view [%d, +%d) misaligned for %v",
			device.ErrInvalidArgument, desc.Offset, desc.Size, desc.Format)
	}
	id := device.ViewID(d.id())
	d.views[id] = &view{format: desc.Format, buf: b, offset: desc.Offset, size: desc.Size}
	return id, nil
}

// CreateTextureView implements device.Device.
func (d *Device) CreateTextureView(desc device.TextureViewDesc) (device.ViewID, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	t, ok := d.textures[desc.Texture]
	if !ok {
		return 0, fmt.Errorf("%w: texture %d", device.ErrUnknownID, desc.Texture)
	}
	if !t.desc.Format.Compatible(desc.Format) {
		return 0, fmt.Errorf("%w: %v view of %v texture", device.ErrInvalidArgument, desc.Format, t.desc.Format)
	}
	if desc.LayerFirst < 0 || desc.LayerCount <= 0 || desc.LayerFirst+desc.LayerCount > t.desc.Layers ||
		desc.MipFirst < 0 || desc.MipCount <= 0 || desc.MipFirst+desc.MipCount > t.desc.Mips {
		return 0, fmt.Errorf("%w: view layers [%d, +%d) mips [%d, +%d) outside texture",
			device.ErrInvalidArgument, desc.LayerFirst, desc.LayerCount, desc.MipFirst, desc.MipCount)
	}
	id := device.ViewID(d.id())
	d.views[id] = &view{
		format:     desc.Format,
		tex:        t,
		layerFirst: desc.LayerFirst,
		layerCount: desc.LayerCount,
		mipFirst:   desc.MipFirst,
		mipCount:   desc.MipCount,
	}
	return id, nil
}

// DestroyView implements device.Device.
func (d *Device) DestroyView(id device.ViewID) { delete(d.views, id) }
