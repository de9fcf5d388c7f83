package native

import (
	"fmt"
	"slices"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/sevas/gpulib/device"
	"github.com/sevas/gpulib/internal/texel"
)

// copyPitch is the row alignment of texture-to-buffer copies.
const copyPitch = 256

func alignUp(n, a uint64) uint64 { return (n + a - 1) / a * a }

type buffer struct {
	raw hal.Buffer
	// shadow mirrors the buffer contents. Buffers are only written by the
	// host on this device, so the shadow is authoritative for reads.
	shadow []byte
}

// CreateBuffer implements device.Device.
func (d *Device) CreateBuffer(size uint64) (device.BufferID, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	if size == 0 {
		return 0, fmt.Errorf("%w: zero-sized buffer", device.ErrInvalidArgument)
	}
	raw, err := d.gpu.CreateBuffer(&hal.BufferDescriptor{
		Label: "gpulib-buffer",
		Size:  alignUp(size, 4),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: buffer of %d bytes: %v", device.ErrOutOfMemory, size, err)
	}
	id := device.BufferID(d.id())
	d.buffers[id] = &buffer{raw: raw, shadow: make([]byte, alignUp(size, 4))[:size]}
	slogger().Debug("native: buffer created", "id", id, "size", size)
	return id, nil
}

// MapBuffer implements device.Device. Device buffers have no persistent
// host mapping here.
func (d *Device) MapBuffer(device.BufferID) []byte { return nil }

func (d *Device) buffer(id device.BufferID, offset, n uint64) (*buffer, error) {
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", device.ErrUnknownID, id)
	}
	if offset > uint64(len(b.shadow)) || n > uint64(len(b.shadow))-offset {
		return nil, fmt.Errorf("%w: range [%d, %d) outside buffer of %d bytes",
			device.ErrInvalidArgument, offset, offset+n, len(b.shadow))
	}
	return b, nil
}

// WriteBuffer implements device.Device. The written range is widened to
// 4-byte boundaries from the shadow copy.
func (d *Device) WriteBuffer(id device.BufferID, offset uint64, data []byte) error {
	b, err := d.buffer(id, offset, uint64(len(data)))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	copy(b.shadow[offset:], data)
	if err := d.submit(); err != nil {
		return err
	}
	lo := offset &^ 3
	hi := alignUp(offset+uint64(len(data)), 4)
	full := b.shadow[:cap(b.shadow)]
	if err := d.queue.WriteBuffer(b.raw, lo, full[lo:hi]); err != nil {
		return fmt.Errorf("native: write buffer %d: %w", id, err)
	}
	return nil
}

// ReadBuffer implements device.Device.
func (d *Device) ReadBuffer(id device.BufferID, offset uint64, dst []byte) error {
	b, err := d.buffer(id, offset, uint64(len(dst)))
	if err != nil {
		return err
	}
	copy(dst, b.shadow[offset:])
	return nil
}

// DestroyBuffer implements device.Device.
func (d *Device) DestroyBuffer(id device.BufferID) {
	if b, ok := d.buffers[id]; ok {
		d.gpu.DestroyBuffer(b.raw)
		delete(d.buffers, id)
	}
}

type texture struct {
	desc device.TextureDesc
	gpu  gpuFormat
	raw  hal.Texture
}

// size returns the dimensions of mip level m.
func (t *texture) size(m int) (int, int) {
	return max(1, t.desc.Width>>m), max(1, t.desc.Height>>m)
}

func (d *Device) newTexture(desc device.TextureDesc) (*texture, error) {
	g, ok := textureFormat(desc.Format)
	if !ok {
		return nil, fmt.Errorf("%w: format %v cannot back a texture", device.ErrInvalidArgument, desc.Format)
	}
	usage := gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst |
		gputypes.TextureUsageCopySrc | gputypes.TextureUsageRenderAttachment
	raw, err := d.gpu.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: uint32(desc.FaceCount()),
		},
		MipLevelCount: uint32(desc.Mips),
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        g.Format,
		Usage:         usage,
		ViewFormats:   viewFormats(desc.Format),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: texture %dx%d: %v", device.ErrOutOfMemory, desc.Width, desc.Height, err)
	}
	return &texture{desc: desc, gpu: g, raw: raw}, nil
}

// CreateTexture implements device.Device.
func (d *Device) CreateTexture(desc device.TextureDesc) (device.TextureID, error) {
	if err := d.check(); err != nil {
		return 0, err
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
	t, err := d.newTexture(desc)
	if err != nil {
		return 0, err
	}
	id := device.TextureID(d.id())
	d.textures[id] = t
	slogger().Debug("native: texture created", "id", id, "format", desc.Format,
		"width", desc.Width, "height", desc.Height, "layers", desc.Layers, "mips", desc.Mips, "cube", desc.Cube)
	return id, nil
}

func (d *Device) level(id device.TextureID, layer, mip, n int) (*texture, error) {
	t, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: texture %d", device.ErrUnknownID, id)
	}
	if layer < 0 || layer >= t.desc.FaceCount() || mip < 0 || mip >= t.desc.Mips {
		return nil, fmt.Errorf("%w: layer %d mip %d outside texture %d", device.ErrInvalidArgument, layer, mip, id)
	}
	w, h := t.size(mip)
	if want := w * h * t.desc.Format.Stride(); n != want {
		return nil, fmt.Errorf("%w: %d bytes for a %dx%d %v level, want %d",
			device.ErrInvalidArgument, n, w, h, t.desc.Format, want)
	}
	return t, nil
}

// WriteTexture implements device.Device.
func (d *Device) WriteTexture(id device.TextureID, layer, mip int, data []byte) error {
	t, err := d.level(id, layer, mip, len(data))
	if err != nil {
		return err
	}
	if err := d.submit(); err != nil {
		return err
	}
	return d.writeLevel(t, layer, mip, data)
}

func (d *Device) writeLevel(t *texture, layer, mip int, data []byte) error {
	w, h := t.size(mip)
	err := d.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.raw,
			MipLevel: uint32(mip),
			Origin:   hal.Origin3D{Z: uint32(layer)},
			Aspect:   gputypes.TextureAspectAll,
		},
		expand(t.desc.Format, data),
		&hal.ImageDataLayout{BytesPerRow: uint32(w * t.gpu.Stride), RowsPerImage: uint32(h)},
		&hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("native: write texture layer %d mip %d: %w", layer, mip, err)
	}
	return nil
}

// ReadTexture implements device.Device.
func (d *Device) ReadTexture(id device.TextureID, layer, mip int, dst []byte) error {
	t, err := d.level(id, layer, mip, len(dst))
	if err != nil {
		return err
	}
	return d.readLevel(t, layer, mip, dst)
}

// readLevel copies one level into a mappable staging buffer with
// copyPitch-aligned rows and unpacks it into dst.
func (d *Device) readLevel(t *texture, layer, mip int, dst []byte) error {
	w, h := t.size(mip)
	row := uint64(w * t.gpu.Stride)
	pitch := alignUp(row, copyPitch)
	size := pitch * uint64(h)
	staging, err := d.gpu.CreateBuffer(&hal.BufferDescriptor{
		Label: "gpulib-readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("native: create readback buffer: %w", err)
	}
	defer d.gpu.DestroyBuffer(staging)

	enc, err := d.encoder()
	if err != nil {
		return err
	}
	enc.CopyTextureToBuffer(t.raw, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{BytesPerRow: uint32(pitch), RowsPerImage: uint32(h)},
		TextureBase: hal.ImageCopyTexture{
			Texture:  t.raw,
			MipLevel: uint32(mip),
			Origin:   hal.Origin3D{Z: uint32(layer)},
			Aspect:   gputypes.TextureAspectAll,
		},
		Size: hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	}})
	if err := d.wait(); err != nil {
		return err
	}

	m, err := d.gpu.MapBuffer(staging, 0, size)
	if err != nil {
		return fmt.Errorf("native: map readback buffer: %w", err)
	}
	defer func() { _ = d.gpu.UnmapBuffer(staging) }()
	mapped := unsafe.Slice((*byte)(m.Ptr), size)
	hostRow := w * t.desc.Format.Stride()
	for y := 0; y < h; y++ {
		src := mapped[uint64(y)*pitch : uint64(y)*pitch+row]
		shrink(t.desc.Format, src, dst[y*hostRow:(y+1)*hostRow])
	}
	return nil
}

// GenerateMipmaps implements device.Device. Level 0 of each layer is read
// back and box-filtered on the host.
func (d *Device) GenerateMipmaps(id device.TextureID) error {
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: texture %d", device.ErrUnknownID, id)
	}
	stride := t.desc.Format.Stride()
	for layer := 0; layer < t.desc.FaceCount(); layer++ {
		w, h := t.size(0)
		lvl := make([]byte, w*h*stride)
		if err := d.readLevel(t, layer, 0, lvl); err != nil {
			return err
		}
		for m := 1; m < t.desc.Mips; m++ {
			sw, sh := t.size(m - 1)
			dw, dh := t.size(m)
			lvl = texel.Downsample(t.desc.Format, lvl, sw, sh, dw, dh)
			if err := d.writeLevel(t, layer, m, lvl); err != nil {
				return err
			}
		}
	}
	return nil
}

// DestroyTexture implements device.Device.
func (d *Device) DestroyTexture(id device.TextureID) {
	if t, ok := d.textures[id]; ok {
		d.gpu.DestroyTexture(t.raw)
		delete(d.textures, id)
	}
}

type view struct {
	format device.Format

	// Buffer views.
	buf    *buffer
	offset uint64
	size   uint64

	// Texture views.
	tex        *texture
	raw        hal.TextureView
	dim        gputypes.TextureViewDimension
	layerFirst int
	mipFirst   int
}

// CreateBufferView implements device.Device.
func (d *Device) CreateBufferView(desc device.BufferViewDesc) (device.ViewID, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	if !desc.Format.Info().Buffer {
		return 0, fmt.Errorf("%w: format %v cannot type a buffer view", device.ErrInvalidArgument, desc.Format)
	}
	if desc.Offset%d.limits.ViewOffsetAlignment != 0 {
		return 0, fmt.Errorf("%w: view offset %d not aligned to %d", device.ErrInvalidArgument,
			desc.Offset, d.limits.ViewOffsetAlignment)
	}
	b, err := d.buffer(desc.Buffer, desc.Offset, desc.Size)
	if err != nil {
		return 0, err
	}
	id := device.ViewID(d.id())
	d.views[id] = &view{format: desc.Format, buf: b, offset: desc.Offset, size: desc.Size}
	return id, nil
}

// CreateTextureView implements device.Device. Cubemap views use the cube
// or cube array dimension; other views are 2D arrays unless they span a
// single layer.
func (d *Device) CreateTextureView(desc device.TextureViewDesc) (device.ViewID, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	t, ok := d.textures[desc.Texture]
	if !ok {
		return 0, fmt.Errorf("%w: texture %d", device.ErrUnknownID, desc.Texture)
	}
	if !t.desc.Format.Compatible(desc.Format) {
		return 0, fmt.Errorf("%w: %v texture viewed as %v", device.ErrInvalidArgument, t.desc.Format, desc.Format)
	}
	g, _ := textureFormat(desc.Format)
	if g.Format != t.gpu.Format && !slices.Contains(viewFormats(t.desc.Format), g.Format) {
		return 0, fmt.Errorf("%w: %v texture cannot be reinterpreted as %v", device.ErrUnsupported, t.desc.Format, desc.Format)
	}
	if desc.LayerFirst < 0 || desc.LayerCount <= 0 || desc.LayerFirst+desc.LayerCount > t.desc.Layers ||
		desc.MipFirst < 0 || desc.MipCount <= 0 || desc.MipFirst+desc.MipCount > t.desc.Mips {
		return 0, fmt.Errorf("%w: view layers [%d, +%d) mips [%d, +%d) outside texture %d",
			device.ErrInvalidArgument, desc.LayerFirst, desc.LayerCount, desc.MipFirst, desc.MipCount, desc.Texture)
	}

	base, count := desc.LayerFirst, desc.LayerCount
	dim := gputypes.TextureViewDimension2DArray
	switch {
	case t.desc.Cube && count == 1:
		dim = gputypes.TextureViewDimensionCube
	case t.desc.Cube:
		dim = gputypes.TextureViewDimensionCubeArray
	case count == 1:
		dim = gputypes.TextureViewDimension2D
	}
	if t.desc.Cube {
		base, count = base*6, count*6
	}
	raw, err := d.gpu.CreateTextureView(t.raw, &hal.TextureViewDescriptor{
		Label:           t.desc.Label,
		Format:          g.Format,
		Dimension:       dim,
		Aspect:          gputypes.TextureAspectAll,
		BaseMipLevel:    uint32(desc.MipFirst),
		MipLevelCount:   uint32(desc.MipCount),
		BaseArrayLayer:  uint32(base),
		ArrayLayerCount: uint32(count),
	})
	if err != nil {
		return 0, fmt.Errorf("native: create texture view: %w", err)
	}
	id := device.ViewID(d.id())
	d.views[id] = &view{format: desc.Format, tex: t, raw: raw, dim: dim, layerFirst: base, mipFirst: desc.MipFirst}
	return id, nil
}

// DestroyView implements device.Device.
func (d *Device) DestroyView(id device.ViewID) {
	if v, ok := d.views[id]; ok {
		if v.raw != nil {
			d.gpu.DestroyTextureView(v.raw)
		}
		delete(d.views, id)
	}
}

type sampler struct {
	raw hal.Sampler
}

// CreateSampler implements device.Device. Wrap modes the HAL lacks clamp
// to the edge and raise a portability diagnostic.
func (d *Device) CreateSampler(desc device.SamplerDesc) (device.SamplerID, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	if !desc.Min.Valid() || !desc.Mag.Valid() || desc.Mag.IsMipmap() || !desc.Wrap.Valid() {
		return 0, fmt.Errorf("%w: sampler min=%v mag=%v wrap=%v", device.ErrInvalidArgument, desc.Min, desc.Mag, desc.Wrap)
	}
	minF, mipF := filterModes(desc.Min)
	magF, _ := filterModes(desc.Mag)
	wrap, exact := addressMode(desc.Wrap)
	if !exact {
		d.emit(device.Message{
			Source:   device.SourceAPI,
			Type:     device.TypePortability,
			Severity: device.SeverityLow,
			ID:       3,
			Text:     fmt.Sprintf("wrap mode %v is not available, using clamp_to_edge", desc.Wrap),
		})
	}
	aniso := uint16(1)
	if desc.Anisotropy >= 2 && minF == gputypes.FilterModeLinear && magF == gputypes.FilterModeLinear && mipF == gputypes.FilterModeLinear {
		aniso = uint16(min(desc.Anisotropy, 16))
	}
	raw, err := d.gpu.CreateSampler(&hal.SamplerDescriptor{
		Label:        "gpulib-sampler",
		AddressModeU: wrap,
		AddressModeV: wrap,
		AddressModeW: wrap,
		MagFilter:    magF,
		MinFilter:    minF,
		MipmapFilter: mipF,
		LodMinClamp:  0,
		LodMaxClamp:  32,
		Anisotropy:   aniso,
	})
	if err != nil {
		return 0, fmt.Errorf("native: create sampler: %w", err)
	}
	id := device.SamplerID(d.id())
	d.samplers[id] = &sampler{raw: raw}
	return id, nil
}

// DestroySampler implements device.Device.
func (d *Device) DestroySampler(id device.SamplerID) {
	if s, ok := d.samplers[id]; ok {
		d.gpu.DestroySampler(s.raw)
		delete(d.samplers, id)
	}
}
