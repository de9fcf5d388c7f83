package soft

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"math"
	"testing"

	"github.com/sevas/gpulib/device"
)

// fullscreenVS draws one triangle covering the viewport at the depth
// held in uniform location 1.
const fullscreenVS = `
@group(2) @binding(1) var<uniform> depth: f32;

@vertex
fn soft_fill_vs(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    let k = i % 3u;
    let x = f32(k % 2u) * 4.0 - 1.0;
    let y = f32(k / 2u) * 4.0 - 1.0;
    return vec4<f32>(x, y, depth, 1.0);
}
`

const fillSource = fullscreenVS + `
@group(2) @binding(0) var<uniform> color: vec4<f32>;

@fragment
fn soft_fill_fs() -> @location(0) vec4<f32> {
    return color;
}
`

const captureSource = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;

struct DiffOut {
    @builtin(position) pos: vec4<f32>,
    @location(0) diff: f32,
}

@vertex
fn soft_diff_vs(@builtin(vertex_index) i: u32) -> DiffOut {
    var o: DiffOut;
    o.pos = vec4<f32>(0.0, 0.0, 0.0, 1.0);
    o.diff = a[i] - b[i];
    return o;
}
`

const textureSource = fullscreenVS + `
@group(0) @binding(1) var tex: texture_2d<f32>;
@group(1) @binding(1) var smp: sampler;

@fragment
fn soft_tex_fs() -> @location(0) vec4<f32> {
    return textureSample(tex, smp, vec2<f32>(0.75, 0.5));
}
`

// rampSource interpolates the window x coordinate through a varying.
const rampSource = `
struct RampOut {
    @builtin(position) pos: vec4<f32>,
    @location(0) ramp: f32,
}

@vertex
fn soft_ramp_vs(@builtin(vertex_index) i: u32) -> RampOut {
    let k = i % 3u;
    let x = f32(k % 2u) * 4.0 - 1.0;
    let y = f32(k / 2u) * 4.0 - 1.0;
    var o: RampOut;
    o.pos = vec4<f32>(x, y, 0.5, 1.0);
    o.ramp = x * 0.5 + 0.5;
    return o;
}

@fragment
fn soft_ramp_fs(@location(0) ramp: f32) -> @location(0) vec4<f32> {
    return vec4<f32>(ramp, 0.0, 0.0, 1.0);
}
`

// clipSource passes positions through from a vec4 buffer view.
const clipSource = `
@group(0) @binding(0) var<storage, read> pos: array<vec4<f32>>;

@vertex
fn soft_clip_vs(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    return pos[i];
}

@fragment
fn soft_clip_fs() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 1.0, 1.0, 1.0);
}
`

func newDevice(t *testing.T, w, h int, opts ...Option) *Device {
	t.Helper()
	d := New(opts...)
	if err := d.Init(device.SurfaceConfig{Title: t.Name(), Width: w, Height: h}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func mustPipeline(t *testing.T, d *Device, src string, withFrag bool, captures ...string) (device.PipelineID, device.ShaderID, device.ShaderID) {
	t.Helper()
	vs, err := d.CompileShader(device.ShaderDesc{Stage: device.StageVertex, Source: src, Captures: captures})
	if err != nil {
		t.Fatalf("CompileShader(vertex) error = %v", err)
	}
	var fs device.ShaderID
	if withFrag {
		fs, err = d.CompileShader(device.ShaderDesc{Stage: device.StageFragment, Source: src})
		if err != nil {
			t.Fatalf("CompileShader(fragment) error = %v", err)
		}
	}
	p, err := d.LinkPipeline(vs, fs)
	if err != nil {
		t.Fatalf("LinkPipeline() error = %v", err)
	}
	return p, vs, fs
}

func f32bytes(vals ...float32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func TestInitRequiresSurface(t *testing.T) {
	d := New()
	if err := d.Init(device.SurfaceConfig{}); !errors.Is(err, device.ErrInvalidArgument) {
		t.Errorf("Init(zero) error = %v, want ErrInvalidArgument", err)
	}
	if _, err := d.CreateBuffer(4); !errors.Is(err, device.ErrNotInitialized) {
		t.Errorf("CreateBuffer before Init error = %v, want ErrNotInitialized", err)
	}
}

func TestBufferMappingIsCoherent(t *testing.T) {
	d := newDevice(t, 4, 4)
	id, err := d.CreateBuffer(16)
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	m := d.MapBuffer(id)
	copy(m, []byte{1, 2, 3, 4})
	got := make([]byte, 4)
	if err := d.ReadBuffer(id, 0, got); err != nil {
		t.Fatalf("ReadBuffer() error = %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("ReadBuffer() = %v, want mapped bytes", got)
	}
	if err := d.WriteBuffer(id, 14, []byte{1, 2, 3}); !errors.Is(err, device.ErrInvalidArgument) {
		t.Errorf("WriteBuffer past end error = %v", err)
	}
	if _, err := d.CreateBuffer(0); !errors.Is(err, device.ErrInvalidArgument) {
		t.Errorf("CreateBuffer(0) error = %v", err)
	}
}

func TestTextureRoundTripAndMips(t *testing.T) {
	d := newDevice(t, 4, 4)
	tests := []struct {
		name   string
		format device.Format
		texel  []byte
	}{
		{"rgba8", device.FormatRGBA8, []byte{200, 100, 50, 255}},
		{"srgb8", device.FormatSRGB8, []byte{10, 20, 30}},
		{"float", device.FormatXYZW32F, f32bytes(0.25, 0.5, 0.75, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := d.CreateTexture(device.TextureDesc{Format: tt.format, Width: 8, Height: 4, Layers: 2, Mips: 4})
			if err != nil {
				t.Fatalf("CreateTexture() error = %v", err)
			}
			level0 := bytes.Repeat(tt.texel, 8*4)
			for layer := 0; layer < 2; layer++ {
				if err := d.WriteTexture(id, layer, 0, level0); err != nil {
					t.Fatalf("WriteTexture() error = %v", err)
				}
			}
			if err := d.GenerateMipmaps(id); err != nil {
				t.Fatalf("GenerateMipmaps() error = %v", err)
			}
			first := make([]byte, 1*1*len(tt.texel))
			if err := d.ReadTexture(id, 1, 3, first); err != nil {
				t.Fatalf("ReadTexture() error = %v", err)
			}
			// A uniform image stays uniform at every level.
			for i := range first {
				if diff := int(first[i]) - int(tt.texel[i]); tt.format != device.FormatXYZW32F && (diff > 1 || diff < -1) {
					t.Errorf("mip 3 byte %d = %d, want %d", i, first[i], tt.texel[i])
				}
			}
			if tt.format == device.FormatXYZW32F && !bytes.Equal(first, tt.texel) {
				t.Errorf("mip 3 = %v, want %v", first, tt.texel)
			}

			// Regenerating is idempotent.
			if err := d.GenerateMipmaps(id); err != nil {
				t.Fatalf("GenerateMipmaps() error = %v", err)
			}
			second := make([]byte, len(first))
			if err := d.ReadTexture(id, 1, 3, second); err != nil {
				t.Fatalf("ReadTexture() error = %v", err)
			}
			if !bytes.Equal(first, second) {
				t.Errorf("mips changed on regeneration: %v then %v", first, second)
			}
		})
	}
}

func TestTextureValidation(t *testing.T) {
	d := newDevice(t, 4, 4)
	if _, err := d.CreateTexture(device.TextureDesc{Format: device.FormatXYZ32F, Width: 1, Height: 1, Layers: 1, Mips: 1}); err == nil {
		t.Error("CreateTexture(xyz_f32) succeeded, want error")
	}
	if _, err := d.CreateTexture(device.TextureDesc{Format: device.FormatRGBA8, Width: 4, Height: 2, Layers: 1, Mips: 1, Cube: true}); err == nil {
		t.Error("non-square cubemap succeeded, want error")
	}
	id, err := d.CreateTexture(device.TextureDesc{Format: device.FormatRGBA8, Width: 2, Height: 2, Layers: 1, Mips: 1})
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	if err := d.WriteTexture(id, 0, 0, make([]byte, 3)); !errors.Is(err, device.ErrInvalidArgument) {
		t.Errorf("WriteTexture(short) error = %v", err)
	}
	if _, err := d.CreateTextureView(device.TextureViewDesc{Texture: id, Format: device.FormatD32F, LayerCount: 1, MipCount: 1}); err == nil {
		t.Error("depth view of color texture succeeded")
	}
}

func TestCompileErrors(t *testing.T) {
	d := newDevice(t, 4, 4)
	tests := []struct {
		name string
		desc device.ShaderDesc
	}{
		{"syntax", device.ShaderDesc{Stage: device.StageVertex, Source: "@vertex fn soft_fill_vs( {"}},
		{"garbage body", device.ShaderDesc{Stage: device.StageVertex, Source: "@vertex fn soft_diff_vs() { this is not wgsl at all +++ ;;; let = = }"}},
		{"undeclared identifier", device.ShaderDesc{Stage: device.StageFragment, Source: "@fragment fn f() -> @location(0) vec4<f32> { return missing; }"}},
		{"no entry", device.ShaderDesc{Stage: device.StageFragment, Source: captureSource}},
		{"no position", device.ShaderDesc{Stage: device.StageVertex, Source: "@vertex fn v() -> @location(0) vec4<f32> { return vec4<f32>(0.0); }"}},
		{"bad capture", device.ShaderDesc{Stage: device.StageVertex, Source: captureSource, Captures: []string{"nope"}}},
		{"fragment capture", device.ShaderDesc{Stage: device.StageFragment, Source: fillSource, Captures: []string{"diff"}}},
		{"wrong group", device.ShaderDesc{Stage: device.StageVertex, Source: "@group(1) @binding(0) var<uniform> x: f32;\n" + captureSource}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.CompileShader(tt.desc)
			var se *device.ShaderError
			if !errors.As(err, &se) || !errors.Is(err, device.ErrCompile) {
				t.Fatalf("CompileShader() error = %v, want *ShaderError(ErrCompile)", err)
			}
			if se.Log == "" {
				t.Error("empty diagnostic log")
			}
		})
	}
}

func TestLinkInterfaceMismatch(t *testing.T) {
	d := newDevice(t, 4, 4)
	vs, err := d.CompileShader(device.ShaderDesc{Stage: device.StageVertex, Source: fillSource})
	if err != nil {
		t.Fatalf("CompileShader() error = %v", err)
	}
	const needsUV = `
@fragment
fn soft_needs_uv(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(uv, 0.0, 1.0);
}
`
	fs, err := d.CompileShader(device.ShaderDesc{Stage: device.StageFragment, Source: needsUV})
	if err != nil {
		t.Fatalf("CompileShader() error = %v", err)
	}
	if _, err := d.LinkPipeline(vs, fs); !errors.Is(err, device.ErrLink) {
		t.Errorf("LinkPipeline() error = %v, want ErrLink", err)
	}
	if _, err := d.LinkPipeline(fs, vs); !errors.Is(err, device.ErrLink) {
		t.Errorf("LinkPipeline(swapped) error = %v, want ErrLink", err)
	}
}

func uniformFloat(s *shader, loc int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(s.uniforms[loc]))
}

func TestUniforms(t *testing.T) {
	var msgs []device.Message
	d := newDevice(t, 4, 4)
	d.SetDebugFunc(func(m device.Message) { msgs = append(msgs, m) })
	_, vs, fs := mustPipeline(t, d, fillSource, true)

	// Both stages see every uniform the module declares.
	if !d.UniformActive(vs, 0) || !d.UniformActive(vs, 1) || d.UniformActive(vs, 2) {
		t.Error("active set does not match declared uniforms")
	}
	d.SetUniform(vs, 1, device.Uniform{Kind: device.UniformFloat, Float: [4]float32{0.5}})
	d.SetUniform(vs, 2, device.Uniform{Kind: device.UniformFloat, Float: [4]float32{9}})
	if got := uniformFloat(d.shaders[vs], 1); got != 0.5 {
		t.Errorf("uniform 1 = %v, want 0.5", got)
	}
	if _, ok := d.shaders[vs].uniforms[2]; ok {
		t.Error("inactive location stored a value")
	}
	if _, ok := d.shaders[fs].uniforms[1]; ok {
		t.Error("uniform set on the vertex stage leaked into the fragment stage")
	}
	if len(msgs) != 0 {
		t.Errorf("unexpected diagnostics %v", msgs)
	}
	d.SetUniform(vs, 1, device.Uniform{Kind: device.UniformInt, Int: 3})
	if len(msgs) != 1 || msgs[0].Severity != device.SeverityHigh {
		t.Errorf("kind mismatch diagnostics = %v, want one high severity message", msgs)
	}
	if got := uniformFloat(d.shaders[vs], 1); got != 0.5 {
		t.Errorf("mismatched set overwrote uniform: %v", got)
	}
}

func pixel(img *image.RGBA, x, y int) [4]uint8 {
	o := img.PixOffset(x, y)
	return [4]uint8{img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3]}
}

func draw(t *testing.T, d *Device, p device.PipelineID, topo device.Topology, count int) {
	t.Helper()
	if err := d.BindPipeline(p); err != nil {
		t.Fatalf("BindPipeline() error = %v", err)
	}
	if err := d.Draw(device.DrawCall{Topology: topo, Count: count, InstanceCount: 1}); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
}

func TestDrawFillsSurfaceAndDepthTest(t *testing.T) {
	var presented *image.RGBA
	d := newDevice(t, 8, 6, WithPresentFunc(func(img *image.RGBA) { presented = img }))
	p, vs, fs := mustPipeline(t, d, fillSource, true)

	fill := func(color [4]float32, depth float32) {
		t.Helper()
		d.SetUniform(fs, 0, device.Uniform{Kind: device.UniformVec4, Float: color})
		d.SetUniform(vs, 1, device.Uniform{Kind: device.UniformFloat, Float: [4]float32{depth}})
		draw(t, d, p, device.TopologyTriangles, 3)
	}

	fill([4]float32{1, 0, 0, 1}, 0.5)
	fill([4]float32{0, 1, 0, 1}, 0.7) // behind: rejected
	if err := d.Present(); err != nil {
		t.Fatalf("Present() error = %v", err)
	}
	if presented == nil {
		t.Fatal("PresentFunc not called")
	}
	for _, xy := range [][2]int{{0, 0}, {7, 5}, {3, 2}} {
		if got := pixel(presented, xy[0], xy[1]); got != [4]uint8{255, 0, 0, 255} {
			t.Errorf("pixel %v = %v, want red", xy, got)
		}
	}

	d.SetDepthTest(false)
	fill([4]float32{0, 0, 1, 1}, 0.9)
	if got := pixel(d.Surface(), 4, 3); got != [4]uint8{0, 0, 255, 255} {
		t.Errorf("pixel with depth test off = %v, want blue", got)
	}

	if err := d.Clear([4]float32{}, 1); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if got := pixel(d.Surface(), 4, 3); got != [4]uint8{} {
		t.Errorf("pixel after Clear = %v, want zero", got)
	}
}

func TestDrawIntoFramebuffer(t *testing.T) {
	d := newDevice(t, 4, 4)
	p, _, fs := mustPipeline(t, d, fillSource, true)

	var colors []device.ViewID
	for i := 0; i < 2; i++ {
		tex, err := d.CreateTexture(device.TextureDesc{Format: device.FormatRGBA8, Width: 3, Height: 2, Layers: 1, Mips: 1})
		if err != nil {
			t.Fatalf("CreateTexture() error = %v", err)
		}
		v, err := d.CreateTextureView(device.TextureViewDesc{Texture: tex, Format: device.FormatRGBA8, LayerCount: 1, MipCount: 1})
		if err != nil {
			t.Fatalf("CreateTextureView() error = %v", err)
		}
		colors = append(colors, v)
	}
	fb, err := d.CreateFramebuffer(colors, device.InvalidID)
	if err != nil {
		t.Fatalf("CreateFramebuffer() error = %v", err)
	}
	if err := d.BindFramebuffer(fb); err != nil {
		t.Fatalf("BindFramebuffer() error = %v", err)
	}
	d.SetUniform(fs, 0, device.Uniform{Kind: device.UniformVec4, Float: [4]float32{0, 0, 1, 1}})
	draw(t, d, p, device.TopologyTriangles, 3)

	first := d.views[colors[0]].image()
	if got := pixel(first, 2, 1); got != [4]uint8{0, 0, 255, 255} {
		t.Errorf("attachment 0 pixel = %v, want blue", got)
	}
	// The stage writes only @location(0).
	if got := pixel(d.views[colors[1]].image(), 2, 1); got != [4]uint8{} {
		t.Errorf("attachment 1 pixel = %v, want zero", got)
	}
	// The default surface is untouched.
	if got := pixel(d.Surface(), 0, 0); got != [4]uint8{} {
		t.Errorf("surface pixel = %v, want zero", got)
	}
}

func TestVaryingsInterpolate(t *testing.T) {
	d := newDevice(t, 4, 1)
	p, _, _ := mustPipeline(t, d, rampSource, true)
	draw(t, d, p, device.TopologyTriangles, 3)

	img := d.Surface()
	for x := 0; x < 4; x++ {
		want := (float64(x) + 0.5) / 4 * 255
		got := pixel(img, x, 0)
		if math.Abs(float64(got[0])-want) > 1 || got[3] != 255 {
			t.Errorf("pixel %d = %v, want red near %.1f", x, got, want)
		}
	}
}

func TestSampleTexture(t *testing.T) {
	tests := []struct {
		name  string
		bind  bool
		wrap  device.Wrap
		want  [4]uint8
		diags int
	}{
		{"nearest", true, device.WrapClampToEdge, [4]uint8{255, 0, 0, 255}, 0},
		{"border falls back to edge", true, device.WrapClampToBorder, [4]uint8{255, 0, 0, 255}, 1},
		{"unbound texture", false, device.WrapRepeat, [4]uint8{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msgs []device.Message
			d := newDevice(t, 2, 2)
			d.SetDebugFunc(func(m device.Message) { msgs = append(msgs, m) })
			p, _, _ := mustPipeline(t, d, textureSource, true)

			smp, err := d.CreateSampler(device.SamplerDesc{Min: device.FilterNearest, Mag: device.FilterNearest, Wrap: tt.wrap})
			if err != nil {
				t.Fatalf("CreateSampler() error = %v", err)
			}
			if err := d.BindSampler(1, smp); err != nil {
				t.Fatalf("BindSampler() error = %v", err)
			}
			if tt.bind {
				tex, err := d.CreateTexture(device.TextureDesc{Format: device.FormatRGBA8, Width: 2, Height: 1, Layers: 1, Mips: 1})
				if err != nil {
					t.Fatalf("CreateTexture() error = %v", err)
				}
				if err := d.WriteTexture(tex, 0, 0, []byte{0, 0, 0, 255, 255, 0, 0, 255}); err != nil {
					t.Fatalf("WriteTexture() error = %v", err)
				}
				v, err := d.CreateTextureView(device.TextureViewDesc{Texture: tex, Format: device.FormatRGBA8, LayerCount: 1, MipCount: 1})
				if err != nil {
					t.Fatalf("CreateTextureView() error = %v", err)
				}
				if err := d.BindTexture(1, v); err != nil {
					t.Fatalf("BindTexture() error = %v", err)
				}
			}
			draw(t, d, p, device.TopologyTriangles, 3)

			if got := pixel(d.Surface(), 1, 1); got != tt.want {
				t.Errorf("pixel = %v, want %v", got, tt.want)
			}
			if len(msgs) != tt.diags {
				t.Errorf("diagnostics = %v, want %d", msgs, tt.diags)
			}
		})
	}
}

func TestTriangleBehindEyeIsClipped(t *testing.T) {
	d := newDevice(t, 4, 4)
	d.SetDepthTest(false)
	buf, err := d.CreateBuffer(48)
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	// The apex sits behind the eye; the base edge is in front of it.
	copy(d.MapBuffer(buf), f32bytes(
		-1, -1, 0.5, 1,
		1, -1, 0.5, 1,
		0, 1, 0.5, -0.1,
	))
	v, err := d.CreateBufferView(device.BufferViewDesc{Buffer: buf, Format: device.FormatXYZW32F, Size: 48})
	if err != nil {
		t.Fatalf("CreateBufferView() error = %v", err)
	}
	if err := d.BindTexture(0, v); err != nil {
		t.Fatalf("BindTexture() error = %v", err)
	}
	p, _, _ := mustPipeline(t, d, clipSource, true)
	draw(t, d, p, device.TopologyTriangles, 3)

	img := d.Surface()
	white := [4]uint8{255, 255, 255, 255}
	for _, xy := range [][2]int{{0, 3}, {3, 3}, {1, 2}} {
		if got := pixel(img, xy[0], xy[1]); got != white {
			t.Errorf("pixel %v = %v, want covered", xy, got)
		}
	}
	for _, xy := range [][2]int{{1, 0}, {1, 1}} {
		if got := pixel(img, xy[0], xy[1]); got != [4]uint8{} {
			t.Errorf("pixel %v = %v, want uncovered", xy, got)
		}
	}
}

func TestCaptureExecutesSource(t *testing.T) {
	var msgs []device.Message
	d := newDevice(t, 4, 4)
	d.SetDebugFunc(func(m device.Message) { msgs = append(msgs, m) })

	buf, err := d.CreateBuffer(64)
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	copy(d.MapBuffer(buf), f32bytes(1, 2, 3, 0, 13, 14, 15, 0))
	va, _ := d.CreateBufferView(device.BufferViewDesc{Buffer: buf, Format: device.FormatX32F, Offset: 0, Size: 12})
	vb, _ := d.CreateBufferView(device.BufferViewDesc{Buffer: buf, Format: device.FormatX32F, Offset: 16, Size: 12})

	p, _, _ := mustPipeline(t, d, captureSource, false, "diff")
	xfb, err := d.CreateFeedback([]device.CaptureRange{{Buffer: buf, Offset: 32, Size: 12}})
	if err != nil {
		t.Fatalf("CreateFeedback() error = %v", err)
	}
	if err := d.BindFeedback(xfb); err != nil {
		t.Fatalf("BindFeedback() error = %v", err)
	}
	_ = d.BindTexture(0, va)
	_ = d.BindTexture(1, vb)
	draw(t, d, p, device.TopologyPoints, 3)
	if err := d.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if got, want := d.MapBuffer(buf)[32:44], f32bytes(-12, -12, -12); !bytes.Equal(got, want) {
		t.Errorf("captured = %v, want %v", got, want)
	}
	if len(msgs) != 0 {
		t.Errorf("unexpected diagnostics %v", msgs)
	}

	// A second draw without rebinding finds the range full.
	draw(t, d, p, device.TopologyPoints, 1)
	if len(msgs) != 1 || msgs[0].ID != msgCaptureFull {
		t.Errorf("overflow diagnostics = %v, want one capture-full message", msgs)
	}

	// Drawing without a fragment stage outside capture fails.
	_ = d.BindFeedback(device.InvalidID)
	if err := d.Draw(device.DrawCall{Topology: device.TopologyPoints, Count: 1, InstanceCount: 1}); !errors.Is(err, device.ErrInvalidArgument) {
		t.Errorf("Draw() without capture error = %v, want ErrInvalidArgument", err)
	}
}

func TestRegisteredWithDeviceRegistry(t *testing.T) {
	d, err := device.Get(device.NameSoft)
	if err != nil {
		t.Fatalf("device.Get(soft) error = %v", err)
	}
	if d.Name() != device.NameSoft {
		t.Errorf("Name() = %q", d.Name())
	}
}
