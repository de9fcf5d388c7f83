package gpulib

import (
	"testing"

	"github.com/sevas/gpulib/device/soft"
)

// positionSource draws vertices fetched from texture unit 0 with a solid
// color from uniform location 0.
const positionSource = `
@group(0) @binding(0) var<storage, read> verts: array<vec4<f32>>;
@group(2) @binding(0) var<uniform> color: vec4<f32>;

@vertex
fn test_pos_vs(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    return verts[i];
}

@fragment
fn test_solid_fs() -> @location(0) vec4<f32> {
    return color;
}
`

// tintSource colors fragments with element 0 of unit 1. Unbound units read
// as empty, so the color is zero.
const tintSource = `
@group(0) @binding(0) var<storage, read> verts: array<vec4<f32>>;
@group(0) @binding(1) var<storage, read> tint: array<vec4<f32>>;

@fragment
fn test_tint_fs() -> @location(0) vec4<f32> {
    return vec4<f32>(tint[0].rgb, 1.0);
}
`

// textureSource samples unit 1 at the image center.
const textureSource = `
@group(0) @binding(1) var tex: texture_2d<f32>;
@group(1) @binding(1) var samp: sampler;

@fragment
fn test_tex_fs() -> @location(0) vec4<f32> {
    return textureSample(tex, samp, vec2<f32>(0.5, 0.5));
}
`

// sumSource emits a[i] + b[i] as capture variable "sum".
const sumSource = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;

struct SumOut {
    @builtin(position) pos: vec4<f32>,
    @location(0) sum: f32,
}

@vertex
fn test_sum_vs(@builtin(vertex_index) i: u32) -> SumOut {
    var o: SumOut;
    o.pos = vec4<f32>(0.0, 0.0, 0.0, 1.0);
    o.sum = a[i] + b[i];
    return o;
}
`

// fullScreen is a triangle covering the whole viewport at depth 0.5.
var fullScreen = []float32{
	-1, -1, 0.5, 1,
	3, -1, 0.5, 1,
	-1, 3, 0.5, 1,
}

func newTestContext(t *testing.T, opts ...ContextOption) *Context {
	t.Helper()
	base := []ContextOption{
		WithDevice(soft.New()),
		WithSurface(SurfaceConfig{Title: t.Name(), Width: 4, Height: 4, Samples: 1}),
		WithArenaCapacity(1 << 16),
	}
	ctx, err := NewContext(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	t.Cleanup(ctx.Close)
	return ctx
}

// putView allocates vals in the arena and casts them as format.
func putView(t *testing.T, ctx *Context, format Format, vals ...float32) View {
	t.Helper()
	n := uint64(4 * len(vals))
	off, err := ctx.Arena().Alloc(n)
	if err != nil {
		t.Fatalf("Alloc(%d) error = %v", n, err)
	}
	if err := ctx.Arena().PutFloat32s(off, vals...); err != nil {
		t.Fatalf("PutFloat32s() error = %v", err)
	}
	v, err := ctx.Cast(format, off, n)
	if err != nil {
		t.Fatalf("Cast(%v, %d, %d) error = %v", format, off, n, err)
	}
	return v
}

func compile(t *testing.T, ctx *Context, kind StageKind, src string, captures ...string) Stage {
	t.Helper()
	s, err := ctx.CompileStage(kind, src, captures...)
	if err != nil {
		t.Fatalf("CompileStage(%v) error = %v", kind, err)
	}
	return s
}

func link(t *testing.T, ctx *Context, vert, frag Stage) Pipeline {
	t.Helper()
	p, err := ctx.LinkPipeline(vert, frag)
	if err != nil {
		t.Fatalf("LinkPipeline() error = %v", err)
	}
	return p
}

// solidPipeline links a pipeline drawing color.
func solidPipeline(t *testing.T, ctx *Context, color [4]float32) Pipeline {
	t.Helper()
	fs := compile(t, ctx, FragmentStage, positionSource)
	ctx.SetVec4(fs, 0, color)
	return link(t, ctx, compile(t, ctx, VertexStage, positionSource), fs)
}

// renderTarget allocates an RGBA8 image and binds a framebuffer over it.
func renderTarget(t *testing.T, ctx *Context, w, h int) Image {
	t.Helper()
	img, err := ctx.AllocImage(FormatRGBA8, w, h, 1, 1)
	if err != nil {
		t.Fatalf("AllocImage() error = %v", err)
	}
	fb, err := ctx.CreateFramebuffer([]View{ctx.ImageView(img)}, 0)
	if err != nil {
		t.Fatalf("CreateFramebuffer() error = %v", err)
	}
	if err := ctx.BindFramebuffer(fb); err != nil {
		t.Fatalf("BindFramebuffer() error = %v", err)
	}
	if err := ctx.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	return img
}

// pixel reads texel (x, y) of mip 0, layer 0 of an RGBA8 image.
func pixel(t *testing.T, ctx *Context, img Image, x, y int) [4]byte {
	t.Helper()
	data, err := ctx.ReadImage(img, 0, 0)
	if err != nil {
		t.Fatalf("ReadImage() error = %v", err)
	}
	w, _ := ctx.ImageSize(img)
	i := (y*w + x) * 4
	return [4]byte{data[i], data[i+1], data[i+2], data[i+3]}
}

func drawOp(id int, p Pipeline, textures Bindings[View], count int) Op {
	return Op{
		ID:       id,
		Pipeline: p,
		Topology: Triangles,
		Textures: textures,
		Cmds:     []Cmd{{Count: count, InstanceCount: 1}},
	}
}
