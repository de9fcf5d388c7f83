package gpulib

import (
	"errors"
	"strings"
	"testing"
)

// vec3SumSource adds two tightly packed vec3 arrays, read as floats.
const vec3SumSource = `
@group(0) @binding(0) var<storage, read> vector1: array<f32>;
@group(0) @binding(1) var<storage, read> vector2: array<f32>;

struct SumOut {
    @builtin(position) pos: vec4<f32>,
    @location(0) vector3: vec3<f32>,
}

@vertex
fn test_vec3_sum_vs(@builtin(vertex_index) i: u32) -> SumOut {
    let k = 3u * i;
    var o: SumOut;
    o.pos = vec4<f32>(0.0, 0.0, 0.0, 1.0);
    o.vector3 = vec3<f32>(
        vector1[k] + vector2[k],
        vector1[k + 1u] + vector2[k + 1u],
        vector1[k + 2u] + vector2[k + 2u],
    );
    return o;
}
`

// capture runs src over n points reading views a and b and returns the
// floats captured from variable name.
func capture(t *testing.T, ctx *Context, src, name string, a, b View, n, floats int) []float32 {
	t.Helper()
	out, err := ctx.Arena().Alloc(uint64(4 * floats))
	if err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	xfb, err := ctx.CreateFeedback(CaptureRange{Offset: out, Length: uint64(4 * floats)})
	if err != nil {
		t.Fatalf("CreateFeedback() error = %v", err)
	}
	p := link(t, ctx, compile(t, ctx, VertexStage, src, name), 0)
	if err := ctx.BindFeedback(xfb); err != nil {
		t.Fatalf("BindFeedback() error = %v", err)
	}
	op := Op{ID: 1, Pipeline: p, Topology: Points, Textures: Dense(0, a, b), Cmds: []Cmd{{Count: n, InstanceCount: 1}}}
	if err := ctx.Submit([]Op{op}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := ctx.BindFeedback(0); err != nil {
		t.Fatalf("BindFeedback(0) error = %v", err)
	}
	if err := ctx.Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	got, err := ctx.Arena().Float32s(out, floats)
	if err != nil {
		t.Fatalf("Float32s() error = %v", err)
	}
	return got
}

func TestFeedbackCapturesSums(t *testing.T) {
	ctx := newTestContext(t)
	a := putView(t, ctx, FormatX32F, 1, 2, 3)
	b := putView(t, ctx, FormatX32F, 13, 14, 15)
	out, err := ctx.Arena().Alloc(12)
	if err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	xfb, err := ctx.CreateFeedback(CaptureRange{Offset: out, Length: 12})
	if err != nil {
		t.Fatalf("CreateFeedback() error = %v", err)
	}
	p := link(t, ctx, compile(t, ctx, VertexStage, sumSource, "sum"), 0)

	if err := ctx.BindFeedback(xfb); err != nil {
		t.Fatalf("BindFeedback() error = %v", err)
	}
	if ctx.State() != StateFeedback {
		t.Errorf("State() = %v, want feedback", ctx.State())
	}
	op := Op{
		ID:       1,
		Pipeline: p,
		Topology: Points,
		Textures: Dense(0, a, b),
		Cmds:     []Cmd{{Count: 3, InstanceCount: 1}},
	}
	if err := ctx.Submit([]Op{op}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := ctx.Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	got, err := ctx.Arena().Float32s(out, 3)
	if err != nil {
		t.Fatalf("Float32s() error = %v", err)
	}
	for i, want := range []float32{14, 16, 18} {
		if got[i] != want {
			t.Errorf("capture[%d] = %v, want %v", i, got[i], want)
		}
	}

	// Rebinding resets the write cursor: a second pass overwrites in place.
	if err := ctx.Arena().PutFloat32s(0, 2); err != nil {
		t.Fatalf("PutFloat32s() error = %v", err)
	}
	if err := ctx.BindFeedback(xfb); err != nil {
		t.Fatalf("BindFeedback() error = %v", err)
	}
	op.Cmds = []Cmd{{Count: 1, InstanceCount: 1}}
	if err := ctx.Submit([]Op{op}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := ctx.Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if got, _ := ctx.Arena().Float32s(out, 3); got[0] != 15 || got[1] != 16 {
		t.Errorf("capture after rebind = %v, want [15 16 18]", got)
	}
	if err := ctx.BindFeedback(0); err != nil {
		t.Fatalf("BindFeedback(0) error = %v", err)
	}
	if ctx.State() != StateIdle {
		t.Errorf("State() = %v, want idle", ctx.State())
	}
}

func TestFeedbackRunsStageBody(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want []float32
	}{
		{"sum", "a[i] + b[i]", []float32{14, 16, 18}},
		{"difference", "a[i] - b[i]", []float32{-12, -12, -12}},
		{"product", "a[i] * b[i]", []float32{13, 28, 45}},
		{"reversed index", "a[2u - i]", []float32{3, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(t)
			a := putView(t, ctx, FormatX32F, 1, 2, 3)
			b := putView(t, ctx, FormatX32F, 13, 14, 15)
			src := strings.Replace(sumSource, "a[i] + b[i]", tt.expr, 1)
			got := capture(t, ctx, src, "sum", a, b, 3, 3)
			for i, want := range tt.want {
				if got[i] != want {
					t.Errorf("capture = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestFeedbackCapturesVec3Sums(t *testing.T) {
	ctx := newTestContext(t)
	vector1 := putView(t, ctx, FormatXYZ32F, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)
	vector2 := putView(t, ctx, FormatXYZ32F, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24)

	got := capture(t, ctx, vec3SumSource, "vector3", vector1, vector2, 4, 12)
	want := []float32{14, 16, 18, 20, 22, 24, 26, 28, 30, 32, 34, 36}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("vector3 = %v, want %v", got, want)
		}
	}
}

func TestFeedbackOverflowIsDiagnosed(t *testing.T) {
	var diags []Message
	ctx := newTestContext(t, WithDebugFunc(func(m Message) { diags = append(diags, m) }))
	a := putView(t, ctx, FormatX32F, 1, 2, 3)
	b := putView(t, ctx, FormatX32F, 1, 1, 1)
	out, err := ctx.Arena().Alloc(8)
	if err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	xfb, err := ctx.CreateFeedback(CaptureRange{Offset: out, Length: 8})
	if err != nil {
		t.Fatalf("CreateFeedback() error = %v", err)
	}
	p := link(t, ctx, compile(t, ctx, VertexStage, sumSource, "sum"), 0)
	if err := ctx.BindFeedback(xfb); err != nil {
		t.Fatalf("BindFeedback() error = %v", err)
	}
	err = ctx.Submit([]Op{{Pipeline: p, Topology: Points, Textures: Dense(0, a, b), Cmds: []Cmd{{Count: 3, InstanceCount: 1}}}})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := ctx.Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	got, _ := ctx.Arena().Float32s(out, 2)
	if got[0] != 2 || got[1] != 3 {
		t.Errorf("capture = %v, want [2 3]", got)
	}
	if len(diags) == 0 {
		t.Error("overflowing capture produced no diagnostic")
	}
}

func TestFeedbackMismatch(t *testing.T) {
	ctx := newTestContext(t)
	if _, err := ctx.Arena().Alloc(64); err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	xfb, err := ctx.CreateFeedback(CaptureRange{Offset: 0, Length: 16}, CaptureRange{Offset: 16, Length: 16})
	if err != nil {
		t.Fatalf("CreateFeedback() error = %v", err)
	}
	p := link(t, ctx, compile(t, ctx, VertexStage, sumSource, "sum"), 0)
	if err := ctx.BindFeedback(xfb); err != nil {
		t.Fatalf("BindFeedback() error = %v", err)
	}
	err = ctx.Submit([]Op{{Pipeline: p, Topology: Points, Cmds: []Cmd{{Count: 1, InstanceCount: 1}}}})
	if !errors.Is(err, ErrFeedbackMismatch) {
		t.Errorf("Submit() error = %v, want ErrFeedbackMismatch", err)
	}
}

func TestCreateFeedbackErrors(t *testing.T) {
	ctx := newTestContext(t)
	if _, err := ctx.Arena().Alloc(64); err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	r := CaptureRange{Offset: 0, Length: 16}
	tests := []struct {
		name   string
		ranges []CaptureRange
		want   error
	}{
		{"none", nil, ErrInvalidDimensions},
		{"four", []CaptureRange{r, r, r, r}, ErrInvalidDimensions},
		{"unaligned", []CaptureRange{{Offset: 2, Length: 8}}, ErrOutOfRange},
		{"partial float", []CaptureRange{{Offset: 0, Length: 6}}, ErrOutOfRange},
		{"empty", []CaptureRange{{Offset: 0, Length: 0}}, ErrOutOfRange},
		{"past high-water", []CaptureRange{{Offset: 48, Length: 32}}, ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ctx.CreateFeedback(tt.ranges...); !errors.Is(err, tt.want) {
				t.Errorf("CreateFeedback() error = %v, want %v", err, tt.want)
			}
		})
	}
	if _, err := ctx.CreateFeedback(r, r, r); err != nil {
		t.Errorf("CreateFeedback(3 ranges) error = %v", err)
	}
}

func TestFeedbackStateMachine(t *testing.T) {
	ctx := newTestContext(t)
	if _, err := ctx.Arena().Alloc(16); err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	xfb, err := ctx.CreateFeedback(CaptureRange{Offset: 0, Length: 16})
	if err != nil {
		t.Fatalf("CreateFeedback() error = %v", err)
	}
	img, err := ctx.AllocImage(FormatRGBA8, 4, 4, 1, 1)
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
	if err := ctx.BindFeedback(xfb); !errors.Is(err, ErrInvalidState) {
		t.Errorf("BindFeedback under framebuffer error = %v, want ErrInvalidState", err)
	}
	if ctx.State() != StateFramebuffer {
		t.Errorf("State() = %v, want framebuffer", ctx.State())
	}
	if err := ctx.BindFramebuffer(0); err != nil {
		t.Fatalf("BindFramebuffer(0) error = %v", err)
	}

	if err := ctx.BindFeedback(xfb); err != nil {
		t.Fatalf("BindFeedback() error = %v", err)
	}
	if err := ctx.BindFramebuffer(fb); !errors.Is(err, ErrInvalidState) {
		t.Errorf("BindFramebuffer under feedback error = %v, want ErrInvalidState", err)
	}
	if err := ctx.BindFramebuffer(0); err != nil {
		t.Errorf("BindFramebuffer(0) under feedback error = %v", err)
	}
	if ctx.State() != StateFeedback {
		t.Errorf("BindFramebuffer(0) under feedback left state %v", ctx.State())
	}
	// Clear has no target while capturing.
	if err := ctx.Clear(); err != nil {
		t.Errorf("Clear under feedback error = %v", err)
	}
	if err := ctx.BindFeedback(Feedback(9)); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("BindFeedback(unknown) error = %v, want ErrInvalidHandle", err)
	}
	if err := ctx.BindFeedback(0); err != nil {
		t.Fatalf("BindFeedback(0) error = %v", err)
	}
	if err := ctx.BindFramebuffer(fb); err != nil {
		t.Errorf("BindFramebuffer after capture error = %v", err)
	}
}

func TestUnbindWithoutBindingIsNoOp(t *testing.T) {
	ctx := newTestContext(t)
	if _, err := ctx.Arena().Alloc(16); err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	xfb, err := ctx.CreateFeedback(CaptureRange{Offset: 0, Length: 16})
	if err != nil {
		t.Fatalf("CreateFeedback() error = %v", err)
	}
	img, err := ctx.AllocImage(FormatRGBA8, 4, 4, 1, 1)
	if err != nil {
		t.Fatalf("AllocImage() error = %v", err)
	}
	fb, err := ctx.CreateFramebuffer([]View{ctx.ImageView(img)}, 0)
	if err != nil {
		t.Fatalf("CreateFramebuffer() error = %v", err)
	}

	tests := []struct {
		name   string
		bind   func() error
		unbind func() error
		want   State
	}{
		{"idle framebuffer", func() error { return nil }, func() error { return ctx.BindFramebuffer(0) }, StateIdle},
		{"idle feedback", func() error { return nil }, func() error { return ctx.BindFeedback(0) }, StateIdle},
		{"feedback under framebuffer", func() error { return ctx.BindFramebuffer(fb) }, func() error { return ctx.BindFeedback(0) }, StateFramebuffer},
		{"framebuffer under feedback", func() error { return ctx.BindFeedback(xfb) }, func() error { return ctx.BindFramebuffer(0) }, StateFeedback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.bind(); err != nil {
				t.Fatalf("bind error = %v", err)
			}
			if err := tt.unbind(); err != nil {
				t.Errorf("unbind error = %v, want nil", err)
			}
			if ctx.State() != tt.want {
				t.Errorf("State() = %v, want %v", ctx.State(), tt.want)
			}
			if err := ctx.BindFeedback(0); err != nil {
				t.Fatalf("BindFeedback(0) error = %v", err)
			}
			if err := ctx.BindFramebuffer(0); err != nil {
				t.Fatalf("BindFramebuffer(0) error = %v", err)
			}
			if ctx.State() != StateIdle {
				t.Fatalf("reset left state %v", ctx.State())
			}
		})
	}
}
