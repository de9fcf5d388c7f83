package soft

import (
	"github.com/chewxy/math32"
	"github.com/gogpu/wgpu/hal/software/raster"
	spv "github.com/gogpu/wgpu/hal/software/shader"

	"github.com/sevas/gpulib/device"
	"github.com/sevas/gpulib/internal/texel"
)

// rasterizer scan-converts primitives into one framebuffer and runs the
// fragment stage of p on every covered pixel.
//
// Window coordinates have their origin at the top-left corner; clip space
// y points up and depth maps to [0, 1]. Triangles are clipped against the
// near and far planes before scan conversion.
type rasterizer struct {
	fb        *framebuffer
	p         *pipeline
	ctx       *spv.ExecutionContext
	depthTest bool
	vp        raster.Viewport
	err       error
}

func newRasterizer(fb *framebuffer, p *pipeline, ctx *spv.ExecutionContext, depthTest bool) *rasterizer {
	return &rasterizer{
		fb:        fb,
		p:         p,
		ctx:       ctx,
		depthTest: depthTest,
		vp:        raster.Viewport{Width: fb.width, Height: fb.height, MaxDepth: 1},
	}
}

func clipVertex(v *vertex) raster.ClipSpaceVertex {
	return raster.ClipSpaceVertex{Position: v.pos, Attributes: v.attrs}
}

// screen applies the perspective divide and viewport transform. Attributes
// stay undivided; the rasterizer corrects them with W.
func (r *rasterizer) screen(v raster.ClipSpaceVertex) (raster.ScreenVertex, bool) {
	p := v.Position
	if p[3] <= 0 {
		return raster.ScreenVertex{}, false
	}
	inv := 1 / p[3]
	return raster.ScreenVertex{
		X:          (p[0]*inv*0.5 + 0.5) * float32(r.vp.Width),
		Y:          (0.5 - p[1]*inv*0.5) * float32(r.vp.Height),
		Z:          p[2] * inv,
		W:          inv,
		Attributes: v.Attributes,
	}, true
}

func (r *rasterizer) triangle(a, b, c *vertex) {
	tri := [3]raster.ClipSpaceVertex{clipVertex(a), clipVertex(b), clipVertex(c)}
	for _, t := range raster.ClipTriangleNearFar(tri) {
		s0, ok0 := r.screen(t[0])
		s1, ok1 := r.screen(t[1])
		s2, ok2 := r.screen(t[2])
		if !ok0 || !ok1 || !ok2 {
			continue
		}
		// Counter-clockwise in clip space is negative area in window space.
		front := raster.ComputeTriangleArea(s0, s1, s2) < 0
		st := raster.Triangle{V0: s0, V1: s1, V2: s2}
		raster.Rasterize(st, r.vp, func(f raster.Fragment) {
			// Window depth is linear in screen space.
			z := f.Bary[0]*s0.Z + f.Bary[1]*s1.Z + f.Bary[2]*s2.Z
			invW := f.Bary[0]*s0.W + f.Bary[1]*s1.W + f.Bary[2]*s2.W
			r.shade(f.X, f.Y, z, invW, f.Attributes, front)
		})
	}
}

// line clips the segment against the near and far planes and walks it one
// fragment per major-axis pixel.
func (r *rasterizer) line(a, b *vertex) {
	v0, v1 := clipVertex(a), clipVertex(b)
	for _, pl := range raster.NearFarPlanes {
		d0, d1 := pl.Distance(v0), pl.Distance(v1)
		switch {
		case d0 < 0 && d1 < 0:
			return
		case d0 < 0:
			v0, _ = pl.Intersect(v0, v1)
		case d1 < 0:
			v1, _ = pl.Intersect(v0, v1)
		}
	}
	p0, ok0 := r.screen(v0)
	p1, ok1 := r.screen(v1)
	if !ok0 || !ok1 {
		return
	}
	dx, dy := p1.X-p0.X, p1.Y-p0.Y
	n := max(1, int(math32.Ceil(math32.Max(math32.Abs(dx), math32.Abs(dy)))))
	attrs := make([]float32, len(p0.Attributes))
	for k := 0; k < n; k++ {
		t := (float32(k) + 0.5) / float32(n)
		x := int(math32.Floor(p0.X + dx*t))
		y := int(math32.Floor(p0.Y + dy*t))
		if x < 0 || y < 0 || x >= r.vp.Width || y >= r.vp.Height {
			continue
		}
		q0, q1 := (1-t)*p0.W, t*p1.W
		invW := q0 + q1
		for i := range attrs {
			attrs[i] = (q0*p0.Attributes[i] + q1*p1.Attributes[i]) / invW
		}
		r.shade(x, y, p0.Z+(p1.Z-p0.Z)*t, invW, attrs, true)
	}
}

func (r *rasterizer) point(a *vertex) {
	v := clipVertex(a)
	if v.Position[2] < 0 || v.Position[2] > v.Position[3] {
		return
	}
	p, ok := r.screen(v)
	if !ok {
		return
	}
	x, y := int(math32.Floor(p.X)), int(math32.Floor(p.Y))
	if x < 0 || y < 0 || x >= r.vp.Width || y >= r.vp.Height {
		return
	}
	r.shade(x, y, p.Z, p.W, p.Attributes, true)
}

// shade runs the fragment stage at (x, y) and resolves depth and color.
// attrs are the interpolated vertex outputs in location order.
func (r *rasterizer) shade(x, y int, z, invW float32, attrs []float32, front bool) {
	if r.err != nil {
		return
	}
	z = math32.Max(0, math32.Min(z, 1))
	fs := r.p.frag
	in := r.ctx.Inputs
	if fs.io.fragCoord != 0 {
		in[fs.io.fragCoord] = spv.ValVec4(float32(x)+0.5, float32(y)+0.5, z, invW)
	}
	if fs.io.frontFacing != 0 {
		in[fs.io.frontFacing] = spv.ValBool(front)
	}
	for _, fi := range r.p.inputs {
		in[fi.id] = toValue(attrs[fi.off:fi.off+fi.n], fi.typ)
	}

	outs, err := fs.prog.ExecuteWithContext(fs.entry, r.ctx)
	if err != nil {
		r.err = err
		return
	}
	if fs.io.fragDepth != 0 {
		if v, ok := outs[fs.io.fragDepth]; ok {
			z = v.F[0]
		}
	}

	if r.depthTest && r.fb.depth != nil {
		layer, mip := attachment(r.fb.depth)
		px := r.fb.depth.texel(layer, mip, x, y)
		if !(z < texel.Decode(device.FormatD32F, px)[0]) {
			return
		}
		texel.Encode(device.FormatD32F, [4]float32{z}, px)
	}
	for _, o := range fs.io.outputs {
		if int(o.loc) >= len(r.fb.colors) {
			continue
		}
		c := r.fb.colors[o.loc]
		layer, mip := attachment(c)
		texel.Encode(c.format, spv.Vec4ToFloat32(outs[o.id]), c.texel(layer, mip, x, y))
	}
}
