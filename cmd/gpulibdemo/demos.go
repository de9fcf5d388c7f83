package main

import (
	"fmt"
	"image"
	"io"
	"path/filepath"

	"github.com/anthonynsimon/bild/imgio"

	"github.com/sevas/gpulib"
)

// demo renders into ctx and writes its results under cfg.Output.
type demo func(ctx *gpulib.Context, cfg Config, w io.Writer) error

// put allocates vals in the arena and casts them as format.
func put(ctx *gpulib.Context, format gpulib.Format, vals ...float32) (gpulib.View, error) {
	n := uint64(4 * len(vals))
	off, err := ctx.Arena().Alloc(n)
	if err != nil {
		return 0, err
	}
	if err := ctx.Arena().PutFloat32s(off, vals...); err != nil {
		return 0, err
	}
	return ctx.Cast(format, off, n)
}

func pipeline(ctx *gpulib.Context, src string, withFrag bool) (gpulib.Pipeline, gpulib.Stage, error) {
	vs, err := ctx.CompileStage(gpulib.VertexStage, src)
	if err != nil {
		return 0, 0, err
	}
	var fs gpulib.Stage
	if withFrag {
		if fs, err = ctx.CompileStage(gpulib.FragmentStage, src); err != nil {
			return 0, 0, err
		}
	}
	p, err := ctx.LinkPipeline(vs, fs)
	return p, vs, err
}

// savePNG writes level 0 of an RGBA8 image.
func savePNG(ctx *gpulib.Context, img gpulib.Image, path string) error {
	data, err := ctx.ReadImage(img, 0, 0)
	if err != nil {
		return err
	}
	w, h := ctx.ImageSize(img)
	rgba := &image.RGBA{Pix: data, Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}
	return imgio.Save(path, rgba, imgio.PNGEncoder())
}

// triangle draws one interpolated triangle on the default surface.
func triangle(ctx *gpulib.Context, _ Config, _ io.Writer) error {
	pos, err := put(ctx, gpulib.FormatXYZW32F,
		-0.8, -0.8, 0.5, 1,
		0.8, -0.8, 0.5, 1,
		0, 0.8, 0.5, 1)
	if err != nil {
		return err
	}
	col, err := put(ctx, gpulib.FormatXYZW32F,
		1, 0, 0, 1,
		0, 1, 0, 1,
		0, 0, 1, 1)
	if err != nil {
		return err
	}
	p, _, err := pipeline(ctx, triangleSource, true)
	if err != nil {
		return err
	}
	if err := ctx.BindFramebuffer(0); err != nil {
		return err
	}
	if err := ctx.Clear(); err != nil {
		return err
	}
	err = ctx.Submit([]gpulib.Op{{
		ID:       1,
		Pipeline: p,
		Topology: gpulib.Triangles,
		Textures: gpulib.Dense(0, pos, col),
		Cmds:     []gpulib.Cmd{{Count: 3, InstanceCount: 1}},
	}})
	if err != nil {
		return err
	}
	return ctx.Present()
}

// instancing draws a grid of quads into two color attachments and a depth
// attachment, then writes both color images.
func instancing(ctx *gpulib.Context, cfg Config, _ io.Writer) error {
	const grid = 4
	corners, err := put(ctx, gpulib.FormatXY32F, -1, -1, 1, -1, -1, 1, 1, 1)
	if err != nil {
		return err
	}
	var place, tint []float32
	for y := range grid {
		for x := range grid {
			cx := (float32(x)+0.5)/grid*2 - 1
			cy := (float32(y)+0.5)/grid*2 - 1
			place = append(place, cx, cy, 0.18, float32(x+y)/(2*grid))
			tint = append(tint, float32(x)/(grid-1), float32(y)/(grid-1), 0.5, 1)
		}
	}
	placements, err := put(ctx, gpulib.FormatXYZW32F, place...)
	if err != nil {
		return err
	}
	tints, err := put(ctx, gpulib.FormatXYZW32F, tint...)
	if err != nil {
		return err
	}

	w, h := cfg.Width, cfg.Height
	color, err := ctx.AllocImage(gpulib.FormatRGBA8, w, h, 1, 1)
	if err != nil {
		return err
	}
	uv, err := ctx.AllocImage(gpulib.FormatRGBA8, w, h, 1, 1)
	if err != nil {
		return err
	}
	depth, err := ctx.AllocImage(gpulib.FormatD32F, w, h, 1, 1)
	if err != nil {
		return err
	}
	fb, err := ctx.CreateFramebuffer([]gpulib.View{ctx.ImageView(color), ctx.ImageView(uv)}, ctx.ImageView(depth))
	if err != nil {
		return err
	}
	if err := ctx.BindFramebuffer(fb); err != nil {
		return err
	}
	if err := ctx.Clear(); err != nil {
		return err
	}

	p, vs, err := pipeline(ctx, instanceSource, true)
	if err != nil {
		return err
	}
	ctx.SetFloat(vs, 0, 0.9)
	err = ctx.Submit([]gpulib.Op{{
		ID:       2,
		Pipeline: p,
		Topology: gpulib.TriangleStrip,
		Textures: gpulib.Dense(0, corners, placements, tints),
		Cmds:     []gpulib.Cmd{{Count: 4, InstanceCount: grid * grid}},
	}})
	if err != nil {
		return err
	}
	if err := ctx.BindFramebuffer(0); err != nil {
		return err
	}
	if err := savePNG(ctx, color, filepath.Join(cfg.Output, "instancing_color.png")); err != nil {
		return err
	}
	return savePNG(ctx, uv, filepath.Join(cfg.Output, "instancing_uv.png"))
}

// feedback adds two arrays of four vec3s with transform feedback and
// prints the captured vector3 array.
func feedback(ctx *gpulib.Context, _ Config, out io.Writer) error {
	const n = 4
	vector1, err := put(ctx, gpulib.FormatXYZ32F,
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
		10, 11, 12)
	if err != nil {
		return err
	}
	vector2, err := put(ctx, gpulib.FormatXYZ32F,
		13, 14, 15,
		16, 17, 18,
		19, 20, 21,
		22, 23, 24)
	if err != nil {
		return err
	}
	vector3, err := ctx.Arena().Alloc(12 * n)
	if err != nil {
		return err
	}
	xfb, err := ctx.CreateFeedback(gpulib.CaptureRange{Offset: vector3, Length: 12 * n})
	if err != nil {
		return err
	}
	vs, err := ctx.CompileStage(gpulib.VertexStage, vectorSource, "vector3")
	if err != nil {
		return err
	}
	p, err := ctx.LinkPipeline(vs, 0)
	if err != nil {
		return err
	}
	if err := ctx.BindFeedback(xfb); err != nil {
		return err
	}
	err = ctx.Submit([]gpulib.Op{{
		ID:       3,
		Pipeline: p,
		Topology: gpulib.Points,
		Textures: gpulib.Dense(0, vector1, vector2),
		Cmds:     []gpulib.Cmd{{Count: n, InstanceCount: 1}},
	}})
	if err != nil {
		return err
	}
	if err := ctx.BindFeedback(0); err != nil {
		return err
	}
	if err := ctx.Sync(); err != nil {
		return err
	}
	v, err := ctx.Arena().Float32s(vector3, 3*n)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(out, "vector3[%d].xyz: %g %g %g\n", i, v[3*i], v[3*i+1], v[3*i+2])
	}
	return nil
}
