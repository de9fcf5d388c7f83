package gpulib

import (
	"errors"
	"fmt"
	"os"

	"github.com/sevas/gpulib/device"
)

// CompileStage compiles WGSL source into a stage of kind. captures names
// the vertex outputs recorded by a feedback target, one per capture range,
// in order; it must be empty for fragment stages.
//
// Bindings follow fixed positions: texture unit u is @group(0)
// @binding(u), sampler unit u is @group(1) @binding(u) and uniform
// location l is @group(2) @binding(l).
func (c *Context) CompileStage(kind StageKind, source string, captures ...string) (Stage, error) {
	return c.compileStage(kind, "", source, captures)
}

// CompileStageFile reads path and compiles it like CompileStage.
func (c *Context) CompileStageFile(kind StageKind, path string, captures ...string) (Stage, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("gpulib: %w", err)
	}
	return c.compileStage(kind, path, string(src), captures)
}

func (c *Context) compileStage(kind StageKind, label, source string, captures []string) (Stage, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	id, err := c.dev.CompileShader(device.ShaderDesc{
		Label:    label,
		Stage:    kind,
		Source:   source,
		Captures: captures,
	})
	if err != nil {
		var se *device.ShaderError
		if errors.As(err, &se) {
			return 0, &CompileError{Kind: kind, Label: label, Log: se.Log}
		}
		return 0, deviceErr("compile stage", err)
	}
	s := Stage(c.stages.add(stageRecord{
		id:       id,
		kind:     kind,
		label:    label,
		captures: append([]string(nil), captures...),
	}))
	c.log.Debug("gpulib: stage compiled", "stage", s, "kind", kind, "label", label, "captures", len(captures))
	return s, nil
}

// LinkPipeline links a vertex stage with an optional fragment stage
// (frag 0). A pipeline without a fragment stage can only be submitted
// while a feedback target is bound.
func (c *Context) LinkPipeline(vert, frag Stage) (Pipeline, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	vs, ok := c.stages.get(uint32(vert))
	if !ok {
		return 0, fmt.Errorf("%w: stage %d", ErrInvalidHandle, vert)
	}
	if vs.kind != VertexStage {
		return 0, &LinkError{Log: fmt.Sprintf("stage %d is a %v stage, want vertex", vert, vs.kind)}
	}
	var fragID device.ShaderID
	if frag != 0 {
		fs, ok := c.stages.get(uint32(frag))
		if !ok {
			return 0, fmt.Errorf("%w: stage %d", ErrInvalidHandle, frag)
		}
		if fs.kind != FragmentStage {
			return 0, &LinkError{Log: fmt.Sprintf("stage %d is a %v stage, want fragment", frag, fs.kind)}
		}
		fragID = fs.id
	}
	id, err := c.dev.LinkPipeline(vs.id, fragID)
	if err != nil {
		var se *device.ShaderError
		if errors.As(err, &se) {
			return 0, &LinkError{Log: se.Log}
		}
		return 0, deviceErr("link pipeline", err)
	}
	p := Pipeline(c.pipelines.add(pipelineRecord{id: id, vert: vert, frag: frag}))
	c.log.Debug("gpulib: pipeline linked", "pipeline", p, "vert", vert, "frag", frag)
	return p, nil
}

// SetFloat sets f32 uniforms: v[i] lands at location loc+i. Locations the
// stage does not use are skipped without affecting the others.
func (c *Context) SetFloat(stage Stage, loc int, v ...float32) {
	for i, x := range v {
		c.setUniform(stage, loc+i, device.Uniform{Kind: device.UniformFloat, Float: [4]float32{x}})
	}
}

// SetVec3 sets vec3<f32> uniforms at loc, loc+1, ...
func (c *Context) SetVec3(stage Stage, loc int, v ...[3]float32) {
	for i, x := range v {
		c.setUniform(stage, loc+i, device.Uniform{Kind: device.UniformVec3, Float: [4]float32{x[0], x[1], x[2]}})
	}
}

// SetVec4 sets vec4<f32> uniforms at loc, loc+1, ...
func (c *Context) SetVec4(stage Stage, loc int, v ...[4]float32) {
	for i, x := range v {
		c.setUniform(stage, loc+i, device.Uniform{Kind: device.UniformVec4, Float: x})
	}
}

// SetInt sets i32 uniforms at loc, loc+1, ...
func (c *Context) SetInt(stage Stage, loc int, v ...int32) {
	for i, x := range v {
		c.setUniform(stage, loc+i, device.Uniform{Kind: device.UniformInt, Int: x})
	}
}

func (c *Context) setUniform(stage Stage, loc int, u device.Uniform) {
	if c.closed {
		return
	}
	rec, ok := c.stages.get(uint32(stage))
	if !ok {
		c.log.Debug("gpulib: uniform on unknown stage ignored", "stage", stage, "location", loc)
		return
	}
	if !c.dev.UniformActive(rec.id, loc) {
		c.log.Debug("gpulib: inactive uniform location ignored", "stage", stage, "location", loc, "kind", u.Kind)
		return
	}
	c.dev.SetUniform(rec.id, loc, u)
}
