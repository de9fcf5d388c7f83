package gpulib

import (
	"fmt"

	"github.com/sevas/gpulib/device"
)

// Submit executes ops in order against the current binding state.
//
// Every op is validated before any device call is made: known handles,
// unit windows inside [0, MaxUnits), a fragment stage unless a feedback
// target is bound, and a capture variable count matching the bound target.
// Then each op binds its pipeline, binds units [First, First+Count) of
// both tables (absent entries unbind) and issues one draw per Cmd,
// skipping Cmds with a zero count. The first device failure aborts the
// batch and is returned as an *OpError.
func (c *Context) Submit(ops []Op) error {
	if err := c.check(); err != nil {
		return err
	}
	for i := range ops {
		if err := c.validateOp(&ops[i]); err != nil {
			return fmt.Errorf("gpulib: op %d (id %d): %w", i, ops[i].ID, err)
		}
	}
	if err := c.arena.flush(); err != nil {
		return deviceErr("flush arena", err)
	}

	drew := false
	for i := range ops {
		n, err := c.execute(&ops[i])
		drew = drew || n > 0
		if err != nil {
			if drew {
				c.markTarget()
			}
			return &OpError{Index: i, ID: ops[i].ID, Err: err}
		}
	}
	if drew {
		c.markTarget()
	}
	return nil
}

func (c *Context) validateOp(op *Op) error {
	p, ok := c.pipelines.get(uint32(op.Pipeline))
	if !ok {
		return fmt.Errorf("%w: pipeline %d", ErrInvalidHandle, op.Pipeline)
	}
	if !op.Topology.Valid() {
		return fmt.Errorf("%w: topology %v", ErrValidation, op.Topology)
	}
	if err := op.Textures.validate("texture", c.limits.MaxUnits); err != nil {
		return err
	}
	if err := op.Samplers.validate("sampler", c.limits.MaxUnits); err != nil {
		return err
	}
	for u := op.Textures.First; u < op.Textures.First+op.Textures.Count; u++ {
		v := op.Textures.Get(u)
		if _, ok := c.views.get(uint32(v)); v != 0 && !ok {
			return fmt.Errorf("%w: view %d on texture unit %d", ErrInvalidHandle, v, u)
		}
	}
	for u := op.Samplers.First; u < op.Samplers.First+op.Samplers.Count; u++ {
		s := op.Samplers.Get(u)
		if _, ok := c.samplers.get(uint32(s)); s != 0 && !ok {
			return fmt.Errorf("%w: sampler %d on sampler unit %d", ErrInvalidHandle, s, u)
		}
	}
	for j, cmd := range op.Cmds {
		if cmd.First < 0 || cmd.Count < 0 || cmd.InstanceFirst < 0 || cmd.InstanceCount < 0 {
			return fmt.Errorf("%w: cmd %d has a negative range %+v", ErrValidation, j, cmd)
		}
	}

	switch c.state {
	case StateFeedback:
		vs, _ := c.stages.get(uint32(p.vert))
		xfb, _ := c.feedbacks.get(uint32(c.boundXFB))
		if len(vs.captures) != len(xfb.ranges) {
			return fmt.Errorf("%w: stage %d captures %d variables, feedback %d has %d ranges",
				ErrFeedbackMismatch, p.vert, len(vs.captures), c.boundXFB, len(xfb.ranges))
		}
	default:
		if p.frag == 0 {
			return fmt.Errorf("%w: pipeline %d has no fragment stage and no feedback target is bound", ErrInvalidState, op.Pipeline)
		}
	}
	return nil
}

// execute issues the device calls of one validated op and returns the
// number of draws made.
func (c *Context) execute(op *Op) (int, error) {
	p, _ := c.pipelines.get(uint32(op.Pipeline))
	if err := c.dev.BindPipeline(p.id); err != nil {
		return 0, err
	}
	for u := op.Textures.First; u < op.Textures.First+op.Textures.Count; u++ {
		var id device.ViewID
		if v, ok := c.views.get(uint32(op.Textures.Get(u))); ok {
			id = v.id
		}
		if err := c.dev.BindTexture(u, id); err != nil {
			return 0, err
		}
	}
	for u := op.Samplers.First; u < op.Samplers.First+op.Samplers.Count; u++ {
		var id device.SamplerID
		if s, ok := c.samplers.get(uint32(op.Samplers.Get(u))); ok {
			id = *s
		}
		if err := c.dev.BindSampler(u, id); err != nil {
			return 0, err
		}
	}
	n := 0
	for _, cmd := range op.Cmds {
		if cmd.Count == 0 || cmd.InstanceCount == 0 {
			continue
		}
		err := c.dev.Draw(device.DrawCall{
			Topology:      op.Topology,
			First:         cmd.First,
			Count:         cmd.Count,
			InstanceFirst: cmd.InstanceFirst,
			InstanceCount: cmd.InstanceCount,
		})
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
