package gpulib

import (
	"fmt"

	"github.com/sevas/gpulib/device"
)

// CreateFramebuffer builds a render target from up to MaxColorAttachments
// color views and an optional depth view (0 for none). Every attachment
// must be an image view, and all of them must have the same size at their
// first mip. Rendering writes the first layer of each view.
func (c *Context) CreateFramebuffer(colors []View, depth View) (Framebuffer, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	if len(colors) > c.limits.MaxColorAttachments {
		return 0, fmt.Errorf("%w: %d color attachments, at most %d", ErrInvalidDimensions, len(colors), c.limits.MaxColorAttachments)
	}
	if len(colors) == 0 && depth == 0 {
		return 0, fmt.Errorf("%w: framebuffer without attachments", ErrInvalidDimensions)
	}

	rec := framebufferRecord{colors: append([]View(nil), colors...), depth: depth, width: -1, height: -1}
	var ids []device.ViewID
	attach := func(v View, wantDepth bool) (device.ViewID, error) {
		vr, ok := c.views.get(uint32(v))
		if !ok {
			return 0, fmt.Errorf("%w: view %d", ErrInvalidHandle, v)
		}
		if vr.image == 0 {
			return 0, fmt.Errorf("%w: view %d is an arena view", ErrFormatMismatch, v)
		}
		if vr.format.IsDepth() != wantDepth {
			kind := "color"
			if wantDepth {
				kind = "depth"
			}
			return 0, fmt.Errorf("%w: %v view %d used as %s attachment", ErrFormatMismatch, vr.format, v, kind)
		}
		img, _ := c.images.get(uint32(vr.image))
		w, h := max(1, img.width>>vr.mipFirst), max(1, img.height>>vr.mipFirst)
		if rec.width >= 0 && (w != rec.width || h != rec.height) {
			return 0, fmt.Errorf("%w: attachment %d is %dx%d, framebuffer is %dx%d", ErrDimensionMismatch, v, w, h, rec.width, rec.height)
		}
		rec.width, rec.height = w, h
		return vr.id, nil
	}
	for _, v := range colors {
		id, err := attach(v, false)
		if err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}
	var depthID device.ViewID
	if depth != 0 {
		id, err := attach(depth, true)
		if err != nil {
			return 0, err
		}
		depthID = id
	}

	id, err := c.dev.CreateFramebuffer(ids, depthID)
	if err != nil {
		return 0, deviceErr("create framebuffer", err)
	}
	rec.id = id
	fb := Framebuffer(c.framebuffers.add(rec))
	c.log.Debug("gpulib: framebuffer created", "framebuffer", fb, "colors", len(colors), "depth", depth != 0,
		"width", rec.width, "height", rec.height)
	return fb, nil
}

// BindFramebuffer makes fb the render target; 0 returns to the default
// surface and does nothing when no framebuffer is bound. Binding a
// framebuffer fails with ErrInvalidState while a feedback target is bound.
func (c *Context) BindFramebuffer(fb Framebuffer) error {
	if err := c.check(); err != nil {
		return err
	}
	if fb == 0 && c.state != StateFramebuffer {
		return nil
	}
	if fb != 0 && c.state == StateFeedback {
		return fmt.Errorf("%w: framebuffer bind while feedback %d is bound", ErrInvalidState, c.boundXFB)
	}
	var id device.FramebufferID
	if fb != 0 {
		rec, ok := c.framebuffers.get(uint32(fb))
		if !ok {
			return fmt.Errorf("%w: framebuffer %d", ErrInvalidHandle, fb)
		}
		id = rec.id
	}
	if err := c.dev.BindFramebuffer(id); err != nil {
		return deviceErr("bind framebuffer", err)
	}
	c.boundFB = fb
	if fb == 0 {
		c.state = StateIdle
	} else {
		c.state = StateFramebuffer
	}
	return nil
}

// Clear resets the bound framebuffer (or the default surface) to color
// (0, 0, 0, 0) and depth 1. Under a feedback target it does nothing.
func (c *Context) Clear() error {
	if err := c.check(); err != nil {
		return err
	}
	if c.state == StateFeedback {
		c.log.Debug("gpulib: clear ignored under feedback", "feedback", c.boundXFB)
		return nil
	}
	if err := c.dev.Clear([4]float32{}, 1); err != nil {
		return deviceErr("clear", err)
	}
	c.markTarget()
	return nil
}

// markTarget records that the bound framebuffer's level-0 attachments now
// hold content.
func (c *Context) markTarget() {
	if c.state != StateFramebuffer {
		return
	}
	rec, ok := c.framebuffers.get(uint32(c.boundFB))
	if !ok {
		return
	}
	c.markRendered(rec.colors...)
	if rec.depth != 0 {
		c.markRendered(rec.depth)
	}
}

// SetDepthTest enables or disables the depth test (enabled by default).
func (c *Context) SetDepthTest(enabled bool) {
	if c.closed {
		return
	}
	c.dev.SetDepthTest(enabled)
}

// Present hands the default surface to the window system.
func (c *Context) Present() error {
	if err := c.check(); err != nil {
		return err
	}
	if err := c.dev.Present(); err != nil {
		return deviceErr("present", err)
	}
	return nil
}
