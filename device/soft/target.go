package soft

import (
	"fmt"

	"github.com/sevas/gpulib/device"
	"github.com/sevas/gpulib/internal/texel"
)

type framebuffer struct {
	colors []*view
	depth  *view
	width  int
	height int
}

// attachment addresses the level an attachment view renders into.
func attachment(v *view) (layer, mip int) {
	return v.face(0, 0), v.mipFirst
}

func (fb *framebuffer) clear(color [4]float32, depth float32) {
	for _, c := range fb.colors {
		layer, mip := attachment(c)
		fill(c.tex.levels[layer][mip], c.format, color)
	}
	if fb.depth != nil {
		layer, mip := attachment(fb.depth)
		fill(fb.depth.tex.levels[layer][mip], fb.depth.format, [4]float32{depth})
	}
}

func fill(lvl []byte, f device.Format, v [4]float32) {
	stride := f.Stride()
	if len(lvl) < stride {
		return
	}
	texel.Encode(f, v, lvl[:stride])
	for off := stride; off < len(lvl); off *= 2 {
		copy(lvl[off:], lvl[:off])
	}
}

// CreateFramebuffer implements device.Device.
func (d *Device) CreateFramebuffer(colors []device.ViewID, depth device.ViewID) (device.FramebufferID, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	if len(colors) > d.limits.MaxColorAttachments {
		return 0, fmt.Errorf("%w: %d color attachments", device.ErrInvalidArgument, len(colors))
	}
	fb := &framebuffer{width: -1, height: -1}
	attach := func(id device.ViewID, wantDepth bool) (*view, error) {
		v, ok := d.views[id]
		if !ok {
			return nil, fmt.Errorf("%w: view %d", device.ErrUnknownID, id)
		}
		if v.tex == nil || v.format.IsDepth() != wantDepth {
			return nil, fmt.Errorf("%w: view %d (%v) cannot be this attachment", device.ErrInvalidArgument, id, v.format)
		}
		w, h := v.tex.size(v.mipFirst)
		if fb.width >= 0 && (w != fb.width || h != fb.height) {
			return nil, fmt.Errorf("%w: attachment %dx%d, framebuffer %dx%d",
				device.ErrInvalidArgument, w, h, fb.width, fb.height)
		}
		fb.width, fb.height = w, h
		return v, nil
	}
	for _, id := range colors {
		v, err := attach(id, false)
		if err != nil {
			return 0, err
		}
		fb.colors = append(fb.colors, v)
	}
	if depth != device.InvalidID {
		v, err := attach(depth, true)
		if err != nil {
			return 0, err
		}
		fb.depth = v
	}
	if fb.width < 0 {
		return 0, fmt.Errorf("%w: framebuffer without attachments", device.ErrInvalidArgument)
	}
	id := device.FramebufferID(d.id())
	d.framebuffers[id] = fb
	return id, nil
}

// DestroyFramebuffer implements device.Device.
func (d *Device) DestroyFramebuffer(id device.FramebufferID) {
	if fb, ok := d.framebuffers[id]; ok && d.target == fb {
		d.target = d.screen
	}
	delete(d.framebuffers, id)
}

// BindFramebuffer implements device.Device.
func (d *Device) BindFramebuffer(id device.FramebufferID) error {
	if err := d.check(); err != nil {
		return err
	}
	if id == device.InvalidID {
		d.target = d.screen
		return nil
	}
	fb, ok := d.framebuffers[id]
	if !ok {
		return fmt.Errorf("%w: framebuffer %d", device.ErrUnknownID, id)
	}
	d.target = fb
	return nil
}

type feedback struct {
	ranges []device.CaptureRange
	bufs   []*buffer
	cursor []uint64
	full   bool
}

// CreateFeedback implements device.Device.
func (d *Device) CreateFeedback(ranges []device.CaptureRange) (device.FeedbackID, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	if len(ranges) == 0 || len(ranges) > d.limits.MaxFeedbackBuffers {
		return 0, fmt.Errorf("%w: %d capture ranges", device.ErrInvalidArgument, len(ranges))
	}
	fb := &feedback{
		ranges: append([]device.CaptureRange(nil), ranges...),
		cursor: make([]uint64, len(ranges)),
	}
	for _, r := range ranges {
		b, err := d.buffer(r.Buffer, r.Offset, r.Size)
		if err != nil {
			return 0, err
		}
		if r.Offset%4 != 0 || r.Size%4 != 0 {
			return 0, fmt.Errorf("%w: capture range [%d, +%d) not 4-byte aligned", device.ErrInvalidArgument, r.Offset, r.Size)
		}
		fb.bufs = append(fb.bufs, b)
	}
	id := device.FeedbackID(d.id())
	d.feedbacks[id] = fb
	return id, nil
}

// DestroyFeedback implements device.Device.
func (d *Device) DestroyFeedback(id device.FeedbackID) {
	if fb, ok := d.feedbacks[id]; ok && d.capture == fb {
		d.capture = nil
	}
	delete(d.feedbacks, id)
}

// BindFeedback implements device.Device.
func (d *Device) BindFeedback(id device.FeedbackID) error {
	if err := d.check(); err != nil {
		return err
	}
	if id == device.InvalidID {
		d.capture = nil
		return nil
	}
	fb, ok := d.feedbacks[id]
	if !ok {
		return fmt.Errorf("%w: feedback %d", device.ErrUnknownID, id)
	}
	for i := range fb.cursor {
		fb.cursor[i] = 0
	}
	fb.full = false
	d.capture = fb
	return nil
}

// SetDepthTest implements device.Device.
func (d *Device) SetDepthTest(enabled bool) { d.depthTest = enabled }

// Clear implements device.Device. Clearing under capture does nothing.
func (d *Device) Clear(color [4]float32, depth float32) error {
	if err := d.check(); err != nil {
		return err
	}
	if d.capture != nil {
		return nil
	}
	d.target.clear(color, depth)
	return nil
}

// BindPipeline implements device.Device.
func (d *Device) BindPipeline(id device.PipelineID) error {
	if err := d.check(); err != nil {
		return err
	}
	if id == device.InvalidID {
		d.pipeline = nil
		return nil
	}
	p, ok := d.pipelines[id]
	if !ok {
		return fmt.Errorf("%w: pipeline %d", device.ErrUnknownID, id)
	}
	d.pipeline = p
	return nil
}

// BindTexture implements device.Device.
func (d *Device) BindTexture(unit int, id device.ViewID) error {
	if err := d.check(); err != nil {
		return err
	}
	if unit < 0 || unit >= len(d.units) {
		return fmt.Errorf("%w: texture unit %d", device.ErrInvalidArgument, unit)
	}
	if id == device.InvalidID {
		d.units[unit] = nil
		return nil
	}
	v, ok := d.views[id]
	if !ok {
		return fmt.Errorf("%w: view %d", device.ErrUnknownID, id)
	}
	d.units[unit] = v
	return nil
}

// BindSampler implements device.Device.
func (d *Device) BindSampler(unit int, id device.SamplerID) error {
	if err := d.check(); err != nil {
		return err
	}
	if unit < 0 || unit >= len(d.smps) {
		return fmt.Errorf("%w: sampler unit %d", device.ErrInvalidArgument, unit)
	}
	if id == device.InvalidID {
		d.smps[unit] = nil
		return nil
	}
	s, ok := d.samplers[id]
	if !ok {
		return fmt.Errorf("%w: sampler %d", device.ErrUnknownID, id)
	}
	d.smps[unit] = s
	return nil
}
