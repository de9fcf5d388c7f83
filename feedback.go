package gpulib

import (
	"fmt"

	"github.com/sevas/gpulib/device"
)

// CreateFeedback creates a capture target over 1 to 3 arena ranges, each
// a multiple of 4 bytes. Range i receives capture variable i of the vertex
// stage drawn while the target is bound.
func (c *Context) CreateFeedback(ranges ...CaptureRange) (Feedback, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	limit := min(3, c.limits.MaxFeedbackBuffers)
	if len(ranges) == 0 || len(ranges) > limit {
		return 0, fmt.Errorf("%w: %d capture ranges, want 1 to %d", ErrInvalidDimensions, len(ranges), limit)
	}
	desc := make([]device.CaptureRange, len(ranges))
	for i, r := range ranges {
		if r.Length == 0 || r.Offset%4 != 0 || r.Length%4 != 0 {
			return 0, &RangeError{What: fmt.Sprintf("capture range %d", i), Offset: r.Offset, Length: r.Length, Limit: c.arena.high, Align: 4}
		}
		if r.Offset > c.arena.high || r.Length > c.arena.high-r.Offset {
			return 0, &RangeError{What: fmt.Sprintf("capture range %d", i), Offset: r.Offset, Length: r.Length, Limit: c.arena.high}
		}
		desc[i] = device.CaptureRange{Buffer: c.arena.buf, Offset: r.Offset, Size: r.Length}
	}
	id, err := c.dev.CreateFeedback(desc)
	if err != nil {
		return 0, deviceErr("create feedback", err)
	}
	for _, r := range ranges {
		c.arena.markCaptured(r.Offset, r.Length)
	}
	fb := Feedback(c.feedbacks.add(feedbackRecord{id: id, ranges: append([]CaptureRange(nil), ranges...)}))
	c.log.Debug("gpulib: feedback created", "feedback", fb, "ranges", len(ranges))
	return fb, nil
}

// BindFeedback makes fb the capture target and resets its write cursors;
// 0 unbinds it and does nothing when no feedback target is bound. Binding a
// target fails with ErrInvalidState while a framebuffer is bound.
func (c *Context) BindFeedback(fb Feedback) error {
	if err := c.check(); err != nil {
		return err
	}
	if fb == 0 && c.state != StateFeedback {
		return nil
	}
	if fb != 0 && c.state == StateFramebuffer {
		return fmt.Errorf("%w: feedback bind while framebuffer %d is bound", ErrInvalidState, c.boundFB)
	}
	var id device.FeedbackID
	if fb != 0 {
		rec, ok := c.feedbacks.get(uint32(fb))
		if !ok {
			return fmt.Errorf("%w: feedback %d", ErrInvalidHandle, fb)
		}
		id = rec.id
	}
	if err := c.dev.BindFeedback(id); err != nil {
		return deviceErr("bind feedback", err)
	}
	c.boundXFB = fb
	if fb == 0 {
		c.state = StateIdle
	} else {
		c.state = StateFeedback
	}
	return nil
}

// Sync blocks until the device has finished all submitted work and the
// host copy of every capture range is current. It is never called
// implicitly.
func (c *Context) Sync() error {
	if err := c.check(); err != nil {
		return err
	}
	if err := c.dev.Finish(); err != nil {
		return deviceErr("sync", err)
	}
	if err := c.arena.refresh(); err != nil {
		return deviceErr("sync", err)
	}
	return nil
}
