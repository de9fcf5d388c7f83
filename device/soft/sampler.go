package soft

import (
	"fmt"

	spv "github.com/gogpu/wgpu/hal/software/shader"

	"github.com/sevas/gpulib/device"
)

// msgWrapFallback is raised for wrap modes the interpreter cannot sample.
const msgWrapFallback = 3

type sampler struct {
	desc device.SamplerDesc
}

// unboundSampler is used for sampler units with nothing bound.
var unboundSampler = &sampler{desc: device.SamplerDesc{
	Min:  device.FilterLinear,
	Mag:  device.FilterLinear,
	Wrap: device.WrapRepeat,
}}

// CreateSampler implements device.Device.
func (d *Device) CreateSampler(desc device.SamplerDesc) (device.SamplerID, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	if !desc.Min.Valid() || !desc.Mag.Valid() || !desc.Wrap.Valid() {
		return 0, fmt.Errorf("%w: sampler %+v", device.ErrInvalidArgument, desc)
	}
	if desc.Mag.IsMipmap() {
		return 0, fmt.Errorf("%w: mag filter %v", device.ErrInvalidArgument, desc.Mag)
	}
	if _, ok := shaderWrap(desc.Wrap); !ok {
		d.emit(device.Message{
			Source:   device.SourceAPI,
			Type:     device.TypePortability,
			Severity: device.SeverityLow,
			ID:       msgWrapFallback,
			Text:     fmt.Sprintf("wrap mode %v is not available, using clamp_to_edge", desc.Wrap),
		})
	}
	id := device.SamplerID(d.id())
	d.samplers[id] = &sampler{desc: desc}
	return id, nil
}

// DestroySampler implements device.Device.
func (d *Device) DestroySampler(id device.SamplerID) { delete(d.samplers, id) }

func shaderWrap(w device.Wrap) (uint32, bool) {
	switch w {
	case device.WrapRepeat:
		return spv.WrapRepeat, true
	case device.WrapMirroredRepeat:
		return spv.WrapMirroredRepeat, true
	case device.WrapClampToEdge:
		return spv.WrapClampToEdge, true
	}
	return spv.WrapClampToEdge, false
}

func shaderFilter(f device.Filter) uint32 {
	if f.Texel() == device.FilterNearest {
		return spv.FilterNearest
	}
	return spv.FilterLinear
}

// shaderSampler converts s for the interpreter. Mipmap selection is
// dropped: the interpreter samples the base level only.
func (s *sampler) shaderSampler() *spv.Sampler {
	if s == nil {
		s = unboundSampler
	}
	wrap, _ := shaderWrap(s.desc.Wrap)
	return &spv.Sampler{
		MinFilter: shaderFilter(s.desc.Min),
		MagFilter: shaderFilter(s.desc.Mag),
		WrapU:     wrap,
		WrapV:     wrap,
	}
}
