package gpulib

import (
	"fmt"

	"github.com/sevas/gpulib/device"
)

// CreateSampler creates an immutable sampler. anisotropy is a maximum
// anisotropy hint; values below 2 disable anisotropic filtering. Mipmap
// filters are only valid for min. Equal arguments still yield distinct
// samplers.
func (c *Context) CreateSampler(anisotropy int, minFilter, magFilter Filter, wrap Wrap) (Sampler, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	if !minFilter.Valid() || !magFilter.Valid() || magFilter.IsMipmap() || !wrap.Valid() {
		return 0, fmt.Errorf("%w: sampler min=%v mag=%v wrap=%v", ErrValidation, minFilter, magFilter, wrap)
	}
	id, err := c.dev.CreateSampler(device.SamplerDesc{
		Anisotropy: max(anisotropy, 1),
		Min:        minFilter,
		Mag:        magFilter,
		Wrap:       wrap,
	})
	if err != nil {
		return 0, deviceErr("create sampler", err)
	}
	s := Sampler(c.samplers.add(id))
	c.log.Debug("gpulib: sampler created", "sampler", s, "anisotropy", anisotropy, "min", minFilter, "mag", magFilter, "wrap", wrap)
	return s, nil
}
