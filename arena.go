package gpulib

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/sevas/gpulib/device"
)

// Arena is the single device buffer every buffer view points into.
//
// Allocation is a bump of the high-water offset: offsets are aligned to the
// device buffer alignment, never move and are never reused. When the device
// offers a persistent mapping, Bytes returns device memory directly.
// Otherwise the arena keeps a host shadow that Submit flushes, skipping
// capture ranges, which the device owns and Sync reads back.
type Arena struct {
	dev      device.Device
	log      *slog.Logger
	buf      device.BufferID
	capacity uint64
	high     uint64
	align    uint64
	mem      []byte
	mapped   bool

	// captured holds sorted, merged device-written ranges.
	captured []span
}

type span struct{ off, end uint64 }

func newArena(dev device.Device, capacity uint64, log *slog.Logger) (*Arena, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("%w: arena capacity 0", ErrInvalidDimensions)
	}
	id, err := dev.CreateBuffer(capacity)
	if err != nil {
		return nil, fmt.Errorf("%w: arena of %d bytes: %w", ErrConfiguration, capacity, err)
	}
	a := &Arena{
		dev:      dev,
		log:      log,
		buf:      id,
		capacity: capacity,
		align:    max(dev.Limits().BufferAlignment, 1),
	}
	if m := dev.MapBuffer(id); m != nil {
		a.mem, a.mapped = m, true
	} else {
		a.mem = make([]byte, capacity)
	}
	return a, nil
}

// Capacity returns the arena size in bytes.
func (a *Arena) Capacity() uint64 { return a.capacity }

// Used returns the high-water offset.
func (a *Arena) Used() uint64 { return a.high }

// Mapped reports whether Bytes returns device memory directly.
func (a *Arena) Mapped() bool { return a.mapped }

// Alloc reserves n bytes and returns their offset.
func (a *Arena) Alloc(n uint64) (uint64, error) {
	off := (a.high + a.align - 1) / a.align * a.align
	if off > a.capacity || n > a.capacity-off {
		return 0, fmt.Errorf("%w: %d bytes requested at offset %d, capacity %d", ErrArenaExhausted, n, off, a.capacity)
	}
	a.high = off + n
	a.log.Debug("gpulib: arena alloc", "offset", off, "size", n, "used", a.high)
	return off, nil
}

// Bytes returns the writable host slice for [off, off+n). The range must
// lie within the allocated part of the arena.
func (a *Arena) Bytes(off, n uint64) ([]byte, error) {
	if off > a.high || n > a.high-off {
		return nil, &RangeError{What: "arena bytes", Offset: off, Length: n, Limit: a.high}
	}
	return a.mem[off : off+n : off+n], nil
}

// PutFloat32s writes v little-endian at off.
func (a *Arena) PutFloat32s(off uint64, v ...float32) error {
	b, err := a.Bytes(off, 4*uint64(len(v)))
	if err != nil {
		return err
	}
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(x))
	}
	return nil
}

// PutInt32s writes v little-endian at off.
func (a *Arena) PutInt32s(off uint64, v ...int32) error {
	b, err := a.Bytes(off, 4*uint64(len(v)))
	if err != nil {
		return err
	}
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[i*4:], uint32(x))
	}
	return nil
}

// PutUint32s writes v little-endian at off.
func (a *Arena) PutUint32s(off uint64, v ...uint32) error {
	b, err := a.Bytes(off, 4*uint64(len(v)))
	if err != nil {
		return err
	}
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[i*4:], x)
	}
	return nil
}

// Float32s reads n floats at off.
func (a *Arena) Float32s(off uint64, n int) ([]float32, error) {
	b, err := a.Bytes(off, 4*uint64(n))
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

// markCaptured records [off, off+n) as device-written.
func (a *Arena) markCaptured(off, n uint64) {
	a.captured = append(a.captured, span{off, off + n})
	sort.Slice(a.captured, func(i, j int) bool { return a.captured[i].off < a.captured[j].off })
	merged := a.captured[:1]
	for _, s := range a.captured[1:] {
		last := &merged[len(merged)-1]
		if s.off <= last.end {
			last.end = max(last.end, s.end)
			continue
		}
		merged = append(merged, s)
	}
	a.captured = merged
}

// flush uploads the host shadow of [0, high) except captured ranges.
func (a *Arena) flush() error {
	if a.mapped || a.high == 0 {
		return nil
	}
	pos := uint64(0)
	write := func(end uint64) error {
		end = min(end, a.high)
		if end <= pos {
			return nil
		}
		return a.dev.WriteBuffer(a.buf, pos, a.mem[pos:end])
	}
	for _, s := range a.captured {
		if err := write(s.off); err != nil {
			return err
		}
		pos = max(pos, s.end)
	}
	return write(a.high)
}

// refresh reads captured ranges back into the host shadow.
func (a *Arena) refresh() error {
	if a.mapped {
		return nil
	}
	for _, s := range a.captured {
		if err := a.dev.ReadBuffer(a.buf, s.off, a.mem[s.off:s.end]); err != nil {
			return err
		}
	}
	return nil
}

func (a *Arena) destroy() {
	a.dev.DestroyBuffer(a.buf)
	a.mem = nil
	a.captured = nil
}
