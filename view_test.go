package gpulib

import (
	"errors"
	"testing"
)

func TestCast(t *testing.T) {
	ctx := newTestContext(t)
	if _, err := ctx.Arena().Alloc(64); err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}

	tests := []struct {
		name   string
		format Format
		offset uint64
		length uint64
		want   error
	}{
		{"xyzw whole", FormatXYZW32F, 0, 64, nil},
		{"x inner", FormatX32F, 4, 8, nil},
		{"xyz packed", FormatXYZ32F, 12, 36, nil},
		{"rgba bytes", FormatRGBA8, 8, 8, nil},
		{"xyzw misaligned offset", FormatXYZW32F, 4, 16, ErrOutOfRange},
		{"x partial element", FormatX32F, 0, 6, ErrOutOfRange},
		{"empty", FormatX32F, 0, 0, nil},
		{"empty at high-water", FormatXYZW32F, 64, 0, nil},
		{"empty past high-water", FormatX32F, 68, 0, ErrOutOfRange},
		{"empty misaligned", FormatXYZW32F, 4, 0, ErrOutOfRange},
		{"past high-water", FormatX32F, 32, 64, ErrOutOfRange},
		{"image-only format", FormatSRGBA8, 0, 16, ErrFormatMismatch},
		{"depth format", FormatD32F, 0, 16, ErrFormatMismatch},
		{"undefined format", Format(0), 0, 16, ErrFormatMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ctx.Cast(tt.format, tt.offset, tt.length)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Cast() error = %v", err)
				}
				if ctx.ViewFormat(v) != tt.format {
					t.Errorf("ViewFormat() = %v, want %v", ctx.ViewFormat(v), tt.format)
				}
				off, n, ok := ctx.ViewRange(v)
				if !ok || off != tt.offset || n != tt.length {
					t.Errorf("ViewRange() = %d, %d, %v", off, n, ok)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Cast() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCastAliasesArenaBytes(t *testing.T) {
	ctx := newTestContext(t)
	v := putView(t, ctx, FormatXYZW32F, 1, 2, 3, 4)
	off, n, _ := ctx.ViewRange(v)

	// A second view over the same bytes with another format is allowed.
	alias, err := ctx.Cast(FormatX32F, off, n)
	if err != nil {
		t.Fatalf("Cast(alias) error = %v", err)
	}
	if alias == v {
		t.Error("aliasing views share a handle")
	}
}

func TestEmptyViewReadsZero(t *testing.T) {
	ctx := newTestContext(t)
	a := putView(t, ctx, FormatX32F, 1, 2, 3)
	empty, err := ctx.Cast(FormatX32F, 0, 0)
	if err != nil {
		t.Fatalf("Cast(empty) error = %v", err)
	}
	got := capture(t, ctx, sumSource, "sum", a, empty, 3, 3)
	for i, want := range []float32{1, 2, 3} {
		if got[i] != want {
			t.Errorf("capture = %v, want [1 2 3]", got)
			break
		}
	}
}

func TestCastImage(t *testing.T) {
	ctx := newTestContext(t)
	img, err := ctx.AllocImage(FormatRGBA8, 8, 8, 3, 0)
	if err != nil {
		t.Fatalf("AllocImage() error = %v", err)
	}

	tests := []struct {
		name               string
		format             Format
		layerFirst, layers int
		mipFirst, mips     int
		want               error
	}{
		{"same format", FormatRGBA8, 0, 3, 0, 4, nil},
		{"srgb reinterpretation", FormatSRGBA8, 1, 2, 1, 1, nil},
		{"uint reinterpretation", FormatX32U, 2, 1, 3, 1, nil},
		{"stride mismatch", FormatXYZW32F, 0, 1, 0, 1, ErrFormatMismatch},
		{"depth class", FormatD32F, 0, 1, 0, 1, ErrFormatMismatch},
		{"layers past end", FormatRGBA8, 2, 2, 0, 1, ErrOutOfRange},
		{"no layers", FormatRGBA8, 0, 0, 0, 1, ErrOutOfRange},
		{"mips past end", FormatRGBA8, 0, 1, 3, 2, ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ctx.CastImageMips(img, tt.format, tt.layerFirst, tt.layers, tt.mipFirst, tt.mips)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("CastImageMips() error = %v", err)
				}
				if ctx.ViewFormat(v) != tt.format {
					t.Errorf("ViewFormat() = %v, want %v", ctx.ViewFormat(v), tt.format)
				}
				if _, _, ok := ctx.ViewRange(v); ok {
					t.Error("ViewRange() ok for an image view")
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("CastImageMips() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := ctx.CastImage(Image(99), FormatRGBA8, 0, 1, 0); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("CastImage(unknown) error = %v, want ErrInvalidHandle", err)
	}
}
