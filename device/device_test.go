package device

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

// stubDevice satisfies Device for registry tests; only Name is callable.
type stubDevice struct {
	Device
	name string
}

func (s *stubDevice) Name() string { return s.name }

func withRegistry(t *testing.T, names ...string) {
	t.Helper()
	registryMu.Lock()
	saved := factories
	factories = make(map[string]Factory)
	registryMu.Unlock()
	for _, n := range names {
		n := n
		Register(n, func() Device { return &stubDevice{name: n} })
	}
	t.Cleanup(func() {
		registryMu.Lock()
		factories = saved
		registryMu.Unlock()
	})
}

func TestRegistryGet(t *testing.T) {
	withRegistry(t, NameSoft)

	d, err := Get(NameSoft)
	if err != nil {
		t.Fatalf("Get(soft) error = %v", err)
	}
	if d.Name() != NameSoft {
		t.Errorf("Name() = %q, want %q", d.Name(), NameSoft)
	}

	if _, err := Get("nonexistent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(nonexistent) error = %v, want ErrNotFound", err)
	}
}

func TestRegistryNilFactory(t *testing.T) {
	withRegistry(t)
	Register("broken", func() Device { return nil })
	if _, err := Get("broken"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(broken) error = %v, want ErrNotFound", err)
	}
	if d := Default(); d != nil {
		t.Errorf("Default() = %v, want nil", d)
	}
}

func TestRegistryDefaultPriority(t *testing.T) {
	tests := []struct {
		name       string
		registered []string
		want       string
	}{
		{"native wins", []string{NameSoft, NameNative}, NameNative},
		{"soft only", []string{NameSoft}, NameSoft},
		{"unknown names sorted", []string{"zeta", "alpha"}, "alpha"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withRegistry(t, tt.registered...)
			d := Default()
			if d == nil {
				t.Fatal("Default() returned nil")
			}
			if d.Name() != tt.want {
				t.Errorf("Default().Name() = %q, want %q", d.Name(), tt.want)
			}
		})
	}
}

func TestRegistryAvailableAndUnregister(t *testing.T) {
	withRegistry(t, NameSoft, NameNative)
	if got, want := Available(), []string{NameNative, NameSoft}; !reflect.DeepEqual(got, want) {
		t.Errorf("Available() = %v, want %v", got, want)
	}
	Unregister(NameNative)
	if IsRegistered(NameNative) {
		t.Error("native still registered after Unregister")
	}
	if d := Fallback(NameNative); d == nil || d.Name() != NameSoft {
		t.Errorf("Fallback(native) = %v, want soft device", d)
	}
	if d := Fallback(NameSoft); d != nil {
		t.Errorf("Fallback(soft) = %v, want nil", d)
	}
}

func TestFormatInfo(t *testing.T) {
	tests := []struct {
		format   Format
		stride   int
		channels int
		buffer   bool
		image    bool
	}{
		{FormatX32F, 4, 1, true, true},
		{FormatXY32F, 8, 2, true, true},
		{FormatXYZ32F, 12, 3, true, false},
		{FormatXYZW32F, 16, 4, true, true},
		{FormatX32I, 4, 1, true, true},
		{FormatXYZW32I, 16, 4, true, true},
		{FormatX32U, 4, 1, true, true},
		{FormatXYZW32U, 16, 4, true, true},
		{FormatRGBA8, 4, 4, true, true},
		{FormatSRGB8, 3, 3, false, true},
		{FormatSRGBA8, 4, 4, false, true},
		{FormatD32F, 4, 1, false, true},
	}
	if len(tests) != len(Formats()) {
		t.Fatalf("table covers %d formats, Formats() has %d", len(tests), len(Formats()))
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			info := tt.format.Info()
			if info.Stride != tt.stride || info.Channels != tt.channels {
				t.Errorf("stride/channels = %d/%d, want %d/%d", info.Stride, info.Channels, tt.stride, tt.channels)
			}
			if info.Buffer != tt.buffer || info.Image != tt.image {
				t.Errorf("buffer/image = %v/%v, want %v/%v", info.Buffer, info.Image, tt.buffer, tt.image)
			}
		})
	}
	if FormatUndefined.Valid() || Format(200).Valid() {
		t.Error("undefined formats report Valid")
	}
	if Format(200).Stride() != 0 {
		t.Error("unknown format has nonzero stride")
	}
}

func TestFormatCompatible(t *testing.T) {
	tests := []struct {
		from, to Format
		want     bool
	}{
		{FormatSRGBA8, FormatRGBA8, true},
		{FormatRGBA8, FormatX32F, true},
		{FormatXYZW32F, FormatXYZW32U, true},
		{FormatRGBA8, FormatXYZW32F, false},
		{FormatD32F, FormatX32F, false},
		{FormatX32F, FormatD32F, false},
		{FormatSRGB8, FormatSRGB8, true},
		{FormatXYZW32F, FormatUndefined, false},
	}
	for _, tt := range tests {
		if got := tt.from.Compatible(tt.to); got != tt.want {
			t.Errorf("%v.Compatible(%v) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTopologyPrimitives(t *testing.T) {
	tests := []struct {
		top   Topology
		count int
		want  [][]int
	}{
		{TopologyPoints, 2, [][]int{{0}, {1}}},
		{TopologyLines, 5, [][]int{{0, 1}, {2, 3}}},
		{TopologyLineStrip, 3, [][]int{{0, 1}, {1, 2}}},
		{TopologyTriangles, 7, [][]int{{0, 1, 2}, {3, 4, 5}}},
		{TopologyTriangleStrip, 5, [][]int{{0, 1, 2}, {2, 1, 3}, {2, 3, 4}}},
		{TopologyTriangleFan, 5, [][]int{{0, 1, 2}, {0, 2, 3}, {0, 3, 4}}},
		{TopologyTriangles, 2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.top.String(), func(t *testing.T) {
			var got [][]int
			tt.top.Primitives(tt.count, func(idx []int) {
				got = append(got, append([]int(nil), idx...))
			})
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Primitives(%d) = %v, want %v", tt.count, got, tt.want)
			}
		})
	}
}

func TestFilterParts(t *testing.T) {
	if FilterLinearMipmapNearest.Texel() != FilterLinear || FilterLinearMipmapNearest.Level() != FilterNearest {
		t.Error("linear_mipmap_nearest split wrong")
	}
	if FilterNearestMipmapLinear.Texel() != FilterNearest || FilterNearestMipmapLinear.Level() != FilterLinear {
		t.Error("nearest_mipmap_linear split wrong")
	}
	if FilterLinear.IsMipmap() || !FilterNearestMipmapNearest.IsMipmap() {
		t.Error("IsMipmap wrong")
	}
}

func TestMessageString(t *testing.T) {
	m := Message{
		Source:   SourceShaderCompiler,
		Type:     TypePerformance,
		Severity: SeverityMedium,
		ID:       7,
		Text:     "slow path",
	}
	s := m.String()
	for _, want := range []string{"DEBUG\n\n", "ID: 7\n", "SOURCE: SHADER COMPILER\n", "TYPE: PERFORMANCE\n", "SEVERITY: MEDIUM\n", "MESSAGE: slow path\n"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}

func TestShaderError(t *testing.T) {
	err := CompileErrorf(StageFragment, "sky", "line %d: oops", 3)
	if !errors.Is(err, ErrCompile) || errors.Is(err, ErrLink) {
		t.Errorf("errors.Is mismatch for %v", err)
	}
	if !strings.Contains(err.Error(), "line 3: oops") {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(LinkErrorf("x"), ErrLink) {
		t.Error("LinkErrorf does not wrap ErrLink")
	}
}
