package lwdata

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"livewidget/internal/models"
	"livewidget/pkg/buffer"
)

// fakeRefs serves reference buffers from memory and counts loads
type fakeRefs struct {
	stores map[string]*buffer.Store
	loads  map[string]int
}

func newFakeRefs() *fakeRefs {
	return &fakeRefs{stores: map[string]*buffer.Store{}, loads: map[string]int{}}
}

func (f *fakeRefs) resolve(id string) (*buffer.Store, error) {
	f.loads[id]++
	s, ok := f.stores[id]
	if !ok {
		return nil, fmt.Errorf("no such file %q", id)
	}
	return s, nil
}

func mustStore(t *testing.T, w, h, d int, values []uint32) *buffer.Store {
	t.Helper()
	s, err := buffer.NewOwned(w, h, d, values)
	if err != nil {
		t.Fatalf("NewOwned: %v", err)
	}
	return s
}

func filled(n int, v uint32) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// ramp returns the 4x4 buffer holding 0..15 row-major
func ramp(t *testing.T, refs *fakeRefs) *Data {
	t.Helper()
	values := make([]uint32, 16)
	for i := range values {
		values[i] = uint32(i)
	}
	d, err := New(mustStore(t, 4, 4, 1, values), WithResolver(refs.resolve))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

func snapshot(d *Data) []uint32 {
	out := make([]uint32, len(d.Buffer().Values()))
	copy(out, d.Buffer().Values())
	return out
}

func TestRampScenario(t *testing.T) {
	d := ramp(t, newFakeRefs())

	if d.Min() != 0 || d.Max() != 15 {
		t.Errorf("min/max: got (%v, %v), want (0, 15)", d.Min(), d.Max())
	}

	xs, ys, err := d.Histogram(4)
	if err != nil {
		t.Fatalf("Histogram: %v", err)
	}
	for i, c := range ys {
		if c != 4 {
			t.Errorf("bucket %d: got %v pixels, want 4", i, c)
		}
	}
	wantX := []float64{1.875, 5.625, 9.375, 13.125}
	for i := range wantX {
		if math.Abs(xs[i]-wantX[i]) > 1e-9 {
			t.Errorf("center %d: got %v, want %v", i, xs[i], wantX[i])
		}
	}
}

func TestCustomRangeDoesNotClampData(t *testing.T) {
	d := ramp(t, newFakeRefs())

	if err := d.SetCustomRange(2, 10); err != nil {
		t.Fatal(err)
	}
	lo, hi := d.Range()
	if lo != 2 || hi != 10 {
		t.Errorf("Range: got (%v, %v), want (2, 10)", lo, hi)
	}
	v, err := d.PresentedValue(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Errorf("PresentedValue(0, 0): got %v, want 0", v)
	}
	if d.Min() != 0 || d.Max() != 15 {
		t.Errorf("custom range must not change min/max: (%v, %v)", d.Min(), d.Max())
	}

	_, ys, err := d.Histogram(8)
	if err != nil {
		t.Fatal(err)
	}
	if sum(ys) != 16 {
		t.Errorf("histogram counts sum to %v, want 16", sum(ys))
	}

	if err := d.ClearCustomRange(); err != nil {
		t.Fatal(err)
	}
	if lo, hi := d.Range(); lo != 0 || hi != 15 {
		t.Errorf("Range after clear: (%v, %v)", lo, hi)
	}

	if err := d.SetCustomRange(10, 2); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("inverted range: expected ErrInvalidArgument, got %v", err)
	}
}

func TestPresentedEqualsRawWithoutLog(t *testing.T) {
	values := []uint32{0, 7, 3, 1 << 31, 42, math.MaxUint32}
	d, err := New(mustStore(t, 3, 2, 1, values))
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			p, err := d.PresentedValue(x, y)
			if err != nil {
				t.Fatal(err)
			}
			raw, err := d.ValueRaw(x, y)
			if err != nil {
				t.Fatal(err)
			}
			if p != float64(raw) {
				t.Errorf("(%d, %d): presented %v, raw %d", x, y, p, raw)
			}
		}
	}
}

func TestLogScale(t *testing.T) {
	values := []uint32{0, 1, 2, 10, 100, 1000, 65535, math.MaxUint32}
	d, err := New(mustStore(t, len(values), 1, 1, values))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetLogScale(true); err != nil {
		t.Fatal(err)
	}

	prev := math.Inf(-1)
	for x := range values {
		v, err := d.PresentedValue(x, 0)
		if err != nil {
			t.Fatal(err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("raw %d presents as %v", values[x], v)
		}
		if v < prev {
			t.Errorf("not monotonic at raw %d: %v < %v", values[x], v, prev)
		}
		prev = v
	}

	if v, _ := d.PresentedValue(0, 0); v != math.Log10(LogEpsilon) {
		t.Errorf("zero count: got %v, want %v", v, math.Log10(LogEpsilon))
	}
	if v, _ := d.PresentedValue(3, 0); math.Abs(v-1) > 1e-12 {
		t.Errorf("log10(10): got %v", v)
	}
	if math.Abs(d.Min()+1) > 1e-12 {
		t.Errorf("Min under log: got %v", d.Min())
	}
	if d.ValueLabel() != "log Counts" {
		t.Errorf("label: %q", d.ValueLabel())
	}

	// Raw access bypasses the log scale.
	if raw, _ := d.ValueRaw(4, 0); raw != 100 {
		t.Errorf("ValueRaw under log: got %d", raw)
	}

	_, ys, err := d.Histogram(5)
	if err != nil {
		t.Fatal(err)
	}
	if sum(ys) != float64(len(values)) {
		t.Errorf("log histogram sums to %v", sum(ys))
	}
}

func TestRangeFollowsLayer(t *testing.T) {
	d, err := New(mustStore(t, 2, 1, 2, []uint32{1, 2, 50, 80}))
	if err != nil {
		t.Fatal(err)
	}
	if lo, hi := d.Range(); lo != 1 || hi != 2 {
		t.Errorf("layer 0 range: (%v, %v)", lo, hi)
	}
	if err := d.SetCurrentLayer(1); err != nil {
		t.Fatal(err)
	}
	if lo, hi := d.Range(); lo != 50 || hi != 80 {
		t.Errorf("layer 1 range: (%v, %v)", lo, hi)
	}
	if v, _ := d.ValueRawAt(0, 0, 0); v != 1 {
		t.Errorf("ValueRawAt layer 0: %d", v)
	}

	for _, z := range []int{-1, 2} {
		if err := d.SetCurrentLayer(z); !errors.Is(err, models.ErrOutOfBounds) {
			t.Errorf("SetCurrentLayer(%d): expected ErrOutOfBounds, got %v", z, err)
		}
	}
	if _, err := d.PresentedValue(2, 0); !errors.Is(err, models.ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestHistogramArguments(t *testing.T) {
	d := ramp(t, newFakeRefs())

	for _, bins := range []int{0, -3} {
		if _, _, err := d.Histogram(bins); !errors.Is(err, models.ErrInvalidArgument) {
			t.Errorf("Histogram(%d): expected ErrInvalidArgument, got %v", bins, err)
		}
	}
	if err := d.HistogramInto(make([]float64, 3), make([]float64, 4)); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("mismatched slices: expected ErrInvalidArgument, got %v", err)
	}

	for _, bins := range []int{1, 2, 3, 7, 16, 100, 257} {
		xs := make([]float64, bins)
		ys := make([]float64, bins)
		if err := d.HistogramInto(xs, ys); err != nil {
			t.Fatalf("HistogramInto(%d): %v", bins, err)
		}
		if sum(ys) != 16 {
			t.Errorf("%d bins: counts sum to %v", bins, sum(ys))
		}
	}
}

func TestHistogramMaximumInLastBucket(t *testing.T) {
	d, err := New(mustStore(t, 3, 1, 1, []uint32{0, 5, 10}))
	if err != nil {
		t.Fatal(err)
	}
	_, ys, err := d.Histogram(2)
	if err != nil {
		t.Fatal(err)
	}
	// 5 sits on the boundary and opens the upper bucket; 10 closes it.
	if ys[0] != 1 || ys[1] != 2 {
		t.Errorf("buckets: got %v, want [1 2]", ys)
	}
}

func TestConstantLayerHistogram(t *testing.T) {
	d, err := New(mustStore(t, 2, 2, 1, filled(4, 7)))
	if err != nil {
		t.Fatal(err)
	}
	_, ys, err := d.Histogram(3)
	if err != nil {
		t.Fatal(err)
	}
	if sum(ys) != 4 || ys[0] != 4 {
		t.Errorf("constant layer: got %v", ys)
	}
}

func TestEmptyData(t *testing.T) {
	empty, err := buffer.Zeroed(0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	d, err := New(empty)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Empty() || d.Min() != 0 || d.Max() != 0 {
		t.Errorf("empty sentinel: empty=%v min=%v max=%v", d.Empty(), d.Min(), d.Max())
	}
	_, ys, err := d.Histogram(4)
	if err != nil {
		t.Fatal(err)
	}
	if sum(ys) != 0 {
		t.Errorf("empty histogram: %v", ys)
	}
	if err := d.SetCurrentLayer(0); !errors.Is(err, models.ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
}

// TestDespeckleToggleRestoresState checks that processing always starts
// from the loaded buffer
func TestDespeckleToggleRestoresState(t *testing.T) {
	values := filled(25, 10)
	values[12] = 5000
	d, err := New(mustStore(t, 5, 5, 1, values))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetDespeckleThreshold(100); err != nil {
		t.Fatal(err)
	}
	if err := d.SetDespeckle(true); err != nil {
		t.Fatal(err)
	}
	despeckled := snapshot(d)
	if despeckled[12] != 10 {
		t.Fatalf("spike not removed: %d", despeckled[12])
	}

	if err := d.SetDespeckle(false); err != nil {
		t.Fatal(err)
	}
	if v, _ := d.ValueRaw(2, 2); v != 5000 {
		t.Errorf("despeckle off: got %d, want 5000", v)
	}

	if err := d.SetDespeckle(true); err != nil {
		t.Fatal(err)
	}
	again := snapshot(d)
	for i := range despeckled {
		if again[i] != despeckled[i] {
			t.Errorf("pixel %d: got %d after toggling, want %d", i, again[i], despeckled[i])
		}
	}
	if v, _ := d.OriginalValue(2, 2, 0); v != 5000 {
		t.Errorf("original buffer modified: %d", v)
	}

	if err := d.SetDespeckleThreshold(-1); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("negative threshold: expected ErrInvalidArgument, got %v", err)
	}
}

func TestPixelwiseDivideByOnes(t *testing.T) {
	refs := newFakeRefs()
	refs.stores["ones"] = mustStore(t, 4, 4, 1, filled(16, 1))
	d := ramp(t, refs)

	if err := d.SetOperationReference("ones"); err != nil {
		t.Fatal(err)
	}
	if err := d.SetImageOperation(models.PixelwiseDivision); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 16; i++ {
		v, err := d.ValueRaw(i%4, i/4)
		if err != nil {
			t.Fatal(err)
		}
		if v != uint32(i) {
			t.Errorf("pixel %d: got %d", i, v)
		}
	}

	_, ys, err := d.Histogram(4)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range ys {
		if math.IsNaN(c) {
			t.Fatal("NaN in histogram")
		}
	}
	if sum(ys) != 16 {
		t.Errorf("histogram sums to %v", sum(ys))
	}
}

func TestDivideByZeroSentinel(t *testing.T) {
	refs := newFakeRefs()
	refs.stores["zeros"] = mustStore(t, 4, 4, 1, make([]uint32, 16))
	d := ramp(t, refs)

	if err := d.SetOperationReference("zeros"); err != nil {
		t.Fatal(err)
	}
	if err := d.SetImageOperation(models.PixelwiseDivision); err != nil {
		t.Fatal(err)
	}
	if d.Max() != 0 {
		t.Errorf("division by zero should yield the zero sentinel, max = %v", d.Max())
	}
}

func TestDarkfieldReferenceCache(t *testing.T) {
	refs := newFakeRefs()
	refs.stores["dark"] = mustStore(t, 4, 4, 1, filled(16, 3))
	d := ramp(t, refs)

	if err := d.SetDarkfieldReference("dark", true); err != nil {
		t.Fatal(err)
	}
	if v, _ := d.ValueRaw(3, 3); v != 12 {
		t.Errorf("darkfield subtracted: got %d, want 12", v)
	}
	if v, _ := d.ValueRaw(1, 0); v != 0 {
		t.Errorf("subtraction must clamp at zero: got %d", v)
	}

	if err := d.SetDarkfieldReference("dark", true); err != nil {
		t.Fatal(err)
	}
	if err := d.SetDarkfieldReference("dark", false); err != nil {
		t.Fatal(err)
	}
	if err := d.SetDarkfieldReference("dark", true); err != nil {
		t.Fatal(err)
	}
	if refs.loads["dark"] != 1 {
		t.Errorf("reference loaded %d times, want 1", refs.loads["dark"])
	}
}

func TestFailedReferenceLeavesState(t *testing.T) {
	refs := newFakeRefs()
	refs.stores["dark"] = mustStore(t, 4, 4, 1, filled(16, 1))
	refs.stores["small"] = mustStore(t, 2, 2, 1, filled(4, 1))
	d := ramp(t, refs)

	if err := d.SetDarkfieldReference("dark", true); err != nil {
		t.Fatal(err)
	}
	before := snapshot(d)

	if err := d.SetDarkfieldReference("missing", true); !errors.Is(err, models.ErrReferenceLoad) {
		t.Errorf("expected ErrReferenceLoad, got %v", err)
	}
	if err := d.SetNormalizeReference("small", true); !errors.Is(err, models.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
	if err := d.SetNormalizeReference("", true); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}

	if d.DarkfieldFile() != "dark" || !d.IsDarkfieldSubtracted() {
		t.Errorf("darkfield state changed: %q %v", d.DarkfieldFile(), d.IsDarkfieldSubtracted())
	}
	if d.IsNormalized() || d.NormalizeFile() != "" {
		t.Errorf("normalize state changed: %q %v", d.NormalizeFile(), d.IsNormalized())
	}
	after := snapshot(d)
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("pixel %d changed after failed setter", i)
		}
	}
}

func TestStackReductionClampsLayer(t *testing.T) {
	d, err := New(mustStore(t, 1, 1, 3, []uint32{2, 4, 9}))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetCurrentLayer(2); err != nil {
		t.Fatal(err)
	}
	if err := d.SetImageOperation(models.StackMaximum); err != nil {
		t.Fatal(err)
	}
	if d.Depth() != 1 || d.CurrentLayer() != 0 {
		t.Errorf("depth %d, layer %d", d.Depth(), d.CurrentLayer())
	}
	if v, _ := d.ValueRaw(0, 0); v != 9 {
		t.Errorf("stack maximum: %d", v)
	}

	if err := d.SetImageOperation(models.NoImageOperation); err != nil {
		t.Fatal(err)
	}
	if d.Depth() != 3 {
		t.Errorf("depth after reset: %d", d.Depth())
	}

	if err := d.SetOperationScalar(2.5); err != nil {
		t.Fatal(err)
	}
	if err := d.SetImageOperation(models.MultiplyByScalar); err != nil {
		t.Fatal(err)
	}
	if v, _ := d.ValueRaw(0, 0); v != 5 {
		t.Errorf("scaled: %d", v)
	}
}

func TestReplaceCarriesSettings(t *testing.T) {
	refs := newFakeRefs()
	refs.stores["dark"] = mustStore(t, 2, 1, 1, []uint32{1, 1})

	first := []uint32{5, 6, 7, 8}
	d, err := New(mustStore(t, 2, 1, 2, first), WithResolver(refs.resolve))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetLogScale(true); err != nil {
		t.Fatal(err)
	}
	if err := d.SetCustomRange(0, 3); err != nil {
		t.Fatal(err)
	}
	if err := d.SetDarkfieldReference("dark", true); err != nil {
		t.Fatal(err)
	}
	if err := d.SetCurrentLayer(1); err != nil {
		t.Fatal(err)
	}
	oldOriginal := d.Original()

	next := []uint32{101, 11, 21, 31}
	borrowed, err := buffer.NewBorrowed(2, 1, 2, next)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Replace(borrowed, true); err != nil {
		t.Fatal(err)
	}

	if !oldOriginal.Released() {
		t.Error("previous buffer should be released")
	}
	if d.CurrentLayer() != 1 {
		t.Errorf("layer not kept: %d", d.CurrentLayer())
	}
	if !d.IsLogScale() || !d.IsDarkfieldSubtracted() {
		t.Error("settings lost on replace")
	}
	if r, ok := d.CustomRange(); !ok || r.Upper != 3 {
		t.Errorf("custom range lost: %v %v", r, ok)
	}
	if v, _ := d.ValueRawAt(0, 0, 0); v != 100 {
		t.Errorf("darkfield not applied to new buffer: %d", v)
	}

	// Replacing the borrowed buffer must leave the caller's memory intact.
	if err := d.Replace(mustStore(t, 2, 1, 1, []uint32{1, 2}), false); err != nil {
		t.Fatal(err)
	}
	if next[0] != 101 || next[3] != 31 {
		t.Errorf("borrowed memory modified: %v", next)
	}
	if d.CurrentLayer() != 0 {
		t.Errorf("layer not reset: %d", d.CurrentLayer())
	}

	// A buffer the darkfield does not fit is rejected and the old one kept.
	if err := d.Replace(mustStore(t, 3, 1, 1, []uint32{1, 2, 3}), false); !errors.Is(err, models.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
	if d.Width() != 2 {
		t.Errorf("old buffer not kept: width %d", d.Width())
	}
}

func TestSettingsTransfer(t *testing.T) {
	refs := newFakeRefs()
	a := ramp(t, refs)
	if err := a.SetLogScale(true); err != nil {
		t.Fatal(err)
	}
	if err := a.SetImageFilter(models.MedianFilter); err != nil {
		t.Fatal(err)
	}
	if err := a.SetCustomRange(0, 1); err != nil {
		t.Fatal(err)
	}

	s := a.Settings()
	s.CustomRange.Upper = 99
	if r, _ := a.CustomRange(); r.Upper != 1 {
		t.Error("Settings must return a copy")
	}

	b := ramp(t, refs)
	if err := b.ApplySettings(a.Settings()); err != nil {
		t.Fatal(err)
	}
	if !b.IsLogScale() || b.ImageFilter() != models.MedianFilter {
		t.Errorf("settings not applied: %+v", b.Settings())
	}

	path := filepath.Join(t.TempDir(), "preset.yaml")
	if err := SaveSettings(a.Settings(), path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadSettings(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Processing != a.Settings().Processing || loaded.LogScale != true || loaded.CustomRange == nil {
		t.Errorf("preset: got %+v", loaded)
	}
}

func TestUpdateNotification(t *testing.T) {
	d := ramp(t, newFakeRefs())

	calls := 0
	var inner error
	cancel := d.OnUpdate(func(got *Data) {
		calls++
		if got != d {
			t.Error("listener got a different Data")
		}
		// Range is readable from inside a notification.
		got.Range()
		inner = got.SetLogScale(false)
	})

	if err := d.SetLogScale(true); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("calls: %d", calls)
	}
	if !errors.Is(inner, models.ErrBusy) {
		t.Errorf("setter inside listener: expected ErrBusy, got %v", inner)
	}
	if !d.IsLogScale() {
		t.Error("reentrant setter must not take effect")
	}

	cancel()
	if err := d.SetCustomRange(1, 2); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("cancelled listener called: %d", calls)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	d := ramp(t, newFakeRefs())
	if err := d.SetImageFilter(models.MedianFilter); err != nil {
		t.Fatal(err)
	}

	c := d.Clone()
	if !c.Original().Owned() {
		t.Error("clone must own its buffer")
	}
	if err := c.SetImageFilter(models.NoImageFilter); err != nil {
		t.Fatal(err)
	}
	if d.ImageFilter() != models.MedianFilter {
		t.Error("changing the clone changed the source")
	}
	if err := d.Unload(); err != nil {
		t.Fatal(err)
	}
	if v, err := c.ValueRaw(3, 3); err != nil || v != 15 {
		t.Errorf("clone after source unload: %d, %v", v, err)
	}
}

func TestLoadFromBytes(t *testing.T) {
	text := "TOFTOF\nchannels: 2\ndetectors: 2\ndata:\n1 2 3 4\n"
	d, err := Load([]byte(text), models.Unspecified, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Width() != 2 || d.Max() != 4 {
		t.Errorf("loaded %dx%d max %v", d.Width(), d.Height(), d.Max())
	}

	if _, err := Load([]byte("garbage"), models.Unspecified, nil); !errors.Is(err, models.ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestHistogramExtremeRange(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi float64
	}{
		{"symmetric", -1e308, 1e308},
		{"full float line", -math.MaxFloat64, math.MaxFloat64},
		{"single point", 1e300, 1e300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ramp(t, newFakeRefs())
			if err := d.SetCustomRange(tt.lo, tt.hi); err != nil {
				t.Fatal(err)
			}
			xs, ys, err := d.Histogram(4)
			if err != nil {
				t.Fatal(err)
			}
			if sum(ys) != 16 {
				t.Errorf("counts sum to %v, want 16", sum(ys))
			}
			for i, x := range xs {
				if math.IsNaN(x) || math.IsInf(x, 0) {
					t.Errorf("center %d is %v", i, x)
				}
			}
		})
	}

	// The ramp sits in the middle of a symmetric range.
	d := ramp(t, newFakeRefs())
	if err := d.SetCustomRange(-1e308, 1e308); err != nil {
		t.Fatal(err)
	}
	_, ys, err := d.Histogram(4)
	if err != nil {
		t.Fatal(err)
	}
	if ys[2] != 16 {
		t.Errorf("buckets: got %v, want all pixels in bucket 2", ys)
	}
}
