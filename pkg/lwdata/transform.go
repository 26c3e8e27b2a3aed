package lwdata

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// LogEpsilon is the smallest count the log scale is taken of. Zero counts
// present as log10(LogEpsilon) = -1, one step below a single count.
const LogEpsilon = 0.1

// present maps a raw count to its presented value.
func (d *Data) present(raw uint32) float64 {
	if d.settings.LogScale {
		return math.Log10(math.Max(float64(raw), LogEpsilon))
	}
	return float64(raw)
}

// PresentedValue returns the value at (x, y) on the current layer after
// log scaling. The custom range never clamps it.
func (d *Data) PresentedValue(x, y int) (float64, error) {
	raw, err := d.effective.Value(x, y, d.cur)
	if err != nil {
		return 0, err
	}
	return d.present(raw), nil
}

// ValueRaw returns the processed count at (x, y) on the current layer
// without any presentation applied.
func (d *Data) ValueRaw(x, y int) (uint32, error) {
	return d.effective.Value(x, y, d.cur)
}

// ValueRawAt is ValueRaw on an explicit layer.
func (d *Data) ValueRawAt(x, y, z int) (uint32, error) {
	return d.effective.Value(x, y, z)
}

// OriginalValue returns the count as loaded, before stack processing.
func (d *Data) OriginalValue(x, y, z int) (uint32, error) {
	return d.original.Value(x, y, z)
}

// Min is the smallest presented value of the current layer.
func (d *Data) Min() float64 {
	lo, _ := d.extrema()
	return lo
}

// Max is the largest presented value of the current layer.
func (d *Data) Max() float64 {
	_, hi := d.extrema()
	return hi
}

// Range returns the display range: the custom range if set, otherwise the
// presented min and max of the current layer.
func (d *Data) Range() (lower, upper float64) {
	if r := d.settings.CustomRange; r != nil {
		return r.Lower, r.Upper
	}
	return d.extrema()
}

// extrema computes the presented min/max on first use after any change.
// Empty layers report (0, 0).
func (d *Data) extrema() (float64, float64) {
	if d.view.valid {
		return d.view.lo, d.view.hi
	}
	values := d.presentedLayer()
	lo, hi := 0.0, 0.0
	if len(values) > 0 {
		lo, hi = floats.Min(values), floats.Max(values)
	}
	d.view = extrema{valid: true, lo: lo, hi: hi}
	return lo, hi
}

// presentedLayer returns the presented values of the current layer.
func (d *Data) presentedLayer() []float64 {
	if d.Empty() {
		return nil
	}
	layer, err := d.effective.Layer(d.cur)
	if err != nil {
		return nil
	}
	out := make([]float64, len(layer))
	for i, v := range layer {
		out[i] = d.present(v)
	}
	return out
}
