package lwdata

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"livewidget/internal/models"
)

// Histogram bins the presented values of the current layer into bins
// equal-width buckets spanning Range, which may be any finite interval.
// xs holds the bucket centers, ys the pixel counts.
//
// Buckets are half-open [lower, upper) except the last one, which also
// holds the upper end of the range. Pixels outside a custom range are
// counted in the first or last bucket, so the counts always add up to
// Width*Height. A zero-width range is widened to one unit.
func (d *Data) Histogram(bins int) (xs, ys []float64, err error) {
	if bins <= 0 {
		return nil, nil, fmt.Errorf("%w: %d histogram bins", models.ErrInvalidArgument, bins)
	}
	xs = make([]float64, bins)
	ys = make([]float64, bins)
	d.fillHistogram(xs, ys)
	return xs, ys, nil
}

// HistogramInto is Histogram with caller-allocated slices; the bin count
// is their common length.
func (d *Data) HistogramInto(xs, ys []float64) error {
	if len(xs) == 0 || len(xs) != len(ys) {
		return fmt.Errorf("%w: histogram slices of length %d and %d", models.ErrInvalidArgument, len(xs), len(ys))
	}
	d.fillHistogram(xs, ys)
	return nil
}

func (d *Data) fillHistogram(xs, ys []float64) {
	bins := len(xs)
	lo, hi := d.Range()
	if !(hi > lo) {
		hi = lo + 1
		if hi == lo {
			hi = math.Nextafter(lo, math.Inf(1))
		}
	}
	// hi-lo overflows for ranges spanning most of the float64 line.
	width := hi/float64(bins) - lo/float64(bins)

	dividers := make([]float64, bins+1)
	for i := 0; i < bins; i++ {
		dividers[i] = math.Min(lo+float64(i)*width, hi)
	}
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	for i := 0; i < bins; i++ {
		upper := hi
		if i < bins-1 {
			upper = dividers[i+1]
		}
		xs[i] = dividers[i]/2 + upper/2
	}

	values := d.presentedLayer()
	for i, v := range values {
		values[i] = math.Min(math.Max(v, lo), hi)
	}
	sort.Float64s(values)
	stat.Histogram(ys, dividers, values, nil)
}
