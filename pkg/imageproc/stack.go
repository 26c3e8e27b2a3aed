// Package imageproc implements the stack operations and spatial filters
// applied to detector buffers.
//
// Every function reads its inputs and returns a newly allocated owned
// store; inputs are never modified. Results are converted back to counts
// with the same rule as the loader: truncation toward zero, negatives and
// NaN become 0, values above math.MaxUint32 saturate.
package imageproc

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"livewidget/internal/models"
	"livewidget/pkg/buffer"
)

// DivideByZero is the result of any division with a zero divisor.
const DivideByZero uint32 = 0

// Reduce collapses the layers of src into a single layer using one of the
// stack reductions.
func Reduce(src *buffer.Store, op models.ImageOperation) (*buffer.Store, error) {
	if !op.IsStackReduction() {
		return nil, fmt.Errorf("%w: %s is not a stack reduction", models.ErrInvalidArgument, op)
	}
	out, err := buffer.Zeroed(src.Width(), src.Height(), 1)
	if err != nil {
		return nil, err
	}
	if src.Depth() == 0 {
		return out, nil
	}

	n := src.LayerLen()
	values := src.Values()
	dst := out.Values()
	column := make([]float64, src.Depth())

	for i := 0; i < n; i++ {
		for z := range column {
			column[z] = float64(values[z*n+i])
		}
		var v float64
		switch op {
		case models.StackAverage:
			v = stat.Mean(column, nil)
		case models.StackMedian:
			v = median(column)
		case models.StackMinimum:
			v = floats.Min(column)
		case models.StackMaximum:
			v = floats.Max(column)
		}
		dst[i] = toCount(v)
	}
	return out, nil
}

// Combine applies a pixelwise arithmetic operation between src and ref.
// ref must have the width and height of src and either a single layer,
// which is applied to every layer of src, or the same depth as src.
func Combine(src, ref *buffer.Store, op models.ImageOperation) (*buffer.Store, error) {
	if !op.IsPixelwise() {
		return nil, fmt.Errorf("%w: %s is not a pixelwise operation", models.ErrInvalidArgument, op)
	}
	var kernel func(a, b float64) float64
	switch op {
	case models.PixelwiseAddition:
		kernel = func(a, b float64) float64 { return a + b }
	case models.PixelwiseSubtraction:
		kernel = func(a, b float64) float64 { return a - b }
	case models.PixelwiseMultiplication:
		kernel = func(a, b float64) float64 { return a * b }
	case models.PixelwiseDivision:
		kernel = divide(1)
	}
	return pixelwise(src, ref, kernel)
}

// Subtract removes a darkfield reference from src, clamping at zero.
func Subtract(src, darkfield *buffer.Store) (*buffer.Store, error) {
	return Combine(src, darkfield, models.PixelwiseSubtraction)
}

// Normalize applies a flat-field correction: every pixel is divided by the
// reference and scaled by the reference mean, so a uniform flat field
// leaves the data unchanged.
func Normalize(src, flat *buffer.Store) (*buffer.Store, error) {
	if err := checkOperand(src, flat); err != nil {
		return nil, err
	}
	ref := make([]float64, len(flat.Values()))
	for i, v := range flat.Values() {
		ref[i] = float64(v)
	}
	mean := 1.0
	if len(ref) > 0 {
		mean = stat.Mean(ref, nil)
	}
	return pixelwise(src, flat, divide(mean))
}

// Scale multiplies every pixel by factor.
func Scale(src *buffer.Store, factor float64) (*buffer.Store, error) {
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("%w: scale factor %v", models.ErrInvalidArgument, factor)
	}
	out := src.Clone()
	dst := out.Values()
	for i, v := range src.Values() {
		dst[i] = toCount(float64(v) * factor)
	}
	return out, nil
}

func divide(scale float64) func(a, b float64) float64 {
	return func(a, b float64) float64 {
		if b == 0 {
			return float64(DivideByZero)
		}
		return a / b * scale
	}
}

func checkOperand(src, ref *buffer.Store) error {
	if !src.SameLayerShape(ref) {
		return fmt.Errorf("%w: operand %dx%d, data %dx%d", models.ErrShapeMismatch, ref.Width(), ref.Height(), src.Width(), src.Height())
	}
	if ref.Depth() != 1 && ref.Depth() != src.Depth() {
		return fmt.Errorf("%w: operand has %d layers, data %d", models.ErrShapeMismatch, ref.Depth(), src.Depth())
	}
	return nil
}

func pixelwise(src, ref *buffer.Store, kernel func(a, b float64) float64) (*buffer.Store, error) {
	if err := checkOperand(src, ref); err != nil {
		return nil, err
	}
	out := src.Clone()
	dst := out.Values()
	a, b := src.Values(), ref.Values()
	n := src.LayerLen()
	for i := range a {
		j := i
		if ref.Depth() == 1 && n > 0 {
			j = i % n
		}
		dst[i] = toCount(kernel(float64(a[i]), float64(b[j])))
	}
	return out, nil
}

// median returns the middle element, or the mean of the two middle
// elements for an even count. values is sorted in place.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sort.Float64s(values)
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}

// toCount truncates toward zero; NaN and negatives become 0.
func toCount(v float64) uint32 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}
