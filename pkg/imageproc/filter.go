package imageproc

import (
	"fmt"
	"math"

	"livewidget/internal/models"
	"livewidget/pkg/buffer"
)

// Filter applies a 3x3 spatial filter to every layer of src independently.
// Pixels outside the layer are replicated from the nearest edge pixel.
//
// MedianFilter and HybridMedianFilter always replace the pixel.
// DespeckleFilter only replaces pixels that exceed the median of their
// neighborhood by more than threshold.
func Filter(src *buffer.Store, kind models.ImageFilter, threshold float64) (*buffer.Store, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: image filter %d", models.ErrInvalidArgument, int(kind))
	}
	if kind == models.DespeckleFilter {
		if err := CheckThreshold(threshold); err != nil {
			return nil, err
		}
	}
	out := src.Clone()
	if kind == models.NoImageFilter {
		return out, nil
	}

	w, h := src.Width(), src.Height()
	n := src.LayerLen()
	values := src.Values()
	dst := out.Values()

	window := make([]float64, 0, 9)
	plus := make([]float64, 0, 5)
	cross := make([]float64, 0, 5)

	for z := 0; z < src.Depth(); z++ {
		layer := values[z*n : (z+1)*n]
		at := func(x, y int) float64 {
			return float64(layer[clamp(y, h)*w+clamp(x, w)])
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				center := at(x, y)
				var v float64

				switch kind {
				case models.MedianFilter, models.DespeckleFilter:
					window = window[:0]
					for dy := -1; dy <= 1; dy++ {
						for dx := -1; dx <= 1; dx++ {
							window = append(window, at(x+dx, y+dy))
						}
					}
					v = median(window)
					if kind == models.DespeckleFilter && center-v <= threshold {
						v = center
					}

				case models.HybridMedianFilter:
					plus = append(plus[:0], center, at(x-1, y), at(x+1, y), at(x, y-1), at(x, y+1))
					cross = append(cross[:0], center, at(x-1, y-1), at(x+1, y-1), at(x-1, y+1), at(x+1, y+1))
					v = median([]float64{median(plus), median(cross), center})
				}

				dst[z*n+y*w+x] = toCount(v)
			}
		}
	}
	return out, nil
}

// CheckThreshold validates a despeckle threshold.
func CheckThreshold(threshold float64) error {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold < 0 {
		return fmt.Errorf("%w: despeckle threshold %v", models.ErrInvalidArgument, threshold)
	}
	return nil
}

// clamp maps i into [0, n).
func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
