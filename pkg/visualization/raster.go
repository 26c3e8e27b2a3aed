// Package visualization exposes presented detector data to a plotting layer.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"

	"livewidget/internal/models"
)

// Source is what a Raster reads from. *lwdata.Data implements it.
type Source interface {
	Width() int
	Height() int
	Range() (lower, upper float64)
	PresentedValue(x, y int) (float64, error)
	ValueRaw(x, y int) (uint32, error)
}

// Raster is a read-only view of the current layer of a Source in plot
// coordinates. It holds no data of its own and must not outlive its source.
type Raster struct {
	src Source
}

// NewRaster creates a raster over src
func NewRaster(src Source) *Raster {
	return &Raster{src: src}
}

// Bounds is the pixel extent of the current layer.
func (r *Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.src.Width(), r.src.Height())
}

// Range is the color scale range.
func (r *Raster) Range() (lower, upper float64) {
	return r.src.Range()
}

// Value returns the presented value of the pixel containing the plot
// coordinate (x, y).
func (r *Raster) Value(x, y float64) (float64, error) {
	px, py, err := r.pixel(x, y)
	if err != nil {
		return 0, err
	}
	return r.src.PresentedValue(px, py)
}

// ValueRaw returns the unscaled count under (x, y), e.g. for a pointer
// readout.
func (r *Raster) ValueRaw(x, y float64) (uint32, error) {
	px, py, err := r.pixel(x, y)
	if err != nil {
		return 0, err
	}
	return r.src.ValueRaw(px, py)
}

func (r *Raster) pixel(x, y float64) (int, int, error) {
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, 0, fmt.Errorf("%w: plot coordinate (%v, %v)", models.ErrOutOfBounds, x, y)
	}
	fx, fy := math.Floor(x), math.Floor(y)
	if fx < 0 || fy < 0 || fx >= float64(r.src.Width()) || fy >= float64(r.src.Height()) {
		return 0, 0, fmt.Errorf("%w: plot coordinate (%v, %v)", models.ErrOutOfBounds, x, y)
	}
	return int(fx), int(fy), nil
}

// Image renders the current layer as 16 bit gray, mapping Range linearly
// onto [0, 65535]. Values outside the range saturate.
func (r *Raster) Image() (*image.Gray16, error) {
	bounds := r.Bounds()
	img := image.NewGray16(bounds)
	lo, hi := r.Range()
	// Halved so that ranges near the float64 limits do not overflow.
	span := hi/2 - lo/2
	if !(span > 0) {
		span = 0.5
	}

	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			v, err := r.src.PresentedValue(x, y)
			if err != nil {
				return nil, err
			}
			level := math.Max(0, math.Min(65535, (v/2-lo/2)/span*65535))
			img.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(level))})
		}
	}
	return img, nil
}

// SaveJPEG writes the rendered layer as a JPEG preview
func (r *Raster) SaveJPEG(filename string) error {
	img, err := r.Image()
	if err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}
