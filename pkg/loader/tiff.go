package loader

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/tiff"

	"livewidget/internal/models"
	"livewidget/pkg/buffer"
)

func isTIFF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*"))
}

// decodeTIFF reads the first image of a TIFF file. Gray images keep their
// sample values; color images are reduced to 16-bit luminance.
func decodeTIFF(data []byte, _ *Options) (*buffer.Store, error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: tiff: %v", models.ErrCorruptData, err)
	}

	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	values := make([]uint32, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			px, py := b.Min.X+x, b.Min.Y+y
			var v uint32
			switch im := img.(type) {
			case *image.Gray16:
				v = uint32(im.Gray16At(px, py).Y)
			case *image.Gray:
				v = uint32(im.GrayAt(px, py).Y)
			default:
				v = uint32(color.Gray16Model.Convert(img.At(px, py)).(color.Gray16).Y)
			}
			values[y*width+x] = v
		}
	}
	return buffer.NewOwned(width, height, 1, values)
}
