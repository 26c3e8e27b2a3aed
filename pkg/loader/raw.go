package loader

import (
	"encoding/binary"
	"fmt"

	"livewidget/internal/models"
	"livewidget/pkg/buffer"
)

// Cascade detector frames are 128x128 pixels; TOF mode stacks 128 time
// channels behind each other.
const (
	cascadeSize     = 128
	cascadeTOFDepth = 128
)

// decodeRaw reads header-less samples with a declared shape.
func decodeRaw(data []byte, opts *Options) (*buffer.Store, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: raw data needs a declared width and height", models.ErrInvalidArgument)
	}
	if opts.Depth < 0 || opts.Offset < 0 {
		return nil, fmt.Errorf("%w: negative depth or offset", models.ErrInvalidArgument)
	}
	f, err := parseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	if opts.Offset > len(data) {
		return nil, fmt.Errorf("%w: offset %d beyond %d bytes", models.ErrCorruptData, opts.Offset, len(data))
	}
	return decodeSamples(data[opts.Offset:], f, opts.Width, opts.Height, opts.Depth)
}

// decodeCascade reads little-endian uint32 PAD frames or TOF stacks.
func decodeCascade(data []byte, opts *Options) (*buffer.Store, error) {
	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = cascadeSize
	}
	if height <= 0 {
		height = cascadeSize
	}
	f := sampleFormat{order: binary.LittleEndian, kind: 'u', size: 4}
	return decodeSamples(data, f, width, height, opts.Depth)
}

func isCascade(data []byte) bool {
	frame := cascadeSize * cascadeSize * 4
	return len(data) == frame || len(data) == frame*cascadeTOFDepth
}

// decodeSamples widens a packed sample block. A zero depth is inferred
// from the length, which then has to be a whole number of layers.
func decodeSamples(data []byte, f sampleFormat, width, height, depth int) (*buffer.Store, error) {
	layer, ok := buffer.PixelCount(width, height, 1)
	if !ok || layer > len(data)/f.size {
		return nil, fmt.Errorf("%w: %dx%d layer does not fit in %d bytes", models.ErrCorruptData, width, height, len(data))
	}
	if layer == 0 {
		return nil, fmt.Errorf("%w: empty frame shape %dx%d", models.ErrInvalidArgument, width, height)
	}
	layerBytes := layer * f.size

	if depth == 0 {
		if len(data) == 0 || len(data)%layerBytes != 0 {
			return nil, fmt.Errorf("%w: %d bytes is not a whole number of %dx%d layers", models.ErrCorruptData, len(data), width, height)
		}
		depth = len(data) / layerBytes
	}
	if depth > len(data)/layerBytes {
		return nil, fmt.Errorf("%w: %d layers do not fit in %d bytes", models.ErrCorruptData, depth, len(data))
	}
	if want := layerBytes * depth; len(data) != want {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", models.ErrCorruptData, want, len(data))
	}

	values := make([]uint32, width*height*depth)
	widen(data, f, values, 1, 0)
	return buffer.NewOwned(width, height, depth, values)
}
