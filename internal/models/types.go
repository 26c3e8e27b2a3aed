package models

import (
	"fmt"
	"strings"
)

// FileType identifies the on-disk encoding of detector data.
// The numeric values match the file type codes used by the instrument
// control system, so they can be passed through unchanged.
type FileType int

const (
	// Unspecified asks the loader to infer the type from stream content.
	Unspecified FileType = 0
	Cascade     FileType = 1
	FITS        FileType = 2
	TOFTOF      FileType = 3
	TIFF        FileType = 4
	Raw         FileType = 254
)

var fileTypeNames = map[FileType]string{
	Unspecified: "unspecified",
	Cascade:     "cascade",
	FITS:        "fits",
	TOFTOF:      "toftof",
	TIFF:        "tiff",
	Raw:         "raw",
}

func (t FileType) String() string {
	if s, ok := fileTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("filetype(%d)", int(t))
}

// ParseFileType accepts the lower-case names produced by String.
// The empty string maps to Unspecified.
func ParseFileType(s string) (FileType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Unspecified, nil
	}
	for t, name := range fileTypeNames {
		if name == s {
			return t, nil
		}
	}
	return Unspecified, fmt.Errorf("%w: unknown file type %q", ErrInvalidArgument, s)
}

// ImageFilter selects the spatial filter applied within each layer.
type ImageFilter int

const (
	NoImageFilter ImageFilter = iota
	MedianFilter
	HybridMedianFilter
	DespeckleFilter
)

var imageFilterNames = []string{"none", "median", "hybrid-median", "despeckle"}

func (f ImageFilter) String() string {
	if f >= 0 && int(f) < len(imageFilterNames) {
		return imageFilterNames[f]
	}
	return fmt.Sprintf("filter(%d)", int(f))
}

// Valid reports whether f is one of the known filters.
func (f ImageFilter) Valid() bool {
	return f >= 0 && int(f) < len(imageFilterNames)
}

// ParseImageFilter accepts the names produced by String.
func ParseImageFilter(s string) (ImageFilter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return NoImageFilter, nil
	}
	for i, name := range imageFilterNames {
		if name == s {
			return ImageFilter(i), nil
		}
	}
	return NoImageFilter, fmt.Errorf("%w: unknown image filter %q", ErrInvalidArgument, s)
}

// MarshalText encodes the filter by name.
func (f ImageFilter) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: image filter %d", ErrInvalidArgument, int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText decodes a filter name.
func (f *ImageFilter) UnmarshalText(text []byte) error {
	v, err := ParseImageFilter(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ImageOperation selects a cross-layer reduction or a pixelwise
// combination with an operand.
type ImageOperation int

const (
	NoImageOperation ImageOperation = iota
	StackAverage
	MultiplyByScalar
	PixelwiseAddition
	PixelwiseSubtraction
	PixelwiseDivision
	PixelwiseMultiplication
	StackMedian
	StackMinimum
	StackMaximum
)

var imageOperationNames = []string{
	"none",
	"stack-average",
	"multiply-by-scalar",
	"add",
	"subtract",
	"divide",
	"multiply",
	"stack-median",
	"stack-minimum",
	"stack-maximum",
}

func (op ImageOperation) String() string {
	if op.Valid() {
		return imageOperationNames[op]
	}
	return fmt.Sprintf("operation(%d)", int(op))
}

// Valid reports whether op is a known operation.
func (op ImageOperation) Valid() bool {
	return op >= 0 && int(op) < len(imageOperationNames)
}

// IsStackReduction reports whether op collapses the layers into one.
func (op ImageOperation) IsStackReduction() bool {
	switch op {
	case StackAverage, StackMedian, StackMinimum, StackMaximum:
		return true
	}
	return false
}

// IsPixelwise reports whether op needs an operand buffer.
func (op ImageOperation) IsPixelwise() bool {
	switch op {
	case PixelwiseAddition, PixelwiseSubtraction, PixelwiseDivision, PixelwiseMultiplication:
		return true
	}
	return false
}

// ParseImageOperation accepts the names produced by String.
func ParseImageOperation(s string) (ImageOperation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return NoImageOperation, nil
	}
	for i, name := range imageOperationNames {
		if name == s {
			return ImageOperation(i), nil
		}
	}
	return NoImageOperation, fmt.Errorf("%w: unknown image operation %q", ErrInvalidArgument, s)
}

// MarshalText encodes the operation by name.
func (op ImageOperation) MarshalText() ([]byte, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: image operation %d", ErrInvalidArgument, int(op))
	}
	return []byte(op.String()), nil
}

// UnmarshalText decodes an operation name.
func (op *ImageOperation) UnmarshalText(text []byte) error {
	v, err := ParseImageOperation(string(text))
	if err != nil {
		return err
	}
	*op = v
	return nil
}
