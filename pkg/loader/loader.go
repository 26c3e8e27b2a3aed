// Package loader decodes detector data files into buffer stores.
//
// Every decoder leaves its output in plain row-major, layer-concatenated
// uint32 form. Source samples are widened with one rule for all formats:
// unsigned integers are zero-extended, negative integers become 0,
// floating point values are truncated toward zero with NaN and negatives
// mapped to 0, and anything above math.MaxUint32 saturates.
package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	kgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"livewidget/internal/logging"
	"livewidget/internal/models"
	"livewidget/pkg/buffer"
)

// Options carries shape and sample hints for formats that have no header.
// Decoders with self-describing headers ignore them.
type Options struct {
	// Width, Height and Depth declare the shape for RAW data and override
	// the default 128x128 frame size for CASCADE data. A zero Depth is
	// inferred from the stream length.
	Width  int
	Height int
	Depth  int

	// Format is a numpy-style sample type for RAW data, e.g. "<u4", ">u2",
	// "<f4". Empty means "<u4".
	Format string

	// Offset skips a fixed-size header in RAW data.
	Offset int
}

// Frame is a decoded file.
type Frame struct {
	Store *buffer.Store
	Type  models.FileType

	// Digest is the xxHash64 of the bytes as read, before decompression.
	Digest uint64

	// Size is the length of the input in bytes.
	Size int
}

// DigestString returns the digest as 16 hex characters.
func (f *Frame) DigestString() string {
	return fmt.Sprintf("%016x", f.Digest)
}

type decodeFunc func(data []byte, opts *Options) (*buffer.Store, error)

var decoders = map[models.FileType]decodeFunc{
	models.Cascade: decodeCascade,
	models.FITS:    decodeFITS,
	models.TOFTOF:  decodeTOFTOF,
	models.TIFF:    decodeTIFF,
	models.Raw:     decodeRaw,
}

// sniffers are tried in order when the file type is unspecified. RAW has
// no signature and is never inferred.
var sniffers = []struct {
	fileType models.FileType
	match    func([]byte) bool
}{
	{models.FITS, isFITS},
	{models.TIFF, isTIFF},
	{models.TOFTOF, isTOFTOF},
	{models.Cascade, isCascade},
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Load decodes data of the given type. For models.Unspecified the type is
// inferred from the content. opts may be nil.
func Load(data []byte, fileType models.FileType, opts *Options) (*Frame, error) {
	if opts == nil {
		opts = &Options{}
	}

	payload, err := decompress(data)
	if err != nil {
		return nil, err
	}

	if fileType == models.Unspecified {
		fileType, err = Detect(payload)
		if err != nil {
			return nil, err
		}
		logging.Debug("detected %s data (%d bytes)", fileType, len(payload))
	}

	decode, ok := decoders[fileType]
	if !ok {
		return nil, fmt.Errorf("%w: no decoder for %s", models.ErrUnknownFormat, fileType)
	}

	store, err := decode(payload, opts)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", fileType, err)
	}

	return &Frame{
		Store:  store,
		Type:   fileType,
		Digest: xxhash.Sum64(data),
		Size:   len(data),
	}, nil
}

// LoadFile reads path fully into memory and decodes it.
func LoadFile(path string, fileType models.FileType, opts *Options) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	frame, err := Load(data, fileType, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return frame, nil
}

// Detect infers the file type of an uncompressed stream.
func Detect(data []byte) (models.FileType, error) {
	for _, s := range sniffers {
		if s.match(data) {
			return s.fileType, nil
		}
	}
	return models.Unspecified, fmt.Errorf("%w: no decoder recognizes %d bytes", models.ErrUnknownFormat, len(data))
}

// decompress unwraps gzip and zstd streams. Anything else is returned as is.
func decompress(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		zr, err := kgzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", models.ErrCorruptData, err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", models.ErrCorruptData, err)
		}
		return out, nil

	case bytes.HasPrefix(data, zstdMagic):
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", models.ErrCorruptData, err)
		}
		return out, nil
	}
	return data, nil
}
