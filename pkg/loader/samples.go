package loader

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"livewidget/internal/models"
)

// sampleFormat describes one source sample: byte order, kind ('u', 'i'
// or 'f') and width in bytes.
type sampleFormat struct {
	order binary.ByteOrder
	kind  byte
	size  int
}

var defaultRawFormat = sampleFormat{order: binary.LittleEndian, kind: 'u', size: 4}

// parseFormat reads a numpy-style type string such as "<u4" or ">f8".
// "=" and a missing order character mean little endian; "|" is only
// meaningful for single byte samples.
func parseFormat(s string) (sampleFormat, error) {
	if s == "" {
		return defaultRawFormat, nil
	}

	f := sampleFormat{order: binary.LittleEndian}
	switch s[0] {
	case '<', '=', '|':
		s = s[1:]
	case '>':
		f.order = binary.BigEndian
		s = s[1:]
	}
	if len(s) < 2 {
		return f, fmt.Errorf("%w: sample format %q", models.ErrInvalidArgument, s)
	}

	f.kind = s[0]
	size, err := strconv.Atoi(s[1:])
	if err != nil {
		return f, fmt.Errorf("%w: sample format %q", models.ErrInvalidArgument, s)
	}
	f.size = size

	switch f.kind {
	case 'u', 'i':
		if size != 1 && size != 2 && size != 4 && size != 8 {
			return f, fmt.Errorf("%w: unsupported integer width %d", models.ErrInvalidArgument, size)
		}
	case 'f':
		if size != 4 && size != 8 {
			return f, fmt.Errorf("%w: unsupported float width %d", models.ErrInvalidArgument, size)
		}
	default:
		return f, fmt.Errorf("%w: unsupported sample kind %q", models.ErrInvalidArgument, string(f.kind))
	}
	return f, nil
}

// widen converts len(dst) samples from src into counts. scale and zero are
// applied as zero + scale*sample (the FITS convention); pass 1 and 0 for
// the identity, which keeps integer samples on an exact integer path.
func widen(src []byte, f sampleFormat, dst []uint32, scale, zero float64) {
	identity := scale == 1 && zero == 0
	for i := range dst {
		b := src[i*f.size : (i+1)*f.size]
		switch f.kind {
		case 'u':
			v := readUnsigned(b, f)
			if identity {
				dst[i] = clampUnsigned(v)
			} else {
				dst[i] = clampFloat(zero + scale*float64(v))
			}
		case 'i':
			v := readSigned(b, f)
			if identity {
				dst[i] = clampSigned(v)
			} else {
				dst[i] = clampFloat(zero + scale*float64(v))
			}
		case 'f':
			var v float64
			if f.size == 4 {
				v = float64(math.Float32frombits(f.order.Uint32(b)))
			} else {
				v = math.Float64frombits(f.order.Uint64(b))
			}
			dst[i] = clampFloat(zero + scale*v)
		}
	}
}

func readUnsigned(b []byte, f sampleFormat) uint64 {
	switch f.size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(f.order.Uint16(b))
	case 4:
		return uint64(f.order.Uint32(b))
	}
	return f.order.Uint64(b)
}

func readSigned(b []byte, f sampleFormat) int64 {
	switch f.size {
	case 1:
		return int64(int8(b[0]))
	case 2:
		return int64(int16(f.order.Uint16(b)))
	case 4:
		return int64(int32(f.order.Uint32(b)))
	}
	return int64(f.order.Uint64(b))
}

func clampUnsigned(v uint64) uint32 {
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

func clampSigned(v int64) uint32 {
	if v < 0 {
		return 0
	}
	return clampUnsigned(uint64(v))
}

// clampFloat truncates toward zero; NaN and negatives become 0.
func clampFloat(v float64) uint32 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}
