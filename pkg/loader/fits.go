package loader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"livewidget/internal/models"
	"livewidget/pkg/buffer"
)

const (
	fitsBlockSize = 2880
	fitsCardSize  = 80
)

var fitsMagic = []byte("SIMPLE  =")

func isFITS(data []byte) bool {
	return bytes.HasPrefix(data, fitsMagic)
}

// fitsHeader holds the keyword values of the primary header.
type fitsHeader struct {
	cards    map[string]string
	dataFrom int
}

func (h *fitsHeader) intValue(key string) (int, bool, error) {
	s, ok := h.cards[key]
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("%w: fits keyword %s=%q", models.ErrCorruptData, key, s)
	}
	return v, true, nil
}

func (h *fitsHeader) floatValue(key string, def float64) (float64, error) {
	s, ok := h.cards[key]
	if !ok {
		return def, nil
	}
	// Fortran style exponents are legal in FITS.
	v, err := strconv.ParseFloat(strings.Replace(s, "D", "E", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: fits keyword %s=%q", models.ErrCorruptData, key, s)
	}
	return v, nil
}

// parseFITSHeader reads 2880 byte header blocks up to the END card.
func parseFITSHeader(data []byte) (*fitsHeader, error) {
	h := &fitsHeader{cards: make(map[string]string)}
	for off := 0; ; off += fitsCardSize {
		if off+fitsCardSize > len(data) {
			return nil, fmt.Errorf("%w: fits header without END card", models.ErrCorruptData)
		}
		card := string(data[off : off+fitsCardSize])
		key := strings.TrimSpace(card[:8])
		if key == "END" {
			blocks := (off + fitsCardSize + fitsBlockSize - 1) / fitsBlockSize
			h.dataFrom = blocks * fitsBlockSize
			return h, nil
		}
		if card[8:10] != "= " {
			continue
		}
		value := card[10:]
		if i := strings.IndexByte(value, '/'); i >= 0 && !strings.HasPrefix(strings.TrimSpace(value), "'") {
			value = value[:i]
		}
		h.cards[key] = strings.TrimSpace(value)
	}
}

// decodeFITS reads a 2D or 3D primary array. Rows are kept in file order.
func decodeFITS(data []byte, _ *Options) (*buffer.Store, error) {
	h, err := parseFITSHeader(data)
	if err != nil {
		return nil, err
	}
	if h.cards["SIMPLE"] != "T" {
		return nil, fmt.Errorf("%w: not a conforming fits file", models.ErrCorruptData)
	}

	bitpix, ok, err := h.intValue("BITPIX")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing BITPIX", models.ErrCorruptData)
	}
	f := sampleFormat{order: binary.BigEndian}
	switch bitpix {
	case 8:
		f.kind, f.size = 'u', 1
	case 16, 32, 64:
		f.kind, f.size = 'i', bitpix/8
	case -32, -64:
		f.kind, f.size = 'f', -bitpix/8
	default:
		return nil, fmt.Errorf("%w: unsupported BITPIX %d", models.ErrCorruptData, bitpix)
	}

	naxis, _, err := h.intValue("NAXIS")
	if err != nil {
		return nil, err
	}
	if naxis != 2 && naxis != 3 {
		return nil, fmt.Errorf("%w: unsupported NAXIS %d", models.ErrCorruptData, naxis)
	}
	dims := []int{1, 1, 1}
	for i := 0; i < naxis; i++ {
		n, ok, err := h.intValue(fmt.Sprintf("NAXIS%d", i+1))
		if err != nil {
			return nil, err
		}
		if !ok || n <= 0 {
			return nil, fmt.Errorf("%w: bad or missing NAXIS%d", models.ErrCorruptData, i+1)
		}
		dims[i] = n
	}

	scale, err := h.floatValue("BSCALE", 1)
	if err != nil {
		return nil, err
	}
	zero, err := h.floatValue("BZERO", 0)
	if err != nil {
		return nil, err
	}

	width, height, depth := dims[0], dims[1], dims[2]
	n, ok := buffer.PixelCount(width, height, depth)
	if !ok {
		return nil, fmt.Errorf("%w: fits shape %dx%dx%d too large", models.ErrCorruptData, width, height, depth)
	}
	if avail := len(data) - h.dataFrom; avail < 0 || n > avail/f.size {
		return nil, fmt.Errorf("%w: fits data truncated, need %d samples of %d bytes, have %d bytes", models.ErrCorruptData, n, f.size, len(data)-h.dataFrom)
	}
	end := h.dataFrom + n*f.size

	values := make([]uint32, n)
	widen(data[h.dataFrom:end], f, values, scale, zero)
	return buffer.NewOwned(width, height, depth, values)
}
