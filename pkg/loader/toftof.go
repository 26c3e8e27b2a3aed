package loader

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"livewidget/internal/models"
	"livewidget/pkg/buffer"
)

// TOFTOF count files are text:
//
//	TOFTOF
//	# free comment lines
//	channels: 1024
//	detectors: 1000
//	frames: 1
//	data:
//	0 0 3 1 ...
//
// channels is the width, detectors the height and the optional frames the
// depth. Counts follow the data: line separated by any white space.
var toftofMagic = []byte("TOFTOF")

func isTOFTOF(data []byte) bool {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	return bytes.Equal(bytes.TrimSpace(line), toftofMagic)
}

func decodeTOFTOF(data []byte, _ *Options) (*buffer.Store, error) {
	if !isTOFTOF(data) {
		return nil, fmt.Errorf("%w: missing TOFTOF signature", models.ErrCorruptData)
	}
	_, rest, _ := bytes.Cut(data, []byte("\n"))

	header := map[string]string{}
	var body []byte
	found := false
	for len(rest) > 0 {
		var line []byte
		line, rest, _ = bytes.Cut(rest, []byte("\n"))
		text := strings.TrimSpace(string(line))
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if strings.EqualFold(text, "data:") {
			body, found = rest, true
			break
		}
		key, value, ok := strings.Cut(text, ":")
		if !ok {
			return nil, fmt.Errorf("%w: toftof header line %q", models.ErrCorruptData, text)
		}
		header[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	if !found {
		return nil, fmt.Errorf("%w: toftof file without data section", models.ErrCorruptData)
	}

	width, err := toftofDim(header, "channels", 0)
	if err != nil {
		return nil, err
	}
	height, err := toftofDim(header, "detectors", 0)
	if err != nil {
		return nil, err
	}
	depth, err := toftofDim(header, "frames", 1)
	if err != nil {
		return nil, err
	}

	n, ok := buffer.PixelCount(width, height, depth)
	if !ok {
		return nil, fmt.Errorf("%w: toftof shape %dx%dx%d too large", models.ErrCorruptData, width, height, depth)
	}
	fields := bytes.Fields(body)
	if len(fields) != n {
		return nil, fmt.Errorf("%w: expected %d toftof counts, got %d", models.ErrCorruptData, n, len(fields))
	}
	values := make([]uint32, n)
	for i, f := range fields {
		v, err := strconv.ParseUint(string(f), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: toftof count %d: %v", models.ErrCorruptData, i, err)
		}
		values[i] = uint32(v)
	}
	return buffer.NewOwned(width, height, depth, values)
}

func toftofDim(header map[string]string, key string, def int) (int, error) {
	s, ok := header[key]
	if !ok {
		if def > 0 {
			return def, nil
		}
		return 0, fmt.Errorf("%w: toftof header missing %s", models.ErrCorruptData, key)
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: toftof %s=%q", models.ErrCorruptData, key, s)
	}
	return v, nil
}
