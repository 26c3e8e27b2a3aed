// Package buffer holds multi-layer detector count buffers.
//
// A Store is a width x height x depth block of uint32 counts laid out
// row-major within a layer, layers concatenated:
//
//	index = z*width*height + y*width + x
//
// A Store either owns its slice exclusively or borrows caller memory.
// Borrowed memory is never written and never released by the Store.
package buffer

import (
	"fmt"

	"livewidget/internal/models"
)

// Store is a contiguous multi-layer pixel buffer.
type Store struct {
	width  int
	height int
	depth  int

	values []uint32
	owned  bool
}

// NewOwned creates a store that takes exclusive ownership of values.
// The caller must not use values afterwards.
func NewOwned(width, height, depth int, values []uint32) (*Store, error) {
	return newStore(width, height, depth, values, true)
}

// NewBorrowed creates a read-only view over caller memory.
func NewBorrowed(width, height, depth int, values []uint32) (*Store, error) {
	return newStore(width, height, depth, values, false)
}

// Zeroed allocates an owned store filled with zeros.
func Zeroed(width, height, depth int) (*Store, error) {
	if err := checkDims(width, height, depth); err != nil {
		return nil, err
	}
	return &Store{
		width:  width,
		height: height,
		depth:  depth,
		values: make([]uint32, width*height*depth),
		owned:  true,
	}, nil
}

func newStore(width, height, depth int, values []uint32, owned bool) (*Store, error) {
	if err := checkDims(width, height, depth); err != nil {
		return nil, err
	}
	if n := width * height * depth; len(values) != n {
		return nil, fmt.Errorf("%w: %d values for %dx%dx%d buffer", models.ErrShapeMismatch, len(values), width, height, depth)
	}
	return &Store{
		width:  width,
		height: height,
		depth:  depth,
		values: values,
		owned:  owned,
	}, nil
}

func checkDims(width, height, depth int) error {
	if width < 0 || height < 0 || depth < 0 {
		return fmt.Errorf("%w: negative dimensions %dx%dx%d", models.ErrInvalidArgument, width, height, depth)
	}
	if _, ok := PixelCount(width, height, depth); !ok {
		return fmt.Errorf("%w: %dx%dx%d exceeds %d pixels", models.ErrInvalidArgument, width, height, depth, MaxPixels)
	}
	return nil
}

// MaxPixels bounds the number of samples a store may hold.
const MaxPixels = 1 << 31

// PixelCount returns width*height*depth. ok is false for negative
// dimensions and for products above MaxPixels.
func PixelCount(width, height, depth int) (n int, ok bool) {
	n = 1
	for _, v := range []int{width, height, depth} {
		if v < 0 {
			return 0, false
		}
		if v == 0 {
			return 0, true
		}
		if n > MaxPixels/v {
			return 0, false
		}
		n *= v
	}
	return n, true
}

// Width is the number of columns.
func (s *Store) Width() int { return s.width }

// Height is the number of rows.
func (s *Store) Height() int { return s.height }

// Depth is the number of layers.
func (s *Store) Depth() int { return s.depth }

// Len is the total element count.
func (s *Store) Len() int { return s.width * s.height * s.depth }

// LayerLen is the element count of one layer.
func (s *Store) LayerLen() int { return s.width * s.height }

// Owned reports whether the store owns its memory.
func (s *Store) Owned() bool { return s.owned }

// Released reports whether Release has been called.
func (s *Store) Released() bool { return s.values == nil && s.Len() > 0 }

// Value returns the count at (x, y, z).
func (s *Store) Value(x, y, z int) (uint32, error) {
	if x < 0 || x >= s.width || y < 0 || y >= s.height || z < 0 || z >= s.depth {
		return 0, fmt.Errorf("%w: (%d, %d, %d) outside %dx%dx%d", models.ErrOutOfBounds, x, y, z, s.width, s.height, s.depth)
	}
	i := s.Index(x, y, z)
	if i >= len(s.values) {
		return 0, fmt.Errorf("%w: buffer released", models.ErrOutOfBounds)
	}
	return s.values[i], nil
}

// Index returns the linear offset of (x, y, z) without bounds checks.
func (s *Store) Index(x, y, z int) int {
	return z*s.width*s.height + y*s.width + x
}

// Layer returns layer z as a read-only view into the store.
func (s *Store) Layer(z int) ([]uint32, error) {
	if z < 0 || z >= s.depth {
		return nil, fmt.Errorf("%w: layer %d outside [0, %d)", models.ErrOutOfBounds, z, s.depth)
	}
	n := s.LayerLen()
	if (z+1)*n > len(s.values) {
		return nil, fmt.Errorf("%w: buffer released", models.ErrOutOfBounds)
	}
	return s.values[z*n : (z+1)*n : (z+1)*n], nil
}

// Values returns the whole buffer. Callers must treat it as read-only.
func (s *Store) Values() []uint32 { return s.values }

// Clone returns an owned deep copy regardless of the source's ownership.
func (s *Store) Clone() *Store {
	values := make([]uint32, len(s.values))
	copy(values, s.values)
	return &Store{
		width:  s.width,
		height: s.height,
		depth:  s.depth,
		values: values,
		owned:  true,
	}
}

// Release drops the buffer. Owned memory becomes collectable; borrowed
// memory is only detached and left untouched.
func (s *Store) Release() {
	s.values = nil
}

// SameLayerShape reports whether o has the same width and height.
func (s *Store) SameLayerShape(o *Store) bool {
	return s.width == o.width && s.height == o.height
}

// SameShape reports whether o has identical dimensions.
func (s *Store) SameShape(o *Store) bool {
	return s.SameLayerShape(o) && s.depth == o.depth
}

func (s *Store) String() string {
	mode := "borrowed"
	if s.owned {
		mode = "owned"
	}
	return fmt.Sprintf("%dx%dx%d (%s)", s.width, s.height, s.depth, mode)
}
