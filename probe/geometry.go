package probe

import (
	"fmt"
)

type constError string

func (e constError) Error() string { return string(e) }

// Errors reported when creating eviction buffers.
const (
	ErrGeometry   = constError("invalid geometry")
	ErrBufferSize = constError("invalid buffer size")
)

// Geometry describes how addresses map to cache lines and set-indices. A
// set-index stride holds one line for every possible set-index value.
type Geometry struct {
	LineBits     int
	SetIndexBits int
	PageBits     int
}

// DefaultGeometry is 64-byte lines, a 128 KiB set-index stride (as seen
// through 2 MiB pages) and 4 KiB small pages.
func DefaultGeometry() Geometry {
	return Geometry{
		LineBits:     6,
		SetIndexBits: 17,
		PageBits:     12,
	}
}

// LineSize returns the size of a cache line in bytes.
func (g Geometry) LineSize() int { return 1 << g.LineBits }

// SetIndexSize returns the set-index stride in bytes.
func (g Geometry) SetIndexSize() int { return 1 << g.SetIndexBits }

// SetIndexLines returns the number of distinct set-indices.
func (g Geometry) SetIndexLines() int { return 1 << (g.SetIndexBits - g.LineBits) }

// PageSize returns the small page size in bytes.
func (g Geometry) PageSize() int { return 1 << g.PageBits }

// PageLines returns the number of lines in a small page.
func (g Geometry) PageLines() int { return 1 << (g.PageBits - g.LineBits) }

// LinkSlots returns how many link words fit into a line.
func (g Geometry) LinkSlots() int { return g.LineSize() / 8 }

// Validate checks that the sizes are consistent.
func (g Geometry) Validate() error {
	if g.LineBits < 4 {
		return fmt.Errorf("%w: line of %d bits cannot hold two links",
			ErrGeometry, g.LineBits)
	}

	if g.SetIndexBits < g.LineBits {
		return fmt.Errorf("%w: set-index stride of %d bits is smaller than a line",
			ErrGeometry, g.SetIndexBits)
	}

	if g.PageBits < g.LineBits || g.PageBits > g.SetIndexBits {
		return fmt.Errorf("%w: page of %d bits must lie between a line and "+
			"a set-index stride", ErrGeometry, g.PageBits)
	}

	return nil
}
