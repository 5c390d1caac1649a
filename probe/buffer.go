package probe

import (
	"fmt"
	"math/rand/v2"
	"unsafe"

	"github.com/lpabon/godbc"
	"github.com/sarchlab/llcmap/pageset"
)

// Link slots. Every line carries one link word per slot so that a line can
// be on several chains at the same time.
const (
	// LinkNext chains every page of the buffer at one set-index.
	LinkNext = 0

	// LinkEvict chains the pages of one eviction experiment.
	LinkEvict = 1
)

// A Buffer is the eviction buffer. It is divided into pages of one
// set-index stride each. The line of page p at set-index s starts at byte
// p*SetIndexSize + s*LineSize.
//
// Links are stored inside the lines themselves so that following a chain
// touches exactly the lines on it. A link word holds the index of the next
// line plus one; zero terminates the chain, so zeroed memory holds only empty
// chains.
type Buffer struct {
	geom    Geometry
	mem     []byte
	base    unsafe.Pointer
	pages   int
	release func() error
}

// NewBuffer wraps mem as an eviction buffer. The size of mem must be a
// non-zero multiple of the set-index stride. release, if not nil, is called
// by Close.
func NewBuffer(mem []byte, geom Geometry, release func() error) (*Buffer, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}

	stride := geom.SetIndexSize()
	if len(mem) == 0 || len(mem)%stride != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of the "+
			"set-index stride %d", ErrBufferSize, len(mem), stride)
	}

	b := &Buffer{
		geom:    geom,
		mem:     mem,
		base:    unsafe.Pointer(&mem[0]),
		pages:   len(mem) / stride,
		release: release,
	}

	return b, nil
}

// Pages returns the number of pages in the buffer.
func (b *Buffer) Pages() int {
	return b.pages
}

// Geometry returns the geometry the buffer was created with.
func (b *Buffer) Geometry() Geometry {
	return b.geom
}

// Base returns the address of the first byte.
func (b *Buffer) Base() unsafe.Pointer {
	return b.base
}

// Size returns the number of bytes.
func (b *Buffer) Size() int {
	return len(b.mem)
}

// Line returns the address of the line of page at set-index si.
func (b *Buffer) Line(page, si int) unsafe.Pointer {
	godbc.Require(page >= 0 && page < b.pages, "page out of range", page)
	godbc.Require(si >= 0 && si < b.geom.SetIndexLines(),
		"set-index out of range", si)

	return b.lineAt(b.lineIndex(page, si))
}

func (b *Buffer) lineIndex(page, si int) uint64 {
	return uint64(page*b.geom.SetIndexLines() + si)
}

func (b *Buffer) lineAt(index uint64) unsafe.Pointer {
	return unsafe.Add(b.base, index<<b.geom.LineBits)
}

func (b *Buffer) linkWord(page, si, slot int) *uint64 {
	godbc.Require(slot >= 0 && slot < b.geom.LinkSlots(),
		"link slot out of range", slot)

	return (*uint64)(unsafe.Add(b.Line(page, si), slot*8))
}

// SetLink points the link of page at set-index si in slot to the line of
// next at the same set-index. A next of pageset.None terminates the chain.
func (b *Buffer) SetLink(page, si, slot, next int) {
	w := b.linkWord(page, si, slot)
	if next == pageset.None {
		*w = 0
		return
	}

	*w = b.lineIndex(next, si) + 1
}

// Link returns the page that the link of page at set-index si in slot points
// to, or pageset.None.
func (b *Buffer) Link(page, si, slot int) int {
	v := *b.linkWord(page, si, slot)
	if v == 0 {
		return pageset.None
	}

	return int((v - 1) / uint64(b.geom.SetIndexLines()))
}

// Chain links the lines of pages at set-index si in slot, in the order of
// the set, and returns the head. It returns nil for an empty set.
func (b *Buffer) Chain(slot, si int, pages *pageset.Set) unsafe.Pointer {
	next := pageset.None
	for i := pages.Size() - 1; i >= 0; i-- {
		page := pages.Get(i)
		b.SetLink(page, si, slot, next)
		next = page
	}

	if next == pageset.None {
		return nil
	}

	return b.Line(next, si)
}

// LinkGlobal chains all pages in random order at every set-index using the
// LinkNext slot. Page 0 is always the head.
func (b *Buffer) LinkGlobal(rng *rand.Rand) {
	order := pageset.Range(b.pages)
	order.Shuffle(rng)

	for i := 0; i < order.Size(); i++ {
		if order.Get(i) == 0 {
			order.Set(i, order.Get(0))
			order.Set(0, 0)

			break
		}
	}

	for si := 0; si < b.geom.SetIndexLines(); si++ {
		b.Chain(LinkNext, si, order)
	}
}

// Head returns the head of the global chain at set-index si.
func (b *Buffer) Head(si int) unsafe.Pointer {
	return b.Line(0, si)
}

// Close releases the memory. The buffer must not be used afterwards.
func (b *Buffer) Close() error {
	b.mem = nil
	b.base = nil

	if b.release == nil {
		return nil
	}

	return b.release()
}

// AlignedBytes returns size zeroed bytes from the Go heap whose first byte
// is aligned to align, which must be a power of two.
func AlignedBytes(size, align int) []byte {
	raw := make([]byte, size+align)
	offset := int(uintptr(unsafe.Pointer(&raw[0])) & uintptr(align-1))
	if offset != 0 {
		offset = align - offset
	}

	return raw[offset : offset+size : offset+size]
}
