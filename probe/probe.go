// Package probe implements the cache probing primitives: the eviction buffer
// and the timing oracle built on flush, touch and serialized latency
// measurements.
package probe

import (
	"unsafe"

	"github.com/sarchlab/llcmap/latency"
	"github.com/sarchlab/llcmap/pageset"
	"github.com/sarchlab/llcmap/platform"
)

// Config holds the probing constants.
type Config struct {
	// EvictCount is how many times an eviction chain is walked per round.
	EvictCount int

	// SetIndexProbes is the number of samples per candidate offset when
	// detecting a set-index.
	SetIndexProbes int

	// AccessEvictors is the number of slice pages walked before timing the
	// next page of the slice in AccessTime.
	AccessEvictors int
}

// DefaultConfig returns the constants used on real hardware.
func DefaultConfig() Config {
	return Config{
		EvictCount:     3,
		SetIndexProbes: 64,
		AccessEvictors: 10,
	}
}

// A Probe measures the eviction buffer through a platform. It keeps scratch
// state and is not safe for concurrent use.
type Probe struct {
	buf      *Buffer
	platform platform.Platform
	cfg      Config
	hist     *latency.Histogram
}

// New creates a Probe over buf.
func New(buf *Buffer, p platform.Platform, cfg Config) *Probe {
	return &Probe{
		buf:      buf,
		platform: p,
		cfg:      cfg,
		hist:     latency.NewHistogram(),
	}
}

// Buffer returns the eviction buffer.
func (p *Probe) Buffer() *Buffer {
	return p.buf
}

// Flush evicts the line at addr from all cache levels.
func (p *Probe) Flush(addr unsafe.Pointer) {
	p.platform.Flush(addr)
}

// Touch reads the line at addr once.
func (p *Probe) Touch(addr unsafe.Pointer) {
	p.platform.Load(addr)
}

// MeasureLatency returns the cycles taken by one read of addr.
func (p *Probe) MeasureLatency(addr unsafe.Pointer) int {
	return p.platform.Time(addr)
}

// Walk follows the chain starting at head through the given link slot until
// the terminator. Each line is read exactly once.
func (p *Probe) Walk(head unsafe.Pointer, slot int) {
	offset := slot * 8

	for line := head; line != nil; {
		next := p.platform.Load(unsafe.Add(line, offset))
		if next == 0 {
			return
		}

		line = p.buf.lineAt(next - 1)
	}
}

// Evict walks the global chain at set-index si.
func (p *Probe) Evict(si int) {
	p.Walk(p.buf.Head(si), LinkNext)
}

// DetectSetIndex returns the set-index of the line at addr. When small pages
// are as large as the set-index stride it is the line offset in the page.
// Otherwise every set-index compatible with the offset is tried, and the one
// whose eviction slows addr down the most wins.
func (p *Probe) DetectSetIndex(addr unsafe.Pointer) int {
	g := p.buf.Geometry()
	line := int(uintptr(addr)&uintptr(g.PageSize()-1)) >> g.LineBits

	if g.PageSize() == g.SetIndexSize() {
		return line
	}

	maxMedian := 0
	maxSI := -1

	for si := line; si < g.SetIndexLines(); si += g.PageLines() {
		p.hist.Clear()

		for i := 0; i < p.cfg.SetIndexProbes; i++ {
			p.Touch(addr)
			p.Evict(si)
			p.hist.Add(p.MeasureLatency(addr))
		}

		median := p.hist.Median()
		if median > maxMedian {
			maxMedian = median
			maxSI = si
		}
	}

	return maxSI
}

// EvictMeasure chains the pages of evict at set-index si and, for the given
// number of rounds, touches the candidate, walks the chain and times the
// candidate again. It returns the median latency. A result at or above the
// L3 threshold means the pages evict the candidate.
func (p *Probe) EvictMeasure(evict *pageset.Set, candidate, si, rounds int) int {
	p.measureLoop(evict, candidate, si, LinkEvict, p.hist, rounds)

	return p.hist.Median()
}

// AccessTime fills h with the latency of one page of slice after walking
// the first AccessEvictors pages of the slice. The evictors are too few to
// evict it from the last-level cache, so h reflects the hit latency of the
// slice as seen from the current core.
func (p *Probe) AccessTime(
	h *latency.Histogram,
	slice *pageset.Set,
	si, rounds int,
) {
	h.Clear()

	n := min(p.cfg.AccessEvictors, slice.Size()-1)
	if n < 0 {
		return
	}

	evict := pageset.New()
	for i := 0; i < n; i++ {
		evict.Push(slice.Get(i))
	}

	p.measureLoop(evict, slice.Get(n), si, LinkEvict, h, rounds)
}

func (p *Probe) measureLoop(
	evict *pageset.Set,
	candidate, si, slot int,
	h *latency.Histogram,
	rounds int,
) {
	h.Clear()

	target := p.buf.Line(candidate, si)
	head := p.buf.Chain(slot, si, evict)

	for i := 0; i < rounds; i++ {
		p.Touch(target)

		for j := 0; j < p.cfg.EvictCount; j++ {
			p.Walk(head, slot)
		}

		h.Add(p.MeasureLatency(target))
	}
}

// FlushLatency fills h with the latency of reading addr right after flushing
// it.
func (p *Probe) FlushLatency(addr unsafe.Pointer, h *latency.Histogram, rounds int) {
	h.Clear()

	for i := 0; i < rounds; i++ {
		p.Flush(addr)
		h.Add(p.MeasureLatency(addr))
	}
}

// EvictLatency fills h with the latency of reading addr right after evicting
// set-index si through the global chain.
func (p *Probe) EvictLatency(
	addr unsafe.Pointer,
	si int,
	h *latency.Histogram,
	rounds int,
) {
	h.Clear()

	for i := 0; i < rounds; i++ {
		for j := 0; j < p.cfg.EvictCount; j++ {
			p.Evict(si)
		}

		h.Add(p.MeasureLatency(addr))
	}
}
