// Package simllc simulates a sliced, set-associative last-level cache. It
// implements the platform primitives so that the whole mapping pipeline can
// run without hardware access.
package simllc

import (
	"fmt"
	"unsafe"

	"github.com/sarchlab/llcmap/platform"
)

// Config describes the simulated cache.
type Config struct {
	// Slices is the number of slices.
	Slices int

	// Ways is the associativity of every set.
	Ways int

	// Sets is the number of sets per slice, that is, the number of distinct
	// set-indices.
	Sets int

	// LineSize is the cache line size in bytes.
	LineSize int

	// PageSize is the granularity of the slice hash. Lines of the same
	// page always live in the same slice.
	PageSize int

	// HitLatency is the latency of a hit in the slice of the current core.
	HitLatency int

	// HopLatency is added per ring hop between the current core and the
	// core owning the slice.
	HopLatency int

	// MissLatency is the latency of a miss.
	MissLatency int

	// Owner maps slices to cores. A nil Owner makes slice i belong to core
	// i.
	Owner []int
}

// DefaultConfig returns a small four-slice cache with one set-index per
// 256-byte page.
func DefaultConfig() Config {
	return Config{
		Slices:      4,
		Ways:        4,
		Sets:        4,
		LineSize:    64,
		PageSize:    256,
		HitLatency:  40,
		HopLatency:  3,
		MissLatency: 200,
	}
}

// An LLC is a simulated last-level cache. It is not safe for concurrent use.
type LLC struct {
	cfg    Config
	base   uintptr
	slices []*tagArray
	core   int

	accesses uint64
	misses   uint64
}

var (
	_ platform.Platform = (*LLC)(nil)
	_ platform.Pinner   = (*LLC)(nil)
)

// New creates an empty LLC. Set-indices and slices are computed from
// addresses relative to base.
func New(cfg Config, base unsafe.Pointer) *LLC {
	c := &LLC{
		cfg:  cfg,
		base: uintptr(base),
	}

	if c.cfg.Owner == nil {
		c.cfg.Owner = make([]int, cfg.Slices)
		for i := range c.cfg.Owner {
			c.cfg.Owner[i] = i
		}
	}

	c.Reset()

	return c
}

// Reset invalidates every line.
func (c *LLC) Reset() {
	c.slices = make([]*tagArray, c.cfg.Slices)
	for i := range c.slices {
		c.slices[i] = newTagArray(c.cfg.Sets, c.cfg.Ways)
	}
}

// Cores returns the number of cores.
func (c *LLC) Cores() int {
	return len(c.cfg.Owner)
}

// Owner returns the core that owns slice.
func (c *LLC) Owner(slice int) int {
	return c.cfg.Owner[slice]
}

// SliceOf returns the slice that holds addr.
func (c *LLC) SliceOf(addr unsafe.Pointer) int {
	page := uint64(uintptr(addr)-c.base) / uint64(c.cfg.PageSize)

	return int(mix(page) % uint64(c.cfg.Slices))
}

// SetOf returns the set that holds addr.
func (c *LLC) SetOf(addr unsafe.Pointer) int {
	line := uint64(uintptr(addr)-c.base) / uint64(c.cfg.LineSize)

	return int(line % uint64(c.cfg.Sets))
}

// Pin makes core the current core.
func (c *LLC) Pin(core int) error {
	if core < 0 || core >= c.Cores() {
		return fmt.Errorf("%w: core %d of %d", platform.ErrAffinity,
			core, c.Cores())
	}

	c.core = core

	return nil
}

// Flush drops the line holding p.
func (c *LLC) Flush(p unsafe.Pointer) {
	c.slices[c.SliceOf(p)].invalidate(c.SetOf(p), c.tag(p))
}

// Load accesses the line holding p and returns the word at p.
func (c *LLC) Load(p unsafe.Pointer) uint64 {
	c.access(p)

	return *(*uint64)(p)
}

// Time accesses the line holding p and returns the simulated latency.
func (c *LLC) Time(p unsafe.Pointer) int {
	slice := c.SliceOf(p)

	if !c.access(p) {
		return c.cfg.MissLatency
	}

	return c.cfg.HitLatency + c.cfg.HopLatency*c.distance(c.core, c.Owner(slice))
}

// Stats returns the number of accesses and misses so far.
func (c *LLC) Stats() (accesses, misses uint64) {
	return c.accesses, c.misses
}

func (c *LLC) tag(p unsafe.Pointer) uint64 {
	return uint64(uintptr(p)) / uint64(c.cfg.LineSize)
}

func (c *LLC) access(p unsafe.Pointer) (hit bool) {
	c.accesses++

	tags := c.slices[c.SliceOf(p)]
	setID := c.SetOf(p)
	tag := c.tag(p)

	b, found := tags.lookup(setID, tag)
	if found {
		tags.visit(b)
		return true
	}

	c.misses++

	victim := tags.findVictim(setID)
	victim.Tag = tag
	victim.IsValid = true
	tags.update(victim)
	tags.visit(victim)

	return false
}

func (c *LLC) distance(a, b int) int {
	n := c.Cores()

	d := a - b
	if d < 0 {
		d = -d
	}

	return min(d, n-d)
}

func mix(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33

	return x
}
