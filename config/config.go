// Package config collects the knobs of a mapping run. Values come from the
// built-in defaults, then a .env file, then LLCMAP_* environment variables,
// then command-line flags.
package config

import (
	"fmt"
	"math/bits"

	"github.com/sarchlab/llcmap/coremap"
	"github.com/sarchlab/llcmap/evset"
	"github.com/sarchlab/llcmap/latency"
	"github.com/sarchlab/llcmap/platform"
	"github.com/sarchlab/llcmap/probe"
)

type constError string

func (e constError) Error() string { return string(e) }

// ErrInvalidConfig is returned by Validate and by the loaders.
const ErrInvalidConfig = constError("invalid configuration")

// Config holds every knob of a run.
type Config struct {
	Cores      int
	CoreStride int
	CoreOffset int
	HomeCore   int
	Ways       int

	Threshold  int
	EvictCount int

	BufferSize   int
	HugePageSize int

	SetIndexBits int
	LineBits     int
	PageBits     int

	MaxSlices      int
	QuickSetSize   int
	MeasureRounds  int
	CoreRounds     int
	AccessEvictors int
	SetIndexProbes int
	MeanScale      int

	Seed uint64
}

// Default returns the configuration of a six-core part with a 1 GiB buffer
// of 1 GiB pages.
func Default() Config {
	return Config{
		Cores:          6,
		CoreStride:     2,
		Ways:           20,
		Threshold:      100,
		EvictCount:     3,
		BufferSize:     1 << 30,
		HugePageSize:   1 << 30,
		SetIndexBits:   17,
		LineBits:       6,
		PageBits:       12,
		MaxSlices:      32,
		QuickSetSize:   25,
		MeasureRounds:  32,
		CoreRounds:     100000,
		AccessEvictors: 10,
		SetIndexProbes: 64,
		MeanScale:      10,
		Seed:           1,
	}
}

// Simulation returns a configuration small enough to map a simulated cache
// in seconds: four cores, four ways, 16 set-indices and 256 pages.
func Simulation() Config {
	c := Default()

	c.Cores = 4
	c.CoreStride = 1
	c.Ways = 4
	c.BufferSize = 256 << 10
	c.HugePageSize = 0
	c.SetIndexBits = 10
	c.PageBits = 8
	c.MeasureRounds = 4
	c.CoreRounds = 64
	c.AccessEvictors = 2
	c.SetIndexProbes = 8

	return c
}

// Validate rejects impossible combinations.
func (c Config) Validate() error {
	if err := c.Geometry().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Cores < 1 || c.Cores > coremap.MaxCores {
		return fmt.Errorf("%w: %d cores, want 1 to %d",
			ErrInvalidConfig, c.Cores, coremap.MaxCores)
	}

	if c.HomeCore < 0 || c.HomeCore >= c.Cores {
		return fmt.Errorf("%w: home core %d of %d",
			ErrInvalidConfig, c.HomeCore, c.Cores)
	}

	if c.CoreStride < 1 || c.CoreOffset < 0 {
		return fmt.Errorf("%w: core stride %d, offset %d",
			ErrInvalidConfig, c.CoreStride, c.CoreOffset)
	}

	if c.Threshold < 1 || c.Threshold >= latency.TimeMax {
		return fmt.Errorf("%w: threshold %d, want 1 to %d",
			ErrInvalidConfig, c.Threshold, latency.TimeMax-1)
	}

	if err := c.validateBuffer(); err != nil {
		return err
	}

	return c.validateCounts()
}

func (c Config) validateBuffer() error {
	stride := c.Geometry().SetIndexSize()

	if c.BufferSize < stride || c.BufferSize%stride != 0 {
		return fmt.Errorf("%w: buffer of %d bytes is not a multiple of "+
			"the set-index stride %d", ErrInvalidConfig, c.BufferSize, stride)
	}

	if c.HugePageSize == 0 {
		return nil
	}

	if bits.OnesCount(uint(c.HugePageSize)) != 1 ||
		c.HugePageSize < stride ||
		c.BufferSize%c.HugePageSize != 0 {
		return fmt.Errorf("%w: huge pages of %d bytes for a buffer of %d",
			ErrInvalidConfig, c.HugePageSize, c.BufferSize)
	}

	return nil
}

func (c Config) validateCounts() error {
	counts := []struct {
		name  string
		value int
	}{
		{"ways", c.Ways},
		{"evict count", c.EvictCount},
		{"max slices", c.MaxSlices},
		{"quick set size", c.QuickSetSize},
		{"measure rounds", c.MeasureRounds},
		{"core rounds", c.CoreRounds},
		{"access evictors", c.AccessEvictors},
		{"set-index probes", c.SetIndexProbes},
		{"mean scale", c.MeanScale},
	}

	for _, n := range counts {
		if n.value < 1 {
			return fmt.Errorf("%w: %s must be positive, got %d",
				ErrInvalidConfig, n.name, n.value)
		}
	}

	return nil
}

// Geometry returns the address geometry.
func (c Config) Geometry() probe.Geometry {
	return probe.Geometry{
		LineBits:     c.LineBits,
		SetIndexBits: c.SetIndexBits,
		PageBits:     c.PageBits,
	}
}

// Pages returns the number of set-index strides in the buffer.
func (c Config) Pages() int {
	return c.BufferSize / c.Geometry().SetIndexSize()
}

// Probe returns the probe constants.
func (c Config) Probe() probe.Config {
	return probe.Config{
		EvictCount:     c.EvictCount,
		SetIndexProbes: c.SetIndexProbes,
		AccessEvictors: c.AccessEvictors,
	}
}

// Builder returns the split constants.
func (c Config) Builder() evset.Config {
	return evset.Config{
		Threshold:    c.Threshold,
		MaxSlices:    c.MaxSlices,
		QuickSetSize: c.QuickSetSize,
		Rounds:       c.MeasureRounds,
		Seed:         c.Seed,
	}
}

// Mapper returns the mapping constants.
func (c Config) Mapper() coremap.Config {
	return coremap.Config{
		Cores:      c.Cores,
		HomeCore:   c.HomeCore,
		CoreRounds: c.CoreRounds,
		MeanScale:  c.MeanScale,
	}
}

// CoreMapping returns how cores map to CPU ids.
func (c Config) CoreMapping() platform.CoreMapping {
	return platform.CoreMapping{Stride: c.CoreStride, Offset: c.CoreOffset}
}

// WithHost replaces the core count and stride with what the host reports.
func (c Config) WithHost(h platform.Host) Config {
	if h.PhysicalCores > 0 {
		c.Cores = min(h.PhysicalCores, coremap.MaxCores)
	}

	c.CoreStride = h.CoreMapping().Stride
	c.HomeCore = min(c.HomeCore, c.Cores-1)

	return c
}
