// Package coremap finds out which core owns each slice of the last-level
// cache and assembles the map from set-index and page to core.
package coremap

import (
	"context"

	"github.com/sarchlab/llcmap/evset"
	"github.com/sarchlab/llcmap/hooking"
	"github.com/sarchlab/llcmap/latency"
	"github.com/sarchlab/llcmap/pageset"
	"github.com/sarchlab/llcmap/platform"
)

// Hook positions triggered while mapping.
var (
	// HookPosSetIndexStart is triggered before a set-index is split. The
	// item is the set-index.
	HookPosSetIndexStart = &hooking.HookPos{Name: "SetIndexStart"}

	// HookPosSliceTimed is triggered after a slice is timed from a core.
	// The item is a SliceTiming.
	HookPosSliceTimed = &hooking.HookPos{Name: "SliceTimed"}

	// HookPosCleaned is triggered after conflict cleaning. The item is the
	// SetIndexMap under construction.
	HookPosCleaned = &hooking.HookPos{Name: "Cleaned"}

	// HookPosResolutionError is triggered for every recoverable error. The
	// item is the error and the detail is the set-index.
	HookPosResolutionError = &hooking.HookPos{Name: "ResolutionError"}

	// HookPosSetIndexMapped is triggered when a set-index is complete. The
	// item is the SetIndexMap.
	HookPosSetIndexMapped = &hooking.HookPos{Name: "SetIndexMapped"}
)

// SetIndexOf returns the set-index a mapper hook is about, or nil.
func SetIndexOf(ctx hooking.HookCtx) interface{} {
	switch item := ctx.Item.(type) {
	case int:
		return item
	case SliceTiming:
		return item.SetIndex
	case *SetIndexMap:
		return item.SetIndex
	}

	if si, ok := ctx.Detail.(int); ok {
		return si
	}

	return nil
}

// A Prober measures eviction and access latencies. *probe.Probe is the
// hardware implementation.
type Prober interface {
	evset.Oracle

	AccessTime(h *latency.Histogram, slice *pageset.Set, si, rounds int)
}

// A Splitter partitions the buffer into slices. *evset.Builder is the
// implementation.
type Splitter interface {
	Split(npages, si int) *evset.Partition
}

// Config holds the mapping constants.
type Config struct {
	// Cores is the number of physical cores, and of slices timed.
	Cores int

	// HomeCore is the core the splits run on.
	HomeCore int

	// CoreRounds is the number of samples per slice and core.
	CoreRounds int

	// MeanScale is the fixed-point scale of reported mean latencies.
	MeanScale int
}

// DefaultConfig returns the constants of a six-core part.
func DefaultConfig() Config {
	return Config{
		Cores:      6,
		CoreRounds: 100000,
		MeanScale:  10,
	}
}

// A SliceTiming is the latency of one slice seen from one core.
type SliceTiming struct {
	SetIndex  int
	Slice     int
	Core      int
	Pages     int
	Mean      int
	MeanScale int
	Histogram *latency.Histogram
}

// A SetIndexMap is the result of mapping one set-index.
type SetIndexMap struct {
	SetIndex  int
	Partition *evset.Partition

	// Pages maps every page to its core, or to -1.
	Pages []int

	// Times holds the mean latency per slice and core, multiplied by
	// MeanScale. Rows of untimed slices are nil.
	Times     [][]int
	MeanScale int

	Before []CoreSet
	After  []CoreSet

	// Assignment maps the timed slices to cores, or to -1.
	Assignment []int

	Errors []error
}

// Resolved returns the number of pages with a core.
func (m *SetIndexMap) Resolved() int {
	n := 0

	for _, c := range m.Pages {
		if c >= 0 {
			n++
		}
	}

	return n
}

// A Mapper maps set-indices to cores.
type Mapper struct {
	hooking.HookableBase

	prober   Prober
	pinner   platform.Pinner
	splitter Splitter
	npages   int
	cfg      Config
	hist     *latency.Histogram
}

// NewMapper creates a Mapper over npages pages.
func NewMapper(
	prober Prober,
	pinner platform.Pinner,
	splitter Splitter,
	npages int,
	cfg Config,
) *Mapper {
	if cfg.Cores <= 0 || cfg.Cores > MaxCores {
		panic("number of cores out of range")
	}

	return &Mapper{
		prober:   prober,
		pinner:   pinner,
		splitter: splitter,
		npages:   npages,
		cfg:      cfg,
		hist:     latency.NewHistogram(),
	}
}

// Config returns the constants the mapper was created with.
func (m *Mapper) Config() Config {
	return m.cfg
}

// NumPages returns the number of pages mapped per set-index.
func (m *Mapper) NumPages() int {
	return m.npages
}

// MapSetIndex splits the buffer at set-index si, finds the core of every
// slice and maps the pages. Only pinning failures are returned as errors;
// slices that cannot be resolved are recorded in the result.
func (m *Mapper) MapSetIndex(si int) (*SetIndexMap, error) {
	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    HookPosSetIndexStart,
		Item:   si,
	})

	if err := m.pinner.Pin(m.cfg.HomeCore); err != nil {
		return nil, err
	}

	part := m.splitter.Split(m.npages, si)

	res := &SetIndexMap{
		SetIndex:  si,
		Partition: part,
		Pages:     make([]int, m.npages),
		Times:     make([][]int, m.cfg.Cores),
		MeanScale: m.cfg.MeanScale,
		Before:    make([]CoreSet, m.cfg.Cores),
	}

	for i := range res.Pages {
		res.Pages[i] = -1
	}

	for slice := 0; slice < m.cfg.Cores; slice++ {
		s := sliceAt(part, slice)
		if s == nil {
			continue
		}

		s.Sort()

		times, err := m.timeSlice(si, slice, s)
		if err != nil {
			return nil, err
		}

		res.Times[slice] = times
		res.Before[slice] = Singleton(argmin(times))
	}

	res.After = append([]CoreSet(nil), res.Before...)
	Clean(res.After)

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    HookPosCleaned,
		Item:   res,
	})

	res.Assignment, res.Errors = Resolve(si, res.After, m.cfg.Cores)
	m.materialize(res, part)

	for _, err := range res.Errors {
		m.InvokeHook(hooking.HookCtx{
			Domain: m,
			Pos:    HookPosResolutionError,
			Item:   err,
			Detail: si,
		})
	}

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    HookPosSetIndexMapped,
		Item:   res,
	})

	return res, nil
}

func sliceAt(part *evset.Partition, slice int) *pageset.Set {
	if slice >= len(part.Slices) {
		return nil
	}

	return part.Slices[slice]
}

func (m *Mapper) timeSlice(si, slice int, s *pageset.Set) ([]int, error) {
	times := make([]int, m.cfg.Cores)

	for core := 0; core < m.cfg.Cores; core++ {
		if err := m.pinner.Pin(core); err != nil {
			return nil, err
		}

		m.prober.AccessTime(m.hist, s, si, m.cfg.CoreRounds)
		times[core] = m.hist.Mean(m.cfg.MeanScale)

		m.InvokeHook(hooking.HookCtx{
			Domain: m,
			Pos:    HookPosSliceTimed,
			Item: SliceTiming{
				SetIndex:  si,
				Slice:     slice,
				Core:      core,
				Pages:     s.Size(),
				Mean:      times[core],
				MeanScale: m.cfg.MeanScale,
				Histogram: m.hist,
			},
		})
	}

	return times, nil
}

// argmin returns the first core with the lowest time.
func argmin(times []int) int {
	best := 0

	for core, t := range times {
		if t < times[best] {
			best = core
		}
	}

	return best
}

func (m *Mapper) materialize(res *SetIndexMap, part *evset.Partition) {
	for slice, s := range part.Slices {
		switch {
		case slice >= m.cfg.Cores:
			if s != nil && s.Size() > 0 {
				res.Errors = append(res.Errors, &SurplusSliceError{
					SetIndex: res.SetIndex,
					Slice:    slice,
					Pages:    s.Size(),
				})
			}
		case s == nil:
			res.Errors = append(res.Errors, &NullSliceError{
				SetIndex: res.SetIndex,
				Slice:    slice,
			})
		case res.Assignment[slice] >= 0:
			for _, page := range s.Pages() {
				res.Pages[page] = res.Assignment[slice]
			}
		}
	}

	for slice := len(part.Slices); slice < m.cfg.Cores; slice++ {
		res.Errors = append(res.Errors, &NullSliceError{
			SetIndex: res.SetIndex,
			Slice:    slice,
		})
	}
}

// MapAll maps the given set-indices in order. It stops between set-indices
// when ctx is done, returning what has been mapped so far together with the
// context error.
func (m *Mapper) MapAll(ctx context.Context, setIndices []int) (*CoreMap, error) {
	cm := NewCoreMap(m.npages)

	for _, si := range setIndices {
		if err := ctx.Err(); err != nil {
			return cm, err
		}

		res, err := m.MapSetIndex(si)
		if err != nil {
			return cm, err
		}

		cm.Add(si, res.Pages)
	}

	return cm, nil
}
