// Package evset partitions the pages of the eviction buffer into eviction
// sets, one per cache slice, at a given set-index.
package evset

import (
	"fmt"
	"math/rand/v2"

	"github.com/lpabon/godbc"
	"github.com/sarchlab/llcmap/hooking"
	"github.com/sarchlab/llcmap/pageset"
)

// Hook positions triggered while splitting.
var (
	// HookPosDoubleConflict is triggered when two slices claim a page. The
	// item is a DoubleConflict.
	HookPosDoubleConflict = &hooking.HookPos{Name: "DoubleConflict"}

	// HookPosSliceFull is triggered when a new slice is needed but all slots
	// are taken. The item is the candidate page.
	HookPosSliceFull = &hooking.HookPos{Name: "SliceFull"}

	// HookPosQuickSet is triggered when a slice is snapshotted into a quick
	// set. The item is the slice id and the detail is its size.
	HookPosQuickSet = &hooking.HookPos{Name: "QuickSet"}
)

// An Oracle tells whether a set of pages evicts a candidate page. The result
// is the median latency of the candidate after walking the pages at
// set-index si; *probe.Probe is the hardware implementation.
type Oracle interface {
	EvictMeasure(evict *pageset.Set, candidate, si, rounds int) int
}

// Config holds the constants of the split.
type Config struct {
	// Threshold is the latency at or above which a candidate counts as
	// evicted from the last-level cache.
	Threshold int

	// MaxSlices bounds the number of slices per set-index.
	MaxSlices int

	// QuickSetSize is the slice size at which a slice is snapshotted into a
	// quick set.
	QuickSetSize int

	// Rounds is the number of measurements per oracle call.
	Rounds int

	// Seed seeds the candidate order.
	Seed uint64
}

// DefaultConfig returns the constants used on real hardware.
func DefaultConfig() Config {
	return Config{
		Threshold:    100,
		MaxSlices:    32,
		QuickSetSize: 25,
		Rounds:       32,
		Seed:         1,
	}
}

// A DoubleConflict records that a page of an already classified slice was
// found responsible for evicting a candidate of another slice. The candidate
// keeps the first slice.
type DoubleConflict struct {
	SetIndex int
	Page     int
	Kept     int
	Claimed  int
}

func (c DoubleConflict) Error() string {
	return fmt.Sprintf("double conflict %d, %d (on eb %d)",
		c.Kept, c.Claimed, c.Page)
}

// A Partition is the result of splitting the buffer at one set-index.
type Partition struct {
	SetIndex int

	// Slices holds MaxSlices entries; unused ones are nil.
	Slices []*pageset.Set

	// Owner maps every page to its slice, or to pageset.None.
	Owner []int

	OracleCalls     int
	QuickHits       int
	DoubleConflicts []DoubleConflict
}

// NumSlices returns the number of slices in use.
func (p *Partition) NumSlices() int {
	n := 0

	for _, s := range p.Slices {
		if s != nil {
			n++
		}
	}

	return n
}

// Unclassified returns the pages that ended up in no slice.
func (p *Partition) Unclassified() *pageset.Set {
	s := pageset.New()

	for page, owner := range p.Owner {
		if owner == pageset.None {
			s.Push(page)
		}
	}

	return s
}

// A Builder splits the buffer into eviction sets.
type Builder struct {
	hooking.HookableBase

	oracle Oracle
	cfg    Config
	rng    *rand.Rand
}

// NewBuilder creates a Builder.
func NewBuilder(oracle Oracle, cfg Config) *Builder {
	return &Builder{
		oracle: oracle,
		cfg:    cfg,
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5eed)),
	}
}

// Config returns the constants the builder was created with.
func (b *Builder) Config() Config {
	return b.cfg
}

// split holds the state of one Split call.
type split struct {
	*Builder

	si    int
	part  *Partition
	eb    *pageset.Set
	quick []*pageset.Set
}

// Split partitions pages 0..npages-1 into slices at set-index si.
// Candidates are tried in random order. A candidate that the quick sets
// evict joins their slice at once. Otherwise it is tested against the
// control set: if the control set does not evict it, the candidate joins
// the control set. If it does, every member of the control set whose
// removal stops the eviction is put into the candidate's slice.
func (b *Builder) Split(npages, si int) *Partition {
	godbc.Require(npages > 0, "no pages to split", npages)

	s := &split{
		Builder: b,
		si:      si,
		eb:      pageset.New(),
		quick:   make([]*pageset.Set, b.cfg.MaxSlices),
		part: &Partition{
			SetIndex: si,
			Slices:   make([]*pageset.Set, b.cfg.MaxSlices),
			Owner:    make([]int, npages),
		},
	}

	for i := range s.part.Owner {
		s.part.Owner[i] = pageset.None
	}

	candidates := pageset.Range(npages)
	candidates.Shuffle(b.rng)

	for candidates.Size() > 0 {
		candidate := candidates.Pop()

		if s.findQuick(candidate) {
			s.part.QuickHits++
			continue
		}

		if !s.evicts(s.eb, candidate) {
			s.eb.Push(candidate)
			continue
		}

		s.findMap(candidate)
		s.snapshot(candidate)
	}

	return s.part
}

func (s *split) evicts(evict *pageset.Set, candidate int) bool {
	s.part.OracleCalls++

	return s.oracle.EvictMeasure(evict, candidate, s.si, s.cfg.Rounds) >=
		s.cfg.Threshold
}

func (s *split) findQuick(candidate int) bool {
	for _, q := range s.quick {
		if q == nil || !s.evicts(q, candidate) {
			continue
		}

		s.assign(candidate, s.part.Owner[q.Get(0)])

		return true
	}

	return false
}

func (s *split) findMap(candidate int) {
	t := s.eb.Dup()
	sliceID := pageset.None

	for i := 0; i < s.eb.Size(); i++ {
		r := s.eb.Get(i)

		t.Remove(r)
		if !s.evicts(t, candidate) {
			sliceID = s.responsible(candidate, r, sliceID)
		}
		t.Push(r)
	}
}

// responsible handles r being responsible for evicting candidate and returns
// the slice of the candidate.
func (s *split) responsible(candidate, r, sliceID int) int {
	owner := s.part.Owner[r]

	if owner == pageset.None {
		if sliceID == pageset.None {
			sliceID = s.newSlice(candidate)
			if sliceID == pageset.None {
				return sliceID
			}
		}

		s.assign(r, sliceID)
		owner = sliceID
	}

	if sliceID == pageset.None {
		sliceID = owner
	}

	if sliceID != owner {
		c := DoubleConflict{
			SetIndex: s.si,
			Page:     r,
			Kept:     sliceID,
			Claimed:  owner,
		}
		s.part.DoubleConflicts = append(s.part.DoubleConflicts, c)
		s.InvokeHook(hooking.HookCtx{
			Domain: s.Builder,
			Pos:    HookPosDoubleConflict,
			Item:   c,
		})
	}

	if s.part.Owner[candidate] == pageset.None {
		s.assign(candidate, sliceID)
	}

	return sliceID
}

func (s *split) newSlice(candidate int) int {
	for i, slice := range s.part.Slices {
		if slice == nil {
			s.part.Slices[i] = pageset.New()
			return i
		}
	}

	s.InvokeHook(hooking.HookCtx{
		Domain: s.Builder,
		Pos:    HookPosSliceFull,
		Item:   candidate,
	})

	return pageset.None
}

func (s *split) assign(page, sliceID int) {
	s.part.Owner[page] = sliceID
	s.part.Slices[sliceID].Push(page)
}

// snapshot turns the slice of candidate into a quick set once it is large
// enough.
func (s *split) snapshot(candidate int) {
	sliceID := s.part.Owner[candidate]
	if sliceID == pageset.None {
		return
	}

	slice := s.part.Slices[sliceID]
	if slice.Size() < s.cfg.QuickSetSize || s.hasQuick(sliceID) {
		return
	}

	for i, q := range s.quick {
		if q == nil {
			s.quick[i] = slice.Dup()
			s.InvokeHook(hooking.HookCtx{
				Domain: s.Builder,
				Pos:    HookPosQuickSet,
				Item:   sliceID,
				Detail: slice.Size(),
			})

			return
		}
	}
}

func (s *split) hasQuick(sliceID int) bool {
	for _, q := range s.quick {
		if q != nil && s.part.Owner[q.Get(0)] == sliceID {
			return true
		}
	}

	return false
}
