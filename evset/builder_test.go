package evset

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/llcmap/hooking"
	"github.com/sarchlab/llcmap/pageset"
	"go.uber.org/mock/gomock"
)

// sliceOracle evicts a candidate when the evicting set holds any page of the
// candidate's slice.
type sliceOracle struct {
	sliceOf func(page int) int
	calls   int
}

func (o *sliceOracle) EvictMeasure(
	evict *pageset.Set,
	candidate, si, rounds int,
) int {
	o.calls++

	for _, p := range evict.Pages() {
		if o.sliceOf(p) == o.sliceOf(candidate) {
			return 200
		}
	}

	return 40
}

// funcOracle evicts when f says so.
type funcOracle func(evict *pageset.Set, candidate int) bool

func (f funcOracle) EvictMeasure(
	evict *pageset.Set,
	candidate, si, rounds int,
) int {
	if f(evict, candidate) {
		return 200
	}

	return 40
}

func expectDisjointCover(part *Partition, npages int) {
	seen := map[int]int{}

	for id, slice := range part.Slices {
		if slice == nil {
			continue
		}

		for _, p := range slice.Pages() {
			_, dup := seen[p]
			Expect(dup).To(BeFalse(), "page %d in two slices", p)
			seen[p] = id
			Expect(part.Owner[p]).To(Equal(id))
		}
	}

	Expect(seen).To(HaveLen(npages))
}

var _ = Describe("Builder", func() {
	It("should split two blocks of 25 pages", func() {
		oracle := &sliceOracle{sliceOf: func(p int) int { return p / 25 }}
		b := NewBuilder(oracle, DefaultConfig())

		part := b.Split(50, 7)

		Expect(part.SetIndex).To(Equal(7))
		Expect(part.NumSlices()).To(Equal(2))
		expectDisjointCover(part, 50)

		for _, slice := range part.Slices {
			if slice == nil {
				continue
			}

			Expect(slice.Size()).To(Equal(25))

			block := slice.Get(0) / 25
			for _, p := range slice.Pages() {
				Expect(p / 25).To(Equal(block))
			}
		}

		Expect(part.Unclassified().Size()).To(BeZero())
		Expect(part.DoubleConflicts).To(BeEmpty())
		Expect(part.OracleCalls).To(Equal(oracle.calls))
	})

	It("should use quick sets once slices are large", func() {
		oracle := &sliceOracle{sliceOf: func(p int) int { return p % 2 }}
		b := NewBuilder(oracle, DefaultConfig())
		counter := hooking.NewPosCounter()
		b.AcceptHook(counter)

		part := b.Split(100, 0)

		Expect(part.NumSlices()).To(Equal(2))
		expectDisjointCover(part, 100)
		Expect(part.QuickHits).To(BeNumerically(">", 0))
		Expect(counter.Count(HookPosQuickSet)).To(Equal(uint64(2)))

		for _, slice := range part.Slices {
			if slice == nil {
				continue
			}

			Expect(slice.Size()).To(Equal(50))
			parity := slice.Get(0) % 2
			for _, p := range slice.Pages() {
				Expect(p % 2).To(Equal(parity))
			}
		}
	})

	It("should leave pages unclassified when slots run out", func() {
		cfg := DefaultConfig()
		cfg.MaxSlices = 1

		oracle := &sliceOracle{sliceOf: func(p int) int { return p % 2 }}
		b := NewBuilder(oracle, cfg)
		counter := hooking.NewPosCounter()
		b.AcceptHook(counter)

		part := b.Split(20, 0)

		Expect(part.Slices).To(HaveLen(1))
		Expect(part.Slices[0].Size()).To(Equal(10))
		Expect(part.Unclassified().Size()).To(Equal(10))
		Expect(counter.Count(HookPosSliceFull)).To(Equal(uint64(9)))
	})

	It("should leave a lonely page unclassified", func() {
		mockCtrl := gomock.NewController(GinkgoT())
		defer mockCtrl.Finish()

		oracle := NewMockOracle(mockCtrl)
		oracle.EXPECT().
			EvictMeasure(gomock.Any(), 0, 3, 32).
			DoAndReturn(func(evict *pageset.Set, _, _, _ int) int {
				Expect(evict.Size()).To(BeZero())
				return 40
			})

		part := NewBuilder(oracle, DefaultConfig()).Split(1, 3)

		Expect(part.NumSlices()).To(BeZero())
		Expect(part.Owner).To(Equal([]int{pageset.None}))
	})

	It("should shuffle candidates with the seed", func() {
		orderOf := func(seed uint64) []int {
			var order []int
			oracle := funcOracle(func(evict *pageset.Set, candidate int) bool {
				if evict.Size() == 0 || evict.Size() == len(order) {
					order = append(order, candidate)
				}
				return false
			})

			cfg := DefaultConfig()
			cfg.Seed = seed
			NewBuilder(oracle, cfg).Split(30, 0)

			return order
		}

		Expect(orderOf(5)).To(Equal(orderOf(5)))
		Expect(orderOf(5)).To(ConsistOf(pageset.Range(30).Pages()))
		Expect(orderOf(5)).NotTo(Equal(orderOf(6)))
	})

	It("should keep the first slice on a double conflict", func() {
		// Candidate 0 is evicted only by pages 1 and 2 together.
		oracle := funcOracle(func(evict *pageset.Set, candidate int) bool {
			return candidate == 0 && evict.Contains(1) && evict.Contains(2)
		})

		b := NewBuilder(oracle, DefaultConfig())
		var conflicts []DoubleConflict
		b.AcceptHook(hooking.NewHookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosDoubleConflict {
				conflicts = append(conflicts, ctx.Item.(DoubleConflict))
			}
		}))

		s := &split{
			Builder: b,
			si:      4,
			eb:      pageset.Of(1, 2),
			quick:   make([]*pageset.Set, 2),
			part: &Partition{
				SetIndex: 4,
				Slices:   []*pageset.Set{pageset.Of(1), pageset.Of(2)},
				Owner:    []int{pageset.None, 0, 1},
			},
		}

		s.findMap(0)

		Expect(s.part.Owner[0]).To(Equal(0))
		Expect(s.part.Slices[0].Pages()).To(Equal([]int{1, 0}))
		Expect(s.part.Slices[1].Pages()).To(Equal([]int{2}))
		Expect(conflicts).To(Equal([]DoubleConflict{
			{SetIndex: 4, Page: 2, Kept: 0, Claimed: 1},
		}))
		Expect(s.part.DoubleConflicts).To(Equal(conflicts))
		Expect(conflicts[0].Error()).To(Equal("double conflict 0, 1 (on eb 2)"))
	})
})
