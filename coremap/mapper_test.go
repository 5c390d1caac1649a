package coremap

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/llcmap/evset"
	"github.com/sarchlab/llcmap/hooking"
	"github.com/sarchlab/llcmap/latency"
	"github.com/sarchlab/llcmap/pageset"
	"go.uber.org/mock/gomock"
)

// parityProber pretends that even and odd pages live in two slices, owned
// by cores 0 and 1.
type parityProber struct {
	core int
}

func (p *parityProber) Pin(core int) error {
	p.core = core
	return nil
}

func (p *parityProber) EvictMeasure(
	evict *pageset.Set,
	candidate, si, rounds int,
) int {
	for _, page := range evict.Pages() {
		if page%2 == candidate%2 {
			return 200
		}
	}

	return 40
}

func (p *parityProber) AccessTime(
	h *latency.Histogram,
	slice *pageset.Set,
	si, rounds int,
) {
	h.Clear()

	t := 48
	if slice.Get(0)%2 == p.core {
		t = 40
	}

	for i := 0; i < rounds; i++ {
		h.Add(t)
	}
}

func partition(si, npages int, slices ...*pageset.Set) *evset.Partition {
	part := &evset.Partition{
		SetIndex: si,
		Slices:   make([]*pageset.Set, 32),
		Owner:    make([]int, npages),
	}

	for i := range part.Owner {
		part.Owner[i] = pageset.None
	}

	for id, s := range slices {
		part.Slices[id] = s
		if s == nil {
			continue
		}

		for _, p := range s.Pages() {
			part.Owner[p] = id
		}
	}

	return part
}

var _ = Describe("Mapper with a parity oracle", func() {
	var (
		prober *parityProber
		mapper *Mapper
	)

	BeforeEach(func() {
		prober = &parityProber{}
		builder := evset.NewBuilder(prober, evset.DefaultConfig())
		mapper = NewMapper(prober, prober, builder, 100, Config{
			Cores:      2,
			CoreRounds: 16,
			MeanScale:  10,
		})
	})

	It("should map even and odd pages to two cores", func() {
		for si := 0; si < 4; si++ {
			res, err := mapper.MapSetIndex(si)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Errors).To(BeEmpty())
			Expect(res.Resolved()).To(Equal(100))

			for page, core := range res.Pages {
				Expect(core).To(Equal(page % 2))
			}
		}
	})

	It("should keep the times and candidates", func() {
		res, err := mapper.MapSetIndex(1)
		Expect(err).NotTo(HaveOccurred())

		for slice := 0; slice < 2; slice++ {
			core := res.Partition.Slices[slice].Get(0) % 2
			Expect(res.Times[slice][core]).To(Equal(400))
			Expect(res.Times[slice][1-core]).To(Equal(480))
			Expect(res.Before[slice]).To(Equal(Singleton(core)))
			Expect(res.After[slice]).To(Equal(Singleton(core)))
			Expect(res.Assignment[slice]).To(Equal(core))
		}
	})

	It("should sort the slices", func() {
		res, err := mapper.MapSetIndex(0)
		Expect(err).NotTo(HaveOccurred())

		pages := res.Partition.Slices[0].Pages()
		Expect(pages).To(HaveLen(50))
		for i := 1; i < len(pages); i++ {
			Expect(pages[i]).To(BeNumerically(">", pages[i-1]))
		}
	})

	It("should map every set-index into a core map", func() {
		counter := hooking.NewPosCounter()
		mapper.AcceptHook(counter)

		cm, err := mapper.MapAll(context.Background(), []int{0, 1, 2, 3})
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		_, err = cm.WriteTo(&buf)
		Expect(err).NotTo(HaveOccurred())

		lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
		Expect(lines).To(HaveLen(4))
		for _, line := range lines {
			Expect(line).To(Equal(strings.Repeat("01", 50)))
		}

		Expect(cm.Stats().Unresolved).To(BeZero())
		Expect(counter.Count(HookPosSetIndexMapped)).To(Equal(uint64(4)))
		Expect(counter.Count(HookPosSliceTimed)).To(Equal(uint64(4 * 2 * 2)))
		Expect(counter.Count(HookPosResolutionError)).To(BeZero())
	})

	It("should time every set-index", func() {
		timer := hooking.NewPhaseTimer(hooking.WallClock,
			HookPosSetIndexStart, HookPosSetIndexMapped).WithKey(SetIndexOf)
		mapper.AcceptHook(timer)

		_, err := mapper.MapAll(context.Background(), []int{5, 6})

		Expect(err).NotTo(HaveOccurred())
		Expect(timer.Count()).To(Equal(uint64(2)))
	})

	It("should stop between set-indices when cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		mapper.AcceptHook(hooking.NewHookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosSetIndexMapped {
				cancel()
			}
		}))

		cm, err := mapper.MapAll(ctx, []int{0, 1, 2, 3})

		Expect(err).To(MatchError(context.Canceled))
		Expect(cm.SetIndices()).To(Equal([]int{0}))
	})
})

var _ = Describe("Mapper", func() {
	var (
		mockCtrl *gomock.Controller
		prober   *MockProber
		splitter *MockSplitter
		pinner   *MockPinner
		core     int
		mapper   *Mapper
	)

	// Every slice is fastest from the core in fastest[slice].
	expectTimes := func(fastest map[*pageset.Set]int) {
		prober.EXPECT().
			AccessTime(gomock.Any(), gomock.Any(), gomock.Any(), 8).
			DoAndReturn(func(h *latency.Histogram, s *pageset.Set, _, rounds int) {
				h.Clear()

				t := 50
				if fastest[s] == core {
					t = 40
				}

				for i := 0; i < rounds; i++ {
					h.Add(t)
				}
			}).
			AnyTimes()
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		prober = NewMockProber(mockCtrl)
		splitter = NewMockSplitter(mockCtrl)
		pinner = NewMockPinner(mockCtrl)

		pinner.EXPECT().Pin(gomock.Any()).
			DoAndReturn(func(c int) error {
				core = c
				return nil
			}).
			AnyTimes()

		mapper = NewMapper(prober, pinner, splitter, 8, Config{
			Cores:      4,
			CoreRounds: 8,
			MeanScale:  10,
		})
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should leave conflicting slices unresolved", func() {
		s0, s1, s2, s3 := pageset.Of(0, 1), pageset.Of(2, 3),
			pageset.Of(4, 5), pageset.Of(6, 7)
		splitter.EXPECT().Split(8, 9).Return(partition(9, 8, s0, s1, s2, s3))
		expectTimes(map[*pageset.Set]int{s0: 0, s1: 0, s2: 1, s3: 2})

		var logBuf bytes.Buffer
		mapper.AcceptHook(NewReportHook(log.New(&logBuf, "", 0)))

		res, err := mapper.MapSetIndex(9)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Pages).To(Equal([]int{-1, -1, -1, -1, 1, 1, 2, 2}))
		Expect(res.Assignment).To(Equal([]int{-1, -1, 1, 2}))
		Expect(res.Errors).To(ConsistOf(
			&ConflictError{SetIndex: 9, Core: 0, Slices: []int{0, 1}},
			&MissingCoreError{SetIndex: 9, Core: 3},
		))

		Expect(logBuf.String()).To(Equal(
			"Set 0x009 Times: 40.0 50.0 50.0 50.0 / 40.0 50.0 50.0 50.0 / " +
				"50.0 40.0 50.0 50.0 / 50.0 50.0 40.0 50.0 / \n" +
				"Before cleaning set 0x009: 0x01 0x01 0x02 0x04\n" +
				"After cleaning set 0x009: 0x01 0x01 0x02 0x04\n" +
				"Error set 0x009: slices 0 and 1 map to core 0\n" +
				"Error set 0x009: no slice maps to core 3\n"))
	})

	It("should report only errors when asked", func() {
		s0, s1 := pageset.Of(0, 1), pageset.Of(2, 3)
		splitter.EXPECT().Split(8, 2).Return(partition(2, 8, s0, s1))
		expectTimes(map[*pageset.Set]int{s0: 0, s1: 1})

		var logBuf bytes.Buffer
		mapper.AcceptHook(NewErrorReportHook(log.New(&logBuf, "", 0)))

		_, err := mapper.MapSetIndex(2)

		Expect(err).NotTo(HaveOccurred())
		Expect(logBuf.String()).To(Equal(
			"Error set 0x002: no slice maps to core 2\n" +
				"Error set 0x002: no slice maps to core 3\n" +
				"Error set 0x002: null slice 2\n" +
				"Error set 0x002: null slice 3\n"))
	})

	It("should report null slices", func() {
		s0, s2 := pageset.Of(0, 1, 2), pageset.Of(3, 4)
		splitter.EXPECT().Split(8, 0).Return(partition(0, 8, s0, nil, s2))
		expectTimes(map[*pageset.Set]int{s0: 3, s2: 1})

		res, err := mapper.MapSetIndex(0)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Pages).To(Equal([]int{3, 3, 3, 1, 1, -1, -1, -1}))
		Expect(res.Times[1]).To(BeNil())
		Expect(res.Errors).To(ConsistOf(
			&MissingCoreError{SetIndex: 0, Core: 0},
			&MissingCoreError{SetIndex: 0, Core: 2},
			&NullSliceError{SetIndex: 0, Slice: 1},
			&NullSliceError{SetIndex: 0, Slice: 3},
		))
	})

	It("should not resolve surplus slices", func() {
		slices := []*pageset.Set{
			pageset.Of(0), pageset.Of(1), pageset.Of(2), pageset.Of(3),
			pageset.Of(4, 5),
		}
		splitter.EXPECT().Split(8, 2).Return(partition(2, 8, slices...))
		expectTimes(map[*pageset.Set]int{
			slices[0]: 3, slices[1]: 2, slices[2]: 1, slices[3]: 0,
		})

		res, err := mapper.MapSetIndex(2)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Pages).To(Equal([]int{3, 2, 1, 0, -1, -1, -1, -1}))
		Expect(res.Errors).To(Equal([]error{
			&SurplusSliceError{SetIndex: 2, Slice: 4, Pages: 2},
		}))
	})

	It("should fail when pinning fails", func() {
		failing := NewMockPinner(mockCtrl)
		failing.EXPECT().Pin(0).Return(errors.New("no such core"))
		mapper = NewMapper(prober, failing, splitter, 8, mapper.Config())

		_, err := mapper.MapSetIndex(0)

		Expect(err).To(MatchError("no such core"))
	})

	It("should pin home before splitting", func() {
		cfg := mapper.Config()
		cfg.HomeCore = 2
		ordered := NewMockPinner(mockCtrl)
		mapper = NewMapper(prober, ordered, splitter, 8, cfg)

		gomock.InOrder(
			ordered.EXPECT().Pin(2).Return(nil),
			splitter.EXPECT().Split(8, 1).Return(partition(1, 8)),
		)

		res, err := mapper.MapSetIndex(1)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Resolved()).To(BeZero())
		Expect(res.Errors).To(HaveLen(8))
	})
})

var _ = Describe("SetIndexOf", func() {
	It("should find the set-index of every mapper hook", func() {
		Expect(SetIndexOf(hooking.HookCtx{Item: 3})).To(Equal(3))
		Expect(SetIndexOf(hooking.HookCtx{Item: SliceTiming{SetIndex: 4}})).
			To(Equal(4))
		Expect(SetIndexOf(hooking.HookCtx{Item: &SetIndexMap{SetIndex: 5}})).
			To(Equal(5))
		Expect(SetIndexOf(hooking.HookCtx{
			Item:   &NullSliceError{SetIndex: 6},
			Detail: 6,
		})).To(Equal(6))
		Expect(SetIndexOf(hooking.HookCtx{Item: "x"})).To(BeNil())
	})
})
