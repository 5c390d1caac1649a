package pageset

import (
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Set", func() {
	It("should pop what was pushed", func() {
		s := New()
		s.Push(7)

		Expect(s.Pop()).To(Equal(7))
		Expect(s.Size()).To(Equal(0))
	})

	It("should return None when popping an empty set", func() {
		Expect(New().Pop()).To(Equal(None))
	})

	It("should return None for out-of-range positions", func() {
		s := Of(1, 2)

		Expect(s.Get(2)).To(Equal(None))
		Expect(s.Get(-1)).To(Equal(None))
	})

	It("should ignore out-of-range writes", func() {
		s := Of(1, 2)
		s.Set(5, 9)
		s.Set(1, 9)

		Expect(s.Pages()).To(Equal([]int{1, 9}))
	})

	It("should leave the size unchanged when removing a missing page", func() {
		s := Of(1, 2, 3)
		s.Remove(4)

		Expect(s.Size()).To(Equal(3))
		Expect(s.Pages()).To(ConsistOf(1, 2, 3))
	})

	It("should move the last page into the hole on remove", func() {
		s := Of(1, 2, 3, 4)
		s.Remove(2)

		Expect(s.Pages()).To(Equal([]int{1, 4, 3}))
	})

	It("should remove the last page", func() {
		s := Of(1, 2, 3)
		s.Remove(3)

		Expect(s.Pages()).To(Equal([]int{1, 2}))
	})

	It("should subtract sets", func() {
		a := Of(1, 2, 3, 4, 5)
		b := Of(2, 4, 6)

		a.RemoveSet(b)

		Expect(a.Size()).To(Equal(3))
		Expect(a.Pages()).To(ConsistOf(1, 3, 5))
	})

	It("should deep copy on dup", func() {
		a := Of(1, 2)
		b := a.Dup()
		b.Push(3)
		b.Set(0, 9)

		Expect(a.Pages()).To(Equal([]int{1, 2}))
		Expect(b.Pages()).To(Equal([]int{9, 2, 3}))
	})

	It("should move content and empty the source", func() {
		a := Of(1, 2)
		b := Of(5)

		b.MoveFrom(a)

		Expect(b.Pages()).To(Equal([]int{1, 2}))
		Expect(a.Size()).To(Equal(0))
	})

	It("should replace values", func() {
		s := Of(1, 2, 1)
		s.Replace(1, 8)

		Expect(s.Pages()).To(Equal([]int{8, 2, 8}))
	})

	It("should shuffle without losing pages and sort back", func() {
		s := Range(100)
		s.Shuffle(rand.New(rand.NewPCG(3, 4)))

		Expect(s.Pages()).To(ConsistOf(Range(100).Pages()))

		s.Sort()
		Expect(s.Pages()).To(Equal(Range(100).Pages()))
	})

	It("should clear", func() {
		s := Of(1, 2)
		s.Clear()

		Expect(s.Size()).To(Equal(0))
		Expect(s.Contains(1)).To(BeFalse())
	})
})
