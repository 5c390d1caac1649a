package simllc

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tags", func() {
	var tags *tagArray

	BeforeEach(func() {
		tags = newTagArray(4, 2)
	})

	It("should not find anything after reset", func() {
		_, found := tags.lookup(0, 0x100)
		Expect(found).To(BeFalse())
	})

	It("should lookup", func() {
		tags.update(block{Tag: 0x100, SetID: 1, WayID: 1, IsValid: true})

		b, found := tags.lookup(1, 0x100)

		Expect(found).To(BeTrue())
		Expect(b.WayID).To(Equal(1))
	})

	It("should pick invalid blocks as victims first", func() {
		tags.update(block{Tag: 0x100, SetID: 0, WayID: 0, IsValid: true})

		Expect(tags.findVictim(0).WayID).To(Equal(1))
	})

	It("should pick the least recently used block", func() {
		tags.update(block{Tag: 0x100, SetID: 0, WayID: 0, IsValid: true})
		tags.update(block{Tag: 0x200, SetID: 0, WayID: 1, IsValid: true})
		tags.visit(block{SetID: 0, WayID: 0})

		Expect(tags.findVictim(0).Tag).To(Equal(uint64(0x200)))
		Expect(tags.Sets[0].LRUQueue).To(Equal([]int{1, 0}))
	})

	It("should invalidate", func() {
		tags.update(block{Tag: 0x100, SetID: 2, WayID: 0, IsValid: true})

		Expect(tags.invalidate(2, 0x100)).To(BeTrue())
		Expect(tags.invalidate(2, 0x100)).To(BeFalse())

		_, found := tags.lookup(2, 0x100)
		Expect(found).To(BeFalse())
	})
})
