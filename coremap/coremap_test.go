package coremap

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("CoreMap", func() {
	var m *CoreMap

	BeforeEach(func() {
		m = NewCoreMap(5)
		m.Add(0, []int{0, 1, -1, 2, 0})
		m.Add(1, []int{3, 3, 3, -1, -1})
	})

	It("should write one line per set-index", func() {
		var buf bytes.Buffer

		n, err := m.WriteTo(&buf)

		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(Equal("01/20\n333//\n"))
		Expect(n).To(Equal(int64(12)))
	})

	It("should read what it writes", func() {
		var buf bytes.Buffer
		_, err := m.WriteTo(&buf)
		Expect(err).NotTo(HaveOccurred())

		read, err := ReadCoreMap(&buf)

		Expect(err).NotTo(HaveOccurred())
		Expect(read.NumPages()).To(Equal(5))
		Expect(read.SetIndices()).To(Equal([]int{0, 1}))
		Expect(read.Row(0)).To(Equal(m.Row(0)))
		Expect(read.Row(1)).To(Equal(m.Row(1)))
	})

	It("should reject ragged lines", func() {
		_, err := ReadCoreMap(strings.NewReader("0101\n01\n"))

		Expect(err).To(MatchError(ContainSubstring("line 2")))
	})

	It("should reject invalid characters", func() {
		_, err := ReadCoreMap(strings.NewReader("01 1\n"))

		Expect(err).To(HaveOccurred())
	})

	It("should read an empty map", func() {
		read, err := ReadCoreMap(strings.NewReader(""))

		Expect(err).NotTo(HaveOccurred())
		Expect(read.Stats().SetIndices).To(BeZero())
	})

	It("should look up cores", func() {
		Expect(m.Core(0, 3)).To(Equal(2))
		Expect(m.Core(1, 4)).To(Equal(-1))
		Expect(m.Core(2, 0)).To(Equal(-1))
		Expect(m.Core(0, 9)).To(Equal(-1))
	})

	It("should count pages", func() {
		s := m.Stats()

		Expect(s.SetIndices).To(Equal(2))
		Expect(s.Pages).To(Equal(10))
		Expect(s.Unresolved).To(Equal(3))
		Expect(s.PerCore).To(Equal(map[int]int{0: 2, 1: 1, 2: 1, 3: 3}))
		Expect(s.Cores()).To(Equal([]int{0, 1, 2, 3}))

		r := m.RowStats(1)
		Expect(r.PerCore).To(Equal(map[int]int{3: 3}))
		Expect(r.Unresolved).To(Equal(2))
	})

	It("should panic on rows of the wrong width", func() {
		Expect(func() { m.Add(2, []int{0}) }).To(Panic())
	})
})
