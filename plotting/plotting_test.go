package plotting

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/llcmap/coremap"
	"github.com/sarchlab/llcmap/hooking"
	"github.com/sarchlab/llcmap/latency"
)

var _ = Describe("Hook", func() {
	var (
		dir  string
		opts Options
		hist *latency.Histogram
	)

	timed := func(h *Hook, si, slice, core int) {
		h.Func(hooking.HookCtx{
			Pos: coremap.HookPosSliceTimed,
			Item: coremap.SliceTiming{
				SetIndex:  si,
				Slice:     slice,
				Core:      core,
				Histogram: hist,
			},
		})
	}

	read := func(name string) string {
		b, err := os.ReadFile(filepath.Join(dir, name))
		Expect(err).NotTo(HaveOccurred())

		return string(b)
	}

	BeforeEach(func() {
		dir = filepath.Join(GinkgoT().TempDir(), "Map")
		opts = Options{Dir: dir, Cores: 2, Threshold: 5, YMax: 8}

		hist = latency.NewHistogram()
		hist.Add(2)
		hist.Add(2)
		hist.Add(4)
		hist.Add(700)
	})

	It("should create the directory", func() {
		_, err := NewHook(opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(dir).To(BeADirectory())
	})

	It("should write one panel per slice and core", func() {
		h, err := NewHook(opts)
		Expect(err).NotTo(HaveOccurred())

		h.Func(hooking.HookCtx{Pos: coremap.HookPosSetIndexStart, Item: 0x1a})
		timed(h, 0x1a, 0, 0)
		timed(h, 0x1a, 0, 1)
		h.Func(hooking.HookCtx{
			Pos:  coremap.HookPosSetIndexMapped,
			Item: &coremap.SetIndexMap{SetIndex: 0x1a},
		})

		Expect(h.Err()).NotTo(HaveOccurred())

		script := read("Index-01a.plot")
		Expect(script).To(HavePrefix(
			"set term pdfcairo size 11.7,8.27\n" +
				"set xrange [0:5]\n" +
				"set style fill solid noborder\n" +
				"set yrange [0:8]\n" +
				"set multiplot layout 2,2 title 'Set index 0x01a'\n"))
		Expect(script).To(ContainSubstring(
			"set title 'Slice 0, Core 1'\nunset key\n" +
				"plot '-' using 1:2 with boxes notitle\n" +
				"1 0\n2 2\n3 0\n4 1\ne\n"))
		Expect(strings.Count(script, "plot '-'")).To(Equal(2))
		Expect(script).To(HaveSuffix("unset multiplot\n"))
	})

	It("should start a new script per set-index", func() {
		h, err := NewHook(opts)
		Expect(err).NotTo(HaveOccurred())

		h.Func(hooking.HookCtx{Pos: coremap.HookPosSetIndexStart, Item: 1})
		timed(h, 1, 0, 0)
		h.Func(hooking.HookCtx{Pos: coremap.HookPosSetIndexStart, Item: 2})
		Expect(h.Close()).To(Succeed())

		Expect(read(ScriptName(1))).To(ContainSubstring("Slice 0, Core 0"))
		Expect(read(ScriptName(2))).NotTo(ContainSubstring("Slice"))
	})

	It("should ignore timings outside a set-index", func() {
		h, err := NewHook(opts)
		Expect(err).NotTo(HaveOccurred())

		timed(h, 3, 0, 0)

		Expect(h.Err()).NotTo(HaveOccurred())
		Expect(filepath.Join(dir, ScriptName(3))).NotTo(BeAnExistingFile())
	})

	It("should render images", func() {
		opts.PNG = true
		h, err := NewHook(opts)
		Expect(err).NotTo(HaveOccurred())

		h.Func(hooking.HookCtx{Pos: coremap.HookPosSetIndexStart, Item: 4})
		timed(h, 4, 1, 0)
		Expect(h.Close()).To(Succeed())

		Expect(h.Err()).NotTo(HaveOccurred())
		Expect(filepath.Join(dir, ImageName(4, 1, 0))).To(BeAnExistingFile())
	})

	It("should report the values of the plotted buckets", func() {
		Expect(bucketValues(hist, 5)).To(HaveLen(4))
		Expect(bucketValues(hist, 5)[1]).To(Equal(2.0))
	})
})
