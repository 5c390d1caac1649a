// Package plotting writes the latency histograms of every slice seen from
// every core, one gnuplot script per set-index.
package plotting

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sarchlab/llcmap/coremap"
	"github.com/sarchlab/llcmap/hooking"
	"github.com/sarchlab/llcmap/latency"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Options controls what the Hook writes.
type Options struct {
	// Dir is where the files go. It is created if missing.
	Dir string

	// Cores sets the layout of the multiplot, Cores by Cores.
	Cores int

	// Threshold is the upper end of the x axis. Buckets 1..Threshold-1 are
	// plotted.
	Threshold int

	// YMax is the upper end of the y axis.
	YMax int

	// PNG also renders every histogram as an image.
	PNG bool
}

// DefaultOptions returns the layout of a six-core part measured with
// 100000 rounds per slice and core.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:       dir,
		Cores:     6,
		Threshold: 100,
		YMax:      50000,
	}
}

// A Hook writes Index-XXX.plot for every mapped set-index.
type Hook struct {
	opts Options

	setIndex int
	file     *os.File
	w        *bufio.Writer
	err      error
}

// NewHook creates a Hook.
func NewHook(opts Options) (*Hook, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, err
	}

	return &Hook{opts: opts, setIndex: -1}, nil
}

// Err returns the first error met while writing.
func (h *Hook) Err() error {
	return h.err
}

// Func follows the mapper.
func (h *Hook) Func(ctx hooking.HookCtx) {
	if h.err != nil {
		return
	}

	switch ctx.Pos {
	case coremap.HookPosSetIndexStart:
		h.err = h.open(ctx.Item.(int))
	case coremap.HookPosSliceTimed:
		h.err = h.plot(ctx.Item.(coremap.SliceTiming))
	case coremap.HookPosSetIndexMapped:
		h.err = h.Close()
	}
}

// ScriptName returns the name of the gnuplot script of a set-index.
func ScriptName(si int) string {
	return fmt.Sprintf("Index-%03x.plot", si)
}

// ImageName returns the name of the image of one slice and core.
func ImageName(si, slice, core int) string {
	return fmt.Sprintf("Index-%03x-slice%d-core%d.png", si, slice, core)
}

func (h *Hook) open(si int) error {
	if err := h.Close(); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(h.opts.Dir, ScriptName(si)))
	if err != nil {
		return err
	}

	h.setIndex = si
	h.file = f
	h.w = bufio.NewWriter(f)

	_, err = fmt.Fprintf(h.w,
		"set term pdfcairo size 11.7,8.27\n"+
			"set xrange [0:%d]\n"+
			"set style fill solid noborder\n"+
			"set yrange [0:%d]\n"+
			"set multiplot layout %d,%d title 'Set index 0x%03x'\n",
		h.opts.Threshold, h.opts.YMax, h.opts.Cores, h.opts.Cores, si)

	return err
}

func (h *Hook) plot(t coremap.SliceTiming) error {
	if h.w == nil || t.SetIndex != h.setIndex {
		return nil
	}

	_, err := fmt.Fprintf(h.w,
		"set title 'Slice %d, Core %d'\nunset key\n"+
			"plot '-' using 1:2 with boxes notitle\n",
		t.Slice, t.Core)
	if err != nil {
		return err
	}

	for i := 1; i < h.opts.Threshold; i++ {
		_, err = fmt.Fprintf(h.w, "%d %d\n", i, t.Histogram.Get(i))
		if err != nil {
			return err
		}
	}

	if _, err = h.w.WriteString("e\n"); err != nil {
		return err
	}

	if h.opts.PNG {
		return h.image(t)
	}

	return nil
}

func (h *Hook) image(t coremap.SliceTiming) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Set index 0x%03x, Slice %d, Core %d",
		t.SetIndex, t.Slice, t.Core)
	p.X.Label.Text = "Cycles"
	p.Y.Label.Text = "Samples"
	p.X.Min = 0
	p.X.Max = float64(h.opts.Threshold)

	bars, err := plotter.NewBarChart(bucketValues(t.Histogram, h.opts.Threshold),
		vg.Points(2))
	if err != nil {
		return err
	}

	bars.XMin = 1
	bars.LineStyle.Width = 0
	p.Add(bars)

	return p.Save(20*vg.Centimeter, 12*vg.Centimeter,
		filepath.Join(h.opts.Dir, ImageName(t.SetIndex, t.Slice, t.Core)))
}

func bucketValues(hist *latency.Histogram, threshold int) plotter.Values {
	vs := make(plotter.Values, 0, threshold-1)
	for i := 1; i < threshold; i++ {
		vs = append(vs, float64(hist.Get(i)))
	}

	return vs
}

// Close ends the script of the current set-index.
func (h *Hook) Close() error {
	if h.file == nil {
		return nil
	}

	_, err := h.w.WriteString("unset multiplot\n")
	if err == nil {
		err = h.w.Flush()
	}

	if cerr := h.file.Close(); err == nil {
		err = cerr
	}

	h.file = nil
	h.w = nil

	return err
}
