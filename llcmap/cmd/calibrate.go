package cmd

import (
	"fmt"
	"io"

	"github.com/sarchlab/llcmap/config"
	"github.com/sarchlab/llcmap/latency"
	"github.com/sarchlab/llcmap/platform"
	"github.com/spf13/cobra"
)

type calibrateOptions struct {
	simulate  bool
	setIndex  int
	rounds    int
	histogram bool
}

var calibrateOpts calibrateOptions

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Compare the latency of flushed and evicted lines.",
	Long: `calibrate times a line of the buffer after flushing it and after ` +
		`evicting it through the buffer, which helps choosing the eviction ` +
		`threshold.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCalibrate(cfg, calibrateOpts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(calibrateCmd)

	f := calibrateCmd.Flags()
	f.BoolVar(&calibrateOpts.simulate, "simulate", false,
		"calibrate a simulated cache instead of the hardware")
	f.IntVar(&calibrateOpts.setIndex, "set-index", 0,
		"set-index of the timed line")
	f.IntVar(&calibrateOpts.rounds, "rounds", 100000, "samples per histogram")
	f.BoolVar(&calibrateOpts.histogram, "histogram", false,
		"print every non-empty bucket")
}

func runCalibrate(c config.Config, opts calibrateOptions, out io.Writer) error {
	if opts.setIndex < 0 || opts.setIndex >= c.Geometry().SetIndexLines() {
		return fmt.Errorf("set-index 0x%x outside 0-0x%x",
			opts.setIndex, c.Geometry().SetIndexLines()-1)
	}

	if opts.rounds < 1 {
		return fmt.Errorf("rounds must be positive, got %d", opts.rounds)
	}

	s, err := openSession(c, opts.simulate)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.pinner.Pin(c.HomeCore); err != nil {
		return err
	}

	addr := s.buf.Line(0, opts.setIndex)
	h := latency.NewHistogram()

	s.probe.FlushLatency(addr, h, opts.rounds)
	printLatency(out, "Flush", h, c.MeanScale, opts.histogram)

	s.probe.EvictLatency(addr, opts.setIndex, h, opts.rounds)
	printLatency(out, "Evict", h, c.MeanScale, opts.histogram)

	fmt.Fprintf(out, "Threshold: %d\n", c.Threshold)

	if s.llc == nil {
		fmt.Fprintf(out, "TSC overhead: %d cycles\n", platform.TSCOverhead())
	}

	return nil
}

func printLatency(
	out io.Writer,
	name string,
	h *latency.Histogram,
	scale int,
	buckets bool,
) {
	mean := h.Mean(scale)

	fmt.Fprintf(out, "%s latency: median %d, mean %d.%0*d, outliers %d\n",
		name, h.Median(), mean/scale, digits(scale), mean%scale, h.Outliers())

	if !buckets {
		return
	}

	for t, n := range h.Buckets() {
		if n > 0 {
			fmt.Fprintf(out, "%d %d\n", t+1, n)
		}
	}
}

// digits returns the number of decimals of a power of ten.
func digits(scale int) int {
	d := 0
	for ; scale > 1; scale /= 10 {
		d++
	}

	return d
}
