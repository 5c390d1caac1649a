package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/sarchlab/llcmap/config"
	"github.com/sarchlab/llcmap/coremap"
	"github.com/sarchlab/llcmap/datarecording"
	"github.com/sarchlab/llcmap/evset"
	"github.com/sarchlab/llcmap/hooking"
	"github.com/sarchlab/llcmap/monitoring"
	"github.com/sarchlab/llcmap/plotting"
	"github.com/spf13/cobra"
)

type mapOptions struct {
	simulate    bool
	output      string
	setIndices  []string
	record      bool
	recordFile  string
	monitor     bool
	monitorPort int
	openMonitor bool
	plotDir     string
	plotPNG     bool
	quiet       bool
	errorsOnly  bool
	physReport  bool
}

var mapOpts mapOptions

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Map every page of the buffer to a core.",
	Long: `map splits the buffer into slices at every set-index, times every ` +
		`slice from every core and prints one line per set-index with the ` +
		`core of every page, '/' for pages that could not be resolved.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		if mapOpts.output != "" {
			f, err := os.Create(mapOpts.output)
			if err != nil {
				return err
			}
			defer f.Close()

			out = f
		}

		return runMap(ctx, cfg, mapOpts, out, cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(mapCmd)

	f := mapCmd.Flags()
	f.BoolVar(&mapOpts.simulate, "simulate", false,
		"map a simulated cache instead of the hardware")
	f.StringVarP(&mapOpts.output, "output", "o", "",
		"write the map to this file instead of stdout")
	f.StringSliceVar(&mapOpts.setIndices, "set-index", nil,
		"set-indices or ranges to map, such as 0x10 or 0-0x3f (default all)")
	f.BoolVar(&mapOpts.record, "record", false,
		"record slice timings and map rows into SQLite")
	f.StringVar(&mapOpts.recordFile, "record-file", "",
		"name of the recording database, without the .sqlite3 suffix")
	f.BoolVar(&mapOpts.monitor, "monitor", false,
		"serve the progress over HTTP")
	f.IntVar(&mapOpts.monitorPort, "monitor-port", 0,
		"port of the monitoring server (default random)")
	f.BoolVar(&mapOpts.openMonitor, "open-monitor", false,
		"open the monitoring server in a browser")
	f.StringVar(&mapOpts.plotDir, "plot-dir", "",
		"write gnuplot scripts of the latency histograms to this directory")
	f.BoolVar(&mapOpts.plotPNG, "plot-png", false,
		"also render the histograms as PNG images")
	f.BoolVarP(&mapOpts.quiet, "quiet", "q", false,
		"do not print the latency report")
	f.BoolVar(&mapOpts.errorsOnly, "errors-only", false,
		"print only the errors of the latency report")
	f.BoolVar(&mapOpts.physReport, "phys-report", false,
		"print the physical address of every huge page")
}

func runMap(
	ctx context.Context,
	c config.Config,
	opts mapOptions,
	out, errOut io.Writer,
) error {
	sis, err := parseSetIndices(opts.setIndices, c.Geometry().SetIndexLines())
	if err != nil {
		return err
	}

	s, err := openSession(c, opts.simulate)
	if err != nil {
		return err
	}
	defer s.Close()

	logger := log.New(errOut, "", 0)

	if !opts.record && !isPrefix(sis) {
		logger.Printf("Warning: text maps are read back as set-indices 0 "+
			"to %d, use --record to keep the selected set-indices", len(sis)-1)
	}

	if opts.physReport {
		if err := reportHugePages(s, logger); err != nil {
			return err
		}
	}

	builder := evset.NewBuilder(s.probe, c.Builder())
	mapper := coremap.NewMapper(s.probe, s.pinner, builder, s.buf.Pages(),
		c.Mapper())

	events := hooking.NewPosCounter()
	builder.AcceptHook(events)
	mapper.AcceptHook(events)

	timer := hooking.NewPhaseTimer(hooking.WallClock,
		coremap.HookPosSetIndexStart, coremap.HookPosSetIndexMapped).
		WithKey(coremap.SetIndexOf)
	mapper.AcceptHook(timer)

	if !opts.quiet {
		report := coremap.NewReportHook(logger)
		if opts.errorsOnly {
			report = coremap.NewErrorReportHook(logger)
		}

		builder.AcceptHook(report)
		mapper.AcceptHook(report)
	}

	closers, err := attachOutputs(c, opts, builder, mapper, len(sis))
	if err != nil {
		return err
	}

	defer func() {
		for _, closeFn := range closers {
			if cerr := closeFn(); cerr != nil {
				logger.Printf("Error %v", cerr)
			}
		}
	}()

	cm, mapErr := mapper.MapAll(ctx, sis)

	if _, err := cm.WriteTo(out); err != nil {
		return err
	}

	printSummary(logger, cm, events, timer)

	return mapErr
}

// isPrefix tells if sis is 0, 1, 2 and so on.
func isPrefix(sis []int) bool {
	for i, si := range sis {
		if si != i {
			return false
		}
	}

	return true
}

func attachOutputs(
	c config.Config,
	opts mapOptions,
	builder *evset.Builder,
	mapper *coremap.Mapper,
	numSetIndices int,
) ([]func() error, error) {
	var closers []func() error

	if opts.record {
		recorder := datarecording.New(opts.recordFile)
		mapper.AcceptHook(coremap.NewRecordingHook(recorder))
		closers = append(closers, recorder.Close)
	}

	if opts.plotDir != "" {
		plotOpts := plotting.DefaultOptions(opts.plotDir)
		plotOpts.Cores = c.Cores
		plotOpts.Threshold = c.Threshold
		plotOpts.YMax = c.CoreRounds / 2
		plotOpts.PNG = opts.plotPNG

		plots, err := plotting.NewHook(plotOpts)
		if err != nil {
			return closers, err
		}

		mapper.AcceptHook(plots)
		closers = append(closers, plots.Close, plots.Err)
	}

	if opts.monitor {
		m := monitoring.NewMonitor()
		if opts.monitorPort != 0 {
			m.WithPortNumber(opts.monitorPort)
		}

		m.ExpectSetIndices(numSetIndices)
		builder.AcceptHook(m)
		mapper.AcceptHook(m)
		m.StartServer()

		if opts.openMonitor {
			if err := m.OpenInBrowser(); err != nil {
				return closers, err
			}
		}
	}

	return closers, nil
}

func reportHugePages(s *session, logger *log.Logger) error {
	addrs, err := s.hugePageAddresses()
	if err != nil {
		return err
	}

	for i, a := range addrs {
		logger.Printf("Huge page %d: virtual 0x%x physical 0x%x", i, a[0], a[1])
	}

	return nil
}

func printSummary(
	logger *log.Logger,
	cm *coremap.CoreMap,
	events *hooking.PosCounter,
	timer *hooking.PhaseTimer,
) {
	stats := cm.Stats()

	logger.Printf("Mapped %d set-indices in %v (%v each)",
		stats.SetIndices, timer.TotalTime(), timer.AverageTime())
	logger.Printf("Pages: %d, unresolved: %d", stats.Pages, stats.Unresolved)

	for _, core := range stats.Cores() {
		logger.Printf("Core %d: %d pages", core, stats.PerCore[core])
	}

	for _, pos := range []*hooking.HookPos{
		evset.HookPosDoubleConflict,
		evset.HookPosSliceFull,
		evset.HookPosQuickSet,
		coremap.HookPosResolutionError,
	} {
		if n := events.Count(pos); n > 0 {
			logger.Printf("%s: %d", pos.Name, n)
		}
	}
}

// parseSetIndices expands a list of set-indices and inclusive ranges. An
// empty list selects all n set-indices.
func parseSetIndices(list []string, n int) ([]int, error) {
	if len(list) == 0 {
		sis := make([]int, n)
		for i := range sis {
			sis[i] = i
		}

		return sis, nil
	}

	var sis []int

	for _, item := range list {
		lo, hi, isRange := strings.Cut(item, "-")
		if !isRange {
			hi = lo
		}

		first, err := strconv.ParseInt(strings.TrimSpace(lo), 0, 32)
		if err != nil {
			return nil, fmt.Errorf("set-index %q: %w", item, err)
		}

		last, err := strconv.ParseInt(strings.TrimSpace(hi), 0, 32)
		if err != nil {
			return nil, fmt.Errorf("set-index %q: %w", item, err)
		}

		if first < 0 || last < first || int(last) >= n {
			return nil, fmt.Errorf("set-index %q outside 0-0x%x", item, n-1)
		}

		for si := int(first); si <= int(last); si++ {
			sis = append(sis, si)
		}
	}

	return sis, nil
}
