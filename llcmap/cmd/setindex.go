package cmd

import (
	"fmt"
	"io"

	"github.com/sarchlab/llcmap/config"
	"github.com/spf13/cobra"
)

type setIndexOptions struct {
	simulate bool
	offset   int
}

var setIndexOpts setIndexOptions

var setIndexCmd = &cobra.Command{
	Use:   "setindex",
	Short: "Detect the set-index of a line in a fresh small page.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSetIndex(cfg, setIndexOpts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(setIndexCmd)

	f := setIndexCmd.Flags()
	f.BoolVar(&setIndexOpts.simulate, "simulate", false,
		"probe a simulated cache instead of the hardware")
	f.IntVar(&setIndexOpts.offset, "offset", 0,
		"byte offset of the line in the page")
}

func runSetIndex(c config.Config, opts setIndexOptions, out io.Writer) error {
	s, err := openSession(c, opts.simulate)
	if err != nil {
		return err
	}
	defer s.Close()

	addr, err := s.scratchLine(opts.offset)
	if err != nil {
		return err
	}

	if err := s.pinner.Pin(c.HomeCore); err != nil {
		return err
	}

	si := s.probe.DetectSetIndex(addr)
	if si < 0 {
		return fmt.Errorf("no set-index evicts offset 0x%x", opts.offset)
	}

	fmt.Fprintf(out, "Set-index of offset 0x%03x: 0x%03x\n", opts.offset, si)

	return nil
}
