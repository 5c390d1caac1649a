// Package cmd provides the command-line interface of llcmap.
package cmd

import (
	"fmt"

	"github.com/sarchlab/llcmap/config"
	"github.com/sarchlab/llcmap/platform"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var (
	cfg     config.Config
	envFile string
	detect  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "llcmap",
	Short: "llcmap finds which core owns each last-level cache slice.",
	Long: `llcmap builds eviction sets over a huge-page buffer, times every ` +
		`slice from every core and prints, for every set-index, the core ` +
		`that each page of the buffer maps to.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&envFile, "env-file", "", "read LLCMAP_* settings from this file")
	pf.BoolVar(&detect, "detect", false, "take the core count and stride from the host")
	config.Default().AddFlags(pf)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	base := config.Default()
	if simulated(cmd) {
		base = config.Simulation()
	}

	c, err := config.Load(base, envFile)
	if err != nil {
		return err
	}

	if detect {
		h, err := platform.DetectHost()
		if err != nil {
			return fmt.Errorf("detecting host: %w", err)
		}

		c = c.WithHost(h)
	}

	if err := c.ApplyFlags(cmd.Flags()); err != nil {
		return err
	}

	if err := c.Validate(); err != nil {
		return err
	}

	cfg = c

	return nil
}

func simulated(cmd *cobra.Command) bool {
	if cmd.Flags().Lookup("simulate") == nil {
		return false
	}

	sim, err := cmd.Flags().GetBool("simulate")

	return err == nil && sim
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}
}
