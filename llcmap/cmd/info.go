package cmd

import (
	"fmt"
	"io"

	"github.com/sarchlab/llcmap/config"
	"github.com/sarchlab/llcmap/platform"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the host and the effective configuration.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		h, err := platform.DetectHost()
		if err != nil {
			return err
		}

		printInfo(cmd.OutOrStdout(), h, cfg)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func printInfo(out io.Writer, h platform.Host, c config.Config) {
	mapping := c.CoreMapping()
	geom := c.Geometry()

	fmt.Fprintf(out, "Processor:        %s %s\n", h.Vendor, h.Brand)
	fmt.Fprintf(out, "Physical cores:   %d (%d threads each)\n",
		h.PhysicalCores, h.ThreadsPerCore)
	fmt.Fprintf(out, "Logical CPUs:     %d (%d online)\n",
		h.LogicalCPUs, h.OnlineCPUs)
	fmt.Fprintf(out, "Cache line:       %d bytes\n", h.CacheLine)
	fmt.Fprintf(out, "L2 / L3:          %d / %d bytes\n", h.L2Size, h.L3Size)
	fmt.Fprintf(out, "RDTSCP / CLFLUSH: %t / %t\n", h.HasRDTSCP, h.HasCLFLUSH)
	fmt.Fprintf(out, "Memory:           %d bytes, %d available\n",
		h.TotalMemory, h.FreeMemory)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Cores mapped:     %d\n", c.Cores)

	for core := 0; core < c.Cores; core++ {
		fmt.Fprintf(out, "  core %d on cpu %d\n", core, mapping.CPU(core))
	}

	fmt.Fprintf(out, "Buffer:           %d bytes, %d pages of %d bytes\n",
		c.BufferSize, c.Pages(), geom.SetIndexSize())
	fmt.Fprintf(out, "Set-indices:      %d\n", geom.SetIndexLines())
	fmt.Fprintf(out, "Threshold:        %d cycles\n", c.Threshold)
}
