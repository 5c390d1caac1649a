package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sarchlab/llcmap/coremap"
	"github.com/sarchlab/llcmap/datarecording"
	"github.com/spf13/cobra"
)

var showRunID string

var showCmd = &cobra.Command{
	Use:   "show FILE",
	Short: "Print the pages per core of a map or of a recording database.",
	Long: `Print the pages per core of a map or of a recording database.

Line i of a text map is read as set-index i. Maps of a partial
--set-index selection keep their set-indices only in a recording
database, so map them with --record and show the .sqlite3 file.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadMap(cmd, args[0])
		if err != nil {
			return err
		}

		printMapStats(cmd.OutOrStdout(), m)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().StringVar(&showRunID, "run", "",
		"run id to load from a recording database (default the first run)")
}

func loadMap(cmd *cobra.Command, file string) (*coremap.CoreMap, error) {
	if strings.HasSuffix(file, ".sqlite3") {
		reader, err := datarecording.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer reader.Close()

		m, runID, err := coremap.LoadRecordedMap(cmd.Context(), reader, showRunID)
		if err != nil {
			return nil, err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "Run %s\n", runID)

		return m, nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return coremap.ReadCoreMap(f)
}

func printMapStats(out io.Writer, m *coremap.CoreMap) {
	total := m.Stats()
	cores := total.Cores()

	fmt.Fprintf(out, "Set-index")
	for _, core := range cores {
		fmt.Fprintf(out, " %7s", fmt.Sprintf("core%d", core))
	}
	fmt.Fprintf(out, " %7s\n", "unres")

	for _, si := range m.SetIndices() {
		row := m.RowStats(si)

		fmt.Fprintf(out, "0x%03x    ", si)
		for _, core := range cores {
			fmt.Fprintf(out, " %7d", row.PerCore[core])
		}
		fmt.Fprintf(out, " %7d\n", row.Unresolved)
	}

	fmt.Fprintf(out, "total    ")
	for _, core := range cores {
		fmt.Fprintf(out, " %7d", total.PerCore[core])
	}
	fmt.Fprintf(out, " %7d\n", total.Unresolved)
}
