package cli

import (
	"github.com/spf13/cobra"

	"bead-road-feed/internal/app"
)

var (
	exportFromHeight uint64
	exportToHeight   uint64
	exportPNGPath    string
	exportCSVPath    string
	exportMaxPoints  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export archived outcomes as CSV and/or PNG ratio chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}

		if cmd.Flags().Changed("from-height") {
			from := exportFromHeight
			opts.FromHeight = &from
		}
		if cmd.Flags().Changed("to-height") {
			to := exportToHeight
			opts.ToHeight = &to
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().Uint64Var(&exportFromHeight, "from-height", 0, "Start block height (inclusive)")
	exportCmd.Flags().Uint64Var(&exportToHeight, "to-height", 0, "End block height (inclusive, defaults to latest archived)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG ratio chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
