package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"bead-road-feed/internal/app"
)

var (
	backfillFromHeight uint64
	backfillToHeight   uint64
	backfillDryRun     bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Backfill historical outcome records",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("from-height") || !cmd.Flags().Changed("to-height") {
			return fmt.Errorf("--from-height and --to-height must be provided")
		}
		if backfillFromHeight > backfillToHeight {
			return fmt.Errorf("--from-height must not exceed --to-height")
		}

		opts := app.BackfillOptions{
			FromHeight: backfillFromHeight,
			ToHeight:   backfillToHeight,
			DryRun:     backfillDryRun,
		}

		return getApp().Backfill(cmd.Context(), opts)
	},
}

func init() {
	backfillCmd.Flags().Uint64Var(&backfillFromHeight, "from-height", 0, "Start block height (inclusive)")
	backfillCmd.Flags().Uint64Var(&backfillToHeight, "to-height", 0, "End block height (inclusive)")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Run without writing to storage")
}
