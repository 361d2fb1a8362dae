package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List configured sampling rules",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getApp().Config

		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "ID\tLabel\tStep\tOffset\tBeadRows\tDragon\tDefault")
		for _, rule := range cfg.Rules.Presets {
			isDefault := ""
			if rule.ID == cfg.Rules.Default {
				isDefault = "*"
			}
			fmt.Fprintf(writer, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
				rule.ID, rule.Label, rule.Step, rule.Offset, rule.BeadRows, rule.DragonThreshold, isDefault)
		}
		writer.Flush()
	},
}
