package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"bead-road-feed/internal/app"
)

var (
	simulateKind   string
	simulateLength int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一条长龙并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateLength <= 0 {
			return errors.New("--length 必须大于 0")
		}

		opts := app.SimulateOptions{
			Kind:   simulateKind,
			Length: simulateLength,
		}
		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateKind, "kind", "odd", "连串类型 (odd|even|big|small)")
	simulateCmd.Flags().IntVar(&simulateLength, "length", 7, "连串长度")
}
