package cli

import (
	"github.com/spf13/cobra"

	"p2p-price-tracker/internal/app"
)

var (
	simulateSide   string
	simulateChange float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic alert through the configured notifier",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SimulateOptions{
			Side:      simulateSide,
			ChangePct: simulateChange,
		}
		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSide, "side", "BUY", "Market side to simulate (BUY or SELL)")
	simulateCmd.Flags().Float64Var(&simulateChange, "change", 0, "Simulated change percentage (defaults to the alert threshold)")
}
