package cli

import (
	"github.com/spf13/cobra"

	"p2p-price-tracker/internal/app"
)

var (
	alertsLimit int
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List recently triggered alerts from the audit store",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.AlertsOptions{
			Limit: alertsLimit,
		}
		return getApp().Alerts(cmd.Context(), opts)
	},
}

func init() {
	alertsCmd.Flags().IntVar(&alertsLimit, "limit", 20, "Number of alerts to display")
}
