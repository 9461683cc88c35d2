package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"p2p-price-tracker/internal/app"
	"p2p-price-tracker/internal/config"
	"p2p-price-tracker/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	appHandle *app.App

	flagThreshold      float64
	flagAsset          string
	flagFiat           string
	flagPaymentMethods []string
	flagExcludeMethods []string
	flagMinAmount      float64
)

var rootCmd = &cobra.Command{
	Use:   "p2ptracker",
	Short: "Track P2P exchange prices and alert on sudden moves",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle != nil {
			return nil
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		if err := applyOverrides(cmd, cfg); err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger := logging.NewLogger(cfg.Logging)
		appHandle = app.NewApp(cfg, logger)
		return nil
	},
}

// applyOverrides maps explicitly set CLI flags onto the loaded configuration
// and re-validates the result, so a bad flag value fails the same way a bad
// config value does.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("interval") {
		interval, err := flags.GetDuration("interval")
		if err != nil {
			return err
		}
		cfg.Tracker.Interval = interval
	}
	if flags.Changed("threshold") {
		cfg.Tracker.ThresholdPct = flagThreshold
	}
	if flags.Changed("asset") {
		cfg.Market.Asset = flagAsset
	}
	if flags.Changed("fiat") {
		cfg.Market.Fiat = flagFiat
	}
	if flags.Changed("payment-methods") {
		cfg.Filters.PaymentMethods = flagPaymentMethods
	}
	if flags.Changed("exclude-methods") {
		cfg.Filters.ExcludeMethods = flagExcludeMethods
	}
	if flags.Changed("min-amount") {
		cfg.Filters.MinAmount = flagMinAmount
	}

	return cfg.Validate()
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")

	rootCmd.PersistentFlags().Duration("interval", 0, "Polling interval override (e.g. 30s)")
	rootCmd.PersistentFlags().Float64Var(&flagThreshold, "threshold", 0, "Alert threshold percentage override")
	rootCmd.PersistentFlags().StringVar(&flagAsset, "asset", "", "Crypto asset override (e.g. USDT)")
	rootCmd.PersistentFlags().StringVar(&flagFiat, "fiat", "", "Fiat currency override (e.g. VES)")
	rootCmd.PersistentFlags().StringSliceVar(&flagPaymentMethods, "payment-methods", nil, "Allowed payment methods override")
	rootCmd.PersistentFlags().StringSliceVar(&flagExcludeMethods, "exclude-methods", nil, "Excluded payment methods override")
	rootCmd.PersistentFlags().Float64Var(&flagMinAmount, "min-amount", 0, "Minimum transaction amount override")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(simulateCmd)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}
