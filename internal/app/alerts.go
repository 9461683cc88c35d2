package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Alerts prints recently triggered alerts from the audit store.
func (a *App) Alerts(ctx context.Context, opts AlertsOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot list alerts")
	}
	if closeStore != nil {
		defer closeStore()
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	alerts, err := store.ListRecentAlerts(ctx, limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts recorded")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Triggered (UTC)\tSide\tChange%\tOld\tNew\tTrader")

	for _, alert := range alerts {
		trader := "-"
		if alert.Trader != nil {
			trader = *alert.Trader
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			alert.TriggeredAt.UTC().Format(time.RFC3339),
			alert.Side,
			alert.ChangePct.StringFixed(2),
			alert.OldPrice.StringFixed(2),
			alert.NewPrice.StringFixed(2),
			trader,
		)
	}

	writer.Flush()
	return nil
}
