package app

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints recent price observations from the history file.
func (a *App) Show(opts ShowOptions) error {
	entries, err := a.historyFile().Load()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "no observations found")
		return nil
	}

	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[len(entries)-opts.Limit:]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tBuy\tSell\tSpread%")

	for _, entry := range entries {
		spread := "-"
		if entry.Buy.Sign() > 0 {
			spread = entry.Sell.Sub(entry.Buy).Div(entry.Buy).Mul(hundred).StringFixed(2)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\n",
			entry.Time.UTC().Format(time.RFC3339),
			entry.Buy.StringFixed(2),
			entry.Sell.StringFixed(2),
			spread,
		)
	}

	writer.Flush()
	return nil
}
