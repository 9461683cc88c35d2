package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"p2p-price-tracker/internal/history"
)

var hundred = decimal.NewFromInt(100)

// Export renders recorded price history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = 500
	}

	entries, err := a.historyFile().Load()
	if err != nil {
		return err
	}

	entries = clampWindow(entries, opts.From, opts.To)
	if len(entries) == 0 {
		a.Logger.Info().Msg("no observations found for export window")
		return nil
	}

	downsampled := downsample(entries, opts.MaxPoints)
	a.Logger.Info().Int("total", len(entries)).Int("exported", len(downsampled)).Msg("exporting observations")

	if opts.CSVPath != "" {
		if err := writeCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writePNG(opts.PNGPath, a.Config.Market.Asset, a.Config.Market.Fiat, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func clampWindow(entries []history.Observation, from, to *time.Time) []history.Observation {
	result := entries[:0:0]
	for _, entry := range entries {
		if from != nil && entry.Time.Before(from.UTC()) {
			continue
		}
		if to != nil && entry.Time.After(to.UTC()) {
			continue
		}
		result = append(result, entry)
	}
	return result
}

func downsample(entries []history.Observation, max int) []history.Observation {
	if max <= 0 || len(entries) <= max {
		return entries
	}

	result := make([]history.Observation, 0, max)
	step := float64(len(entries)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(entries) {
			idx = len(entries) - 1
		}
		result = append(result, entries[idx])
	}
	return result
}

func writeCSV(path string, entries []history.Observation) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "buy_price", "sell_price", "spread_pct"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, entry := range entries {
		spread := ""
		if entry.Buy.Sign() > 0 {
			spread = entry.Sell.Sub(entry.Buy).Div(entry.Buy).Mul(hundred).StringFixed(4)
		}
		record := []string{
			entry.Time.Format(time.RFC3339),
			entry.Buy.String(),
			entry.Sell.String(),
			spread,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writePNG(path, asset, fiat string, entries []history.Observation) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(entries))
	buy := make([]float64, len(entries))
	sell := make([]float64, len(entries))

	for i, entry := range entries {
		x[i] = entry.Time
		buy[i] = entry.Buy.InexactFloat64()
		sell[i] = entry.Sell.InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (" + fiat + "/" + asset + ")",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Buy",
				XValues: x,
				YValues: buy,
			},
			chart.TimeSeries{
				Name:    "Sell",
				XValues: x,
				YValues: sell,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
