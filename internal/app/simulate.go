package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"p2p-price-tracker/internal/alerting"
	"p2p-price-tracker/internal/offers"
)

// SimulateAlert pushes a synthetic alert through the configured notifier
// so channel credentials and formatting can be verified end to end.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("telegram notifier not enabled")
	}

	side, err := parseSide(opts.Side)
	if err != nil {
		return err
	}

	change := decimal.NewFromFloat(opts.ChangePct)
	if change.IsZero() {
		change = decimal.NewFromFloat(a.Config.Tracker.ThresholdPct)
	}

	old := decimal.NewFromInt(100)
	factor := decimal.NewFromInt(1).Add(change.Div(hundred))
	alert := alerting.Alert{
		Side:      side,
		ChangePct: change,
		OldPrice:  old,
		NewPrice:  old.Mul(factor),
		Time:      time.Now().UTC(),
		Trader: &alerting.TraderSnapshot{
			Nickname:       "simulated-trader",
			MonthOrders:    100,
			Available:      decimal.NewFromInt(1000),
			PaymentMethods: []string{"PagoMovil"},
		},
	}

	a.Logger.Info().Str("side", string(side)).Str("change_pct", change.StringFixed(2)).Msg("sending simulated alert")
	return notifier.SendAlert(ctx, alert)
}

func parseSide(v string) (offers.Side, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "BUY", "":
		return offers.Buy, nil
	case "SELL":
		return offers.Sell, nil
	default:
		return "", fmt.Errorf("unknown side %q (want BUY or SELL)", v)
	}
}
