package history

import (
	"time"

	"github.com/shopspring/decimal"
)

// Windows are the fixed lookback offsets used for trend reporting.
var Windows = []Window{
	{Label: "15m", Minutes: 15},
	{Label: "30m", Minutes: 30},
	{Label: "1h", Minutes: 60},
}

// Window is a fixed historical offset.
type Window struct {
	Label   string
	Minutes int
}

// Change reports the percentage movement of both sides over one window.
type Change struct {
	Window     Window
	BuyChange  decimal.Decimal
	SellChange decimal.Decimal
	OldBuy     decimal.Decimal
	OldSell    decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Changes compares the current prices against the nearest observation at
// each lookback window. A window is omitted entirely when no observation
// matches within tolerance or when a historical price is zero; it is never
// reported as a zero change.
func (h *History) Changes(currentBuy, currentSell decimal.Decimal, now time.Time) []Change {
	changes := make([]Change, 0, len(Windows))
	for _, w := range Windows {
		old, ok := h.Nearest(w.Minutes, now)
		if !ok {
			continue
		}
		if old.Buy.Sign() <= 0 || old.Sell.Sign() <= 0 {
			continue
		}
		changes = append(changes, Change{
			Window:     w,
			BuyChange:  pctChange(old.Buy, currentBuy),
			SellChange: pctChange(old.Sell, currentSell),
			OldBuy:     old.Buy,
			OldSell:    old.Sell,
		})
	}
	return changes
}

func pctChange(old, current decimal.Decimal) decimal.Decimal {
	return current.Sub(old).Div(old).Mul(hundred)
}
