package console

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"p2p-price-tracker/internal/alerting"
	"p2p-price-tracker/internal/offers"
)

// Display renders the tracker status as plain text. The writer is injected
// so tests can capture output; production passes os.Stdout.
type Display struct {
	out   io.Writer
	asset string
	fiat  string
}

// New constructs a console display for one trading pair.
func New(out io.Writer, asset, fiat string) *Display {
	return &Display{out: out, asset: asset, fiat: fiat}
}

// Status prints the post-cycle summary.
func (d *Display) Status(u alerting.Update, historyCount, failures int) {
	line := strings.Repeat("=", 70)
	fmt.Fprintln(d.out, line)
	fmt.Fprintf(d.out, "P2P %s/%s Price Tracker\n", d.fiat, d.asset)
	fmt.Fprintf(d.out, "Time: %s UTC\n", u.Time.UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(d.out, line)

	d.side("Best BUY ", u.Buy, u.BestBuy, u.ReferenceRate)
	d.side("Best SELL", u.Sell, u.BestSell, u.ReferenceRate)

	if u.ReferenceRate != nil {
		fmt.Fprintf(d.out, "Official rate: %s %s\n", u.ReferenceRate.StringFixed(2), d.fiat)
	}

	if len(u.Changes) > 0 {
		fmt.Fprintln(d.out, "\nChanges:")
		for _, c := range u.Changes {
			fmt.Fprintf(d.out, "  %-4s buy %+.2f%%  sell %+.2f%%\n",
				c.Window.Label, f(c.BuyChange), f(c.SellChange))
		}
	}

	fmt.Fprintf(d.out, "\nHistory: %d readings", historyCount)
	if failures > 0 {
		fmt.Fprintf(d.out, "  |  consecutive failures: %d", failures)
	}
	fmt.Fprintln(d.out)
}

// NoOffers prints the empty-state warning. No matching offers is a
// legitimate state, distinct from an API failure.
func (d *Display) NoOffers(now time.Time, historyCount, failures int) {
	fmt.Fprintf(d.out, "[%s] no offers matched the configured filters (history: %d, failures: %d)\n",
		now.UTC().Format("15:04:05"), historyCount, failures)
	fmt.Fprintln(d.out, "Consider relaxing payment-method or amount filters.")
}

func (d *Display) side(label string, price *decimal.Decimal, best *offers.Offer, ref *decimal.Decimal) {
	if price == nil {
		fmt.Fprintf(d.out, "%s: no offers\n", label)
		return
	}

	fmt.Fprintf(d.out, "%s: %s %s", label, price.StringFixed(2), d.fiat)
	if ref != nil && ref.Sign() > 0 {
		diff := price.Sub(*ref).Div(*ref).Mul(decimal.NewFromInt(100))
		fmt.Fprintf(d.out, " (%+.2f%% vs official)", f(diff))
	}
	if best != nil {
		methods := best.MethodNames()
		if len(methods) > 2 {
			methods = methods[:2]
		}
		fmt.Fprintf(d.out, "  [%s, %d orders, %s]",
			best.Trader.Nickname, best.Trader.MonthOrderCount, strings.Join(methods, ", "))
	}
	fmt.Fprintln(d.out)
}

func f(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}
