package offers

import (
	"github.com/shopspring/decimal"
)

// Side is the direction of a quoted price.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// TradeMethod is a payment method accepted by an offer.
type TradeMethod struct {
	Identifier string
	Name       string
}

// Trader holds counter-party reputation data.
type Trader struct {
	Nickname        string
	MonthOrderCount int
	MonthFinishRate float64
}

// CompletionRate returns the monthly finish rate as a percentage.
func (t Trader) CompletionRate() float64 {
	return t.MonthFinishRate * 100
}

// Offer is a single P2P advertisement as returned by the marketplace.
// Offers are created fresh on every poll and discarded after ranking.
type Offer struct {
	Price           decimal.Decimal
	Side            Side
	Trader          Trader
	AvailableAmount decimal.Decimal
	// Transaction amount range, denominated in the fiat currency.
	MinTransAmount decimal.Decimal
	MaxTransAmount decimal.Decimal
	TradeMethods   []TradeMethod
	Promoted       bool
}

// MethodNames returns the display names of all accepted payment methods.
func (o Offer) MethodNames() []string {
	names := make([]string, 0, len(o.TradeMethods))
	for _, m := range o.TradeMethods {
		names = append(names, m.Name)
	}
	return names
}
