package offers

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// excludeAlways is applied on top of any configured deny-list. Gift-card
// style methods are a common source of scam offers at off-market prices.
var excludeAlways = []string{"Recarga Pines"}

// Filter applies the offer selection rules configured for a trading pair.
type Filter struct {
	allow  []string
	deny   []string
	amount decimal.Decimal
	logger zerolog.Logger
}

// NewFilter builds a Filter. The deny-list always contains the built-in
// safety entries in addition to the configured ones. A non-positive amount
// disables the capacity filter.
func NewFilter(allow, deny []string, amount decimal.Decimal, logger zerolog.Logger) *Filter {
	return &Filter{
		allow:  normalizeMethods(allow),
		deny:   normalizeMethods(append(append([]string{}, deny...), excludeAlways...)),
		amount: amount,
		logger: logger.With().Str("component", "offer_filter").Logger(),
	}
}

// Apply runs all filter passes in fixed order and returns the surviving
// offers: promoted exclusion, payment-method exclusion, payment-method
// inclusion, amount capacity.
func (f *Filter) Apply(in []Offer) []Offer {
	out := FilterPromoted(in)
	out = FilterExcludedMethods(out, f.deny)
	out = FilterByMethods(out, f.allow)
	out = FilterByAmount(out, f.amount)

	if len(out) != len(in) {
		f.logger.Debug().
			Int("in", len(in)).
			Int("out", len(out)).
			Msg("offers filtered")
	}
	return out
}

// BestOffer filters and ranks in one step. ok is false when nothing
// survives, which is a legitimate empty state, not an error.
func (f *Filter) BestOffer(in []Offer, side Side) (Offer, bool) {
	return Best(f.Apply(in), side)
}

// FilterPromoted drops sponsored/placed advertisements.
func FilterPromoted(in []Offer) []Offer {
	out := make([]Offer, 0, len(in))
	for _, o := range in {
		if !o.Promoted {
			out = append(out, o)
		}
	}
	return out
}

// FilterExcludedMethods drops an offer if any of its payment method names
// appears in the deny-list. Matching is case-insensitive and ignores
// surrounding whitespace. The deny-list is expected pre-normalized.
func FilterExcludedMethods(in []Offer, deny []string) []Offer {
	if len(deny) == 0 {
		return in
	}
	out := make([]Offer, 0, len(in))
	for _, o := range in {
		if !hasAnyMethod(o, deny) {
			out = append(out, o)
		}
	}
	return out
}

// FilterByMethods keeps only offers exposing at least one allow-listed
// method. An empty allow-list keeps everything.
func FilterByMethods(in []Offer, allow []string) []Offer {
	if len(allow) == 0 {
		return in
	}
	out := make([]Offer, 0, len(in))
	for _, o := range in {
		if hasAnyMethod(o, allow) {
			out = append(out, o)
		}
	}
	return out
}

// FilterByAmount keeps offers whose declared [min, max] fiat range contains
// amount, bounds inclusive. Offers with a non-positive max are always
// dropped. A non-positive amount disables the filter.
func FilterByAmount(in []Offer, amount decimal.Decimal) []Offer {
	if amount.Sign() <= 0 {
		return in
	}
	out := make([]Offer, 0, len(in))
	for _, o := range in {
		if o.MaxTransAmount.Sign() <= 0 {
			continue
		}
		if o.MinTransAmount.LessThanOrEqual(amount) && amount.LessThanOrEqual(o.MaxTransAmount) {
			out = append(out, o)
		}
	}
	return out
}

// Best ranks the offers for a side: lowest price wins for BUY, highest for
// SELL. Ties go to the earlier list position.
func Best(in []Offer, side Side) (Offer, bool) {
	if len(in) == 0 {
		return Offer{}, false
	}
	best := in[0]
	for _, o := range in[1:] {
		if side == Buy {
			if o.Price.LessThan(best.Price) {
				best = o
			}
		} else {
			if o.Price.GreaterThan(best.Price) {
				best = o
			}
		}
	}
	return best, true
}

func hasAnyMethod(o Offer, wanted []string) bool {
	for _, m := range o.TradeMethods {
		name := normalizeMethod(m.Name)
		for _, w := range wanted {
			if name == w {
				return true
			}
		}
	}
	return false
}

func normalizeMethod(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func normalizeMethods(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if v := normalizeMethod(n); v != "" {
			out = append(out, v)
		}
	}
	return out
}
