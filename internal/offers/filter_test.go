package offers

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func offer(price string, methods ...string) Offer {
	o := Offer{
		Price:          dec(price),
		MinTransAmount: dec("1000"),
		MaxTransAmount: dec("1000000"),
	}
	for _, m := range methods {
		o.TradeMethods = append(o.TradeMethods, TradeMethod{Name: m})
	}
	return o
}

func TestFilterPromoted(t *testing.T) {
	promoted := offer("100", "Banesco")
	promoted.Promoted = true
	in := []Offer{promoted, offer("101", "Banesco")}

	out := FilterPromoted(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 offer, got %d", len(out))
	}
	if !out[0].Price.Equal(dec("101")) {
		t.Fatalf("wrong offer survived: %s", out[0].Price)
	}
}

func TestFilterExcludedMethods(t *testing.T) {
	in := []Offer{
		offer("100", "PagoMovil"),
		offer("101", "Recarga Pines"),
		offer("102", "Banesco", "  pagomovil "),
	}

	out := FilterExcludedMethods(in, normalizeMethods([]string{"PagoMovil"}))
	if len(out) != 1 {
		t.Fatalf("expected 1 offer, got %d", len(out))
	}
	if !out[0].Price.Equal(dec("101")) {
		t.Fatalf("wrong offer survived: %s", out[0].Price)
	}
}

func TestExcludingUnusedMethodNeverRemoves(t *testing.T) {
	in := []Offer{offer("100", "Banesco"), offer("101", "Mercantil")}
	out := FilterExcludedMethods(in, normalizeMethods([]string{"Zelle"}))
	if len(out) != len(in) {
		t.Fatalf("excluding an unused method removed offers: %d -> %d", len(in), len(out))
	}
}

func TestHardcodedDenyEntryAlwaysActive(t *testing.T) {
	f := NewFilter(nil, nil, decimal.Zero, zerolog.Nop())
	in := []Offer{offer("100", "Recarga Pines"), offer("101", "Banesco")}

	out := f.Apply(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 offer, got %d", len(out))
	}
	if !out[0].Price.Equal(dec("101")) {
		t.Fatalf("Recarga Pines offer should be dropped, got %s", out[0].Price)
	}
}

func TestFilterByMethodsEmptyAllowKeepsAll(t *testing.T) {
	in := []Offer{offer("100", "Banesco"), offer("101", "Zelle")}
	out := FilterByMethods(in, nil)
	if len(out) != 2 {
		t.Fatalf("empty allow-list should keep all, got %d", len(out))
	}
}

func TestFilterByMethodsKeepsMatching(t *testing.T) {
	in := []Offer{
		offer("100", "Banesco"),
		offer("101", "Zelle", "PagoMovil"),
	}
	out := FilterByMethods(in, normalizeMethods([]string{"pagomovil"}))
	if len(out) != 1 {
		t.Fatalf("expected 1 offer, got %d", len(out))
	}
	if !out[0].Price.Equal(dec("101")) {
		t.Fatalf("wrong offer survived: %s", out[0].Price)
	}
}

func TestFilterByAmountRange(t *testing.T) {
	tooSmall := offer("100", "Banesco")
	tooSmall.MinTransAmount = dec("50000")
	tooSmall.MaxTransAmount = dec("55000")

	fits := offer("101", "Banesco")
	fits.MinTransAmount = dec("40000")
	fits.MaxTransAmount = dec("70000")

	out := FilterByAmount([]Offer{tooSmall, fits}, dec("60000"))
	if len(out) != 1 {
		t.Fatalf("expected 1 offer, got %d", len(out))
	}
	if !out[0].Price.Equal(dec("101")) {
		t.Fatalf("wrong offer survived: %s", out[0].Price)
	}
}

func TestFilterByAmountInclusiveBounds(t *testing.T) {
	o := offer("100", "Banesco")
	o.MinTransAmount = dec("60000")
	o.MaxTransAmount = dec("60000")

	out := FilterByAmount([]Offer{o}, dec("60000"))
	if len(out) != 1 {
		t.Fatal("amount equal to both bounds should be included")
	}
}

func TestFilterByAmountDropsNonPositiveMax(t *testing.T) {
	o := offer("100", "Banesco")
	o.MinTransAmount = decimal.Zero
	o.MaxTransAmount = decimal.Zero

	out := FilterByAmount([]Offer{o}, dec("100"))
	if len(out) != 0 {
		t.Fatal("offer with zero max capacity should be dropped")
	}
}

func TestFilterByAmountZeroAmountIsNoop(t *testing.T) {
	in := []Offer{offer("100", "Banesco")}
	out := FilterByAmount(in, decimal.Zero)
	if len(out) != 1 {
		t.Fatal("zero amount should disable the capacity filter")
	}
}

func TestBestBuyLowestWins(t *testing.T) {
	in := []Offer{offer("103"), offer("101"), offer("102")}
	best, ok := Best(in, Buy)
	if !ok {
		t.Fatal("expected an offer")
	}
	for _, o := range in {
		if best.Price.GreaterThan(o.Price) {
			t.Fatalf("BUY winner %s is pricier than candidate %s", best.Price, o.Price)
		}
	}
}

func TestBestSellHighestWins(t *testing.T) {
	in := []Offer{offer("101"), offer("103"), offer("102")}
	best, ok := Best(in, Sell)
	if !ok {
		t.Fatal("expected an offer")
	}
	for _, o := range in {
		if best.Price.LessThan(o.Price) {
			t.Fatalf("SELL winner %s is cheaper than candidate %s", best.Price, o.Price)
		}
	}
}

func TestBestTieBreaksByListOrder(t *testing.T) {
	first := offer("100")
	first.Trader.Nickname = "first"
	second := offer("100")
	second.Trader.Nickname = "second"

	best, _ := Best([]Offer{first, second}, Buy)
	if best.Trader.Nickname != "first" {
		t.Fatalf("tie should go to the earlier offer, got %q", best.Trader.Nickname)
	}
}

func TestBestEmptyInput(t *testing.T) {
	if _, ok := Best(nil, Buy); ok {
		t.Fatal("empty input should yield no offer")
	}
}

func TestPipelineIdempotent(t *testing.T) {
	f := NewFilter([]string{"Banesco", "PagoMovil"}, []string{"Zelle"}, dec("60000"), zerolog.Nop())

	in := []Offer{
		offer("100", "Banesco"),
		offer("99", "Zelle"),
		offer("101", "PagoMovil"),
	}
	for i := range in {
		in[i].MinTransAmount = dec("10000")
		in[i].MaxTransAmount = dec("90000")
	}

	first, okFirst := f.BestOffer(in, Buy)
	second, okSecond := f.BestOffer(in, Buy)

	if okFirst != okSecond {
		t.Fatal("replaying the same input changed the outcome")
	}
	if !first.Price.Equal(second.Price) || first.Trader != second.Trader {
		t.Fatalf("replaying the same input changed the winner: %s vs %s", first.Price, second.Price)
	}
}
