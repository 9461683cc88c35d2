package history

import (
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRecordEvictsOldest(t *testing.T) {
	const cap = 10
	h := New(cap)

	for i := 0; i < cap+5; i++ {
		price := dec(strconv.Itoa(100 + i))
		h.Record(price, price, t0.Add(time.Duration(i)*time.Minute))
	}

	if h.Len() != cap {
		t.Fatalf("expected %d entries after overflow, got %d", cap, h.Len())
	}

	snap := h.Snapshot()
	if !snap[0].Buy.Equal(dec("105")) {
		t.Fatalf("oldest surviving entry should be 105, got %s", snap[0].Buy)
	}
	for i := 1; i < len(snap); i++ {
		if snap[i].Time.Before(snap[i-1].Time) {
			t.Fatal("snapshot is not in time order")
		}
	}
}

func TestNearestWithinTolerance(t *testing.T) {
	h := New(100)
	h.Record(dec("100"), dec("99"), t0.Add(-15*time.Minute).Add(90*time.Second))

	obs, ok := h.Nearest(15, t0)
	if !ok {
		t.Fatal("observation 90s from target should match")
	}
	if !obs.Buy.Equal(dec("100")) {
		t.Fatalf("unexpected observation: %s", obs.Buy)
	}
}

func TestNearestBeyondTolerance(t *testing.T) {
	h := New(100)
	h.Record(dec("100"), dec("99"), t0.Add(-15*time.Minute).Add(121*time.Second))

	if _, ok := h.Nearest(15, t0); ok {
		t.Fatal("observation more than 120s from target must not match")
	}
}

func TestNearestEmptyHistory(t *testing.T) {
	h := New(100)
	if _, ok := h.Nearest(15, t0); ok {
		t.Fatal("empty history cannot produce a nearest observation")
	}
}

func TestNearestPicksClosest(t *testing.T) {
	h := New(100)
	h.Record(dec("100"), dec("99"), t0.Add(-16*time.Minute))
	h.Record(dec("200"), dec("199"), t0.Add(-15*time.Minute).Add(30*time.Second))
	h.Record(dec("300"), dec("299"), t0.Add(-12*time.Minute))

	obs, ok := h.Nearest(15, t0)
	if !ok {
		t.Fatal("expected a match")
	}
	if !obs.Buy.Equal(dec("200")) {
		t.Fatalf("expected the 30s-off observation, got %s", obs.Buy)
	}
}

func TestRestoreDropsStaleEntries(t *testing.T) {
	h := New(100)
	loaded := h.Restore([]Observation{
		{Time: t0.Add(-25 * time.Hour), Buy: dec("90"), Sell: dec("89")},
		{Time: t0.Add(-23 * time.Hour), Buy: dec("95"), Sell: dec("94")},
		{Time: t0.Add(-time.Hour), Buy: dec("100"), Sell: dec("99")},
	}, t0)

	if loaded != 2 {
		t.Fatalf("expected 2 entries restored, got %d", loaded)
	}
	snap := h.Snapshot()
	if !snap[0].Buy.Equal(dec("95")) {
		t.Fatalf("stale entry survived restore: %s", snap[0].Buy)
	}
}

func TestChangesOmitWindowsWithoutMatch(t *testing.T) {
	h := New(100)
	// Only a 15-minute-old observation exists.
	h.Record(dec("100"), dec("98"), t0.Add(-15*time.Minute))

	changes := h.Changes(dec("105"), dec("100"), t0)
	if len(changes) != 1 {
		t.Fatalf("expected a single window, got %d", len(changes))
	}
	c := changes[0]
	if c.Window.Label != "15m" {
		t.Fatalf("unexpected window %q", c.Window.Label)
	}
	if !c.BuyChange.Equal(dec("5")) {
		t.Fatalf("expected +5%% buy change, got %s", c.BuyChange)
	}
	if c.SellChange.StringFixed(4) != "2.0408" {
		t.Fatalf("unexpected sell change %s", c.SellChange)
	}
}

func TestChangesSkipZeroHistoricalPrice(t *testing.T) {
	h := New(100)
	h.Record(decimal.Zero, dec("98"), t0.Add(-15*time.Minute))

	if changes := h.Changes(dec("105"), dec("100"), t0); len(changes) != 0 {
		t.Fatal("window with a zero historical price must be omitted")
	}
}

func TestChangesAllWindows(t *testing.T) {
	h := New(100)
	h.Record(dec("100"), dec("100"), t0.Add(-60*time.Minute))
	h.Record(dec("102"), dec("101"), t0.Add(-30*time.Minute))
	h.Record(dec("104"), dec("103"), t0.Add(-15*time.Minute))

	changes := h.Changes(dec("110"), dec("108"), t0)
	if len(changes) != 3 {
		t.Fatalf("expected all three windows, got %d", len(changes))
	}
	labels := []string{"15m", "30m", "1h"}
	for i, c := range changes {
		if c.Window.Label != labels[i] {
			t.Fatalf("window %d: expected %q, got %q", i, labels[i], c.Window.Label)
		}
	}
	if !changes[2].BuyChange.Equal(dec("10")) {
		t.Fatalf("1h buy change should be +10%%, got %s", changes[2].BuyChange)
	}
}
