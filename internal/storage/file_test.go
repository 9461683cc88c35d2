package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"p2p-price-tracker/internal/history"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	f := NewHistoryFile(dir, "USDT", "VES", zerolog.Nop())

	in := []history.Observation{
		{Time: t0.Add(-time.Hour), Buy: dec("690.5"), Sell: dec("650")},
		{Time: t0, Buy: dec("725"), Sell: dec("682.5")},
	}
	if err := f.Save(in, t0); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !strings.HasSuffix(f.Path(), "price_history_VES_USDT.json") {
		t.Fatalf("unexpected file name: %s", f.Path())
	}

	out, err := f.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	if !out[0].Buy.Equal(dec("690.5")) || !out[1].Sell.Equal(dec("682.5")) {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if !out[0].Time.Equal(t0.Add(-time.Hour)) {
		t.Fatalf("timestamp mismatch: %v", out[0].Time)
	}
}

func TestLoadMissingFile(t *testing.T) {
	f := NewHistoryFile(t.TempDir(), "USDT", "VES", zerolog.Nop())
	out, err := f.Load()
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(out))
	}
}

func TestLoadSkipsMalformedEntries(t *testing.T) {
	dir := t.TempDir()
	f := NewHistoryFile(dir, "USDT", "VES", zerolog.Nop())

	doc := `{
  "last_updated": "2025-06-01T12:00:00Z",
  "history": [
    {"timestamp": "2025-06-01T11:00:00Z", "buy": "690.5", "sell": "650"},
    {"timestamp": "not-a-time", "buy": "1", "sell": "1"},
    {"timestamp": "2025-06-01T11:30:00Z", "buy": "0", "sell": "651"},
    {"timestamp": "2025-06-01T11:45:00Z", "buy": "700", "sell": "660"}
  ]
}`
	if err := os.WriteFile(f.Path(), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := f.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("malformed entries should be skipped, got %d entries", len(out))
	}
}

func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	f := NewHistoryFile(dir, "USDT", "VES", zerolog.Nop())

	if err := f.Save([]history.Observation{{Time: t0, Buy: dec("1"), Sell: dec("1")}}, t0); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// No temp file may be left behind after a successful save.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the target file, got %d entries", len(entries))
	}
}

func TestRestoreAfterLoadAppliesAgeCutoff(t *testing.T) {
	dir := t.TempDir()
	f := NewHistoryFile(dir, "USDT", "VES", zerolog.Nop())

	in := []history.Observation{
		{Time: t0.Add(-25 * time.Hour), Buy: dec("600"), Sell: dec("590")},
		{Time: t0.Add(-time.Hour), Buy: dec("690"), Sell: dec("650")},
	}
	if err := f.Save(in, t0); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := f.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	h := history.New(100)
	if got := h.Restore(loaded, t0); got != 1 {
		t.Fatalf("entries older than 24h must be dropped at load time, kept %d", got)
	}
}
