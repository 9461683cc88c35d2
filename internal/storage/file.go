package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"p2p-price-tracker/internal/history"
)

// historyDocument is the on-disk shape: one JSON document per (fiat, asset)
// pair with a last-updated stamp and ordered price records.
type historyDocument struct {
	LastUpdated time.Time      `json:"last_updated"`
	Asset       string         `json:"asset"`
	Fiat        string         `json:"fiat"`
	History     []historyEntry `json:"history"`
}

type historyEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Buy       decimal.Decimal `json:"buy"`
	Sell      decimal.Decimal `json:"sell"`
}

// HistoryFile persists price history snapshots across process restarts.
type HistoryFile struct {
	path   string
	asset  string
	fiat   string
	logger zerolog.Logger
}

// NewHistoryFile builds a history store rooted at dir for one pair.
func NewHistoryFile(dir, asset, fiat string, logger zerolog.Logger) *HistoryFile {
	name := fmt.Sprintf("price_history_%s_%s.json", fiat, asset)
	return &HistoryFile{
		path:   filepath.Join(dir, name),
		asset:  asset,
		fiat:   fiat,
		logger: logger.With().Str("component", "history_file").Logger(),
	}
}

// Path returns the target file path.
func (f *HistoryFile) Path() string {
	return f.path
}

// Save writes the snapshot atomically: temp file in the same directory,
// then rename over the target, so a crash mid-write never corrupts the
// previous snapshot.
func (f *HistoryFile) Save(entries []history.Observation, now time.Time) error {
	doc := historyDocument{
		LastUpdated: now.UTC(),
		Asset:       f.asset,
		Fiat:        f.fiat,
		History:     make([]historyEntry, 0, len(entries)),
	}
	for _, obs := range entries {
		doc.History = append(doc.History, historyEntry{
			Timestamp: obs.Time,
			Buy:       obs.Buy,
			Sell:      obs.Sell,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp history file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace history file: %w", err)
	}

	f.logger.Debug().Int("entries", len(entries)).Str("path", f.path).Msg("history saved")
	return nil
}

// Load reads the persisted snapshot. A missing file yields an empty slice.
// Malformed entries are skipped silently; age cutoff is the caller's job
// (history.Restore drops anything older than 24 hours).
func (f *HistoryFile) Load() ([]history.Observation, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.logger.Info().Str("path", f.path).Msg("no history file, starting fresh")
			return nil, nil
		}
		return nil, fmt.Errorf("read history file: %w", err)
	}

	// Entries are decoded one by one so a single malformed record does not
	// discard the rest of the snapshot.
	var doc struct {
		History []json.RawMessage `json:"history"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode history file: %w", err)
	}

	out := make([]history.Observation, 0, len(doc.History))
	for _, raw := range doc.History {
		var e historyEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			f.logger.Warn().Err(err).Msg("skipping malformed history entry")
			continue
		}
		if e.Timestamp.IsZero() || e.Buy.Sign() <= 0 || e.Sell.Sign() <= 0 {
			f.logger.Warn().Time("timestamp", e.Timestamp).Msg("skipping invalid history entry")
			continue
		}
		out = append(out, history.Observation{Time: e.Timestamp, Buy: e.Buy, Sell: e.Sell})
	}
	return out, nil
}
