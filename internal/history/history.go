package history

import (
	"time"

	"github.com/shopspring/decimal"
)

// nearestTolerance bounds how far the closest observation may sit from the
// lookback target. The polling cadence is irregular (network latency,
// backoff pauses), so exact-minute alignment cannot be assumed.
const nearestTolerance = 120 * time.Second

// maxRestoreAge drops stale entries when a snapshot is restored from disk.
const maxRestoreAge = 24 * time.Hour

// Observation is a single (timestamp, buy, sell) price reading. Immutable
// once appended.
type Observation struct {
	Time time.Time
	Buy  decimal.Decimal
	Sell decimal.Decimal
}

// History is an insertion-ordered, size-bounded sequence of observations.
// Timestamps are non-decreasing because the tracking loop is single-threaded
// and records in arrival order. Not safe for concurrent use.
type History struct {
	entries []Observation
	max     int
}

// New creates a history capped at max observations. A non-positive max
// falls back to 1000 readings.
func New(max int) *History {
	if max <= 0 {
		max = 1000
	}
	return &History{max: max}
}

// Record appends an observation, evicting the oldest one beyond the cap.
func (h *History) Record(buy, sell decimal.Decimal, now time.Time) {
	h.entries = append(h.entries, Observation{Time: now, Buy: buy, Sell: sell})
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
}

// Len returns the number of stored observations.
func (h *History) Len() int {
	return len(h.entries)
}

// Nearest returns the observation closest to now minus minutesAgo, but only
// when that closest match falls within the tolerance window.
func (h *History) Nearest(minutesAgo int, now time.Time) (Observation, bool) {
	if len(h.entries) == 0 {
		return Observation{}, false
	}

	target := now.Add(-time.Duration(minutesAgo) * time.Minute)
	closest := h.entries[0]
	best := absDuration(closest.Time.Sub(target))
	for _, obs := range h.entries[1:] {
		if d := absDuration(obs.Time.Sub(target)); d < best {
			closest, best = obs, d
		}
	}

	if best >= nearestTolerance {
		return Observation{}, false
	}
	return closest, true
}

// Snapshot copies out all observations, oldest first.
func (h *History) Snapshot() []Observation {
	out := make([]Observation, len(h.entries))
	copy(out, h.entries)
	return out
}

// Restore replaces the contents with a persisted snapshot, dropping entries
// older than 24 hours. Age is only enforced here, not during the run.
func (h *History) Restore(entries []Observation, now time.Time) int {
	h.entries = h.entries[:0]
	cutoff := now.Add(-maxRestoreAge)
	for _, obs := range entries {
		if obs.Time.Before(cutoff) {
			continue
		}
		h.Record(obs.Buy, obs.Sell, obs.Time)
	}
	return len(h.entries)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
