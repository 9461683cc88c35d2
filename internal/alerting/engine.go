package alerting

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"p2p-price-tracker/internal/offers"
)

// TraderSnapshot captures counter-party details at the moment an alert
// fires. The ranked offer is discarded after the cycle, so the snapshot is
// the only record of who was behind the price.
type TraderSnapshot struct {
	Nickname       string
	MonthOrders    int
	Available      decimal.Decimal
	PaymentMethods []string
}

// Alert is a single threshold crossing on one side.
type Alert struct {
	Side      offers.Side
	ChangePct decimal.Decimal
	OldPrice  decimal.Decimal
	NewPrice  decimal.Decimal
	Time      time.Time
	Trader    *TraderSnapshot
}

// Observation is the per-side input to one engine evaluation.
type Observation struct {
	Price decimal.Decimal
	Offer *offers.Offer
}

var hundred = decimal.NewFromInt(100)

// Engine detects abnormal price moves against per-side baseline watermarks.
//
// Each side starts uninitialized; the first price seen arms it without
// alerting. From then on the percentage change against the baseline is
// computed every cycle. A crossing of the threshold emits one alert and
// resets the baseline to the current price in the same step, so the next
// alert requires a fresh full-threshold move from the post-alert price.
// The baseline never decays or averages otherwise.
type Engine struct {
	threshold decimal.Decimal
	baselines map[offers.Side]decimal.Decimal
	logger    zerolog.Logger
}

// NewEngine builds an engine with the given alert threshold in percent.
func NewEngine(threshold decimal.Decimal, logger zerolog.Logger) *Engine {
	return &Engine{
		threshold: threshold,
		baselines: make(map[offers.Side]decimal.Decimal),
		logger:    logger.With().Str("component", "alert_engine").Logger(),
	}
}

// Evaluate runs one detection cycle. A nil observation leaves that side's
// baseline untouched. Evaluate never fails.
func (e *Engine) Evaluate(buy, sell *Observation, now time.Time) []Alert {
	var alerts []Alert
	if a := e.evaluateSide(offers.Buy, buy, now); a != nil {
		alerts = append(alerts, *a)
	}
	if a := e.evaluateSide(offers.Sell, sell, now); a != nil {
		alerts = append(alerts, *a)
	}
	return alerts
}

// Baseline returns the current watermark for a side, if armed.
func (e *Engine) Baseline(side offers.Side) (decimal.Decimal, bool) {
	b, ok := e.baselines[side]
	return b, ok
}

func (e *Engine) evaluateSide(side offers.Side, obs *Observation, now time.Time) *Alert {
	if obs == nil || obs.Price.Sign() <= 0 {
		return nil
	}

	baseline, armed := e.baselines[side]
	if !armed {
		e.baselines[side] = obs.Price
		e.logger.Info().
			Str("side", string(side)).
			Str("baseline", obs.Price.String()).
			Msg("baseline initialized")
		return nil
	}

	change := obs.Price.Sub(baseline).Div(baseline).Mul(hundred)
	if change.Abs().LessThan(e.threshold) {
		return nil
	}

	e.logger.Info().
		Str("side", string(side)).
		Str("change_pct", change.StringFixed(2)).
		Str("old", baseline.String()).
		Str("new", obs.Price.String()).
		Msg("alert triggered, baseline reset")
	e.baselines[side] = obs.Price

	return &Alert{
		Side:      side,
		ChangePct: change,
		OldPrice:  baseline,
		NewPrice:  obs.Price,
		Time:      now,
		Trader:    snapshotTrader(obs.Offer),
	}
}

func snapshotTrader(o *offers.Offer) *TraderSnapshot {
	if o == nil {
		return nil
	}
	return &TraderSnapshot{
		Nickname:       o.Trader.Nickname,
		MonthOrders:    o.Trader.MonthOrderCount,
		Available:      o.AvailableAmount,
		PaymentMethods: o.MethodNames(),
	}
}
