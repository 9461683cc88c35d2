package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"p2p-price-tracker/internal/alerting"
	"p2p-price-tracker/internal/console"
	"p2p-price-tracker/internal/fetcher"
	"p2p-price-tracker/internal/history"
	"p2p-price-tracker/internal/offers"
	"p2p-price-tracker/internal/storage"
)

// flushEvery controls how often the history snapshot is persisted: once per
// this many successful iterations.
const flushEvery = 10

var two = decimal.NewFromInt(2)

// HistorySaver persists history snapshots. Satisfied by storage.HistoryFile.
type HistorySaver interface {
	Save(entries []history.Observation, now time.Time) error
}

// Options bundle the tracker's collaborators. Fetcher, Filter, History,
// and Engine are required; the rest are optional and skipped when nil.
type Options struct {
	Asset string
	Fiat  string

	Fetcher    fetcher.OfferFetcher
	Reference  fetcher.ReferenceRateFetcher
	Filter     *offers.Filter
	History    *history.History
	Engine     *alerting.Engine
	Notifier   alerting.Notifier
	AlertStore storage.AlertStore
	Saver      HistorySaver
	Display    *console.Display
}

// Service drives one polling iteration at a time: fetch, filter, record,
// detect, notify, flush. All mutable state (history, baselines, counters)
// is touched only by the loop goroutine.
type Service struct {
	opts   Options
	logger zerolog.Logger

	consecutiveFailures int
	successes           int
}

// New constructs the tracking service.
func New(opts Options, logger zerolog.Logger) *Service {
	return &Service{
		opts:   opts,
		logger: logger.With().Str("component", "tracker").Logger(),
	}
}

// Tick executes one polling iteration and returns the extra backoff to
// apply before the next cycle (zero in the normal case). It never fails:
// per-cycle faults are logged and absorbed.
func (s *Service) Tick(ctx context.Context, now time.Time) time.Duration {
	buyOffers, buyErr := s.opts.Fetcher.FetchOffers(ctx, offers.Buy)
	sellOffers, sellErr := s.opts.Fetcher.FetchOffers(ctx, offers.Sell)

	if buyErr != nil {
		s.logger.Warn().Err(buyErr).Msg("BUY fetch failed")
	}
	if sellErr != nil {
		s.logger.Warn().Err(sellErr).Msg("SELL fetch failed")
	}
	if buyErr != nil && sellErr != nil {
		return s.handleFetchFailure(now)
	}
	s.consecutiveFailures = 0

	bestBuy, hasBuy := s.opts.Filter.BestOffer(buyOffers, offers.Buy)
	bestSell, hasSell := s.opts.Filter.BestOffer(sellOffers, offers.Sell)
	if buyErr != nil {
		hasBuy = false
	}
	if sellErr != nil {
		hasSell = false
	}

	if !hasBuy && !hasSell {
		// Legitimate empty state: the market has nothing matching the
		// filters. Not an API failure.
		s.logger.Info().Msg("no offers matched filters")
		if s.opts.Display != nil {
			s.opts.Display.NoOffers(now, s.opts.History.Len(), s.consecutiveFailures)
		}
		return 0
	}

	s.processPrices(ctx, now, bestBuy, hasBuy, bestSell, hasSell)
	return 0
}

// Flush persists the current history snapshot. Called periodically by the
// loop and once more on shutdown.
func (s *Service) Flush(now time.Time) {
	if s.opts.Saver == nil {
		return
	}
	if err := s.opts.Saver.Save(s.opts.History.Snapshot(), now); err != nil {
		s.logger.Error().Err(err).Msg("history flush failed")
	}
}

func (s *Service) handleFetchFailure(now time.Time) time.Duration {
	s.consecutiveFailures++
	s.logger.Warn().Int("consecutive_failures", s.consecutiveFailures).Msg("both sides failed to fetch")
	if s.opts.Display != nil {
		s.opts.Display.NoOffers(now, s.opts.History.Len(), s.consecutiveFailures)
	}

	if s.consecutiveFailures > 5 {
		extra := s.consecutiveFailures * 10
		if extra > 300 {
			extra = 300
		}
		return time.Duration(extra) * time.Second
	}
	return 0
}

func (s *Service) processPrices(ctx context.Context, now time.Time, bestBuy offers.Offer, hasBuy bool, bestSell offers.Offer, hasSell bool) {
	bothSides := hasBuy && hasSell
	if bothSides && suspiciousSpread(bestBuy.Price, bestSell.Price) {
		// Data fault: one side is quoting far off the other. Do not let
		// it pollute the history or trip the alert engine.
		s.logger.Warn().
			Str("buy", bestBuy.Price.String()).
			Str("sell", bestSell.Price.String()).
			Msg("suspicious buy/sell spread, skipping cycle")
		bothSides = false
		hasBuy = false
		hasSell = false
	}

	var changes []history.Change
	if bothSides {
		// Partial data is displayed but never persisted: one-sided
		// readings would pollute the windowed comparisons.
		s.opts.History.Record(bestBuy.Price, bestSell.Price, now)
		changes = s.opts.History.Changes(bestBuy.Price, bestSell.Price, now)
		s.successes++
	}

	alerts := s.opts.Engine.Evaluate(
		engineObservation(bestBuy, hasBuy),
		engineObservation(bestSell, hasSell),
		now,
	)
	for _, alert := range alerts {
		s.dispatchAlert(ctx, alert)
	}

	update := s.buildUpdate(ctx, now, bestBuy, hasBuy, bestSell, hasSell, changes)
	if s.opts.Notifier != nil {
		if err := s.opts.Notifier.SendUpdate(ctx, update); err != nil {
			s.logger.Error().Err(err).Msg("status update failed")
		}
	}
	if s.opts.Display != nil {
		s.opts.Display.Status(update, s.opts.History.Len(), s.consecutiveFailures)
	}

	if bothSides && s.successes%flushEvery == 0 {
		s.Flush(now)
	}
}

func (s *Service) dispatchAlert(ctx context.Context, alert alerting.Alert) {
	s.logger.Warn().
		Str("side", string(alert.Side)).
		Str("change_pct", alert.ChangePct.StringFixed(2)).
		Str("old", alert.OldPrice.String()).
		Str("new", alert.NewPrice.String()).
		Msg("price alert")

	if s.opts.Notifier != nil {
		if err := s.opts.Notifier.SendAlert(ctx, alert); err != nil {
			s.logger.Error().Err(err).Msg("alert dispatch failed")
		}
	}
	if s.opts.AlertStore != nil {
		record := storage.AlertRecord{
			TriggeredAt: alert.Time,
			Side:        string(alert.Side),
			ChangePct:   alert.ChangePct,
			OldPrice:    alert.OldPrice,
			NewPrice:    alert.NewPrice,
		}
		if t := alert.Trader; t != nil {
			nickname := t.Nickname
			record.Trader = &nickname
		}
		if _, err := s.opts.AlertStore.InsertAlert(ctx, record); err != nil {
			s.logger.Error().Err(err).Msg("alert audit insert failed")
		}
	}
}

func (s *Service) buildUpdate(ctx context.Context, now time.Time, bestBuy offers.Offer, hasBuy bool, bestSell offers.Offer, hasSell bool, changes []history.Change) alerting.Update {
	update := alerting.Update{
		Time:    now,
		Asset:   s.opts.Asset,
		Fiat:    s.opts.Fiat,
		Changes: changes,
	}
	if hasBuy {
		price := bestBuy.Price
		update.Buy = &price
		offer := bestBuy
		update.BestBuy = &offer
	}
	if hasSell {
		price := bestSell.Price
		update.Sell = &price
		offer := bestSell
		update.BestSell = &offer
	}

	if s.opts.Reference != nil {
		if rate, err := s.opts.Reference.FetchRate(ctx); err != nil {
			s.logger.Debug().Err(err).Msg("reference rate unavailable")
		} else if rate.Sign() > 0 {
			update.ReferenceRate = &rate
		}
	}
	return update
}

func engineObservation(o offers.Offer, ok bool) *alerting.Observation {
	if !ok {
		return nil
	}
	offer := o
	return &alerting.Observation{Price: o.Price, Offer: &offer}
}

// suspiciousSpread reports whether one side quotes more than twice the
// other, which in practice means a scam ladder or a broken response.
func suspiciousSpread(buy, sell decimal.Decimal) bool {
	return buy.GreaterThan(sell.Mul(two)) || sell.GreaterThan(buy.Mul(two))
}
