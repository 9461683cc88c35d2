package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"p2p-price-tracker/internal/alerting"
	"p2p-price-tracker/internal/config"
	"p2p-price-tracker/internal/console"
	"p2p-price-tracker/internal/fetcher"
	"p2p-price-tracker/internal/history"
	"p2p-price-tracker/internal/offers"
	"p2p-price-tracker/internal/scheduler"
	"p2p-price-tracker/internal/service"
	"p2p-price-tracker/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetchers() (fetcher.OfferFetcher, fetcher.ReferenceRateFetcher) {
	market := fetcher.NewBinance(fetcher.BinanceOptions{
		BaseURL:        a.Config.Market.BaseURL,
		Asset:          a.Config.Market.Asset,
		Fiat:           a.Config.Market.Fiat,
		Rows:           a.Config.Market.Rows,
		PaymentMethods: a.Config.Filters.PaymentMethods,
		MinAmount:      decimal.NewFromFloat(a.Config.Filters.MinAmount),
		MaxRetries:     a.Config.Market.MaxRetries,
		Timeout:        a.Config.Market.RequestTimeout,
	}, a.Logger)

	reference := fetcher.NewBCV(fetcher.BCVOptions{
		Endpoints: a.Config.Reference.Endpoints,
		CacheTTL:  a.Config.Reference.CacheTTL,
		Timeout:   a.Config.Reference.RequestTimeout,
	}, a.Logger)

	return market, reference
}

func (a *App) newFilter() *offers.Filter {
	return offers.NewFilter(
		a.Config.Filters.PaymentMethods,
		a.Config.Filters.ExcludeMethods,
		decimal.NewFromFloat(a.Config.Filters.MinAmount),
		a.Logger,
	)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Telegram.Enabled {
		cfg := a.Config.Telegram
		threshold := decimal.NewFromFloat(a.Config.Tracker.ThresholdPct)
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, threshold, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) historyFile() *storage.HistoryFile {
	return storage.NewHistoryFile(a.Config.Tracker.HistoryDir, a.Config.Market.Asset, a.Config.Market.Fiat, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running tracking service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Info().Msg("database.dsn not configured; alert auditing disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	hist := history.New(a.Config.Tracker.MaxHistory)
	file := a.historyFile()
	if entries, loadErr := file.Load(); loadErr != nil {
		a.Logger.Warn().Err(loadErr).Msg("history file unreadable, starting empty")
	} else if len(entries) > 0 {
		kept := hist.Restore(entries, time.Now().UTC())
		a.Logger.Info().Int("loaded", kept).Int("discarded", len(entries)-kept).Msg("history restored")
	}

	market, reference := a.newFetchers()

	var alertStore storage.AlertStore
	if store != nil {
		alertStore = store
	}

	svc := service.New(service.Options{
		Asset:      a.Config.Market.Asset,
		Fiat:       a.Config.Market.Fiat,
		Fetcher:    market,
		Reference:  reference,
		Filter:     a.newFilter(),
		History:    hist,
		Engine:     alerting.NewEngine(decimal.NewFromFloat(a.Config.Tracker.ThresholdPct), a.Logger),
		Notifier:   a.newNotifier(),
		AlertStore: alertStore,
		Saver:      file,
		Display:    console.New(os.Stdout, a.Config.Market.Asset, a.Config.Market.Fiat),
	}, a.Logger)

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Tracker.Interval,
		StartupDelay: a.Config.Tracker.StartupDelay,
	}, a.Logger)

	a.Logger.Info().
		Str("asset", a.Config.Market.Asset).
		Str("fiat", a.Config.Market.Fiat).
		Dur("interval", a.Config.Tracker.Interval).
		Msg("starting price tracker")

	err = sched.Run(ctx, svc.Tick)
	svc.Flush(time.Now().UTC())

	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("tracker terminated with error")
		return err
	}

	a.Logger.Info().Msg("tracker stopped")
	return nil
}

// ExportOptions hold parameters for exporting recorded history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// AlertsOptions configure the alerts listing command.
type AlertsOptions struct {
	Limit int
}

// SimulateOptions configure the notification dry-run.
type SimulateOptions struct {
	Side      string
	ChangePct float64
}
