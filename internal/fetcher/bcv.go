package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// defaultBCVEndpoints are public mirrors of the BCV official rate, tried in
// order until one yields a positive value.
var defaultBCVEndpoints = []bcvEndpoint{
	{
		URL: "https://ve.dolarapi.com/v1/dolares/oficial",
		Parse: func(data []byte) (decimal.Decimal, error) {
			var body struct {
				Promedio json.Number `json:"promedio"`
			}
			if err := json.Unmarshal(data, &body); err != nil {
				return decimal.Decimal{}, err
			}
			return decimal.NewFromString(body.Promedio.String())
		},
	},
	{
		URL: "https://pydolarve.org/api/v1/dollar?monitor=bcv",
		Parse: func(data []byte) (decimal.Decimal, error) {
			var body struct {
				Monitors struct {
					BCV struct {
						Price json.Number `json:"price"`
					} `json:"bcv"`
				} `json:"monitors"`
			}
			if err := json.Unmarshal(data, &body); err != nil {
				return decimal.Decimal{}, err
			}
			return decimal.NewFromString(body.Monitors.BCV.Price.String())
		},
	},
}

type bcvEndpoint struct {
	URL   string
	Parse func([]byte) (decimal.Decimal, error)
}

// BCVOptions parameterise the reference-rate fetcher.
type BCVOptions struct {
	Endpoints []string
	CacheTTL  time.Duration
	Timeout   time.Duration
}

// BCV fetches the official VES/USD rate with an in-process cache and
// multiple fallback endpoints. A total failure falls back to the last
// cached value when one exists.
type BCV struct {
	endpoints []bcvEndpoint
	cacheTTL  time.Duration
	logger    zerolog.Logger
	client    *http.Client

	cached   decimal.Decimal
	cachedAt time.Time
	nowFn    func() time.Time
}

// NewBCV constructs a reference-rate fetcher. Configured endpoint URLs
// override the built-in ones but reuse the first endpoint's response shape.
func NewBCV(opts BCVOptions, logger zerolog.Logger) *BCV {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}

	endpoints := defaultBCVEndpoints
	if len(opts.Endpoints) > 0 {
		endpoints = make([]bcvEndpoint, 0, len(opts.Endpoints))
		for _, url := range opts.Endpoints {
			endpoints = append(endpoints, bcvEndpoint{URL: url, Parse: defaultBCVEndpoints[0].Parse})
		}
	}

	return &BCV{
		endpoints: endpoints,
		cacheTTL:  opts.CacheTTL,
		logger:    logger.With().Str("component", "bcv_fetcher").Logger(),
		client:    &http.Client{Timeout: opts.Timeout},
		nowFn:     time.Now,
	}
}

// FetchRate returns the current official rate, serving from cache while it
// is fresh.
func (b *BCV) FetchRate(ctx context.Context) (decimal.Decimal, error) {
	now := b.nowFn()
	if !b.cachedAt.IsZero() && now.Sub(b.cachedAt) < b.cacheTTL {
		return b.cached, nil
	}

	for _, ep := range b.endpoints {
		rate, err := b.fetchOne(ctx, ep)
		if err != nil {
			b.logger.Debug().Err(err).Str("url", ep.URL).Msg("reference rate endpoint failed")
			continue
		}
		if rate.Sign() <= 0 {
			continue
		}
		b.cached = rate
		b.cachedAt = now
		b.logger.Info().Str("rate", rate.StringFixed(2)).Str("source", ep.URL).Msg("reference rate updated")
		return rate, nil
	}

	// Stale cache beats nothing at all.
	if !b.cachedAt.IsZero() {
		b.logger.Warn().Msg("all reference rate endpoints failed, serving stale cache")
		return b.cached, nil
	}
	return decimal.Decimal{}, errors.New("all reference rate endpoints failed")
}

func (b *BCV) fetchOne(ctx context.Context, ep bcvEndpoint) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return ep.Parse(data)
}

var _ ReferenceRateFetcher = (*BCV)(nil)
