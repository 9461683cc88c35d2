package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"p2p-price-tracker/internal/offers"
)

const binanceSearchPath = "/bapi/c2c/v2/friendly/c2c/adv/search"

// BinanceOptions parameterise the Binance P2P fetcher.
type BinanceOptions struct {
	BaseURL        string
	Asset          string
	Fiat           string
	Rows           int
	PaymentMethods []string
	MinAmount      decimal.Decimal
	MaxRetries     int
	Timeout        time.Duration
}

// Binance fetches P2P advertisements from the Binance C2C search endpoint.
type Binance struct {
	opts    BinanceOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewBinance constructs a Binance P2P fetcher.
func NewBinance(opts BinanceOptions, logger zerolog.Logger) *Binance {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Rows <= 0 {
		opts.Rows = 10
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://p2p.binance.com"
	}

	return &Binance{
		opts:    opts,
		logger:  logger.With().Str("component", "binance_fetcher").Logger(),
		client:  &http.Client{Timeout: opts.Timeout},
		baseURL: baseURL,
	}
}

// FetchOffers retrieves offers for one side, already server-side filtered by
// payment method and transaction amount. Malformed rows and non-positive
// prices are skipped at parse time.
func (b *Binance) FetchOffers(ctx context.Context, side offers.Side) ([]offers.Offer, error) {
	payload := b.searchPayload(side)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal search payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < b.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff between attempts, interruptible.
			if err := sleepCtx(ctx, time.Duration(1<<attempt)*time.Second); err != nil {
				return nil, err
			}
		}

		result, retry, err := b.doSearch(ctx, body)
		if err == nil {
			return b.parseOffers(result, side), nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
		b.logger.Warn().Err(err).
			Str("side", string(side)).
			Int("attempt", attempt+1).
			Msg("offer fetch failed, retrying")
	}

	return nil, fmt.Errorf("fetch %s offers after %d attempts: %w", side, b.opts.MaxRetries, lastErr)
}

func (b *Binance) searchPayload(side offers.Side) map[string]any {
	// The API expects method names without spaces or hyphens
	// ("PagoMovil", not "Pago Movil").
	payTypes := make([]string, 0, len(b.opts.PaymentMethods))
	for _, m := range b.opts.PaymentMethods {
		m = strings.ReplaceAll(m, " ", "")
		m = strings.ReplaceAll(m, "-", "")
		if m != "" {
			payTypes = append(payTypes, m)
		}
	}

	transAmount := ""
	if b.opts.MinAmount.Sign() > 0 {
		transAmount = b.opts.MinAmount.String()
	}

	return map[string]any{
		"fiat":        b.opts.Fiat,
		"page":        1,
		"rows":        b.opts.Rows,
		"tradeType":   string(side),
		"asset":       b.opts.Asset,
		"countries":   []string{},
		"proMerchantAds": false,
		"filterType":  "tradable",
		"payTypes":    payTypes,
		"transAmount": transAmount,
	}
}

// doSearch performs one HTTP attempt. retry reports whether the failure is
// transient (5xx, rate limit, network) rather than a data fault.
func (b *Binance) doSearch(ctx context.Context, body []byte) (*searchResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+binanceSearchPath, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot:
		// 418 is Binance's IP-ban response; both carry Retry-After.
		wait := retryAfter(resp, 60*time.Second)
		b.logger.Warn().Int("status", resp.StatusCode).Dur("wait", wait).Msg("rate limited")
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, false, err
		}
		return nil, true, fmt.Errorf("rate limited (%d)", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("search status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("search status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read search response: %w", err)
	}

	var result searchResponse
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false, fmt.Errorf("decode search response: %w", err)
	}
	if result.Data == nil {
		return nil, false, fmt.Errorf("search response missing data")
	}
	return &result, false, nil
}

func (b *Binance) parseOffers(result *searchResponse, side offers.Side) []offers.Offer {
	out := make([]offers.Offer, 0, len(result.Data))
	for _, row := range result.Data {
		offer, err := row.toOffer(side)
		if err != nil {
			b.logger.Debug().Err(err).Msg("skipping malformed offer row")
			continue
		}
		out = append(out, offer)
	}
	return out
}

func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type searchResponse struct {
	Data []searchRow `json:"data"`
}

type searchRow struct {
	Adv struct {
		Price                       string `json:"price"`
		SurplusAmount               string `json:"surplusAmount"`
		MinSingleTransAmount        string `json:"minSingleTransAmount"`
		MaxSingleTransAmount        string `json:"maxSingleTransAmount"`
		DynamicMaxSingleTransAmount string `json:"dynamicMaxSingleTransAmount"`
		TradeMethods                []struct {
			Identifier      string `json:"identifier"`
			TradeMethodName string `json:"tradeMethodName"`
		} `json:"tradeMethods"`
	} `json:"adv"`
	Advertiser struct {
		NickName        string  `json:"nickName"`
		MonthOrderCount int     `json:"monthOrderCount"`
		MonthFinishRate float64 `json:"monthFinishRate"`
	} `json:"advertiser"`
	PrivilegeType json.RawMessage `json:"privilegeType"`
}

func (r searchRow) toOffer(side offers.Side) (offers.Offer, error) {
	price, err := decimal.NewFromString(r.Adv.Price)
	if err != nil {
		return offers.Offer{}, fmt.Errorf("parse price: %w", err)
	}
	if price.Sign() <= 0 {
		return offers.Offer{}, fmt.Errorf("non-positive price %s", price)
	}

	available := parseDecimalOrZero(r.Adv.SurplusAmount)
	minTrans := parseDecimalOrZero(r.Adv.MinSingleTransAmount)

	// The dynamic max reflects remaining liquidity and takes precedence
	// over the advertised max when present.
	maxTrans := parseDecimalOrZero(r.Adv.DynamicMaxSingleTransAmount)
	if maxTrans.Sign() <= 0 {
		maxTrans = parseDecimalOrZero(r.Adv.MaxSingleTransAmount)
	}

	methods := make([]offers.TradeMethod, 0, len(r.Adv.TradeMethods))
	for _, m := range r.Adv.TradeMethods {
		if m.TradeMethodName == "" {
			continue
		}
		methods = append(methods, offers.TradeMethod{
			Identifier: m.Identifier,
			Name:       m.TradeMethodName,
		})
	}

	return offers.Offer{
		Price: price,
		Side:  side,
		Trader: offers.Trader{
			Nickname:        r.Advertiser.NickName,
			MonthOrderCount: r.Advertiser.MonthOrderCount,
			MonthFinishRate: r.Advertiser.MonthFinishRate,
		},
		AvailableAmount: available,
		MinTransAmount:  minTrans,
		MaxTransAmount:  maxTrans,
		TradeMethods:    methods,
		Promoted:        len(r.PrivilegeType) > 0 && string(r.PrivilegeType) != "null",
	}, nil
}

func parseDecimalOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var _ OfferFetcher = (*Binance)(nil)
