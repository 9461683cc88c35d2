package fetcher

import (
	"context"

	"github.com/shopspring/decimal"

	"p2p-price-tracker/internal/offers"
)

// OfferFetcher retrieves raw marketplace offers for one side. Calls are
// idempotent and may be repeated; retry mechanics live behind the interface.
type OfferFetcher interface {
	FetchOffers(ctx context.Context, side offers.Side) ([]offers.Offer, error)
}

// ReferenceRateFetcher retrieves the official reference exchange rate. It is
// best-effort input: callers must tolerate an error and carry on.
type ReferenceRateFetcher interface {
	FetchRate(ctx context.Context) (decimal.Decimal, error)
}
