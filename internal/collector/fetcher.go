package collector

import (
	"context"
	"time"

	"ApexScreener/internal/model"
)

// HistoryStart is the earliest date requested when a full history is needed.
var HistoryStart = model.Day(1950, 1, 1)

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	// FetchDailyHistory returns daily bars in ascending date order covering
	// [from, to]. Missing prices are NaN.
	FetchDailyHistory(ctx context.Context, ticker string, from, to time.Time) ([]model.Bar, error)
	Name() string
}

// FetchFullHistory fetches everything from HistoryStart up to now.
func FetchFullHistory(ctx context.Context, f Fetcher, ticker string, now time.Time) (*model.PriceSeries, error) {
	bars, err := f.FetchDailyHistory(ctx, ticker, HistoryStart, now)
	if err != nil {
		return nil, err
	}
	return &model.PriceSeries{Symbol: ticker, Bars: bars, FetchedAt: now}, nil
}
