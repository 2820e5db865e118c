package cmd

import (
	"github.com/rs/zerolog/log"

	"ApexScreener/internal/backtest"
	"ApexScreener/internal/collector"
	"ApexScreener/internal/config"
	"ApexScreener/internal/recorder"
	"ApexScreener/internal/screener"
)

// app bundles the collaborators every command needs.
type app struct {
	svc     *screener.Service
	tickers *collector.TickerSource
	store   recorder.Recorder
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("close store")
	}
}

func newApp(c *config.Config) (*app, error) {
	patterns, err := c.PatternKinds()
	if err != nil {
		return nil, err
	}
	from, err := c.HistoryStart()
	if err != nil {
		return nil, err
	}
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}

	var fetcher collector.Fetcher
	if c.DataSource.Provider == "mock" {
		fetcher = &collector.MockFetcher{Price: 100}
	} else {
		fetcher = collector.NewYahooFetcher(c.Proxy, collector.WithRateLimit(c.DataSource.RequestsPerSecond))
	}
	log.Info().Str("provider", fetcher.Name()).Msg("data source ready")

	var store recorder.Recorder
	sr, err := recorder.NewSQLiteRecorder(c.Cache.SQLitePath)
	if err != nil {
		log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		store = recorder.NewNoopRecorder()
	} else {
		store = sr
	}

	policy := backtest.UnresolvedExclude
	if c.Screener.UnresolvedAsLoss {
		policy = backtest.UnresolvedAsLoss
	}
	tickers := collector.NewTickerSource(c.Screener.TickerFallbackFile, c.Screener.SECUserAgent, c.Screener.Tickers)

	svc := screener.New(screener.Config{
		Patterns:       patterns,
		ComputeWinRate: c.Screener.ComputeWinRate,
		Horizon:        c.Screener.ForwardHorizonDays,
		Policy:         policy,
		RecencyDays:    c.Screener.RecencyDays,
		MinPrice:       c.Screener.MinPrice,
		Concurrency:    c.Screener.Concurrency,
		HistoryFrom:    from,
		Location:       loc,
		FreshAfterHour: c.Cache.FreshAfterHour,
		Retry: screener.RetryPolicy{
			MaxAttempts: c.Screener.MaxAttempts,
			Backoff:     c.Screener.RetryBackoff,
		},
	}, fetcher, tickers, store)

	return &app{svc: svc, tickers: tickers, store: store}, nil
}
