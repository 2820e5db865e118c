package screener

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"ApexScreener/internal/backtest"
	"ApexScreener/internal/collector"
	"ApexScreener/internal/model"
	"ApexScreener/internal/recorder"
)

// TickerLister supplies the screening universe.
type TickerLister interface {
	Tickers(ctx context.Context) ([]string, error)
}

// Config drives scanning, screening and cache refresh.
type Config struct {
	Patterns       []model.PatternKind
	ComputeWinRate bool
	Horizon        int
	Policy         backtest.UnresolvedPolicy
	RecencyDays    int
	MinPrice       float64
	Concurrency    int
	HistoryFrom    time.Time
	Location       *time.Location
	FreshAfterHour int
	Retry          RetryPolicy
}

// DefaultConfig mirrors the screener defaults: both patterns, a 20 trading day
// horizon, 5 days of recency and a $20 price floor.
func DefaultConfig() Config {
	return Config{
		Patterns:       model.AllPatterns,
		Horizon:        20,
		Policy:         backtest.UnresolvedExclude,
		RecencyDays:    5,
		MinPrice:       20,
		Concurrency:    4,
		HistoryFrom:    collector.HistoryStart,
		Location:       time.UTC,
		FreshAfterHour: 5,
		Retry:          DefaultRetryPolicy(),
	}
}

// Service ties the data collaborators to the detection engine.
type Service struct {
	cfg     Config
	fetcher collector.Fetcher
	tickers TickerLister
	store   recorder.Recorder

	// Now and NewRunID are replaceable for tests.
	Now      func() time.Time
	NewRunID func() string
}

// New creates a Service. A nil store disables caching.
func New(cfg Config, fetcher collector.Fetcher, tickers TickerLister, store recorder.Recorder) *Service {
	if store == nil {
		store = recorder.NewNoopRecorder()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.HistoryFrom.IsZero() {
		cfg.HistoryFrom = collector.HistoryStart
	}
	return &Service{
		cfg:      cfg,
		fetcher:  fetcher,
		tickers:  tickers,
		store:    store,
		Now:      time.Now,
		NewRunID: uuid.NewString,
	}
}

// Config returns the service configuration.
func (s *Service) Config() Config { return s.cfg }

// ScanTicker fetches one ticker's history and analyses it live.
func (s *Service) ScanTicker(ctx context.Context, ticker string) (*model.ScanResponse, error) {
	return s.scan(ctx, ticker, nil)
}

func (s *Service) scan(ctx context.Context, ticker string, precomputed map[model.PatternKind][]time.Time) (*model.ScanResponse, error) {
	now := s.Now()
	bars, err := s.fetcher.FetchDailyHistory(ctx, ticker, s.cfg.HistoryFrom, now)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ticker, err)
	}
	resp, result := Analyze(model.ScanRequest{
		Ticker:             ticker,
		PriceHistory:       bars,
		EnabledPatterns:    s.cfg.Patterns,
		ComputeWinRate:     s.cfg.ComputeWinRate,
		ForwardHorizonDays: s.cfg.Horizon,
		PrecomputedDates:   precomputed,
	}, now, s.cfg.Policy)

	log.Debug().
		Str("ticker", ticker).
		Int("bars", len(bars)).
		Int("signals", len(resp.Dates)).
		Interface("rejections", result.CountByReason()).
		Msg("ticker scanned")
	return resp, nil
}

// cachedDates returns the dates of fresh cache records per pattern.
func (s *Service) cachedDates(ctx context.Context, ticker string, now time.Time) map[model.PatternKind][]time.Time {
	out := make(map[model.PatternKind][]time.Time)
	for _, kind := range s.cfg.Patterns {
		rec, err := s.store.Get(ctx, kind, ticker)
		if err != nil {
			if !errors.Is(err, recorder.ErrNotFound) {
				log.Warn().Err(err).Str("ticker", ticker).Msg("cache lookup failed")
			}
			continue
		}
		if rec.IsFresh(now, s.cfg.Location, s.cfg.FreshAfterHour) {
			out[kind] = recordDates(rec)
		}
	}
	return out
}

// Report is the outcome of a screening pass.
type Report struct {
	Results        []model.ScanResponse
	OverallWinRate *float64
	Scanned        int
	Failed         int
}

// Screen analyses every ticker and keeps those with a signal inside the
// recency window whose latest close clears the price floor. Fresh cache
// records stand in for the scan.
func (s *Service) Screen(ctx context.Context, tickers []string) (*Report, error) {
	now := s.Now()
	since := now.AddDate(0, 0, -s.cfg.RecencyDays)
	sinceKey := model.DateKey(since)

	var (
		mu     sync.Mutex
		report Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, ticker := range tickers {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			resp, err := s.scan(gctx, ticker, s.cachedDates(gctx, ticker, now))
			mu.Lock()
			defer mu.Unlock()
			report.Scanned++
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				report.Failed++
				log.Warn().Err(err).Str("ticker", ticker).Msg("screen skipped ticker")
				return nil
			}
			if !keep(resp, sinceKey, s.cfg.MinPrice) {
				return nil
			}
			report.Results = append(report.Results, *resp)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("screen: %w", err)
	}

	sort.Slice(report.Results, func(i, j int) bool { return report.Results[i].Ticker < report.Results[j].Ticker })
	if s.cfg.ComputeWinRate {
		rates := make([]float64, 0, len(report.Results))
		for _, r := range report.Results {
			if r.WinRate != nil {
				rates = append(rates, *r.WinRate)
			}
		}
		if len(rates) > 0 {
			overall := backtest.OverallWinRate(rates)
			report.OverallWinRate = &overall
		}
	}
	return &report, nil
}

// keep applies the recency and price filters. ISO keys compare like dates.
func keep(resp *model.ScanResponse, sinceKey string, minPrice float64) bool {
	recent := false
	for _, d := range resp.Dates {
		if d >= sinceKey {
			recent = true
			break
		}
	}
	if !recent {
		return false
	}
	if minPrice > 0 && (resp.LatestClose == nil || *resp.LatestClose < minPrice) {
		return false
	}
	return true
}

// CachedHits lists cached tickers with a signal inside the recency window
// whose stored close clears the price floor. Nothing is fetched.
func (s *Service) CachedHits(ctx context.Context) ([]model.ScanResponse, error) {
	sinceKey := model.DateKey(s.Now().AddDate(0, 0, -s.cfg.RecencyDays))
	byTicker := make(map[string]*model.ScanResponse)

	for _, kind := range s.cfg.Patterns {
		records, err := s.store.List(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", kind, err)
		}
		for i := range records {
			rec := &records[i]
			dates := dateKeys(recordDates(rec))
			resp, ok := byTicker[rec.Ticker]
			if !ok {
				resp = &model.ScanResponse{Ticker: rec.Ticker, ByPattern: make(map[model.PatternKind][]string)}
				byTicker[rec.Ticker] = resp
			}
			resp.ByPattern[kind] = dates
			resp.Dates = append(resp.Dates, dates...)
			if rec.LatestClosePrice.Valid {
				c := rec.LatestClosePrice.Decimal.InexactFloat64()
				resp.LatestClose = &c
			}
		}
	}

	out := make([]model.ScanResponse, 0, len(byTicker))
	for _, resp := range byTicker {
		sort.Strings(resp.Dates)
		resp.Dates = compactStrings(resp.Dates)
		if keep(resp, sinceKey, s.cfg.MinPrice) {
			out = append(out, *resp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func compactStrings(in []string) []string {
	out := in[:0]
	for i, v := range in {
		if i == 0 || v != in[i-1] {
			out = append(out, v)
		}
	}
	return out
}
