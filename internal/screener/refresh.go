package screener

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"ApexScreener/internal/backtest"
	"ApexScreener/internal/collector"
	"ApexScreener/internal/model"
	"ApexScreener/internal/recorder"
	"ApexScreener/internal/strategy"
)

// ErrRetriesExhausted aborts a refresh batch when the provider keeps rate
// limiting us.
var ErrRetriesExhausted = errors.New("fetch retries exhausted")

// RetryPolicy controls how rate-limited fetches are retried.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy is three attempts ten minutes apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 10 * time.Minute}
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// fetchWithRetry retries only rate-limit failures. Any other error is
// returned as is for the caller to skip the ticker.
func (s *Service) fetchWithRetry(ctx context.Context, ticker string, now time.Time) ([]model.Bar, error) {
	attempts := max(1, s.cfg.Retry.MaxAttempts)
	for attempt := 1; ; attempt++ {
		bars, err := s.fetcher.FetchDailyHistory(ctx, ticker, s.cfg.HistoryFrom, now)
		if err == nil {
			return bars, nil
		}
		if !collector.IsRetryable(err) {
			return nil, err
		}
		if attempt >= attempts {
			return nil, fmt.Errorf("%s after %d attempts: %w: %w", ticker, attempts, ErrRetriesExhausted, err)
		}
		log.Warn().Err(err).
			Str("ticker", ticker).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("backoff", s.cfg.Retry.Backoff).
			Msg("rate limited, retrying")
		if err := s.cfg.Retry.sleep(ctx, s.cfg.Retry.Backoff); err != nil {
			return nil, err
		}
	}
}

type tally struct {
	mu sync.Mutex
	model.RunSummary
}

func (t *tally) add(f func(s *model.RunSummary)) {
	t.mu.Lock()
	f(&t.RunSummary)
	t.mu.Unlock()
}

// Refresh recomputes the cache for one pattern. Tickers with a fresh record
// are left alone. A ticker the provider has no data for is skipped; retry
// exhaustion stops scheduling new tickers and is returned. Records already
// written stay written. The summary is returned and stored in both cases.
func (s *Service) Refresh(ctx context.Context, pattern model.PatternKind) (*model.RunSummary, error) {
	now := s.Now()
	t := &tally{RunSummary: model.RunSummary{RunID: s.NewRunID(), Pattern: pattern, StartedAt: now}}
	logger := log.With().Str("run_id", t.RunID).Str("pattern", string(pattern)).Logger()

	tickers, err := s.tickers.Tickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tickers: %w", err)
	}
	existing, err := s.store.List(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	fresh := make(map[string]bool, len(existing))
	for i := range existing {
		if existing[i].IsFresh(now, s.cfg.Location, s.cfg.FreshAfterHour) {
			fresh[existing[i].Ticker] = true
		}
	}
	logger.Info().Int("tickers", len(tickers)).Int("fresh", len(fresh)).Msg("refresh started")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, ticker := range tickers {
		if fresh[ticker] {
			t.add(func(r *model.RunSummary) { r.Fresh++ })
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return s.refreshTicker(gctx, pattern, ticker, now, t)
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	t.FinishedAt = s.Now()
	if runErr != nil {
		t.Err = runErr.Error()
	}
	summary := t.RunSummary
	if err := s.store.RecordRun(context.WithoutCancel(ctx), &summary); err != nil {
		logger.Error().Err(err).Msg("record run summary")
	}

	ev := logger.Info()
	if runErr != nil {
		ev = logger.Error().Err(runErr)
	}
	ev.Int("processed", summary.Processed).
		Int("skipped", summary.Skipped).
		Int("fresh", summary.Fresh).
		Int("failed", summary.Failed).
		Dur("took", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("refresh finished")

	if runErr != nil {
		return &summary, fmt.Errorf("refresh %s: %w", pattern, runErr)
	}
	return &summary, nil
}

// RefreshAll refreshes every configured pattern in turn and stops at the
// first failed batch.
func (s *Service) RefreshAll(ctx context.Context) ([]model.RunSummary, error) {
	var out []model.RunSummary
	for _, kind := range s.cfg.Patterns {
		sum, err := s.Refresh(ctx, kind)
		if sum != nil {
			out = append(out, *sum)
		}
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func (s *Service) refreshTicker(ctx context.Context, pattern model.PatternKind, ticker string, now time.Time, t *tally) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, pattern, ticker); err != nil {
		t.add(func(r *model.RunSummary) { r.Failed++ })
		return fmt.Errorf("delete stale %s: %w", ticker, err)
	}

	bars, err := s.fetchWithRetry(ctx, ticker, now)
	switch {
	case errors.Is(err, ErrRetriesExhausted):
		t.add(func(r *model.RunSummary) { r.Failed++ })
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		t.add(func(r *model.RunSummary) { r.Skipped++ })
		log.Info().Err(err).Str("ticker", ticker).Msg("no usable data, skipping")
		return nil
	}

	rec := BuildRecord(ticker, pattern, bars, now)
	rec.RunID = t.RunID
	if err := s.store.Upsert(ctx, rec); err != nil {
		t.add(func(r *model.RunSummary) { r.Failed++ })
		return fmt.Errorf("store %s: %w", ticker, err)
	}
	t.add(func(r *model.RunSummary) { r.Processed++ })
	log.Debug().Str("ticker", ticker).Int("signals", len(rec.Analysis)).Msg("cache record stored")
	return nil
}

// BuildRecord scans the full history for one pattern and packages the
// forward analysis with the latest close rounded to cents.
func BuildRecord(ticker string, pattern model.PatternKind, bars []model.Bar, now time.Time) *model.CacheRecord {
	res := strategy.ScanPattern(strategy.Prepare(bars), pattern, true)
	rec := &model.CacheRecord{
		Ticker:    ticker,
		Pattern:   pattern,
		Analysis:  backtest.Analyze(uniqueDates(res.Dates()), bars),
		CreatedAt: now,
	}
	ps := model.PriceSeries{Symbol: ticker, Bars: bars}
	if c := ps.LatestClose(); !math.IsNaN(c) {
		rec.LatestClosePrice = decimal.NewNullDecimal(decimal.NewFromFloat(c).Round(2))
	}
	return rec
}

// LastRuns returns the latest stored run per configured pattern.
func (s *Service) LastRuns(ctx context.Context) ([]model.RunSummary, error) {
	var out []model.RunSummary
	for _, kind := range s.cfg.Patterns {
		run, err := s.store.LastRun(ctx, kind)
		if err != nil {
			if errors.Is(err, recorder.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *run)
	}
	return out, nil
}
