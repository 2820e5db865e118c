package screener

import (
	"math"
	"sort"
	"time"

	"ApexScreener/internal/backtest"
	"ApexScreener/internal/model"
	"ApexScreener/internal/strategy"
)

// Analyze answers one scan request. Patterns with precomputed dates skip the
// scan. The full history is scanned only when a win rate is requested;
// otherwise each scanner looks at its recent window.
func Analyze(req model.ScanRequest, now time.Time, policy backtest.UnresolvedPolicy) (*model.ScanResponse, strategy.Result) {
	resp := &model.ScanResponse{
		Ticker:    req.Ticker,
		Dates:     []string{},
		ByPattern: make(map[model.PatternKind][]string, len(req.EnabledPatterns)),
	}

	var (
		result strategy.Result
		series []model.AggregatedBar
		merged []time.Time
	)
	for _, kind := range req.EnabledPatterns {
		dates, ok := req.PrecomputedDates[kind]
		if !ok {
			if series == nil {
				series = strategy.Prepare(req.PriceHistory)
			}
			r := strategy.ScanPattern(series, kind, req.ComputeWinRate)
			result.Signals = append(result.Signals, r.Signals...)
			result.Rejections = append(result.Rejections, r.Rejections...)
			dates = r.Dates()
		}
		resp.ByPattern[kind] = dateKeys(uniqueDates(dates))
		merged = append(merged, dates...)
	}
	merged = uniqueDates(merged)
	resp.Dates = dateKeys(merged)

	if req.ComputeWinRate {
		stats := backtest.NewEvaluator(req.ForwardHorizonDays, policy).Evaluate(merged, req.PriceHistory, now)
		if !math.IsNaN(stats.WinRate) {
			wr := stats.WinRate
			resp.WinRate = &wr
		}
	}

	ps := model.PriceSeries{Symbol: req.Ticker, Bars: req.PriceHistory}
	if c := ps.LatestClose(); !math.IsNaN(c) {
		resp.LatestClose = &c
	}
	return resp, result
}

// uniqueDates sorts and drops repeated calendar days.
func uniqueDates(in []time.Time) []time.Time {
	if len(in) == 0 {
		return nil
	}
	sorted := append([]time.Time(nil), in...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	out := sorted[:1]
	for _, d := range sorted[1:] {
		if !model.SameDay(d, out[len(out)-1]) {
			out = append(out, d)
		}
	}
	return out
}

func dateKeys(ds []time.Time) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = model.DateKey(d)
	}
	return out
}

// recordDates turns a cache record's analysis keys back into signal dates.
func recordDates(rec *model.CacheRecord) []time.Time {
	out := make([]time.Time, 0, len(rec.Analysis))
	for k := range rec.Analysis {
		if d, err := model.ParseDate(k); err == nil {
			out = append(out, d)
		}
	}
	return uniqueDates(out)
}
