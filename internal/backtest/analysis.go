package backtest

import (
	"math"
	"time"

	"ApexScreener/internal/model"
)

// ForwardOffsets are the trading-day horizons reported per signal.
var ForwardOffsets = []int{1, 5, 20}

// Analyze builds the forward close change (in percent) and the volume for
// every signal date. Dates missing from the series get an empty result.
func Analyze(dates []time.Time, bars []model.Bar) map[string]model.AnalysisResult {
	out := make(map[string]model.AnalysisResult, len(dates))
	for _, d := range dates {
		var r model.AnalysisResult
		if idx := IndexOf(bars, d); idx >= 0 {
			r.Change1TD = changePct(bars, idx, 1)
			r.Change5TD = changePct(bars, idx, 5)
			r.Change20TD = changePct(bars, idx, 20)
			v := bars[idx].Volume
			r.Volume = &v
		}
		out[model.DateKey(d)] = r
	}
	return out
}

func changePct(bars []model.Bar, idx, offset int) *float64 {
	if idx+offset >= len(bars) {
		return nil
	}
	base, next := bars[idx].Close, bars[idx+offset].Close
	if math.IsNaN(base) || math.IsNaN(next) || base == 0 {
		return nil
	}
	v := (next - base) / base * 100
	return &v
}
