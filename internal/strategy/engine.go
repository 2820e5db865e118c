package strategy

import (
	"sort"

	"ApexScreener/internal/calculator"
	"ApexScreener/internal/model"
)

// Prepare turns raw daily bars into the 2-day series with 20/50/200 SMAs.
func Prepare(daily []model.Bar) []model.AggregatedBar {
	return calculator.ApplySMA(calculator.Aggregate2Day(daily), calculator.DefaultWindows...)
}

// ScanPattern runs one scanner over a prepared series. Unknown kinds yield an
// empty result.
func ScanPattern(series []model.AggregatedBar, kind model.PatternKind, historical bool) Result {
	switch kind {
	case model.BullAppear:
		return ScanBullAppear(series, historical)
	case model.BullRaging:
		return ScanBullRaging(series, historical)
	default:
		return Result{}
	}
}

// Scan runs the requested pattern scanners over one ticker's daily history and
// merges their output in chronological order. historical selects the full
// history; otherwise each scanner only looks at its recent window.
func Scan(daily []model.Bar, kinds []model.PatternKind, historical bool) Result {
	series := Prepare(daily)

	var out Result
	for _, k := range kinds {
		r := ScanPattern(series, k, historical)
		out.Signals = append(out.Signals, r.Signals...)
		out.Rejections = append(out.Rejections, r.Rejections...)
	}
	sort.SliceStable(out.Signals, func(i, j int) bool { return out.Signals[i].Date.Before(out.Signals[j].Date) })
	return out
}
