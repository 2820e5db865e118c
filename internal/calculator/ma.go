package calculator

import (
	"errors"
	"math"

	"ApexScreener/internal/model"

	talib "github.com/markcheno/go-talib"
)

// DefaultWindows are the moving averages the pattern scanners read.
var DefaultWindows = []int{20, 50, 200}

// CalculateSMA computes the simple moving average of the given prices over the specified period.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// SMASeries returns the trailing mean of closes for every index, NaN while
// fewer than period values are available. A missing close makes every window
// containing it NaN. The talib path keeps a running sum, so values can differ
// from the naive mean in the last few ulps.
func SMASeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(closes) < period {
		return out
	}

	if !hasNaN(closes) {
		fast := talib.Sma(closes, period)
		copy(out[period-1:], fast[period-1:])
		return out
	}

	for i := period - 1; i < len(closes); i++ {
		// Sum propagates NaN, which is the undefined marker we want.
		v, _ := CalculateSMA(closes[i-period+1:i+1], period)
		out[i] = v
	}
	return out
}

// ApplySMA stores one moving average per window on every aggregated bar.
func ApplySMA(bars []model.AggregatedBar, windows ...int) []model.AggregatedBar {
	if len(windows) == 0 {
		windows = DefaultWindows
	}
	closes := extractCloses(bars)
	for _, w := range windows {
		series := SMASeries(closes, w)
		for i := range bars {
			bars[i].SetMA(w, series[i])
		}
	}
	return bars
}

func extractCloses(bars []model.AggregatedBar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

func hasNaN(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}
