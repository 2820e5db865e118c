package strategy

import (
	"math"

	"ApexScreener/internal/model"
)

const (
	bullishBodyFrac = 0.5 // close-open as a share of the bar range
	upperFifth      = 4.0 / 5.0
	flushBodyFrac   = 0.7 // open-close as a share of the bar range
)

// isBullishBar: opened and closed in the top fifth of the range, or a body
// of more than half the range to the upside.
func isBullishBar(b model.AggregatedBar) bool {
	r := b.Range()
	top := b.Low + upperFifth*r
	return (b.Open > top && b.Close > top) || b.Close-b.Open > bullishBodyFrac*r
}

// isFlushDown is a bar whose downside body covers more than 70% of its range.
func isFlushDown(b model.AggregatedBar) bool {
	return b.Open-b.Close > flushBodyFrac*b.Range()
}

// isInsideBar reports whether bar i has a lower high and a higher low than bar i-1.
func isInsideBar(bars []model.AggregatedBar, i int) bool {
	return i > 0 && bars[i].High < bars[i-1].High && bars[i].Low > bars[i-1].Low
}

// straddles reports low <= v <= high. NaN never straddles.
func straddles(b model.AggregatedBar, v float64) bool {
	return b.Low <= v && v <= b.High
}

// strictlyInside reports low < v < high.
func strictlyInside(b model.AggregatedBar, v float64) bool {
	return b.Low < v && v < b.High
}

// touchesMovingAverage reports whether the bar's range covers any of the
// 20/50/200 moving averages.
func touchesMovingAverage(b model.AggregatedBar) bool {
	for _, w := range maWindows {
		if straddles(b, b.MA(w)) {
			return true
		}
	}
	return false
}

// takesTrap reports whether any trap value lies strictly inside the bar's range.
func takesTrap(b model.AggregatedBar, traps []model.InflexionPoint) bool {
	for _, t := range traps {
		if strictlyInside(b, t.Value) {
			return true
		}
	}
	return false
}

// openInterval returns closed bounds equivalent to the open interval (low, high).
func openInterval(low, high float64) (float64, float64) {
	return math.Nextafter(low, math.Inf(1)), math.Nextafter(high, math.Inf(-1))
}
