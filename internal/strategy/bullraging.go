package strategy

import (
	"math"
	"sort"

	"ApexScreener/internal/calculator"
	"ApexScreener/internal/model"
)

const (
	recentBullRagingBars = 210
	minRagingRange       = 5
	minFlushRatio        = 0.3
	recoveryBars         = 6
)

// ragingFold is the state threaded through the high inflexion points in
// chronological order. future shrinks to the lows dated after the current high.
type ragingFold struct {
	bars   []model.AggregatedBar
	lows   []model.InflexionPoint
	future []model.InflexionPoint
	res    Result
}

// ScanBullRaging scans an aggregated series for bull raging setups. Outside
// historical mode only the last 210 bars are scanned.
func ScanBullRaging(series []model.AggregatedBar, historical bool) Result {
	bars := series
	if !historical && len(bars) > recentBullRagingBars {
		bars = bars[len(bars)-recentBullRagingBars:]
	}

	lows := calculator.LowInflexionPoints(bars)
	fold := ragingFold{bars: bars, lows: lows, future: lows}
	for _, h := range calculator.HighInflexionPoints(bars) {
		fold = fold.step(h)
	}

	res := fold.res
	sort.SliceStable(res.Signals, func(i, j int) bool { return res.Signals[i].Date.Before(res.Signals[j].Date) })
	return res
}

func (f ragingFold) step(h model.InflexionPoint) ragingFold {
	for len(f.future) > 0 && !f.future[0].Date.After(h.Date) {
		f.future = f.future[1:]
	}
	idx, reason := f.evaluate(h)
	if reason != "" {
		f.res.reject(model.BullRaging, h.Date, reason)
	} else {
		f.res.accept(model.BullRaging, f.bars[idx].Date)
	}
	return f
}

// stoppingPoint is the first later low below the high, or the last bar.
func (f ragingFold) stoppingPoint(h model.InflexionPoint) (idx int, low float64) {
	for _, c := range f.future {
		if c.Value < h.Value {
			return c.Index, c.Value
		}
	}
	last := len(f.bars) - 1
	return last, f.bars[last].Low
}

// evaluate returns the index of the signal bar for high h, or the reason it failed.
func (f ragingFold) evaluate(h model.InflexionPoint) (int, Reason) {
	stop, stopLow := f.stoppingPoint(h)
	if math.IsNaN(stopLow) {
		return -1, ReasonNoTrapBelowHigh
	}
	// The trap must sit strictly between the stopping low and the high.
	lo, hi := openInterval(stopLow, h.Value)
	trap, ok := calculator.FindLowestValidTrapInRange(f.lows, h.Date, lo, hi)
	if !ok {
		return -1, ReasonNoTrapBelowHigh
	}
	mid := trap.Value + (h.Value-trap.Value)/2

	sub := f.bars[h.Index : stop+1]
	first, flushes := -1, 0
	for i, b := range sub {
		if isFlushDown(b) {
			if first < 0 {
				first = i
			}
			flushes++
		}
	}
	if flushes == 0 {
		return -1, ReasonNoFlushDown
	}
	if sub[first].High < mid {
		return -1, ReasonFlushBelowMid
	}
	if len(sub) < minRagingRange {
		return -1, ReasonRangeTooShort
	}
	if float64(flushes)/float64(len(sub)) < minFlushRatio {
		return -1, ReasonFlushRatioLow
	}

	brk := -1
	for i, b := range sub {
		if b.Low < trap.Value {
			brk = h.Index + i
			break
		}
	}
	if brk < 0 {
		return -1, ReasonTrapNotBroken
	}

	for i := brk; i < brk+recoveryBars && i < len(f.bars); i++ {
		b := f.bars[i]
		if b.Close > trap.Value && isBullishBar(b) {
			return i, ""
		}
	}
	return -1, ReasonNoRecovery
}
