package strategy

import (
	"sort"
	"time"

	"ApexScreener/internal/calculator"
	"ApexScreener/internal/model"
)

const (
	recentBullAppearBars = 30
	trapLookback         = 126
	pullbackBars         = 4
	confirmationBars     = 6
)

var maWindows = calculator.DefaultWindows

// appearSetup is one wallaby/kangaroo pair under evaluation.
type appearSetup struct {
	bars     []model.AggregatedBar
	wallaby  int
	kangaroo int
}

// ScanBullAppear scans an SMA-augmented aggregated series for bull appear
// setups. Outside historical mode only the last 30 bars are scanned.
func ScanBullAppear(series []model.AggregatedBar, historical bool) Result {
	bars := series
	if !historical && len(bars) > recentBullAppearBars {
		bars = bars[len(bars)-recentBullAppearBars:]
	}

	candidates := calculator.LowInflexionPoints(bars)
	var res Result
	for w := 1; w < len(bars); w++ {
		if !isInsideBar(bars, w) {
			continue
		}
		s := appearSetup{bars: bars, wallaby: w, kangaroo: w - 1}
		date, reason := s.evaluate(candidates)
		if reason != "" {
			res.reject(model.BullAppear, bars[w].Date, reason)
			continue
		}
		res.accept(model.BullAppear, date)
	}
	sort.SliceStable(res.Signals, func(i, j int) bool { return res.Signals[i].Date.Before(res.Signals[j].Date) })
	return res
}

// evaluate runs the checks in order and returns the signal date, or the
// first failing reason.
func (s appearSetup) evaluate(candidates []model.InflexionPoint) (time.Time, Reason) {
	if s.kangaroo < 1 {
		return time.Time{}, ReasonNoTrapWindow
	}
	traps := s.activeTraps(candidates)
	if len(traps) == 0 {
		return time.Time{}, ReasonNoActiveTrap
	}
	if s.sma200Declining() {
		return time.Time{}, ReasonSMA200Declining
	}
	if s.kangarooBelowSMA50() {
		return time.Time{}, ReasonKangarooBelowMA50
	}
	date, ok := s.pullbackRecovery()
	if !ok {
		return time.Time{}, ReasonNoPullback
	}
	if !s.confirmed(traps, date) {
		return time.Time{}, ReasonNoConfirmation
	}
	return date, ""
}

// activeTraps are the unbroken lows in the 126 bars ending at the bar before
// the kangaroo, that is [wallaby-127, wallaby-2].
func (s appearSetup) activeTraps(candidates []model.InflexionPoint) []model.InflexionPoint {
	start := s.wallaby - trapLookback - 1
	if start < 0 {
		start = 0
	}
	end := s.kangaroo - 1
	return calculator.FindValidTraps(candidates, s.bars[start].Date, s.bars[end].Date)
}

// sma200Declining compares the kangaroo's 200 SMA with the one five bars later.
// Near the end of the series there is nothing to compare and the check passes.
func (s appearSetup) sma200Declining() bool {
	ahead := s.kangaroo + 5
	if ahead >= len(s.bars) {
		return false
	}
	return s.bars[s.kangaroo].MA(200) > s.bars[ahead].MA(200)
}

func (s appearSetup) kangarooBelowSMA50() bool {
	k := s.bars[s.kangaroo]
	return k.Low <= k.MA(50)
}

// pullbackRecovery walks up to four bars after the wallaby looking for a dip
// under the kangaroo low followed by a bullish close back inside the
// kangaroo range. A bar above the kangaroo high ends the walk. The returned
// date is the last bar examined.
func (s appearSetup) pullbackRecovery() (time.Time, bool) {
	k := s.bars[s.kangaroo]
	var last time.Time
	dipped, recovered := false, false
	for i := 1; i <= pullbackBars; i++ {
		pos := s.wallaby + i
		if pos >= len(s.bars) {
			break
		}
		cur := s.bars[pos]
		last = cur.Date
		if cur.High > k.High {
			break
		}
		if !dipped && cur.Low < k.Low {
			dipped = true
		}
		if dipped && straddles(k, cur.Close) && isBullishBar(cur) {
			recovered = true
			break
		}
	}
	return last, dipped && recovered
}

// confirmed looks at the six bars from the one before the kangaroo, never past
// the signal date, for a bar that takes an active trap or touches a moving
// average. The first bar of the window only anchors it.
func (s appearSetup) confirmed(traps []model.InflexionPoint, until time.Time) bool {
	start := s.kangaroo - 1
	for j := 0; j < confirmationBars; j++ {
		pos := start + j
		if pos >= len(s.bars) {
			break
		}
		cur := s.bars[pos]
		if cur.Date.After(until) {
			break
		}
		if j == 0 {
			continue
		}
		if takesTrap(cur, traps) || touchesMovingAverage(cur) {
			return true
		}
	}
	return false
}
