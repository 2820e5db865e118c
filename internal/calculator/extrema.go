package calculator

import "ApexScreener/internal/model"

// pivotReach is how many bars on each side must be strictly beyond the pivot.
const pivotReach = 2

// LowInflexionPoints returns every bar whose low is strictly below the lows of
// the two bars before and the two bars after it.
func LowInflexionPoints(bars []model.AggregatedBar) []model.InflexionPoint {
	return inflexionPoints(bars, func(b model.AggregatedBar) float64 { return b.Low }, func(v, n float64) bool { return v < n })
}

// HighInflexionPoints is the mirror of LowInflexionPoints on highs.
func HighInflexionPoints(bars []model.AggregatedBar) []model.InflexionPoint {
	return inflexionPoints(bars, func(b model.AggregatedBar) float64 { return b.High }, func(v, n float64) bool { return v > n })
}

func inflexionPoints(bars []model.AggregatedBar, price func(model.AggregatedBar) float64, beyond func(v, neighbour float64) bool) []model.InflexionPoint {
	if len(bars) < 2*pivotReach+1 {
		return nil
	}
	var out []model.InflexionPoint
	for i := pivotReach; i < len(bars)-pivotReach; i++ {
		v := price(bars[i])
		ok := true
		for j := i - pivotReach; j <= i+pivotReach && ok; j++ {
			if j != i && !beyond(v, price(bars[j])) {
				ok = false
			}
		}
		if ok {
			out = append(out, model.InflexionPoint{Date: bars[i].Date, Index: i, Value: v})
		}
	}
	return out
}
