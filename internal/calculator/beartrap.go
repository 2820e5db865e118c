package calculator

import (
	"time"

	"ApexScreener/internal/model"
)

// FindValidTraps keeps the candidates dated within [from, to] that are not
// undercut by a strictly lower candidate dated later inside the same window.
// Output keeps chronological order.
func FindValidTraps(candidates []model.InflexionPoint, from, to time.Time) []model.InflexionPoint {
	var window []model.InflexionPoint
	for _, c := range candidates {
		if !c.Date.Before(from) && !c.Date.After(to) {
			window = append(window, c)
		}
	}
	return unbroken(window)
}

// FindLowestValidTrapInRange returns the lowest candidate dated before the
// given date whose value lies in [low, high] and that no later candidate
// (still before the date) undercuts. Ties go to the earliest candidate.
func FindLowestValidTrapInRange(candidates []model.InflexionPoint, before time.Time, low, high float64) (model.InflexionPoint, bool) {
	var pool []model.InflexionPoint
	for _, c := range candidates {
		if c.Date.Before(before) {
			pool = append(pool, c)
		}
	}

	var best model.InflexionPoint
	found := false
	for _, c := range unbroken(pool) {
		if c.Value < low || c.Value > high {
			continue
		}
		if !found || c.Value < best.Value {
			best = c
			found = true
		}
	}
	return best, found
}

// unbroken filters a chronological slice down to points with no strictly
// lower point after them.
func unbroken(points []model.InflexionPoint) []model.InflexionPoint {
	if len(points) == 0 {
		return nil
	}
	keep := make([]bool, len(points))
	var laterMin float64
	for i := len(points) - 1; i >= 0; i-- {
		if i == len(points)-1 || !(laterMin < points[i].Value) {
			keep[i] = true
		}
		if i == len(points)-1 || points[i].Value < laterMin {
			laterMin = points[i].Value
		}
	}
	out := make([]model.InflexionPoint, 0, len(points))
	for i, p := range points {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}
