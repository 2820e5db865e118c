package model

import (
	"math"
	"time"
)

// DateLayout is the ISO calendar-date form used for signal dates and cache keys.
const DateLayout = "2006-01-02"

// Bar represents one trading day. Prices the provider left empty are NaN.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// AggregatedBar is a synthetic bar covering two consecutive trading days.
// SMA holds one entry per computed window; NaN until enough history exists.
type AggregatedBar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
	SMA   map[int]float64
}

// MA returns the moving average for the given window, or NaN when it is undefined.
func (b *AggregatedBar) MA(window int) float64 {
	if v, ok := b.SMA[window]; ok {
		return v
	}
	return math.NaN()
}

// SetMA stores the moving average for the given window.
func (b *AggregatedBar) SetMA(window int, v float64) {
	if b.SMA == nil {
		b.SMA = make(map[int]float64, 3)
	}
	b.SMA[window] = v
}

// Range is high minus low.
func (b *AggregatedBar) Range() float64 {
	return b.High - b.Low
}

// PriceSeries holds the raw daily history for one ticker.
type PriceSeries struct {
	Symbol    string
	Bars      []Bar
	FetchedAt time.Time
}

// LatestClose returns the last non-NaN close, or NaN for an empty series.
func (s *PriceSeries) LatestClose() float64 {
	for i := len(s.Bars) - 1; i >= 0; i-- {
		if !math.IsNaN(s.Bars[i].Close) {
			return s.Bars[i].Close
		}
	}
	return math.NaN()
}

// Day builds a UTC calendar date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateKey formats t as an ISO calendar date.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses an ISO calendar date into a UTC date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
