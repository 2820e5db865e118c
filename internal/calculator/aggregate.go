package calculator

import (
	"math"

	"ApexScreener/internal/model"
)

// Aggregate2Day merges consecutive daily bars into 2-day bars. Pairing restarts
// at every calendar year, and an unpaired last bar of a year pairs with itself.
func Aggregate2Day(daily []model.Bar) []model.AggregatedBar {
	if len(daily) == 0 {
		return nil
	}
	out := make([]model.AggregatedBar, 0, len(daily)/2+1)

	start := 0
	for start < len(daily) {
		year := daily[start].Date.Year()
		end := start
		for end < len(daily) && daily[end].Date.Year() == year {
			end++
		}
		out = appendYear(out, daily[start:end])
		start = end
	}
	return out
}

func appendYear(out []model.AggregatedBar, yearly []model.Bar) []model.AggregatedBar {
	for i := 0; i < len(yearly); i += 2 {
		day1 := yearly[i]
		day2 := day1
		if i+1 < len(yearly) {
			day2 = yearly[i+1]
		}
		out = append(out, model.AggregatedBar{
			Date:  day1.Date,
			Open:  day1.Open,
			High:  nanMax(day1.High, day2.High),
			Low:   nanMin(day1.Low, day2.Low),
			Close: day2.Close,
		})
	}
	return out
}

// nanMax ignores a missing side; both missing stays NaN.
func nanMax(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	}
	return math.Max(a, b)
}

func nanMin(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	}
	return math.Min(a, b)
}
