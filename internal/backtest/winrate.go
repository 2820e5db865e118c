package backtest

import (
	"math"
	"sort"
	"time"

	"ApexScreener/internal/model"
)

// UnresolvedPolicy decides what happens to a signal whose forward bar does
// not exist, or whose date is missing from the bar series.
type UnresolvedPolicy int

const (
	// UnresolvedExclude leaves such signals out of the denominator.
	UnresolvedExclude UnresolvedPolicy = iota
	// UnresolvedAsLoss counts them as losses.
	UnresolvedAsLoss
)

func (p UnresolvedPolicy) String() string {
	if p == UnresolvedAsLoss {
		return "as_loss"
	}
	return "exclude"
}

// Outcome is the forward result of one signal date.
type Outcome struct {
	Date     time.Time
	Resolved bool
	Won      bool
}

// Stats summarises a set of outcomes. WinRate is NaN when nothing was evaluated.
type Stats struct {
	Signals    int
	Evaluated  int
	Wins       int
	Losses     int
	Unresolved int
	WinRate    float64
}

// Evaluator computes forward win rates for signal dates.
type Evaluator struct {
	Horizon int
	Policy  UnresolvedPolicy
}

// NewEvaluator creates an Evaluator looking horizon trading days ahead.
func NewEvaluator(horizon int, policy UnresolvedPolicy) *Evaluator {
	return &Evaluator{Horizon: horizon, Policy: policy}
}

// Outcomes classifies every signal dated on or before now minus Horizon
// calendar days.
func (e *Evaluator) Outcomes(dates []time.Time, bars []model.Bar, now time.Time) []Outcome {
	cutoff := now.AddDate(0, 0, -e.Horizon)
	out := make([]Outcome, 0, len(dates))
	for _, d := range dates {
		if d.After(cutoff) {
			continue
		}
		idx := IndexOf(bars, d)
		if idx < 0 || idx+e.Horizon >= len(bars) {
			out = append(out, Outcome{Date: d})
			continue
		}
		out = append(out, Outcome{
			Date:     d,
			Resolved: true,
			Won:      bars[idx+e.Horizon].Close > bars[idx].Close,
		})
	}
	return out
}

// Summarise applies the unresolved policy and computes the win rate.
func (e *Evaluator) Summarise(outcomes []Outcome) Stats {
	s := Stats{Signals: len(outcomes)}
	for _, o := range outcomes {
		switch {
		case o.Resolved && o.Won:
			s.Wins++
		case o.Resolved:
			s.Losses++
		case e.Policy == UnresolvedAsLoss:
			s.Unresolved++
			s.Losses++
		default:
			s.Unresolved++
		}
	}
	s.Evaluated = s.Wins + s.Losses
	s.WinRate = math.NaN()
	if s.Evaluated > 0 {
		s.WinRate = 100 * float64(s.Wins) / float64(s.Evaluated)
	}
	return s
}

// Evaluate is Outcomes followed by Summarise.
func (e *Evaluator) Evaluate(dates []time.Time, bars []model.Bar, now time.Time) Stats {
	return e.Summarise(e.Outcomes(dates, bars, now))
}

// OverallWinRate averages the defined win rates, NaN when none are defined.
func OverallWinRate(rates []float64) float64 {
	var sum float64
	n := 0
	for _, r := range rates {
		if math.IsNaN(r) {
			continue
		}
		sum += r
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// IndexOf finds the bar dated on d's calendar day, or -1.
func IndexOf(bars []model.Bar, d time.Time) int {
	i := sort.Search(len(bars), func(i int) bool { return !bars[i].Date.Before(d) })
	if i < len(bars) && model.SameDay(bars[i].Date, d) {
		return i
	}
	// Provider timestamps may carry a time of day.
	if i > 0 && model.SameDay(bars[i-1].Date, d) {
		return i - 1
	}
	return -1
}
