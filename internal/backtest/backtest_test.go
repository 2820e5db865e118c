package backtest

import (
	"math"
	"testing"
	"time"

	"ApexScreener/internal/model"
)

func closeSeries(closes ...float64) []model.Bar {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{
			Date:   model.Day(2024, 1, 1+i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: int64(100 * (i + 1)),
		}
	}
	return bars
}

func jan(day int) time.Time { return model.Day(2024, 1, day) }

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEvaluate_Policies(t *testing.T) {
	bars := closeSeries(10, 11, 9, 12, 8, 13, 14)
	signals := []time.Time{jan(1), jan(2), jan(3), jan(4), jan(6), jan(10)}
	now := jan(20)

	tests := []struct {
		policy     UnresolvedPolicy
		evaluated  int
		unresolved int
		want       float64
	}{
		{UnresolvedExclude, 4, 2, 50},
		{UnresolvedAsLoss, 6, 2, 100 * 2.0 / 6.0},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			s := NewEvaluator(2, tt.policy).Evaluate(signals, bars, now)
			if s.Evaluated != tt.evaluated {
				t.Errorf("Evaluated = %d, want %d", s.Evaluated, tt.evaluated)
			}
			if s.Wins != 2 {
				t.Errorf("Wins = %d, want 2", s.Wins)
			}
			if s.Unresolved != tt.unresolved {
				t.Errorf("Unresolved = %d, want %d", s.Unresolved, tt.unresolved)
			}
			if !almostEqual(s.WinRate, tt.want) {
				t.Errorf("WinRate = %v, want %v", s.WinRate, tt.want)
			}
		})
	}
}

func TestEvaluate_CutoffInclusive(t *testing.T) {
	bars := closeSeries(10, 11, 9, 12, 8, 13, 14)
	signals := []time.Time{jan(1), jan(2), jan(3), jan(4)}

	// now - 2 days is Jan 3, which still counts.
	s := NewEvaluator(2, UnresolvedExclude).Evaluate(signals, bars, jan(5).Add(9*time.Hour))
	if s.Signals != 3 {
		t.Fatalf("Signals = %d, want 3", s.Signals)
	}
	if !almostEqual(s.WinRate, 100.0/3.0) {
		t.Errorf("WinRate = %v, want %v", s.WinRate, 100.0/3.0)
	}
}

func TestEvaluate_NothingEvaluated(t *testing.T) {
	bars := closeSeries(10, 11, 12)
	e := NewEvaluator(20, UnresolvedExclude)

	if s := e.Evaluate(nil, bars, jan(30)); !math.IsNaN(s.WinRate) {
		t.Errorf("no signals: WinRate = %v, want NaN", s.WinRate)
	}
	if s := e.Evaluate([]time.Time{jan(1)}, bars, jan(30)); !math.IsNaN(s.WinRate) || s.Unresolved != 1 {
		t.Errorf("unresolved only: got %+v, want NaN with 1 unresolved", s)
	}
}

func TestEvaluate_FlatIsLoss(t *testing.T) {
	bars := closeSeries(10, 10, 10)
	s := NewEvaluator(1, UnresolvedExclude).Evaluate([]time.Time{jan(1)}, bars, jan(30))
	if s.Wins != 0 || s.Losses != 1 {
		t.Errorf("got %d wins %d losses, want 0 and 1", s.Wins, s.Losses)
	}
}

func TestIndexOf(t *testing.T) {
	bars := closeSeries(1, 2, 3)
	bars[2].Date = bars[2].Date.Add(14 * time.Hour)

	if got := IndexOf(bars, jan(2)); got != 1 {
		t.Errorf("IndexOf(jan 2) = %d, want 1", got)
	}
	if got := IndexOf(bars, jan(3)); got != 2 {
		t.Errorf("IndexOf(jan 3 with time of day) = %d, want 2", got)
	}
	if got := IndexOf(bars, jan(9)); got != -1 {
		t.Errorf("IndexOf(missing) = %d, want -1", got)
	}
}

func TestOverallWinRate(t *testing.T) {
	if got := OverallWinRate([]float64{50, math.NaN(), 100}); !almostEqual(got, 75) {
		t.Errorf("OverallWinRate = %v, want 75", got)
	}
	if got := OverallWinRate([]float64{math.NaN()}); !math.IsNaN(got) {
		t.Errorf("OverallWinRate(all NaN) = %v, want NaN", got)
	}
}

func TestAnalyze(t *testing.T) {
	bars := closeSeries(10, 11, 9, 12, 8, 13, 14)
	got := Analyze([]time.Time{jan(1), jan(30)}, bars)

	r, ok := got["2024-01-01"]
	if !ok {
		t.Fatal("missing analysis for 2024-01-01")
	}
	if r.Change1TD == nil || !almostEqual(*r.Change1TD, 10) {
		t.Errorf("Change1TD = %v, want 10", r.Change1TD)
	}
	if r.Change5TD == nil || !almostEqual(*r.Change5TD, 30) {
		t.Errorf("Change5TD = %v, want 30", r.Change5TD)
	}
	if r.Change20TD != nil {
		t.Errorf("Change20TD = %v, want nil", *r.Change20TD)
	}
	if r.Volume == nil || *r.Volume != 100 {
		t.Errorf("Volume = %v, want 100", r.Volume)
	}

	empty := got["2024-01-30"]
	if empty.Change1TD != nil || empty.Volume != nil {
		t.Errorf("missing date should produce an empty result, got %+v", empty)
	}
}
