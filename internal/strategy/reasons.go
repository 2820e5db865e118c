package strategy

import (
	"time"

	"ApexScreener/internal/model"
)

// Reason explains why a candidate setup was not emitted as a signal.
type Reason string

const (
	// Bull appear
	ReasonNoTrapWindow      Reason = "no_trap_window"
	ReasonNoActiveTrap      Reason = "no_active_bear_trap"
	ReasonSMA200Declining   Reason = "sma200_declining"
	ReasonKangarooBelowMA50 Reason = "kangaroo_not_above_sma50"
	ReasonNoPullback        Reason = "no_pullback_recovery"
	ReasonNoConfirmation    Reason = "no_trap_or_sma_touch"

	// Bull raging
	ReasonNoTrapBelowHigh Reason = "no_trap_below_high"
	ReasonNoFlushDown     Reason = "no_flush_down"
	ReasonFlushBelowMid   Reason = "flush_down_below_midpoint"
	ReasonRangeTooShort   Reason = "range_too_short"
	ReasonFlushRatioLow   Reason = "flush_down_ratio_low"
	ReasonTrapNotBroken   Reason = "trap_not_broken"
	ReasonNoRecovery      Reason = "no_recovery_bar"
)

// Rejection records a candidate that failed one of the checks.
// Date is the wallaby bar for bull appear and the high inflexion for bull raging.
type Rejection struct {
	Kind   model.PatternKind
	Date   time.Time
	Reason Reason
}

// Result is the output of a scan.
type Result struct {
	Signals    []model.Signal
	Rejections []Rejection
}

func (r *Result) accept(kind model.PatternKind, date time.Time) {
	r.Signals = append(r.Signals, model.Signal{Date: date, Kind: kind})
}

func (r *Result) reject(kind model.PatternKind, date time.Time, reason Reason) {
	r.Rejections = append(r.Rejections, Rejection{Kind: kind, Date: date, Reason: reason})
}

// Dates returns the signal dates in order.
func (r *Result) Dates() []time.Time {
	out := make([]time.Time, len(r.Signals))
	for i, s := range r.Signals {
		out[i] = s.Date
	}
	return out
}

// CountByReason tallies rejections, handy for debug logging.
func (r *Result) CountByReason() map[Reason]int {
	out := make(map[Reason]int)
	for _, rej := range r.Rejections {
		out[rej.Reason]++
	}
	return out
}
