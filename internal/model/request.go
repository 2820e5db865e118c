package model

import "time"

// ScanRequest asks for one ticker to be screened.
// PrecomputedDates bypasses the scan for the patterns it names.
type ScanRequest struct {
	Ticker             string
	PriceHistory       []Bar
	EnabledPatterns    []PatternKind
	ComputeWinRate     bool
	ForwardHorizonDays int
	PrecomputedDates   map[PatternKind][]time.Time
}

// ScanResponse is the screening result for one ticker.
// WinRate is nil when win rate was not requested or no signal could be evaluated.
type ScanResponse struct {
	Ticker      string                   `json:"ticker"`
	Dates       []string                 `json:"dates"`
	WinRate     *float64                 `json:"winRate,omitempty"`
	ByPattern   map[PatternKind][]string `json:"byPattern,omitempty"`
	LatestClose *float64                 `json:"latestClose,omitempty"`
}
