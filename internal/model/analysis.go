package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnalysisResult is the forward performance of one signal date.
// Changes are percentages; nil when the forward bar does not exist yet.
type AnalysisResult struct {
	Change1TD  *float64 `json:"change1TD"`
	Change5TD  *float64 `json:"change5TD"`
	Change20TD *float64 `json:"change20TD"`
	Volume     *int64   `json:"volume"`
}

// CacheRecord is the persisted per-ticker, per-pattern screening result.
type CacheRecord struct {
	Ticker           string
	Pattern          PatternKind
	Analysis         map[string]AnalysisResult
	LatestClosePrice decimal.NullDecimal
	CreatedAt        time.Time
	RunID            string
}

// IsFresh reports whether the record was created after freshAfterHour:00 of
// now's calendar day in loc and carries both an analysis and a close price.
func (r *CacheRecord) IsFresh(now time.Time, loc *time.Location, freshAfterHour int) bool {
	if r.Analysis == nil || !r.LatestClosePrice.Valid {
		return false
	}
	local := now.In(loc)
	threshold := time.Date(local.Year(), local.Month(), local.Day(), freshAfterHour, 0, 0, 0, loc)
	return r.CreatedAt.After(threshold)
}

// RunSummary describes one cache refresh batch.
type RunSummary struct {
	RunID      string
	Pattern    PatternKind
	StartedAt  time.Time
	FinishedAt time.Time
	Processed  int
	Skipped    int
	Fresh      int
	Failed     int
	Err        string
}
