package model

import (
	"fmt"
	"strings"
	"time"
)

// PatternKind identifies which chart pattern produced a signal.
type PatternKind string

const (
	BullAppear PatternKind = "BULL_APPEAR"
	BullRaging PatternKind = "BULL_RAGING"
)

// AllPatterns lists every supported pattern in scan order.
var AllPatterns = []PatternKind{BullAppear, BullRaging}

// ParsePatternKind accepts the canonical names as well as the camel-case
// indicator keys used by the screener settings ("apexBullAppear").
func ParsePatternKind(s string) (PatternKind, error) {
	switch strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)) {
	case "bullappear", "apexbullappear":
		return BullAppear, nil
	case "bullraging", "apexbullraging":
		return BullRaging, nil
	default:
		return "", fmt.Errorf("unknown pattern %q", s)
	}
}

// Table returns the cache table suffix for the pattern.
func (k PatternKind) Table() string {
	return strings.ToLower(string(k))
}

// Signal is one detected pattern instance.
type Signal struct {
	Date time.Time
	Kind PatternKind
}

// InflexionPoint is a local low or high confirmed by two bars on each side.
// Index points into the aggregated series it was detected on.
type InflexionPoint struct {
	Date  time.Time
	Index int
	Value float64
}
