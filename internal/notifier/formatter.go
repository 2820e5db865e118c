package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"ApexScreener/internal/model"
)

// MaxMessageLen is Telegram's limit for one message.
const MaxMessageLen = 4096

// maxListedDates caps how many dates one ticker line shows.
const maxListedDates = 5

// HelpText lists the bot commands.
const HelpText = "Available commands:\n" +
	"• /scan TICKER - live scan of one ticker\n" +
	"• /hits - cached tickers with recent signals\n" +
	"• /refresh - recompute the cache now\n" +
	"• /status - last refresh runs"

// FormatDigest lists tickers with a signal inside the recency window.
func FormatDigest(hits []model.ScanResponse, recencyDays int, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🦘 <b>Apex signals</b> | %s\n", now.Format(model.DateLayout)))
	b.WriteString(fmt.Sprintf("Last %d days: %d tickers\n\n", recencyDays, len(hits)))
	if len(hits) == 0 {
		b.WriteString("No recent signals.")
		return b.String()
	}
	for _, h := range hits {
		b.WriteString(formatTickerLine(&h))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTickerLine(r *model.ScanResponse) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>%s</b>", html.EscapeString(r.Ticker)))
	if r.LatestClose != nil {
		b.WriteString(fmt.Sprintf(" $%.2f", *r.LatestClose))
	}
	for _, k := range model.AllPatterns {
		dates := r.ByPattern[k]
		if len(dates) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf(" | %s: %s", patternLabel(k), strings.Join(lastN(dates, maxListedDates), ", ")))
	}
	if r.WinRate != nil {
		b.WriteString(fmt.Sprintf(" | win %.1f%%", *r.WinRate))
	}
	return b.String()
}

// FormatScan renders a live scan reply.
func FormatScan(r *model.ScanResponse, horizon int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔍 <b>%s</b>\n", html.EscapeString(r.Ticker)))
	if r.LatestClose != nil {
		b.WriteString(fmt.Sprintf("Close: $%.2f\n", *r.LatestClose))
	}
	if len(r.Dates) == 0 {
		b.WriteString("No signals.")
		return b.String()
	}
	for _, k := range model.AllPatterns {
		dates := r.ByPattern[k]
		if len(dates) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("%s (%d): %s\n", patternLabel(k), len(dates), strings.Join(lastN(dates, maxListedDates), ", ")))
	}
	if r.WinRate != nil {
		b.WriteString(fmt.Sprintf("Win rate (+%d TD): %.2f%%", horizon, *r.WinRate))
	} else {
		b.WriteString(fmt.Sprintf("Win rate (+%d TD): N/A", horizon))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatRunSummaries renders the latest refresh run per pattern.
func FormatRunSummaries(runs []model.RunSummary) string {
	if len(runs) == 0 {
		return "No refresh has run yet."
	}
	var b strings.Builder
	b.WriteString("📦 <b>Cache status</b>\n")
	for _, r := range runs {
		status := "✅"
		if r.Err != "" {
			status = "❌"
		}
		b.WriteString(fmt.Sprintf("\n%s <b>%s</b> %s\n", status, patternLabel(r.Pattern), r.FinishedAt.Format("2006-01-02 15:04")))
		b.WriteString(fmt.Sprintf("processed %d | fresh %d | skipped %d | failed %d | took %s\n",
			r.Processed, r.Fresh, r.Skipped, r.Failed, r.FinishedAt.Sub(r.StartedAt).Round(time.Second)))
		if r.Err != "" {
			b.WriteString(fmt.Sprintf("error: %s\n", html.EscapeString(r.Err)))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func patternLabel(k model.PatternKind) string {
	switch k {
	case model.BullAppear:
		return "Bull appear"
	case model.BullRaging:
		return "Bull raging"
	default:
		return string(k)
	}
}

func lastN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// SplitMessage cuts text into parts of at most limit bytes, preferring line
// boundaries.
func SplitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var (
		parts []string
		cur   strings.Builder
	)
	flush := func() {
		if p := strings.Trim(cur.String(), "\n"); p != "" {
			parts = append(parts, p)
		}
		cur.Reset()
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			flush()
			cut := limit
			// Step back to a rune boundary.
			for cut > 0 && !isRuneStart(line[cut]) {
				cut--
			}
			parts = append(parts, line[:cut])
			line = line[cut:]
		}
		if cur.Len()+len(line) > limit {
			flush()
		}
		cur.WriteString(line)
	}
	flush()
	return parts
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
