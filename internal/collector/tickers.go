package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultSECTickersURL = "https://www.sec.gov/files/company_tickers.json"

// TickerSource produces the universe of tickers to screen.
// A non-empty Static list wins. Otherwise the SEC listing is downloaded and
// FallbackPath, a saved copy of the same file, is used when that fails.
type TickerSource struct {
	URL          string
	FallbackPath string
	Static       []string
	UserAgent    string
	Client       *http.Client
}

// NewTickerSource creates a TickerSource with the SEC listing as its URL.
func NewTickerSource(fallbackPath, userAgent string, static []string) *TickerSource {
	return &TickerSource{
		URL:          DefaultSECTickersURL,
		FallbackPath: fallbackPath,
		Static:       static,
		UserAgent:    userAgent,
		Client:       &http.Client{Timeout: 30 * time.Second},
	}
}

type secEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// Tickers returns the deduplicated, upper-cased ticker list.
func (s *TickerSource) Tickers(ctx context.Context) ([]string, error) {
	if len(s.Static) > 0 {
		return normalizeTickers(s.Static), nil
	}

	data, err := s.download(ctx)
	if err != nil {
		if s.FallbackPath == "" {
			return nil, fmt.Errorf("fetch tickers: %w", err)
		}
		log.Warn().Err(err).Str("fallback", s.FallbackPath).Msg("SEC ticker download failed, using local copy")
		data, err = os.ReadFile(s.FallbackPath)
		if err != nil {
			return nil, fmt.Errorf("read ticker fallback: %w", err)
		}
	}
	tickers, err := parseSECTickers(data)
	if err != nil {
		return nil, err
	}
	return normalizeTickers(tickers), nil
}

func (s *TickerSource) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	// SEC rejects requests without a contact User-Agent.
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Provider: "sec", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// parseSECTickers keeps the listing's own order, which is by numeric key.
func parseSECTickers(data []byte) ([]string, error) {
	var raw map[string]secEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode ticker listing: %w", err)
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, raw[k].Ticker)
	}
	return out, nil
}

func normalizeTickers(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
