package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"ApexScreener/internal/model"
)

const (
	DefaultYahooBaseURL = "https://query1.finance.yahoo.com"
	// DefaultYahooRateLimit is requests per second.
	DefaultYahooRateLimit = 2
)

// YahooFetcher implements Fetcher using Yahoo Finance public API.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
	limiter   *rate.Limiter
}

// YahooOption configures a YahooFetcher.
type YahooOption func(*YahooFetcher)

// WithBaseURL points the fetcher at another host, mainly for tests.
func WithBaseURL(baseURL string) YahooOption {
	return func(f *YahooFetcher) {
		f.BaseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) YahooOption {
	return func(f *YahooFetcher) {
		f.Client = c
	}
}

// WithRateLimit sets the request rate. Zero or less disables limiting.
func WithRateLimit(perSecond float64) YahooOption {
	return func(f *YahooFetcher) {
		if perSecond <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(math.Ceil(perSecond))
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(proxyURL string, opts ...YahooOption) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	f := &YahooFetcher{
		BaseURL: DefaultYahooBaseURL,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultYahooRateLimit), DefaultYahooRateLimit),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	// Yahoo uses dashes for share classes (BRK-B).
	return strings.ReplaceAll(symbol, ".", "-")
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// price maps a missing or zero quote to NaN.
func price(vs []*float64, i int) float64 {
	if i >= len(vs) || vs[i] == nil || *vs[i] == 0 {
		return math.NaN()
	}
	return *vs[i]
}

func volume(vs []*float64, i int) int64 {
	if i >= len(vs) || vs[i] == nil {
		return 0
	}
	return int64(*vs[i])
}

// FetchDailyHistory downloads daily bars between from and to.
func (f *YahooFetcher) FetchDailyHistory(ctx context.Context, ticker string, from, to time.Time) ([]model.Bar, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("yahoo %s: %w", ticker, err)
	}

	q := url.Values{}
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	q.Set("period2", strconv.FormatInt(to.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", f.BaseURL, url.PathEscape(f.yahooSymbol(ticker)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || strings.Contains(string(body), "Too Many Requests") {
		return nil, fmt.Errorf("yahoo %s: %w", ticker, ErrRateLimited)
	}

	var chart yahooChart
	if jsonErr := json.Unmarshal(body, &chart); jsonErr != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &StatusError{Provider: "yahoo", StatusCode: resp.StatusCode, Body: string(body)}
		}
		return nil, fmt.Errorf("yahoo decode: %w", jsonErr)
	}
	if chart.Chart.Error != nil {
		if resp.StatusCode == http.StatusNotFound || chart.Chart.Error.Code == "Not Found" {
			return nil, fmt.Errorf("yahoo %s: %s: %w", ticker, chart.Chart.Error.Description, ErrNoData)
		}
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Provider: "yahoo", StatusCode: resp.StatusCode, Body: string(body)}
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", ticker, ErrNoData)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.Bar, 0, len(result.Timestamp))
	dropped := 0

	for i, ts := range result.Timestamp {
		h, l := price(quote.High, i), price(quote.Low, i)
		if math.IsNaN(h) && math.IsNaN(l) {
			dropped++
			continue
		}
		local := time.Unix(ts+result.Meta.GMTOffset, 0).UTC()
		bars = append(bars, model.Bar{
			Date:   model.Day(local.Year(), local.Month(), local.Day()),
			Open:   price(quote.Open, i),
			High:   h,
			Low:    l,
			Close:  price(quote.Close, i),
			Volume: volume(quote.Volume, i),
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", ticker, ErrNoData)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	log.Debug().Str("ticker", ticker).Int("bars", len(bars)).Int("dropped", dropped).Msg("yahoo history fetched")
	return bars, nil
}
