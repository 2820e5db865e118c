package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ApexScreener/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Errs is consumed one entry per call before Data is served.
type MockFetcher struct {
	Price float64
	Data  map[string][]model.Bar
	Errs  map[string][]error

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyHistory(ctx context.Context, ticker string, from, to time.Time) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	n := m.calls[ticker]
	m.calls[ticker]++

	if errs := m.Errs[ticker]; n < len(errs) && errs[n] != nil {
		return nil, errs[n]
	}
	if bars, ok := m.Data[ticker]; ok {
		return bars, nil
	}
	if m.Price <= 0 {
		return nil, fmt.Errorf("mock %s: %w", ticker, ErrNoData)
	}
	return generateMockBars(m.Price, to, 300), nil
}

// Calls reports how many times ticker was requested.
func (m *MockFetcher) Calls(ticker string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[ticker]
}

func generateMockBars(basePrice float64, end time.Time, count int) []model.Bar {
	last := model.Day(end.Year(), end.Month(), end.Day())
	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.Bar{
			Date:   last.AddDate(0, 0, -(count - 1 - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
