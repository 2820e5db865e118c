package scheduler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ApexScreener/internal/collector"
	"ApexScreener/internal/model"
	"ApexScreener/internal/recorder"
	"ApexScreener/internal/screener"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) SendWithRetry(_ context.Context, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

type tickers []string

func (t tickers) Tickers(context.Context) ([]string, error) { return t, nil }

var testNow = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T, fetcher collector.Fetcher, list []string, store recorder.Recorder) (*Scheduler, *fakeSender) {
	t.Helper()
	cfg := screener.DefaultConfig()
	cfg.Patterns = []model.PatternKind{model.BullAppear}
	cfg.Retry.Sleep = func(context.Context, time.Duration) error { return nil }
	svc := screener.New(cfg, fetcher, tickers(list), store)
	svc.Now = func() time.Time { return testNow }

	sender := &fakeSender{}
	return NewScheduler(context.Background(), svc, sender), sender
}

func TestRegister(t *testing.T) {
	s, _ := newTestScheduler(t, &collector.MockFetcher{}, nil, nil)
	if err := s.Register("0 0 6 * * 2-6"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(s.Cron.Entries()) != 1 {
		t.Errorf("entries = %d, want 1", len(s.Cron.Entries()))
	}
	if err := s.Register("not a cron"); err == nil {
		t.Error("expected error for bad spec")
	}
}

func TestRunRefreshNow_SendsDigest(t *testing.T) {
	store, err := recorder.NewSQLiteRecorder(t.TempDir() + "/cache.db")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	s, sender := newTestScheduler(t, &collector.MockFetcher{Price: 40}, []string{"AAA", "BBB"}, store)
	s.RunRefreshNow()

	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "Apex signals") {
		t.Fatalf("sent = %q", sender.sent)
	}
	rec, err := store.Get(context.Background(), model.BullAppear, "AAA")
	if err != nil {
		t.Fatalf("refresh should store AAA: %v", err)
	}
	if !rec.LatestClosePrice.Valid {
		t.Error("latest close missing")
	}
}

func TestRunRefreshNow_ReportsFailure(t *testing.T) {
	rl := collector.ErrRateLimited
	fetcher := &collector.MockFetcher{Errs: map[string][]error{"AAA": {rl, rl, rl}}}
	s, sender := newTestScheduler(t, fetcher, []string{"AAA"}, recorder.NewNoopRecorder())
	s.RunRefreshNow()

	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "Cache refresh failed") {
		t.Errorf("sent = %q", sender.sent)
	}
}

func TestHandleCommand(t *testing.T) {
	store, err := recorder.NewSQLiteRecorder(t.TempDir() + "/cache.db")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()
	if err := store.Upsert(ctx, &model.CacheRecord{
		Ticker: "HIT", Pattern: model.BullAppear,
		Analysis:         map[string]model.AnalysisResult{"2024-06-01": {}},
		LatestClosePrice: decimal.NewNullDecimal(decimal.NewFromInt(42)),
	}); err != nil {
		t.Fatal(err)
	}

	s, _ := newTestScheduler(t, &collector.MockFetcher{Price: 40}, nil, store)

	tests := []struct {
		cmd  string
		want string
	}{
		{"/scan", "Usage"},
		{"/scan@apex_bot msft", "<b>MSFT</b>"},
		{"/hits", "<b>HIT</b>"},
		{"/status", "No refresh has run yet."},
		{"hello", "Available commands"},
		{"", "Available commands"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			got := s.HandleCommand(ctx, tt.cmd)
			if !strings.Contains(got, tt.want) {
				t.Errorf("HandleCommand(%q) = %q, want it to contain %q", tt.cmd, got, tt.want)
			}
		})
	}
}

func TestHandleCommand_ScanFailure(t *testing.T) {
	s, _ := newTestScheduler(t, &collector.MockFetcher{}, nil, nil)
	got := s.HandleCommand(context.Background(), "/scan ZZZZ")
	if !strings.Contains(got, "Scan ZZZZ failed") {
		t.Errorf("got %q", got)
	}
}
