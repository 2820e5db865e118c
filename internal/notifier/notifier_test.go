package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ApexScreener/internal/model"
)

func TestSplitMessage(t *testing.T) {
	if got := SplitMessage("short", 10); len(got) != 1 || got[0] != "short" {
		t.Errorf("short message split = %q", got)
	}

	text := "aaaa\nbbbb\ncccc\n"
	got := SplitMessage(text, 10)
	want := []string{"aaaa\nbbbb", "cccc"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("SplitMessage = %q, want %q", got, want)
	}

	long := strings.Repeat("é", 10) // 20 bytes
	for _, p := range SplitMessage(long, 7) {
		if len(p) > 7 || !strings.HasPrefix(p, "é") {
			t.Errorf("part %q breaks a rune or the limit", p)
		}
	}
}

func TestFormatDigest(t *testing.T) {
	price := 31.25
	hits := []model.ScanResponse{{
		Ticker:      "A&B",
		LatestClose: &price,
		ByPattern: map[model.PatternKind][]string{
			model.BullAppear: {"2024-01-01", "2024-02-01", "2024-03-01", "2024-04-01", "2024-05-01", "2024-06-01"},
		},
	}}
	got := FormatDigest(hits, 5, time.Date(2024, 6, 3, 6, 0, 0, 0, time.UTC))
	for _, want := range []string{"2024-06-03", "1 tickers", "<b>A&amp;B</b>", "$31.25", "Bull appear: 2024-02-01"} {
		if !strings.Contains(got, want) {
			t.Errorf("digest missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "2024-01-01") {
		t.Error("digest should show only the latest dates")
	}

	empty := FormatDigest(nil, 5, time.Now())
	if !strings.Contains(empty, "No recent signals") {
		t.Errorf("empty digest = %q", empty)
	}
}

func TestFormatScan(t *testing.T) {
	wr := 62.5
	r := &model.ScanResponse{
		Ticker:    "NVDA",
		Dates:     []string{"2024-03-01"},
		ByPattern: map[model.PatternKind][]string{model.BullRaging: {"2024-03-01"}},
		WinRate:   &wr,
	}
	got := FormatScan(r, 20)
	if !strings.Contains(got, "Bull raging (1): 2024-03-01") || !strings.Contains(got, "62.50%") {
		t.Errorf("FormatScan = %s", got)
	}

	r.WinRate = nil
	if got := FormatScan(r, 20); !strings.Contains(got, "N/A") {
		t.Errorf("missing win rate should read N/A: %s", got)
	}
}

func TestFormatRunSummaries(t *testing.T) {
	start := time.Date(2024, 6, 3, 6, 0, 0, 0, time.UTC)
	got := FormatRunSummaries([]model.RunSummary{{
		Pattern: model.BullAppear, StartedAt: start, FinishedAt: start.Add(90 * time.Second),
		Processed: 7, Failed: 1, Err: "fetch retries exhausted",
	}})
	for _, want := range []string{"❌", "processed 7", "failed 1", "took 1m30s", "retries exhausted"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
	if FormatRunSummaries(nil) != "No refresh has run yet." {
		t.Error("empty summary text changed")
	}
}

func TestTelegramSend(t *testing.T) {
	var (
		mu    sync.Mutex
		texts []string
		path  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		texts = append(texts, payload["text"])
		path = r.URL.Path
		mu.Unlock()
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.APIBase = srv.URL
	msg := strings.Repeat("x", MaxMessageLen) + "\n" + "tail"
	if err := tn.Send(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("path = %q", path)
	}
	if len(texts) != 2 || texts[1] != "tail" {
		t.Errorf("sent %d parts, last %q", len(texts), texts[len(texts)-1])
	}
}

func TestTelegramSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("BAD", "42", "")
	tn.APIBase = srv.URL
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tn.SendWithRetry(ctx, "hello", 3); err == nil {
		t.Error("expected error")
	}
}

func TestStartPolling(t *testing.T) {
	var (
		mu      sync.Mutex
		polls   int
		replies []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if strings.HasSuffix(r.URL.Path, "/sendMessage") {
			var payload map[string]string
			json.NewDecoder(r.Body).Decode(&payload)
			replies = append(replies, payload["text"])
			cancel()
			w.Write([]byte(`{"ok":true}`))
			return
		}
		polls++
		if polls == 1 {
			w.Write([]byte(`{"ok":true,"result":[
				{"update_id":10,"message":{"text":"/status","chat":{"id":99}}},
				{"update_id":11,"message":{"text":" /status ","chat":{"id":42}}}]}`))
			return
		}
		w.Write([]byte(`{"ok":true,"result":[]}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.APIBase = srv.URL

	var got []string
	done := make(chan struct{})
	go func() {
		tn.StartPolling(ctx, func(_ context.Context, cmd string) string {
			got = append(got, cmd)
			return "ok: " + cmd
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
	if len(got) != 1 || got[0] != "/status" {
		t.Errorf("handled commands = %q, want only the authorised chat", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(replies) != 1 || replies[0] != "ok: /status" {
		t.Errorf("replies = %q", replies)
	}
}

func TestSendWithRetryStopsOnPermanentError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.APIBase = srv.URL
	err := tn.SendWithRetry(context.Background(), "hello", 3)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || !strings.Contains(apiErr.Description, "chat not found") {
		t.Errorf("api error = %+v", apiErr)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want no retry", n)
	}
}
