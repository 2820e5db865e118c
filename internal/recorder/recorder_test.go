package recorder

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ApexScreener/internal/model"
)

func openTestDB(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func ptr[T any](v T) *T { return &v }

func TestSQLiteRecorder_UpsertGet(t *testing.T) {
	r := openTestDB(t)
	ctx := context.Background()
	created := time.Date(2024, 6, 3, 1, 30, 0, 0, time.UTC)

	rec := &model.CacheRecord{
		Ticker:  "AAPL",
		Pattern: model.BullAppear,
		Analysis: map[string]model.AnalysisResult{
			"2024-05-01": {Change1TD: ptr(1.5), Change5TD: ptr(-2.25), Volume: ptr(int64(1200))},
			"2024-05-20": {},
		},
		LatestClosePrice: decimal.NewNullDecimal(decimal.NewFromFloat(194.036).Round(2)),
		CreatedAt:        created,
		RunID:            "run-1",
	}
	if err := r.Upsert(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := r.Get(ctx, model.BullAppear, "AAPL")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LatestClosePrice.Decimal.String() != "194.04" {
		t.Errorf("latest close = %s, want 194.04", got.LatestClosePrice.Decimal)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created = %v, want %v", got.CreatedAt, created)
	}
	if got.RunID != "run-1" {
		t.Errorf("run id = %q", got.RunID)
	}
	a := got.Analysis["2024-05-01"]
	if a.Change1TD == nil || *a.Change1TD != 1.5 || a.Change20TD != nil || *a.Volume != 1200 {
		t.Errorf("analysis round trip: %+v", a)
	}
	if _, ok := got.Analysis["2024-05-20"]; !ok {
		t.Error("empty analysis entry lost")
	}

	// Patterns are stored separately.
	if _, err := r.Get(ctx, model.BullRaging, "AAPL"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other pattern err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRecorder_UpsertReplaces(t *testing.T) {
	r := openTestDB(t)
	ctx := context.Background()

	first := &model.CacheRecord{Ticker: "MSFT", Pattern: model.BullRaging,
		Analysis: map[string]model.AnalysisResult{"2024-01-02": {}}, RunID: "a"}
	second := &model.CacheRecord{Ticker: "MSFT", Pattern: model.BullRaging,
		Analysis: map[string]model.AnalysisResult{}, RunID: "b"}
	for _, rec := range []*model.CacheRecord{first, second} {
		if err := r.Upsert(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	all, err := r.List(ctx, model.BullRaging)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].RunID != "b" || len(all[0].Analysis) != 0 {
		t.Fatalf("List = %+v, want single replaced record", all)
	}
	if all[0].LatestClosePrice.Valid {
		t.Error("null close price should stay invalid")
	}
}

func TestSQLiteRecorder_ListDelete(t *testing.T) {
	r := openTestDB(t)
	ctx := context.Background()

	for _, tk := range []string{"TSLA", "AMD", "NVDA"} {
		if err := r.Upsert(ctx, &model.CacheRecord{Ticker: tk, Pattern: model.BullAppear}); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Delete(ctx, model.BullAppear, "NVDA"); err != nil {
		t.Fatal(err)
	}
	// Deleting a missing ticker is not an error.
	if err := r.Delete(ctx, model.BullAppear, "NVDA"); err != nil {
		t.Fatal(err)
	}

	all, err := r.List(ctx, model.BullAppear)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Ticker != "AMD" || all[1].Ticker != "TSLA" {
		t.Errorf("List = %+v", all)
	}
	if all[0].Analysis != nil {
		t.Errorf("nil analysis should round trip as nil, got %v", all[0].Analysis)
	}
}

func TestSQLiteRecorder_UnknownPattern(t *testing.T) {
	r := openTestDB(t)
	if err := r.Upsert(context.Background(), &model.CacheRecord{Ticker: "X", Pattern: "DROP TABLE"}); err == nil {
		t.Error("expected error for unknown pattern")
	}
}

func TestSQLiteRecorder_Runs(t *testing.T) {
	r := openTestDB(t)
	ctx := context.Background()

	if _, err := r.LastRun(ctx, model.BullAppear); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty LastRun err = %v", err)
	}

	base := time.Date(2024, 6, 3, 21, 0, 0, 0, time.UTC)
	runs := []model.RunSummary{
		{RunID: "r1", Pattern: model.BullAppear, StartedAt: base, FinishedAt: base.Add(time.Hour), Processed: 10, Fresh: 2},
		{RunID: "r2", Pattern: model.BullAppear, StartedAt: base.Add(24 * time.Hour), FinishedAt: base.Add(25 * time.Hour),
			Processed: 4, Skipped: 1, Failed: 1, Err: "retries exhausted"},
		{RunID: "r3", Pattern: model.BullRaging, StartedAt: base.Add(48 * time.Hour), FinishedAt: base.Add(49 * time.Hour)},
	}
	for i := range runs {
		if err := r.RecordRun(ctx, &runs[i]); err != nil {
			t.Fatal(err)
		}
	}

	got, err := r.LastRun(ctx, model.BullAppear)
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != "r2" || got.Processed != 4 || got.Skipped != 1 || got.Err != "retries exhausted" {
		t.Errorf("LastRun = %+v", got)
	}
	if !got.FinishedAt.Equal(base.Add(25 * time.Hour)) {
		t.Errorf("FinishedAt = %v", got.FinishedAt)
	}
}

func TestCacheRecordIsFresh(t *testing.T) {
	sgt := time.FixedZone("SGT", 8*3600)
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, sgt)
	rec := model.CacheRecord{
		Analysis:         map[string]model.AnalysisResult{},
		LatestClosePrice: decimal.NewNullDecimal(decimal.NewFromInt(10)),
	}

	rec.CreatedAt = time.Date(2024, 6, 3, 5, 30, 0, 0, sgt)
	if !rec.IsFresh(now, sgt, 5) {
		t.Error("record created after 05:00 should be fresh")
	}
	rec.CreatedAt = time.Date(2024, 6, 3, 4, 59, 0, 0, sgt)
	if rec.IsFresh(now, sgt, 5) {
		t.Error("record created before 05:00 should be stale")
	}
	rec.CreatedAt = time.Date(2024, 6, 3, 6, 0, 0, 0, sgt)
	rec.LatestClosePrice = decimal.NullDecimal{}
	if rec.IsFresh(now, sgt, 5) {
		t.Error("record without close price should be stale")
	}
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	if _, err := r.Get(context.Background(), model.BullAppear, "AAPL"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get err = %v", err)
	}
	if err := r.Upsert(context.Background(), &model.CacheRecord{}); err != nil {
		t.Errorf("Upsert err = %v", err)
	}
}
