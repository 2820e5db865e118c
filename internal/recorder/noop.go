package recorder

import (
	"context"

	"ApexScreener/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
// Every refresh recomputes all tickers.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) Get(_ context.Context, _ model.PatternKind, _ string) (*model.CacheRecord, error) {
	return nil, ErrNotFound
}
func (n *NoopRecorder) List(_ context.Context, _ model.PatternKind) ([]model.CacheRecord, error) {
	return nil, nil
}
func (n *NoopRecorder) Delete(_ context.Context, _ model.PatternKind, _ string) error { return nil }
func (n *NoopRecorder) Upsert(_ context.Context, _ *model.CacheRecord) error          { return nil }
func (n *NoopRecorder) RecordRun(_ context.Context, _ *model.RunSummary) error        { return nil }
func (n *NoopRecorder) LastRun(_ context.Context, _ model.PatternKind) (*model.RunSummary, error) {
	return nil, ErrNotFound
}
func (n *NoopRecorder) Close() error { return nil }
