package recorder

import (
	"context"
	"errors"

	"ApexScreener/internal/model"
)

// ErrNotFound is returned when no cache record or run exists for the key.
var ErrNotFound = errors.New("record not found")

// Recorder persists screening results so the next refresh can skip fresh tickers.
type Recorder interface {
	Get(ctx context.Context, pattern model.PatternKind, ticker string) (*model.CacheRecord, error)
	List(ctx context.Context, pattern model.PatternKind) ([]model.CacheRecord, error)
	Delete(ctx context.Context, pattern model.PatternKind, ticker string) error
	Upsert(ctx context.Context, rec *model.CacheRecord) error
	RecordRun(ctx context.Context, run *model.RunSummary) error
	LastRun(ctx context.Context, pattern model.PatternKind) (*model.RunSummary, error)
	Close() error
}
