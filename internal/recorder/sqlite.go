package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"ApexScreener/internal/model"
)

// SQLiteRecorder persists cache records and refresh runs to a SQLite database.
// Each pattern gets its own table keyed by ticker.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the bot read while a refresh writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func cacheTable(k model.PatternKind) (string, error) {
	for _, p := range model.AllPatterns {
		if p == k {
			return "apex_" + k.Table(), nil
		}
	}
	return "", fmt.Errorf("unknown pattern %q", k)
}

func (r *SQLiteRecorder) migrate() error {
	var stmts []string
	for _, k := range model.AllPatterns {
		table, _ := cacheTable(k)
		stmts = append(stmts,
			`CREATE TABLE IF NOT EXISTS `+table+` (
			ticker             TEXT PRIMARY KEY,
			analysis           TEXT NOT NULL,
			latest_close_price TEXT,
			created_at         INTEGER NOT NULL,
			run_id             TEXT
		)`,
			`CREATE INDEX IF NOT EXISTS idx_`+table+`_created ON `+table+`(created_at)`,
		)
	}
	stmts = append(stmts,
		`CREATE TABLE IF NOT EXISTS refresh_runs (
			run_id      TEXT PRIMARY KEY,
			pattern     TEXT NOT NULL,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			processed   INTEGER,
			skipped     INTEGER,
			fresh       INTEGER,
			failed      INTEGER,
			err         TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_pattern ON refresh_runs(pattern, finished_at)`,
	)

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, pattern model.PatternKind) (*model.CacheRecord, error) {
	var (
		rec       = model.CacheRecord{Pattern: pattern}
		analysis  string
		createdAt int64
		runID     sql.NullString
	)
	if err := row.Scan(&rec.Ticker, &analysis, &rec.LatestClosePrice, &createdAt, &runID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(analysis), &rec.Analysis); err != nil {
		return nil, fmt.Errorf("decode analysis for %s: %w", rec.Ticker, err)
	}
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.RunID = runID.String
	return &rec, nil
}

func (r *SQLiteRecorder) Get(ctx context.Context, pattern model.PatternKind, ticker string) (*model.CacheRecord, error) {
	table, err := cacheTable(pattern)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT ticker, analysis, latest_close_price, created_at, run_id FROM `+table+` WHERE ticker = ?`, ticker)
	rec, err := scanRecord(row, pattern)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", pattern, ticker, ErrNotFound)
	}
	return rec, err
}

func (r *SQLiteRecorder) List(ctx context.Context, pattern model.PatternKind) ([]model.CacheRecord, error) {
	table, err := cacheTable(pattern)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT ticker, analysis, latest_close_price, created_at, run_id FROM `+table+` ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", pattern, err)
	}
	defer rows.Close()

	var out []model.CacheRecord
	for rows.Next() {
		rec, err := scanRecord(rows, pattern)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Delete(ctx context.Context, pattern model.PatternKind, ticker string) error {
	table, err := cacheTable(pattern)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err = r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE ticker = ?`, ticker)
	return err
}

func (r *SQLiteRecorder) Upsert(ctx context.Context, rec *model.CacheRecord) error {
	table, err := cacheTable(rec.Pattern)
	if err != nil {
		return err
	}
	analysis, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("encode analysis for %s: %w", rec.Ticker, err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err = r.db.ExecContext(ctx, `INSERT INTO `+table+`
		(ticker, analysis, latest_close_price, created_at, run_id)
		VALUES (?,?,?,?,?)
		ON CONFLICT(ticker) DO UPDATE SET
			analysis = excluded.analysis,
			latest_close_price = excluded.latest_close_price,
			created_at = excluded.created_at,
			run_id = excluded.run_id`,
		rec.Ticker, string(analysis), rec.LatestClosePrice, createdAt.UnixMilli(), rec.RunID,
	)
	return err
}

func (r *SQLiteRecorder) RecordRun(ctx context.Context, run *model.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO refresh_runs
		(run_id, pattern, started_at, finished_at, processed, skipped, fresh, failed, err)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		run.RunID, string(run.Pattern), run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
		run.Processed, run.Skipped, run.Fresh, run.Failed, run.Err,
	)
	return err
}

func (r *SQLiteRecorder) LastRun(ctx context.Context, pattern model.PatternKind) (*model.RunSummary, error) {
	var (
		run               = model.RunSummary{Pattern: pattern}
		started, finished int64
		errText           sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `SELECT run_id, started_at, finished_at, processed, skipped, fresh, failed, err
		FROM refresh_runs WHERE pattern = ? ORDER BY finished_at DESC LIMIT 1`, string(pattern)).
		Scan(&run.RunID, &started, &finished, &run.Processed, &run.Skipped, &run.Fresh, &run.Failed, &errText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("last run for %s: %w", pattern, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	run.StartedAt = time.UnixMilli(started).UTC()
	run.FinishedAt = time.UnixMilli(finished).UTC()
	run.Err = errText.String
	return &run, nil
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
