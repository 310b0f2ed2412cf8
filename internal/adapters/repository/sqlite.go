package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/attrition/pkg/metrics"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS evaluation_runs (
	id                  TEXT PRIMARY KEY,
	source              TEXT NOT NULL,
	status              TEXT NOT NULL,
	started_at          INTEGER NOT NULL,
	finished_at         INTEGER NOT NULL,
	rows_total          INTEGER NOT NULL,
	scored              INTEGER NOT NULL,
	skipped             INTEGER NOT NULL,
	tp                  INTEGER NOT NULL,
	fp                  INTEGER NOT NULL,
	tn                  INTEGER NOT NULL,
	fn                  INTEGER NOT NULL,
	accuracy            REAL NOT NULL,
	metric_precision    REAL NOT NULL,
	recall              REAL NOT NULL,
	f1                  REAL NOT NULL,
	precision_undefined INTEGER NOT NULL,
	recall_undefined    INTEGER NOT NULL,
	error               TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS evaluation_runs_started_at ON evaluation_runs (started_at DESC);
`

const runColumns = `id, source, status, started_at, finished_at, rows_total, scored, skipped,
	tp, fp, tn, fn, accuracy, metric_precision, recall, f1,
	precision_undefined, recall_undefined, error`

// SQLiteStore keeps evaluation history in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

// NewSQLiteStore opens path (":memory:" for a private in-memory database)
// and creates the schema.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db, opts: buildOptions(opts)}, nil
}

// Save upserts run.
func (s *SQLiteStore) Save(ctx context.Context, run Run) error {
	if err := validateRun(run); err != nil {
		metrics.RecordHistoryWrite(false)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluation_runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			source = excluded.source, status = excluded.status,
			started_at = excluded.started_at, finished_at = excluded.finished_at,
			rows_total = excluded.rows_total, scored = excluded.scored, skipped = excluded.skipped,
			tp = excluded.tp, fp = excluded.fp, tn = excluded.tn, fn = excluded.fn,
			accuracy = excluded.accuracy, metric_precision = excluded.metric_precision,
			recall = excluded.recall, f1 = excluded.f1,
			precision_undefined = excluded.precision_undefined,
			recall_undefined = excluded.recall_undefined, error = excluded.error`,
		run.ID, run.Source, run.Status, run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(),
		run.Rows, run.Scored, run.Skipped, run.TP, run.FP, run.TN, run.FN,
		run.Accuracy, run.Precision, run.Recall, run.F1,
		boolInt(run.PrecisionUndefined), boolInt(run.RecallUndefined), run.Error,
	)
	metrics.RecordHistoryWrite(err == nil)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Get returns a run by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM evaluation_runs WHERE id = ?`, id)
	run, err := scanSQLiteRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// List returns runs newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Run, error) {
	limit, err := checkLimit(limit, s.opts.maxLimit)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM evaluation_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// Count returns the number of stored runs.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM evaluation_runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(sc rowScanner) (Run, error) {
	var (
		run                 Run
		started, finished   int64
		precUndef, recUndef int
	)
	err := sc.Scan(&run.ID, &run.Source, &run.Status, &started, &finished,
		&run.Rows, &run.Scored, &run.Skipped, &run.TP, &run.FP, &run.TN, &run.FN,
		&run.Accuracy, &run.Precision, &run.Recall, &run.F1,
		&precUndef, &recUndef, &run.Error)
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = time.Unix(0, started).UTC()
	run.FinishedAt = time.Unix(0, finished).UTC()
	run.PrecisionUndefined = precUndef != 0
	run.RecallUndefined = recUndef != 0
	return run, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
