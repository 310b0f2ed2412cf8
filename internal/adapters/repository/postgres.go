package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okian/attrition/pkg/metrics"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS evaluation_runs (
	id                  TEXT PRIMARY KEY,
	source              TEXT NOT NULL,
	status              TEXT NOT NULL,
	started_at          TIMESTAMPTZ NOT NULL,
	finished_at         TIMESTAMPTZ NOT NULL,
	rows_total          INTEGER NOT NULL,
	scored              INTEGER NOT NULL,
	skipped             INTEGER NOT NULL,
	tp                  INTEGER NOT NULL,
	fp                  INTEGER NOT NULL,
	tn                  INTEGER NOT NULL,
	fn                  INTEGER NOT NULL,
	accuracy            DOUBLE PRECISION NOT NULL,
	metric_precision    DOUBLE PRECISION NOT NULL,
	recall              DOUBLE PRECISION NOT NULL,
	f1                  DOUBLE PRECISION NOT NULL,
	precision_undefined BOOLEAN NOT NULL,
	recall_undefined    BOOLEAN NOT NULL,
	error               TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS evaluation_runs_started_at ON evaluation_runs (started_at DESC);
`

// PostgresStore keeps evaluation history in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts options
}

// NewPostgresStore connects to databaseURL and creates the schema.
func NewPostgresStore(ctx context.Context, databaseURL string, opts ...Option) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PostgresStore{pool: pool, opts: buildOptions(opts)}, nil
}

// Save upserts run.
func (s *PostgresStore) Save(ctx context.Context, run Run) error {
	if err := validateRun(run); err != nil {
		metrics.RecordHistoryWrite(false)
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO evaluation_runs (`+runColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		 ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source, status = EXCLUDED.status,
			started_at = EXCLUDED.started_at, finished_at = EXCLUDED.finished_at,
			rows_total = EXCLUDED.rows_total, scored = EXCLUDED.scored, skipped = EXCLUDED.skipped,
			tp = EXCLUDED.tp, fp = EXCLUDED.fp, tn = EXCLUDED.tn, fn = EXCLUDED.fn,
			accuracy = EXCLUDED.accuracy, metric_precision = EXCLUDED.metric_precision,
			recall = EXCLUDED.recall, f1 = EXCLUDED.f1,
			precision_undefined = EXCLUDED.precision_undefined,
			recall_undefined = EXCLUDED.recall_undefined, error = EXCLUDED.error`,
		run.ID, run.Source, run.Status, run.StartedAt, run.FinishedAt,
		run.Rows, run.Scored, run.Skipped, run.TP, run.FP, run.TN, run.FN,
		run.Accuracy, run.Precision, run.Recall, run.F1,
		run.PrecisionUndefined, run.RecallUndefined, run.Error,
	)
	metrics.RecordHistoryWrite(err == nil)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Get returns a run by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM evaluation_runs WHERE id = $1`, id)
	run, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// List returns runs newest first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Run, error) {
	limit, err := checkLimit(limit, s.opts.maxLimit)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+runColumns+` FROM evaluation_runs ORDER BY started_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanPostgresRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return out, nil
}

// Count returns the number of stored runs.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM evaluation_runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPostgresRun(row pgx.Row) (Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.Source, &run.Status, &run.StartedAt, &run.FinishedAt,
		&run.Rows, &run.Scored, &run.Skipped, &run.TP, &run.FP, &run.TN, &run.FN,
		&run.Accuracy, &run.Precision, &run.Recall, &run.F1,
		&run.PrecisionUndefined, &run.RecallUndefined, &run.Error)
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = run.FinishedAt.UTC()
	return run, nil
}
