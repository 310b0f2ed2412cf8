// Package repository persists the history of batch evaluations.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/attrition/internal/domain/model"
)

// Run is one stored evaluation.
type Run = model.EvaluationRun

// Store provides read/write access to evaluation history.
type Store interface {
	// Save inserts run, replacing any run with the same ID.
	Save(ctx context.Context, run Run) error

	// Get returns the run with id or ErrNotFound.
	Get(ctx context.Context, id string) (Run, error)

	// List returns up to limit runs, newest first.
	List(ctx context.Context, limit int) ([]Run, error)

	// Count returns the number of stored runs.
	Count(ctx context.Context) (int, error)

	// Close releases the backend.
	Close() error
}

// Backend names reported by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Open selects a backend from dsn:
//
//	""  or "memory"          in-process store
//	sqlite://path, file:...  SQLite via modernc.org/sqlite
//	postgres://, postgresql:// PostgreSQL via pgx
func Open(ctx context.Context, dsn string, opts ...Option) (Store, string, error) {
	switch {
	case dsn == "" || dsn == BackendMemory:
		return NewMemoryStore(opts...), BackendMemory, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		s, err := NewSQLiteStore(ctx, strings.TrimPrefix(dsn, "sqlite://"), opts...)
		return s, BackendSQLite, err
	case strings.HasPrefix(dsn, "file:"):
		s, err := NewSQLiteStore(ctx, dsn, opts...)
		return s, BackendSQLite, err
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		s, err := NewPostgresStore(ctx, dsn, opts...)
		return s, BackendPostgres, err
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedDSN, redact(dsn))
	}
}

func validateRun(run Run) error {
	if run.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRun)
	}
	if run.StartedAt.IsZero() {
		return fmt.Errorf("%w: %s has no start time", ErrInvalidRun, run.ID)
	}
	return nil
}

func checkLimit(limit, maxLimit int) (int, error) {
	if limit < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if limit == 0 || limit > maxLimit {
		return maxLimit, nil
	}
	return limit, nil
}

// redact hides anything that looks like credentials in a DSN.
func redact(dsn string) string {
	if i := strings.Index(dsn, "@"); i >= 0 {
		if j := strings.Index(dsn, "://"); j >= 0 && j < i {
			return dsn[:j+3] + "***" + dsn[i:]
		}
		return "***" + dsn[i:]
	}
	return dsn
}
