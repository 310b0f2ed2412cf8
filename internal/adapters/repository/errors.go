package repository

import "errors"

// Sentinel kinds for history store errors.
var (
	ErrNotFound       = errors.New("evaluation run not found")
	ErrInvalidLimit   = errors.New("invalid history limit")
	ErrInvalidRun     = errors.New("invalid evaluation run")
	ErrUnsupportedDSN = errors.New("unsupported history dsn")
)
