package service

import (
	"errors"
	"fmt"
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted    = errors.New("service not started")
	ErrBatchAborted  = errors.New("batch evaluation aborted")
	ErrNoScoredRows  = errors.New("no rows could be scored")
	ErrUnknownPolicy = errors.New("unknown failure policy")
	ErrNoPredictor   = errors.New("no predictor configured")
	ErrRunNotFound   = errors.New("evaluation run not found")
)

// BatchAbortedError carries the row failure that stopped an abort-policy batch.
type BatchAbortedError struct {
	RunID string
	Line  int
	Err   error
}

func (e *BatchAbortedError) Error() string {
	return fmt.Sprintf("batch evaluation aborted at line %d: %v", e.Line, e.Err)
}

func (e *BatchAbortedError) Unwrap() error { return e.Err }

// Is lets callers match with errors.Is(err, ErrBatchAborted).
func (e *BatchAbortedError) Is(target error) bool { return target == ErrBatchAborted }
