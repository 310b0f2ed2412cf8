package worker

import "errors"

// ErrStopped is recorded for jobs still queued when the pool shuts down.
var ErrStopped = errors.New("worker pool stopped")
