package predictor

import (
	"errors"
	"fmt"
)

// Failure kinds carried by PredictionRequestError.
const (
	KindNetwork   = "network"
	KindTimeout   = "timeout"
	KindStatus    = "status"
	KindMalformed = "malformed"
	KindCanceled  = "canceled"
)

// ErrPredictionRequest matches every PredictionRequestError via errors.Is.
var ErrPredictionRequest = errors.New("prediction request failed")

// PredictionRequestError reports a failed call to the classifier.
type PredictionRequestError struct {
	Kind   string
	Status int
	Err    error
}

func (e *PredictionRequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("prediction request failed (%s, status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("prediction request failed (%s): %v", e.Kind, e.Err)
}

func (e *PredictionRequestError) Unwrap() error { return e.Err }

// Is lets callers match with errors.Is(err, ErrPredictionRequest).
func (e *PredictionRequestError) Is(target error) bool { return target == ErrPredictionRequest }
