package model

import "context"

// JobSink receives the outcome of one prediction job. A batch implements it
// to collect its rows; Context is the batch's lifetime.
type JobSink interface {
	Context() context.Context
	Record(index int, outcome Outcome, err error)
}

// PredictionJob is one record waiting for a classifier call.
type PredictionJob struct {
	BatchID string
	Index   int
	Record  EmployeeRecord
	Sink    JobSink
}
