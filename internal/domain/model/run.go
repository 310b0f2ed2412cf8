package model

import "time"

// Evaluation run sources.
const (
	SourceUpload   = "upload"
	SourceCLI      = "cli"
	SourceSchedule = "schedule"
)

// Evaluation run statuses.
const (
	RunStatusOK      = "ok"
	RunStatusAborted = "aborted"
	RunStatusFailed  = "failed"
)

// EvaluationRun is the persisted summary of one batch evaluation.
type EvaluationRun struct {
	ID                 string    `json:"id"`
	Source             string    `json:"source"`
	Status             string    `json:"status"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	Rows               int       `json:"rows"`
	Scored             int       `json:"scored"`
	Skipped            int       `json:"skipped"`
	TP                 int       `json:"tp"`
	FP                 int       `json:"fp"`
	TN                 int       `json:"tn"`
	FN                 int       `json:"fn"`
	Accuracy           float64   `json:"accuracy"`
	Precision          float64   `json:"precision"`
	Recall             float64   `json:"recall"`
	F1                 float64   `json:"f1"`
	PrecisionUndefined bool      `json:"precision_undefined,omitempty"`
	RecallUndefined    bool      `json:"recall_undefined,omitempty"`
	Error              string    `json:"error,omitempty"`
}

// Duration is the wall time of the run.
func (r EvaluationRun) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }
