package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/attrition/internal/adapters/dataset"
	"github.com/okian/attrition/internal/adapters/repository"
	"github.com/okian/attrition/internal/domain/evaluation"
	"github.com/okian/attrition/internal/domain/model"
	"github.com/okian/attrition/pkg/logger"
	"github.com/okian/attrition/pkg/metrics"
)

// maxReportedFailures bounds how many row failures a report lists.
const maxReportedFailures = 20

// FailurePolicy decides what a failed row does to its batch.
type FailurePolicy string

const (
	// PolicyAbort stops the batch at the first failed row.
	PolicyAbort FailurePolicy = "abort"
	// PolicySkip drops failed rows and scores the rest.
	PolicySkip FailurePolicy = "skip"
)

// ParseFailurePolicy accepts "abort" or "skip", ignoring case.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	p := FailurePolicy(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
	return p, nil
}

// Valid reports whether p is a known policy.
func (p FailurePolicy) Valid() bool { return p == PolicyAbort || p == PolicySkip }

// RowFailure describes a row that could not be scored.
type RowFailure struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// Report is the outcome of a batch evaluation.
type Report struct {
	RunID     string              `json:"run_id"`
	Source    string              `json:"source"`
	Policy    FailurePolicy       `json:"policy"`
	Rows      int                 `json:"rows"`
	Scored    int                 `json:"scored"`
	Skipped   int                 `json:"skipped"`
	Result    evaluation.Result   `json:"result"`
	Display   evaluation.Result   `json:"display"`
	Predicted []model.Outcome     `json:"predicted"`
	Actual    []model.Outcome     `json:"actual"`
	Failures  []RowFailure        `json:"failures,omitempty"`
	Started   time.Time           `json:"started_at"`
	Duration  time.Duration       `json:"duration_ns"`
	Run       model.EvaluationRun `json:"-"`
}

// EvalOption tunes a single evaluation.
type EvalOption func(*evalSettings)

type evalSettings struct {
	source string
	policy FailurePolicy
}

// EvalSource labels the run in history (upload, cli, schedule).
func EvalSource(source string) EvalOption {
	return func(e *evalSettings) {
		if source != "" {
			e.source = source
		}
	}
}

// EvalPolicy overrides the service failure policy for one evaluation.
func EvalPolicy(p FailurePolicy) EvalOption {
	return func(e *evalSettings) {
		if p.Valid() {
			e.policy = p
		}
	}
}

// EvaluateCSV parses r and evaluates it. Header errors such as a missing
// Attrition column are returned before any prediction is made.
func (s *Service) EvaluateCSV(ctx context.Context, r io.Reader, opts ...EvalOption) (Report, error) {
	ds, err := dataset.Parse(r)
	if err != nil {
		return Report{}, err
	}
	return s.Evaluate(ctx, ds, opts...)
}

// EvaluateFile parses the CSV at path and evaluates it.
func (s *Service) EvaluateFile(ctx context.Context, path string, opts ...EvalOption) (Report, error) {
	ds, err := dataset.ParseFile(path)
	if err != nil {
		return Report{}, err
	}
	return s.Evaluate(ctx, ds, opts...)
}

// Evaluate scores every row of ds on the worker pool and computes the
// metrics. If ctx ends first the context error is returned and no result.
func (s *Service) Evaluate(ctx context.Context, ds *dataset.Dataset, opts ...EvalOption) (Report, error) {
	_, q, history, _, err := s.components()
	if err != nil {
		return Report{}, err
	}

	s.mu.RLock()
	settings := evalSettings{source: model.SourceUpload, policy: s.policy}
	s.mu.RUnlock()
	for _, opt := range opts {
		opt(&settings)
	}

	started := s.now()
	b := newBatch(ctx, uuid.NewString(), ds.Rows, settings.policy)
	defer b.cancel()

	log := s.logger.With(logger.String("run", b.id))
	log.Info(ctx, "batch evaluation started",
		logger.Int("rows", len(ds.Rows)),
		logger.Int("unparsed", ds.Invalid()),
		logger.String("policy", string(settings.policy)),
		logger.String("run_source", settings.source),
	)

	for i, row := range ds.Rows {
		if row.Err != nil {
			b.Record(i, "", row.Err)
			continue
		}
		job := model.PredictionJob{BatchID: b.id, Index: i, Record: row.Record, Sink: b}
		if err := q.EnqueueWait(b.ctx, job); err != nil {
			// this row and every later one never reach a worker
			for j := i; j < len(ds.Rows); j++ {
				b.Record(j, "", err)
			}
			break
		}
	}

	select {
	case <-b.done:
	case <-ctx.Done():
		log.Warn(ctx, "batch evaluation canceled", logger.Error(ctx.Err()))
		metrics.RecordEvaluation("canceled", float64(time.Since(started).Milliseconds()))
		return Report{}, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	rep := b.report(settings)
	rep.Started = started
	rep.Duration = s.now().Sub(started)

	run := model.EvaluationRun{
		ID:                 b.id,
		Source:             settings.source,
		Status:             model.RunStatusOK,
		StartedAt:          started.UTC(),
		FinishedAt:         started.Add(rep.Duration).UTC(),
		Rows:               rep.Rows,
		Scored:             rep.Scored,
		Skipped:            rep.Skipped,
		TP:                 rep.Result.Confusion.TP,
		FP:                 rep.Result.Confusion.FP,
		TN:                 rep.Result.Confusion.TN,
		FN:                 rep.Result.Confusion.FN,
		Accuracy:           rep.Result.Accuracy,
		Precision:          rep.Result.Precision,
		Recall:             rep.Result.Recall,
		F1:                 rep.Result.F1,
		PrecisionUndefined: rep.Result.PrecisionUndefined,
		RecallUndefined:    rep.Result.RecallUndefined,
	}

	abortLine, abortErr := b.abortCause()

	var outErr error
	switch {
	case abortErr != nil:
		outErr = &BatchAbortedError{RunID: b.id, Line: abortLine, Err: abortErr}
		run.Status = model.RunStatusAborted
		run.Error = outErr.Error()
		run.Scored, run.Skipped = 0, 0
		run.TP, run.FP, run.TN, run.FN = 0, 0, 0, 0
		run.Accuracy, run.Precision, run.Recall, run.F1 = 0, 0, 0, 0
	case rep.Scored == 0:
		outErr = ErrNoScoredRows
		run.Status = model.RunStatusFailed
		run.Error = outErr.Error()
	}
	rep.Run = run

	if err := history.Save(context.WithoutCancel(ctx), run); err != nil {
		log.Error(ctx, "saving evaluation run", logger.Error(err))
	}
	metrics.RecordEvaluation(run.Status, float64(rep.Duration.Milliseconds()))

	if outErr != nil {
		log.Warn(ctx, "batch evaluation failed", logger.String("status", run.Status), logger.Error(outErr))
		return Report{}, outErr
	}

	metrics.RecordEvaluationRows(rep.Scored, rep.Skipped)
	metrics.UpdateLastEvaluation(rep.Result.Accuracy, rep.Result.Precision, rep.Result.Recall, rep.Result.F1)
	log.Info(ctx, "batch evaluation finished",
		logger.Int("scored", rep.Scored),
		logger.Int("skipped", rep.Skipped),
		logger.Float64("accuracy", rep.Result.Accuracy),
		logger.Float64("f1", rep.Result.F1),
		logger.Duration("took", rep.Duration),
	)
	return rep, nil
}

// History returns up to limit past evaluation runs, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]model.EvaluationRun, error) {
	_, _, history, _, err := s.components()
	if err != nil {
		return nil, err
	}
	return history.List(ctx, limit)
}

// Evaluation returns one past run by id.
func (s *Service) Evaluation(ctx context.Context, id string) (model.EvaluationRun, error) {
	_, _, history, _, err := s.components()
	if err != nil {
		return model.EvaluationRun{}, err
	}
	run, err := history.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.EvaluationRun{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// slot is one row's result. Each slot is written by exactly one Record call.
type slot struct {
	outcome model.Outcome
	err     error
}

// batch collects the rows of one evaluation. It is the JobSink handed to
// workers along with every job.
type batch struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	rows   []dataset.Row
	policy FailurePolicy
	slots  []slot

	pending sync.WaitGroup
	done    chan struct{}

	mu         sync.Mutex
	abortErr   error
	abortIndex int
}

func newBatch(parent context.Context, id string, rows []dataset.Row, policy FailurePolicy) *batch {
	ctx, cancel := context.WithCancel(parent)
	b := &batch{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		rows:   rows,
		policy: policy,
		slots:  make([]slot, len(rows)),
		done:   make(chan struct{}),
	}
	b.pending.Add(len(rows))
	go func() {
		b.pending.Wait()
		close(b.done)
	}()
	return b
}

// Context is the lifetime of the batch; it ends on abort or caller cancel.
func (b *batch) Context() context.Context { return b.ctx }

// Record stores a row result. Under the abort policy the first genuine
// failure cancels the rest of the batch; the failure kept for the report is
// the one earliest in the file, whatever order workers finish in.
func (b *batch) Record(index int, outcome model.Outcome, err error) {
	b.slots[index] = slot{outcome: outcome, err: err}
	if err != nil && b.policy == PolicyAbort && !errors.Is(err, context.Canceled) {
		b.mu.Lock()
		if b.abortErr == nil {
			b.cancel()
		}
		if b.abortErr == nil || index < b.abortIndex {
			b.abortErr = err
			b.abortIndex = index
		}
		b.mu.Unlock()
	}
	b.pending.Done()
}

// abortCause returns the file line and error of the earliest genuine
// failure, or a nil error when the batch was not aborted.
func (b *batch) abortCause() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.abortErr == nil {
		return 0, nil
	}
	return b.rows[b.abortIndex].Line, b.abortErr
}

// report tallies the slots once every row is recorded. Per-row tallies are
// merged so the totals do not depend on completion order.
func (b *batch) report(settings evalSettings) Report {
	rep := Report{
		RunID:  b.id,
		Source: settings.source,
		Policy: settings.policy,
		Rows:   len(b.rows),
	}

	var total evaluation.Confusion
	for i, sl := range b.slots {
		if sl.err != nil {
			rep.Skipped++
			if len(rep.Failures) < maxReportedFailures {
				rep.Failures = append(rep.Failures, RowFailure{Line: b.rows[i].Line, Error: sl.err.Error()})
			}
			continue
		}
		var row evaluation.Confusion
		row.Add(sl.outcome, b.rows[i].Actual)
		total = total.Merge(row)
		rep.Predicted = append(rep.Predicted, sl.outcome)
		rep.Actual = append(rep.Actual, b.rows[i].Actual)
	}

	rep.Scored = total.N()
	rep.Result = evaluation.Compute(total)
	rep.Display = rep.Result.Rounded()
	return rep
}
