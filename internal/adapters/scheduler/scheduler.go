// Package scheduler re-evaluates a labelled dataset on a cron schedule so
// model drift shows up in the evaluation history without manual uploads.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/attrition/pkg/logger"
	"github.com/robfig/cron/v3"
)

// ErrNoDataset is returned when a schedule has no dataset to evaluate.
var ErrNoDataset = errors.New("scheduled evaluation needs a dataset path")

// EvaluateFunc evaluates the dataset at path.
type EvaluateFunc func(ctx context.Context, path string) error

// Scheduler runs EvaluateFunc on a cron spec. Runs never overlap; a tick
// that arrives while the previous run is still going is skipped.
type Scheduler struct {
	spec     string
	dataset  string
	evaluate EvaluateFunc
	timeout  time.Duration

	cron   *cron.Cron
	mu     sync.Mutex
	last   Status
	logger logger.Logger
}

// Status describes the most recent scheduled run.
type Status struct {
	Spec     string    `json:"spec"`
	Dataset  string    `json:"dataset"`
	LastRun  time.Time `json:"last_run,omitempty"`
	LastErr  string    `json:"last_error,omitempty"`
	Runs     int       `json:"runs"`
	Failures int       `json:"failures"`
}

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithTimeout bounds a single scheduled evaluation.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New parses spec, which accepts the standard five fields and descriptors
// such as "@hourly" or "@every 30m".
func New(spec, dataset string, evaluate EvaluateFunc, opts ...Option) (*Scheduler, error) {
	if dataset == "" {
		return nil, ErrNoDataset
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	s := &Scheduler{
		spec:     spec,
		dataset:  dataset,
		evaluate: evaluate,
		timeout:  10 * time.Minute,
		logger:   logger.Get().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	s.last = Status{Spec: spec, Dataset: dataset}
	return s, nil
}

// Run starts the schedule and blocks until ctx is done, then waits for an
// in-flight evaluation to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("register schedule: %w", err)
	}
	s.cron.Start()
	s.logger.Info(ctx, "scheduled evaluation enabled",
		logger.String("spec", s.spec),
		logger.String("dataset", s.dataset),
	)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info(context.Background(), "scheduler stopped")
	return nil
}

// RunOnce evaluates the dataset immediately.
func (s *Scheduler) RunOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := s.evaluate(runCtx, s.dataset)

	s.mu.Lock()
	s.last.LastRun = start
	s.last.Runs++
	s.last.LastErr = ""
	if err != nil {
		s.last.Failures++
		s.last.LastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn(ctx, "scheduled evaluation failed", logger.Error(err))
		return
	}
	s.logger.Info(ctx, "scheduled evaluation done", logger.Duration("took", time.Since(start)))
}

// Status returns a snapshot of the last run.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
