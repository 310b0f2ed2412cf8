// Package worker runs prediction jobs from the queue against the classifier.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/attrition/internal/domain/model"
	"github.com/okian/attrition/pkg/logger"
	"github.com/okian/attrition/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Job abstracts what workers read off the queue.
type Job = model.PredictionJob

// Predictor returns the classifier's outcome for one record.
type Predictor interface {
	Predict(ctx context.Context, r model.EmployeeRecord) (model.Outcome, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes prediction jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing jobs.
type InMemoryWorker struct {
	queue     Queue
	predictor Predictor
	name      string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, predictor Predictor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		predictor: predictor,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(job)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out", logger.String("worker", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs one job under its batch context and reports to the sink.
// Jobs of a batch that is already over are acknowledged without a call.
func (w *InMemoryWorker) process(job Job) { //nolint:gocritic // hugeParam: jobs are passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordJobLatency(float64(time.Since(start).Milliseconds()))
	}()

	ctx := job.Sink.Context()
	if err := ctx.Err(); err != nil {
		job.Sink.Record(job.Index, "", err)
		return
	}

	out, err := w.predictor.Predict(ctx, job.Record)
	if err != nil {
		w.logger.Debug(ctx, "prediction failed",
			logger.String("worker", w.name),
			logger.String("batch", job.BatchID),
			logger.Int("row", job.Index),
			logger.Error(err),
		)
	}
	job.Sink.Record(job.Index, out, err)
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	stopOnce sync.Once
	logger   logger.Logger
}

// NewPool creates a new worker pool. A non-positive count picks a default
// based on the CPU count.
func NewPool(workerCount int, queue Queue, predictor Predictor) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(queue, predictor, WithName("worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerCount(0)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerCount(len(p.workers))
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue, waits for workers to finish their current job
// and fails every job left behind with ErrStopped so no batch waits forever.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		if closer, ok := p.queue.(interface{ Close() error }); ok {
			if cerr := closer.Close(); cerr != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(cerr))
			}
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
		defer cancel()

		for i, w := range p.workers {
			if werr := w.Shutdown(shutdownCtx); werr != nil {
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
				err = werr
			}
		}

		if drainer, ok := p.queue.(interface{ Drain() []Job }); ok {
			left := drainer.Drain()
			for _, job := range left {
				job.Sink.Record(job.Index, "", ErrStopped)
			}
			if len(left) > 0 {
				p.logger.Warn(ctx, "failed queued jobs on shutdown", logger.Int("jobs", len(left)))
			}
		}
		metrics.UpdateWorkerCount(0)
	})
	return err
}
