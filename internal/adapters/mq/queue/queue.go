// Package queue holds prediction jobs waiting for a worker.
package queue

import (
	"context"
	"sync"

	"github.com/okian/attrition/internal/domain/model"
	"github.com/okian/attrition/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Job is the payload flowing through the queue.
type Job = model.PredictionJob

// Queue provides bounded enqueue and channel-based dequeue semantics.
type Queue interface {
	// EnqueueWait blocks until the job is queued, ctx is done or the queue
	// is closed.
	EnqueueWait(ctx context.Context, j Job) error

	// Dequeue returns the channel workers receive jobs from. The channel is
	// never closed; consumers stop on their own shutdown signal.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Cap returns the maximum number of queued jobs.
	Cap() int

	// Close stops accepting jobs.
	Close() error

	// Drain removes and returns every job still queued.
	Drain() []Job

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// EnqueueWait adds a job, waiting for room.
func (q *InMemoryQueue) EnqueueWait(ctx context.Context, j Job) error { //nolint:gocritic // hugeParam: jobs are passed by value for channel semantics
	if q.IsClosed() {
		return ErrClosed
	}
	select {
	case q.jobs <- j:
		metrics.UpdateQueueSize(len(q.jobs))
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue returns the job channel.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Job {
	return q.jobs
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	return size
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close stops accepting jobs. Queued jobs stay until drained or consumed.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	return nil
}

// Drain empties the queue without blocking.
func (q *InMemoryQueue) Drain() []Job {
	var out []Job
	for {
		select {
		case j := <-q.jobs:
			out = append(out, j)
		default:
			metrics.UpdateQueueSize(0)
			return out
		}
	}
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
