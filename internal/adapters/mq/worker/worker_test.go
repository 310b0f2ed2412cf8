package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/attrition/internal/adapters/mq/queue"
	"github.com/okian/attrition/internal/adapters/mq/worker"
	"github.com/okian/attrition/internal/domain/model"
	logging "github.com/okian/attrition/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logging.Init(); err != nil {
		panic(err)
	}
}

type mockPredictor struct {
	mu    sync.Mutex
	calls int
	fail  map[float64]error
	delay time.Duration
}

func (m *mockPredictor) Predict(ctx context.Context, r model.EmployeeRecord) (model.Outcome, error) {
	m.mu.Lock()
	m.calls++
	err := m.fail[r.Age]
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	if r.Age >= 40 {
		return model.OutcomeYes, nil
	}
	return model.OutcomeNo, nil
}

func (m *mockPredictor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type result struct {
	outcome model.Outcome
	err     error
}

type sink struct {
	ctx     context.Context
	mu      sync.Mutex
	results map[int]result
	wg      sync.WaitGroup
}

func newSink(ctx context.Context, n int) *sink {
	s := &sink{ctx: ctx, results: make(map[int]result)}
	s.wg.Add(n)
	return s
}

func (s *sink) Context() context.Context { return s.ctx }

func (s *sink) Record(index int, outcome model.Outcome, err error) {
	s.mu.Lock()
	s.results[index] = result{outcome: outcome, err: err}
	s.mu.Unlock()
	s.wg.Done()
}

func (s *sink) wait(t time.Duration) bool {
	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-done:
		return true
	case <-time.After(t):
		return false
	}
}

func jobFor(s *sink, i int, age float64) model.PredictionJob {
	r := model.DefaultRecord()
	r.Age = age
	return model.PredictionJob{BatchID: "batch", Index: i, Record: r, Sink: s}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {

		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		pred := &mockPredictor{fail: map[float64]error{33: errors.New("boom")}}
		w := worker.NewInMemoryWorker(q, pred, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When jobs are queued", func() {
			s := newSink(context.Background(), 3)
			convey.So(q.EnqueueWait(ctx, jobFor(s, 0, 45)), convey.ShouldBeNil)
			convey.So(q.EnqueueWait(ctx, jobFor(s, 1, 25)), convey.ShouldBeNil)
			convey.So(q.EnqueueWait(ctx, jobFor(s, 2, 33)), convey.ShouldBeNil)

			convey.Convey("Then each outcome lands at its index", func() {
				convey.So(s.wait(time.Second), convey.ShouldBeTrue)
				convey.So(s.results[0].outcome, convey.ShouldEqual, model.OutcomeYes)
				convey.So(s.results[1].outcome, convey.ShouldEqual, model.OutcomeNo)
				convey.So(s.results[2].err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the batch is already canceled", func() {
			bctx, bcancel := context.WithCancel(context.Background())
			bcancel()
			s := newSink(bctx, 1)
			convey.So(q.EnqueueWait(ctx, jobFor(s, 0, 45)), convey.ShouldBeNil)

			convey.Convey("Then the job is acknowledged without calling the classifier", func() {
				convey.So(s.wait(time.Second), convey.ShouldBeTrue)
				convey.So(errors.Is(s.results[0].err, context.Canceled), convey.ShouldBeTrue)
				convey.So(pred.callCount(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer shutdownCancel()

			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool of four workers", t, func() {

		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		pred := &mockPredictor{delay: 5 * time.Millisecond}
		pool := worker.NewPool(4, q, pred)
		convey.So(pool.Size(), convey.ShouldEqual, 4)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When a batch larger than the queue is submitted", func() {
			const n = 40
			s := newSink(context.Background(), n)
			for i := 0; i < n; i++ {
				convey.So(q.EnqueueWait(ctx, jobFor(s, i, float64(20+i))), convey.ShouldBeNil)
			}

			convey.Convey("Then every row is recorded exactly once", func() {
				convey.So(s.wait(2*time.Second), convey.ShouldBeTrue)
				convey.So(len(s.results), convey.ShouldEqual, n)
				convey.So(pred.callCount(), convey.ShouldEqual, n)
				for i := 0; i < n; i++ {
					want := model.OutcomeNo
					if 20+i >= 40 {
						want = model.OutcomeYes
					}
					convey.So(s.results[i].outcome, convey.ShouldEqual, want)
				}
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()
			convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)
			convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a pool that was never started", t, func() {

		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		pool := worker.NewPool(2, q, &mockPredictor{})
		s := newSink(context.Background(), 2)
		convey.So(q.EnqueueWait(context.Background(), jobFor(s, 0, 30)), convey.ShouldBeNil)
		convey.So(q.EnqueueWait(context.Background(), jobFor(s, 1, 30)), convey.ShouldBeNil)

		convey.Convey("When it shuts down", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			_ = pool.Shutdown(ctx)

			convey.Convey("Then queued jobs fail with ErrStopped", func() {
				convey.So(s.wait(time.Second), convey.ShouldBeTrue)
				convey.So(errors.Is(s.results[0].err, worker.ErrStopped), convey.ShouldBeTrue)
				convey.So(errors.Is(s.results[1].err, worker.ErrStopped), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a default-sized pool", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), &mockPredictor{})
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}
