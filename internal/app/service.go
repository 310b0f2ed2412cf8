// Package service provides the core business service that implements
// the dependencies required by the HTTP API, the scheduler and the CLI.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/attrition/internal/adapters/mq/queue"
	"github.com/okian/attrition/internal/adapters/mq/worker"
	"github.com/okian/attrition/internal/adapters/predictor"
	"github.com/okian/attrition/internal/adapters/repository"
	"github.com/okian/attrition/internal/domain/encoding"
	"github.com/okian/attrition/pkg/logger"
	"github.com/okian/attrition/pkg/metrics"
)

// Default service configuration.
const (
	defaultQueueSize      = 1024
	defaultRequestTimeout = 10 * time.Second
	defaultHistoryLimit   = 1000
	stopTimeout           = 30 * time.Second
	simulatedPredictURL   = "simulate"
)

// Service wires the classifier, the worker pool and the history store.
type Service struct {
	mu sync.RWMutex

	// Core components
	predictor predictor.Predictor
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	history   repository.Store
	skins     *encoding.Registry

	// Configuration
	workerCount    int
	queueSize      int
	policy         FailurePolicy
	predictURL     string
	requestTimeout time.Duration
	historyDSN     string
	historyLimit   int
	defaultSkin    string
	skinsFile      string

	// State
	started        bool
	historyBackend string
	cancel         context.CancelFunc
	now            func() time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of concurrent prediction workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued prediction jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithFailurePolicy selects how batch evaluations treat failed rows.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(s *Service) {
		if p.Valid() {
			s.policy = p
		}
	}
}

// WithPredictURL points the service at a classifier endpoint. The value
// "simulate" selects the in-process simulated classifier.
func WithPredictURL(url string, timeout time.Duration) Option {
	return func(s *Service) {
		s.predictURL = url
		if timeout > 0 {
			s.requestTimeout = timeout
		}
	}
}

// WithPredictor injects a classifier, taking precedence over WithPredictURL.
func WithPredictor(p predictor.Predictor) Option {
	return func(s *Service) {
		if p != nil {
			s.predictor = p
		}
	}
}

// WithHistoryDSN selects the evaluation history backend and how many runs
// the in-memory backend retains.
func WithHistoryDSN(dsn string, limit int) Option {
	return func(s *Service) {
		s.historyDSN = dsn
		if limit > 0 {
			s.historyLimit = limit
		}
	}
}

// WithHistory injects a history store, taking precedence over WithHistoryDSN.
func WithHistory(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.history = store
			s.historyBackend = "custom"
		}
	}
}

// WithSkins sets the default skin and an optional YAML file of extra skins.
func WithSkins(defaultSkin, skinsFile string) Option {
	return func(s *Service) {
		s.defaultSkin = defaultSkin
		s.skinsFile = skinsFile
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 2,
		queueSize:      defaultQueueSize,
		policy:         PolicyAbort,
		requestTimeout: defaultRequestTimeout,
		historyLimit:   defaultHistoryLimit,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	skins, err := encoding.NewDefaultRegistry(s.defaultSkin, s.skinsFile)
	if err != nil {
		return fmt.Errorf("load skins: %w", err)
	}

	if s.predictor == nil {
		switch s.predictURL {
		case "":
			return ErrNoPredictor
		case simulatedPredictURL:
			s.predictor = predictor.NewSimulated()
			s.logger.Warn(ctx, "using the simulated classifier")
		default:
			s.predictor = predictor.New(s.predictURL, predictor.WithTimeout(s.requestTimeout))
		}
	}

	if s.history == nil {
		store, backend, err := repository.Open(ctx, s.historyDSN, repository.WithMaxRuns(s.historyLimit))
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		s.history = store
		s.historyBackend = backend
	}

	// workers outlive the start call; Stop cancels them
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.skins = skins
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.predictor)
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "attrition service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("policy", string(s.policy)),
		logger.String("history", s.historyBackend),
		logger.Any("skins", skins.Names()),
	)

	return nil
}

// Stop gracefully shuts down the service. Batches still running fail their
// remaining rows.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping attrition service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}
	s.cancel()

	if err := s.history.Close(); err != nil {
		s.logger.Error(ctx, "closing history store", logger.Error(err))
	}
	s.history = nil

	s.started = false
	s.logger.Info(ctx, "attrition service stopped")
}

// Skins returns the loaded skin registry, or nil before Start.
func (s *Service) Skins() *encoding.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skins
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"failurePolicy": string(s.policy),
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["historyBackend"] = s.historyBackend
		stats["skins"] = s.skins.Names()
		if n, err := s.history.Count(ctx); err == nil {
			stats["evaluations"] = n
		}

		metrics.UpdateQueueSize(queueLen)
	}

	return stats
}

// components returns the running parts under the read lock.
func (s *Service) components() (predictor.Predictor, *queue.InMemoryQueue, repository.Store, *encoding.Registry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, nil, nil, ErrNotStarted
	}
	return s.predictor, s.queue, s.history, s.skins, nil
}
