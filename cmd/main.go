package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/attrition/internal/adapters/http/api"
	"github.com/okian/attrition/internal/adapters/http/site"
	"github.com/okian/attrition/internal/adapters/http/swagger"
	"github.com/okian/attrition/internal/adapters/scheduler"
	service "github.com/okian/attrition/internal/app"
	"github.com/okian/attrition/internal/config"
	"github.com/okian/attrition/internal/domain/model"
	"github.com/okian/attrition/pkg/logger"
	"github.com/okian/attrition/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// logger isn't configured yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "attrition service failed", logger.Error(err))
		os.Exit(1)
	}
}

// newService builds the service from configuration.
func newService(cfg *config.Config) *service.Service {
	return service.New(
		service.WithLogger(logger.Get().Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithFailurePolicy(service.FailurePolicy(cfg.FailurePolicy)),
		service.WithPredictURL(cfg.PredictURL, cfg.RequestTimeout()),
		service.WithHistoryDSN(cfg.HistoryDSN, cfg.HistoryLimit),
		service.WithSkins(cfg.DefaultSkin, cfg.SkinsFile),
	)
}

// newMux registers every route of the process.
func newMux(ctx context.Context, cfg *config.Config, svc *service.Service) *http.ServeMux {
	mux := http.NewServeMux()

	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc, svc, cfg.MaxUploadBytes)
	apiServer.Register(ctx, mux)

	site.Register(ctx, mux, site.NewHandler(svc, cfg.MaxUploadBytes))
	return mux
}

// run starts the service and blocks until ctx ends or a component fails.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	svc := newService(cfg)

	var sched *scheduler.Scheduler
	if cfg.ScheduleEnabled() {
		var err error
		sched, err = scheduler.New(cfg.ScheduleCron, cfg.ScheduleDataset, scheduledEvaluation(svc),
			scheduler.WithLogger(log.Named("scheduler")))
		if err != nil {
			return fmt.Errorf("schedule: %w", err)
		}
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})

	g.Go(func() error {
		startServiceMetricsUpdater(gctx, svc)
		return nil
	})

	if sched != nil {
		g.Go(func() error { return sched.Run(gctx) })
	}

	err := g.Wait()
	log.Info(context.Background(), "server stopped")
	return err
}

// scheduledEvaluation evaluates a dataset file as a scheduled run.
func scheduledEvaluation(svc *service.Service) scheduler.EvaluateFunc {
	return func(ctx context.Context, path string) error {
		_, err := svc.EvaluateFile(ctx, path, service.EvalSource(model.SourceSchedule))
		return err
	}
}

// startSystemMetricsUpdater updates system metrics until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes queue gauges until ctx ends.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats publishes the queue gauge itself
			_ = svc.GetStats()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
