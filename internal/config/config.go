// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers a YAML file and the environment on top of the defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Failure policies accepted by failure_policy.
const (
	PolicyAbort = "abort"
	PolicySkip  = "skip"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// PredictURL is the classifier endpoint. "simulate" runs the built-in
	// heuristic classifier instead.
	PredictURL string `koanf:"predict_url"`

	// RequestTimeoutMS bounds one prediction request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// WorkerCount sets the number of prediction workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory prediction job queue.
	QueueSize int `koanf:"queue_size"`

	// FailurePolicy decides whether a failed row aborts a batch or is skipped.
	FailurePolicy string `koanf:"failure_policy"`

	// MaxUploadBytes caps an uploaded evaluation dataset.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// DefaultSkin names the form variant served at "/".
	DefaultSkin string `koanf:"default_skin"`

	// SkinsFile optionally points at a YAML file with extra skins.
	SkinsFile string `koanf:"skins_file"`

	// HistoryDSN selects the evaluation history backend: empty or "memory",
	// "sqlite://path", or a postgres URL.
	HistoryDSN string `koanf:"history_dsn"`

	// HistoryLimit caps the runs kept by the in-memory backend.
	HistoryLimit int `koanf:"history_limit"`

	// ScheduleCron and ScheduleDataset enable periodic re-evaluation when both are set.
	ScheduleCron    string `koanf:"schedule_cron"`
	ScheduleDataset string `koanf:"schedule_dataset"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		PredictURL:       "http://127.0.0.1:8000/predict",
		RequestTimeoutMS: 10_000,
		WorkerCount:      runtime.NumCPU() * 2,
		QueueSize:        1024,
		FailurePolicy:    PolicyAbort,
		MaxUploadBytes:   32 << 20,
		DefaultSkin:      "dashboard",
		HistoryLimit:     1000,
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// ScheduleEnabled reports whether periodic re-evaluation is configured.
func (c *Config) ScheduleEnabled() bool {
	return c.ScheduleCron != "" && c.ScheduleDataset != ""
}

// Validate checks the values the service cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.PredictURL == "":
		return fmt.Errorf("%w: predict_url must not be empty", ErrInvalidConfig)
	case c.RequestTimeoutMS <= 0:
		return fmt.Errorf("%w: request_timeout_ms must be positive", ErrInvalidConfig)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("%w: max_upload_bytes must be positive", ErrInvalidConfig)
	}

	c.FailurePolicy = strings.ToLower(strings.TrimSpace(c.FailurePolicy))
	if c.FailurePolicy != PolicyAbort && c.FailurePolicy != PolicySkip {
		return fmt.Errorf("%w: failure_policy %q must be abort or skip", ErrInvalidConfig, c.FailurePolicy)
	}
	if (c.ScheduleCron == "") != (c.ScheduleDataset == "") {
		return fmt.Errorf("%w: schedule_cron and schedule_dataset must be set together", ErrInvalidConfig)
	}
	return nil
}
