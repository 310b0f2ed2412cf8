package main

import (
	"context"
	"fmt"
	"io"
	"time"

	service "github.com/okian/attrition/internal/app"
	"github.com/okian/attrition/internal/config"
	"github.com/okian/attrition/pkg/logger"
	"github.com/spf13/cobra"
)

// options holds the flags shared by every subcommand.
type options struct {
	predictURL string
	timeout    time.Duration
	workers    int
	policy     string
	historyDSN string
	skinsFile  string
	skin       string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "attrition-eval",
		Short:         "Employee attrition prediction client",
		Long:          "attrition-eval scores labelled employee datasets against the attrition classifier and reports accuracy, precision, recall and F1.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.defaults(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.predictURL, "url", "", "Classifier predict URL, or \"simulate\" (default from ATTRITION_PREDICT_URL)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Per-request timeout (default from ATTRITION_REQUEST_TIMEOUT_MS)")
	flags.IntVar(&opts.workers, "workers", 0, "Concurrent prediction workers (default from ATTRITION_WORKER_COUNT)")
	flags.StringVar(&opts.policy, "policy", "", "Failure policy for batches: abort or skip")
	flags.StringVar(&opts.historyDSN, "history", "", "History store DSN; empty keeps runs in memory")
	flags.StringVar(&opts.skinsFile, "skins", "", "YAML file with extra form skins")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr")

	cmd.AddCommand(
		newEvaluateCmd(opts),
		newPredictCmd(opts),
		newEncodeCmd(opts),
		newSkinsCmd(opts),
		newHistoryCmd(opts),
	)
	return cmd
}

// defaults fills unset flags from the layered configuration and sets up
// logging on the command's error stream.
func (o *options) defaults(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return err
	}

	if o.predictURL == "" {
		o.predictURL = cfg.PredictURL
	}
	if o.timeout <= 0 {
		o.timeout = cfg.RequestTimeout()
	}
	if o.workers <= 0 {
		o.workers = cfg.WorkerCount
	}
	if o.policy == "" {
		o.policy = cfg.FailurePolicy
	}
	if _, err := service.ParseFailurePolicy(o.policy); err != nil {
		return err
	}
	if o.historyDSN == "" {
		o.historyDSN = cfg.HistoryDSN
	}
	if o.skinsFile == "" {
		o.skinsFile = cfg.SkinsFile
	}
	o.skin = cfg.DefaultSkin

	if err := logger.Init(logger.WithOutput(cmd.ErrOrStderr())); err != nil {
		return err
	}
	return logger.SetLevelString(o.logLevel)
}

// start builds and starts a service for one command invocation.
func (o *options) start(ctx context.Context) (*service.Service, error) {
	policy, err := service.ParseFailurePolicy(o.policy)
	if err != nil {
		return nil, err
	}
	svc := service.New(
		service.WithLogger(logger.Named("cli")),
		service.WithWorkerCount(o.workers),
		service.WithFailurePolicy(policy),
		service.WithPredictURL(o.predictURL, o.timeout),
		service.WithHistoryDSN(o.historyDSN, 0),
		service.WithSkins(o.skin, o.skinsFile),
	)
	if err := svc.Start(ctx); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	return svc, nil
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
