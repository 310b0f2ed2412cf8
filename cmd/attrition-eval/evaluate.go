package main

import (
	"encoding/json"
	"fmt"
	"io"

	service "github.com/okian/attrition/internal/app"
	"github.com/okian/attrition/internal/domain/evaluation"
	"github.com/okian/attrition/internal/domain/model"
	"github.com/spf13/cobra"
)

func newEvaluateCmd(opts *options) *cobra.Command {
	var (
		file    string
		asJSON  bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a labelled CSV dataset",
		Long:  "Sends every row of a CSV dataset with an Attrition column to the classifier and reports accuracy, precision, recall and F1 to two decimals.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := opts.start(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Stop()

			report, err := svc.EvaluateFile(cmd.Context(), file, service.EvalSource(model.SourceCLI))
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", file, err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			writeReport(cmd.OutOrStdout(), report, verbose)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the CSV dataset (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full report as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List failed rows and the confusion matrix")
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Sprintf("failed to mark file flag as required: %v", err))
	}
	return cmd
}

func writeReport(w io.Writer, r service.Report, verbose bool) {
	d := r.Display
	printf(w, "run:       %s\n", r.RunID)
	printf(w, "rows:      %d (scored %d, skipped %d)\n", r.Rows, r.Scored, r.Skipped)
	printf(w, "accuracy:  %s\n", evaluation.Format(d.Accuracy, false))
	printf(w, "precision: %s\n", evaluation.Format(d.Precision, d.PrecisionUndefined))
	printf(w, "recall:    %s\n", evaluation.Format(d.Recall, d.RecallUndefined))
	printf(w, "f1:        %s\n", evaluation.Format(d.F1, false))

	if !verbose {
		return
	}
	c := d.Confusion
	printf(w, "confusion: tp=%d fp=%d tn=%d fn=%d\n", c.TP, c.FP, c.TN, c.FN)
	for _, f := range r.Failures {
		printf(w, "line %d: %s\n", f.Line, f.Error)
	}
}
