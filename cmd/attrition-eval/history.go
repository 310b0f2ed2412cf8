package main

import (
	"encoding/json"
	"text/tabwriter"

	"github.com/okian/attrition/internal/domain/evaluation"
	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent evaluation runs from the history store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := opts.start(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Stop()

			runs, err := svc.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(runs)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			printf(tw, "STARTED\tSOURCE\tSTATUS\tSCORED\tACCURACY\tPRECISION\tRECALL\tF1\n")
			for _, r := range runs {
				printf(tw, "%s\t%s\t%s\t%d/%d\t%s\t%s\t%s\t%s\n",
					r.StartedAt.Format("2006-01-02 15:04:05"), r.Source, r.Status, r.Scored, r.Rows,
					evaluation.Format(evaluation.Round2(r.Accuracy), false),
					evaluation.Format(evaluation.Round2(r.Precision), r.PrecisionUndefined),
					evaluation.Format(evaluation.Round2(r.Recall), r.RecallUndefined),
					evaluation.Format(evaluation.Round2(r.F1), false),
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the runs as JSON")
	return cmd
}
