package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	service "github.com/okian/attrition/internal/app"
	"github.com/okian/attrition/internal/domain/encoding"
	"github.com/okian/attrition/internal/domain/model"
	"github.com/spf13/cobra"
)

func newPredictCmd(opts *options) *cobra.Command {
	var (
		skinName   string
		values     map[string]string
		selections map[string]string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict attrition for one employee",
		Long: "Builds a record from the documented defaults, applies --set numeric values and --select category labels, " +
			"and asks the classifier whether the employee will leave.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := opts.start(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Stop()

			skin, err := svc.Skins().Get(skinName)
			if err != nil {
				return err
			}
			numbers, err := parseNumbers(values)
			if err != nil {
				return err
			}
			in := service.FormInput{
				Skin:       skin.Name,
				Numbers:    numbers,
				Selections: fillSelections(skin, numbers, selections),
			}

			assessment, record, err := svc.PredictForm(cmd.Context(), in)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					model.Assessment
					Record model.EmployeeRecord `json:"record"`
				}{assessment, record})
			}

			w := cmd.OutOrStdout()
			printf(w, "%s (%s)\n%s\n", assessment.Risk, assessment.Outcome, assessment.Message)
			for _, rec := range assessment.Recommendations {
				printf(w, "  - %s\n", rec)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&skinName, "skin", "", "Form skin whose category labels --select uses")
	cmd.Flags().StringToStringVar(&values, "set", nil, "Numeric feature, e.g. --set Age=30 (repeatable)")
	cmd.Flags().StringToStringVar(&selections, "select", nil, "Category label, e.g. --select JobLevel=Senior (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the assessment and record as JSON")
	return cmd
}

func parseNumbers(values map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(values))
	for name, raw := range values {
		if _, ok := model.Ranges[name]; !ok {
			return nil, fmt.Errorf("%w: unknown feature %q", model.ErrInvalidRecord, name)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q is not a number", model.ErrInvalidRecord, name, raw)
		}
		out[name] = v
	}
	return out, nil
}

// fillSelections completes the categorical selections. A field with no
// label takes the label of its numeric value, or of the default code.
func fillSelections(skin encoding.Skin, numbers map[string]float64, selections map[string]string) map[string]string {
	def := model.DefaultRecord()
	out := make(map[string]string, len(encoding.CategoricalFields))
	for k, v := range selections {
		out[k] = v
	}

	for _, field := range encoding.CategoricalFields {
		if _, ok := out[field]; ok {
			continue
		}
		code, ok := numbers[field]
		if !ok {
			code, _ = def.Get(field)
		}
		if t, ok := skin.Table(field); ok {
			if label, ok := t.Label(int(code)); ok {
				out[field] = label
			}
		}
	}
	return out
}
