package main

import (
	"errors"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newEncodeCmd(opts *options) *cobra.Command {
	var (
		skinName   string
		selections map[string]string
	)

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Translate category labels into model codes",
		Example: "  attrition-eval encode --skin dashboard --select JobLevel=Senior --select Education=Master",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(selections) == 0 {
				return errors.New("at least one --select is required")
			}
			svc, err := opts.start(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Stop()

			codes, err := svc.Encode(cmd.Context(), skinName, selections)
			if err != nil {
				return err
			}

			fields := make([]string, 0, len(codes))
			for f := range codes {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			for _, f := range fields {
				printf(cmd.OutOrStdout(), "%s=%d\n", f, codes[f])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&skinName, "skin", "", "Form skin (default skin when empty)")
	cmd.Flags().StringToStringVar(&selections, "select", nil, "Field=Label pair (repeatable)")
	return cmd
}

func newSkinsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "skins",
		Short: "List form skins and their category labels",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := opts.start(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Stop()

			reg := svc.Skins()
			w := cmd.OutOrStdout()
			for _, name := range reg.Names() {
				skin, err := reg.Get(name)
				if err != nil {
					return err
				}
				marker := ""
				if name == reg.Default().Name {
					marker = " (default)"
				}
				printf(w, "%s%s: %s\n", name, marker, skin.Title)

				fields := make([]string, 0, len(skin.Tables))
				for f := range skin.Tables {
					fields = append(fields, f)
				}
				sort.Strings(fields)
				for _, f := range fields {
					printf(w, "  %s: %s\n", f, strings.Join(skin.Tables[f].Labels(), ", "))
				}
			}
			return nil
		},
	}
}
