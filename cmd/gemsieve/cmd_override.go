package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gemsieve/gemsieve/internal/classify"
)

var (
	overrideSender  string
	overrideMessage string
	overrideField   string
	overrideValue   string
)

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Correct a classification field for a sender or a message",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ov := classify.NewOverrides(a.repos.Classify, a.repos.Metadata)
		created, err := ov.Add(cmd.Context(), overrideMessage, overrideSender, overrideField, overrideValue)
		if err != nil {
			return err
		}
		fmt.Printf("Override #%d created.\n", created.ID)
		return nil
	},
}

var (
	overridesList  bool
	overridesStats bool
)

var overridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "List classification overrides and their tuning pressure",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !overridesList && !overridesStats {
			return cmd.Help()
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()
		ov := classify.NewOverrides(a.repos.Classify, a.repos.Metadata)

		if overridesList {
			items, err := ov.List(ctx)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("No overrides found.")
			}
			for _, o := range items {
				target := o.SenderDomain
				if target == "" {
					target = o.MessageID
				}
				fmt.Printf("  #%d [%s] %s: %s = %s (was: %s)\n",
					o.ID, o.Scope, target, o.FieldName, o.CorrectedValue, o.OriginalValue)
			}
		}

		if overridesStats {
			stats, err := ov.Stats(ctx)
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Println("No overrides to analyze.")
			}
			for _, s := range stats {
				flag := ""
				if s.NeedsTuning {
					flag = "  NEEDS TUNING"
				}
				fmt.Printf("  %s: %d overrides / %d total = %.1f%%%s\n",
					s.FieldName, s.TotalOverrides, s.TotalClassifications, s.OverrideRate, flag)
			}
		}
		return nil
	},
}

func init() {
	overrideCmd.Flags().StringVar(&overrideSender, "sender", "", "sender domain to override")
	overrideCmd.Flags().StringVar(&overrideMessage, "message", "", "message ID to override")
	overrideCmd.Flags().StringVarP(&overrideField, "field", "f", "", "field name to override")
	overrideCmd.Flags().StringVarP(&overrideValue, "value", "v", "", "corrected value")
	overrideCmd.MarkFlagRequired("field")
	overrideCmd.MarkFlagRequired("value")

	overridesCmd.Flags().BoolVar(&overridesList, "list", false, "list all overrides")
	overridesCmd.Flags().BoolVar(&overridesStats, "stats", false, "show per-field override rates")
}
