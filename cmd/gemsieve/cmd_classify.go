package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/pipeline"
)

var (
	classifyModel   string
	classifyBatch   int
	classifyRetrain bool
	classifyCrew    bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Run AI sender classification (stage 4)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if classifyBatch > 0 {
			a.cfg.AI.BatchSize = classifyBatch
		}
		provider, spec, err := a.aiProvider(classifyModel)
		if err != nil {
			return err
		}

		mode := "direct"
		if classifyCrew {
			mode = "crew"
		}
		fmt.Printf("Classifying with model: %s (%s mode)\n", spec, mode)

		mgr, _, err := a.newPipeline(provider, spec)
		if err != nil {
			return err
		}
		_, items, err := mgr.RunSync(cmd.Context(), domain.StageClassify, pipeline.SubmitOptions{
			Trigger: domain.TriggerCLI,
			Crew:    classifyCrew,
			Retrain: classifyRetrain,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Classification complete: %d messages classified.\n", items)
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyModel, "model", "m", "", "model spec (provider:model); default from config/env")
	classifyCmd.Flags().IntVarP(&classifyBatch, "batch-size", "b", 0, "messages per batch")
	classifyCmd.Flags().BoolVar(&classifyRetrain, "retrain", false, "fold recent overrides into the prompt as corrections")
	classifyCmd.Flags().BoolVar(&classifyCrew, "crew", false, "use the multi-agent prompt profile")
}
