package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/pipeline"
)

var parseStage string

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Run a parsing stage: metadata, content, or entities (stages 1-3)",
	RunE: func(cmd *cobra.Command, args []string) error {
		var stage domain.Stage
		switch parseStage {
		case "metadata":
			stage = domain.StageMetadata
		case "content":
			stage = domain.StageContent
		case "entities":
			stage = domain.StageEntities
		default:
			return fmt.Errorf("unknown stage %q; use metadata, content, or entities", parseStage)
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		mgr, _, err := a.newPipeline(nil, a.cfg.AI.ModelSpec())
		if err != nil {
			return err
		}
		_, items, err := mgr.RunSync(cmd.Context(), stage, pipeline.SubmitOptions{Trigger: domain.TriggerCLI})
		if err != nil {
			return err
		}
		fmt.Printf("%s stage complete: %d messages processed.\n", stage, items)
		return nil
	},
}

func init() {
	parseCmd.Flags().StringVarP(&parseStage, "stage", "s", "", "stage to run: metadata, content, entities")
	parseCmd.MarkFlagRequired("stage")
}
