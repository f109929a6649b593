package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/pipeline"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Build sender profiles and re-detect gems (stage 5)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		mgr, _, err := a.newPipeline(nil, a.cfg.AI.ModelSpec())
		if err != nil {
			return err
		}
		_, items, err := mgr.RunSync(cmd.Context(), domain.StageProfile, pipeline.SubmitOptions{Trigger: domain.TriggerCLI})
		if err != nil {
			return err
		}
		fmt.Printf("Profile building complete: %d profiles built.\n", items)
		return nil
	},
}
