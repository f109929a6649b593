package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/ingest"
	"github.com/gemsieve/gemsieve/internal/mailbox"
	"github.com/gemsieve/gemsieve/internal/pipeline"
)

var (
	runQuery     string
	runAllStages bool
	runModel     string
	runCrew      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: ingest, then every stage through segmentation",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !runAllStages {
			return fmt.Errorf("use --all-stages to run the full pipeline")
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		fmt.Println("Stage 0: Ingesting from Gmail...")
		gp, err := mailbox.NewGmailProvider(ctx, a.cfg.Gmail.CredentialsFile, a.cfg.Gmail.TokenFile)
		if err != nil {
			return err
		}
		engine := ingest.NewSyncEngine(gp, a.repos.Messages)
		query := runQuery
		if query == "" {
			query = a.cfg.Gmail.DefaultQuery
		}
		stored, err := engine.FullSync(ctx, query)
		if err != nil {
			return err
		}
		fmt.Printf("  Ingested %d messages.\n", stored)

		provider, spec, err := a.aiProvider(runModel)
		if err != nil {
			return err
		}
		mgr, _, err := a.newPipeline(provider, spec)
		if err != nil {
			return err
		}

		mode := ""
		if runCrew {
			mode = " (crew)"
		}
		fmt.Printf("Running pipeline stages with %s%s...\n", spec, mode)
		if _, err := mgr.RunAll(ctx, pipeline.SubmitOptions{
			Trigger: domain.TriggerCLI,
			Crew:    runCrew,
		}); err != nil {
			return err
		}

		fmt.Println("\nPipeline complete. Run 'gemsieve gems --list' to see results.")
		fmt.Println("Run 'gemsieve generate --gem <id>' to create engagement drafts.")
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runQuery, "query", "q", "", "mailbox search query")
	runCmd.Flags().BoolVar(&runAllStages, "all-stages", false, "run ingest plus every stage through segmentation")
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "model spec (provider:model); default from config/env")
	runCmd.Flags().BoolVar(&runCrew, "crew", false, "use the multi-agent prompt profile for AI stages")
}
