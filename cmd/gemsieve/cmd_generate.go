package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gemsieve/gemsieve/internal/engage"
)

var (
	generateGem      int64
	generateStrategy string
	generateTop      int
	generateAll      bool
	generateModel    string
	generateCrew     bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate engagement drafts for gems (stage 7)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		provider, spec, err := a.aiProvider(generateModel)
		if err != nil {
			return err
		}
		mode := "direct"
		if generateCrew {
			mode = "crew"
		}
		fmt.Printf("Generating with model: %s (%s mode)\n", spec, mode)

		opts := engage.Options{
			GemID:    generateGem,
			Strategy: generateStrategy,
			TopN:     generateTop,
		}
		switch {
		case generateAll:
			opts.TopN = 0
		case generateGem == 0 && generateTop == 0:
			opts.TopN = 10
		}

		st := engage.NewStage(a.repos.Profiles, a.repos.Pipeline, a.repos.Messages,
			provider, a.cfg.Engagement, generateCrew)
		count, err := st.Generate(cmd.Context(), opts)
		if err != nil {
			return err
		}
		fmt.Printf("Generated %d engagement draft(s).\n", count)
		return nil
	},
}

func init() {
	generateCmd.Flags().Int64Var(&generateGem, "gem", 0, "generate for one gem ID")
	generateCmd.Flags().StringVarP(&generateStrategy, "strategy", "s", "", "filter by strategy")
	generateCmd.Flags().IntVar(&generateTop, "top", 0, "generate for the top N gems")
	generateCmd.Flags().BoolVar(&generateAll, "all", false, "generate for all matching gems")
	generateCmd.Flags().StringVarP(&generateModel, "model", "m", "", "model spec (provider:model); default from config/env")
	generateCmd.Flags().BoolVar(&generateCrew, "crew", false, "use the multi-agent prompt profile")
}
