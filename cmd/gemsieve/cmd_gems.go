package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gemsieve/gemsieve/internal/profile"
	"github.com/gemsieve/gemsieve/internal/store"
)

var (
	gemsList    bool
	gemsType    string
	gemsSegment string
	gemsTop     int
	gemsExplain int64
)

var gemsCmd = &cobra.Command{
	Use:   "gems",
	Short: "Detect or view gems (no flags runs detection)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		if gemsExplain > 0 {
			return explainGem(a, cmd, gemsExplain)
		}

		if !gemsList && gemsType == "" && gemsSegment == "" && gemsTop == 0 {
			st := profile.NewStage(a.repos.Profiles, a.repos.Messages, a.repos.Metadata,
				a.repos.Content, a.repos.Entities, a.repos.Classify, nil,
				a.cfg.Scoring, a.cfg.Engagement)
			count, err := st.DetectGems(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Gem detection complete: %d gems detected.\n", count)
			return nil
		}

		gems, err := a.repos.Profiles.ListGems(ctx, store.GemFilter{GemType: gemsType, Limit: gemsTop})
		if err != nil {
			return err
		}
		if gemsSegment != "" {
			domains, err := a.repos.Profiles.DomainsInSegment(ctx, gemsSegment)
			if err != nil {
				return err
			}
			member := make(map[string]bool, len(domains))
			for _, d := range domains {
				member[d] = true
			}
			kept := gems[:0]
			for _, g := range gems {
				if member[g.SenderDomain] {
					kept = append(kept, g)
				}
			}
			gems = kept
		}

		if len(gems) == 0 {
			fmt.Println("No gems found.")
			return nil
		}

		companies := map[string]string{}
		fmt.Printf("%4s  %5s  %-25s  %-30s  %-20s  %s\n", "ID", "Score", "Type", "Domain", "Company", "Status")
		fmt.Println(strings.Repeat("-", 110))
		for _, g := range gems {
			company, ok := companies[g.SenderDomain]
			if !ok {
				if p, err := a.repos.Profiles.GetProfile(ctx, g.SenderDomain); err == nil {
					company = p.CompanyName
				} else if !errors.Is(err, store.ErrNotFound) {
					return err
				}
				companies[g.SenderDomain] = company
			}
			fmt.Printf("%4d  %5.0f  %-25s  %-30s  %-20s  %s\n",
				g.ID, g.Score, g.GemType, g.SenderDomain, company, g.Status)
		}
		return nil
	},
}

func explainGem(a *app, cmd *cobra.Command, id int64) error {
	g, err := a.repos.Profiles.GetGem(cmd.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("gem #%d not found", id)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Gem #%d — %s\n", g.ID, g.GemType)
	fmt.Printf("  Domain: %s\n", g.SenderDomain)
	fmt.Printf("  Score:  %g\n", g.Score)
	fmt.Printf("  Status: %s\n", g.Status)
	fmt.Printf("  Summary: %s\n", g.Explanation.Summary)
	if len(g.Explanation.Signals) > 0 {
		fmt.Println("  Signals:")
		for _, s := range g.Explanation.Signals {
			fmt.Printf("    - %s: %s\n", s.Signal, s.Evidence)
		}
	}
	if len(g.RecommendedActions) > 0 {
		fmt.Println("  Recommended actions:")
		for _, action := range g.RecommendedActions {
			fmt.Printf("    - %s\n", action)
		}
	}
	return nil
}

func init() {
	gemsCmd.Flags().BoolVar(&gemsList, "list", false, "list all gems")
	gemsCmd.Flags().StringVarP(&gemsType, "type", "t", "", "filter by gem type")
	gemsCmd.Flags().StringVar(&gemsSegment, "segment", "", "filter by segment membership")
	gemsCmd.Flags().IntVar(&gemsTop, "top", 0, "show only the top N by score")
	gemsCmd.Flags().Int64Var(&gemsExplain, "explain", 0, "show the full explanation for a gem ID")
}
