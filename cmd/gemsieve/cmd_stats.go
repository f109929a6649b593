package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gemsieve/gemsieve/internal/store"
)

var (
	statsByESP      bool
	statsByIndustry bool
	statsBySegment  bool
	statsGemSummary bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show inbox intelligence statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		switch {
		case statsByESP:
			counts, err := a.repos.Stats.ESPCounts(ctx)
			if err != nil {
				return err
			}
			fmt.Println("Messages by ESP:")
			for _, kc := range counts {
				fmt.Printf("  %-25s %d\n", kc.Key, kc.Count)
			}

		case statsByIndustry:
			counts, err := a.repos.Stats.IndustryCounts(ctx)
			if err != nil {
				return err
			}
			fmt.Println("Messages by industry:")
			for _, kc := range counts {
				fmt.Printf("  %-30s %d\n", kc.Key, kc.Count)
			}

		case statsBySegment:
			counts, err := a.repos.Profiles.SegmentCounts(ctx)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(counts))
			for k := range counts {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Println("Senders by segment:")
			for _, k := range keys {
				fmt.Printf("  %-45s %d\n", k, counts[k])
			}

		case statsGemSummary:
			gems, err := a.repos.Profiles.ListGems(ctx, store.GemFilter{})
			if err != nil {
				return err
			}
			type agg struct {
				count int
				sum   float64
				max   float64
			}
			byType := map[string]*agg{}
			for _, g := range gems {
				t := string(g.GemType)
				if byType[t] == nil {
					byType[t] = &agg{}
				}
				byType[t].count++
				byType[t].sum += g.Score
				if g.Score > byType[t].max {
					byType[t].max = g.Score
				}
			}
			types := make([]string, 0, len(byType))
			for t := range byType {
				types = append(types, t)
			}
			sort.Slice(types, func(i, j int) bool { return byType[types[i]].count > byType[types[j]].count })

			fmt.Printf("%-25s %5s %10s %10s\n", "Gem Type", "Count", "Avg Score", "Max Score")
			fmt.Println(strings.Repeat("-", 55))
			for _, t := range types {
				ag := byType[t]
				fmt.Printf("%-25s %5d %10.1f %10.0f\n", t, ag.count, ag.sum/float64(ag.count), ag.max)
			}

		default:
			counts, err := store.Stats(a.db)
			if err != nil {
				return err
			}
			fmt.Println("GemSieve Inbox Intelligence Overview")
			fmt.Println(strings.Repeat("=", 40))
			rows := []struct{ label, table string }{
				{"Messages", "messages"},
				{"Threads", "threads"},
				{"Parsed meta", "parsed_metadata"},
				{"Parsed content", "parsed_content"},
				{"Entities", "extracted_entities"},
				{"Classified", "ai_classification"},
				{"Profiles", "sender_profiles"},
				{"Gems", "gems"},
				{"Drafts", "engagement_drafts"},
				{"Overrides", "classification_overrides"},
			}
			for _, row := range rows {
				fmt.Printf("  %-15s %d\n", row.label+":", counts[row.table])
			}
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsByESP, "by-esp", false, "breakdown by ESP")
	statsCmd.Flags().BoolVar(&statsByIndustry, "by-industry", false, "breakdown by industry")
	statsCmd.Flags().BoolVar(&statsBySegment, "by-segment", false, "breakdown by segment")
	statsCmd.Flags().BoolVar(&statsGemSummary, "gem-summary", false, "gem distribution and scores")
}
