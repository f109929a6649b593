package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gemsieve/gemsieve/internal/domain"
)

var (
	relSender   string
	relType     string
	relNote     string
	relSuppress bool
)

var relationshipCmd = &cobra.Command{
	Use:   "relationship",
	Short: "Manually set the relationship for a sender domain",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := domain.RelationshipType(relType)
		if !domain.ValidRelationshipTypes[rt] {
			return fmt.Errorf("unknown relationship type %q", relType)
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		det, err := a.detector()
		if err != nil {
			return err
		}
		if err := det.Set(cmd.Context(), relSender, rt, relNote, relSuppress); err != nil {
			return err
		}
		fmt.Printf("Relationship for %s set to %s.\n", relSender, rt)
		return nil
	},
}

var (
	relsList       bool
	relsType       string
	relsAutoDetect bool
	relsApply      bool
	relsImport     string
)

var relationshipsCmd = &cobra.Command{
	Use:   "relationships",
	Short: "List, auto-detect, or import sender relationships",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		det, err := a.detector()
		if err != nil {
			return err
		}

		switch {
		case relsImport != "":
			count, err := det.Import(ctx, relsImport)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d relationships from %s.\n", count, relsImport)
			return nil

		case relsAutoDetect:
			proposals, err := det.DetectAll(ctx, relsApply)
			if err != nil {
				return err
			}
			verb := "proposed"
			if relsApply {
				verb = "applied"
			}
			for _, p := range proposals {
				suppress := ""
				if p.Suppress {
					suppress = "  [suppress]"
				}
				fmt.Printf("  %-30s %-20s %.2f%s\n", p.SenderDomain, p.Proposed, p.Confidence, suppress)
				for _, s := range p.Signals {
					fmt.Printf("      - %s: %s\n", s.Signal, s.Evidence)
				}
			}
			fmt.Printf("%d relationships %s.\n", len(proposals), verb)
			return nil

		case relsList:
			rels, err := det.List(ctx, relsType)
			if err != nil {
				return err
			}
			if len(rels) == 0 {
				fmt.Println("No relationships found.")
				return nil
			}
			for _, r := range rels {
				suppress := ""
				if r.SuppressGems {
					suppress = "  [suppress]"
				}
				fmt.Printf("  %-30s %-20s %.2f  %s%s\n",
					r.SenderDomain, r.Type, r.Confidence, r.Source, suppress)
			}
			return nil

		default:
			return cmd.Help()
		}
	},
}

func init() {
	relationshipCmd.Flags().StringVar(&relSender, "sender", "", "sender domain")
	relationshipCmd.Flags().StringVar(&relType, "type", "", "relationship type")
	relationshipCmd.Flags().StringVar(&relNote, "note", "", "free-form note")
	relationshipCmd.Flags().BoolVar(&relSuppress, "suppress", false, "suppress gem detection for this domain")
	relationshipCmd.MarkFlagRequired("sender")
	relationshipCmd.MarkFlagRequired("type")

	relationshipsCmd.Flags().BoolVar(&relsList, "list", false, "list stored relationships")
	relationshipsCmd.Flags().StringVar(&relsType, "type", "", "filter --list by type")
	relationshipsCmd.Flags().BoolVar(&relsAutoDetect, "auto-detect", false, "propose relationships for all profiled senders")
	relationshipsCmd.Flags().BoolVar(&relsApply, "apply", false, "write confident proposals (with --auto-detect)")
	relationshipsCmd.Flags().StringVar(&relsImport, "import", "", "import relationships from a YAML file")
}
