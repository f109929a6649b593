package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gemsieve/gemsieve/internal/export"
)

var (
	exportSegment string
	exportGems    bool
	exportAll     bool
	exportOutput  string
	exportFormat  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export gems, a segment, or all profiles to CSV or Excel",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := export.Format(exportFormat)
		if format != export.FormatCSV && format != export.FormatExcel {
			return fmt.Errorf("unknown format %q; use csv or excel", exportFormat)
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()
		exp := export.New(a.repos.Profiles)

		switch {
		case exportSegment != "":
			path, err := exp.Segment(ctx, exportSegment, exportOutput)
			if err != nil {
				return err
			}
			fmt.Printf("Exported segment %q to %s\n", exportSegment, path)

		case exportGems:
			path, err := exp.Gems(ctx, exportOutput)
			if err != nil {
				return err
			}
			fmt.Printf("Exported gems to %s\n", path)

		case exportAll:
			path, err := exp.AllProfiles(ctx, exportOutput, format)
			if err != nil {
				return err
			}
			fmt.Printf("Exported all profiles to %s\n", path)

		default:
			return fmt.Errorf("specify --segment, --gems, or --all")
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportSegment, "segment", "", "export one segment")
	exportCmd.Flags().BoolVar(&exportGems, "gems", false, "export all gems")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "export all profiles")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file path")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format: csv or excel")
}
