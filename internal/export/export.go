// Package export writes gems, segments, and profiles to CSV or Excel for
// work outside the admin UI.
package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/pkg/logger"
	"github.com/gemsieve/gemsieve/internal/store"
)

// Format selects the output file type.
type Format string

// Supported output formats.
const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
)

// Exporter writes store contents to files.
type Exporter struct {
	profiles *store.ProfileRepo
	log      *logger.Logger
}

// New creates an exporter over the profile repository.
func New(profiles *store.ProfileRepo) *Exporter {
	return &Exporter{profiles: profiles, log: logger.WithComponent("export")}
}

var gemColumns = []string{
	"id", "gem_type", "sender_domain", "company_name", "industry",
	"company_size", "score", "summary", "recommended_actions", "status",
}

// Gems writes every gem, highest score first, joined with its profile's
// company columns. Returns the written path.
func (e *Exporter) Gems(ctx context.Context, outputPath string) (string, error) {
	if outputPath == "" {
		outputPath = "gems_export.csv"
	}
	gems, err := e.profiles.ListGems(ctx, store.GemFilter{})
	if err != nil {
		return "", err
	}

	profileByDomain := map[string]*domain.SenderProfile{}
	rows := [][]string{}
	for i := range gems {
		g := &gems[i]
		p, ok := profileByDomain[g.SenderDomain]
		if !ok {
			p, err = e.profiles.GetProfile(ctx, g.SenderDomain)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return "", err
			}
			profileByDomain[g.SenderDomain] = p
		}
		company, industry, size := "", "", ""
		if p != nil {
			company = p.CompanyName
			industry = p.Industry
			size = string(p.CompanySize)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", g.ID),
			string(g.GemType),
			g.SenderDomain,
			company,
			industry,
			size,
			fmt.Sprintf("%g", g.Score),
			g.Explanation.Summary,
			strings.Join(g.RecommendedActions, "; "),
			string(g.Status),
		})
	}

	if err := writeCSV(outputPath, gemColumns, rows); err != nil {
		return "", err
	}
	e.log.Info("exported gems", "path", outputPath, "rows", len(rows))
	return outputPath, nil
}

var segmentColumns = []string{
	"sender_domain", "company_name", "primary_email", "industry",
	"company_size", "marketing_sophistication", "esp_used",
	"product_description", "total_messages", "segment", "sub_segment",
}

// Segment writes every profile in one segment, least sophisticated first.
func (e *Exporter) Segment(ctx context.Context, segment, outputPath string) (string, error) {
	if outputPath == "" {
		outputPath = "segment_" + segment + ".csv"
	}

	domains, err := e.profiles.DomainsInSegment(ctx, segment)
	if err != nil {
		return "", err
	}

	type entry struct {
		profile *domain.SenderProfile
		sub     string
	}
	var entries []entry
	for _, d := range domains {
		p, err := e.profiles.GetProfile(ctx, d)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		segs, err := e.profiles.SegmentsForDomain(ctx, d)
		if err != nil {
			return "", err
		}
		sub := ""
		for _, s := range segs {
			if s.Segment == segment {
				sub = s.SubSegment
				break
			}
		}
		entries = append(entries, entry{profile: p, sub: sub})
	}
	// Least sophisticated senders are the easiest targets; list them first.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].profile.SophisticationAvg < entries[j].profile.SophisticationAvg
	})

	rows := make([][]string, 0, len(entries))
	for _, en := range entries {
		p := en.profile
		rows = append(rows, []string{
			p.SenderDomain,
			p.CompanyName,
			p.PrimaryEmail,
			p.Industry,
			string(p.CompanySize),
			fmt.Sprintf("%g", p.SophisticationAvg),
			p.ESPUsed,
			p.ProductDescription,
			fmt.Sprintf("%d", p.TotalMessages),
			segment,
			en.sub,
		})
	}

	if err := writeCSV(outputPath, segmentColumns, rows); err != nil {
		return "", err
	}
	e.log.Info("exported segment", "segment", segment, "path", outputPath, "rows", len(rows))
	return outputPath, nil
}

var profileColumns = []string{
	"sender_domain", "company_name", "primary_email", "reply_to_email",
	"industry", "company_size", "marketing_sophistication_avg",
	"marketing_sophistication_trend", "esp_used", "product_type",
	"product_description", "target_audience", "total_messages",
	"first_contact", "last_contact", "avg_frequency_days",
	"has_personalization", "has_partner_program", "authentication_quality",
}

// AllProfiles writes every sender profile, ordered by domain.
func (e *Exporter) AllProfiles(ctx context.Context, outputPath string, format Format) (string, error) {
	if outputPath == "" {
		outputPath = "profiles_export.csv"
	}
	profiles, err := e.profiles.AllProfiles(ctx)
	if err != nil {
		return "", err
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].SenderDomain < profiles[j].SenderDomain
	})
	rows := make([][]string, 0, len(profiles))
	for i := range profiles {
		rows = append(rows, profileRow(&profiles[i]))
	}

	if format == FormatExcel {
		if !strings.HasSuffix(outputPath, ".xlsx") {
			outputPath = strings.TrimSuffix(outputPath, ".csv") + ".xlsx"
		}
		if err := writeExcel(outputPath, "Sender Profiles", profileColumns, rows); err != nil {
			return "", err
		}
	} else {
		if err := writeCSV(outputPath, profileColumns, rows); err != nil {
			return "", err
		}
	}
	e.log.Info("exported profiles", "path", outputPath, "rows", len(rows))
	return outputPath, nil
}

func profileRow(p *domain.SenderProfile) []string {
	return []string{
		p.SenderDomain,
		p.CompanyName,
		p.PrimaryEmail,
		p.ReplyToEmail,
		p.Industry,
		string(p.CompanySize),
		fmt.Sprintf("%g", p.SophisticationAvg),
		p.SophTrend,
		p.ESPUsed,
		p.ProductType,
		p.ProductDescription,
		p.TargetAudience,
		fmt.Sprintf("%d", p.TotalMessages),
		p.FirstContact.UTC().Format("2006-01-02"),
		p.LastContact.UTC().Format("2006-01-02"),
		fmt.Sprintf("%g", p.AvgFrequencyDays),
		boolCell(p.HasPersonalization),
		boolCell(p.HasPartnerProgram),
		p.AuthQuality,
	}
}

func boolCell(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return f.Close()
}

func writeExcel(path, sheet string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for col, name := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("write header cell: %w", err)
		}
	}
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("write cell: %w", err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
