package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gemsieve/gemsieve/internal/domain"
)

// StatsRepo answers the dashboard aggregate queries.
type StatsRepo struct{ db *sql.DB }

// NewStatsRepo creates a stats repository over the shared handle.
func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// overviewTables maps stat keys to their backing tables.
var overviewTables = []struct{ key, table string }{
	{"messages", "messages"},
	{"threads", "threads"},
	{"metadata", "parsed_metadata"},
	{"content", "parsed_content"},
	{"entities", "extracted_entities"},
	{"classifications", "ai_classification"},
	{"profiles", "sender_profiles"},
	{"gems", "gems"},
	{"segments", "sender_segments"},
	{"drafts", "engagement_drafts"},
	{"pipeline_runs", "pipeline_runs"},
	{"ai_calls", "ai_audit_log"},
}

// Overview returns the row count of every pipeline table.
func (r *StatsRepo) Overview(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(overviewTables))
	for _, t := range overviewTables {
		var n int
		if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", t.table, err)
		}
		out[t.key] = n
	}
	return out, nil
}

// StageRowCount returns the row count of the table one stage fills.
func (r *StatsRepo) StageRowCount(ctx context.Context, stage string) (int, error) {
	table := map[string]string{
		"metadata": "parsed_metadata",
		"content":  "parsed_content",
		"entities": "extracted_entities",
		"classify": "ai_classification",
		"profile":  "sender_profiles",
		"segment":  "sender_segments",
		"engage":   "engagement_drafts",
	}[stage]
	if table == "" {
		return 0, nil
	}
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// ESPCounts groups identified ESPs by message count, most common first.
func (r *StatsRepo) ESPCounts(ctx context.Context) ([]KeyCount, error) {
	return r.keyCounts(ctx, `
		SELECT esp_identified, COUNT(*) FROM parsed_metadata
		WHERE esp_identified != ''
		GROUP BY esp_identified ORDER BY COUNT(*) DESC`)
}

// IndustryCounts groups classifications by industry, most common first.
func (r *StatsRepo) IndustryCounts(ctx context.Context) ([]KeyCount, error) {
	return r.keyCounts(ctx, `
		SELECT industry, COUNT(*) FROM ai_classification
		WHERE industry != ''
		GROUP BY industry ORDER BY COUNT(*) DESC`)
}

// KeyCount is one row of a grouped count.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

func (r *StatsRepo) keyCounts(ctx context.Context, query string) ([]KeyCount, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("grouped count: %w", err)
	}
	defer rows.Close()

	var out []KeyCount
	for rows.Next() {
		var kc KeyCount
		if err := rows.Scan(&kc.Key, &kc.Count); err != nil {
			return nil, fmt.Errorf("scan grouped count: %w", err)
		}
		out = append(out, kc)
	}
	return out, rows.Err()
}

// TopGemDomains returns the n domains with the highest total gem score,
// best first.
func (r *StatsRepo) TopGemDomains(ctx context.Context, n int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sender_domain FROM gems
		WHERE sender_domain != ''
		GROUP BY sender_domain
		ORDER BY SUM(score) DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("top gem domains: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan top gem domain: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GemStackRow is one (domain, gem type) score cell of the stacked chart,
// with the highest-scoring gem id as the click target.
type GemStackRow struct {
	SenderDomain string
	GemType      string
	TotalScore   float64
	BestGemID    int64
}

// GemStackRows returns the per-type score totals for the given domains.
func (r *StatsRepo) GemStackRows(ctx context.Context, domains []string) ([]GemStackRow, error) {
	if len(domains) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(domains)), ",")
	args := make([]any, len(domains))
	for i, d := range domains {
		args[i] = d
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT sender_domain, gem_type, SUM(score), MAX(id) FROM gems
		WHERE sender_domain IN (`+placeholders+`)
		GROUP BY sender_domain, gem_type`, args...)
	if err != nil {
		return nil, fmt.Errorf("gem stack rows: %w", err)
	}
	defer rows.Close()

	var out []GemStackRow
	for rows.Next() {
		var row GemStackRow
		if err := rows.Scan(&row.SenderDomain, &row.GemType, &row.TotalScore, &row.BestGemID); err != nil {
			return nil, fmt.Errorf("scan gem stack row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// LastRunForStage returns the newest run record for one stage, or
// ErrNotFound when the stage never ran.
func (r *StatsRepo) LastRunForStage(ctx context.Context, stage string) (*domain.PipelineRun, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM pipeline_runs WHERE stage = ? ORDER BY id DESC LIMIT 1", stage)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("last run for %s: %w", stage, err)
	}
	return run, nil
}
