package api

import (
	"net/http"
	"sort"

	"github.com/gemsieve/gemsieve/internal/store"
)

// Stats returns the dashboard overview: row counts per table.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.stats.Overview(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// GemsByType returns the gem type distribution.
func (h *Handlers) GemsByType(w http.ResponseWriter, r *http.Request) {
	counts, err := h.profiles.GemCountsByType(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	type row struct {
		GemType string `json:"gem_type"`
		Count   int    `json:"count"`
	}
	out := make([]row, 0, len(counts))
	for gt, n := range counts {
		out = append(out, row{GemType: gt, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	writeJSON(w, http.StatusOK, out)
}

// TopGems returns the n highest-scoring gems.
func (h *Handlers) TopGems(w http.ResponseWriter, r *http.Request) {
	n, err := parseID(r, "n")
	if err != nil || n <= 0 {
		badRequest(w, "invalid n")
		return
	}
	gems, err := h.profiles.ListGems(r.Context(), store.GemFilter{Limit: int(n)})
	if err != nil {
		internalError(w, err)
		return
	}

	type row struct {
		ID             int64   `json:"id"`
		GemType        string  `json:"gem_type"`
		SenderDomain   string  `json:"sender_domain"`
		Score          float64 `json:"score"`
		Status         string  `json:"status"`
		EstimatedValue string  `json:"estimated_value"`
		Urgency        string  `json:"urgency"`
	}
	out := make([]row, 0, len(gems))
	for _, g := range gems {
		out = append(out, row{
			ID:             g.ID,
			GemType:        string(g.GemType),
			SenderDomain:   g.SenderDomain,
			Score:          g.Score,
			Status:         string(g.Status),
			EstimatedValue: string(g.Explanation.EstimatedValue),
			Urgency:        string(g.Explanation.Urgency),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// TopGemsStacked returns the top n domains by total gem score with a
// per-gem-type breakdown, shaped for a stacked bar chart.
func (h *Handlers) TopGemsStacked(w http.ResponseWriter, r *http.Request) {
	n, err := parseID(r, "n")
	if err != nil || n <= 0 {
		badRequest(w, "invalid n")
		return
	}
	domains, err := h.stats.TopGemDomains(r.Context(), int(n))
	if err != nil {
		internalError(w, err)
		return
	}
	if len(domains) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"domains": []string{}, "gem_types": []string{},
			"datasets": map[string]any{}, "gem_ids": map[string]any{},
		})
		return
	}

	rows, err := h.stats.GemStackRows(r.Context(), domains)
	if err != nil {
		internalError(w, err)
		return
	}

	type cell struct {
		score float64
		gemID int64
	}
	lookup := make(map[string]map[string]cell)
	typeSet := map[string]bool{}
	for _, row := range rows {
		if lookup[row.SenderDomain] == nil {
			lookup[row.SenderDomain] = make(map[string]cell)
		}
		lookup[row.SenderDomain][row.GemType] = cell{score: row.TotalScore, gemID: row.BestGemID}
		typeSet[row.GemType] = true
	}
	gemTypes := make([]string, 0, len(typeSet))
	for gt := range typeSet {
		gemTypes = append(gemTypes, gt)
	}
	sort.Strings(gemTypes)

	datasets := make(map[string][]float64, len(gemTypes))
	gemIDs := make(map[string][]*int64, len(gemTypes))
	for _, gt := range gemTypes {
		scores := make([]float64, len(domains))
		ids := make([]*int64, len(domains))
		for i, d := range domains {
			if c, ok := lookup[d][gt]; ok {
				scores[i] = c.score
				id := c.gemID
				ids[i] = &id
			}
		}
		datasets[gt] = scores
		gemIDs[gt] = ids
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"domains":   domains,
		"gem_types": gemTypes,
		"datasets":  datasets,
		"gem_ids":   gemIDs,
	})
}

// ByIndustry returns the classification industry breakdown.
func (h *Handlers) ByIndustry(w http.ResponseWriter, r *http.Request) {
	counts, err := h.stats.IndustryCounts(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	type row struct {
		Industry string `json:"industry"`
		Count    int    `json:"count"`
	}
	out := make([]row, 0, len(counts))
	for _, kc := range counts {
		out = append(out, row{Industry: kc.Key, Count: kc.Count})
	}
	writeJSON(w, http.StatusOK, out)
}

// ByESP returns the ESP distribution.
func (h *Handlers) ByESP(w http.ResponseWriter, r *http.Request) {
	counts, err := h.stats.ESPCounts(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	type row struct {
		ESP   string `json:"esp"`
		Count int    `json:"count"`
	}
	out := make([]row, 0, len(counts))
	for _, kc := range counts {
		out = append(out, row{ESP: kc.Key, Count: kc.Count})
	}
	writeJSON(w, http.StatusOK, out)
}

// PipelineActivity returns the recent run timeline.
func (h *Handlers) PipelineActivity(w http.ResponseWriter, r *http.Request) {
	runs, err := h.pipeline.ListRuns(r.Context(), 50)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
