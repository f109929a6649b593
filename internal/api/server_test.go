package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemsieve/gemsieve/internal/config"
	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/pipeline"
	"github.com/gemsieve/gemsieve/internal/store"
)

type testEnv struct {
	repos   *store.Repos
	hub     *pipeline.Hub
	manager *pipeline.Manager
	server  *Server
	gemIDs  *atomic.Int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repos := store.NewRepos(db)
	hub := pipeline.NewHub()

	env := &testEnv{repos: repos, hub: hub, gemIDs: &atomic.Int64{}}

	reg := pipeline.NewRegistry()
	reg.Register(domain.StageMetadata, func(pipeline.RunContext) pipeline.StageRunner {
		return pipeline.RunnerFunc(func(context.Context) (int, error) { return 1, nil })
	})
	reg.Register(domain.StageEngage, func(rc pipeline.RunContext) pipeline.StageRunner {
		return pipeline.RunnerFunc(func(context.Context) (int, error) {
			env.gemIDs.Store(rc.GemID)
			return 1, nil
		})
	})

	env.manager = pipeline.NewManager(reg, repos.Pipeline, hub, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	env.manager.Start(ctx)

	env.server = NewServer(config.ServerConfig{Port: 0}, NewHandlers(repos, env.manager, hub))
	return env
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) post(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func (e *testEnv) seedGem(t *testing.T, senderDomain string, gemType domain.GemType, score float64) int64 {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.repos.Profiles.UpsertProfile(ctx, &domain.SenderProfile{
		SenderDomain: senderDomain,
		BuiltAt:      time.Now().UTC(),
	}))
	g := &domain.Gem{
		GemType:      gemType,
		SenderDomain: senderDomain,
		Score:        score,
		Status:       domain.GemStatusNew,
		DetectedAt:   time.Now().UTC(),
		Explanation: domain.GemExplanation{
			GemType:        string(gemType),
			Summary:        "test gem",
			EstimatedValue: domain.ValueMedium,
			Urgency:        domain.UrgencyMedium,
		},
	}
	require.NoError(t, e.repos.Profiles.InsertGem(ctx, g))
	return g.ID
}

func TestHealthCheck(t *testing.T) {
	e := newTestEnv(t)
	rec := e.get(t, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestRunStageSubmits(t *testing.T) {
	e := newTestEnv(t)
	rec := e.post(t, "/api/pipeline/run/metadata")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string `json:"status"`
		RunID  int64  `json:"run_id"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "submitted", resp.Status)
	require.Greater(t, resp.RunID, int64(0))

	waitForStatus(t, e, resp.RunID, domain.RunCompleted)
}

func TestRunUnknownStage(t *testing.T) {
	e := newTestEnv(t)
	rec := e.post(t, "/api/pipeline/run/bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunStatusNotFound(t *testing.T) {
	e := newTestEnv(t)
	rec := e.get(t, "/api/pipeline/status/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func waitForStatus(t *testing.T, e *testEnv, runID int64, want domain.RunStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, err := e.repos.Pipeline.GetRun(context.Background(), runID)
		require.NoError(t, err)
		if run.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %d never reached %s", runID, want)
}

func TestGenerateForGem(t *testing.T) {
	e := newTestEnv(t)
	gemID := e.seedGem(t, "acme.com", domain.GemPartnerProgram, 70)

	rec := e.post(t, "/api/gems/999/generate")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.post(t, "/api/gems/1/generate")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		RunID int64 `json:"run_id"`
		GemID int64 `json:"gem_id"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, gemID, resp.GemID)

	waitForStatus(t, e, resp.RunID, domain.RunCompleted)
	assert.Equal(t, gemID, e.gemIDs.Load(), "engage runner received the gem id")
}

func TestGemBrowseEndpoints(t *testing.T) {
	e := newTestEnv(t)
	id := e.seedGem(t, "acme.com", domain.GemDormantWarmThread, 82)
	e.seedGem(t, "globex.com", domain.GemPartnerProgram, 40)

	rec := e.get(t, "/api/gems?domain=acme.com")
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []domain.Gem `json:"items"`
		Total int          `json:"total"`
	}
	decode(t, rec, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "acme.com", page.Items[0].SenderDomain)

	rec = e.get(t, "/api/gems/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var gem domain.Gem
	decode(t, rec, &gem)
	assert.Equal(t, id, gem.ID)
	assert.Equal(t, "test gem", gem.Explanation.Summary)

	rec = e.get(t, "/api/gems/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsOverview(t *testing.T) {
	e := newTestEnv(t)
	e.seedGem(t, "acme.com", domain.GemPartnerProgram, 60)

	rec := e.get(t, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var counts map[string]int
	decode(t, rec, &counts)
	assert.Equal(t, 1, counts["gems"])
	assert.Equal(t, 1, counts["profiles"])
	assert.Equal(t, 0, counts["messages"])
}

func TestTopGemsStacked(t *testing.T) {
	e := newTestEnv(t)
	e.seedGem(t, "acme.com", domain.GemDormantWarmThread, 80)
	e.seedGem(t, "acme.com", domain.GemPartnerProgram, 50)
	e.seedGem(t, "globex.com", domain.GemPartnerProgram, 30)

	rec := e.get(t, "/api/stats/gems-top-stacked/5")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Domains  []string             `json:"domains"`
		GemTypes []string             `json:"gem_types"`
		Datasets map[string][]float64 `json:"datasets"`
	}
	decode(t, rec, &resp)
	require.Equal(t, []string{"acme.com", "globex.com"}, resp.Domains)
	require.Contains(t, resp.GemTypes, string(domain.GemPartnerProgram))
	assert.Equal(t, []float64{50, 30}, resp.Datasets[string(domain.GemPartnerProgram)])
	assert.Equal(t, []float64{80, 0}, resp.Datasets[string(domain.GemDormantWarmThread)])
}

func TestAuditEndpoints(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	entry := &domain.AIAuditEntry{
		RunID:          1,
		Stage:          domain.StageClassify,
		SenderDomain:   "acme.com",
		TemplateID:     "classification",
		PromptRendered: "classify this sender",
		ModelUsed:      "scripted",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, e.repos.Pipeline.InsertAudit(ctx, entry))

	rec := e.get(t, "/api/ai-audit?stage=classify")
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []domain.AIAuditEntry `json:"items"`
	}
	decode(t, rec, &page)
	require.Len(t, page.Items, 1)

	rec = e.get(t, "/api/ai-audit/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.AIAuditEntry
	decode(t, rec, &got)
	assert.Equal(t, "classify this sender", got.PromptRendered)

	rec = e.get(t, "/api/ai-audit/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStagesEndpoint(t *testing.T) {
	e := newTestEnv(t)
	rec := e.get(t, "/api/stages")
	require.Equal(t, http.StatusOK, rec.Code)
	var stages []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	decode(t, rec, &stages)
	require.Len(t, stages, 2)
	assert.Equal(t, "metadata", stages[0].Name)
	assert.NotEmpty(t, stages[0].Description)
	assert.Equal(t, "engage", stages[1].Name)
}

func TestStreamDeliversEvents(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/pipeline/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	go func() {
		// Give the handler a moment to subscribe.
		time.Sleep(100 * time.Millisecond)
		e.hub.Publish(pipeline.Event{Kind: pipeline.EventDone, RunID: 7, Stage: domain.StageSegment, Items: 3})
	}()

	scanner := bufio.NewScanner(resp.Body)
	var eventLine, dataLine string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			eventLine = line
		}
		if strings.HasPrefix(line, "data: ") {
			dataLine = line
			break
		}
	}
	assert.Equal(t, "event: DONE", eventLine)
	assert.Contains(t, dataLine, `"run_id":7`)
	assert.Contains(t, dataLine, `"stage":"segment"`)
}
