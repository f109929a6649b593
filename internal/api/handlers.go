package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/pipeline"
	"github.com/gemsieve/gemsieve/internal/pkg/httputil"
	"github.com/gemsieve/gemsieve/internal/pkg/logger"
	"github.com/gemsieve/gemsieve/internal/store"
)

// Handlers holds every HTTP handler's dependencies.
type Handlers struct {
	messages *store.MessageRepo
	metadata *store.MetadataRepo
	content  *store.ContentRepo
	entities *store.EntityRepo
	classify *store.ClassifyRepo
	profiles *store.ProfileRepo
	pipeline *store.PipelineRepo
	stats    *store.StatsRepo
	manager  *pipeline.Manager
	hub      *pipeline.Hub
	log      *logger.Logger
}

// NewHandlers wires the handler set over the shared repositories.
func NewHandlers(db *store.Repos, manager *pipeline.Manager, hub *pipeline.Hub) *Handlers {
	return &Handlers{
		messages: db.Messages,
		metadata: db.Metadata,
		content:  db.Content,
		entities: db.Entities,
		classify: db.Classify,
		profiles: db.Profiles,
		pipeline: db.Pipeline,
		stats:    db.Stats,
		manager:  manager,
		hub:      hub,
		log:      logger.WithComponent("api"),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	httputil.JSON(w, status, v)
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RunStage submits one stage (or "all") to the pipeline worker pool.
func (h *Handlers) RunStage(w http.ResponseWriter, r *http.Request) {
	stage := chi.URLParam(r, "stage")
	opts := pipeline.SubmitOptions{
		Trigger: domain.TriggerWeb,
		Crew:    r.URL.Query().Get("crew") == "true",
		Retrain: r.URL.Query().Get("retrain") == "true",
	}

	if stage == "all" {
		runIDs, err := h.manager.RunAll(r.Context(), opts)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"status": "failed", "run_ids": runIDs, "error": err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "submitted", "run_ids": runIDs})
		return
	}

	runID, err := h.manager.Submit(r.Context(), domain.Stage(stage), opts)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "submitted", "run_id": runID, "stage": stage,
	})
}

// RunStatus returns one run record.
func (h *Handlers) RunStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "run_id"), 10, 64)
	if err != nil {
		badRequest(w, "invalid run id")
		return
	}
	run, err := h.pipeline.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "run not found")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListRuns returns recent runs, newest first.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	runs, err := h.pipeline.ListRuns(r.Context(), limit)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// Stages lists the registered stages with row counts and last runs.
func (h *Handlers) Stages(w http.ResponseWriter, r *http.Request) {
	type stageEntry struct {
		Name        domain.Stage        `json:"name"`
		Description string              `json:"description"`
		RowCount    int                 `json:"row_count"`
		LastRun     *domain.PipelineRun `json:"last_run"`
	}

	var out []stageEntry
	for _, info := range h.manager.Stages() {
		count, err := h.stats.StageRowCount(r.Context(), string(info.Name))
		if err != nil {
			internalError(w, err)
			return
		}
		entry := stageEntry{Name: info.Name, Description: info.Description, RowCount: count}
		last, err := h.stats.LastRunForStage(r.Context(), string(info.Name))
		switch {
		case err == nil:
			entry.LastRun = last
		case !errors.Is(err, store.ErrNotFound):
			internalError(w, err)
			return
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, out)
}

// GenerateForGem submits an engage run scoped to one gem.
func (h *Handlers) GenerateForGem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, "invalid gem id")
		return
	}
	if _, err := h.profiles.GetGem(r.Context(), id); errors.Is(err, store.ErrNotFound) {
		notFound(w, "gem not found")
		return
	} else if err != nil {
		internalError(w, err)
		return
	}

	runID, err := h.manager.Submit(r.Context(), domain.StageEngage, pipeline.SubmitOptions{
		Trigger: domain.TriggerWeb,
		Crew:    r.URL.Query().Get("crew") == "true",
		GemID:   id,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "submitted", "run_id": runID, "gem_id": id,
	})
}

// ListAudit pages the AI audit log.
func (h *Handlers) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.pipeline.ListAudit(r.Context(),
		r.URL.Query().Get("stage"),
		int64(queryInt(r, "run_id", 0)),
		queryInt(r, "limit", 50),
		queryInt(r, "offset", 0))
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries, "count": len(entries)})
}

// GetAudit returns one full audit entry, prompt and response included.
func (h *Handlers) GetAudit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, "invalid audit id")
		return
	}
	entry, err := h.pipeline.GetAudit(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "audit entry not found")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
