package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gemsieve/gemsieve/internal/pkg/httputil"
)

// SetupRoutes builds the full route tree.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		// Pipeline control.
		r.Post("/pipeline/run/{stage}", h.RunStage)
		r.Get("/pipeline/status/{run_id}", h.RunStatus)
		r.Get("/pipeline/runs", h.ListRuns)
		r.Get("/pipeline/stream", h.Stream)
		r.Get("/stages", h.Stages)

		// Dashboard stats.
		r.Get("/stats", h.Stats)
		r.Get("/stats/gems-by-type", h.GemsByType)
		r.Get("/stats/gems-top/{n}", h.TopGems)
		r.Get("/stats/gems-top-stacked/{n}", h.TopGemsStacked)
		r.Get("/stats/by-industry", h.ByIndustry)
		r.Get("/stats/by-esp", h.ByESP)
		r.Get("/stats/pipeline-activity", h.PipelineActivity)

		// AI audit.
		r.Get("/ai-audit", h.ListAudit)
		r.Get("/ai-audit/{id}", h.GetAudit)

		// Engagement.
		r.Post("/gems/{id}/generate", h.GenerateForGem)
		r.Get("/drafts", h.ListDrafts)
		r.Get("/drafts/{id}", h.GetDraft)

		// Table browsing.
		r.Get("/messages", h.ListMessages)
		r.Get("/messages/{id}", h.GetMessage)
		r.Get("/threads", h.ListThreads)
		r.Get("/threads/{id}", h.GetThread)
		r.Get("/metadata", h.ListMetadata)
		r.Get("/metadata/{message_id}", h.GetMetadata)
		r.Get("/content", h.ListContent)
		r.Get("/content/{message_id}", h.GetContent)
		r.Get("/entities", h.ListEntities)
		r.Get("/classifications", h.ListClassifications)
		r.Get("/classifications/{message_id}", h.GetClassification)
		r.Get("/overrides", h.ListOverrides)
		r.Get("/profiles", h.ListProfiles)
		r.Get("/profiles/{domain}", h.GetProfile)
		r.Get("/profiles/{domain}/segments", h.ProfileSegments)
		r.Get("/gems", h.ListGems)
		r.Get("/gems/{id}", h.GetGem)
		r.Get("/relationships", h.ListRelationships)
		r.Get("/segments", h.ListSegments)
	})

	return r
}

func notFound(w http.ResponseWriter, msg string) {
	httputil.NotFound(w, msg)
}

func badRequest(w http.ResponseWriter, msg string) {
	httputil.BadRequest(w, msg)
}

func internalError(w http.ResponseWriter, err error) {
	httputil.InternalError(w, err)
}
