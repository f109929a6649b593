package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gemsieve/gemsieve/internal/ai"
	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/pkg/logger"
	"github.com/gemsieve/gemsieve/internal/store"
)

// auditedProvider records every completion into ai_audit_log under one
// pipeline run. Wrapped around the real provider for web-triggered runs.
type auditedProvider struct {
	inner ai.Provider
	repo  *store.PipelineRepo
	stage domain.Stage
	runID int64
	log   *logger.Logger
}

// AuditProvider wraps a provider so each Complete call writes an
// AIAuditEntry for the given run.
func AuditProvider(inner ai.Provider, repo *store.PipelineRepo, stage domain.Stage, runID int64) ai.Provider {
	return &auditedProvider{
		inner: inner,
		repo:  repo,
		stage: stage,
		runID: runID,
		log:   logger.WithComponent("ai-audit"),
	}
}

func (a *auditedProvider) Name() string { return a.inner.Name() }

func (a *auditedProvider) Complete(ctx context.Context, req ai.Request) (*ai.Result, error) {
	start := time.Now()
	res, err := a.inner.Complete(ctx, req)
	duration := time.Since(start).Milliseconds()

	entry := &domain.AIAuditEntry{
		RunID:          a.runID,
		Stage:          a.stage,
		SenderDomain:   req.SenderDomain,
		TemplateID:     req.TemplateID,
		PromptRendered: req.Prompt,
		SystemPrompt:   req.System,
		ModelUsed:      a.inner.Name(),
		DurationMs:     duration,
		CreatedAt:      time.Now().UTC(),
	}
	switch {
	case err != nil:
		entry.ResponseRaw = "ERROR: " + err.Error()
	default:
		entry.ResponseRaw = res.Text
		if res.JSON != nil {
			parsed, _ := json.Marshal(res.JSON)
			entry.ResponseParsed = string(parsed)
		}
	}

	// Audit failures are logged, not propagated.
	if insertErr := a.repo.InsertAudit(context.WithoutCancel(ctx), entry); insertErr != nil {
		a.log.Error("audit insert failed", "run_id", a.runID, "error", insertErr.Error())
	}
	return res, err
}
