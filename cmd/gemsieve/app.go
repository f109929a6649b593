package main

import (
	"context"
	"database/sql"

	"github.com/gemsieve/gemsieve/internal/ai"
	"github.com/gemsieve/gemsieve/internal/classify"
	"github.com/gemsieve/gemsieve/internal/config"
	"github.com/gemsieve/gemsieve/internal/content"
	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/engage"
	"github.com/gemsieve/gemsieve/internal/entities"
	"github.com/gemsieve/gemsieve/internal/metadata"
	"github.com/gemsieve/gemsieve/internal/pipeline"
	"github.com/gemsieve/gemsieve/internal/profile"
	"github.com/gemsieve/gemsieve/internal/relationship"
	"github.com/gemsieve/gemsieve/internal/segment"
	"github.com/gemsieve/gemsieve/internal/store"
)

// app bundles the config, the open database, and the repositories every
// verb needs. Verbs open it first thing and defer Close.
type app struct {
	cfg   *config.Config
	db    *sql.DB
	repos *store.Repos
}

func openApp() (*app, error) {
	cfg, err := config.LoadFromEnv(configFile)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &app{cfg: cfg, db: db, repos: store.NewRepos(db)}, nil
}

func (a *app) Close() error { return a.db.Close() }

// resolveModel picks the model spec: an explicit --model wins, otherwise
// the config (which already folds in .env overrides).
func (a *app) resolveModel(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.AI.ModelSpec()
}

func (a *app) aiProvider(modelFlag string) (ai.Provider, string, error) {
	spec := a.resolveModel(modelFlag)
	p, err := ai.New(spec, a.cfg.AI)
	if err != nil {
		return nil, "", err
	}
	return p, spec, nil
}

func (a *app) detector() (*relationship.Detector, error) {
	known, err := relationship.LoadKnownEntities(a.cfg.KnownEntitiesFile)
	if err != nil {
		return nil, err
	}
	return relationship.NewDetector(a.repos.Profiles, a.repos.Content, a.repos.Classify, known), nil
}

// newPipeline wires every stage into a manager. The provider may be nil
// when only non-AI stages will run; factories deref it lazily.
func (a *app) newPipeline(provider ai.Provider, modelSpec string) (*pipeline.Manager, *pipeline.Hub, error) {
	known, err := relationship.LoadKnownEntities(a.cfg.KnownEntitiesFile)
	if err != nil {
		return nil, nil, err
	}
	fp, err := metadata.NewFingerprinter(a.cfg.ESPFingerprintsFile)
	if err != nil {
		return nil, nil, err
	}
	var tagger entities.Tagger
	if a.cfg.EntityExtraction.TaggerURL != "" {
		tagger = entities.NewHTTPTagger(a.cfg.EntityExtraction.TaggerURL,
			a.cfg.EntityExtraction.SpacyModel, a.cfg.AI.Timeout())
	}

	reg := pipeline.NewRegistry()
	reg.Register(domain.StageMetadata, func(pipeline.RunContext) pipeline.StageRunner {
		return metadata.NewStage(a.repos.Metadata, fp)
	})
	reg.Register(domain.StageContent, func(pipeline.RunContext) pipeline.StageRunner {
		return content.NewStage(a.repos.Content)
	})
	reg.Register(domain.StageEntities, func(pipeline.RunContext) pipeline.StageRunner {
		return entities.NewStage(a.repos.Entities, a.repos.Content, tagger, a.cfg.EntityExtraction)
	})
	reg.Register(domain.StageClassify, func(rc pipeline.RunContext) pipeline.StageRunner {
		st := classify.NewStage(a.repos.Classify, a.repos.Content, a.repos.Metadata,
			a.repos.Entities, provider, a.cfg.AI)
		st.Crew = rc.Crew
		st.Retrain = rc.Retrain
		if rc.Trigger == domain.TriggerWeb {
			st.SetProvider(pipeline.AuditProvider(provider, a.repos.Pipeline, domain.StageClassify, rc.RunID))
		}
		return st
	})
	reg.Register(domain.StageProfile, func(pipeline.RunContext) pipeline.StageRunner {
		det := relationship.NewDetector(a.repos.Profiles, a.repos.Content, a.repos.Classify, known)
		return profile.NewStage(a.repos.Profiles, a.repos.Messages, a.repos.Metadata,
			a.repos.Content, a.repos.Entities, a.repos.Classify, det,
			a.cfg.Scoring, a.cfg.Engagement)
	})
	reg.Register(domain.StageSegment, func(pipeline.RunContext) pipeline.StageRunner {
		return segment.NewStage(a.repos.Profiles, a.repos.Entities, a.cfg.Scoring, a.cfg.CustomSegmentsFile)
	})
	reg.Register(domain.StageEngage, func(rc pipeline.RunContext) pipeline.StageRunner {
		p := provider
		if rc.Trigger == domain.TriggerWeb {
			p = pipeline.AuditProvider(provider, a.repos.Pipeline, domain.StageEngage, rc.RunID)
		}
		st := engage.NewStage(a.repos.Profiles, a.repos.Pipeline, a.repos.Messages,
			p, a.cfg.Engagement, rc.Crew)
		return pipeline.RunnerFunc(func(ctx context.Context) (int, error) {
			return st.Generate(ctx, engage.Options{GemID: rc.GemID})
		})
	})

	hub := pipeline.NewHub()
	snapshot := map[string]any{
		"ai_model":   modelSpec,
		"batch_size": a.cfg.AI.BatchSize,
	}
	return pipeline.NewManager(reg, a.repos.Pipeline, hub, snapshot), hub, nil
}
