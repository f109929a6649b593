// Package pipeline orchestrates the analytic stages: run records, a
// bounded worker pool, live events, and AI call auditing.
package pipeline

import (
	"context"

	"github.com/gemsieve/gemsieve/internal/domain"
)

// Descriptions of every registry stage, for the CLI and the admin UI.
var Descriptions = map[domain.Stage]string{
	domain.StageMetadata: "Parse headers: ESP fingerprints, authentication, bulk detection",
	domain.StageContent:  "Extract CTAs, links, offers, and unsubscribe data from bodies",
	domain.StageEntities: "Extract people, money, dates, and procurement signals",
	domain.StageClassify: "AI classification of sender industry, size, and intent",
	domain.StageProfile:  "Build per-domain sender profiles and detect gems",
	domain.StageSegment:  "Assign economic segments and score opportunities",
	domain.StageEngage:   "Generate outreach drafts for new gems",
}

// RunContext carries the per-run parameters a stage factory may care
// about. Audit wrapping keys off RunID and Trigger; GemID is set when
// engage runs for one explicit gem.
type RunContext struct {
	RunID   int64
	Trigger domain.TriggeredBy
	Crew    bool
	Retrain bool
	GemID   int64
}

// Factory builds a stage runner for one run.
type Factory func(rc RunContext) StageRunner

// StageRunner is the contract every stage satisfies.
type StageRunner interface {
	Run(ctx context.Context) (int, error)
}

// RunnerFunc adapts a plain function to StageRunner.
type RunnerFunc func(ctx context.Context) (int, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context) (int, error) { return f(ctx) }

// Registry maps stage names to their factories in canonical order.
type Registry struct {
	factories map[domain.Stage]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[domain.Stage]Factory)}
}

// Register binds a factory to a stage name.
func (r *Registry) Register(stage domain.Stage, f Factory) {
	r.factories[stage] = f
}

// Lookup returns the factory for a stage.
func (r *Registry) Lookup(stage domain.Stage) (Factory, bool) {
	f, ok := r.factories[stage]
	return f, ok
}

// StageInfo describes one registered stage.
type StageInfo struct {
	Name        domain.Stage `json:"name"`
	Description string       `json:"description"`
}

// Stages lists registered stages in execution order.
func (r *Registry) Stages() []StageInfo {
	var out []StageInfo
	for _, s := range domain.StageOrder {
		if _, ok := r.factories[s]; ok {
			out = append(out, StageInfo{Name: s, Description: Descriptions[s]})
		}
	}
	return out
}
