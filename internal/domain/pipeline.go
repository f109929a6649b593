package domain

import "time"

// Stage names the analytic stages in execution order. Ingest is not a
// registry stage; it runs against the provider, not the store.
type Stage string

const (
	StageMetadata Stage = "metadata"
	StageContent  Stage = "content"
	StageEntities Stage = "entities"
	StageClassify Stage = "classify"
	StageProfile  Stage = "profile"
	StageSegment  Stage = "segment"
	StageEngage   Stage = "engage"
)

// StageOrder is the canonical execution order. "Run all" covers every
// stage except engage, which only runs on demand.
var StageOrder = []Stage{
	StageMetadata, StageContent, StageEntities,
	StageClassify, StageProfile, StageSegment, StageEngage,
}

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// TriggeredBy records what started a run.
type TriggeredBy string

const (
	TriggerWeb TriggeredBy = "web"
	TriggerCLI TriggeredBy = "cli"
)

// PipelineRun is one execution record of one stage.
type PipelineRun struct {
	ID             int64          `json:"id" db:"id"`
	Stage          Stage          `json:"stage" db:"stage"`
	Status         RunStatus      `json:"status" db:"status"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	StartedAt      *time.Time     `json:"started_at" db:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at" db:"completed_at"`
	ItemsProcessed int            `json:"items_processed" db:"items_processed"`
	ErrorMessage   string         `json:"error_message" db:"error_message"`
	ConfigSnapshot map[string]any `json:"config_snapshot" db:"config_snapshot"`
	TriggeredBy    TriggeredBy    `json:"triggered_by" db:"triggered_by"`
}

// AIAuditEntry captures the exact prompt and response of one model call
// made under a pipeline run.
type AIAuditEntry struct {
	ID             int64     `json:"id" db:"id"`
	RunID          int64     `json:"run_id" db:"run_id"`
	Stage          Stage     `json:"stage" db:"stage"`
	SenderDomain   string    `json:"sender_domain" db:"sender_domain"`
	TemplateID     string    `json:"template_id" db:"template_id"`
	PromptRendered string    `json:"prompt_rendered" db:"prompt_rendered"`
	SystemPrompt   string    `json:"system_prompt" db:"system_prompt"`
	ModelUsed      string    `json:"model_used" db:"model_used"`
	ResponseRaw    string    `json:"response_raw" db:"response_raw"`
	ResponseParsed string    `json:"response_parsed" db:"response_parsed"`
	DurationMs     int64     `json:"duration_ms" db:"duration_ms"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
