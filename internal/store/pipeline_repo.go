package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gemsieve/gemsieve/internal/domain"
)

// PipelineRepo persists run records, AI audit entries, and engagement
// drafts.
type PipelineRepo struct{ db *sql.DB }

// NewPipelineRepo creates a pipeline repository over the shared handle.
func NewPipelineRepo(db *sql.DB) *PipelineRepo { return &PipelineRepo{db: db} }

// CreateRun writes a pending run record and returns its id.
func (r *PipelineRepo) CreateRun(ctx context.Context, run *domain.PipelineRun) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (stage, status, created_at, config_snapshot, triggered_by)
		VALUES (?, ?, ?, ?, ?)
	`, string(run.Stage), string(domain.RunPending), toTime(run.CreatedAt),
		toJSON(run.ConfigSnapshot), string(run.TriggeredBy))
	if err != nil {
		return 0, fmt.Errorf("insert pipeline_run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("pipeline_run id: %w", err)
	}
	run.ID = id
	run.Status = domain.RunPending
	return id, nil
}

// MarkRunning stamps a run as started.
func (r *PipelineRepo) MarkRunning(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE pipeline_runs SET status = ?, started_at = ? WHERE id = ?",
		string(domain.RunRunning), toTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}
	return nil
}

// MarkCompleted stamps a run as completed with its item count.
func (r *PipelineRepo) MarkCompleted(ctx context.Context, id int64, items int) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE pipeline_runs SET status = ?, completed_at = ?, items_processed = ? WHERE id = ?",
		string(domain.RunCompleted), toTime(time.Now()), items, id)
	if err != nil {
		return fmt.Errorf("mark run completed: %w", err)
	}
	return nil
}

// MarkFailed stamps a run as failed with the error text.
func (r *PipelineRepo) MarkFailed(ctx context.Context, id int64, items int, errMsg string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE pipeline_runs SET status = ?, completed_at = ?, items_processed = ?, error_message = ? WHERE id = ?",
		string(domain.RunFailed), toTime(time.Now()), items, errMsg, id)
	if err != nil {
		return fmt.Errorf("mark run failed: %w", err)
	}
	return nil
}

const runColumns = `id, stage, status, created_at, started_at, completed_at,
	items_processed, error_message, config_snapshot, triggered_by`

func scanRun(row rowScanner) (*domain.PipelineRun, error) {
	var (
		run              domain.PipelineRun
		stage, status    string
		created          string
		started, done    sql.NullString
		snapshot         string
		trigger          string
	)
	err := row.Scan(&run.ID, &stage, &status, &created, &started, &done,
		&run.ItemsProcessed, &run.ErrorMessage, &snapshot, &trigger)
	if err != nil {
		return nil, err
	}
	run.Stage = domain.Stage(stage)
	run.Status = domain.RunStatus(status)
	run.CreatedAt = fromTime(created)
	if started.Valid {
		run.StartedAt = fromTimePtr(&started.String)
	}
	if done.Valid {
		run.CompletedAt = fromTimePtr(&done.String)
	}
	fromJSON(snapshot, &run.ConfigSnapshot)
	run.TriggeredBy = domain.TriggeredBy(trigger)
	return &run, nil
}

// GetRun fetches one run record.
func (r *PipelineRepo) GetRun(ctx context.Context, id int64) (*domain.PipelineRun, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM pipeline_runs WHERE id = ?", id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pipeline_run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (r *PipelineRepo) ListRuns(ctx context.Context, limit int) ([]domain.PipelineRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM pipeline_runs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list pipeline_runs: %w", err)
	}
	defer rows.Close()

	var out []domain.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pipeline_run: %w", err)
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

// RunActivity returns run counts by stage and status for the activity
// stats endpoint.
func (r *PipelineRepo) RunActivity(ctx context.Context) (map[string]map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT stage, status, COUNT(*) FROM pipeline_runs GROUP BY stage, status")
	if err != nil {
		return nil, fmt.Errorf("run activity: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]int)
	for rows.Next() {
		var stage, status string
		var n int
		if err := rows.Scan(&stage, &status, &n); err != nil {
			return nil, fmt.Errorf("scan run activity: %w", err)
		}
		if out[stage] == nil {
			out[stage] = make(map[string]int)
		}
		out[stage][status] = n
	}
	return out, rows.Err()
}

// --- AI audit ---

// InsertAudit stores one model-call audit entry.
func (r *PipelineRepo) InsertAudit(ctx context.Context, a *domain.AIAuditEntry) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO ai_audit_log (run_id, stage, sender_domain, template_id,
			prompt_rendered, system_prompt, model_used, response_raw,
			response_parsed, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.RunID, string(a.Stage), a.SenderDomain, a.TemplateID,
		a.PromptRendered, a.SystemPrompt, a.ModelUsed, a.ResponseRaw,
		a.ResponseParsed, a.DurationMs, toTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert ai_audit: %w", err)
	}
	a.ID, _ = res.LastInsertId()
	return nil
}

const auditColumns = `id, run_id, stage, sender_domain, template_id,
	prompt_rendered, system_prompt, model_used, response_raw,
	response_parsed, duration_ms, created_at`

func scanAudit(row rowScanner) (*domain.AIAuditEntry, error) {
	var (
		a         domain.AIAuditEntry
		stage     string
		createdAt string
	)
	err := row.Scan(&a.ID, &a.RunID, &stage, &a.SenderDomain, &a.TemplateID,
		&a.PromptRendered, &a.SystemPrompt, &a.ModelUsed, &a.ResponseRaw,
		&a.ResponseParsed, &a.DurationMs, &createdAt)
	if err != nil {
		return nil, err
	}
	a.Stage = domain.Stage(stage)
	a.CreatedAt = fromTime(createdAt)
	return &a, nil
}

// GetAudit fetches one audit entry.
func (r *PipelineRepo) GetAudit(ctx context.Context, id int64) (*domain.AIAuditEntry, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+auditColumns+" FROM ai_audit_log WHERE id = ?", id)
	a, err := scanAudit(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ai_audit: %w", err)
	}
	return a, nil
}

// ListAudit pages audit entries newest first, optionally filtered by
// stage or run id.
func (r *PipelineRepo) ListAudit(ctx context.Context, stage string, runID int64, limit, offset int) ([]domain.AIAuditEntry, error) {
	q := "SELECT " + auditColumns + " FROM ai_audit_log WHERE 1=1"
	args := []any{}
	if stage != "" {
		q += " AND stage = ?"
		args = append(args, stage)
	}
	if runID > 0 {
		q += " AND run_id = ?"
		args = append(args, runID)
	}
	if limit <= 0 {
		limit = 50
	}
	q += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list ai_audit: %w", err)
	}
	defer rows.Close()

	var out []domain.AIAuditEntry
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ai_audit: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// --- Engagement drafts ---

// InsertDraft stores one generated engagement draft.
func (r *PipelineRepo) InsertDraft(ctx context.Context, d *domain.EngagementDraft) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO engagement_drafts (gem_id, sender_domain, strategy, channel,
			subject_line, body_text, body_html, context_used, model_used,
			status, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.GemID, d.SenderDomain, string(d.Strategy), d.Channel,
		d.SubjectLine, d.BodyText, d.BodyHTML, toJSON(d.ContextUsed), d.ModelUsed,
		string(d.Status), toTime(d.GeneratedAt))
	if err != nil {
		return fmt.Errorf("insert engagement_draft: %w", err)
	}
	d.ID, _ = res.LastInsertId()
	return nil
}

// DraftsGeneratedToday counts drafts generated on the current UTC date,
// for the daily outreach cap.
func (r *PipelineRepo) DraftsGeneratedToday(ctx context.Context) (int, error) {
	today := time.Now().UTC().Format("2006-01-02")
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM engagement_drafts WHERE substr(generated_at, 1, 10) = ?", today).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count today's drafts: %w", err)
	}
	return n, nil
}

// HasDraftForGem reports whether a gem already has a draft.
func (r *PipelineRepo) HasDraftForGem(ctx context.Context, gemID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM engagement_drafts WHERE gem_id = ?", gemID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check draft for gem: %w", err)
	}
	return n > 0, nil
}

const draftColumns = `id, gem_id, sender_domain, strategy, channel,
	subject_line, body_text, body_html, context_used, model_used,
	status, generated_at, sent_at, response_received, response_sentiment`

func scanDraft(row rowScanner) (*domain.EngagementDraft, error) {
	var (
		d                  domain.EngagementDraft
		strategy, status   string
		ctxUsed            string
		generatedAt        string
		sentAt             sql.NullString
		responseReceived   int
	)
	err := row.Scan(&d.ID, &d.GemID, &d.SenderDomain, &strategy, &d.Channel,
		&d.SubjectLine, &d.BodyText, &d.BodyHTML, &ctxUsed, &d.ModelUsed,
		&status, &generatedAt, &sentAt, &responseReceived, &d.ResponseSentiment)
	if err != nil {
		return nil, err
	}
	d.Strategy = domain.Strategy(strategy)
	d.Status = domain.DraftStatus(status)
	fromJSON(ctxUsed, &d.ContextUsed)
	d.GeneratedAt = fromTime(generatedAt)
	if sentAt.Valid {
		d.SentAt = fromTimePtr(&sentAt.String)
	}
	d.ResponseReceived = responseReceived != 0
	return &d, nil
}

// GetDraft fetches one draft by id.
func (r *PipelineRepo) GetDraft(ctx context.Context, id int64) (*domain.EngagementDraft, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+draftColumns+" FROM engagement_drafts WHERE id = ?", id)
	d, err := scanDraft(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get engagement_draft: %w", err)
	}
	return d, nil
}

// ListDrafts returns recent drafts, newest first.
func (r *PipelineRepo) ListDrafts(ctx context.Context, limit int) ([]domain.EngagementDraft, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+draftColumns+" FROM engagement_drafts ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list engagement_drafts: %w", err)
	}
	defer rows.Close()

	var out []domain.EngagementDraft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan engagement_draft: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
