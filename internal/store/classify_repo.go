package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gemsieve/gemsieve/internal/domain"
)

// ClassifyRepo persists AI classifications and user overrides.
type ClassifyRepo struct{ db *sql.DB }

// NewClassifyRepo creates a classification repository over the shared handle.
func NewClassifyRepo(db *sql.DB) *ClassifyRepo { return &ClassifyRepo{db: db} }

// UnclassifiedByDomain groups messages lacking an ai_classification row by
// sender domain. Classification is per-domain work: one representative
// message is classified, the result copied to the rest.
func (r *ClassifyRepo) UnclassifiedByDomain(ctx context.Context) (map[string][]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.sender_domain, `+prefixColumns("m", messageColumns)+`
		FROM messages m
		JOIN parsed_metadata p ON p.message_id = m.id
		WHERE p.sender_domain != ''
		  AND NOT EXISTS (SELECT 1 FROM ai_classification c WHERE c.message_id = m.id)
		ORDER BY m.date DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list unclassified messages: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Message)
	for rows.Next() {
		var (
			senderDomain               string
			m                          domain.Message
			date, to, cc, labels, hdrs string
			isSent, hasAtt             int
		)
		err := rows.Scan(
			&senderDomain,
			&m.ID, &m.ThreadID, &m.FromName, &m.FromEmail, &m.ReplyTo, &to, &cc,
			&m.Subject, &date, &m.BodyText, &m.BodyHTML, &m.Snippet, &labels, &hdrs,
			&isSent, &m.SizeEstimate, &hasAtt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan unclassified message: %w", err)
		}
		m.Date = fromTime(date)
		fromJSON(to, &m.ToEmails)
		fromJSON(cc, &m.CcEmails)
		fromJSON(labels, &m.Labels)
		fromJSON(hdrs, &m.HeadersRaw)
		m.IsSentByUser = isSent != 0
		m.HasAttachments = hasAtt != 0
		out[senderDomain] = append(out[senderDomain], m)
	}
	return out, rows.Err()
}

const classificationColumns = `message_id, industry, company_size, sophistication,
	sender_intent, product_type, product_description, pain_points,
	target_audience, partner_program_detected, renewal_signal_detected,
	confidence, model_used, has_override, classified_at`

// Upsert writes one classification row keyed on the message id.
func (r *ClassifyRepo) Upsert(ctx context.Context, c *domain.Classification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ai_classification (`+classificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			industry = excluded.industry,
			company_size = excluded.company_size,
			sophistication = excluded.sophistication,
			sender_intent = excluded.sender_intent,
			product_type = excluded.product_type,
			product_description = excluded.product_description,
			pain_points = excluded.pain_points,
			target_audience = excluded.target_audience,
			partner_program_detected = excluded.partner_program_detected,
			renewal_signal_detected = excluded.renewal_signal_detected,
			confidence = excluded.confidence,
			model_used = excluded.model_used,
			has_override = excluded.has_override,
			classified_at = excluded.classified_at
	`,
		c.MessageID, c.Industry, string(c.CompanySize), c.Sophistication,
		string(c.SenderIntent), c.ProductType, c.ProductDescription, toJSON(c.PainPoints),
		c.TargetAudience, boolToInt(c.PartnerProgramDetected), boolToInt(c.RenewalSignalDetected),
		c.Confidence, c.ModelUsed, boolToInt(c.HasOverride), toTime(c.ClassifiedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert ai_classification: %w", err)
	}
	return nil
}

func scanClassification(row rowScanner) (*domain.Classification, error) {
	var (
		c                  domain.Classification
		size, intent       string
		pains              string
		partner, renewal   int
		hasOverride        int
		classifiedAt       string
	)
	err := row.Scan(
		&c.MessageID, &c.Industry, &size, &c.Sophistication,
		&intent, &c.ProductType, &c.ProductDescription, &pains,
		&c.TargetAudience, &partner, &renewal,
		&c.Confidence, &c.ModelUsed, &hasOverride, &classifiedAt,
	)
	if err != nil {
		return nil, err
	}
	c.CompanySize = domain.CompanySize(size)
	c.SenderIntent = domain.SenderIntent(intent)
	fromJSON(pains, &c.PainPoints)
	c.PartnerProgramDetected = partner != 0
	c.RenewalSignalDetected = renewal != 0
	c.HasOverride = hasOverride != 0
	c.ClassifiedAt = fromTime(classifiedAt)
	return &c, nil
}

// Get fetches the classification for one message.
func (r *ClassifyRepo) Get(ctx context.Context, messageID string) (*domain.Classification, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+classificationColumns+" FROM ai_classification WHERE message_id = ?", messageID)
	c, err := scanClassification(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ai_classification: %w", err)
	}
	return c, nil
}

// ForDomain returns every classification for one sender domain, newest
// message first.
func (r *ClassifyRepo) ForDomain(ctx context.Context, senderDomain string) ([]domain.Classification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prefixColumns("c", classificationColumns)+` FROM ai_classification c
		JOIN parsed_metadata p ON p.message_id = c.message_id
		JOIN messages m ON m.id = c.message_id
		WHERE p.sender_domain = ?
		ORDER BY m.date DESC
	`, senderDomain)
	if err != nil {
		return nil, fmt.Errorf("list classifications for domain: %w", err)
	}
	defer rows.Close()

	var out []domain.Classification
	for rows.Next() {
		c, err := scanClassification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan classification: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CountClassifications returns the total classification rows.
func (r *ClassifyRepo) CountClassifications(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ai_classification").Scan(&n); err != nil {
		return 0, fmt.Errorf("count classifications: %w", err)
	}
	return n, nil
}

// ListClassifications pages classifications for the browse API.
func (r *ClassifyRepo) ListClassifications(ctx context.Context, opts ListOptions) ([]domain.Classification, int, error) {
	where := ""
	args := []any{}
	if opts.Search != "" {
		where = " WHERE industry LIKE ? OR sender_intent LIKE ?"
		pat := "%" + opts.Search + "%"
		args = append(args, pat, pat)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ai_classification"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ai_classification: %w", err)
	}

	q := "SELECT " + classificationColumns + " FROM ai_classification" + where +
		" ORDER BY " + opts.order("classified_at DESC") + " LIMIT ? OFFSET ?"
	args = append(args, opts.limit(), opts.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ai_classification: %w", err)
	}
	defer rows.Close()

	var out []domain.Classification
	for rows.Next() {
		c, err := scanClassification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan classification: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

// --- Overrides ---

const overrideColumns = `id, message_id, sender_domain, field_name,
	original_value, corrected_value, scope, created_at`

// InsertOverride records one user correction.
func (r *ClassifyRepo) InsertOverride(ctx context.Context, o *domain.Override) error {
	var msgID any
	if o.MessageID != "" {
		msgID = o.MessageID
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO classification_overrides
			(message_id, sender_domain, field_name, original_value, corrected_value, scope, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msgID, o.SenderDomain, o.FieldName, o.OriginalValue, o.CorrectedValue,
		string(o.Scope), toTime(o.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert override: %w", err)
	}
	o.ID, _ = res.LastInsertId()
	return nil
}

func scanOverride(row rowScanner) (*domain.Override, error) {
	var (
		o         domain.Override
		msgID     sql.NullString
		scope     string
		createdAt string
	)
	err := row.Scan(&o.ID, &msgID, &o.SenderDomain, &o.FieldName,
		&o.OriginalValue, &o.CorrectedValue, &scope, &createdAt)
	if err != nil {
		return nil, err
	}
	o.MessageID = msgID.String
	o.Scope = domain.OverrideScope(scope)
	o.CreatedAt = fromTime(createdAt)
	return &o, nil
}

// OverridesForDomain returns a domain's sender-scope overrides, oldest
// first so later corrections win during layering.
func (r *ClassifyRepo) OverridesForDomain(ctx context.Context, senderDomain string) ([]domain.Override, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+overrideColumns+" FROM classification_overrides WHERE sender_domain = ? AND scope = 'sender' ORDER BY created_at ASC",
		senderDomain)
	if err != nil {
		return nil, fmt.Errorf("list sender overrides: %w", err)
	}
	defer rows.Close()
	return collectOverrides(rows)
}

// OverridesForMessage returns a message's message-scope overrides, oldest
// first.
func (r *ClassifyRepo) OverridesForMessage(ctx context.Context, messageID string) ([]domain.Override, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+overrideColumns+" FROM classification_overrides WHERE message_id = ? AND scope = 'message' ORDER BY created_at ASC",
		messageID)
	if err != nil {
		return nil, fmt.Errorf("list message overrides: %w", err)
	}
	defer rows.Close()
	return collectOverrides(rows)
}

// RecentOverrides returns the n most recent overrides, for retrain mode.
func (r *ClassifyRepo) RecentOverrides(ctx context.Context, n int) ([]domain.Override, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+overrideColumns+" FROM classification_overrides ORDER BY created_at DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("list recent overrides: %w", err)
	}
	defer rows.Close()
	return collectOverrides(rows)
}

// ListOverrides returns every override, newest first.
func (r *ClassifyRepo) ListOverrides(ctx context.Context) ([]domain.Override, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+overrideColumns+" FROM classification_overrides ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()
	return collectOverrides(rows)
}

func collectOverrides(rows *sql.Rows) ([]domain.Override, error) {
	var out []domain.Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// DeleteOverride removes one override by id.
func (r *ClassifyRepo) DeleteOverride(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM classification_overrides WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// OverrideCountsByField returns override counts grouped by field name.
func (r *ClassifyRepo) OverrideCountsByField(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT field_name, COUNT(*) FROM classification_overrides GROUP BY field_name")
	if err != nil {
		return nil, fmt.Errorf("count overrides by field: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var field string
		var n int
		if err := rows.Scan(&field, &n); err != nil {
			return nil, fmt.Errorf("scan override count: %w", err)
		}
		out[field] = n
	}
	return out, rows.Err()
}
