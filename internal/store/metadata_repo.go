package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gemsieve/gemsieve/internal/domain"
)

// MetadataRepo persists parsed header metadata and the per-domain
// temporal rollup.
type MetadataRepo struct{ db *sql.DB }

// NewMetadataRepo creates a metadata repository over the shared handle.
func NewMetadataRepo(db *sql.DB) *MetadataRepo { return &MetadataRepo{db: db} }

// UnprocessedMessages returns messages that have no parsed_metadata row
// yet. The anti-join makes the stage idempotent: re-runs see only new work.
func (r *MetadataRepo) UnprocessedMessages(ctx context.Context) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages m
		WHERE NOT EXISTS (SELECT 1 FROM parsed_metadata p WHERE p.message_id = m.id)
		ORDER BY m.date ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unprocessed message: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

const metadataColumns = `message_id, sender_domain, sender_subdomain, envelope_sender,
	esp_identified, esp_confidence, dkim_domain, spf_result, dmarc_result,
	sending_ip, mail_server, x_mailer, precedence, feedback_id,
	list_unsubscribe_url, list_unsubscribe_email, is_bulk, parsed_at`

// Upsert writes one parsed-metadata row keyed on the message id.
func (r *MetadataRepo) Upsert(ctx context.Context, m *domain.ParsedMetadata) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO parsed_metadata (`+metadataColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			sender_domain = excluded.sender_domain,
			sender_subdomain = excluded.sender_subdomain,
			envelope_sender = excluded.envelope_sender,
			esp_identified = excluded.esp_identified,
			esp_confidence = excluded.esp_confidence,
			dkim_domain = excluded.dkim_domain,
			spf_result = excluded.spf_result,
			dmarc_result = excluded.dmarc_result,
			sending_ip = excluded.sending_ip,
			mail_server = excluded.mail_server,
			x_mailer = excluded.x_mailer,
			precedence = excluded.precedence,
			feedback_id = excluded.feedback_id,
			list_unsubscribe_url = excluded.list_unsubscribe_url,
			list_unsubscribe_email = excluded.list_unsubscribe_email,
			is_bulk = excluded.is_bulk,
			parsed_at = excluded.parsed_at
	`,
		m.MessageID, m.SenderDomain, m.SenderSubdomain, m.EnvelopeSender,
		m.ESPIdentified, string(m.ESPConfidence), m.DKIMDomain, m.SPFResult, m.DMARCResult,
		m.SendingIP, m.MailServer, m.XMailer, m.Precedence, m.FeedbackID,
		m.ListUnsubscribeURL, m.ListUnsubscribeEmail, boolToInt(m.IsBulk), toTime(m.ParsedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert parsed_metadata: %w", err)
	}
	return nil
}

func scanMetadata(row rowScanner) (*domain.ParsedMetadata, error) {
	var (
		m          domain.ParsedMetadata
		conf       string
		isBulk     int
		parsedAt   string
	)
	err := row.Scan(
		&m.MessageID, &m.SenderDomain, &m.SenderSubdomain, &m.EnvelopeSender,
		&m.ESPIdentified, &conf, &m.DKIMDomain, &m.SPFResult, &m.DMARCResult,
		&m.SendingIP, &m.MailServer, &m.XMailer, &m.Precedence, &m.FeedbackID,
		&m.ListUnsubscribeURL, &m.ListUnsubscribeEmail, &isBulk, &parsedAt,
	)
	if err != nil {
		return nil, err
	}
	m.ESPConfidence = domain.ESPConfidence(conf)
	m.IsBulk = isBulk != 0
	m.ParsedAt = fromTime(parsedAt)
	return &m, nil
}

// Get fetches the parsed metadata for one message.
func (r *MetadataRepo) Get(ctx context.Context, messageID string) (*domain.ParsedMetadata, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+metadataColumns+" FROM parsed_metadata WHERE message_id = ?", messageID)
	m, err := scanMetadata(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get parsed_metadata: %w", err)
	}
	return m, nil
}

// ForDomain returns every parsed-metadata row for one sender domain.
func (r *MetadataRepo) ForDomain(ctx context.Context, senderDomain string) ([]domain.ParsedMetadata, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+metadataColumns+" FROM parsed_metadata WHERE sender_domain = ?", senderDomain)
	if err != nil {
		return nil, fmt.Errorf("list metadata for domain: %w", err)
	}
	defer rows.Close()

	var out []domain.ParsedMetadata
	for rows.Next() {
		m, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// Domains lists every distinct sender domain seen in parsed metadata.
func (r *MetadataRepo) Domains(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT sender_domain FROM parsed_metadata WHERE sender_domain != ''")
	if err != nil {
		return nil, fmt.Errorf("list sender domains: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan sender domain: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// MessageDatesForDomain returns the send timestamps of a domain's
// messages in chronological order, for the temporal rollup.
func (r *MetadataRepo) MessageDatesForDomain(ctx context.Context, senderDomain string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.date FROM messages m
		JOIN parsed_metadata p ON p.message_id = m.id
		WHERE p.sender_domain = ?
		ORDER BY m.date ASC
	`, senderDomain)
	if err != nil {
		return nil, fmt.Errorf("list message dates: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan message date: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpsertTemporal writes the per-domain sending-rhythm rollup.
func (r *MetadataRepo) UpsertTemporal(ctx context.Context, t *domain.SenderTemporal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sender_temporal (sender_domain, total_messages, first_seen, last_seen,
			avg_frequency_days, most_common_hour, most_common_weekday, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sender_domain) DO UPDATE SET
			total_messages = excluded.total_messages,
			first_seen = excluded.first_seen,
			last_seen = excluded.last_seen,
			avg_frequency_days = excluded.avg_frequency_days,
			most_common_hour = excluded.most_common_hour,
			most_common_weekday = excluded.most_common_weekday,
			updated_at = excluded.updated_at
	`,
		t.SenderDomain, t.TotalMessages, toTime(t.FirstSeen), toTime(t.LastSeen),
		t.AvgFrequencyDays, t.MostCommonHour, t.MostCommonWeekday, toTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert sender_temporal: %w", err)
	}
	return nil
}

// GetTemporal fetches the rollup for one domain.
func (r *MetadataRepo) GetTemporal(ctx context.Context, senderDomain string) (*domain.SenderTemporal, error) {
	var (
		t           domain.SenderTemporal
		first, last sql.NullString
		updatedAt   string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT sender_domain, total_messages, first_seen, last_seen,
			avg_frequency_days, most_common_hour, most_common_weekday, updated_at
		FROM sender_temporal WHERE sender_domain = ?
	`, senderDomain).Scan(
		&t.SenderDomain, &t.TotalMessages, &first, &last,
		&t.AvgFrequencyDays, &t.MostCommonHour, &t.MostCommonWeekday, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sender_temporal: %w", err)
	}
	if first.Valid {
		t.FirstSeen = fromTime(first.String)
	}
	if last.Valid {
		t.LastSeen = fromTime(last.String)
	}
	t.UpdatedAt = fromTime(updatedAt)
	return &t, nil
}

// ListMetadata pages parsed metadata for the browse API.
func (r *MetadataRepo) ListMetadata(ctx context.Context, opts ListOptions) ([]domain.ParsedMetadata, int, error) {
	where := ""
	args := []any{}
	if opts.Search != "" {
		where = " WHERE sender_domain LIKE ? OR esp_identified LIKE ?"
		pat := "%" + opts.Search + "%"
		args = append(args, pat, pat)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM parsed_metadata"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count parsed_metadata: %w", err)
	}

	q := "SELECT " + metadataColumns + " FROM parsed_metadata" + where +
		" ORDER BY " + opts.order("parsed_at DESC") + " LIMIT ? OFFSET ?"
	args = append(args, opts.limit(), opts.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list parsed_metadata: %w", err)
	}
	defer rows.Close()

	var out []domain.ParsedMetadata
	for rows.Next() {
		m, err := scanMetadata(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan metadata: %w", err)
		}
		out = append(out, *m)
	}
	return out, total, rows.Err()
}
