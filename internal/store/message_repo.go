package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gemsieve/gemsieve/internal/domain"
)

// MessageRepo persists messages, attachments, threads, and sync state.
type MessageRepo struct{ db *sql.DB }

// NewMessageRepo creates a message repository over the shared handle.
func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

const messageColumns = `id, thread_id, from_name, from_email, reply_to, to_emails, cc_emails,
	subject, date, body_text, body_html, snippet, labels, headers_raw,
	is_sent_by_user, size_estimate, has_attachments`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	var (
		m                            domain.Message
		date, to, cc, labels, hdrs   string
		isSent, hasAtt               int
	)
	err := row.Scan(
		&m.ID, &m.ThreadID, &m.FromName, &m.FromEmail, &m.ReplyTo, &to, &cc,
		&m.Subject, &date, &m.BodyText, &m.BodyHTML, &m.Snippet, &labels, &hdrs,
		&isSent, &m.SizeEstimate, &hasAtt,
	)
	if err != nil {
		return nil, err
	}
	m.Date = fromTime(date)
	fromJSON(to, &m.ToEmails)
	fromJSON(cc, &m.CcEmails)
	fromJSON(labels, &m.Labels)
	fromJSON(hdrs, &m.HeadersRaw)
	m.IsSentByUser = isSent != 0
	m.HasAttachments = hasAtt != 0
	return &m, nil
}

// ExistingIDs returns the set of message ids already ingested.
func (r *MessageRepo) ExistingIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM messages")
	if err != nil {
		return nil, fmt.Errorf("list message ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan message id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// InsertMessage stores one message, creating a thread stub when the thread
// is new. Already-present messages are left untouched, so re-syncs are
// idempotent.
func (r *MessageRepo) InsertMessage(ctx context.Context, m *domain.Message) error {
	if _, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO threads (id, subject) VALUES (?, ?)",
		m.ThreadID, m.Subject,
	); err != nil {
		return fmt.Errorf("insert thread stub: %w", err)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID, m.ThreadID, m.FromName, m.FromEmail, m.ReplyTo,
		toJSON(m.ToEmails), toJSON(m.CcEmails),
		m.Subject, toTime(m.Date), m.BodyText, m.BodyHTML, m.Snippet,
		toJSON(m.Labels), toJSON(m.HeadersRaw),
		boolToInt(m.IsSentByUser), m.SizeEstimate, boolToInt(m.HasAttachments),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// InsertAttachments stores attachment envelopes for a message.
func (r *MessageRepo) InsertAttachments(ctx context.Context, messageID string, atts []domain.Attachment) error {
	for _, a := range atts {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO attachments (message_id, filename, mime_type, size_bytes)
			VALUES (?, ?, ?, ?)
		`, messageID, a.Filename, a.MimeType, a.SizeBytes)
		if err != nil {
			return fmt.Errorf("insert attachment: %w", err)
		}
	}
	return nil
}

// GetMessage fetches one message by id.
func (r *MessageRepo) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id = ?", id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// MessagesForThread returns a thread's messages in chronological order.
func (r *MessageRepo) MessagesForThread(ctx context.Context, threadID string) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE thread_id = ? ORDER BY date ASC", threadID)
	if err != nil {
		return nil, fmt.Errorf("list thread messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread message: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// MessagesForDomain returns a sender domain's messages in chronological
// order.
func (r *MessageRepo) MessagesForDomain(ctx context.Context, senderDomain string) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prefixColumns("m", messageColumns)+` FROM messages m
		JOIN parsed_metadata p ON p.message_id = m.id
		WHERE p.sender_domain = ?
		ORDER BY m.date ASC
	`, senderDomain)
	if err != nil {
		return nil, fmt.Errorf("list domain messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain message: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// AllThreadIDs lists every known thread id.
func (r *MessageRepo) AllThreadIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM threads")
	if err != nil {
		return nil, fmt.Errorf("list thread ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan thread id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpsertThread writes the recomputed thread aggregate.
func (r *MessageRepo) UpsertThread(ctx context.Context, t *domain.Thread) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO threads (id, subject, clean_subject, participants, message_count,
			first_message_date, last_message_date, last_sender,
			user_participated, user_last_replied, awaiting_response_from, days_dormant)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			subject = excluded.subject,
			clean_subject = excluded.clean_subject,
			participants = excluded.participants,
			message_count = excluded.message_count,
			first_message_date = excluded.first_message_date,
			last_message_date = excluded.last_message_date,
			last_sender = excluded.last_sender,
			user_participated = excluded.user_participated,
			user_last_replied = excluded.user_last_replied,
			awaiting_response_from = excluded.awaiting_response_from,
			days_dormant = excluded.days_dormant
	`,
		t.ID, t.Subject, t.CleanSubject, toJSON(t.Participants), t.MessageCount,
		toTime(t.FirstMessageDate), toTime(t.LastMessageDate), t.LastSender,
		boolToInt(t.UserParticipated), toTimePtr(t.UserLastReplied),
		string(t.AwaitingResponse), t.DaysDormant,
	)
	if err != nil {
		return fmt.Errorf("upsert thread: %w", err)
	}
	return nil
}

func scanThread(row rowScanner) (*domain.Thread, error) {
	var (
		t            domain.Thread
		participants string
		first, last  sql.NullString
		userPart     int
		userLast     sql.NullString
		awaiting     string
	)
	err := row.Scan(
		&t.ID, &t.Subject, &t.CleanSubject, &participants, &t.MessageCount,
		&first, &last, &t.LastSender, &userPart, &userLast, &awaiting, &t.DaysDormant,
	)
	if err != nil {
		return nil, err
	}
	fromJSON(participants, &t.Participants)
	if first.Valid {
		t.FirstMessageDate = fromTime(first.String)
	}
	if last.Valid {
		t.LastMessageDate = fromTime(last.String)
	}
	t.UserParticipated = userPart != 0
	if userLast.Valid {
		t.UserLastReplied = fromTimePtr(&userLast.String)
	}
	t.AwaitingResponse = domain.AwaitingState(awaiting)
	return &t, nil
}

const threadColumns = `id, subject, clean_subject, participants, message_count,
	first_message_date, last_message_date, last_sender,
	user_participated, user_last_replied, awaiting_response_from, days_dormant`

// GetThread fetches one thread by id.
func (r *MessageRepo) GetThread(ctx context.Context, id string) (*domain.Thread, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+threadColumns+" FROM threads WHERE id = ?", id)
	t, err := scanThread(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return t, nil
}

// GetSyncState returns the singleton sync row, or ErrNotFound before the
// first full sync.
func (r *MessageRepo) GetSyncState(ctx context.Context) (*domain.SyncState, error) {
	var (
		s          domain.SyncState
		full, incr sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT last_history_id, last_full_sync, last_incremental_sync, total_synced
		FROM sync_state WHERE id = 1
	`).Scan(&s.LastHistoryID, &full, &incr, &s.TotalSynced)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sync state: %w", err)
	}
	if full.Valid {
		s.LastFullSync = fromTimePtr(&full.String)
	}
	if incr.Valid {
		s.LastIncrementalSync = fromTimePtr(&incr.String)
	}
	return &s, nil
}

// UpsertSyncState writes the singleton sync row.
func (r *MessageRepo) UpsertSyncState(ctx context.Context, s *domain.SyncState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_state (id, last_history_id, last_full_sync, last_incremental_sync, total_synced)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_history_id = excluded.last_history_id,
			last_full_sync = COALESCE(excluded.last_full_sync, sync_state.last_full_sync),
			last_incremental_sync = COALESCE(excluded.last_incremental_sync, sync_state.last_incremental_sync),
			total_synced = excluded.total_synced
	`, s.LastHistoryID, toTimePtr(s.LastFullSync), toTimePtr(s.LastIncrementalSync), s.TotalSynced)
	if err != nil {
		return fmt.Errorf("upsert sync state: %w", err)
	}
	return nil
}

// ListOptions filters and pages browse queries. SortBy must come from the
// handler's whitelist; it is interpolated into the query.
type ListOptions struct {
	Search   string
	SortBy   string
	SortDesc bool
	Limit    int
	Offset   int
}

func (o ListOptions) limit() int {
	if o.Limit <= 0 {
		return 25
	}
	return o.Limit
}

func (o ListOptions) order(def string) string {
	col := o.SortBy
	if col == "" {
		col = def
	}
	dir := "ASC"
	if o.SortDesc {
		dir = "DESC"
	}
	return col + " " + dir
}

// ListMessages pages messages for the browse API, searching subject and
// sender address.
func (r *MessageRepo) ListMessages(ctx context.Context, opts ListOptions) ([]domain.Message, int, error) {
	where := ""
	args := []any{}
	if opts.Search != "" {
		where = " WHERE subject LIKE ? OR from_email LIKE ?"
		pat := "%" + opts.Search + "%"
		args = append(args, pat, pat)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	q := "SELECT " + messageColumns + " FROM messages" + where +
		" ORDER BY " + opts.order("date DESC") + " LIMIT ? OFFSET ?"
	args = append(args, opts.limit(), opts.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, *m)
	}
	return out, total, rows.Err()
}

// ListThreads pages threads for the browse API.
func (r *MessageRepo) ListThreads(ctx context.Context, opts ListOptions) ([]domain.Thread, int, error) {
	where := ""
	args := []any{}
	if opts.Search != "" {
		where = " WHERE clean_subject LIKE ?"
		args = append(args, "%"+opts.Search+"%")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM threads"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count threads: %w", err)
	}

	q := "SELECT " + threadColumns + " FROM threads" + where +
		" ORDER BY " + opts.order("last_message_date DESC") + " LIMIT ? OFFSET ?"
	args = append(args, opts.limit(), opts.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var out []domain.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan thread: %w", err)
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
