package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gemsieve/gemsieve/internal/domain"
)

// EntityRepo persists extracted entities.
type EntityRepo struct{ db *sql.DB }

// NewEntityRepo creates an entity repository over the shared handle.
func NewEntityRepo(db *sql.DB) *EntityRepo { return &EntityRepo{db: db} }

// UnprocessedMessages returns messages with a parsed_content row but no
// extracted entities yet. Content is the upstream dependency: entities
// read body_clean, not the raw body.
func (r *EntityRepo) UnprocessedMessages(ctx context.Context) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prefixColumns("m", messageColumns)+` FROM messages m
		JOIN parsed_content c ON c.message_id = m.id
		WHERE NOT EXISTS (SELECT 1 FROM extracted_entities e WHERE e.message_id = m.id)
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

// ReplaceForMessage deletes and reinserts a message's entities in one
// transaction, so reprocessing never duplicates rows.
func (r *EntityRepo) ReplaceForMessage(ctx context.Context, messageID string, ents []domain.ExtractedEntity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin entity tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM extracted_entities WHERE message_id = ?", messageID); err != nil {
		return fmt.Errorf("clear entities: %w", err)
	}
	for _, e := range ents {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO extracted_entities
				(message_id, entity_type, value, normalized, context, confidence, source, extracted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, messageID, string(e.EntityType), e.Value, e.Normalized, e.Context,
			e.Confidence, string(e.Source), toTime(e.ExtractedAt))
		if err != nil {
			return fmt.Errorf("insert entity: %w", err)
		}
	}
	return tx.Commit()
}

const entityColumns = `id, message_id, entity_type, value, normalized, context,
	confidence, source, extracted_at`

func scanEntity(row rowScanner) (*domain.ExtractedEntity, error) {
	var (
		e           domain.ExtractedEntity
		etype, src  string
		extractedAt string
	)
	err := row.Scan(&e.ID, &e.MessageID, &etype, &e.Value, &e.Normalized,
		&e.Context, &e.Confidence, &src, &extractedAt)
	if err != nil {
		return nil, err
	}
	e.EntityType = domain.EntityType(etype)
	e.Source = domain.EntitySource(src)
	e.ExtractedAt = fromTime(extractedAt)
	return &e, nil
}

// ForMessage returns a message's entities.
func (r *EntityRepo) ForMessage(ctx context.Context, messageID string) ([]domain.ExtractedEntity, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+entityColumns+" FROM extracted_entities WHERE message_id = ? ORDER BY confidence DESC",
		messageID)
	if err != nil {
		return nil, fmt.Errorf("list entities for message: %w", err)
	}
	defer rows.Close()
	return collectEntities(rows)
}

// ForDomain returns every entity extracted from a sender domain's
// messages, highest confidence first.
func (r *EntityRepo) ForDomain(ctx context.Context, senderDomain string) ([]domain.ExtractedEntity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prefixColumns("e", entityColumns)+` FROM extracted_entities e
		JOIN parsed_metadata p ON p.message_id = e.message_id
		WHERE p.sender_domain = ?
		ORDER BY e.confidence DESC
	`, senderDomain)
	if err != nil {
		return nil, fmt.Errorf("list entities for domain: %w", err)
	}
	defer rows.Close()
	return collectEntities(rows)
}

func collectEntities(rows *sql.Rows) ([]domain.ExtractedEntity, error) {
	var out []domain.ExtractedEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// ListEntities pages entities for the browse API, optionally filtered by
// type through Search (exact match on entity_type, else LIKE on value).
func (r *EntityRepo) ListEntities(ctx context.Context, opts ListOptions) ([]domain.ExtractedEntity, int, error) {
	where := ""
	args := []any{}
	if opts.Search != "" {
		where = " WHERE entity_type = ? OR value LIKE ?"
		args = append(args, opts.Search, "%"+opts.Search+"%")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM extracted_entities"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entities: %w", err)
	}

	q := "SELECT " + entityColumns + " FROM extracted_entities" + where +
		" ORDER BY " + opts.order("confidence DESC") + " LIMIT ? OFFSET ?"
	args = append(args, opts.limit(), opts.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	out, err := collectEntities(rows)
	return out, total, err
}
