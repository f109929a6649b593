package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gemsieve/gemsieve/internal/domain"
)

// ContentRepo persists parsed body content.
type ContentRepo struct{ db *sql.DB }

// NewContentRepo creates a content repository over the shared handle.
func NewContentRepo(db *sql.DB) *ContentRepo { return &ContentRepo{db: db} }

// UnprocessedMessages returns messages without a parsed_content row.
func (r *ContentRepo) UnprocessedMessages(ctx context.Context) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages m
		WHERE NOT EXISTS (SELECT 1 FROM parsed_content p WHERE p.message_id = m.id)
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

const contentColumns = `message_id, body_clean, signature_block, primary_headline,
	cta_texts, offer_types, has_personalization, personalization_tokens,
	link_count, tracking_pixel_count, unique_link_domains, link_intents,
	utm_campaigns, physical_address, social_links, image_count,
	template_complexity, parsed_at`

// Upsert writes one parsed-content row keyed on the message id.
func (r *ContentRepo) Upsert(ctx context.Context, c *domain.ParsedContent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO parsed_content (`+contentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			body_clean = excluded.body_clean,
			signature_block = excluded.signature_block,
			primary_headline = excluded.primary_headline,
			cta_texts = excluded.cta_texts,
			offer_types = excluded.offer_types,
			has_personalization = excluded.has_personalization,
			personalization_tokens = excluded.personalization_tokens,
			link_count = excluded.link_count,
			tracking_pixel_count = excluded.tracking_pixel_count,
			unique_link_domains = excluded.unique_link_domains,
			link_intents = excluded.link_intents,
			utm_campaigns = excluded.utm_campaigns,
			physical_address = excluded.physical_address,
			social_links = excluded.social_links,
			image_count = excluded.image_count,
			template_complexity = excluded.template_complexity,
			parsed_at = excluded.parsed_at
	`,
		c.MessageID, c.BodyClean, c.SignatureBlock, c.PrimaryHeadline,
		toJSON(c.CTATexts), toJSON(c.OfferTypes), boolToInt(c.HasPersonalization),
		toJSON(c.PersonalizationTokens), c.LinkCount, c.TrackingPixelCount,
		toJSON(c.UniqueLinkDomains), toJSON(c.LinkIntents), toJSON(c.UTMCampaigns),
		c.PhysicalAddress, toJSON(c.SocialLinks), c.ImageCount,
		c.TemplateComplexity, toTime(c.ParsedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert parsed_content: %w", err)
	}
	return nil
}

func scanContent(row rowScanner) (*domain.ParsedContent, error) {
	var (
		c                                          domain.ParsedContent
		ctas, offers, tokens, linkDomains, intents string
		utms, socials                              string
		hasPers                                    int
		parsedAt                                   string
	)
	err := row.Scan(
		&c.MessageID, &c.BodyClean, &c.SignatureBlock, &c.PrimaryHeadline,
		&ctas, &offers, &hasPers, &tokens,
		&c.LinkCount, &c.TrackingPixelCount, &linkDomains, &intents,
		&utms, &c.PhysicalAddress, &socials, &c.ImageCount,
		&c.TemplateComplexity, &parsedAt,
	)
	if err != nil {
		return nil, err
	}
	fromJSON(ctas, &c.CTATexts)
	fromJSON(offers, &c.OfferTypes)
	fromJSON(tokens, &c.PersonalizationTokens)
	fromJSON(linkDomains, &c.UniqueLinkDomains)
	fromJSON(intents, &c.LinkIntents)
	fromJSON(utms, &c.UTMCampaigns)
	fromJSON(socials, &c.SocialLinks)
	c.HasPersonalization = hasPers != 0
	c.ParsedAt = fromTime(parsedAt)
	return &c, nil
}

// Get fetches the parsed content for one message.
func (r *ContentRepo) Get(ctx context.Context, messageID string) (*domain.ParsedContent, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+contentColumns+" FROM parsed_content WHERE message_id = ?", messageID)
	c, err := scanContent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get parsed_content: %w", err)
	}
	return c, nil
}

// ForDomain returns every parsed-content row for messages of one sender
// domain, joined through parsed_metadata.
func (r *ContentRepo) ForDomain(ctx context.Context, senderDomain string) ([]domain.ParsedContent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prefixColumns("c", contentColumns)+` FROM parsed_content c
		JOIN parsed_metadata p ON p.message_id = c.message_id
		WHERE p.sender_domain = ?
	`, senderDomain)
	if err != nil {
		return nil, fmt.Errorf("list content for domain: %w", err)
	}
	defer rows.Close()

	var out []domain.ParsedContent
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ListContent pages parsed content for the browse API.
func (r *ContentRepo) ListContent(ctx context.Context, opts ListOptions) ([]domain.ParsedContent, int, error) {
	where := ""
	args := []any{}
	if opts.Search != "" {
		where = " WHERE body_clean LIKE ? OR primary_headline LIKE ?"
		pat := "%" + opts.Search + "%"
		args = append(args, pat, pat)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM parsed_content"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count parsed_content: %w", err)
	}

	q := "SELECT " + contentColumns + " FROM parsed_content" + where +
		" ORDER BY " + opts.order("parsed_at DESC") + " LIMIT ? OFFSET ?"
	args = append(args, opts.limit(), opts.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list parsed_content: %w", err)
	}
	defer rows.Close()

	var out []domain.ParsedContent
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan content: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}
