package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gemsieve/gemsieve/internal/domain"
)

// ProfileRepo persists sender profiles, relationships, domain exclusions,
// gems, and segment memberships.
type ProfileRepo struct{ db *sql.DB }

// NewProfileRepo creates a profile repository over the shared handle.
func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{db: db} }

const profileColumns = `sender_domain, company_name, primary_email, reply_to_email,
	industry, company_size, sender_intent, product_type, product_description,
	pain_points, target_audience, sophistication_avg, sophistication_ai,
	sophistication_det, sophistication_trend, esp_used, auth_quality,
	unsubscribe_url, bulk_ratio, total_messages, avg_frequency_days,
	first_contact, last_contact, known_contacts, offer_type_distribution,
	cta_texts, social_links, physical_address, utm_campaign_names,
	has_personalization, has_partner_program, partner_program_urls,
	renewal_dates, monetary_signals, thread_initiation_ratio, user_reply_rate,
	relationship_type, built_at`

// UpsertProfile writes one sender profile keyed on the domain.
func (r *ProfileRepo) UpsertProfile(ctx context.Context, p *domain.SenderProfile) error {
	var aiSoph, initRatio, replyRate any
	if p.SophisticationAI != nil {
		aiSoph = *p.SophisticationAI
	}
	if p.ThreadInitiationRatio != nil {
		initRatio = *p.ThreadInitiationRatio
	}
	if p.UserReplyRate != nil {
		replyRate = *p.UserReplyRate
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sender_profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sender_domain) DO UPDATE SET
			company_name = excluded.company_name,
			primary_email = excluded.primary_email,
			reply_to_email = excluded.reply_to_email,
			industry = excluded.industry,
			company_size = excluded.company_size,
			sender_intent = excluded.sender_intent,
			product_type = excluded.product_type,
			product_description = excluded.product_description,
			pain_points = excluded.pain_points,
			target_audience = excluded.target_audience,
			sophistication_avg = excluded.sophistication_avg,
			sophistication_ai = excluded.sophistication_ai,
			sophistication_det = excluded.sophistication_det,
			sophistication_trend = excluded.sophistication_trend,
			esp_used = excluded.esp_used,
			auth_quality = excluded.auth_quality,
			unsubscribe_url = excluded.unsubscribe_url,
			bulk_ratio = excluded.bulk_ratio,
			total_messages = excluded.total_messages,
			avg_frequency_days = excluded.avg_frequency_days,
			first_contact = excluded.first_contact,
			last_contact = excluded.last_contact,
			known_contacts = excluded.known_contacts,
			offer_type_distribution = excluded.offer_type_distribution,
			cta_texts = excluded.cta_texts,
			social_links = excluded.social_links,
			physical_address = excluded.physical_address,
			utm_campaign_names = excluded.utm_campaign_names,
			has_personalization = excluded.has_personalization,
			has_partner_program = excluded.has_partner_program,
			partner_program_urls = excluded.partner_program_urls,
			renewal_dates = excluded.renewal_dates,
			monetary_signals = excluded.monetary_signals,
			thread_initiation_ratio = excluded.thread_initiation_ratio,
			user_reply_rate = excluded.user_reply_rate,
			relationship_type = excluded.relationship_type,
			built_at = excluded.built_at
	`,
		p.SenderDomain, p.CompanyName, p.PrimaryEmail, p.ReplyToEmail,
		p.Industry, string(p.CompanySize), string(p.SenderIntent), p.ProductType, p.ProductDescription,
		toJSON(p.PainPoints), p.TargetAudience, p.SophisticationAvg, aiSoph,
		p.SophisticationDet, p.SophTrend, p.ESPUsed, p.AuthQuality,
		p.UnsubscribeURL, p.BulkRatio, p.TotalMessages, p.AvgFrequencyDays,
		toTime(p.FirstContact), toTime(p.LastContact), toJSON(p.KnownContacts), toJSON(p.OfferTypeDistribution),
		toJSON(p.CTATexts), toJSON(p.SocialLinks), p.PhysicalAddress, toJSON(p.UTMCampaignNames),
		boolToInt(p.HasPersonalization), boolToInt(p.HasPartnerProgram), toJSON(p.PartnerProgramURLs),
		toJSON(p.RenewalDates), toJSON(p.MonetarySignals), initRatio, replyRate,
		string(p.RelationshipType), toTime(p.BuiltAt),
	)
	if err != nil {
		return fmt.Errorf("upsert sender_profile: %w", err)
	}
	return nil
}

func scanProfile(row rowScanner) (*domain.SenderProfile, error) {
	var (
		p                                       domain.SenderProfile
		size, intent, rel                       string
		pains, contacts, offers, ctas, socials  string
		utms, partnerURLs, renewals, monetary   string
		aiSoph, initRatio, replyRate            sql.NullFloat64
		first, last                             sql.NullString
		hasPers, hasPartner                     int
		builtAt                                 string
	)
	err := row.Scan(
		&p.SenderDomain, &p.CompanyName, &p.PrimaryEmail, &p.ReplyToEmail,
		&p.Industry, &size, &intent, &p.ProductType, &p.ProductDescription,
		&pains, &p.TargetAudience, &p.SophisticationAvg, &aiSoph,
		&p.SophisticationDet, &p.SophTrend, &p.ESPUsed, &p.AuthQuality,
		&p.UnsubscribeURL, &p.BulkRatio, &p.TotalMessages, &p.AvgFrequencyDays,
		&first, &last, &contacts, &offers,
		&ctas, &socials, &p.PhysicalAddress, &utms,
		&hasPers, &hasPartner, &partnerURLs,
		&renewals, &monetary, &initRatio, &replyRate,
		&rel, &builtAt,
	)
	if err != nil {
		return nil, err
	}
	p.CompanySize = domain.CompanySize(size)
	p.SenderIntent = domain.SenderIntent(intent)
	p.RelationshipType = domain.RelationshipType(rel)
	fromJSON(pains, &p.PainPoints)
	fromJSON(contacts, &p.KnownContacts)
	fromJSON(offers, &p.OfferTypeDistribution)
	fromJSON(ctas, &p.CTATexts)
	fromJSON(socials, &p.SocialLinks)
	fromJSON(utms, &p.UTMCampaignNames)
	fromJSON(partnerURLs, &p.PartnerProgramURLs)
	fromJSON(renewals, &p.RenewalDates)
	fromJSON(monetary, &p.MonetarySignals)
	if aiSoph.Valid {
		v := aiSoph.Float64
		p.SophisticationAI = &v
	}
	if initRatio.Valid {
		v := initRatio.Float64
		p.ThreadInitiationRatio = &v
	}
	if replyRate.Valid {
		v := replyRate.Float64
		p.UserReplyRate = &v
	}
	if first.Valid {
		p.FirstContact = fromTime(first.String)
	}
	if last.Valid {
		p.LastContact = fromTime(last.String)
	}
	p.HasPersonalization = hasPers != 0
	p.HasPartnerProgram = hasPartner != 0
	p.BuiltAt = fromTime(builtAt)
	return &p, nil
}

// GetProfile fetches one sender profile.
func (r *ProfileRepo) GetProfile(ctx context.Context, senderDomain string) (*domain.SenderProfile, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM sender_profiles WHERE sender_domain = ?", senderDomain)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sender_profile: %w", err)
	}
	return p, nil
}

// AllProfiles returns every sender profile.
func (r *ProfileRepo) AllProfiles(ctx context.Context) ([]domain.SenderProfile, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+profileColumns+" FROM sender_profiles")
	if err != nil {
		return nil, fmt.Errorf("list sender_profiles: %w", err)
	}
	defer rows.Close()

	var out []domain.SenderProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sender_profile: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ListProfiles pages profiles for the browse API.
func (r *ProfileRepo) ListProfiles(ctx context.Context, opts ListOptions) ([]domain.SenderProfile, int, error) {
	where := ""
	args := []any{}
	if opts.Search != "" {
		where = " WHERE sender_domain LIKE ? OR company_name LIKE ? OR industry LIKE ?"
		pat := "%" + opts.Search + "%"
		args = append(args, pat, pat, pat)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sender_profiles"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sender_profiles: %w", err)
	}

	q := "SELECT " + profileColumns + " FROM sender_profiles" + where +
		" ORDER BY " + opts.order("total_messages DESC") + " LIMIT ? OFFSET ?"
	args = append(args, opts.limit(), opts.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list sender_profiles: %w", err)
	}
	defer rows.Close()

	var out []domain.SenderProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan sender_profile: %w", err)
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

// IndustryCounts returns profile counts per industry, for saturation
// detection and the stats API.
func (r *ProfileRepo) IndustryCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT industry, COUNT(*) FROM sender_profiles WHERE industry != '' GROUP BY industry")
	if err != nil {
		return nil, fmt.Errorf("count industries: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var industry string
		var n int
		if err := rows.Scan(&industry, &n); err != nil {
			return nil, fmt.Errorf("scan industry count: %w", err)
		}
		out[industry] = n
	}
	return out, rows.Err()
}

// ThreadsForDomain returns the threads that contain at least one message
// from the given sender domain.
func (r *ProfileRepo) ThreadsForDomain(ctx context.Context, senderDomain string) ([]domain.Thread, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT `+prefixColumns("t", threadColumns)+` FROM threads t
		JOIN messages m ON m.thread_id = t.id
		JOIN parsed_metadata p ON p.message_id = m.id
		WHERE p.sender_domain = ?
	`, senderDomain)
	if err != nil {
		return nil, fmt.Errorf("list threads for domain: %w", err)
	}
	defer rows.Close()

	var out []domain.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// MessageIDsForDomain returns all message ids from a sender domain.
func (r *ProfileRepo) MessageIDsForDomain(ctx context.Context, senderDomain string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT message_id FROM parsed_metadata WHERE sender_domain = ?", senderDomain)
	if err != nil {
		return nil, fmt.Errorf("list message ids for domain: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan message id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- Relationships ---

const relationshipColumns = `sender_domain, relationship_type, confidence,
	suppress_gems, source, note, updated_at`

// SetRelationship upserts one relationship row.
func (r *ProfileRepo) SetRelationship(ctx context.Context, rel *domain.SenderRelationship) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sender_relationships (`+relationshipColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sender_domain) DO UPDATE SET
			relationship_type = excluded.relationship_type,
			confidence = excluded.confidence,
			suppress_gems = excluded.suppress_gems,
			source = excluded.source,
			note = excluded.note,
			updated_at = excluded.updated_at
	`, rel.SenderDomain, string(rel.Type), rel.Confidence,
		boolToInt(rel.SuppressGems), string(rel.Source), rel.Note, toTime(rel.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert sender_relationship: %w", err)
	}
	return nil
}

func scanRelationship(row rowScanner) (*domain.SenderRelationship, error) {
	var (
		rel       domain.SenderRelationship
		rtype     string
		suppress  int
		src       string
		updatedAt string
	)
	err := row.Scan(&rel.SenderDomain, &rtype, &rel.Confidence,
		&suppress, &src, &rel.Note, &updatedAt)
	if err != nil {
		return nil, err
	}
	rel.Type = domain.RelationshipType(rtype)
	rel.SuppressGems = suppress != 0
	rel.Source = domain.RelationshipSource(src)
	rel.UpdatedAt = fromTime(updatedAt)
	return &rel, nil
}

// GetRelationship fetches one relationship row.
func (r *ProfileRepo) GetRelationship(ctx context.Context, senderDomain string) (*domain.SenderRelationship, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+relationshipColumns+" FROM sender_relationships WHERE sender_domain = ?", senderDomain)
	rel, err := scanRelationship(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sender_relationship: %w", err)
	}
	return rel, nil
}

// ListRelationships returns every relationship row, optionally filtered
// by type.
func (r *ProfileRepo) ListRelationships(ctx context.Context, relType string) ([]domain.SenderRelationship, error) {
	q := "SELECT " + relationshipColumns + " FROM sender_relationships"
	args := []any{}
	if relType != "" {
		q += " WHERE relationship_type = ?"
		args = append(args, relType)
	}
	q += " ORDER BY sender_domain ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sender_relationships: %w", err)
	}
	defer rows.Close()

	var out []domain.SenderRelationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sender_relationship: %w", err)
		}
		out = append(out, *rel)
	}
	return out, rows.Err()
}

// --- Domain exclusions ---

// IsExcluded reports whether a domain is excluded from gem detection.
func (r *ProfileRepo) IsExcluded(ctx context.Context, senderDomain string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM domain_exclusions WHERE domain = ?", senderDomain).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check domain exclusion: %w", err)
	}
	return n > 0, nil
}

// AddExclusion excludes a domain from gem detection.
func (r *ProfileRepo) AddExclusion(ctx context.Context, e *domain.DomainExclusion) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO domain_exclusions (domain, reason, created_at) VALUES (?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET reason = excluded.reason
	`, e.Domain, e.Reason, toTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert domain_exclusion: %w", err)
	}
	return nil
}

// --- Gems ---

const gemColumns = `id, gem_type, sender_domain, thread_id, score,
	explanation, recommended_actions, source_message_ids, status, detected_at`

// ClearGemsForDomain deletes a domain's gems and their drafts before
// re-detection, so detection is idempotent.
func (r *ProfileRepo) ClearGemsForDomain(ctx context.Context, senderDomain string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin gem clear tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM engagement_drafts WHERE gem_id IN
			(SELECT id FROM gems WHERE sender_domain = ?)
	`, senderDomain); err != nil {
		return fmt.Errorf("clear drafts: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM gems WHERE sender_domain = ?", senderDomain); err != nil {
		return fmt.Errorf("clear gems: %w", err)
	}
	return tx.Commit()
}

// InsertGem stores one detected gem.
func (r *ProfileRepo) InsertGem(ctx context.Context, g *domain.Gem) error {
	var threadID any
	if g.ThreadID != "" {
		threadID = g.ThreadID
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO gems (gem_type, sender_domain, thread_id, score, explanation,
			recommended_actions, source_message_ids, status, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(g.GemType), g.SenderDomain, threadID, g.Score, toJSON(g.Explanation),
		toJSON(g.RecommendedActions), toJSON(g.SourceMessageIDs), string(g.Status), toTime(g.DetectedAt))
	if err != nil {
		return fmt.Errorf("insert gem: %w", err)
	}
	g.ID, _ = res.LastInsertId()
	return nil
}

func scanGem(row rowScanner) (*domain.Gem, error) {
	var (
		g                    domain.Gem
		gtype, status        string
		threadID             sql.NullString
		expl, actions, srcs  string
		detectedAt           string
	)
	err := row.Scan(&g.ID, &gtype, &g.SenderDomain, &threadID, &g.Score,
		&expl, &actions, &srcs, &status, &detectedAt)
	if err != nil {
		return nil, err
	}
	g.GemType = domain.GemType(gtype)
	g.ThreadID = threadID.String
	g.Status = domain.GemStatus(status)
	fromJSON(expl, &g.Explanation)
	fromJSON(actions, &g.RecommendedActions)
	fromJSON(srcs, &g.SourceMessageIDs)
	g.DetectedAt = fromTime(detectedAt)
	return &g, nil
}

// GetGem fetches one gem by id.
func (r *ProfileRepo) GetGem(ctx context.Context, id int64) (*domain.Gem, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+gemColumns+" FROM gems WHERE id = ?", id)
	g, err := scanGem(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get gem: %w", err)
	}
	return g, nil
}

// GemFilter narrows gem listings.
type GemFilter struct {
	GemType      string
	SenderDomain string
	Status       string
	MinScore     float64
	Limit        int
}

// ListGems returns gems matching the filter, highest score first.
func (r *ProfileRepo) ListGems(ctx context.Context, f GemFilter) ([]domain.Gem, error) {
	q := "SELECT " + gemColumns + " FROM gems WHERE 1=1"
	args := []any{}
	if f.GemType != "" {
		q += " AND gem_type = ?"
		args = append(args, f.GemType)
	}
	if f.SenderDomain != "" {
		q += " AND sender_domain = ?"
		args = append(args, f.SenderDomain)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.MinScore > 0 {
		q += " AND score >= ?"
		args = append(args, f.MinScore)
	}
	q += " ORDER BY score DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list gems: %w", err)
	}
	defer rows.Close()

	var out []domain.Gem
	for rows.Next() {
		g, err := scanGem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gem: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// GemCountsByType returns gem counts grouped by type.
func (r *ProfileRepo) GemCountsByType(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT gem_type, COUNT(*) FROM gems GROUP BY gem_type")
	if err != nil {
		return nil, fmt.Errorf("count gems by type: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var gtype string
		var n int
		if err := rows.Scan(&gtype, &n); err != nil {
			return nil, fmt.Errorf("scan gem count: %w", err)
		}
		out[gtype] = n
	}
	return out, rows.Err()
}

// UpdateGemStatus moves a gem between triage states.
func (r *ProfileRepo) UpdateGemStatus(ctx context.Context, id int64, status domain.GemStatus) error {
	res, err := r.db.ExecContext(ctx, "UPDATE gems SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("update gem status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfileRelationship re-stamps the relationship type displayed on
// a profile row after a relationship pass changes the live row.
func (r *ProfileRepo) UpdateProfileRelationship(ctx context.Context, senderDomain string, relType domain.RelationshipType) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE sender_profiles SET relationship_type = ? WHERE sender_domain = ?",
		string(relType), senderDomain)
	if err != nil {
		return fmt.Errorf("update profile relationship: %w", err)
	}
	return nil
}

// UpdateGemScore rewrites a gem's score after the scoring pass.
func (r *ProfileRepo) UpdateGemScore(ctx context.Context, id int64, score float64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE gems SET score = ? WHERE id = ?", score, id)
	if err != nil {
		return fmt.Errorf("update gem score: %w", err)
	}
	return nil
}

// --- Segments ---

// ReplaceSegments clears and reinserts a domain's segment memberships.
func (r *ProfileRepo) ReplaceSegments(ctx context.Context, senderDomain string, segs []domain.SenderSegment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin segment tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM sender_segments WHERE sender_domain = ?", senderDomain); err != nil {
		return fmt.Errorf("clear segments: %w", err)
	}
	for _, s := range segs {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO sender_segments
				(sender_domain, segment, sub_segment, confidence, assigned_at)
			VALUES (?, ?, ?, ?, ?)
		`, senderDomain, s.Segment, s.SubSegment, s.Confidence, toTime(s.AssignedAt))
		if err != nil {
			return fmt.Errorf("insert segment: %w", err)
		}
	}
	return tx.Commit()
}

// SegmentsForDomain returns one domain's segment memberships.
func (r *ProfileRepo) SegmentsForDomain(ctx context.Context, senderDomain string) ([]domain.SenderSegment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sender_domain, segment, sub_segment, confidence, assigned_at
		FROM sender_segments WHERE sender_domain = ?
	`, senderDomain)
	if err != nil {
		return nil, fmt.Errorf("list segments for domain: %w", err)
	}
	defer rows.Close()
	return collectSegments(rows)
}

// DomainsInSegment returns the domains holding a segment membership.
func (r *ProfileRepo) DomainsInSegment(ctx context.Context, segment string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT sender_domain FROM sender_segments WHERE segment = ?", segment)
	if err != nil {
		return nil, fmt.Errorf("list domains in segment: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan segment domain: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SegmentCounts returns membership counts per (segment, sub-segment).
func (r *ProfileRepo) SegmentCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT segment || '/' || sub_segment, COUNT(*) FROM sender_segments
		GROUP BY segment, sub_segment
	`)
	if err != nil {
		return nil, fmt.Errorf("count segments: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan segment count: %w", err)
		}
		out[key] = n
	}
	return out, rows.Err()
}

// ListSegments returns every segment row.
func (r *ProfileRepo) ListSegments(ctx context.Context) ([]domain.SenderSegment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sender_domain, segment, sub_segment, confidence, assigned_at
		FROM sender_segments ORDER BY sender_domain, segment
	`)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()
	return collectSegments(rows)
}

func collectSegments(rows *sql.Rows) ([]domain.SenderSegment, error) {
	var out []domain.SenderSegment
	for rows.Next() {
		var s domain.SenderSegment
		var assignedAt string
		if err := rows.Scan(&s.ID, &s.SenderDomain, &s.Segment, &s.SubSegment,
			&s.Confidence, &assignedAt); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		s.AssignedAt = fromTime(assignedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}
