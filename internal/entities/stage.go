package entities

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gemsieve/gemsieve/internal/config"
	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/pkg/logger"
	"github.com/gemsieve/gemsieve/internal/store"
)

// Stage extracts entities for every message that has parsed content but
// no entities yet.
type Stage struct {
	entities *store.EntityRepo
	content  *store.ContentRepo
	tagger   Tagger
	cfg      config.EntityConfig
	log      *logger.Logger
}

// NewStage creates the entity stage. A nil tagger runs regex-only.
func NewStage(entities *store.EntityRepo, content *store.ContentRepo, tagger Tagger, cfg config.EntityConfig) *Stage {
	return &Stage{
		entities: entities,
		content:  content,
		tagger:   tagger,
		cfg:      cfg,
		log:      logger.WithComponent("entities"),
	}
}

// Run processes unprocessed messages. Returns the number processed.
func (s *Stage) Run(ctx context.Context) (int, error) {
	msgs, err := s.entities.UnprocessedMessages(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range msgs {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		m := &msgs[i]
		pc, err := s.content.Get(ctx, m.ID)
		if err != nil {
			return processed, fmt.Errorf("content for %s: %w", m.ID, err)
		}
		ents := s.ExtractMessage(ctx, m, pc)
		if err := s.entities.ReplaceForMessage(ctx, m.ID, ents); err != nil {
			return processed, err
		}
		processed++
	}

	s.log.Info("entities stage complete", "messages", processed)
	return processed, nil
}

// ExtractMessage produces every entity for one message: NER spans over
// the clean body plus signature, regex extractors, and header-sourced
// person entities.
func (s *Stage) ExtractMessage(ctx context.Context, m *domain.Message, pc *domain.ParsedContent) []domain.ExtractedEntity {
	now := time.Now().UTC()
	text := pc.BodyClean
	if pc.SignatureBlock != "" {
		text += "\n" + pc.SignatureBlock
	}

	var ents []domain.ExtractedEntity
	add := func(e domain.ExtractedEntity) {
		e.MessageID = m.ID
		e.ExtractedAt = now
		ents = append(ents, e)
	}

	// NER spans. A failed tagger call degrades to regex-only for this
	// message; the regexes below still run.
	if s.tagger != nil && strings.TrimSpace(text) != "" {
		spans, err := s.tagger.Tag(ctx, text)
		if err != nil {
			s.log.Warn("tagger failed, regex-only for message", "id", m.ID, "error", err.Error())
		} else {
			sigStart := len(pc.BodyClean)
			for _, span := range spans {
				etype, ok := mapLabel(span.Label)
				if !ok {
					continue
				}
				conf := span.Confidence
				if conf == 0 {
					conf = 0.8
				}
				// Signature-sourced people and orgs are near-certain.
				if span.Start >= sigStart && (etype == domain.EntityPerson || etype == domain.EntityOrganization) {
					conf = 0.9
				}
				value := span.Text
				if value == "" && span.Start < span.End && span.End <= len(text) {
					value = text[span.Start:span.End]
				}
				e := domain.ExtractedEntity{
					EntityType: etype,
					Value:      value,
					Confidence: conf,
					Source:     domain.SourceSpacy,
				}
				if etype == domain.EntityPerson {
					e.Context = classifyPerson(value, "", m.FromEmail, domain.SourceSpacy)
				}
				if etype == domain.EntityDate && s.cfg.ExtractDates {
					e.Normalized = bucketDate(value, now)
				}
				add(e)
			}
		}
	}

	// Regex extractors over the same text. Money also scans the subject,
	// where amounts often appear alone ("Invoice #42 - $3,500").
	if s.cfg.ExtractMonetary {
		moneyText := text
		if m.Subject != "" {
			moneyText += "\n" + m.Subject
		}
		for _, re := range moneyRes {
			for _, loc := range re.FindAllStringIndex(moneyText, -1) {
				add(domain.ExtractedEntity{
					EntityType: domain.EntityMoney,
					Value:      moneyText[loc[0]:loc[1]],
					Context:    contextWindow(moneyText, loc, 60),
					Confidence: 0.85,
					Source:     domain.SourceRegex,
				})
			}
		}
	}
	for _, loc := range phoneRe.FindAllStringIndex(text, -1) {
		add(domain.ExtractedEntity{
			EntityType: domain.EntityPhone,
			Value:      text[loc[0]:loc[1]],
			Confidence: 0.8,
			Source:     domain.SourceRegex,
		})
	}
	for _, loc := range urlRe.FindAllStringIndex(text, -1) {
		add(domain.ExtractedEntity{
			EntityType: domain.EntityURL,
			Value:      text[loc[0]:loc[1]],
			Confidence: 0.95,
			Source:     domain.SourceRegex,
		})
	}
	for _, loc := range roleRe.FindAllStringIndex(text, -1) {
		add(domain.ExtractedEntity{
			EntityType: domain.EntityRole,
			Value:      text[loc[0]:loc[1]],
			Context:    contextWindow(text, loc, 60),
			Confidence: 0.75,
			Source:     domain.SourceRegex,
		})
	}
	if s.cfg.ExtractDates {
		for _, re := range dateRes {
			for _, match := range re.FindAllStringSubmatchIndex(text, -1) {
				full := text[match[0]:match[1]]
				dateStr := text[match[4]:match[5]]
				add(domain.ExtractedEntity{
					EntityType: domain.EntityDate,
					Value:      dateStr,
					Normalized: bucketDateWithKeyword(full, dateStr, now),
					Context:    contextWindow(text, match[:2], 60),
					Confidence: 0.8,
					Source:     domain.SourceRegex,
				})
			}
		}
	}
	if s.cfg.ExtractProcurement {
		for band, res := range procurementBands {
			for _, re := range res {
				for _, loc := range re.FindAllStringIndex(text, -1) {
					add(domain.ExtractedEntity{
						EntityType: domain.EntityProcurement,
						Value:      text[loc[0]:loc[1]],
						Normalized: band,
						Context:    contextWindow(text, loc, 80),
						Confidence: 0.85,
						Source:     domain.SourceRegex,
					})
				}
			}
		}
	}

	// Header-sourced people: the sender at full confidence, CC addresses
	// at 0.6.
	if m.FromEmail != "" && !m.IsSentByUser {
		add(domain.ExtractedEntity{
			EntityType: domain.EntityPerson,
			Value:      senderDisplay(m),
			Normalized: m.FromEmail,
			Context:    classifyPerson(m.FromName, "", m.FromEmail, domain.SourceHeader),
			Confidence: 1.0,
			Source:     domain.SourceHeader,
		})
	}
	for _, cc := range m.CcEmails {
		add(domain.ExtractedEntity{
			EntityType: domain.EntityPerson,
			Value:      ccDisplay(cc),
			Normalized: cc.Email,
			Context:    classifyPerson(cc.Name, "", cc.Email, domain.SourceHeader),
			Confidence: 0.6,
			Source:     domain.SourceHeader,
		})
	}

	return ents
}

func mapLabel(label string) (domain.EntityType, bool) {
	switch strings.ToUpper(label) {
	case "PERSON", "PER":
		return domain.EntityPerson, true
	case "ORG", "GPE":
		return domain.EntityOrganization, true
	case "MONEY":
		return domain.EntityMoney, true
	case "DATE":
		return domain.EntityDate, true
	}
	return "", false
}

// classifyPerson assigns the relationship class stored in Context.
func classifyPerson(name, role, email string, source domain.EntitySource) string {
	if role != "" && seniorRoleRe.MatchString(role) {
		return domain.PersonDecisionMaker
	}
	if seniorRoleRe.MatchString(name) {
		return domain.PersonDecisionMaker
	}
	if source == domain.SourceHeader && role == "" && isRoleLikeAddress(email) {
		return domain.PersonAutomated
	}
	if isRoleLikeAddress(email) {
		return domain.PersonVendorContact
	}
	return domain.PersonPeer
}

// bucketDate marks a bare date string future or past.
func bucketDate(value string, now time.Time) string {
	t, ok := parseForgivingDate(value, now)
	if !ok {
		return ""
	}
	if t.After(now) {
		return "date:future"
	}
	return "date:past"
}

// bucketDateWithKeyword keys the bucket by the triggering keyword, e.g.
// "renewal:future".
func bucketDateWithKeyword(full, dateStr string, now time.Time) string {
	bucket := "date"
	lower := strings.ToLower(full)
	switch {
	case strings.Contains(lower, "renew"):
		bucket = "renewal"
	case strings.Contains(lower, "expir"):
		bucket = "expiration"
	case strings.Contains(lower, "deadline") || strings.Contains(lower, "due"):
		bucket = "deadline"
	}
	t, ok := parseForgivingDate(dateStr, now)
	if !ok {
		return bucket
	}
	if t.After(now) {
		return bucket + ":future"
	}
	return bucket + ":past"
}

func senderDisplay(m *domain.Message) string {
	if m.FromName != "" {
		return m.FromName
	}
	return m.FromEmail
}

func ccDisplay(a domain.Address) string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}
