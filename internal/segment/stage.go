// Package segment assigns economic segments to sender profiles and
// applies the relationship-aware opportunity scoring formula to gems.
package segment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gemsieve/gemsieve/internal/config"
	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/pkg/logger"
	"github.com/gemsieve/gemsieve/internal/store"
)

// churnedAfterDays is how long a spend-map vendor can go silent before it
// counts as churned.
const churnedAfterDays = 180

// Stage evaluates segment rules against every profile and rewrites gem
// scores.
type Stage struct {
	profiles *store.ProfileRepo
	entities *store.EntityRepo
	scoring  config.ScoringConfig
	segments string
	log      *logger.Logger
}

// NewStage creates the segment stage. segmentsFile names the optional
// custom-segments YAML; empty or missing is fine.
func NewStage(profiles *store.ProfileRepo, entities *store.EntityRepo, scoring config.ScoringConfig, segmentsFile string) *Stage {
	return &Stage{
		profiles: profiles,
		entities: entities,
		scoring:  scoring,
		segments: segmentsFile,
		log:      logger.WithComponent("segment"),
	}
}

// Run assigns segments then rescores gems. Returns segment assignments
// plus gems scored.
func (s *Stage) Run(ctx context.Context) (int, error) {
	assigned, err := s.AssignSegments(ctx)
	if err != nil {
		return 0, err
	}
	scored, err := s.ScoreGems(ctx)
	if err != nil {
		return assigned, err
	}
	s.log.Info("stage complete", "segment_assignments", assigned, "gems_scored", scored)
	return assigned + scored, nil
}

// AssignSegments clears and reassigns segment memberships for every
// profile, including custom segments from the YAML file.
func (s *Stage) AssignSegments(ctx context.Context) (int, error) {
	custom, err := loadCustomSegments(s.segments)
	if err != nil {
		return 0, err
	}

	profiles, err := s.profiles.AllProfiles(ctx)
	if err != nil {
		return 0, err
	}

	assigned := 0
	for i := range profiles {
		p := &profiles[i]
		gems, err := s.profiles.ListGems(ctx, store.GemFilter{SenderDomain: p.SenderDomain})
		if err != nil {
			return assigned, err
		}

		segs, err := s.segmentsFor(ctx, p, gems)
		if err != nil {
			return assigned, err
		}

		member := make(map[string]bool, len(segs))
		for _, seg := range segs {
			member[seg.Segment] = true
		}
		for _, def := range custom {
			if matchesRules(p, member, def.Rules) {
				segs = append(segs, domain.SenderSegment{
					SenderDomain: p.SenderDomain,
					Segment:      "custom:" + def.Name,
					SubSegment:   def.Priority,
					Confidence:   0.8,
				})
			}
		}

		if err := s.profiles.ReplaceSegments(ctx, p.SenderDomain, segs); err != nil {
			return assigned, err
		}
		assigned += len(segs)
	}
	return assigned, nil
}

// segmentsFor evaluates the six built-in segment rules for one profile.
func (s *Stage) segmentsFor(ctx context.Context, p *domain.SenderProfile, gems []domain.Gem) ([]domain.SenderSegment, error) {
	var segs []domain.SenderSegment
	now := time.Now().UTC()
	add := func(segment, sub string, conf float64) {
		segs = append(segs, domain.SenderSegment{
			SenderDomain: p.SenderDomain,
			Segment:      segment,
			SubSegment:   sub,
			Confidence:   conf,
			AssignedAt:   now,
		})
	}

	gemTypes := make(map[domain.GemType]bool, len(gems))
	for _, g := range gems {
		gemTypes[g.GemType] = true
	}
	offers := p.OfferTypeDistribution

	if p.SenderIntent == domain.IntentTransactional || offers["renewal"] > 0 || len(p.RenewalDates) > 0 {
		switch {
		case len(p.RenewalDates) > 0:
			add(domain.SegmentSpendMap, "upcoming_renewal", 0.9)
		case daysSince(p.LastContact, now) > churnedAfterDays:
			add(domain.SegmentSpendMap, "churned_vendor", 0.8)
		default:
			add(domain.SegmentSpendMap, "active_subscription", 0.7)
		}
	}

	if p.HasPartnerProgram || offers["partnership"] > 0 || gemTypes[domain.GemPartnerProgram] {
		if len(p.PartnerProgramURLs) > 0 {
			add(domain.SegmentPartnerMap, "referral_program", 0.8)
		} else {
			add(domain.SegmentPartnerMap, "general", 0.5)
		}
	}

	switch p.SenderIntent {
	case domain.IntentPromotional, domain.IntentNurtureSequence, domain.IntentColdOutreach:
		switch {
		case p.SophisticationAvg <= 3:
			add(domain.SegmentProspectMap, "hot_lead", 0.8)
		case p.SophisticationAvg <= 5:
			add(domain.SegmentProspectMap, "warm_prospect", 0.6)
		default:
			add(domain.SegmentProspectMap, "intelligence_value", 0.4)
		}
	}

	if gemTypes[domain.GemDormantWarmThread] {
		add(domain.SegmentDormantThreads, "unanswered", 0.9)
	}

	switch p.SenderIntent {
	case domain.IntentNewsletter, domain.IntentEventInvitation, domain.IntentCommunity:
		n := len(segs)
		if offers["newsletter"] > 0 || offers["digest"] > 0 {
			add(domain.SegmentDistributionMap, "newsletter", 0.8)
		}
		if offers["event_invitation"] > 0 || offers["event"] > 0 || offers["webinar"] > 0 {
			add(domain.SegmentDistributionMap, "event_organizer", 0.7)
		}
		if offers["community"] > 0 || offers["forum"] > 0 {
			add(domain.SegmentDistributionMap, "community", 0.6)
		}
		if len(segs) == n {
			add(domain.SegmentDistributionMap, "newsletter", 0.7)
		}
	}

	ents, err := s.entities.ForDomain(ctx, p.SenderDomain)
	if err != nil {
		return nil, err
	}
	var procEnts []domain.ExtractedEntity
	for _, e := range ents {
		if e.EntityType == domain.EntityProcurement {
			procEnts = append(procEnts, e)
		}
	}
	if p.SenderIntent == domain.IntentProcurement || offers["procurement"] > 0 || len(procEnts) > 0 {
		n := len(segs)
		keywords := strings.ToLower(joinValues(procEnts))
		if containsAny(keywords, "security", "compliance", "soc", "gdpr", "hipaa") {
			add(domain.SegmentProcurementMap, "security_compliance", 0.8)
		}
		if containsAny(keywords, "rfp", "request for proposal", "rfq", "bid") {
			add(domain.SegmentProcurementMap, "formal_rfp", 0.9)
		}
		if containsAny(keywords, "evaluation", "trial", "poc", "proof of concept", "pilot") {
			add(domain.SegmentProcurementMap, "evaluation", 0.7)
		}
		if len(segs) == n {
			add(domain.SegmentProcurementMap, "evaluation", 0.6)
		}
	}

	return segs, nil
}

// ScoreGems recomputes the opportunity score for every gem. All of a
// domain's gems share one score; suppressed relationships score zero.
func (s *Stage) ScoreGems(ctx context.Context) (int, error) {
	profiles, err := s.profiles.AllProfiles(ctx)
	if err != nil {
		return 0, err
	}

	scored := 0
	for i := range profiles {
		p := &profiles[i]
		gems, err := s.profiles.ListGems(ctx, store.GemFilter{SenderDomain: p.SenderDomain})
		if err != nil {
			return scored, err
		}
		if len(gems) == 0 {
			continue
		}

		relType := domain.RelUnknown
		suppressed := false
		rel, err := s.profiles.GetRelationship(ctx, p.SenderDomain)
		switch {
		case err == nil:
			relType = rel.Type
			suppressed = rel.SuppressGems
		case errors.Is(err, store.ErrNotFound):
		default:
			return scored, err
		}

		score := 0.0
		if !suppressed {
			score = s.opportunityScore(p, gems, relType)
		}
		for _, g := range gems {
			if err := s.profiles.UpdateGemScore(ctx, g.ID, score); err != nil {
				return scored, err
			}
			scored++
		}
	}
	return scored, nil
}

// opportunityScore is the three-part formula: inbound signal (max 30),
// base profile (max 40), gem bonus (max 30), capped by relationship.
func (s *Stage) opportunityScore(p *domain.SenderProfile, gems []domain.Gem, relType domain.RelationshipType) float64 {
	w := s.scoring.Weights
	score := 0.0

	if p.ThreadInitiationRatio != nil {
		score += (1.0 - *p.ThreadInitiationRatio) * float64(w.InboundInitiation)
	}
	if p.UserReplyRate != nil {
		rate := *p.UserReplyRate
		if rate > 1 {
			rate = 1
		}
		score += rate * float64(w.InboundEngagement)
	}

	switch p.CompanySize {
	case domain.SizeSmall:
		score += float64(w.Reachability)
	case domain.SizeMedium:
		score += float64(w.Reachability) * 0.67
	default:
		score += float64(w.Reachability) * 0.2
	}

	if containsFold(s.scoring.TargetIndustries, p.Industry) {
		score += float64(w.Relevance)
	} else {
		score += float64(w.Relevance) * 0.3
	}

	if !p.LastContact.IsZero() {
		days := daysSince(p.LastContact, time.Now().UTC())
		if days <= 30 {
			score += float64(w.Recency)
		} else if days <= 90 {
			score += float64(w.Recency) * 0.5
		}
	}

	if hasRoledContact(p.KnownContacts) {
		score += float64(w.KnownContacts)
	} else if len(p.KnownContacts) > 0 {
		score += float64(w.KnownContacts) * 0.2
	}

	if relType.OpportunitySide() && len(p.MonetarySignals) > 0 {
		score += float64(w.MonetarySignals)
	}

	gemTypes := make(map[domain.GemType]bool, len(gems))
	for _, g := range gems {
		gemTypes[g.GemType] = true
	}
	diversity := float64(len(gemTypes) * w.GemDiversityPerType)
	if limit := float64(w.GemDiversityCap); diversity > limit {
		diversity = limit
	}
	score += diversity
	if gemTypes[domain.GemDormantWarmThread] {
		score += float64(w.DormantThreadBonus)
	}
	if gemTypes[domain.GemPartnerProgram] {
		score += float64(w.PartnerBonus)
	}
	if gemTypes[domain.GemProcurementSignal] {
		score += float64(w.ProcurementBonus)
	}

	capped := float64(int(score))
	if limit := float64(s.scoring.RelationshipCaps.CapFor(string(relType))); capped > limit {
		capped = limit
	}
	if capped > 100 {
		capped = 100
	}
	return capped
}

// --- custom segments ---

type customSegment struct {
	Name     string         `yaml:"name"`
	Priority string         `yaml:"priority"`
	Rules    map[string]any `yaml:"rules"`
}

type customSegmentsFile struct {
	CustomSegments []customSegment `yaml:"custom_segments"`
}

func loadCustomSegments(path string) ([]customSegment, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var f customSegmentsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range f.CustomSegments {
		if f.CustomSegments[i].Name == "" {
			f.CustomSegments[i].Name = "unnamed"
		}
		if f.CustomSegments[i].Priority == "" {
			f.CustomSegments[i].Priority = "warm"
		}
	}
	return f.CustomSegments, nil
}

// matchesRules checks a profile against one custom segment's rule map.
// Every rule must hold. Unknown fields never match.
func matchesRules(p *domain.SenderProfile, member map[string]bool, rules map[string]any) bool {
	for field, expected := range rules {
		switch field {
		case "segment_includes":
			if !member[fmt.Sprint(expected)] {
				return false
			}
		case "renewal_date_within_days":
			if len(p.RenewalDates) == 0 {
				return false
			}
		case "has_partner_program":
			if want, ok := expected.(bool); !ok || p.HasPartnerProgram != want {
				return false
			}
		case "has_personalization":
			if want, ok := expected.(bool); !ok || p.HasPersonalization != want {
				return false
			}
		case "industry":
			if !matchString(p.Industry, expected) {
				return false
			}
		case "company_size":
			if !matchString(string(p.CompanySize), expected) {
				return false
			}
		case "sender_intent":
			if !matchString(string(p.SenderIntent), expected) {
				return false
			}
		case "product_type":
			if !matchString(p.ProductType, expected) {
				return false
			}
		case "esp_used":
			if !matchString(p.ESPUsed, expected) {
				return false
			}
		case "relationship_type":
			if !matchString(string(p.RelationshipType), expected) {
				return false
			}
		case "auth_quality":
			if !matchString(p.AuthQuality, expected) {
				return false
			}
		case "sophistication_avg":
			if !matchNumber(p.SophisticationAvg, expected) {
				return false
			}
		case "bulk_ratio":
			if !matchNumber(p.BulkRatio, expected) {
				return false
			}
		case "total_messages":
			if !matchNumber(float64(p.TotalMessages), expected) {
				return false
			}
		case "avg_frequency_days":
			if !matchNumber(p.AvgFrequencyDays, expected) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// matchString accepts a scalar (exact match) or a list (membership).
func matchString(actual string, expected any) bool {
	if list, ok := expected.([]any); ok {
		for _, v := range list {
			if fmt.Sprint(v) == actual {
				return true
			}
		}
		return false
	}
	return fmt.Sprint(expected) == actual
}

// matchNumber accepts a scalar (exact) or a {lt, gt} map.
func matchNumber(actual float64, expected any) bool {
	if m, ok := expected.(map[string]any); ok {
		if lt, ok := m["lt"]; ok {
			bound, ok := toFloat(lt)
			if !ok || actual >= bound {
				return false
			}
		}
		if gt, ok := m["gt"]; ok {
			bound, ok := toFloat(gt)
			if !ok || actual <= bound {
				return false
			}
		}
		return true
	}
	want, ok := toFloat(expected)
	return ok && actual == want
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func daysSince(t time.Time, now time.Time) int {
	return int(now.Sub(t).Hours() / 24)
}

func hasRoledContact(contacts []domain.Contact) bool {
	for _, c := range contacts {
		if c.Role != "" {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func joinValues(ents []domain.ExtractedEntity) string {
	if len(ents) == 0 {
		return ""
	}
	vals := make([]string, 0, len(ents))
	for _, e := range ents {
		vals = append(vals, e.Value)
	}
	return strings.Join(vals, " ")
}
