package profile

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/entities"
	"github.com/gemsieve/gemsieve/internal/relationship"
	"github.com/gemsieve/gemsieve/internal/store"
)

// Warm-signal categories with their score boosts. The first match per
// category per message counts; the total boost caps at 30.
type warmCategory struct {
	name     string
	boost    int
	patterns []*regexp.Regexp
}

var warmCategories = []warmCategory{
	{"pricing", 15, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:pricing|price|cost|quote|budget|investment)\b`),
	}},
	{"meeting_request", 12, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:schedule|call|meeting|demo|zoom|calendly|book a time)\b`),
	}},
	{"explicit_ask", 10, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:interested in|looking for|evaluating|considering)\b`),
		regexp.MustCompile(`(?i)\bwhat'?s your\b`),
	}},
	{"follow_up", 5, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:following up|circling back|checking in|just wanted to)\b`),
	}},
	{"decision_maker", 8, []*regexp.Regexp{
		regexp.MustCompile(`\b(?:CEO|CTO|VP|Director|Head of|Founder)\b`),
	}},
	{"budget_indicator", 12, []*regexp.Regexp{
		regexp.MustCompile(`\$[\d,]+(?:\.\d{2})?`),
		regexp.MustCompile(`(?i)\b\d+[k]\s*(?:ARR|MRR|budget)\b`),
		regexp.MustCompile(`(?i)\b(?:team|seats?) of \d+\b`),
	}},
}

const warmBoostCap = 30

// Distribution content signals: asks to contribute, speak, or sponsor.
var distributionSignals = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bguest post\b`),
	regexp.MustCompile(`(?i)\bspeaker application\b`),
	regexp.MustCompile(`(?i)\bcall for (?:papers|speakers)\b`),
	regexp.MustCompile(`(?i)\bpodcast interview\b`),
	regexp.MustCompile(`(?i)\bsponsorship\b`),
	regexp.MustCompile(`(?i)\bcontributor\b`),
	regexp.MustCompile(`(?i)\bsubmit (?:your|a) (?:talk|session|abstract|story)\b`),
	regexp.MustCompile(`(?i)\bfeature (?:story|article|piece)\b`),
}

var commissionRe = regexp.MustCompile(`(?i)\b\d{1,2}%\s+(?:commission|recurring|rev(?:enue)?[- ]share)`)

// gemEligibility gates each detector on the relationship type. Unknown
// senders count as opportunity-side until proven otherwise.
var gemEligibility = map[domain.GemType][]domain.RelationshipType{
	domain.GemDormantWarmThread: {
		domain.RelInboundProspect, domain.RelWarmContact, domain.RelPotentialPartner, domain.RelUnknown,
	},
	domain.GemUnansweredAsk: {
		domain.RelInboundProspect, domain.RelWarmContact, domain.RelPotentialPartner, domain.RelUnknown,
	},
	domain.GemWeakMarketingLead: {
		domain.RelInboundProspect, domain.RelWarmContact, domain.RelUnknown,
	},
	domain.GemPartnerProgram: {
		domain.RelMyVendor, domain.RelWarmContact, domain.RelPotentialPartner, domain.RelUnknown,
	},
	domain.GemRenewalLeverage: {
		domain.RelMyVendor, domain.RelMyServiceProvider, domain.RelMyInfrastructure,
	},
	domain.GemDistributionChannel: {
		domain.RelWarmContact, domain.RelPotentialPartner, domain.RelCommunity, domain.RelUnknown,
	},
	domain.GemCoMarketing: {
		domain.RelWarmContact, domain.RelPotentialPartner, domain.RelUnknown,
	},
	domain.GemIndustryIntel: {
		domain.RelSellingToMe, domain.RelInboundProspect, domain.RelWarmContact,
		domain.RelPotentialPartner, domain.RelCommunity, domain.RelUnknown,
	},
	domain.GemProcurementSignal: {
		domain.RelInboundProspect, domain.RelWarmContact, domain.RelUnknown,
	},
}

func eligible(gt domain.GemType, rel domain.RelationshipType) bool {
	for _, r := range gemEligibility[gt] {
		if r == rel {
			return true
		}
	}
	return false
}

// saturatedIndustryThreshold marks an industry worth reporting on.
const saturatedIndustryThreshold = 10

// bulkHeavyRatio is the bulk-message share above which a sender is
// treated as a machine, not a lead.
const bulkHeavyRatio = 0.5

// DetectGems clears and re-detects gems for every profile. Suppressed
// relationships and excluded domains produce none. Returns the gem count.
func (s *Stage) DetectGems(ctx context.Context) (int, error) {
	profiles, err := s.profiles.AllProfiles(ctx)
	if err != nil {
		return 0, err
	}
	industryCounts, err := s.profiles.IndustryCounts(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for i := range profiles {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		p := &profiles[i]

		if err := s.profiles.ClearGemsForDomain(ctx, p.SenderDomain); err != nil {
			return total, err
		}

		excluded, err := s.profiles.IsExcluded(ctx, p.SenderDomain)
		if err != nil {
			return total, err
		}
		if excluded {
			continue
		}

		rel := domain.RelUnknown
		if row, err := s.profiles.GetRelationship(ctx, p.SenderDomain); err == nil {
			if row.SuppressGems {
				continue
			}
			rel = row.Type
		} else if !errors.Is(err, store.ErrNotFound) {
			return total, err
		}

		gems, err := s.detectForProfile(ctx, p, rel, industryCounts)
		if err != nil {
			return total, fmt.Errorf("detect gems %s: %w", p.SenderDomain, err)
		}

		now := time.Now().UTC()
		for j := range gems {
			g := &gems[j]
			g.SenderDomain = p.SenderDomain
			g.Status = domain.GemStatusNew
			g.DetectedAt = now
			if err := s.profiles.InsertGem(ctx, g); err != nil {
				return total, err
			}
			total++
		}
	}
	return total, nil
}

func (s *Stage) detectForProfile(ctx context.Context, p *domain.SenderProfile, rel domain.RelationshipType, industryCounts map[string]int) ([]domain.Gem, error) {
	ents, err := s.entities.ForDomain(ctx, p.SenderDomain)
	if err != nil {
		return nil, err
	}

	var gems []domain.Gem
	bulkHeavy := p.BulkRatio > bulkHeavyRatio

	if !bulkHeavy {
		threadGems, err := s.detectThreadGems(ctx, p, rel)
		if err != nil {
			return nil, err
		}
		gems = append(gems, threadGems...)
		gems = append(gems, s.detectWeakMarketingLead(p, rel)...)
		gems = append(gems, s.detectIndustryIntel(p, rel, industryCounts)...)
	}
	pg, err := s.detectPartnerProgram(ctx, p, rel)
	if err != nil {
		return nil, err
	}
	gems = append(gems, pg...)
	if !bulkHeavy {
		gems = append(gems, s.detectRenewalLeverage(p, rel, ents)...)
	}
	dc, err := s.detectDistributionChannel(ctx, p, rel)
	if err != nil {
		return nil, err
	}
	gems = append(gems, dc...)
	gems = append(gems, s.detectCoMarketing(p, rel)...)
	gems = append(gems, detectProcurementSignal(p, rel, ents)...)

	return gems, nil
}

// detectThreadGems covers dormant_warm_thread and unanswered_ask, which
// both walk the domain's threads.
func (s *Stage) detectThreadGems(ctx context.Context, p *domain.SenderProfile, rel domain.RelationshipType) ([]domain.Gem, error) {
	wantDormant := eligible(domain.GemDormantWarmThread, rel)
	wantAsk := eligible(domain.GemUnansweredAsk, rel)
	if !wantDormant && !wantAsk {
		return nil, nil
	}

	threads, err := s.profiles.ThreadsForDomain(ctx, p.SenderDomain)
	if err != nil {
		return nil, err
	}

	minDormancy := s.scoring.DormantThread.MinDormancyDays
	maxDormancy := s.scoring.DormantThread.MaxDormancyDays
	if minDormancy == 0 {
		minDormancy = 14
	}
	if maxDormancy == 0 {
		maxDormancy = 365
	}

	var gems []domain.Gem
	for _, t := range threads {
		if t.AwaitingResponse != domain.AwaitingUser || !t.UserParticipated || t.MessageCount < 2 {
			continue
		}

		if wantDormant && t.DaysDormant >= minDormancy && t.DaysDormant <= maxDormancy {
			g, err := s.dormantGem(ctx, p, &t)
			if err != nil {
				return nil, err
			}
			if g != nil {
				gems = append(gems, *g)
			}
		}
		if wantAsk && t.DaysDormant >= 1 && t.DaysDormant <= 30 && t.DaysDormant < minDormancy {
			g, err := s.unansweredGem(ctx, &t)
			if err != nil {
				return nil, err
			}
			if g != nil {
				gems = append(gems, *g)
			}
		}
	}
	return gems, nil
}

// dormantGem applies the remaining dormant-thread gates: a warm-signal
// hit, no completion signal in the last three messages, and (when human
// senders are required) no transactional or re-engagement intent.
func (s *Stage) dormantGem(ctx context.Context, p *domain.SenderProfile, t *domain.Thread) (*domain.Gem, error) {
	msgs, texts, err := s.threadTexts(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	signals, boost := scanWarmSignals(texts)
	entSignals, entBoost, err := s.threadEntitySignals(ctx, msgs)
	if err != nil {
		return nil, err
	}
	signals = append(signals, entSignals...)
	if len(signals) == 0 {
		return nil, nil
	}

	// Completion veto: the newest three messages, newest first.
	recent := make([]string, 0, 3)
	for i := len(texts) - 1; i >= 0 && len(recent) < 3; i-- {
		recent = append(recent, texts[i])
	}
	if len(relationship.CompletionSignals(recent)) > 0 {
		return nil, nil
	}

	if s.scoring.DormantThread.RequireHumanSender {
		skip, err := s.threadHasIntent(ctx, msgs, domain.IntentTransactional, domain.IntentReEngagement)
		if err != nil {
			return nil, err
		}
		if skip {
			return nil, nil
		}
	}

	score := 40 + boost + entBoost
	signals = append(signals, domain.GemSignal{
		Signal: "user_participated", Evidence: "You were part of this conversation",
	})
	score += 10
	switch {
	case t.DaysDormant < 60:
		score += 15
	case t.DaysDormant < 120:
		score += 10
	}
	if t.MessageCount > 2 {
		signals = append(signals, domain.GemSignal{
			Signal:   "multi_message_thread",
			Evidence: fmt.Sprintf("%d messages exchanged", t.MessageCount),
		})
		score += 5
	}

	value := domain.ValueMedium
	if boost >= 15 {
		value = domain.ValueHigh
	} else if boost == 0 {
		value = domain.ValueLow
	}
	urgency := domain.UrgencyMedium
	if t.DaysDormant < 60 {
		urgency = domain.UrgencyHigh
	} else if t.DaysDormant > 180 {
		urgency = domain.UrgencyLow
	}

	return &domain.Gem{
		GemType:  domain.GemDormantWarmThread,
		ThreadID: t.ID,
		Score:    capScore(score),
		Explanation: domain.GemExplanation{
			GemType: string(domain.GemDormantWarmThread),
			Summary: fmt.Sprintf("Thread '%s' has been dormant for %d days. You owe a reply.",
				t.Subject, t.DaysDormant),
			Signals:        signals,
			Confidence:     0.8,
			EstimatedValue: value,
			Urgency:        urgency,
		},
		RecommendedActions: []string{"Reply to thread with new value-add"},
		SourceMessageIDs:   messageIDs(msgs),
	}, nil
}

func (s *Stage) unansweredGem(ctx context.Context, t *domain.Thread) (*domain.Gem, error) {
	msgs, _, err := s.threadTexts(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	score := 60
	signals := []domain.GemSignal{{
		Signal: "awaiting_response", Evidence: "Last message from " + t.LastSender,
	}}
	dm, err := s.threadHasDecisionMaker(ctx, msgs)
	if err != nil {
		return nil, err
	}
	if dm {
		signals = append(signals, domain.GemSignal{
			Signal: "decision_maker_present", Evidence: "Decision maker on the thread",
		})
		score += 10
	}

	return &domain.Gem{
		GemType:  domain.GemUnansweredAsk,
		ThreadID: t.ID,
		Score:    capScore(score),
		Explanation: domain.GemExplanation{
			GemType: string(domain.GemUnansweredAsk),
			Summary: fmt.Sprintf("'%s' — %s is waiting for your reply (%d days).",
				t.Subject, t.LastSender, t.DaysDormant),
			Signals:        signals,
			Confidence:     0.9,
			EstimatedValue: domain.ValueMediumHigh,
			Urgency:        domain.UrgencyHigh,
		},
		RecommendedActions: []string{"Reply promptly"},
		SourceMessageIDs:   messageIDs(msgs),
	}, nil
}

func (s *Stage) detectWeakMarketingLead(p *domain.SenderProfile, rel domain.RelationshipType) []domain.Gem {
	if !eligible(domain.GemWeakMarketingLead, rel) {
		return nil
	}
	if p.TotalMessages < 3 || p.Industry == "" {
		return nil
	}
	if p.CompanySize != domain.SizeSmall && p.CompanySize != domain.SizeMedium {
		return nil
	}
	soph := p.SophisticationAvg
	if soph > 5 {
		return nil
	}
	if len(s.scoring.TargetIndustries) > 0 && !containsFold(s.scoring.TargetIndustries, p.Industry) {
		return nil
	}

	score := 40 + int((5-soph)*5)
	var signals []domain.GemSignal
	if soph <= 3 {
		signals = append(signals, domain.GemSignal{
			Signal: "low_sophistication", Evidence: fmt.Sprintf("Marketing sophistication: %.1f/10", soph),
		})
	} else {
		signals = append(signals, domain.GemSignal{
			Signal: "moderate_sophistication", Evidence: fmt.Sprintf("Marketing sophistication: %.1f/10", soph),
		})
	}

	value := domain.ValueMedium
	if p.CompanySize == domain.SizeMedium {
		value = domain.ValueMediumHigh
	}

	return []domain.Gem{{
		GemType: domain.GemWeakMarketingLead,
		Score:   capScore(score),
		Explanation: domain.GemExplanation{
			GemType: string(domain.GemWeakMarketingLead),
			Summary: fmt.Sprintf("%s (%s) has marketing gaps you could address.",
				p.CompanyName, p.SenderDomain),
			Signals:        signals,
			Confidence:     0.7,
			EstimatedValue: value,
			Urgency:        domain.UrgencyLow,
		},
		RecommendedActions: []string{"Send audit-style outreach highlighting specific gaps"},
	}}
}

func (s *Stage) detectPartnerProgram(ctx context.Context, p *domain.SenderProfile, rel domain.RelationshipType) ([]domain.Gem, error) {
	if !eligible(domain.GemPartnerProgram, rel) {
		return nil, nil
	}
	if !p.HasPartnerProgram && p.OfferTypeDistribution[domain.OfferPartnership] == 0 {
		return nil, nil
	}

	score := 30
	signals := []domain.GemSignal{{
		Signal: "partner_program_detected", Evidence: "Partner/affiliate program links found",
	}}
	if len(p.PartnerProgramURLs) > 0 {
		signals = append(signals, domain.GemSignal{
			Signal:   "direct_urls",
			Evidence: fmt.Sprintf("%d partner program URL(s)", len(p.PartnerProgramURLs)),
		})
		score += 15
	}

	commission, err := s.domainBodyMatch(ctx, p.SenderDomain, commissionRe)
	if err != nil {
		return nil, err
	}
	if commission != "" {
		signals = append(signals, domain.GemSignal{
			Signal: "commission_terms", Evidence: commission,
		})
		score += 10
	}

	// my_vendor partner gems rank below opportunity-side ones.
	if rel == domain.RelMyVendor {
		score -= 10
	}

	return []domain.Gem{{
		GemType: domain.GemPartnerProgram,
		Score:   capScore(score),
		Explanation: domain.GemExplanation{
			GemType:        string(domain.GemPartnerProgram),
			Summary:        fmt.Sprintf("%s has a partner/affiliate program you could join.", p.CompanyName),
			Signals:        signals,
			Confidence:     0.8,
			EstimatedValue: domain.ValueMedium,
			Urgency:        domain.UrgencyLow,
		},
		RecommendedActions: []string{"Apply to partner program", "Review commission structure"},
	}}, nil
}

func (s *Stage) detectRenewalLeverage(p *domain.SenderProfile, rel domain.RelationshipType, ents []domain.ExtractedEntity) []domain.Gem {
	if !eligible(domain.GemRenewalLeverage, rel) {
		return nil
	}
	if p.SenderIntent != domain.IntentTransactional {
		return nil
	}

	now := time.Now().UTC()
	var futureDates []string
	var nearest time.Time
	for _, e := range ents {
		if e.EntityType != domain.EntityDate || !strings.HasSuffix(e.Normalized, ":future") {
			continue
		}
		if !isRenewalBucket(e.Normalized) {
			continue
		}
		futureDates = append(futureDates, e.Value)
		if t, ok := entities.ParseDate(e.Value, now); ok {
			if nearest.IsZero() || t.Before(nearest) {
				nearest = t
			}
		}
	}
	if len(futureDates) == 0 {
		return nil
	}

	score := 40
	signals := []domain.GemSignal{{
		Signal:   "renewal_dates",
		Evidence: "Renewal dates found: " + strings.Join(futureDates, ", "),
	}}
	score += 20

	value := domain.ValueMedium
	if len(p.MonetarySignals) > 0 {
		signals = append(signals, domain.GemSignal{
			Signal: "monetary_context", Evidence: strings.Join(p.MonetarySignals, ", "),
		})
		value = domain.ValueHigh
		score += 10
	}

	urgency := domain.UrgencyLow
	if !nearest.IsZero() {
		days := int(nearest.Sub(now).Hours() / 24)
		switch {
		case days <= 30:
			urgency = domain.UrgencyHigh
		case days <= 60:
			urgency = domain.UrgencyMedium
		}
	}

	return []domain.Gem{{
		GemType: domain.GemRenewalLeverage,
		Score:   capScore(score),
		Explanation: domain.GemExplanation{
			GemType: string(domain.GemRenewalLeverage),
			Summary: fmt.Sprintf("Upcoming renewal window with %s — negotiation opportunity.",
				p.CompanyName),
			Signals:        signals,
			Confidence:     0.75,
			EstimatedValue: value,
			Urgency:        urgency,
		},
		RecommendedActions: []string{"Prepare negotiation strategy", "Research competitive alternatives"},
	}}
}

func (s *Stage) detectDistributionChannel(ctx context.Context, p *domain.SenderProfile, rel domain.RelationshipType) ([]domain.Gem, error) {
	if !eligible(domain.GemDistributionChannel, rel) {
		return nil, nil
	}
	switch p.SenderIntent {
	case domain.IntentNewsletter, domain.IntentEventInvitation, domain.IntentCommunity:
	default:
		return nil, nil
	}
	if p.TotalMessages < 5 {
		return nil, nil
	}

	score := 30
	signals := []domain.GemSignal{{
		Signal: "distribution_channel", Evidence: "Sender is a newsletter/event/community",
	}}
	if p.TotalMessages > 10 {
		signals = append(signals, domain.GemSignal{
			Signal:   "active_publication",
			Evidence: fmt.Sprintf("%d messages received", p.TotalMessages),
		})
		score += 15
	}

	for _, re := range distributionSignals {
		hit, err := s.domainBodyMatch(ctx, p.SenderDomain, re)
		if err != nil {
			return nil, err
		}
		if hit != "" {
			signals = append(signals, domain.GemSignal{
				Signal: "content_opportunity", Evidence: hit,
			})
			score += 15
			break
		}
	}

	value := domain.ValueLow
	if p.TotalMessages > 10 {
		value = domain.ValueMedium
	}

	return []domain.Gem{{
		GemType: domain.GemDistributionChannel,
		Score:   capScore(score),
		Explanation: domain.GemExplanation{
			GemType: string(domain.GemDistributionChannel),
			Summary: fmt.Sprintf("%s could amplify your reach through their audience.",
				p.CompanyName),
			Signals:        signals,
			Confidence:     0.65,
			EstimatedValue: value,
			Urgency:        domain.UrgencyLow,
		},
		RecommendedActions: []string{"Pitch guest content or sponsorship"},
	}}, nil
}

var audienceStopWords = map[string]bool{
	"and": true, "the": true, "for": true, "to": true, "of": true,
	"a": true, "an": true, "in": true, "on": true, "with": true,
	"who": true, "that": true, "are": true, "is": true,
}

func (s *Stage) detectCoMarketing(p *domain.SenderProfile, rel domain.RelationshipType) []domain.Gem {
	if !eligible(domain.GemCoMarketing, rel) {
		return nil
	}
	if p.Industry == "" || p.TargetAudience == "" || p.CompanySize == domain.SizeEnterprise {
		return nil
	}
	if s.engage.YourAudience == "" {
		return nil
	}

	overlap := keywordOverlap(s.engage.YourAudience, p.TargetAudience)
	if len(overlap) < 2 {
		return nil
	}

	signals := []domain.GemSignal{
		{Signal: "audience_overlap", Evidence: "Shared keywords: " + strings.Join(overlap, ", ")},
		{Signal: "target_audience", Evidence: p.TargetAudience},
	}
	score := 35 + len(overlap)*5

	hasDistribution := false
	for _, k := range []string{domain.OfferNewsletter, domain.OfferEvent, domain.OfferWebinar} {
		if p.OfferTypeDistribution[k] > 0 {
			hasDistribution = true
			break
		}
	}
	if hasDistribution || p.TotalMessages >= 5 {
		if hasDistribution {
			signals = append(signals, domain.GemSignal{
				Signal: "has_distribution", Evidence: "Has newsletter/event distribution",
			})
		}
		score += 10
	}

	return []domain.Gem{{
		GemType: domain.GemCoMarketing,
		Score:   capScore(score),
		Explanation: domain.GemExplanation{
			GemType: string(domain.GemCoMarketing),
			Summary: fmt.Sprintf("%s targets a similar audience — co-marketing opportunity.",
				p.CompanyName),
			Signals:        signals,
			Confidence:     0.6,
			EstimatedValue: domain.ValueMedium,
			Urgency:        domain.UrgencyLow,
		},
		RecommendedActions: []string{"Propose co-marketing campaign", "Explore content collaboration"},
	}}
}

func (s *Stage) detectIndustryIntel(p *domain.SenderProfile, rel domain.RelationshipType, industryCounts map[string]int) []domain.Gem {
	if !eligible(domain.GemIndustryIntel, rel) {
		return nil
	}
	if p.Industry == "" || industryCounts[p.Industry] < saturatedIndustryThreshold {
		return nil
	}

	return []domain.Gem{{
		GemType: domain.GemIndustryIntel,
		Score:   20,
		Explanation: domain.GemExplanation{
			GemType: string(domain.GemIndustryIntel),
			Summary: fmt.Sprintf("%s provides market intelligence for the %s industry.",
				p.CompanyName, p.Industry),
			Signals: []domain.GemSignal{{
				Signal:   "industry_saturation",
				Evidence: fmt.Sprintf("%d senders profiled in %s", industryCounts[p.Industry], p.Industry),
			}},
			Confidence:     0.5,
			EstimatedValue: domain.ValueLow,
			Urgency:        domain.UrgencyLow,
		},
		RecommendedActions: []string{"Include in industry analysis report"},
	}}
}

func detectProcurementSignal(p *domain.SenderProfile, rel domain.RelationshipType, ents []domain.ExtractedEntity) []domain.Gem {
	if !eligible(domain.GemProcurementSignal, rel) {
		return nil
	}

	var signals []domain.GemSignal
	securityReview := false
	for _, e := range ents {
		if e.EntityType != domain.EntityProcurement {
			continue
		}
		if e.Normalized == domain.ProcurementSecurityReview {
			securityReview = true
		}
		if len(signals) < 5 {
			signals = append(signals, domain.GemSignal{
				Signal: "procurement_keyword", Evidence: e.Value,
			})
		}
	}
	if len(signals) == 0 {
		return nil
	}

	score := 50
	if securityReview {
		score += 15
	}

	return []domain.Gem{{
		GemType: domain.GemProcurementSignal,
		Score:   capScore(score),
		Explanation: domain.GemExplanation{
			GemType:        string(domain.GemProcurementSignal),
			Summary:        fmt.Sprintf("Procurement signals detected from %s.", p.CompanyName),
			Signals:        signals,
			Confidence:     0.7,
			EstimatedValue: domain.ValueHigh,
			Urgency:        domain.UrgencyHigh,
		},
		RecommendedActions: []string{"Review procurement context", "Prepare response if applicable"},
	}}
}

// --- helpers ---

// threadTexts returns a thread's messages with their best body text,
// oldest first.
func (s *Stage) threadTexts(ctx context.Context, threadID string) ([]domain.Message, []string, error) {
	msgs, err := s.messages.MessagesForThread(ctx, threadID)
	if err != nil {
		return nil, nil, err
	}
	texts := make([]string, len(msgs))
	for i := range msgs {
		pc, err := s.content.Get(ctx, msgs[i].ID)
		switch {
		case err == nil && pc.BodyClean != "":
			texts[i] = pc.BodyClean
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return nil, nil, err
		default:
			texts[i] = msgs[i].Body()
		}
	}
	return msgs, texts, nil
}

// scanWarmSignals scores thread texts against the warm-signal table.
func scanWarmSignals(texts []string) ([]domain.GemSignal, int) {
	var signals []domain.GemSignal
	boost := 0
	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, cat := range warmCategories {
			for _, re := range cat.patterns {
				m := re.FindString(text)
				if m == "" {
					continue
				}
				signals = append(signals, domain.GemSignal{
					Signal: "warm_" + cat.name, Evidence: truncate(m, 80),
				})
				boost += cat.boost
				break
			}
		}
	}
	if boost > warmBoostCap {
		boost = warmBoostCap
	}
	return signals, boost
}

// threadEntitySignals cross-references thread entities: money adds 10,
// a decision-maker person adds 8, each at most once.
func (s *Stage) threadEntitySignals(ctx context.Context, msgs []domain.Message) ([]domain.GemSignal, int, error) {
	var signals []domain.GemSignal
	boost := 0
	sawMoney, sawDM := false, false
	for i := range msgs {
		ents, err := s.entities.ForMessage(ctx, msgs[i].ID)
		if err != nil {
			return nil, 0, err
		}
		for _, e := range ents {
			switch {
			case e.EntityType == domain.EntityMoney && !sawMoney:
				sawMoney = true
				signals = append(signals, domain.GemSignal{
					Signal: "warm_budget_indicator", Evidence: e.Value,
				})
				boost += 10
			case e.EntityType == domain.EntityPerson && !sawDM &&
				strings.Contains(e.Context, domain.PersonDecisionMaker):
				sawDM = true
				signals = append(signals, domain.GemSignal{
					Signal: "warm_decision_maker", Evidence: e.Value,
				})
				boost += 8
			}
		}
	}
	return signals, boost, nil
}

func (s *Stage) threadHasDecisionMaker(ctx context.Context, msgs []domain.Message) (bool, error) {
	for i := range msgs {
		ents, err := s.entities.ForMessage(ctx, msgs[i].ID)
		if err != nil {
			return false, err
		}
		for _, e := range ents {
			if e.EntityType == domain.EntityPerson &&
				strings.Contains(e.Context, domain.PersonDecisionMaker) {
				return true, nil
			}
		}
	}
	return false, nil
}

// threadHasIntent reports whether any message classification on the
// thread carries one of the given intents.
func (s *Stage) threadHasIntent(ctx context.Context, msgs []domain.Message, intents ...domain.SenderIntent) (bool, error) {
	for i := range msgs {
		c, err := s.classify.Get(ctx, msgs[i].ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		for _, intent := range intents {
			if c.SenderIntent == intent {
				return true, nil
			}
		}
	}
	return false, nil
}

// domainBodyMatch returns the first regex hit across a domain's clean
// bodies, truncated for use as evidence.
func (s *Stage) domainBodyMatch(ctx context.Context, senderDomain string, re *regexp.Regexp) (string, error) {
	contents, err := s.content.ForDomain(ctx, senderDomain)
	if err != nil {
		return "", err
	}
	for _, c := range contents {
		if m := re.FindString(c.BodyClean); m != "" {
			return truncate(m, 80), nil
		}
	}
	return "", nil
}

func keywordOverlap(a, b string) []string {
	setA := tokenize(a)
	var out []string
	seen := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(b)) {
		w = strings.Trim(w, ".,;:!?")
		if setA[w] && !audienceStopWords[w] && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func tokenize(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?")
		if w != "" && !audienceStopWords[w] {
			out[w] = true
		}
	}
	return out
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func messageIDs(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i := range msgs {
		out[i] = msgs[i].ID
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func capScore(score int) float64 {
	if score > 100 {
		score = 100
	}
	return float64(score)
}
