// Package profile aggregates every upstream stage into per-domain sender
// profiles and mines them for gems: concrete commercial opportunities.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gemsieve/gemsieve/internal/config"
	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/pkg/logger"
	"github.com/gemsieve/gemsieve/internal/relationship"
	"github.com/gemsieve/gemsieve/internal/store"
)

// Stage builds sender profiles and detects gems. The relationship
// detector is optional; when present, Run re-classifies relationships
// between the profile and gem passes.
type Stage struct {
	profiles *store.ProfileRepo
	messages *store.MessageRepo
	metadata *store.MetadataRepo
	content  *store.ContentRepo
	entities *store.EntityRepo
	classify *store.ClassifyRepo
	detector *relationship.Detector
	scoring  config.ScoringConfig
	engage   config.EngagementConfig
	log      *logger.Logger
}

// NewStage wires the profile stage over the shared repositories.
func NewStage(
	profiles *store.ProfileRepo,
	messages *store.MessageRepo,
	metadata *store.MetadataRepo,
	content *store.ContentRepo,
	entities *store.EntityRepo,
	classify *store.ClassifyRepo,
	detector *relationship.Detector,
	scoring config.ScoringConfig,
	engage config.EngagementConfig,
) *Stage {
	return &Stage{
		profiles: profiles,
		messages: messages,
		metadata: metadata,
		content:  content,
		entities: entities,
		classify: classify,
		detector: detector,
		scoring:  scoring,
		engage:   engage,
		log:      logger.WithComponent("profile"),
	}
}

// Run builds all profiles, refreshes auto-detected relationships, and
// re-detects gems. Returns the number of profiles built.
func (s *Stage) Run(ctx context.Context) (int, error) {
	built, err := s.BuildProfiles(ctx)
	if err != nil {
		return built, err
	}
	if s.detector != nil {
		proposals, err := s.detector.DetectAll(ctx, true)
		if err != nil {
			return built, fmt.Errorf("relationship pass: %w", err)
		}
		// The build pass stamped each profile from the pre-pass row;
		// refresh the displayed type from the rows just written.
		for _, p := range proposals {
			rel, err := s.profiles.GetRelationship(ctx, p.SenderDomain)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return built, err
			}
			if err := s.profiles.UpdateProfileRelationship(ctx, p.SenderDomain, rel.Type); err != nil {
				return built, err
			}
		}
	}
	gems, err := s.DetectGems(ctx)
	if err != nil {
		return built, err
	}
	s.log.Info("profile stage complete", "profiles", built, "gems", gems)
	return built, nil
}

// BuildProfiles aggregates every sender domain with at least one parsed
// message into a profile row. Rebuilding is idempotent.
func (s *Stage) BuildProfiles(ctx context.Context) (int, error) {
	domains, err := s.metadata.Domains(ctx)
	if err != nil {
		return 0, err
	}

	built := 0
	for _, d := range domains {
		if err := ctx.Err(); err != nil {
			return built, err
		}
		if err := s.buildOne(ctx, d); err != nil {
			return built, fmt.Errorf("build profile %s: %w", d, err)
		}
		built++
	}
	return built, nil
}

func (s *Stage) buildOne(ctx context.Context, senderDomain string) error {
	msgs, err := s.messages.MessagesForDomain(ctx, senderDomain)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	meta, err := s.metadata.ForDomain(ctx, senderDomain)
	if err != nil {
		return err
	}
	// ForDomain returns newest first; reverse for chronological trend math.
	classifications, err := s.classify.ForDomain(ctx, senderDomain)
	if err != nil {
		return err
	}
	chrono := make([]domain.Classification, len(classifications))
	for i := range classifications {
		chrono[len(classifications)-1-i] = classifications[i]
	}

	contents, err := s.content.ForDomain(ctx, senderDomain)
	if err != nil {
		return err
	}
	ents, err := s.entities.ForDomain(ctx, senderDomain)
	if err != nil {
		return err
	}

	p := &domain.SenderProfile{
		SenderDomain: senderDomain,
		PrimaryEmail: msgs[0].FromEmail,
		ReplyToEmail: msgs[0].ReplyTo,
		CompanyName:  inferCompanyName(senderDomain, msgs),
		FirstContact: msgs[0].Date,
		LastContact:  msgs[len(msgs)-1].Date,
		BuiltAt:      time.Now().UTC(),
	}
	p.TotalMessages = len(msgs)

	s.applyClassifications(p, chrono)
	maxComplexity := s.applyContent(p, contents)
	s.applyEntities(p, ents)
	s.applyMetadata(p, meta)

	if temporal, err := s.metadata.GetTemporal(ctx, senderDomain); err == nil {
		p.AvgFrequencyDays = temporal.AvgFrequencyDays
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if err := s.applyThreadMetrics(ctx, p); err != nil {
		return err
	}

	if rel, err := s.profiles.GetRelationship(ctx, senderDomain); err == nil {
		p.RelationshipType = rel.Type
	} else if errors.Is(err, store.ErrNotFound) {
		p.RelationshipType = domain.RelUnknown
	} else {
		return err
	}

	p.HasPartnerProgram = len(p.PartnerProgramURLs) > 0 || p.HasPartnerProgram

	det := deterministicSophistication(p, meta, maxComplexity)
	p.SophisticationDet = det
	if p.SophisticationAI != nil {
		p.SophisticationAvg = 0.6*float64(det) + 0.4**p.SophisticationAI
	} else {
		p.SophisticationAvg = float64(det)
	}

	return s.profiles.UpsertProfile(ctx, p)
}

// applyClassifications folds AI classifications into the profile:
// majority votes for categorical fields, most-recent-non-empty for
// descriptive ones, boolean OR for the flags.
func (s *Stage) applyClassifications(p *domain.SenderProfile, chrono []domain.Classification) {
	var industries, sizes, productTypes, intents []string
	var sophScores []float64

	for _, c := range chrono {
		industries = append(industries, c.Industry)
		sizes = append(sizes, string(c.CompanySize))
		productTypes = append(productTypes, c.ProductType)
		intents = append(intents, string(c.SenderIntent))
		if c.Sophistication > 0 {
			sophScores = append(sophScores, float64(c.Sophistication))
		}
		if c.ProductDescription != "" {
			p.ProductDescription = c.ProductDescription
		}
		if c.TargetAudience != "" {
			p.TargetAudience = c.TargetAudience
		}
		if len(c.PainPoints) > 0 {
			p.PainPoints = c.PainPoints
		}
		if c.PartnerProgramDetected {
			p.HasPartnerProgram = true
		}
	}

	p.Industry = majorityVote(industries)
	p.CompanySize = domain.CompanySize(majorityVote(sizes))
	p.ProductType = majorityVote(productTypes)
	p.SenderIntent = domain.SenderIntent(majorityVote(intents))

	if len(sophScores) > 0 {
		avg := mean(sophScores)
		p.SophisticationAI = &avg
	}
	p.SophTrend = sophisticationTrend(sophScores)
}

// applyContent folds per-message content analysis into distributions.
// Returns the highest template complexity seen, for deterministic
// sophistication scoring.
func (s *Stage) applyContent(p *domain.SenderProfile, contents []domain.ParsedContent) int {
	maxComplexity := 0
	offers := map[string]int{}
	seenCTA := map[string]bool{}
	seenUTM := map[string]bool{}
	seenPartner := map[string]bool{}
	socials := map[string]string{}

	for _, c := range contents {
		for _, o := range c.OfferTypes {
			offers[o]++
		}
		for _, cta := range c.CTATexts {
			if !seenCTA[cta] && len(p.CTATexts) < 50 {
				seenCTA[cta] = true
				p.CTATexts = append(p.CTATexts, cta)
			}
		}
		for _, u := range c.UTMCampaigns {
			if !seenUTM[u] {
				seenUTM[u] = true
				p.UTMCampaignNames = append(p.UTMCampaignNames, u)
			}
		}
		for _, u := range c.LinkIntents[domain.LinkIntentPartner] {
			if !seenPartner[u] {
				seenPartner[u] = true
				p.PartnerProgramURLs = append(p.PartnerProgramURLs, u)
			}
		}
		if c.HasPersonalization {
			p.HasPersonalization = true
		}
		if c.PhysicalAddress != "" {
			p.PhysicalAddress = c.PhysicalAddress
		}
		for k, v := range c.SocialLinks {
			socials[k] = v
		}
		if c.TemplateComplexity > maxComplexity {
			maxComplexity = c.TemplateComplexity
		}
	}

	if len(offers) > 0 {
		p.OfferTypeDistribution = offers
	}
	if len(socials) > 0 {
		p.SocialLinks = socials
	}
	return maxComplexity
}

// contactRank orders known contacts by outreach usefulness.
var contactRank = map[string]int{
	domain.PersonDecisionMaker: 0,
	domain.PersonPeer:          1,
	domain.PersonVendorContact: 2,
	domain.PersonAutomated:     3,
}

// applyEntities folds extracted entities into contacts, monetary
// signals, and renewal dates.
func (s *Stage) applyEntities(p *domain.SenderProfile, ents []domain.ExtractedEntity) {
	seenPerson := map[string]bool{}
	seenMoney := map[string]bool{}
	seenDate := map[string]bool{}

	for _, e := range ents {
		switch e.EntityType {
		case domain.EntityPerson:
			if seenPerson[e.Value] {
				continue
			}
			seenPerson[e.Value] = true
			contact := domain.Contact{Name: e.Value, Role: personClass(e.Context)}
			if strings.Contains(e.Normalized, "@") {
				contact.Email = e.Normalized
			}
			p.KnownContacts = append(p.KnownContacts, contact)
		case domain.EntityMoney:
			if !seenMoney[e.Value] {
				seenMoney[e.Value] = true
				p.MonetarySignals = append(p.MonetarySignals, e.Value)
			}
		case domain.EntityDate:
			if isRenewalBucket(e.Normalized) && !seenDate[e.Value] {
				seenDate[e.Value] = true
				p.RenewalDates = append(p.RenewalDates, e.Value)
			}
		}
	}

	sort.SliceStable(p.KnownContacts, func(i, j int) bool {
		return contactRank[p.KnownContacts[i].Role] < contactRank[p.KnownContacts[j].Role]
	})
}

// applyMetadata fills ESP, authentication quality, the unsubscribe URL,
// and the bulk ratio from header forensics.
func (s *Stage) applyMetadata(p *domain.SenderProfile, meta []domain.ParsedMetadata) {
	if len(meta) == 0 {
		return
	}

	bulk := 0
	authRow := &meta[0]
	for i := range meta {
		m := &meta[i]
		if m.IsBulk {
			bulk++
		}
		if p.ESPUsed == "" && m.ESPIdentified != "" {
			p.ESPUsed = m.ESPIdentified
		}
		if p.UnsubscribeURL == "" && m.ListUnsubscribeURL != "" {
			p.UnsubscribeURL = m.ListUnsubscribeURL
		}
		if m.SPFResult != "" || m.DMARCResult != "" || m.DKIMDomain != "" {
			authRow = m
		}
	}
	p.BulkRatio = float64(bulk) / float64(len(meta))
	p.AuthQuality = authQuality(authRow)
}

// authQuality grades the SPF/DKIM/DMARC posture of a sender.
func authQuality(m *domain.ParsedMetadata) string {
	passing := 0
	if m.SPFResult == "pass" {
		passing++
	}
	if m.DMARCResult == "pass" {
		passing++
	}
	hasDKIM := m.DKIMDomain != ""
	switch {
	case passing == 2 && hasDKIM:
		return domain.AuthExcellent
	case passing >= 1 || hasDKIM:
		return domain.AuthGood
	default:
		return domain.AuthPoor
	}
}

// applyThreadMetrics computes thread_initiation_ratio (fraction of
// threads the user started) and user_reply_rate (fraction the user
// participated in).
func (s *Stage) applyThreadMetrics(ctx context.Context, p *domain.SenderProfile) error {
	threads, err := s.profiles.ThreadsForDomain(ctx, p.SenderDomain)
	if err != nil {
		return err
	}
	if len(threads) == 0 {
		return nil
	}

	initiated, participated := 0, 0
	for _, t := range threads {
		if t.UserParticipated {
			participated++
		}
		msgs, err := s.messages.MessagesForThread(ctx, t.ID)
		if err != nil {
			return err
		}
		if len(msgs) > 0 && msgs[0].IsSentByUser {
			initiated++
		}
	}

	initRatio := float64(initiated) / float64(len(threads))
	replyRate := float64(participated) / float64(len(threads))
	p.ThreadInitiationRatio = &initRatio
	p.UserReplyRate = &replyRate
	return nil
}

// majorityVote returns the most common non-empty value. Ties break on
// first occurrence.
func majorityVote(values []string) string {
	counts := map[string]int{}
	best, bestN := "", 0
	for _, v := range values {
		if v == "" {
			continue
		}
		counts[v]++
		if counts[v] > bestN {
			best, bestN = v, counts[v]
		}
	}
	return best
}

// inferCompanyName prefers the most common human sender display name,
// falling back to a title-cased first domain label.
func inferCompanyName(senderDomain string, msgs []domain.Message) string {
	counts := map[string]int{}
	best, bestN := "", 0
	for _, m := range msgs {
		name := m.FromName
		if name == "" || strings.Contains(name, "@") {
			continue
		}
		counts[name]++
		if counts[name] > bestN {
			best, bestN = name, counts[name]
		}
	}
	if best != "" {
		return best
	}

	label, _, _ := strings.Cut(senderDomain, ".")
	if label == "" {
		return senderDomain
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// sophisticationTrend compares the halves of the chronological score
// series; a gap above one point marks a direction.
func sophisticationTrend(scores []float64) string {
	if len(scores) < 3 {
		return domain.TrendStable
	}
	half := len(scores) / 2
	first := mean(scores[:half])
	second := mean(scores[half:])
	switch {
	case second-first > 1:
		return domain.TrendImproving
	case first-second > 1:
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// personClass pulls the contact class out of an entity context, which
// may carry surrounding evidence alongside the class word.
func personClass(ctx string) string {
	for class := range contactRank {
		if strings.Contains(ctx, class) {
			return class
		}
	}
	return domain.PersonPeer
}

func isRenewalBucket(normalized string) bool {
	return strings.HasPrefix(normalized, "renewal") ||
		strings.HasPrefix(normalized, "expiration")
}
