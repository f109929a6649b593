package relationship

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/pkg/logger"
	"github.com/gemsieve/gemsieve/internal/store"
)

// applyThreshold is the minimum confidence for auto-detect writes.
const applyThreshold = 0.6

var vendorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(invoice|receipt|payment|subscription|billing|renewal)\b`),
	regexp.MustCompile(`(?i)\byour (account|plan|subscription|license|trial)\b`),
	regexp.MustCompile(`(?i)\bservice (update|notification|alert)\b`),
	regexp.MustCompile(`(?i)\b(onboarding|getting started|welcome to)\b`),
	regexp.MustCompile(`(?i)\b(support ticket|case #|helpdesk)\b`),
}

var prospectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\binterested in (your|learning about)\b`),
	regexp.MustCompile(`(?i)\bcan you (help|tell me|share)\b`),
	regexp.MustCompile(`(?i)\blooking for (a|an|someone|help)\b`),
	regexp.MustCompile(`(?i)\breferr(ed|al) (by|from)\b`),
	regexp.MustCompile(`(?i)\bsaw your (work|talk|article|post)\b`),
}

var sellingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bI (wanted to|thought you|noticed your)\b`),
	regexp.MustCompile(`(?i)\b(quick question|touching base|reaching out)\b`),
	regexp.MustCompile(`(?i)\bbook a (demo|call|meeting)\b`),
	regexp.MustCompile(`(?i)\b(free trial|special offer|limited time)\b`),
	regexp.MustCompile(`(?i)\bwould you be (open|interested)\b`),
}

var completionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bfinal (deliverable|report|version)\b`),
	regexp.MustCompile(`(?i)\bproject (complete|finished|wrapped)\b`),
	regexp.MustCompile(`(?i)\bgreat working with you\b`),
	regexp.MustCompile(`(?i)\bcontract (ended|expired|concluded)\b`),
	regexp.MustCompile(`(?i)\b(closing out|wrapping up)\b`),
	regexp.MustCompile(`(?i)\ball set,?\s*thanks\b`),
	regexp.MustCompile(`(?i)\bthank(s| you) for (everything|the help|your (work|help))\b`),
	regexp.MustCompile(`(?i)\bengagement (complete|concluded)\b`),
}

// CompletionSignals scans message texts (newest first, callers pass the
// last three of a thread) for business-concluded phrasing.
func CompletionSignals(texts []string) []string {
	var found []string
	for _, text := range texts {
		for _, p := range completionPatterns {
			if m := p.FindString(text); m != "" {
				found = append(found, m)
			}
		}
	}
	return found
}

// Signal is one piece of detection evidence.
type Signal struct {
	Signal   string `json:"signal"`
	Evidence string `json:"evidence,omitempty"`
}

// Proposal is one domain's proposed relationship classification.
type Proposal struct {
	SenderDomain string                  `json:"sender_domain"`
	Proposed     domain.RelationshipType `json:"proposed_type"`
	Confidence   float64                 `json:"confidence"`
	Suppress     bool                    `json:"suppress"`
	Signals      []Signal                `json:"signals"`
}

// Detector classifies profiled senders by relationship direction.
type Detector struct {
	profiles *store.ProfileRepo
	content  *store.ContentRepo
	classify *store.ClassifyRepo
	known    *domain.KnownEntities
	log      *logger.Logger
}

// NewDetector creates the relationship detector.
func NewDetector(profiles *store.ProfileRepo, content *store.ContentRepo,
	classify *store.ClassifyRepo, known *domain.KnownEntities) *Detector {
	if known == nil {
		known = &domain.KnownEntities{}
	}
	return &Detector{
		profiles: profiles,
		content:  content,
		classify: classify,
		known:    known,
		log:      logger.WithComponent("relationship"),
	}
}

// DetectAll proposes a relationship for every profiled sender. With apply
// set, proposals at or above 0.6 confidence are written; manual rows are
// never overwritten.
func (d *Detector) DetectAll(ctx context.Context, apply bool) ([]Proposal, error) {
	profiles, err := d.profiles.AllProfiles(ctx)
	if err != nil {
		return nil, err
	}

	var proposals []Proposal
	applied := 0
	for i := range profiles {
		if err := ctx.Err(); err != nil {
			return proposals, err
		}
		p, err := d.classifyOne(ctx, &profiles[i])
		if err != nil {
			return proposals, err
		}
		proposals = append(proposals, *p)

		if !apply || p.Confidence < applyThreshold {
			continue
		}
		existing, err := d.profiles.GetRelationship(ctx, p.SenderDomain)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return proposals, err
		}
		if existing != nil && existing.Source == domain.RelSourceManual {
			continue
		}
		if err := d.profiles.SetRelationship(ctx, &domain.SenderRelationship{
			SenderDomain: p.SenderDomain,
			Type:         p.Proposed,
			Confidence:   p.Confidence,
			SuppressGems: p.Suppress,
			Source:       domain.RelSourceAutoDetected,
			Note:         autoNote(p.Signals),
			UpdatedAt:    time.Now().UTC(),
		}); err != nil {
			return proposals, err
		}
		applied++
	}

	if apply {
		d.log.Info("relationship detection applied",
			"proposals", len(proposals), "written", applied)
	}
	return proposals, nil
}

func (d *Detector) classifyOne(ctx context.Context, p *domain.SenderProfile) (*Proposal, error) {
	out := &Proposal{SenderDomain: p.SenderDomain}

	// Existing rows win outright, whatever their source.
	existing, err := d.profiles.GetRelationship(ctx, p.SenderDomain)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		out.Proposed = existing.Type
		out.Confidence = 1.0
		out.Suppress = existing.SuppressGems
		out.Signals = []Signal{{Signal: "existing_classification"}}
		return out, nil
	}

	if category, ok := MatchKnownEntity(p.SenderDomain, d.known); ok {
		out.Proposed = categoryRelationship[category]
		out.Confidence = 0.9
		out.Suppress = category == catInfrastructure || category == catInstitutional || category == catSuppressed
		out.Signals = []Signal{{Signal: "known_entity:" + category, Evidence: p.SenderDomain}}
		return out, nil
	}

	bodies, err := d.domainBodies(ctx, p.SenderDomain)
	if err != nil {
		return nil, err
	}
	segments, err := d.segmentNames(ctx, p.SenderDomain)
	if err != nil {
		return nil, err
	}
	coldIntents, err := d.coldOutreachCount(ctx, p.SenderDomain)
	if err != nil {
		return nil, err
	}

	vendorScore, vendorSignals := scanVendor(p, bodies, segments)
	prospectScore, prospectSignals := scanProspect(p, bodies)
	sellingScore, sellingSignals := scanSelling(p, bodies, coldIntents)

	best := domain.RelMyVendor
	bestScore := vendorScore
	bestSignals := vendorSignals
	if prospectScore > bestScore {
		best, bestScore, bestSignals = domain.RelInboundProspect, prospectScore, prospectSignals
	}
	if sellingScore > bestScore {
		best, bestScore, bestSignals = domain.RelSellingToMe, sellingScore, sellingSignals
	}

	if bestScore >= 0.3 {
		out.Proposed = best
		out.Confidence = bestScore
		out.Suppress = best == domain.RelMyInfrastructure || best == domain.RelInstitutional
		out.Signals = bestSignals
		return out, nil
	}

	// Weak direct signals: fall back on segment and engagement shape.
	if contains(segments, "distribution_map") {
		out.Proposed = domain.RelCommunity
		out.Confidence = 0.6
		out.Signals = []Signal{{Signal: "distribution_segment"}}
		return out, nil
	}
	if p.ThreadInitiationRatio != nil && p.UserReplyRate != nil {
		init, reply := *p.ThreadInitiationRatio, *p.UserReplyRate
		if init > 0.2 && init < 0.8 && reply > 0.5 {
			out.Proposed = domain.RelWarmContact
			out.Confidence = 0.5
			out.Signals = []Signal{{
				Signal:   "bidirectional_engagement",
				Evidence: fmt.Sprintf("initiation=%.2f, reply_rate=%.2f", init, reply),
			}}
			return out, nil
		}
	}

	out.Proposed = domain.RelUnknown
	out.Confidence = 0.2
	return out, nil
}

// domainBodies returns up to 10 clean bodies for a sender domain.
func (d *Detector) domainBodies(ctx context.Context, senderDomain string) ([]string, error) {
	contents, err := d.content.ForDomain(ctx, senderDomain)
	if err != nil {
		return nil, err
	}
	if len(contents) > 10 {
		contents = contents[:10]
	}
	bodies := make([]string, 0, len(contents))
	for _, c := range contents {
		bodies = append(bodies, c.BodyClean)
	}
	return bodies, nil
}

func (d *Detector) segmentNames(ctx context.Context, senderDomain string) ([]string, error) {
	segs, err := d.profiles.SegmentsForDomain(ctx, senderDomain)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(segs))
	for _, s := range segs {
		names = append(names, s.Segment)
	}
	return names, nil
}

func (d *Detector) coldOutreachCount(ctx context.Context, senderDomain string) (int, error) {
	cs, err := d.classify.ForDomain(ctx, senderDomain)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range cs {
		if c.SenderIntent == domain.IntentColdOutreach {
			n++
		}
	}
	return n, nil
}

func scanVendor(p *domain.SenderProfile, bodies, segments []string) (float64, []Signal) {
	var signals []Signal
	score := 0.0

	// The user starting most threads means the user reaches out to them.
	if p.ThreadInitiationRatio != nil && *p.ThreadInitiationRatio > 0.7 {
		signals = append(signals, Signal{
			Signal:   "user_initiates_contact",
			Evidence: fmt.Sprintf("ratio=%.2f", *p.ThreadInitiationRatio),
		})
		score += 0.3
	}

	hits := 0
	for _, body := range bodies {
		for _, pat := range vendorPatterns {
			if m := pat.FindString(body); m != "" {
				hits++
				if len(signals) < 5 {
					signals = append(signals, Signal{Signal: "vendor_content", Evidence: m})
				}
				break
			}
		}
	}
	if hits >= 3 {
		score += 0.4
	} else if hits >= 1 {
		score += 0.2
	}

	if contains(segments, "spend_map") {
		signals = append(signals, Signal{Signal: "spend_map_segment"})
		score += 0.2
	}
	return capScore(score), signals
}

func scanProspect(p *domain.SenderProfile, bodies []string) (float64, []Signal) {
	var signals []Signal
	score := 0.0

	if p.ThreadInitiationRatio != nil && *p.ThreadInitiationRatio < 0.3 {
		signals = append(signals, Signal{
			Signal:   "they_initiate_contact",
			Evidence: fmt.Sprintf("ratio=%.2f", *p.ThreadInitiationRatio),
		})
		score += 0.2
	}
	if p.UserReplyRate != nil && *p.UserReplyRate > 0.5 {
		signals = append(signals, Signal{
			Signal:   "high_user_engagement",
			Evidence: fmt.Sprintf("reply_rate=%.2f", *p.UserReplyRate),
		})
		score += 0.2
	}

	for _, body := range bodies {
		for _, pat := range prospectPatterns {
			if m := pat.FindString(body); m != "" {
				signals = append(signals, Signal{Signal: "prospect_language", Evidence: m})
				score += 0.3
				break
			}
		}
	}

	if (p.CompanySize == domain.SizeSmall || p.CompanySize == "") && p.TotalMessages <= 5 {
		signals = append(signals, Signal{Signal: "small_unknown_company"})
		score += 0.1
	}
	return capScore(score), signals
}

func scanSelling(p *domain.SenderProfile, bodies []string, coldIntents int) (float64, []Signal) {
	var signals []Signal
	score := 0.0

	if p.UserReplyRate != nil && *p.UserReplyRate < 0.1 {
		signals = append(signals, Signal{
			Signal:   "no_user_participation",
			Evidence: fmt.Sprintf("reply_rate=%.2f", *p.UserReplyRate),
		})
		score += 0.3
	}
	if p.TotalMessages >= 5 && p.UserReplyRate != nil && *p.UserReplyRate < 0.2 {
		signals = append(signals, Signal{
			Signal:   "high_volume_one_way",
			Evidence: fmt.Sprintf("%d messages, no replies", p.TotalMessages),
		})
		score += 0.2
	}

	for _, body := range bodies {
		for _, pat := range sellingPatterns {
			if m := pat.FindString(body); m != "" {
				signals = append(signals, Signal{Signal: "selling_language", Evidence: m})
				score += 0.2
				break
			}
		}
	}

	if coldIntents > 0 {
		signals = append(signals, Signal{
			Signal:   "cold_outreach_intent",
			Evidence: fmt.Sprintf("%d messages", coldIntents),
		})
		score += 0.3
	}
	return capScore(score), signals
}

// Set records a manual relationship.
func (d *Detector) Set(ctx context.Context, senderDomain string, relType domain.RelationshipType, note string, suppress bool) error {
	if !domain.ValidRelationshipTypes[relType] {
		return fmt.Errorf("unknown relationship type %q", relType)
	}
	return d.profiles.SetRelationship(ctx, &domain.SenderRelationship{
		SenderDomain: senderDomain,
		Type:         relType,
		Confidence:   1.0,
		SuppressGems: suppress,
		Source:       domain.RelSourceManual,
		Note:         note,
		UpdatedAt:    time.Now().UTC(),
	})
}

// List returns relationships, optionally filtered by type.
func (d *Detector) List(ctx context.Context, typeFilter string) ([]domain.SenderRelationship, error) {
	return d.profiles.ListRelationships(ctx, typeFilter)
}

// Import bulk-loads relationships from a YAML file of
// {relationship_type: [domains]}. Returns the number imported.
func (d *Detector) Import(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read relationships %s: %w", path, err)
	}
	var byType map[string][]string
	if err := yaml.Unmarshal(data, &byType); err != nil {
		return 0, fmt.Errorf("parse relationships %s: %w", path, err)
	}

	count := 0
	for relType, domains := range byType {
		rt := domain.RelationshipType(relType)
		if !domain.ValidRelationshipTypes[rt] {
			d.log.Warn("skipping unknown relationship type in import", "type", relType)
			continue
		}
		suppress := rt == domain.RelMyInfrastructure || rt == domain.RelInstitutional
		for _, sd := range domains {
			if err := d.profiles.SetRelationship(ctx, &domain.SenderRelationship{
				SenderDomain: strings.TrimSpace(sd),
				Type:         rt,
				Confidence:   1.0,
				SuppressGems: suppress,
				Source:       domain.RelSourceManual,
				Note:         "Imported from " + path,
				UpdatedAt:    time.Now().UTC(),
			}); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func autoNote(signals []Signal) string {
	names := make([]string, 0, 3)
	for _, s := range signals {
		names = append(names, s.Signal)
		if len(names) == 3 {
			break
		}
	}
	return "Auto-detected: " + strings.Join(names, ", ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func capScore(s float64) float64 {
	if s > 1 {
		return 1
	}
	return s
}
