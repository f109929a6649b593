// Package content is the body-parsing stage: HTML to clean text, quote,
// signature and footer stripping, CTAs, offers, link intents, and the
// template complexity score.
package content

import (
	"context"
	"strings"
	"time"

	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/pkg/logger"
	"github.com/gemsieve/gemsieve/internal/store"
)

// Stage parses bodies for every message lacking a parsed_content row.
type Stage struct {
	repo *store.ContentRepo
	log  *logger.Logger
}

// NewStage creates the content stage.
func NewStage(repo *store.ContentRepo) *Stage {
	return &Stage{repo: repo, log: logger.WithComponent("content")}
}

// Run processes unprocessed messages. Returns the number processed.
func (s *Stage) Run(ctx context.Context) (int, error) {
	msgs, err := s.repo.UnprocessedMessages(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range msgs {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		pc := Parse(&msgs[i])
		if err := s.repo.Upsert(ctx, pc); err != nil {
			return processed, err
		}
		processed++
	}

	s.log.Info("content stage complete", "messages", processed)
	return processed, nil
}

// Parse runs the full per-message pipeline and returns the parsed row.
func Parse(m *domain.Message) *domain.ParsedContent {
	pc := &domain.ParsedContent{
		MessageID: m.ID,
		ParsedAt:  time.Now().UTC(),
	}

	var (
		text     string
		analysis *htmlAnalysis
	)
	if strings.TrimSpace(m.BodyHTML) != "" {
		analysis = analyzeHTML(m.BodyHTML)
		text = analysis.Text
	} else {
		text = m.BodyText
	}

	text = stripQuotedReplies(text)
	body, sig := stripSignature(text)
	body, footer := stripFooter(body)
	pc.BodyClean = body
	pc.SignatureBlock = sig

	// Offers and personalization scan the full pre-footer text: marketing
	// signals often live in the footer but still describe the sender.
	scanText := body + "\n" + footer

	pc.OfferTypes = detectOffers(scanText)
	pc.PersonalizationTokens = detectPersonalization(m.BodyHTML + "\n" + m.BodyText)
	pc.HasPersonalization = len(pc.PersonalizationTokens) > 0
	pc.PhysicalAddress = findPhysicalAddress(scanText)

	if analysis != nil {
		pc.PrimaryHeadline = analysis.Headline
		if pc.PrimaryHeadline == "" {
			pc.PrimaryHeadline = firstSubstantialLine(body)
		}
		pc.CTATexts = dedupe(analysis.CTATexts)
		pc.LinkCount = len(analysis.Links)
		pc.TrackingPixelCount = analysis.TrackingPixels
		pc.ImageCount = analysis.ImageCount
		pc.LinkIntents = classifyLinkIntents(analysis.Links)
		pc.UniqueLinkDomains, pc.SocialLinks, pc.UTMCampaigns = extractLinkFacts(analysis.Links)
		pc.TemplateComplexity = templateComplexity(analysis, pc.HasPersonalization)
	} else {
		pc.PrimaryHeadline = firstSubstantialLine(body)
		pc.LinkIntents = map[string][]string{}
		pc.SocialLinks = map[string]string{}
	}

	return pc
}

// firstSubstantialLine is the headline fallback for plain-text bodies:
// the first line long enough to carry meaning.
func firstSubstantialLine(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) >= 20 {
			return trimmed
		}
	}
	return ""
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
