// Package engage turns gems into outreach drafts. Nothing here sends
// mail; drafts wait for human review.
package engage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gemsieve/gemsieve/internal/ai"
	"github.com/gemsieve/gemsieve/internal/config"
	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/pkg/logger"
	"github.com/gemsieve/gemsieve/internal/store"
)

// gemStrategies routes each gem type to its engagement playbook.
var gemStrategies = map[domain.GemType]domain.Strategy{
	domain.GemWeakMarketingLead:   domain.StrategyAudit,
	domain.GemIndustryIntel:       domain.StrategyIndustryReport,
	domain.GemDormantWarmThread:   domain.StrategyRevival,
	domain.GemUnansweredAsk:       domain.StrategyRevival,
	domain.GemPartnerProgram:      domain.StrategyPartner,
	domain.GemRenewalLeverage:     domain.StrategyRenewalNegotiation,
	domain.GemVendorUpsell:        domain.StrategyMirror,
	domain.GemDistributionChannel: domain.StrategyDistributionPitch,
	domain.GemCoMarketing:         domain.StrategyMirror,
	domain.GemProcurementSignal:   domain.StrategyAudit,
}

var strategyChannels = map[domain.Strategy]string{
	domain.StrategyAudit:              "email reply or cold email",
	domain.StrategyIndustryReport:     "content publication + tag",
	domain.StrategyRevival:            "reply to original thread",
	domain.StrategyPartner:            "partner program URL or vendor contact",
	domain.StrategyRenewalNegotiation: "email to account manager",
	domain.StrategyMirror:             "email reply with value exchange",
	domain.StrategyDistributionPitch:  "pitch email to editor/host",
}

// StrategyFor returns the playbook for a gem type. The audit strategy is
// the fallback; it should never be reached for a known type.
func StrategyFor(gt domain.GemType) domain.Strategy {
	if s, ok := gemStrategies[gt]; ok {
		return s
	}
	return domain.StrategyAudit
}

// Options narrows a generation run. A non-zero GemID targets one gem and
// bypasses the preferred-strategies filter and the daily cap.
type Options struct {
	GemID    int64
	Strategy string
	TopN     int
}

// Stage generates engagement drafts for new gems.
type Stage struct {
	profiles *store.ProfileRepo
	pipeline *store.PipelineRepo
	messages *store.MessageRepo
	provider ai.Provider
	tmpl     *ai.Templates
	engage   config.EngagementConfig
	crew     bool
	log      *logger.Logger
}

// NewStage creates the engage stage.
func NewStage(profiles *store.ProfileRepo, pipeline *store.PipelineRepo, messages *store.MessageRepo, provider ai.Provider, engage config.EngagementConfig, crew bool) *Stage {
	return &Stage{
		profiles: profiles,
		pipeline: pipeline,
		messages: messages,
		provider: provider,
		tmpl:     ai.NewTemplates(),
		engage:   engage,
		crew:     crew,
		log:      logger.WithComponent("engage"),
	}
}

// Run generates drafts for all eligible new gems.
func (s *Stage) Run(ctx context.Context) (int, error) {
	return s.Generate(ctx, Options{})
}

// Generate produces drafts per the options. Returns drafts written.
func (s *Stage) Generate(ctx context.Context, opts Options) (int, error) {
	gems, err := s.selectGems(ctx, opts)
	if err != nil {
		return 0, err
	}

	generated := 0
	for i := range gems {
		gem := &gems[i]

		if opts.GemID == 0 {
			today, err := s.pipeline.DraftsGeneratedToday(ctx)
			if err != nil {
				return generated, err
			}
			if s.engage.MaxOutreachPerDay > 0 && today >= s.engage.MaxOutreachPerDay {
				s.log.Info("daily outreach cap reached", "cap", s.engage.MaxOutreachPerDay)
				break
			}
			drafted, err := s.pipeline.HasDraftForGem(ctx, gem.ID)
			if err != nil {
				return generated, err
			}
			if drafted {
				continue
			}
		}

		profile, err := s.profiles.GetProfile(ctx, gem.SenderDomain)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return generated, err
		}

		if err := s.draftOne(ctx, gem, profile); err != nil {
			if ctx.Err() != nil {
				return generated, ctx.Err()
			}
			s.log.Error("draft generation failed", "gem_id", gem.ID,
				"sender_domain", gem.SenderDomain, "error", err.Error())
			continue
		}
		generated++
	}

	s.log.Info("stage complete", "drafts_generated", generated)
	return generated, nil
}

// selectGems picks the gems to draft for, highest score first.
func (s *Stage) selectGems(ctx context.Context, opts Options) ([]domain.Gem, error) {
	if opts.GemID != 0 {
		gem, err := s.profiles.GetGem(ctx, opts.GemID)
		if err != nil {
			return nil, err
		}
		return []domain.Gem{*gem}, nil
	}

	gems, err := s.profiles.ListGems(ctx, store.GemFilter{Status: string(domain.GemStatusNew)})
	if err != nil {
		return nil, err
	}

	var out []domain.Gem
	for _, g := range gems {
		strat := StrategyFor(g.GemType)
		if opts.Strategy != "" && string(strat) != opts.Strategy {
			continue
		}
		if len(s.engage.PreferredStrategies) > 0 && !contains(s.engage.PreferredStrategies, string(strat)) {
			continue
		}
		out = append(out, g)
	}
	if opts.TopN > 0 && len(out) > opts.TopN {
		out = out[:opts.TopN]
	}
	return out, nil
}

func (s *Stage) draftOne(ctx context.Context, gem *domain.Gem, profile *domain.SenderProfile) error {
	strategy := StrategyFor(gem.GemType)
	vars := s.buildContext(ctx, strategy, gem, profile)

	templateID := ai.StrategyTemplate(string(strategy), s.crew)
	prompt, err := s.tmpl.Render(templateID, vars)
	if err != nil {
		return err
	}

	res, err := s.provider.Complete(ctx, ai.Request{
		System:       ai.SystemFor(templateID),
		Prompt:       prompt,
		JSONMode:     true,
		TemplateID:   templateID,
		SenderDomain: gem.SenderDomain,
	})
	if err != nil {
		return err
	}
	if res.JSON == nil {
		return fmt.Errorf("model returned no parseable JSON for gem %d", gem.ID)
	}

	subject := stringField(res.JSON, "subject_line", "subject")
	body := stringField(res.JSON, "body", "body_text", "message")
	if body == "" {
		return fmt.Errorf("model response missing body for gem %d", gem.ID)
	}

	return s.pipeline.InsertDraft(ctx, &domain.EngagementDraft{
		GemID:        gem.ID,
		SenderDomain: gem.SenderDomain,
		Strategy:     strategy,
		Channel:      strategyChannels[strategy],
		SubjectLine:  subject,
		BodyText:     body,
		ContextUsed:  vars,
		ModelUsed:    s.provider.Name(),
		Status:       domain.DraftStatusDraft,
		GeneratedAt:  time.Now().UTC(),
	})
}

// buildContext assembles the template variables for one gem. Every
// template variable is always present; missing data degrades to the
// documented defaults.
func (s *Stage) buildContext(ctx context.Context, strategy domain.Strategy, gem *domain.Gem, p *domain.SenderProfile) map[string]any {
	explanation, _ := json.MarshalIndent(gem.Explanation, "", "  ")

	contactName, contactRole := "", ""
	if c, ok := p.BestContact(); ok {
		contactName, contactRole = c.Name, c.Role
	}

	vars := map[string]any{
		"strategy_name":            string(strategy),
		"gem_type":                 string(gem.GemType),
		"gem_explanation_json":     string(explanation),
		"company_name":             fallback(p.CompanyName, p.SenderDomain),
		"contact_name":             contactName,
		"contact_role":             contactRole,
		"industry":                 fallback(p.Industry, "Unknown"),
		"company_size":             fallback(string(p.CompanySize), "Unknown"),
		"esp_used":                 fallback(p.ESPUsed, "Unknown"),
		"sophistication":           p.SophisticationAvg,
		"product_description":      fallback(p.ProductDescription, "Unknown"),
		"pain_points":              jsonList(p.PainPoints),
		"observation":              observation(p, gem),
		"relationship_summary":     fmt.Sprintf("%d messages over time", p.TotalMessages),
		"user_service_description": fallback(s.engage.YourService, "consulting services"),
		"user_preferred_tone":      fallback(s.engage.YourTone, "professional"),
		"user_audience":            s.engage.YourAudience,
	}

	switch strategy {
	case domain.StrategyRevival:
		subject, dormancy := s.threadContext(ctx, gem)
		vars["thread_subject"] = subject
		vars["dormancy_days"] = dormancy
	case domain.StrategyRenewalNegotiation:
		vars["renewal_dates"] = jsonList(p.RenewalDates)
		vars["monetary_signals"] = jsonList(p.MonetarySignals)
	case domain.StrategyPartner:
		vars["partner_urls"] = jsonList(p.PartnerProgramURLs)
	case domain.StrategyDistributionPitch:
		vars["target_audience"] = p.TargetAudience
	}
	return vars
}

// threadContext pulls the revival thread's subject and dormancy from the
// thread row, falling back to the gem explanation.
func (s *Stage) threadContext(ctx context.Context, gem *domain.Gem) (string, int) {
	if gem.ThreadID != "" {
		if th, err := s.messages.GetThread(ctx, gem.ThreadID); err == nil {
			return th.Subject, th.DaysDormant
		}
	}
	for _, sig := range gem.Explanation.Signals {
		if sig.Signal == "dormancy" {
			var days int
			fmt.Sscanf(sig.Value, "%d", &days)
			return "", days
		}
	}
	return "", 0
}

// observation derives the one-line "I actually read your mail" hook:
// a CTA sample, else the dominant offer types, else the gem summary.
func observation(p *domain.SenderProfile, gem *domain.Gem) string {
	if len(p.CTATexts) > 0 {
		return fmt.Sprintf("Recent CTA: %q", p.CTATexts[0])
	}
	if len(p.OfferTypeDistribution) > 0 {
		types := make([]string, 0, len(p.OfferTypeDistribution))
		for t := range p.OfferTypeDistribution {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool {
			if p.OfferTypeDistribution[types[i]] != p.OfferTypeDistribution[types[j]] {
				return p.OfferTypeDistribution[types[i]] > p.OfferTypeDistribution[types[j]]
			}
			return types[i] < types[j]
		})
		if len(types) > 3 {
			types = types[:3]
		}
		return "Top offer types: " + strings.Join(types, ", ")
	}
	return gem.Explanation.Summary
}

func jsonList(items []string) string {
	if items == nil {
		items = []string{}
	}
	raw, _ := json.Marshal(items)
	return string(raw)
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
