// Package classify is the AI classification stage: sender-level
// classification with user override layering and retrain examples.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gemsieve/gemsieve/internal/ai"
	"github.com/gemsieve/gemsieve/internal/config"
	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/pkg/logger"
	"github.com/gemsieve/gemsieve/internal/store"
)

// classificationFields is every overridable classification field. When
// sender-scope overrides cover all of them the model call is skipped.
var classificationFields = []string{
	"industry", "company_size", "sophistication", "sender_intent",
	"product_type", "product_description", "pain_points", "target_audience",
	"partner_program_detected", "renewal_signal_detected",
}

// Stage classifies senders. One model call covers a whole sender domain;
// the result is copied to every unclassified message of that domain.
type Stage struct {
	classify *store.ClassifyRepo
	content  *store.ContentRepo
	metadata *store.MetadataRepo
	entities *store.EntityRepo
	provider ai.Provider
	tmpl     *ai.Templates
	cfg      config.AIConfig

	// Crew switches to the multi-agent prompt profile; Retrain appends
	// recent corrections as few-shot examples.
	Crew    bool
	Retrain bool

	log *logger.Logger
}

// NewStage creates the classify stage.
func NewStage(classify *store.ClassifyRepo, content *store.ContentRepo,
	metadata *store.MetadataRepo, entities *store.EntityRepo,
	provider ai.Provider, cfg config.AIConfig) *Stage {
	return &Stage{
		classify: classify,
		content:  content,
		metadata: metadata,
		entities: entities,
		provider: provider,
		tmpl:     ai.NewTemplates(),
		cfg:      cfg,
		log:      logger.WithComponent("classify"),
	}
}

// SetProvider swaps the model backend. The pipeline uses this to install
// its auditing decorator for web-triggered runs.
func (s *Stage) SetProvider(p ai.Provider) { s.provider = p }

// Run classifies all unclassified messages. A failed domain is logged and
// skipped; the stage continues. Returns the number of messages classified.
func (s *Stage) Run(ctx context.Context) (int, error) {
	groups, err := s.classify.UnclassifiedByDomain(ctx)
	if err != nil {
		return 0, err
	}

	retrainSuffix := ""
	if s.Retrain {
		retrainSuffix, err = s.retrainBlock(ctx)
		if err != nil {
			return 0, err
		}
	}

	classified := 0
	failed := 0
	for senderDomain, msgs := range groups {
		if err := ctx.Err(); err != nil {
			return classified, err
		}

		senderOv, err := s.classify.OverridesForDomain(ctx, senderDomain)
		if err != nil {
			return classified, err
		}
		senderValues := latestByField(senderOv)

		base, err := s.classifyDomain(ctx, senderDomain, msgs, senderValues, retrainSuffix)
		if err != nil {
			s.log.Warn("classification failed for domain",
				"domain", senderDomain, "error", err.Error())
			failed++
			continue
		}

		for field, value := range senderValues {
			applyOverride(base, field, value)
		}
		base.HasOverride = len(senderValues) > 0

		for i := range msgs {
			m := &msgs[i]
			msgOv, err := s.classify.OverridesForMessage(ctx, m.ID)
			if err != nil {
				return classified, err
			}
			final := *base
			final.MessageID = m.ID
			final.PainPoints = append([]string(nil), base.PainPoints...)
			for field, value := range latestByField(msgOv) {
				applyOverride(&final, field, value)
			}
			if len(msgOv) > 0 {
				final.HasOverride = true
			}
			if err := s.classify.Upsert(ctx, &final); err != nil {
				return classified, err
			}
			classified++
		}
	}

	s.log.Info("classify stage complete",
		"messages", classified, "domains", len(groups), "failed_domains", failed)
	return classified, nil
}

// classifyDomain runs one model call for a sender domain, or skips the
// call entirely when sender overrides already cover every field.
func (s *Stage) classifyDomain(ctx context.Context, senderDomain string,
	msgs []domain.Message, senderValues map[string]string, retrainSuffix string) (*domain.Classification, error) {

	now := time.Now().UTC()
	if coversAllFields(senderValues) {
		return &domain.Classification{
			Confidence:   1.0,
			ModelUsed:    "override",
			ClassifiedAt: now,
		}, nil
	}

	// Up to three recent messages represent the sender; the newest one
	// supplies the prompt body.
	sample := msgs
	if len(sample) > 3 {
		sample = sample[:3]
	}
	rep := &sample[0]

	vars, err := s.promptVars(ctx, rep, sample)
	if err != nil {
		return nil, err
	}

	templateID := ai.ClassificationTemplate(s.Crew)
	prompt, err := s.tmpl.Render(templateID, vars)
	if err != nil {
		return nil, err
	}
	prompt += retrainSuffix

	res, err := s.provider.Complete(ctx, ai.Request{
		System:       ai.SystemFor(templateID),
		Prompt:       prompt,
		Model:        s.cfg.Model,
		JSONMode:     true,
		TemplateID:   templateID,
		SenderDomain: senderDomain,
	})
	if err != nil {
		return nil, err
	}
	if res.JSON == nil {
		return nil, fmt.Errorf("model returned no parseable JSON")
	}

	c := fromModelJSON(res.JSON)
	c.ModelUsed = s.cfg.ModelSpec()
	c.ClassifiedAt = now
	return c, nil
}

// promptVars assembles the template variables from the representative
// message and its stage-2/3 rows.
func (s *Stage) promptVars(ctx context.Context, rep *domain.Message, sample []domain.Message) (map[string]any, error) {
	esp := "unknown"
	if md, err := s.metadata.Get(ctx, rep.ID); err == nil && md.ESPIdentified != "" {
		esp = md.ESPIdentified
	}

	body := ""
	offerTypes := "[]"
	ctaTexts := "[]"
	if pc, err := s.content.Get(ctx, rep.ID); err == nil {
		body = pc.BodyClean
		offerTypes = joinOrEmpty(pc.OfferTypes)
		ctaTexts = joinOrEmpty(pc.CTATexts)
	}
	maxChars := s.cfg.MaxBodyChars
	if maxChars <= 0 {
		maxChars = 2000
	}
	if len(body) > maxChars {
		body = body[:maxChars]
	}

	ids := make([]string, len(sample))
	for i := range sample {
		ids[i] = sample[i].ID
	}
	summary, err := s.entitySummary(ctx, ids)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"from_name":                  rep.FromName,
		"from_address":               rep.FromEmail,
		"subject":                    rep.Subject,
		"esp_identified":             esp,
		"offer_types":                offerTypes,
		"cta_texts":                  ctaTexts,
		"extracted_entities_summary": summary,
		"max_body_chars":             maxChars,
		"body_clean":                 body,
	}, nil
}

// entitySummary joins the top entities of the sample messages as
// "type: value; " pairs, capped at 20 by confidence.
func (s *Stage) entitySummary(ctx context.Context, messageIDs []string) (string, error) {
	var all []domain.ExtractedEntity
	for _, id := range messageIDs {
		ents, err := s.entities.ForMessage(ctx, id)
		if err != nil {
			return "", err
		}
		all = append(all, ents...)
	}
	if len(all) == 0 {
		return "None", nil
	}

	// ForMessage returns confidence-descending per message; a full sort
	// across the sample keeps the strongest signals when capping.
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j].Confidence > all[j-1].Confidence; j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}
	if len(all) > 20 {
		all = all[:20]
	}

	parts := make([]string, len(all))
	for i, e := range all {
		parts[i] = string(e.EntityType) + ": " + e.Value
	}
	return strings.Join(parts, "; "), nil
}

// retrainBlock formats the 10 most recent overrides as few-shot
// correction examples.
func (s *Stage) retrainBlock(ctx context.Context) (string, error) {
	recent, err := s.classify.RecentOverrides(ctx, 10)
	if err != nil {
		return "", err
	}
	if len(recent) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("\n\nPrevious classification corrections (use these to improve accuracy):\n")
	for _, o := range recent {
		target := o.SenderDomain
		if target == "" {
			target = "unknown"
		}
		original := o.OriginalValue
		if original == "" {
			original = "unknown"
		}
		fmt.Fprintf(&b, "CORRECTION: For sender domain '%s', the %s was classified as '%s' but should be '%s'.\n",
			target, o.FieldName, original, o.CorrectedValue)
	}
	return b.String(), nil
}

func coversAllFields(values map[string]string) bool {
	for _, f := range classificationFields {
		if _, ok := values[f]; !ok {
			return false
		}
	}
	return true
}

// latestByField collapses an oldest-first override list so the newest
// correction per field wins.
func latestByField(overrides []domain.Override) map[string]string {
	out := make(map[string]string, len(overrides))
	for _, o := range overrides {
		out[o.FieldName] = o.CorrectedValue
	}
	return out
}

// fromModelJSON maps the model's JSON object onto a Classification,
// clamping and validating the closed-set fields.
func fromModelJSON(obj map[string]any) *domain.Classification {
	c := &domain.Classification{
		Industry:           str(obj["industry"]),
		CompanySize:        domain.CompanySize(str(obj["company_size_estimate"])),
		Sophistication:     clampScore(num(obj["marketing_sophistication"])),
		ProductType:        str(obj["product_type"]),
		ProductDescription: str(obj["product_description"]),
		TargetAudience:     str(obj["target_audience"]),
		Confidence:         num(obj["confidence"]),
	}
	intent := domain.SenderIntent(str(obj["sender_intent"]))
	if domain.ValidIntents[intent] {
		c.SenderIntent = intent
	}
	if pains, ok := obj["pain_points_addressed"].([]any); ok {
		for _, p := range pains {
			if sp := str(p); sp != "" {
				c.PainPoints = append(c.PainPoints, sp)
			}
		}
	}
	c.PartnerProgramDetected = boolVal(obj["partner_program_detected"])
	c.RenewalSignalDetected = boolVal(obj["renewal_signal_detected"])
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
	return c
}

// applyOverride sets one classification field from its string correction.
func applyOverride(c *domain.Classification, field, value string) {
	switch field {
	case "industry":
		c.Industry = value
	case "company_size", "company_size_estimate":
		c.CompanySize = domain.CompanySize(value)
	case "sophistication", "marketing_sophistication":
		if n, err := strconv.Atoi(value); err == nil {
			c.Sophistication = clampScore(float64(n))
		}
	case "sender_intent":
		c.SenderIntent = domain.SenderIntent(value)
	case "product_type":
		c.ProductType = value
	case "product_description":
		c.ProductDescription = value
	case "pain_points", "pain_points_addressed":
		var pains []string
		if err := json.Unmarshal([]byte(value), &pains); err != nil {
			pains = splitTrim(value)
		}
		c.PainPoints = pains
	case "target_audience":
		c.TargetAudience = value
	case "partner_program_detected":
		c.PartnerProgramDetected = parseBool(value)
	case "renewal_signal_detected":
		c.RenewalSignalDetected = parseBool(value)
	}
}

// FieldValue reads one classification field as a string, for
// original-value capture when an override is recorded.
func FieldValue(c *domain.Classification, field string) string {
	if c == nil {
		return ""
	}
	switch field {
	case "industry":
		return c.Industry
	case "company_size", "company_size_estimate":
		return string(c.CompanySize)
	case "sophistication", "marketing_sophistication":
		return strconv.Itoa(c.Sophistication)
	case "sender_intent":
		return string(c.SenderIntent)
	case "product_type":
		return c.ProductType
	case "product_description":
		return c.ProductDescription
	case "pain_points", "pain_points_addressed":
		return strings.Join(c.PainPoints, ", ")
	case "target_audience":
		return c.TargetAudience
	case "partner_program_detected":
		return strconv.FormatBool(c.PartnerProgramDetected)
	case "renewal_signal_detected":
		return strconv.FormatBool(c.RenewalSignalDetected)
	}
	return ""
}

func joinOrEmpty(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	return strings.Join(items, ", ")
}

func splitTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func clampScore(f float64) int {
	n := int(f)
	if n < 1 {
		n = 1
	}
	if n > 10 {
		n = 10
	}
	return n
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return b
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func num(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}

func boolVal(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return parseBool(b)
	}
	return false
}
