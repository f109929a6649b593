package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderClassification(t *testing.T) {
	tmpl := NewTemplates()
	out, err := tmpl.Render(TemplateClassification, map[string]any{
		"from_name":                  "Jane",
		"from_address":               "jane@acme.com",
		"subject":                    "Quick question",
		"esp_identified":             "hubspot",
		"offer_types":                "discount",
		"cta_texts":                  "Book a demo",
		"extracted_entities_summary": "person: Jane",
		"max_body_chars":             2000,
		"body_clean":                 "Hello there",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Jane <jane@acme.com>")
	assert.Contains(t, out, "ESP: hubspot")
	assert.Contains(t, out, `"sender_intent"`)
	assert.Contains(t, out, "Hello there")
}

func TestRenderCachesTemplates(t *testing.T) {
	tmpl := NewTemplates()
	_, err := tmpl.Render(TemplateEngageDefault, map[string]any{"contact_name": "Sam"})
	require.NoError(t, err)
	_, ok := tmpl.cache.Load(TemplateEngageDefault)
	assert.True(t, ok)
}

func TestRenderUnknownTemplate(t *testing.T) {
	tmpl := NewTemplates()
	_, err := tmpl.Render("nope", nil)
	assert.Error(t, err)
}

func TestStrategyTemplateSelection(t *testing.T) {
	assert.Equal(t, "engage_audit", StrategyTemplate("audit", false))
	assert.Equal(t, "engage_audit_crew", StrategyTemplate("audit", true))
	assert.Equal(t, TemplateEngageDefault, StrategyTemplate("unknown_strategy", false))
	assert.Equal(t, "engage_default_crew", StrategyTemplate("unknown_strategy", true))
}

func TestStrategyPromptsEndWithSchema(t *testing.T) {
	for _, strategy := range []string{
		"audit", "revival", "partner", "renewal_negotiation",
		"industry_report", "mirror", "distribution_pitch",
	} {
		id := StrategyTemplate(strategy, false)
		src, ok := templates[id]
		require.True(t, ok, strategy)
		assert.Contains(t, src, `"subject_line"`, strategy)
		assert.Contains(t, src, `"body"`, strategy)
	}
}

func TestSystemFor(t *testing.T) {
	assert.Equal(t, systemAnalyst, SystemFor(TemplateClassification))
	assert.Equal(t, systemAnalystCrew, SystemFor(TemplateClassificationCrew))
	assert.Equal(t, systemStrategist, SystemFor("engage_audit"))
	assert.Equal(t, systemStrategistCrew, SystemFor("engage_audit_crew"))
	assert.Equal(t, systemAnalyst, SystemFor("unknown"))
}

func TestCrewVariantsRegistered(t *testing.T) {
	_, ok := templates["engage_revival_crew"]
	assert.True(t, ok)
}
