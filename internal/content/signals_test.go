package content

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gemsieve/gemsieve/internal/domain"
)

func TestDetectOffers(t *testing.T) {
	text := "Last chance: 20% off annual plans. Join our webinar Thursday. " +
		"Become a partner and earn recurring revenue."
	offers := detectOffers(text)
	assert.Contains(t, offers, domain.OfferDiscount)
	assert.Contains(t, offers, domain.OfferUrgency)
	assert.Contains(t, offers, domain.OfferWebinar)
	assert.Contains(t, offers, domain.OfferPartnership)
	assert.NotContains(t, offers, domain.OfferFreeTrial)
}

func TestDetectPersonalizationTokens(t *testing.T) {
	text := "Hi {{ first_name }}, your %%COMPANY%% trial and *|FNAME|* again {{ first_name }}"
	tokens := detectPersonalization(text)
	assert.Len(t, tokens, 3, "duplicates collapse")
	assert.Contains(t, tokens, "{{ first_name }}")
	assert.Contains(t, tokens, "%%COMPANY%%")
	assert.Contains(t, tokens, "*|FNAME|*")
}

func TestClassifyLinkIntentsFirstMatchWins(t *testing.T) {
	links := []linkInfo{
		{Href: "https://acme.com/pricing"},
		{Href: "https://calendly.com/jane/30min"},
		// Matches both pricing and demo substrings; pricing is ranked first.
		{Href: "https://acme.com/pricing/demo"},
		{Href: "https://acme.com/blog/post"},
	}
	intents := classifyLinkIntents(links)
	assert.Len(t, intents[domain.LinkIntentPricing], 2)
	assert.Equal(t, []string{"https://calendly.com/jane/30min"}, intents[domain.LinkIntentDemo])
	assert.NotContains(t, intents, domain.LinkIntentCaseStudy)
}

func TestExtractLinkFacts(t *testing.T) {
	links := []linkInfo{
		{Href: "https://www.acme.com/a?utm_campaign=spring"},
		{Href: "https://acme.com/b?utm_campaign=spring"},
		{Href: "https://twitter.com/acme"},
		{Href: "https://x.com/acme"},
		{Href: "not a url at all ://"},
	}
	hosts, social, utms := extractLinkFacts(links)
	assert.Equal(t, []string{"acme.com", "twitter.com", "x.com"}, hosts)
	assert.Equal(t, "https://twitter.com/acme", social["twitter"], "first link per platform wins")
	assert.Equal(t, []string{"spring"}, utms)
}

func TestFindPhysicalAddress(t *testing.T) {
	footer := "Acme Inc, 548 Market Street Suite 95820, San Francisco, CA 94104"
	assert.NotEmpty(t, findPhysicalAddress(footer))
	assert.Empty(t, findPhysicalAddress("no address here"))
}

func TestTemplateComplexityCapsAt100(t *testing.T) {
	a := &htmlAnalysis{
		TableCount:    50,
		StyledCount:   50,
		HasMediaQuery: true,
		ImageCount:    50,
		Links:         make([]linkInfo, 50),
	}
	assert.Equal(t, 100, templateComplexity(a, true))
	assert.Equal(t, 0, templateComplexity(&htmlAnalysis{}, false))
}
