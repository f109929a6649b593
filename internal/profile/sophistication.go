package profile

import (
	"github.com/gemsieve/gemsieve/internal/domain"
)

// ESP tiers for the deterministic sophistication score. Names match the
// fingerprint table in internal/metadata.
var (
	tier3ESPs = map[string]bool{
		"hubspot": true, "salesforce_mc": true, "klaviyo": true,
		"activecampaign": true, "marketo": true, "pardot": true,
	}
	tier2ESPs = map[string]bool{
		"sendgrid": true, "mailchimp": true, "convertkit": true,
		"postmark": true, "constant_contact": true, "amazon_ses": true,
		"mailgun": true, "sparkpost": true,
	}
)

// complexityThreshold is the template-complexity score that earns the
// template-quality point.
const complexityThreshold = 40

// deterministicSophistication scores marketing sophistication 1..10 from
// observable evidence alone: ESP tier, personalization, UTM usage,
// template quality, campaign segmentation, authentication, and an
// unsubscribe header.
func deterministicSophistication(p *domain.SenderProfile, meta []domain.ParsedMetadata, maxComplexity int) int {
	score := 1
	switch {
	case tier3ESPs[p.ESPUsed]:
		score = 3
	case tier2ESPs[p.ESPUsed]:
		score = 2
	}

	if p.HasPersonalization {
		score += 2
	}
	if len(p.UTMCampaignNames) > 0 {
		score++
	}
	if maxComplexity >= complexityThreshold {
		score++
	}
	if len(p.UTMCampaignNames) >= 3 {
		score++
	}
	for i := range meta {
		m := &meta[i]
		if m.SPFResult == "pass" && m.DMARCResult == "pass" && m.DKIMDomain != "" {
			score++
			break
		}
	}
	if p.UnsubscribeURL != "" {
		score++
	}

	if score > 10 {
		score = 10
	}
	if score < 1 {
		score = 1
	}
	return score
}
