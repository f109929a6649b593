package domain

import "time"

// Link intents recognized by the content parser's ordered pattern table.
const (
	LinkIntentPricing     = "pricing_page"
	LinkIntentDemo        = "demo_booking"
	LinkIntentPartner     = "partner_program"
	LinkIntentMarketplace = "marketplace_listing"
	LinkIntentJobPosting  = "job_posting"
	LinkIntentCaseStudy   = "case_study"
	LinkIntentFreeTool    = "free_tool"
)

// Offer types recognized in message bodies.
const (
	OfferDiscount      = "discount"
	OfferFreeTrial     = "free_trial"
	OfferWebinar       = "webinar"
	OfferProductLaunch = "product_launch"
	OfferUrgency       = "urgency"
	OfferSocialProof   = "social_proof"
	OfferEvent         = "event"
	OfferNewsletter    = "newsletter"
	OfferRenewal       = "renewal"
	OfferPartnership   = "partnership"
	OfferProcurement   = "procurement"
)

// ParsedContent is the structural analysis of one message body.
type ParsedContent struct {
	MessageID             string              `json:"message_id" db:"message_id"`
	BodyClean             string              `json:"body_clean" db:"body_clean"`
	SignatureBlock        string              `json:"signature_block" db:"signature_block"`
	PrimaryHeadline       string              `json:"primary_headline" db:"primary_headline"`
	CTATexts              []string            `json:"cta_texts" db:"cta_texts"`
	OfferTypes            []string            `json:"offer_types" db:"offer_types"`
	HasPersonalization    bool                `json:"has_personalization" db:"has_personalization"`
	PersonalizationTokens []string            `json:"personalization_tokens" db:"personalization_tokens"`
	LinkCount             int                 `json:"link_count" db:"link_count"`
	TrackingPixelCount    int                 `json:"tracking_pixel_count" db:"tracking_pixel_count"`
	UniqueLinkDomains     []string            `json:"unique_link_domains" db:"unique_link_domains"`
	LinkIntents           map[string][]string `json:"link_intents" db:"link_intents"`
	UTMCampaigns          []string            `json:"utm_campaigns" db:"utm_campaigns"`
	PhysicalAddress       string              `json:"physical_address" db:"physical_address"`
	SocialLinks           map[string]string   `json:"social_links" db:"social_links"`
	ImageCount            int                 `json:"image_count" db:"image_count"`
	TemplateComplexity    int                 `json:"template_complexity" db:"template_complexity"`
	ParsedAt              time.Time           `json:"parsed_at" db:"parsed_at"`
}
