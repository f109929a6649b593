package domain

import "time"

// Contact is a person associated with a sender domain, ranked by how
// useful they are as an outreach target.
type Contact struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Email string `json:"email"`
}

// AuthQuality grades a sender's SPF/DKIM/DMARC posture.
const (
	AuthExcellent = "excellent"
	AuthGood      = "good"
	AuthPoor      = "poor"
)

// Sophistication trends across the observation window.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// SenderProfile is the per-domain aggregation of every upstream stage.
type SenderProfile struct {
	SenderDomain string `json:"sender_domain" db:"sender_domain"`
	CompanyName  string `json:"company_name" db:"company_name"`
	PrimaryEmail string `json:"primary_email" db:"primary_email"`
	ReplyToEmail string `json:"reply_to_email" db:"reply_to_email"`

	Industry           string       `json:"industry" db:"industry"`
	CompanySize        CompanySize  `json:"company_size" db:"company_size"`
	SenderIntent       SenderIntent `json:"sender_intent" db:"sender_intent"`
	ProductType        string       `json:"product_type" db:"product_type"`
	ProductDescription string       `json:"product_description" db:"product_description"`
	PainPoints         []string     `json:"pain_points" db:"pain_points"`
	TargetAudience     string       `json:"target_audience" db:"target_audience"`

	SophisticationAvg float64  `json:"sophistication_avg" db:"sophistication_avg"`
	SophisticationAI  *float64 `json:"sophistication_ai" db:"sophistication_ai"`
	SophisticationDet int      `json:"sophistication_det" db:"sophistication_det"`
	SophTrend         string   `json:"sophistication_trend" db:"sophistication_trend"`

	ESPUsed          string  `json:"esp_used" db:"esp_used"`
	AuthQuality      string  `json:"auth_quality" db:"auth_quality"`
	UnsubscribeURL   string  `json:"unsubscribe_url" db:"unsubscribe_url"`
	BulkRatio        float64 `json:"bulk_ratio" db:"bulk_ratio"`
	TotalMessages    int     `json:"total_messages" db:"total_messages"`
	AvgFrequencyDays float64 `json:"avg_frequency_days" db:"avg_frequency_days"`

	FirstContact time.Time `json:"first_contact" db:"first_contact"`
	LastContact  time.Time `json:"last_contact" db:"last_contact"`

	KnownContacts         []Contact         `json:"known_contacts" db:"known_contacts"`
	OfferTypeDistribution map[string]int    `json:"offer_type_distribution" db:"offer_type_distribution"`
	CTATexts              []string          `json:"cta_texts" db:"cta_texts"`
	SocialLinks           map[string]string `json:"social_links" db:"social_links"`
	PhysicalAddress       string            `json:"physical_address" db:"physical_address"`
	UTMCampaignNames      []string          `json:"utm_campaign_names" db:"utm_campaign_names"`
	HasPersonalization    bool              `json:"has_personalization" db:"has_personalization"`
	HasPartnerProgram     bool              `json:"has_partner_program" db:"has_partner_program"`
	PartnerProgramURLs    []string          `json:"partner_program_urls" db:"partner_program_urls"`
	RenewalDates          []string          `json:"renewal_dates" db:"renewal_dates"`
	MonetarySignals       []string          `json:"monetary_signals" db:"monetary_signals"`

	ThreadInitiationRatio *float64 `json:"thread_initiation_ratio" db:"thread_initiation_ratio"`
	UserReplyRate         *float64 `json:"user_reply_rate" db:"user_reply_rate"`

	RelationshipType RelationshipType `json:"relationship_type" db:"relationship_type"`

	BuiltAt time.Time `json:"built_at" db:"built_at"`
}

// BestContact returns the highest-ranked known contact, preferring
// decision makers, then peers, then vendor contacts.
func (p *SenderProfile) BestContact() (Contact, bool) {
	if len(p.KnownContacts) == 0 {
		return Contact{}, false
	}
	return p.KnownContacts[0], true
}

// GemType names one detectable opportunity kind.
type GemType string

const (
	GemDormantWarmThread   GemType = "dormant_warm_thread"
	GemUnansweredAsk       GemType = "unanswered_ask"
	GemWeakMarketingLead   GemType = "weak_marketing_lead"
	GemPartnerProgram      GemType = "partner_program"
	GemRenewalLeverage     GemType = "renewal_leverage"
	GemDistributionChannel GemType = "distribution_channel"
	GemCoMarketing         GemType = "co_marketing"
	GemIndustryIntel       GemType = "industry_intel"
	GemProcurementSignal   GemType = "procurement_signal"

	// GemVendorUpsell is retired. Historical rows are tolerated; the
	// detector never emits it.
	GemVendorUpsell GemType = "vendor_upsell"
)

// GemStatus is the triage state of a gem.
type GemStatus string

const (
	GemStatusNew       GemStatus = "new"
	GemStatusActed     GemStatus = "acted"
	GemStatusDismissed GemStatus = "dismissed"
)

// Estimated commercial value buckets.
const (
	ValueLow        = "low"
	ValueMedium     = "medium"
	ValueMediumHigh = "medium-high"
	ValueHigh       = "high"
)

// Urgency buckets.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// GemSignal is one piece of evidence inside a gem explanation.
type GemSignal struct {
	Signal    string `json:"signal"`
	Evidence  string `json:"evidence,omitempty"`
	Value     string `json:"value,omitempty"`
	Threshold string `json:"threshold,omitempty"`
}

// GemExplanation is the structured record justifying a gem.
type GemExplanation struct {
	GemType        string      `json:"gem_type"`
	Summary        string      `json:"summary"`
	Signals        []GemSignal `json:"signals"`
	Confidence     float64     `json:"confidence"`
	EstimatedValue string      `json:"estimated_value"`
	Urgency        string      `json:"urgency"`
}

// Gem is one detected commercial opportunity.
type Gem struct {
	ID                 int64          `json:"id" db:"id"`
	GemType            GemType        `json:"gem_type" db:"gem_type"`
	SenderDomain       string         `json:"sender_domain" db:"sender_domain"`
	ThreadID           string         `json:"thread_id" db:"thread_id"`
	Score              float64        `json:"score" db:"score"`
	Explanation        GemExplanation `json:"explanation" db:"explanation"`
	RecommendedActions []string       `json:"recommended_actions" db:"recommended_actions"`
	SourceMessageIDs   []string       `json:"source_message_ids" db:"source_message_ids"`
	Status             GemStatus      `json:"status" db:"status"`
	DetectedAt         time.Time      `json:"detected_at" db:"detected_at"`
}
