package domain

import "time"

// CompanySize buckets an AI size estimate.
type CompanySize string

const (
	SizeSmall      CompanySize = "small"
	SizeMedium     CompanySize = "medium"
	SizeEnterprise CompanySize = "enterprise"
)

// SenderIntent is the AI-assigned purpose of a sender's mail.
type SenderIntent string

const (
	IntentHuman1to1       SenderIntent = "human_1to1"
	IntentColdOutreach    SenderIntent = "cold_outreach"
	IntentNurtureSequence SenderIntent = "nurture_sequence"
	IntentNewsletter      SenderIntent = "newsletter"
	IntentTransactional   SenderIntent = "transactional"
	IntentPromotional     SenderIntent = "promotional"
	IntentEventInvitation SenderIntent = "event_invitation"
	IntentPartnershipPitch SenderIntent = "partnership_pitch"
	IntentReEngagement    SenderIntent = "re_engagement"
	IntentProcurement     SenderIntent = "procurement"
	IntentRecruiting      SenderIntent = "recruiting"
	IntentCommunity       SenderIntent = "community"
)

// ValidIntents is the closed set accepted from model output.
var ValidIntents = map[SenderIntent]bool{
	IntentHuman1to1: true, IntentColdOutreach: true, IntentNurtureSequence: true,
	IntentNewsletter: true, IntentTransactional: true, IntentPromotional: true,
	IntentEventInvitation: true, IntentPartnershipPitch: true, IntentReEngagement: true,
	IntentProcurement: true, IntentRecruiting: true, IntentCommunity: true,
}

// Classification is the AI's read of one message's sender.
type Classification struct {
	MessageID              string       `json:"message_id" db:"message_id"`
	Industry               string       `json:"industry" db:"industry"`
	CompanySize            CompanySize  `json:"company_size" db:"company_size"`
	Sophistication         int          `json:"sophistication" db:"sophistication"`
	SenderIntent           SenderIntent `json:"sender_intent" db:"sender_intent"`
	ProductType            string       `json:"product_type" db:"product_type"`
	ProductDescription     string       `json:"product_description" db:"product_description"`
	PainPoints             []string     `json:"pain_points" db:"pain_points"`
	TargetAudience         string       `json:"target_audience" db:"target_audience"`
	PartnerProgramDetected bool         `json:"partner_program_detected" db:"partner_program_detected"`
	RenewalSignalDetected  bool         `json:"renewal_signal_detected" db:"renewal_signal_detected"`
	Confidence             float64      `json:"confidence" db:"confidence"`
	ModelUsed              string       `json:"model_used" db:"model_used"`
	HasOverride            bool         `json:"has_override" db:"has_override"`
	ClassifiedAt           time.Time    `json:"classified_at" db:"classified_at"`
}

// OverrideScope says whether a correction applies to one message or the
// whole sender domain.
type OverrideScope string

const (
	ScopeMessage OverrideScope = "message"
	ScopeSender  OverrideScope = "sender"
)

// Override is a user correction of one classification field. Message-scope
// overrides outrank sender-scope for the same field.
type Override struct {
	ID             int64         `json:"id" db:"id"`
	MessageID      string        `json:"message_id" db:"message_id"`
	SenderDomain   string        `json:"sender_domain" db:"sender_domain"`
	FieldName      string        `json:"field_name" db:"field_name"`
	OriginalValue  string        `json:"original_value" db:"original_value"`
	CorrectedValue string        `json:"corrected_value" db:"corrected_value"`
	Scope          OverrideScope `json:"scope" db:"scope"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}

// OverrideStats summarizes correction pressure on one classification field.
type OverrideStats struct {
	FieldName            string  `json:"field_name"`
	TotalOverrides       int     `json:"total_overrides"`
	TotalClassifications int     `json:"total_classifications"`
	OverrideRate         float64 `json:"override_rate"`
	NeedsTuning          bool    `json:"needs_tuning"`
}

// DomainExclusion removes a domain from gem detection entirely.
type DomainExclusion struct {
	Domain    string    `json:"domain" db:"domain"`
	Reason    string    `json:"reason" db:"reason"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
