package domain

import "time"

// RelationshipType is the commercial relationship between the user and a
// sender domain. It gates which gems may fire and caps opportunity scores.
type RelationshipType string

const (
	// Customer-side: the user pays for or depends on the sender.
	RelMyVendor          RelationshipType = "my_vendor"
	RelMyServiceProvider RelationshipType = "my_service_provider"
	RelMyInfrastructure  RelationshipType = "my_infrastructure"
	RelInstitutional     RelationshipType = "institutional"

	// Opportunity-side: the sender may pay the user.
	RelInboundProspect  RelationshipType = "inbound_prospect"
	RelWarmContact      RelationshipType = "warm_contact"
	RelPotentialPartner RelationshipType = "potential_partner"

	// Neutral.
	RelSellingToMe RelationshipType = "selling_to_me"
	RelCommunity   RelationshipType = "community"
	RelUnknown     RelationshipType = "unknown"
)

// OpportunitySide reports whether money could plausibly flow toward the
// user from this relationship.
func (r RelationshipType) OpportunitySide() bool {
	switch r {
	case RelInboundProspect, RelWarmContact, RelPotentialPartner, RelUnknown:
		return true
	}
	return false
}

// ValidRelationshipTypes is the closed set accepted at boundaries.
var ValidRelationshipTypes = map[RelationshipType]bool{
	RelMyVendor: true, RelMyServiceProvider: true, RelMyInfrastructure: true,
	RelInstitutional: true, RelInboundProspect: true, RelWarmContact: true,
	RelPotentialPartner: true, RelSellingToMe: true, RelCommunity: true,
	RelUnknown: true,
}

// RelationshipSource records who decided a relationship.
type RelationshipSource string

const (
	RelSourceManual       RelationshipSource = "manual"
	RelSourceAutoDetected RelationshipSource = "auto_detected"
	RelSourceLearned      RelationshipSource = "learned"
)

// SenderRelationship is the per-domain relationship row. Manual rows are
// never overwritten by the auto-detector.
type SenderRelationship struct {
	SenderDomain string             `json:"sender_domain" db:"sender_domain"`
	Type         RelationshipType   `json:"relationship_type" db:"relationship_type"`
	Confidence   float64            `json:"confidence" db:"confidence"`
	SuppressGems bool               `json:"suppress_gems" db:"suppress_gems"`
	Source       RelationshipSource `json:"source" db:"source"`
	Note         string             `json:"note" db:"note"`
	UpdatedAt    time.Time          `json:"updated_at" db:"updated_at"`
}

// KnownEntities holds the curated domain lists consulted before
// signal-weighted relationship detection.
type KnownEntities struct {
	Infrastructure     []string `yaml:"infrastructure"`
	Institutional      []string `yaml:"institutional"`
	MarketingPlatforms []string `yaml:"marketing_platforms"`
	UserSuppressed     []string `yaml:"user_suppressed"`
}
