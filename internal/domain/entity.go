package domain

import "time"

// EntityType classifies an extracted entity.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityMoney        EntityType = "money"
	EntityDate         EntityType = "date"
	EntityRole         EntityType = "role"
	EntityPhone        EntityType = "phone"
	EntityURL          EntityType = "url"
	EntityProcurement  EntityType = "procurement_signal"
)

// EntitySource records which extractor produced an entity.
type EntitySource string

const (
	SourceSpacy  EntitySource = "spacy"
	SourceRegex  EntitySource = "regex"
	SourceHeader EntitySource = "header"
)

// Person-entity context classes, stored in ExtractedEntity.Context for
// person entities alongside the surrounding evidence.
const (
	PersonDecisionMaker = "decision_maker"
	PersonAutomated     = "automated"
	PersonVendorContact = "vendor_contact"
	PersonPeer          = "peer"
)

// Procurement signal bands, stored in ExtractedEntity.Normalized.
const (
	ProcurementActiveBuying     = "active_buying"
	ProcurementContractActivity = "contract_activity"
	ProcurementSecurityReview   = "security_review"
)

// ExtractedEntity is one span of interest found in a message.
type ExtractedEntity struct {
	ID          int64        `json:"id" db:"id"`
	MessageID   string       `json:"message_id" db:"message_id"`
	EntityType  EntityType   `json:"entity_type" db:"entity_type"`
	Value       string       `json:"value" db:"value"`
	Normalized  string       `json:"normalized" db:"normalized"`
	Context     string       `json:"context" db:"context"`
	Confidence  float64      `json:"confidence" db:"confidence"`
	Source      EntitySource `json:"source" db:"source"`
	ExtractedAt time.Time    `json:"extracted_at" db:"extracted_at"`
}
