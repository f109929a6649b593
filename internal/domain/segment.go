package domain

import "time"

// The six economic segments a profile can belong to. Membership is
// multi-valued; a profile may hold any subset.
const (
	SegmentSpendMap        = "spend_map"
	SegmentPartnerMap      = "partner_map"
	SegmentProspectMap     = "prospect_map"
	SegmentDormantThreads  = "dormant_threads"
	SegmentDistributionMap = "distribution_map"
	SegmentProcurementMap  = "procurement_map"
)

// SenderSegment is one (domain, segment, sub-segment) membership row.
type SenderSegment struct {
	ID           int64     `json:"id" db:"id"`
	SenderDomain string    `json:"sender_domain" db:"sender_domain"`
	Segment      string    `json:"segment" db:"segment"`
	SubSegment   string    `json:"sub_segment" db:"sub_segment"`
	Confidence   float64   `json:"confidence" db:"confidence"`
	AssignedAt   time.Time `json:"assigned_at" db:"assigned_at"`
}
