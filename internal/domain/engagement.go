package domain

import "time"

// Strategy names one engagement playbook.
type Strategy string

const (
	StrategyAudit              Strategy = "audit"
	StrategyIndustryReport     Strategy = "industry_report"
	StrategyRevival            Strategy = "revival"
	StrategyPartner            Strategy = "partner"
	StrategyRenewalNegotiation Strategy = "renewal_negotiation"
	StrategyMirror             Strategy = "mirror"
	StrategyDistributionPitch  Strategy = "distribution_pitch"
)

// DraftStatus is the lifecycle state of an engagement draft. Nothing in
// the pipeline ever sends; "sent" is recorded by the user.
type DraftStatus string

const (
	DraftStatusDraft    DraftStatus = "draft"
	DraftStatusApproved DraftStatus = "approved"
	DraftStatusSent     DraftStatus = "sent"
	DraftStatusReplied  DraftStatus = "replied"
)

// EngagementDraft is a generated outreach message awaiting human review.
type EngagementDraft struct {
	ID               int64       `json:"id" db:"id"`
	GemID            int64       `json:"gem_id" db:"gem_id"`
	SenderDomain     string      `json:"sender_domain" db:"sender_domain"`
	Strategy         Strategy    `json:"strategy" db:"strategy"`
	Channel          string      `json:"channel" db:"channel"`
	SubjectLine      string      `json:"subject_line" db:"subject_line"`
	BodyText         string      `json:"body_text" db:"body_text"`
	BodyHTML         string      `json:"body_html" db:"body_html"`
	ContextUsed      map[string]any `json:"context_used" db:"context_used"`
	ModelUsed        string      `json:"model_used" db:"model_used"`
	Status           DraftStatus `json:"status" db:"status"`
	GeneratedAt      time.Time   `json:"generated_at" db:"generated_at"`
	SentAt           *time.Time  `json:"sent_at" db:"sent_at"`
	ResponseReceived bool        `json:"response_received" db:"response_received"`
	ResponseSentiment string     `json:"response_sentiment" db:"response_sentiment"`
}
