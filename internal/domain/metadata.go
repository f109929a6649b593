package domain

import "time"

// ESPConfidence grades how sure the fingerprinter is about an ESP match.
type ESPConfidence string

const (
	ESPConfidenceHigh   ESPConfidence = "high"
	ESPConfidenceMedium ESPConfidence = "medium"
	ESPConfidenceLow    ESPConfidence = "low"
)

// ParsedMetadata holds the header forensics for one message.
type ParsedMetadata struct {
	MessageID            string        `json:"message_id" db:"message_id"`
	SenderDomain         string        `json:"sender_domain" db:"sender_domain"`
	SenderSubdomain      string        `json:"sender_subdomain" db:"sender_subdomain"`
	EnvelopeSender       string        `json:"envelope_sender" db:"envelope_sender"`
	ESPIdentified        string        `json:"esp_identified" db:"esp_identified"`
	ESPConfidence        ESPConfidence `json:"esp_confidence" db:"esp_confidence"`
	DKIMDomain           string        `json:"dkim_domain" db:"dkim_domain"`
	SPFResult            string        `json:"spf_result" db:"spf_result"`
	DMARCResult          string        `json:"dmarc_result" db:"dmarc_result"`
	SendingIP            string        `json:"sending_ip" db:"sending_ip"`
	MailServer           string        `json:"mail_server" db:"mail_server"`
	XMailer              string        `json:"x_mailer" db:"x_mailer"`
	Precedence           string        `json:"precedence" db:"precedence"`
	FeedbackID           string        `json:"feedback_id" db:"feedback_id"`
	ListUnsubscribeURL   string        `json:"list_unsubscribe_url" db:"list_unsubscribe_url"`
	ListUnsubscribeEmail string        `json:"list_unsubscribe_email" db:"list_unsubscribe_email"`
	IsBulk               bool          `json:"is_bulk" db:"is_bulk"`
	ParsedAt             time.Time     `json:"parsed_at" db:"parsed_at"`
}

// SenderTemporal is the per-domain sending-rhythm rollup.
type SenderTemporal struct {
	SenderDomain      string    `json:"sender_domain" db:"sender_domain"`
	TotalMessages     int       `json:"total_messages" db:"total_messages"`
	FirstSeen         time.Time `json:"first_seen" db:"first_seen"`
	LastSeen          time.Time `json:"last_seen" db:"last_seen"`
	AvgFrequencyDays  float64   `json:"avg_frequency_days" db:"avg_frequency_days"`
	MostCommonHour    int       `json:"most_common_hour" db:"most_common_hour"`
	MostCommonWeekday int       `json:"most_common_weekday" db:"most_common_weekday"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}
