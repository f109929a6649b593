package domain

import (
	"strings"
	"time"
)

// AwaitingState says which side of a thread owes the next reply.
type AwaitingState string

const (
	AwaitingUser  AwaitingState = "user"
	AwaitingOther AwaitingState = "other"
	AwaitingNone  AwaitingState = "none"
)

// Address is a parsed RFC 5322 mailbox.
type Address struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Message is a single mail message as ingested from the provider.
type Message struct {
	ID             string              `json:"id" db:"id"`
	ThreadID       string              `json:"thread_id" db:"thread_id"`
	FromName       string              `json:"from_name" db:"from_name"`
	FromEmail      string              `json:"from_email" db:"from_email"`
	ReplyTo        string              `json:"reply_to" db:"reply_to"`
	ToEmails       []Address           `json:"to_emails" db:"to_emails"`
	CcEmails       []Address           `json:"cc_emails" db:"cc_emails"`
	Subject        string              `json:"subject" db:"subject"`
	Date           time.Time           `json:"date" db:"date"`
	BodyText       string              `json:"body_text" db:"body_text"`
	BodyHTML       string              `json:"body_html" db:"body_html"`
	Snippet        string              `json:"snippet" db:"snippet"`
	Labels         []string            `json:"labels" db:"labels"`
	HeadersRaw     map[string][]string `json:"headers_raw" db:"headers_raw"`
	IsSentByUser   bool                `json:"is_sent_by_user" db:"is_sent_by_user"`
	SizeEstimate   int64               `json:"size_estimate" db:"size_estimate"`
	HasAttachments bool                `json:"has_attachments" db:"has_attachments"`
}

// Header returns the first value of the named header, case-insensitively.
func (m *Message) Header(name string) string {
	for k, vs := range m.HeadersRaw {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

// Body returns the best available body text: the plain-text part when
// present, otherwise the raw HTML.
func (m *Message) Body() string {
	if strings.TrimSpace(m.BodyText) != "" {
		return m.BodyText
	}
	return m.BodyHTML
}

// Attachment is file metadata attached to a message. Payloads are never
// downloaded; only the envelope is kept.
type Attachment struct {
	ID        int64  `json:"id" db:"id"`
	MessageID string `json:"message_id" db:"message_id"`
	Filename  string `json:"filename" db:"filename"`
	MimeType  string `json:"mime_type" db:"mime_type"`
	SizeBytes int64  `json:"size_bytes" db:"size_bytes"`
}

// Thread aggregates the messages of one conversation. Every field is
// derivable from the member messages and is recomputed on ingest.
type Thread struct {
	ID               string        `json:"id" db:"id"`
	Subject          string        `json:"subject" db:"subject"`
	CleanSubject     string        `json:"clean_subject" db:"clean_subject"`
	Participants     []string      `json:"participants" db:"participants"`
	MessageCount     int           `json:"message_count" db:"message_count"`
	FirstMessageDate time.Time     `json:"first_message_date" db:"first_message_date"`
	LastMessageDate  time.Time     `json:"last_message_date" db:"last_message_date"`
	LastSender       string        `json:"last_sender" db:"last_sender"`
	UserParticipated bool          `json:"user_participated" db:"user_participated"`
	UserLastReplied  *time.Time    `json:"user_last_replied" db:"user_last_replied"`
	AwaitingResponse AwaitingState `json:"awaiting_response_from" db:"awaiting_response_from"`
	DaysDormant      int           `json:"days_dormant" db:"days_dormant"`
}

// SyncState is the singleton row tracking mailbox sync progress.
type SyncState struct {
	LastHistoryID       string     `json:"last_history_id" db:"last_history_id"`
	LastFullSync        *time.Time `json:"last_full_sync" db:"last_full_sync"`
	LastIncrementalSync *time.Time `json:"last_incremental_sync" db:"last_incremental_sync"`
	TotalSynced         int64      `json:"total_synced" db:"total_synced"`
}
