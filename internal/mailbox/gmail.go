package mailbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/pkg/logger"
)

// GmailProvider adapts the Gmail API to the Provider contract using the
// installed-app OAuth flow with a cached token file.
type GmailProvider struct {
	svc       *gmail.Service
	userEmail string
	log       *logger.Logger
}

// NewGmailProvider authenticates against Gmail with the given credentials
// and token files and resolves the mailbox owner's address.
func NewGmailProvider(ctx context.Context, credentialsFile, tokenFile string) (*GmailProvider, error) {
	creds, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read gmail credentials: %w", err)
	}
	conf, err := google.ConfigFromJSON(creds, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse gmail credentials: %w", err)
	}

	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("gmail token missing: run the OAuth flow to create %s: %w", tokenFile, err)
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}

	profile, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get gmail profile: %w", err)
	}

	p := &GmailProvider{
		svc:       svc,
		userEmail: strings.ToLower(profile.EmailAddress),
		log:       logger.WithComponent("gmail"),
	}
	p.log.Info("gmail authenticated", "user", p.userEmail)
	return p, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	return tok, json.NewDecoder(f).Decode(tok)
}

// UserEmail returns the authenticated address.
func (p *GmailProvider) UserEmail() string { return p.userEmail }

// ListMessages enumerates one page of message refs for a Gmail query.
func (p *GmailProvider) ListMessages(ctx context.Context, query, pageToken string) ([]MessageRef, string, error) {
	call := p.svc.Users.Messages.List("me").MaxResults(500).Context(ctx)
	if query != "" {
		call = call.Q(query)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, "", fmt.Errorf("gmail list messages: %w", err)
	}

	refs := make([]MessageRef, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		refs = append(refs, MessageRef{ID: m.Id, ThreadID: m.ThreadId})
	}
	return refs, resp.NextPageToken, nil
}

// FetchMessage retrieves one full message and converts it to the
// canonical record.
func (p *GmailProvider) FetchMessage(ctx context.Context, id string) (*domain.Message, []domain.Attachment, error) {
	gm, err := p.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("gmail get message %s: %w", id, err)
	}
	return p.convert(gm)
}

// HistoryDelta collects message ids added since the cursor. Gmail returns
// 404 for cursors older than its retention window (about a week); that
// surfaces as ErrHistoryExpired.
func (p *GmailProvider) HistoryDelta(ctx context.Context, cursor string) ([]string, string, error) {
	startID, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		return nil, "", fmt.Errorf("parse history cursor %q: %w", cursor, err)
	}

	var (
		added     []string
		newCursor uint64
		pageToken string
	)
	for {
		call := p.svc.Users.History.List("me").
			StartHistoryId(startID).
			HistoryTypes("messageAdded").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok && apiErr.Code == 404 {
				return nil, "", ErrHistoryExpired
			}
			return nil, "", fmt.Errorf("gmail history list: %w", err)
		}
		if resp.HistoryId > newCursor {
			newCursor = resp.HistoryId
		}
		for _, h := range resp.History {
			for _, ma := range h.MessagesAdded {
				if ma.Message != nil {
					added = append(added, ma.Message.Id)
				}
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	if newCursor == 0 {
		return added, cursor, nil
	}
	return added, strconv.FormatUint(newCursor, 10), nil
}

// CurrentCursor returns the mailbox's present history id.
func (p *GmailProvider) CurrentCursor(ctx context.Context) (string, error) {
	profile, err := p.svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get gmail profile: %w", err)
	}
	return strconv.FormatUint(profile.HistoryId, 10), nil
}

// convert maps a Gmail message to the canonical record, walking the MIME
// tree for text/html bodies and attachment envelopes.
func (p *GmailProvider) convert(gm *gmail.Message) (*domain.Message, []domain.Attachment, error) {
	m := &domain.Message{
		ID:           gm.Id,
		ThreadID:     gm.ThreadId,
		Snippet:      gm.Snippet,
		Labels:       gm.LabelIds,
		SizeEstimate: gm.SizeEstimate,
		HeadersRaw:   map[string][]string{},
		Date:         time.UnixMilli(gm.InternalDate).UTC(),
	}

	if gm.Payload != nil {
		for _, h := range gm.Payload.Headers {
			m.HeadersRaw[h.Name] = append(m.HeadersRaw[h.Name], h.Value)
		}
	}

	if from := m.Header("From"); from != "" {
		if addr, err := mail.ParseAddress(from); err == nil {
			m.FromName = addr.Name
			m.FromEmail = strings.ToLower(addr.Address)
		} else {
			m.FromEmail = strings.ToLower(strings.Trim(from, "<> "))
		}
	}
	m.Subject = m.Header("Subject")
	if rt := m.Header("Reply-To"); rt != "" {
		if addr, err := mail.ParseAddress(rt); err == nil {
			m.ReplyTo = strings.ToLower(addr.Address)
		}
	}
	m.ToEmails = parseAddressList(m.Header("To"))
	m.CcEmails = parseAddressList(m.Header("Cc"))

	// Date header is more precise than internalDate when parseable.
	if d := m.Header("Date"); d != "" {
		if t, err := mail.ParseDate(d); err == nil {
			m.Date = t.UTC()
		}
	}

	m.IsSentByUser = m.FromEmail == p.userEmail
	for _, l := range gm.LabelIds {
		if l == "SENT" {
			m.IsSentByUser = true
		}
	}

	var atts []domain.Attachment
	if gm.Payload != nil {
		walkParts(gm.Payload, m, &atts)
	}
	m.HasAttachments = len(atts) > 0
	return m, atts, nil
}

func parseAddressList(header string) []domain.Address {
	if header == "" {
		return nil
	}
	addrs, err := mail.ParseAddressList(header)
	if err != nil {
		// Fall back to comma splitting on malformed lists.
		var out []domain.Address
		for _, part := range strings.Split(header, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, domain.Address{Email: strings.ToLower(strings.Trim(part, "<> "))})
			}
		}
		return out
	}
	out := make([]domain.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, domain.Address{Name: a.Name, Email: strings.ToLower(a.Address)})
	}
	return out
}

// walkParts descends the MIME tree collecting the first text/plain and
// text/html bodies and every part carrying a filename.
func walkParts(part *gmail.MessagePart, m *domain.Message, atts *[]domain.Attachment) {
	if part.Filename != "" && part.Body != nil {
		*atts = append(*atts, domain.Attachment{
			MessageID: m.ID,
			Filename:  part.Filename,
			MimeType:  part.MimeType,
			SizeBytes: part.Body.Size,
		})
	} else if part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err == nil {
			switch part.MimeType {
			case "text/plain":
				if m.BodyText == "" {
					m.BodyText = string(decoded)
				}
			case "text/html":
				if m.BodyHTML == "" {
					m.BodyHTML = string(decoded)
				}
			}
		}
	}
	for _, child := range part.Parts {
		walkParts(child, m, atts)
	}
}
