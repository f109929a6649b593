package mailbox

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/gemsieve/gemsieve/internal/domain"
)

// MboxProvider reads a local mbox file (e.g. a Google Takeout export) so
// the pipeline can run without OAuth. It supports full scans only: the
// history delta always reports an expired cursor, which pushes the sync
// engine onto the upsert-guarded full path.
type MboxProvider struct {
	path      string
	userEmail string

	// messages is loaded lazily on the first ListMessages call.
	messages []*parsedMboxMessage
}

type parsedMboxMessage struct {
	msg  *domain.Message
	atts []domain.Attachment
}

// NewMboxProvider creates an mbox-backed provider. userEmail identifies
// which From addresses count as sent-by-user.
func NewMboxProvider(path, userEmail string) *MboxProvider {
	return &MboxProvider{path: path, userEmail: strings.ToLower(userEmail)}
}

// UserEmail returns the configured owner address.
func (p *MboxProvider) UserEmail() string { return p.userEmail }

// ListMessages returns every message in the file as a single page.
// The query is ignored; mbox files carry no search index.
func (p *MboxProvider) ListMessages(ctx context.Context, query, pageToken string) ([]MessageRef, string, error) {
	if pageToken != "" {
		return nil, "", nil
	}
	if err := p.load(); err != nil {
		return nil, "", err
	}
	refs := make([]MessageRef, 0, len(p.messages))
	for _, pm := range p.messages {
		refs = append(refs, MessageRef{ID: pm.msg.ID, ThreadID: pm.msg.ThreadID})
	}
	return refs, "", nil
}

// FetchMessage returns a previously listed message by id.
func (p *MboxProvider) FetchMessage(ctx context.Context, id string) (*domain.Message, []domain.Attachment, error) {
	if err := p.load(); err != nil {
		return nil, nil, err
	}
	for _, pm := range p.messages {
		if pm.msg.ID == id {
			return pm.msg, pm.atts, nil
		}
	}
	return nil, nil, fmt.Errorf("mbox message %s not found", id)
}

// HistoryDelta always reports an expired cursor: mbox files have no
// change feed.
func (p *MboxProvider) HistoryDelta(ctx context.Context, cursor string) ([]string, string, error) {
	return nil, "", ErrHistoryExpired
}

// CurrentCursor returns an opaque constant; it is never honored by
// HistoryDelta.
func (p *MboxProvider) CurrentCursor(ctx context.Context) (string, error) {
	return "mbox", nil
}

// load splits the file on "From " separator lines and parses each chunk
// with net/mail.
func (p *MboxProvider) load() error {
	if p.messages != nil {
		return nil
	}
	f, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer f.Close()

	var chunk strings.Builder
	flush := func() {
		if chunk.Len() == 0 {
			return
		}
		if pm := p.parseChunk(chunk.String()); pm != nil {
			p.messages = append(p.messages, pm)
		}
		chunk.Reset()
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "From ") && !strings.HasPrefix(line, "From:") {
			flush()
			continue
		}
		// Reverse mboxrd quoting.
		if strings.HasPrefix(line, ">From ") {
			line = line[1:]
		}
		chunk.WriteString(line)
		chunk.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan mbox: %w", err)
	}
	flush()
	return nil
}

func (p *MboxProvider) parseChunk(raw string) *parsedMboxMessage {
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		return nil
	}

	m := &domain.Message{HeadersRaw: map[string][]string(msg.Header)}
	m.Subject = m.Header("Subject")

	if from := m.Header("From"); from != "" {
		if addr, err := mail.ParseAddress(from); err == nil {
			m.FromName = addr.Name
			m.FromEmail = strings.ToLower(addr.Address)
		}
	}
	m.ToEmails = parseAddressList(m.Header("To"))
	m.CcEmails = parseAddressList(m.Header("Cc"))
	if rt := m.Header("Reply-To"); rt != "" {
		if addr, err := mail.ParseAddress(rt); err == nil {
			m.ReplyTo = strings.ToLower(addr.Address)
		}
	}

	if d := m.Header("Date"); d != "" {
		if t, err := mail.ParseDate(d); err == nil {
			m.Date = t.UTC()
		}
	}
	if m.Date.IsZero() {
		m.Date = time.Now().UTC()
	}

	body, _ := io.ReadAll(msg.Body)
	ct := m.Header("Content-Type")
	if strings.Contains(ct, "text/html") {
		m.BodyHTML = string(body)
	} else {
		m.BodyText = string(body)
	}

	// Gmail exports carry Message-ID and X-GM-THRID; fall back to content
	// hashes so ingest stays idempotent across re-imports.
	m.ID = strings.Trim(m.Header("Message-ID"), "<>")
	if m.ID == "" {
		sum := sha1.Sum([]byte(raw))
		m.ID = hex.EncodeToString(sum[:])
	}
	m.ThreadID = m.Header("X-GM-THRID")
	if m.ThreadID == "" {
		sum := sha1.Sum([]byte(normalizeSubjectKey(m.Subject)))
		m.ThreadID = "t-" + hex.EncodeToString(sum[:8])
	}

	m.SizeEstimate = int64(len(raw))
	m.IsSentByUser = p.userEmail != "" && m.FromEmail == p.userEmail
	return &parsedMboxMessage{msg: m}
}

func normalizeSubjectKey(subject string) string {
	s := strings.ToLower(strings.TrimSpace(subject))
	for {
		trimmed := s
		for _, prefix := range []string{"re:", "fwd:", "fw:"} {
			trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		}
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}
