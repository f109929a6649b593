// Package metadata is the header-forensics stage: sender domain collapse,
// ESP fingerprinting, authentication verdicts, infra fields, and the
// per-domain temporal rollup.
package metadata

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/pkg/logger"
	"github.com/gemsieve/gemsieve/internal/store"
)

// Stage extracts parsed metadata for every message that lacks it.
type Stage struct {
	repo          *store.MetadataRepo
	fingerprinter *Fingerprinter
	log           *logger.Logger
}

// NewStage creates the metadata stage.
func NewStage(repo *store.MetadataRepo, fp *Fingerprinter) *Stage {
	return &Stage{repo: repo, fingerprinter: fp, log: logger.WithComponent("metadata")}
}

// Run processes unprocessed messages and refreshes the temporal rollup
// for every touched domain. Returns the number of messages processed.
func (s *Stage) Run(ctx context.Context) (int, error) {
	msgs, err := s.repo.UnprocessedMessages(ctx)
	if err != nil {
		return 0, err
	}

	touched := map[string]bool{}
	processed := 0
	for i := range msgs {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		pm := s.Extract(&msgs[i])
		if err := s.repo.Upsert(ctx, pm); err != nil {
			return processed, err
		}
		if pm.SenderDomain != "" {
			touched[pm.SenderDomain] = true
		}
		processed++
	}

	for d := range touched {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if err := s.rollupDomain(ctx, d); err != nil {
			return processed, err
		}
	}

	s.log.Info("metadata stage complete", "messages", processed, "domains", len(touched))
	return processed, nil
}

// CollapseDomain reduces a host to its organizational root using the
// public suffix list: notification.intuit.com → intuit.com. Hosts the
// PSL cannot reduce (single labels, IPs) pass through unchanged.
func CollapseDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	if host == "" {
		return ""
	}
	root, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return root
}

var (
	angleAddrRe  = regexp.MustCompile(`<([^>]+)>`)
	dkimDomainRe = regexp.MustCompile(`(?i)\bd=([A-Za-z0-9.\-]+)`)
	spfResultRe  = regexp.MustCompile(`(?i)\bspf=(\w+)`)
	dmarcResultRe = regexp.MustCompile(`(?i)\bdmarc=(\w+)`)
	receivedHostRe = regexp.MustCompile(`(?i)^from\s+(\S+)`)
	receivedIPRe   = regexp.MustCompile(`\[(\d{1,3}(?:\.\d{1,3}){3})\]`)
	unsubURLRe     = regexp.MustCompile(`<(https?://[^>]+)>`)
	unsubMailtoRe  = regexp.MustCompile(`<mailto:([^>?]+)`)
)

// Extract produces the parsed-metadata row for one message.
func (s *Stage) Extract(m *domain.Message) *domain.ParsedMetadata {
	pm := &domain.ParsedMetadata{
		MessageID: m.ID,
		ParsedAt:  time.Now().UTC(),
	}

	// The raw host is always kept alongside the collapsed root; consumers
	// compare the two to spot subdomain senders.
	host := emailHost(m.FromEmail)
	pm.SenderDomain = CollapseDomain(host)
	pm.SenderSubdomain = strings.ToLower(host)

	// Envelope sender from Return-Path.
	if rp := m.Header("Return-Path"); rp != "" {
		if match := angleAddrRe.FindStringSubmatch(rp); match != nil {
			pm.EnvelopeSender = strings.ToLower(match[1])
		} else {
			pm.EnvelopeSender = strings.ToLower(strings.TrimSpace(rp))
		}
	}

	// Authentication.
	if sig := m.Header("DKIM-Signature"); sig != "" {
		if match := dkimDomainRe.FindStringSubmatch(sig); match != nil {
			pm.DKIMDomain = strings.ToLower(match[1])
		}
	}
	authResults := m.Header("Authentication-Results")
	if match := spfResultRe.FindStringSubmatch(authResults); match != nil {
		pm.SPFResult = strings.ToLower(match[1])
	}
	if match := dmarcResultRe.FindStringSubmatch(authResults); match != nil {
		pm.DMARCResult = strings.ToLower(match[1])
	}
	if pm.SPFResult == "" {
		if rs := m.Header("Received-SPF"); rs != "" {
			pm.SPFResult = strings.ToLower(strings.Fields(rs)[0])
		}
	}

	// Infra from the outermost Received header.
	if recv := m.Header("Received"); recv != "" {
		if match := receivedHostRe.FindStringSubmatch(recv); match != nil {
			pm.MailServer = strings.ToLower(match[1])
		}
		if match := receivedIPRe.FindStringSubmatch(recv); match != nil {
			pm.SendingIP = match[1]
		}
	}
	pm.XMailer = m.Header("X-Mailer")
	pm.Precedence = strings.ToLower(m.Header("Precedence"))
	pm.FeedbackID = m.Header("Feedback-ID")

	if unsub := m.Header("List-Unsubscribe"); unsub != "" {
		if match := unsubURLRe.FindStringSubmatch(unsub); match != nil {
			pm.ListUnsubscribeURL = match[1]
		}
		if match := unsubMailtoRe.FindStringSubmatch(unsub); match != nil {
			pm.ListUnsubscribeEmail = strings.ToLower(match[1])
		}
	}

	// ESP fingerprint.
	name, conf, marketing := s.fingerprinter.Identify(Evidence{
		ReturnPath:   pm.EnvelopeSender,
		DKIMDomain:   pm.DKIMDomain,
		XMailer:      pm.XMailer,
		Headers:      m.HeadersRaw,
		SenderDomain: pm.SenderDomain,
	})
	pm.ESPIdentified = name
	pm.ESPConfidence = conf

	switch pm.Precedence {
	case "bulk", "list", "junk":
		pm.IsBulk = true
	}
	if pm.ListUnsubscribeURL != "" || pm.ListUnsubscribeEmail != "" {
		pm.IsBulk = true
	}
	if marketing && conf == domain.ESPConfidenceHigh {
		pm.IsBulk = true
	}

	return pm
}

func emailHost(email string) string {
	if addr, err := mail.ParseAddress(email); err == nil {
		email = addr.Address
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return email[at+1:]
}

// rollupDomain recomputes the sender_temporal row for one domain from its
// message dates.
func (s *Stage) rollupDomain(ctx context.Context, senderDomain string) error {
	raw, err := s.repo.MessageDatesForDomain(ctx, senderDomain)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	dates := make([]time.Time, 0, len(raw))
	for _, r := range raw {
		if t, err := time.Parse(time.RFC3339, r); err == nil {
			dates = append(dates, t)
		}
	}
	if len(dates) == 0 {
		return nil
	}

	t := &domain.SenderTemporal{
		SenderDomain:  senderDomain,
		TotalMessages: len(dates),
		FirstSeen:     dates[0],
		LastSeen:      dates[len(dates)-1],
		UpdatedAt:     time.Now().UTC(),
	}

	if len(dates) > 1 {
		var totalGap float64
		for i := 1; i < len(dates); i++ {
			totalGap += dates[i].Sub(dates[i-1]).Hours() / 24
		}
		t.AvgFrequencyDays = totalGap / float64(len(dates)-1)
	}

	hours := map[int]int{}
	weekdays := map[int]int{}
	for _, d := range dates {
		hours[d.UTC().Hour()]++
		weekdays[int(d.UTC().Weekday())]++
	}
	t.MostCommonHour = modalKey(hours)
	t.MostCommonWeekday = modalKey(weekdays)

	return s.repo.UpsertTemporal(ctx, t)
}

func modalKey(counts map[int]int) int {
	best, bestCount := 0, -1
	for k, n := range counts {
		if n > bestCount || (n == bestCount && k < best) {
			best, bestCount = k, n
		}
	}
	return best
}
