package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemsieve/gemsieve/internal/domain"
)

func TestCollapseDomain(t *testing.T) {
	cases := []struct {
		host string
		want string
	}{
		{"notification.intuit.com", "intuit.com"},
		{"intuit.com", "intuit.com"},
		{"mail.a.b.co.uk", "b.co.uk"},
		{"ACME.COM.", "acme.com"},
		{"localhost", "localhost"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CollapseDomain(c.host), "host %q", c.host)
	}
}

func TestExtractSenderDomainAndSubdomain(t *testing.T) {
	fp, err := NewFingerprinter("")
	require.NoError(t, err)
	s := NewStage(nil, fp)

	m := &domain.Message{
		ID:        "m1",
		FromEmail: "Billing <no-reply@notification.intuit.com>",
		Date:      time.Now().UTC(),
		HeadersRaw: map[string][]string{
			"Return-Path":            {"<bounce-123@mail.intuit.com>"},
			"DKIM-Signature":         {"v=1; a=rsa-sha256; d=intuit.com; s=sel;"},
			"Authentication-Results": {"mx.example.com; spf=pass; dkim=pass; dmarc=pass"},
			"Received":               {"from mta7.intuit.com [192.0.2.10] by mx.example.com"},
			"Precedence":             {"bulk"},
			"List-Unsubscribe":       {"<https://unsub.intuit.com/u/1>, <mailto:unsub@intuit.com>"},
		},
	}

	pm := s.Extract(m)
	assert.Equal(t, "intuit.com", pm.SenderDomain)
	assert.Equal(t, "notification.intuit.com", pm.SenderSubdomain)
	assert.Equal(t, "bounce-123@mail.intuit.com", pm.EnvelopeSender)
	assert.Equal(t, "intuit.com", pm.DKIMDomain)
	assert.Equal(t, "pass", pm.SPFResult)
	assert.Equal(t, "pass", pm.DMARCResult)
	assert.Equal(t, "mta7.intuit.com", pm.MailServer)
	assert.Equal(t, "192.0.2.10", pm.SendingIP)
	assert.Equal(t, "https://unsub.intuit.com/u/1", pm.ListUnsubscribeURL)
	assert.Equal(t, "unsub@intuit.com", pm.ListUnsubscribeEmail)
	assert.True(t, pm.IsBulk)
}

func TestExtractRootDomainSenderKeepsRawHost(t *testing.T) {
	fp, err := NewFingerprinter("")
	require.NoError(t, err)
	s := NewStage(nil, fp)

	// The subdomain column always carries the raw host, even when it
	// equals the collapsed root.
	pm := s.Extract(&domain.Message{ID: "m2", FromEmail: "jane@acme.com"})
	assert.Equal(t, "acme.com", pm.SenderDomain)
	assert.Equal(t, "acme.com", pm.SenderSubdomain)
	assert.False(t, pm.IsBulk)
}

func TestIdentifyFullMatchWins(t *testing.T) {
	fp, err := NewFingerprinter("")
	require.NoError(t, err)

	name, conf, marketing := fp.Identify(Evidence{
		ReturnPath: "bounce@mail123.mcsv.net",
		DKIMDomain: "dkim.mcsv.net",
		Headers: map[string][]string{
			"X-MC-User": {"abc"},
		},
		LinkDomains: []string{"acme.us1.list-manage.com"},
	})
	assert.Equal(t, "mailchimp", name)
	assert.Equal(t, domain.ESPConfidenceHigh, conf)
	assert.True(t, marketing)
}

func TestIdentifyPartialMatchDowngradesConfidence(t *testing.T) {
	fp, err := NewFingerprinter("")
	require.NoError(t, err)

	// Return-Path matches sendgrid but DKIM and header evidence are absent.
	name, conf, _ := fp.Identify(Evidence{
		ReturnPath: "bounces+123@sendgrid.net",
	})
	assert.Equal(t, "sendgrid", name)
	assert.Equal(t, domain.ESPConfidenceMedium, conf)
}

func TestIdentifyCustomSMTPFallthrough(t *testing.T) {
	fp, err := NewFingerprinter("")
	require.NoError(t, err)

	name, conf, marketing := fp.Identify(Evidence{
		DKIMDomain:   "mail.acme.com",
		SenderDomain: "acme.com",
	})
	assert.Equal(t, "custom_smtp", name)
	assert.Equal(t, domain.ESPConfidenceLow, conf)
	assert.False(t, marketing)

	name, _, _ = fp.Identify(Evidence{SenderDomain: "acme.com"})
	assert.Equal(t, "unknown", name)
}

func TestModalKeyPrefersSmallestOnTie(t *testing.T) {
	assert.Equal(t, 9, modalKey(map[int]int{9: 3, 14: 3, 2: 1}))
	assert.Equal(t, 0, modalKey(map[int]int{}))
}
