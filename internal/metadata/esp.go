package metadata

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gemsieve/gemsieve/internal/domain"
)

// ESPRule is one declarative fingerprint. A sender matches when every
// populated signal holds; partial matches are scored by signal count.
type ESPRule struct {
	Name               string   `yaml:"name"`
	ReturnPathContains []string `yaml:"return_path_contains"`
	DKIMDomains        []string `yaml:"dkim_domains"`
	HeadersPresent     []string `yaml:"headers_present"`
	XMailerContains    []string `yaml:"x_mailer_contains"`
	TrackingDomains    []string `yaml:"tracking_domains"`
	Confidence         string   `yaml:"confidence"`
	MarketingESP       bool     `yaml:"marketing_esp"`
}

// Fingerprinter matches header evidence against the ESP rule set.
type Fingerprinter struct {
	rules []ESPRule
}

// NewFingerprinter loads rules from a YAML file, falling back to the
// built-in set when the path is empty or missing.
func NewFingerprinter(path string) (*Fingerprinter, error) {
	if path == "" {
		return &Fingerprinter{rules: defaultESPRules}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Fingerprinter{rules: defaultESPRules}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read esp rules: %w", err)
	}
	var doc struct {
		Rules []ESPRule `yaml:"esp_fingerprints"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse esp rules: %w", err)
	}
	if len(doc.Rules) == 0 {
		return &Fingerprinter{rules: defaultESPRules}, nil
	}
	return &Fingerprinter{rules: doc.Rules}, nil
}

// Evidence is the header material the fingerprinter inspects.
type Evidence struct {
	ReturnPath   string
	DKIMDomain   string
	XMailer      string
	Headers      map[string][]string
	LinkDomains  []string
	SenderDomain string
}

// Identify returns the matched ESP name, its confidence, and whether the
// rule marks a marketing platform. The first rule whose signals all hold
// wins; otherwise the best partial scorer. Senders signing with their own
// root domain fall through to custom_smtp at low confidence.
func (f *Fingerprinter) Identify(ev Evidence) (name string, conf domain.ESPConfidence, marketing bool) {
	bestName, bestScore := "", 0
	bestConf := domain.ESPConfidenceLow
	bestMarketing := false

	for _, rule := range f.rules {
		matched, total := rule.score(ev)
		if total == 0 {
			continue
		}
		if matched == total {
			return rule.Name, parseConfidence(rule.Confidence), rule.MarketingESP
		}
		if matched > bestScore {
			bestName, bestScore = rule.Name, matched
			bestConf = downgrade(parseConfidence(rule.Confidence))
			bestMarketing = rule.MarketingESP
		}
	}
	if bestScore > 0 {
		return bestName, bestConf, bestMarketing
	}
	if ev.DKIMDomain != "" && ev.SenderDomain != "" &&
		strings.HasSuffix(ev.DKIMDomain, ev.SenderDomain) {
		return "custom_smtp", domain.ESPConfidenceLow, false
	}
	return "unknown", domain.ESPConfidenceLow, false
}

// score treats each populated field as one signal; the entries within a
// field are alternatives, any one satisfies the signal.
func (r ESPRule) score(ev Evidence) (matched, total int) {
	check := func(hit bool) {
		total++
		if hit {
			matched++
		}
	}
	anyContains := func(hay string, needles []string) bool {
		hay = strings.ToLower(hay)
		for _, n := range needles {
			if strings.Contains(hay, strings.ToLower(n)) {
				return true
			}
		}
		return false
	}

	if len(r.ReturnPathContains) > 0 {
		check(anyContains(ev.ReturnPath, r.ReturnPathContains))
	}
	if len(r.DKIMDomains) > 0 {
		check(anyContains(ev.DKIMDomain, r.DKIMDomains))
	}
	if len(r.HeadersPresent) > 0 {
		hit := false
		for _, h := range r.HeadersPresent {
			for k := range ev.Headers {
				if strings.EqualFold(k, h) {
					hit = true
					break
				}
			}
		}
		check(hit)
	}
	if len(r.XMailerContains) > 0 {
		check(anyContains(ev.XMailer, r.XMailerContains))
	}
	if len(r.TrackingDomains) > 0 {
		hit := false
		for _, ld := range ev.LinkDomains {
			if anyContains(ld, r.TrackingDomains) {
				hit = true
				break
			}
		}
		check(hit)
	}
	return matched, total
}

func parseConfidence(s string) domain.ESPConfidence {
	switch strings.ToLower(s) {
	case "high":
		return domain.ESPConfidenceHigh
	case "medium":
		return domain.ESPConfidenceMedium
	default:
		return domain.ESPConfidenceLow
	}
}

func downgrade(c domain.ESPConfidence) domain.ESPConfidence {
	if c == domain.ESPConfidenceHigh {
		return domain.ESPConfidenceMedium
	}
	return domain.ESPConfidenceLow
}

// defaultESPRules covers the major platforms. A YAML rules file replaces
// this set wholesale.
var defaultESPRules = []ESPRule{
	{Name: "hubspot", ReturnPathContains: []string{"hubspotemail.net"}, DKIMDomains: []string{"hubspotemail.net", "hs-send.com"}, HeadersPresent: []string{"X-HubSpot-Campaign-Id"}, Confidence: "high", MarketingESP: true},
	{Name: "mailchimp", ReturnPathContains: []string{"mcsv.net", "rsgsv.net"}, DKIMDomains: []string{"mcsv.net"}, HeadersPresent: []string{"X-MC-User"}, TrackingDomains: []string{"list-manage.com"}, Confidence: "high", MarketingESP: true},
	{Name: "sendgrid", ReturnPathContains: []string{"sendgrid.net"}, DKIMDomains: []string{"sendgrid.net", "sendgrid.info"}, HeadersPresent: []string{"X-SG-EID"}, TrackingDomains: []string{"sendgrid.net"}, Confidence: "high"},
	{Name: "klaviyo", ReturnPathContains: []string{"klaviyomail.com"}, DKIMDomains: []string{"klaviyomail.com"}, TrackingDomains: []string{"klclick.com", "klaviyo.com"}, Confidence: "high", MarketingESP: true},
	{Name: "activecampaign", ReturnPathContains: []string{"acemsrvc.com", "emsend1.com"}, TrackingDomains: []string{"lt.acemlnb.com"}, Confidence: "high", MarketingESP: true},
	{Name: "salesforce_mc", ReturnPathContains: []string{"exacttarget.com", "mcsignup.com"}, DKIMDomains: []string{"exacttarget.com"}, HeadersPresent: []string{"X-SFMC-Stack"}, Confidence: "high", MarketingESP: true},
	{Name: "marketo", ReturnPathContains: []string{"mktomail.com"}, DKIMDomains: []string{"mktomail.com"}, HeadersPresent: []string{"X-MSFBL"}, TrackingDomains: []string{"mktoweb.com"}, Confidence: "high", MarketingESP: true},
	{Name: "pardot", ReturnPathContains: []string{"bounce.s7.exacttarget.com", "pardot.com"}, DKIMDomains: []string{"pardot.com"}, Confidence: "high", MarketingESP: true},
	{Name: "convertkit", ReturnPathContains: []string{"convertkit-mail"}, DKIMDomains: []string{"ck.page", "convertkit.com"}, Confidence: "high", MarketingESP: true},
	{Name: "postmark", ReturnPathContains: []string{"mtasv.net"}, DKIMDomains: []string{"pm.mtasv.net"}, HeadersPresent: []string{"X-PM-Message-Id"}, Confidence: "high"},
	{Name: "amazon_ses", ReturnPathContains: []string{"amazonses.com"}, DKIMDomains: []string{"amazonses.com"}, HeadersPresent: []string{"X-SES-Outgoing"}, Confidence: "high"},
	{Name: "mailgun", ReturnPathContains: []string{"mailgun.org", "mailgun.info"}, DKIMDomains: []string{"mailgun.org"}, HeadersPresent: []string{"X-Mailgun-Sid"}, Confidence: "high"},
	{Name: "sparkpost", ReturnPathContains: []string{"sparkpostmail.com"}, DKIMDomains: []string{"sparkpostmail.com"}, HeadersPresent: []string{"X-MSFBL"}, Confidence: "medium"},
	{Name: "constant_contact", ReturnPathContains: []string{"in.constantcontact.com"}, DKIMDomains: []string{"auth.ccsend.com"}, TrackingDomains: []string{"rs6.net"}, Confidence: "high", MarketingESP: true},
	{Name: "intercom", ReturnPathContains: []string{"intercom-mail.com"}, DKIMDomains: []string{"intercom-mail.com"}, Confidence: "high"},
	{Name: "braze", ReturnPathContains: []string{"braze.com", "appboy.com"}, DKIMDomains: []string{"braze.com"}, Confidence: "high", MarketingESP: true},
	{Name: "iterable", ReturnPathContains: []string{"iterable.com"}, DKIMDomains: []string{"iterable.com"}, TrackingDomains: []string{"links.iterable.com"}, Confidence: "high", MarketingESP: true},
	{Name: "customerio", ReturnPathContains: []string{"customeriomail.com"}, DKIMDomains: []string{"customeriomail.com"}, Confidence: "high", MarketingESP: true},
}
