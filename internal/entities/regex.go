package entities

import (
	"regexp"
	"strings"
	"time"

	"github.com/gemsieve/gemsieve/internal/domain"
)

var moneyRes = []*regexp.Regexp{
	// $1,234.56 and bare currency amounts
	regexp.MustCompile(`[$€£]\s?\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?\b`),
	// SaaS shorthand: 99/mo, $49/month, 500/yr
	regexp.MustCompile(`(?i)[$€£]?\d{1,6}\s?/\s?(mo|month|yr|year|user|seat)\b`),
	// 12k ARR / 1.5M MRR
	regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?[km]\s?(arr|mrr|budget|revenue)\b`),
	// percentage offers / commissions
	regexp.MustCompile(`(?i)\b\d{1,2}%\s?(off|discount|commission|revenue share)\b`),
}

var phoneRe = regexp.MustCompile(`(?:\+?\d{1,3}[\s.-]?)?\(?\d{3}\)?[\s.-]\d{3}[\s.-]\d{4}\b`)

var urlRe = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

var roleRe = regexp.MustCompile(`(?i)\b(CEO|CTO|COO|CFO|CMO|VP(?:\s+of)?\s+[A-Za-z ]{2,25}|VP|Vice President|Director(?:\s+of)?\s*[A-Za-z ]{0,25}|Head of [A-Za-z ]{2,25}|Founder|Co-Founder|President|Principal|Partner|General Manager)\b`)

var seniorRoleRe = regexp.MustCompile(`(?i)\b(CEO|CTO|COO|CFO|CMO|VP|Vice President|Director|Head of|Founder|Co-Founder|President|Owner)\b`)

// dateRes recognize renewal, expiration, and deadline phrasings with a
// nearby date-like string.
var dateRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(renew(?:s|al)?|expir(?:es|ation)|due|deadline|ends?)\b[^.\n]{0,40}?\b((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2}(?:,?\s+\d{4})?|\d{1,2}/\d{1,2}/\d{2,4}|\d{4}-\d{2}-\d{2})`),
}

// procurementBands maps signal bands to their recognizers.
var procurementBands = map[string][]*regexp.Regexp{
	domain.ProcurementActiveBuying: {
		regexp.MustCompile(`(?i)\b(evaluating (vendors|solutions|tools)|in the market for|looking to (buy|purchase)|budget approved|shortlist(ed)?)\b`),
	},
	domain.ProcurementContractActivity: {
		regexp.MustCompile(`(?i)\b(msa|master service agreement|statement of work|sow\b|contract (review|renewal|negotiation)|purchase order|po number)\b`),
	},
	domain.ProcurementSecurityReview: {
		regexp.MustCompile(`(?i)\b(security (review|questionnaire|assessment)|soc ?2|vendor risk|dpa\b|data processing (agreement|addendum)|penetration test)\b`),
	},
}

// roleLikeLocalParts mark automated or shared mailboxes.
var roleLikeLocalParts = []string{
	"noreply", "no-reply", "donotreply", "support", "info", "hello", "sales",
	"billing", "notifications", "team", "help", "contact", "admin", "marketing",
	"newsletter", "news", "updates",
}

func isRoleLikeAddress(email string) bool {
	local := email
	if at := strings.Index(email, "@"); at > 0 {
		local = email[:at]
	}
	local = strings.ToLower(local)
	for _, r := range roleLikeLocalParts {
		if strings.HasPrefix(local, r) {
			return true
		}
	}
	return false
}

// dateLayouts feed the forgiving parser.
var dateLayouts = []string{
	"January 2, 2006", "January 2 2006", "Jan 2, 2006", "Jan 2 2006",
	"January 2", "Jan 2", "Jan. 2, 2006",
	"1/2/2006", "01/02/2006", "1/2/06",
	"2006-01-02",
}

// ParseDate parses a human-written date string the way the date
// extractor does. Year-less dates resolve to their next occurrence.
func ParseDate(s string, now time.Time) (time.Time, bool) {
	return parseForgivingDate(s, now)
}

// parseForgivingDate tries common layouts; year-less dates assume the
// next occurrence of that day.
func parseForgivingDate(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() == 0 {
			t = t.AddDate(now.Year(), 0, 0)
			if t.Before(now) {
				t = t.AddDate(1, 0, 0)
			}
		}
		return t, true
	}
	return time.Time{}, false
}

func contextWindow(text string, loc []int, radius int) string {
	start := loc[0] - radius
	if start < 0 {
		start = 0
	}
	end := loc[1] + radius
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(strings.ReplaceAll(text[start:end], "\n", " "))
}
