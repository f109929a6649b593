package content

import (
	"regexp"
	"strings"
)

var (
	quoteIntroRe  = regexp.MustCompile(`(?i)^On .{4,80}wrote:\s*$`)
	quotePrefixRe = regexp.MustCompile(`^\s*>`)
	origMsgRe     = regexp.MustCompile(`(?i)^-+\s*(original|forwarded) message\s*-+`)
)

// stripQuotedReplies removes reply history: everything from the first
// "On <date>, X wrote:" or "-- Original Message --" marker down, plus
// any remaining >-prefixed lines.
func stripQuotedReplies(body string) string {
	lines := strings.Split(body, "\n")
	var out []string
	for _, line := range lines {
		if quoteIntroRe.MatchString(line) || origMsgRe.MatchString(line) {
			break
		}
		if quotePrefixRe.MatchString(line) {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

var (
	sigDelimiterRe = regexp.MustCompile(`^(--|—|__)\s*$`)
	signOffRe      = regexp.MustCompile(`(?i)^(best|regards|best regards|kind regards|cheers|thanks|thank you|sincerely|warm regards|talk soon)[,!]?\s*$`)
	phoneOrURLRe   = regexp.MustCompile(`(?i)(\+?\d[\d\s().-]{7,}\d|https?://|www\.|\.com\b)`)
	titleMarkerRe  = regexp.MustCompile(`(?i)\b(ceo|cto|coo|cfo|vp|president|director|founder|head of|manager|lead|engineer|consultant)\b`)
)

// stripSignature splits a body into (body, signature). It first looks for
// a standard delimiter line, then for a sign-off phrase followed by a run
// of short lines carrying a title, phone, or URL near the tail.
func stripSignature(body string) (string, string) {
	lines := strings.Split(body, "\n")

	for i, line := range lines {
		if sigDelimiterRe.MatchString(strings.TrimSpace(line)) && i > 0 {
			return joinTrim(lines[:i]), joinTrim(lines[i+1:])
		}
	}

	// Sign-off heuristic: scan the final 8 lines.
	start := len(lines) - 8
	if start < 1 {
		start = 1
	}
	for i := start; i < len(lines); i++ {
		if !signOffRe.MatchString(strings.TrimSpace(lines[i])) {
			continue
		}
		tail := lines[i+1:]
		if looksLikeSignature(tail) {
			return joinTrim(lines[:i]), joinTrim(lines[i:])
		}
	}
	return strings.TrimSpace(body), ""
}

func looksLikeSignature(tail []string) bool {
	short, evidence := 0, false
	for _, line := range tail {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if len(trimmed) < 60 {
			short++
		}
		if phoneOrURLRe.MatchString(trimmed) || titleMarkerRe.MatchString(trimmed) {
			evidence = true
		}
	}
	return short >= 1 && evidence
}

func joinTrim(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

var footerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)unsubscribe`),
	regexp.MustCompile(`(?i)view (this|it|email) in (your )?browser`),
	regexp.MustCompile(`(?i)(©|\(c\)|copyright)\s*\d{4}`),
	regexp.MustCompile(`(?i)all rights reserved`),
	regexp.MustCompile(`(?i)privacy policy`),
	regexp.MustCompile(`(?i)this email was sent (by|to)`),
	regexp.MustCompile(`(?i)powered by \w+`),
	regexp.MustCompile(`(?i)you('re| are) receiving this (email|message)`),
	regexp.MustCompile(`(?i)update (your )?(email )?preferences`),
	regexp.MustCompile(`(?i)manage (your )?subscriptions?`),
}

// stripFooter scans the final window of lines bottom-up; the first
// footer-pattern hit marks the footer boundary and everything from that
// line onward moves to the footer segment.
func stripFooter(body string) (clean, footer string) {
	lines := strings.Split(body, "\n")
	window := len(lines) - 15
	if window < 0 {
		window = 0
	}

	boundary := -1
	for i := len(lines) - 1; i >= window; i-- {
		for _, re := range footerPatterns {
			if re.MatchString(lines[i]) {
				boundary = i
			}
		}
	}
	if boundary < 0 {
		return strings.TrimSpace(body), ""
	}
	return joinTrim(lines[:boundary]), joinTrim(lines[boundary:])
}
