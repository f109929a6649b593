package ingest

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gemsieve/gemsieve/internal/domain"
)

// questionSignals is Set Q: patterns whose presence in a message body
// means the other side was asked for something. Compiled once at load.
var questionSignals = []*regexp.Regexp{
	regexp.MustCompile(`\?\s*$`),
	regexp.MustCompile(`(?i)\bthoughts\b`),
	regexp.MustCompile(`(?i)\binterested\b`),
	regexp.MustCompile(`(?i)\blet me know\b`),
	regexp.MustCompile(`(?i)\bcircle back\b`),
	regexp.MustCompile(`(?i)\bfollow(?:ing)? up\b`),
	regexp.MustCompile(`(?i)\bwhat do you think\b`),
	regexp.MustCompile(`(?i)\bcan you\b`),
	regexp.MustCompile(`(?i)\bcould you\b`),
	regexp.MustCompile(`(?i)\bwould you\b`),
	regexp.MustCompile(`(?i)\bdo you have\b`),
	regexp.MustCompile(`(?i)\bare you\b.*\?`),
	regexp.MustCompile(`(?i)\bwhen can\b`),
	regexp.MustCompile(`(?i)\bschedule\b.*\bcall\b`),
	regexp.MustCompile(`(?i)\bbook\b.*\btime\b`),
}

// concludedSignals is Set C: lines that close a conversation. Matched
// against the last 3 non-blank lines only.
var concludedSignals = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^thanks[.!]*$`),
	regexp.MustCompile(`(?i)^thank you[.!]*$`),
	regexp.MustCompile(`(?i)^sounds good`),
	regexp.MustCompile(`(?i)^great,?\s*thanks`),
	regexp.MustCompile(`(?i)^will do`),
	regexp.MustCompile(`(?i)^no worries`),
	regexp.MustCompile(`(?i)^talk soon`),
	regexp.MustCompile(`(?i)^see you`),
	regexp.MustCompile(`(?i)^perfect[.!]*$`),
	regexp.MustCompile(`(?i)^got it[.!]*$`),
}

// ClassifyResponse decides who owes the next reply from the content of a
// thread's last message.
//
// Decision order:
//  1. Empty body: the side that did not send owes nothing to read, so
//     the sender waits — "other" when sent by user, else "user".
//  2. A concluded signal in the last 3 non-blank lines ends the thread.
//  3. A question signal anywhere in the body puts the ball in the other
//     court; silence means nobody owes anything.
func ClassifyResponse(lastBody string, sentByUser bool) domain.AwaitingState {
	body := strings.TrimSpace(lastBody)
	if body == "" {
		if sentByUser {
			return domain.AwaitingOther
		}
		return domain.AwaitingUser
	}

	for _, line := range lastNonBlankLines(body, 3) {
		for _, re := range concludedSignals {
			if re.MatchString(line) {
				return domain.AwaitingNone
			}
		}
	}

	asked := false
	for _, re := range questionSignals {
		if re.MatchString(body) {
			asked = true
			break
		}
	}
	if !asked {
		return domain.AwaitingNone
	}
	if sentByUser {
		return domain.AwaitingOther
	}
	return domain.AwaitingUser
}

func lastNonBlankLines(body string, n int) []string {
	lines := strings.Split(body, "\n")
	var out []string
	for i := len(lines) - 1; i >= 0 && len(out) < n; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

var subjectPrefixes = regexp.MustCompile(`(?i)^(re|fwd?|fw)\s*:\s*`)

// CleanSubject strips reply and forward prefixes, repeatedly, so "Re: Fwd:
// Re: x" and "x" share a clean subject.
func CleanSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		next := subjectPrefixes.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = next
	}
}

// RecomputeThread derives every thread aggregate from its messages. The
// thread row is a pure function of the message set; ingest always calls
// this after writes so invariants hold regardless of arrival order.
func RecomputeThread(threadID string, msgs []domain.Message, now time.Time) *domain.Thread {
	t := &domain.Thread{ID: threadID}
	if len(msgs) == 0 {
		t.AwaitingResponse = domain.AwaitingNone
		return t
	}

	sorted := make([]domain.Message, len(msgs))
	copy(sorted, msgs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	first, last := sorted[0], sorted[len(sorted)-1]
	t.Subject = first.Subject
	t.CleanSubject = CleanSubject(first.Subject)
	t.MessageCount = len(sorted)
	t.FirstMessageDate = first.Date
	t.LastMessageDate = last.Date
	t.LastSender = last.FromEmail

	seen := map[string]bool{}
	for _, m := range sorted {
		if m.FromEmail != "" && !seen[m.FromEmail] {
			seen[m.FromEmail] = true
			t.Participants = append(t.Participants, m.FromEmail)
		}
		if m.IsSentByUser {
			t.UserParticipated = true
			// Ascending order, so the newest user-sent date sticks.
			d := m.Date
			t.UserLastReplied = &d
		}
	}
	t.DaysDormant = int(now.UTC().Sub(last.Date.UTC()).Hours() / 24)
	if t.DaysDormant < 0 {
		t.DaysDormant = 0
	}
	t.AwaitingResponse = ClassifyResponse(last.Body(), last.IsSentByUser)
	return t
}
