package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gemsieve/gemsieve/internal/domain"
)

func TestClassifyResponseEmptyBody(t *testing.T) {
	assert.Equal(t, domain.AwaitingOther, ClassifyResponse("", true))
	assert.Equal(t, domain.AwaitingUser, ClassifyResponse("  \n ", false))
}

func TestClassifyResponseConcludedBeatsQuestion(t *testing.T) {
	// The body asks a question earlier but closes with a sign-off in the
	// final lines, so nobody owes a reply.
	body := "Can you send the invoice?\n\nActually found it.\nThanks!"
	assert.Equal(t, domain.AwaitingNone, ClassifyResponse(body, false))
}

func TestClassifyResponseQuestionFromOtherParty(t *testing.T) {
	body := "Hi,\n\nWhat's your pricing for a team of 30?"
	assert.Equal(t, domain.AwaitingUser, ClassifyResponse(body, false))
	assert.Equal(t, domain.AwaitingOther, ClassifyResponse(body, true))
}

func TestClassifyResponseStatementIsNone(t *testing.T) {
	body := "We shipped the release this morning. Details are on the status page."
	assert.Equal(t, domain.AwaitingNone, ClassifyResponse(body, false))
}

func TestClassifyResponseConcludedOnlyInLastLines(t *testing.T) {
	// A sign-off buried above three trailing content lines does not close
	// the thread when the tail still asks for something.
	body := "Thanks!\nOne more thing though.\nThe numbers look off.\nCan you rerun the export?"
	assert.Equal(t, domain.AwaitingUser, ClassifyResponse(body, false))
}

func TestCleanSubject(t *testing.T) {
	cases := map[string]string{
		"Re: Fwd: Re: pricing question": "pricing question",
		"FW: budget":                    "budget",
		"pricing question":              "pricing question",
		"  Re:   spaced  ":              "spaced",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanSubject(in), "subject %q", in)
	}
}

func TestRecomputeThreadAggregates(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	msgs := []domain.Message{
		{
			ID: "m2", FromEmail: "me@example.com", IsSentByUser: true,
			Subject: "Re: pricing question",
			Date:    time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC),
			BodyText: "Sure, happy to chat. What times work?",
		},
		{
			ID: "m1", FromEmail: "jane@acme.com",
			Subject: "pricing question",
			Date:    time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
			BodyText: "What does the enterprise plan cost?",
		},
		{
			ID: "m3", FromEmail: "jane@acme.com",
			Subject: "Re: pricing question",
			Date:    time.Date(2026, 6, 17, 9, 0, 0, 0, time.UTC),
			BodyText: "What's your pricing for a team of 30?",
		},
	}

	th := RecomputeThread("t1", msgs, now)
	assert.Equal(t, "pricing question", th.CleanSubject)
	assert.Equal(t, 3, th.MessageCount)
	assert.Equal(t, msgs[1].Date, th.FirstMessageDate)
	assert.Equal(t, msgs[2].Date, th.LastMessageDate)
	assert.Equal(t, "jane@acme.com", th.LastSender)
	assert.Equal(t, []string{"jane@acme.com", "me@example.com"}, th.Participants)
	assert.True(t, th.UserParticipated)
	assert.Equal(t, 45, th.DaysDormant)
	assert.Equal(t, domain.AwaitingUser, th.AwaitingResponse)

	// The user's reply is not the thread's last message; its date must
	// survive as the last-replied timestamp regardless.
	if assert.NotNil(t, th.UserLastReplied) {
		assert.Equal(t, msgs[0].Date, *th.UserLastReplied)
	}
}

func TestRecomputeThreadUserLastRepliedTracksNewestUserMessage(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	msgs := []domain.Message{
		{ID: "m1", FromEmail: "me@example.com", IsSentByUser: true,
			Date: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), BodyText: "ping"},
		{ID: "m2", FromEmail: "me@example.com", IsSentByUser: true,
			Date: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), BodyText: "ping again"},
		{ID: "m3", FromEmail: "jane@acme.com",
			Date: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), BodyText: "pong"},
	}
	th := RecomputeThread("t1", msgs, now)
	if assert.NotNil(t, th.UserLastReplied) {
		assert.Equal(t, msgs[1].Date, *th.UserLastReplied)
	}

	// No user-sent messages: the timestamp stays absent.
	th = RecomputeThread("t2", msgs[2:], now)
	assert.Nil(t, th.UserLastReplied)
}

func TestRecomputeThreadFutureDateClampsToZeroDormancy(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	th := RecomputeThread("t1", []domain.Message{{
		ID: "m1", FromEmail: "jane@acme.com",
		Date:     now.Add(48 * time.Hour),
		BodyText: "done",
	}}, now)
	assert.Equal(t, 0, th.DaysDormant)
}

func TestRecomputeThreadEmpty(t *testing.T) {
	th := RecomputeThread("t1", nil, time.Now())
	assert.Equal(t, 0, th.MessageCount)
	assert.Equal(t, domain.AwaitingNone, th.AwaitingResponse)
}
