package entities

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemsieve/gemsieve/internal/config"
	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/pkg/logger"
)

type fakeTagger struct {
	spans []Span
	err   error
}

func (f *fakeTagger) Tag(_ context.Context, _ string) ([]Span, error) {
	return f.spans, f.err
}

func allExtract() config.EntityConfig {
	return config.EntityConfig{
		ExtractMonetary:    true,
		ExtractDates:       true,
		ExtractProcurement: true,
	}
}

func testMessage() *domain.Message {
	return &domain.Message{
		ID:        "m1",
		FromName:  "Jane Doe",
		FromEmail: "jane@acme.com",
		Date:      time.Now().UTC(),
	}
}

func extract(t *testing.T, tagger Tagger, body, sig string) []domain.ExtractedEntity {
	t.Helper()
	s := &Stage{tagger: tagger, cfg: allExtract(), log: logger.WithComponent("entities")}
	m := testMessage()
	pc := &domain.ParsedContent{MessageID: m.ID, BodyClean: body, SignatureBlock: sig}
	return s.ExtractMessage(context.Background(), m, pc)
}

func findByType(ents []domain.ExtractedEntity, et domain.EntityType) []domain.ExtractedEntity {
	var out []domain.ExtractedEntity
	for _, e := range ents {
		if e.EntityType == et {
			out = append(out, e)
		}
	}
	return out
}

func TestExtractMoney(t *testing.T) {
	ents := extract(t, nil, "Our plan starts at $1,200/mo with a 20% discount for annual.", "")
	money := findByType(ents, domain.EntityMoney)
	require.NotEmpty(t, money)

	values := map[string]bool{}
	for _, e := range money {
		values[e.Value] = true
		assert.Equal(t, domain.SourceRegex, e.Source)
	}
	assert.True(t, values["$1,200"] || values["$1,200/mo"] || values["1,200/mo"],
		"expected the monthly price, got %v", values)
}

func TestExtractMoneyFromSubject(t *testing.T) {
	s := &Stage{cfg: allExtract(), log: logger.WithComponent("entities")}
	m := testMessage()
	m.Subject = "Invoice #42 - $3,500 due Friday"
	pc := &domain.ParsedContent{MessageID: m.ID, BodyClean: "Please see attached."}

	money := findByType(s.ExtractMessage(context.Background(), m, pc), domain.EntityMoney)
	require.NotEmpty(t, money, "amount mentioned only in the subject must be caught")
	assert.Contains(t, money[0].Value, "3,500")
}

func TestExtractProcurementBands(t *testing.T) {
	body := "We are evaluating vendors for Q4 and legal sent over the statement of work. " +
		"Our security questionnaire is attached."
	ents := extract(t, nil, body, "")
	proc := findByType(ents, domain.EntityProcurement)
	require.Len(t, proc, 3)

	bands := map[string]bool{}
	for _, e := range proc {
		bands[e.Normalized] = true
	}
	assert.True(t, bands[domain.ProcurementActiveBuying])
	assert.True(t, bands[domain.ProcurementContractActivity])
	assert.True(t, bands[domain.ProcurementSecurityReview])
}

func TestExtractDatesBucketed(t *testing.T) {
	now := time.Now().UTC()
	future := now.AddDate(0, 2, 0).Format("January 2, 2006")
	ents := extract(t, nil, "Your contract renews on "+future+".", "")
	dates := findByType(ents, domain.EntityDate)
	require.NotEmpty(t, dates)
	assert.Equal(t, "renewal:future", dates[0].Normalized)
}

func TestExtractDatesDisabled(t *testing.T) {
	s := &Stage{cfg: config.EntityConfig{ExtractMonetary: true}, log: logger.WithComponent("entities")}
	m := testMessage()
	pc := &domain.ParsedContent{MessageID: m.ID, BodyClean: "Renewal due March 1, 2027."}
	ents := s.ExtractMessage(context.Background(), m, pc)
	assert.Empty(t, findByType(ents, domain.EntityDate))
}

func TestHeaderPersonEntities(t *testing.T) {
	s := &Stage{cfg: allExtract(), log: logger.WithComponent("entities")}
	m := &domain.Message{
		ID:        "m2",
		FromName:  "Sam Ortiz",
		FromEmail: "sam@vendor.io",
		CcEmails:  []domain.Address{{Name: "Pat Lee", Email: "pat@vendor.io"}},
	}
	pc := &domain.ParsedContent{MessageID: m.ID, BodyClean: "Quick note."}
	ents := s.ExtractMessage(context.Background(), m, pc)

	people := findByType(ents, domain.EntityPerson)
	require.Len(t, people, 2)

	byEmail := map[string]domain.ExtractedEntity{}
	for _, e := range people {
		byEmail[e.Normalized] = e
	}
	sender := byEmail["sam@vendor.io"]
	assert.Equal(t, "Sam Ortiz", sender.Value)
	assert.Equal(t, 1.0, sender.Confidence)
	assert.Equal(t, domain.SourceHeader, sender.Source)

	cc := byEmail["pat@vendor.io"]
	assert.Equal(t, 0.6, cc.Confidence)
}

func TestSentByUserSkipsSenderEntity(t *testing.T) {
	s := &Stage{cfg: allExtract(), log: logger.WithComponent("entities")}
	m := &domain.Message{ID: "m3", FromEmail: "me@mydomain.com", IsSentByUser: true}
	pc := &domain.ParsedContent{MessageID: m.ID, BodyClean: "Following up."}
	ents := s.ExtractMessage(context.Background(), m, pc)
	assert.Empty(t, findByType(ents, domain.EntityPerson))
}

func TestTaggerSpansMapped(t *testing.T) {
	body := "Maria Chen from Initech wants a call."
	tagger := &fakeTagger{spans: []Span{
		{Start: 0, End: 10, Label: "PERSON", Text: "Maria Chen"},
		{Start: 16, End: 23, Label: "ORG", Text: "Initech"},
		{Start: 0, End: 5, Label: "CARDINAL", Text: "Maria"},
	}}
	ents := extract(t, tagger, body, "")

	people := findByType(ents, domain.EntityPerson)
	var tagged []domain.ExtractedEntity
	for _, e := range people {
		if e.Source == domain.SourceSpacy {
			tagged = append(tagged, e)
		}
	}
	require.Len(t, tagged, 1)
	assert.Equal(t, "Maria Chen", tagged[0].Value)
	assert.Equal(t, 0.8, tagged[0].Confidence)

	orgs := findByType(ents, domain.EntityOrganization)
	require.Len(t, orgs, 1)
	assert.Equal(t, "Initech", orgs[0].Value)
}

func TestSignatureSpansHigherConfidence(t *testing.T) {
	body := "Thanks for the intro."
	sig := "Ava Stone\nVP Sales, Initech"
	start := len(body) + 1
	tagger := &fakeTagger{spans: []Span{
		{Start: start, End: start + 9, Label: "PERSON", Text: "Ava Stone"},
	}}
	ents := extract(t, tagger, body, sig)

	var sigPerson *domain.ExtractedEntity
	for i, e := range ents {
		if e.Source == domain.SourceSpacy && e.EntityType == domain.EntityPerson {
			sigPerson = &ents[i]
		}
	}
	require.NotNil(t, sigPerson)
	assert.Equal(t, 0.9, sigPerson.Confidence)
}

func TestTaggerFailureDegradesToRegex(t *testing.T) {
	tagger := &fakeTagger{err: errors.New("connection refused")}
	ents := extract(t, tagger, "Budget is $5,000 for this project.", "")
	assert.NotEmpty(t, findByType(ents, domain.EntityMoney))
}

func TestClassifyPerson(t *testing.T) {
	cases := []struct {
		name, role, email string
		source            domain.EntitySource
		want              string
	}{
		{"Ava Stone", "VP Sales", "ava@initech.com", domain.SourceSpacy, domain.PersonDecisionMaker},
		{"", "", "noreply@mailer.io", domain.SourceHeader, domain.PersonAutomated},
		{"Support Team", "", "support@vendor.io", domain.SourceSpacy, domain.PersonVendorContact},
		{"Pat Lee", "", "pat@peer.com", domain.SourceHeader, domain.PersonPeer},
	}
	for _, tc := range cases {
		got := classifyPerson(tc.name, tc.role, tc.email, tc.source)
		assert.Equal(t, tc.want, got, "%s <%s>", tc.name, tc.email)
	}
}

func TestParseForgivingDate(t *testing.T) {
	now := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	t.Run("explicit year", func(t *testing.T) {
		got, ok := parseForgivingDate("March 1, 2027", now)
		require.True(t, ok)
		assert.Equal(t, 2027, got.Year())
	})

	t.Run("yearless rolls forward", func(t *testing.T) {
		got, ok := parseForgivingDate("Jan 15", now)
		require.True(t, ok)
		assert.Equal(t, 2027, got.Year())
	})

	t.Run("yearless later this year", func(t *testing.T) {
		got, ok := parseForgivingDate("Dec 1", now)
		require.True(t, ok)
		assert.Equal(t, 2026, got.Year())
	})

	t.Run("garbage", func(t *testing.T) {
		_, ok := parseForgivingDate("sometime soon", now)
		assert.False(t, ok)
	})
}

func TestIsRoleLikeAddress(t *testing.T) {
	assert.True(t, isRoleLikeAddress("noreply@x.com"))
	assert.True(t, isRoleLikeAddress("sales@x.com"))
	assert.False(t, isRoleLikeAddress("jane@x.com"))
}
