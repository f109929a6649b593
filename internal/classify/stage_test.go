package classify

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemsieve/gemsieve/internal/ai"
	"github.com/gemsieve/gemsieve/internal/config"
	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/store"
)

type scriptedProvider struct {
	requests []ai.Request
	result   *ai.Result
	err      error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(_ context.Context, req ai.Request) (*ai.Result, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func classificationJSON() map[string]any {
	return map[string]any{
		"industry":                 "SaaS",
		"company_size_estimate":    "small",
		"marketing_sophistication": float64(7),
		"sender_intent":            "cold_outreach",
		"product_type":             "SaaS subscription",
		"product_description":      "Email deliverability tooling",
		"pain_points_addressed":    []any{"bounce rates", "spam folder placement"},
		"target_audience":          "email marketers",
		"partner_program_detected": true,
		"renewal_signal_detected":  false,
		"confidence":               0.85,
	}
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedMessage(t *testing.T, db *sql.DB, id, senderDomain, from string, date time.Time) {
	t.Helper()
	ctx := context.Background()
	msgs := store.NewMessageRepo(db)
	require.NoError(t, msgs.InsertMessage(ctx, &domain.Message{
		ID:        id,
		ThreadID:  "t-" + id,
		FromEmail: from,
		FromName:  "Sender",
		Subject:   "Hello",
		Date:      date,
		BodyText:  "We can cut your bounce rate in half.",
	}))
	md := store.NewMetadataRepo(db)
	require.NoError(t, md.Upsert(ctx, &domain.ParsedMetadata{
		MessageID:     id,
		SenderDomain:  senderDomain,
		ESPIdentified: "sendgrid",
		ParsedAt:      date,
	}))
	pc := store.NewContentRepo(db)
	require.NoError(t, pc.Upsert(ctx, &domain.ParsedContent{
		MessageID:  id,
		BodyClean:  "We can cut your bounce rate in half.",
		CTATexts:   []string{"Book a demo"},
		OfferTypes: []string{"demo"},
		ParsedAt:   date,
	}))
}

func newStage(db *sql.DB, provider ai.Provider) *Stage {
	return NewStage(
		store.NewClassifyRepo(db),
		store.NewContentRepo(db),
		store.NewMetadataRepo(db),
		store.NewEntityRepo(db),
		provider,
		config.Default().AI,
	)
}

func TestRunClassifiesDomainOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedMessage(t, db, "m1", "acme.com", "sales@acme.com", now.Add(-time.Hour))
	seedMessage(t, db, "m2", "acme.com", "sales@acme.com", now)

	provider := &scriptedProvider{result: &ai.Result{JSON: classificationJSON()}}
	s := newStage(db, provider)

	n, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, provider.requests, 1, "one model call per sender domain")
	assert.Equal(t, "acme.com", provider.requests[0].SenderDomain)
	assert.Equal(t, ai.TemplateClassification, provider.requests[0].TemplateID)

	repo := store.NewClassifyRepo(db)
	for _, id := range []string{"m1", "m2"} {
		c, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "SaaS", c.Industry)
		assert.Equal(t, domain.IntentColdOutreach, c.SenderIntent)
		assert.Equal(t, 7, c.Sophistication)
		assert.True(t, c.PartnerProgramDetected)
		assert.False(t, c.HasOverride)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedMessage(t, db, "m1", "acme.com", "sales@acme.com", time.Now().UTC())

	provider := &scriptedProvider{result: &ai.Result{JSON: classificationJSON()}}
	s := newStage(db, provider)

	_, err := s.Run(ctx)
	require.NoError(t, err)
	n, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "already-classified messages are not reprocessed")
	assert.Len(t, provider.requests, 1)
}

func TestRunAppliesSenderOverrides(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedMessage(t, db, "m1", "acme.com", "sales@acme.com", time.Now().UTC())

	repo := store.NewClassifyRepo(db)
	require.NoError(t, repo.InsertOverride(ctx, &domain.Override{
		SenderDomain:   "acme.com",
		FieldName:      "industry",
		CorrectedValue: "Agency",
		Scope:          domain.ScopeSender,
		CreatedAt:      time.Now().UTC(),
	}))

	provider := &scriptedProvider{result: &ai.Result{JSON: classificationJSON()}}
	s := newStage(db, provider)

	_, err := s.Run(ctx)
	require.NoError(t, err)

	c, err := repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Agency", c.Industry, "sender override beats the model")
	assert.True(t, c.HasOverride)
}

func TestRunMessageOverrideOutranksSender(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedMessage(t, db, "m1", "acme.com", "sales@acme.com", time.Now().UTC())

	repo := store.NewClassifyRepo(db)
	require.NoError(t, repo.InsertOverride(ctx, &domain.Override{
		SenderDomain:   "acme.com",
		FieldName:      "industry",
		CorrectedValue: "Agency",
		Scope:          domain.ScopeSender,
		CreatedAt:      time.Now().UTC().Add(-time.Minute),
	}))
	require.NoError(t, repo.InsertOverride(ctx, &domain.Override{
		MessageID:      "m1",
		SenderDomain:   "acme.com",
		FieldName:      "industry",
		CorrectedValue: "Media",
		Scope:          domain.ScopeMessage,
		CreatedAt:      time.Now().UTC(),
	}))

	provider := &scriptedProvider{result: &ai.Result{JSON: classificationJSON()}}
	s := newStage(db, provider)

	_, err := s.Run(ctx)
	require.NoError(t, err)

	c, err := repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Media", c.Industry)
}

func TestRunSkipsModelWhenFullyOverridden(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedMessage(t, db, "m1", "acme.com", "sales@acme.com", time.Now().UTC())

	repo := store.NewClassifyRepo(db)
	values := map[string]string{
		"industry":                 "Agency",
		"company_size":             "small",
		"sophistication":           "6",
		"sender_intent":            "newsletter",
		"product_type":             "Professional service",
		"product_description":      "Design retainers",
		"pain_points":              "brand drift",
		"target_audience":          "startups",
		"partner_program_detected": "false",
		"renewal_signal_detected":  "false",
	}
	for field, v := range values {
		require.NoError(t, repo.InsertOverride(ctx, &domain.Override{
			SenderDomain:   "acme.com",
			FieldName:      field,
			CorrectedValue: v,
			Scope:          domain.ScopeSender,
			CreatedAt:      time.Now().UTC(),
		}))
	}

	provider := &scriptedProvider{err: errors.New("should not be called")}
	s := newStage(db, provider)

	n, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, provider.requests)

	c, err := repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Agency", c.Industry)
	assert.Equal(t, domain.IntentNewsletter, c.SenderIntent)
	assert.Equal(t, "override", c.ModelUsed)
}

func TestRunContinuesPastFailedDomain(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedMessage(t, db, "m1", "acme.com", "sales@acme.com", time.Now().UTC())

	provider := &scriptedProvider{err: errors.New("model down")}
	s := newStage(db, provider)

	n, err := s.Run(ctx)
	require.NoError(t, err, "a failed domain is skipped, not fatal")
	assert.Zero(t, n)
}

func TestRetrainAppendsCorrections(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedMessage(t, db, "m1", "acme.com", "sales@acme.com", time.Now().UTC())

	repo := store.NewClassifyRepo(db)
	require.NoError(t, repo.InsertOverride(ctx, &domain.Override{
		SenderDomain:   "other.com",
		FieldName:      "industry",
		OriginalValue:  "SaaS",
		CorrectedValue: "Nonprofit",
		Scope:          domain.ScopeSender,
		CreatedAt:      time.Now().UTC(),
	}))

	provider := &scriptedProvider{result: &ai.Result{JSON: classificationJSON()}}
	s := newStage(db, provider)
	s.Retrain = true

	_, err := s.Run(ctx)
	require.NoError(t, err)
	require.Len(t, provider.requests, 1)
	assert.Contains(t, provider.requests[0].Prompt,
		"CORRECTION: For sender domain 'other.com', the industry was classified as 'SaaS' but should be 'Nonprofit'.")
}

func TestCrewUsesCrewTemplate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedMessage(t, db, "m1", "acme.com", "sales@acme.com", time.Now().UTC())

	provider := &scriptedProvider{result: &ai.Result{JSON: classificationJSON()}}
	s := newStage(db, provider)
	s.Crew = true

	_, err := s.Run(ctx)
	require.NoError(t, err)
	require.Len(t, provider.requests, 1)
	assert.Equal(t, ai.TemplateClassificationCrew, provider.requests[0].TemplateID)
}

func TestFromModelJSONValidation(t *testing.T) {
	obj := classificationJSON()
	obj["sender_intent"] = "world_domination"
	obj["marketing_sophistication"] = float64(42)
	obj["confidence"] = 1.7

	c := fromModelJSON(obj)
	assert.Empty(t, string(c.SenderIntent), "unknown intent is dropped")
	assert.Equal(t, 10, c.Sophistication)
	assert.Equal(t, 1.0, c.Confidence)
}
