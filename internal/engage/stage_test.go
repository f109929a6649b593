package engage

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

// scriptedProvider replays canned results and records every request.
type scriptedProvider struct {
	results []*ai.Result
	errs    []error
	calls   []ai.Request
}

func (p *scriptedProvider) Complete(_ context.Context, req ai.Request) (*ai.Result, error) {
	i := len(p.calls)
	p.calls = append(p.calls, req)
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i < len(p.results) {
		return p.results[i], nil
	}
	return &ai.Result{Text: "{}", JSON: map[string]any{}}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func goodResult() *ai.Result {
	return &ai.Result{
		Text: `{"subject_line":"Quick question","body":"Hi Jane, following up."}`,
		JSON: map[string]any{"subject_line": "Quick question", "body": "Hi Jane, following up."},
	}
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newStage(db *sql.DB, provider ai.Provider, engage config.EngagementConfig) *Stage {
	return NewStage(
		store.NewProfileRepo(db),
		store.NewPipelineRepo(db),
		store.NewMessageRepo(db),
		provider,
		engage,
		false,
	)
}

func seedProfile(t *testing.T, db *sql.DB, p *domain.SenderProfile) {
	t.Helper()
	if p.BuiltAt.IsZero() {
		p.BuiltAt = time.Now().UTC()
	}
	require.NoError(t, store.NewProfileRepo(db).UpsertProfile(context.Background(), p))
}

func seedGem(t *testing.T, db *sql.DB, senderDomain string, gt domain.GemType, score float64) int64 {
	t.Helper()
	g := &domain.Gem{
		GemType:      gt,
		SenderDomain: senderDomain,
		Score:        score,
		Explanation: domain.GemExplanation{
			GemType:        string(gt),
			Summary:        "seeded opportunity",
			Confidence:     0.8,
			EstimatedValue: domain.ValueMedium,
			Urgency:        domain.UrgencyMedium,
		},
		Status:     domain.GemStatusNew,
		DetectedAt: time.Now().UTC(),
	}
	require.NoError(t, store.NewProfileRepo(db).InsertGem(context.Background(), g))
	return g.ID
}

func listDrafts(t *testing.T, db *sql.DB) []domain.EngagementDraft {
	t.Helper()
	drafts, err := store.NewPipelineRepo(db).ListDrafts(context.Background(), 100)
	require.NoError(t, err)
	return drafts
}

func TestStrategyRouting(t *testing.T) {
	cases := map[domain.GemType]domain.Strategy{
		domain.GemWeakMarketingLead:   domain.StrategyAudit,
		domain.GemIndustryIntel:       domain.StrategyIndustryReport,
		domain.GemDormantWarmThread:   domain.StrategyRevival,
		domain.GemUnansweredAsk:       domain.StrategyRevival,
		domain.GemPartnerProgram:      domain.StrategyPartner,
		domain.GemRenewalLeverage:     domain.StrategyRenewalNegotiation,
		domain.GemDistributionChannel: domain.StrategyDistributionPitch,
		domain.GemCoMarketing:         domain.StrategyMirror,
		domain.GemProcurementSignal:   domain.StrategyAudit,
		domain.GemType("mystery"):     domain.StrategyAudit,
	}
	for gt, want := range cases {
		assert.Equal(t, want, StrategyFor(gt), string(gt))
	}
}

func TestGenerateDraft(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedProfile(t, db, &domain.SenderProfile{
		SenderDomain:  "acme.com",
		CompanyName:   "Acme Inc",
		KnownContacts: []domain.Contact{{Name: "Jane Price", Role: "decision_maker"}},
		TotalMessages: 6,
	})
	gem := &domain.Gem{
		GemType:      domain.GemDormantWarmThread,
		SenderDomain: "acme.com",
		ThreadID:     "t1",
		Score:        80,
		Explanation: domain.GemExplanation{
			GemType: string(domain.GemDormantWarmThread),
			Summary: "dormant warm thread",
		},
		Status:     domain.GemStatusNew,
		DetectedAt: time.Now().UTC(),
	}
	require.NoError(t, store.NewProfileRepo(db).InsertGem(ctx, gem))
	require.NoError(t, store.NewMessageRepo(db).UpsertThread(ctx, &domain.Thread{
		ID: "t1", Subject: "Project scope", DaysDormant: 30,
		MessageCount: 3, AwaitingResponse: domain.AwaitingUser,
	}))

	provider := &scriptedProvider{results: []*ai.Result{goodResult()}}
	n, err := newStage(db, provider, config.Default().Engagement).Generate(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	drafts := listDrafts(t, db)
	require.Len(t, drafts, 1)
	d := drafts[0]
	assert.Equal(t, gem.ID, d.GemID)
	assert.Equal(t, domain.StrategyRevival, d.Strategy)
	assert.Equal(t, "reply to original thread", d.Channel)
	assert.Equal(t, "Quick question", d.SubjectLine)
	assert.Equal(t, "Hi Jane, following up.", d.BodyText)
	assert.Equal(t, "scripted", d.ModelUsed)
	assert.Equal(t, domain.DraftStatusDraft, d.Status)

	require.Len(t, provider.calls, 1)
	req := provider.calls[0]
	assert.True(t, req.JSONMode)
	assert.Equal(t, "engage_revival", req.TemplateID)
	assert.Contains(t, req.Prompt, "Acme Inc")
	assert.Contains(t, req.Prompt, "Jane Price")
}

func TestPreferredStrategiesFilter(t *testing.T) {
	db := newTestDB(t)

	seedProfile(t, db, &domain.SenderProfile{SenderDomain: "acme.com"})
	seedGem(t, db, "acme.com", domain.GemDormantWarmThread, 90)
	seedGem(t, db, "acme.com", domain.GemPartnerProgram, 50)

	cfg := config.Default().Engagement
	cfg.PreferredStrategies = []string{"partner"}

	provider := &scriptedProvider{results: []*ai.Result{goodResult()}}
	n, err := newStage(db, provider, cfg).Generate(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	drafts := listDrafts(t, db)
	require.Len(t, drafts, 1)
	assert.Equal(t, domain.StrategyPartner, drafts[0].Strategy)
}

func TestDailyCapHaltsGeneration(t *testing.T) {
	db := newTestDB(t)

	seedProfile(t, db, &domain.SenderProfile{SenderDomain: "acme.com"})
	seedGem(t, db, "acme.com", domain.GemPartnerProgram, 90)
	seedGem(t, db, "acme.com", domain.GemWeakMarketingLead, 50)

	cfg := config.Default().Engagement
	cfg.MaxOutreachPerDay = 1

	provider := &scriptedProvider{results: []*ai.Result{goodResult(), goodResult()}}
	n, err := newStage(db, provider, cfg).Generate(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, listDrafts(t, db), 1)
}

func TestExplicitGemBypassesCapAndFilter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedProfile(t, db, &domain.SenderProfile{SenderDomain: "acme.com"})
	capped := seedGem(t, db, "acme.com", domain.GemPartnerProgram, 90)
	target := seedGem(t, db, "acme.com", domain.GemDormantWarmThread, 40)

	cfg := config.Default().Engagement
	cfg.PreferredStrategies = []string{"partner"}
	cfg.MaxOutreachPerDay = 1

	// Fill the daily quota.
	provider := &scriptedProvider{results: []*ai.Result{goodResult(), goodResult()}}
	st := newStage(db, provider, cfg)
	n, err := st.Generate(ctx, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// An explicit gem id still drafts: wrong strategy, quota spent.
	n, err = st.Generate(ctx, Options{GemID: target})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	drafts := listDrafts(t, db)
	require.Len(t, drafts, 2)
	ids := map[int64]bool{}
	for _, d := range drafts {
		ids[d.GemID] = true
	}
	assert.True(t, ids[capped])
	assert.True(t, ids[target])
}

func TestInvalidJSONContinues(t *testing.T) {
	db := newTestDB(t)

	seedProfile(t, db, &domain.SenderProfile{SenderDomain: "acme.com"})
	seedGem(t, db, "acme.com", domain.GemPartnerProgram, 90)
	seedGem(t, db, "acme.com", domain.GemWeakMarketingLead, 50)

	provider := &scriptedProvider{results: []*ai.Result{
		{Text: "sorry, I can't help with that"},
		goodResult(),
	}}
	n, err := newStage(db, provider, config.Default().Engagement).Generate(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	drafts := listDrafts(t, db)
	require.Len(t, drafts, 1)
	assert.Equal(t, domain.StrategyAudit, drafts[0].Strategy)
}

func TestProviderErrorContinues(t *testing.T) {
	db := newTestDB(t)

	seedProfile(t, db, &domain.SenderProfile{SenderDomain: "acme.com"})
	seedGem(t, db, "acme.com", domain.GemPartnerProgram, 90)
	seedGem(t, db, "acme.com", domain.GemWeakMarketingLead, 50)

	provider := &scriptedProvider{
		results: []*ai.Result{nil, goodResult()},
		errs:    []error{errors.New("model timeout"), nil},
	}
	n, err := newStage(db, provider, config.Default().Engagement).Generate(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExistingDraftSkipped(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedProfile(t, db, &domain.SenderProfile{SenderDomain: "acme.com"})
	seedGem(t, db, "acme.com", domain.GemPartnerProgram, 90)

	provider := &scriptedProvider{results: []*ai.Result{goodResult(), goodResult()}}
	st := newStage(db, provider, config.Default().Engagement)

	n, err := st.Generate(ctx, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = st.Generate(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, listDrafts(t, db), 1)
}

func TestStrategyContextVariables(t *testing.T) {
	db := newTestDB(t)
	p := &domain.SenderProfile{
		SenderDomain:       "acme.com",
		RenewalDates:       []string{"March 1, 2027"},
		MonetarySignals:    []string{"$4,000"},
		PartnerProgramURLs: []string{"https://acme.com/partners"},
		TargetAudience:     "email marketers",
	}
	st := newStage(db, &scriptedProvider{}, config.Default().Engagement)

	renewal := st.buildContext(context.Background(), domain.StrategyRenewalNegotiation,
		&domain.Gem{GemType: domain.GemRenewalLeverage}, p)
	assert.Equal(t, `["March 1, 2027"]`, renewal["renewal_dates"])
	assert.Equal(t, `["$4,000"]`, renewal["monetary_signals"])

	partner := st.buildContext(context.Background(), domain.StrategyPartner,
		&domain.Gem{GemType: domain.GemPartnerProgram}, p)
	assert.Equal(t, `["https://acme.com/partners"]`, partner["partner_urls"])

	pitch := st.buildContext(context.Background(), domain.StrategyDistributionPitch,
		&domain.Gem{GemType: domain.GemDistributionChannel}, p)
	assert.Equal(t, "email marketers", pitch["target_audience"])

	// Defaults when the profile and engagement config are sparse.
	assert.Equal(t, "acme.com", renewal["company_name"])
	assert.Equal(t, "Unknown", renewal["industry"])

	bare := newStage(db, &scriptedProvider{}, config.EngagementConfig{})
	vars := bare.buildContext(context.Background(), domain.StrategyAudit,
		&domain.Gem{GemType: domain.GemWeakMarketingLead}, p)
	assert.Equal(t, "professional", vars["user_preferred_tone"])
	assert.Equal(t, "consulting services", vars["user_service_description"])
}

func TestObservationPrefersCTA(t *testing.T) {
	gem := &domain.Gem{Explanation: domain.GemExplanation{Summary: "fallback summary"}}

	withCTA := &domain.SenderProfile{CTATexts: []string{"Book a demo"}}
	assert.Equal(t, `Recent CTA: "Book a demo"`, observation(withCTA, gem))

	withOffers := &domain.SenderProfile{OfferTypeDistribution: map[string]int{
		"newsletter": 5, "webinar": 2,
	}}
	assert.Equal(t, "Top offer types: newsletter, webinar", observation(withOffers, gem))

	assert.Equal(t, "fallback summary", observation(&domain.SenderProfile{}, gem))
}
