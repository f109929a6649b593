package profile

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemsieve/gemsieve/internal/config"
	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/store"
)

func seedProfile(t *testing.T, db *sql.DB, p *domain.SenderProfile) {
	t.Helper()
	if p.BuiltAt.IsZero() {
		p.BuiltAt = time.Now().UTC()
	}
	require.NoError(t, store.NewProfileRepo(db).UpsertProfile(context.Background(), p))
}

func seedRelationship(t *testing.T, db *sql.DB, senderDomain string, rel domain.RelationshipType, suppress bool) {
	t.Helper()
	require.NoError(t, store.NewProfileRepo(db).SetRelationship(context.Background(), &domain.SenderRelationship{
		SenderDomain: senderDomain,
		Type:         rel,
		Confidence:   1.0,
		SuppressGems: suppress,
		Source:       domain.RelSourceManual,
		UpdatedAt:    time.Now().UTC(),
	}))
}

// seedWarmThread seeds a two-party thread from acme.com with the given
// dormancy, body texts in order, and the user on the thread.
func seedWarmThread(t *testing.T, db *sql.DB, threadID string, daysDormant int, bodies []string) {
	t.Helper()
	now := time.Now().UTC()
	for i, body := range bodies {
		seedMessage(t, db, "acme.com", seedMsg{
			id:       threadID + "-m" + string(rune('a'+i)),
			threadID: threadID,
			fromEmail: func() string {
				if i%2 == 1 {
					return "me@example.com"
				}
				return "jane@acme.com"
			}(),
			date:     now.Add(time.Duration(i-len(bodies)) * 24 * time.Hour),
			body:     body,
			sentByMe: i%2 == 1,
		})
	}
	seedThread(t, db, &domain.Thread{
		ID:               threadID,
		Subject:          "Project scope",
		MessageCount:     len(bodies),
		LastSender:       "jane@acme.com",
		UserParticipated: true,
		AwaitingResponse: domain.AwaitingUser,
		DaysDormant:      daysDormant,
		FirstMessageDate: now.Add(time.Duration(-len(bodies)) * 24 * time.Hour),
		LastMessageDate:  now.Add(-time.Duration(daysDormant) * 24 * time.Hour),
	})
}

func TestDormantWarmThreadGem(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedWarmThread(t, db, "t1", 30, []string{
		"Can you send over pricing for the full engagement?",
		"Sure, will do.",
		"Still interested in moving forward, just checking in on next steps.",
	})
	seedProfile(t, db, &domain.SenderProfile{SenderDomain: "acme.com", TotalMessages: 3})
	seedRelationship(t, db, "acme.com", domain.RelWarmContact, false)

	s := newStage(db, nil)
	n, err := s.DetectGems(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)

	gems, err := store.NewProfileRepo(db).ListGems(ctx, store.GemFilter{
		GemType: string(domain.GemDormantWarmThread),
	})
	require.NoError(t, err)
	require.Len(t, gems, 1)

	g := gems[0]
	assert.Equal(t, "t1", g.ThreadID)
	assert.Equal(t, domain.GemStatusNew, g.Status)
	// 40 base + 30 warm boost (pricing 15 + explicit_ask 10 + follow_up 5)
	// + 10 participation + 15 recency + 5 multi-message.
	assert.Equal(t, 100.0, g.Score)
	assert.Equal(t, domain.ValueHigh, g.Explanation.EstimatedValue)
	assert.Equal(t, domain.UrgencyHigh, g.Explanation.Urgency, "dormant under 60 days")
	assert.Len(t, g.SourceMessageIDs, 3)

	names := map[string]bool{}
	for _, sig := range g.Explanation.Signals {
		names[sig.Signal] = true
	}
	assert.True(t, names["warm_pricing"])
	assert.True(t, names["user_participated"])
}

func TestDormantThreadVetoedByCompletion(t *testing.T) {
	db := newTestDB(t)

	seedWarmThread(t, db, "t1", 30, []string{
		"Can you send over pricing?",
		"Attached. Great working with you — that's the final deliverable.",
	})
	seedProfile(t, db, &domain.SenderProfile{SenderDomain: "acme.com", TotalMessages: 2})
	seedRelationship(t, db, "acme.com", domain.RelWarmContact, false)

	s := newStage(db, nil)
	_, err := s.DetectGems(context.Background())
	require.NoError(t, err)

	gems, err := store.NewProfileRepo(db).ListGems(context.Background(), store.GemFilter{
		GemType: string(domain.GemDormantWarmThread),
	})
	require.NoError(t, err)
	assert.Empty(t, gems, "completion signal suppresses the gem")
}

func TestDormantThreadRequiresWarmSignal(t *testing.T) {
	db := newTestDB(t)

	seedWarmThread(t, db, "t1", 30, []string{
		"See you around.",
		"Yep, bye.",
	})
	seedProfile(t, db, &domain.SenderProfile{SenderDomain: "acme.com", TotalMessages: 2})
	seedRelationship(t, db, "acme.com", domain.RelWarmContact, false)

	s := newStage(db, nil)
	_, err := s.DetectGems(context.Background())
	require.NoError(t, err)

	gems, err := store.NewProfileRepo(db).ListGems(context.Background(), store.GemFilter{
		GemType: string(domain.GemDormantWarmThread),
	})
	require.NoError(t, err)
	assert.Empty(t, gems)
}

func TestUnansweredAskGem(t *testing.T) {
	db := newTestDB(t)

	seedWarmThread(t, db, "t1", 5, []string{
		"Would you have time to look at our setup?",
		"Let me check.",
	})
	seedProfile(t, db, &domain.SenderProfile{SenderDomain: "acme.com", TotalMessages: 2})
	seedRelationship(t, db, "acme.com", domain.RelInboundProspect, false)

	s := newStage(db, nil)
	_, err := s.DetectGems(context.Background())
	require.NoError(t, err)

	gems, err := store.NewProfileRepo(db).ListGems(context.Background(), store.GemFilter{
		GemType: string(domain.GemUnansweredAsk),
	})
	require.NoError(t, err)
	require.Len(t, gems, 1)
	assert.Equal(t, 60.0, gems[0].Score)
	assert.Equal(t, domain.UrgencyHigh, gems[0].Explanation.Urgency)
	assert.Equal(t, domain.ValueMediumHigh, gems[0].Explanation.EstimatedValue)
}

func TestSuppressedRelationshipProducesNoGems(t *testing.T) {
	db := newTestDB(t)

	seedWarmThread(t, db, "t1", 30, []string{"Pricing attached.", "Thanks."})
	seedProfile(t, db, &domain.SenderProfile{
		SenderDomain: "acme.com", TotalMessages: 2,
		HasPartnerProgram: true,
	})
	seedRelationship(t, db, "acme.com", domain.RelWarmContact, true)

	s := newStage(db, nil)
	n, err := s.DetectGems(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExcludedDomainProducesNoGems(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedProfile(t, db, &domain.SenderProfile{
		SenderDomain: "acme.com", TotalMessages: 5,
		HasPartnerProgram: true,
	})
	seedRelationship(t, db, "acme.com", domain.RelWarmContact, false)
	require.NoError(t, store.NewProfileRepo(db).AddExclusion(ctx, &domain.DomainExclusion{
		Domain: "acme.com", Reason: "client", CreatedAt: time.Now().UTC(),
	}))

	s := newStage(db, nil)
	n, err := s.DetectGems(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBulkHeavySenderSkipsHumanGems(t *testing.T) {
	db := newTestDB(t)

	seedWarmThread(t, db, "t1", 30, []string{"Pricing inside!", "ok"})
	seedProfile(t, db, &domain.SenderProfile{
		SenderDomain: "acme.com", TotalMessages: 2,
		BulkRatio:         0.9,
		HasPartnerProgram: true,
	})
	seedRelationship(t, db, "acme.com", domain.RelWarmContact, false)

	s := newStage(db, nil)
	_, err := s.DetectGems(context.Background())
	require.NoError(t, err)

	repo := store.NewProfileRepo(db)
	dormant, err := repo.ListGems(context.Background(), store.GemFilter{
		GemType: string(domain.GemDormantWarmThread),
	})
	require.NoError(t, err)
	assert.Empty(t, dormant, "bulk-heavy senders are machines, not leads")

	partner, err := repo.ListGems(context.Background(), store.GemFilter{
		GemType: string(domain.GemPartnerProgram),
	})
	require.NoError(t, err)
	assert.Len(t, partner, 1, "partner program still fires for bulk senders")
}

func TestWeakMarketingLead(t *testing.T) {
	db := newTestDB(t)

	seedProfile(t, db, &domain.SenderProfile{
		SenderDomain:      "acme.com",
		CompanyName:       "Acme",
		Industry:          "SaaS",
		CompanySize:       domain.SizeSmall,
		SophisticationAvg: 3.0,
		TotalMessages:     4,
	})

	s := newStage(db, nil)
	n, err := s.DetectGems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	gems, err := store.NewProfileRepo(db).ListGems(context.Background(), store.GemFilter{
		GemType: string(domain.GemWeakMarketingLead),
	})
	require.NoError(t, err)
	require.Len(t, gems, 1)
	assert.Equal(t, 50.0, gems[0].Score, "40 base + (5-3)*5")
	assert.Equal(t, domain.ValueMedium, gems[0].Explanation.EstimatedValue)
}

func TestWeakMarketingLeadRespectsEligibility(t *testing.T) {
	db := newTestDB(t)

	seedProfile(t, db, &domain.SenderProfile{
		SenderDomain:      "outbound.ai",
		Industry:          "SaaS",
		CompanySize:       domain.SizeSmall,
		SophisticationAvg: 2.0,
		TotalMessages:     8,
	})
	seedRelationship(t, db, "outbound.ai", domain.RelSellingToMe, false)

	s := newStage(db, nil)
	_, err := s.DetectGems(context.Background())
	require.NoError(t, err)

	gems, err := store.NewProfileRepo(db).ListGems(context.Background(), store.GemFilter{
		GemType: string(domain.GemWeakMarketingLead),
	})
	require.NoError(t, err)
	assert.Empty(t, gems, "selling_to_me is not a lead")
}

func TestPartnerProgramGem(t *testing.T) {
	db := newTestDB(t)

	seedProfile(t, db, &domain.SenderProfile{
		SenderDomain:       "acme.com",
		CompanyName:        "Acme",
		HasPartnerProgram:  true,
		PartnerProgramURLs: []string{"https://acme.com/partners", "https://acme.com/affiliates"},
		TotalMessages:      2,
	})
	seedRelationship(t, db, "acme.com", domain.RelPotentialPartner, false)

	s := newStage(db, nil)
	_, err := s.DetectGems(context.Background())
	require.NoError(t, err)

	gems, err := store.NewProfileRepo(db).ListGems(context.Background(), store.GemFilter{
		GemType: string(domain.GemPartnerProgram),
	})
	require.NoError(t, err)
	require.Len(t, gems, 1)
	assert.Equal(t, 45.0, gems[0].Score, "30 base + 15 direct URLs")
}

func TestPartnerProgramScoresLowerForVendors(t *testing.T) {
	db := newTestDB(t)

	seedProfile(t, db, &domain.SenderProfile{
		SenderDomain:       "vendor.com",
		HasPartnerProgram:  true,
		PartnerProgramURLs: []string{"https://vendor.com/partners"},
		TotalMessages:      2,
	})
	seedRelationship(t, db, "vendor.com", domain.RelMyVendor, false)

	s := newStage(db, nil)
	_, err := s.DetectGems(context.Background())
	require.NoError(t, err)

	gems, err := store.NewProfileRepo(db).ListGems(context.Background(), store.GemFilter{
		GemType: string(domain.GemPartnerProgram),
	})
	require.NoError(t, err)
	require.Len(t, gems, 1)
	assert.Equal(t, 35.0, gems[0].Score)
}

func TestRenewalLeverageGem(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	seedMessage(t, db, "vendor.com", seedMsg{
		id: "m1", fromEmail: "billing@vendor.com", date: now, body: "renewal notice",
	})
	renewal := now.AddDate(0, 0, 20).Format("January 2, 2006")
	seedEntities(t, db, "m1", []domain.ExtractedEntity{
		{EntityType: domain.EntityDate, Value: renewal, Normalized: "renewal:future",
			Confidence: 0.8, Source: domain.SourceRegex, ExtractedAt: now},
	})
	seedProfile(t, db, &domain.SenderProfile{
		SenderDomain:    "vendor.com",
		CompanyName:     "Vendor",
		SenderIntent:    domain.IntentTransactional,
		MonetarySignals: []string{"$299/mo"},
		TotalMessages:   6,
	})
	seedRelationship(t, db, "vendor.com", domain.RelMyVendor, false)

	s := newStage(db, nil)
	_, err := s.DetectGems(context.Background())
	require.NoError(t, err)

	gems, err := store.NewProfileRepo(db).ListGems(context.Background(), store.GemFilter{
		GemType: string(domain.GemRenewalLeverage),
	})
	require.NoError(t, err)
	require.Len(t, gems, 1)
	assert.Equal(t, 70.0, gems[0].Score, "40 base + 20 dates + 10 monetary")
	assert.Equal(t, domain.UrgencyHigh, gems[0].Explanation.Urgency, "renewal inside 30 days")
	assert.Equal(t, domain.ValueHigh, gems[0].Explanation.EstimatedValue)
}

func TestRenewalLeverageNeedsTransactionalIntent(t *testing.T) {
	db := newTestDB(t)

	seedProfile(t, db, &domain.SenderProfile{
		SenderDomain:  "vendor.com",
		SenderIntent:  domain.IntentPromotional,
		TotalMessages: 6,
	})
	seedRelationship(t, db, "vendor.com", domain.RelMyVendor, false)

	s := newStage(db, nil)
	_, err := s.DetectGems(context.Background())
	require.NoError(t, err)

	gems, err := store.NewProfileRepo(db).ListGems(context.Background(), store.GemFilter{
		GemType: string(domain.GemRenewalLeverage),
	})
	require.NoError(t, err)
	assert.Empty(t, gems)
}

func TestDistributionChannelGem(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	seedMessage(t, db, "news.io", seedMsg{
		id: "m1", fromEmail: "digest@news.io", date: now,
		body: "This week in email. We accept guest post submissions.",
	})
	seedProfile(t, db, &domain.SenderProfile{
		SenderDomain:  "news.io",
		CompanyName:   "News",
		SenderIntent:  domain.IntentNewsletter,
		TotalMessages: 12,
	})
	seedRelationship(t, db, "news.io", domain.RelCommunity, false)

	s := newStage(db, nil)
	_, err := s.DetectGems(context.Background())
	require.NoError(t, err)

	gems, err := store.NewProfileRepo(db).ListGems(context.Background(), store.GemFilter{
		GemType: string(domain.GemDistributionChannel),
	})
	require.NoError(t, err)
	require.Len(t, gems, 1)
	assert.Equal(t, 60.0, gems[0].Score, "30 base + 15 active + 15 content signal")
	assert.Equal(t, domain.ValueMedium, gems[0].Explanation.EstimatedValue)
}

func TestCoMarketingGem(t *testing.T) {
	db := newTestDB(t)

	cfg := config.Default()
	cfg.Engagement.YourAudience = "email marketers working with SaaS startups"

	seedProfile(t, db, &domain.SenderProfile{
		SenderDomain:   "peer.co",
		CompanyName:    "Peer",
		Industry:       "SaaS",
		CompanySize:    domain.SizeSmall,
		TargetAudience: "email marketers and founders of startups",
		TotalMessages:  6,
	})
	seedRelationship(t, db, "peer.co", domain.RelPotentialPartner, false)

	s := newStage(db, cfg)
	_, err := s.DetectGems(context.Background())
	require.NoError(t, err)

	gems, err := store.NewProfileRepo(db).ListGems(context.Background(), store.GemFilter{
		GemType: string(domain.GemCoMarketing),
	})
	require.NoError(t, err)
	require.Len(t, gems, 1)
	// Overlap: email, marketers, startups = 3 keywords.
	assert.Equal(t, 60.0, gems[0].Score, "35 + 3*5 + 10 volume")
}

func TestCoMarketingRequiresConfiguredAudience(t *testing.T) {
	db := newTestDB(t)

	seedProfile(t, db, &domain.SenderProfile{
		SenderDomain:   "peer.co",
		Industry:       "SaaS",
		TargetAudience: "email marketers",
		TotalMessages:  6,
	})

	s := newStage(db, nil)
	_, err := s.DetectGems(context.Background())
	require.NoError(t, err)

	gems, err := store.NewProfileRepo(db).ListGems(context.Background(), store.GemFilter{
		GemType: string(domain.GemCoMarketing),
	})
	require.NoError(t, err)
	assert.Empty(t, gems)
}

func TestIndustryIntelNeedsSaturation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		seedProfile(t, db, &domain.SenderProfile{
			SenderDomain:  "co" + string(rune('a'+i)) + ".com",
			CompanyName:   "Co",
			Industry:      "Fintech",
			CompanySize:   domain.SizeEnterprise,
			TotalMessages: 1,
		})
	}

	s := newStage(db, nil)
	_, err := s.DetectGems(ctx)
	require.NoError(t, err)

	gems, err := store.NewProfileRepo(db).ListGems(ctx, store.GemFilter{
		GemType: string(domain.GemIndustryIntel),
	})
	require.NoError(t, err)
	assert.Len(t, gems, 10, "every profile in a saturated industry reports")

	// Below the threshold, nothing fires.
	db2 := newTestDB(t)
	seedProfile(t, db2, &domain.SenderProfile{
		SenderDomain: "solo.com", Industry: "Fintech", TotalMessages: 1,
		CompanySize: domain.SizeEnterprise,
	})
	s2 := newStage(db2, nil)
	_, err = s2.DetectGems(ctx)
	require.NoError(t, err)
	gems, err = store.NewProfileRepo(db2).ListGems(ctx, store.GemFilter{
		GemType: string(domain.GemIndustryIntel),
	})
	require.NoError(t, err)
	assert.Empty(t, gems)
}

func TestProcurementSignalGem(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	seedMessage(t, db, "buyer.com", seedMsg{
		id: "m1", fromEmail: "it@buyer.com", date: now, body: "security questionnaire attached",
	})
	seedEntities(t, db, "m1", []domain.ExtractedEntity{
		{EntityType: domain.EntityProcurement, Value: "security questionnaire",
			Normalized: domain.ProcurementSecurityReview, Confidence: 0.85,
			Source: domain.SourceRegex, ExtractedAt: now},
	})
	seedProfile(t, db, &domain.SenderProfile{
		SenderDomain: "buyer.com", CompanyName: "Buyer", TotalMessages: 1,
	})
	seedRelationship(t, db, "buyer.com", domain.RelInboundProspect, false)

	s := newStage(db, nil)
	_, err := s.DetectGems(context.Background())
	require.NoError(t, err)

	gems, err := store.NewProfileRepo(db).ListGems(context.Background(), store.GemFilter{
		GemType: string(domain.GemProcurementSignal),
	})
	require.NoError(t, err)
	require.Len(t, gems, 1)
	assert.Equal(t, 65.0, gems[0].Score, "50 base + 15 security review")
	assert.Equal(t, domain.UrgencyHigh, gems[0].Explanation.Urgency)
}

func TestDetectGemsIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedProfile(t, db, &domain.SenderProfile{
		SenderDomain:       "acme.com",
		HasPartnerProgram:  true,
		PartnerProgramURLs: []string{"https://acme.com/partners"},
		TotalMessages:      2,
	})
	seedRelationship(t, db, "acme.com", domain.RelWarmContact, false)

	s := newStage(db, nil)
	n1, err := s.DetectGems(ctx)
	require.NoError(t, err)
	n2, err := s.DetectGems(ctx)
	require.NoError(t, err)
	assert.Equal(t, n1, n2)

	gems, err := store.NewProfileRepo(db).ListGems(ctx, store.GemFilter{})
	require.NoError(t, err)
	assert.Len(t, gems, n1, "re-detection replaces, never accumulates")
}
