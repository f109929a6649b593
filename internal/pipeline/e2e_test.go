package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemsieve/gemsieve/internal/ai"
	"github.com/gemsieve/gemsieve/internal/classify"
	"github.com/gemsieve/gemsieve/internal/config"
	"github.com/gemsieve/gemsieve/internal/content"
	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/entities"
	"github.com/gemsieve/gemsieve/internal/metadata"
	"github.com/gemsieve/gemsieve/internal/profile"
	"github.com/gemsieve/gemsieve/internal/relationship"
	"github.com/gemsieve/gemsieve/internal/segment"
	"github.com/gemsieve/gemsieve/internal/store"
)

// domainProvider scripts one classification result per sender domain.
// Unclassified domains are visited in map order, so responses must be
// keyed, not sequenced.
type domainProvider struct {
	mu       sync.Mutex
	byDomain map[string]*ai.Result
	calls    []ai.Request
}

func (p *domainProvider) Name() string { return "scripted" }

func (p *domainProvider) Complete(_ context.Context, req ai.Request) (*ai.Result, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()
	res, ok := p.byDomain[req.SenderDomain]
	if !ok {
		return nil, fmt.Errorf("no scripted result for %s", req.SenderDomain)
	}
	return res, nil
}

func classificationResult(intent, industry string) *ai.Result {
	obj := map[string]any{
		"industry":                 industry,
		"company_size_estimate":    "small",
		"marketing_sophistication": 4.0,
		"sender_intent":            intent,
		"product_type":             "services",
		"product_description":      "",
		"pain_points_addressed":    []any{},
		"target_audience":          "",
		"partner_program_detected": false,
		"renewal_signal_detected":  false,
		"confidence":               0.9,
	}
	raw, _ := json.Marshal(obj)
	return &ai.Result{Text: string(raw), JSON: obj}
}

type env struct {
	db       *sql.DB
	messages *store.MessageRepo
	metadata *store.MetadataRepo
	content  *store.ContentRepo
	entities *store.EntityRepo
	classify *store.ClassifyRepo
	profiles *store.ProfileRepo
	pipeline *store.PipelineRepo
	provider *domainProvider
	manager  *Manager
}

// newEnv wires the full stage registry over an in-memory database, the
// way cmd wiring does, with the model swapped for a scripted provider.
func newEnv(t *testing.T, known *domain.KnownEntities) *env {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	e := &env{
		db:       db,
		messages: store.NewMessageRepo(db),
		metadata: store.NewMetadataRepo(db),
		content:  store.NewContentRepo(db),
		entities: store.NewEntityRepo(db),
		classify: store.NewClassifyRepo(db),
		profiles: store.NewProfileRepo(db),
		pipeline: store.NewPipelineRepo(db),
		provider: &domainProvider{byDomain: map[string]*ai.Result{}},
	}

	cfg := config.Default()
	fp, err := metadata.NewFingerprinter("")
	require.NoError(t, err)

	reg := NewRegistry()
	reg.Register(domain.StageMetadata, func(RunContext) StageRunner {
		return metadata.NewStage(e.metadata, fp)
	})
	reg.Register(domain.StageContent, func(RunContext) StageRunner {
		return content.NewStage(e.content)
	})
	reg.Register(domain.StageEntities, func(RunContext) StageRunner {
		return entities.NewStage(e.entities, e.content, nil, cfg.EntityExtraction)
	})
	reg.Register(domain.StageClassify, func(rc RunContext) StageRunner {
		st := classify.NewStage(e.classify, e.content, e.metadata, e.entities, e.provider, cfg.AI)
		st.Crew = rc.Crew
		st.Retrain = rc.Retrain
		if rc.Trigger == domain.TriggerWeb {
			st.SetProvider(AuditProvider(e.provider, e.pipeline, domain.StageClassify, rc.RunID))
		}
		return st
	})
	reg.Register(domain.StageProfile, func(RunContext) StageRunner {
		det := relationship.NewDetector(e.profiles, e.content, e.classify, known)
		return profile.NewStage(e.profiles, e.messages, e.metadata, e.content,
			e.entities, e.classify, det, cfg.Scoring, cfg.Engagement)
	})
	reg.Register(domain.StageSegment, func(RunContext) StageRunner {
		return segment.NewStage(e.profiles, e.entities, cfg.Scoring, "")
	})

	e.manager = NewManager(reg, e.pipeline, NewHub(), nil)
	return e
}

func (e *env) seedMessage(t *testing.T, m *domain.Message) {
	t.Helper()
	require.NoError(t, e.messages.InsertMessage(context.Background(), m))
}

func daysAgo(n int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -n)
}

func TestPipelineCollapsesSubdomainSenders(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, &domain.KnownEntities{Institutional: []string{"intuit.com"}})

	e.provider.byDomain["intuit.com"] = classificationResult("transactional", "fintech")
	e.seedMessage(t, &domain.Message{
		ID:        "m-intuit-1",
		ThreadID:  "t-intuit",
		FromName:  "QuickBooks",
		FromEmail: "billing@notification.intuit.com",
		Subject:   "Your invoice is ready",
		Date:      daysAgo(3),
		BodyText:  "Your monthly invoice is attached. This is an automated message.",
	})

	ids, err := e.manager.RunAll(ctx, SubmitOptions{Trigger: domain.TriggerCLI})
	require.NoError(t, err)
	require.Len(t, ids, 6)

	// The subdomain collapses to the organizational root; no profile
	// exists for the literal sending host.
	p, err := e.profiles.GetProfile(ctx, "intuit.com")
	require.NoError(t, err)
	assert.Equal(t, "billing@notification.intuit.com", p.PrimaryEmail)
	_, err = e.profiles.GetProfile(ctx, "notification.intuit.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	rel, err := e.profiles.GetRelationship(ctx, "intuit.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RelInstitutional, rel.Type)
	assert.True(t, rel.SuppressGems)

	gems, err := e.profiles.ListGems(ctx, store.GemFilter{SenderDomain: "intuit.com"})
	require.NoError(t, err)
	assert.Empty(t, gems, "suppressed institutional senders produce no gems")
}

func TestPipelineDetectsDormantWarmThread(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, &domain.KnownEntities{})

	e.provider.byDomain["acme.com"] = classificationResult("human_1to1", "SaaS")
	e.provider.byDomain["consulting.io"] = classificationResult("human_1to1", "consulting")

	e.seedMessage(t, &domain.Message{
		ID:           "m-me-1",
		ThreadID:     "t-acme",
		FromName:     "Me",
		FromEmail:    "me@consulting.io",
		ToEmails:     []domain.Address{{Email: "jane@acme.com", Name: "Jane Price"}},
		Subject:      "Project scope",
		Date:         daysAgo(50),
		BodyText:     "Here is the project scope we talked about last week.",
		IsSentByUser: true,
	})
	e.seedMessage(t, &domain.Message{
		ID:        "m-jane-1",
		ThreadID:  "t-acme",
		FromName:  "Jane Price",
		FromEmail: "jane@acme.com",
		ToEmails:  []domain.Address{{Email: "me@consulting.io"}},
		Subject:   "Re: Project scope",
		Date:      daysAgo(45),
		BodyText:  "Thanks! What's your pricing for a team of 30?",
	})
	require.NoError(t, e.messages.UpsertThread(ctx, &domain.Thread{
		ID:               "t-acme",
		Subject:          "Project scope",
		CleanSubject:     "Project scope",
		Participants:     []string{"me@consulting.io", "jane@acme.com"},
		MessageCount:     2,
		FirstMessageDate: daysAgo(50),
		LastMessageDate:  daysAgo(45),
		LastSender:       "jane@acme.com",
		UserParticipated: true,
		AwaitingResponse: domain.AwaitingUser,
		DaysDormant:      45,
	}))
	require.NoError(t, e.profiles.SetRelationship(ctx, &domain.SenderRelationship{
		SenderDomain: "acme.com",
		Type:         domain.RelWarmContact,
		Confidence:   1.0,
		Source:       domain.RelSourceManual,
		UpdatedAt:    time.Now().UTC(),
	}))

	_, err := e.manager.RunAll(ctx, SubmitOptions{Trigger: domain.TriggerCLI})
	require.NoError(t, err)

	gems, err := e.profiles.ListGems(ctx, store.GemFilter{SenderDomain: "acme.com"})
	require.NoError(t, err)
	require.NotEmpty(t, gems)

	var gem *domain.Gem
	for i := range gems {
		if gems[i].GemType == domain.GemDormantWarmThread {
			gem = &gems[i]
		}
	}
	require.NotNil(t, gem, "expected a dormant_warm_thread gem for acme.com")
	assert.Equal(t, "t-acme", gem.ThreadID)
	assert.Equal(t, domain.UrgencyHigh, gem.Explanation.Urgency, "45 days dormant is still hot")

	names := map[string]bool{}
	for _, sig := range gem.Explanation.Signals {
		names[sig.Signal] = true
	}
	assert.True(t, names["pricing"], "signals: %v", names)
	assert.True(t, names["explicit_ask"], "signals: %v", names)
	assert.True(t, names["budget_indicator"], "signals: %v", names)
	assert.True(t, names["user_participated"], "signals: %v", names)

	// The segment stage rescored the gem under the warm_contact cap.
	assert.Greater(t, gem.Score, 0.0)
	assert.LessOrEqual(t, gem.Score, 90.0)

	segs, err := e.profiles.SegmentsForDomain(ctx, "acme.com")
	require.NoError(t, err)
	found := false
	for _, s := range segs {
		if s.Segment == "dormant_threads" {
			found = true
			assert.Equal(t, "unanswered", s.SubSegment)
		}
	}
	assert.True(t, found, "segments: %v", segs)
}

func TestWebTriggeredClassifyIsAudited(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, &domain.KnownEntities{})

	e.provider.byDomain["acme.com"] = classificationResult("human_1to1", "SaaS")
	e.seedMessage(t, &domain.Message{
		ID:        "m-audit-1",
		ThreadID:  "t-audit",
		FromEmail: "jane@acme.com",
		Subject:   "Hello",
		Date:      daysAgo(2),
		BodyText:  "Quick question about your services.",
	})

	ids, err := e.manager.RunAll(ctx, SubmitOptions{Trigger: domain.TriggerWeb})
	require.NoError(t, err)
	classifyRunID := ids[3] // metadata, content, entities, classify, ...

	audits, err := e.pipeline.ListAudit(ctx, string(domain.StageClassify), 0, 50, 0)
	require.NoError(t, err)
	require.Len(t, audits, 1)

	a := audits[0]
	assert.Equal(t, classifyRunID, a.RunID)
	assert.Equal(t, "acme.com", a.SenderDomain)
	assert.Equal(t, ai.ClassificationTemplate(false), a.TemplateID)
	assert.Equal(t, "scripted", a.ModelUsed)
	assert.NotEmpty(t, a.PromptRendered)
	assert.NotEmpty(t, a.SystemPrompt)
	assert.Contains(t, a.ResponseParsed, `"sender_intent":"human_1to1"`)
	assert.Greater(t, a.DurationMs, int64(-1))
}

func TestCLITriggeredClassifyIsNotAudited(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, &domain.KnownEntities{})

	e.provider.byDomain["acme.com"] = classificationResult("human_1to1", "SaaS")
	e.seedMessage(t, &domain.Message{
		ID:        "m-cli-1",
		ThreadID:  "t-cli",
		FromEmail: "jane@acme.com",
		Subject:   "Hello",
		Date:      daysAgo(2),
		BodyText:  "Quick question about your services.",
	})

	_, err := e.manager.RunAll(ctx, SubmitOptions{Trigger: domain.TriggerCLI})
	require.NoError(t, err)

	audits, err := e.pipeline.ListAudit(ctx, "", 0, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, audits)
}
