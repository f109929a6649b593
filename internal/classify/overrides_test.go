package classify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/store"
)

func TestAddInfersScope(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedMessage(t, db, "m1", "acme.com", "sales@acme.com", time.Now().UTC())

	svc := NewOverrides(store.NewClassifyRepo(db), store.NewMetadataRepo(db))

	ov, err := svc.Add(ctx, "m1", "", "industry", "Agency")
	require.NoError(t, err)
	assert.Equal(t, domain.ScopeMessage, ov.Scope)
	assert.Equal(t, "acme.com", ov.SenderDomain, "domain backfilled from metadata")

	ov, err = svc.Add(ctx, "", "acme.com", "sender_intent", "newsletter")
	require.NoError(t, err)
	assert.Equal(t, domain.ScopeSender, ov.Scope)
}

func TestAddCapturesOriginalValue(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedMessage(t, db, "m1", "acme.com", "sales@acme.com", time.Now().UTC())

	repo := store.NewClassifyRepo(db)
	require.NoError(t, repo.Upsert(ctx, &domain.Classification{
		MessageID:    "m1",
		Industry:     "SaaS",
		ClassifiedAt: time.Now().UTC(),
	}))

	svc := NewOverrides(repo, store.NewMetadataRepo(db))
	ov, err := svc.Add(ctx, "m1", "", "industry", "Agency")
	require.NoError(t, err)
	assert.Equal(t, "SaaS", ov.OriginalValue)
}

func TestAddRejectsUnknownField(t *testing.T) {
	db := newTestDB(t)
	svc := NewOverrides(store.NewClassifyRepo(db), store.NewMetadataRepo(db))
	_, err := svc.Add(context.Background(), "m1", "", "favorite_color", "blue")
	assert.Error(t, err)
}

func TestAddRequiresTarget(t *testing.T) {
	db := newTestDB(t)
	svc := NewOverrides(store.NewClassifyRepo(db), store.NewMetadataRepo(db))
	_, err := svc.Add(context.Background(), "", "", "industry", "Agency")
	assert.Error(t, err)
}

func TestStatsFlagsNeedsTuning(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := store.NewClassifyRepo(db)

	for i, id := range []string{"m1", "m2", "m3", "m4", "m5"} {
		seedMessage(t, db, id, "d.com", "a@d.com", time.Now().UTC().Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Upsert(ctx, &domain.Classification{
			MessageID: id, Industry: "SaaS", ClassifiedAt: time.Now().UTC(),
		}))
	}
	// 2 of 5 industry corrections: 40% > 20% threshold
	for _, id := range []string{"m1", "m2"} {
		require.NoError(t, repo.InsertOverride(ctx, &domain.Override{
			MessageID: id, SenderDomain: "d.com", FieldName: "industry",
			CorrectedValue: "Agency", Scope: domain.ScopeMessage,
			CreatedAt: time.Now().UTC(),
		}))
	}
	require.NoError(t, repo.InsertOverride(ctx, &domain.Override{
		SenderDomain: "d.com", FieldName: "target_audience",
		CorrectedValue: "founders", Scope: domain.ScopeSender,
		CreatedAt: time.Now().UTC(),
	}))

	svc := NewOverrides(repo, store.NewMetadataRepo(db))
	stats, err := svc.Stats(ctx)
	require.NoError(t, err)

	byField := map[string]domain.OverrideStats{}
	for _, st := range stats {
		byField[st.FieldName] = st
	}
	industry := byField["industry"]
	assert.Equal(t, 2, industry.TotalOverrides)
	assert.True(t, industry.NeedsTuning)

	audience := byField["target_audience"]
	assert.Equal(t, 1, audience.TotalOverrides)
	assert.False(t, audience.NeedsTuning, "exactly 20% does not trip the flag")
}

func TestDeleteOverride(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := store.NewClassifyRepo(db)
	require.NoError(t, repo.InsertOverride(ctx, &domain.Override{
		SenderDomain: "d.com", FieldName: "industry",
		CorrectedValue: "Agency", Scope: domain.ScopeSender,
		CreatedAt: time.Now().UTC(),
	}))

	svc := NewOverrides(repo, store.NewMetadataRepo(db))
	require.NoError(t, svc.Delete(ctx, 1))
	assert.Error(t, svc.Delete(ctx, 1))
}
