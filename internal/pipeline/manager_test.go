package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/store"
)

type runnerFunc func(ctx context.Context) (int, error)

func (f runnerFunc) Run(ctx context.Context) (int, error) { return f(ctx) }

func staticFactory(items int, err error) Factory {
	return func(RunContext) StageRunner {
		return runnerFunc(func(context.Context) (int, error) { return items, err })
	}
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunSyncMarksCompleted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	reg := NewRegistry()
	reg.Register(domain.StageMetadata, staticFactory(5, nil))

	hub := NewHub()
	events := hub.Subscribe("test")
	repo := store.NewPipelineRepo(db)
	m := NewManager(reg, repo, hub, map[string]any{"ai_model": "mistral-nemo"})

	runID, items, err := m.RunSync(ctx, domain.StageMetadata, SubmitOptions{Trigger: domain.TriggerCLI})
	require.NoError(t, err)
	assert.Equal(t, 5, items)

	run, err := repo.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, 5, run.ItemsProcessed)
	assert.Equal(t, domain.TriggerCLI, run.TriggeredBy)
	assert.Equal(t, "mistral-nemo", run.ConfigSnapshot["ai_model"])
	require.NotNil(t, run.StartedAt)
	require.NotNil(t, run.CompletedAt)

	started := <-events
	assert.Equal(t, EventStarted, started.Kind)
	done := <-events
	assert.Equal(t, EventDone, done.Kind)
	assert.Equal(t, 5, done.Items)
}

func TestRunSyncFailureMarksFailed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	reg := NewRegistry()
	reg.Register(domain.StageContent, staticFactory(2, errors.New("parse exploded")))

	hub := NewHub()
	events := hub.Subscribe("test")
	repo := store.NewPipelineRepo(db)
	m := NewManager(reg, repo, hub, nil)

	runID, items, err := m.RunSync(ctx, domain.StageContent, SubmitOptions{Trigger: domain.TriggerCLI})
	require.Error(t, err)
	assert.Equal(t, 2, items)

	run, err := repo.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Equal(t, "parse exploded", run.ErrorMessage)
	assert.Equal(t, 2, run.ItemsProcessed)

	<-events // started
	failed := <-events
	assert.Equal(t, EventFailed, failed.Kind)
	assert.Equal(t, "parse exploded", failed.Error)
}

func TestRunSyncCancelledRecordsStableReason(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	reg := NewRegistry()
	reg.Register(domain.StageClassify, func(RunContext) StageRunner {
		return runnerFunc(func(ctx context.Context) (int, error) {
			cancel()
			return 1, ctx.Err()
		})
	})

	repo := store.NewPipelineRepo(db)
	m := NewManager(reg, repo, NewHub(), nil)

	runID, _, err := m.RunSync(ctx, domain.StageClassify, SubmitOptions{Trigger: domain.TriggerCLI})
	require.ErrorIs(t, err, context.Canceled)

	run, err := repo.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Equal(t, "cancelled", run.ErrorMessage)
}

func TestSubmitExecutesOnWorker(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := NewRegistry()
	reg.Register(domain.StageMetadata, staticFactory(3, nil))

	repo := store.NewPipelineRepo(db)
	m := NewManager(reg, repo, NewHub(), nil)
	m.Start(ctx)

	runID, err := m.Submit(ctx, domain.StageMetadata, SubmitOptions{Trigger: domain.TriggerWeb})
	require.NoError(t, err)

	run := waitForRun(t, repo, runID, domain.RunCompleted)
	assert.Equal(t, 3, run.ItemsProcessed)
	assert.Equal(t, domain.TriggerWeb, run.TriggeredBy)
}

func TestSubmitUnknownStage(t *testing.T) {
	db := newTestDB(t)
	m := NewManager(NewRegistry(), store.NewPipelineRepo(db), NewHub(), nil)
	_, err := m.Submit(context.Background(), domain.Stage("bogus"), SubmitOptions{})
	assert.Error(t, err)
}

func TestRunAllSkipsEngage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var engageRuns atomic.Int32
	reg := NewRegistry()
	for _, s := range domain.StageOrder {
		stage := s
		reg.Register(stage, func(RunContext) StageRunner {
			return runnerFunc(func(context.Context) (int, error) {
				if stage == domain.StageEngage {
					engageRuns.Add(1)
				}
				return 1, nil
			})
		})
	}

	repo := store.NewPipelineRepo(db)
	m := NewManager(reg, repo, NewHub(), nil)
	ids, err := m.RunAll(ctx, SubmitOptions{Trigger: domain.TriggerCLI})
	require.NoError(t, err)
	assert.Len(t, ids, 6)
	assert.Equal(t, int32(0), engageRuns.Load())

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 6)
	for _, r := range runs {
		assert.Equal(t, domain.RunCompleted, r.Status)
		assert.NotEqual(t, domain.StageEngage, r.Stage)
	}
}

func TestRunAllStopsAtFirstFailure(t *testing.T) {
	db := newTestDB(t)

	reg := NewRegistry()
	reg.Register(domain.StageMetadata, staticFactory(1, nil))
	reg.Register(domain.StageContent, staticFactory(0, errors.New("boom")))
	reg.Register(domain.StageEntities, staticFactory(1, nil))

	m := NewManager(reg, store.NewPipelineRepo(db), NewHub(), nil)
	ids, err := m.RunAll(context.Background(), SubmitOptions{Trigger: domain.TriggerCLI})
	require.Error(t, err)
	assert.Len(t, ids, 2, "metadata succeeded, content failed, entities never ran")
}

func TestSameStageNeverRunsConcurrently(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var active, peak atomic.Int32
	reg := NewRegistry()
	reg.Register(domain.StageProfile, func(RunContext) StageRunner {
		return runnerFunc(func(context.Context) (int, error) {
			n := active.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(30 * time.Millisecond)
			active.Add(-1)
			return 1, nil
		})
	})

	repo := store.NewPipelineRepo(db)
	m := NewManager(reg, repo, NewHub(), nil)
	m.Start(ctx)

	id1, err := m.Submit(ctx, domain.StageProfile, SubmitOptions{Trigger: domain.TriggerWeb})
	require.NoError(t, err)
	id2, err := m.Submit(ctx, domain.StageProfile, SubmitOptions{Trigger: domain.TriggerWeb})
	require.NoError(t, err)

	waitForRun(t, repo, id1, domain.RunCompleted)
	waitForRun(t, repo, id2, domain.RunCompleted)
	assert.Equal(t, int32(1), peak.Load())
}

func waitForRun(t *testing.T, repo *store.PipelineRepo, id int64, want domain.RunStatus) *domain.PipelineRun {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, err := repo.GetRun(context.Background(), id)
		require.NoError(t, err)
		if run.Status == want {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %d never reached status %s", id, want)
	return nil
}

func TestHubDropsOldestWhenFull(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe("slow")

	for i := 1; i <= 101; i++ {
		hub.Publish(Event{Kind: EventDone, RunID: int64(i), Stage: domain.StageMetadata})
	}

	first := <-ch
	assert.Equal(t, int64(2), first.RunID, "oldest event dropped")

	hub.Unsubscribe("slow")
	_, open := <-ch
	assert.False(t, open)
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "[STARTED] 7 metadata",
		Event{Kind: EventStarted, RunID: 7, Stage: domain.StageMetadata}.String())
	assert.Equal(t, "[DONE] 7 segment 42",
		Event{Kind: EventDone, RunID: 7, Stage: domain.StageSegment, Items: 42}.String())
	assert.Equal(t, "[FAILED] 7 engage model timeout",
		Event{Kind: EventFailed, RunID: 7, Stage: domain.StageEngage, Error: "model timeout"}.String())
}
