package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/pkg/logger"
	"github.com/gemsieve/gemsieve/internal/store"
)

const numWorkers = 2

// SubmitOptions parameterize one run. GemID narrows an engage run to a
// single gem.
type SubmitOptions struct {
	Trigger domain.TriggeredBy
	Crew    bool
	Retrain bool
	GemID   int64
}

type job struct {
	runID int64
	stage domain.Stage
	opts  SubmitOptions
}

// Manager executes pipeline stages on a small worker pool, writing run
// records and publishing live events.
type Manager struct {
	registry *Registry
	runs     *store.PipelineRepo
	hub      *Hub
	snapshot map[string]any

	jobs chan job
	wg   sync.WaitGroup

	lockMu sync.Mutex
	locks  map[domain.Stage]*sync.Mutex

	log *logger.Logger
}

// NewManager creates a manager. snapshot is recorded on every run row so
// a run can be read back with the config that shaped it.
func NewManager(registry *Registry, runs *store.PipelineRepo, hub *Hub, snapshot map[string]any) *Manager {
	return &Manager{
		registry: registry,
		runs:     runs,
		hub:      hub,
		snapshot: snapshot,
		jobs:     make(chan job, 32),
		locks:    make(map[domain.Stage]*sync.Mutex),
		log:      logger.WithComponent("pipeline"),
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	for i := 0; i < numWorkers; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j := <-m.jobs:
					m.execute(ctx, j.runID, j.stage, j.opts)
				}
			}
		}()
	}
}

// Wait blocks until every worker has exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Stages lists the registered stages in execution order.
func (m *Manager) Stages() []StageInfo {
	return m.registry.Stages()
}

// Submit queues a stage run and returns its run id. The run row is
// written pending before this returns.
func (m *Manager) Submit(ctx context.Context, stage domain.Stage, opts SubmitOptions) (int64, error) {
	if _, ok := m.registry.Lookup(stage); !ok {
		return 0, fmt.Errorf("unknown pipeline stage %q", stage)
	}
	runID, err := m.createRun(ctx, stage, opts)
	if err != nil {
		return 0, err
	}
	select {
	case m.jobs <- job{runID: runID, stage: stage, opts: opts}:
		return runID, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// RunSync executes one stage inline and returns its run id and item
// count. The CLI path.
func (m *Manager) RunSync(ctx context.Context, stage domain.Stage, opts SubmitOptions) (int64, int, error) {
	if _, ok := m.registry.Lookup(stage); !ok {
		return 0, 0, fmt.Errorf("unknown pipeline stage %q", stage)
	}
	runID, err := m.createRun(ctx, stage, opts)
	if err != nil {
		return 0, 0, err
	}
	items, err := m.execute(ctx, runID, stage, opts)
	return runID, items, err
}

// RunAll executes every stage except engage, sequentially, stopping at
// the first failure. Returns the run ids created.
func (m *Manager) RunAll(ctx context.Context, opts SubmitOptions) ([]int64, error) {
	var ids []int64
	for _, stage := range domain.StageOrder {
		if stage == domain.StageEngage {
			continue
		}
		if _, ok := m.registry.Lookup(stage); !ok {
			continue
		}
		runID, err := m.createRun(ctx, stage, opts)
		if err != nil {
			return ids, err
		}
		ids = append(ids, runID)
		if _, err := m.execute(ctx, runID, stage, opts); err != nil {
			return ids, fmt.Errorf("stage %s: %w", stage, err)
		}
	}
	return ids, nil
}

func (m *Manager) createRun(ctx context.Context, stage domain.Stage, opts SubmitOptions) (int64, error) {
	snapshot := make(map[string]any, len(m.snapshot)+2)
	for k, v := range m.snapshot {
		snapshot[k] = v
	}
	if opts.Crew {
		snapshot["crew"] = true
	}
	if opts.Retrain {
		snapshot["retrain"] = true
	}
	return m.runs.CreateRun(ctx, &domain.PipelineRun{
		Stage:          stage,
		CreatedAt:      time.Now().UTC(),
		ConfigSnapshot: snapshot,
		TriggeredBy:    opts.Trigger,
	})
}

// execute runs one stage under its per-stage lock, so two instances of
// the same stage never run concurrently.
func (m *Manager) execute(ctx context.Context, runID int64, stage domain.Stage, opts SubmitOptions) (int, error) {
	lock := m.stageLock(stage)
	lock.Lock()
	defer lock.Unlock()

	if err := m.runs.MarkRunning(ctx, runID); err != nil {
		return 0, err
	}
	m.hub.Publish(Event{Kind: EventStarted, RunID: runID, Stage: stage})
	m.log.Info("stage started", "run_id", runID, "stage", string(stage))

	factory, _ := m.registry.Lookup(stage)
	runner := factory(RunContext{
		RunID:   runID,
		Trigger: opts.Trigger,
		Crew:    opts.Crew,
		Retrain: opts.Retrain,
		GemID:   opts.GemID,
	})

	items, err := runner.Run(ctx)
	if err != nil {
		// A cancelled run fails like any other, recorded under the
		// stable reason "cancelled" rather than the Go error text.
		reason := err.Error()
		if errors.Is(err, context.Canceled) {
			reason = "cancelled"
		}
		if markErr := m.runs.MarkFailed(context.WithoutCancel(ctx), runID, items, reason); markErr != nil {
			m.log.Error("mark failed", "run_id", runID, "error", markErr.Error())
		}
		m.hub.Publish(Event{Kind: EventFailed, RunID: runID, Stage: stage, Items: items, Error: reason})
		m.log.Error("stage failed", "run_id", runID, "stage", string(stage), "error", reason)
		return items, err
	}

	if err := m.runs.MarkCompleted(ctx, runID, items); err != nil {
		return items, err
	}
	m.hub.Publish(Event{Kind: EventDone, RunID: runID, Stage: stage, Items: items})
	m.log.Info("stage completed", "run_id", runID, "stage", string(stage), "items", items)
	return items, nil
}

func (m *Manager) stageLock(stage domain.Stage) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	if _, ok := m.locks[stage]; !ok {
		m.locks[stage] = &sync.Mutex{}
	}
	return m.locks[stage]
}
