// Package ingest pulls messages from the mail provider into the store and
// maintains thread aggregates and the sync cursor.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/mailbox"
	"github.com/gemsieve/gemsieve/internal/pkg/logger"
	"github.com/gemsieve/gemsieve/internal/store"
)

// ErrNoSyncState signals that incremental sync was requested before any
// full sync established a cursor.
var ErrNoSyncState = errors.New("ingest: no sync state; run a full sync first")

// SyncEngine coordinates message ingestion between a mail provider and
// the store.
type SyncEngine struct {
	provider mailbox.Provider
	messages *store.MessageRepo
	log      *logger.Logger
}

// NewSyncEngine creates a sync engine.
func NewSyncEngine(provider mailbox.Provider, messages *store.MessageRepo) *SyncEngine {
	return &SyncEngine{
		provider: provider,
		messages: messages,
		log:      logger.WithComponent("sync"),
	}
}

// FullSync enumerates every message matching the query, stores the ones
// not yet ingested, recomputes affected threads, and persists the
// provider's latest cursor. Returns the number of new messages stored.
func (e *SyncEngine) FullSync(ctx context.Context, query string) (int, error) {
	existing, err := e.messages.ExistingIDs(ctx)
	if err != nil {
		return 0, err
	}

	var (
		stored    int
		pageToken string
		touched   = map[string]bool{}
	)
	for {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		refs, next, err := e.provider.ListMessages(ctx, query, pageToken)
		if err != nil {
			return stored, fmt.Errorf("list messages: %w", err)
		}
		for _, ref := range refs {
			if err := ctx.Err(); err != nil {
				return stored, err
			}
			if existing[ref.ID] {
				continue
			}
			threadID, err := e.ingestOne(ctx, ref.ID)
			if err != nil {
				// Transport hiccups on single messages are skippable;
				// the next full sync picks them up.
				e.log.Warn("skip message", "id", ref.ID, "error", err.Error())
				continue
			}
			touched[threadID] = true
			stored++
		}
		if next == "" {
			break
		}
		pageToken = next
	}

	if err := e.recomputeThreads(ctx, touched); err != nil {
		return stored, err
	}

	cursor, err := e.provider.CurrentCursor(ctx)
	if err != nil {
		return stored, fmt.Errorf("current cursor: %w", err)
	}
	now := time.Now().UTC()
	state, err := e.messages.GetSyncState(ctx)
	if errors.Is(err, store.ErrNotFound) {
		state = &domain.SyncState{}
	} else if err != nil {
		return stored, err
	}
	state.LastHistoryID = cursor
	state.LastFullSync = &now
	state.TotalSynced += int64(stored)
	if err := e.messages.UpsertSyncState(ctx, state); err != nil {
		return stored, err
	}

	e.log.Info("full sync complete", "new_messages", stored, "cursor", cursor)
	return stored, nil
}

// IncrementalSync ingests only messages added since the stored cursor.
// An expired cursor surfaces as mailbox.ErrHistoryExpired; callers fall
// back to FullSync, which is safe because ingest is upsert-guarded.
func (e *SyncEngine) IncrementalSync(ctx context.Context) (int, error) {
	state, err := e.messages.GetSyncState(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return 0, ErrNoSyncState
	}
	if err != nil {
		return 0, err
	}
	if state.LastHistoryID == "" {
		return 0, ErrNoSyncState
	}

	added, newCursor, err := e.provider.HistoryDelta(ctx, state.LastHistoryID)
	if err != nil {
		return 0, err
	}

	existing, err := e.messages.ExistingIDs(ctx)
	if err != nil {
		return 0, err
	}

	var stored int
	touched := map[string]bool{}
	for _, id := range added {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		if existing[id] {
			continue
		}
		threadID, err := e.ingestOne(ctx, id)
		if err != nil {
			e.log.Warn("skip message", "id", id, "error", err.Error())
			continue
		}
		touched[threadID] = true
		stored++
	}

	if err := e.recomputeThreads(ctx, touched); err != nil {
		return stored, err
	}

	now := time.Now().UTC()
	state.LastHistoryID = newCursor
	state.LastIncrementalSync = &now
	state.TotalSynced += int64(stored)
	if err := e.messages.UpsertSyncState(ctx, state); err != nil {
		return stored, err
	}

	e.log.Info("incremental sync complete", "new_messages", stored, "cursor", newCursor)
	return stored, nil
}

// Sync picks incremental when a cursor exists and falls back to a full
// scan on a missing or expired cursor.
func (e *SyncEngine) Sync(ctx context.Context, query string) (int, error) {
	n, err := e.IncrementalSync(ctx)
	if errors.Is(err, ErrNoSyncState) || errors.Is(err, mailbox.ErrHistoryExpired) {
		e.log.Info("falling back to full sync", "reason", err.Error())
		return e.FullSync(ctx, query)
	}
	return n, err
}

func (e *SyncEngine) ingestOne(ctx context.Context, id string) (string, error) {
	msg, atts, err := e.provider.FetchMessage(ctx, id)
	if err != nil {
		return "", err
	}
	if err := e.messages.InsertMessage(ctx, msg); err != nil {
		return "", err
	}
	if len(atts) > 0 {
		if err := e.messages.InsertAttachments(ctx, msg.ID, atts); err != nil {
			return "", err
		}
	}
	return msg.ThreadID, nil
}

func (e *SyncEngine) recomputeThreads(ctx context.Context, threadIDs map[string]bool) error {
	now := time.Now().UTC()
	for threadID := range threadIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msgs, err := e.messages.MessagesForThread(ctx, threadID)
		if err != nil {
			return err
		}
		t := RecomputeThread(threadID, msgs, now)
		if err := e.messages.UpsertThread(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// RecomputeAllThreads rebuilds every thread aggregate. Used by db repair
// paths and after bulk imports.
func (e *SyncEngine) RecomputeAllThreads(ctx context.Context) (int, error) {
	ids, err := e.messages.AllThreadIDs(ctx)
	if err != nil {
		return 0, err
	}
	touched := make(map[string]bool, len(ids))
	for _, id := range ids {
		touched[id] = true
	}
	if err := e.recomputeThreads(ctx, touched); err != nil {
		return 0, err
	}
	return len(ids), nil
}
