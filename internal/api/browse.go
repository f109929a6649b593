package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gemsieve/gemsieve/internal/pkg/httputil"
	"github.com/gemsieve/gemsieve/internal/store"
)

func parseID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}

// listOptions reads the shared browse query parameters.
func listOptions(r *http.Request) store.ListOptions {
	q := r.URL.Query()
	return store.ListOptions{
		Search:   q.Get("search"),
		SortBy:   q.Get("sort"),
		SortDesc: q.Get("order") != "asc",
		Limit:    queryInt(r, "limit", 25),
		Offset:   queryInt(r, "offset", 0),
	}
}

func writePage(w http.ResponseWriter, items any, total int) {
	httputil.List(w, items, total)
}

// ListMessages browses the messages table.
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.messages.ListMessages(r.Context(), listOptions(r))
	if err != nil {
		internalError(w, err)
		return
	}
	writePage(w, items, total)
}

// GetMessage returns one message.
func (h *Handlers) GetMessage(w http.ResponseWriter, r *http.Request) {
	m, err := h.messages.GetMessage(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "message not found")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListThreads browses the threads table.
func (h *Handlers) ListThreads(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.messages.ListThreads(r.Context(), listOptions(r))
	if err != nil {
		internalError(w, err)
		return
	}
	writePage(w, items, total)
}

// GetThread returns one thread with its messages.
func (h *Handlers) GetThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.messages.GetThread(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "thread not found")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	msgs, err := h.messages.MessagesForThread(r.Context(), id)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"thread": t, "messages": msgs})
}

// ListMetadata browses parsed metadata.
func (h *Handlers) ListMetadata(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.metadata.ListMetadata(r.Context(), listOptions(r))
	if err != nil {
		internalError(w, err)
		return
	}
	writePage(w, items, total)
}

// GetMetadata returns one message's parsed metadata.
func (h *Handlers) GetMetadata(w http.ResponseWriter, r *http.Request) {
	m, err := h.metadata.Get(r.Context(), chi.URLParam(r, "message_id"))
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "metadata not found")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListContent browses parsed content.
func (h *Handlers) ListContent(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.content.ListContent(r.Context(), listOptions(r))
	if err != nil {
		internalError(w, err)
		return
	}
	writePage(w, items, total)
}

// GetContent returns one message's parsed content.
func (h *Handlers) GetContent(w http.ResponseWriter, r *http.Request) {
	c, err := h.content.Get(r.Context(), chi.URLParam(r, "message_id"))
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "content not found")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ListEntities browses extracted entities.
func (h *Handlers) ListEntities(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.entities.ListEntities(r.Context(), listOptions(r))
	if err != nil {
		internalError(w, err)
		return
	}
	writePage(w, items, total)
}

// ListClassifications browses AI classifications.
func (h *Handlers) ListClassifications(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.classify.ListClassifications(r.Context(), listOptions(r))
	if err != nil {
		internalError(w, err)
		return
	}
	writePage(w, items, total)
}

// GetClassification returns one message's classification.
func (h *Handlers) GetClassification(w http.ResponseWriter, r *http.Request) {
	c, err := h.classify.Get(r.Context(), chi.URLParam(r, "message_id"))
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "classification not found")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ListOverrides returns all classification overrides.
func (h *Handlers) ListOverrides(w http.ResponseWriter, r *http.Request) {
	items, err := h.classify.ListOverrides(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	writePage(w, items, len(items))
}

// ListProfiles browses sender profiles.
func (h *Handlers) ListProfiles(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.profiles.ListProfiles(r.Context(), listOptions(r))
	if err != nil {
		internalError(w, err)
		return
	}
	writePage(w, items, total)
}

// GetProfile returns one sender profile.
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.GetProfile(r.Context(), chi.URLParam(r, "domain"))
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "profile not found")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ProfileSegments returns one domain's segment memberships.
func (h *Handlers) ProfileSegments(w http.ResponseWriter, r *http.Request) {
	segs, err := h.profiles.SegmentsForDomain(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		internalError(w, err)
		return
	}
	writePage(w, segs, len(segs))
}

// ListGems browses gems, filtered by type, domain, status, and min score.
func (h *Handlers) ListGems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	gems, err := h.profiles.ListGems(r.Context(), store.GemFilter{
		GemType:      q.Get("type"),
		SenderDomain: q.Get("domain"),
		Status:       q.Get("status"),
		MinScore:     float64(queryInt(r, "min_score", 0)),
		Limit:        queryInt(r, "limit", 50),
	})
	if err != nil {
		internalError(w, err)
		return
	}
	writePage(w, gems, len(gems))
}

// GetGem returns one gem with its full explanation.
func (h *Handlers) GetGem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		badRequest(w, "invalid gem id")
		return
	}
	g, err := h.profiles.GetGem(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "gem not found")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// ListRelationships returns all sender relationships, optionally filtered
// by type.
func (h *Handlers) ListRelationships(w http.ResponseWriter, r *http.Request) {
	items, err := h.profiles.ListRelationships(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		internalError(w, err)
		return
	}
	writePage(w, items, len(items))
}

// ListSegments returns all segment assignments.
func (h *Handlers) ListSegments(w http.ResponseWriter, r *http.Request) {
	items, err := h.profiles.ListSegments(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	writePage(w, items, len(items))
}

// ListDrafts returns recent engagement drafts.
func (h *Handlers) ListDrafts(w http.ResponseWriter, r *http.Request) {
	items, err := h.pipeline.ListDrafts(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		internalError(w, err)
		return
	}
	writePage(w, items, len(items))
}

// GetDraft returns one engagement draft.
func (h *Handlers) GetDraft(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		badRequest(w, "invalid draft id")
		return
	}
	d, err := h.pipeline.GetDraft(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "draft not found")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
