// Activity handlers read the per-session audit trail from the activity store.
package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/fiberorder/internal/activity"
	"github.com/matthewbaird/fiberorder/internal/signals"
	"github.com/matthewbaird/fiberorder/internal/types"
)

// ActivityHandler implements HTTP handlers for the activity feed.
type ActivityHandler struct {
	store activity.Store
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(store activity.Store) *ActivityHandler {
	return &ActivityHandler{store: store}
}

// RegisterRoutes mounts the activity routes on r.
func (h *ActivityHandler) RegisterRoutes(r chi.Router) {
	r.Route("/v1/activity", func(r chi.Router) {
		r.Get("/entity/{entity_type}/{entity_id}", h.HandleGetEntityActivity)
		r.Get("/entity/{entity_type}/{entity_id}/signals", h.HandleGetEntitySignals)
		r.Post("/search", h.HandleSearchActivity)
	})
}

// HandleGetEntityActivity returns the activity feed of a session or order,
// newest first.
// GET /v1/activity/entity/{entity_type}/{entity_id}
func (h *ActivityHandler) HandleGetEntityActivity(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entity_type")
	entityID := chi.URLParam(r, "entity_id")
	if entityType == "" || entityID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMS", "entity_type and entity_id are required")
		return
	}

	q := r.URL.Query()
	opts := activity.DefaultQueryOptions()
	if s := q.Get("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			opts.Since = &t
		}
	}
	if u := q.Get("until"); u != "" {
		if t, err := time.Parse(time.RFC3339, u); err == nil {
			opts.Until = &t
		}
	}
	if cats := q.Get("categories"); cats != "" {
		opts.Categories = strings.Split(cats, ",")
	}
	if ets := q.Get("event_types"); ets != "" {
		opts.EventTypes = strings.Split(ets, ",")
	}
	opts.Limit = parseLimit(r, opts.Limit, 500)
	opts.Cursor = q.Get("cursor")

	entries, nextCursor, totalCount, err := h.store.QueryByEntity(r.Context(), entityType, entityID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}

	resp := struct {
		Activities []types.ActivityEntry `json:"activities"`
		NextCursor string                `json:"next_cursor,omitempty"`
		TotalCount int                   `json:"total_count"`
		Period     struct {
			Since *time.Time `json:"since,omitempty"`
			Until *time.Time `json:"until,omitempty"`
		} `json:"period"`
	}{
		Activities: entries,
		NextCursor: nextCursor,
		TotalCount: totalCount,
	}
	resp.Period.Since = opts.Since
	resp.Period.Until = opts.Until
	if resp.Activities == nil {
		resp.Activities = []types.ActivityEntry{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleGetEntitySignals classifies the activity of a session or order and
// returns its funnel health. The period defaults to the last day.
// GET /v1/activity/entity/{entity_type}/{entity_id}/signals
func (h *ActivityHandler) HandleGetEntitySignals(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entity_type")
	entityID := chi.URLParam(r, "entity_id")

	until := time.Now()
	if u := r.URL.Query().Get("until"); u != "" {
		t, err := time.Parse(time.RFC3339, u)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PARAMS", "until must be RFC 3339")
			return
		}
		until = t
	}
	since := until.Add(-24 * time.Hour)
	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PARAMS", "since must be RFC 3339")
			return
		}
		since = t
	}

	entries, _, _, err := h.store.QueryByEntity(r.Context(), entityType, entityID, activity.QueryOptions{
		Since: &since,
		Until: &until,
		Limit: 500,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, signals.Aggregate(entries, entityType, entityID, since, until))
}

// HandleSearchActivity searches activity summaries.
// POST /v1/activity/search
func (h *ActivityHandler) HandleSearchActivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query      string   `json:"query"`
		EntityType string   `json:"entity_type,omitempty"`
		Since      string   `json:"since,omitempty"`
		Categories []string `json:"categories,omitempty"`
		Limit      int      `json:"limit,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMS", "query is required")
		return
	}

	opts := activity.DefaultSearchOptions()
	opts.EntityType = req.EntityType
	opts.Categories = req.Categories
	if req.Limit > 0 {
		opts.Limit = req.Limit
	}
	if req.Since != "" {
		if t, err := time.Parse(time.RFC3339, req.Since); err == nil {
			opts.Since = &t
		}
	}

	entries, totalCount, err := h.store.Search(r.Context(), req.Query, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SEARCH_FAILED", err.Error())
		return
	}

	resp := struct {
		Results    []types.ActivityEntry `json:"results"`
		TotalCount int                   `json:"total_count"`
	}{
		Results:    entries,
		TotalCount: totalCount,
	}
	if resp.Results == nil {
		resp.Results = []types.ActivityEntry{}
	}

	writeJSON(w, http.StatusOK, resp)
}
