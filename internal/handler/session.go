package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/fiberorder/internal/command"
	"github.com/matthewbaird/fiberorder/internal/eligibility"
	"github.com/matthewbaird/fiberorder/internal/lookup"
	"github.com/matthewbaird/fiberorder/internal/order"
	"github.com/matthewbaird/fiberorder/internal/pricing"
	"github.com/matthewbaird/fiberorder/internal/session"
)

// SessionHandler implements the order session API.
type SessionHandler struct {
	sessions *session.Manager
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// RegisterRoutes mounts the session routes on r. Every order operation is a
// POST on /v1/sessions/{id}/{operation}.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Get("/quote", h.GetQuote)
			r.Get("/options", h.GetOptions)
			r.Get("/summary", h.GetSummary)
			for _, op := range command.Names() {
				r.Post("/"+op, h.operation(op))
			}
		})
	})
}

// OperationResponse is returned by every operation route.
type OperationResponse struct {
	command.Outcome
	// Stale is true when a newer lookup superseded this request's answer.
	Stale   bool        `json:"stale,omitempty"`
	Session command.View `json:"session"`
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		domainErrorToHTTP(w, err)
		return nil, false
	}
	return s, true
}

// CreateSession starts a session with an empty order.
// POST /v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create(r.Context())
	writeJSON(w, http.StatusCreated, command.ViewOf(s))
}

// GetSession returns the order state, the selectable options and the quote.
// GET /v1/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, command.ViewOf(s))
}

// DeleteSession ends the session and discards its order.
// DELETE /v1/sessions/{id}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		domainErrorToHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetQuote returns the price breakdown.
// GET /v1/sessions/{id}/quote
func (h *SessionHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var q pricing.Quote
	s.View(func(o *order.Order) { q = o.Quote() })
	writeJSON(w, http.StatusOK, q)
}

// GetOptions returns the add-ons the customer may currently choose from.
// GET /v1/sessions/{id}/options
func (h *SessionHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var opts eligibility.Options
	s.View(func(o *order.Order) { opts = o.Options() })
	writeJSON(w, http.StatusOK, opts)
}

// GetSummary returns the contract summary.
// GET /v1/sessions/{id}/summary
func (h *SessionHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var sum order.Summary
	s.View(func(o *order.Order) { sum = o.Summary() })
	writeJSON(w, http.StatusOK, sum)
}

// operation returns the handler of one order operation. A lookup answer that
// was superseded by a newer request is not an error: the response carries the
// current state and stale is set.
func (h *SessionHandler) operation(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.session(w, r)
		if !ok {
			return
		}
		body, err := readBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		out, err := command.Apply(r.Context(), s, name, body)
		stale := errors.Is(err, lookup.ErrStale)
		if err != nil && !stale {
			domainErrorToHTTP(w, err)
			return
		}
		writeJSON(w, http.StatusOK, OperationResponse{Outcome: out, Stale: stale, Session: command.ViewOf(s)})
	}
}
