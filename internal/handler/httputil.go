package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/matthewbaird/fiberorder/internal/catalog"
	"github.com/matthewbaird/fiberorder/internal/command"
	"github.com/matthewbaird/fiberorder/internal/order"
	"github.com/matthewbaird/fiberorder/internal/session"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("writeJSON encode error", zap.Error(err))
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// readBody returns the raw request body. An empty body is not an error.
func readBody(r *http.Request) (json.RawMessage, error) {
	defer r.Body.Close()
	b, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

// parseLimit reads a positive "limit" query parameter, capped at maxLimit.
func parseLimit(r *http.Request, def, maxLimit int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return min(n, maxLimit)
}

// domainErrorToHTTP maps domain errors to HTTP responses.
func domainErrorToHTTP(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, command.ErrUnknown):
		writeError(w, http.StatusNotFound, "UNKNOWN_OPERATION", err.Error())
	case errors.Is(err, command.ErrInvalid):
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
	case errors.Is(err, order.ErrIncomplete):
		writeError(w, http.StatusUnprocessableEntity, "ORDER_INCOMPLETE", err.Error())
	default:
		logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
