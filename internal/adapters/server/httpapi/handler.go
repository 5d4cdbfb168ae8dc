// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/evanschultz/todo/internal/adapters/server/common"
	"github.com/evanschultz/todo/internal/app"
	"github.com/evanschultz/todo/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// maxHistoryLimit caps one history page.
const maxHistoryLimit = 500

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	sessions common.SessionRunner
	history  app.ChangeFeed
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RouteRequest is the body of POST `/routes`.
type RouteRequest struct {
	Route string `json:"route"`
}

// EventRequest is the body of POST `/events`.
type EventRequest struct {
	Route    string          `json:"route"`
	Activate bool            `json:"activate"`
	Event    string          `json:"event"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// TodosResponse is the body of GET `/todos`.
type TodosResponse struct {
	Route  string        `json:"route"`
	Filter string        `json:"filter"`
	Todos  []domain.Todo `json:"todos"`
}

// NewHandler constructs one HTTP API adapter. history may be nil.
func NewHandler(sessions common.SessionRunner, history app.ChangeFeed) *Handler {
	return &Handler{
		sessions: sessions,
		history:  history,
	}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "session service is not configured",
		})
		return
	}
	switch normalizePath(r.URL.Path) {
	case "routes":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleActivateRoute(w, r)
	case "events":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleEvent(w, r)
	case "todos":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListTodos(w, r)
	case "history":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleHistory(w, r)
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	}
}

// handleActivateRoute serves POST `/routes`.
func (h *Handler) handleActivateRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if err := decodeOptionalJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err, nil)
		return
	}
	h.run(w, r, common.SessionRequest{Route: req.Route, Activate: true})
}

// handleEvent serves POST `/events`.
func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err, nil)
		return
	}
	if strings.TrimSpace(req.Event) == "" {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "event is required",
			Hint:    "Use one of: " + eventNames(),
		})
		return
	}
	ev, err := common.DecodeEvent(strings.TrimSpace(req.Event), req.Payload)
	if err != nil {
		writeErrorFrom(w, err, nil)
		return
	}
	h.run(w, r, common.SessionRequest{Route: req.Route, Activate: req.Activate, Event: ev})
}

// handleListTodos serves GET `/todos?route=`.
func (h *Handler) handleListTodos(w http.ResponseWriter, r *http.Request) {
	tr, err := h.sessions.Run(r.Context(), common.SessionRequest{
		Route:    r.URL.Query().Get("route"),
		Activate: true,
	})
	if err != nil {
		writeErrorFrom(w, err, &tr)
		return
	}
	todos, _ := tr.Entries()
	if todos == nil {
		todos = []domain.Todo{}
	}
	writeJSON(w, http.StatusOK, TodosResponse{Route: tr.Route, Filter: tr.Filter, Todos: todos})
}

// handleHistory serves GET `/history?limit=`.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeErrorFrom(w, fmt.Errorf("storage backend has no change ledger: %w", common.ErrHistoryUnavailable), nil)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: "limit must be a positive integer",
			})
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}
	events, err := h.history.ListChangeEvents(r.Context(), limit)
	if err != nil {
		writeErrorFrom(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
	})
}

// run executes one session request and writes its transcript.
func (h *Handler) run(w http.ResponseWriter, r *http.Request, req common.SessionRequest) {
	tr, err := h.sessions.Run(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err, &tr)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// eventNames lists accepted gesture names for error hints.
func eventNames() string {
	names := make([]string, 0, len(app.EventKinds))
	for _, kind := range app.EventKinds {
		names = append(names, kind.String())
	}
	return strings.Join(names, ", ")
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses. A partial transcript is
// attached as error context.
func writeErrorFrom(w http.ResponseWriter, err error, tr *common.Transcript) {
	var errContext map[string]any
	if tr != nil && len(tr.Commands) > 0 {
		errContext = map[string]any{"commands": tr.Commands}
	}
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
			Context: errContext,
		})
	case errors.Is(err, common.ErrInvalidSessionRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
			Context: errContext,
		})
	case errors.Is(err, common.ErrHistoryUnavailable):
		writeJSONError(w, http.StatusNotImplemented, APIError{
			Code:    "not_implemented",
			Message: err.Error(),
			Hint:    "Switch [database].driver to sqlite to keep a change ledger.",
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
			Context: errContext,
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidSessionRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidSessionRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}

// decodeOptionalJSONBody decodes one optional JSON body and ignores empty payloads.
func decodeOptionalJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(out)
	if err == nil {
		select {
		case <-ctx.Done():
			return fmt.Errorf("request canceled: %w", ctx.Err())
		default:
			return nil
		}
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidSessionRequest, err))
}
