package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/todo/internal/adapters/server/common"
	"github.com/evanschultz/todo/internal/adapters/storage/sqlite"
	"github.com/evanschultz/todo/internal/app"
	"github.com/evanschultz/todo/internal/domain"
)

// stubSessionRunner records requests and returns a fixed transcript.
type stubSessionRunner struct {
	transcript common.Transcript
	err        error
	last       common.SessionRequest
	calls      int
}

// Run records the request and returns the configured response.
func (s *stubSessionRunner) Run(_ context.Context, req common.SessionRequest) (common.Transcript, error) {
	s.last = req
	s.calls++
	return s.transcript, s.err
}

// stubChangeFeed returns fixture ledger entries.
type stubChangeFeed struct {
	events    []domain.ChangeEvent
	lastLimit int
}

// ListChangeEvents records the limit and returns the fixture events.
func (s *stubChangeFeed) ListChangeEvents(_ context.Context, limit int) ([]domain.ChangeEvent, error) {
	s.lastLimit = limit
	return s.events, nil
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return env.Error
}

// TestHandlerActivateRoute verifies POST /routes activates the requested route.
func TestHandlerActivateRoute(t *testing.T) {
	runner := &stubSessionRunner{transcript: common.Transcript{
		Route:    "#/active",
		Filter:   "Active",
		Commands: []common.WireCommand{common.EncodeCommand(app.SetFilter{Token: "active"})},
	}}
	rec := serve(t, NewHandler(runner, nil), http.MethodPost, "/routes", `{"route":"#/active"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !runner.last.Activate || runner.last.Route != "#/active" || runner.last.Event != nil {
		t.Fatalf("unexpected session request %#v", runner.last)
	}
	var got struct {
		Route    string `json:"route"`
		Commands []struct {
			Name    string         `json:"name"`
			Payload map[string]any `json:"payload"`
		} `json:"commands"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got.Commands) != 1 || got.Commands[0].Name != "setFilter" || got.Commands[0].Payload["token"] != "active" {
		t.Fatalf("unexpected transcript %#v", got)
	}
}

// TestHandlerActivateRouteEmptyBody verifies an empty body activates the default route.
func TestHandlerActivateRouteEmptyBody(t *testing.T) {
	runner := &stubSessionRunner{}
	rec := serve(t, NewHandler(runner, nil), http.MethodPost, "/routes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if runner.last.Route != "" || !runner.last.Activate {
		t.Fatalf("unexpected session request %#v", runner.last)
	}
}

// TestHandlerEventDecodesGesture verifies POST /events decodes the typed gesture.
func TestHandlerEventDecodesGesture(t *testing.T) {
	runner := &stubSessionRunner{}
	rec := serve(t, NewHandler(runner, nil), http.MethodPost, "/events",
		`{"route":"#/completed","event":"itemToggle","payload":{"id":"a","completed":true}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	want := app.ItemToggleEvent{ID: "a", Completed: true}
	if runner.last.Event != want || runner.last.Route != "#/completed" || runner.last.Activate {
		t.Fatalf("unexpected session request %#v", runner.last)
	}
}

// TestHandlerEventValidation verifies malformed gestures fail before reaching the session runner.
func TestHandlerEventValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "missing event", body: `{"route":"#/"}`},
		{name: "unknown event", body: `{"event":"explode"}`},
		{name: "missing id", body: `{"event":"itemRemove","payload":{}}`},
		{name: "unknown field", body: `{"event":"newTodo","extra":1}`},
		{name: "trailing content", body: `{"event":"removeCompleted"}{}`},
		{name: "empty body", body: ``},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &stubSessionRunner{}
			rec := serve(t, NewHandler(runner, nil), http.MethodPost, "/events", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if got := decodeError(t, rec); got.Code != "invalid_request" {
				t.Fatalf("code = %q, want invalid_request", got.Code)
			}
			if runner.calls != 0 {
				t.Fatalf("expected no session runs, got %d", runner.calls)
			}
		})
	}
}

// TestHandlerErrorMapping verifies session errors map to structured statuses.
func TestHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "not found", err: fmt.Errorf("itemEdit: %w", errors.Join(common.ErrNotFound, domain.ErrNotFound)), wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "invalid", err: fmt.Errorf("newTodo: %w", common.ErrInvalidSessionRequest), wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "internal", err: errors.New("disk on fire"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &stubSessionRunner{
				err: tc.err,
				transcript: common.Transcript{Commands: []common.WireCommand{
					common.EncodeCommand(app.RemoveItem{ID: "a"}),
				}},
			}
			rec := serve(t, NewHandler(runner, nil), http.MethodPost, "/events", `{"event":"itemEdit","payload":{"id":"a"}}`)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			got := decodeError(t, rec)
			if got.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", got.Code, tc.wantCode)
			}
			if _, ok := got.Context["commands"]; !ok {
				t.Fatalf("expected partial transcript in context, got %#v", got.Context)
			}
		})
	}
}

// TestHandlerMethodAndPathErrors verifies method and path checks.
func TestHandlerMethodAndPathErrors(t *testing.T) {
	h := NewHandler(&stubSessionRunner{}, nil)
	rec := serve(t, h, http.MethodGet, "/events", "")
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("unexpected method response %d allow=%q", rec.Code, rec.Header().Get("Allow"))
	}
	rec = serve(t, h, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	rec = serve(t, NewHandler(nil, nil), http.MethodGet, "/todos", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

// TestHandlerHistory verifies ledger listing and the missing-ledger response.
func TestHandlerHistory(t *testing.T) {
	now := time.Date(2026, 2, 24, 12, 0, 0, 0, time.UTC)
	feed := &stubChangeFeed{events: []domain.ChangeEvent{{ID: 1, TodoID: "a", Operation: domain.ChangeOperationCreate, OccurredAt: now}}}
	h := NewHandler(&stubSessionRunner{}, feed)

	rec := serve(t, h, http.MethodGet, "/history?limit=9999", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if feed.lastLimit != maxHistoryLimit {
		t.Fatalf("limit = %d, want %d", feed.lastLimit, maxHistoryLimit)
	}
	var got struct {
		Events []domain.ChangeEvent `json:"events"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got.Events) != 1 || got.Events[0].Operation != domain.ChangeOperationCreate {
		t.Fatalf("unexpected events %#v", got.Events)
	}

	rec = serve(t, h, http.MethodGet, "/history?limit=zero", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	rec = serve(t, NewHandler(&stubSessionRunner{}, nil), http.MethodGet, "/history", "")
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotImplemented)
	}
}

// TestHandlerEndToEnd verifies gestures flow through real sessions and storage.
func TestHandlerEndToEnd(t *testing.T) {
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	n := 0
	model := app.NewStoreModel(repo, func() string {
		n++
		return fmt.Sprintf("t%d", n)
	}, nil)
	h := NewHandler(common.NewSessions(model, nil), repo)

	for _, title := range []string{"buy milk", "walk dog"} {
		rec := serve(t, h, http.MethodPost, "/events", fmt.Sprintf(`{"event":"newTodo","payload":{"title":%q}}`, title))
		if rec.Code != http.StatusOK {
			t.Fatalf("newTodo status = %d: %s", rec.Code, rec.Body.String())
		}
	}
	rec := serve(t, h, http.MethodPost, "/events", `{"event":"itemToggle","payload":{"id":"t1","completed":true}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("itemToggle status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = serve(t, h, http.MethodGet, "/todos?route=%23%2Factive", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("todos status = %d: %s", rec.Code, rec.Body.String())
	}
	var todos TodosResponse
	if err := json.NewDecoder(rec.Body).Decode(&todos); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if todos.Filter != "Active" || len(todos.Todos) != 1 || todos.Todos[0].Title != "walk dog" {
		t.Fatalf("unexpected active todos %#v", todos)
	}

	rec = serve(t, h, http.MethodPost, "/events", `{"event":"itemEditCancel","payload":{"id":"gone"}}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
