package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/todo/internal/adapters/server/common"
	"github.com/evanschultz/todo/internal/adapters/storage/sqlite"
	"github.com/evanschultz/todo/internal/app"
)

func newTestSessions(t *testing.T) *common.Sessions {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return common.NewSessions(app.NewStoreModel(repo, func() string { return "t1" }, nil), nil)
}

// TestNewHandlerServesHealthAndAPI verifies the composed mux routes health and REST requests.
func TestNewHandlerServesHealthAndAPI(t *testing.T) {
	handler, cfg, err := NewHandler(Config{}, Dependencies{Sessions: newTestSessions(t)})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if cfg.APIEndpoint != "/api/v1" || cfg.MCPEndpoint != "/mcp" || cfg.HTTPBind != defaultBindAddress {
		t.Fatalf("unexpected normalized config %#v", cfg)
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
			t.Fatalf("%s status = %d body = %q", path, rec.Code, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(`{"event":"newTodo","payload":{"title":"milk"}}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("events status = %d body = %s", rec.Code, rec.Body.String())
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/todos", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"milk"`) {
		t.Fatalf("todos status = %d body = %s", rec.Code, rec.Body.String())
	}
}

// TestNewHandlerValidation verifies dependency and endpoint checks.
func TestNewHandlerValidation(t *testing.T) {
	if _, _, err := NewHandler(Config{}, Dependencies{}); err == nil {
		t.Fatal("expected error without sessions")
	}
	_, _, err := NewHandler(Config{APIEndpoint: "/x", MCPEndpoint: "x/"}, Dependencies{Sessions: newTestSessions(t)})
	if err == nil {
		t.Fatal("expected endpoint collision error")
	}
}

// TestReadinessReflectsStorage verifies /readyz reports probe failures and logs requests.
func TestReadinessReflectsStorage(t *testing.T) {
	probeErr := errors.New("db closed")
	logger := &recordingLogger{}
	handler, _, err := NewHandler(Config{}, Dependencies{
		Sessions: newTestSessions(t),
		Ready:    func(context.Context) error { return probeErr },
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "unavailable") {
		t.Fatalf("readyz status = %d body = %q", rec.Code, rec.Body.String())
	}
	if len(logger.warns) != 1 || len(logger.debugs) != 0 {
		t.Fatalf("expected one warn line, got warns=%v debugs=%v", logger.warns, logger.debugs)
	}

	probeErr = nil
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, want 200", rec.Code)
	}
	if len(logger.debugs) != 1 {
		t.Fatalf("expected one debug line, got %v", logger.debugs)
	}
}

type recordingLogger struct {
	debugs []any
	warns  []any
}

func (l *recordingLogger) Debug(msg any, _ ...any) { l.debugs = append(l.debugs, msg) }
func (l *recordingLogger) Warn(msg any, _ ...any)  { l.warns = append(l.warns, msg) }
func (l *recordingLogger) Error(msg any, _ ...any) { l.warns = append(l.warns, msg) }

// TestNormalizeEndpoint verifies endpoint path canonicalization.
func TestNormalizeEndpoint(t *testing.T) {
	cases := map[string]string{
		"":          "/api/v1",
		"/":         "/api/v1",
		"api":       "/api",
		" /v2/ ":    "/v2",
		"nested/v1": "/nested/v1",
	}
	for in, want := range cases {
		if got := normalizeEndpoint(in, "/api/v1"); got != want {
			t.Fatalf("normalizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestRunStopsOnContextCancel verifies graceful shutdown when the context ends.
func TestRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{HTTPBind: "127.0.0.1:0"}, Dependencies{Sessions: newTestSessions(t)})
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}
