package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	serveradapter "github.com/evanschultz/todo/internal/adapters/server"
	"github.com/evanschultz/todo/internal/adapters/server/common"
	"github.com/evanschultz/todo/internal/config"
	"github.com/evanschultz/todo/internal/domain"
	"github.com/evanschultz/todo/internal/platform"
	"github.com/evanschultz/todo/internal/tui"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("TODO_DEV_MODE", "false")
	os.Exit(m.Run())
}

type fakeProgram struct {
	runErr error
}

func (f fakeProgram) Run() (tea.Model, error) {
	return nil, f.runErr
}

// scriptedProgram drives the model through a scripted set of messages.
type scriptedProgram struct {
	model tea.Model
	runFn func(tea.Model) (tea.Model, error)
}

func (p scriptedProgram) Run() (tea.Model, error) {
	if p.runFn == nil {
		return p.model, nil
	}
	return p.runFn(p.model)
}

func applyModelMsg(t *testing.T, model tea.Model, msg tea.Msg) tea.Model {
	t.Helper()
	updated, cmd := model.Update(msg)
	return applyModelCmd(t, updated, cmd)
}

func applyModelCmd(t *testing.T, model tea.Model, cmd tea.Cmd) tea.Model {
	t.Helper()
	out := model
	currentCmd := cmd
	for i := 0; i < 8 && currentCmd != nil; i++ {
		msg := currentCmd()
		updated, nextCmd := out.Update(msg)
		out = updated
		currentCmd = nextCmd
	}
	return out
}

// cliEnv is a temp config + database pair.
type cliEnv struct {
	dir     string
	cfgPath string
	dbPath  string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	dir := t.TempDir()
	return cliEnv{
		dir:     dir,
		cfgPath: filepath.Join(dir, "config.toml"),
		dbPath:  filepath.Join(dir, "todo.db"),
	}
}

func (e cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	full := append([]string{"--config", e.cfgPath, "--db", e.dbPath}, args...)
	err := run(context.Background(), full, &out, io.Discard)
	return out.String(), err
}

func (e cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("run(%v) error = %v", args, err)
	}
	return out
}

func (e cliEnv) listJSON(t *testing.T, route string) listOutput {
	t.Helper()
	args := []string{"list", "--format", "json"}
	if route != "" {
		args = append(args, route)
	}
	out := e.mustRun(t, args...)
	var got listOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode list output %q: %v", out, err)
	}
	return got
}

func TestRunVersionCommand(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"version"}, &out, io.Discard); err != nil {
		t.Fatalf("run(version) error = %v", err)
	}
	if !strings.Contains(out.String(), "dev") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}

func TestRunStartsProgram(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	programFactory = func(_ tea.Model) program { return fakeProgram{} }

	e := newCLIEnv(t)
	if _, err := e.run(t); err != nil {
		t.Fatalf("run() error = %v", err)
	}
}

func TestRunProgramErrorIsWrapped(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	programFactory = func(_ tea.Model) program { return fakeProgram{runErr: errors.New("boom")} }

	e := newCLIEnv(t)
	_, err := e.run(t)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected program error, got %v", err)
	}
}

func TestRunTUIRouteSwitchPersistsDefaultRoute(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })

	e := newCLIEnv(t)
	e.mustRun(t, "add", "from", "cli")

	var final tea.Model
	programFactory = func(m tea.Model) program {
		return scriptedProgram{model: m, runFn: func(model tea.Model) (tea.Model, error) {
			model = applyModelCmd(t, model, model.Init())
			model = applyModelMsg(t, model, tea.WindowSizeMsg{Width: 100, Height: 30})
			model = applyModelMsg(t, model, tea.KeyPressMsg{Code: '2', Text: "2"})
			final = model
			return model, nil
		}}
	}
	if _, err := e.run(t); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, ok := final.(tui.Model); !ok {
		t.Fatalf("expected tui.Model, got %T", final)
	}

	cfg, err := config.Load(e.cfgPath, config.Default(e.dbPath))
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	if cfg.UI.DefaultRoute != "#/active" {
		t.Fatalf("expected persisted default route, got %q", cfg.UI.DefaultRoute)
	}
}

func TestRunGestureCommandsLifecycle(t *testing.T) {
	e := newCLIEnv(t)

	if out := e.mustRun(t, "add", "buy", "milk"); !strings.Contains(out, `added "buy milk"`) {
		t.Fatalf("unexpected add output %q", out)
	}
	e.mustRun(t, "add", "walk dog")

	all := e.listJSON(t, "")
	if all.Route != "#/" || all.Filter != "All" || len(all.Todos) != 2 {
		t.Fatalf("unexpected list output %#v", all)
	}
	milk := all.Todos[0].ID

	e.mustRun(t, "toggle", milk)
	completed := e.listJSON(t, "completed")
	if completed.Filter != "Completed" || len(completed.Todos) != 1 || completed.Todos[0].ID != milk {
		t.Fatalf("unexpected completed list %#v", completed)
	}
	e.mustRun(t, "toggle", "--undo", milk)
	if got := e.listJSON(t, "#/active"); len(got.Todos) != 2 {
		t.Fatalf("expected both active after undo, got %#v", got)
	}

	e.mustRun(t, "rename", milk, "buy", "oat", "milk")
	if got := e.listJSON(t, ""); got.Todos[0].Title != "buy oat milk" {
		t.Fatalf("unexpected renamed title %#v", got.Todos)
	}

	e.mustRun(t, "toggle-all")
	if got := e.listJSON(t, "active"); len(got.Todos) != 0 {
		t.Fatalf("expected no active todos, got %#v", got)
	}
	e.mustRun(t, "toggle-all", "--undo")
	e.mustRun(t, "toggle", all.Todos[1].ID)
	e.mustRun(t, "clear")
	if got := e.listJSON(t, ""); len(got.Todos) != 1 || got.Todos[0].ID != milk {
		t.Fatalf("expected clear to remove the completed todo, got %#v", got)
	}

	e.mustRun(t, "rename", milk)
	if got := e.listJSON(t, ""); len(got.Todos) != 0 {
		t.Fatalf("expected empty rename to remove todo, got %#v", got)
	}
}

func TestRunRemoveAndNotFound(t *testing.T) {
	e := newCLIEnv(t)
	e.mustRun(t, "add", "temp")
	id := e.listJSON(t, "").Todos[0].ID
	if out := e.mustRun(t, "rm", id); !strings.Contains(out, "removed "+id) {
		t.Fatalf("unexpected rm output %q", out)
	}
	_, err := e.run(t, "toggle", id)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestRunListFormats(t *testing.T) {
	e := newCLIEnv(t)
	e.mustRun(t, "add", "table row")

	if out := e.mustRun(t, "list"); !strings.Contains(out, "table row") || !strings.Contains(out, "Title") {
		t.Fatalf("unexpected table output %q", out)
	}
	if out := e.mustRun(t, "list", "--format", "markdown"); !strings.Contains(out, "table row") {
		t.Fatalf("unexpected markdown output %q", out)
	}
	if out := e.mustRun(t, "list", "--format", "plain"); !strings.Contains(out, "TITLE") || !strings.Contains(out, "table row") {
		t.Fatalf("unexpected plain output %q", out)
	}
	if out := e.mustRun(t, "list", "completed"); !strings.Contains(out, "no completed todos") {
		t.Fatalf("unexpected empty table output %q", out)
	}
	if _, err := e.run(t, "list", "--format", "yaml"); !errors.Is(err, errUnknownFormat) {
		t.Fatalf("expected unknown format error, got %v", err)
	}
}

func TestRunHistoryCommand(t *testing.T) {
	e := newCLIEnv(t)
	e.mustRun(t, "add", "tracked")
	id := e.listJSON(t, "").Todos[0].ID
	e.mustRun(t, "toggle", id)

	out := e.mustRun(t, "history", "--format", "json")
	var events []domain.ChangeEvent
	if err := json.Unmarshal([]byte(out), &events); err != nil {
		t.Fatalf("decode history %q: %v", out, err)
	}
	if len(events) != 2 || events[0].Operation != domain.ChangeOperationComplete || events[1].Operation != domain.ChangeOperationCreate {
		t.Fatalf("unexpected history %#v", events)
	}

	if out := e.mustRun(t, "history", "--limit", "1"); !strings.Contains(out, "complete") {
		t.Fatalf("unexpected history table %q", out)
	}
	if _, err := e.run(t, "history", "--limit", "0"); err == nil {
		t.Fatal("expected invalid limit error")
	}
}

func TestRunDiskvDriver(t *testing.T) {
	e := newCLIEnv(t)
	e.dbPath = filepath.Join(e.dir, "store")
	e.mustRun(t, "--driver", "diskv", "add", "on disk")

	out, err := e.run(t, "--driver", "diskv", "list", "--format", "json")
	if err != nil {
		t.Fatalf("run(list) error = %v", err)
	}
	var got listOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode list output: %v", err)
	}
	if len(got.Todos) != 1 || got.Todos[0].Title != "on disk" {
		t.Fatalf("unexpected diskv list %#v", got)
	}
	if _, err := os.Stat(filepath.Join(e.dbPath, "todos", got.Todos[0].ID+".json")); err != nil {
		t.Fatalf("expected todo document on disk: %v", err)
	}

	_, err = e.run(t, "--driver", "diskv", "history")
	if !errors.Is(err, common.ErrHistoryUnavailable) {
		t.Fatalf("expected history unavailable, got %v", err)
	}
	if _, err := e.run(t, "--driver", "mongo", "list"); err == nil {
		t.Fatal("expected invalid driver error")
	}
}

func TestRunServeUsesConfigAndFlags(t *testing.T) {
	orig := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = orig })

	var (
		gotCfg  serveradapter.Config
		gotDeps serveradapter.Dependencies
	)
	serveCommandRunner = func(_ context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
		gotCfg = cfg
		gotDeps = deps
		return nil
	}

	e := newCLIEnv(t)
	content := `
[server]
http_bind = "127.0.0.1:9999"
api_endpoint = "/v2"
`
	if err := os.WriteFile(e.cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	e.mustRun(t, "serve", "--mcp-endpoint", "/agents")

	if gotCfg.HTTPBind != "127.0.0.1:9999" || gotCfg.APIEndpoint != "/v2" || gotCfg.MCPEndpoint != "/agents" {
		t.Fatalf("unexpected serve config %#v", gotCfg)
	}
	if gotCfg.ServerName != "todo" || gotCfg.ServerVersion != version {
		t.Fatalf("unexpected server identity %#v", gotCfg)
	}
	if gotDeps.Sessions == nil || gotDeps.History == nil || gotDeps.Ready == nil || gotDeps.Logger == nil {
		t.Fatalf("expected sessions and history deps, got %#v", gotDeps)
	}
}

func TestRunPathsCommand(t *testing.T) {
	var out strings.Builder
	err := run(context.Background(), []string{"--app", "todox", "--dev", "paths"}, &out, io.Discard)
	if err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	output := out.String()
	for _, want := range []string{"app: todox", "dev_mode: true", "driver: sqlite", "todox-dev"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in paths output, got %q", want, output)
		}
	}
}

func TestRunUnknownCommandAndArgs(t *testing.T) {
	if err := run(context.Background(), []string{"bogus"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected unknown command error")
	}
	e := newCLIEnv(t)
	if _, err := e.run(t, "toggle"); err == nil {
		t.Fatal("expected missing id error")
	}
}

func TestRunRejectsInvalidLoggingLevelFromConfig(t *testing.T) {
	e := newCLIEnv(t)
	if err := os.WriteFile(e.cfgPath, []byte("[logging]\nlevel = \"loud\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := e.run(t, "list"); err == nil {
		t.Fatal("expected invalid logging level error")
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("TODO_BOOL_TEST", "true")
	if v, ok := parseBoolEnv("TODO_BOOL_TEST"); !ok || !v {
		t.Fatalf("expected true,true got %t,%t", v, ok)
	}
	t.Setenv("TODO_BOOL_TEST", "nope")
	if _, ok := parseBoolEnv("TODO_BOOL_TEST"); ok {
		t.Fatal("expected invalid bool to be ignored")
	}
}

func TestNormalizeRouteArg(t *testing.T) {
	cases := map[string]string{
		"":            "#/",
		"all":         "#/",
		"active":      "#/active",
		"#/completed": "#/completed",
		"/active":     "/active",
	}
	for in, want := range cases {
		if got := normalizeRouteArg(in); got != want {
			t.Fatalf("normalizeRouteArg(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRunDevModeWritesLogUnderDataDir(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	programFactory = func(_ tea.Model) program { return fakeProgram{} }

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	workspace := t.TempDir()
	t.Chdir(workspace)

	var stderr bytes.Buffer
	args := []string{"--dev", "--db", filepath.Join(workspace, "todo.db"), "--config", filepath.Join(workspace, "config.toml")}
	if err := run(context.Background(), args, io.Discard, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := strings.TrimSpace(stderr.String()); got != "" {
		t.Fatalf("expected no runtime stderr output in TUI mode, got %q", got)
	}

	paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: "todo", DevMode: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	logDir := filepath.Join(paths.DataDir, config.DefaultLogDir)
	entries, err := os.ReadDir(logDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	var logPath string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".log") {
			logPath = filepath.Join(logDir, entry.Name())
			break
		}
	}
	if logPath == "" {
		t.Fatalf("expected a .log file in %s", logDir)
	}
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "starting tui program loop") {
		t.Fatalf("expected tui lifecycle entries in log file, got %q", content)
	}
	if _, err := os.Stat(filepath.Join(workspace, ".todo")); !os.IsNotExist(err) {
		t.Fatalf("expected nothing written beside the working dir, stat err = %v", err)
	}
}

func TestDailyLogPath(t *testing.T) {
	day := time.Date(2026, 2, 23, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		dataDir string
		dir     string
		app     string
		want    string
	}{
		{name: "absolute dir", dataDir: "/data/todo", dir: "/var/log/todo", app: "my app", want: filepath.Join("/var/log/todo", "my-app-20260223.log")},
		{name: "relative dir", dataDir: "/data/todo", dir: "logs", app: "todo", want: filepath.Join("/data/todo", "logs", "todo-20260223.log")},
		{name: "default dir", dataDir: "/data/todo", dir: " ", app: " / ", want: filepath.Join("/data/todo", config.DefaultLogDir, "todo-20260223.log")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := dailyLogPath(tc.dataDir, tc.dir, tc.app, day)
			if err != nil {
				t.Fatalf("dailyLogPath() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("dailyLogPath() = %q, want %q", got, tc.want)
			}
		})
	}
	if _, err := dailyLogPath("", "logs", "todo", day); err == nil {
		t.Fatal("expected error for relative dir without a data dir")
	}
}

func TestRuntimeLoggerCanMuteConsoleSink(t *testing.T) {
	var console bytes.Buffer
	logger, err := newRuntimeLogger(&console, logOptions{
		AppName: "todo",
		Logging: config.Default("/tmp/todo.db").Logging,
	})
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	if logger.FilePath() != "" {
		t.Fatalf("expected no file sink outside dev mode, got %q", logger.FilePath())
	}

	logger.Info("before")
	logger.MuteConsole(true)
	logger.Info("during")
	logger.MuteConsole(false)
	logger.Error("after")

	out := console.String()
	if !strings.Contains(out, "before") || strings.Contains(out, "during") || !strings.Contains(out, "after") {
		t.Fatalf("unexpected console output %q", out)
	}
}

func TestRunExportImportRoundTrip(t *testing.T) {
	src := newCLIEnv(t)
	src.mustRun(t, "add", "first")
	src.mustRun(t, "add", "second")
	id := src.listJSON(t, "").Todos[1].ID
	src.mustRun(t, "toggle", id)

	outPath := filepath.Join(src.dir, "backup", "snap.json")
	if out := src.mustRun(t, "export", "--out", outPath); !strings.Contains(out, "exported 2 todos") {
		t.Fatalf("unexpected export output %q", out)
	}

	stdoutSnap := src.mustRun(t, "export")
	if !strings.Contains(stdoutSnap, `"version": "todo.snapshot.v1"`) {
		t.Fatalf("unexpected stdout export %q", stdoutSnap)
	}

	dst := newCLIEnv(t)
	if out := dst.mustRun(t, "import", outPath); !strings.Contains(out, "imported 2 todos") {
		t.Fatalf("unexpected import output %q", out)
	}
	got := dst.listJSON(t, "")
	if len(got.Todos) != 2 || got.Todos[0].Title != "first" || !got.Todos[1].Completed || got.Todos[1].ID != id {
		t.Fatalf("unexpected imported todos %#v", got.Todos)
	}

	bad := filepath.Join(dst.dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"version":"other"}`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := dst.run(t, "import", bad); err == nil {
		t.Fatal("expected unsupported version error")
	}
}
