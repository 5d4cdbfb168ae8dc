package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	goversion "go.hein.dev/go-version"

	serveradapter "github.com/evanschultz/todo/internal/adapters/server"
	"github.com/evanschultz/todo/internal/adapters/server/common"
	"github.com/evanschultz/todo/internal/app"
	"github.com/evanschultz/todo/internal/config"
	"github.com/evanschultz/todo/internal/tui"
)

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := defaultRootOptions()
	cmd := &cobra.Command{
		Use:   "todo",
		Short: "A small todo list with a terminal UI, a CLI, and an HTTP/MCP server.",
		Example: `
todo
todo add "buy milk"
todo list active --format markdown
todo serve --http 127.0.0.1:8080
`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(opts, stderr, "tui", func(env *runtimeEnv) error {
				return runTUI(cmd.Context(), env)
			})
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to the sqlite database or diskv directory")
	flags.StringVar(&opts.driver, "driver", "", "storage driver override (sqlite|diskv)")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")

	addPaths(cmd, &opts, stdout)
	addVersion(cmd, stdout)
	addServe(cmd, &opts, stderr)
	addList(cmd, &opts, stdout, stderr)
	addGestures(cmd, &opts, stdout, stderr)
	addHistory(cmd, &opts, stdout, stderr)
	addExport(cmd, &opts, stdout, stderr)
	addImport(cmd, &opts, stdout, stderr)
	return cmd
}

// withRuntime opens storage and logging around one command flow.
func withRuntime(opts rootOptions, stderr io.Writer, command string, fn func(*runtimeEnv) error) error {
	env, err := openRuntime(opts, stderr)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := env.close(); closeErr != nil && !env.logger.ConsoleMuted() {
			_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", closeErr)
		}
	}()
	if command == "tui" {
		// Keep TUI rendering clean: runtime logs stay in the dev-file sink while the list is active.
		env.logger.MuteConsole(true)
	}
	env.logger.Info("command flow start", "command", command)
	if err := fn(env); err != nil {
		env.logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", command, err)
	}
	env.logger.Info("command flow complete", "command", command)
	return nil
}

func runTUI(ctx context.Context, env *runtimeEnv) error {
	cfg := env.resolved.cfg
	screen := tui.NewScreen()
	controller, err := app.NewController(env.model, screen,
		app.WithLogger(env.logger),
		app.WithErrorHandler(screen.ReportError),
	)
	if err != nil {
		return err
	}
	configPath := env.resolved.configPath
	m := tui.NewModel(screen, controller,
		tui.WithContext(ctx),
		tui.WithInitialRoute(cfg.UI.DefaultRoute),
		tui.WithShowHelp(cfg.UI.ShowHelp),
		tui.WithKeyConfig(toTUIKeyConfig(cfg.Keys)),
		tui.WithRouteSaver(func(route string) error {
			env.logger.Info("default route update requested", "route", route, "config_path", configPath)
			if err := persistDefaultRoute(configPath, route); err != nil {
				env.logger.Error("default route update failed", "route", route, "config_path", configPath, "err", err)
				return err
			}
			env.logger.Info("default route update complete", "route", route, "config_path", configPath)
			return nil
		}),
	)
	env.logger.Info("starting tui program loop")
	if _, err := programFactory(m).Run(); err != nil {
		env.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	return nil
}

func toTUIKeyConfig(keys config.KeyConfig) tui.KeyConfig {
	return tui.KeyConfig{
		NewTodo:        keys.NewTodo,
		Toggle:         keys.Toggle,
		Edit:           keys.Edit,
		Remove:         keys.Remove,
		ClearCompleted: keys.ClearCompleted,
		ToggleAll:      keys.ToggleAll,
		Copy:           keys.Copy,
	}
}

func addPaths(topLevel *cobra.Command, opts *rootOptions, stdout io.Writer) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			resolved, err := resolveConfig(*opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(stdout, "config: %s\n", resolved.configPath)
			_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", resolved.paths.DataDir)
			_, _ = fmt.Fprintf(stdout, "driver: %s\n", resolved.cfg.StorageDriver())
			_, _ = fmt.Fprintf(stdout, "db: %s\n", resolved.cfg.Database.Path)
			return nil
		},
	})
}

func addVersion(topLevel *cobra.Command, stdout io.Writer) {
	shortened := false
	output := "json"
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the todo version.",
		Example: `
todo version
todo version --short
`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			resp := goversion.FuncWithOutput(shortened, version, commit, date, output)
			_, _ = fmt.Fprint(stdout, resp)
		},
	}
	cmd.Flags().BoolVarP(&shortened, "short", "s", false, "Print just the version number.")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format. One of 'yaml' or 'json'.")
	topLevel.AddCommand(cmd)
}

func addServe(topLevel *cobra.Command, opts *rootOptions, stderr io.Writer) {
	var httpBind, apiEndpoint, mcpEndpoint string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and the MCP endpoint.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(*opts, stderr, "serve", func(env *runtimeEnv) error {
				server := env.resolved.cfg.Server
				if cmd.Flags().Changed("http") || server.HTTPBind == "" {
					server.HTTPBind = httpBind
				}
				if cmd.Flags().Changed("api-endpoint") || server.APIEndpoint == "" {
					server.APIEndpoint = apiEndpoint
				}
				if cmd.Flags().Changed("mcp-endpoint") || server.MCPEndpoint == "" {
					server.MCPEndpoint = mcpEndpoint
				}
				env.logger.Info("serving", "http", server.HTTPBind, "api", server.APIEndpoint, "mcp", server.MCPEndpoint)
				return serveCommandRunner(cmd.Context(), serveradapter.Config{
					HTTPBind:      server.HTTPBind,
					APIEndpoint:   server.APIEndpoint,
					MCPEndpoint:   server.MCPEndpoint,
					ServerName:    opts.appName,
					ServerVersion: version,
				}, serveradapter.Dependencies{
					Sessions: env.sessions,
					History:  env.history,
					Ready: func(ctx context.Context) error {
						_, err := env.repo.CountTodos(ctx)
						return err
					},
					Logger: env.logger,
				})
			})
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "127.0.0.1:8080", "HTTP listen address")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "/api/v1", "HTTP API base endpoint")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "/mcp", "MCP streamable HTTP endpoint")
	topLevel.AddCommand(cmd)
}

func addList(topLevel *cobra.Command, opts *rootOptions, stdout, stderr io.Writer) {
	format := formatTable
	cmd := &cobra.Command{
		Use:   "list [route]",
		Short: "List todos for a route (all, active, completed).",
		Example: `
todo list
todo list active
todo list "#/completed" --format json
`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"all", "active", "completed"},
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validateFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			route := "#/"
			if len(args) == 1 {
				route = normalizeRouteArg(args[0])
			}
			return withRuntime(*opts, stderr, "list", func(env *runtimeEnv) error {
				tr, err := env.sessions.Run(cmd.Context(), common.SessionRequest{Route: route, Activate: true})
				if err != nil {
					return err
				}
				todos, _ := tr.Entries()
				return writeTodos(stdout, format, tr, todos)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "Output format. One of 'table', 'plain', 'markdown' or 'json'.")
	topLevel.AddCommand(cmd)
}

// normalizeRouteArg accepts "active" as shorthand for "#/active".
func normalizeRouteArg(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "all" {
		return "#/"
	}
	if strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "/") {
		return raw
	}
	return "#/" + raw
}

// gestureSpec maps one mutating subcommand onto the event it triggers.
type gestureSpec struct {
	use   string
	short string
	args  cobra.PositionalArgs
	undo  bool
	event func(args []string, undo bool) (app.Event, string)
}

func gestureSpecs() []gestureSpec {
	return []gestureSpec{
		{
			use:   "add <title>",
			short: "Add a todo.",
			args:  cobra.MinimumNArgs(1),
			event: func(args []string, _ bool) (app.Event, string) {
				title := strings.TrimSpace(strings.Join(args, " "))
				return app.NewTodoEvent{Title: title}, fmt.Sprintf("added %q", title)
			},
		},
		{
			use:   "toggle <id>",
			short: "Mark a todo completed (or active with --undo).",
			args:  cobra.ExactArgs(1),
			undo:  true,
			event: func(args []string, undo bool) (app.Event, string) {
				if undo {
					return app.ItemToggleEvent{ID: args[0], Completed: false}, "reopened " + args[0]
				}
				return app.ItemToggleEvent{ID: args[0], Completed: true}, "completed " + args[0]
			},
		},
		{
			use:   "toggle-all",
			short: "Mark every todo completed (or active with --undo).",
			args:  cobra.NoArgs,
			undo:  true,
			event: func(_ []string, undo bool) (app.Event, string) {
				if undo {
					return app.ToggleAllEvent{Completed: false}, "reopened all"
				}
				return app.ToggleAllEvent{Completed: true}, "completed all"
			},
		},
		{
			use:   "rm <id>",
			short: "Remove a todo.",
			args:  cobra.ExactArgs(1),
			event: func(args []string, _ bool) (app.Event, string) {
				return app.ItemRemoveEvent{ID: args[0]}, "removed " + args[0]
			},
		},
		{
			use:   "clear",
			short: "Remove every completed todo.",
			args:  cobra.NoArgs,
			event: func(_ []string, _ bool) (app.Event, string) {
				return app.RemoveCompletedEvent{}, "cleared completed"
			},
		},
		{
			use:   "rename <id> [title]",
			short: "Rename a todo. An empty title removes it.",
			args:  cobra.MinimumNArgs(1),
			event: func(args []string, _ bool) (app.Event, string) {
				title := strings.TrimSpace(strings.Join(args[1:], " "))
				if title == "" {
					return app.ItemEditDoneEvent{ID: args[0]}, "removed " + args[0]
				}
				return app.ItemEditDoneEvent{ID: args[0], Title: title}, fmt.Sprintf("renamed %s to %q", args[0], title)
			},
		},
	}
}

func addGestures(topLevel *cobra.Command, opts *rootOptions, stdout, stderr io.Writer) {
	for _, spec := range gestureSpecs() {
		var undo bool
		name := strings.Fields(spec.use)[0]
		cmd := &cobra.Command{
			Use:   spec.use,
			Short: spec.short,
			Args:  spec.args,
			RunE: func(cmd *cobra.Command, args []string) error {
				ev, summary := spec.event(args, undo)
				return withRuntime(*opts, stderr, name, func(env *runtimeEnv) error {
					tr, err := env.sessions.Run(cmd.Context(), common.SessionRequest{Route: "#/", Event: ev})
					if err != nil {
						return err
					}
					env.logger.Debug("gesture rendered", "event", ev.Kind(), "commands", len(tr.Commands))
					_, _ = fmt.Fprintln(stdout, summary)
					return nil
				})
			},
		}
		if spec.undo {
			cmd.Flags().BoolVar(&undo, "undo", false, "mark active instead of completed")
		}
		topLevel.AddCommand(cmd)
	}
}

func addHistory(topLevel *cobra.Command, opts *rootOptions, stdout, stderr io.Writer) {
	var (
		limit  int
		format = formatTable
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent changes (sqlite driver only).",
		Args:  cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			return validateFormat(format)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(*opts, stderr, "history", func(env *runtimeEnv) error {
				if env.history == nil {
					return fmt.Errorf("driver %s: %w", env.resolved.cfg.StorageDriver(), common.ErrHistoryUnavailable)
				}
				events, err := env.history.ListChangeEvents(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return writeHistory(stdout, format, events)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of events")
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "Output format. One of 'table', 'plain', 'markdown' or 'json'.")
	topLevel.AddCommand(cmd)
}

func addExport(topLevel *cobra.Command, opts *rootOptions, stdout, stderr io.Writer) {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every todo as a JSON snapshot.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(*opts, stderr, "export", func(env *runtimeEnv) error {
				snap, err := app.ExportSnapshot(cmd.Context(), env.repo, time.Now)
				if err != nil {
					return err
				}
				if outPath == "" || outPath == "-" {
					return writeJSON(stdout, snap)
				}
				if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
					return fmt.Errorf("create export dir: %w", err)
				}
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				if err := writeJSON(f, snap); err != nil {
					_ = f.Close()
					return fmt.Errorf("write export file: %w", err)
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("close export file: %w", err)
				}
				_, _ = fmt.Fprintf(stdout, "exported %d todos to %s\n", len(snap.Todos), outPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file path ('-' for stdout)")
	topLevel.AddCommand(cmd)
}

func addImport(topLevel *cobra.Command, opts *rootOptions, stdout, stderr io.Writer) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Upsert todos from a JSON snapshot.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			var snap app.Snapshot
			if err := json.Unmarshal(content, &snap); err != nil {
				return fmt.Errorf("decode snapshot: %w", err)
			}
			return withRuntime(*opts, stderr, "import", func(env *runtimeEnv) error {
				if err := app.ImportSnapshot(cmd.Context(), env.repo, snap); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(stdout, "imported %d todos\n", len(snap.Todos))
				return nil
			})
		},
	})
}

var errUnknownFormat = errors.New("unknown output format")
