// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/evanschultz/todo/internal/adapters/server/common"
	"github.com/evanschultz/todo/internal/app"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter with one tool per gesture. history may be nil.
func NewHandler(cfg Config, sessions common.SessionRunner, history app.ChangeFeed) (*Handler, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerShowTool(mcpSrv, sessions)
	registerGestureTools(mcpSrv, sessions)
	if history != nil {
		registerHistoryTool(mcpSrv, history)
	}

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "todo"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// routeOption is shared by every tool so gestures refresh under the caller's filter.
func routeOption() mcp.ToolOption {
	return mcp.WithString("route", mcp.Description("Active route such as #/, #/active, or #/completed"))
}

// registerShowTool registers the `todo.show` route activation tool.
func registerShowTool(srv *mcpserver.MCPServer, sessions common.SessionRunner) {
	srv.AddTool(
		mcp.NewTool(
			"todo.show",
			mcp.WithDescription("Activate a route and return the list, counts, and filter highlight it renders."),
			routeOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return runSession(ctx, sessions, common.SessionRequest{
				Route:    req.GetString("route", ""),
				Activate: true,
			})
		},
	)
}

// gestureTool describes one MCP tool that triggers a single gesture.
type gestureTool struct {
	name        string
	description string
	options     []mcp.ToolOption
	build       func(mcp.CallToolRequest) (app.Event, error)
}

// gestureTools lists the gesture tools in registration order.
func gestureTools() []gestureTool {
	idOption := mcp.WithString("id", mcp.Required(), mcp.Description("Todo identifier"))
	return []gestureTool{
		{
			name:        "todo.new",
			description: "Create a todo and return the refreshed list.",
			options:     []mcp.ToolOption{mcp.WithString("title", mcp.Required(), mcp.Description("Todo title"))},
			build: func(req mcp.CallToolRequest) (app.Event, error) {
				title, err := req.RequireString("title")
				return app.NewTodoEvent{Title: title}, err
			},
		},
		{
			name:        "todo.toggle",
			description: "Set the completed state of one todo.",
			options:     []mcp.ToolOption{idOption, mcp.WithBoolean("completed", mcp.Description("Completed state (default true)"))},
			build: func(req mcp.CallToolRequest) (app.Event, error) {
				id, err := req.RequireString("id")
				return app.ItemToggleEvent{ID: id, Completed: req.GetBool("completed", true)}, err
			},
		},
		{
			name:        "todo.toggle_all",
			description: "Set the completed state of every todo.",
			options:     []mcp.ToolOption{mcp.WithBoolean("completed", mcp.Description("Completed state (default true)"))},
			build: func(req mcp.CallToolRequest) (app.Event, error) {
				return app.ToggleAllEvent{Completed: req.GetBool("completed", true)}, nil
			},
		},
		{
			name:        "todo.remove",
			description: "Remove one todo.",
			options:     []mcp.ToolOption{idOption},
			build: func(req mcp.CallToolRequest) (app.Event, error) {
				id, err := req.RequireString("id")
				return app.ItemRemoveEvent{ID: id}, err
			},
		},
		{
			name:        "todo.clear_completed",
			description: "Remove every completed todo.",
			build: func(mcp.CallToolRequest) (app.Event, error) {
				return app.RemoveCompletedEvent{}, nil
			},
		},
		{
			name:        "todo.edit",
			description: "Enter edit mode for one todo and return its stored title.",
			options:     []mcp.ToolOption{idOption},
			build: func(req mcp.CallToolRequest) (app.Event, error) {
				id, err := req.RequireString("id")
				return app.ItemEditEvent{ID: id}, err
			},
		},
		{
			name:        "todo.edit_done",
			description: "Commit an edit. An empty title removes the todo.",
			options:     []mcp.ToolOption{idOption, mcp.WithString("title", mcp.Description("New title; empty removes the todo"))},
			build: func(req mcp.CallToolRequest) (app.Event, error) {
				id, err := req.RequireString("id")
				return app.ItemEditDoneEvent{ID: id, Title: req.GetString("title", "")}, err
			},
		},
		{
			name:        "todo.edit_cancel",
			description: "Leave edit mode and restore the stored title.",
			options:     []mcp.ToolOption{idOption},
			build: func(req mcp.CallToolRequest) (app.Event, error) {
				id, err := req.RequireString("id")
				return app.ItemEditCancelEvent{ID: id}, err
			},
		},
	}
}

// registerGestureTools registers one tool per gesture.
func registerGestureTools(srv *mcpserver.MCPServer, sessions common.SessionRunner) {
	for _, tool := range gestureTools() {
		opts := append([]mcp.ToolOption{mcp.WithDescription(tool.description)}, tool.options...)
		opts = append(opts, routeOption())
		build := tool.build
		srv.AddTool(
			mcp.NewTool(tool.name, opts...),
			func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				ev, err := build(req)
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				return runSession(ctx, sessions, common.SessionRequest{
					Route: req.GetString("route", ""),
					Event: ev,
				})
			},
		)
	}
}

// registerHistoryTool registers the optional `todo.history` ledger tool.
func registerHistoryTool(srv *mcpserver.MCPServer, history app.ChangeFeed) {
	srv.AddTool(
		mcp.NewTool(
			"todo.history",
			mcp.WithDescription("List recent todo changes, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of events (default 50)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			events, err := history.ListChangeEvents(ctx, req.GetInt("limit", 50))
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"events": events,
			})
			if err != nil {
				return nil, fmt.Errorf("encode history result: %w", err)
			}
			return result, nil
		},
	)
}

// runSession runs one session request and encodes its transcript.
func runSession(ctx context.Context, sessions common.SessionRunner, req common.SessionRequest) (*mcp.CallToolResult, error) {
	tr, err := sessions.Run(ctx, req)
	if err != nil {
		return toolResultFromError(err), nil
	}
	result, err := mcp.NewToolResultJSON(tr)
	if err != nil {
		return nil, fmt.Errorf("encode transcript result: %w", err)
	}
	return result, nil
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidSessionRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
