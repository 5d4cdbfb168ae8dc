package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"

	serveradapter "github.com/evanschultz/todo/internal/adapters/server"
)

// Build metadata, set with -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type program interface {
	Run() (tea.Model, error)
}

// programFactory builds the bubbletea program; tests swap it out.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run executes the command tree; fang renders errors and help on stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		return fmt.Errorf("todo: %w", err)
	}
	return nil
}
