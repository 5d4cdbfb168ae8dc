package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/evanschultz/todo/internal/adapters/server/common"
	"github.com/evanschultz/todo/internal/domain"
)

const (
	formatTable    = "table"
	formatMarkdown = "markdown"
	formatJSON     = "json"
	formatPlain    = "plain"
)

func validateFormat(format string) error {
	switch format {
	case formatTable, formatMarkdown, formatJSON, formatPlain:
		return nil
	default:
		return fmt.Errorf("%w %q (want table, plain, markdown or json)", errUnknownFormat, format)
	}
}

type listOutput struct {
	Route  string        `json:"route"`
	Filter string        `json:"filter"`
	Todos  []domain.Todo `json:"todos"`
}

func writeTodos(w io.Writer, format string, tr common.Transcript, todos []domain.Todo) error {
	if todos == nil {
		todos = []domain.Todo{}
	}
	switch format {
	case formatJSON:
		return writeJSON(w, listOutput{Route: tr.Route, Filter: tr.Filter, Todos: todos})
	case formatMarkdown:
		return writeMarkdown(w, todosMarkdown(tr.Filter, todos))
	case formatPlain:
		rows := make([][]string, 0, len(todos))
		for _, t := range todos {
			rows = append(rows, []string{t.ID, checkbox(t.Completed), t.Title})
		}
		return writePlain(w, []string{"ID", "DONE", "TITLE"}, rows)
	default:
		if len(todos) == 0 {
			_, err := fmt.Fprintf(w, "no %s todos\n", strings.ToLower(tr.Filter))
			return err
		}
		rows := make([][]string, 0, len(todos))
		for _, t := range todos {
			rows = append(rows, []string{t.ID, checkbox(t.Completed), t.Title})
		}
		_, err := fmt.Fprintln(w, newTable("ID", "Done", "Title").Rows(rows...).Render())
		return err
	}
}

func writeHistory(w io.Writer, format string, events []domain.ChangeEvent) error {
	if events == nil {
		events = []domain.ChangeEvent{}
	}
	switch format {
	case formatJSON:
		return writeJSON(w, events)
	case formatMarkdown:
		var b strings.Builder
		b.WriteString("# History\n\n")
		for _, ev := range events {
			fmt.Fprintf(&b, "- %s **%s** `%s` %s\n", ev.OccurredAt.Format(time.RFC3339), ev.Operation, ev.TodoID, metadataSummary(ev.Metadata))
		}
		return writeMarkdown(w, b.String())
	case formatPlain:
		rows := make([][]string, 0, len(events))
		for _, ev := range events {
			rows = append(rows, []string{ev.OccurredAt.Format(time.RFC3339), string(ev.Operation), ev.TodoID, metadataSummary(ev.Metadata)})
		}
		return writePlain(w, []string{"WHEN", "OPERATION", "TODO", "DETAILS"}, rows)
	default:
		if len(events) == 0 {
			_, err := fmt.Fprintln(w, "no history")
			return err
		}
		rows := make([][]string, 0, len(events))
		for _, ev := range events {
			rows = append(rows, []string{ev.OccurredAt.Format(time.RFC3339), string(ev.Operation), ev.TodoID, metadataSummary(ev.Metadata)})
		}
		_, err := fmt.Fprintln(w, newTable("When", "Operation", "Todo", "Details").Rows(rows...).Render())
		return err
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func todosMarkdown(filter string, todos []domain.Todo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s todos\n\n", filter)
	if len(todos) == 0 {
		b.WriteString("_Nothing to do._\n")
		return b.String()
	}
	for _, t := range todos {
		fmt.Fprintf(&b, "- [%s] %s `%s`\n", checkbox(t.Completed), t.Title, t.ID)
	}
	return b.String()
}

// writePlain prints borderless aligned columns for scripts and narrow terminals.
func writePlain(w io.Writer, headers []string, rows [][]string) error {
	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 80
	head := make([]any, 0, len(headers))
	for _, h := range headers {
		head = append(head, bold.Sprint(h))
	}
	tbl.AddRow(head...)
	for _, row := range rows {
		cells := make([]any, 0, len(row))
		for _, cell := range row {
			cells = append(cells, cell)
		}
		tbl.AddRow(cells...)
	}
	_, err := fmt.Fprintln(w, tbl)
	return err
}

func checkbox(done bool) string {
	if done {
		return "x"
	}
	return " "
}

func writeMarkdown(w io.Writer, markdown string) error {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("create markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(w, rendered)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// metadataSummary renders ledger metadata as sorted key=value pairs.
func metadataSummary(metadata map[string]string) string {
	if len(metadata) == 0 {
		return ""
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, metadata[k]))
	}
	return strings.Join(parts, " ")
}
