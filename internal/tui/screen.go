package tui

import (
	"context"
	"slices"
	"sync"

	"github.com/evanschultz/todo/internal/app"
	"github.com/evanschultz/todo/internal/domain"
)

// Screen is the terminal View. It keeps only what the Controller rendered and the
// handler bound to each gesture; Model draws from a snapshot of it.
type Screen struct {
	mu       sync.Mutex
	handlers map[app.EventKind]app.EventHandler
	state    screenState
	errs     []error
}

// screenState is a copy of everything rendered so far.
type screenState struct {
	todos        []domain.Todo
	visible      bool
	toggleAll    bool
	completed    int
	showClear    bool
	active       int
	activeKnown  bool
	filter       string
	editingID    string
	editTitle    string
	inputCleared int
}

func NewScreen() *Screen {
	return &Screen{handlers: map[app.EventKind]app.EventHandler{}}
}

// Bind registers the handler for one gesture kind.
func (s *Screen) Bind(kind app.EventKind, handler app.EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = handler
}

// Render applies one command to the screen state.
func (s *Screen) Render(cmd app.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch cmd := cmd.(type) {
	case app.ShowEntries:
		s.state.todos = slices.Clone(cmd.Todos)
	case app.ContentBlockVisibility:
		s.state.visible = cmd.Visible
	case app.ToggleAllState:
		s.state.toggleAll = cmd.Checked
	case app.ClearCompletedButton:
		s.state.completed = cmd.Completed
		s.state.showClear = cmd.Visible
	case app.SetFilter:
		s.state.filter = cmd.Token
	case app.ElementComplete:
		if idx := s.indexLocked(cmd.ID); idx >= 0 {
			s.state.todos[idx].Completed = cmd.Completed
		}
	case app.EditItem:
		s.state.editingID = cmd.ID
		s.state.editTitle = cmd.Title
	case app.EditItemDone:
		if idx := s.indexLocked(cmd.ID); idx >= 0 {
			s.state.todos[idx].Title = cmd.Title
		}
		if s.state.editingID == cmd.ID {
			s.state.editingID = ""
			s.state.editTitle = ""
		}
	case app.RemoveItem:
		if idx := s.indexLocked(cmd.ID); idx >= 0 {
			s.state.todos = slices.Delete(s.state.todos, idx, idx+1)
		}
		if s.state.editingID == cmd.ID {
			s.state.editingID = ""
		}
	case app.UpdateElementCount:
		s.state.active = cmd.Active
		s.state.activeKnown = true
	case app.ClearNewTodo:
		s.state.inputCleared++
	}
}

// Trigger delivers ev to its bound handler and reports whether one was bound.
func (s *Screen) Trigger(ctx context.Context, ev app.Event) bool {
	if ev == nil {
		return false
	}
	s.mu.Lock()
	handler := s.handlers[ev.Kind()]
	s.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(ctx, ev)
	return true
}

// ReportError matches app.ErrorHandler so controller failures reach the status line.
func (s *Screen) ReportError(op string, err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, &opError{op: op, err: err})
}

func (s *Screen) snapshot() screenState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state
	out.todos = slices.Clone(s.state.todos)
	return out
}

// takeErrors drains errors reported since the last call.
func (s *Screen) takeErrors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := s.errs
	s.errs = nil
	return errs
}

func (s *Screen) indexLocked(id string) int {
	return slices.IndexFunc(s.state.todos, func(t domain.Todo) bool { return t.ID == id })
}

type opError struct {
	op  string
	err error
}

func (e *opError) Error() string { return e.op + ": " + e.err.Error() }
func (e *opError) Unwrap() error { return e.err }
