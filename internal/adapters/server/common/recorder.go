package common

import (
	"context"
	"sync"

	"github.com/evanschultz/todo/internal/app"
)

// Recorder is a View that keeps every rendered command in order.
type Recorder struct {
	mu       sync.Mutex
	commands []app.Command
	handlers map[app.EventKind]app.EventHandler
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{handlers: map[app.EventKind]app.EventHandler{}}
}

// Render records one command.
func (r *Recorder) Render(cmd app.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
}

// Bind registers the handler for one gesture kind.
func (r *Recorder) Bind(kind app.EventKind, handler app.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = handler
}

// Trigger delivers one gesture to its bound handler. It reports false when nothing is bound.
func (r *Recorder) Trigger(ctx context.Context, ev app.Event) bool {
	r.mu.Lock()
	handler, ok := r.handlers[ev.Kind()]
	r.mu.Unlock()
	if !ok {
		return false
	}
	handler(ctx, ev)
	return true
}

// Commands returns a copy of the recorded commands.
func (r *Recorder) Commands() []app.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]app.Command(nil), r.commands...)
}
