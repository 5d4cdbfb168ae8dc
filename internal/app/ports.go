package app

import (
	"context"

	"github.com/evanschultz/todo/internal/domain"
)

// Repository is the synchronous storage port behind StoreModel.
type Repository interface {
	CreateTodo(context.Context, domain.Todo) error
	UpdateTodo(context.Context, domain.Todo) error
	GetTodo(context.Context, string) (domain.Todo, error)
	ListTodos(context.Context, domain.Query) ([]domain.Todo, error)
	CountTodos(context.Context) (domain.Counts, error)
	DeleteTodo(context.Context, string) error
}

// ChangeFeed is implemented by repositories that keep an activity ledger.
type ChangeFeed interface {
	ListChangeEvents(context.Context, int) ([]domain.ChangeEvent, error)
}

// Model is the callback-completion port the Controller drives. Implementations may
// invoke the callback before returning or later from another goroutine.
type Model interface {
	ReadAll(ctx context.Context, done func([]domain.Todo, error))
	Read(ctx context.Context, q domain.Query, done func([]domain.Todo, error))
	Count(ctx context.Context, done func(domain.Counts, error))
	Create(ctx context.Context, title string, done func(domain.Todo, error))
	Update(ctx context.Context, id string, changes domain.Changes, done func(error))
	Remove(ctx context.Context, id string, done func(error))
}

// EventHandler receives one gesture triggered by the View.
type EventHandler func(context.Context, Event)

// View is the presentation port: it accepts render commands and lets the
// Controller register one handler per gesture kind.
type View interface {
	Render(Command)
	Bind(EventKind, EventHandler)
}

// Logger is the subset of charmbracelet/log used by the Controller.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}
