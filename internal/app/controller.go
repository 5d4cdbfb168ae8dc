package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	charmLog "github.com/charmbracelet/log"
	"github.com/evanschultz/todo/internal/domain"
)

// ErrorHandler receives collaborator failures surfaced by a gesture or route activation.
type ErrorHandler func(op string, err error)

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithErrorHandler sets the sink for failures the controller cannot render.
func WithErrorHandler(handler ErrorHandler) ControllerOption {
	return func(c *Controller) {
		if handler != nil {
			c.onError = handler
		}
	}
}

// WithRoute sets the active route without rendering it. Gestures refresh under this route
// until the next Activate.
func WithRoute(route string) ControllerOption {
	return func(c *Controller) {
		c.route = route
	}
}

// Controller mediates between the Model and the View. It owns route parsing,
// gesture dispatch, and the read-after-mutate render sequencing.
type Controller struct {
	model   Model
	view    View
	logger  Logger
	onError ErrorHandler

	mu    sync.Mutex
	route string
}

// NewController binds a handler for every gesture kind on the view.
func NewController(model Model, view View, opts ...ControllerOption) (*Controller, error) {
	if model == nil || view == nil {
		return nil, ErrNilCollaborator
	}
	c := &Controller{
		model:   model,
		view:    view,
		logger:  charmLog.New(io.Discard),
		onError: func(string, error) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	for _, kind := range EventKinds {
		view.Bind(kind, c.Dispatch)
	}
	return c, nil
}

// Route returns the last activated route.
func (c *Controller) Route() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.route
}

// Activate renders the list, counts, and filter highlight for one route.
func (c *Controller) Activate(ctx context.Context, route string) {
	c.mu.Lock()
	c.route = route
	c.mu.Unlock()
	c.logger.Debug("route activated", "route", route)
	c.refresh(ctx, "activate")
}

// Dispatch routes one gesture to its handler.
func (c *Controller) Dispatch(ctx context.Context, ev Event) {
	if ev == nil {
		c.fail("dispatch", ErrUnhandledEvent)
		return
	}
	c.logger.Debug("gesture received", "event", ev.Kind().String())
	switch ev := ev.(type) {
	case NewTodoEvent:
		c.addItem(ctx, ev)
	case ItemRemoveEvent:
		c.removeItem(ctx, ev.ID, ev.Kind().String())
	case RemoveCompletedEvent:
		c.removeCompleted(ctx)
	case ItemToggleEvent:
		c.toggleItem(ctx, ev)
	case ItemEditEvent:
		c.editItem(ctx, ev)
	case ItemEditDoneEvent:
		c.editItemSave(ctx, ev)
	case ItemEditCancelEvent:
		c.editItemCancel(ctx, ev)
	case ToggleAllEvent:
		c.toggleAll(ctx, ev)
	default:
		c.fail("dispatch", fmt.Errorf("%w: %T", ErrUnhandledEvent, ev))
	}
}

// refresh re-reads the list under the active filter, then the counts, then highlights the filter.
// Each step waits for the previous completion so async models keep the render order.
func (c *Controller) refresh(ctx context.Context, op string) {
	filter, token := ParseRoute(c.Route())
	c.model.Read(ctx, filter.Query(), func(todos []domain.Todo, err error) {
		if err != nil {
			c.fail(op, fmt.Errorf("read %s todos: %w", filter, err))
		} else {
			c.view.Render(ShowEntries{Todos: todos})
		}
		c.renderCounts(ctx, op, false, func() {
			c.view.Render(SetFilter{Token: token})
		})
	})
}

// renderCounts reads aggregate counts and pushes the footer state. then runs even when the count fails.
func (c *Controller) renderCounts(ctx context.Context, op string, withElementCount bool, then func()) {
	c.model.Count(ctx, func(counts domain.Counts, err error) {
		if then != nil {
			defer then()
		}
		if err != nil {
			c.fail(op, fmt.Errorf("count todos: %w", err))
			return
		}
		if withElementCount {
			c.view.Render(UpdateElementCount{Active: counts.Active})
		}
		c.view.Render(ContentBlockVisibility{Visible: counts.Total > 0})
		c.view.Render(ToggleAllState{Checked: counts.Active == 0 && counts.Total > 0})
		c.view.Render(ClearCompletedButton{Completed: counts.Completed, Visible: counts.Completed > 0})
	})
}

func (c *Controller) addItem(ctx context.Context, ev NewTodoEvent) {
	op := ev.Kind().String()
	c.model.Create(ctx, ev.Title, func(_ domain.Todo, err error) {
		if err != nil {
			c.fail(op, fmt.Errorf("create todo: %w", err))
			return
		}
		c.view.Render(ClearNewTodo{})
		c.refresh(ctx, op)
	})
}

func (c *Controller) removeItem(ctx context.Context, id, op string) {
	c.model.Remove(ctx, id, func(err error) {
		if err != nil {
			c.fail(op, fmt.Errorf("remove todo %q: %w", id, err))
			return
		}
		c.view.Render(RemoveItem{ID: id})
		c.renderCounts(ctx, op, true, nil)
	})
}

func (c *Controller) removeCompleted(ctx context.Context) {
	const op = "removeCompleted"
	c.model.Read(ctx, domain.ByCompleted(true), func(todos []domain.Todo, err error) {
		if err != nil {
			c.fail(op, fmt.Errorf("read completed todos: %w", err))
			return
		}
		pending := newCountdown(len(todos), func() {
			c.renderCounts(ctx, op, true, nil)
		})
		for _, todo := range todos {
			id := todo.ID
			c.model.Remove(ctx, id, func(err error) {
				defer pending.done()
				if err != nil {
					c.fail(op, fmt.Errorf("remove todo %q: %w", id, err))
					return
				}
				c.view.Render(RemoveItem{ID: id})
			})
		}
	})
}

// toggleComplete updates one completed flag and echoes it to the view.
func (c *Controller) toggleComplete(ctx context.Context, op, id string, completed bool, then func()) {
	c.model.Update(ctx, id, domain.CompletedChange(completed), func(err error) {
		if err != nil {
			c.fail(op, fmt.Errorf("update todo %q: %w", id, err))
		} else {
			c.view.Render(ElementComplete{ID: id, Completed: completed})
		}
		if then != nil {
			then()
		}
	})
}

func (c *Controller) toggleItem(ctx context.Context, ev ItemToggleEvent) {
	op := ev.Kind().String()
	c.toggleComplete(ctx, op, ev.ID, ev.Completed, func() {
		c.renderCounts(ctx, op, true, nil)
	})
}

func (c *Controller) toggleAll(ctx context.Context, ev ToggleAllEvent) {
	op := ev.Kind().String()
	c.model.ReadAll(ctx, func(todos []domain.Todo, err error) {
		if err != nil {
			c.fail(op, fmt.Errorf("read todos: %w", err))
			return
		}
		pending := newCountdown(len(todos), func() {
			c.refresh(ctx, op)
		})
		for _, todo := range todos {
			c.toggleComplete(ctx, op, todo.ID, ev.Completed, pending.done)
		}
	})
}

// lookupTitle reads one todo by id and hands its title to render. A missing id is surfaced, never rendered.
func (c *Controller) lookupTitle(ctx context.Context, op, id string, render func(string)) {
	// ByID("") is the zero Query, which would match everything.
	if id == "" {
		c.fail(op, fmt.Errorf("todo %q: %w", id, domain.ErrInvalidID))
		return
	}
	c.model.Read(ctx, domain.ByID(id), func(todos []domain.Todo, err error) {
		if err != nil {
			c.fail(op, fmt.Errorf("read todo %q: %w", id, err))
			return
		}
		if len(todos) == 0 || todos[0].ID != id {
			c.fail(op, fmt.Errorf("todo %q: %w", id, domain.ErrNotFound))
			return
		}
		render(todos[0].Title)
	})
}

func (c *Controller) editItem(ctx context.Context, ev ItemEditEvent) {
	c.lookupTitle(ctx, ev.Kind().String(), ev.ID, func(title string) {
		c.view.Render(EditItem{ID: ev.ID, Title: title})
	})
}

func (c *Controller) editItemSave(ctx context.Context, ev ItemEditDoneEvent) {
	op := ev.Kind().String()
	if ev.Title == "" {
		c.removeItem(ctx, ev.ID, op)
		return
	}
	c.model.Update(ctx, ev.ID, domain.TitleChange(ev.Title), func(err error) {
		if err != nil {
			c.fail(op, fmt.Errorf("rename todo %q: %w", ev.ID, err))
			return
		}
		c.view.Render(EditItemDone{ID: ev.ID, Title: ev.Title})
	})
}

func (c *Controller) editItemCancel(ctx context.Context, ev ItemEditCancelEvent) {
	c.lookupTitle(ctx, ev.Kind().String(), ev.ID, func(title string) {
		c.view.Render(EditItemDone{ID: ev.ID, Title: title})
	})
}

func (c *Controller) fail(op string, err error) {
	c.logger.Error("controller operation failed", "op", op, "err", err)
	c.onError(op, err)
}

// countdown runs fn once after n calls to done; with n == 0 it runs immediately.
type countdown struct {
	remaining atomic.Int64
	fn        func()
}

func newCountdown(n int, fn func()) *countdown {
	cd := &countdown{fn: fn}
	cd.remaining.Store(int64(n))
	if n == 0 {
		fn()
	}
	return cd
}

func (cd *countdown) done() {
	if cd.remaining.Add(-1) == 0 {
		cd.fn()
	}
}
