package app

import (
	"context"
	"time"

	"github.com/evanschultz/todo/internal/domain"
)

// IDGenerator returns unique identifiers for new todos.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Executor runs one completion callback. The default runs it inline.
type Executor func(func())

// StoreModelOption configures a StoreModel.
type StoreModelOption func(*StoreModel)

// WithExecutor sets how completion callbacks are delivered.
func WithExecutor(exec Executor) StoreModelOption {
	return func(m *StoreModel) {
		if exec != nil {
			m.exec = exec
		}
	}
}

// GoExecutor delivers each completion on its own goroutine.
func GoExecutor(fn func()) {
	go fn()
}

// StoreModel adapts a synchronous Repository to the callback Model port.
type StoreModel struct {
	repo  Repository
	idGen IDGenerator
	clock Clock
	exec  Executor
}

// NewStoreModel constructs a Model backed by repo.
func NewStoreModel(repo Repository, idGen IDGenerator, clock Clock, opts ...StoreModelOption) *StoreModel {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	m := &StoreModel{
		repo:  repo,
		idGen: idGen,
		clock: clock,
		exec:  func(fn func()) { fn() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Repository returns the backing repository.
func (m *StoreModel) Repository() Repository {
	return m.repo
}

// ReadAll lists every todo in storage order.
func (m *StoreModel) ReadAll(ctx context.Context, done func([]domain.Todo, error)) {
	m.Read(ctx, domain.Query{}, done)
}

// Read lists todos matching q.
func (m *StoreModel) Read(ctx context.Context, q domain.Query, done func([]domain.Todo, error)) {
	m.exec(func() {
		done(m.repo.ListTodos(ctx, q))
	})
}

// Count returns aggregate counts over the full collection.
func (m *StoreModel) Count(ctx context.Context, done func(domain.Counts, error)) {
	m.exec(func() {
		done(m.repo.CountTodos(ctx))
	})
}

// Create stores a new active todo.
func (m *StoreModel) Create(ctx context.Context, title string, done func(domain.Todo, error)) {
	m.exec(func() {
		todo, err := domain.NewTodo(domain.TodoInput{ID: m.idGen(), Title: title}, m.clock())
		if err != nil {
			done(domain.Todo{}, err)
			return
		}
		if err := m.repo.CreateTodo(ctx, todo); err != nil {
			done(domain.Todo{}, err)
			return
		}
		done(todo, nil)
	})
}

// Update merges changes into an existing todo.
func (m *StoreModel) Update(ctx context.Context, id string, changes domain.Changes, done func(error)) {
	m.exec(func() {
		done(m.update(ctx, id, changes))
	})
}

func (m *StoreModel) update(ctx context.Context, id string, changes domain.Changes) error {
	todo, err := m.repo.GetTodo(ctx, id)
	if err != nil {
		return err
	}
	if changes.IsEmpty() {
		return nil
	}
	if err := todo.Apply(changes, m.clock()); err != nil {
		return err
	}
	return m.repo.UpdateTodo(ctx, todo)
}

// Remove deletes one todo.
func (m *StoreModel) Remove(ctx context.Context, id string, done func(error)) {
	m.exec(func() {
		done(m.repo.DeleteTodo(ctx, id))
	})
}
