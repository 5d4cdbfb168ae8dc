package common

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/evanschultz/todo/internal/app"
	"github.com/evanschultz/todo/internal/domain"
)

// Sessions runs one Controller per request over a shared Model and returns what it rendered.
type Sessions struct {
	mu     sync.Mutex
	model  app.Model
	logger app.Logger
}

// NewSessions constructs a session runner. logger may be nil.
func NewSessions(model app.Model, logger app.Logger) *Sessions {
	return &Sessions{model: model, logger: logger}
}

// Run serves one request and waits for every model completion it caused. Gestures are serialized.
func (s *Sessions) Run(ctx context.Context, req SessionRequest) (Transcript, error) {
	if s == nil || s.model == nil {
		return Transcript{}, fmt.Errorf("sessions are not configured: %w", ErrInvalidSessionRequest)
	}
	if req.Event == nil && !req.Activate {
		return Transcript{}, fmt.Errorf("route activation or event is required: %w", ErrInvalidSessionRequest)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tracked := newTrackedModel(s.model)
	recorder := NewRecorder()
	var (
		errMu sync.Mutex
		errs  []error
	)
	opts := []app.ControllerOption{
		app.WithRoute(req.Route),
		app.WithErrorHandler(func(op string, err error) {
			errMu.Lock()
			defer errMu.Unlock()
			errs = append(errs, mapAppError(op, err))
		}),
	}
	if s.logger != nil {
		opts = append(opts, app.WithLogger(s.logger))
	}
	controller, err := app.NewController(tracked, recorder, opts...)
	if err != nil {
		return Transcript{}, err
	}

	if req.Activate {
		controller.Activate(ctx, req.Route)
	}
	if req.Event != nil {
		if !recorder.Trigger(ctx, req.Event) {
			return Transcript{}, fmt.Errorf("event %s: %w", req.Event.Kind(), ErrInvalidSessionRequest)
		}
	}
	if err := tracked.wait(ctx); err != nil {
		return Transcript{}, err
	}

	filter, _ := app.ParseRoute(req.Route)
	out := Transcript{
		Route:    app.RouteFor(filter),
		Filter:   filter.String(),
		Commands: make([]WireCommand, 0),
	}
	for _, cmd := range recorder.Commands() {
		out.Commands = append(out.Commands, EncodeCommand(cmd))
	}
	errMu.Lock()
	defer errMu.Unlock()
	for _, err := range errs {
		out.Errors = append(out.Errors, err.Error())
	}
	return out, errors.Join(errs...)
}

// trackedModel counts in-flight model operations. A nested call is issued inside its parent's
// callback, so the count reaches zero only after the last completion.
type trackedModel struct {
	inner app.Model
	wg    sync.WaitGroup
}

func newTrackedModel(inner app.Model) *trackedModel {
	return &trackedModel{inner: inner}
}

func (m *trackedModel) wait(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *trackedModel) ReadAll(ctx context.Context, done func([]domain.Todo, error)) {
	m.wg.Add(1)
	m.inner.ReadAll(ctx, func(todos []domain.Todo, err error) {
		defer m.wg.Done()
		done(todos, err)
	})
}

func (m *trackedModel) Read(ctx context.Context, q domain.Query, done func([]domain.Todo, error)) {
	m.wg.Add(1)
	m.inner.Read(ctx, q, func(todos []domain.Todo, err error) {
		defer m.wg.Done()
		done(todos, err)
	})
}

func (m *trackedModel) Count(ctx context.Context, done func(domain.Counts, error)) {
	m.wg.Add(1)
	m.inner.Count(ctx, func(counts domain.Counts, err error) {
		defer m.wg.Done()
		done(counts, err)
	})
}

func (m *trackedModel) Create(ctx context.Context, title string, done func(domain.Todo, error)) {
	m.wg.Add(1)
	m.inner.Create(ctx, title, func(todo domain.Todo, err error) {
		defer m.wg.Done()
		done(todo, err)
	})
}

func (m *trackedModel) Update(ctx context.Context, id string, changes domain.Changes, done func(error)) {
	m.wg.Add(1)
	m.inner.Update(ctx, id, changes, func(err error) {
		defer m.wg.Done()
		done(err)
	})
}

func (m *trackedModel) Remove(ctx context.Context, id string, done func(error)) {
	m.wg.Add(1)
	m.inner.Remove(ctx, id, func(err error) {
		defer m.wg.Done()
		done(err)
	})
}
