package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/todo/internal/domain"
)

// SnapshotVersion tags the export format.
const SnapshotVersion = "todo.snapshot.v1"

// Snapshot is a portable copy of every todo, in list order.
type Snapshot struct {
	Version    string        `json:"version"`
	ExportedAt time.Time     `json:"exported_at"`
	Todos      []domain.Todo `json:"todos"`
}

// ExportSnapshot reads the whole collection from repo.
func ExportSnapshot(ctx context.Context, repo Repository, clock Clock) (Snapshot, error) {
	if repo == nil {
		return Snapshot{}, ErrNilRepository
	}
	if clock == nil {
		clock = time.Now
	}
	todos, err := repo.ListTodos(ctx, domain.Query{})
	if err != nil {
		return Snapshot{}, err
	}
	if todos == nil {
		todos = []domain.Todo{}
	}
	return Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: clock().UTC(),
		Todos:      todos,
	}, nil
}

// ImportSnapshot upserts every todo in snap. Existing ids are overwritten, others are appended.
func ImportSnapshot(ctx context.Context, repo Repository, snap Snapshot) error {
	if repo == nil {
		return ErrNilRepository
	}
	if err := snap.Validate(); err != nil {
		return err
	}
	for _, t := range snap.Todos {
		if _, err := repo.GetTodo(ctx, t.ID); err == nil {
			if err := repo.UpdateTodo(ctx, t); err != nil {
				return fmt.Errorf("update todo %q: %w", t.ID, err)
			}
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if err := repo.CreateTodo(ctx, t); err != nil {
			return fmt.Errorf("create todo %q: %w", t.ID, err)
		}
	}
	return nil
}

// Validate checks the version and normalizes ids and titles in place.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %q", s.Version)
	}
	ids := map[string]struct{}{}
	for i := range s.Todos {
		t := &s.Todos[i]
		t.ID = strings.TrimSpace(t.ID)
		t.Title = strings.TrimSpace(t.Title)
		if t.ID == "" {
			return fmt.Errorf("todos[%d].id is required", i)
		}
		if t.Title == "" {
			return fmt.Errorf("todos[%d].title is required", i)
		}
		if t.CreatedAt.IsZero() || t.UpdatedAt.IsZero() {
			return fmt.Errorf("todos[%d] timestamps are required", i)
		}
		if _, exists := ids[t.ID]; exists {
			return fmt.Errorf("duplicate todo id: %q", t.ID)
		}
		ids[t.ID] = struct{}{}
	}
	return nil
}
