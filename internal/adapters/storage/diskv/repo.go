// Package diskv stores one JSON document per todo on disk.
package diskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/evanschultz/todo/internal/domain"
	"github.com/peterbourgon/diskv/v3"
)

const (
	collectionDir = "todos"
	recordExt     = ".json"
)

// Repository is a file-per-record todo store.
type Repository struct {
	mu sync.Mutex
	d  *diskv.Diskv
}

// Open returns a repository rooted at basePath.
func Open(basePath string) (*Repository, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, errors.New("diskv base path is required")
	}
	return &Repository{d: diskv.New(diskv.Options{
		BasePath:          basePath,
		AdvancedTransform: keyToPathTransform,
		InverseTransform:  pathToKeyTransform,
		CacheSizeMax:      1024 * 1024, // 1MB
	})}, nil
}

// Close is a no-op kept for parity with the sqlite repository.
func (r *Repository) Close() error {
	return nil
}

// CreateTodo writes a new record.
func (r *Repository) CreateTodo(_ context.Context, t domain.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		return domain.ErrInvalidID
	}
	if r.d.Has(t.ID) {
		return fmt.Errorf("todo %q already exists", t.ID)
	}
	return r.write(t)
}

// UpdateTodo replaces an existing record.
func (r *Repository) UpdateTodo(_ context.Context, t domain.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.d.Has(t.ID) {
		return domain.ErrNotFound
	}
	return r.write(t)
}

// GetTodo reads one record.
func (r *Repository) GetTodo(_ context.Context, id string) (domain.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read(id)
}

// ListTodos scans every record and returns matches ordered by creation time.
func (r *Repository) ListTodos(ctx context.Context, q domain.Query) ([]domain.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q.ID != "" {
		todo, err := r.read(q.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return []domain.Todo{}, nil
		}
		if err != nil {
			return nil, err
		}
		return domain.FilterTodos([]domain.Todo{todo}, q), nil
	}
	all, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	return domain.FilterTodos(all, q), nil
}

// CountTodos counts from a full scan.
func (r *Repository) CountTodos(ctx context.Context) (domain.Counts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all, err := r.scan(ctx)
	if err != nil {
		return domain.Counts{}, err
	}
	return domain.CountTodos(all), nil
}

// DeleteTodo erases one record.
func (r *Repository) DeleteTodo(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.d.Has(id) {
		return domain.ErrNotFound
	}
	return r.d.Erase(id)
}

func (r *Repository) write(t domain.Todo) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return r.d.Write(t.ID, data)
}

func (r *Repository) read(id string) (domain.Todo, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return domain.Todo{}, domain.ErrNotFound
	}
	val, err := r.d.Read(id)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Todo{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Todo{}, err
	}
	var t domain.Todo
	if err := json.Unmarshal(val, &t); err != nil {
		return domain.Todo{}, fmt.Errorf("decode todo %q: %w", id, err)
	}
	t.ID = id
	return t, nil
}

func (r *Repository) scan(ctx context.Context) ([]domain.Todo, error) {
	all := make([]domain.Todo, 0)
	for key := range r.d.Keys(ctx.Done()) {
		t, err := r.read(key)
		if err != nil {
			return nil, err
		}
		all = append(all, t)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sortTodos(all)
	return all, nil
}

func sortTodos(todos []domain.Todo) {
	sort.SliceStable(todos, func(i, j int) bool {
		if !todos[i].CreatedAt.Equal(todos[j].CreatedAt) {
			return todos[i].CreatedAt.Before(todos[j].CreatedAt)
		}
		return todos[i].ID < todos[j].ID
	})
}

func keyToPathTransform(key string) *diskv.PathKey {
	return &diskv.PathKey{
		Path:     []string{collectionDir},
		FileName: key + recordExt,
	}
}

func pathToKeyTransform(pathKey *diskv.PathKey) string {
	return strings.TrimSuffix(pathKey.FileName, recordExt)
}
