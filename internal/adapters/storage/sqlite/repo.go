package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/evanschultz/todo/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository stores todos and their change ledger in SQLite.
type Repository struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// every pooled connection would otherwise get its own empty database
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS todos (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			position INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_todos_position ON todos(position ASC, created_at ASC);`,
		`CREATE TABLE IF NOT EXISTS todo_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			todo_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_todo_events_created_at ON todo_events(created_at DESC, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateTodo appends a todo to the end of the list.
func (r *Repository) CreateTodo(ctx context.Context, t domain.Todo) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var position int
	if err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM todos`).Scan(&position); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO todos(id, title, completed, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.Title, boolToInt(t.Completed), position, ts(t.CreatedAt), ts(t.UpdatedAt))
	if err != nil {
		return err
	}

	err = insertChangeEvent(ctx, tx, domain.ChangeEvent{
		TodoID:    t.ID,
		Operation: domain.ChangeOperationCreate,
		Metadata: map[string]string{
			"title":    t.Title,
			"position": strconv.Itoa(position),
		},
		OccurredAt: t.CreatedAt,
	})
	if err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

// UpdateTodo stores title and completion changes for an existing todo.
func (r *Repository) UpdateTodo(ctx context.Context, t domain.Todo) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	prev, err := getTodoByID(ctx, tx, t.ID)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE todos
		SET title = ?, completed = ?, updated_at = ?
		WHERE id = ?
	`, t.Title, boolToInt(t.Completed), ts(t.UpdatedAt), t.ID)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}

	op, metadata, changed := classifyTransition(prev, t)
	if changed {
		err = insertChangeEvent(ctx, tx, domain.ChangeEvent{
			TodoID:     t.ID,
			Operation:  op,
			Metadata:   metadata,
			OccurredAt: t.UpdatedAt,
		})
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

// GetTodo returns one todo.
func (r *Repository) GetTodo(ctx context.Context, id string) (domain.Todo, error) {
	return getTodoByID(ctx, r.db, id)
}

// ListTodos lists todos matching q in list order.
func (r *Repository) ListTodos(ctx context.Context, q domain.Query) ([]domain.Todo, error) {
	query := `SELECT id, title, completed, created_at, updated_at FROM todos`
	var (
		where []string
		args  []any
	)
	if q.ID != "" {
		where = append(where, `id = ?`)
		args = append(args, q.ID)
	}
	if q.Completed != nil {
		where = append(where, `completed = ?`)
		args = append(args, boolToInt(*q.Completed))
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY position ASC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Todo{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, todo)
	}
	return out, rows.Err()
}

// CountTodos returns counts over the full collection.
func (r *Repository) CountTodos(ctx context.Context) (domain.Counts, error) {
	var c domain.Counts
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(completed), 0) FROM todos
	`).Scan(&c.Total, &c.Completed)
	if err != nil {
		return domain.Counts{}, err
	}
	c.Active = c.Total - c.Completed
	return c, nil
}

// DeleteTodo deletes one todo and records the deletion.
func (r *Repository) DeleteTodo(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	todo, err := getTodoByID(ctx, tx, id)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}

	err = insertChangeEvent(ctx, tx, domain.ChangeEvent{
		TodoID:    todo.ID,
		Operation: domain.ChangeOperationDelete,
		Metadata: map[string]string{
			"title":     todo.Title,
			"completed": strconv.FormatBool(todo.Completed),
		},
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

// ListChangeEvents lists the most recent ledger entries, newest first.
func (r *Repository) ListChangeEvents(ctx context.Context, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, todo_id, operation, metadata_json, created_at
		FROM todo_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChangeEvent, 0)
	for rows.Next() {
		var (
			event       domain.ChangeEvent
			opRaw       string
			metadataRaw string
			createdRaw  string
		)
		if err := rows.Scan(&event.ID, &event.TodoID, &opRaw, &metadataRaw, &createdRaw); err != nil {
			return nil, err
		}
		event.Operation = normalizeChangeOperation(opRaw)
		event.OccurredAt = parseTS(createdRaw)
		if strings.TrimSpace(metadataRaw) == "" {
			metadataRaw = "{}"
		}
		if err := json.Unmarshal([]byte(metadataRaw), &event.Metadata); err != nil {
			return nil, fmt.Errorf("decode todo_events.metadata_json: %w", err)
		}
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func getTodoByID(ctx context.Context, q queryRower, id string) (domain.Todo, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, title, completed, created_at, updated_at
		FROM todos
		WHERE id = ?
	`, id)
	return scanTodo(row)
}

type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// insertChangeEvent inserts a change-event ledger record.
func insertChangeEvent(ctx context.Context, execer execerContext, event domain.ChangeEvent) error {
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("encode change event metadata: %w", err)
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO todo_events(todo_id, operation, metadata_json, created_at)
		VALUES (?, ?, ?, ?)
	`,
		event.TodoID,
		string(event.Operation),
		string(metadataJSON),
		ts(normalizeEventTS(event.OccurredAt)),
	)
	if err != nil {
		return fmt.Errorf("insert change event: %w", err)
	}
	return nil
}

// classifyTransition picks the ledger operation for an update. A completion change wins over a rename.
func classifyTransition(prev, next domain.Todo) (domain.ChangeOperation, map[string]string, bool) {
	metadata := map[string]string{"title": next.Title}
	renamed := prev.Title != next.Title
	if renamed {
		metadata["from_title"] = prev.Title
	}
	switch {
	case prev.Completed != next.Completed && next.Completed:
		return domain.ChangeOperationComplete, metadata, true
	case prev.Completed != next.Completed:
		return domain.ChangeOperationReopen, metadata, true
	case renamed:
		return domain.ChangeOperationRename, metadata, true
	default:
		return "", nil, false
	}
}

func normalizeChangeOperation(raw string) domain.ChangeOperation {
	raw = strings.TrimSpace(strings.ToLower(raw))
	switch domain.ChangeOperation(raw) {
	case domain.ChangeOperationCreate,
		domain.ChangeOperationRename,
		domain.ChangeOperationComplete,
		domain.ChangeOperationReopen,
		domain.ChangeOperationDelete:
		return domain.ChangeOperation(raw)
	default:
		return domain.ChangeOperationRename
	}
}

func normalizeEventTS(in time.Time) time.Time {
	if in.IsZero() {
		return time.Now().UTC()
	}
	return in.UTC()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTodo(s scanner) (domain.Todo, error) {
	var (
		t          domain.Todo
		completed  int
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&t.ID, &t.Title, &completed, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Todo{}, domain.ErrNotFound
		}
		return domain.Todo{}, err
	}
	t.Completed = completed != 0
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)
	return t, nil
}

// translateNoRows maps a zero-row write to ErrNotFound.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
