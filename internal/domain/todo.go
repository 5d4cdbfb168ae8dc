package domain

import (
	"strings"
	"time"
)

// Todo is one task record owned by the Model.
type Todo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TodoInput struct {
	ID    string
	Title string
}

func NewTodo(in TodoInput, now time.Time) (Todo, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	if in.ID == "" {
		return Todo{}, ErrInvalidID
	}
	if in.Title == "" {
		return Todo{}, ErrInvalidTitle
	}
	return Todo{
		ID:        in.ID,
		Title:     in.Title,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Changes is a partial update merged into a Todo. Nil fields are left untouched.
type Changes struct {
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

func TitleChange(title string) Changes {
	return Changes{Title: &title}
}

func CompletedChange(completed bool) Changes {
	return Changes{Completed: &completed}
}

func (c Changes) IsEmpty() bool {
	return c.Title == nil && c.Completed == nil
}

// Apply merges changes into the todo. A title change must not be blank.
func (t *Todo) Apply(c Changes, now time.Time) error {
	if c.Title != nil {
		title := strings.TrimSpace(*c.Title)
		if title == "" {
			return ErrInvalidTitle
		}
		t.Title = title
	}
	if c.Completed != nil {
		t.Completed = *c.Completed
	}
	t.UpdatedAt = now.UTC()
	return nil
}

// Counts summarizes the full collection.
type Counts struct {
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

func CountTodos(todos []Todo) Counts {
	var c Counts
	for _, t := range todos {
		if t.Completed {
			c.Completed++
		} else {
			c.Active++
		}
	}
	c.Total = len(todos)
	return c
}
