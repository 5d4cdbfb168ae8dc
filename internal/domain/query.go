package domain

// Query selects todos by field equality. The zero Query matches every todo.
type Query struct {
	ID        string `json:"id,omitempty"`
	Completed *bool  `json:"completed,omitempty"`
}

func ByID(id string) Query {
	return Query{ID: id}
}

func ByCompleted(completed bool) Query {
	return Query{Completed: &completed}
}

func (q Query) IsZero() bool {
	return q.ID == "" && q.Completed == nil
}

func (q Query) Matches(t Todo) bool {
	if q.ID != "" && q.ID != t.ID {
		return false
	}
	if q.Completed != nil && *q.Completed != t.Completed {
		return false
	}
	return true
}

func FilterTodos(todos []Todo, q Query) []Todo {
	out := make([]Todo, 0, len(todos))
	for _, t := range todos {
		if q.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}
