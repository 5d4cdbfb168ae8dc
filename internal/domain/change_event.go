package domain

import "time"

// ChangeOperation describes a persisted activity operation for a todo.
type ChangeOperation string

// ChangeOperation values used by the local activity ledger.
const (
	ChangeOperationCreate   ChangeOperation = "create"
	ChangeOperationRename   ChangeOperation = "rename"
	ChangeOperationComplete ChangeOperation = "complete"
	ChangeOperationReopen   ChangeOperation = "reopen"
	ChangeOperationDelete   ChangeOperation = "delete"
)

// ChangeEvent represents a single activity-log entry for one todo.
type ChangeEvent struct {
	ID         int64             `json:"id"`
	TodoID     string            `json:"todo_id"`
	Operation  ChangeOperation   `json:"operation"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
