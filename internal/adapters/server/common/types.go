// Package common provides transport-agnostic session contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/evanschultz/todo/internal/app"
	"github.com/evanschultz/todo/internal/domain"
)

// ErrInvalidSessionRequest reports malformed route or gesture input.
var ErrInvalidSessionRequest = errors.New("invalid session request")

// ErrNotFound reports missing transport-visible todos.
var ErrNotFound = errors.New("not found")

// SessionRunner serves route activations and gestures for transport adapters.
type SessionRunner interface {
	Run(context.Context, SessionRequest) (Transcript, error)
}

// ErrHistoryUnavailable reports a storage backend without a change ledger.
var ErrHistoryUnavailable = errors.New("history unavailable")

// SessionRequest describes one route activation and/or gesture against the shared model.
type SessionRequest struct {
	Route    string
	Activate bool
	Event    app.Event
}

// WireCommand is one render command in transport form.
type WireCommand struct {
	Name    string `json:"name"`
	Payload any    `json:"payload"`
}

// Transcript is every command rendered while serving one SessionRequest.
type Transcript struct {
	Route    string        `json:"route"`
	Filter   string        `json:"filter"`
	Commands []WireCommand `json:"commands"`
	Errors   []string      `json:"errors,omitempty"`
}

// Entries returns the todos of the last showEntries command, if any.
func (t Transcript) Entries() ([]domain.Todo, bool) {
	for i := len(t.Commands) - 1; i >= 0; i-- {
		if entries, ok := t.Commands[i].Payload.(app.ShowEntries); ok {
			return entries.Todos, true
		}
	}
	return nil, false
}

// EncodeCommand maps one typed render command to its wire form.
func EncodeCommand(cmd app.Command) WireCommand {
	return WireCommand{Name: string(cmd.Name()), Payload: cmd}
}

// DecodeEvent maps a gesture name and JSON payload to a typed event.
func DecodeEvent(name string, payload json.RawMessage) (app.Event, error) {
	kind, ok := app.ParseEventKind(name)
	if !ok {
		return nil, fmt.Errorf("unknown event %q: %w", name, ErrInvalidSessionRequest)
	}
	if len(payload) == 0 || string(payload) == "null" {
		payload = json.RawMessage("{}")
	}

	var (
		ev  app.Event
		err error
	)
	switch kind {
	case app.EventNewTodo:
		var in app.NewTodoEvent
		err = json.Unmarshal(payload, &in)
		ev = in
	case app.EventItemRemove:
		var in app.ItemRemoveEvent
		err = json.Unmarshal(payload, &in)
		ev = in
	case app.EventRemoveCompleted:
		ev = app.RemoveCompletedEvent{}
	case app.EventItemToggle:
		var in app.ItemToggleEvent
		err = json.Unmarshal(payload, &in)
		ev = in
	case app.EventItemEdit:
		var in app.ItemEditEvent
		err = json.Unmarshal(payload, &in)
		ev = in
	case app.EventItemEditDone:
		var in app.ItemEditDoneEvent
		err = json.Unmarshal(payload, &in)
		ev = in
	case app.EventItemEditCancel:
		var in app.ItemEditCancelEvent
		err = json.Unmarshal(payload, &in)
		ev = in
	case app.EventToggleAll:
		var in app.ToggleAllEvent
		err = json.Unmarshal(payload, &in)
		ev = in
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", name, errors.Join(ErrInvalidSessionRequest, err))
	}
	if err := validateEvent(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// validateEvent rejects gestures that cannot address a todo.
func validateEvent(ev app.Event) error {
	var id string
	switch ev := ev.(type) {
	case app.ItemRemoveEvent:
		id = ev.ID
	case app.ItemToggleEvent:
		id = ev.ID
	case app.ItemEditEvent:
		id = ev.ID
	case app.ItemEditDoneEvent:
		id = ev.ID
	case app.ItemEditCancelEvent:
		id = ev.ID
	default:
		return nil
	}
	if id == "" {
		return fmt.Errorf("%s requires id: %w", ev.Kind(), ErrInvalidSessionRequest)
	}
	return nil
}

// mapAppError maps app and domain errors onto transport-level sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, app.ErrUnhandledEvent):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidSessionRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
