package app

// EventKind identifies one user gesture delivered by the View.
type EventKind int

// Gesture kinds bound by the Controller.
const (
	EventNewTodo EventKind = iota + 1
	EventItemRemove
	EventRemoveCompleted
	EventItemToggle
	EventItemEdit
	EventItemEditDone
	EventItemEditCancel
	EventToggleAll
)

// EventKinds lists every gesture in registration order.
var EventKinds = []EventKind{
	EventNewTodo,
	EventItemRemove,
	EventRemoveCompleted,
	EventItemToggle,
	EventItemEdit,
	EventItemEditDone,
	EventItemEditCancel,
	EventToggleAll,
}

var eventKindNames = map[EventKind]string{
	EventNewTodo:         "newTodo",
	EventItemRemove:      "itemRemove",
	EventRemoveCompleted: "removeCompleted",
	EventItemToggle:      "itemToggle",
	EventItemEdit:        "itemEdit",
	EventItemEditDone:    "itemEditDone",
	EventItemEditCancel:  "itemEditCancel",
	EventToggleAll:       "toggleAll",
}

// String returns the wire name of the gesture.
func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseEventKind resolves a wire name into an EventKind.
func ParseEventKind(name string) (EventKind, bool) {
	for kind, candidate := range eventKindNames {
		if candidate == name {
			return kind, true
		}
	}
	return 0, false
}

// Event is one gesture with its payload. The set of implementations is closed.
type Event interface {
	Kind() EventKind
	isEvent()
}

// NewTodoEvent asks for a todo with the given title.
type NewTodoEvent struct {
	Title string `json:"title"`
}

// ItemRemoveEvent removes one todo.
type ItemRemoveEvent struct {
	ID string `json:"id"`
}

// RemoveCompletedEvent clears every completed todo.
type RemoveCompletedEvent struct{}

// ItemToggleEvent sets the completed flag of one todo.
type ItemToggleEvent struct {
	ID        string `json:"id"`
	Completed bool   `json:"completed"`
}

// ItemEditEvent enters edit mode for one todo.
type ItemEditEvent struct {
	ID string `json:"id"`
}

// ItemEditDoneEvent commits an edit. An empty title deletes the todo.
type ItemEditDoneEvent struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ItemEditCancelEvent leaves edit mode without saving.
type ItemEditCancelEvent struct {
	ID string `json:"id"`
}

// ToggleAllEvent sets the completed flag of every todo.
type ToggleAllEvent struct {
	Completed bool `json:"completed"`
}

func (NewTodoEvent) Kind() EventKind         { return EventNewTodo }
func (ItemRemoveEvent) Kind() EventKind      { return EventItemRemove }
func (RemoveCompletedEvent) Kind() EventKind { return EventRemoveCompleted }
func (ItemToggleEvent) Kind() EventKind      { return EventItemToggle }
func (ItemEditEvent) Kind() EventKind        { return EventItemEdit }
func (ItemEditDoneEvent) Kind() EventKind    { return EventItemEditDone }
func (ItemEditCancelEvent) Kind() EventKind  { return EventItemEditCancel }
func (ToggleAllEvent) Kind() EventKind       { return EventToggleAll }

func (NewTodoEvent) isEvent()         {}
func (ItemRemoveEvent) isEvent()      {}
func (RemoveCompletedEvent) isEvent() {}
func (ItemToggleEvent) isEvent()      {}
func (ItemEditEvent) isEvent()        {}
func (ItemEditDoneEvent) isEvent()    {}
func (ItemEditCancelEvent) isEvent()  {}
func (ToggleAllEvent) isEvent()       {}
