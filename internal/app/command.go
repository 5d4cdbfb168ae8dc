package app

import "github.com/evanschultz/todo/internal/domain"

// CommandName is the wire name of one render command.
type CommandName string

// Render command names understood by every View.
const (
	CommandShowEntries            CommandName = "showEntries"
	CommandContentBlockVisibility CommandName = "contentBlockVisibility"
	CommandToggleAll              CommandName = "toggleAll"
	CommandClearCompletedButton   CommandName = "clearCompletedButton"
	CommandSetFilter              CommandName = "setFilter"
	CommandElementComplete        CommandName = "elementComplete"
	CommandEditItem               CommandName = "editItem"
	CommandEditItemDone           CommandName = "editItemDone"
	CommandRemoveItem             CommandName = "removeItem"
	CommandUpdateElementCount     CommandName = "updateElementCount"
	CommandClearNewTodo           CommandName = "clearNewTodo"
)

// Command is one render instruction pushed to the View. The set of implementations is closed.
type Command interface {
	Name() CommandName
	isCommand()
}

// ShowEntries replaces the visible list, in Model order.
type ShowEntries struct {
	Todos []domain.Todo `json:"todos"`
}

// ContentBlockVisibility shows or hides the list and footer.
type ContentBlockVisibility struct {
	Visible bool `json:"visible"`
}

// ToggleAllState sets the toggle-all checkbox.
type ToggleAllState struct {
	Checked bool `json:"checked"`
}

// ClearCompletedButton sets the clear-completed button label and visibility.
type ClearCompletedButton struct {
	Completed int  `json:"completed"`
	Visible   bool `json:"visible"`
}

// SetFilter highlights the navigation entry for the raw route token.
type SetFilter struct {
	Token string `json:"token"`
}

// ElementComplete sets the completed state of one rendered item.
type ElementComplete struct {
	ID        string `json:"id"`
	Completed bool   `json:"completed"`
}

// EditItem puts one item into edit mode with the given title.
type EditItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// EditItemDone leaves edit mode showing the given title.
type EditItemDone struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// RemoveItem drops one item from the rendered list.
type RemoveItem struct {
	ID string `json:"id"`
}

// UpdateElementCount sets the "items left" counter.
type UpdateElementCount struct {
	Active int `json:"active"`
}

// ClearNewTodo empties the new-todo input.
type ClearNewTodo struct{}

func (ShowEntries) Name() CommandName            { return CommandShowEntries }
func (ContentBlockVisibility) Name() CommandName { return CommandContentBlockVisibility }
func (ToggleAllState) Name() CommandName         { return CommandToggleAll }
func (ClearCompletedButton) Name() CommandName   { return CommandClearCompletedButton }
func (SetFilter) Name() CommandName              { return CommandSetFilter }
func (ElementComplete) Name() CommandName        { return CommandElementComplete }
func (EditItem) Name() CommandName               { return CommandEditItem }
func (EditItemDone) Name() CommandName           { return CommandEditItemDone }
func (RemoveItem) Name() CommandName             { return CommandRemoveItem }
func (UpdateElementCount) Name() CommandName     { return CommandUpdateElementCount }
func (ClearNewTodo) Name() CommandName           { return CommandClearNewTodo }

func (ShowEntries) isCommand()            {}
func (ContentBlockVisibility) isCommand() {}
func (ToggleAllState) isCommand()         {}
func (ClearCompletedButton) isCommand()   {}
func (SetFilter) isCommand()              {}
func (ElementComplete) isCommand()        {}
func (EditItem) isCommand()               {}
func (EditItemDone) isCommand()           {}
func (RemoveItem) isCommand()             {}
func (UpdateElementCount) isCommand()     {}
func (ClearNewTodo) isCommand()           {}
