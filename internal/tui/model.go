package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"

	"github.com/evanschultz/todo/internal/app"
	"github.com/evanschultz/todo/internal/domain"
)

// Controller is the part of app.Controller the terminal UI drives directly.
// Gestures go through the Screen's bound handlers instead.
type Controller interface {
	Activate(ctx context.Context, route string)
	Route() string
}

type inputMode int

const (
	modeNone inputMode = iota
	modeNewTodo
	modeEdit
)

var routeCycle = []string{"#/", "#/active", "#/completed"}

// renderedMsg reports that the Controller finished a gesture.
type renderedMsg struct {
	status string
}

type statusMsg struct {
	status string
}

// Model is the bubbletea program for the todo list.
type Model struct {
	ctx        context.Context
	screen     *Screen
	controller Controller
	saveRoute  RouteSaver
	copy       func(string) error

	initialRoute string

	ready  bool
	width  int
	height int

	status string

	help help.Model
	keys keyMap

	mode        inputMode
	input       textinput.Model
	editingID   string
	selected    int
	showDetails bool
	lastCleared int

	view     screenState
	markdown *markdownRenderer
}

func NewModel(screen *Screen, controller Controller, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		ctx:          context.Background(),
		screen:       screen,
		controller:   controller,
		copy:         clipboard.WriteAll,
		initialRoute: "#/",
		status:       "loading...",
		help:         h,
		keys:         newKeyMap(),
		input:        newInput("", ""),
		markdown:     &markdownRenderer{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

func newInput(placeholder, value string) textinput.Model {
	in := textinput.New()
	in.Prompt = "› "
	in.Placeholder = placeholder
	in.CharLimit = 256
	if value != "" {
		in.SetValue(value)
	}
	return in
}

func (m Model) Init() tea.Cmd {
	return m.activate(m.initialRoute, false)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case renderedMsg:
		m.syncScreen()
		if msg.status != "" {
			m.status = msg.status
		}
		m.reportErrors()
		return m, nil

	case statusMsg:
		m.status = msg.status
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleInputKey(msg)
		}
		return m.handleNormalKey(msg)

	default:
		return m, nil
	}
}

// syncScreen copies the rendered state and reacts to edit and clear commands.
func (m *Model) syncScreen() {
	if m.screen == nil {
		return
	}
	m.view = m.screen.snapshot()
	m.selected = clamp(m.selected, 0, len(m.view.todos)-1)
	if m.view.inputCleared != m.lastCleared {
		m.lastCleared = m.view.inputCleared
		if m.mode == modeNewTodo {
			m.mode = modeNone
			m.input = newInput("", "")
		}
	}
	switch {
	case m.view.editingID != "" && m.mode == modeNone:
		m.mode = modeEdit
		m.editingID = m.view.editingID
		m.input = newInput("title (empty removes)", m.view.editTitle)
		m.input.Focus()
	case m.view.editingID == "" && m.mode == modeEdit:
		m.mode = modeNone
		m.editingID = ""
	}
	if m.status == "loading..." {
		m.status = "ready"
	}
}

func (m *Model) reportErrors() {
	if m.screen == nil {
		return
	}
	errs := m.screen.takeErrors()
	if len(errs) == 0 {
		return
	}
	m.status = "error: " + errors.Join(errs...).Error()
}

func (m Model) handleNormalKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.selected = clamp(m.selected-1, 0, len(m.view.todos)-1)
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.selected = clamp(m.selected+1, 0, len(m.view.todos)-1)
		return m, nil
	case key.Matches(msg, m.keys.details):
		m.showDetails = !m.showDetails
		return m, nil
	case key.Matches(msg, m.keys.reload):
		return m, m.activate(m.currentRoute(), false)
	case key.Matches(msg, m.keys.routeAll):
		return m, m.activate(routeCycle[0], true)
	case key.Matches(msg, m.keys.routeActive):
		return m, m.activate(routeCycle[1], true)
	case key.Matches(msg, m.keys.routeCompleted):
		return m, m.activate(routeCycle[2], true)
	case key.Matches(msg, m.keys.nextRoute):
		return m, m.activate(nextRoute(m.currentRoute()), true)
	case key.Matches(msg, m.keys.newTodo):
		m.mode = modeNewTodo
		m.input = newInput("what needs to be done?", "")
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.clearCompleted):
		return m, m.trigger(app.RemoveCompletedEvent{})
	case key.Matches(msg, m.keys.toggleAll):
		return m, m.trigger(app.ToggleAllEvent{Completed: !m.view.toggleAll})
	}

	todo, ok := m.selectedTodo()
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.toggle):
		return m, m.trigger(app.ItemToggleEvent{ID: todo.ID, Completed: !todo.Completed})
	case key.Matches(msg, m.keys.edit):
		return m, m.trigger(app.ItemEditEvent{ID: todo.ID})
	case key.Matches(msg, m.keys.remove):
		return m, m.trigger(app.ItemRemoveEvent{ID: todo.ID})
	case key.Matches(msg, m.keys.copyTitle):
		return m, m.copyTitle(todo.Title)
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.mode == modeEdit {
			id := m.editingID
			m.mode = modeNone
			m.editingID = ""
			return m, m.trigger(app.ItemEditCancelEvent{ID: id})
		}
		m.mode = modeNone
		m.input = newInput("", "")
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		if m.mode == modeEdit {
			id := m.editingID
			m.mode = modeNone
			m.editingID = ""
			return m, m.trigger(app.ItemEditDoneEvent{ID: id, Title: value})
		}
		if value == "" {
			m.mode = modeNone
			return m, nil
		}
		return m, m.trigger(app.NewTodoEvent{Title: value})
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// trigger delivers one gesture through the Screen's bound handler.
func (m Model) trigger(ev app.Event) tea.Cmd {
	screen := m.screen
	ctx := m.ctx
	return func() tea.Msg {
		if screen == nil || !screen.Trigger(ctx, ev) {
			return statusMsg{status: fmt.Sprintf("no handler for %s", ev.Kind())}
		}
		return renderedMsg{}
	}
}

// activate switches the route and optionally persists it.
func (m Model) activate(route string, persist bool) tea.Cmd {
	if m.controller == nil {
		return nil
	}
	controller := m.controller
	save := m.saveRoute
	ctx := m.ctx
	return func() tea.Msg {
		controller.Activate(ctx, route)
		if !persist || save == nil {
			return renderedMsg{}
		}
		if err := save(route); err != nil {
			return renderedMsg{status: "save route failed: " + err.Error()}
		}
		return renderedMsg{status: "route " + route}
	}
}

func (m Model) copyTitle(title string) tea.Cmd {
	write := m.copy
	return func() tea.Msg {
		if err := write(title); err != nil {
			return statusMsg{status: "copy failed: " + err.Error()}
		}
		return statusMsg{status: "copied " + title}
	}
}

func (m Model) currentRoute() string {
	if m.controller == nil {
		return m.initialRoute
	}
	return m.controller.Route()
}

func nextRoute(current string) string {
	filter, _ := app.ParseRoute(current)
	return routeCycle[(int(filter)+1)%len(routeCycle)]
}

func (m Model) selectedTodo() (domain.Todo, bool) {
	if len(m.view.todos) == 0 {
		return domain.Todo{}, false
	}
	return m.view.todos[clamp(m.selected, 0, len(m.view.todos)-1)], true
}

func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

func (m Model) render() string {
	if !m.ready {
		return "loading..."
	}
	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	activeNav := lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("252"))
	inactiveNav := lipgloss.NewStyle().Foreground(muted)
	selectedStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	doneStyle := lipgloss.NewStyle().Strikethrough(true).Foreground(dim)
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	sections := []string{titleStyle.Render("todos")}

	nav := make([]string, 0, len(routeCycle))
	for _, route := range routeCycle {
		filter, token := app.ParseRoute(route)
		label := filter.String()
		if token == m.view.filter {
			nav = append(nav, activeNav.Render(label))
		} else {
			nav = append(nav, inactiveNav.Render(label))
		}
	}
	sections = append(sections, strings.Join(nav, "  "), "")

	if m.mode == modeNewTodo {
		sections = append(sections, m.input.View(), "")
	}

	if !m.view.visible {
		sections = append(sections, inactiveNav.Render("Nothing to do. Press n to add a todo."))
	} else {
		check := "[ ]"
		if m.view.toggleAll {
			check = "[x]"
		}
		sections = append(sections, inactiveNav.Render(check+" mark all as complete"))
		for idx, todo := range m.view.todos {
			if m.mode == modeEdit && todo.ID == m.editingID {
				sections = append(sections, "  "+m.input.View())
				continue
			}
			box := "[ ]"
			title := todo.Title
			if todo.Completed {
				box = "[x]"
				title = doneStyle.Render(title)
			}
			line := box + " " + title
			if idx == m.selected {
				line = selectedStyle.Render("›") + " " + line
			} else {
				line = "  " + line
			}
			sections = append(sections, line)
		}
		sections = append(sections, "", m.footer(inactiveNav))
	}

	if m.showDetails {
		if todo, ok := m.selectedTodo(); ok {
			sections = append(sections, "", m.markdown.render(todoDetailsMarkdown(todo), max(24, m.width-4)))
		}
	}

	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		sections = append(sections, "", statusStyle.Render(m.status))
	}

	content := strings.Join(sections, "\n")
	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	return content + "\n" + helpLine
}

func (m Model) footer(style lipgloss.Style) string {
	parts := []string{}
	if m.view.activeKnown {
		noun := "items"
		if m.view.active == 1 {
			noun = "item"
		}
		parts = append(parts, fmt.Sprintf("%d %s left", m.view.active, noun))
	}
	if m.view.showClear {
		parts = append(parts, fmt.Sprintf("clear completed (%d)", m.view.completed))
	}
	return style.Render(strings.Join(parts, " • "))
}

func todoDetailsMarkdown(todo domain.Todo) string {
	state := "active"
	if todo.Completed {
		state = "completed"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", todo.Title)
	fmt.Fprintf(&b, "- **id:** `%s`\n", todo.ID)
	fmt.Fprintf(&b, "- **state:** %s\n", state)
	if !todo.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- **created:** %s\n", todo.CreatedAt.Format("2006-01-02 15:04"))
	}
	if !todo.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "- **updated:** %s\n", todo.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return b.String()
}

func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines pads or truncates content to maxLines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}
