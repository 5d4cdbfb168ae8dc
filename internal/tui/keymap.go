package tui

import (
	"strings"
	"unicode"

	"charm.land/bubbles/v2/key"
)

// KeyConfig overrides the gesture bindings. Blank fields keep the defaults.
type KeyConfig struct {
	NewTodo        string
	Toggle         string
	Edit           string
	Remove         string
	ClearCompleted string
	ToggleAll      string
	Copy           string
}

type keyMap struct {
	quit           key.Binding
	reload         key.Binding
	toggleHelp     key.Binding
	moveUp         key.Binding
	moveDown       key.Binding
	newTodo        key.Binding
	toggle         key.Binding
	edit           key.Binding
	remove         key.Binding
	clearCompleted key.Binding
	toggleAll      key.Binding
	copyTitle      key.Binding
	details        key.Binding
	routeAll       key.Binding
	routeActive    key.Binding
	routeCompleted key.Binding
	nextRoute      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit:           key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:         key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveUp:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		moveDown:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		newTodo:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new todo")),
		toggle:         key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "toggle")),
		edit:           key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e/enter", "edit")),
		remove:         key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "remove")),
		clearCompleted: key.NewBinding(key.WithKeys("C", "shift+c"), key.WithHelp("C", "clear completed")),
		toggleAll:      key.NewBinding(key.WithKeys("A", "shift+a"), key.WithHelp("A", "toggle all")),
		copyTitle:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy title")),
		details:        key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "details")),
		routeAll:       key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "all")),
		routeActive:    key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "active")),
		routeCompleted: key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "completed")),
		nextRoute:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next filter")),
	}
}

// applyConfig rebinds the gesture keys from cfg.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.newTodo, cfg.NewTodo, "n", "new todo")
	configureBinding(&k.toggle, cfg.Toggle, "space", "toggle")
	configureBinding(&k.edit, cfg.Edit, "e", "edit")
	configureBinding(&k.remove, cfg.Remove, "d", "remove")
	configureBinding(&k.clearCompleted, cfg.ClearCompleted, "C", "clear completed")
	configureBinding(&k.toggleAll, cfg.ToggleAll, "A", "toggle all")
	configureBinding(&k.copyTitle, cfg.Copy, "y", "copy title")
}

func configureBinding(b *key.Binding, raw, fallback, desc string) {
	if strings.TrimSpace(raw) == "" {
		return
	}
	keys, help := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(help, desc)
}

// parseBindingKeys turns a configured key into matcher strings plus help text.
// "space" also matches a literal space and a single uppercase rune also matches shift+rune.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = strings.TrimSpace(fallback)
	}
	switch {
	case strings.EqualFold(raw, "space"):
		return []string{" ", "space"}, "space"
	case len([]rune(raw)) == 1:
		r := []rune(raw)[0]
		if unicode.IsUpper(r) {
			return []string{raw, "shift+" + string(unicode.ToLower(r))}, raw
		}
		return []string{raw}, raw
	default:
		return []string{strings.ToLower(raw)}, raw
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.newTodo, k.toggle, k.edit, k.remove, k.nextRoute, k.toggleHelp, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.newTodo, k.toggle, k.edit, k.remove, k.copyTitle, k.details},
		{k.toggleAll, k.clearCompleted, k.moveUp, k.moveDown},
		{k.routeAll, k.routeActive, k.routeCompleted, k.nextRoute, k.reload, k.toggleHelp, k.quit},
	}
}
