package tui

import "context"

// RouteSaver persists the last route the user switched to.
type RouteSaver func(route string) error

type Option func(*Model)

func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}

func WithRouteSaver(save RouteSaver) Option {
	return func(m *Model) {
		m.saveRoute = save
	}
}

// WithInitialRoute sets the route activated by Init.
func WithInitialRoute(route string) Option {
	return func(m *Model) {
		m.initialRoute = route
	}
}

func WithShowHelp(show bool) Option {
	return func(m *Model) {
		m.help.ShowAll = show
	}
}

func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}

// WithClipboard replaces the clipboard writer used by the copy key.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copy = write
		}
	}
}
