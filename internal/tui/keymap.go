package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the chart view.
type KeyMap struct {
	// Date range
	PrevWeek key.Binding
	NextWeek key.Binding

	// Filters
	Stage    key.Binding
	Location key.Binding
	Unit     key.Binding
	View     key.Binding
	Weekdays key.Binding

	// Actions
	Refresh     key.Binding
	Jobs        key.Binding
	Diagnostics key.Binding
	Open        key.Binding
	Project     key.Binding
	Help        key.Binding
	Quit        key.Binding
	ForceQuit   key.Binding
	Back        key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		PrevWeek: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "previous week"),
		),
		NextWeek: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next week"),
		),
		Stage: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "cycle stage"),
		),
		Location: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "cycle location"),
		),
		Unit: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "jobs / tests"),
		),
		View: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "cumulative / daily"),
		),
		Weekdays: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "hide weekends"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Jobs: key.NewBinding(
			key.WithKeys("j"),
			key.WithHelp("j", "job list"),
		),
		Diagnostics: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "diagnostics"),
		),
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open in browser"),
		),
		Project: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "change project"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "q"),
			key.WithHelp("esc", "back"),
		),
	}
}

// ShortHelp returns key bindings to be shown in the mini help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PrevWeek, k.NextWeek, k.Refresh, k.Open},
		{k.Stage, k.Location, k.Unit, k.View, k.Weekdays},
		{k.Jobs, k.Diagnostics, k.Project, k.Help, k.Quit},
	}
}
