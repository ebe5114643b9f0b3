package tui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	Begin key.Binding
	Mic   key.Binding
	End   key.Binding
	New   key.Binding
	Exit  key.Binding
	Help  key.Binding
	Quit  key.Binding
}

var Keys = KeyMap{
	Begin: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "commencer"),
	),
	Mic: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("espace", "micro"),
	),
	End: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "terminer"),
	),
	New: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "nouvelle conversation"),
	),
	Exit: key.NewBinding(
		key.WithKeys("x", "esc"),
		key.WithHelp("x", "quitter la session"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "aide"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "fermer"),
	),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Begin, k.Mic, k.End, k.Exit, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Begin, k.Mic, k.End},
		{k.New, k.Exit, k.Help, k.Quit},
	}
}
