package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Commit     key.Binding
	Regenerate key.Binding
	Quit       key.Binding
	Interrupt  key.Binding
	Back       key.Binding
	Submit     key.Binding
	Styles     []key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Commit:     key.NewBinding(key.WithKeys("enter", "c"), key.WithHelp("enter/c", "commit")),
		Regenerate: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "regenerate")),
		Quit:       key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q/esc", "cancel")),
		Interrupt:  key.NewBinding(key.WithKeys("ctrl+c")),
		Back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		Styles: []key.Binding{
			key.NewBinding(key.WithKeys("1")),
			key.NewBinding(key.WithKeys("2")),
			key.NewBinding(key.WithKeys("3")),
			key.NewBinding(key.WithKeys("4")),
			key.NewBinding(key.WithKeys("5")),
		},
	}
}

func helpLine(bindings ...key.Binding) string {
	var s string
	for i, b := range bindings {
		if i > 0 {
			s += " • "
		}
		s += b.Help().Key + " " + b.Help().Desc
	}
	return helpStyle.Render(s)
}
