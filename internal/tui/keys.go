package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap is the normal-mode binding set.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	First    key.Binding
	Last     key.Binding
	New      key.Binding
	Delete   key.Binding
	Attach   key.Binding
	Restart  key.Binding
	Note     key.Binding
	Task     key.Binding
	TaskList key.Binding
	Continue key.Binding
	Merge    key.Binding
	Fetch    key.Binding
	Copy     key.Binding
	Logs     key.Binding
	Refresh  key.Binding
	Quit     key.Binding
}

// DefaultKeyMap mirrors common TUI conventions (vim motion + mnemonics).
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		First:    key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "first")),
		Last:     key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "last")),
		New:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new agent")),
		Delete:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Attach:   key.NewBinding(key.WithKeys("enter", "a"), key.WithHelp("enter", "attach")),
		Restart:  key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "restart")),
		Note:     key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "note")),
		Task:     key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "assign task")),
		TaskList: key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "pick task")),
		Continue: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "toggle resume")),
		Merge:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "merge main")),
		Fetch:    key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "fetch")),
		Copy:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy path")),
		Logs:     key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "logs")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}
