package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/flock-cli/flock/internal/core"
)

// Picker is the fuzzy-filtered PM task selector.
type Picker struct {
	filter  textinput.Model
	tasks   []core.PmTaskSummary
	matches []int
	cursor  int
	loaded  bool
}

// NewPicker returns an empty picker.
func NewPicker() Picker {
	in := textinput.New()
	in.Placeholder = "filter tasks"
	in.CharLimit = 80
	in.Width = 40
	return Picker{filter: in}
}

// Reset clears filter and selection for a fresh open.
func (p *Picker) Reset() {
	p.filter.SetValue("")
	p.filter.Focus()
	p.tasks = nil
	p.matches = nil
	p.cursor = 0
	p.loaded = false
}

// SetTasks installs the loaded task list.
func (p *Picker) SetTasks(tasks []core.PmTaskSummary) {
	p.tasks = tasks
	p.loaded = true
	p.refilter()
}

// taskNames implements fuzzy.Source over the task list.
type taskNames []core.PmTaskSummary

func (t taskNames) String(i int) string { return t[i].Name }
func (t taskNames) Len() int            { return len(t) }

func (p *Picker) refilter() {
	query := p.filter.Value()
	if query == "" {
		p.matches = p.matches[:0]
		for i := range p.tasks {
			p.matches = append(p.matches, i)
		}
	} else {
		results := fuzzy.FindFrom(query, taskNames(p.tasks))
		p.matches = p.matches[:0]
		for _, r := range results {
			p.matches = append(p.matches, r.Index)
		}
	}
	if p.cursor >= len(p.matches) {
		p.cursor = 0
	}
}

// Update handles navigation and filter edits.
func (p Picker) Update(msg tea.KeyMsg) (Picker, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if p.cursor > 0 {
			p.cursor--
		}
		return p, nil
	case tea.KeyDown:
		if p.cursor < len(p.matches)-1 {
			p.cursor++
		}
		return p, nil
	}

	var cmd tea.Cmd
	p.filter, cmd = p.filter.Update(msg)
	p.refilter()
	return p, cmd
}

// Selected returns the highlighted task.
func (p Picker) Selected() (core.PmTaskSummary, bool) {
	if p.cursor < 0 || p.cursor >= len(p.matches) {
		return core.PmTaskSummary{}, false
	}
	return p.tasks[p.matches[p.cursor]], true
}

// Visible returns the matching tasks in display order plus the cursor row.
func (p Picker) Visible() ([]core.PmTaskSummary, int) {
	out := make([]core.PmTaskSummary, 0, len(p.matches))
	for _, idx := range p.matches {
		out = append(out, p.tasks[idx])
	}
	return out, p.cursor
}

// Loaded reports whether SetTasks already ran.
func (p Picker) Loaded() bool { return p.loaded }

// FilterView renders the filter input.
func (p Picker) FilterView() string { return p.filter.View() }
