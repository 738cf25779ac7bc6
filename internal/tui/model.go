// Package tui is the render shell over the reducer's state. It is a
// deliberately thin boundary layer: every keystroke becomes an action
// applied through the reducer, and the bubbletea event loop doubles as the
// reducer goroutine, so AppState has exactly one writer.
package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/flock-cli/flock/internal/clip"
	"github.com/flock-cli/flock/internal/core"
	"github.com/flock-cli/flock/internal/reducer"
)

// ActionMsg carries an action from the scheduler/background tasks into the
// bubbletea loop, where the reducer applies it.
type ActionMsg struct {
	Action core.Action
}

// TasksLoadedMsg delivers the PM task list for the picker.
type TasksLoadedMsg struct {
	Tasks []core.PmTaskSummary
	Err   error
}

// Model is the bubbletea model.
type Model struct {
	red  *reducer.Reducer
	keys KeyMap

	spin   spinner.Model
	input  textinput.Model
	picker Picker

	// LoadTasks is wired by the app shell to the active PM provider's
	// ListTasks; nil disables the picker.
	LoadTasks func() tea.Msg

	width, height int
	showLogs      bool
	pickerOpen    bool
}

// New builds the shell over an existing reducer.
func New(red *reducer.Reducer, loadTasks func() tea.Msg) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	in := textinput.New()
	in.CharLimit = 200
	in.Width = 48

	return Model{
		red:       red,
		keys:      DefaultKeyMap(),
		spin:      sp,
		input:     in,
		picker:    NewPicker(),
		LoadTasks: loadTasks,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

// Update is the single state-mutation site: every message funnels through
// the reducer or adjusts pure view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ActionMsg:
		if msg.Action.Kind == core.ActionQuit {
			m.red.Apply(msg.Action)
			return m, tea.Quit
		}
		m.red.Apply(msg.Action)
		if msg.Action.Ack != nil {
			msg.Action.Ack()
		}
		return m, nil

	case TasksLoadedMsg:
		if msg.Err != nil {
			m.pickerOpen = false
			m.red.Apply(core.Action{Kind: core.ActionToast, Level: core.LogLevelWarn, Message: "could not load tasks: " + msg.Err.Error()})
			return m, nil
		}
		m.picker.SetTasks(msg.Tasks)
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	state := m.red.State()

	if m.pickerOpen {
		return m.handlePickerKey(msg)
	}

	if state.InputMode != core.InputModeNone {
		return m.handleInputKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.red.Apply(core.Action{Kind: core.ActionQuit})
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.red.Apply(core.Action{Kind: core.ActionSelectPrev})
	case key.Matches(msg, m.keys.Down):
		m.red.Apply(core.Action{Kind: core.ActionSelectNext})
	case key.Matches(msg, m.keys.First):
		m.red.Apply(core.Action{Kind: core.ActionSelectFirst})
	case key.Matches(msg, m.keys.Last):
		m.red.Apply(core.Action{Kind: core.ActionSelectLast})

	case key.Matches(msg, m.keys.New):
		m.red.Apply(core.Action{Kind: core.ActionEnterInputMode, Mode: core.InputModeNewAgent})
		m.input.SetValue("")
		m.input.Placeholder = "name [branch]"
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Note):
		if agent := state.SelectedAgent(); agent != nil {
			m.red.Apply(core.Action{Kind: core.ActionEnterInputMode, Mode: core.InputModeNote})
			m.input.SetValue(agent.CustomNote)
			m.input.Placeholder = "note"
			return m, m.input.Focus()
		}

	case key.Matches(msg, m.keys.Task):
		if state.SelectedAgent() != nil {
			m.red.Apply(core.Action{Kind: core.ActionEnterInputMode, Mode: core.InputModeAssignTask})
			m.input.SetValue("")
			m.input.Placeholder = "task id or url"
			return m, m.input.Focus()
		}

	case key.Matches(msg, m.keys.TaskList):
		if state.SelectedAgent() != nil && m.LoadTasks != nil {
			m.pickerOpen = true
			m.picker.Reset()
			return m, func() tea.Msg { return m.LoadTasks() }
		}

	case key.Matches(msg, m.keys.Delete):
		if agent := state.SelectedAgent(); agent != nil {
			m.red.Apply(core.Action{Kind: core.ActionDeleteAgent, AgentID: agent.ID})
		}
	case key.Matches(msg, m.keys.Attach):
		if agent := state.SelectedAgent(); agent != nil {
			m.red.Apply(core.Action{Kind: core.ActionAttachAgent, AgentID: agent.ID})
		}
	case key.Matches(msg, m.keys.Restart):
		if agent := state.SelectedAgent(); agent != nil {
			m.red.Apply(core.Action{Kind: core.ActionRestartAgent, AgentID: agent.ID})
		}
	case key.Matches(msg, m.keys.Continue):
		if agent := state.SelectedAgent(); agent != nil {
			m.red.Apply(core.Action{Kind: core.ActionToggleContinue, AgentID: agent.ID})
		}
	case key.Matches(msg, m.keys.Merge):
		if agent := state.SelectedAgent(); agent != nil {
			m.red.Apply(core.Action{Kind: core.ActionMergeMain, AgentID: agent.ID})
		}
	case key.Matches(msg, m.keys.Fetch):
		if agent := state.SelectedAgent(); agent != nil {
			m.red.Apply(core.Action{Kind: core.ActionFetchRemote, AgentID: agent.ID})
		}

	case key.Matches(msg, m.keys.Copy):
		if agent := state.SelectedAgent(); agent != nil {
			return m, copyCmd(agent.WorktreePath)
		}

	case key.Matches(msg, m.keys.Logs):
		m.showLogs = !m.showLogs
	case key.Matches(msg, m.keys.Refresh):
		m.red.Apply(core.Action{Kind: core.ActionRefreshAll})
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEscape:
		m.red.Apply(core.Action{Kind: core.ActionExitInputMode})
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		m.red.Apply(core.Action{Kind: core.ActionUpdateInput, Input: m.input.Value()})
		m.red.Apply(core.Action{Kind: core.ActionSubmitInput})
		if m.red.State().InputMode == core.InputModeNone {
			m.input.Blur()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.red.Apply(core.Action{Kind: core.ActionUpdateInput, Input: m.input.Value()})
	return m, cmd
}

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEscape:
		m.pickerOpen = false
		return m, nil
	case tea.KeyEnter:
		task, ok := m.picker.Selected()
		m.pickerOpen = false
		if ok {
			if agent := m.red.State().SelectedAgent(); agent != nil {
				m.red.Apply(core.Action{Kind: core.ActionAssignProjectTask, AgentID: agent.ID, TaskRefOrID: task.ID})
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return m, cmd
}

// copyCmd copies text off the render loop and reports back as a toast.
func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		res, err := clip.WriteAll(text)
		if err != nil {
			return ActionMsg{Action: core.Action{Kind: core.ActionToast, Level: core.LogLevelWarn, Message: "copy failed: " + err.Error()}}
		}
		message := "copied to clipboard"
		if res.Method == clip.MethodFile {
			message = "clipboard unavailable, saved to " + res.FilePath
		}
		return ActionMsg{Action: core.Action{Kind: core.ActionToast, Level: core.LogLevelInfo, Message: message}}
	}
}
