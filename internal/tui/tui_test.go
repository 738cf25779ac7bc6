package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flock-cli/flock/internal/core"
	"github.com/flock-cli/flock/internal/reducer"
)

// noopEffects satisfies reducer.Effects with just enough recording.
type noopEffects struct {
	created []string
	deleted int
	quits   int
}

func (e *noopEffects) CreateAgent(name, branch, taskRef string) {
	e.created = append(e.created, name+"/"+branch)
}
func (e *noopEffects) DeleteAgent(*core.Agent)              { e.deleted++ }
func (e *noopEffects) AttachAgent(*core.Agent)              {}
func (e *noopEffects) RestartAgent(*core.Agent)             {}
func (e *noopEffects) SendInput(*core.Agent, string)        {}
func (e *noopEffects) MergeMain(*core.Agent)                {}
func (e *noopEffects) FetchRemote(*core.Agent)              {}
func (e *noopEffects) AssignTask(*core.Agent, string)       {}
func (e *noopEffects) LoadStatusOptions(*core.Agent)        {}
func (e *noopEffects) UpdateTaskStatus(*core.Agent, string) {}
func (e *noopEffects) RequestSave()                         {}
func (e *noopEffects) PublishViews([]core.AgentView)        {}
func (e *noopEffects) Forget(core.AgentID)                  {}
func (e *noopEffects) ForceRefresh()                        {}
func (e *noopEffects) Quit()                                { e.quits++ }

func newModel(t *testing.T) (Model, *core.AppState, *noopEffects) {
	t.Helper()
	state := core.NewAppState()
	effects := &noopEffects{}
	red := reducer.New(state, effects, nil)
	return New(red, nil), state, effects
}

func seedAgent(red *reducer.Reducer, name string) *core.Agent {
	a := core.NewAgent(name, "feature/"+name, "/wt/"+name)
	red.Apply(core.Action{Kind: core.ActionAgentCreated, Agent: a})
	return a
}

func keyPress(m Model, r rune) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	return next.(Model), cmd
}

func TestNewAgentInputFlow(t *testing.T) {
	m, state, effects := newModel(t)

	m, cmd := keyPress(m, 'n')
	require.NotNil(t, cmd, "input gets focus")
	assert.Equal(t, core.InputModeNewAgent, state.InputMode)

	for _, r := range "fix-auth" {
		m, _ = keyPress(m, r)
	}
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	assert.Equal(t, core.InputModeNone, state.InputMode)
	assert.Equal(t, []string{"fix-auth/fix-auth"}, effects.created)
}

func TestEscapeLeavesInputMode(t *testing.T) {
	m, state, _ := newModel(t)

	m, _ = keyPress(m, 'n')
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEscape})
	m = next.(Model)

	assert.Equal(t, core.InputModeNone, state.InputMode)
	_ = m
}

func TestNavigationKeys(t *testing.T) {
	m, state, _ := newModel(t)
	seedAgent(m.red, "a")
	seedAgent(m.red, "b")
	seedAgent(m.red, "c")
	state.SelectedIndex = 0

	m, _ = keyPress(m, 'j')
	assert.Equal(t, 1, state.SelectedIndex)
	m, _ = keyPress(m, 'k')
	assert.Equal(t, 0, state.SelectedIndex)
	m, _ = keyPress(m, 'G')
	assert.Equal(t, 2, state.SelectedIndex)
	m, _ = keyPress(m, 'g')
	assert.Equal(t, 0, state.SelectedIndex)
}

func TestDeleteKeyDispatchesEffect(t *testing.T) {
	m, state, effects := newModel(t)
	seedAgent(m.red, "x")

	m, _ = keyPress(m, 'd')
	assert.Equal(t, 1, effects.deleted)
	assert.Empty(t, state.Agents)
	_ = m
}

func TestQuitKey(t *testing.T) {
	m, _, effects := newModel(t)

	_, cmd := keyPress(m, 'q')
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Equal(t, 1, effects.quits)
}

func TestActionMsgRoutesThroughReducer(t *testing.T) {
	m, state, _ := newModel(t)
	a := seedAgent(m.red, "x")

	acked := false
	next, _ := m.Update(ActionMsg{Action: core.Action{
		Kind:    core.ActionUpdateAgentStatus,
		AgentID: a.ID,
		Status:  core.AgentStatus{Kind: core.StatusRunning},
		Ack:     func() { acked = true },
	}})
	m = next.(Model)

	assert.Equal(t, core.StatusRunning, a.Status.Kind)
	assert.True(t, acked)
	_ = state
}

func TestViewRendersWithoutAgents(t *testing.T) {
	m, _, _ := newModel(t)
	m.width, m.height = 100, 30

	out := m.View()
	assert.Contains(t, out, "flock")
	assert.Contains(t, out, "no agents")
}

func TestViewRendersAgentDetail(t *testing.T) {
	m, _, _ := newModel(t)
	a := seedAgent(m.red, "payments")
	a.Status = core.AgentStatus{Kind: core.StatusAwaitingInput}
	a.GitStatus = core.GitSyncStatus{Ahead: 2, Behind: 1, IsClean: true}
	a.ForgeStatus = &core.ForgeStatus{Provider: "github", Number: 12, State: "open", PipelineState: "running"}
	m.width, m.height = 120, 40

	out := m.View()
	assert.Contains(t, out, "payments")
	assert.Contains(t, out, "Awaiting input")
	assert.Contains(t, out, "#12 open")
}

func TestLogsToggle(t *testing.T) {
	m, _, _ := newModel(t)
	m.width, m.height = 100, 30
	m.red.Apply(core.Action{Kind: core.ActionToast, Level: core.LogLevelInfo, Message: "hello log"})

	m, _ = keyPress(m, 'L')
	out := m.View()
	assert.Contains(t, out, "hello log")
}

func TestPickerFiltersAndAssigns(t *testing.T) {
	m, state, _ := newModel(t)
	seedAgent(m.red, "x")
	m.LoadTasks = func() tea.Msg {
		return TasksLoadedMsg{Tasks: []core.PmTaskSummary{
			{ID: "1", Name: "Fix login"},
			{ID: "2", Name: "Update docs"},
		}}
	}

	m, cmd := keyPress(m, 'T')
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	m = next.(Model)
	require.True(t, m.picker.Loaded())

	for _, r := range "docs" {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	visible, cursor := m.picker.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "Update docs", visible[cursor].Name)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.False(t, m.pickerOpen)
	_ = state
}
