package reducer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flock-cli/flock/internal/core"
)

// recordingEffects captures every effect call for assertions.
type recordingEffects struct {
	created   []string
	deleted   []*core.Agent
	attached  []*core.Agent
	restarted []*core.Agent
	sent      []string
	merged    []*core.Agent
	fetched   []*core.Agent
	assigned  []string
	optionsFor []*core.Agent
	statusSet []string
	saves     int
	views     [][]core.AgentView
	forgotten []core.AgentID
	refreshes int
	quits     int
}

func (e *recordingEffects) CreateAgent(name, branch, taskRef string) {
	e.created = append(e.created, name+"/"+branch)
}
func (e *recordingEffects) DeleteAgent(a *core.Agent)  { e.deleted = append(e.deleted, a) }
func (e *recordingEffects) AttachAgent(a *core.Agent)  { e.attached = append(e.attached, a) }
func (e *recordingEffects) RestartAgent(a *core.Agent) { e.restarted = append(e.restarted, a) }
func (e *recordingEffects) SendInput(a *core.Agent, text string) {
	e.sent = append(e.sent, text)
}
func (e *recordingEffects) MergeMain(a *core.Agent)  { e.merged = append(e.merged, a) }
func (e *recordingEffects) FetchRemote(a *core.Agent) { e.fetched = append(e.fetched, a) }
func (e *recordingEffects) AssignTask(a *core.Agent, ref string) {
	e.assigned = append(e.assigned, ref)
}
func (e *recordingEffects) LoadStatusOptions(a *core.Agent) {
	e.optionsFor = append(e.optionsFor, a)
}
func (e *recordingEffects) UpdateTaskStatus(a *core.Agent, statusValue string) {
	e.statusSet = append(e.statusSet, statusValue)
}
func (e *recordingEffects) RequestSave() { e.saves++ }
func (e *recordingEffects) PublishViews(views []core.AgentView) {
	e.views = append(e.views, views)
}
func (e *recordingEffects) Forget(id core.AgentID) { e.forgotten = append(e.forgotten, id) }
func (e *recordingEffects) ForceRefresh()          { e.refreshes++ }
func (e *recordingEffects) Quit()                  { e.quits++ }

func newTestReducer(t *testing.T, opts ...Option) (*Reducer, *core.AppState, *recordingEffects) {
	t.Helper()
	state := core.NewAppState()
	effects := &recordingEffects{}
	r := New(state, effects, nil, opts...)
	return r, state, effects
}

func addAgent(r *Reducer, name, branch string) *core.Agent {
	a := core.NewAgent(name, branch, "/wt/"+name)
	r.Apply(core.Action{Kind: core.ActionAgentCreated, Agent: a})
	return a
}

func TestCreateAgentFlow(t *testing.T) {
	r, state, effects := newTestReducer(t)

	r.Apply(core.Action{Kind: core.ActionCreateAgent, Name: "x", Branch: "feature/x"})
	assert.Equal(t, []string{"x/feature/x"}, effects.created)
	assert.Empty(t, state.Agents, "agent appears only after the background create completes")

	a := core.NewAgent("x", "feature/x", "/wt/feature-x")
	r.Apply(core.Action{Kind: core.ActionAgentCreated, Agent: a})

	require.Len(t, state.Agents, 1)
	assert.Same(t, a, state.FindAgent(a.ID))
	assert.Equal(t, 0, state.SelectedIndex)
	assert.GreaterOrEqual(t, effects.saves, 1)
	require.NotEmpty(t, effects.views)
	assert.Len(t, effects.views[len(effects.views)-1], 1)
}

func TestCreateAgentValidation(t *testing.T) {
	r, state, effects := newTestReducer(t)

	r.Apply(core.Action{Kind: core.ActionCreateAgent, Name: "  ", Branch: ""})
	assert.Empty(t, effects.created)
	assert.NotEmpty(t, state.InputError)
}

func TestDeleteAgentRemovesAllReferences(t *testing.T) {
	r, state, effects := newTestReducer(t)
	a := addAgent(r, "x", "feature/x")
	b := addAgent(r, "y", "feature/y")

	r.Apply(core.Action{Kind: core.ActionDeleteAgent, AgentID: a.ID})

	assert.Nil(t, state.FindAgent(a.ID))
	require.Len(t, state.Agents, 1)
	assert.Equal(t, b.ID, state.Agents[0].ID)
	assert.Equal(t, []core.AgentID{a.ID}, effects.forgotten)
	require.Len(t, effects.deleted, 1)
	assert.Same(t, a, effects.deleted[0])
	assert.Less(t, state.SelectedIndex, len(state.Agents))
}

func TestLateRefreshAfterDeleteIsNoOp(t *testing.T) {
	r, state, _ := newTestReducer(t)
	a := addAgent(r, "x", "feature/x")

	r.Apply(core.Action{Kind: core.ActionDeleteAgent, AgentID: a.ID})

	// The in-flight refresh lands after deletion: silently dropped.
	r.Apply(core.Action{Kind: core.ActionUpdateAgentStatus, AgentID: a.ID, Status: core.AgentStatus{Kind: core.StatusRunning}})
	r.Apply(core.Action{Kind: core.ActionUpdateGitStatus, AgentID: a.ID, GitStatus: core.GitSyncStatus{Ahead: 5}})

	assert.Empty(t, state.Agents)
	assert.Nil(t, state.FindAgent(a.ID))
}

func TestSelection(t *testing.T) {
	r, state, _ := newTestReducer(t)
	addAgent(r, "a", "b1")
	addAgent(r, "b", "b2")
	addAgent(r, "c", "b3")

	r.Apply(core.Action{Kind: core.ActionSelectFirst})
	assert.Equal(t, 0, state.SelectedIndex)

	r.Apply(core.Action{Kind: core.ActionSelectNext})
	assert.Equal(t, 1, state.SelectedIndex)

	r.Apply(core.Action{Kind: core.ActionSelectLast})
	assert.Equal(t, 2, state.SelectedIndex)

	// Clamped at the ends.
	r.Apply(core.Action{Kind: core.ActionSelectNext})
	assert.Equal(t, 2, state.SelectedIndex)
	r.Apply(core.Action{Kind: core.ActionSelectFirst})
	r.Apply(core.Action{Kind: core.ActionSelectPrev})
	assert.Equal(t, 0, state.SelectedIndex)
}

func TestSelectedAgentNilOnEmpty(t *testing.T) {
	r, state, _ := newTestReducer(t)
	assert.Nil(t, state.SelectedAgent())

	a := addAgent(r, "x", "b")
	assert.Same(t, a, state.SelectedAgent())

	r.Apply(core.Action{Kind: core.ActionDeleteAgent, AgentID: a.ID})
	assert.Nil(t, state.SelectedAgent())
}

func TestStatusUpdateLogsErrorsOnce(t *testing.T) {
	r, state, _ := newTestReducer(t)
	a := addAgent(r, "x", "b")
	before := len(state.Logs)

	r.Apply(core.Action{Kind: core.ActionUpdateAgentStatus, AgentID: a.ID, Status: core.NewError("merge conflict")})
	assert.Equal(t, core.StatusError, a.Status.Kind)
	assert.Len(t, state.Logs, before+1)

	// Same status again: no duplicate log entry.
	r.Apply(core.Action{Kind: core.ActionUpdateAgentStatus, AgentID: a.ID, Status: core.NewError("merge conflict")})
	assert.Len(t, state.Logs, before+1)
}

func TestStatusReasonOnlyInDebug(t *testing.T) {
	reason := &core.StatusReason{Status: core.StatusRunning, Reason: "spinner"}

	r, _, _ := newTestReducer(t)
	a := addAgent(r, "x", "b")
	r.Apply(core.Action{Kind: core.ActionUpdateAgentStatus, AgentID: a.ID, Status: core.AgentStatus{Kind: core.StatusRunning}, StatusReason: reason})
	assert.Nil(t, a.LastStatusReason)

	rd, _, _ := newTestReducer(t, WithDebug(true))
	b := addAgent(rd, "y", "b2")
	rd.Apply(core.Action{Kind: core.ActionUpdateAgentStatus, AgentID: b.ID, Status: core.AgentStatus{Kind: core.StatusRunning}, StatusReason: reason})
	assert.Same(t, reason, b.LastStatusReason)
}

func TestOutputAndRingCaps(t *testing.T) {
	r, state, _ := newTestReducer(t, WithOutputCap(10))
	a := addAgent(r, "x", "b")

	long := ""
	for i := 0; i < 50; i++ {
		long += "line\n"
	}
	r.Apply(core.Action{Kind: core.ActionUpdateAgentOutput, AgentID: a.ID, OutputLine: long})
	assert.LessOrEqual(t, len(a.OutputBuffer), 10)

	for i := 0; i < 40; i++ {
		r.Apply(core.Action{Kind: core.ActionRecordActivity, AgentID: a.ID, HadActivity: i%2 == 0})
	}
	assert.LessOrEqual(t, len(a.ActivityHistory), core.ActivityHistoryCap)

	for i := 0; i < 250; i++ {
		r.Apply(core.Action{Kind: core.ActionToast, Message: "m", Level: core.LogLevelInfo})
	}
	assert.LessOrEqual(t, len(state.Logs), core.LogRingCap)

	for i := 0; i < 100; i++ {
		r.Apply(core.Action{Kind: core.ActionSampleMetrics, MetricSample: core.MetricSample{CPUPercent: float64(i)}})
	}
	assert.LessOrEqual(t, len(state.Metrics), core.MetricsRingCap)
}

func TestInputModeNewAgent(t *testing.T) {
	r, state, effects := newTestReducer(t)

	r.Apply(core.Action{Kind: core.ActionEnterInputMode, Mode: core.InputModeNewAgent})
	r.Apply(core.Action{Kind: core.ActionUpdateInput, Input: "fix-auth feature/fix-auth"})
	r.Apply(core.Action{Kind: core.ActionSubmitInput})

	assert.Equal(t, core.InputModeNone, state.InputMode)
	assert.Equal(t, []string{"fix-auth/feature/fix-auth"}, effects.created)
}

func TestInputModeRejectsEmpty(t *testing.T) {
	r, state, effects := newTestReducer(t)

	r.Apply(core.Action{Kind: core.ActionEnterInputMode, Mode: core.InputModeNewAgent})
	r.Apply(core.Action{Kind: core.ActionSubmitInput})

	assert.Equal(t, core.InputModeNewAgent, state.InputMode, "stays in input mode")
	assert.NotEmpty(t, state.InputError)
	assert.Empty(t, effects.created)

	r.Apply(core.Action{Kind: core.ActionExitInputMode})
	assert.Equal(t, core.InputModeNone, state.InputMode)
	assert.Empty(t, state.InputError)
}

func TestNoteFlowTriggersSave(t *testing.T) {
	r, _, effects := newTestReducer(t)
	a := addAgent(r, "x", "b")
	savesBefore := effects.saves

	r.Apply(core.Action{Kind: core.ActionEnterInputMode, Mode: core.InputModeNote})
	r.Apply(core.Action{Kind: core.ActionUpdateInput, Input: "needs rebase first"})
	r.Apply(core.Action{Kind: core.ActionSubmitInput})

	assert.Equal(t, "needs rebase first", a.CustomNote)
	assert.Greater(t, effects.saves, savesBefore)
}

func TestToggleContinueSessionTriggersSave(t *testing.T) {
	r, _, effects := newTestReducer(t)
	a := addAgent(r, "x", "b")
	savesBefore := effects.saves

	r.Apply(core.Action{Kind: core.ActionToggleContinue, AgentID: a.ID})
	assert.True(t, a.ContinueSession)
	assert.Greater(t, effects.saves, savesBefore)
}

func TestTaskAssignmentFlow(t *testing.T) {
	r, state, effects := newTestReducer(t)
	a := addAgent(r, "x", "b")

	r.Apply(core.Action{Kind: core.ActionAssignProjectTask, AgentID: a.ID, TaskRefOrID: "LIN-42"})
	assert.Equal(t, []string{"LIN-42"}, effects.assigned)

	link := core.PmTaskLink{Kind: core.PmLinear, Linear: &core.LinearStatusPayload{ID: "LIN-42", Name: "Fix auth", StatusName: "Todo", URL: "https://linear.app/LIN-42"}}
	r.Apply(core.Action{Kind: core.ActionTaskAssigned, AgentID: a.ID, Link: link})
	assert.Equal(t, core.PmLinear, a.PmTaskLink.Kind)

	r.Apply(core.Action{Kind: core.ActionUpdateProjectTaskStatus, AgentID: a.ID, NewStatusValue: "Done"})
	assert.Equal(t, "Done", a.PmTaskLink.Linear.StatusName)
	assert.Empty(t, a.PmTaskLink.Linear.URL, "url cleared for completed states")

	_ = state
}

func TestTaskStatusDropdown(t *testing.T) {
	r, state, effects := newTestReducer(t)
	a := addAgent(r, "x", "b")

	r.Apply(core.Action{Kind: core.ActionOpenTaskStatusDropdown, AgentID: a.ID})
	assert.True(t, state.TaskDropdownOpen)
	require.Len(t, effects.optionsFor, 1)

	opts := []core.StatusOption{{ID: "1", Name: "Todo"}, {ID: "2", Name: "Done"}}
	r.Apply(core.Action{Kind: core.ActionTaskStatusOptionsLoaded, AgentID: a.ID, StatusOptions: opts})
	assert.Equal(t, opts, state.TaskStatusOptions)
}

func TestTickAndQuit(t *testing.T) {
	r, state, effects := newTestReducer(t)

	r.Apply(core.Action{Kind: core.ActionTick})
	r.Apply(core.Action{Kind: core.ActionTick})
	assert.EqualValues(t, 2, state.TickCount)

	r.Apply(core.Action{Kind: core.ActionRefreshAll})
	assert.Equal(t, 1, effects.refreshes)

	r.Apply(core.Action{Kind: core.ActionQuit})
	assert.Equal(t, 1, effects.quits)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	state := core.NewAppState()
	effects := &recordingEffects{}
	r := New(state, effects, nil, WithRepoPath("/repo"))

	a := addAgent(r, "x", "feature/x")
	r.Apply(core.Action{Kind: core.ActionSetNote, AgentID: a.ID, Input: "first"})

	snap := r.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "/repo", snap.RepoPath)
	require.Len(t, snap.Agents, 1)
	assert.Equal(t, "first", snap.Agents[0].CustomNote)

	// Mutations after publication must not leak into the held snapshot.
	assert.NotSame(t, a, snap.Agents[0])
	a.CustomNote = "second"
	a.Status = core.NewError("boom")
	r.Apply(core.Action{Kind: core.ActionUpdateAgentOutput, AgentID: a.ID, OutputLine: "fresh output"})

	assert.Equal(t, "first", snap.Agents[0].CustomNote)
	assert.NotEqual(t, core.StatusError, snap.Agents[0].Status.Kind)
	assert.Empty(t, snap.Agents[0].OutputBuffer)
}

func TestSnapshotRepublishedOnPersistenceActions(t *testing.T) {
	r, _, _ := newTestReducer(t)
	a := addAgent(r, "x", "feature/x")

	require.Len(t, r.Snapshot().Agents, 1)

	r.Apply(core.Action{Kind: core.ActionDeleteAgent, AgentID: a.ID})
	assert.Empty(t, r.Snapshot().Agents)
}

func TestAckCalledAfterApply(t *testing.T) {
	r, _, _ := newTestReducer(t)

	acked := false
	actions := make(chan core.Action, 1)
	done := make(chan struct{})
	actions <- core.Action{Kind: core.ActionTick, Ack: func() { acked = true; close(done) }}
	close(actions)

	r.Run(actions, nil)
	<-done
	assert.True(t, acked)
}
