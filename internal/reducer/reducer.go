// Package reducer is the single writer of AppState (T2). It pulls actions
// from one channel in FIFO order, applies them synchronously, and never
// performs I/O itself — anything slow is delegated to the Effects sink,
// whose completions come back as further actions.
package reducer

import (
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/flock-cli/flock/internal/core"
)

// Effects is everything the reducer asks the outside world to do. Every
// method must return quickly; long work runs on the caller's task pool and
// reports back by posting actions.
type Effects interface {
	// Lifecycle follow-ups. Completion posts ActionAgentCreated or
	// ActionToast on failure.
	CreateAgent(name, branch, taskRef string)
	DeleteAgent(a *core.Agent)
	AttachAgent(a *core.Agent)
	RestartAgent(a *core.Agent)
	SendInput(a *core.Agent, text string)

	// Git follow-ups.
	MergeMain(a *core.Agent)
	FetchRemote(a *core.Agent)

	// PM follow-ups.
	AssignTask(a *core.Agent, ref string)
	LoadStatusOptions(a *core.Agent)
	UpdateTaskStatus(a *core.Agent, statusValue string)

	// Scheduler hooks.
	RequestSave()
	PublishViews(views []core.AgentView)
	Forget(id core.AgentID)
	ForceRefresh()

	// Quit asks the application shell to exit cleanly.
	Quit()
}

// Reducer owns AppState.
type Reducer struct {
	state   *core.AppState
	effects Effects
	logger  *slog.Logger
	debug   bool

	outputCap int
	repoPath  string

	views atomic.Value // []core.AgentView
	snap  atomic.Value // *core.SessionSnapshot, deep-copied per save request
}

// Option tunes a Reducer.
type Option func(*Reducer)

// WithDebug keeps StatusReason values on agents for the debug overlay.
func WithDebug(debug bool) Option {
	return func(r *Reducer) { r.debug = debug }
}

// WithOutputCap bounds the per-agent output ring.
func WithOutputCap(lines int) Option {
	return func(r *Reducer) { r.outputCap = lines }
}

// WithRepoPath stamps published session snapshots with the repository path.
func WithRepoPath(path string) Option {
	return func(r *Reducer) { r.repoPath = path }
}

// New builds a reducer over state. A nil logger discards.
func New(state *core.AppState, effects Effects, logger *slog.Logger, opts ...Option) *Reducer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Reducer{
		state:     state,
		effects:   effects,
		logger:    logger,
		outputCap: core.OutputBufferDefaultCap,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.publishViews()
	r.publishSnapshot()
	return r
}

// State exposes the reducer's state for the render loop. Only the reducer
// goroutine may call methods that mutate it.
func (r *Reducer) State() *core.AppState { return r.state }

// Views returns the last published immutable agent views; safe from any
// goroutine.
func (r *Reducer) Views() []core.AgentView {
	v, _ := r.views.Load().([]core.AgentView)
	return v
}

// Snapshot returns the last published deep-copied session snapshot; safe
// from any goroutine. The background auto-save marshals this copy, never
// the live state the reducer keeps mutating.
func (r *Reducer) Snapshot() *core.SessionSnapshot {
	s, _ := r.snap.Load().(*core.SessionSnapshot)
	return s
}

// Run consumes actions until the channel closes or ctx is done.
func (r *Reducer) Run(actions <-chan core.Action, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case a, ok := <-actions:
			if !ok {
				return
			}
			r.Apply(a)
			if a.Ack != nil {
				a.Ack()
			}
		}
	}
}

// Apply executes one action against the state. It is exported so the TUI
// shell can apply user-input actions synchronously on the reducer goroutine.
func (r *Reducer) Apply(a core.Action) {
	switch a.Kind {
	case core.ActionSelectNext:
		r.moveSelection(1)
	case core.ActionSelectPrev:
		r.moveSelection(-1)
	case core.ActionSelectFirst:
		r.state.SelectedIndex = 0
	case core.ActionSelectLast:
		if n := len(r.state.Agents); n > 0 {
			r.state.SelectedIndex = n - 1
		}

	case core.ActionCreateAgent:
		r.applyCreateAgent(a)
	case core.ActionAgentCreated:
		r.applyAgentCreated(a)
	case core.ActionDeleteAgent:
		r.applyDeleteAgent(a)
	case core.ActionAttachAgent:
		if agent := r.lookup(a); agent != nil {
			r.effects.AttachAgent(agent)
		}
	case core.ActionRestartAgent:
		if agent := r.lookup(a); agent != nil {
			r.effects.RestartAgent(agent)
			r.log(core.LogLevelInfo, "restarting "+agent.Name)
		}

	case core.ActionUpdateAgentStatus:
		r.applyStatus(a)
	case core.ActionUpdateAgentOutput:
		if agent := r.lookup(a); agent != nil {
			agent.SetOutput(a.OutputLine, r.outputCap)
		}
	case core.ActionRecordActivity:
		if agent := r.lookup(a); agent != nil {
			agent.RecordActivity(a.HadActivity)
		}
	case core.ActionUpdateChecklist:
		if agent := r.lookup(a); agent != nil {
			agent.ChecklistDone = a.ChecklistDone
			agent.ChecklistTotal = a.ChecklistTotal
			agent.HasChecklist = a.HasChecklist
		}
	case core.ActionUpdateGitStatus:
		if agent := r.lookup(a); agent != nil {
			agent.GitStatus = a.GitStatus
		}
	case core.ActionUpdateForgeStatus:
		if agent := r.lookup(a); agent != nil {
			agent.ForgeStatus = a.ForgeStatus
		}
	case core.ActionSampleMetrics:
		r.state.AppendMetric(a.MetricSample)

	case core.ActionAssignProjectTask:
		if agent := r.lookup(a); agent != nil {
			r.effects.AssignTask(agent, a.TaskRefOrID)
		}
	case core.ActionTaskAssigned:
		r.applyTaskAssigned(a)
	case core.ActionUpdateProjectTaskStatus:
		r.applyTaskStatus(a)
	case core.ActionOpenTaskStatusDropdown:
		if agent := r.lookup(a); agent != nil {
			r.state.TaskDropdownOpen = true
			r.state.TaskStatusOptions = nil
			r.effects.LoadStatusOptions(agent)
		}
	case core.ActionTaskStatusOptionsLoaded:
		if r.state.TaskDropdownOpen {
			r.state.TaskStatusOptions = a.StatusOptions
		}

	case core.ActionSetNote:
		if agent := r.lookup(a); agent != nil {
			agent.CustomNote = a.Input
			r.requestSave()
		}
	case core.ActionToggleContinue:
		if agent := r.lookup(a); agent != nil {
			agent.ContinueSession = !agent.ContinueSession
			r.requestSave()
		}

	case core.ActionMergeMain:
		if agent := r.lookup(a); agent != nil {
			r.effects.MergeMain(agent)
		}
	case core.ActionFetchRemote:
		if agent := r.lookup(a); agent != nil {
			r.effects.FetchRemote(agent)
		}

	case core.ActionEnterInputMode:
		r.state.InputMode = a.Mode
		r.state.InputText = ""
		r.state.InputError = ""
	case core.ActionExitInputMode:
		r.state.InputMode = core.InputModeNone
		r.state.InputText = ""
		r.state.InputError = ""
		r.state.TaskDropdownOpen = false
	case core.ActionUpdateInput:
		r.state.InputText = a.Input
		r.state.InputError = ""
	case core.ActionSubmitInput:
		r.applySubmitInput()

	case core.ActionTick:
		r.state.TickCount++
	case core.ActionRefreshAll:
		r.effects.ForceRefresh()
		r.log(core.LogLevelInfo, "refreshing everything")
	case core.ActionToast:
		r.applyToast(a)
	case core.ActionQuit:
		r.effects.Quit()

	default:
		r.logger.Debug("unhandled action", "kind", string(a.Kind))
	}
}

func (r *Reducer) moveSelection(delta int) {
	n := len(r.state.Agents)
	if n == 0 {
		return
	}
	idx := r.state.SelectedIndex + delta
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	r.state.SelectedIndex = idx
}

// lookup resolves the action's agent, logging a miss at Debug: late
// refreshes for deleted agents are expected and must be silent no-ops.
func (r *Reducer) lookup(a core.Action) *core.Agent {
	agent := r.state.FindAgent(a.AgentID)
	if agent == nil {
		r.logger.Debug("action for unknown agent",
			"kind", string(a.Kind), "agent", a.AgentID.String())
	}
	return agent
}

func (r *Reducer) applyCreateAgent(a core.Action) {
	name := strings.TrimSpace(a.Name)
	branch := strings.TrimSpace(a.Branch)
	if name == "" || branch == "" {
		r.state.InputError = "name and branch are required"
		return
	}
	r.effects.CreateAgent(name, branch, a.TaskRef)
	r.log(core.LogLevelInfo, "creating agent "+name+" on "+branch)
}

func (r *Reducer) applyAgentCreated(a core.Action) {
	if a.Agent == nil {
		return
	}
	r.state.AddAgent(a.Agent)
	r.state.SelectedIndex = len(r.state.Agents) - 1
	r.log(core.LogLevelInfo, "agent "+a.Agent.Name+" ready")
	r.requestSave()
	r.publishViews()
}

func (r *Reducer) applyDeleteAgent(a core.Action) {
	agent := r.lookup(a)
	if agent == nil {
		return
	}
	r.state.RemoveAgent(agent.ID)
	r.effects.DeleteAgent(agent)
	r.effects.Forget(agent.ID)
	r.log(core.LogLevelInfo, "deleting agent "+agent.Name)
	r.requestSave()
	r.publishViews()
}

func (r *Reducer) applyStatus(a core.Action) {
	agent := r.lookup(a)
	if agent == nil {
		return
	}
	previous := agent.Status.Kind
	reason := a.StatusReason
	if !r.debug {
		reason = nil
	}
	agent.SetStatus(a.Status, reason)
	if previous != a.Status.Kind && a.Status.Kind == core.StatusError {
		r.log(core.LogLevelWarn, agent.Name+": "+a.Status.Label())
	}
}

func (r *Reducer) applyTaskAssigned(a core.Action) {
	agent := r.lookup(a)
	if agent == nil {
		return
	}
	agent.PmTaskLink = a.Link
	r.log(core.LogLevelInfo, "linked task "+a.Link.FormatShort()+" to "+agent.Name)
	r.requestSave()
	r.publishViews()
}

func (r *Reducer) applyTaskStatus(a core.Action) {
	agent := r.lookup(a)
	if agent == nil {
		return
	}
	payload := agent.PmTaskLink.Payload()
	if payload == nil {
		return
	}
	payload.StatusName = a.NewStatusValue
	if isCompletedStatus(a.NewStatusValue) {
		payload.URL = ""
	}
	r.requestSave()
}

func isCompletedStatus(status string) bool {
	s := strings.ToLower(status)
	return strings.Contains(s, "done") || strings.Contains(s, "complete") || strings.Contains(s, "closed")
}

func (r *Reducer) applySubmitInput() {
	input := strings.TrimSpace(r.state.InputText)
	mode := r.state.InputMode

	switch mode {
	case core.InputModeNewAgent:
		name, branch, err := parseNewAgentInput(input)
		if err != "" {
			r.state.InputError = err
			return
		}
		r.state.InputMode = core.InputModeNone
		r.state.InputText = ""
		r.Apply(core.Action{Kind: core.ActionCreateAgent, Name: name, Branch: branch})
	case core.InputModeNote:
		agent := r.state.SelectedAgent()
		r.state.InputMode = core.InputModeNone
		r.state.InputText = ""
		if agent != nil {
			r.Apply(core.Action{Kind: core.ActionSetNote, AgentID: agent.ID, Input: input})
		}
	case core.InputModeAssignTask:
		if input == "" {
			r.state.InputError = "task id or url required"
			return
		}
		agent := r.state.SelectedAgent()
		r.state.InputMode = core.InputModeNone
		r.state.InputText = ""
		if agent != nil {
			r.Apply(core.Action{Kind: core.ActionAssignProjectTask, AgentID: agent.ID, TaskRefOrID: input})
		}
	default:
		r.state.InputMode = core.InputModeNone
		r.state.InputText = ""
	}
}

// parseNewAgentInput splits "name [branch]"; with one token the branch is
// derived from the name by the branch sanitizer at creation time.
func parseNewAgentInput(input string) (name, branch, errMsg string) {
	if input == "" {
		return "", "", "agent name required"
	}
	fields := strings.Fields(input)
	name = fields[0]
	if len(fields) > 1 {
		branch = fields[1]
	} else {
		branch = name
	}
	return name, branch, ""
}

func (r *Reducer) applyToast(a core.Action) {
	level := a.Level
	if level == "" {
		level = core.LogLevelError
	}
	r.state.ErrorMessage = a.Message
	r.log(level, a.Message)
}

func (r *Reducer) log(level core.LogLevel, message string) {
	r.state.AppendLog(level, message)
	switch level {
	case core.LogLevelWarn:
		r.logger.Warn(message)
	case core.LogLevelError:
		r.logger.Error(message)
	default:
		r.logger.Info(message)
	}
}

// requestSave republishes the snapshot before scheduling the save, so the
// debounced background write always has a copy at least as fresh as the
// mutation that triggered it.
func (r *Reducer) requestSave() {
	r.publishSnapshot()
	r.effects.RequestSave()
}

func (r *Reducer) publishViews() {
	views := r.state.Views()
	r.views.Store(views)
	r.effects.PublishViews(views)
}

func (r *Reducer) publishSnapshot() {
	r.snap.Store(r.state.SnapshotCopy(r.repoPath))
}
