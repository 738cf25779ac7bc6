package core

// ActionKind is the tag of the Action sum type consumed by the reducer.
type ActionKind string

const (
	// Selection
	ActionSelectNext  ActionKind = "select_next"
	ActionSelectPrev  ActionKind = "select_prev"
	ActionSelectFirst ActionKind = "select_first"
	ActionSelectLast  ActionKind = "select_last"

	// Lifecycle
	ActionCreateAgent  ActionKind = "create_agent"
	ActionDeleteAgent  ActionKind = "delete_agent"
	ActionAttachAgent  ActionKind = "attach_agent"
	ActionRestartAgent ActionKind = "restart_agent"

	// Observation
	ActionUpdateAgentStatus      ActionKind = "update_agent_status"
	ActionUpdateAgentOutput      ActionKind = "update_agent_output"
	ActionRecordActivity         ActionKind = "record_activity"
	ActionUpdateChecklist        ActionKind = "update_checklist_progress"
	ActionUpdateGitStatus        ActionKind = "update_git_status"
	ActionUpdateForgeStatus      ActionKind = "update_forge_status"
	ActionSampleMetrics          ActionKind = "sample_metrics"

	// PM integration
	ActionAssignProjectTask      ActionKind = "assign_project_task"
	ActionUpdateProjectTaskStatus ActionKind = "update_project_task_status"
	ActionOpenTaskStatusDropdown ActionKind = "open_task_status_dropdown"
	ActionTaskStatusOptionsLoaded ActionKind = "task_status_options_loaded"

	// Input
	ActionEnterInputMode ActionKind = "enter_input_mode"
	ActionExitInputMode  ActionKind = "exit_input_mode"
	ActionUpdateInput    ActionKind = "update_input"
	ActionSubmitInput    ActionKind = "submit_input"

	// Timing
	ActionTick       ActionKind = "tick"
	ActionRefreshAll ActionKind = "refresh_all"
	ActionQuit       ActionKind = "quit"

	// Follow-up completions posted by background tasks
	ActionAgentCreated ActionKind = "agent_created"
	ActionTaskAssigned ActionKind = "task_assigned"
	ActionToast        ActionKind = "toast"

	// Misc agent edits
	ActionSetNote          ActionKind = "set_note"
	ActionToggleContinue   ActionKind = "toggle_continue_session"
	ActionMergeMain        ActionKind = "merge_main"
	ActionFetchRemote      ActionKind = "fetch_remote"
)

// Action is a tagged message the reducer applies to AppState. Only the
// fields relevant to Kind are populated; the reducer's Apply switch is the
// single place that interprets which fields matter for which kind.
type Action struct {
	Kind ActionKind

	AgentID AgentID

	// CreateAgent
	Name   string
	Branch string
	TaskRef string // optional PM task id/url to link on creation

	// Observation payloads
	Status          AgentStatus
	StatusReason    *StatusReason
	OutputLine      string
	HadActivity     bool
	ChecklistDone   int
	ChecklistTotal  int
	HasChecklist    bool
	GitStatus       GitSyncStatus
	ForgeStatus     *ForgeStatus
	MetricSample    MetricSample

	// PM integration payloads
	TaskRefOrID    string
	NewStatusValue string
	StatusOptions  []StatusOption

	// Input payloads
	Mode  InputMode
	Input string

	// Follow-up payloads
	Agent   *Agent
	Link    PmTaskLink
	Level   LogLevel
	Message string

	// Error propagation: a background task that failed sets this instead of
	// (or alongside) the above, so the reducer can log/toast per §7 policy
	// without the action carrying a typed Go error across the channel.
	Err error

	// Ack, when set, is called by the reducer once the action has been
	// applied. The scheduler uses it to release the per-category in-flight
	// slot, so a refresh category whose last result the reducer has not yet
	// absorbed emits nothing new.
	Ack func() `json:"-"`
}
