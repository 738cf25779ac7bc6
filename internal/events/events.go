package events

import "github.com/flock-cli/flock/internal/core"

// Event type names.
const (
	TypeStateUpdated   = "state_updated"
	TypeAgentCreated   = "agent_created"
	TypeAgentDeleted   = "agent_deleted"
	TypeStatusChanged  = "status_changed"
	TypeToast          = "toast"
	TypeConfigReloaded = "config_reloaded"
	TypeQuit           = "quit"
)

// StateUpdated signals the render shell that AppState changed and a redraw
// is due. It carries no payload: the shell reads the state it already holds.
type StateUpdated struct {
	BaseEvent
}

// NewStateUpdated builds a redraw signal.
func NewStateUpdated() StateUpdated {
	return StateUpdated{BaseEvent: NewBaseEvent(TypeStateUpdated)}
}

// AgentCreated announces a new agent.
type AgentCreated struct {
	BaseEvent
	AgentID core.AgentID
	Name    string
	Branch  string
}

// NewAgentCreated builds the lifecycle event.
func NewAgentCreated(id core.AgentID, name, branch string) AgentCreated {
	return AgentCreated{BaseEvent: NewBaseEvent(TypeAgentCreated), AgentID: id, Name: name, Branch: branch}
}

// AgentDeleted announces an agent teardown.
type AgentDeleted struct {
	BaseEvent
	AgentID core.AgentID
	Name    string
}

// NewAgentDeleted builds the lifecycle event.
func NewAgentDeleted(id core.AgentID, name string) AgentDeleted {
	return AgentDeleted{BaseEvent: NewBaseEvent(TypeAgentDeleted), AgentID: id, Name: name}
}

// StatusChanged announces a detected agent-status transition.
type StatusChanged struct {
	BaseEvent
	AgentID core.AgentID
	From    core.AgentStatusKind
	To      core.AgentStatusKind
}

// NewStatusChanged builds the transition event.
func NewStatusChanged(id core.AgentID, from, to core.AgentStatusKind) StatusChanged {
	return StatusChanged{BaseEvent: NewBaseEvent(TypeStatusChanged), AgentID: id, From: from, To: to}
}

// Toast is a user-facing notification; always delivered via priority
// subscriptions so one is never dropped.
type Toast struct {
	BaseEvent
	Level   core.LogLevel
	Message string
}

// NewToast builds a toast.
func NewToast(level core.LogLevel, message string) Toast {
	return Toast{BaseEvent: NewBaseEvent(TypeToast), Level: level, Message: message}
}

// ConfigReloaded announces a live configuration change.
type ConfigReloaded struct {
	BaseEvent
}

// NewConfigReloaded builds the event.
func NewConfigReloaded() ConfigReloaded {
	return ConfigReloaded{BaseEvent: NewBaseEvent(TypeConfigReloaded)}
}

// Quit asks the render shell to exit.
type Quit struct {
	BaseEvent
}

// NewQuit builds the event.
func NewQuit() Quit {
	return Quit{BaseEvent: NewBaseEvent(TypeQuit)}
}
