package core

import (
	"fmt"
	"strings"
	"time"
)

// AgentStatusKind is the tag of the AgentStatus sum type.
type AgentStatusKind string

const (
	StatusRunning       AgentStatusKind = "running"
	StatusAwaitingInput AgentStatusKind = "awaiting_input"
	StatusCompleted     AgentStatusKind = "completed"
	StatusIdle          AgentStatusKind = "idle"
	StatusError         AgentStatusKind = "error"
	StatusStopped       AgentStatusKind = "stopped"
	StatusPaused        AgentStatusKind = "paused"
)

// AgentStatus is a tagged variant: every kind except Error carries no payload,
// Error carries a message. Compare by Kind, not by the zero value, since the
// Message field is only meaningful when Kind == StatusError.
type AgentStatus struct {
	Kind    AgentStatusKind `json:"kind"`
	Message string          `json:"message,omitempty"`
}

// Idle is the default status for a freshly created agent record.
func Idle() AgentStatus { return AgentStatus{Kind: StatusIdle} }

// Stopped is the status assigned right after create_agent, before the first tick.
func Stopped() AgentStatus { return AgentStatus{Kind: StatusStopped} }

// NewError builds an Error(msg) status.
func NewError(msg string) AgentStatus { return AgentStatus{Kind: StatusError, Message: msg} }

// Symbol returns the single-glyph indicator historically shown next to an agent row.
func (s AgentStatus) Symbol() string {
	switch s.Kind {
	case StatusRunning:
		return "●"
	case StatusAwaitingInput:
		return "⚠"
	case StatusCompleted:
		return "✓"
	case StatusIdle:
		return "○"
	case StatusError:
		return "✗"
	case StatusStopped:
		return "○"
	case StatusPaused:
		return "⏸"
	default:
		return "?"
	}
}

// Label returns a human-readable label for the status.
func (s AgentStatus) Label() string {
	switch s.Kind {
	case StatusAwaitingInput:
		return "Awaiting input"
	case StatusError:
		if s.Message != "" {
			return fmt.Sprintf("Error: %s", s.Message)
		}
		return "Error"
	default:
		return string(s.Kind)
	}
}

// StatusReason explains the most recent status transition. It is retained
// only for the latest transition and is never persisted to disk.
type StatusReason struct {
	Status    AgentStatusKind
	Reason    string
	Pattern   string
	Timestamp time.Time
}

// Agent is the primary entity, owned exclusively by the reducer.
type Agent struct {
	ID              AgentID     `json:"id"`
	Name            string      `json:"name"`
	Branch          string      `json:"branch"`
	WorktreePath    string      `json:"worktree_path"`
	MultiplexerName string      `json:"tmux_session"`
	Status          AgentStatus `json:"status"`
	CustomNote      string      `json:"custom_note,omitempty"`
	OutputBuffer    []string    `json:"output_buffer"`
	CreatedAt       time.Time   `json:"created_at"`
	LastActivity    time.Time   `json:"last_activity"`

	// AsanaTaskStatus is the deprecated single-provider field, kept only so
	// MigrateLegacy can fold it into PmTaskLink on load.
	AsanaTaskStatus *AsanaStatusPayload `json:"asana_task_status,omitempty"`
	PmTaskLink      PmTaskLink          `json:"pm_task_status"`
	SummaryRequested bool       `json:"summary_requested"`
	ContinueSession  bool       `json:"continue_session"`

	// Transient fields: never serialized, rebuilt by the next refresh tick.
	GitStatus          GitSyncStatus `json:"-"`
	ForgeStatus        *ForgeStatus  `json:"-"`
	ActivityHistory    []bool        `json:"-"`
	ChecklistDone      int           `json:"-"`
	ChecklistTotal     int           `json:"-"`
	HasChecklist       bool          `json:"-"`
	LastStatusReason   *StatusReason `json:"-"`
}

// ActivityHistoryCap bounds the activity-history ring (spec §3: N = 20).
const ActivityHistoryCap = 20

// OutputBufferDefaultCap bounds the pane-output ring kept on the agent.
const OutputBufferDefaultCap = 500

// NewAgent constructs a fresh Agent: a random id, the derived session name,
// and Stopped status (the next refresh tick decides the real status).
func NewAgent(name, branch, worktreePath string) *Agent {
	id := NewAgentID()
	now := time.Now()
	return &Agent{
		ID:              id,
		Name:            name,
		Branch:          branch,
		WorktreePath:    worktreePath,
		MultiplexerName: id.SessionName(),
		Status:          Stopped(),
		PmTaskLink:      PmTaskLink{Kind: PmNone},
		CreatedAt:       now,
		LastActivity:    now,
	}
}

// Clone returns a deep copy of the agent: shared slices are reallocated and
// pointer payloads duplicated, so the copy can be read (or marshalled) off
// the reducer goroutine while the original keeps mutating.
func (a *Agent) Clone() *Agent {
	clone := *a
	clone.OutputBuffer = append([]string(nil), a.OutputBuffer...)
	clone.ActivityHistory = append([]bool(nil), a.ActivityHistory...)
	if a.AsanaTaskStatus != nil {
		payload := *a.AsanaTaskStatus
		clone.AsanaTaskStatus = &payload
	}
	clone.PmTaskLink = a.PmTaskLink.Clone()
	if a.ForgeStatus != nil {
		status := *a.ForgeStatus
		clone.ForgeStatus = &status
	}
	if a.LastStatusReason != nil {
		reason := *a.LastStatusReason
		clone.LastStatusReason = &reason
	}
	return &clone
}

// MigrateLegacy copies the deprecated AsanaTaskStatus into the PmTaskLink
// Asana variant when the link is unset. Idempotent: a no-op once migrated.
func (a *Agent) MigrateLegacy() {
	if a.AsanaTaskStatus == nil || a.PmTaskLink.Kind != PmNone {
		return
	}
	a.PmTaskLink = PmTaskLink{Kind: PmAsana, Asana: a.AsanaTaskStatus}
}

// RecordActivity appends one tick's activity bit to the bounded ring,
// dropping the oldest entry on overflow, and bumps LastActivity when true.
func (a *Agent) RecordActivity(hadActivity bool) {
	a.ActivityHistory = append(a.ActivityHistory, hadActivity)
	if len(a.ActivityHistory) > ActivityHistoryCap {
		a.ActivityHistory = a.ActivityHistory[len(a.ActivityHistory)-ActivityHistoryCap:]
	}
	if hadActivity {
		a.LastActivity = time.Now()
	}
}

// UpdateOutput appends a line to the output buffer, dropping the oldest
// lines from the front once the buffer exceeds maxLines.
func (a *Agent) UpdateOutput(line string, maxLines int) {
	a.OutputBuffer = append(a.OutputBuffer, line)
	if maxLines <= 0 {
		maxLines = OutputBufferDefaultCap
	}
	if len(a.OutputBuffer) > maxLines {
		a.OutputBuffer = a.OutputBuffer[len(a.OutputBuffer)-maxLines:]
	}
}

// SetOutput replaces the output buffer with a fresh pane capture, keeping
// only the last maxLines lines.
func (a *Agent) SetOutput(text string, maxLines int) {
	if maxLines <= 0 {
		maxLines = OutputBufferDefaultCap
	}
	if text == "" {
		a.OutputBuffer = nil
		return
	}
	lines := strings.Split(text, "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	a.OutputBuffer = lines
}

// SetStatus transitions the agent's status and records the transition reason
// when one is supplied (debug-mode detector output).
func (a *Agent) SetStatus(status AgentStatus, reason *StatusReason) {
	a.Status = status
	a.LastStatusReason = reason
}

// TimeSinceActivity renders LastActivity as a short relative duration
// ("3s", "4m", "2h", "1d"), matching the compact sparkline-adjacent label.
func (a *Agent) TimeSinceActivity(now time.Time) string {
	d := now.Sub(a.LastActivity)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
