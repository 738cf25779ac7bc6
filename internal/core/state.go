package core

import "time"

// GitSyncStatus is the per-agent worktree divergence snapshot, recomputed
// every git-refresh tick (spec §3, §4.2).
type GitSyncStatus struct {
	Ahead              int  `json:"ahead"`
	Behind             int  `json:"behind"`
	DivergenceFromMain int  `json:"divergence_from_main"`
	IsClean            bool `json:"is_clean"`
	IsSynced           bool `json:"is_synced"`
}

// InputMode names the kind of modal text input the reducer is currently
// accepting, or "" when no input mode is active.
type InputMode string

const (
	InputModeNone       InputMode = ""
	InputModeNewAgent   InputMode = "new_agent"
	InputModeNote       InputMode = "note"
	InputModeAssignTask InputMode = "assign_task"
	InputModeSettings   InputMode = "settings"
)

// LogLevel tags one entry in the bounded log ring.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogEntry is one line in AppState's bounded log ring.
type LogEntry struct {
	Time    time.Time
	Level   LogLevel
	Message string
}

// Bounded ring capacities pinned by spec §3/§8.
const (
	LogRingCap    = 100
	MetricsRingCap = 60
)

// MetricSample is one CPU/memory observation taken on the global sampling tick.
type MetricSample struct {
	Time       time.Time
	CPUPercent float64
	MemPercent float64
}

// AppState is the reducer's exclusive, single-writer application state.
// Nothing outside the reducer goroutine may mutate it; workers only ever
// observe a point-in-time value handed to them at tick dispatch.
type AppState struct {
	Agents        []*Agent
	AgentsByID    map[AgentID]*Agent
	SelectedIndex int

	InputMode  InputMode
	InputText  string
	InputError string

	ErrorMessage string
	TickCount    uint64

	Logs    []LogEntry
	Metrics []MetricSample

	SettingsWizardOpen bool

	TaskDropdownOpen  bool
	TaskStatusOptions []StatusOption
}

// NewAppState returns an empty, ready-to-use AppState.
func NewAppState() *AppState {
	return &AppState{
		AgentsByID: make(map[AgentID]*Agent),
	}
}

// SelectedAgent returns the currently selected agent, or nil if the list is
// empty. Per spec §8: returns non-nil iff the agent list is non-empty.
func (s *AppState) SelectedAgent() *Agent {
	if len(s.Agents) == 0 {
		return nil
	}
	if s.SelectedIndex < 0 || s.SelectedIndex >= len(s.Agents) {
		s.SelectedIndex = 0
	}
	return s.Agents[s.SelectedIndex]
}

// AppendLog pushes a log entry, dropping the oldest on overflow.
func (s *AppState) AppendLog(level LogLevel, message string) {
	s.Logs = append(s.Logs, LogEntry{Time: time.Now(), Level: level, Message: message})
	if len(s.Logs) > LogRingCap {
		s.Logs = s.Logs[len(s.Logs)-LogRingCap:]
	}
}

// AppendMetric pushes a CPU/memory sample, dropping the oldest on overflow.
func (s *AppState) AppendMetric(sample MetricSample) {
	s.Metrics = append(s.Metrics, sample)
	if len(s.Metrics) > MetricsRingCap {
		s.Metrics = s.Metrics[len(s.Metrics)-MetricsRingCap:]
	}
}

// AddAgent inserts an agent at the end of the ordered list (insertion order,
// per spec §3) and indexes it by id.
func (s *AppState) AddAgent(a *Agent) {
	s.Agents = append(s.Agents, a)
	s.AgentsByID[a.ID] = a
}

// RemoveAgent deletes an agent from both the ordered list and the index,
// clamping SelectedIndex back into range.
func (s *AppState) RemoveAgent(id AgentID) {
	if _, ok := s.AgentsByID[id]; !ok {
		return
	}
	delete(s.AgentsByID, id)
	for i, a := range s.Agents {
		if a.ID == id {
			s.Agents = append(s.Agents[:i], s.Agents[i+1:]...)
			break
		}
	}
	if s.SelectedIndex >= len(s.Agents) && s.SelectedIndex > 0 {
		s.SelectedIndex = len(s.Agents) - 1
	}
}

// FindAgent looks up an agent by id, returning nil (never an error) when
// absent — callers (refresh-result handlers) treat a miss as a silent no-op.
func (s *AppState) FindAgent(id AgentID) *Agent {
	return s.AgentsByID[id]
}

// AgentView is the immutable-per-tick slice of an agent the scheduler reads
// when deciding what to refresh. The reducer republishes views after every
// mutation; workers never touch the live Agent.
type AgentView struct {
	ID           AgentID
	SessionName  string
	WorktreePath string
	Branch       string
	TaskLink     PmTaskLink
}

// Views renders the per-tick snapshot of all agents.
func (s *AppState) Views() []AgentView {
	views := make([]AgentView, 0, len(s.Agents))
	for _, a := range s.Agents {
		views = append(views, AgentView{
			ID:           a.ID,
			SessionName:  a.MultiplexerName,
			WorktreePath: a.WorktreePath,
			Branch:       a.Branch,
			TaskLink:     a.PmTaskLink,
		})
	}
	return views
}

// SessionSnapshot is the persisted-on-disk view of one repository's agents
// (spec §4.8). Transient agent fields carry `json:"-"` tags on Agent itself,
// so marshalling a snapshot naturally omits them.
type SessionSnapshot struct {
	RepoPath      string   `json:"repo_path"`
	Agents        []*Agent `json:"agents"`
	SelectedIndex int      `json:"selected_index"`
}

// Snapshot assembles the persistable view of the current state. The
// returned snapshot aliases the live agent slice and pointers, so it may
// only be used where no concurrent mutation is possible (after the reducer
// loop has stopped); anywhere else, use SnapshotCopy.
func (s *AppState) Snapshot(repoPath string) *SessionSnapshot {
	return &SessionSnapshot{
		RepoPath:      repoPath,
		Agents:        s.Agents,
		SelectedIndex: s.SelectedIndex,
	}
}

// SnapshotCopy assembles a deep-copied, immutable snapshot that a
// background save can marshal while the reducer keeps mutating the live
// state. Must be called on the reducer goroutine.
func (s *AppState) SnapshotCopy(repoPath string) *SessionSnapshot {
	agents := make([]*Agent, 0, len(s.Agents))
	for _, a := range s.Agents {
		agents = append(agents, a.Clone())
	}
	return &SessionSnapshot{
		RepoPath:      repoPath,
		Agents:        agents,
		SelectedIndex: s.SelectedIndex,
	}
}

// Restore replaces the agent list with a loaded snapshot: agents keep their
// persisted order, each is re-indexed by id and legacy-migrated, and the
// selected index is clamped back into range.
func (s *AppState) Restore(snap *SessionSnapshot) {
	s.Agents = nil
	s.AgentsByID = make(map[AgentID]*Agent)
	if snap == nil {
		s.SelectedIndex = 0
		return
	}
	for _, a := range snap.Agents {
		if a == nil {
			continue
		}
		a.MigrateLegacy()
		s.AddAgent(a)
	}
	s.SelectedIndex = snap.SelectedIndex
	if s.SelectedIndex < 0 || s.SelectedIndex >= len(s.Agents) {
		s.SelectedIndex = 0
	}
}
