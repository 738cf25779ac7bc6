// Package core provides the shared domain types for flock: the agent model,
// action messages, state snapshot, and typed errors. All other packages
// import from here so the vocabulary of "agent", "action" and "status"
// stays consistent across the adapters, scheduler and reducer.
package core

// Agent CLI identifiers.
const (
	AgentClaude   = "claude"
	AgentGemini   = "gemini"
	AgentCodex    = "codex"
	AgentCopilot  = "copilot"
	AgentOpenCode = "opencode"
	AgentAider    = "aider"
)

// Agents is the ordered list of all supported coding-agent CLIs.
var Agents = []string{
	AgentClaude,
	AgentGemini,
	AgentCodex,
	AgentCopilot,
	AgentOpenCode,
	AgentAider,
}

// ValidAgents is a map for O(1) agent-kind validation.
var ValidAgents = map[string]bool{
	AgentClaude:   true,
	AgentGemini:   true,
	AgentCodex:    true,
	AgentCopilot:  true,
	AgentOpenCode: true,
	AgentAider:    true,
}

// IsValidAgent checks if the given agent kind is recognized.
func IsValidAgent(agent string) bool {
	return ValidAgents[agent]
}

// AgentsWithResume lists agent kinds whose CLI supports resuming a prior
// session by id, rather than always starting a fresh conversation.
var AgentsWithResume = []string{AgentClaude, AgentCodex, AgentGemini, AgentOpenCode}

// SupportsResume checks if an agent kind supports --resume-style launch.
func SupportsResume(agent string) bool {
	for _, a := range AgentsWithResume {
		if a == agent {
			return true
		}
	}
	return false
}

// Log levels.
const (
	LogDebug = "debug"
	LogInfo  = "info"
	LogWarn  = "warn"
	LogError = "error"
)

// LogLevels is the ordered list of log levels.
var LogLevels = []string{LogDebug, LogInfo, LogWarn, LogError}

// Log formats.
const (
	LogFormatAuto = "auto"
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// LogFormats is the ordered list of log formats.
var LogFormats = []string{LogFormatAuto, LogFormatText, LogFormatJSON}

// State backends for the agent session store.
const (
	StateBackendJSON   = "json"
	StateBackendSQLite = "sqlite"
)

// StateBackends is the ordered list of session-store backends.
var StateBackends = []string{StateBackendJSON, StateBackendSQLite}

// Multiplexer backends.
const (
	MultiplexerTmux   = "tmux"
	MultiplexerZellij = "zellij"
)

// Multiplexers is the ordered list of supported terminal multiplexers.
var Multiplexers = []string{MultiplexerTmux, MultiplexerZellij}

// Merge strategies used when integrating a worktree's branch into main.
const (
	MergeStrategyMerge  = "merge"
	MergeStrategySquash = "squash"
	MergeStrategyRebase = "rebase"
)

// MergeStrategies is the ordered list of merge strategies.
var MergeStrategies = []string{MergeStrategyMerge, MergeStrategySquash, MergeStrategyRebase}

// Forge providers (git hosting, used for PR lifecycle).
const (
	ForgeGitHub   = "github"
	ForgeGitLab   = "gitlab"
	ForgeCodeberg = "codeberg"
)

// Forges is the ordered list of supported git forges.
var Forges = []string{ForgeGitHub, ForgeGitLab, ForgeCodeberg}

// Project-management providers.
const (
	PMAsana    = "asana"
	PMNotion   = "notion"
	PMClickUp  = "clickup"
	PMAirtable = "airtable"
	PMLinear   = "linear"
)

// PMProviders is the ordered list of supported project-management tools.
var PMProviders = []string{PMAsana, PMNotion, PMClickUp, PMAirtable, PMLinear}
