// Package cli describes the coding-agent CLIs flock can drive inside a
// multiplexer session: how to launch each one, how to recognize its
// foreground process, and what to send when asking it to push its work.
// The multiplexer owns the PTY; this package never execs an agent itself.
package cli

import (
	"strings"

	"github.com/flock-cli/flock/internal/core"
)

// AgentCLI is the static launch profile for one supported coding agent.
type AgentCLI struct {
	Kind        string
	DisplayName string

	// Command is the bare launch command sent as the session's first input.
	Command string

	// ResumeFlag, when non-empty, turns "cmd" into "cmd <flag> <id>" for a
	// resumable session; ResumeLast is used when no session id is known.
	ResumeFlag string
	ResumeLast string

	// PushCommand is an in-app slash command that asks the agent to commit
	// and push; PushPrompt is the plain-prompt fallback for CLIs without one.
	PushCommand string
	PushPrompt  string

	// ProcessNames are the foreground process names this CLI may report,
	// used to disambiguate Running from AwaitingInput.
	ProcessNames []string
}

// registry holds every supported agent CLI, keyed by core agent kind.
var registry = map[string]AgentCLI{
	core.AgentClaude: {
		Kind:         core.AgentClaude,
		DisplayName:  "Claude Code",
		Command:      "claude",
		ResumeFlag:   "--resume",
		ResumeLast:   "claude --continue",
		PushCommand:  "/push",
		ProcessNames: []string{"node", "claude", "npx"},
	},
	core.AgentOpenCode: {
		Kind:         core.AgentOpenCode,
		DisplayName:  "Opencode",
		Command:      "opencode",
		ResumeFlag:   "--session",
		ResumeLast:   "opencode --continue",
		PushPrompt:   "Review the changes, then commit and push them to the remote branch.",
		ProcessNames: []string{"node", "opencode", "npx"},
	},
	core.AgentCodex: {
		Kind:         core.AgentCodex,
		DisplayName:  "Codex",
		Command:      "codex",
		ResumeFlag:   "resume",
		ResumeLast:   "codex resume --last",
		PushPrompt:   "Please commit and push these changes",
		ProcessNames: []string{"codex"},
	},
	core.AgentGemini: {
		Kind:         core.AgentGemini,
		DisplayName:  "Gemini",
		Command:      "gemini",
		ResumeFlag:   "--resume",
		PushPrompt:   "Please commit and push these changes",
		ProcessNames: []string{"node", "gemini"},
	},
	core.AgentCopilot: {
		Kind:         core.AgentCopilot,
		DisplayName:  "Copilot CLI",
		Command:      "copilot",
		ResumeFlag:   "--resume",
		ResumeLast:   "copilot --continue",
		PushPrompt:   "Please commit and push these changes",
		ProcessNames: []string{"node", "copilot"},
	},
	core.AgentAider: {
		Kind:         core.AgentAider,
		DisplayName:  "Aider",
		Command:      "aider",
		PushPrompt:   "/commit",
		ProcessNames: []string{"python", "aider"},
	},
}

// Lookup returns the profile for an agent kind; ok is false for unknown kinds.
func Lookup(kind string) (AgentCLI, bool) {
	c, ok := registry[kind]
	return c, ok
}

// Default is the profile used when the config names no agent.
func Default() AgentCLI {
	return registry[core.AgentClaude]
}

// All returns every registered profile in core.Agents order.
func All() []AgentCLI {
	out := make([]AgentCLI, 0, len(registry))
	for _, kind := range core.Agents {
		if c, ok := registry[kind]; ok {
			out = append(out, c)
		}
	}
	return out
}

// LaunchCommand assembles the command line sent as the session's first
// input. extraArgs come from per-repo config (model flags, permission
// modes) and are appended verbatim.
func (c AgentCLI) LaunchCommand(extraArgs []string) string {
	parts := append([]string{c.Command}, extraArgs...)
	return strings.Join(parts, " ")
}

// ResumeCommand assembles the launch command for a resumed session. With a
// known session id the ResumeFlag form is used; without one, ResumeLast
// (falling back to a fresh launch for CLIs that cannot resume blind).
func (c AgentCLI) ResumeCommand(sessionID string, extraArgs []string) string {
	base := c.Command
	switch {
	case sessionID != "" && c.ResumeFlag != "":
		base = c.Command + " " + c.ResumeFlag + " " + sessionID
	case c.ResumeLast != "":
		base = c.ResumeLast
	}
	if len(extraArgs) == 0 {
		return base
	}
	return base + " " + strings.Join(extraArgs, " ")
}

// SupportsResume reports whether this CLI can pick up a prior session.
func (c AgentCLI) SupportsResume() bool {
	return c.ResumeFlag != "" || c.ResumeLast != ""
}

// IsAgentProcess reports whether a pane's foreground command belongs to
// this CLI rather than a shell it dropped back to.
func (c AgentCLI) IsAgentProcess(command string) bool {
	command = strings.ToLower(strings.TrimSpace(command))
	if command == "" {
		return false
	}
	for _, name := range c.ProcessNames {
		if command == name {
			return true
		}
	}
	return false
}
