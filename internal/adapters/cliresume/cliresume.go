// Package cliresume finds a resumable prior session for a coding-agent CLI
// given the worktree directory it ran in. Each supported CLI keeps its own
// session store (Codex: a SQLite state db; Gemini: projects.json plus a
// --list-sessions command; OpenCode: its own db CLI); flock only ever reads
// them. A lookup that fails for any reason degrades to "no session found" —
// the agent then launches fresh, which is always safe.
package cliresume

import (
	"context"

	"github.com/flock-cli/flock/internal/core"
)

// FindSessionID returns the most recent resumable session id the given
// agent CLI recorded for worktreePath, or "" when none is known. Claude
// Code needs no id (its --continue flag resumes by directory), so it always
// returns "".
func FindSessionID(ctx context.Context, agentKind, worktreePath string) string {
	switch agentKind {
	case core.AgentCodex:
		return codexSessionForDir(worktreePath)
	case core.AgentGemini:
		return geminiSessionForDir(ctx, worktreePath)
	case core.AgentOpenCode:
		return opencodeSessionForDir(ctx, worktreePath)
	default:
		return ""
	}
}
