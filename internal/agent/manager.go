// Package agent manages the lifecycle of the (worktree, multiplexer
// session, process) triple behind each agent (M2). Operations here are
// synchronous and may block on git or the multiplexer binary; the scheduler
// invokes them off the reducer goroutine.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/flock-cli/flock/internal/adapters/cli"
	"github.com/flock-cli/flock/internal/adapters/cliresume"
	"github.com/flock-cli/flock/internal/core"
	"github.com/flock-cli/flock/internal/detector"
	"github.com/flock-cli/flock/internal/multiplexer"
)

// restartInterruptDelay is how long a Ctrl-C gets to take effect before the
// relaunch command is typed into the pane.
const restartInterruptDelay = 100 * time.Millisecond

// captureLines is the default pane-capture depth for status detection.
const captureLines = 50

// Worktrees is the slice of the worktree manager the lifecycle needs.
type Worktrees interface {
	Create(ctx context.Context, branch string) (string, error)
	Remove(ctx context.Context, worktreePath string) error
	CreateSymlinks(worktreePath string, relativePaths []string) error
}

// Manager owns agent creation and teardown.
type Manager struct {
	mux       multiplexer.Multiplexer
	worktrees Worktrees
	logger    *slog.Logger
}

// NewManager wires the lifecycle manager. A nil logger discards.
func NewManager(mux multiplexer.Multiplexer, worktrees Worktrees, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{mux: mux, worktrees: worktrees, logger: logger}
}

// CreateOptions tunes agent creation.
type CreateOptions struct {
	// Symlinks are repo-relative paths seeded into the fresh worktree.
	Symlinks []string
	// ExtraArgs are appended to the agent CLI's launch command.
	ExtraArgs []string
	// ContinueSession asks the CLI to resume its prior session for this
	// worktree, when the CLI supports that.
	ContinueSession bool
}

// CreateAgent builds the full triple: worktree, then session, then the
// launch command as the session's first input. The worktree is never rolled
// back on a later failure — re-running is idempotent from step one, and a
// half-created worktree is reusable state, not garbage.
func (m *Manager) CreateAgent(ctx context.Context, name, branch string, agentCLI cli.AgentCLI, opts CreateOptions) (*core.Agent, error) {
	worktreePath, err := m.worktrees.Create(ctx, branch)
	if err != nil {
		return nil, fmt.Errorf("creating worktree: %w", err)
	}

	if len(opts.Symlinks) > 0 {
		if err := m.worktrees.CreateSymlinks(worktreePath, opts.Symlinks); err != nil {
			// Symlinks are recoverable; the agent can run without them.
			m.logger.Warn("seeding worktree symlinks failed",
				"worktree", worktreePath, "error", err)
		}
	}

	a := core.NewAgent(name, branch, worktreePath)
	a.ContinueSession = opts.ContinueSession

	command := m.launchCommand(ctx, a, agentCLI, opts.ExtraArgs)
	if err := m.mux.Create(ctx, a.MultiplexerName, worktreePath, command); err != nil {
		return nil, fmt.Errorf("creating multiplexer session %s: %w", a.MultiplexerName, err)
	}

	m.logger.Info("agent created",
		"agent", a.ID.String(), "branch", branch, "worktree", worktreePath)
	return a, nil
}

func (m *Manager) launchCommand(ctx context.Context, a *core.Agent, agentCLI cli.AgentCLI, extraArgs []string) string {
	if a.ContinueSession && agentCLI.SupportsResume() {
		sessionID := cliresume.FindSessionID(ctx, agentCLI.Kind, a.WorktreePath)
		return agentCLI.ResumeCommand(sessionID, extraArgs)
	}
	return agentCLI.LaunchCommand(extraArgs)
}

// DeleteAgent tears the triple down. Both steps run even if the first
// fails; a session or worktree that is already gone is success.
func (m *Manager) DeleteAgent(ctx context.Context, a *core.Agent) error {
	var errs []error

	if err := m.mux.Kill(ctx, a.MultiplexerName); err != nil {
		errs = append(errs, fmt.Errorf("killing session %s: %w", a.MultiplexerName, err))
	}

	if _, err := os.Stat(a.WorktreePath); err == nil {
		if err := m.worktrees.Remove(ctx, a.WorktreePath); err != nil {
			errs = append(errs, fmt.Errorf("removing worktree %s: %w", a.WorktreePath, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	m.logger.Info("agent deleted", "agent", a.ID.String(), "branch", a.Branch)
	return nil
}

// AttachToAgent hands the terminal to the agent's session, recreating it
// first if it died (machine reboot, external kill).
func (m *Manager) AttachToAgent(ctx context.Context, a *core.Agent, agentCLI cli.AgentCLI, extraArgs []string) error {
	exists, err := m.mux.Exists(ctx, a.MultiplexerName)
	if err != nil {
		return err
	}
	if !exists {
		m.logger.Info("session missing, recreating before attach",
			"agent", a.ID.String(), "session", a.MultiplexerName)
		command := m.launchCommand(ctx, a, agentCLI, extraArgs)
		if err := m.mux.Create(ctx, a.MultiplexerName, a.WorktreePath, command); err != nil {
			return fmt.Errorf("recreating session %s: %w", a.MultiplexerName, err)
		}
	}
	return m.mux.Attach(ctx, a.MultiplexerName)
}

// RestartAgent relaunches the agent CLI inside its session: interrupt
// whatever runs, give it a moment to die, then type the launch command. A
// missing session is simply created.
func (m *Manager) RestartAgent(ctx context.Context, a *core.Agent, agentCLI cli.AgentCLI, extraArgs []string) error {
	exists, err := m.mux.Exists(ctx, a.MultiplexerName)
	if err != nil {
		return err
	}
	command := m.launchCommand(ctx, a, agentCLI, extraArgs)
	if !exists {
		return m.mux.Create(ctx, a.MultiplexerName, a.WorktreePath, command)
	}

	if err := m.mux.Interrupt(ctx, a.MultiplexerName); err != nil {
		return err
	}
	time.Sleep(restartInterruptDelay)
	return m.mux.SendKeys(ctx, a.MultiplexerName, command)
}

// CaptureOutput returns the last lines of the agent's pane, or "" when the
// session is gone.
func (m *Manager) CaptureOutput(ctx context.Context, a *core.Agent, lines int) (string, error) {
	exists, err := m.mux.Exists(ctx, a.MultiplexerName)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", nil
	}
	return m.mux.CapturePane(ctx, a.MultiplexerName, lines)
}

// DetectStatus captures the pane tail and classifies it.
func (m *Manager) DetectStatus(ctx context.Context, a *core.Agent) (core.AgentStatus, *core.StatusReason, error) {
	output, err := m.CaptureOutput(ctx, a, captureLines)
	if err != nil {
		return core.Stopped(), nil, err
	}
	status, reason := detector.DetectWithReason(output)
	return status, reason, nil
}

// SendInput types text (plus Enter) into the agent's session.
func (m *Manager) SendInput(ctx context.Context, a *core.Agent, text string) error {
	exists, err := m.mux.Exists(ctx, a.MultiplexerName)
	if err != nil {
		return err
	}
	if !exists {
		return core.ErrMultiplexerAbsent(a.MultiplexerName)
	}
	return m.mux.SendKeys(ctx, a.MultiplexerName, text)
}

// IsSessionAlive reports whether the agent's session still exists.
func (m *Manager) IsSessionAlive(ctx context.Context, a *core.Agent) bool {
	exists, err := m.mux.Exists(ctx, a.MultiplexerName)
	return err == nil && exists
}

// PaneCurrentCommand exposes the pane's foreground process name for the
// Running vs AwaitingInput double-check.
func (m *Manager) PaneCurrentCommand(ctx context.Context, a *core.Agent) (string, error) {
	return m.mux.PaneCurrentCommand(ctx, a.MultiplexerName)
}

// FindOrphanedSessions lists flock-prefixed sessions that no known agent
// owns. This is a read-only report: nothing here ever kills an orphan.
func (m *Manager) FindOrphanedSessions(ctx context.Context, knownIDs []core.AgentID) ([]string, error) {
	sessions, err := m.mux.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(knownIDs))
	for _, id := range knownIDs {
		known[id.SessionName()] = true
	}
	var orphans []string
	for _, s := range sessions {
		if !known[s] {
			orphans = append(orphans, s)
		}
	}
	return orphans, nil
}
