// Package multiplexer abstracts a named terminal multiplexer session (L1).
// Implementations target a specific backend (tmux, zellij); the design only
// assumes per-session isolation and pane capture, so the interface stays
// small enough that the scheduler and lifecycle manager never branch on
// which backend is live.
package multiplexer

import "context"

// Multiplexer drives named terminal sessions. All methods are safe to call
// concurrently; every operation shells out to a short-lived subprocess.
type Multiplexer interface {
	// Create starts a new session named name, in workingDir, and sends
	// initialCommand as its first input once the session exists. It is
	// idempotent only up to existence: calling it again on a session that
	// already exists for a *different* working dir is an error.
	Create(ctx context.Context, name, workingDir, initialCommand string) error

	// Exists reports whether a session with this name is currently alive.
	Exists(ctx context.Context, name string) (bool, error)

	// Kill terminates a session. Absence is not an error: "no server
	// running" and "session not found" are treated as success.
	Kill(ctx context.Context, name string) error

	// CapturePane returns the last `lines` lines of visible pane content,
	// ANSI sequences stripped and wrapped lines joined.
	CapturePane(ctx context.Context, name string, lines int) (string, error)

	// SendKeys appends text followed by a newline (Enter).
	SendKeys(ctx context.Context, name, text string) error

	// SendKeysRaw sends text verbatim, without a trailing newline.
	SendKeysRaw(ctx context.Context, name, text string) error

	// Interrupt sends Ctrl-C to the pane's foreground process.
	Interrupt(ctx context.Context, name string) error

	// Attach transfers the current terminal to the session; it returns once
	// the user detaches (or the session ends).
	Attach(ctx context.Context, name string) error

	// PaneCurrentCommand returns the name of the foreground process in the
	// pane, or "" if it could not be determined (session missing, command
	// failed, or empty result) — callers never distinguish those cases.
	PaneCurrentCommand(ctx context.Context, name string) (string, error)

	// PaneSize returns the pane's width and height in columns/rows,
	// defaulting to 80x24 when it cannot be determined.
	PaneSize(ctx context.Context, name string) (width, height int, err error)

	// ListSessions returns the names of every session managed by flock
	// (i.e. matching core.SessionNamePrefix), alive or not.
	ListSessions(ctx context.Context) ([]string, error)

	// Available reports whether the backend binary is installed and usable.
	Available(ctx context.Context) bool
}
