// Package tmux implements the Multiplexer interface by shelling out to the
// tmux binary. This is the idiomatic Go way to drive tmux: there is no
// maintained Go binding for the tmux control protocol, and every operation
// here is a short-lived command anyway.
package tmux

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/flock-cli/flock/internal/core"
)

// Tmux drives tmux sessions via os/exec.
type Tmux struct {
	bin string
}

// New returns a Tmux multiplexer using the given binary name (or path).
// Pass "" to use "tmux" from PATH.
func New(bin string) *Tmux {
	if bin == "" {
		bin = "tmux"
	}
	return &Tmux{bin: bin}
}

func (t *Tmux) run(ctx context.Context, args ...string) (stdout, stderr string, err error) {
	cmd := exec.CommandContext(ctx, t.bin, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

// Create starts a detached session in workingDir, then sends initialCommand.
func (t *Tmux) Create(ctx context.Context, name, workingDir, initialCommand string) error {
	_, stderr, err := t.run(ctx, "new-session", "-d", "-s", name, "-c", workingDir)
	if err != nil {
		return fmt.Errorf("creating tmux session %s: %s: %w", name, stderr, err)
	}
	return t.SendKeys(ctx, name, initialCommand)
}

// Exists reports whether the session is alive.
func (t *Tmux) Exists(ctx context.Context, name string) (bool, error) {
	_, _, err := t.run(ctx, "has-session", "-t", name)
	return err == nil, nil
}

// Kill terminates the session, tolerating "already gone" tmux responses.
func (t *Tmux) Kill(ctx context.Context, name string) error {
	_, stderr, err := t.run(ctx, "kill-session", "-t", name)
	if err == nil {
		return nil
	}
	if strings.Contains(stderr, "no server running") || strings.Contains(stderr, "session not found") {
		return nil
	}
	return fmt.Errorf("killing tmux session %s: %s: %w", name, stderr, err)
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// CapturePane returns the last `lines` lines of pane content with ANSI
// sequences stripped and wrapped lines joined.
func (t *Tmux) CapturePane(ctx context.Context, name string, lines int) (string, error) {
	stdout, stderr, err := t.run(ctx, "capture-pane", "-t", name, "-p", "-e", "-J", "-S", fmt.Sprintf("-%d", lines))
	if err != nil {
		return "", fmt.Errorf("capturing pane %s: %s: %w", name, stderr, err)
	}
	return stripANSI(stdout), nil
}

// SendKeysRaw sends text verbatim, without pressing Enter.
func (t *Tmux) SendKeysRaw(ctx context.Context, name, text string) error {
	_, stderr, err := t.run(ctx, "send-keys", "-t", name, "-l", text)
	if err != nil {
		return fmt.Errorf("sending keys to %s: %s: %w", name, stderr, err)
	}
	return nil
}

// Interrupt sends Ctrl-C to the pane's foreground process.
func (t *Tmux) Interrupt(ctx context.Context, name string) error {
	_, stderr, err := t.run(ctx, "send-keys", "-t", name, "C-c")
	if err != nil {
		return fmt.Errorf("interrupting %s: %s: %w", name, stderr, err)
	}
	return nil
}

// SendKeys sends text, then a separate Enter keystroke (C-m).
func (t *Tmux) SendKeys(ctx context.Context, name, text string) error {
	if err := t.SendKeysRaw(ctx, name, text); err != nil {
		return err
	}
	_, stderr, err := t.run(ctx, "send-keys", "-t", name, "C-m")
	if err != nil {
		return fmt.Errorf("sending enter to %s: %s: %w", name, stderr, err)
	}
	return nil
}

// Attach transfers the current terminal to the session until the user
// detaches. Unlike the other operations, this must inherit the caller's
// stdio rather than capture it.
func (t *Tmux) Attach(ctx context.Context, name string) error {
	cmd := exec.CommandContext(ctx, t.bin, "attach-session", "-t", name)
	cmd.Stdin = attachStdin()
	cmd.Stdout = attachStdout()
	cmd.Stderr = attachStderr()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("attaching to %s: %w", name, err)
	}
	return nil
}

// PaneCurrentCommand returns the foreground process name, or "" on any
// failure (tmux error, missing session, empty result) — callers never
// distinguish those cases, matching the upstream "graceful fallback" idiom.
func (t *Tmux) PaneCurrentCommand(ctx context.Context, name string) (string, error) {
	stdout, _, err := t.run(ctx, "display-message", "-t", name, "-p", "#{pane_current_command}")
	if err != nil {
		return "", nil
	}
	cmd := strings.TrimSpace(stdout)
	return cmd, nil
}

// PaneSize returns pane dimensions, defaulting to 80x24 if undeterminable.
func (t *Tmux) PaneSize(ctx context.Context, name string) (int, int, error) {
	stdout, stderr, err := t.run(ctx, "display-message", "-t", name, "-p", "#{pane_width} #{pane_height}")
	if err != nil {
		return 0, 0, fmt.Errorf("getting pane size for %s: %s: %w", name, stderr, err)
	}
	parts := strings.Fields(stdout)
	width, height := 80, 24
	if len(parts) >= 2 {
		if w, err := strconv.Atoi(parts[0]); err == nil {
			width = w
		}
		if h, err := strconv.Atoi(parts[1]); err == nil {
			height = h
		}
	}
	return width, height, nil
}

// ListSessions returns every tmux session name with the flock prefix.
func (t *Tmux) ListSessions(ctx context.Context) ([]string, error) {
	stdout, _, err := t.run(ctx, "list-sessions", "-F", "#{session_name}")
	if err != nil {
		// No server / no sessions is not an error.
		return nil, nil
	}
	var names []string
	for _, line := range strings.Split(stdout, "\n") {
		if strings.HasPrefix(line, core.SessionNamePrefix) {
			names = append(names, line)
		}
	}
	return names, nil
}

// Available reports whether the tmux binary can be executed.
func (t *Tmux) Available(ctx context.Context) bool {
	_, _, err := t.run(ctx, "-V")
	return err == nil
}
