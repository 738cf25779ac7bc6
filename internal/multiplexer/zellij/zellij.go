// Package zellij implements the Multiplexer interface on top of the zellij
// binary, as a second backend alongside tmux. Zellij has no capture-pane
// primitive; it dumps the screen to a temp file instead, so CapturePane
// shells out to `zellij action dump-screen` and reads the result back.
package zellij

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/flock-cli/flock/internal/core"
)

// Zellij drives zellij sessions via os/exec.
type Zellij struct {
	bin     string
	tempDir string
}

// New returns a Zellij multiplexer using the given binary name (or path).
// Pass "" to use "zellij" from PATH.
func New(bin string) *Zellij {
	if bin == "" {
		bin = "zellij"
	}
	return &Zellij{bin: bin, tempDir: os.TempDir()}
}

func (z *Zellij) run(ctx context.Context, args ...string) (stdout, stderr string, err error) {
	cmd := exec.CommandContext(ctx, z.bin, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

func (z *Zellij) tempFilePath(name string) string {
	return filepath.Join(z.tempDir, fmt.Sprintf("grove-capture-%s.txt", name))
}

// Create starts a detached session rooted at workingDir. Zellij needs a
// short settle delay before it will accept input, unlike tmux.
func (z *Zellij) Create(ctx context.Context, name, workingDir, initialCommand string) error {
	_, stderr, err := z.run(ctx, "new-session", "-d", "-s", name, "--cwd", workingDir)
	if err != nil {
		return fmt.Errorf("creating zellij session %s: %s: %w", name, stderr, err)
	}
	time.Sleep(100 * time.Millisecond)
	return z.SendKeys(ctx, name, initialCommand)
}

// Exists reports whether a session with this name is listed.
func (z *Zellij) Exists(ctx context.Context, name string) (bool, error) {
	stdout, _, err := z.run(ctx, "list-sessions", "--short")
	if err != nil {
		return false, nil
	}
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == name || strings.HasPrefix(line, name+" ") {
			return true, nil
		}
	}
	return false, nil
}

// Kill terminates the session, tolerating "already gone" responses.
func (z *Zellij) Kill(ctx context.Context, name string) error {
	_, stderr, err := z.run(ctx, "kill-session", name)
	if err == nil {
		return nil
	}
	if stderr == "" || strings.Contains(stderr, "not found") || strings.Contains(stderr, "No such session") {
		return nil
	}
	return fmt.Errorf("killing zellij session %s: %s: %w", name, stderr, err)
}

// CapturePane dumps the full screen to a temp file, reads it back, and
// returns the last `lines` lines.
func (z *Zellij) CapturePane(ctx context.Context, name string, lines int) (string, error) {
	path := z.tempFilePath(name)
	_, stderr, err := z.run(ctx, "action", "dump-screen", path, "--full")
	if err != nil {
		return "", fmt.Errorf("dumping zellij screen for %s: %s: %w", name, stderr, err)
	}
	defer os.Remove(path)

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading captured zellij screen: %w", err)
	}

	allLines := strings.Split(string(content), "\n")
	start := len(allLines) - lines
	if start < 0 {
		start = 0
	}
	return strings.Join(allLines[start:], "\n"), nil
}

// SendKeysRaw writes characters literally into the session's pane.
func (z *Zellij) SendKeysRaw(ctx context.Context, name, text string) error {
	_, stderr, err := z.run(ctx, "action", "WriteChars", text)
	if err != nil {
		return fmt.Errorf("writing to zellij session %s: %s: %w", name, stderr, err)
	}
	return nil
}

// Interrupt writes an ETX byte (Ctrl-C) into the pane.
func (z *Zellij) Interrupt(ctx context.Context, name string) error {
	_, stderr, err := z.run(ctx, "action", "Write", "3")
	if err != nil {
		return fmt.Errorf("interrupting zellij session %s: %s: %w", name, stderr, err)
	}
	return nil
}

// SendKeys writes text followed by a newline.
func (z *Zellij) SendKeys(ctx context.Context, name, text string) error {
	return z.SendKeysRaw(ctx, name, text+"\n")
}

// Attach transfers the current terminal to the session.
func (z *Zellij) Attach(ctx context.Context, name string) error {
	cmd := exec.CommandContext(ctx, z.bin, "attach", name)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("attaching to zellij session %s: %w", name, err)
	}
	return nil
}

// PaneCurrentCommand has no zellij equivalent of tmux's pane_current_command,
// so it infers the foreground process from a recent screen capture's
// contents — the same heuristic the upstream client used.
func (z *Zellij) PaneCurrentCommand(ctx context.Context, name string) (string, error) {
	content, err := z.CapturePane(ctx, name, 20)
	if err != nil {
		return "", nil
	}
	switch {
	case strings.Contains(content, "laude"):
		return "node", nil
	case strings.Contains(content, "penCode") || strings.Contains(content, "opencode"):
		return "node", nil
	case strings.Contains(content, "odex"):
		return "codex", nil
	case strings.Contains(content, "emini"):
		return "gemini", nil
	default:
		return "bash", nil
	}
}

// PaneSize returns a fixed size: zellij does not expose per-pane dimensions
// the way tmux's display-message format strings do.
func (z *Zellij) PaneSize(ctx context.Context, name string) (int, int, error) {
	return 120, 40, nil
}

// ListSessions returns every zellij session name with the flock prefix.
func (z *Zellij) ListSessions(ctx context.Context) ([]string, error) {
	stdout, _, err := z.run(ctx, "list-sessions", "--short")
	if err != nil {
		return nil, nil
	}
	var names []string
	for _, line := range strings.Split(stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if strings.HasPrefix(fields[0], core.SessionNamePrefix) {
			names = append(names, fields[0])
		}
	}
	return names, nil
}

// Available reports whether the zellij binary can be executed.
func (z *Zellij) Available(ctx context.Context) bool {
	_, _, err := z.run(ctx, "--version")
	return err == nil
}
