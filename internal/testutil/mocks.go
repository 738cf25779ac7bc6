// Package testutil provides in-memory fakes for the external boundaries —
// the multiplexer and the session store — so lifecycle, scheduler and
// reducer tests never shell out to tmux or touch the config dir.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/flock-cli/flock/internal/core"
)

// fakeSession is one live session inside the FakeMultiplexer.
type fakeSession struct {
	workingDir string
	pane       string
	sent       []string
	foreground string
}

// FakeMultiplexer is an in-memory multiplexer.Multiplexer implementation.
// All methods are safe for concurrent use.
type FakeMultiplexer struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession

	// CreateErr / KillErr force the next matching call to fail.
	CreateErr error
	KillErr   error

	// Attached records every Attach call, newest last.
	Attached []string
}

// NewFakeMultiplexer returns an empty fake.
func NewFakeMultiplexer() *FakeMultiplexer {
	return &FakeMultiplexer{sessions: make(map[string]*fakeSession)}
}

// Create registers a session and records initialCommand as its first input.
func (f *FakeMultiplexer) Create(_ context.Context, name, workingDir, initialCommand string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		err := f.CreateErr
		f.CreateErr = nil
		return err
	}
	if existing, ok := f.sessions[name]; ok {
		if existing.workingDir != workingDir {
			return fmt.Errorf("session %s already exists in %s", name, existing.workingDir)
		}
		return nil
	}
	f.sessions[name] = &fakeSession{
		workingDir: workingDir,
		sent:       []string{initialCommand},
	}
	return nil
}

// Exists reports whether the named session is alive.
func (f *FakeMultiplexer) Exists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[name]
	return ok, nil
}

// Kill removes a session; absence is success, like the real adapters.
func (f *FakeMultiplexer) Kill(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.KillErr != nil {
		err := f.KillErr
		f.KillErr = nil
		return err
	}
	delete(f.sessions, name)
	return nil
}

// CapturePane returns the pane text set via SetPane, trimmed to lines.
func (f *FakeMultiplexer) CapturePane(_ context.Context, name string, lines int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[name]
	if !ok {
		return "", nil
	}
	split := strings.Split(s.pane, "\n")
	if lines > 0 && len(split) > lines {
		split = split[len(split)-lines:]
	}
	return strings.Join(split, "\n"), nil
}

// SendKeys records text as sent input (with an implied newline).
func (f *FakeMultiplexer) SendKeys(_ context.Context, name, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[name]
	if !ok {
		return core.ErrMultiplexerAbsent(name)
	}
	s.sent = append(s.sent, text)
	return nil
}

// SendKeysRaw records text as sent without a newline.
func (f *FakeMultiplexer) SendKeysRaw(_ context.Context, name, text string) error {
	return f.SendKeys(context.Background(), name, text)
}

// Interrupt records a Ctrl-C keystroke.
func (f *FakeMultiplexer) Interrupt(_ context.Context, name string) error {
	return f.SendKeys(context.Background(), name, "<C-c>")
}

// Attach records the attach; it never blocks.
func (f *FakeMultiplexer) Attach(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[name]; !ok {
		return core.ErrMultiplexerAbsent(name)
	}
	f.Attached = append(f.Attached, name)
	return nil
}

// PaneCurrentCommand returns the foreground command set via SetForeground.
func (f *FakeMultiplexer) PaneCurrentCommand(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[name]
	if !ok {
		return "", nil
	}
	return s.foreground, nil
}

// PaneSize reports a fixed 80x24 pane.
func (f *FakeMultiplexer) PaneSize(_ context.Context, _ string) (int, int, error) {
	return 80, 24, nil
}

// ListSessions returns every session name carrying the flock prefix.
func (f *FakeMultiplexer) ListSessions(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for name := range f.sessions {
		if strings.HasPrefix(name, core.SessionNamePrefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

// Available always reports true.
func (f *FakeMultiplexer) Available(_ context.Context) bool { return true }

// SetPane sets the visible pane content for a session, creating the session
// if tests want a pre-existing one.
func (f *FakeMultiplexer) SetPane(name, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[name]
	if !ok {
		s = &fakeSession{}
		f.sessions[name] = s
	}
	s.pane = content
}

// SetForeground sets the pane's foreground command name.
func (f *FakeMultiplexer) SetForeground(name, command string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[name]; ok {
		s.foreground = command
	}
}

// Sent returns everything sent to a session, first input included.
func (f *FakeMultiplexer) Sent(name string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[name]
	if !ok {
		return nil
	}
	out := make([]string, len(s.sent))
	copy(out, s.sent)
	return out
}

// WorkingDir returns the dir a session was created in.
func (f *FakeMultiplexer) WorkingDir(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[name]; ok {
		return s.workingDir
	}
	return ""
}

// FakeSessionStore is an in-memory state.SessionStore.
type FakeSessionStore struct {
	mu      sync.Mutex
	snap    *core.SessionSnapshot
	saves   int
	SaveErr error
}

// NewFakeSessionStore returns an empty store.
func NewFakeSessionStore() *FakeSessionStore { return &FakeSessionStore{} }

// Load returns the last saved snapshot, nil when none.
func (f *FakeSessionStore) Load(_ context.Context) (*core.SessionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, nil
}

// Save stores the snapshot.
func (f *FakeSessionStore) Save(_ context.Context, snap *core.SessionSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SaveErr != nil {
		return f.SaveErr
	}
	f.snap = snap
	f.saves++
	return nil
}

// Exists reports whether a snapshot was saved.
func (f *FakeSessionStore) Exists() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap != nil
}

// Path returns a fixed placeholder path.
func (f *FakeSessionStore) Path() string { return "fake://session" }

// Saves returns how many times Save succeeded.
func (f *FakeSessionStore) Saves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

// Snapshot returns the last saved snapshot.
func (f *FakeSessionStore) Snapshot() *core.SessionSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}
