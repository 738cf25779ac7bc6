// Package devserver runs one optional dev-server process per agent, each in
// its own multiplexer session next to the agent's, and exposes a small local
// HTTP surface so browser tooling can see what is running where. This is a
// boundary component: the orchestrator core never depends on it.
package devserver

import (
	"context"
	"fmt"
	"sync"

	"github.com/flock-cli/flock/internal/core"
	"github.com/flock-cli/flock/internal/multiplexer"
)

// Status is a dev server's lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

// Symbol returns the one-glyph indicator for the agent row.
func (s Status) Symbol() string {
	switch s {
	case StatusRunning:
		return "●"
	case StatusStarting:
		return "◐"
	case StatusFailed:
		return "✗"
	default:
		return "○"
	}
}

// SessionName derives the dev server's multiplexer session from the agent
// id, so dev sessions are recognizable next to "grove-" agent sessions.
func SessionName(id core.AgentID) string {
	return "flock-dev-" + id.String()[:8]
}

// Server is one agent's dev server record.
type Server struct {
	AgentID     core.AgentID
	AgentName   string
	Session     string
	Status      Status
	Port        int
	FailureNote string
}

// Config is what the manager needs to launch a server.
type Config struct {
	Command string
	Port    int
}

// Manager owns every per-agent dev server.
type Manager struct {
	mu      sync.Mutex
	mux     multiplexer.Multiplexer
	cfg     Config
	servers map[core.AgentID]*Server
}

// NewManager builds a manager over the shared multiplexer backend.
func NewManager(mux multiplexer.Multiplexer, cfg Config) *Manager {
	return &Manager{mux: mux, cfg: cfg, servers: make(map[core.AgentID]*Server)}
}

// Configured reports whether a dev-server command is set at all.
func (m *Manager) Configured() bool {
	return m.cfg.Command != ""
}

// Start launches the dev server for an agent inside its own session. An
// existing session for the same agent is killed first so the new command
// starts clean.
func (m *Manager) Start(ctx context.Context, id core.AgentID, agentName, worktreePath string) error {
	if !m.Configured() {
		return core.ErrNotConfigured("dev_server")
	}
	m.mu.Lock()
	if s, ok := m.servers[id]; ok && s.Status == StatusRunning {
		m.mu.Unlock()
		return core.ErrState("DEV_SERVER_RUNNING", fmt.Sprintf("dev server for %s already running", agentName))
	}
	session := SessionName(id)
	server := &Server{
		AgentID:   id,
		AgentName: agentName,
		Session:   session,
		Status:    StatusStarting,
		Port:      m.cfg.Port,
	}
	m.servers[id] = server
	m.mu.Unlock()

	if err := m.mux.Kill(ctx, session); err != nil {
		m.fail(id, err)
		return err
	}
	if err := m.mux.Create(ctx, session, worktreePath, m.cfg.Command); err != nil {
		m.fail(id, err)
		return err
	}

	m.mu.Lock()
	server.Status = StatusRunning
	m.mu.Unlock()
	return nil
}

func (m *Manager) fail(id core.AgentID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.servers[id]; ok {
		s.Status = StatusFailed
		s.FailureNote = err.Error()
	}
}

// Stop kills an agent's dev server session. Absence is success.
func (m *Manager) Stop(ctx context.Context, id core.AgentID) error {
	m.mu.Lock()
	server, ok := m.servers[id]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	if err := m.mux.Kill(ctx, server.Session); err != nil {
		return err
	}
	m.mu.Lock()
	server.Status = StatusStopped
	m.mu.Unlock()
	return nil
}

// Remove drops the record entirely (after agent deletion), stopping first.
func (m *Manager) Remove(ctx context.Context, id core.AgentID) error {
	err := m.Stop(ctx, id)
	m.mu.Lock()
	delete(m.servers, id)
	m.mu.Unlock()
	return err
}

// Get returns a copy of an agent's record.
func (m *Manager) Get(id core.AgentID) (Server, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.servers[id]
	if !ok {
		return Server{}, false
	}
	return *s, true
}

// Running lists every record currently in Running state.
func (m *Manager) Running() []Server {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Server
	for _, s := range m.servers {
		if s.Status == StatusRunning {
			out = append(out, *s)
		}
	}
	return out
}

// HasRunning reports whether any dev server is up.
func (m *Manager) HasRunning() bool {
	return len(m.Running()) > 0
}
