package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flock-cli/flock/internal/core"
	"github.com/flock-cli/flock/internal/testutil"
)

func TestStartStopLifecycle(t *testing.T) {
	mux := testutil.NewFakeMultiplexer()
	m := NewManager(mux, Config{Command: "npm run dev", Port: 5173})
	id := core.NewAgentID()

	require.NoError(t, m.Start(context.Background(), id, "x", "/wt/feature-x"))

	server, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, server.Status)
	assert.Equal(t, SessionName(id), server.Session)
	assert.Equal(t, []string{"npm run dev"}, mux.Sent(server.Session))
	assert.True(t, m.HasRunning())

	// Starting again while running is an error.
	require.Error(t, m.Start(context.Background(), id, "x", "/wt/feature-x"))

	require.NoError(t, m.Stop(context.Background(), id))
	server, _ = m.Get(id)
	assert.Equal(t, StatusStopped, server.Status)
	assert.False(t, m.HasRunning())

	require.NoError(t, m.Remove(context.Background(), id))
	_, ok = m.Get(id)
	assert.False(t, ok)
}

func TestStartUnconfigured(t *testing.T) {
	m := NewManager(testutil.NewFakeMultiplexer(), Config{})
	err := m.Start(context.Background(), core.NewAgentID(), "x", "/wt")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatNotConfigured))
}

func TestStopUnknownAgentIsOK(t *testing.T) {
	m := NewManager(testutil.NewFakeMultiplexer(), Config{Command: "make dev"})
	assert.NoError(t, m.Stop(context.Background(), core.NewAgentID()))
}

func TestSessionNamePrefix(t *testing.T) {
	id := core.NewAgentID()
	name := SessionName(id)
	assert.Contains(t, name, "flock-dev-")
	assert.Len(t, name, len("flock-dev-")+8)
}

func TestHandlerListsServers(t *testing.T) {
	mux := testutil.NewFakeMultiplexer()
	m := NewManager(mux, Config{Command: "npm run dev", Port: 5173})
	id := core.NewAgentID()
	require.NoError(t, m.Start(context.Background(), id, "x", "/wt"))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/servers")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var infos []serverInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))
	require.Len(t, infos, 1)
	assert.Equal(t, id.String(), infos[0].AgentID)
	assert.Equal(t, "running", infos[0].Status)
	assert.Equal(t, 5173, infos[0].Port)
}

func TestProxyRejectsUnknownAgent(t *testing.T) {
	m := NewManager(testutil.NewFakeMultiplexer(), Config{Command: "npm run dev"})
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/proxy/" + core.NewAgentID().String() + "/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/proxy/not-hex/index.html")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}
