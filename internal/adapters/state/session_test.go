package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flock-cli/flock/internal/core"
)

func TestRepoHashStable(t *testing.T) {
	a := RepoHash("/home/dev/proj")
	b := RepoHash("/home/dev/proj")
	c := RepoHash("/home/dev/other")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	store := NewJSONSessionStore(t.TempDir(), "/repo")

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.False(t, store.Exists())
}

func TestSessionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONSessionStore(dir, "/repo")

	a := core.NewAgent("alpha", "feature/alpha", "/wt/feature-alpha")
	b := core.NewAgent("beta", "feature/beta", "/wt/feature-beta")
	b.CustomNote = "check the migration path"
	c := core.NewAgent("gamma", "feature/gamma", "/wt/feature-gamma")
	c.ContinueSession = true

	// Transient fields must not survive the round trip.
	b.RecordActivity(true)
	b.GitStatus = core.GitSyncStatus{Ahead: 3}

	in := &core.SessionSnapshot{
		RepoPath:      "/repo",
		Agents:        []*core.Agent{a, b, c},
		SelectedIndex: 1,
	}
	require.NoError(t, store.Save(context.Background(), in))
	require.True(t, store.Exists())

	out, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, out)

	require.Len(t, out.Agents, 3)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, []string{out.Agents[0].Name, out.Agents[1].Name, out.Agents[2].Name})
	assert.Equal(t, "check the migration path", out.Agents[1].CustomNote)
	assert.True(t, out.Agents[2].ContinueSession)
	assert.Equal(t, 1, out.SelectedIndex)

	assert.Empty(t, out.Agents[1].ActivityHistory)
	assert.Zero(t, out.Agents[1].GitStatus.Ahead)
}

func TestSaveIsAtomicOverExisting(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONSessionStore(dir, "/repo")

	first := &core.SessionSnapshot{RepoPath: "/repo", Agents: []*core.Agent{core.NewAgent("one", "b1", "/wt/b1")}}
	require.NoError(t, store.Save(context.Background(), first))

	second := &core.SessionSnapshot{RepoPath: "/repo", Agents: []*core.Agent{core.NewAgent("two", "b2", "/wt/b2")}}
	require.NoError(t, store.Save(context.Background(), second))

	out, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Agents, 1)
	assert.Equal(t, "two", out.Agents[0].Name)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLoadRejectsChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONSessionStore(dir, "/repo")
	require.NoError(t, store.Save(context.Background(), &core.SessionSnapshot{RepoPath: "/repo"}))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &env))
	env["checksum"] = json.RawMessage(`"deadbeef"`)
	tampered, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Path(), tampered, 0o600))

	_, err = store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatState))
}

func TestLoadMigratesLegacyAsanaStatus(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONSessionStore(dir, "/repo")

	agent := core.NewAgent("legacy", "feature/legacy", "/wt/feature-legacy")
	agent.AsanaTaskStatus = &core.AsanaStatusPayload{ID: "123", Name: "old task", StatusName: "In Progress"}
	agent.PmTaskLink = core.PmTaskLink{Kind: core.PmNone}
	require.NoError(t, store.Save(context.Background(), &core.SessionSnapshot{
		RepoPath: "/repo",
		Agents:   []*core.Agent{agent},
	}))

	out, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Agents, 1)
	assert.Equal(t, core.PmAsana, out.Agents[0].PmTaskLink.Kind)
	require.NotNil(t, out.Agents[0].PmTaskLink.Asana)
	assert.Equal(t, "123", out.Agents[0].PmTaskLink.Asana.ID)
}

func TestLoadClampsSelectedIndex(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONSessionStore(dir, "/repo")
	require.NoError(t, store.Save(context.Background(), &core.SessionSnapshot{
		RepoPath:      "/repo",
		Agents:        []*core.Agent{core.NewAgent("only", "b", "/wt/b")},
		SelectedIndex: 7,
	}))

	out, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, out.SelectedIndex)
}

func TestTwoReposDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	s1 := NewJSONSessionStore(dir, "/repo/one")
	s2 := NewJSONSessionStore(dir, "/repo/two")

	require.NotEqual(t, s1.Path(), s2.Path())
	require.NoError(t, s1.Save(context.Background(), &core.SessionSnapshot{RepoPath: "/repo/one"}))
	assert.False(t, s2.Exists())
	assert.Equal(t, filepath.Join(dir, SessionFileName("/repo/one")), s1.Path())
}
