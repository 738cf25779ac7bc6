package cliresume

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flock-cli/flock/internal/core"
)

func TestParseGeminiSessionList(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{
			"single session",
			"Available sessions for this project (1):\n  1. Generate fixtures (Just now) [8cfa2711-514a-4197-ac0e-df46c9fee46f]",
			"8cfa2711-514a-4197-ac0e-df46c9fee46f",
		},
		{
			"highest index wins",
			"  1. First session (2 hours ago) [aaa111]\n  2. Second session (Just now) [bbb222]",
			"bbb222",
		},
		{"empty output", "", ""},
		{"garbage lines ignored", "no sessions here\nrandom text", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseGeminiSessionList(tt.output))
		})
	}
}

func TestParseOpencodeQueryResult(t *testing.T) {
	assert.Equal(t, "ses_123", parseOpencodeQueryResult([]byte(`[{"id":"ses_123"}]`)))
	assert.Equal(t, "", parseOpencodeQueryResult([]byte(`[]`)))
	assert.Equal(t, "", parseOpencodeQueryResult([]byte(``)))
	assert.Equal(t, "", parseOpencodeQueryResult([]byte(`not json`)))
}

func TestNormalizeDirForComparison(t *testing.T) {
	assert.Equal(t, "/a/b/", normalizeDirForComparison("/a/b"))
	assert.Equal(t, "/a/b/", normalizeDirForComparison("/a/b/"))
	assert.Equal(t, "C:/wt/x/", normalizeDirForComparison(`C:\wt\x`))
}

func TestCodexSessionForDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv(codexHomeEnv, home)

	dbPath := filepath.Join(home, "state")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE threads (id TEXT, cwd TEXT, updated_at INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO threads VALUES
		('old', '/wt/feature-x', 1),
		('new', '/wt/feature-x/', 2),
		('other', '/wt/feature-y', 3)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	assert.Equal(t, "new", codexSessionForDir("/wt/feature-x"))
	assert.Equal(t, "other", codexSessionForDir("/wt/feature-y"))
	assert.Equal(t, "", codexSessionForDir("/wt/unknown"))
}

func TestCodexSessionMissingDB(t *testing.T) {
	t.Setenv(codexHomeEnv, t.TempDir())
	assert.Equal(t, "", codexSessionForDir("/wt/anything"))
}

func TestFindSessionIDUnknownAgent(t *testing.T) {
	assert.Equal(t, "", FindSessionID(context.Background(), core.AgentAider, "/wt/x"))
	assert.Equal(t, "", FindSessionID(context.Background(), core.AgentClaude, "/wt/x"))
}

func TestGeminiSessionMissingProjects(t *testing.T) {
	// Point HOME at an empty dir so no projects.json is found.
	t.Setenv("HOME", t.TempDir())
	assert.Equal(t, "", geminiSessionForDir(context.Background(), "/wt/x"))
}

func TestCodexStateDBPathPrefersEnv(t *testing.T) {
	t.Setenv(codexHomeEnv, "/custom/codex")
	assert.Equal(t, filepath.Join("/custom/codex", "state"), codexStateDBPath())

	os.Unsetenv(codexHomeEnv)
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".codex", "state"), codexStateDBPath())
}
