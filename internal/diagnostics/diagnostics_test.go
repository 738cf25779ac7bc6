package diagnostics

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleReturnsPlausibleValues(t *testing.T) {
	c := NewCollector()

	first, err := c.Sample(context.Background())
	require.NoError(t, err)
	second, err := c.Sample(context.Background())
	require.NoError(t, err)

	assert.False(t, first.Time.IsZero())
	assert.GreaterOrEqual(t, second.CPUPercent, 0.0)
	assert.LessOrEqual(t, second.CPUPercent, 100.0)
	assert.GreaterOrEqual(t, second.MemPercent, 0.0)
	assert.LessOrEqual(t, second.MemPercent, 100.0)
}

type fakeAvailability bool

func (f fakeAvailability) Available(context.Context) bool { return bool(f) }

func TestBuildReport(t *testing.T) {
	repo := RepoInfo{DefaultBranch: "main", CurrentBranch: "feature/x", RemoteURL: "git@example.com:o/r.git", Clean: true}
	r := BuildReport(context.Background(), repo, t.TempDir(), "tmux", fakeAvailability(true),
		[]string{"grove-deadbeef"}, "github", "linear")

	assert.Equal(t, "tmux", r.MultiplexerKind)
	assert.True(t, r.MultiplexerAvailable)
	assert.Equal(t, "github", r.ForgeProvider)
	assert.Equal(t, []string{"grove-deadbeef"}, r.OrphanedSessions)
	assert.Equal(t, "main", r.Repo.DefaultBranch)
	assert.True(t, r.Repo.Clean)
	assert.NotEmpty(t, r.GoVersion)
}

func TestRenderIsYAMLWithWarnings(t *testing.T) {
	r := Report{
		GoVersion:        "go1.24",
		WorktreeBase:     "/wt",
		MultiplexerKind:  "tmux",
		OrphanedSessions: []string{"grove-a", "grove-b"},
		DiskFreeGB:       1.2,
		DiskWarning:      true,
	}

	out := r.Render()
	assert.Contains(t, out, "go_version: go1.24")
	assert.Contains(t, out, "orphaned_sessions:")
	assert.Contains(t, out, "2 orphaned session(s)")
	assert.Contains(t, out, "low disk space")
	assert.True(t, strings.HasPrefix(out, "go_version:"), "renders as YAML document")
}
