package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentIDSessionNameRoundTrip(t *testing.T) {
	id := NewAgentID()
	name := id.SessionName()

	assert.True(t, strings.HasPrefix(name, SessionNamePrefix))
	assert.Len(t, id.String(), 32)

	parsed, err := ParseAgentID(strings.TrimPrefix(name, SessionNamePrefix))
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseAgentIDRejectsGarbage(t *testing.T) {
	_, err := ParseAgentID("not-hex")
	assert.Error(t, err)
	_, err = ParseAgentID("abcd")
	assert.Error(t, err)
}

func TestAgentIDJSONKey(t *testing.T) {
	id := NewAgentID()
	data, err := json.Marshal(map[AgentID]string{id: "x"})
	require.NoError(t, err)

	var out map[AgentID]string
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "x", out[id])
}

func TestActivityRingBounded(t *testing.T) {
	a := NewAgent("x", "b", "/wt")
	for i := 0; i < ActivityHistoryCap*3; i++ {
		a.RecordActivity(i%3 == 0)
	}
	assert.Len(t, a.ActivityHistory, ActivityHistoryCap)
}

func TestSetOutputBounded(t *testing.T) {
	a := NewAgent("x", "b", "/wt")
	a.SetOutput(strings.Repeat("line\n", 100)+"last", 10)
	require.Len(t, a.OutputBuffer, 10)
	assert.Equal(t, "last", a.OutputBuffer[9])

	a.SetOutput("", 10)
	assert.Empty(t, a.OutputBuffer)
}

func TestMigrateLegacyIdempotent(t *testing.T) {
	a := NewAgent("x", "b", "/wt")
	a.AsanaTaskStatus = &AsanaStatusPayload{ID: "1", Name: "legacy"}

	a.MigrateLegacy()
	require.Equal(t, PmAsana, a.PmTaskLink.Kind)

	// Running it again must not clobber a newer link.
	a.PmTaskLink = PmTaskLink{Kind: PmLinear, Linear: &LinearStatusPayload{ID: "2"}}
	a.MigrateLegacy()
	assert.Equal(t, PmLinear, a.PmTaskLink.Kind)
}

func TestTransientFieldsNotMarshalled(t *testing.T) {
	a := NewAgent("x", "b", "/wt")
	a.RecordActivity(true)
	a.GitStatus = GitSyncStatus{Ahead: 4}
	a.LastStatusReason = &StatusReason{Status: StatusRunning, Reason: "spinner", Timestamp: time.Now()}
	a.HasChecklist = true

	data, err := json.Marshal(a)
	require.NoError(t, err)
	text := string(data)
	assert.NotContains(t, text, "spinner")
	assert.NotContains(t, text, "activity")
	assert.NotContains(t, text, "\"ahead\":4")
}

func TestCloneIsIndependent(t *testing.T) {
	a := NewAgent("x", "b", "/wt")
	a.OutputBuffer = []string{"one"}
	a.RecordActivity(true)
	a.PmTaskLink = PmTaskLink{Kind: PmLinear, Linear: &LinearStatusPayload{ID: "1", StatusName: "Todo"}}
	a.ForgeStatus = &ForgeStatus{Provider: "github", Number: 7}

	clone := a.Clone()
	require.NotSame(t, a, clone)
	assert.Equal(t, a.ID, clone.ID)

	a.OutputBuffer = append(a.OutputBuffer, "two")
	a.RecordActivity(false)
	a.PmTaskLink.Linear.StatusName = "Done"
	a.ForgeStatus.Number = 8
	a.Status = NewError("boom")

	assert.Equal(t, []string{"one"}, clone.OutputBuffer)
	assert.Len(t, clone.ActivityHistory, 1)
	assert.Equal(t, "Todo", clone.PmTaskLink.Linear.StatusName)
	assert.Equal(t, 7, clone.ForgeStatus.Number)
	assert.NotEqual(t, StatusError, clone.Status.Kind)
}

func TestSnapshotCopyDoesNotAliasLiveState(t *testing.T) {
	s := NewAppState()
	a := NewAgent("x", "b", "/wt")
	s.AddAgent(a)

	snap := s.SnapshotCopy("/repo")
	require.Len(t, snap.Agents, 1)
	require.NotSame(t, a, snap.Agents[0])

	s.AddAgent(NewAgent("y", "b2", "/wt2"))
	a.CustomNote = "changed"

	assert.Len(t, snap.Agents, 1)
	assert.Empty(t, snap.Agents[0].CustomNote)
}

func TestSelectedAgentContract(t *testing.T) {
	s := NewAppState()
	assert.Nil(t, s.SelectedAgent())

	a := NewAgent("x", "b", "/wt")
	s.AddAgent(a)
	s.SelectedIndex = 99 // out of range gets clamped on read
	assert.Same(t, a, s.SelectedAgent())
}
