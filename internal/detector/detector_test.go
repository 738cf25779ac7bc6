package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flock-cli/flock/internal/core"
)

func TestDetectTable(t *testing.T) {
	tests := []struct {
		name     string
		captured string
		want     core.AgentStatusKind
	}{
		{"empty capture is stopped", "", core.StatusStopped},
		{"whitespace only is stopped", "\n  \n\t\n", core.StatusStopped},

		{"yes-no prompt", "Apply these changes? [y/N]\n", core.StatusAwaitingInput},
		{"inverted yes-no prompt", "Overwrite? [Y/n]\n", core.StatusAwaitingInput},
		{"do you want", "Do you want to run this command?\n", core.StatusAwaitingInput},
		{"continue prompt", "3 files changed. Continue?\n", core.StatusAwaitingInput},
		{"press enter", "Press Enter to open the editor\n", core.StatusAwaitingInput},
		{"waiting for", "Waiting for your confirmation\n", core.StatusAwaitingInput},
		{"question mark prompt", "? Select a model (use arrow keys)\n", core.StatusAwaitingInput},
		{"question mark bracket", "? [Pick one]\n", core.StatusAwaitingInput},

		{"error line", "ERROR: failed to resolve dependency\n", core.StatusError},
		{"panic line", "panic: runtime error: index out of range\n", core.StatusError},
		{"fatal line", "fatal: not a git repository\n", core.StatusError},

		{"tokens used", "Tokens used: 1,204 · elapsed 3s\n", core.StatusRunning},
		{"tokens per second", "generating at 52 tokens/s\n", core.StatusRunning},
		{"esc to interrupt", "✻ Compacting… (esc to interrupt)\n", core.StatusRunning},
		{"spinner with verb", "⠹ Compiling workspace…\n", core.StatusRunning},
		{"spinner without verb is not running", "⠹ 42%\n$ ", core.StatusIdle},

		{"done terminator", "All checks passed.\ndone\n", core.StatusCompleted},
		{"wrote terminator", "Wrote 3 files\n", core.StatusCompleted},
		{"completed deep in scrollback is ignored", "done\n" + strings.Repeat("line\n", 10) + "$ ", core.StatusIdle},

		{"bare shell prompt", "some earlier output\n$ ", core.StatusIdle},
		{"bare angle prompt", ">\n", core.StatusIdle},
		{"user-host prompt", "dev@box:~/proj $\n", core.StatusIdle},

		{"plain output falls back to idle", "copying assets\nlinking binary\n", core.StatusIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.captured)
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}

func TestAwaitingInputBeatsError(t *testing.T) {
	// Spec scenario: both a prompt and an error marker on screen. The
	// prompt wins because a blocked agent needs the human first.
	captured := "ERROR: something failed\nDo you want to continue? [y/N]\n"

	status, reason := DetectWithReason(captured)

	assert.Equal(t, core.StatusAwaitingInput, status.Kind)
	require.NotNil(t, reason)
	assert.Equal(t, core.StatusAwaitingInput, reason.Status)
	assert.NotEmpty(t, reason.Pattern)
}

func TestErrorCapturesMessage(t *testing.T) {
	status := Detect("building...\nERROR: connection refused to registry\n$ ")

	assert.Equal(t, core.StatusError, status.Kind)
	assert.Equal(t, "connection refused to registry", status.Message)
}

func TestErrorMessageTruncated(t *testing.T) {
	long := "ERROR: " + strings.Repeat("x", 500)
	status := Detect(long)

	assert.Equal(t, core.StatusError, status.Kind)
	assert.LessOrEqual(t, len(status.Message), errMessageMax)
}

func TestRunningBeatsCompleted(t *testing.T) {
	captured := "wrote output.txt\n⠧ Generating summary…\n"
	assert.Equal(t, core.StatusRunning, Detect(captured).Kind)
}

func TestOnlyTailIsScanned(t *testing.T) {
	// An old prompt pushed past the tail window must not pin the agent to
	// AwaitingInput forever.
	old := "Do you want to continue? [y/N]\n"
	fresh := strings.Repeat("log line\n", TailLines+5) + "$ "

	assert.Equal(t, core.StatusIdle, Detect(old+fresh).Kind)
}

func TestDetectWithReasonRecordsMatchedLine(t *testing.T) {
	_, reason := DetectWithReason("⠋ Downloading model weights…\n")

	require.NotNil(t, reason)
	assert.Equal(t, core.StatusRunning, reason.Status)
	assert.Contains(t, reason.Reason, "Downloading")
}

func TestStoppedReason(t *testing.T) {
	status, reason := DetectWithReason("")

	assert.Equal(t, core.StatusStopped, status.Kind)
	require.NotNil(t, reason)
	assert.Equal(t, "empty capture", reason.Reason)
}
