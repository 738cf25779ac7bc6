package cliresume

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/flock-cli/flock/internal/fsutil"
)

// geminiSessionLine matches one row of `gemini --list-sessions` output:
// "  1. Fix the flaky test (2 hours ago) [8cfa2711-...]".
var geminiSessionLine = regexp.MustCompile(`^\s*(\d+)\.\s+.+?\s+\[([0-9a-f-]+)\]\s*$`)

func geminiDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gemini")
}

// geminiSessionForDir checks ~/.gemini/projects.json for a project entry
// covering the worktree, then asks the gemini CLI for that project's
// sessions and returns the highest-numbered (most recent) one.
func geminiSessionForDir(ctx context.Context, worktreePath string) string {
	dir := geminiDir()
	if dir == "" {
		return ""
	}
	data, err := fsutil.ReadFileScoped(filepath.Join(dir, "projects.json"))
	if err != nil {
		return ""
	}
	var doc struct {
		Projects map[string]string `json:"projects"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return ""
	}
	if _, ok := doc.Projects[worktreePath]; !ok {
		return ""
	}

	cmd := exec.CommandContext(ctx, "gemini", "--list-sessions")
	cmd.Dir = worktreePath
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return parseGeminiSessionList(string(out))
}

// parseGeminiSessionList picks the session with the highest index; the
// gemini CLI numbers them oldest-first.
func parseGeminiSessionList(output string) string {
	latestIndex := 0
	latest := ""
	for _, line := range strings.Split(output, "\n") {
		caps := geminiSessionLine.FindStringSubmatch(line)
		if caps == nil {
			continue
		}
		index, err := strconv.Atoi(caps[1])
		if err != nil {
			continue
		}
		if index > latestIndex {
			latestIndex = index
			latest = caps[2]
		}
	}
	return latest
}
