// Package detector maps captured multiplexer pane text to an agent status
// (M1). It is a pure function over text: no I/O, no state. The rules are a
// priority-ordered, data-driven table so new agent CLIs can be supported by
// appending patterns, never by branching logic elsewhere.
package detector

import (
	"strings"
	"time"

	"github.com/flock-cli/flock/internal/core"
)

// TailLines is how much of the capture the detector inspects. Anything
// above the last 50 lines is scrollback, not current activity.
const TailLines = 50

// errMessageMax truncates the captured text after an error marker.
const errMessageMax = 120

// Rule is one entry in the priority table. Match scans the tail and, on a
// hit, returns the matched line and the pattern that fired.
type Rule struct {
	Name   string
	Status core.AgentStatusKind
	Match  func(tail []string) (line, pattern string, ok bool)
}

// awaitingLiterals are prompts that always mean the agent is blocked on a
// human, regardless of what else is on screen.
var awaitingLiterals = []string{
	"Do you want",
	"Continue?",
	"Press Enter",
	"Waiting for",
	"awaiting input",
	"[y/N]",
	"[Y/n]",
	"[y/n]",
}

// errorMarkers start an error message; the rest of the line is the reason.
var errorMarkers = []string{"ERROR:", "panic:", "fatal:"}

// runningLiterals are progress markers the supported agent CLIs print while
// actively working.
var runningLiterals = []string{
	"Tokens used",
	"tokens/s",
	"esc to interrupt",
	"ctrl+c to interrupt",
	"Thinking",
	"Working",
}

// spinnerRunes are the glyphs the supported CLIs animate next to an
// "-ing" verb while busy.
const spinnerRunes = "⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏✢✳✶✻✽◐◓◑◒"

// completedLiterals indicate a finished run near the tail.
var completedLiterals = []string{"done", "finished", "completed", "wrote", "Done", "Finished", "Completed", "Wrote"}

// DefaultRules is the priority-ordered table (spec §4.3); the first rule
// that matches wins.
var DefaultRules = []Rule{
	{Name: "awaiting-input", Status: core.StatusAwaitingInput, Match: matchAwaitingInput},
	{Name: "error", Status: core.StatusError, Match: matchError},
	{Name: "running", Status: core.StatusRunning, Match: matchRunning},
	{Name: "completed", Status: core.StatusCompleted, Match: matchCompleted},
	{Name: "idle-prompt", Status: core.StatusIdle, Match: matchIdlePrompt},
}

// Detect classifies captured pane text.
func Detect(captured string) core.AgentStatus {
	status, _ := DetectWithReason(captured)
	return status
}

// DetectWithReason classifies captured pane text and reports which rule and
// line decided the outcome, for the status-debug overlay.
func DetectWithReason(captured string) (core.AgentStatus, *core.StatusReason) {
	tail := tailOf(captured, TailLines)
	if len(tail) == 0 {
		return core.Stopped(), &core.StatusReason{
			Status:    core.StatusStopped,
			Reason:    "empty capture",
			Timestamp: time.Now(),
		}
	}

	for _, rule := range DefaultRules {
		line, pattern, ok := rule.Match(tail)
		if !ok {
			continue
		}
		status := core.AgentStatus{Kind: rule.Status}
		if rule.Status == core.StatusError {
			status.Message = errorMessage(line)
		}
		return status, &core.StatusReason{
			Status:    rule.Status,
			Reason:    strings.TrimSpace(line),
			Pattern:   pattern,
			Timestamp: time.Now(),
		}
	}

	return core.Idle(), &core.StatusReason{
		Status:    core.StatusIdle,
		Reason:    "no rule matched",
		Timestamp: time.Now(),
	}
}

func tailOf(captured string, n int) []string {
	trimmed := strings.TrimRight(captured, " \t\n")
	if trimmed == "" {
		return nil
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

func matchAwaitingInput(tail []string) (string, string, bool) {
	for _, line := range tail {
		for _, lit := range awaitingLiterals {
			if strings.Contains(line, lit) {
				return line, lit, true
			}
		}
		// A bare "? " prompt followed by a letter or bracket, e.g.
		// "? Select an option" or "? [Use arrows to move]".
		trimmed := strings.TrimSpace(line)
		if len(trimmed) >= 3 && strings.HasPrefix(trimmed, "? ") {
			c := trimmed[2]
			if c == '[' || c == '(' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
				return line, "? <prompt>", true
			}
		}
	}
	return "", "", false
}

func matchError(tail []string) (string, string, bool) {
	for _, line := range tail {
		for _, marker := range errorMarkers {
			if strings.Contains(line, marker) {
				return line, marker, true
			}
		}
	}
	return "", "", false
}

func matchRunning(tail []string) (string, string, bool) {
	for _, line := range tail {
		for _, lit := range runningLiterals {
			if strings.Contains(line, lit) {
				return line, lit, true
			}
		}
		if hasSpinnerWithProgressVerb(line) {
			return line, "spinner+ing", true
		}
	}
	return "", "", false
}

// hasSpinnerWithProgressVerb reports whether a spinner glyph sits on the
// same line as a progress verb ("Compiling", "Generating", ...).
func hasSpinnerWithProgressVerb(line string) bool {
	hasSpinner := strings.ContainsAny(line, spinnerRunes)
	if !hasSpinner {
		return false
	}
	for _, word := range strings.Fields(line) {
		trimmed := strings.TrimRight(word, ".…,:")
		if len(trimmed) > 4 && strings.HasSuffix(trimmed, "ing") {
			return true
		}
	}
	return false
}

func matchCompleted(tail []string) (string, string, bool) {
	// Only the last few lines count: a "done" deep in scrollback followed
	// by fresh output is history, not a terminator.
	start := 0
	if len(tail) > 5 {
		start = len(tail) - 5
	}
	for _, line := range tail[start:] {
		for _, lit := range completedLiterals {
			if containsWord(line, lit) {
				return line, lit, true
			}
		}
	}
	return "", "", false
}

func containsWord(line, word string) bool {
	idx := strings.Index(line, word)
	if idx < 0 {
		return false
	}
	before := idx == 0 || !isWordByte(line[idx-1])
	end := idx + len(word)
	after := end >= len(line) || !isWordByte(line[end])
	return before && after
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func matchIdlePrompt(tail []string) (string, string, bool) {
	for i := len(tail) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(tail[i])
		if trimmed == "" {
			continue
		}
		if trimmed == "$" || trimmed == ">" ||
			strings.HasSuffix(trimmed, " $") || strings.HasSuffix(trimmed, " %") ||
			strings.HasSuffix(trimmed, "$ ") || strings.HasSuffix(trimmed, "> ") {
			return tail[i], "shell-prompt", true
		}
		return "", "", false
	}
	return "", "", false
}

func errorMessage(line string) string {
	msg := strings.TrimSpace(line)
	for _, marker := range errorMarkers {
		if idx := strings.Index(msg, marker); idx >= 0 {
			msg = strings.TrimSpace(msg[idx+len(marker):])
			break
		}
	}
	if len(msg) > errMessageMax {
		msg = msg[:errMessageMax]
	}
	return msg
}
