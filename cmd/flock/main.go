// Command flock is a terminal-resident orchestrator for concurrent AI
// coding agents, each confined to its own git worktree and multiplexer
// session.
package main

import (
	"os"

	"github.com/flock-cli/flock/cmd/flock/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
