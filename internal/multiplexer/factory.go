package multiplexer

import (
	"fmt"

	"github.com/flock-cli/flock/internal/core"
	"github.com/flock-cli/flock/internal/multiplexer/tmux"
	"github.com/flock-cli/flock/internal/multiplexer/zellij"
)

// New constructs the configured multiplexer backend.
func New(kind string) (Multiplexer, error) {
	switch kind {
	case "", core.MultiplexerTmux:
		return tmux.New(""), nil
	case core.MultiplexerZellij:
		return zellij.New(""), nil
	default:
		return nil, fmt.Errorf("unknown multiplexer backend %q", kind)
	}
}
