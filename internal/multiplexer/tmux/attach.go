package tmux

import (
	"io"
	"os"
)

func attachStdin() io.Reader  { return os.Stdin }
func attachStdout() io.Writer { return os.Stdout }
func attachStderr() io.Writer { return os.Stderr }
