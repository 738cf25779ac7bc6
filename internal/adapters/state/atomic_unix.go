//go:build !windows

package state

import (
	"os"

	"github.com/google/renameio/v2"
)

// atomicWriteFile writes the session file atomically. On Unix, renameio's
// write-temp-fsync-rename guarantees a crash mid-save leaves the previous
// snapshot intact rather than a truncated one.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}
