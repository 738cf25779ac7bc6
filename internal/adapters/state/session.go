// Package state persists the per-repository agent session snapshot (spec
// §4.8): a JSON document under the config dir, written atomically, keyed by
// a hash of the repository path so several repositories can coexist in one
// config dir without colliding.
package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/flock-cli/flock/internal/core"
	"github.com/flock-cli/flock/internal/fsutil"
)

// SessionStore loads and saves one repository's agent snapshot.
type SessionStore interface {
	Load(ctx context.Context) (*core.SessionSnapshot, error)
	Save(ctx context.Context, snap *core.SessionSnapshot) error
	Exists() bool
	Path() string
}

// RepoHash returns the hex-encoded hash used to key a repository's session
// file. The full sha256 is truncated to 16 hex chars: enough to never
// collide between real checkout paths, short enough to keep filenames sane.
func RepoHash(repoPath string) string {
	sum := sha256.Sum256([]byte(repoPath))
	return hex.EncodeToString(sum[:])[:16]
}

// SessionFileName derives the session file name for a repository.
func SessionFileName(repoPath string) string {
	return "session-" + RepoHash(repoPath) + ".json"
}

// sessionEnvelope wraps the snapshot with versioning metadata so later
// schema changes can migrate on load instead of failing.
type sessionEnvelope struct {
	Version   int                   `json:"version"`
	Checksum  string                `json:"checksum"`
	UpdatedAt time.Time             `json:"updated_at"`
	Session   *core.SessionSnapshot `json:"session"`
}

const sessionSchemaVersion = 1

// JSONSessionStore is the default SessionStore: one JSON file per repo
// under the config dir, written via write-temp-then-rename.
type JSONSessionStore struct {
	path string
}

// NewJSONSessionStore builds a store for repoPath rooted at configDir
// (normally ~/.flock).
func NewJSONSessionStore(configDir, repoPath string) *JSONSessionStore {
	return &JSONSessionStore{path: filepath.Join(configDir, SessionFileName(repoPath))}
}

// NewJSONSessionStoreAt builds a store over an explicit file path, used by
// tests and by the doctor command when inspecting a foreign session file.
func NewJSONSessionStoreAt(path string) *JSONSessionStore {
	return &JSONSessionStore{path: path}
}

// Path returns the session file location.
func (s *JSONSessionStore) Path() string { return s.path }

// Exists reports whether a session file is present on disk.
func (s *JSONSessionStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads and decodes the session snapshot. A missing file is not an
// error: it returns (nil, nil) and the caller starts empty. A corrupt file
// is a PersistenceIOError; per §7 the caller logs, toasts once, and runs in
// memory.
func (s *JSONSessionStore) Load(_ context.Context) (*core.SessionSnapshot, error) {
	data, err := fsutil.ReadFileScoped(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, core.ErrPersistenceIO("load", err)
	}

	var env sessionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, core.ErrPersistenceIO("load", fmt.Errorf("decoding %s: %w", s.path, err))
	}
	if env.Session == nil {
		// Pre-envelope files stored the bare snapshot.
		var snap core.SessionSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, core.ErrPersistenceIO("load", fmt.Errorf("decoding %s: %w", s.path, err))
		}
		env.Session = &snap
	}
	if env.Checksum != "" {
		if computed, err := snapshotChecksum(env.Session); err == nil && computed != env.Checksum {
			return nil, core.ErrPersistenceIO("load", fmt.Errorf("checksum mismatch in %s", s.path))
		}
	}

	for _, a := range env.Session.Agents {
		if a != nil {
			a.MigrateLegacy()
		}
	}
	clampSelected(env.Session)
	return env.Session, nil
}

// Save writes the snapshot atomically (write-temp-then-rename), creating
// the config dir on first use.
func (s *JSONSessionStore) Save(_ context.Context, snap *core.SessionSnapshot) error {
	if snap == nil {
		return core.ErrValidation("NIL_SNAPSHOT", "refusing to save a nil session snapshot")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return core.ErrPersistenceIO("save", err)
	}

	checksum, err := snapshotChecksum(snap)
	if err != nil {
		return core.ErrPersistenceIO("save", err)
	}
	env := sessionEnvelope{
		Version:   sessionSchemaVersion,
		Checksum:  checksum,
		UpdatedAt: time.Now(),
		Session:   snap,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return core.ErrPersistenceIO("save", err)
	}
	if err := atomicWriteFile(s.path, data, 0o600); err != nil {
		return core.ErrPersistenceIO("save", err)
	}
	return nil
}

func snapshotChecksum(snap *core.SessionSnapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func clampSelected(snap *core.SessionSnapshot) {
	if snap.SelectedIndex < 0 || snap.SelectedIndex >= len(snap.Agents) {
		snap.SelectedIndex = 0
	}
}
