package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/flock-cli/flock/internal/core"
)

// SQLiteSessionStore is the optional SessionStore backend for setups with
// many repositories or large agent counts: one database indexes every
// repository's agents, so the doctor command can answer "what is running
// anywhere" without globbing and parsing every session-*.json file.
type SQLiteSessionStore struct {
	db       *sql.DB
	repoPath string
	repoHash string
	dbPath   string
}

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	repo_hash      TEXT PRIMARY KEY,
	repo_path      TEXT NOT NULL,
	selected_index INTEGER NOT NULL DEFAULT 0,
	updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
	id           TEXT PRIMARY KEY,
	repo_hash    TEXT NOT NULL REFERENCES sessions(repo_hash) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	name         TEXT NOT NULL,
	branch       TEXT NOT NULL,
	session_name TEXT NOT NULL,
	status       TEXT NOT NULL,
	payload      TEXT NOT NULL,
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_agents_repo_position ON agents(repo_hash, position);
CREATE INDEX IF NOT EXISTS idx_agents_status ON agents(status);
`

// NewSQLiteSessionStore opens (creating if needed) the shared sessions
// database under configDir and scopes the store to repoPath.
func NewSQLiteSessionStore(configDir, repoPath string) (*SQLiteSessionStore, error) {
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, core.ErrPersistenceIO("open", err)
	}
	dbPath := filepath.Join(configDir, "sessions.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, core.ErrPersistenceIO("open", err)
	}
	if _, err := db.Exec(sessionSchema); err != nil {
		_ = db.Close()
		return nil, core.ErrPersistenceIO("open", fmt.Errorf("applying schema: %w", err))
	}
	return &SQLiteSessionStore{
		db:       db,
		repoPath: repoPath,
		repoHash: RepoHash(repoPath),
		dbPath:   dbPath,
	}, nil
}

// Path returns the database file location.
func (s *SQLiteSessionStore) Path() string { return s.dbPath }

// Close releases the database handle.
func (s *SQLiteSessionStore) Close() error { return s.db.Close() }

// Exists reports whether this repository has a persisted session row.
func (s *SQLiteSessionStore) Exists() bool {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM sessions WHERE repo_hash = ?`, s.repoHash).Scan(&one)
	return err == nil
}

// Load reconstructs the snapshot for this repository, or (nil, nil) when no
// session has been saved yet.
func (s *SQLiteSessionStore) Load(ctx context.Context) (*core.SessionSnapshot, error) {
	snap := &core.SessionSnapshot{RepoPath: s.repoPath}
	err := s.db.QueryRowContext(ctx,
		`SELECT repo_path, selected_index FROM sessions WHERE repo_hash = ?`, s.repoHash).
		Scan(&snap.RepoPath, &snap.SelectedIndex)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, core.ErrPersistenceIO("load", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM agents WHERE repo_hash = ? ORDER BY position`, s.repoHash)
	if err != nil {
		return nil, core.ErrPersistenceIO("load", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, core.ErrPersistenceIO("load", err)
		}
		var agent core.Agent
		if err := json.Unmarshal([]byte(payload), &agent); err != nil {
			return nil, core.ErrPersistenceIO("load", fmt.Errorf("decoding agent row: %w", err))
		}
		agent.MigrateLegacy()
		snap.Agents = append(snap.Agents, &agent)
	}
	if err := rows.Err(); err != nil {
		return nil, core.ErrPersistenceIO("load", err)
	}
	clampSelected(snap)
	return snap, nil
}

// Save replaces this repository's rows in one transaction.
func (s *SQLiteSessionStore) Save(ctx context.Context, snap *core.SessionSnapshot) error {
	if snap == nil {
		return core.ErrValidation("NIL_SNAPSHOT", "refusing to save a nil session snapshot")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.ErrPersistenceIO("save", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (repo_hash, repo_path, selected_index, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(repo_hash) DO UPDATE SET
		   repo_path = excluded.repo_path,
		   selected_index = excluded.selected_index,
		   updated_at = excluded.updated_at`,
		s.repoHash, snap.RepoPath, snap.SelectedIndex, now); err != nil {
		return core.ErrPersistenceIO("save", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM agents WHERE repo_hash = ?`, s.repoHash); err != nil {
		return core.ErrPersistenceIO("save", err)
	}

	for i, agent := range snap.Agents {
		if agent == nil {
			continue
		}
		payload, err := json.Marshal(agent)
		if err != nil {
			return core.ErrPersistenceIO("save", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO agents (id, repo_hash, position, name, branch, session_name, status, payload, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			agent.ID.String(), s.repoHash, i, agent.Name, agent.Branch,
			agent.MultiplexerName, string(agent.Status.Kind), string(payload),
			agent.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return core.ErrPersistenceIO("save", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.ErrPersistenceIO("save", err)
	}
	return nil
}

// AgentRow is one cross-repo index entry, as surfaced by the doctor report.
type AgentRow struct {
	ID          string
	RepoPath    string
	Name        string
	Branch      string
	SessionName string
	Status      string
}

// ListAllAgents returns every indexed agent across every repository,
// ordered by repository then position. Used by `flock doctor`.
func (s *SQLiteSessionStore) ListAllAgents(ctx context.Context) ([]AgentRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, s.repo_path, a.name, a.branch, a.session_name, a.status
		 FROM agents a JOIN sessions s ON s.repo_hash = a.repo_hash
		 ORDER BY s.repo_path, a.position`)
	if err != nil {
		return nil, core.ErrPersistenceIO("list", err)
	}
	defer rows.Close()

	var out []AgentRow
	for rows.Next() {
		var r AgentRow
		if err := rows.Scan(&r.ID, &r.RepoPath, &r.Name, &r.Branch, &r.SessionName, &r.Status); err != nil {
			return nil, core.ErrPersistenceIO("list", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
